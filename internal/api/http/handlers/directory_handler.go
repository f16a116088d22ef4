package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/desk-kit/support-desk/internal/auth"
	"github.com/desk-kit/support-desk/internal/service"
	"github.com/desk-kit/support-desk/pkg/util"
)

// DirectoryHandler serves company staff directories: the assignee picker
// and the admin teams view.
type DirectoryHandler struct {
	projections *service.ProjectionService
}

// NewDirectoryHandler constructs handler.
func NewDirectoryHandler(projections *service.ProjectionService) *DirectoryHandler {
	return &DirectoryHandler{projections: projections}
}

// ListAgents GET /agents.
func (h *DirectoryHandler) ListAgents(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	agents, err := h.projections.ListAgents(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": agents})
}

// ListTeams GET /teams.
func (h *DirectoryHandler) ListTeams(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	teams, err := h.projections.ListTeams(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": teams})
}
