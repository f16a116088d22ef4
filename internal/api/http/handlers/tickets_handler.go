package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/desk-kit/support-desk/internal/api/dto"
	"github.com/desk-kit/support-desk/internal/auth"
	"github.com/desk-kit/support-desk/internal/domain"
	"github.com/desk-kit/support-desk/internal/service"
	"github.com/desk-kit/support-desk/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets     *service.TicketService
	tags        *service.TagService
	projections *service.ProjectionService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, tags *service.TagService, projections *service.ProjectionService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, tags: tags, projections: projections}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    req.Priority,
		Topic:       req.Topic,
		Type:        req.Type,
		CreatedFor:  req.CreatedFor,
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	if len(req.Tags) > 0 && actor.IsStaff() {
		if _, err := h.tags.Reconcile(c.UserContext(), actor, ticket.ID, req.Tags); err != nil {
			return err
		}
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticket})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	summaries, err := h.projections.ListTickets(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summaries})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	view, err := h.projections.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// Stats GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	stats, err := h.projections.Stats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// UpdateField PATCH /tickets/:id/field.
func (h *TicketsHandler) UpdateField(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.UpdateTicketFieldRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if req.Field == "" {
		return util.NewValidationError("field is required", nil)
	}

	change, err := h.tickets.UpdateField(c.UserContext(), actor, c.Params("id"), req.Field, req.Value)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": change})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	messageType := domain.MessagePublic
	if req.MessageType != nil {
		messageType = *req.MessageType
	}

	message, err := h.tickets.AddMessage(c.UserContext(), actor, c.Params("id"), req.Body, messageType)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": message})
}

// ReconcileTags PUT /tickets/:id/tags.
func (h *TicketsHandler) ReconcileTags(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return util.NewUnauthorized("authentication required")
	}
	var req dto.ReconcileTagsRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	tags, err := h.tags.Reconcile(c.UserContext(), actor, c.Params("id"), req.Tags)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tags})
}
