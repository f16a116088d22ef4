package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/desk-kit/support-desk/internal/api/http/handlers"
	"github.com/desk-kit/support-desk/internal/auth"
	"github.com/desk-kit/support-desk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Directory      *handlers.DirectoryHandler
	Stream         *handlers.StreamHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireRole())

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/stream", cfg.Stream.Stream)
	tickets.Patch("/:id/field", cfg.Tickets.UpdateField)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Put("/:id/tags", auth.RequireStaff(), cfg.Tickets.ReconcileTags)

	api.Get("/agents", auth.RequireStaff(), cfg.Directory.ListAgents)
	api.Get("/teams", auth.RequireRole(domain.RoleAdmin), cfg.Directory.ListTeams)
}
