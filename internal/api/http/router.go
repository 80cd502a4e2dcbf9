package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Triage         *handlers.TriageHandler
	Config         *handlers.ConfigHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/audit", cfg.Tickets.GetAudit)
	tickets.Post("/:id/reply", cfg.Tickets.Reply)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)

	agent := app.Group("/agent", cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleAgent, domain.RoleAdmin))
	agent.Post("/triage", cfg.Triage.Triage)
	agent.Get("/suggestion/:id", cfg.Triage.GetSuggestion)

	configGroup := app.Group("/config", cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleAgent, domain.RoleAdmin))
	configGroup.Get("/", cfg.Config.GetConfig)
	configGroup.Put("/", auth.RequireRole(domain.RoleAdmin), cfg.Config.UpdateConfig)

	app.Get("/metrics", cfg.AuthMiddleware.Handle,
		auth.RequireRole(domain.RoleAdmin), cfg.Config.GetMetrics)
}
