package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/quickdesk/internal/api/http/handlers"
	"github.com/spec-kit/quickdesk/internal/auth"
	"github.com/spec-kit/quickdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Staff          *handlers.StaffHandler
	Categories     *handlers.CategoriesHandler
	Metrics        http.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Users.Logout)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/me", cfg.Users.Me)
	protected.Get("/categories", cfg.Categories.List)
	protected.Get("/agents", cfg.Staff.ListAgents)

	tickets := protected.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/export", cfg.Tickets.ExportTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Delete("/:id", cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/votes/:direction", cfg.Tickets.Vote)
	tickets.Patch("/:id/status", cfg.Tickets.SetStatus)
	tickets.Put("/:id/assignee", cfg.StaffTickets.Assign)
	tickets.Delete("/:id/assignee", cfg.StaffTickets.Unassign)

	admin := protected.Group("/admin")
	admin.Get("/users", auth.Require(domain.ActionManageUsers), cfg.Staff.ListUsers)
	admin.Patch("/users/:id/role", auth.Require(domain.ActionManageUsers), cfg.Staff.UpdateRole)
	admin.Post("/categories", auth.Require(domain.ActionManageCategories), cfg.Categories.Create)
	admin.Delete("/categories/:id", auth.Require(domain.ActionManageCategories), cfg.Categories.Delete)
}
