package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-board/internal/api/http/handlers"
	"github.com/spec-kit/task-board/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tasks          *handlers.TasksHandler
	WS             *handlers.WSHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    *RateLimiter
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/ws", cfg.WS.Upgrade, cfg.WS.Serve())

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	tasks := api.Group("/tasks")
	tasks.Get("/stats", cfg.Tasks.Stats)
	tasks.Get("/activity-logs", cfg.Tasks.ActivityLogs)
	tasks.Get("/my-tasks", cfg.Tasks.MyTasks)
	tasks.Get("/created-by-me", auth.RequireManager(), cfg.Tasks.CreatedByMe)
	tasks.Get("/", cfg.Tasks.List)
	tasks.Post("/", auth.RequireManager(), cfg.RateLimiter.LimitTaskCreation, cfg.Tasks.Create)
	tasks.Get("/:id", cfg.Tasks.Get)
	tasks.Put("/:id", cfg.Tasks.Update)
	tasks.Patch("/:id/status", cfg.Tasks.UpdateStatus)
	tasks.Delete("/:id", cfg.Tasks.Delete)
}
