package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fincaops/incident-service/internal/api/http/handlers"
)

// RouteConfig bundles handlers for route registration.
type RouteConfig struct {
	Intake  *handlers.IntakeHandler
	Tickets *handlers.TicketsHandler
	Health  *handlers.HealthHandler
}

// RegisterRoutes mounts all API routes on the app.
func RegisterRoutes(app *fiber.App, rc RouteConfig) {
	app.Get("/health/live", rc.Health.Live)
	app.Get("/health/ready", rc.Health.Ready)
	app.Get("/internal/metrics", rc.Health.Metrics)

	webhooks := app.Group("/webhooks", rc.Intake.VerifyWebhookSecret)
	webhooks.Post("/messaging", rc.Intake.Messaging)
	webhooks.Post("/email", rc.Intake.Email)

	app.Post("/public/incidents", rc.Intake.WebForm)

	tickets := app.Group("/tickets")
	tickets.Get("/:code", rc.Tickets.Get)
	tickets.Get("/:code/events", rc.Tickets.Events)
	tickets.Post("/:code/transition", rc.Tickets.Transition)
	tickets.Post("/:code/escalate", rc.Tickets.Escalate)
	tickets.Post("/:code/resume", rc.Tickets.Resume)
}
