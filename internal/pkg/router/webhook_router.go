package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/streamvault/streamvault/app/controllers"
)

type WebhookRouter struct {
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", controllers.HandleHealthz)

	// Gateway webhooks (no auth; signature-verified in controller)
	app.Post("/webhooks/:gateway", controllers.HandleGatewayWebhook)
}

func NewWebhookRouter() *WebhookRouter {
	return &WebhookRouter{}
}
