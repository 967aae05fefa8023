package main

import (
	"github.com/gin-gonic/gin"

	"github.com/oakmontrealty/voicrm-sydney/internal/httpapi"
	"github.com/oakmontrealty/voicrm-sydney/internal/rbac"
	"github.com/oakmontrealty/voicrm-sydney/internal/telephony"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, app *application, authMW gin.HandlerFunc) {
	cfg := app.cfg

	// public
	r.GET("/healthz", app.handlers.Health)
	r.GET("/metrics", gin.WrapH(app.metrics.Handler()))

	// Provider webhooks authenticate by request signature, not bearer token.
	hooks := r.Group("/webhooks/twilio")
	if cfg.Twilio.VerifyWebhooks {
		hooks.Use(telephony.RequireSignature(cfg.Twilio.AuthToken, cfg.Twilio.WebhookBaseURL))
	}
	{
		hooks.POST("/voice", app.webhooks.HandleVoice)
		hooks.POST("/status", app.webhooks.HandleStatus)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireAnyRole(rbac.RoleAgent))
	httpapi.Register(v1, app.handlers, rbac.RequireAnyRole(rbac.RoleAdmin))
}
