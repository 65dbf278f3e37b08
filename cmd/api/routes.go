package main

import (
	"context"
	"net/http"

	"call-bridge/internal/auth"
	"call-bridge/internal/httpapi"
	"call-bridge/internal/metrics"
	"call-bridge/internal/ratelimit"
	"call-bridge/internal/registry"
	"call-bridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	Calls    httpapi.Handlers
	Registry registry.Handlers

	// AdminToken guards /config/all; empty disables the check.
	AdminToken string

	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	Health  func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers. No business logic here.
func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/healthz", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				logger.FromGin(c).Error("health check failed", "err", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// Triggered by CRM workflows and the browser client.
	limited := r.Group("/")
	if d.Limiter != nil {
		limited.Use(ratelimit.Middleware(d.Limiter))
	}
	{
		limited.GET("/token", d.Calls.Token)
		limited.POST("/start-phone-call", d.Calls.StartPhoneCall)
		limited.POST("/start-mobile-call", d.Calls.StartMobileCall)
	}

	// Fetched by the telephony platform.
	// TODO: verify X-Twilio-Signature with the auth token of the identity matching AccountSid.
	r.POST("/voice", d.Calls.Voice)
	r.Any("/connect-call", d.Calls.ConnectCall)
	r.POST("/recording-callback", d.Calls.RecordingCallback)

	cfgGroup := r.Group("/config")
	cfgGroup.Use(auth.RequireBearerKey(d.AdminToken))
	{
		cfgGroup.GET("/all", d.Registry.GetAll)
		cfgGroup.POST("/all", d.Registry.ReplaceAll)
	}
}
