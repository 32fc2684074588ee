package main

import (
	"database/sql"
	"net/http"
	"time"

	"holdline/internal/httpapi"
	"holdline/internal/telephony"
	"holdline/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	handlers httpapi.Handlers
	webhooks telephony.WebhookHandler
	media    *telephony.MediaStreamHandler

	authMW    gin.HandlerFunc
	signature gin.HandlerFunc // nil when signature validation is off
	metrics   http.Handler
	db        *sql.DB
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if d.db != nil {
			if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(d.metrics))

	// Provider webhooks. Always acknowledged with 200 once past the signature check.
	hooks := r.Group("/webhooks/twilio")
	if d.signature != nil {
		hooks.Use(d.signature)
	}
	{
		hooks.POST("/status", d.webhooks.Status)
		hooks.POST("/conference", d.webhooks.Conference)
		hooks.POST("/transcription", d.webhooks.Transcription)
		hooks.POST("/voice", d.webhooks.Voice)
		hooks.GET("/voice", d.webhooks.Voice)
		hooks.GET("/media", d.media.Serve)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(d.authMW)
	{
		h := d.handlers

		calls := v1.Group("/calls")
		{
			calls.POST("", h.CreateCall)
			calls.GET("", h.ListCalls)
			calls.GET("/summary", h.Summary)
			calls.GET("/:call_id", h.GetCall)
			calls.PATCH("/:call_id", h.ControlCall)
			calls.POST("/:call_id/ivr-steps", h.AppendIVRStep)
			calls.GET("/:call_id/events", h.CallEvents)
			calls.GET("/:call_id/stream", h.StreamCall)
		}

		notifications := v1.Group("/notifications")
		{
			notifications.GET("/preferences", h.GetPreferences)
			notifications.PUT("/preferences", h.PutPreferences)
		}

		v1.POST("/token", h.VoiceToken)
	}
}
