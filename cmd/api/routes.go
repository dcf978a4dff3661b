package main

import (
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"

	"voiceagent-platform/internal/httpapi"
	"voiceagent-platform/pkg/utils"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, db *sql.DB) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// The dialer endpoint does its own authentication: bearer tokens for
	// user actions, the service token for continue self-invocations.
	r.POST("/v1/campaigns/dialer", h.Dialer)

	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/conversations", h.ListConversations)
		v1.GET("/campaigns/:campaign_id/summary", h.CampaignSummary)
		v1.GET("/billing/charges", h.ListCharges)
	}
}
