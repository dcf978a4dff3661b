package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/billing"
	"voiceagent-platform/internal/campaign"
	"voiceagent-platform/internal/conversation"
	"voiceagent-platform/internal/dialer"
	"voiceagent-platform/internal/reconcile"
	"voiceagent-platform/internal/reporting"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth          *auth.Manager
	Lifecycle     *campaign.Lifecycle
	Controller    *dialer.Controller
	Conversations conversation.Store
	Reporting     *reporting.Service
	Billing       *billing.Service
	Sweep         *reconcile.Sweep

	ServiceToken string
	Log          *slog.Logger
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Dialer ---

type dialerRequest struct {
	Action     string `json:"action"`
	CampaignID string `json:"campaign_id"`
}

// Dialer is the campaign dialing endpoint. One route, four actions:
//
//	start    - user-initiated: mark running and dial the first batch
//	resume   - user-initiated: resume a paused campaign and dial
//	pause    - user-initiated: stop after the in-flight call
//	continue - service-to-service: dial the next batch (X-Service-Token)
func (h Handlers) Dialer(c *gin.Context) {
	var req dialerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CampaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case "continue":
		if !auth.ValidServiceToken(c, h.ServiceToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid service token"})
			return
		}
		h.runBatch(c, req.CampaignID)

	case "start", "resume":
		claims, ok := auth.Identify(h.Auth, c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		var err error
		if req.Action == "start" {
			_, err = h.Lifecycle.Start(ctx, req.CampaignID, claims.UserID)
		} else {
			_, err = h.Lifecycle.Resume(ctx, req.CampaignID, claims.UserID)
		}
		if err != nil {
			h.abortCampaignError(c, err)
			return
		}
		h.runBatch(c, req.CampaignID)

	case "pause":
		claims, ok := auth.Identify(h.Auth, c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		camp, err := h.Lifecycle.Pause(ctx, req.CampaignID, claims.UserID)
		if err != nil {
			h.abortCampaignError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": "campaign paused", "status": camp.Status})

	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

func (h Handlers) runBatch(c *gin.Context, campaignID string) {
	processed, err := h.Controller.Run(c.Request.Context(), campaignID)
	if err != nil {
		h.Log.Error("dial batch failed", "campaign_id", campaignID, "error", err)
		h.abortCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "processed": processed})
}

func (h Handlers) abortCampaignError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
	case errors.Is(err, campaign.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
	case errors.Is(err, dialer.ErrConfiguration):
		// Operator-fixable: surface the cause instead of a generic 500.
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// --- Conversations ---

// ListConversations returns the caller's call history. A reconciliation sweep
// is kicked off in the background so stale in-flight records heal on read.
func (h Handlers) ListConversations(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	if h.Sweep != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if err := h.Sweep.Run(ctx); err != nil {
				h.Log.Warn("background sweep failed", "error", err)
			}
		}()
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	convs, err := h.Conversations.List(c.Request.Context(), userID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "conversation lookup failed"})
		return
	}
	if convs == nil {
		convs = []conversation.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// --- Reporting ---

func (h Handlers) CampaignSummary(c *gin.Context) {
	campaignID := c.Param("campaign_id")
	if campaignID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign_id required"})
		return
	}
	summary, err := h.Reporting.CampaignSummary(c.Request.Context(), campaignID)
	if err != nil {
		h.abortCampaignError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// --- Billing ---

func (h Handlers) ListCharges(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	charges, err := h.Billing.ListCharges(c.Request.Context(), userID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "charge lookup failed"})
		return
	}
	if charges == nil {
		charges = []billing.CallCharge{}
	}
	c.JSON(http.StatusOK, gin.H{"charges": charges})
}
