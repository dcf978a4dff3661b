package dialer

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"voiceagent-platform/internal/auth"
)

// Continuer hands the next batch of a campaign to a fresh dial run.
type Continuer interface {
	// Dispatch is fire-and-forget: the current run finishes regardless of
	// whether the continuation lands. The watchdog recovers lost ones.
	Dispatch(campaignID string)
}

// HTTPContinuer re-enters the dialer endpoint over loopback HTTP with the
// trusted service token, keeping each batch inside its own request lifetime.
type HTTPContinuer struct {
	endpoint     string
	serviceToken string
	client       *http.Client
	log          *slog.Logger
}

func NewHTTPContinuer(endpoint, serviceToken string, log *slog.Logger) *HTTPContinuer {
	return &HTTPContinuer{
		endpoint:     endpoint,
		serviceToken: serviceToken,
		client:       &http.Client{Timeout: 10 * time.Second},
		log:          log,
	}
}

func (h *HTTPContinuer) Dispatch(campaignID string) {
	go func() {
		body, _ := json.Marshal(map[string]string{
			"action":      "continue",
			"campaign_id": campaignID,
		})
		req, err := http.NewRequest(http.MethodPost, h.endpoint, bytes.NewReader(body))
		if err != nil {
			h.log.Error("continuation request build failed", "campaign_id", campaignID, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(auth.HeaderServiceToken, h.serviceToken)

		resp, err := h.client.Do(req)
		if err != nil {
			h.log.Error("continuation dispatch failed", "campaign_id", campaignID, "error", err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			h.log.Error("continuation rejected", "campaign_id", campaignID, "status", resp.StatusCode)
			return
		}
		h.log.Info("continuation dispatched", "campaign_id", campaignID)
	}()
}
