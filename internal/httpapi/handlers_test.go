package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/billing"
	"voiceagent-platform/internal/campaign"
	"voiceagent-platform/internal/config"
	"voiceagent-platform/internal/conversation"
	"voiceagent-platform/internal/dialer"
	"voiceagent-platform/internal/pricing"
	"voiceagent-platform/internal/reporting"
	"voiceagent-platform/internal/voiceai"
)

const testServiceToken = "svc-secret"

type stubProvider struct {
	mu    sync.Mutex
	calls int
	snap  voiceai.ConversationSnapshot
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) ListPhoneNumbers(ctx context.Context) ([]voiceai.PhoneNumber, error) {
	return []voiceai.PhoneNumber{{ID: "pn-1", Number: "+33100000000"}}, nil
}

func (s *stubProvider) RegisterPhoneNumber(ctx context.Context, req voiceai.RegisterPhoneNumberRequest) (voiceai.PhoneNumber, error) {
	return voiceai.PhoneNumber{ID: "pn-1", Number: req.Number}, nil
}

func (s *stubProvider) StartOutboundCall(ctx context.Context, req voiceai.OutboundCallRequest) (voiceai.OutboundCallResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return voiceai.OutboundCallResult{ConversationID: "prov-1"}, nil
}

func (s *stubProvider) GetConversation(ctx context.Context, id string) (voiceai.ConversationSnapshot, error) {
	snap := s.snap
	snap.ConversationID = id
	return snap, nil
}

type noopLock struct{}

func (noopLock) Acquire(ctx context.Context, campaignID string) (bool, error) { return true, nil }
func (noopLock) Release(ctx context.Context, campaignID string) error         { return nil }

type noopContinuer struct{}

func (noopContinuer) Dispatch(campaignID string) {}

type env struct {
	router  *gin.Engine
	manager *auth.Manager
	repo    *campaign.MemoryRepo
	convs   *conversation.MemoryRepo
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.Default()

	manager, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "voiceagent-api",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	repo := campaign.NewMemoryRepo()
	convs := conversation.NewMemoryRepo()
	charges := billing.NewMemoryRepo()
	lifecycle := campaign.NewLifecycle(repo, audit.NewService(audit.NewMemoryRepo()), log)

	provider := &stubProvider{snap: voiceai.ConversationSnapshot{
		Status: voiceai.SessionDone, DurationSeconds: 20, TranscriptTurns: 4, CostEuros: 0.05,
	}}
	poller := dialer.NewPoller(provider, time.Millisecond, 3*time.Millisecond)
	controller := dialer.NewController(dialer.ControllerDeps{
		Store:         repo,
		Conversations: convs,
		Lifecycle:     lifecycle,
		Resolver:      dialer.NewResolver(provider, "AC1", "tok", "33", log),
		Placer:        dialer.NewPlacer(provider, convs, repo, "+33100000000", "33"),
		Poller:        poller,
		Pricing:       pricing.NewService(0.15),
		Billing:       billing.NewService(charges),
		Continuer:     noopContinuer{},
		Lock:          noopLock{},
		AgentNumber:   "+33100000000",
		Quota:         1,
		Log:           log,
	})

	h := Handlers{
		Auth:          manager,
		Lifecycle:     lifecycle,
		Controller:    controller,
		Conversations: convs,
		Reporting:     reporting.NewService(reporting.NewRepository(repo, charges)),
		Billing:       billing.NewService(charges),
		ServiceToken:  testServiceToken,
		Log:           log,
	}

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/campaigns/dialer", h.Dialer)
	v1 := r.Group("/v1", auth.RequireAccessToken(manager))
	v1.GET("/conversations", h.ListConversations)
	v1.GET("/campaigns/:campaign_id/summary", h.CampaignSummary)
	v1.GET("/billing/charges", h.ListCharges)

	return &env{router: r, manager: manager, repo: repo, convs: convs}
}

func (e *env) bearer(t *testing.T, userID string) string {
	t.Helper()
	pair, err := e.manager.IssuePair(time.Now(), userID, "owner")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	return "Bearer " + pair.AccessToken
}

func (e *env) dialerReq(t *testing.T, action, campaignID string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"action": action, "campaign_id": campaignID})
	req := httptest.NewRequest(http.MethodPost, "/v1/campaigns/dialer", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestDialer_StartRequiresBearer(t *testing.T) {
	e := newEnv(t)
	e.repo.AddCampaign(campaign.Campaign{ID: "camp-1", Status: campaign.StatusDraft, UserID: "u1", AgentID: "a1"})

	if w := e.dialerReq(t, "start", "camp-1", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDialer_StartRunsBatch(t *testing.T) {
	e := newEnv(t)
	e.repo.AddCampaign(campaign.Campaign{ID: "camp-1", Status: campaign.StatusDraft, UserID: "u1", AgentID: "a1"})
	e.repo.AddContact(campaign.Contact{ID: "ct-1", CampaignID: "camp-1", Phone: "+33612345678", Status: campaign.ContactPending})

	w := e.dialerReq(t, "start", "camp-1", map[string]string{"Authorization": e.bearer(t, "u1")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OK        bool `json:"ok"`
		Processed int  `json:"processed"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Processed != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// The only contact was processed, so the batch also closed the campaign.
	camp, _ := e.repo.GetCampaign(context.Background(), "camp-1")
	if camp.Status != campaign.StatusCompleted || camp.StartedAt == nil {
		t.Fatalf("campaign not run to completion: %+v", camp)
	}
}

func TestDialer_ContinueRequiresServiceToken(t *testing.T) {
	e := newEnv(t)
	e.repo.AddCampaign(campaign.Campaign{ID: "camp-1", Status: campaign.StatusRunning, UserID: "u1", AgentID: "a1"})

	if w := e.dialerReq(t, "continue", "camp-1", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	// A bearer token is not enough for continue.
	hdr := map[string]string{"Authorization": e.bearer(t, "u1")}
	if w := e.dialerReq(t, "continue", "camp-1", hdr); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bearer only, got %d", w.Code)
	}

	hdr = map[string]string{auth.HeaderServiceToken: testServiceToken}
	if w := e.dialerReq(t, "continue", "camp-1", hdr); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with service token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDialer_Pause(t *testing.T) {
	e := newEnv(t)
	e.repo.AddCampaign(campaign.Campaign{ID: "camp-1", Status: campaign.StatusRunning, UserID: "u1", AgentID: "a1"})

	w := e.dialerReq(t, "pause", "camp-1", map[string]string{"Authorization": e.bearer(t, "u1")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	camp, _ := e.repo.GetCampaign(context.Background(), "camp-1")
	if camp.Status != campaign.StatusPaused {
		t.Fatalf("expected paused, got %s", camp.Status)
	}
}

func TestDialer_MissingAgentIsBadRequest(t *testing.T) {
	e := newEnv(t)
	e.repo.AddCampaign(campaign.Campaign{ID: "camp-1", Status: campaign.StatusDraft, UserID: "u1"})
	e.repo.AddContact(campaign.Contact{ID: "ct-1", CampaignID: "camp-1", Phone: "+33612345678", Status: campaign.ContactPending})

	w := e.dialerReq(t, "start", "camp-1", map[string]string{"Authorization": e.bearer(t, "u1")})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for agent-less campaign, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "agent") {
		t.Fatalf("error must name the missing agent: %s", w.Body.String())
	}
}

func TestDialer_UnknownActionAndMissingCampaign(t *testing.T) {
	e := newEnv(t)

	if w := e.dialerReq(t, "explode", "camp-1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", w.Code)
	}
	hdr := map[string]string{"Authorization": e.bearer(t, "u1")}
	if w := e.dialerReq(t, "start", "missing", hdr); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing campaign, got %d", w.Code)
	}
	if w := e.dialerReq(t, "start", "", hdr); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty campaign_id, got %d", w.Code)
	}
}

func TestListConversations(t *testing.T) {
	e := newEnv(t)
	e.convs.Create(context.Background(), conversation.Conversation{
		ID: "conv-1", UserID: "u1", Status: conversation.StatusEnded, Direction: conversation.DirectionOutbound,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
	req.Header.Set("Authorization", e.bearer(t, "u1"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Conversations []conversation.Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Conversations) != 1 || resp.Conversations[0].ID != "conv-1" {
		t.Fatalf("unexpected conversations: %+v", resp.Conversations)
	}
}

func TestCampaignSummaryEndpoint(t *testing.T) {
	e := newEnv(t)
	e.repo.AddCampaign(campaign.Campaign{ID: "camp-1", Name: "Q4", Status: campaign.StatusRunning, UserID: "u1", TotalContacts: 1})
	e.repo.AddContact(campaign.Contact{ID: "ct-1", CampaignID: "camp-1", Status: campaign.ContactCompleted})

	req := httptest.NewRequest(http.MethodGet, "/v1/campaigns/camp-1/summary", nil)
	req.Header.Set("Authorization", e.bearer(t, "u1"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary reporting.CampaignSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.CampaignID != "camp-1" || summary.Called != 1 || summary.Answered != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
