package dialer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/billing"
	"voiceagent-platform/internal/campaign"
	"voiceagent-platform/internal/conversation"
	"voiceagent-platform/internal/pricing"
	"voiceagent-platform/internal/voiceai"
)

// fakeProvider scripts provider behavior for controller tests. Each
// GetConversation call consumes the next snapshot; the last one repeats.
type fakeProvider struct {
	mu sync.Mutex

	numbers    []voiceai.PhoneNumber
	listCalls  int
	registered []voiceai.RegisterPhoneNumberRequest
	calls      []voiceai.OutboundCallRequest
	callErr    error
	snapshots  []voiceai.ConversationSnapshot
	snapIdx    int
	getErr     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ListPhoneNumbers(ctx context.Context) ([]voiceai.PhoneNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.numbers, nil
}

func (f *fakeProvider) RegisterPhoneNumber(ctx context.Context, req voiceai.RegisterPhoneNumberRequest) (voiceai.PhoneNumber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, req)
	return voiceai.PhoneNumber{ID: "pn-registered", Number: req.Number}, nil
}

func (f *fakeProvider) StartOutboundCall(ctx context.Context, req voiceai.OutboundCallRequest) (voiceai.OutboundCallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.callErr != nil {
		return voiceai.OutboundCallResult{}, f.callErr
	}
	f.calls = append(f.calls, req)
	return voiceai.OutboundCallResult{ConversationID: "prov-conv-1"}, nil
}

func (f *fakeProvider) GetConversation(ctx context.Context, id string) (voiceai.ConversationSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return voiceai.ConversationSnapshot{}, f.getErr
	}
	if len(f.snapshots) == 0 {
		return voiceai.ConversationSnapshot{ConversationID: id, Status: voiceai.SessionInitiated}, nil
	}
	snap := f.snapshots[f.snapIdx]
	if f.snapIdx < len(f.snapshots)-1 {
		f.snapIdx++
	}
	snap.ConversationID = id
	return snap, nil
}

type noopLock struct{}

func (noopLock) Acquire(ctx context.Context, campaignID string) (bool, error) { return true, nil }
func (noopLock) Release(ctx context.Context, campaignID string) error         { return nil }

type deniedLock struct{}

func (deniedLock) Acquire(ctx context.Context, campaignID string) (bool, error) { return false, nil }
func (deniedLock) Release(ctx context.Context, campaignID string) error         { return nil }

type recordingContinuer struct {
	mu         sync.Mutex
	dispatched []string
}

func (r *recordingContinuer) Dispatch(campaignID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched = append(r.dispatched, campaignID)
}

func (r *recordingContinuer) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dispatched...)
}

type harness struct {
	controller *Controller
	repo       *campaign.MemoryRepo
	convs      *conversation.MemoryRepo
	charges    *billing.MemoryRepo
	auditRepo  *audit.MemoryRepo
	provider   *fakeProvider
	continuer  *recordingContinuer
}

const agentNumber = "+33100000000"

func newHarness(provider *fakeProvider, quota int) *harness {
	log := slog.Default()
	repo := campaign.NewMemoryRepo()
	convs := conversation.NewMemoryRepo()
	charges := billing.NewMemoryRepo()
	auditRepo := audit.NewMemoryRepo()
	continuer := &recordingContinuer{}

	provider.numbers = append(provider.numbers, voiceai.PhoneNumber{ID: "pn-1", Number: agentNumber})

	resolver := NewResolver(provider, "AC123", "tok", "33", log)
	placer := NewPlacer(provider, convs, repo, agentNumber, "33")
	poller := NewPoller(provider, time.Second, 4*time.Second)
	poller.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	ctl := NewController(ControllerDeps{
		Store:         repo,
		Conversations: convs,
		Lifecycle:     campaign.NewLifecycle(repo, audit.NewService(auditRepo), log),
		Resolver:      resolver,
		Placer:        placer,
		Poller:        poller,
		Pricing:       pricing.NewService(0.15),
		Billing:       billing.NewService(charges),
		Continuer:     continuer,
		Lock:          noopLock{},
		AgentNumber:   agentNumber,
		Quota:         quota,
		ContactDelay:  0,
		Log:           log,
	})
	ctl.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	return &harness{
		controller: ctl,
		repo:       repo,
		convs:      convs,
		charges:    charges,
		auditRepo:  auditRepo,
		provider:   provider,
		continuer:  continuer,
	}
}

func (h *harness) seedCampaign(c campaign.Campaign) {
	if c.Status == "" {
		c.Status = campaign.StatusRunning
	}
	if c.UserID == "" {
		c.UserID = "user-1"
	}
	if c.AgentID == "" {
		c.AgentID = "agent-1"
	}
	h.repo.AddCampaign(c)
}
