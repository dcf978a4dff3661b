package billing

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository used by tests.
type MemoryRepo struct {
	mu      sync.Mutex
	charges []CallCharge
	byConv  map[string]bool
}

var _ Repository = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byConv: make(map[string]bool)}
}

func (m *MemoryRepo) Insert(ctx context.Context, ch CallCharge) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byConv[ch.ConversationID] {
		return false, nil
	}
	m.byConv[ch.ConversationID] = true
	m.charges = append(m.charges, ch)
	return true, nil
}

func (m *MemoryRepo) SpendByCampaign(ctx context.Context, campaignID string) (CampaignSpend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := CampaignSpend{CampaignID: campaignID}
	for _, ch := range m.charges {
		if ch.CampaignID == campaignID {
			out.Calls++
			out.AmountEuros += ch.AmountEuros
		}
	}
	return out, nil
}

func (m *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]CallCharge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CallCharge
	for _, ch := range m.charges {
		if ch.UserID == userID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// All returns every recorded charge, for test assertions.
func (m *MemoryRepo) All() []CallCharge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CallCharge(nil), m.charges...)
}
