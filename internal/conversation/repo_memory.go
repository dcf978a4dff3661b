package conversation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Store used by tests.
type MemoryRepo struct {
	mu            sync.Mutex
	Conversations map[string]Conversation
}

var _ Store = (*MemoryRepo)(nil)
var _ Store = (*Repo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Conversations: make(map[string]Conversation)}
}

func (m *MemoryRepo) Create(ctx context.Context, c Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	m.Conversations[c.ID] = c
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c, nil
}

func (m *MemoryRepo) Finish(ctx context.Context, id string, status Status, durationSeconds int, costEuros float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Conversations[id]
	if !ok || c.Status != StatusActive {
		return ErrNotFound
	}
	c.Status = status
	c.DurationSeconds = durationSeconds
	c.CostEuros = costEuros
	c.UpdatedAt = time.Now().UTC()
	m.Conversations[id] = c
	return nil
}

func (m *MemoryRepo) UpdateFromProvider(ctx context.Context, id string, status Status, durationSeconds int, costEuros float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Conversations[id]
	if !ok {
		return nil
	}
	if c.Status == status && c.DurationSeconds == durationSeconds && c.CostEuros == costEuros {
		return nil
	}
	c.Status = status
	c.DurationSeconds = durationSeconds
	c.CostEuros = costEuros
	c.UpdatedAt = time.Now().UTC()
	m.Conversations[id] = c
	return nil
}

func (m *MemoryRepo) ListWithProviderID(ctx context.Context) ([]Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Conversation
	for _, c := range m.Conversations {
		if c.ProviderConversationID != nil {
			out = append(out, c)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryRepo) ListOutbound(ctx context.Context) ([]Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Conversation
	for _, c := range m.Conversations {
		if c.Direction == DirectionOutbound {
			out = append(out, c)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryRepo) List(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Conversation
	for _, c := range m.Conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(cs []Conversation) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].CreatedAt.After(cs[j].CreatedAt) })
}
