package campaign

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Store for tests and early development.
// It mirrors the SQL repository's semantics: atomic claim, write-once
// conversation links, forward-only contact statuses, no-op overwrites.
type MemoryRepo struct {
	mu sync.Mutex

	Campaigns map[string]*Campaign
	Contacts  map[string]*Contact
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		Campaigns: map[string]*Campaign{},
		Contacts:  map[string]*Contact{},
	}
}

// AddCampaign seeds a campaign (test helper).
func (r *MemoryRepo) AddCampaign(c Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc := c
	r.Campaigns[c.ID] = &cc
}

// AddContact seeds a contact (test helper).
func (r *MemoryRepo) AddContact(ct Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cc := ct
	r.Contacts[ct.ID] = &cc
}

// GetContact returns a copy of a contact (test helper).
func (r *MemoryRepo) GetContact(id string) (Contact, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ct, ok := r.Contacts[id]
	if !ok {
		return Contact{}, false
	}
	return *ct, true
}

func (r *MemoryRepo) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Campaigns[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return *c, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, id string, to Status) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Campaigns[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	if !c.Status.CanTransition(to) {
		return Campaign{}, ErrInvalidTransition
	}
	c.Status = to
	c.UpdatedAt = time.Now().UTC()
	return *c, nil
}

func (r *MemoryRepo) MarkRunning(ctx context.Context, id string, stampStart bool, now time.Time) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Campaigns[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	if c.Status == StatusRunning {
		return *c, nil
	}
	if !c.Status.CanTransition(StatusRunning) {
		return Campaign{}, ErrInvalidTransition
	}
	c.Status = StatusRunning
	if stampStart {
		t := now.UTC()
		c.StartedAt = &t
	}
	c.UpdatedAt = now.UTC()
	return *c, nil
}

func (r *MemoryRepo) MarkCompleted(ctx context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Campaigns[id]
	if !ok {
		return ErrNotFound
	}
	if c.Status != StatusRunning && c.Status != StatusPaused {
		return ErrInvalidTransition
	}
	c.Status = StatusCompleted
	t := now.UTC()
	c.CompletedAt = &t
	c.UpdatedAt = t
	return nil
}

func (r *MemoryRepo) ClaimNextContact(ctx context.Context, campaignID string, now time.Time) (Contact, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*Contact
	for _, ct := range r.Contacts {
		if ct.CampaignID == campaignID && ct.Status == ContactPending {
			pending = append(pending, ct)
		}
	}
	if len(pending) == 0 {
		return Contact{}, false, nil
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Position != pending[j].Position {
			return pending[i].Position < pending[j].Position
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	ct := pending[0]
	ct.Status = ContactCalling
	t := now.UTC()
	ct.CalledAt = &t
	ct.UpdatedAt = t
	return *ct, true, nil
}

func (r *MemoryRepo) FinishContact(ctx context.Context, contactID string, out ContactOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ct, ok := r.Contacts[contactID]
	if !ok || ct.Status.Settled() {
		return ErrNotFound
	}
	ct.Status = out.Status
	ct.CallDurationSeconds = out.CallDurationSeconds
	ct.CostEuros = out.CostEuros
	ct.Notes = out.Notes
	ct.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) SetContactStatus(ctx context.Context, contactID string, status ContactStatus, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ct, ok := r.Contacts[contactID]
	if !ok || ct.Status.Settled() {
		return ErrNotFound
	}
	ct.Status = status
	ct.Notes = notes
	ct.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) LinkConversation(ctx context.Context, contactID, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ct, ok := r.Contacts[contactID]
	if !ok {
		return ErrNotFound
	}
	if ct.ConversationID != nil {
		return nil
	}
	id := conversationID
	ct.ConversationID = &id
	ct.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) AddAggregates(ctx context.Context, campaignID string, d AggregateDelta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	c.ContactsCalled += d.Called
	c.ContactsAnswered += d.Answered
	c.ContactsFailed += d.Failed
	c.CostEuros += d.CostEuros
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) CountPendingContacts(ctx context.Context, campaignID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ct := range r.Contacts {
		if ct.CampaignID == campaignID && ct.Status == ContactPending {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) ListReconcilable(ctx context.Context) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Campaign
	for _, c := range r.Campaigns {
		if c.Status == StatusDraft || c.Status == StatusCancelled {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) ContactTallies(ctx context.Context, campaignID string) (Tallies, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t Tallies
	for _, ct := range r.Contacts {
		if ct.CampaignID != campaignID || !ct.Status.Settled() {
			continue
		}
		t.Called++
		if ct.Status.Answered() {
			t.Answered++
		} else {
			t.Failed++
		}
		t.DurationSeconds += ct.CallDurationSeconds
		t.CostEuros += ct.CostEuros
	}
	return t, nil
}

func (r *MemoryRepo) OverwriteAggregates(ctx context.Context, campaignID string, t Tallies) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Campaigns[campaignID]
	if !ok {
		return ErrNotFound
	}
	if c.ContactsCalled == t.Called && c.ContactsAnswered == t.Answered &&
		c.ContactsFailed == t.Failed && c.CostEuros == t.CostEuros {
		return nil
	}
	c.ContactsCalled = t.Called
	c.ContactsAnswered = t.Answered
	c.ContactsFailed = t.Failed
	c.CostEuros = t.CostEuros
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) ListStuckCalling(ctx context.Context) ([]Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Contact
	for _, ct := range r.Contacts {
		if ct.Status == ContactCalling && ct.ConversationID == nil {
			out = append(out, *ct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) SettleContactWithConversation(ctx context.Context, contactID, conversationID string, out ContactOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ct, ok := r.Contacts[contactID]
	if !ok {
		return ErrNotFound
	}
	if ct.ConversationID != nil || ct.Status != ContactCalling {
		return nil
	}
	id := conversationID
	ct.ConversationID = &id
	ct.Status = out.Status
	ct.CallDurationSeconds = out.CallDurationSeconds
	ct.CostEuros = out.CostEuros
	ct.Notes = out.Notes
	ct.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) UpdateContactByConversation(ctx context.Context, conversationID string, out ContactOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ct := range r.Contacts {
		if ct.ConversationID == nil || *ct.ConversationID != conversationID {
			continue
		}
		if ct.Status == out.Status && ct.CallDurationSeconds == out.CallDurationSeconds && ct.CostEuros == out.CostEuros {
			return nil
		}
		ct.Status = out.Status
		ct.CallDurationSeconds = out.CallDurationSeconds
		ct.CostEuros = out.CostEuros
		ct.UpdatedAt = time.Now().UTC()
		return nil
	}
	return nil
}

func (r *MemoryRepo) ContactByConversation(ctx context.Context, conversationID string) (Contact, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ct := range r.Contacts {
		if ct.ConversationID != nil && *ct.ConversationID == conversationID {
			return *ct, true, nil
		}
	}
	return Contact{}, false, nil
}

func (r *MemoryRepo) ListStalledRunning(ctx context.Context, idleSince time.Time) ([]Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Campaign
	for _, c := range r.Campaigns {
		if c.Status != StatusRunning || !c.UpdatedAt.Before(idleSince) {
			continue
		}
		pending := false
		for _, ct := range r.Contacts {
			if ct.CampaignID == c.ID && ct.Status == ContactPending {
				pending = true
				break
			}
		}
		if pending {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ Store = (*MemoryRepo)(nil)
var _ Store = (*Repo)(nil)
