package campaign

import "time"

// Campaign is one outbound calling run against a list of contacts using a
// single voice agent.
//
// Aggregate invariants:
// - contacts_called == contacts_answered + contacts_failed once every contact
//   has settled out of pending/calling
// - cost_euros never decreases; it is the sum of contact costs and the
//   reconciliation sweep re-derives it from contact rows
type Campaign struct {
	ID      string `json:"id" db:"id"`
	UserID  string `json:"user_id" db:"user_id"`
	AgentID string `json:"agent_id" db:"agent_id"`
	Name    string `json:"name" db:"name"`

	Status Status `json:"status" db:"status"`

	TotalContacts    int `json:"total_contacts" db:"total_contacts"`
	ContactsCalled   int `json:"contacts_called" db:"contacts_called"`
	ContactsAnswered int `json:"contacts_answered" db:"contacts_answered"`
	ContactsFailed   int `json:"contacts_failed" db:"contacts_failed"`

	CostEuros   float64  `json:"cost_euros" db:"cost_euros"`
	BudgetEuros *float64 `json:"budget_euros,omitempty" db:"budget_euros"`

	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// CanTransition is the single authority on campaign status moves.
// completed and cancelled are terminal.
func (s Status) CanTransition(to Status) bool {
	if s == to {
		return false
	}
	switch s {
	case StatusDraft:
		return to == StatusScheduled || to == StatusRunning || to == StatusCancelled
	case StatusScheduled:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to == StatusPaused || to == StatusCompleted || to == StatusCancelled
	case StatusPaused:
		return to == StatusRunning || to == StatusCompleted || to == StatusCancelled
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// BudgetExhausted reports whether cumulative spend reached the configured
// ceiling. Campaigns without a ceiling never exhaust.
func (c Campaign) BudgetExhausted() bool {
	return c.BudgetEuros != nil && *c.BudgetEuros > 0 && c.CostEuros >= *c.BudgetEuros
}

// Contact is the per-contact call-attempt record within one campaign.
//
// Status is forward-only: pending -> calling -> terminal. A row never returns
// to pending, and conversation_id is set at most once.
type Contact struct {
	ID         string `json:"id" db:"id"`
	CampaignID string `json:"campaign_id" db:"campaign_id"`
	Name       string `json:"name" db:"name"`
	Phone      string `json:"phone" db:"phone"`

	Status ContactStatus `json:"status" db:"status"`

	CalledAt            *time.Time `json:"called_at,omitempty" db:"called_at"`
	CallDurationSeconds int        `json:"call_duration_seconds" db:"call_duration_seconds"`
	CostEuros           float64    `json:"cost_euros" db:"cost_euros"`

	// ConversationID links the contact to the call session created for it.
	ConversationID *string `json:"conversation_id,omitempty" db:"conversation_id"`

	Notes    string `json:"notes,omitempty" db:"notes"`
	Position int    `json:"position" db:"position"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ContactStatus string

const (
	ContactPending   ContactStatus = "pending"
	ContactCalling   ContactStatus = "calling"
	ContactCompleted ContactStatus = "completed"
	ContactNoAnswer  ContactStatus = "no_answer"
	ContactBusy      ContactStatus = "busy"
	ContactFailed    ContactStatus = "failed"
)

// CanTransition enforces the forward-only contact state machine.
func (s ContactStatus) CanTransition(to ContactStatus) bool {
	if s == to {
		return false
	}
	switch s {
	case ContactPending:
		// failed directly covers contacts that never reach placement
		// (missing phone number).
		return to == ContactCalling || to == ContactFailed
	case ContactCalling:
		return to == ContactCompleted || to == ContactNoAnswer || to == ContactBusy || to == ContactFailed
	default:
		return false
	}
}

// Settled reports whether the contact has reached a terminal status.
func (s ContactStatus) Settled() bool {
	switch s {
	case ContactCompleted, ContactNoAnswer, ContactBusy, ContactFailed:
		return true
	default:
		return false
	}
}

// Answered reports whether the terminal status counts toward contacts_answered.
func (s ContactStatus) Answered() bool {
	return s == ContactCompleted
}

// AggregateDelta is an atomic increment applied to campaign counters.
type AggregateDelta struct {
	Called   int
	Answered int
	Failed   int

	CostEuros float64
}

// Tallies is a from-scratch recomputation of campaign aggregates.
type Tallies struct {
	Called   int
	Answered int
	Failed   int

	DurationSeconds int
	CostEuros       float64
}
