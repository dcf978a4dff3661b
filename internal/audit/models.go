package audit

import "time"

// Entry is an immutable, append-only record of a campaign lifecycle action.
//
// Invariants:
// - Entries are never updated or deleted.
// - Actor capture is best-effort; audit failures must not block the dialer.
type Entry struct {
	ID         string `json:"id" db:"id"`
	CampaignID string `json:"campaign_id" db:"campaign_id"`

	// Actor is the authenticated user, or "dialer"/"watchdog" for
	// system-initiated transitions.
	Actor string `json:"actor" db:"actor"`

	Action Action `json:"action" db:"action"`

	FromStatus string `json:"from_status" db:"from_status"`
	ToStatus   string `json:"to_status" db:"to_status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Action string

const (
	ActionStart       Action = "start"
	ActionResume      Action = "resume"
	ActionPause       Action = "pause"
	ActionBudgetPause Action = "budget_pause"
	ActionComplete    Action = "complete"
	ActionWatchdog    Action = "watchdog_continue"
)
