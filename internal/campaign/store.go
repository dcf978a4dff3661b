package campaign

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ContactOutcome is the terminal settlement of one call attempt.
type ContactOutcome struct {
	Status              ContactStatus
	CallDurationSeconds int
	CostEuros           float64
	Notes               string
}

// Store abstracts campaign/contact persistence for the dialer, the lifecycle
// manager and the reconciliation sweep. Implemented by Repo (Postgres) and
// MemoryRepo (tests).
type Store interface {
	GetCampaign(ctx context.Context, id string) (Campaign, error)

	// SetStatus validates the move via Status.CanTransition before writing.
	SetStatus(ctx context.Context, id string, to Status) (Campaign, error)

	// MarkRunning flips the campaign to running. stampStart controls whether
	// started_at is (re)written: true for start, false for resume.
	MarkRunning(ctx context.Context, id string, stampStart bool, now time.Time) (Campaign, error)
	MarkCompleted(ctx context.Context, id string, now time.Time) error

	// ClaimNextContact atomically dequeues the next pending contact in
	// enrollment order and marks it calling. ok=false means no pending
	// contact remains.
	ClaimNextContact(ctx context.Context, campaignID string, now time.Time) (Contact, bool, error)

	// FinishContact writes the full outcome. SetContactStatus is the minimal
	// degraded write used when the rich update fails.
	FinishContact(ctx context.Context, contactID string, out ContactOutcome) error
	SetContactStatus(ctx context.Context, contactID string, status ContactStatus, notes string) error

	// LinkConversation sets conversation_id if and only if it is still unset.
	LinkConversation(ctx context.Context, contactID, conversationID string) error

	// AddAggregates applies atomic in-database increments to the campaign
	// counters and running cost.
	AddAggregates(ctx context.Context, campaignID string, d AggregateDelta) error

	CountPendingContacts(ctx context.Context, campaignID string) (int, error)

	// Reconciliation surface.
	ListReconcilable(ctx context.Context) ([]Campaign, error)
	ContactTallies(ctx context.Context, campaignID string) (Tallies, error)
	OverwriteAggregates(ctx context.Context, campaignID string, t Tallies) error
	ListStuckCalling(ctx context.Context) ([]Contact, error)
	SettleContactWithConversation(ctx context.Context, contactID, conversationID string, out ContactOutcome) error
	UpdateContactByConversation(ctx context.Context, conversationID string, out ContactOutcome) error
	ContactByConversation(ctx context.Context, conversationID string) (Contact, bool, error)
	ListStalledRunning(ctx context.Context, idleSince time.Time) ([]Campaign, error)
}
