package conversation

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("conversation not found")

// Store abstracts conversation persistence for the dialer and the
// reconciliation sweep. Implemented by Repo (Postgres) and MemoryRepo (tests).
type Store interface {
	Create(ctx context.Context, c Conversation) error
	Get(ctx context.Context, id string) (Conversation, error)

	// Finish settles an active conversation with its terminal outcome.
	Finish(ctx context.Context, id string, status Status, durationSeconds int, costEuros float64) error

	// UpdateFromProvider overwrites local status/duration/cost with fresher
	// provider data; it is a no-op when nothing changed so repeated sweeps
	// stay idempotent.
	UpdateFromProvider(ctx context.Context, id string, status Status, durationSeconds int, costEuros float64) error

	// ListWithProviderID returns conversations that have a provider session id.
	ListWithProviderID(ctx context.Context) ([]Conversation, error)

	// ListOutbound returns outbound conversations for orphan-contact matching.
	ListOutbound(ctx context.Context) ([]Conversation, error)

	// List returns a user's conversations, newest first.
	List(ctx context.Context, userID string, limit int) ([]Conversation, error)
}
