package conversation

import (
	"context"
	"database/sql"
	"errors"
)

// Repo is the Postgres-backed Store.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

const columns = `
id, user_id, agent_id, provider_conversation_id, status, direction,
caller_phone, callee_phone, duration_seconds, cost_euros,
transfer_status, transfer_to, created_at, updated_at
`

func scanConversation(row interface{ Scan(dest ...any) error }) (Conversation, error) {
	var c Conversation
	var providerID, transferStatus, transferTo sql.NullString
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.AgentID,
		&providerID,
		&c.Status,
		&c.Direction,
		&c.CallerPhone,
		&c.CalleePhone,
		&c.DurationSeconds,
		&c.CostEuros,
		&transferStatus,
		&transferTo,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	if providerID.Valid {
		s := providerID.String
		c.ProviderConversationID = &s
	}
	if transferStatus.Valid {
		s := transferStatus.String
		c.TransferStatus = &s
	}
	if transferTo.Valid {
		s := transferTo.String
		c.TransferTo = &s
	}
	return c, nil
}

func (r *Repo) Create(ctx context.Context, c Conversation) error {
	const q = `
INSERT INTO conversations (
  id, user_id, agent_id, provider_conversation_id, status, direction,
  caller_phone, callee_phone, duration_seconds, cost_euros, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.UserID,
		c.AgentID,
		c.ProviderConversationID,
		c.Status,
		c.Direction,
		c.CallerPhone,
		c.CalleePhone,
		c.DurationSeconds,
		c.CostEuros,
		c.CreatedAt.UTC(),
	)
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (Conversation, error) {
	const q = `SELECT ` + columns + ` FROM conversations WHERE id = $1`
	return scanConversation(r.db.QueryRowContext(ctx, q, id))
}

func (r *Repo) Finish(ctx context.Context, id string, status Status, durationSeconds int, costEuros float64) error {
	const q = `
UPDATE conversations
SET status = $2, duration_seconds = $3, cost_euros = $4, updated_at = NOW()
WHERE id = $1 AND status = $5
`
	res, err := r.db.ExecContext(ctx, q, id, status, durationSeconds, costEuros, StatusActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) UpdateFromProvider(ctx context.Context, id string, status Status, durationSeconds int, costEuros float64) error {
	// Conditional write keeps repeated sweeps from churning updated_at.
	const q = `
UPDATE conversations
SET status = $2, duration_seconds = $3, cost_euros = $4, updated_at = NOW()
WHERE id = $1
  AND (status <> $2 OR duration_seconds <> $3 OR cost_euros <> $4)
`
	_, err := r.db.ExecContext(ctx, q, id, status, durationSeconds, costEuros)
	return err
}

func (r *Repo) ListWithProviderID(ctx context.Context) ([]Conversation, error) {
	const q = `SELECT ` + columns + ` FROM conversations WHERE provider_conversation_id IS NOT NULL`
	return r.list(ctx, q)
}

func (r *Repo) ListOutbound(ctx context.Context) ([]Conversation, error) {
	const q = `SELECT ` + columns + ` FROM conversations WHERE direction = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, DirectionOutbound)
}

func (r *Repo) List(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	const q = `SELECT ` + columns + ` FROM conversations WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, q, userID, limit)
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]Conversation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
