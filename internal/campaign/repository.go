package campaign

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voiceagent-platform/pkg/utils"
)

// Repo is the Postgres-backed Store.
//
// NOTE: campaign rows are written by the dashboard (campaign creation, contact
// enrollment); this service only mutates status, aggregates, and per-contact
// call outcomes.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

const campaignColumns = `
id, user_id, agent_id, name, status,
total_contacts, contacts_called, contacts_answered, contacts_failed,
cost_euros, budget_euros, started_at, completed_at, created_at, updated_at
`

func scanCampaign(row interface{ Scan(dest ...any) error }) (Campaign, error) {
	var c Campaign
	var budget sql.NullFloat64
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.AgentID,
		&c.Name,
		&c.Status,
		&c.TotalContacts,
		&c.ContactsCalled,
		&c.ContactsAnswered,
		&c.ContactsFailed,
		&c.CostEuros,
		&budget,
		&startedAt,
		&completedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	if budget.Valid {
		c.BudgetEuros = &budget.Float64
	}
	if startedAt.Valid {
		t := startedAt.Time
		c.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	return c, nil
}

const contactColumns = `
id, campaign_id, name, phone, status,
called_at, call_duration_seconds, cost_euros, conversation_id, notes, position,
created_at, updated_at
`

func scanContact(row interface{ Scan(dest ...any) error }) (Contact, error) {
	var ct Contact
	var calledAt sql.NullTime
	var convID sql.NullString
	if err := row.Scan(
		&ct.ID,
		&ct.CampaignID,
		&ct.Name,
		&ct.Phone,
		&ct.Status,
		&calledAt,
		&ct.CallDurationSeconds,
		&ct.CostEuros,
		&convID,
		&ct.Notes,
		&ct.Position,
		&ct.CreatedAt,
		&ct.UpdatedAt,
	); err != nil {
		return Contact{}, err
	}
	if calledAt.Valid {
		t := calledAt.Time
		ct.CalledAt = &t
	}
	if convID.Valid {
		s := convID.String
		ct.ConversationID = &s
	}
	return ct, nil
}

func (r *Repo) GetCampaign(ctx context.Context, id string) (Campaign, error) {
	const q = `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return scanCampaign(r.db.QueryRowContext(ctx, q, id))
}

func (r *Repo) SetStatus(ctx context.Context, id string, to Status) (Campaign, error) {
	var out Campaign
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const lockQ = `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 FOR UPDATE`
		cur, err := scanCampaign(tx.QueryRowContext(ctx, lockQ, id))
		if err != nil {
			return err
		}
		if !cur.Status.CanTransition(to) {
			return ErrInvalidTransition
		}
		const updQ = `UPDATE campaigns SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + campaignColumns
		out, err = scanCampaign(tx.QueryRowContext(ctx, updQ, id, to))
		return err
	})
	return out, err
}

func (r *Repo) MarkRunning(ctx context.Context, id string, stampStart bool, now time.Time) (Campaign, error) {
	var out Campaign
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const lockQ = `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 FOR UPDATE`
		cur, err := scanCampaign(tx.QueryRowContext(ctx, lockQ, id))
		if err != nil {
			return err
		}
		if cur.Status == StatusRunning {
			// Overlapping start/continue is tolerated; the run lock arbitrates.
			out = cur
			return nil
		}
		if !cur.Status.CanTransition(StatusRunning) {
			return ErrInvalidTransition
		}
		if stampStart {
			const q = `UPDATE campaigns SET status = $2, started_at = $3, updated_at = $3 WHERE id = $1 RETURNING ` + campaignColumns
			out, err = scanCampaign(tx.QueryRowContext(ctx, q, id, StatusRunning, now.UTC()))
			return err
		}
		const q = `UPDATE campaigns SET status = $2, updated_at = $3 WHERE id = $1 RETURNING ` + campaignColumns
		out, err = scanCampaign(tx.QueryRowContext(ctx, q, id, StatusRunning, now.UTC()))
		return err
	})
	return out, err
}

func (r *Repo) MarkCompleted(ctx context.Context, id string, now time.Time) error {
	const q = `
UPDATE campaigns
SET status = $2, completed_at = $3, updated_at = $3
WHERE id = $1 AND status IN ($4, $5)
`
	res, err := r.db.ExecContext(ctx, q, id, StatusCompleted, now.UTC(), StatusRunning, StatusPaused)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ClaimNextContact dequeues the oldest pending contact (enrollment order) and
// marks it calling in one statement. SKIP LOCKED keeps two racing runners from
// claiming the same row.
func (r *Repo) ClaimNextContact(ctx context.Context, campaignID string, now time.Time) (Contact, bool, error) {
	const q = `
UPDATE campaign_contacts
SET status = $3, called_at = $2, updated_at = $2
WHERE id = (
    SELECT id FROM campaign_contacts
    WHERE campaign_id = $1 AND status = $4
    ORDER BY position, created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + contactColumns
	ct, err := scanContact(r.db.QueryRowContext(ctx, q, campaignID, now.UTC(), ContactCalling, ContactPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, false, nil
		}
		return Contact{}, false, err
	}
	return ct, true, nil
}

func (r *Repo) FinishContact(ctx context.Context, contactID string, out ContactOutcome) error {
	const q = `
UPDATE campaign_contacts
SET status = $2, call_duration_seconds = $3, cost_euros = $4, notes = $5, updated_at = NOW()
WHERE id = $1 AND status IN ($6, $7)
`
	res, err := r.db.ExecContext(ctx, q,
		contactID,
		out.Status,
		out.CallDurationSeconds,
		out.CostEuros,
		out.Notes,
		ContactPending,
		ContactCalling,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetContactStatus(ctx context.Context, contactID string, status ContactStatus, notes string) error {
	const q = `
UPDATE campaign_contacts
SET status = $2, notes = $3, updated_at = NOW()
WHERE id = $1 AND status IN ($4, $5)
`
	res, err := r.db.ExecContext(ctx, q, contactID, status, notes, ContactPending, ContactCalling)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) LinkConversation(ctx context.Context, contactID, conversationID string) error {
	// conversation_id is write-once.
	const q = `
UPDATE campaign_contacts
SET conversation_id = $2, updated_at = NOW()
WHERE id = $1 AND conversation_id IS NULL
`
	_, err := r.db.ExecContext(ctx, q, contactID, conversationID)
	return err
}

func (r *Repo) AddAggregates(ctx context.Context, campaignID string, d AggregateDelta) error {
	// Atomic in-database increments; no read-modify-write from the application.
	const q = `
UPDATE campaigns
SET contacts_called   = contacts_called + $2,
    contacts_answered = contacts_answered + $3,
    contacts_failed   = contacts_failed + $4,
    cost_euros        = cost_euros + $5,
    updated_at        = NOW()
WHERE id = $1
`
	_, err := r.db.ExecContext(ctx, q, campaignID, d.Called, d.Answered, d.Failed, d.CostEuros)
	return err
}

func (r *Repo) CountPendingContacts(ctx context.Context, campaignID string) (int, error) {
	const q = `SELECT COUNT(*) FROM campaign_contacts WHERE campaign_id = $1 AND status = $2`
	var n int
	if err := r.db.QueryRowContext(ctx, q, campaignID, ContactPending).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) ListReconcilable(ctx context.Context) ([]Campaign, error) {
	const q = `SELECT ` + campaignColumns + ` FROM campaigns WHERE status NOT IN ($1, $2)`
	rows, err := r.db.QueryContext(ctx, q, StatusDraft, StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) ContactTallies(ctx context.Context, campaignID string) (Tallies, error) {
	const q = `
SELECT
  COUNT(*) FILTER (WHERE status IN ($2, $3, $4, $5)),
  COUNT(*) FILTER (WHERE status = $2),
  COUNT(*) FILTER (WHERE status IN ($3, $4, $5)),
  COALESCE(SUM(call_duration_seconds) FILTER (WHERE status IN ($2, $3, $4, $5)), 0),
  COALESCE(SUM(cost_euros), 0)
FROM campaign_contacts
WHERE campaign_id = $1
`
	var t Tallies
	err := r.db.QueryRowContext(ctx, q, campaignID,
		ContactCompleted, ContactNoAnswer, ContactBusy, ContactFailed,
	).Scan(&t.Called, &t.Answered, &t.Failed, &t.DurationSeconds, &t.CostEuros)
	if err != nil {
		return Tallies{}, err
	}
	return t, nil
}

func (r *Repo) OverwriteAggregates(ctx context.Context, campaignID string, t Tallies) error {
	// Only touch the row when the recomputed values differ, so repeated sweeps
	// are true no-ops.
	const q = `
UPDATE campaigns
SET contacts_called   = $2,
    contacts_answered = $3,
    contacts_failed   = $4,
    cost_euros        = $5,
    updated_at        = NOW()
WHERE id = $1
  AND (contacts_called <> $2 OR contacts_answered <> $3 OR contacts_failed <> $4 OR cost_euros <> $5)
`
	_, err := r.db.ExecContext(ctx, q, campaignID, t.Called, t.Answered, t.Failed, t.CostEuros)
	return err
}

func (r *Repo) ListStuckCalling(ctx context.Context) ([]Contact, error) {
	const q = `
SELECT ` + contactColumns + `
FROM campaign_contacts
WHERE status = $1 AND conversation_id IS NULL
ORDER BY updated_at
`
	rows, err := r.db.QueryContext(ctx, q, ContactCalling)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		ct, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (r *Repo) SettleContactWithConversation(ctx context.Context, contactID, conversationID string, out ContactOutcome) error {
	const q = `
UPDATE campaign_contacts
SET conversation_id = $2, status = $3, call_duration_seconds = $4, cost_euros = $5, notes = $6, updated_at = NOW()
WHERE id = $1 AND conversation_id IS NULL AND status = $7
`
	_, err := r.db.ExecContext(ctx, q,
		contactID,
		conversationID,
		out.Status,
		out.CallDurationSeconds,
		out.CostEuros,
		out.Notes,
		ContactCalling,
	)
	return err
}

func (r *Repo) UpdateContactByConversation(ctx context.Context, conversationID string, out ContactOutcome) error {
	const q = `
UPDATE campaign_contacts
SET status = $2, call_duration_seconds = $3, cost_euros = $4, updated_at = NOW()
WHERE conversation_id = $1
  AND (status <> $2 OR call_duration_seconds <> $3 OR cost_euros <> $4)
`
	_, err := r.db.ExecContext(ctx, q, conversationID, out.Status, out.CallDurationSeconds, out.CostEuros)
	return err
}

func (r *Repo) ContactByConversation(ctx context.Context, conversationID string) (Contact, bool, error) {
	const q = `SELECT ` + contactColumns + ` FROM campaign_contacts WHERE conversation_id = $1`
	ct, err := scanContact(r.db.QueryRowContext(ctx, q, conversationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contact{}, false, nil
		}
		return Contact{}, false, err
	}
	return ct, true, nil
}

func (r *Repo) ListStalledRunning(ctx context.Context, idleSince time.Time) ([]Campaign, error) {
	const q = `
SELECT ` + campaignColumns + `
FROM campaigns c
WHERE c.status = $1
  AND c.updated_at < $2
  AND EXISTS (
    SELECT 1 FROM campaign_contacts cc
    WHERE cc.campaign_id = c.id AND cc.status = $3
  )
`
	rows, err := r.db.QueryContext(ctx, q, StatusRunning, idleSince.UTC(), ContactPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
