package billing

import (
	"context"
	"database/sql"
)

// SQLRepo is the Postgres-backed Repository.
type SQLRepo struct {
	db *sql.DB
}

var _ Repository = (*SQLRepo)(nil)

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Insert(ctx context.Context, ch CallCharge) (bool, error) {
	// conversation_id is UNIQUE; ON CONFLICT makes replays no-ops.
	const q = `
INSERT INTO call_charges (id, user_id, campaign_id, conversation_id, amount_euros, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (conversation_id) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q, ch.ID, ch.UserID, ch.CampaignID, ch.ConversationID, ch.AmountEuros, ch.CreatedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *SQLRepo) SpendByCampaign(ctx context.Context, campaignID string) (CampaignSpend, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(amount_euros), 0)
FROM call_charges
WHERE campaign_id = $1
`
	out := CampaignSpend{CampaignID: campaignID}
	if err := r.db.QueryRowContext(ctx, q, campaignID).Scan(&out.Calls, &out.AmountEuros); err != nil {
		return CampaignSpend{}, err
	}
	return out, nil
}

func (r *SQLRepo) ListByUser(ctx context.Context, userID string, limit int) ([]CallCharge, error) {
	const q = `
SELECT id, user_id, campaign_id, conversation_id, amount_euros, created_at
FROM call_charges
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallCharge
	for rows.Next() {
		var ch CallCharge
		if err := rows.Scan(&ch.ID, &ch.UserID, &ch.CampaignID, &ch.ConversationID, &ch.AmountEuros, &ch.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}
