package audit

import (
	"context"
	"database/sql"
)

// SQLRepo appends entries to the campaign_audit table.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Append(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO campaign_audit (id, campaign_id, actor, action, from_status, to_status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.CampaignID,
		e.Actor,
		e.Action,
		e.FromStatus,
		e.ToStatus,
		e.CreatedAt,
	)
	return err
}
