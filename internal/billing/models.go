package billing

import "time"

// CallCharge is one per-call spend record. The ledger is append-only and keyed
// by conversation so a call is never charged twice, however many times its
// outcome gets re-processed.
type CallCharge struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	CampaignID     string    `json:"campaign_id" db:"campaign_id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	AmountEuros    float64   `json:"amount_euros" db:"amount_euros"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// CampaignSpend is the ledger's view of a campaign's total cost.
type CampaignSpend struct {
	CampaignID  string  `json:"campaign_id"`
	Calls       int     `json:"calls"`
	AmountEuros float64 `json:"amount_euros"`
}
