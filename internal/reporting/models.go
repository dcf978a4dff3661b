package reporting

import "time"

// CampaignSummary is the dashboard's progress view of one campaign. Counters
// come from contact rows, spend from the charge ledger; the two are reported
// side by side so drift is visible instead of hidden.
type CampaignSummary struct {
	CampaignID string `json:"campaign_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`

	TotalContacts int `json:"total_contacts"`
	Called        int `json:"called"`
	Answered      int `json:"answered"`
	Failed        int `json:"failed"`
	Pending       int `json:"pending"`

	// AnswerRate is answered/called, 0 when nothing was called yet.
	AnswerRate float64 `json:"answer_rate"`

	TotalDurationSeconds int `json:"total_duration_seconds"`

	CostEuros    float64 `json:"cost_euros"`
	ChargedCalls int     `json:"charged_calls"`
	ChargedEuros float64 `json:"charged_euros"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
