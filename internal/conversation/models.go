package conversation

import "time"

// Conversation is one voice-AI call session. The record is shared with the
// dashboard's call-history views and outlives any campaign that produced it.
//
// Invariants:
// - once Status leaves active it is terminal
// - duration and cost, once populated from the provider, are authoritative
//   and must never be overwritten with estimates
type Conversation struct {
	ID      string `json:"id" db:"id"`
	UserID  string `json:"user_id" db:"user_id"`
	AgentID string `json:"agent_id" db:"agent_id"`

	// ProviderConversationID is the provider's session identifier, nullable
	// until the provider confirms call placement.
	ProviderConversationID *string `json:"provider_conversation_id,omitempty" db:"provider_conversation_id"`

	Status    Status    `json:"status" db:"status"`
	Direction Direction `json:"direction" db:"direction"`

	CallerPhone string `json:"caller_phone" db:"caller_phone"`
	CalleePhone string `json:"callee_phone" db:"callee_phone"`

	DurationSeconds int     `json:"duration_seconds" db:"duration_seconds"`
	CostEuros       float64 `json:"cost_euros" db:"cost_euros"`

	// Transfer fields are part of the shared schema; the dialer never sets them.
	TransferStatus *string `json:"transfer_status,omitempty" db:"transfer_status"`
	TransferTo     *string `json:"transfer_to,omitempty" db:"transfer_to"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
	StatusError  Status = "error"
)

func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusError
}

type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)
