package voiceai

import "context"

// Provider defines the provider-agnostic voice-AI interface used by the dialer.
//
// Rules:
// - No provider HTTP calls outside this package.
// - Keep request/response types provider-agnostic; provider raw payloads stay
//   inside the adapter.
// - The server-held API key never leaves this package.
type Provider interface {
	Name() string

	ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error)
	RegisterPhoneNumber(ctx context.Context, req RegisterPhoneNumberRequest) (PhoneNumber, error)

	StartOutboundCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error)
	GetConversation(ctx context.Context, conversationID string) (ConversationSnapshot, error)
}

// PhoneNumber is a phone resource registered with the provider.
type PhoneNumber struct {
	ID     string `json:"id"`
	Number string `json:"number"` // E.164 where possible
	Label  string `json:"label,omitempty"`
}

// RegisterPhoneNumberRequest registers a telephony number with the provider.
// The telephony credentials are passed through opaquely; this service never
// calls the telephony provider itself.
type RegisterPhoneNumberRequest struct {
	Number string `json:"number"`
	Label  string `json:"label,omitempty"`

	TwilioAccountSID string `json:"twilio_account_sid"`
	TwilioAuthToken  string `json:"twilio_auth_token"`
}

// OutboundCallRequest places one outbound call through the provider.
type OutboundCallRequest struct {
	AgentID       string `json:"agent_id"`
	PhoneNumberID string `json:"phone_number_id"`

	// ToNumber must already be normalized to international format.
	ToNumber string `json:"to_number"`

	// DynamicVariables are injected into the agent's prompt templates
	// (e.g. the callee's name or phone).
	DynamicVariables map[string]string `json:"dynamic_variables,omitempty"`
}

type OutboundCallResult struct {
	// ConversationID is the provider's call-session identifier.
	ConversationID string `json:"conversation_id"`

	// ProviderCallID is the telephony-leg identifier if the provider exposes it.
	ProviderCallID string `json:"provider_call_id,omitempty"`
}

// SessionStatus is the provider's view of a call session.
type SessionStatus string

const (
	SessionInitiated  SessionStatus = "initiated"
	SessionInProgress SessionStatus = "in-progress"
	SessionProcessing SessionStatus = "processing"
	SessionDone       SessionStatus = "done"
	SessionFailed     SessionStatus = "failed"
)

// Terminal reports whether the provider will not advance this status further.
func (s SessionStatus) Terminal() bool {
	return s == SessionDone || s == SessionFailed
}

// ConversationSnapshot is one observation of a provider call session.
type ConversationSnapshot struct {
	ConversationID string        `json:"conversation_id"`
	Status         SessionStatus `json:"status"`

	DurationSeconds int `json:"duration_seconds"`

	// TranscriptTurns counts agent/user turns with non-empty content.
	// Used to distinguish an answered call from voicemail/no-answer.
	TranscriptTurns int `json:"transcript_turns"`

	// CostEuros is the provider's own charging figure for the call.
	// When positive it is authoritative and must not be recomputed locally.
	CostEuros float64 `json:"cost_euros"`
}
