package voiceai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const apiKeyHeader = "xi-api-key"

// ElevenLabs is the HTTP adapter for the ElevenLabs conversational-voice API.
type ElevenLabs struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewElevenLabs(baseURL, apiKey string) *ElevenLabs {
	return &ElevenLabs{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *ElevenLabs) Name() string { return "elevenlabs" }

type elPhoneNumber struct {
	PhoneNumberID string `json:"phone_number_id"`
	PhoneNumber   string `json:"phone_number"`
	Label         string `json:"label"`
}

func (p *ElevenLabs) ListPhoneNumbers(ctx context.Context) ([]PhoneNumber, error) {
	var raw []elPhoneNumber
	if err := p.do(ctx, http.MethodGet, "/v1/convai/phone-numbers", nil, &raw); err != nil {
		return nil, fmt.Errorf("voiceai: list phone numbers: %w", err)
	}
	out := make([]PhoneNumber, 0, len(raw))
	for _, n := range raw {
		out = append(out, PhoneNumber{ID: n.PhoneNumberID, Number: n.PhoneNumber, Label: n.Label})
	}
	return out, nil
}

func (p *ElevenLabs) RegisterPhoneNumber(ctx context.Context, req RegisterPhoneNumberRequest) (PhoneNumber, error) {
	body := map[string]string{
		"phone_number": req.Number,
		"label":        req.Label,
		"sid":          req.TwilioAccountSID,
		"token":        req.TwilioAuthToken,
	}
	var resp struct {
		PhoneNumberID string `json:"phone_number_id"`
	}
	if err := p.do(ctx, http.MethodPost, "/v1/convai/phone-numbers", body, &resp); err != nil {
		return PhoneNumber{}, fmt.Errorf("voiceai: register phone number: %w", err)
	}
	return PhoneNumber{ID: resp.PhoneNumberID, Number: req.Number, Label: req.Label}, nil
}

func (p *ElevenLabs) StartOutboundCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error) {
	body := map[string]any{
		"agent_id":              req.AgentID,
		"agent_phone_number_id": req.PhoneNumberID,
		"to_number":             req.ToNumber,
	}
	if len(req.DynamicVariables) > 0 {
		body["conversation_initiation_client_data"] = map[string]any{
			"dynamic_variables": req.DynamicVariables,
		}
	}
	var resp struct {
		ConversationID string `json:"conversation_id"`
		CallSID        string `json:"callSid"`
	}
	if err := p.do(ctx, http.MethodPost, "/v1/convai/twilio/outbound-call", body, &resp); err != nil {
		return OutboundCallResult{}, fmt.Errorf("voiceai: outbound call: %w", err)
	}
	if resp.ConversationID == "" {
		return OutboundCallResult{}, fmt.Errorf("voiceai: outbound call: provider returned no conversation id")
	}
	return OutboundCallResult{ConversationID: resp.ConversationID, ProviderCallID: resp.CallSID}, nil
}

type elConversation struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
	Transcript     []struct {
		Role    string `json:"role"`
		Message string `json:"message"`
	} `json:"transcript"`
	Metadata struct {
		CallDurationSecs int     `json:"call_duration_secs"`
		Cost             float64 `json:"cost"`
	} `json:"metadata"`
}

func (p *ElevenLabs) GetConversation(ctx context.Context, conversationID string) (ConversationSnapshot, error) {
	var raw elConversation
	path := "/v1/convai/conversations/" + conversationID
	if err := p.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return ConversationSnapshot{}, fmt.Errorf("voiceai: get conversation: %w", err)
	}

	turns := 0
	for _, t := range raw.Transcript {
		if strings.TrimSpace(t.Message) != "" {
			turns++
		}
	}

	return ConversationSnapshot{
		ConversationID:  raw.ConversationID,
		Status:          SessionStatus(raw.Status),
		DurationSeconds: raw.Metadata.CallDurationSecs,
		TranscriptTurns: turns,
		CostEuros:       raw.Metadata.Cost,
	}, nil
}

func (p *ElevenLabs) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set(apiKeyHeader, p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Keep the provider's message; it usually names the misconfiguration.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
