package voiceai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestElevenLabs_ListPhoneNumbers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/phone-numbers" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get(apiKeyHeader) != "sk-test" {
			t.Fatalf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"phone_number_id":"pn_1","phone_number":"+33700000000","label":"main"}]`))
	}))
	defer srv.Close()

	p := NewElevenLabs(srv.URL, "sk-test")
	nums, err := p.ListPhoneNumbers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(nums) != 1 || nums[0].ID != "pn_1" || nums[0].Number != "+33700000000" {
		t.Fatalf("unexpected result: %+v", nums)
	}
}

func TestElevenLabs_RegisterPhoneNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/phone-numbers" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"phone_number_id":"pn_new"}`))
	}))
	defer srv.Close()

	p := NewElevenLabs(srv.URL, "sk-test")
	num, err := p.RegisterPhoneNumber(context.Background(), RegisterPhoneNumberRequest{
		Number:           "+33700000000",
		TwilioAccountSID: "AC123",
		TwilioAuthToken:  "tok",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if num.ID != "pn_new" || num.Number != "+33700000000" {
		t.Fatalf("unexpected result: %+v", num)
	}
}

func TestElevenLabs_RegisterPhoneNumber_SurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"invalid twilio credentials"}`))
	}))
	defer srv.Close()

	p := NewElevenLabs(srv.URL, "sk-test")
	_, err := p.RegisterPhoneNumber(context.Background(), RegisterPhoneNumberRequest{Number: "+33700000000"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "422") || !strings.Contains(got, "invalid twilio credentials") {
		t.Fatalf("error should carry status and provider message, got %q", got)
	}
}

func TestElevenLabs_StartOutboundCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/twilio/outbound-call" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"conversation_id":"conv_1","callSid":"CA1"}`))
	}))
	defer srv.Close()

	p := NewElevenLabs(srv.URL, "sk-test")
	res, err := p.StartOutboundCall(context.Background(), OutboundCallRequest{
		AgentID:       "agent_1",
		PhoneNumberID: "pn_1",
		ToNumber:      "+33612345678",
		DynamicVariables: map[string]string{
			"contact_name": "Alice",
		},
	})
	if err != nil {
		t.Fatalf("start call: %v", err)
	}
	if res.ConversationID != "conv_1" || res.ProviderCallID != "CA1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestElevenLabs_GetConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/convai/conversations/conv_1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"conversation_id": "conv_1",
			"status": "done",
			"transcript": [
				{"role":"agent","message":"Bonjour"},
				{"role":"user","message":"Bonjour, oui"},
				{"role":"agent","message":""}
			],
			"metadata": {"call_duration_secs": 42, "cost": 0.31}
		}`))
	}))
	defer srv.Close()

	p := NewElevenLabs(srv.URL, "sk-test")
	snap, err := p.GetConversation(context.Background(), "conv_1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if snap.Status != SessionDone {
		t.Fatalf("expected done, got %q", snap.Status)
	}
	if snap.DurationSeconds != 42 || snap.TranscriptTurns != 2 || snap.CostEuros != 0.31 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSessionStatus_Terminal(t *testing.T) {
	for _, s := range []SessionStatus{SessionDone, SessionFailed} {
		if !s.Terminal() {
			t.Fatalf("%q should be terminal", s)
		}
	}
	for _, s := range []SessionStatus{SessionInitiated, SessionInProgress, SessionProcessing} {
		if s.Terminal() {
			t.Fatalf("%q should not be terminal", s)
		}
	}
}
