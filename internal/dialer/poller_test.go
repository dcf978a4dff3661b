package dialer

import (
	"context"
	"errors"
	"testing"
	"time"

	"voiceagent-platform/internal/campaign"
	"voiceagent-platform/internal/voiceai"
)

func TestAwait_ReturnsOnTerminalStatus(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []voiceai.ConversationSnapshot{
			{Status: voiceai.SessionInitiated},
			{Status: voiceai.SessionInProgress},
			{Status: voiceai.SessionDone, DurationSeconds: 30},
		},
	}
	p := NewPoller(provider, time.Second, 10*time.Second)
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	snap, timedOut, err := p.Await(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if timedOut {
		t.Fatalf("terminal status must not be reported as timeout")
	}
	if snap.Status != voiceai.SessionDone || snap.DurationSeconds != 30 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestAwait_TimesOutWithLastSnapshot(t *testing.T) {
	provider := &fakeProvider{
		snapshots: []voiceai.ConversationSnapshot{{Status: voiceai.SessionInProgress}},
	}
	p := NewPoller(provider, time.Second, 3*time.Second)
	polls := 0
	p.sleep = func(ctx context.Context, d time.Duration) error { polls++; return nil }

	snap, timedOut, err := p.Await(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if !timedOut {
		t.Fatalf("expected timeout")
	}
	if snap.Status != voiceai.SessionInProgress {
		t.Fatalf("expected last seen status, got %s", snap.Status)
	}
	if polls != 3 {
		t.Fatalf("expected 3 polls within the budget, got %d", polls)
	}
}

func TestAwait_AllPollsFailed(t *testing.T) {
	provider := &fakeProvider{getErr: errors.New("boom")}
	p := NewPoller(provider, time.Second, 2*time.Second)
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	if _, _, err := p.Await(context.Background(), "conv-1"); err == nil {
		t.Fatalf("expected error when every poll fails")
	}
}

func TestAwait_CancelledContext(t *testing.T) {
	p := NewPoller(&fakeProvider{}, time.Second, 10*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := p.Await(ctx, "conv-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		snap     voiceai.ConversationSnapshot
		timedOut bool
		want     campaign.ContactStatus
	}{
		{"failed session", voiceai.ConversationSnapshot{Status: voiceai.SessionFailed}, false, campaign.ContactFailed},
		{"answered call", voiceai.ConversationSnapshot{Status: voiceai.SessionDone, DurationSeconds: 25, TranscriptTurns: 4}, false, campaign.ContactCompleted},
		{"instant hangup", voiceai.ConversationSnapshot{Status: voiceai.SessionDone, DurationSeconds: 0, TranscriptTurns: 0}, false, campaign.ContactNoAnswer},
		{"greeting only", voiceai.ConversationSnapshot{Status: voiceai.SessionDone, DurationSeconds: 0, TranscriptTurns: 1}, false, campaign.ContactNoAnswer},
		{"zero duration but real transcript", voiceai.ConversationSnapshot{Status: voiceai.SessionDone, DurationSeconds: 0, TranscriptTurns: 3}, false, campaign.ContactCompleted},
		{"timeout mid call", voiceai.ConversationSnapshot{Status: voiceai.SessionInProgress}, true, campaign.ContactCompleted},
		{"timeout processing", voiceai.ConversationSnapshot{Status: voiceai.SessionProcessing}, true, campaign.ContactCompleted},
		{"timeout ringing", voiceai.ConversationSnapshot{Status: voiceai.SessionInitiated}, true, campaign.ContactNoAnswer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.snap, tc.timedOut); got != tc.want {
				t.Fatalf("Classify(%+v, %v) = %s, want %s", tc.snap, tc.timedOut, got, tc.want)
			}
		})
	}
}
