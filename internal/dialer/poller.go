package dialer

import (
	"context"
	"fmt"
	"time"

	"voiceagent-platform/internal/campaign"
	"voiceagent-platform/internal/conversation"
	"voiceagent-platform/internal/voiceai"
)

// Poller waits for a placed call to reach a terminal provider status, checking
// every interval up to maxWait. A call still in flight when the budget runs
// out is reported with timedOut=true and the last snapshot seen.
type Poller struct {
	provider voiceai.Provider
	interval time.Duration
	maxWait  time.Duration

	// sleep is injectable for deterministic tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPoller(provider voiceai.Provider, interval, maxWait time.Duration) *Poller {
	return &Poller{
		provider: provider,
		interval: interval,
		maxWait:  maxWait,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Await polls until the provider reports a terminal status or maxWait elapses.
// Transient poll errors are tolerated as long as at least one poll succeeded;
// an error is returned only when every poll failed.
func (p *Poller) Await(ctx context.Context, providerConversationID string) (voiceai.ConversationSnapshot, bool, error) {
	var (
		last    voiceai.ConversationSnapshot
		haveAny bool
		lastErr error
	)
	for waited := time.Duration(0); waited < p.maxWait; waited += p.interval {
		if err := p.sleep(ctx, p.interval); err != nil {
			return last, haveAny, err
		}
		snap, err := p.provider.GetConversation(ctx, providerConversationID)
		if err != nil {
			lastErr = err
			continue
		}
		last = snap
		haveAny = true
		if snap.Status.Terminal() {
			return snap, false, nil
		}
	}
	if !haveAny {
		return voiceai.ConversationSnapshot{}, false, fmt.Errorf("poll conversation %s: %w", providerConversationID, lastErr)
	}
	return last, true, nil
}

// trivialTranscriptTurns is the threshold below which a zero-duration "done"
// call counts as never answered (voicemail rejection, instant hangup).
const trivialTranscriptTurns = 1

// Classify maps a provider snapshot to the contact's final status.
//
// Timed-out calls still ringing (initiated) are treated as unanswered;
// timed-out calls that connected are assumed to have run to completion, and
// the reconciliation sweep trues them up later with the provider's figures.
func Classify(snap voiceai.ConversationSnapshot, timedOut bool) campaign.ContactStatus {
	if timedOut {
		switch snap.Status {
		case voiceai.SessionInProgress, voiceai.SessionProcessing:
			return campaign.ContactCompleted
		default:
			return campaign.ContactNoAnswer
		}
	}
	switch snap.Status {
	case voiceai.SessionFailed:
		return campaign.ContactFailed
	case voiceai.SessionDone:
		if snap.DurationSeconds == 0 && snap.TranscriptTurns <= trivialTranscriptTurns {
			return campaign.ContactNoAnswer
		}
		return campaign.ContactCompleted
	default:
		return campaign.ContactNoAnswer
	}
}

// conversationStatus maps a settled contact status to the conversation record.
func conversationStatus(st campaign.ContactStatus) conversation.Status {
	if st == campaign.ContactFailed {
		return conversation.StatusError
	}
	return conversation.StatusEnded
}
