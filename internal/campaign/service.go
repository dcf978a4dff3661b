package campaign

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"voiceagent-platform/internal/audit"
)

// Lifecycle drives campaign status transitions and records them in the audit
// trail. Audit failures are logged, never propagated: a lost trail entry must
// not abort a dial run.
type Lifecycle struct {
	store Store
	audit *audit.Service
	log   *slog.Logger
	clock func() time.Time
}

func NewLifecycle(store Store, auditSvc *audit.Service, log *slog.Logger) *Lifecycle {
	return &Lifecycle{store: store, audit: auditSvc, log: log, clock: time.Now}
}

// Start moves a campaign to running and stamps started_at.
func (l *Lifecycle) Start(ctx context.Context, id, actor string) (Campaign, error) {
	return l.run(ctx, id, actor, audit.ActionStart, true)
}

// Resume moves a paused campaign back to running without touching started_at.
func (l *Lifecycle) Resume(ctx context.Context, id, actor string) (Campaign, error) {
	return l.run(ctx, id, actor, audit.ActionResume, false)
}

func (l *Lifecycle) run(ctx context.Context, id, actor string, action audit.Action, stampStart bool) (Campaign, error) {
	before, err := l.store.GetCampaign(ctx, id)
	if err != nil {
		return Campaign{}, err
	}
	after, err := l.store.MarkRunning(ctx, id, stampStart, l.clock())
	if err != nil {
		return Campaign{}, err
	}
	if before.Status != after.Status {
		l.record(ctx, audit.Entry{
			CampaignID: id,
			Actor:      actor,
			Action:     action,
			FromStatus: string(before.Status),
			ToStatus:   string(after.Status),
		})
	}
	return after, nil
}

// Pause flips a running campaign to paused. Pausing a campaign that is not
// running is a no-op, not an error: the caller may be racing the dialer, which
// could have completed the campaign in the meantime.
func (l *Lifecycle) Pause(ctx context.Context, id, actor string) (Campaign, error) {
	return l.pause(ctx, id, actor, audit.ActionPause)
}

// PauseForBudget pauses a campaign whose spend reached its ceiling.
func (l *Lifecycle) PauseForBudget(ctx context.Context, id string) (Campaign, error) {
	return l.pause(ctx, id, "dialer", audit.ActionBudgetPause)
}

func (l *Lifecycle) pause(ctx context.Context, id, actor string, action audit.Action) (Campaign, error) {
	before, err := l.store.GetCampaign(ctx, id)
	if err != nil {
		return Campaign{}, err
	}
	after, err := l.store.SetStatus(ctx, id, StatusPaused)
	if errors.Is(err, ErrInvalidTransition) {
		return before, nil
	}
	if err != nil {
		return Campaign{}, err
	}
	l.record(ctx, audit.Entry{
		CampaignID: id,
		Actor:      actor,
		Action:     action,
		FromStatus: string(before.Status),
		ToStatus:   string(after.Status),
	})
	return after, nil
}

// Complete closes out a campaign whose queue drained.
func (l *Lifecycle) Complete(ctx context.Context, id, actor string) error {
	before, err := l.store.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	if err := l.store.MarkCompleted(ctx, id, l.clock()); err != nil {
		return err
	}
	l.record(ctx, audit.Entry{
		CampaignID: id,
		Actor:      actor,
		Action:     audit.ActionComplete,
		FromStatus: string(before.Status),
		ToStatus:   string(StatusCompleted),
	})
	return nil
}

func (l *Lifecycle) record(ctx context.Context, e audit.Entry) {
	if l.audit == nil {
		return
	}
	if err := l.audit.Record(ctx, e); err != nil {
		l.log.Warn("audit record failed", "campaign_id", e.CampaignID, "action", e.Action, "error", err)
	}
}
