package reconcile

import (
	"context"
	"log/slog"
	"time"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/billing"
	"voiceagent-platform/internal/campaign"
	"voiceagent-platform/internal/conversation"
	"voiceagent-platform/internal/dialer"
	"voiceagent-platform/internal/phone"
	"voiceagent-platform/internal/pricing"
	"voiceagent-platform/internal/voiceai"
)

// Sweep trues up local call state against the provider. It repairs what the
// dialer's happy path could not finish: conversations abandoned mid-poll,
// contacts stuck in calling, aggregates that drifted, and campaigns whose
// continuation chain broke.
//
// Every pass is idempotent; running the sweep twice in a row changes nothing
// the second time.
type Sweep struct {
	store         campaign.Store
	conversations conversation.Store
	provider      voiceai.Provider
	pricing       *pricing.Service
	billing       *billing.Service
	audit         *audit.Service
	continuer     dialer.Continuer
	countryCode   string

	// stallAfter is how long a contact or campaign must sit idle before the
	// sweep considers it abandoned rather than in-flight.
	stallAfter time.Duration

	log   *slog.Logger
	clock func() time.Time
}

type SweepDeps struct {
	Store         campaign.Store
	Conversations conversation.Store
	Provider      voiceai.Provider
	Pricing       *pricing.Service
	Billing       *billing.Service
	Audit         *audit.Service
	Continuer     dialer.Continuer
	CountryCode   string
	StallAfter    time.Duration
	Log           *slog.Logger
}

func NewSweep(d SweepDeps) *Sweep {
	return &Sweep{
		store:         d.Store,
		conversations: d.Conversations,
		provider:      d.Provider,
		pricing:       d.Pricing,
		billing:       d.Billing,
		audit:         d.Audit,
		continuer:     d.Continuer,
		countryCode:   d.CountryCode,
		stallAfter:    d.StallAfter,
		log:           d.Log,
		clock:         time.Now,
	}
}

// Run executes one full sweep. Per-record failures are logged and skipped so
// one bad row never blocks the rest of the pass.
func (s *Sweep) Run(ctx context.Context) error {
	if err := s.refreshConversations(ctx); err != nil {
		return err
	}
	if err := s.recoverOrphanedContacts(ctx); err != nil {
		return err
	}
	if err := s.recomputeAggregates(ctx); err != nil {
		return err
	}
	return s.kickStalledCampaigns(ctx)
}

// refreshConversations re-reads every still-active conversation from the
// provider and settles the ones that finished while nobody was watching.
func (s *Sweep) refreshConversations(ctx context.Context) error {
	convs, err := s.conversations.ListWithProviderID(ctx)
	if err != nil {
		return err
	}
	for _, conv := range convs {
		if conv.Status.Terminal() {
			continue
		}
		snap, err := s.provider.GetConversation(ctx, *conv.ProviderConversationID)
		if err != nil {
			s.log.Warn("provider refresh failed", "conversation_id", conv.ID, "error", err)
			continue
		}
		if !snap.Status.Terminal() {
			continue
		}

		contactStatus := dialer.Classify(snap, false)
		cost := snap.CostEuros
		if cost <= 0 {
			cost = s.pricing.EstimateCallCost(snap.DurationSeconds)
		}
		convStatus := conversation.StatusEnded
		if snap.Status == voiceai.SessionFailed {
			convStatus = conversation.StatusError
		}

		if err := s.conversations.UpdateFromProvider(ctx, conv.ID, convStatus, snap.DurationSeconds, cost); err != nil {
			s.log.Warn("conversation update failed", "conversation_id", conv.ID, "error", err)
			continue
		}
		if err := s.store.UpdateContactByConversation(ctx, conv.ID, campaign.ContactOutcome{
			Status:              contactStatus,
			CallDurationSeconds: snap.DurationSeconds,
			CostEuros:           cost,
		}); err != nil {
			s.log.Warn("contact update failed", "conversation_id", conv.ID, "error", err)
			continue
		}
		if s.billing != nil && cost > 0 {
			if err := s.chargeConversation(ctx, conv, cost); err != nil {
				s.log.Warn("sweep charge failed", "conversation_id", conv.ID, "error", err)
			}
		}
		s.log.Info("conversation reconciled",
			"conversation_id", conv.ID, "status", convStatus, "duration", snap.DurationSeconds)
	}
	return nil
}

func (s *Sweep) chargeConversation(ctx context.Context, conv conversation.Conversation, cost float64) error {
	// Charges need a campaign; inbound or unlinked conversations carry none.
	ct, ok, err := s.store.ContactByConversation(ctx, conv.ID)
	if err != nil || !ok {
		return err
	}
	return s.billing.RecordCallCharge(ctx, conv.UserID, ct.CampaignID, conv.ID, cost)
}

// recoverOrphanedContacts matches contacts stuck in calling with no linked
// conversation against outbound conversation records by callee phone.
func (s *Sweep) recoverOrphanedContacts(ctx context.Context) error {
	stuck, err := s.store.ListStuckCalling(ctx)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}
	cutoff := s.clock().Add(-s.stallAfter)

	var outbound []conversation.Conversation
	loaded := false

	for _, ct := range stuck {
		// A recent calling row may belong to a live dial run; leave it alone.
		if ct.UpdatedAt.After(cutoff) {
			continue
		}
		if !loaded {
			outbound, err = s.conversations.ListOutbound(ctx)
			if err != nil {
				return err
			}
			loaded = true
		}

		conv, ok := s.matchConversation(outbound, ct)
		if !ok {
			if err := s.store.SetContactStatus(ctx, ct.ID, campaign.ContactFailed, "abandoned call, no conversation record"); err != nil {
				s.log.Warn("orphan contact settle failed", "contact_id", ct.ID, "error", err)
			}
			continue
		}

		status := campaign.ContactNoAnswer
		if conv.DurationSeconds > 0 {
			status = campaign.ContactCompleted
		}
		out := campaign.ContactOutcome{
			Status:              status,
			CallDurationSeconds: conv.DurationSeconds,
			CostEuros:           conv.CostEuros,
			Notes:               "recovered by reconciliation",
		}
		if err := s.store.SettleContactWithConversation(ctx, ct.ID, conv.ID, out); err != nil {
			s.log.Warn("orphan contact recovery failed", "contact_id", ct.ID, "error", err)
			continue
		}
		s.log.Info("orphaned contact recovered", "contact_id", ct.ID, "conversation_id", conv.ID, "status", status)
	}
	return nil
}

// matchConversation finds the newest outbound conversation dialed to the
// contact's number after the contact was claimed.
func (s *Sweep) matchConversation(outbound []conversation.Conversation, ct campaign.Contact) (conversation.Conversation, bool) {
	for _, conv := range outbound {
		if !phone.Equal(conv.CalleePhone, ct.Phone, s.countryCode) {
			continue
		}
		if ct.CalledAt != nil && conv.CreatedAt.Before(ct.CalledAt.Add(-time.Minute)) {
			continue
		}
		return conv, true
	}
	return conversation.Conversation{}, false
}

// recomputeAggregates rebuilds campaign counters from contact rows, repairing
// drift from crashed runs.
func (s *Sweep) recomputeAggregates(ctx context.Context) error {
	camps, err := s.store.ListReconcilable(ctx)
	if err != nil {
		return err
	}
	for _, c := range camps {
		t, err := s.store.ContactTallies(ctx, c.ID)
		if err != nil {
			s.log.Warn("tally failed", "campaign_id", c.ID, "error", err)
			continue
		}
		if err := s.store.OverwriteAggregates(ctx, c.ID, t); err != nil {
			s.log.Warn("aggregate overwrite failed", "campaign_id", c.ID, "error", err)
		}
	}
	return nil
}

// kickStalledCampaigns restarts the continuation chain for running campaigns
// that still have pending contacts but have not moved in stallAfter.
func (s *Sweep) kickStalledCampaigns(ctx context.Context) error {
	stalled, err := s.store.ListStalledRunning(ctx, s.clock().Add(-s.stallAfter))
	if err != nil {
		return err
	}
	for _, c := range stalled {
		s.log.Info("kicking stalled campaign", "campaign_id", c.ID)
		s.continuer.Dispatch(c.ID)
		if s.audit != nil {
			if err := s.audit.Record(ctx, audit.Entry{
				CampaignID: c.ID,
				Actor:      "watchdog",
				Action:     audit.ActionWatchdog,
				FromStatus: string(campaign.StatusRunning),
				ToStatus:   string(campaign.StatusRunning),
			}); err != nil {
				s.log.Warn("watchdog audit failed", "campaign_id", c.ID, "error", err)
			}
		}
	}
	return nil
}
