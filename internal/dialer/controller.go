package dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voiceagent-platform/internal/billing"
	"voiceagent-platform/internal/campaign"
	"voiceagent-platform/internal/conversation"
	"voiceagent-platform/internal/pricing"
)

// ErrConfiguration marks failures an operator has to fix before the campaign
// can dial at all: a campaign with no assigned agent, or an agent number the
// provider cannot resolve or register.
var ErrConfiguration = errors.New("dialer misconfigured")

// Controller works a campaign's contact queue one quota-bounded batch at a
// time. Each Run claims up to quota contacts, dials them sequentially, and
// hands the remainder to a continuation so no single invocation runs
// unbounded.
type Controller struct {
	store         campaign.Store
	conversations conversation.Store
	lifecycle     *campaign.Lifecycle
	resolver      *Resolver
	placer        *Placer
	poller        *Poller
	pricing       *pricing.Service
	billing       *billing.Service
	continuer     Continuer
	lock          RunLock

	agentNumber  string
	quota        int
	contactDelay time.Duration

	log   *slog.Logger
	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type ControllerDeps struct {
	Store         campaign.Store
	Conversations conversation.Store
	Lifecycle     *campaign.Lifecycle
	Resolver      *Resolver
	Placer        *Placer
	Poller        *Poller
	Pricing       *pricing.Service
	Billing       *billing.Service
	Continuer     Continuer
	Lock          RunLock

	AgentNumber  string
	Quota        int
	ContactDelay time.Duration

	Log *slog.Logger
}

func NewController(d ControllerDeps) *Controller {
	return &Controller{
		store:         d.Store,
		conversations: d.Conversations,
		lifecycle:     d.Lifecycle,
		resolver:      d.Resolver,
		placer:        d.Placer,
		poller:        d.Poller,
		pricing:       d.Pricing,
		billing:       d.Billing,
		continuer:     d.Continuer,
		lock:          d.Lock,
		agentNumber:   d.AgentNumber,
		quota:         d.Quota,
		contactDelay:  d.ContactDelay,
		log:           d.Log,
		clock:         time.Now,
		sleep:         sleepCtx,
	}
}

// Run executes one batch for the campaign. It returns the number of contacts
// processed; 0 with a nil error means another runner holds the campaign or
// there was nothing to do.
func (c *Controller) Run(ctx context.Context, campaignID string) (int, error) {
	acquired, err := c.lock.Acquire(ctx, campaignID)
	if err != nil {
		return 0, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		c.log.Info("campaign already being worked, skipping", "campaign_id", campaignID)
		return 0, nil
	}
	defer func() {
		if err := c.lock.Release(context.WithoutCancel(ctx), campaignID); err != nil {
			c.log.Warn("run lock release failed", "campaign_id", campaignID, "error", err)
		}
	}()

	// Fail fast on misconfiguration instead of burning through the queue as
	// per-contact placement failures.
	camp, err := c.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if camp.AgentID == "" {
		return 0, fmt.Errorf("%w: campaign %s has no assigned agent", ErrConfiguration, campaignID)
	}

	phoneNumberID, err := c.resolver.Resolve(ctx, c.agentNumber)
	if err != nil {
		return 0, fmt.Errorf("%w: resolve agent number: %v", ErrConfiguration, err)
	}

	processed := 0
	completed := false
	for i := 0; i < c.quota; i++ {
		// Re-read the campaign each iteration: a pause or budget ceiling must
		// take effect between calls, not between batches.
		camp, err := c.store.GetCampaign(ctx, campaignID)
		if err != nil {
			return processed, err
		}
		if camp.Status != campaign.StatusRunning {
			c.log.Info("campaign no longer running, stopping batch",
				"campaign_id", campaignID, "status", camp.Status)
			return processed, nil
		}
		if camp.BudgetExhausted() {
			c.log.Info("campaign budget exhausted, pausing",
				"campaign_id", campaignID, "cost", camp.CostEuros, "budget", *camp.BudgetEuros)
			if _, err := c.lifecycle.PauseForBudget(ctx, campaignID); err != nil {
				return processed, err
			}
			return processed, nil
		}

		ct, ok, err := c.store.ClaimNextContact(ctx, campaignID, c.clock())
		if err != nil {
			return processed, err
		}
		if !ok {
			if err := c.lifecycle.Complete(ctx, campaignID, "dialer"); err != nil {
				return processed, err
			}
			c.log.Info("campaign queue drained, completed", "campaign_id", campaignID)
			completed = true
			break
		}

		if err := c.dialContact(ctx, camp, ct, phoneNumberID); err != nil {
			return processed, err
		}
		processed++

		if i < c.quota-1 && c.contactDelay > 0 {
			if err := c.sleep(ctx, c.contactDelay); err != nil {
				return processed, err
			}
		}
	}

	if !completed {
		pending, err := c.store.CountPendingContacts(ctx, campaignID)
		if err != nil {
			return processed, err
		}
		camp, err := c.store.GetCampaign(ctx, campaignID)
		if err != nil {
			return processed, err
		}
		switch {
		case camp.Status != campaign.StatusRunning:
			// Paused or cancelled mid-batch; nothing to hand off.
		case pending > 0:
			c.continuer.Dispatch(campaignID)
		default:
			// The batch consumed the last pending contact. Close out now
			// rather than leaving a running campaign nothing will continue.
			if err := c.lifecycle.Complete(ctx, campaignID, "dialer"); err != nil {
				return processed, err
			}
			c.log.Info("campaign queue drained, completed", "campaign_id", campaignID)
		}
	}
	return processed, nil
}

// dialContact settles exactly one claimed contact. Every path out of this
// function leaves the contact in a terminal status with aggregates bumped,
// so a batch never strands claimed rows.
func (c *Controller) dialContact(ctx context.Context, camp campaign.Campaign, ct campaign.Contact, phoneNumberID string) error {
	if strings.TrimSpace(ct.Phone) == "" {
		c.log.Warn("contact has no phone number", "campaign_id", camp.ID, "contact_id", ct.ID)
		return c.settleWithoutCall(ctx, camp, ct, "missing phone number")
	}

	conv, err := c.placer.Place(ctx, camp, ct, phoneNumberID)
	if err != nil {
		c.log.Error("call placement failed", "campaign_id", camp.ID, "contact_id", ct.ID, "error", err)
		return c.settleWithoutCall(ctx, camp, ct, fmt.Sprintf("call placement failed: %v", err))
	}

	snap, timedOut, err := c.poller.Await(ctx, *conv.ProviderConversationID)
	if err != nil {
		// The call was placed but we never saw its status. Settle the contact
		// provisionally and leave the conversation active so the
		// reconciliation sweep trues both up from the provider later.
		c.log.Error("status poll failed, deferring to reconciliation",
			"campaign_id", camp.ID, "contact_id", ct.ID, "conversation_id", conv.ID, "error", err)
		out := campaign.ContactOutcome{Status: campaign.ContactNoAnswer, Notes: "status poll failed"}
		if err := c.store.FinishContact(ctx, ct.ID, out); err != nil {
			return err
		}
		return c.store.AddAggregates(ctx, camp.ID, campaign.AggregateDelta{Called: 1, Failed: 1})
	}

	status := Classify(snap, timedOut)
	cost := snap.CostEuros
	if cost <= 0 {
		cost = c.pricing.EstimateCallCost(snap.DurationSeconds)
	}
	note := ""
	if timedOut {
		note = "poll budget exhausted before terminal status"
	}
	return c.settleContact(ctx, camp, ct, conv, status, snap.DurationSeconds, cost, note, timedOut)
}

func (c *Controller) settleWithoutCall(ctx context.Context, camp campaign.Campaign, ct campaign.Contact, note string) error {
	out := campaign.ContactOutcome{Status: campaign.ContactFailed, Notes: note}
	if err := c.store.FinishContact(ctx, ct.ID, out); err != nil {
		return err
	}
	return c.store.AddAggregates(ctx, camp.ID, campaign.AggregateDelta{Called: 1, Failed: 1})
}

func (c *Controller) settleContact(ctx context.Context, camp campaign.Campaign, ct campaign.Contact, conv conversation.Conversation, status campaign.ContactStatus, durationSeconds int, cost float64, note string, provisional bool) error {
	out := campaign.ContactOutcome{
		Status:              status,
		CallDurationSeconds: durationSeconds,
		CostEuros:           cost,
		Notes:               note,
	}
	if err := c.store.FinishContact(ctx, ct.ID, out); err != nil {
		c.log.Error("contact finish failed, retrying with status only",
			"contact_id", ct.ID, "error", err)
		if err := c.store.SetContactStatus(ctx, ct.ID, status, note); err != nil {
			return err
		}
	}

	// On a poll timeout duration and cost are only the last partial view.
	// Leave the conversation active and hold the charge; the reconciliation
	// sweep replaces both with the provider's final figures once the session
	// ends.
	if !provisional {
		if err := c.conversations.Finish(ctx, conv.ID, conversationStatus(status), durationSeconds, cost); err != nil {
			c.log.Warn("conversation finish failed", "conversation_id", conv.ID, "error", err)
		}
		if err := c.billing.RecordCallCharge(ctx, camp.UserID, camp.ID, conv.ID, cost); err != nil {
			c.log.Warn("call charge record failed", "conversation_id", conv.ID, "error", err)
		}
	}

	delta := campaign.AggregateDelta{Called: 1, CostEuros: cost}
	if status.Answered() {
		delta.Answered = 1
	} else {
		delta.Failed = 1
	}
	return c.store.AddAggregates(ctx, camp.ID, delta)
}
