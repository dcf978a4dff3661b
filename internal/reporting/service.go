package reporting

import (
	"context"
	"errors"

	"voiceagent-platform/internal/billing"
	"voiceagent-platform/internal/campaign"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. Implementations should read
// from settled sources (contact rows, the charge ledger), not live counters.
type Repository interface {
	GetCampaign(ctx context.Context, id string) (campaign.Campaign, error)
	ContactTallies(ctx context.Context, campaignID string) (campaign.Tallies, error)
	CountPendingContacts(ctx context.Context, campaignID string) (int, error)
	SpendByCampaign(ctx context.Context, campaignID string) (billing.CampaignSpend, error)
}

// NewRepository composes the campaign store and charge ledger into a reporting
// Repository.
func NewRepository(store campaign.Store, charges billing.Repository) Repository {
	return &compositeRepo{store: store, charges: charges}
}

type compositeRepo struct {
	store   campaign.Store
	charges billing.Repository
}

func (r *compositeRepo) GetCampaign(ctx context.Context, id string) (campaign.Campaign, error) {
	return r.store.GetCampaign(ctx, id)
}

func (r *compositeRepo) ContactTallies(ctx context.Context, campaignID string) (campaign.Tallies, error) {
	return r.store.ContactTallies(ctx, campaignID)
}

func (r *compositeRepo) CountPendingContacts(ctx context.Context, campaignID string) (int, error) {
	return r.store.CountPendingContacts(ctx, campaignID)
}

func (r *compositeRepo) SpendByCampaign(ctx context.Context, campaignID string) (billing.CampaignSpend, error) {
	return r.charges.SpendByCampaign(ctx, campaignID)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CampaignSummary(ctx context.Context, campaignID string) (CampaignSummary, error) {
	if campaignID == "" {
		return CampaignSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CampaignSummary{}, errors.New("reporting: repository not configured")
	}

	camp, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return CampaignSummary{}, err
	}
	tallies, err := s.repo.ContactTallies(ctx, campaignID)
	if err != nil {
		return CampaignSummary{}, err
	}
	pending, err := s.repo.CountPendingContacts(ctx, campaignID)
	if err != nil {
		return CampaignSummary{}, err
	}
	spend, err := s.repo.SpendByCampaign(ctx, campaignID)
	if err != nil {
		return CampaignSummary{}, err
	}

	out := CampaignSummary{
		CampaignID:    camp.ID,
		Name:          camp.Name,
		Status:        string(camp.Status),
		TotalContacts: camp.TotalContacts,
		Called:        tallies.Called,
		Answered:      tallies.Answered,
		Failed:        tallies.Failed,
		Pending:       pending,

		TotalDurationSeconds: tallies.DurationSeconds,

		CostEuros:    tallies.CostEuros,
		ChargedCalls: spend.Calls,
		ChargedEuros: spend.AmountEuros,
		StartedAt:    camp.StartedAt,
		CompletedAt:  camp.CompletedAt,
	}
	if tallies.Called > 0 {
		out.AnswerRate = float64(tallies.Answered) / float64(tallies.Called)
	}
	return out, nil
}
