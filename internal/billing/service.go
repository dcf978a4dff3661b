package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCharge = errors.New("invalid call charge")

// Repository persists call charges.
type Repository interface {
	// Insert appends a charge. A charge for an already-charged conversation is
	// silently dropped; inserted reports whether the row was actually written.
	Insert(ctx context.Context, ch CallCharge) (inserted bool, err error)
	SpendByCampaign(ctx context.Context, campaignID string) (CampaignSpend, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]CallCharge, error)
}

// Service is the call-charge ledger.
//
// Money invariants:
// - one charge per conversation, enforced by the store
// - entries are append-only
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// RecordCallCharge appends a charge for a settled call. Zero-cost calls are
// not charged. Replays (retries, reconciliation re-runs) are no-ops.
func (s *Service) RecordCallCharge(ctx context.Context, userID, campaignID, conversationID string, amountEuros float64) error {
	if userID == "" || campaignID == "" || conversationID == "" {
		return ErrInvalidCharge
	}
	if amountEuros <= 0 {
		return nil
	}
	_, err := s.repo.Insert(ctx, CallCharge{
		ID:             uuid.NewString(),
		UserID:         userID,
		CampaignID:     campaignID,
		ConversationID: conversationID,
		AmountEuros:    amountEuros,
		CreatedAt:      s.clock().UTC(),
	})
	return err
}

func (s *Service) CampaignSpend(ctx context.Context, campaignID string) (CampaignSpend, error) {
	return s.repo.SpendByCampaign(ctx, campaignID)
}

func (s *Service) ListCharges(ctx context.Context, userID string, limit int) ([]CallCharge, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}
