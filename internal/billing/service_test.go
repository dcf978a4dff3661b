package billing

import (
	"context"
	"testing"
)

func TestRecordCallCharge_IdempotentPerConversation(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	for i := 0; i < 3; i++ {
		if err := svc.RecordCallCharge(context.Background(), "u1", "camp-1", "conv-1", 0.15); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if got := len(repo.All()); got != 1 {
		t.Fatalf("expected 1 charge, got %d", got)
	}

	spend, err := svc.CampaignSpend(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if spend.Calls != 1 || spend.AmountEuros != 0.15 {
		t.Fatalf("unexpected spend: %+v", spend)
	}
}

func TestRecordCallCharge_SkipsZeroCost(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.RecordCallCharge(context.Background(), "u1", "camp-1", "conv-1", 0); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := len(repo.All()); got != 0 {
		t.Fatalf("zero-cost call must not be charged, got %d entries", got)
	}
}

func TestRecordCallCharge_RejectsMissingKeys(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.RecordCallCharge(context.Background(), "", "camp-1", "conv-1", 0.10); err != ErrInvalidCharge {
		t.Fatalf("expected ErrInvalidCharge, got %v", err)
	}
	if err := svc.RecordCallCharge(context.Background(), "u1", "camp-1", "", 0.10); err != ErrInvalidCharge {
		t.Fatalf("expected ErrInvalidCharge, got %v", err)
	}
}
