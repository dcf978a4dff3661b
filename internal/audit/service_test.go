package audit

import (
	"context"
	"testing"
	"time"
)

func TestService_Record_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0) }

	err := svc.Record(context.Background(), Entry{
		CampaignID: "camp-1",
		Actor:      "user-1",
		Action:     ActionStart,
		FromStatus: "draft",
		ToStatus:   "running",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	entries := repo.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Fatalf("expected generated id")
	}
	if !entries[0].CreatedAt.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("unexpected created_at: %v", entries[0].CreatedAt)
	}
}

func TestService_Record_RejectsInvalidEntry(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Record(context.Background(), Entry{Action: ActionPause}); err != ErrInvalidEntry {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	if err := svc.Record(context.Background(), Entry{CampaignID: "c"}); err != ErrInvalidEntry {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}
