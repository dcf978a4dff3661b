package conversation

import (
	"context"
	"testing"
	"time"
)

func seed(t *testing.T, repo *MemoryRepo, c Conversation) {
	t.Helper()
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestFinish_OnlySettlesActive(t *testing.T) {
	repo := NewMemoryRepo()
	seed(t, repo, Conversation{ID: "c1", Status: StatusActive, Direction: DirectionOutbound})

	if err := repo.Finish(context.Background(), "c1", StatusEnded, 42, 0.11); err != nil {
		t.Fatalf("finish: %v", err)
	}
	got, _ := repo.Get(context.Background(), "c1")
	if got.Status != StatusEnded || got.DurationSeconds != 42 || got.CostEuros != 0.11 {
		t.Fatalf("unexpected conversation after finish: %+v", got)
	}

	// Terminal records cannot be finished again.
	if err := repo.Finish(context.Background(), "c1", StatusError, 0, 0); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double finish, got %v", err)
	}
}

func TestUpdateFromProvider_NoopWhenUnchanged(t *testing.T) {
	repo := NewMemoryRepo()
	seed(t, repo, Conversation{ID: "c1", Status: StatusEnded, DurationSeconds: 30, CostEuros: 0.08})

	before, _ := repo.Get(context.Background(), "c1")
	if err := repo.UpdateFromProvider(context.Background(), "c1", StatusEnded, 30, 0.08); err != nil {
		t.Fatalf("update: %v", err)
	}
	after, _ := repo.Get(context.Background(), "c1")
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("no-op update must not touch updated_at")
	}

	if err := repo.UpdateFromProvider(context.Background(), "c1", StatusEnded, 45, 0.12); err != nil {
		t.Fatalf("update: %v", err)
	}
	after, _ = repo.Get(context.Background(), "c1")
	if after.DurationSeconds != 45 || after.CostEuros != 0.12 {
		t.Fatalf("provider figures not applied: %+v", after)
	}
}

func TestList_FiltersAndOrders(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Unix(1700000000, 0)
	pid := "prov-2"
	seed(t, repo, Conversation{ID: "c1", UserID: "u1", Direction: DirectionOutbound, CreatedAt: base})
	seed(t, repo, Conversation{ID: "c2", UserID: "u1", Direction: DirectionInbound, ProviderConversationID: &pid, CreatedAt: base.Add(time.Minute)})
	seed(t, repo, Conversation{ID: "c3", UserID: "u2", Direction: DirectionOutbound, CreatedAt: base.Add(2 * time.Minute)})

	byUser, err := repo.List(context.Background(), "u1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(byUser) != 2 || byUser[0].ID != "c2" {
		t.Fatalf("expected [c2 c1], got %+v", byUser)
	}

	outbound, _ := repo.ListOutbound(context.Background())
	if len(outbound) != 2 || outbound[0].ID != "c3" {
		t.Fatalf("expected [c3 c1], got %+v", outbound)
	}

	withProvider, _ := repo.ListWithProviderID(context.Background())
	if len(withProvider) != 1 || withProvider[0].ID != "c2" {
		t.Fatalf("expected [c2], got %+v", withProvider)
	}
}
