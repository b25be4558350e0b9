package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/VanityClub/membership_layer/internal/app/domain/member"
	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
	"github.com/VanityClub/membership_layer/internal/app/services/leaderboard"
	"github.com/VanityClub/membership_layer/internal/app/storage/memory"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(context.Background(), memory.New(), leaderboard.NewIndex(), nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return svc
}

func TestApplyUpgradeFirstPurchase(t *testing.T) {
	svc := newService(t)

	rec, err := svc.ApplyUpgrade(context.Background(), "user-1", "Alice", tier.Elite, 9999)
	if err != nil {
		t.Fatalf("apply upgrade: %v", err)
	}
	if rec.TierID != tier.Elite {
		t.Fatalf("unexpected tier: %s", rec.TierID)
	}
	if rec.CumulativeSpendMinorUnits != 9999 {
		t.Fatalf("unexpected spend: %d", rec.CumulativeSpendMinorUnits)
	}
	if rec.SerialNumber == "" {
		t.Fatalf("serial number not assigned")
	}

	if svc.Index().RankOf("user-1") != 1 {
		t.Fatalf("leaderboard not updated")
	}
}

func TestApplyUpgradeNeverDowngrades(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, err := svc.ApplyUpgrade(ctx, "user-1", "Alice", tier.God, 99999)
	if err != nil {
		t.Fatalf("first upgrade: %v", err)
	}

	second, err := svc.ApplyUpgrade(ctx, "user-1", "Alice", tier.Regular, 499)
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	if second.TierID != tier.God {
		t.Fatalf("tier downgraded to %s", second.TierID)
	}
	if second.CumulativeSpendMinorUnits != 100498 {
		t.Fatalf("spend should accumulate, got %d", second.CumulativeSpendMinorUnits)
	}
	if second.SerialNumber != first.SerialNumber {
		t.Fatalf("serial number must not change on later purchases")
	}
}

func TestApplyUpgradeValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.ApplyUpgrade(ctx, "  ", "Alice", tier.Regular, 499); err == nil {
		t.Fatalf("blank user ref should fail")
	}
	if _, err := svc.ApplyUpgrade(ctx, "user-1", "Alice", tier.Regular, -1); err == nil {
		t.Fatalf("negative amount should fail")
	}
}

func TestApplyUpgradeConcurrentAccumulation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	const purchases = 20
	var wg sync.WaitGroup
	for i := 0; i < purchases; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ApplyUpgrade(ctx, "user-1", "Alice", tier.Regular, 499); err != nil {
				t.Errorf("apply upgrade: %v", err)
			}
		}()
	}
	wg.Wait()

	rec, err := svc.GetMember(ctx, "user-1")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if rec.CumulativeSpendMinorUnits != purchases*499 {
		t.Fatalf("lost updates: spend %d", rec.CumulativeSpendMinorUnits)
	}
}

func TestNewPrimesIndexFromStore(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if _, err := store.UpsertMember(ctx, member.Record{
		UserRef:                   "user-1",
		DisplayName:               "Alice",
		TierID:                    tier.God,
		CumulativeSpendMinorUnits: 99999,
	}); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	svc, err := New(ctx, store, leaderboard.NewIndex(), nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if svc.Index().RankOf("user-1") != 1 {
		t.Fatalf("index not primed from store")
	}
}
