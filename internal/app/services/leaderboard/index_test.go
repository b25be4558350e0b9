package leaderboard

import (
	"testing"
	"time"

	"github.com/VanityClub/membership_layer/internal/app/domain/member"
	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
)

func entry(userRef string, spend int64, updated time.Time) member.LeaderboardEntry {
	return member.LeaderboardEntry{
		UserRef:                   userRef,
		DisplayName:               userRef,
		TierID:                    tier.Regular,
		CumulativeSpendMinorUnits: spend,
		UpdatedAt:                 updated,
	}
}

func TestIndexOrdering(t *testing.T) {
	idx := NewIndex()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	idx.Upsert(entry("alice", 500, base))
	idx.Upsert(entry("bob", 10000, base.Add(time.Minute)))
	idx.Upsert(entry("carol", 500, base.Add(time.Hour)))

	page := idx.Page(0, 10)
	if len(page) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(page))
	}
	if page[0].UserRef != "bob" {
		t.Fatalf("highest spender should rank first, got %s", page[0].UserRef)
	}
	// Ties break toward the earlier update.
	if page[1].UserRef != "alice" || page[2].UserRef != "carol" {
		t.Fatalf("tie-break wrong: %s then %s", page[1].UserRef, page[2].UserRef)
	}
	for i, e := range page {
		if e.Rank != i+1 {
			t.Fatalf("entry %d has rank %d", i, e.Rank)
		}
	}
}

func TestIndexUpsertReRanks(t *testing.T) {
	idx := NewIndex()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	idx.Upsert(entry("alice", 500, base))
	idx.Upsert(entry("bob", 10000, base))

	if idx.RankOf("alice") != 2 {
		t.Fatalf("expected alice at rank 2, got %d", idx.RankOf("alice"))
	}

	idx.Upsert(entry("alice", 100499, base.Add(time.Minute)))
	if idx.RankOf("alice") != 1 {
		t.Fatalf("expected alice at rank 1 after upgrade, got %d", idx.RankOf("alice"))
	}
	if idx.RankOf("bob") != 2 {
		t.Fatalf("expected bob demoted to rank 2, got %d", idx.RankOf("bob"))
	}
	if idx.RankOf("nobody") != 0 {
		t.Fatalf("absent user should rank 0")
	}
}

func TestIndexPageBounds(t *testing.T) {
	idx := NewIndex()
	base := time.Now()
	for _, user := range []string{"a", "b", "c"} {
		idx.Upsert(entry(user, 100, base))
	}

	if got := idx.Page(2, 5); len(got) != 1 {
		t.Fatalf("expected tail page of 1, got %d", len(got))
	}
	if got := idx.Page(10, 5); len(got) != 0 {
		t.Fatalf("out of range page should be empty, got %d", len(got))
	}
	if got := idx.Page(-1, 2); len(got) != 2 {
		t.Fatalf("negative offset should clamp to start, got %d", len(got))
	}
	if got := idx.Page(0, 0); len(got) != 0 {
		t.Fatalf("zero limit should return empty page, got %d", len(got))
	}
}

func TestIndexReloadReplacesContents(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(entry("stale", 999, time.Now()))

	idx.Reload([]member.Record{
		{UserRef: "alice", CumulativeSpendMinorUnits: 500},
	})

	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry after reload, got %d", idx.Len())
	}
	if idx.RankOf("stale") != 0 {
		t.Fatalf("stale entry should be gone")
	}
	if _, ok := idx.Entry("alice"); !ok {
		t.Fatalf("reloaded entry missing")
	}
}
