// Package member defines the authoritative user tier records and the derived
// leaderboard projection.
package member

import (
	"time"

	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
)

// Record maps a user to their current tier and cumulative spend. The ledger
// service is the sole writer; CumulativeSpendMinorUnits never decreases and
// TierID never moves to a cheaper tier.
type Record struct {
	UserRef                   string    `json:"userId"`
	DisplayName               string    `json:"displayName"`
	TierID                    tier.ID   `json:"tier"`
	CumulativeSpendMinorUnits int64     `json:"totalSpent"`
	SerialNumber              string    `json:"serialNumber"`
	CreatedAt                 time.Time `json:"createdAt"`
	UpdatedAt                 time.Time `json:"updatedAt"`
}

// LeaderboardEntry is the read-only projection of a Record used for ranking.
// Entries order by spend descending; on equal spend the earlier UpdatedAt
// ranks higher.
type LeaderboardEntry struct {
	Rank                      int       `json:"rank"`
	UserRef                   string    `json:"userId"`
	DisplayName               string    `json:"displayName"`
	TierID                    tier.ID   `json:"tier"`
	CumulativeSpendMinorUnits int64     `json:"totalSpent"`
	UpdatedAt                 time.Time `json:"-"`
}

// EntryOf projects a record into its leaderboard entry. Rank is assigned by
// the index.
func EntryOf(rec Record) LeaderboardEntry {
	return LeaderboardEntry{
		UserRef:                   rec.UserRef,
		DisplayName:               rec.DisplayName,
		TierID:                    rec.TierID,
		CumulativeSpendMinorUnits: rec.CumulativeSpendMinorUnits,
		UpdatedAt:                 rec.UpdatedAt,
	}
}
