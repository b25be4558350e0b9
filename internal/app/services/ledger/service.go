// Package ledger owns the authoritative mapping from user to tier and
// cumulative spend.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/VanityClub/membership_layer/internal/app/domain/member"
	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
	"github.com/VanityClub/membership_layer/internal/app/metrics"
	"github.com/VanityClub/membership_layer/internal/app/services/leaderboard"
	"github.com/VanityClub/membership_layer/internal/app/storage"
	"github.com/VanityClub/membership_layer/pkg/logger"
)

// Service is the single writer of member tier records. Every upgrade updates
// the leaderboard index inside the same critical section, so a caller that
// observes a successful ApplyUpgrade is guaranteed the leaderboard reflects it.
type Service struct {
	mu      sync.Mutex
	members storage.MemberStore
	index   *leaderboard.Index
	log     *logger.Logger
}

// New constructs the ledger service and primes the leaderboard index from the
// member store.
func New(ctx context.Context, members storage.MemberStore, index *leaderboard.Index, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	if index == nil {
		index = leaderboard.NewIndex()
	}

	records, err := members.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("prime leaderboard index: %w", err)
	}
	index.Reload(records)

	return &Service{
		members: members,
		index:   index,
		log:     log,
	}, nil
}

// Index exposes the leaderboard view maintained by the ledger.
func (s *Service) Index() *leaderboard.Index {
	return s.index
}

// GetMember returns the current record for a user.
func (s *Service) GetMember(ctx context.Context, userRef string) (member.Record, error) {
	return s.members.GetMember(ctx, userRef)
}

// ApplyUpgrade credits a verified payment to a user. Cumulative spend is
// monotonically non-decreasing; the tier only moves toward the more expensive
// end of the catalog. A serial number is assigned once, on the user's first
// successful payment.
func (s *Service) ApplyUpgrade(ctx context.Context, userRef, displayName string, tierID tier.ID, amountMinorUnits int64) (member.Record, error) {
	userRef = strings.TrimSpace(userRef)
	if userRef == "" {
		return member.Record{}, fmt.Errorf("user ref is required")
	}
	if amountMinorUnits < 0 {
		return member.Record{}, fmt.Errorf("amount must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rec, err := s.members.GetMember(ctx, userRef)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		rec = member.Record{
			UserRef:      userRef,
			SerialNumber: uuid.NewString(),
			CreatedAt:    now,
		}
	case err != nil:
		return member.Record{}, err
	}

	rec.CumulativeSpendMinorUnits += amountMinorUnits
	if tier.Rank(tierID) > tier.Rank(rec.TierID) {
		rec.TierID = tierID
	}
	if displayName != "" {
		rec.DisplayName = displayName
	}
	rec.UpdatedAt = now

	rec, err = s.members.UpsertMember(ctx, rec)
	if err != nil {
		return member.Record{}, err
	}

	s.index.Upsert(member.EntryOf(rec))
	metrics.RecordTierUpgrade(string(rec.TierID))

	s.log.WithField("user_id", userRef).
		WithField("tier", string(rec.TierID)).
		WithField("total_spent", rec.CumulativeSpendMinorUnits).
		Info("tier upgrade applied")
	return rec, nil
}
