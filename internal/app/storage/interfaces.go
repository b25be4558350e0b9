package storage

import (
	"context"

	"github.com/VanityClub/membership_layer/internal/app/domain/member"
	"github.com/VanityClub/membership_layer/internal/app/domain/payment"
)

// IntentStore persists payment intent records and webhook delivery bookkeeping.
type IntentStore interface {
	// CreateIntent stores a new record in StatusCreated. ErrConflict when the
	// intent id already exists.
	CreateIntent(ctx context.Context, rec payment.IntentRecord) (payment.IntentRecord, error)

	// GetIntent returns the record for the gateway-assigned intent id.
	GetIntent(ctx context.Context, intentID string) (payment.IntentRecord, error)

	// FinalizeIntent moves a record from StatusCreated to the given terminal
	// status. Exactly one caller wins for a given intent; losers receive
	// ErrConflict and must re-read the record to observe the terminal state.
	FinalizeIntent(ctx context.Context, intentID string, status payment.IntentStatus) (payment.IntentRecord, error)

	// ClaimUpgrade flips the upgrade-applied flag from false to true. It
	// returns true for exactly one caller per flip; false when the upgrade
	// was already claimed.
	ClaimUpgrade(ctx context.Context, intentID string) (bool, error)

	// ReleaseUpgrade clears the upgrade-applied flag after a failed ledger
	// write so a retry can claim it again.
	ReleaseUpgrade(ctx context.Context, intentID string) error

	// RecordEvent remembers a processed webhook event id. It returns false
	// when the id was seen before (duplicate delivery).
	RecordEvent(ctx context.Context, eventID string) (bool, error)
}

// MemberStore persists user tier records. The ledger service is the sole
// writer.
type MemberStore interface {
	GetMember(ctx context.Context, userRef string) (member.Record, error)
	UpsertMember(ctx context.Context, rec member.Record) (member.Record, error)
	ListMembers(ctx context.Context) ([]member.Record, error)
}
