// Package payment defines payment intent records and their state machine.
package payment

import (
	"time"

	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
)

// IntentStatus is the lifecycle state of a payment intent record.
type IntentStatus string

// Intent statuses. Created is the only non-terminal state.
const (
	StatusCreated   IntentStatus = "created"
	StatusSucceeded IntentStatus = "succeeded"
	StatusFailed    IntentStatus = "failed"
	StatusCanceled  IntentStatus = "canceled"
)

// Terminal reports whether the status permits no further transitions.
func (s IntentStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// IntentRecord is the local record of one attempt to pay for a tier. The
// intent id is assigned by the payment gateway. Status only moves out of
// StatusCreated through a verified gateway response, either the synchronous
// confirm path or a signed webhook, and never leaves a terminal state.
type IntentRecord struct {
	IntentID         string       `json:"intentId"`
	UserRef          string       `json:"userId"`
	DisplayName      string       `json:"displayName,omitempty"`
	TierID           tier.ID      `json:"tier"`
	AmountMinorUnits int64        `json:"amount"`
	Currency         string       `json:"currency"`
	Status           IntentStatus `json:"status"`

	// UpgradeApplied records whether the ledger upgrade for a succeeded
	// intent has been committed. It lets a retry finish the job when the
	// process failed between gateway confirmation and the ledger write.
	UpgradeApplied bool `json:"upgradeApplied"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
