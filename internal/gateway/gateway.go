// Package gateway abstracts the payment processor. The subsystem needs three
// capabilities from it: create a charge intent, ask whether an intent
// succeeded, and validate a signed event notification.
package gateway

import (
	"context"
	"errors"
)

// Gateway-side intent statuses the subsystem reacts to. Anything else is
// treated as "not settled yet".
const (
	IntentSucceeded = "succeeded"
	IntentCanceled  = "canceled"
	IntentFailed    = "failed"
)

// ErrUnavailable means the gateway could not be reached or answered with a
// server error. Callers may retry; no local state was committed.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Intent is the gateway's view of one attempt to collect a specific amount.
type Intent struct {
	ID               string
	ClientSecret     string
	Status           string
	AmountMinorUnits int64
	Currency         string
	Metadata         map[string]string
}

// CreateIntentRequest carries everything the gateway needs to open an intent.
type CreateIntentRequest struct {
	AmountMinorUnits int64
	Currency         string
	ReceiptEmail     string
	Metadata         map[string]string
}

// PaymentGateway is the contract consumed by the payment verifier and the
// webhook ingestor. Implementations must honour context deadlines.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)
	GetIntent(ctx context.Context, intentID string) (Intent, error)
}
