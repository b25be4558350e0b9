// Package payments orchestrates payment intent creation and verification.
//
// Two producers can finalize the same intent: the client-driven confirm path
// and the gateway webhook. Both converge on the intent store's conditional
// finalize, which admits exactly one winner, and on the ledger upgrade path,
// which is claimed at most once per intent.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/VanityClub/membership_layer/internal/app/domain/payment"
	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
	"github.com/VanityClub/membership_layer/internal/app/services/ledger"
	"github.com/VanityClub/membership_layer/internal/app/storage"
	"github.com/VanityClub/membership_layer/internal/gateway"
	"github.com/VanityClub/membership_layer/pkg/logger"
)

// Error taxonomy surfaced to callers. Validation errors map to 4xx outcomes
// and are never retried internally; ErrGatewayUnavailable is transient and
// retryable by the caller.
var (
	ErrUnknownTier             = errors.New("unknown tier")
	ErrIntentNotFound          = errors.New("payment intent not found")
	ErrIntentOwnershipMismatch = errors.New("payment intent belongs to a different user")
	ErrGatewayUnavailable      = gateway.ErrUnavailable
)

// Contact carries optional identity hints collected at purchase time.
type Contact struct {
	Email    string
	Username string
}

// IntentHandle is returned from CreateIntent; the client secret is the opaque
// token the gateway's client-side UI needs.
type IntentHandle struct {
	IntentID         string `json:"paymentIntentId"`
	ClientSecret     string `json:"clientSecret"`
	AmountMinorUnits int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// Verification is the outcome of a confirm attempt.
type Verification struct {
	Verified         bool
	TierID           tier.ID
	AmountMinorUnits int64
	Status           payment.IntentStatus
}

// Service implements the payment verifier.
type Service struct {
	catalog *tier.Catalog
	intents storage.IntentStore
	ledger  *ledger.Service
	gateway gateway.PaymentGateway
	log     *logger.Logger
}

// New constructs a payment verifier.
func New(catalog *tier.Catalog, intents storage.IntentStore, ldg *ledger.Service, gw gateway.PaymentGateway, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payments")
	}
	return &Service{
		catalog: catalog,
		intents: intents,
		ledger:  ldg,
		gateway: gw,
		log:     log,
	}
}

// CreateIntent asks the gateway to open an intent for the tier's exact price
// and stores the local record in the created state. The result carries the
// gateway's client secret; it does not guarantee eventual success.
func (s *Service) CreateIntent(ctx context.Context, tierID tier.ID, userRef string, contact Contact) (IntentHandle, error) {
	userRef = strings.TrimSpace(userRef)
	if userRef == "" {
		return IntentHandle{}, fmt.Errorf("user ref is required")
	}

	def, ok := s.catalog.Get(tierID)
	if !ok {
		return IntentHandle{}, fmt.Errorf("%w: %s", ErrUnknownTier, tierID)
	}

	intent, err := s.gateway.CreateIntent(ctx, gateway.CreateIntentRequest{
		AmountMinorUnits: def.PriceMinorUnits,
		Currency:         def.Currency,
		ReceiptEmail:     contact.Email,
		Metadata: map[string]string{
			"userId":   userRef,
			"tier":     string(def.ID),
			"username": contact.Username,
		},
	})
	if err != nil {
		return IntentHandle{}, fmt.Errorf("create gateway intent: %w", err)
	}

	rec := payment.IntentRecord{
		IntentID:         intent.ID,
		UserRef:          userRef,
		DisplayName:      contact.Username,
		TierID:           def.ID,
		AmountMinorUnits: def.PriceMinorUnits,
		Currency:         def.Currency,
	}
	if _, err := s.intents.CreateIntent(ctx, rec); err != nil {
		return IntentHandle{}, fmt.Errorf("store intent record: %w", err)
	}

	s.log.WithField("intent_id", intent.ID).
		WithField("user_id", userRef).
		WithField("tier", string(def.ID)).
		Info("payment intent created")

	return IntentHandle{
		IntentID:         intent.ID,
		ClientSecret:     intent.ClientSecret,
		AmountMinorUnits: def.PriceMinorUnits,
		Currency:         def.Currency,
	}, nil
}

// ConfirmIntent asks the gateway for the current state of an intent and, on
// success, applies the tier upgrade exactly once. Duplicate confirms of a
// succeeded intent are idempotent no-ops on the ledger.
func (s *Service) ConfirmIntent(ctx context.Context, intentID, userRef string) (Verification, error) {
	rec, err := s.intents.GetIntent(ctx, intentID)
	if errors.Is(err, storage.ErrNotFound) {
		return Verification{}, fmt.Errorf("%w: %s", ErrIntentNotFound, intentID)
	}
	if err != nil {
		return Verification{}, err
	}
	if rec.UserRef != strings.TrimSpace(userRef) {
		return Verification{}, fmt.Errorf("%w: intent %s", ErrIntentOwnershipMismatch, intentID)
	}

	// Already finalized locally: answer from the record without touching the
	// gateway, finishing a dangling upgrade if one is owed.
	if rec.Status.Terminal() {
		return s.verificationFor(ctx, rec)
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return Verification{}, fmt.Errorf("confirm intent %s: %w", intentID, err)
	}

	switch intent.Status {
	case gateway.IntentSucceeded:
		rec, err = s.finalize(ctx, rec.IntentID, payment.StatusSucceeded)
		if err != nil {
			return Verification{}, err
		}
		return s.verificationFor(ctx, rec)

	case gateway.IntentCanceled:
		rec, err = s.finalize(ctx, rec.IntentID, payment.StatusCanceled)
		if err != nil {
			return Verification{}, err
		}
		return Verification{Verified: false, Status: rec.Status}, nil

	case gateway.IntentFailed:
		rec, err = s.finalize(ctx, rec.IntentID, payment.StatusFailed)
		if err != nil {
			return Verification{}, err
		}
		return Verification{Verified: false, Status: rec.Status}, nil

	default:
		// Not settled on the gateway side yet; nothing to commit.
		return Verification{Verified: false, Status: rec.Status}, nil
	}
}

// finalize performs the conditional terminal transition. Losing the race is
// not an error: the winner already committed the same outcome, so the loser
// proceeds with the re-read terminal record.
func (s *Service) finalize(ctx context.Context, intentID string, status payment.IntentStatus) (payment.IntentRecord, error) {
	rec, err := s.intents.FinalizeIntent(ctx, intentID, status)
	if errors.Is(err, storage.ErrConflict) {
		s.log.WithField("intent_id", intentID).
			WithField("status", string(rec.Status)).
			Debug("intent already finalized by a concurrent caller")
		return rec, nil
	}
	if err != nil {
		return payment.IntentRecord{}, err
	}
	return rec, nil
}

// verificationFor turns a terminal record into the caller-facing outcome,
// applying the ledger upgrade when this caller claims it.
func (s *Service) verificationFor(ctx context.Context, rec payment.IntentRecord) (Verification, error) {
	if rec.Status != payment.StatusSucceeded {
		return Verification{Verified: false, Status: rec.Status}, nil
	}

	if err := s.settle(ctx, rec); err != nil {
		return Verification{}, err
	}
	return Verification{
		Verified:         true,
		TierID:           rec.TierID,
		AmountMinorUnits: rec.AmountMinorUnits,
		Status:           payment.StatusSucceeded,
	}, nil
}

// settle applies the tier upgrade for a succeeded intent at most once. The
// claim is released on ledger failure so a later retry can finish the job;
// the intent record itself stays succeeded throughout (no gateway-side
// compensation is ever required).
func (s *Service) settle(ctx context.Context, rec payment.IntentRecord) error {
	claimed, err := s.intents.ClaimUpgrade(ctx, rec.IntentID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	if _, err := s.ledger.ApplyUpgrade(ctx, rec.UserRef, rec.DisplayName, rec.TierID, rec.AmountMinorUnits); err != nil {
		if releaseErr := s.intents.ReleaseUpgrade(ctx, rec.IntentID); releaseErr != nil {
			s.log.WithError(releaseErr).
				WithField("intent_id", rec.IntentID).
				Error("release upgrade claim after ledger failure")
		}
		return fmt.Errorf("apply upgrade for intent %s: %w", rec.IntentID, err)
	}
	return nil
}
