package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/VanityClub/membership_layer/internal/app/domain/payment"
	"github.com/VanityClub/membership_layer/internal/app/metrics"
	"github.com/VanityClub/membership_layer/internal/app/storage"
	"github.com/VanityClub/membership_layer/internal/gateway"
	"github.com/VanityClub/membership_layer/pkg/logger"
)

// Ingestor consumes signed gateway webhook events. Events are acknowledged
// whenever re-delivery would not help; only transient faults are surfaced so
// the gateway retries them.
type Ingestor struct {
	payments  *Service
	secret    string
	tolerance time.Duration
	log       *logger.Logger
}

// Receipt reports what the ingestor did with an event.
type Receipt struct {
	Accepted  bool   `json:"received"`
	EventType string `json:"event,omitempty"`
	IntentID  string `json:"-"`
}

// NewIngestor constructs a webhook ingestor sharing the verifier's stores.
func NewIngestor(payments *Service, secret string, tolerance time.Duration, log *logger.Logger) *Ingestor {
	if tolerance <= 0 {
		tolerance = gateway.DefaultSignatureTolerance
	}
	if log == nil {
		log = logger.NewDefault("webhook")
	}
	return &Ingestor{
		payments:  payments,
		secret:    secret,
		tolerance: tolerance,
		log:       log,
	}
}

// HandleEvent verifies the signature and applies the event. Signature failures
// return gateway.ErrInvalidSignature; malformed bodies are rejected without
// retry; duplicate deliveries and unrecognized event types are acknowledged
// untouched.
func (in *Ingestor) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) (Receipt, error) {
	if err := gateway.VerifySignature(payload, signatureHeader, in.secret, in.tolerance); err != nil {
		return Receipt{}, err
	}
	if !gjson.ValidBytes(payload) {
		return Receipt{}, fmt.Errorf("malformed event payload")
	}

	eventID := gjson.GetBytes(payload, "id").String()
	eventType := gjson.GetBytes(payload, "type").String()
	intentID := gjson.GetBytes(payload, "data.object.id").String()
	if eventID == "" || eventType == "" {
		return Receipt{}, fmt.Errorf("event missing id or type")
	}

	log := in.log.WithField("event_id", eventID).
		WithField("event_type", eventType).
		WithField("intent_id", intentID)

	var err error
	switch eventType {
	case "payment_intent.succeeded":
		err = in.applyOutcome(ctx, intentID, payment.StatusSucceeded, log)
	case "payment_intent.payment_failed":
		err = in.applyOutcome(ctx, intentID, payment.StatusFailed, log)
	case "payment_intent.canceled":
		err = in.applyOutcome(ctx, intentID, payment.StatusCanceled, log)
	default:
		log.Debug("ignoring unhandled webhook event type")
	}
	if err != nil {
		metrics.RecordWebhookEvent(eventType, "error")
		return Receipt{}, err
	}

	// The event id is recorded only once the outcome has committed, so a
	// redelivery after a transient failure runs the outcome again instead of
	// being swallowed as a duplicate. Re-running a committed outcome is safe:
	// finalize tolerates the conflict and the upgrade claim fires once.
	firstDelivery, err := in.payments.intents.RecordEvent(ctx, eventID)
	if err != nil {
		return Receipt{}, fmt.Errorf("record webhook event: %w", err)
	}
	if !firstDelivery {
		log.Debug("duplicate webhook delivery acknowledged")
		metrics.RecordWebhookEvent(eventType, "duplicate")
		return Receipt{Accepted: true, EventType: eventType, IntentID: intentID}, nil
	}
	metrics.RecordWebhookEvent(eventType, "processed")
	return Receipt{Accepted: true, EventType: eventType, IntentID: intentID}, nil
}

// applyOutcome finalizes the local record per the gateway's verdict and, on
// success, settles the upgrade. An intent we never created is acknowledged;
// the gateway's metadata is not trusted to reconstruct a record on the fly.
func (in *Ingestor) applyOutcome(ctx context.Context, intentID string, status payment.IntentStatus, log *logger.Logger) error {
	if intentID == "" {
		log.Warn("webhook event carries no payment intent id")
		return nil
	}

	rec, err := in.payments.finalize(ctx, intentID, status)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("webhook for unknown payment intent acknowledged")
		return nil
	}
	if err != nil {
		return err
	}

	if rec.Status == payment.StatusSucceeded {
		if err := in.payments.settle(ctx, rec); err != nil {
			return err
		}
		log.Info("webhook settled payment intent")
	}
	return nil
}
