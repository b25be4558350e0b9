package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/VanityClub/membership_layer/internal/app/domain/payment"
	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
	"github.com/VanityClub/membership_layer/internal/gateway"
)

const webhookSecret = "whsec_test"

func signedEvent(eventID, eventType, intentID string) ([]byte, string) {
	payload := []byte(fmt.Sprintf(`{"id":%q,"type":%q,"data":{"object":{"id":%q,"status":"succeeded"}}}`, eventID, eventType, intentID))
	return payload, gateway.SignatureHeader(time.Now().Unix(), payload, webhookSecret)
}

func newIngestorFixture(t *testing.T) (*fixture, *Ingestor) {
	t.Helper()
	f := newFixture(t)
	return f, NewIngestor(f.svc, webhookSecret, 0, nil)
}

func TestHandleEventSucceededSettles(t *testing.T) {
	f, ingestor := newIngestorFixture(t)
	ctx := context.Background()

	handle, _ := f.svc.CreateIntent(ctx, tier.Elite, "user-1", Contact{Username: "Alice"})

	payload, header := signedEvent("evt_1", "payment_intent.succeeded", handle.IntentID)
	receipt, err := ingestor.HandleEvent(ctx, payload, header)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if !receipt.Accepted || receipt.EventType != "payment_intent.succeeded" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	rec, err := f.store.GetIntent(ctx, handle.IntentID)
	if err != nil {
		t.Fatalf("get intent: %v", err)
	}
	if rec.Status != payment.StatusSucceeded {
		t.Fatalf("intent not finalized: %s", rec.Status)
	}

	member, err := f.ledger.GetMember(ctx, "user-1")
	if err != nil {
		t.Fatalf("ledger not settled: %v", err)
	}
	if member.TierID != tier.Elite {
		t.Fatalf("unexpected tier: %s", member.TierID)
	}
}

func TestHandleEventInvalidSignature(t *testing.T) {
	_, ingestor := newIngestorFixture(t)

	payload, _ := signedEvent("evt_1", "payment_intent.succeeded", "pi_1")
	header := gateway.SignatureHeader(time.Now().Unix(), payload, "whsec_wrong")

	_, err := ingestor.HandleEvent(context.Background(), payload, header)
	if !errors.Is(err, gateway.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestHandleEventDuplicateDelivery(t *testing.T) {
	f, ingestor := newIngestorFixture(t)
	ctx := context.Background()

	handle, _ := f.svc.CreateIntent(ctx, tier.Regular, "user-1", Contact{})

	payload, header := signedEvent("evt_dup", "payment_intent.succeeded", handle.IntentID)
	if _, err := ingestor.HandleEvent(ctx, payload, header); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	receipt, err := ingestor.HandleEvent(ctx, payload, header)
	if err != nil {
		t.Fatalf("duplicate delivery: %v", err)
	}
	if !receipt.Accepted {
		t.Fatalf("duplicate should be acknowledged")
	}

	member, err := f.ledger.GetMember(ctx, "user-1")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if member.CumulativeSpendMinorUnits != 499 {
		t.Fatalf("duplicate delivery changed the ledger: %d", member.CumulativeSpendMinorUnits)
	}
}

func TestHandleEventRedeliveryAfterLedgerFailureSettles(t *testing.T) {
	f := newFlakyFixture(t, 1)
	ingestor := NewIngestor(f.svc, webhookSecret, 0, nil)
	ctx := context.Background()

	handle, _ := f.svc.CreateIntent(ctx, tier.Elite, "user-1", Contact{Username: "Alice"})

	payload, header := signedEvent("evt_flaky", "payment_intent.succeeded", handle.IntentID)
	if _, err := ingestor.HandleEvent(ctx, payload, header); err == nil {
		t.Fatalf("ledger failure must surface so the gateway retries")
	}

	// The gateway redelivers the same event id; it must not be treated as a
	// duplicate of an outcome that never committed.
	receipt, err := ingestor.HandleEvent(ctx, payload, header)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !receipt.Accepted {
		t.Fatalf("redelivery not acknowledged")
	}

	member, err := f.ledger.GetMember(ctx, "user-1")
	if err != nil {
		t.Fatalf("upgrade lost on redelivery: %v", err)
	}
	if member.TierID != tier.Elite || member.CumulativeSpendMinorUnits != 9999 {
		t.Fatalf("unexpected member after redelivery: %+v", member)
	}

	rec, _ := f.store.GetIntent(ctx, handle.IntentID)
	if !rec.UpgradeApplied {
		t.Fatalf("upgrade claim not re-taken on redelivery")
	}
}

func TestHandleEventFailedFinalizesWithoutUpgrade(t *testing.T) {
	f, ingestor := newIngestorFixture(t)
	ctx := context.Background()

	handle, _ := f.svc.CreateIntent(ctx, tier.Regular, "user-1", Contact{})

	payload, header := signedEvent("evt_2", "payment_intent.payment_failed", handle.IntentID)
	if _, err := ingestor.HandleEvent(ctx, payload, header); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	rec, _ := f.store.GetIntent(ctx, handle.IntentID)
	if rec.Status != payment.StatusFailed {
		t.Fatalf("expected failed, got %s", rec.Status)
	}
	if _, err := f.ledger.GetMember(ctx, "user-1"); err == nil {
		t.Fatalf("failed payment must not touch the ledger")
	}
}

func TestHandleEventUnknownIntentAcked(t *testing.T) {
	_, ingestor := newIngestorFixture(t)

	payload, header := signedEvent("evt_3", "payment_intent.succeeded", "pi_never_seen")
	receipt, err := ingestor.HandleEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("unknown intent should be acknowledged: %v", err)
	}
	if !receipt.Accepted {
		t.Fatalf("expected ack")
	}
}

func TestHandleEventUnknownTypeAcked(t *testing.T) {
	_, ingestor := newIngestorFixture(t)

	payload, header := signedEvent("evt_4", "charge.refunded", "ch_1")
	receipt, err := ingestor.HandleEvent(context.Background(), payload, header)
	if err != nil {
		t.Fatalf("unknown type should be acknowledged: %v", err)
	}
	if !receipt.Accepted {
		t.Fatalf("expected ack")
	}
}

func TestHandleEventMalformedPayload(t *testing.T) {
	_, ingestor := newIngestorFixture(t)

	payload := []byte(`{"type":"payment_intent.succeeded"}`)
	header := gateway.SignatureHeader(time.Now().Unix(), payload, webhookSecret)

	if _, err := ingestor.HandleEvent(context.Background(), payload, header); err == nil {
		t.Fatalf("event without id should be rejected")
	}
}

func TestWebhookRacesConfirmWithoutDoubleApply(t *testing.T) {
	f, ingestor := newIngestorFixture(t)
	ctx := context.Background()

	handle, _ := f.svc.CreateIntent(ctx, tier.God, "user-1", Contact{})
	f.gateway.SetStatus(handle.IntentID, gateway.IntentSucceeded)

	payload, header := signedEvent("evt_race", "payment_intent.succeeded", handle.IntentID)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := ingestor.HandleEvent(ctx, payload, header); err != nil {
			t.Errorf("webhook: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := f.svc.ConfirmIntent(ctx, handle.IntentID, "user-1"); err != nil {
			t.Errorf("confirm: %v", err)
		}
	}()
	wg.Wait()

	member, err := f.ledger.GetMember(ctx, "user-1")
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if member.CumulativeSpendMinorUnits != 99999 {
		t.Fatalf("upgrade applied more than once: spend %d", member.CumulativeSpendMinorUnits)
	}
}
