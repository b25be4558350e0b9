package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStripeClientCreateIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/payment_intents" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		user, _, ok := r.BasicAuth()
		if !ok || user != "sk_test_123" {
			t.Errorf("missing or wrong basic auth user: %q", user)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("amount"); got != "9999" {
			t.Errorf("unexpected amount: %q", got)
		}
		if got := r.PostForm.Get("currency"); got != "usd" {
			t.Errorf("unexpected currency: %q", got)
		}
		if got := r.PostForm.Get("metadata[userId]"); got != "user-1" {
			t.Errorf("unexpected metadata userId: %q", got)
		}
		if got := r.PostForm.Get("automatic_payment_methods[enabled]"); got != "true" {
			t.Errorf("automatic payment methods not enabled")
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "pi_123",
			"client_secret": "pi_123_secret",
			"status":        "requires_payment_method",
			"amount":        9999,
			"currency":      "usd",
			"metadata":      map[string]string{"userId": "user-1"},
		})
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk_test_123", BaseURL: server.URL})
	intent, err := client.CreateIntent(context.Background(), CreateIntentRequest{
		AmountMinorUnits: 9999,
		Currency:         "usd",
		Metadata:         map[string]string{"userId": "user-1"},
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if intent.Metadata["userId"] != "user-1" {
		t.Fatalf("metadata not parsed: %+v", intent.Metadata)
	}
}

func TestStripeClientGetIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasSuffix(r.URL.Path, "/payment_intents/pi_123") {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pi_123",
			"status": "succeeded",
			"amount": 9999,
		})
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk_test_123", BaseURL: server.URL})
	intent, err := client.GetIntent(context.Background(), "pi_123")
	if err != nil {
		t.Fatalf("get intent: %v", err)
	}
	if intent.Status != IntentSucceeded {
		t.Fatalf("unexpected status: %s", intent.Status)
	}
}

func TestStripeClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"message": "Your card was declined."},
		})
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk_test_123", BaseURL: server.URL})
	_, err := client.GetIntent(context.Background(), "pi_declined")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatalf("4xx must not be treated as unavailable: %v", err)
	}
	if !strings.Contains(err.Error(), "declined") {
		t.Fatalf("error should carry gateway message: %v", err)
	}
}

func TestStripeClientServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk_test_123", BaseURL: server.URL})
	_, err := client.GetIntent(context.Background(), "pi_123")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestStripeClientTransportErrorIsUnavailable(t *testing.T) {
	client := NewStripeClient(StripeConfig{SecretKey: "sk_test_123", BaseURL: "http://127.0.0.1:1"})
	_, err := client.GetIntent(context.Background(), "pi_123")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
