// Package testutil provides common testing utilities and mock implementations.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/VanityClub/membership_layer/internal/gateway"
)

// MockGateway is a test implementation of the PaymentGateway interface. It
// hands out deterministic intent ids and lets tests move intents between
// states to simulate gateway-side settlement.
type MockGateway struct {
	mu      sync.RWMutex
	intents map[string]gateway.Intent
	seq     int

	// CreateErr and GetErr, when set, are returned from the corresponding
	// calls to simulate gateway failures.
	CreateErr error
	GetErr    error
}

// NewMockGateway creates an empty mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{intents: make(map[string]gateway.Intent)}
}

// CreateIntent records a new intent in the requires_payment_method state.
func (m *MockGateway) CreateIntent(_ context.Context, req gateway.CreateIntentRequest) (gateway.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return gateway.Intent{}, m.CreateErr
	}

	m.seq++
	intent := gateway.Intent{
		ID:               fmt.Sprintf("pi_test_%03d", m.seq),
		ClientSecret:     fmt.Sprintf("pi_test_%03d_secret", m.seq),
		Status:           "requires_payment_method",
		AmountMinorUnits: req.AmountMinorUnits,
		Currency:         req.Currency,
		Metadata:         req.Metadata,
	}
	m.intents[intent.ID] = intent
	return intent, nil
}

// GetIntent returns the current state of an intent.
func (m *MockGateway) GetIntent(_ context.Context, intentID string) (gateway.Intent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return gateway.Intent{}, m.GetErr
	}

	intent, ok := m.intents[intentID]
	if !ok {
		return gateway.Intent{}, fmt.Errorf("gateway error (404): no such payment_intent %s", intentID)
	}
	return intent, nil
}

// SetStatus moves an intent to the given gateway-side status.
func (m *MockGateway) SetStatus(intentID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent := m.intents[intentID]
	intent.ID = intentID
	intent.Status = status
	m.intents[intentID] = intent
}

var _ gateway.PaymentGateway = (*MockGateway)(nil)
