package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/VanityClub/membership_layer/internal/app/domain/member"
	"github.com/VanityClub/membership_layer/internal/app/domain/payment"
	"github.com/VanityClub/membership_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu      sync.RWMutex
	intents map[string]payment.IntentRecord
	members map[string]member.Record
	events  map[string]time.Time
}

var _ storage.IntentStore = (*Store)(nil)
var _ storage.MemberStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		intents: make(map[string]payment.IntentRecord),
		members: make(map[string]member.Record),
		events:  make(map[string]time.Time),
	}
}

// IntentStore implementation --------------------------------------------------

func (s *Store) CreateIntent(_ context.Context, rec payment.IntentRecord) (payment.IntentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.IntentID == "" {
		return payment.IntentRecord{}, fmt.Errorf("intent id is required")
	}
	if _, exists := s.intents[rec.IntentID]; exists {
		return payment.IntentRecord{}, fmt.Errorf("intent %s: %w", rec.IntentID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	rec.Status = payment.StatusCreated
	rec.UpgradeApplied = false
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.intents[rec.IntentID] = rec
	return rec, nil
}

func (s *Store) GetIntent(_ context.Context, intentID string) (payment.IntentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.intents[intentID]
	if !ok {
		return payment.IntentRecord{}, fmt.Errorf("intent %s: %w", intentID, storage.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) FinalizeIntent(_ context.Context, intentID string, status payment.IntentStatus) (payment.IntentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.intents[intentID]
	if !ok {
		return payment.IntentRecord{}, fmt.Errorf("intent %s: %w", intentID, storage.ErrNotFound)
	}
	if !status.Terminal() {
		return payment.IntentRecord{}, fmt.Errorf("status %s is not terminal", status)
	}
	if rec.Status != payment.StatusCreated {
		return rec, fmt.Errorf("intent %s already %s: %w", intentID, rec.Status, storage.ErrConflict)
	}

	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	s.intents[intentID] = rec
	return rec, nil
}

func (s *Store) ClaimUpgrade(_ context.Context, intentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.intents[intentID]
	if !ok {
		return false, fmt.Errorf("intent %s: %w", intentID, storage.ErrNotFound)
	}
	if rec.UpgradeApplied {
		return false, nil
	}

	rec.UpgradeApplied = true
	rec.UpdatedAt = time.Now().UTC()
	s.intents[intentID] = rec
	return true, nil
}

func (s *Store) ReleaseUpgrade(_ context.Context, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.intents[intentID]
	if !ok {
		return fmt.Errorf("intent %s: %w", intentID, storage.ErrNotFound)
	}

	rec.UpgradeApplied = false
	rec.UpdatedAt = time.Now().UTC()
	s.intents[intentID] = rec
	return nil
}

func (s *Store) RecordEvent(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.events[eventID]; seen {
		return false, nil
	}
	s.events[eventID] = time.Now().UTC()
	return true, nil
}

// MemberStore implementation --------------------------------------------------

func (s *Store) GetMember(_ context.Context, userRef string) (member.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.members[userRef]
	if !ok {
		return member.Record{}, fmt.Errorf("member %s: %w", userRef, storage.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) UpsertMember(_ context.Context, rec member.Record) (member.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.UserRef == "" {
		return member.Record{}, fmt.Errorf("user ref is required")
	}

	now := time.Now().UTC()
	if original, ok := s.members[rec.UserRef]; ok {
		rec.CreatedAt = original.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	s.members[rec.UserRef] = rec
	return rec, nil
}

func (s *Store) ListMembers(_ context.Context) ([]member.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]member.Record, 0, len(s.members))
	for _, rec := range s.members {
		result = append(result, rec)
	}
	return result, nil
}
