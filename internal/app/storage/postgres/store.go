// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/VanityClub/membership_layer/internal/app/domain/member"
	"github.com/VanityClub/membership_layer/internal/app/domain/payment"
	"github.com/VanityClub/membership_layer/internal/app/domain/tier"
	"github.com/VanityClub/membership_layer/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.IntentStore = (*Store)(nil)
var _ storage.MemberStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db), nil
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate() error {
	return Migrate(s.db)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- IntentStore ------------------------------------------------------------

func (s *Store) CreateIntent(ctx context.Context, rec payment.IntentRecord) (payment.IntentRecord, error) {
	if rec.IntentID == "" {
		return payment.IntentRecord{}, errors.New("intent id is required")
	}
	now := time.Now().UTC()
	rec.Status = payment.StatusCreated
	rec.UpgradeApplied = false
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_intents (intent_id, user_ref, display_name, tier_id, amount_minor_units, currency, status, upgrade_applied, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.IntentID, rec.UserRef, rec.DisplayName, string(rec.TierID), rec.AmountMinorUnits, rec.Currency, string(rec.Status), rec.UpgradeApplied, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return payment.IntentRecord{}, mapError(err)
	}
	return rec, nil
}

func (s *Store) GetIntent(ctx context.Context, intentID string) (payment.IntentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT intent_id, user_ref, display_name, tier_id, amount_minor_units, currency, status, upgrade_applied, created_at, updated_at
		FROM payment_intents
		WHERE intent_id = $1
	`, intentID)

	rec, err := scanIntent(row)
	if err != nil {
		return payment.IntentRecord{}, mapError(err)
	}
	return rec, nil
}

// FinalizeIntent performs the conditional terminal transition. The WHERE
// clause on status guarantees exactly one caller wins a confirm/webhook race.
func (s *Store) FinalizeIntent(ctx context.Context, intentID string, status payment.IntentStatus) (payment.IntentRecord, error) {
	if !status.Terminal() {
		return payment.IntentRecord{}, fmt.Errorf("status %s is not terminal", status)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE payment_intents
		SET status = $2, updated_at = $3
		WHERE intent_id = $1 AND status = $4
	`, intentID, string(status), time.Now().UTC(), string(payment.StatusCreated))
	if err != nil {
		return payment.IntentRecord{}, mapError(err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		rec, err := s.GetIntent(ctx, intentID)
		if err != nil {
			return payment.IntentRecord{}, err
		}
		return rec, fmt.Errorf("intent %s already %s: %w", intentID, rec.Status, storage.ErrConflict)
	}
	return s.GetIntent(ctx, intentID)
}

func (s *Store) ClaimUpgrade(ctx context.Context, intentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payment_intents
		SET upgrade_applied = TRUE, updated_at = $2
		WHERE intent_id = $1 AND upgrade_applied = FALSE
	`, intentID, time.Now().UTC())
	if err != nil {
		return false, mapError(err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func (s *Store) ReleaseUpgrade(ctx context.Context, intentID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payment_intents
		SET upgrade_applied = FALSE, updated_at = $2
		WHERE intent_id = $1
	`, intentID, time.Now().UTC())
	if err != nil {
		return mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("intent %s: %w", intentID, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) RecordEvent(ctx context.Context, eventID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_events (event_id, received_at)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`, eventID, time.Now().UTC())
	if err != nil {
		return false, mapError(err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// --- MemberStore ------------------------------------------------------------

func (s *Store) GetMember(ctx context.Context, userRef string) (member.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_ref, display_name, tier_id, cumulative_spend_minor_units, serial_number, created_at, updated_at
		FROM member_tiers
		WHERE user_ref = $1
	`, userRef)

	rec, err := scanMember(row)
	if err != nil {
		return member.Record{}, mapError(err)
	}
	return rec, nil
}

func (s *Store) UpsertMember(ctx context.Context, rec member.Record) (member.Record, error) {
	if rec.UserRef == "" {
		return member.Record{}, errors.New("user ref is required")
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO member_tiers (user_ref, display_name, tier_id, cumulative_spend_minor_units, serial_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_ref) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    tier_id = EXCLUDED.tier_id,
		    cumulative_spend_minor_units = EXCLUDED.cumulative_spend_minor_units,
		    updated_at = EXCLUDED.updated_at
	`, rec.UserRef, rec.DisplayName, string(rec.TierID), rec.CumulativeSpendMinorUnits, rec.SerialNumber, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return member.Record{}, mapError(err)
	}
	return rec, nil
}

func (s *Store) ListMembers(ctx context.Context) ([]member.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_ref, display_name, tier_id, cumulative_spend_minor_units, serial_number, created_at, updated_at
		FROM member_tiers
		ORDER BY cumulative_spend_minor_units DESC, updated_at ASC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []member.Record
	for rows.Next() {
		var rec member.Record
		var tierID string
		if err := rows.Scan(&rec.UserRef, &rec.DisplayName, &tierID, &rec.CumulativeSpendMinorUnits, &rec.SerialNumber, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.TierID = tierFromString(tierID)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// --- Helpers ----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntent(row rowScanner) (payment.IntentRecord, error) {
	var rec payment.IntentRecord
	var tierID, status string
	if err := row.Scan(&rec.IntentID, &rec.UserRef, &rec.DisplayName, &tierID, &rec.AmountMinorUnits, &rec.Currency, &status, &rec.UpgradeApplied, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return payment.IntentRecord{}, err
	}
	rec.TierID = tierFromString(tierID)
	rec.Status = payment.IntentStatus(status)
	return rec, nil
}

func scanMember(row rowScanner) (member.Record, error) {
	var rec member.Record
	var tierID string
	if err := row.Scan(&rec.UserRef, &rec.DisplayName, &tierID, &rec.CumulativeSpendMinorUnits, &rec.SerialNumber, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return member.Record{}, err
	}
	rec.TierID = tierFromString(tierID)
	return rec, nil
}

func tierFromString(raw string) tier.ID {
	return tier.ID(raw)
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
