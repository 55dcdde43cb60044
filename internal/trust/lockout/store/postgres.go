package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kiosk/internal/trust/lockout"
	"kiosk/pkg/platform/tx"
)

// PostgresStore persists lockout records in the pin_lockouts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*lockout.Record, error) {
	record, err := scanRecord(tx.Pick(ctx, s.db).QueryRowContext(ctx, `
		SELECT identifier, failure_count, locked_until, last_failure_at
		FROM pin_lockouts
		WHERE identifier = $1
	`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pin lockout: %w", err)
	}
	return record, nil
}

// RecordFailure increments in a single statement so concurrent failures
// cannot slip under the threshold.
func (s *PostgresStore) RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*lockout.Record, error) {
	record, err := scanRecord(tx.Pick(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO pin_lockouts (identifier, failure_count, locked_until, last_failure_at)
		VALUES ($1, 1, NULL, $2)
		ON CONFLICT (identifier) DO UPDATE SET
			failure_count = CASE
				WHEN pin_lockouts.last_failure_at < $3 THEN 1
				ELSE pin_lockouts.failure_count + 1
			END,
			last_failure_at = $2
		RETURNING identifier, failure_count, locked_until, last_failure_at
	`, key, now, now.Add(-window)))
	if err != nil {
		return nil, fmt.Errorf("record pin failure: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Lock(ctx context.Context, key string, until time.Time) error {
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE pin_lockouts SET locked_until = $2, failure_count = 0
		WHERE identifier = $1
	`, key, until)
	if err != nil {
		return fmt.Errorf("lock pin entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, key string) error {
	if _, err := tx.Pick(ctx, s.db).ExecContext(ctx, `DELETE FROM pin_lockouts WHERE identifier = $1`, key); err != nil {
		return fmt.Errorf("clear pin lockout: %w", err)
	}
	return nil
}

func scanRecord(row *sql.Row) (*lockout.Record, error) {
	var (
		r           lockout.Record
		lockedUntil sql.NullTime
	)
	if err := row.Scan(&r.Identifier, &r.FailureCount, &lockedUntil, &r.LastFailureAt); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time
		r.LockedUntil = &t
	}
	return &r, nil
}
