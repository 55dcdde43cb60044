package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kiosk/internal/otp/models"
	id "kiosk/pkg/domain"
	"kiosk/pkg/geo"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/platform/tx"
)

// PostgresStore persists OTP requests in PostgreSQL. State transitions are
// conditional updates so concurrent verifiers cannot both succeed.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, code, branch_id, device_id, fingerprint, device_name, device_type,
	latitude, longitude, status, created_at, expires_at, verified_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Request) error {
	var lat, lon sql.NullFloat64
	if r.Device.Location != nil {
		lat = sql.NullFloat64{Float64: r.Device.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: r.Device.Location.Lon, Valid: true}
	}
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO otp_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULL)
	`, uuid.UUID(r.ID), r.Code, uuid.UUID(r.BranchID), r.Device.DeviceID, r.Device.Fingerprint,
		r.Device.Name, r.Device.Type, lat, lon, string(r.Status), r.CreatedAt, r.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert otp request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, requestID id.OTPRequestID) (*models.Request, error) {
	return s.queryOne(ctx, `SELECT `+requestColumns+` FROM otp_requests WHERE id = $1`, uuid.UUID(requestID))
}

func (s *PostgresStore) FindPending(ctx context.Context, branchID id.BranchID, code string) (*models.Request, error) {
	return s.queryOne(ctx, `
		SELECT `+requestColumns+` FROM otp_requests
		WHERE branch_id = $1 AND code = $2 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`, uuid.UUID(branchID), code)
}

func (s *PostgresStore) MarkVerified(ctx context.Context, requestID id.OTPRequestID, now time.Time) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE otp_requests SET status = 'verified', verified_at = $2
		WHERE id = $1 AND status = 'pending' AND expires_at > $2
	`, uuid.UUID(requestID), now)
	if err != nil {
		return fmt.Errorf("verify otp request: %w", err)
	}
	return requireOneRow(res, requestID)
}

func (s *PostgresStore) MarkExpired(ctx context.Context, requestID id.OTPRequestID) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE otp_requests SET status = 'expired'
		WHERE id = $1 AND status = 'pending'
	`, uuid.UUID(requestID))
	if err != nil {
		return fmt.Errorf("expire otp request: %w", err)
	}
	return requireOneRow(res, requestID)
}

func (s *PostgresStore) FailPending(ctx context.Context, branchID id.BranchID, deviceID string) (int, error) {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE otp_requests SET status = 'failed'
		WHERE branch_id = $1 AND device_id = $2 AND status = 'pending'
	`, uuid.UUID(branchID), deviceID)
	if err != nil {
		return 0, fmt.Errorf("fail otp requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("otp request rows affected: %w", err)
	}
	return int(n), nil
}

func requireOneRow(res sql.Result, requestID id.OTPRequestID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("otp request rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("otp request %s: %w", requestID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*models.Request, error) {
	var (
		r          models.Request
		rawID      uuid.UUID
		rawBranch  uuid.UUID
		lat, lon   sql.NullFloat64
		status     string
		verifiedAt sql.NullTime
	)
	err := tx.Pick(ctx, s.db).QueryRowContext(ctx, query, args...).Scan(
		&rawID, &r.Code, &rawBranch, &r.Device.DeviceID, &r.Device.Fingerprint, &r.Device.Name,
		&r.Device.Type, &lat, &lon, &status, &r.CreatedAt, &r.ExpiresAt, &verifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("otp request not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find otp request: %w", err)
	}
	r.ID = id.OTPRequestID(rawID)
	r.BranchID = id.BranchID(rawBranch)
	r.Status = models.Status(status)
	if lat.Valid && lon.Valid {
		r.Device.Location = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		r.VerifiedAt = &t
	}
	return &r, nil
}
