package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kiosk/internal/branch/models"
	"kiosk/internal/platform/postgres"
	id "kiosk/pkg/domain"
	"kiosk/pkg/geo"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/platform/tx"
)

// PostgresStore persists branches in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const branchColumns = `id, name, active, latitude, longitude, device_verification, geo_verification,
	geo_radius_meters, pin_required, pin_hash, pin_cache_seconds, activity_logging, admin_recipients, created_at`

func (s *PostgresStore) Create(ctx context.Context, b *models.Branch) error {
	var lat, lon sql.NullFloat64
	if b.Location != nil {
		lat = sql.NullFloat64{Float64: b.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: b.Location.Lon, Valid: true}
	}
	recipients := b.AdminRecipients
	if recipients == nil {
		recipients = []string{}
	}
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO branches (`+branchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, uuid.UUID(b.ID), b.Name, b.Active, lat, lon,
		b.Policy.DeviceVerification, b.Policy.GeoVerification, b.Policy.GeoRadiusMeters,
		b.Policy.PinRequired, b.Policy.PinHash, int(b.Policy.PinCacheDuration.Seconds()),
		b.Policy.ActivityLogging, pq.Array(recipients), b.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("branch %s: %w", b.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert branch: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, branchID id.BranchID) (*models.Branch, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE id = $1`, uuid.UUID(branchID))
	b, err := scanBranch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("branch not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find branch: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Branch, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE active ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer rows.Close()

	var out []*models.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdatePolicy(ctx context.Context, branchID id.BranchID, p models.SecurityPolicy) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE branches SET device_verification = $2, geo_verification = $3, geo_radius_meters = $4,
			pin_required = $5, pin_hash = $6, pin_cache_seconds = $7, activity_logging = $8
		WHERE id = $1
	`, uuid.UUID(branchID), p.DeviceVerification, p.GeoVerification, p.GeoRadiusMeters,
		p.PinRequired, p.PinHash, int(p.PinCacheDuration.Seconds()), p.ActivityLogging)
	if err != nil {
		return fmt.Errorf("update branch policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update branch policy: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("branch not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBranch(row scanner) (*models.Branch, error) {
	var (
		b          models.Branch
		rawID      uuid.UUID
		lat, lon   sql.NullFloat64
		cacheSecs  int
		recipients pq.StringArray
	)
	if err := row.Scan(&rawID, &b.Name, &b.Active, &lat, &lon,
		&b.Policy.DeviceVerification, &b.Policy.GeoVerification, &b.Policy.GeoRadiusMeters,
		&b.Policy.PinRequired, &b.Policy.PinHash, &cacheSecs, &b.Policy.ActivityLogging,
		&recipients, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.ID = id.BranchID(rawID)
	if lat.Valid && lon.Valid {
		b.Location = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	b.Policy.PinCacheDuration = secondsToDuration(cacheSecs)
	b.AdminRecipients = []string(recipients)
	return &b, nil
}

func secondsToDuration(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}
