package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kiosk/internal/device/models"
	"kiosk/internal/platform/postgres"
	id "kiosk/pkg/domain"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/platform/tx"
)

const activeDeviceConstraint = "kiosk_devices_active_uniq"

// PostgresStore persists kiosk devices in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const deviceColumns = `id, branch_id, device_id, fingerprint, label, active, last_used_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, d *models.KioskDevice) error {
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO kiosk_devices (`+deviceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(d.ID), uuid.UUID(d.BranchID), d.DeviceID, d.Fingerprint, d.Label, d.Active,
		nullTime(d.LastUsedAt), d.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("active device already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, kioskID id.KioskID) (*models.KioskDevice, error) {
	return s.queryOne(ctx, `SELECT `+deviceColumns+` FROM kiosk_devices WHERE id = $1`, uuid.UUID(kioskID))
}

func (s *PostgresStore) FindActive(ctx context.Context, branchID id.BranchID, deviceID string) (*models.KioskDevice, error) {
	return s.queryOne(ctx, `
		SELECT `+deviceColumns+` FROM kiosk_devices
		WHERE branch_id = $1 AND device_id = $2 AND active
	`, uuid.UUID(branchID), deviceID)
}

func (s *PostgresStore) ListByBranch(ctx context.Context, branchID id.BranchID) ([]*models.KioskDevice, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx, `
		SELECT `+deviceColumns+` FROM kiosk_devices
		WHERE branch_id = $1
		ORDER BY created_at DESC
	`, uuid.UUID(branchID))
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []*models.KioskDevice
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Execute locks the row with FOR UPDATE for the validate/mutate pair.
func (s *PostgresStore) Execute(ctx context.Context, kioskID id.KioskID, validate func(*models.KioskDevice) error, mutate func(*models.KioskDevice)) (*models.KioskDevice, error) {
	var out *models.KioskDevice
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
			`SELECT `+deviceColumns+` FROM kiosk_devices WHERE id = $1 FOR UPDATE`, uuid.UUID(kioskID))
		d, err := scanDevice(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("device not found: %w", sentinel.ErrNotFound)
			}
			return fmt.Errorf("lock device: %w", err)
		}
		if err := validate(d); err != nil {
			return err
		}
		mutate(d)
		if _, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
			UPDATE kiosk_devices SET label = $2, active = $3, last_used_at = $4 WHERE id = $1
		`, uuid.UUID(d.ID), d.Label, d.Active, nullTime(d.LastUsedAt)); err != nil {
			if postgres.IsUniqueViolation(err, activeDeviceConstraint) {
				return fmt.Errorf("active device already registered: %w", sentinel.ErrConflict)
			}
			return fmt.Errorf("update device: %w", err)
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) TouchLastUsed(ctx context.Context, kioskID id.KioskID, at time.Time) error {
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`UPDATE kiosk_devices SET last_used_at = $2 WHERE id = $1`, uuid.UUID(kioskID), at)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("device not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*models.KioskDevice, error) {
	d, err := scanDevice(tx.Pick(ctx, s.db).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("device not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find device: %w", err)
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (*models.KioskDevice, error) {
	var (
		d          models.KioskDevice
		rawID      uuid.UUID
		rawBranch  uuid.UUID
		lastUsedAt sql.NullTime
	)
	if err := row.Scan(&rawID, &rawBranch, &d.DeviceID, &d.Fingerprint, &d.Label, &d.Active,
		&lastUsedAt, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.ID = id.KioskID(rawID)
	d.BranchID = id.BranchID(rawBranch)
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		d.LastUsedAt = &t
	}
	return &d, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
