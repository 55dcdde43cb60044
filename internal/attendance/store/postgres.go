package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kiosk/internal/attendance/models"
	id "kiosk/pkg/domain"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/platform/tx"
)

// PostgresStore persists attendance in attendance_records, one row per
// (staff_id, work_date).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `staff_id, work_date, branch_id, morning_in, morning_out, afternoon_in, afternoon_out,
	total_hours, overtime_hours, status, updated_at`

// columns maps each transition to its column. Values are never user input.
var columns = map[models.Transition]string{
	models.MorningIn:    "morning_in",
	models.MorningOut:   "morning_out",
	models.AfternoonIn:  "afternoon_in",
	models.AfternoonOut: "afternoon_out",
}

var previous = map[models.Transition]string{
	models.MorningOut:   "morning_in",
	models.AfternoonIn:  "morning_out",
	models.AfternoonOut: "afternoon_in",
}

func (s *PostgresStore) Find(ctx context.Context, staffID id.StaffID, workDate time.Time) (*models.Record, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM attendance_records WHERE staff_id = $1 AND work_date = $2`,
		uuid.UUID(staffID), workDate)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attendance record not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return r, nil
}

// Save writes t's column only while it is still NULL in the stored row and the
// preceding column is set and earlier. Zero affected rows means another kiosk
// won the race.
func (s *PostgresStore) Save(ctx context.Context, rec *models.Record, t models.Transition) error {
	col, ok := columns[t]
	at := rec.Field(t)
	if !ok || at == nil {
		return fmt.Errorf("transition %s not set on record: %w", t, sentinel.ErrInvalidState)
	}

	var (
		res sql.Result
		err error
	)
	exec := tx.Pick(ctx, s.db)
	if t == models.MorningIn {
		res, err = exec.ExecContext(ctx, `
			INSERT INTO attendance_records (staff_id, work_date, branch_id, morning_in, status, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (staff_id, work_date) DO UPDATE
				SET morning_in = EXCLUDED.morning_in, branch_id = EXCLUDED.branch_id,
					status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
				WHERE attendance_records.morning_in IS NULL
		`, uuid.UUID(rec.StaffID), rec.WorkDate, nullBranch(rec.BranchID), *at, string(rec.Status), rec.UpdatedAt)
	} else {
		prev := previous[t]
		res, err = exec.ExecContext(ctx, `
			UPDATE attendance_records
			SET `+col+` = $3, status = $4, total_hours = $5, overtime_hours = $6, updated_at = $7
			WHERE staff_id = $1 AND work_date = $2
				AND morning_in IS NOT NULL
				AND `+col+` IS NULL
				AND `+prev+` IS NOT NULL AND `+prev+` < $3
		`, uuid.UUID(rec.StaffID), rec.WorkDate, *at, string(rec.Status),
			nullFloat(rec.TotalHours), nullFloat(rec.OvertimeHours), rec.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("save attendance %s: %w", t, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save attendance %s: %w", t, err)
	}
	if n == 0 {
		return fmt.Errorf("%s for %s: %w", t, rec.StaffID, sentinel.ErrConflict)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		r                    models.Record
		staffID              uuid.UUID
		branchID             uuid.NullUUID
		mIn, mOut, aIn, aOut sql.NullTime
		total, overtime      sql.NullFloat64
		status               string
	)
	if err := row.Scan(&staffID, &r.WorkDate, &branchID, &mIn, &mOut, &aIn, &aOut,
		&total, &overtime, &status, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.StaffID = id.StaffID(staffID)
	r.WorkDate = time.Date(r.WorkDate.Year(), r.WorkDate.Month(), r.WorkDate.Day(), 0, 0, 0, 0, time.UTC)
	if branchID.Valid {
		b := id.BranchID(branchID.UUID)
		r.BranchID = &b
	}
	r.MorningIn = timePtr(mIn)
	r.MorningOut = timePtr(mOut)
	r.AfternoonIn = timePtr(aIn)
	r.AfternoonOut = timePtr(aOut)
	r.TotalHours = floatPtr(total)
	r.OvertimeHours = floatPtr(overtime)
	r.Status = models.Status(status)
	return &r, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullBranch(b *id.BranchID) uuid.NullUUID {
	if b == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*b), Valid: true}
}
