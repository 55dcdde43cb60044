package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kiosk/internal/biometric"
	"kiosk/internal/platform/postgres"
	"kiosk/internal/staff/models"
	id "kiosk/pkg/domain"
	"kiosk/pkg/platform/sentinel"
	"kiosk/pkg/platform/tx"
)

// PostgresStore persists staff in the staff and staff_embeddings tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const staffColumns = `id, name, employee_number, role, branch_id, active, created_at`

func (s *PostgresStore) Create(ctx context.Context, st *models.Staff) error {
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO staff (`+staffColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(st.ID), st.Name, st.EmployeeNumber, st.Role, nullBranch(st.BranchID), st.Active, st.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("staff %s: %w", st.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert staff: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, staffID id.StaffID) (*models.Staff, error) {
	var (
		st       models.Staff
		rawID    uuid.UUID
		branchID uuid.NullUUID
	)
	err := tx.Pick(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE id = $1`, uuid.UUID(staffID),
	).Scan(&rawID, &st.Name, &st.EmployeeNumber, &st.Role, &branchID, &st.Active, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("staff not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find staff: %w", err)
	}
	st.ID = id.StaffID(rawID)
	if branchID.Valid {
		b := id.BranchID(branchID.UUID)
		st.BranchID = &b
	}
	return &st, nil
}

func (s *PostgresStore) AddEmbedding(ctx context.Context, staffID id.StaffID, e biometric.Embedding) error {
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx,
		`INSERT INTO staff_embeddings (staff_id, embedding) VALUES ($1, $2)`,
		uuid.UUID(staffID), pq.Float64Array(e))
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return fmt.Errorf("staff not found: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert embedding: %w", err)
	}
	return nil
}

func (s *PostgresStore) Gallery(ctx context.Context, branchID id.BranchID) (biometric.Gallery, error) {
	rows, err := tx.Pick(ctx, s.db).QueryContext(ctx, `
		SELECT e.staff_id, e.embedding
		FROM staff_embeddings e
		JOIN staff st ON st.id = e.staff_id
		WHERE st.active AND (st.branch_id IS NULL OR st.branch_id = $1)
		ORDER BY e.staff_id, e.id
	`, uuid.UUID(branchID))
	if err != nil {
		return nil, fmt.Errorf("load gallery: %w", err)
	}
	defer rows.Close()

	var gallery biometric.Gallery
	for rows.Next() {
		var (
			rawID  uuid.UUID
			values pq.Float64Array
		)
		if err := rows.Scan(&rawID, &values); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		gallery = append(gallery, biometric.Template{StaffID: id.StaffID(rawID), Embedding: biometric.Embedding(values)})
	}
	return gallery, rows.Err()
}

func nullBranch(b *id.BranchID) uuid.NullUUID {
	if b == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*b), Valid: true}
}
