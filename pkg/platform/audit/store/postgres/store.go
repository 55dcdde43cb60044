package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "kiosk/pkg/domain"
	audit "kiosk/pkg/platform/audit"
	"kiosk/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Each entry is written to activity_logs and, in the same transaction, to the
// outbox table that the relay worker publishes to Kafka.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new PostgreSQL activity-log store.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID        string            `json:"id"`
	Category  string            `json:"category"`
	Timestamp string            `json:"timestamp"`
	BranchID  string            `json:"branch_id,omitempty"`
	DeviceID  string            `json:"device_id,omitempty"`
	StaffID   string            `json:"staff_id,omitempty"`
	Action    string            `json:"action"`
	Status    string            `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	IP        string            `json:"ip,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Append writes the entry and its outbox record atomically.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	payload := outboxPayload{
		ID:        entry.ID.String(),
		Category:  string(entry.Action.Category()),
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
		DeviceID:  entry.DeviceID,
		Action:    string(entry.Action),
		Status:    string(entry.Status),
		Reason:    entry.Reason,
		IP:        entry.IP,
		RequestID: entry.RequestID,
		Metadata:  entry.Metadata,
	}
	if !entry.BranchID.IsNil() {
		payload.BranchID = entry.BranchID.String()
	}
	if !entry.StaffID.IsNil() {
		payload.StaffID = entry.StaffID.String()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}

	aggregateID := entry.ID.String()
	if !entry.BranchID.IsNil() {
		aggregateID = entry.BranchID.String()
	}

	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		exec := tx.Pick(ctx, s.db)
		_, err := exec.ExecContext(ctx, `
			INSERT INTO activity_logs (
				id, branch_id, device_id, staff_id, action, status,
				reason, ip, request_id, metadata, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			entry.ID,
			nullableUUID(uuid.UUID(entry.BranchID)),
			entry.DeviceID,
			nullableUUID(uuid.UUID(entry.StaffID)),
			string(entry.Action),
			string(entry.Status),
			entry.Reason,
			entry.IP,
			entry.RequestID,
			metadata,
			entry.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("insert activity log: %w", err)
		}

		_, err = exec.ExecContext(ctx, `
			INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			uuid.New(),
			"activity",
			aggregateID,
			string(entry.Action),
			payloadBytes,
			s.now(),
		)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
		return nil
	})
}

// ListByBranch returns the most recent entries for a branch.
func (s *Store) ListByBranch(ctx context.Context, branchID id.BranchID, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, branch_id, device_id, staff_id, action, status,
			   reason, ip, request_id, metadata
		FROM activity_logs
		WHERE branch_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, uuid.UUID(branchID), limit)
	if err != nil {
		return nil, fmt.Errorf("query activity logs: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry    audit.Entry
			branch   *uuid.UUID
			staff    *uuid.UUID
			action   string
			status   string
			metadata []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &branch, &entry.DeviceID, &staff,
			&action, &status, &entry.Reason, &entry.IP, &entry.RequestID, &metadata); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		if branch != nil {
			entry.BranchID = id.BranchID(*branch)
		}
		if staff != nil {
			entry.StaffID = id.StaffID(*staff)
		}
		entry.Action = audit.Action(action)
		entry.Status = audit.Status(status)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity logs: %w", err)
	}
	return entries, nil
}

// Pending returns unpublished outbox messages, oldest first.
func (s *Store) Pending(ctx context.Context, limit int) ([]audit.OutboxMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, attempts, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var msgs []audit.OutboxMessage
	for rows.Next() {
		var m audit.OutboxMessage
		if err := rows.Scan(&m.ID, &m.AggregateID, &m.EventType, &m.Payload, &m.Attempts, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return msgs, nil
}

// MarkPublished stamps the given outbox messages as relayed.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, v := range ids {
		raw[i] = v.String()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET published_at = $1
		WHERE id = ANY($2::uuid[]) AND published_at IS NULL
	`, s.now(), pq.Array(raw))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// MarkFailed records a failed relay attempt.
func (s *Store) MarkFailed(ctx context.Context, ids []uuid.UUID, cause error) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, v := range ids {
		raw[i] = v.String()
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox SET attempts = attempts + 1, last_error = $1
		WHERE id = ANY($2::uuid[])
	`, reason, pq.Array(raw))
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

func nullableUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}
