package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "kiosk/pkg/domain"
)

// Action names an activity-log entry type.
type Action string

const (
	// Trust gate
	ActionDeviceVerified   Action = "device_verified"
	ActionDeviceBlocked    Action = "device_blocked"
	ActionLocationVerified Action = "location_verified"
	ActionLocationFailed   Action = "location_failed"
	ActionPinVerified      Action = "pin_verified"
	ActionPinFailed        Action = "pin_failed"
	ActionAccessDenied     Action = "access_denied"

	// Attendance
	ActionTimeIn  Action = "time_in"
	ActionTimeOut Action = "time_out"

	// Registration
	ActionOTPRequested      Action = "otp_requested"
	ActionOTPVerified       Action = "otp_verified"
	ActionOTPFailed         Action = "otp_failed"
	ActionDeviceRegistered  Action = "device_registered"
	ActionDeviceDeactivated Action = "device_deactivated"
)

// Status is the outcome recorded with an entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusBlocked Status = "blocked"
)

// EventCategory separates entries that feed security alerting from routine activity.
type EventCategory string

const (
	CategorySecurity   EventCategory = "security"
	CategoryOperations EventCategory = "operations"
)

var actionCategories = map[Action]EventCategory{
	ActionDeviceBlocked:     CategorySecurity,
	ActionLocationFailed:    CategorySecurity,
	ActionPinFailed:         CategorySecurity,
	ActionAccessDenied:      CategorySecurity,
	ActionOTPFailed:         CategorySecurity,
	ActionDeviceRegistered:  CategorySecurity,
	ActionDeviceDeactivated: CategorySecurity,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Entry is one append-only activity-log record. BranchID and StaffID are nil
// when unknown (an unrecognized kiosk has no branch yet).
type Entry struct {
	ID        uuid.UUID
	Timestamp time.Time
	BranchID  id.BranchID
	DeviceID  string
	StaffID   id.StaffID
	Action    Action
	Status    Status
	Reason    string
	IP        string
	RequestID string
	Metadata  map[string]string
}

// Store persists activity-log entries. Entries are never read back by the
// attendance flow itself.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// Emitter accepts entries for asynchronous or synchronous persistence.
type Emitter interface {
	Emit(ctx context.Context, entry Entry) error
}

// OutboxMessage is a pending relay record written alongside an entry.
type OutboxMessage struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	Attempts    int
	CreatedAt   time.Time
}
