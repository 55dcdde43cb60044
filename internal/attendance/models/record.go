package models

import (
	"math"
	"time"

	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
)

// StandardDayHours is the workday length beyond which hours count as overtime.
const StandardDayHours = 8.0

type Session string

const (
	SessionMorning   Session = "morning"
	SessionAfternoon Session = "afternoon"
)

// Action is the direction of a clock event within a session.
type Action string

const (
	ActionTimeIn  Action = "time_in"
	ActionTimeOut Action = "time_out"
)

// Transition names one of the four fields of a day's record.
type Transition struct {
	Session Session
	Action  Action
}

var (
	MorningIn    = Transition{SessionMorning, ActionTimeIn}
	MorningOut   = Transition{SessionMorning, ActionTimeOut}
	AfternoonIn  = Transition{SessionAfternoon, ActionTimeIn}
	AfternoonOut = Transition{SessionAfternoon, ActionTimeOut}
)

// transitions is the only order in which fields may be set.
var transitions = []Transition{MorningIn, MorningOut, AfternoonIn, AfternoonOut}

// Step returns the transition's position in the day, or -1 if unknown.
func (t Transition) Step() int {
	for i, tr := range transitions {
		if tr == t {
			return i
		}
	}
	return -1
}

func (t Transition) String() string {
	return string(t.Session) + "_" + string(t.Action)
}

// ParseTransition accepts the String form, e.g. "morning_time_in".
func ParseTransition(s string) (Transition, bool) {
	for _, tr := range transitions {
		if tr.String() == s {
			return tr, true
		}
	}
	return Transition{}, false
}

type Status string

const (
	StatusNotStarted  Status = "not_started"
	StatusMorningIn   Status = "morning_in"
	StatusMorningOut  Status = "morning_out"
	StatusAfternoonIn Status = "afternoon_in"
	StatusComplete    Status = "complete"
)

var statusAfter = []Status{StatusMorningIn, StatusMorningOut, StatusAfternoonIn, StatusComplete}

// Record is a staff member's attendance for one local civil date. WorkDate is
// midnight UTC of that date.
type Record struct {
	StaffID       id.StaffID   `json:"staff_id"`
	WorkDate      time.Time    `json:"work_date"`
	BranchID      *id.BranchID `json:"branch_id,omitempty"`
	MorningIn     *time.Time   `json:"morning_in,omitempty"`
	MorningOut    *time.Time   `json:"morning_out,omitempty"`
	AfternoonIn   *time.Time   `json:"afternoon_in,omitempty"`
	AfternoonOut  *time.Time   `json:"afternoon_out,omitempty"`
	TotalHours    *float64     `json:"total_hours,omitempty"`
	OvertimeHours *float64     `json:"overtime_hours,omitempty"`
	Status        Status       `json:"status"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewRecord returns the empty record used before the first clock-in of the day.
func NewRecord(staffID id.StaffID, workDate time.Time) *Record {
	return &Record{StaffID: staffID, WorkDate: workDate, Status: StatusNotStarted}
}

// WorkDate returns the civil date of at in loc, as midnight UTC.
func WorkDate(at time.Time, loc *time.Location) time.Time {
	y, m, d := at.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Field returns the instant stored for t.
func (r *Record) Field(t Transition) *time.Time {
	switch t {
	case MorningIn:
		return r.MorningIn
	case MorningOut:
		return r.MorningOut
	case AfternoonIn:
		return r.AfternoonIn
	case AfternoonOut:
		return r.AfternoonOut
	}
	return nil
}

func (r *Record) setField(t Transition, at time.Time) {
	v := at
	switch t {
	case MorningIn:
		r.MorningIn = &v
	case MorningOut:
		r.MorningOut = &v
	case AfternoonIn:
		r.AfternoonIn = &v
	case AfternoonOut:
		r.AfternoonOut = &v
	}
}

// CanApply checks that t's field is unset, every earlier field is set and at
// comes strictly after the latest of them.
func (r *Record) CanApply(t Transition, at time.Time) error {
	step := t.Step()
	if step < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "unknown attendance transition")
	}
	if r.Field(t) != nil {
		return dErrors.New(dErrors.CodeSessionAlreadyRecorded, string(t.Session)+" "+t.Action.Label()+" already recorded")
	}
	for _, prior := range transitions[:step] {
		p := r.Field(prior)
		if p == nil {
			return dErrors.New(dErrors.CodeSessionAlreadyRecorded, "previous entries must be recorded first")
		}
		if !at.After(*p) {
			return dErrors.New(dErrors.CodeSessionAlreadyRecorded, "entry must be later than the previous one")
		}
	}
	return nil
}

// Apply sets t's field and advances the status. Totals are computed when the
// day completes.
func (r *Record) Apply(t Transition, at time.Time) error {
	if err := r.CanApply(t, at); err != nil {
		return err
	}
	r.setField(t, at)
	r.Status = statusAfter[t.Step()]
	r.UpdatedAt = at
	if t == AfternoonOut {
		total, overtime := Totals(*r.MorningIn, *r.MorningOut, *r.AfternoonIn, *r.AfternoonOut)
		r.TotalHours = &total
		r.OvertimeHours = &overtime
	}
	return nil
}

// Totals returns worked hours across both sessions and the excess over a
// standard day.
func Totals(morningIn, morningOut, afternoonIn, afternoonOut time.Time) (total, overtime float64) {
	worked := morningOut.Sub(morningIn) + afternoonOut.Sub(afternoonIn)
	total = round2(worked.Hours())
	overtime = round2(math.Max(0, worked.Hours()-StandardDayHours))
	return total, overtime
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Label is the operator-facing name, e.g. "time-in".
func (a Action) Label() string {
	if a == ActionTimeIn {
		return "time-in"
	}
	return "time-out"
}
