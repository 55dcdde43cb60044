// Package session decides which attendance transition a clock action means.
package session

import (
	"time"

	"kiosk/internal/attendance/models"
	dErrors "kiosk/pkg/domain-errors"
)

// Window is a half-open range of local wall-clock minutes since midnight.
type Window struct {
	Session models.Session
	Start   int
	End     int
}

var (
	Morning   = Window{Session: models.SessionMorning, Start: 7 * 60, End: 12 * 60}
	Afternoon = Window{Session: models.SessionAfternoon, Start: 13 * 60, End: 19 * 60}
)

func (w Window) contains(minute int) bool {
	return minute >= w.Start && minute < w.End
}

// Resolution is the resolver's answer. Reason is set when Valid is false.
type Resolution struct {
	Session models.Session
	Action  models.Action
	Valid   bool
	Reason  string
}

// Transition returns the record field this resolution targets.
func (r Resolution) Transition() models.Transition {
	return models.Transition{Session: r.Session, Action: r.Action}
}

func (r Resolution) Err() error {
	if r.Valid {
		return nil
	}
	return dErrors.New(dErrors.CodeSessionUnavailable, r.Reason)
}

// Open returns the session whose window contains the local time now. When
// none does, the reason names the next window.
func Open(now time.Time) (models.Session, string, bool) {
	minute := now.Hour()*60 + now.Minute()
	switch {
	case Morning.contains(minute):
		return models.SessionMorning, "", true
	case Afternoon.contains(minute):
		return models.SessionAfternoon, "", true
	case minute < Morning.Start:
		return "", "outside attendance hours, the morning session opens at 07:00", false
	case minute < Afternoon.Start:
		return "", "outside attendance hours, the afternoon session opens at 13:00", false
	default:
		return "", "outside attendance hours, the next morning session opens at 07:00", false
	}
}

// Resolve maps the local time now and the day's record (nil when none exists)
// to the next transition. It never mutates rec.
func Resolve(now time.Time, rec *models.Record) Resolution {
	if rec == nil {
		rec = &models.Record{}
	}
	current, reason, ok := Open(now)
	if !ok {
		return invalid("", reason)
	}

	if current == models.SessionMorning {
		switch {
		case rec.MorningIn == nil:
			return valid(models.MorningIn)
		case rec.MorningOut == nil:
			return valid(models.MorningOut)
		default:
			return invalid(models.SessionMorning, "morning already completed")
		}
	}
	switch {
	case rec.MorningIn == nil || rec.MorningOut == nil:
		return invalid(models.SessionAfternoon, "complete morning first")
	case rec.AfternoonIn == nil:
		return valid(models.AfternoonIn)
	case rec.AfternoonOut == nil:
		return valid(models.AfternoonOut)
	default:
		return invalid(models.SessionAfternoon, "day complete")
	}
}

func valid(t models.Transition) Resolution {
	return Resolution{Session: t.Session, Action: t.Action, Valid: true}
}

func invalid(s models.Session, reason string) Resolution {
	return Resolution{Session: s, Reason: reason}
}
