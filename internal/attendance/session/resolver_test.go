package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kiosk/internal/attendance/models"
	dErrors "kiosk/pkg/domain-errors"
)

func at(hour, minute int) time.Time {
	return time.Date(2025, 3, 4, hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestResolve(t *testing.T) {
	morningDone := &models.Record{MorningIn: ptr(at(7, 5)), MorningOut: ptr(at(11, 50))}
	afternoonIn := &models.Record{MorningIn: ptr(at(7, 5)), MorningOut: ptr(at(11, 50)), AfternoonIn: ptr(at(13, 2))}
	complete := &models.Record{
		MorningIn: ptr(at(7, 5)), MorningOut: ptr(at(11, 50)),
		AfternoonIn: ptr(at(13, 2)), AfternoonOut: ptr(at(18, 0)),
	}

	tests := []struct {
		name    string
		now     time.Time
		record  *models.Record
		want    models.Transition
		invalid string
	}{
		{name: "empty morning is time-in", now: at(8, 0), record: nil, want: models.MorningIn},
		{name: "window opens at 07:00", now: at(7, 0), record: &models.Record{}, want: models.MorningIn},
		{name: "morning in is followed by time-out", now: at(11, 50), record: &models.Record{MorningIn: ptr(at(7, 5))}, want: models.MorningOut},
		{name: "morning complete", now: at(11, 59), record: morningDone, invalid: "morning already completed"},
		{name: "afternoon needs the morning", now: at(13, 0), record: &models.Record{MorningIn: ptr(at(7, 5))}, invalid: "complete morning first"},
		{name: "afternoon time-in", now: at(13, 0), record: morningDone, want: models.AfternoonIn},
		{name: "afternoon time-out", now: at(18, 0), record: afternoonIn, want: models.AfternoonOut},
		{name: "day complete", now: at(18, 30), record: complete, invalid: "day complete"},
		{name: "before hours", now: at(6, 59), record: nil, invalid: "07:00"},
		{name: "lunch break", now: at(12, 0), record: nil, invalid: "13:00"},
		{name: "after hours", now: at(19, 0), record: afternoonIn, invalid: "next morning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.now, tt.record)
			if tt.invalid != "" {
				assert.False(t, res.Valid)
				assert.Contains(t, res.Reason, tt.invalid)
				assert.True(t, dErrors.HasCode(res.Err(), dErrors.CodeSessionUnavailable))
				return
			}
			assert.True(t, res.Valid)
			assert.Equal(t, tt.want, res.Transition())
			assert.NoError(t, res.Err())
		})
	}
}

func TestResolveIsPure(t *testing.T) {
	rec := &models.Record{MorningIn: ptr(at(7, 5))}
	snapshot := *rec

	first := Resolve(at(11, 50), rec)
	second := Resolve(at(11, 50), rec)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, *rec)
}

func TestOpen(t *testing.T) {
	s, _, ok := Open(at(12, 59))
	assert.False(t, ok)
	assert.Empty(t, s)

	s, _, ok = Open(at(13, 0))
	assert.True(t, ok)
	assert.Equal(t, models.SessionAfternoon, s)

	_, reason, ok := Open(at(19, 0))
	assert.False(t, ok)
	assert.Contains(t, reason, "07:00")
}
