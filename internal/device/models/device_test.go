package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "kiosk/pkg/domain"
	dErrors "kiosk/pkg/domain-errors"
)

func TestNewKioskDevice(t *testing.T) {
	now := time.Now()
	branchID := id.BranchID(uuid.New())

	t.Run("defaults the label from the identifier", func(t *testing.T) {
		d, err := NewKioskDevice(id.KioskID(uuid.New()), branchID, "kiosk-0123456789", "", "", now)
		require.NoError(t, err)
		assert.Equal(t, "Kiosk kiosk-01", d.Label)
		assert.True(t, d.Active)
	})

	t.Run("rejects an empty identifier", func(t *testing.T) {
		_, err := NewKioskDevice(id.KioskID(uuid.New()), branchID, " ", "", "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects a missing branch", func(t *testing.T) {
		_, err := NewKioskDevice(id.KioskID(uuid.New()), id.BranchID(uuid.Nil), "kiosk-1", "", "", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestDeactivation(t *testing.T) {
	d, err := NewKioskDevice(id.KioskID(uuid.New()), id.BranchID(uuid.New()), "kiosk-1", "", "Front desk", time.Now())
	require.NoError(t, err)

	require.NoError(t, d.CanDeactivate())
	d.ApplyDeactivation()
	assert.False(t, d.Active)
	assert.True(t, dErrors.HasCode(d.CanDeactivate(), dErrors.CodeInvariantViolation))
}
