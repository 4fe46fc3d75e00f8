package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassSessionDurationHours(t *testing.T) {
	session := ClassSession{StartTime: "08:00", EndTime: "10:00"}
	hours, err := session.DurationHours()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, hours, 0.0001)

	session = ClassSession{StartTime: "13:30", EndTime: "15:00"}
	hours, err = session.DurationHours()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, hours, 0.0001)
}

func TestClassSessionDurationHoursRejectsInverted(t *testing.T) {
	session := ClassSession{StartTime: "10:00", EndTime: "08:00"}
	_, err := session.DurationHours()
	assert.Error(t, err)

	session = ClassSession{StartTime: "10:00", EndTime: "10:00"}
	_, err = session.DurationHours()
	assert.Error(t, err)
}

func TestClassSessionDurationHoursRejectsBadFormat(t *testing.T) {
	session := ClassSession{StartTime: "8am", EndTime: "10:00"}
	_, err := session.DurationHours()
	assert.Error(t, err)
}
