package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportCardAveragePendingSlots(t *testing.T) {
	card := ReportCard{Grades: []float64{8, 7, 9}}
	assert.Nil(t, card.Average())

	card.Grades = nil
	assert.Nil(t, card.Average())
}

func TestReportCardAverageAllSlotsFilled(t *testing.T) {
	card := ReportCard{Grades: []float64{8, 7, 9, 6}}
	avg := card.Average()
	require.NotNil(t, avg)
	assert.InDelta(t, 7.5, *avg, 0.0001)
}

func TestAbsenceLimit(t *testing.T) {
	// 30 course hours over 2-hour sessions: failing starts at 15 absences.
	assert.InDelta(t, 15.0, AbsenceLimit(30, 2), 0.0001)
	assert.InDelta(t, 40.0, AbsenceLimit(60, 1.5), 0.0001)
	assert.Zero(t, AbsenceLimit(30, 0))
}

func TestSituationValid(t *testing.T) {
	assert.True(t, SituationInProgress.Valid())
	assert.True(t, SituationPassed.Valid())
	assert.True(t, SituationFailed.Valid())
	assert.False(t, Situation("dropped").Valid())
}
