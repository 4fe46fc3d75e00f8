package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentEnrollment(t *testing.T) {
	assert.Nil(t, CurrentEnrollment(nil))

	enrollments := []ClassEnrollment{
		{ClassID: "c-2023", AcademicYear: 2023},
		{ClassID: "c-2025", AcademicYear: 2025},
		{ClassID: "c-2024", AcademicYear: 2024},
	}
	current := CurrentEnrollment(enrollments)
	require.NotNil(t, current)
	assert.Equal(t, "c-2025", current.ClassID)
}

func TestPlanEnrollmentFirstEnrollment(t *testing.T) {
	plan, conflict := PlanEnrollment(nil, Class{ID: "c-1", AcademicYear: 2025})
	assert.Equal(t, ConflictNone, conflict)
	assert.Equal(t, EnrollmentModeCreate, plan.Mode)
	assert.Nil(t, plan.Previous)
}

func TestPlanEnrollmentSameClass(t *testing.T) {
	existing := []ClassEnrollment{{ClassID: "c-1", AcademicYear: 2025}}
	_, conflict := PlanEnrollment(existing, Class{ID: "c-1", AcademicYear: 2025})
	assert.Equal(t, ConflictAlreadyEnrolled, conflict)
}

func TestPlanEnrollmentDuplicateYear(t *testing.T) {
	existing := []ClassEnrollment{{ClassID: "c-1", AcademicYear: 2025}}
	_, conflict := PlanEnrollment(existing, Class{ID: "c-2", AcademicYear: 2025})
	assert.Equal(t, ConflictDuplicateYear, conflict)
}

func TestPlanEnrollmentReplacesCurrentClass(t *testing.T) {
	existing := []ClassEnrollment{
		{ClassID: "c-2023", AcademicYear: 2023},
		{ClassID: "c-2024", AcademicYear: 2024},
	}
	plan, conflict := PlanEnrollment(existing, Class{ID: "c-2025", AcademicYear: 2025})
	require.Equal(t, ConflictNone, conflict)
	assert.Equal(t, EnrollmentModeReplace, plan.Mode)
	require.NotNil(t, plan.Previous)
	assert.Equal(t, "c-2024", plan.Previous.ClassID)
}

// An older class never conflicts: only the current enrollment's year is
// protected.
func TestPlanEnrollmentIgnoresPastYears(t *testing.T) {
	existing := []ClassEnrollment{
		{ClassID: "c-2023", AcademicYear: 2023},
		{ClassID: "c-2025", AcademicYear: 2025},
	}
	plan, conflict := PlanEnrollment(existing, Class{ID: "c-2026", AcademicYear: 2026})
	require.Equal(t, ConflictNone, conflict)
	assert.Equal(t, "c-2025", plan.Previous.ClassID)
}
