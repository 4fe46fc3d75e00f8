package models

import "time"

// EnrollmentMode distinguishes a first enrollment from one that replaces the
// student's current class.
type EnrollmentMode string

const (
	EnrollmentModeCreate  EnrollmentMode = "create"
	EnrollmentModeReplace EnrollmentMode = "replace"
)

// Enrollment links a student to a class.
type Enrollment struct {
	StudentID  string    `db:"student_id" json:"student_id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// ClassEnrollment is an enrollment row joined with the class facts the
// enrollment rules depend on.
type ClassEnrollment struct {
	ClassID      string      `db:"class_id" json:"class_id"`
	AcademicYear int         `db:"academic_year" json:"academic_year"`
	Status       ClassStatus `db:"status" json:"status"`
	EnrolledAt   time.Time   `db:"enrolled_at" json:"enrolled_at"`
}

// CurrentEnrollment returns the student's active enrollment: the enrolled
// class with the highest academic year. Nil when the student has none.
func CurrentEnrollment(enrollments []ClassEnrollment) *ClassEnrollment {
	var current *ClassEnrollment
	for i := range enrollments {
		if current == nil || enrollments[i].AcademicYear > current.AcademicYear {
			current = &enrollments[i]
		}
	}
	return current
}

// EnrollmentConflict is raised by PlanEnrollment when the target class
// collides with the student's current enrollment.
type EnrollmentConflict string

const (
	// ConflictNone means the enrollment may proceed.
	ConflictNone EnrollmentConflict = ""
	// ConflictAlreadyEnrolled means the target equals the current class.
	ConflictAlreadyEnrolled EnrollmentConflict = "already_enrolled"
	// ConflictDuplicateYear means another class of the same academic year is
	// already the student's current class.
	ConflictDuplicateYear EnrollmentConflict = "duplicate_year"
)

// EnrollmentPlan is the outcome of applying the enrollment rules to a
// student's existing enrollments and a target class.
type EnrollmentPlan struct {
	Mode     EnrollmentMode
	Previous *ClassEnrollment
}

// PlanEnrollment applies the admission rules: a student with no enrollments
// gets a first (create) enrollment; otherwise the target must not be the
// current class nor share its academic year, and the current enrollment is
// replaced. The caller has already verified the class exists and is open.
func PlanEnrollment(existing []ClassEnrollment, target Class) (EnrollmentPlan, EnrollmentConflict) {
	current := CurrentEnrollment(existing)
	if current == nil {
		return EnrollmentPlan{Mode: EnrollmentModeCreate}, ConflictNone
	}
	if current.ClassID == target.ID {
		return EnrollmentPlan{}, ConflictAlreadyEnrolled
	}
	if current.AcademicYear == target.AcademicYear {
		return EnrollmentPlan{}, ConflictDuplicateYear
	}
	return EnrollmentPlan{Mode: EnrollmentModeReplace, Previous: current}, ConflictNone
}

// EnrollmentResult reports a successful admission.
type EnrollmentResult struct {
	StudentID      string         `json:"student_id"`
	RegistrationID string         `json:"registration_id"`
	ClassID        string         `json:"class_id"`
	Mode           EnrollmentMode `json:"mode"`
	ReportCards    int            `json:"report_cards"`
}
