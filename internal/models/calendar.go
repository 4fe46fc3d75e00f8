package models

import "time"

// Calendar defines the window of an academic year.
type Calendar struct {
	AcademicYear int       `db:"academic_year" json:"academic_year"`
	StartDate    time.Time `db:"start_date" json:"start_date"`
	EndDate      time.Time `db:"end_date" json:"end_date"`
	SchoolDays   int       `db:"school_days" json:"school_days"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
