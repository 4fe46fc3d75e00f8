package models

import "time"

// ClassStatus gates enrollment and grade mutations for a class.
type ClassStatus string

const (
	ClassStatusOpen   ClassStatus = "open"
	ClassStatusClosed ClassStatus = "closed"
)

// Valid returns true when the status is a supported value.
func (s ClassStatus) Valid() bool {
	return s == ClassStatusOpen || s == ClassStatusClosed
}

// Class represents a cohort (turma) for one academic year, grade and shift.
type Class struct {
	ID             string      `db:"id" json:"id"`
	Grade          int         `db:"grade" json:"grade"`
	Track          string      `db:"track" json:"track"`
	EducationLevel string      `db:"education_level" json:"education_level"`
	Shift          string      `db:"shift" json:"shift"`
	Status         ClassStatus `db:"status" json:"status"`
	RoomNumber     int         `db:"room_number" json:"room_number"`
	AcademicYear   int         `db:"academic_year" json:"academic_year"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	AcademicYear int
	Status       ClassStatus
	Page         int
	PageSize     int
}
