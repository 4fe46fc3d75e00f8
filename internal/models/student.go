package models

import "time"

// Student represents a learner registered in the institution.
//
// RegistrationID is empty until the student's first enrollment, when the
// enrollment transaction assigns the definitive "<year>000<sequence>" value.
// It is immutable afterwards.
type Student struct {
	ID             string    `db:"id" json:"id"`
	RegistrationID *string   `db:"registration_id" json:"registration_id,omitempty"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          string    `db:"email" json:"email"`
	Phone          string    `db:"phone" json:"phone"`
	Address        string    `db:"address" json:"address"`
	BirthDate      time.Time `db:"birth_date" json:"birth_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
