package models

import "time"

// Subject represents a taught discipline. CourseHours is the total course
// load used to derive per-session absence limits.
type Subject struct {
	Code         string    `db:"code" json:"code"`
	Name         string    `db:"name" json:"name"`
	CourseHours  int       `db:"course_hours" json:"course_hours"`
	Syllabus     *string   `db:"syllabus" json:"syllabus,omitempty"`
	Bibliography *string   `db:"bibliography" json:"bibliography,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
