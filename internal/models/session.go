package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ClassSession is one subject-specific weekly meeting (aula) of a class.
// StartTime and EndTime use the "HH:MM" wall-clock format.
type ClassSession struct {
	ID          string         `db:"id" json:"id"`
	ClassID     string         `db:"class_id" json:"class_id"`
	SubjectCode string         `db:"subject_code" json:"subject_code"`
	TeacherID   string         `db:"teacher_id" json:"teacher_id"`
	StartTime   string         `db:"start_time" json:"start_time"`
	EndTime     string         `db:"end_time" json:"end_time"`
	Weekdays    pq.StringArray `db:"weekdays" json:"weekdays"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// DurationHours returns the session length in hours. The end time must be
// after the start time on the same day.
func (s ClassSession) DurationHours() (float64, error) {
	start, err := parseWallClock(s.StartTime)
	if err != nil {
		return 0, fmt.Errorf("parse start time: %w", err)
	}
	end, err := parseWallClock(s.EndTime)
	if err != nil {
		return 0, fmt.Errorf("parse end time: %w", err)
	}
	if !end.After(start) {
		return 0, fmt.Errorf("session %s ends before it starts", s.ID)
	}
	return end.Sub(start).Hours(), nil
}

func parseWallClock(value string) (time.Time, error) {
	return time.Parse("15:04", value)
}

// SessionDetail joins a session with its subject for roster views.
type SessionDetail struct {
	ClassSession
	SubjectName string `db:"subject_name" json:"subject_name"`
	CourseHours int    `db:"course_hours" json:"course_hours"`
}
