package models

import (
	"time"

	"github.com/lib/pq"
)

// Situation is the tri-state academic status of a report card.
type Situation string

const (
	SituationInProgress Situation = "in_progress"
	SituationPassed     Situation = "passed"
	SituationFailed     Situation = "failed"
)

// Valid returns true when the situation is a supported value.
func (s Situation) Valid() bool {
	switch s {
	case SituationInProgress, SituationPassed, SituationFailed:
		return true
	default:
		return false
	}
}

// MaxGradeSlots is the number of unit grades a report card holds.
const MaxGradeSlots = 4

// ReportCard (boletim) is the per-student, per-session ledger record.
// Identity is the (student, session) pair; one exists for every session of
// the student's active class and for no other session.
type ReportCard struct {
	StudentID string          `db:"student_id" json:"student_id"`
	SessionID string          `db:"session_id" json:"session_id"`
	Grades    pq.Float64Array `db:"grades" json:"grades"`
	Absences  int             `db:"absences" json:"absences"`
	Situation Situation       `db:"situation" json:"situation"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Average returns the mean of the recorded grades once all slots are filled,
// or nil while any slot is pending. It is a read-side derivation and is
// never persisted.
func (rc ReportCard) Average() *float64 {
	if len(rc.Grades) < MaxGradeSlots {
		return nil
	}
	var sum float64
	for _, g := range rc.Grades {
		sum += g
	}
	avg := sum / float64(len(rc.Grades))
	return &avg
}

// AbsenceLimit derives the per-session absence ceiling from the subject's
// course load and the session length. Reaching the limit fails the student.
func AbsenceLimit(courseHours int, sessionHours float64) float64 {
	if sessionHours <= 0 {
		return 0
	}
	return float64(courseHours) / sessionHours
}

// RosterEntry identifies one student of a session roster.
type RosterEntry struct {
	StudentID      string  `db:"student_id" json:"student_id"`
	RegistrationID *string `db:"registration_id" json:"registration_id,omitempty"`
	FullName       string  `db:"full_name" json:"full_name"`
}
