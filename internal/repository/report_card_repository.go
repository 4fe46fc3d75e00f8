package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/escolardev/escolar-api/internal/models"
)

// ErrDuplicateReportCard signals an insert for a (student, session) pair that
// already has a card. Callers treat it as a programming error, not user input.
var ErrDuplicateReportCard = errors.New("report card already exists")

// ReportCardRepository owns the report-card ledger: one row per
// (student, session) pair, created and deleted only alongside enrollment
// changes or session-creation cascades.
type ReportCardRepository struct {
	db *sqlx.DB
}

// NewReportCardRepository constructs the repository.
func NewReportCardRepository(db *sqlx.DB) *ReportCardRepository {
	return &ReportCardRepository{db: db}
}

const reportCardColumns = `student_id, session_id, grades, absences, situation, created_at, updated_at`

// Find returns the card for a (student, session) pair.
func (r *ReportCardRepository) Find(ctx context.Context, studentID, sessionID string) (*models.ReportCard, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_cards WHERE student_id = $1 AND session_id = $2`, reportCardColumns)
	var card models.ReportCard
	if err := r.db.GetContext(ctx, &card, query, studentID, sessionID); err != nil {
		return nil, err
	}
	return &card, nil
}

// ListByStudentAndClass returns the student's cards restricted to the
// sessions of one class.
func (r *ReportCardRepository) ListByStudentAndClass(ctx context.Context, studentID, classID string) ([]models.ReportCard, error) {
	query := fmt.Sprintf(`SELECT rc.%s FROM report_cards rc
JOIN class_sessions cs ON cs.id = rc.session_id
WHERE rc.student_id = $1 AND cs.class_id = $2`, "student_id, rc.session_id, rc.grades, rc.absences, rc.situation, rc.created_at, rc.updated_at")
	var cards []models.ReportCard
	if err := r.db.SelectContext(ctx, &cards, query, studentID, classID); err != nil {
		return nil, fmt.Errorf("list report cards by class: %w", err)
	}
	return cards, nil
}

// Roster lists the students holding a card for a session.
func (r *ReportCardRepository) Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error) {
	const query = `SELECT s.id AS student_id, s.registration_id, s.full_name
FROM report_cards rc
JOIN students s ON s.id = rc.student_id
WHERE rc.session_id = $1
ORDER BY s.full_name`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, sessionID); err != nil {
		return nil, fmt.Errorf("session roster: %w", err)
	}
	return roster, nil
}

// CreateForSessions inserts one empty card per session for a student, inside
// the caller's transaction. A unique violation means the ledger already held
// a card for the pair and aborts the whole operation.
func (r *ReportCardRepository) CreateForSessions(ctx context.Context, exec sqlx.ExtContext, studentID string, sessionIDs []string) error {
	const query = `INSERT INTO report_cards (student_id, session_id, grades, absences, situation, created_at, updated_at)
VALUES ($1, $2, '{}', 0, $3, $4, $4)`
	now := time.Now().UTC()
	for _, sessionID := range sessionIDs {
		if _, err := exec.ExecContext(ctx, query, studentID, sessionID, models.SituationInProgress, now); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("session %s: %w", sessionID, ErrDuplicateReportCard)
			}
			return fmt.Errorf("create report card: %w", err)
		}
	}
	return nil
}

// BackfillForSession inserts one empty card per student for a newly created
// session, inside the caller's transaction.
func (r *ReportCardRepository) BackfillForSession(ctx context.Context, exec sqlx.ExtContext, sessionID string, studentIDs []string) error {
	const query = `INSERT INTO report_cards (student_id, session_id, grades, absences, situation, created_at, updated_at)
VALUES ($1, $2, '{}', 0, $3, $4, $4)`
	now := time.Now().UTC()
	for _, studentID := range studentIDs {
		if _, err := exec.ExecContext(ctx, query, studentID, sessionID, models.SituationInProgress, now); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("student %s: %w", studentID, ErrDuplicateReportCard)
			}
			return fmt.Errorf("backfill report card: %w", err)
		}
	}
	return nil
}

// DeleteForClass removes the student's cards for every session of a class,
// inside the caller's transaction.
func (r *ReportCardRepository) DeleteForClass(ctx context.Context, exec sqlx.ExtContext, studentID, classID string) error {
	const query = `DELETE FROM report_cards
WHERE student_id = $1 AND session_id IN (SELECT id FROM class_sessions WHERE class_id = $2)`
	if _, err := exec.ExecContext(ctx, query, studentID, classID); err != nil {
		return fmt.Errorf("delete report cards for class: %w", err)
	}
	return nil
}

// AppendGrade adds one grade when a slot is free. Returns false when the
// card is already at capacity; the caller decides how to report that.
func (r *ReportCardRepository) AppendGrade(ctx context.Context, studentID, sessionID string, grade float64) (bool, error) {
	const query = `UPDATE report_cards
SET grades = array_append(grades, $3), updated_at = $4
WHERE student_id = $1 AND session_id = $2 AND cardinality(grades) < $5`
	res, err := r.db.ExecContext(ctx, query, studentID, sessionID, grade, time.Now().UTC(), models.MaxGradeSlots)
	if err != nil {
		return false, fmt.Errorf("append grade: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append grade result: %w", err)
	}
	return affected == 1, nil
}

// ReplaceGrades overwrites the full grade list (administrative correction).
func (r *ReportCardRepository) ReplaceGrades(ctx context.Context, studentID, sessionID string, grades []float64) error {
	const query = `UPDATE report_cards SET grades = $3, updated_at = $4
WHERE student_id = $1 AND session_id = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, sessionID, pq.Float64Array(grades), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("replace grades: %w", err)
	}
	return requireRow(res)
}

// IncrementAbsence adds one absence and flips the situation to failed when
// the new count reaches the limit. The flip is one-way: a card already
// failed stays failed. Single statement, atomic per card.
func (r *ReportCardRepository) IncrementAbsence(ctx context.Context, studentID, sessionID string, limit float64) (*models.ReportCard, error) {
	query := fmt.Sprintf(`UPDATE report_cards
SET absences = absences + 1,
    situation = CASE WHEN situation <> $3 AND absences + 1 >= $4 THEN $3 ELSE situation END,
    updated_at = $5
WHERE student_id = $1 AND session_id = $2
RETURNING %s`, reportCardColumns)
	var card models.ReportCard
	if err := r.db.GetContext(ctx, &card, query, studentID, sessionID, models.SituationFailed, limit, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &card, nil
}

// SetAbsences overwrites the absence count (administrative correction).
func (r *ReportCardRepository) SetAbsences(ctx context.Context, studentID, sessionID string, absences int) error {
	const query = `UPDATE report_cards SET absences = $3, updated_at = $4
WHERE student_id = $1 AND session_id = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, sessionID, absences, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set absences: %w", err)
	}
	return requireRow(res)
}

// SetSituation overwrites the stored situation. This is the only path that
// takes a card out of the failed state.
func (r *ReportCardRepository) SetSituation(ctx context.Context, studentID, sessionID string, situation models.Situation) error {
	const query = `UPDATE report_cards SET situation = $3, updated_at = $4
WHERE student_id = $1 AND session_id = $2`
	res, err := r.db.ExecContext(ctx, query, studentID, sessionID, situation, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set situation: %w", err)
	}
	return requireRow(res)
}
