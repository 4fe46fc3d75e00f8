package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolardev/escolar-api/internal/models"
)

// SessionRepository handles persistence for class sessions (aulas).
type SessionRepository struct {
	db    *sqlx.DB
	cards *ReportCardRepository
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB, cards *ReportCardRepository) *SessionRepository {
	return &SessionRepository{db: db, cards: cards}
}

const sessionColumns = `id, class_id, subject_code, teacher_id, start_time, end_time, weekdays, created_at, updated_at`

// FindByID returns a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM class_sessions WHERE id = $1`, sessionColumns)
	var session models.ClassSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByClass returns every session belonging to a class.
func (r *SessionRepository) ListByClass(ctx context.Context, classID string) ([]models.ClassSession, error) {
	query := fmt.Sprintf(`SELECT %s FROM class_sessions WHERE class_id = $1 ORDER BY created_at`, sessionColumns)
	var sessions []models.ClassSession
	if err := r.db.SelectContext(ctx, &sessions, query, classID); err != nil {
		return nil, fmt.Errorf("list class sessions: %w", err)
	}
	return sessions, nil
}

// ListDetailsByClass returns the class's sessions joined with subject info,
// in the order the transcript views present them.
func (r *SessionRepository) ListDetailsByClass(ctx context.Context, classID string) ([]models.SessionDetail, error) {
	const query = `SELECT cs.id, cs.class_id, cs.subject_code, cs.teacher_id, cs.start_time, cs.end_time, cs.weekdays,
cs.created_at, cs.updated_at, sub.name AS subject_name, sub.course_hours
FROM class_sessions cs
JOIN subjects sub ON sub.code = cs.subject_code
WHERE cs.class_id = $1
ORDER BY sub.name`
	var details []models.SessionDetail
	if err := r.db.SelectContext(ctx, &details, query, classID); err != nil {
		return nil, fmt.Errorf("list session details: %w", err)
	}
	return details, nil
}

// Create persists a session and backfills one report card per already
// enrolled student, in one transaction, so the ledger keeps covering every
// session of the class.
func (r *SessionRepository) Create(ctx context.Context, session *models.ClassSession, enrolledStudentIDs []string) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	const query = `INSERT INTO class_sessions (id, class_id, subject_code, teacher_id, start_time, end_time, weekdays, created_at, updated_at)
VALUES (:id, :class_id, :subject_code, :teacher_id, :start_time, :end_time, :weekdays, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	if len(enrolledStudentIDs) > 0 {
		if err := r.cards.BackfillForSession(ctx, tx, session.ID, enrolledStudentIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	commit = true
	return nil
}

// Update overwrites the mutable fields of a session.
func (r *SessionRepository) Update(ctx context.Context, session *models.ClassSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE class_sessions SET subject_code = :subject_code, teacher_id = :teacher_id,
start_time = :start_time, end_time = :end_time, weekdays = :weekdays, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, session)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(res)
}

// Delete removes a session; its report cards go with it.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_cards WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session report cards: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM class_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	commit = true
	return nil
}
