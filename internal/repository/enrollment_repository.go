package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/escolardev/escolar-api/internal/models"
)

// Enrollment rule violations surfaced from the enrollment transaction.
var (
	ErrAlreadyEnrolled = errors.New("student already enrolled in class")
	ErrDuplicateYear   = errors.New("student already enrolled for academic year")
	ErrStudentNotFound = errors.New("student not found")
)

// EnrollmentRepository performs admission changes. Every mutation of the
// enrollment set and its report cards happens inside one transaction with
// the student row locked, so two concurrent enrolls for the same student
// serialize instead of producing two "current" classes.
type EnrollmentRepository struct {
	db    *sqlx.DB
	cards *ReportCardRepository
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB, cards *ReportCardRepository) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, cards: cards}
}

// ListByStudent returns the student's enrollments joined with class facts.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ClassEnrollment, error) {
	const query = `SELECT e.class_id, c.academic_year, c.status, e.enrolled_at
FROM enrollments e
JOIN classes c ON c.id = e.class_id
WHERE e.student_id = $1
ORDER BY c.academic_year`
	var enrollments []models.ClassEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// ListStudentIDsByClass returns the ids of every student enrolled in a class.
func (r *EnrollmentRepository) ListStudentIDsByClass(ctx context.Context, classID string) ([]string, error) {
	const query = `SELECT student_id FROM enrollments WHERE class_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return ids, nil
}

// Enroll admits a student into the target class. The whole cascade commits
// or rolls back as a unit: lock, rule check, registration-id assignment,
// old-card deletion, enrollment swap, new-card creation.
func (r *EnrollmentRepository) Enroll(ctx context.Context, studentID string, target models.Class, sessionIDs []string) (*models.EnrollmentResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var registrationID *string
	if err := tx.QueryRowxContext(ctx, `SELECT registration_id FROM students WHERE id = $1 FOR UPDATE`, studentID).Scan(&registrationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("lock student: %w", err)
	}

	const enrollmentsQuery = `SELECT e.class_id, c.academic_year, c.status, e.enrolled_at
FROM enrollments e
JOIN classes c ON c.id = e.class_id
WHERE e.student_id = $1`
	var existing []models.ClassEnrollment
	if err := tx.SelectContext(ctx, &existing, enrollmentsQuery, studentID); err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}

	plan, conflict := models.PlanEnrollment(existing, target)
	switch conflict {
	case models.ConflictAlreadyEnrolled:
		return nil, ErrAlreadyEnrolled
	case models.ConflictDuplicateYear:
		return nil, ErrDuplicateYear
	}

	if registrationID == nil {
		assigned, err := r.assignRegistrationID(ctx, tx, studentID, target.AcademicYear)
		if err != nil {
			return nil, err
		}
		registrationID = &assigned
	}

	if plan.Mode == models.EnrollmentModeReplace {
		if err := r.cards.DeleteForClass(ctx, tx, studentID, plan.Previous.ClassID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE student_id = $1 AND class_id = $2`, studentID, plan.Previous.ClassID); err != nil {
			return nil, fmt.Errorf("remove previous enrollment: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO enrollments (student_id, class_id, enrolled_at) VALUES ($1, $2, $3)`,
		studentID, target.ID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}

	if err := r.cards.CreateForSessions(ctx, tx, studentID, sessionIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment: %w", err)
	}
	commit = true

	return &models.EnrollmentResult{
		StudentID:      studentID,
		RegistrationID: *registrationID,
		ClassID:        target.ID,
		Mode:           plan.Mode,
		ReportCards:    len(sessionIDs),
	}, nil
}

// assignRegistrationID consumes the dedicated sequence inside the enrollment
// transaction. The sequence is monotonic and never reused, so deleted
// students cannot cause id collisions.
func (r *EnrollmentRepository) assignRegistrationID(ctx context.Context, tx *sqlx.Tx, studentID string, academicYear int) (string, error) {
	var seq int64
	if err := tx.GetContext(ctx, &seq, `SELECT nextval('student_registration_seq')`); err != nil {
		return "", fmt.Errorf("next registration sequence: %w", err)
	}
	registrationID := fmt.Sprintf("%d000%05d", academicYear, seq)
	if _, err := tx.ExecContext(ctx, `UPDATE students SET registration_id = $2, updated_at = $3 WHERE id = $1`,
		studentID, registrationID, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("assign registration id: %w", err)
	}
	return registrationID, nil
}
