package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/escolardev/escolar-api/internal/models"
	"github.com/escolardev/escolar-api/internal/repository"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
)

type enrollmentRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.ClassEnrollment, error)
	Enroll(ctx context.Context, studentID string, target models.Class, sessionIDs []string) (*models.EnrollmentResult, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type sessionLister interface {
	ListByClass(ctx context.Context, classID string) ([]models.ClassSession, error)
}

// EnrollStudentRequest describes an admission request.
type EnrollStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
}

// EnrollmentService runs the admission workflow: it verifies the target
// class is open, then delegates the transactional cascade to the repository.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	classes   classReader
	sessions  sessionLister
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, classes classReader, sessions sessionLister, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, classes: classes, sessions: sessions, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// Enroll admits a student into a class. A first enrollment assigns the
// student's registration number; a later one replaces the current class and
// rebuilds the report-card ledger for the new class's sessions.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.EnrollmentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.Status != models.ClassStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrClassClosed, "")
	}
	sessions, err := s.sessions.ListByClass(ctx, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class sessions")
	}
	sessionIDs := make([]string, 0, len(sessions))
	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
	}

	result, err := s.repo.Enroll(ctx, req.StudentID, *class, sessionIDs)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStudentNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		case errors.Is(err, repository.ErrAlreadyEnrolled):
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
		case errors.Is(err, repository.ErrDuplicateYear):
			return nil, appErrors.Clone(appErrors.ErrDuplicateYear, "")
		case errors.Is(err, repository.ErrDuplicateReportCard):
			return nil, appErrors.Wrap(err, appErrors.ErrLedgerInconsistent.Code, appErrors.ErrLedgerInconsistent.Status, appErrors.ErrLedgerInconsistent.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}

	s.metrics.RecordEnrollment(string(result.Mode))
	s.invalidateTranscripts(ctx, req.StudentID)
	s.logger.Info("student enrolled",
		zap.String("student_id", result.StudentID),
		zap.String("class_id", result.ClassID),
		zap.String("mode", string(result.Mode)),
		zap.Int("report_cards", result.ReportCards))
	return result, nil
}

// ListEnrollments returns the student's enrollment history and current class.
func (s *EnrollmentService) ListEnrollments(ctx context.Context, studentID string) ([]models.ClassEnrollment, *models.ClassEnrollment, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, models.CurrentEnrollment(enrollments), nil
}

func (s *EnrollmentService) invalidateTranscripts(ctx context.Context, studentID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("transcript:%s:*", studentID)); err != nil {
		s.logger.Warn("transcript cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
	}
}
