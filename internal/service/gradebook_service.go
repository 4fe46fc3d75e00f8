package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/escolardev/escolar-api/internal/models"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
)

type reportCardRepository interface {
	Find(ctx context.Context, studentID, sessionID string) (*models.ReportCard, error)
	Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error)
	AppendGrade(ctx context.Context, studentID, sessionID string, grade float64) (bool, error)
	ReplaceGrades(ctx context.Context, studentID, sessionID string, grades []float64) error
	IncrementAbsence(ctx context.Context, studentID, sessionID string, limit float64) (*models.ReportCard, error)
	SetAbsences(ctx context.Context, studentID, sessionID string, absences int) error
	SetSituation(ctx context.Context, studentID, sessionID string, situation models.Situation) error
}

type registrationResolver interface {
	FindByRegistration(ctx context.Context, registrationID string) (*models.Student, error)
}

type sessionReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
}

type subjectReader interface {
	FindByCode(ctx context.Context, code string) (*models.Subject, error)
}

// RecordGradeRequest appends one unit grade to a report card.
type RecordGradeRequest struct {
	RegistrationID string  `json:"registration_id" validate:"required"`
	SessionID      string  `json:"session_id" validate:"required"`
	Grade          float64 `json:"grade" validate:"gte=0,lte=10"`
}

// GradeEntry is one student's grade inside a bulk request.
type GradeEntry struct {
	RegistrationID string  `json:"registration_id" validate:"required"`
	Grade          float64 `json:"grade" validate:"gte=0,lte=10"`
}

// BulkRecordGradesRequest appends one grade per student for a session.
type BulkRecordGradesRequest struct {
	SessionID string       `json:"session_id" validate:"required"`
	Entries   []GradeEntry `json:"entries" validate:"required,min=1,dive"`
}

// BulkGradeResult reports the outcome for one bulk entry.
type BulkGradeResult struct {
	RegistrationID string             `json:"registration_id"`
	ReportCard     *models.ReportCard `json:"report_card,omitempty"`
	Error          string             `json:"error,omitempty"`
}

// RecordAbsencesRequest marks one absence for each listed student of a session.
type RecordAbsencesRequest struct {
	SessionID       string   `json:"session_id" validate:"required"`
	RegistrationIDs []string `json:"registration_ids" validate:"required,min=1,dive,required"`
}

// AbsenceResult reports the outcome for one absence entry.
type AbsenceResult struct {
	RegistrationID string           `json:"registration_id"`
	Absences       int              `json:"absences,omitempty"`
	Situation      models.Situation `json:"situation,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// ReplaceGradesRequest overwrites the full grade list of a card.
type ReplaceGradesRequest struct {
	Grades []float64 `json:"grades" validate:"max=4,dive,gte=0,lte=10"`
}

// SetAbsencesRequest overwrites the absence count of a card.
type SetAbsencesRequest struct {
	Absences int `json:"absences" validate:"gte=0"`
}

// OverrideSituationRequest sets the stored situation of a card.
type OverrideSituationRequest struct {
	Situation models.Situation `json:"situation" validate:"required"`
}

// GradebookService mutates the report-card ledger: appending grades,
// recording absences with the derived limit, and administrative corrections.
type GradebookService struct {
	cards     reportCardRepository
	students  registrationResolver
	sessions  sessionReader
	classes   classReader
	subjects  subjectReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradebookService constructs GradebookService.
func NewGradebookService(cards reportCardRepository, students registrationResolver, sessions sessionReader, classes classReader, subjects subjectReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradebookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradebookService{cards: cards, students: students, sessions: sessions, classes: classes, subjects: subjects, cache: cache, metrics: metrics, validator: validate, logger: logger}
}

// RecordGrade appends a unit grade to the student's card for a session.
// Grades are frozen once the session's class is closed.
func (s *GradebookService) RecordGrade(ctx context.Context, req RecordGradeRequest) (*models.ReportCard, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	session, err := s.openSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	student, err := s.resolve(ctx, req.RegistrationID)
	if err != nil {
		return nil, err
	}
	card, err := s.appendGrade(ctx, student.ID, session.ID, req.Grade)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordGrade()
	s.invalidateTranscripts(ctx, student.ID)
	return card, nil
}

// BulkRecordGrades appends one grade per listed student for a session.
// Entries succeed or fail independently of each other.
func (s *GradebookService) BulkRecordGrades(ctx context.Context, req BulkRecordGradesRequest) ([]BulkGradeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk grade payload")
	}
	session, err := s.openSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	results := make([]BulkGradeResult, 0, len(req.Entries))
	for _, entry := range req.Entries {
		result := BulkGradeResult{RegistrationID: entry.RegistrationID}
		student, err := s.resolve(ctx, entry.RegistrationID)
		if err != nil {
			result.Error = appErrors.FromError(err).Message
			results = append(results, result)
			continue
		}
		card, err := s.appendGrade(ctx, student.ID, session.ID, entry.Grade)
		if err != nil {
			result.Error = appErrors.FromError(err).Message
			results = append(results, result)
			continue
		}
		result.ReportCard = card
		s.metrics.RecordGrade()
		s.invalidateTranscripts(ctx, student.ID)
		results = append(results, result)
	}
	return results, nil
}

// RecordAbsences marks one absence for each listed student of a session.
// The absence limit is derived from the subject's course load divided by
// the session length; reaching it fails the student for the session.
// Entries succeed or fail independently of each other.
func (s *GradebookService) RecordAbsences(ctx context.Context, req RecordAbsencesRequest) ([]AbsenceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}
	session, err := s.openSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	subject, err := s.subjects.FindByCode(ctx, session.SubjectCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	hours, err := session.DurationHours()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid session times")
	}
	limit := models.AbsenceLimit(subject.CourseHours, hours)

	results := make([]AbsenceResult, 0, len(req.RegistrationIDs))
	for _, registrationID := range req.RegistrationIDs {
		result := AbsenceResult{RegistrationID: registrationID}
		student, err := s.resolve(ctx, registrationID)
		if err != nil {
			result.Error = appErrors.FromError(err).Message
			results = append(results, result)
			continue
		}
		card, err := s.cards.IncrementAbsence(ctx, student.ID, session.ID, limit)
		if err != nil {
			if err == sql.ErrNoRows {
				result.Error = "report card not found"
			} else {
				result.Error = "failed to record absence"
				s.logger.Error("record absence failed",
					zap.String("registration_id", registrationID),
					zap.String("session_id", session.ID),
					zap.Error(err))
			}
			results = append(results, result)
			continue
		}
		result.Absences = card.Absences
		result.Situation = card.Situation
		flipped := card.Situation == models.SituationFailed &&
			float64(card.Absences) >= limit && float64(card.Absences-1) < limit
		s.metrics.RecordAbsence(flipped)
		s.invalidateTranscripts(ctx, student.ID)
		results = append(results, result)
	}
	return results, nil
}

// GetReportCardEntry returns the student's card for one session.
func (s *GradebookService) GetReportCardEntry(ctx context.Context, registrationID, sessionID string) (*models.ReportCard, error) {
	student, err := s.resolve(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	return s.findCard(ctx, student.ID, sessionID)
}

// Roster lists the students holding a card for a session.
func (s *GradebookService) Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error) {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	roster, err := s.cards.Roster(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, nil
}

// ReplaceGrades overwrites the card's grade list. Administrative
// correction: it works even after the class is closed.
func (s *GradebookService) ReplaceGrades(ctx context.Context, registrationID, sessionID string, req ReplaceGradesRequest) (*models.ReportCard, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grades payload")
	}
	student, err := s.resolve(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if err := s.cards.ReplaceGrades(ctx, student.ID, sessionID, req.Grades); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace grades")
	}
	s.invalidateTranscripts(ctx, student.ID)
	return s.findCard(ctx, student.ID, sessionID)
}

// SetAbsences overwrites the card's absence count. Administrative
// correction: the stored situation is left untouched.
func (s *GradebookService) SetAbsences(ctx context.Context, registrationID, sessionID string, req SetAbsencesRequest) (*models.ReportCard, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absences payload")
	}
	student, err := s.resolve(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if err := s.cards.SetAbsences(ctx, student.ID, sessionID, req.Absences); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set absences")
	}
	s.invalidateTranscripts(ctx, student.ID)
	return s.findCard(ctx, student.ID, sessionID)
}

// OverrideSituation sets the stored situation of a card. This is the only
// path that moves a card out of the failed state.
func (s *GradebookService) OverrideSituation(ctx context.Context, registrationID, sessionID string, req OverrideSituationRequest) (*models.ReportCard, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid situation payload")
	}
	if !req.Situation.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown situation")
	}
	student, err := s.resolve(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if err := s.cards.SetSituation(ctx, student.ID, sessionID, req.Situation); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to override situation")
	}
	s.invalidateTranscripts(ctx, student.ID)
	return s.findCard(ctx, student.ID, sessionID)
}

// openSession loads a session and verifies its class still accepts
// gradebook mutations.
func (s *GradebookService) openSession(ctx context.Context, sessionID string) (*models.ClassSession, error) {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	class, err := s.classes.FindByID(ctx, session.ClassID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.Status != models.ClassStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrSessionNotOpen, "")
	}
	return session, nil
}

func (s *GradebookService) resolve(ctx context.Context, registrationID string) (*models.Student, error) {
	student, err := s.students.FindByRegistration(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *GradebookService) appendGrade(ctx context.Context, studentID, sessionID string, grade float64) (*models.ReportCard, error) {
	appended, err := s.cards.AppendGrade(ctx, studentID, sessionID, grade)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append grade")
	}
	if !appended {
		// Either the card is missing or every slot is taken.
		if _, err := s.cards.Find(ctx, studentID, sessionID); err != nil {
			if err == sql.ErrNoRows {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
		}
		return nil, appErrors.Clone(appErrors.ErrGradeSlotsFull, "")
	}
	return s.findCard(ctx, studentID, sessionID)
}

func (s *GradebookService) findCard(ctx context.Context, studentID, sessionID string) (*models.ReportCard, error) {
	card, err := s.cards.Find(ctx, studentID, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}
	return card, nil
}

func (s *GradebookService) invalidateTranscripts(ctx context.Context, studentID string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("transcript:%s:*", studentID)); err != nil {
		s.logger.Warn("transcript cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
	}
}
