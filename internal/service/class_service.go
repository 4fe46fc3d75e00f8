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

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	UpdateStatus(ctx context.Context, id string, status models.ClassStatus) error
	Delete(ctx context.Context, id string) error
}

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
	ListByClass(ctx context.Context, classID string) ([]models.ClassSession, error)
	ListDetailsByClass(ctx context.Context, classID string) ([]models.SessionDetail, error)
	Create(ctx context.Context, session *models.ClassSession, enrolledStudentIDs []string) error
	Update(ctx context.Context, session *models.ClassSession) error
	Delete(ctx context.Context, id string) error
}

type classStudentLister interface {
	ListStudentIDsByClass(ctx context.Context, classID string) ([]string, error)
}

type roomReader interface {
	FindByNumber(ctx context.Context, number int) (*models.Room, error)
}

type staffReader interface {
	FindByID(ctx context.Context, id string) (*models.StaffMember, error)
}

type calendarCatalog interface {
	FindByYear(ctx context.Context, year int) (*models.Calendar, error)
}

// CreateClassRequest describes class creation.
type CreateClassRequest struct {
	Grade          int    `json:"grade" validate:"required,min=1"`
	Track          string `json:"track" validate:"required"`
	EducationLevel string `json:"education_level" validate:"required"`
	Shift          string `json:"shift" validate:"required"`
	RoomNumber     int    `json:"room_number" validate:"required"`
	AcademicYear   int    `json:"academic_year" validate:"required,min=2000"`
}

// UpdateClassRequest describes a class update.
type UpdateClassRequest struct {
	Grade          int    `json:"grade" validate:"required,min=1"`
	Track          string `json:"track" validate:"required"`
	EducationLevel string `json:"education_level" validate:"required"`
	Shift          string `json:"shift" validate:"required"`
	RoomNumber     int    `json:"room_number" validate:"required"`
	AcademicYear   int    `json:"academic_year" validate:"required,min=2000"`
}

// CreateSessionRequest adds a subject session to a class.
type CreateSessionRequest struct {
	SubjectCode string   `json:"subject_code" validate:"required"`
	TeacherID   string   `json:"teacher_id" validate:"required"`
	StartTime   string   `json:"start_time" validate:"required"`
	EndTime     string   `json:"end_time" validate:"required"`
	Weekdays    []string `json:"weekdays" validate:"required,min=1"`
}

// UpdateSessionRequest reshapes an existing session.
type UpdateSessionRequest struct {
	SubjectCode string   `json:"subject_code" validate:"required"`
	TeacherID   string   `json:"teacher_id" validate:"required"`
	StartTime   string   `json:"start_time" validate:"required"`
	EndTime     string   `json:"end_time" validate:"required"`
	Weekdays    []string `json:"weekdays" validate:"required,min=1"`
}

// ClassService manages classes, their open/closed lifecycle and their
// subject sessions. Adding a session backfills one report card per
// enrolled student so the ledger keeps covering every session.
type ClassService struct {
	repo      classRepository
	sessions  sessionRepository
	students  classStudentLister
	rooms     roomReader
	subjects  subjectReader
	staff     staffReader
	calendars calendarCatalog
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, sessions sessionRepository, students classStudentLister, rooms roomReader, subjects subjectReader, staff staffReader, calendars calendarCatalog, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, sessions: sessions, students: students, rooms: rooms, subjects: subjects, staff: staff, calendars: calendars, cache: cache, validator: validate, logger: logger}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a class by id.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create opens a new class for an academic year.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if err := s.checkReferences(ctx, req.RoomNumber, req.AcademicYear); err != nil {
		return nil, err
	}
	class := &models.Class{
		Grade:          req.Grade,
		Track:          req.Track,
		EducationLevel: req.EducationLevel,
		Shift:          req.Shift,
		RoomNumber:     req.RoomNumber,
		AcademicYear:   req.AcademicYear,
		Status:         models.ClassStatusOpen,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.Int("academic_year", class.AcademicYear))
	return class, nil
}

// Update overwrites a class's descriptive fields.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, req.RoomNumber, req.AcademicYear); err != nil {
		return nil, err
	}
	class.Grade = req.Grade
	class.Track = req.Track
	class.EducationLevel = req.EducationLevel
	class.Shift = req.Shift
	class.RoomNumber = req.RoomNumber
	class.AcademicYear = req.AcademicYear
	if err := s.repo.Update(ctx, class); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Close consolidates a class: no further enrollments or gradebook
// mutations are accepted.
func (s *ClassService) Close(ctx context.Context, id string) (*models.Class, error) {
	return s.setStatus(ctx, id, models.ClassStatusClosed)
}

// Reopen makes a class accept enrollments and gradebook mutations again.
func (s *ClassService) Reopen(ctx context.Context, id string) (*models.Class, error) {
	return s.setStatus(ctx, id, models.ClassStatusOpen)
}

// Delete removes a class. It refuses while students are still enrolled.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	enrolled, err := s.students.ListStudentIDsByClass(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled students")
	}
	if len(enrolled) > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "class still has enrolled students")
	}
	sessions, err := s.sessions.ListByClass(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	for _, session := range sessions {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.logger.Info("class deleted", zap.String("class_id", id))
	return nil
}

// ListSessions returns a class's sessions joined with subjects.
func (s *ClassService) ListSessions(ctx context.Context, classID string) ([]models.SessionDetail, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	details, err := s.sessions.ListDetailsByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return details, nil
}

// AddSession creates a subject session for an open class and backfills a
// report card for every student already enrolled.
func (s *ClassService) AddSession(ctx context.Context, classID string, req CreateSessionRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	class, err := s.Get(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.Status != models.ClassStatusOpen {
		return nil, appErrors.Clone(appErrors.ErrClassClosed, "")
	}
	if err := s.checkSessionReferences(ctx, req.SubjectCode, req.TeacherID); err != nil {
		return nil, err
	}

	session := &models.ClassSession{
		ClassID:     classID,
		SubjectCode: req.SubjectCode,
		TeacherID:   req.TeacherID,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Weekdays:    req.Weekdays,
	}
	if _, err := session.DurationHours(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session times")
	}

	enrolled, err := s.students.ListStudentIDsByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled students")
	}
	if err := s.sessions.Create(ctx, session, enrolled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}
	s.invalidateTranscripts(ctx, enrolled)
	s.logger.Info("session created",
		zap.String("class_id", classID),
		zap.String("session_id", session.ID),
		zap.String("subject_code", session.SubjectCode),
		zap.Int("backfilled_cards", len(enrolled)))
	return session, nil
}

// UpdateSession reshapes a session's schedule or assignment.
func (s *ClassService) UpdateSession(ctx context.Context, sessionID string, req UpdateSessionRequest) (*models.ClassSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if err := s.checkSessionReferences(ctx, req.SubjectCode, req.TeacherID); err != nil {
		return nil, err
	}
	session.SubjectCode = req.SubjectCode
	session.TeacherID = req.TeacherID
	session.StartTime = req.StartTime
	session.EndTime = req.EndTime
	session.Weekdays = req.Weekdays
	if _, err := session.DurationHours(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session times")
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}
	return session, nil
}

// DeleteSession removes a session and its report cards.
func (s *ClassService) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	enrolled, err := s.students.ListStudentIDsByClass(ctx, session.ClassID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled students")
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.invalidateTranscripts(ctx, enrolled)
	s.logger.Info("session deleted", zap.String("session_id", sessionID), zap.String("class_id", session.ClassID))
	return nil
}

func (s *ClassService) setStatus(ctx context.Context, id string, status models.ClassStatus) (*models.Class, error) {
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if class.Status == status {
		return class, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class status")
	}
	class.Status = status
	s.logger.Info("class status changed", zap.String("class_id", id), zap.String("status", string(status)))
	return class, nil
}

func (s *ClassService) checkReferences(ctx context.Context, roomNumber, academicYear int) error {
	if _, err := s.rooms.FindByNumber(ctx, roomNumber); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if _, err := s.calendars.FindByYear(ctx, academicYear); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "academic year not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	return nil
}

func (s *ClassService) checkSessionReferences(ctx context.Context, subjectCode, teacherID string) error {
	if _, err := s.subjects.FindByCode(ctx, subjectCode); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	member, err := s.staff.FindByID(ctx, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if member.Role != models.StaffRoleTeacher {
		return appErrors.Clone(appErrors.ErrValidation, "staff member is not a teacher")
	}
	return nil
}

func (s *ClassService) invalidateTranscripts(ctx context.Context, studentIDs []string) {
	for _, studentID := range studentIDs {
		if err := s.cache.Invalidate(ctx, fmt.Sprintf("transcript:%s:*", studentID)); err != nil {
			s.logger.Warn("transcript cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}
}
