package service

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/escolardev/escolar-api/internal/models"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
)

type enrollmentLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.ClassEnrollment, error)
}

type sessionDetailLister interface {
	ListDetailsByClass(ctx context.Context, classID string) ([]models.SessionDetail, error)
}

type cardLister interface {
	ListByStudentAndClass(ctx context.Context, studentID, classID string) ([]models.ReportCard, error)
}

// TranscriptService derives the report-card and history views from the
// ledger. Averages are computed here on read and never persisted.
type TranscriptService struct {
	students    registrationResolver
	enrollments enrollmentLister
	classes     classReader
	sessions    sessionDetailLister
	cards       cardLister
	cache       *CacheService
	logger      *zap.Logger
}

// NewTranscriptService constructs TranscriptService.
func NewTranscriptService(students registrationResolver, enrollments enrollmentLister, classes classReader, sessions sessionDetailLister, cards cardLister, cache *CacheService, logger *zap.Logger) *TranscriptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptService{students: students, enrollments: enrollments, classes: classes, sessions: sessions, cards: cards, cache: cache, logger: logger}
}

// GetReportCard returns the transcript section for the student's current
// class.
func (s *TranscriptService) GetReportCard(ctx context.Context, registrationID string) (*models.Transcript, error) {
	student, enrollments, err := s.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	current := models.CurrentEnrollment(enrollments)
	if current == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student has no enrollment")
	}

	cacheKey := fmt.Sprintf("transcript:%s:report_card", student.ID)
	var cached models.Transcript
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	section, err := s.buildSection(ctx, student.ID, current.ClassID)
	if err != nil {
		return nil, err
	}
	transcript := s.assemble(student, []models.TranscriptSection{*section})
	_ = s.cache.Set(ctx, cacheKey, transcript, 0)
	return transcript, nil
}

// GetHistory returns transcript sections for every class the student has
// been enrolled in, oldest first.
func (s *TranscriptService) GetHistory(ctx context.Context, registrationID string) (*models.Transcript, error) {
	student, enrollments, err := s.load(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("transcript:%s:history", student.ID)
	var cached models.Transcript
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	sections := make([]models.TranscriptSection, 0, len(enrollments))
	for _, enrollment := range enrollments {
		section, err := s.buildSection(ctx, student.ID, enrollment.ClassID)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *section)
	}
	transcript := s.assemble(student, sections)
	_ = s.cache.Set(ctx, cacheKey, transcript, 0)
	return transcript, nil
}

func (s *TranscriptService) load(ctx context.Context, registrationID string) (*models.Student, []models.ClassEnrollment, error) {
	student, err := s.students.FindByRegistration(ctx, registrationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return student, enrollments, nil
}

// buildSection joins the class's sessions with the student's cards. Every
// session must have a card; a hole means the ledger lost coverage and the
// section is refused rather than silently shortened.
func (s *TranscriptService) buildSection(ctx context.Context, studentID, classID string) (*models.TranscriptSection, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	details, err := s.sessions.ListDetailsByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	cards, err := s.cards.ListByStudentAndClass(ctx, studentID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report cards")
	}
	bySession := make(map[string]models.ReportCard, len(cards))
	for _, card := range cards {
		bySession[card.SessionID] = card
	}

	rows := make([]models.TranscriptRow, 0, len(details))
	for _, detail := range details {
		card, ok := bySession[detail.ID]
		if !ok {
			s.logger.Error("report card missing for session",
				zap.String("student_id", studentID),
				zap.String("class_id", classID),
				zap.String("session_id", detail.ID))
			return nil, appErrors.Clone(appErrors.ErrLedgerInconsistent, "")
		}
		rows = append(rows, buildRow(detail, card))
	}

	return &models.TranscriptSection{
		ClassID:        class.ID,
		Grade:          class.Grade,
		Track:          class.Track,
		EducationLevel: class.EducationLevel,
		AcademicYear:   class.AcademicYear,
		Rows:           rows,
	}, nil
}

// buildRow pads the grade slots to their fixed width so consumers can
// render pending slots, and derives the average only when every slot is
// filled.
func buildRow(detail models.SessionDetail, card models.ReportCard) models.TranscriptRow {
	grades := make([]*float64, models.MaxGradeSlots)
	for i := range card.Grades {
		if i >= models.MaxGradeSlots {
			break
		}
		g := card.Grades[i]
		grades[i] = &g
	}
	return models.TranscriptRow{
		SessionID:   detail.ID,
		SubjectCode: detail.SubjectCode,
		SubjectName: detail.SubjectName,
		Grades:      grades,
		Average:     card.Average(),
		Absences:    card.Absences,
		Situation:   card.Situation,
	}
}

func (s *TranscriptService) assemble(student *models.Student, sections []models.TranscriptSection) *models.Transcript {
	transcript := &models.Transcript{
		StudentID:   student.ID,
		StudentName: student.FullName,
		Sections:    sections,
	}
	if student.RegistrationID != nil {
		transcript.RegistrationID = *student.RegistrationID
	}
	return transcript
}
