package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolardev/escolar-api/internal/models"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
)

// cardRepoFake mirrors the SQL semantics of the report-card repository:
// grade appends stop at the slot cap and the absence increment flips the
// situation to failed exactly once, when the count reaches the limit.
type cardRepoFake struct {
	cards map[string]*models.ReportCard
}

func newCardRepoFake() *cardRepoFake {
	return &cardRepoFake{cards: map[string]*models.ReportCard{}}
}

func cardKey(studentID, sessionID string) string {
	return fmt.Sprintf("%s|%s", studentID, sessionID)
}

func (r *cardRepoFake) put(studentID, sessionID string, card models.ReportCard) {
	card.StudentID = studentID
	card.SessionID = sessionID
	if card.Situation == "" {
		card.Situation = models.SituationInProgress
	}
	r.cards[cardKey(studentID, sessionID)] = &card
}

func (r *cardRepoFake) Find(ctx context.Context, studentID, sessionID string) (*models.ReportCard, error) {
	card, ok := r.cards[cardKey(studentID, sessionID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *card
	return &copied, nil
}

func (r *cardRepoFake) Roster(ctx context.Context, sessionID string) ([]models.RosterEntry, error) {
	var roster []models.RosterEntry
	for _, card := range r.cards {
		if card.SessionID == sessionID {
			roster = append(roster, models.RosterEntry{StudentID: card.StudentID})
		}
	}
	return roster, nil
}

func (r *cardRepoFake) AppendGrade(ctx context.Context, studentID, sessionID string, grade float64) (bool, error) {
	card, ok := r.cards[cardKey(studentID, sessionID)]
	if !ok || len(card.Grades) >= models.MaxGradeSlots {
		return false, nil
	}
	card.Grades = append(card.Grades, grade)
	return true, nil
}

func (r *cardRepoFake) ReplaceGrades(ctx context.Context, studentID, sessionID string, grades []float64) error {
	card, ok := r.cards[cardKey(studentID, sessionID)]
	if !ok {
		return sql.ErrNoRows
	}
	card.Grades = append(pq.Float64Array(nil), grades...)
	return nil
}

func (r *cardRepoFake) IncrementAbsence(ctx context.Context, studentID, sessionID string, limit float64) (*models.ReportCard, error) {
	card, ok := r.cards[cardKey(studentID, sessionID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	card.Absences++
	if card.Situation != models.SituationFailed && float64(card.Absences) >= limit {
		card.Situation = models.SituationFailed
	}
	copied := *card
	return &copied, nil
}

func (r *cardRepoFake) SetAbsences(ctx context.Context, studentID, sessionID string, absences int) error {
	card, ok := r.cards[cardKey(studentID, sessionID)]
	if !ok {
		return sql.ErrNoRows
	}
	card.Absences = absences
	return nil
}

func (r *cardRepoFake) SetSituation(ctx context.Context, studentID, sessionID string, situation models.Situation) error {
	card, ok := r.cards[cardKey(studentID, sessionID)]
	if !ok {
		return sql.ErrNoRows
	}
	card.Situation = situation
	return nil
}

type regResolverStub struct {
	students map[string]*models.Student
}

func (s *regResolverStub) FindByRegistration(ctx context.Context, registrationID string) (*models.Student, error) {
	student, ok := s.students[registrationID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

type sessionReaderStub struct {
	sessions map[string]*models.ClassSession
}

func (s *sessionReaderStub) FindByID(ctx context.Context, id string) (*models.ClassSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return session, nil
}

type subjectReaderStub struct {
	subjects map[string]*models.Subject
}

func (s *subjectReaderStub) FindByCode(ctx context.Context, code string) (*models.Subject, error) {
	subject, ok := s.subjects[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

// gradebookFixture wires a service against one open class with a single
// 2-hour math session (30 course hours, so the absence limit is 15).
type gradebookFixture struct {
	service *GradebookService
	cards   *cardRepoFake
}

func newGradebookFixture(status models.ClassStatus) *gradebookFixture {
	cards := newCardRepoFake()
	students := &regResolverStub{students: map[string]*models.Student{
		"202500000001": {ID: "st-1", FullName: "Ana Souza"},
		"202500000002": {ID: "st-2", FullName: "Bruno Lima"},
	}}
	sessions := &sessionReaderStub{sessions: map[string]*models.ClassSession{
		"se-1": {ID: "se-1", ClassID: "c-1", SubjectCode: "MAT01", StartTime: "08:00", EndTime: "10:00"},
	}}
	classes := &classReaderStub{class: &models.Class{ID: "c-1", Status: status, AcademicYear: 2025}}
	subjects := &subjectReaderStub{subjects: map[string]*models.Subject{
		"MAT01": {Code: "MAT01", Name: "Mathematics", CourseHours: 30},
	}}
	svc := NewGradebookService(cards, students, sessions, classes, subjects, nil, nil, nil, nil)
	return &gradebookFixture{service: svc, cards: cards}
}

func TestRecordGradeAppends(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusOpen)
	f.cards.put("st-1", "se-1", models.ReportCard{Grades: pq.Float64Array{8}})

	card, err := f.service.RecordGrade(context.Background(), RecordGradeRequest{
		RegistrationID: "202500000001", SessionID: "se-1", Grade: 7.5,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{8, 7.5}, []float64(card.Grades))
	assert.Equal(t, models.SituationInProgress, card.Situation)
}

func TestRecordGradeClosedClass(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusClosed)
	f.cards.put("st-1", "se-1", models.ReportCard{})

	_, err := f.service.RecordGrade(context.Background(), RecordGradeRequest{
		RegistrationID: "202500000001", SessionID: "se-1", Grade: 7,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionNotOpen))

	card, findErr := f.cards.Find(context.Background(), "st-1", "se-1")
	require.NoError(t, findErr)
	assert.Empty(t, card.Grades)
}

func TestRecordGradeSlotsFull(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusOpen)
	f.cards.put("st-1", "se-1", models.ReportCard{Grades: pq.Float64Array{8, 7, 9, 6}})

	_, err := f.service.RecordGrade(context.Background(), RecordGradeRequest{
		RegistrationID: "202500000001", SessionID: "se-1", Grade: 10,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrGradeSlotsFull))

	card, findErr := f.cards.Find(context.Background(), "st-1", "se-1")
	require.NoError(t, findErr)
	assert.Equal(t, []float64{8, 7, 9, 6}, []float64(card.Grades))
}

func TestRecordGradeMissingCard(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusOpen)

	_, err := f.service.RecordGrade(context.Background(), RecordGradeRequest{
		RegistrationID: "202500000001", SessionID: "se-1", Grade: 10,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestRecordGradeRejectsOutOfRange(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusOpen)

	_, err := f.service.RecordGrade(context.Background(), RecordGradeRequest{
		RegistrationID: "202500000001", SessionID: "se-1", Grade: 10.5,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestBulkRecordGradesIsPerEntry(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusOpen)
	f.cards.put("st-1", "se-1", models.ReportCard{Grades: pq.Float64Array{8, 7, 9, 6}})
	f.cards.put("st-2", "se-1", models.ReportCard{})

	results, err := f.service.BulkRecordGrades(context.Background(), BulkRecordGradesRequest{
		SessionID: "se-1",
		Entries: []GradeEntry{
			{RegistrationID: "202500000001", Grade: 5},
			{RegistrationID: "202500000002", Grade: 9},
			{RegistrationID: "209900000009", Grade: 9},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NotEmpty(t, results[0].Error, "full card must be reported")
	assert.Empty(t, results[1].Error)
	require.NotNil(t, results[1].ReportCard)
	assert.Equal(t, []float64{9}, []float64(results[1].ReportCard.Grades))
	assert.NotEmpty(t, results[2].Error, "unknown registration must be reported")
}

func TestRecordAbsencesFlipsAtTheLimit(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusOpen)
	// 30 course hours / 2-hour session: failing starts at the 15th absence.
	f.cards.put("st-1", "se-1", models.ReportCard{Absences: 13})

	results, err := f.service.RecordAbsences(context.Background(), RecordAbsencesRequest{
		SessionID: "se-1", RegistrationIDs: []string{"202500000001"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 14, results[0].Absences)
	assert.Equal(t, models.SituationInProgress, results[0].Situation)

	results, err = f.service.RecordAbsences(context.Background(), RecordAbsencesRequest{
		SessionID: "se-1", RegistrationIDs: []string{"202500000001"},
	})
	require.NoError(t, err)
	assert.Equal(t, 15, results[0].Absences)
	assert.Equal(t, models.SituationFailed, results[0].Situation)
}

func TestRecordAbsencesIsPerEntry(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusOpen)
	f.cards.put("st-2", "se-1", models.ReportCard{Absences: 3})

	results, err := f.service.RecordAbsences(context.Background(), RecordAbsencesRequest{
		SessionID: "se-1", RegistrationIDs: []string{"202500000001", "202500000002"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "report card not found", results[0].Error)
	assert.Empty(t, results[1].Error)
	assert.Equal(t, 4, results[1].Absences)
}

func TestRecordAbsencesClosedClass(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusClosed)
	f.cards.put("st-1", "se-1", models.ReportCard{})

	_, err := f.service.RecordAbsences(context.Background(), RecordAbsencesRequest{
		SessionID: "se-1", RegistrationIDs: []string{"202500000001"},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSessionNotOpen))
}

func TestSetAbsencesKeepsSituation(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusClosed)
	f.cards.put("st-1", "se-1", models.ReportCard{Absences: 15, Situation: models.SituationFailed})

	card, err := f.service.SetAbsences(context.Background(), "202500000001", "se-1", SetAbsencesRequest{Absences: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, card.Absences)
	assert.Equal(t, models.SituationFailed, card.Situation, "correcting the count must not revert the situation")
}

func TestOverrideSituationRevertsFailed(t *testing.T) {
	// Corrections work even after the class closed.
	f := newGradebookFixture(models.ClassStatusClosed)
	f.cards.put("st-1", "se-1", models.ReportCard{Absences: 15, Situation: models.SituationFailed})

	card, err := f.service.OverrideSituation(context.Background(), "202500000001", "se-1", OverrideSituationRequest{
		Situation: models.SituationInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SituationInProgress, card.Situation)
}

func TestOverrideSituationRejectsUnknownValue(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusOpen)
	f.cards.put("st-1", "se-1", models.ReportCard{})

	_, err := f.service.OverrideSituation(context.Background(), "202500000001", "se-1", OverrideSituationRequest{
		Situation: models.Situation("dropped"),
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestReplaceGradesWorksOnClosedClass(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusClosed)
	f.cards.put("st-1", "se-1", models.ReportCard{Grades: pq.Float64Array{2, 3, 4, 5}})

	card, err := f.service.ReplaceGrades(context.Background(), "202500000001", "se-1", ReplaceGradesRequest{
		Grades: []float64{7, 8, 9, 10},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 9, 10}, []float64(card.Grades))
}

func TestReplaceGradesRejectsTooManyGrades(t *testing.T) {
	f := newGradebookFixture(models.ClassStatusOpen)
	f.cards.put("st-1", "se-1", models.ReportCard{})

	_, err := f.service.ReplaceGrades(context.Background(), "202500000001", "se-1", ReplaceGradesRequest{
		Grades: []float64{1, 2, 3, 4, 5},
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
