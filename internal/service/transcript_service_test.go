package service

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolardev/escolar-api/internal/models"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
)

type enrollmentListerStub struct {
	enrollments []models.ClassEnrollment
}

func (s *enrollmentListerStub) ListByStudent(ctx context.Context, studentID string) ([]models.ClassEnrollment, error) {
	return s.enrollments, nil
}

type sessionDetailListerStub struct {
	details map[string][]models.SessionDetail
}

func (s *sessionDetailListerStub) ListDetailsByClass(ctx context.Context, classID string) ([]models.SessionDetail, error) {
	return s.details[classID], nil
}

type cardListerStub struct {
	cards map[string][]models.ReportCard
}

func (s *cardListerStub) ListByStudentAndClass(ctx context.Context, studentID, classID string) ([]models.ReportCard, error) {
	return s.cards[classID], nil
}

func sessionDetail(id, code, name string) models.SessionDetail {
	return models.SessionDetail{
		ClassSession: models.ClassSession{ID: id, SubjectCode: code},
		SubjectName:  name,
	}
}

func newTranscriptFixture(enrollments []models.ClassEnrollment, details map[string][]models.SessionDetail, cards map[string][]models.ReportCard) *TranscriptService {
	registration := "202500000001"
	students := &regResolverStub{students: map[string]*models.Student{
		registration: {ID: "st-1", RegistrationID: &registration, FullName: "Ana Souza"},
	}}
	classes := &classReaderStub{class: &models.Class{ID: "c-1", Grade: 1, AcademicYear: 2025}}
	return NewTranscriptService(students,
		&enrollmentListerStub{enrollments: enrollments},
		classes,
		&sessionDetailListerStub{details: details},
		&cardListerStub{cards: cards},
		nil, nil)
}

func TestGetReportCardBuildsCurrentSection(t *testing.T) {
	enrollments := []models.ClassEnrollment{{ClassID: "c-1", AcademicYear: 2025}}
	details := map[string][]models.SessionDetail{
		"c-1": {sessionDetail("se-1", "MAT01", "Mathematics")},
	}
	cards := map[string][]models.ReportCard{
		"c-1": {{SessionID: "se-1", Grades: pq.Float64Array{8, 7}, Absences: 2, Situation: models.SituationInProgress}},
	}
	svc := newTranscriptFixture(enrollments, details, cards)

	transcript, err := svc.GetReportCard(context.Background(), "202500000001")
	require.NoError(t, err)
	assert.Equal(t, "202500000001", transcript.RegistrationID)
	assert.Equal(t, "Ana Souza", transcript.StudentName)
	require.Len(t, transcript.Sections, 1)
	require.Len(t, transcript.Sections[0].Rows, 1)

	row := transcript.Sections[0].Rows[0]
	assert.Equal(t, "Mathematics", row.SubjectName)
	require.Len(t, row.Grades, models.MaxGradeSlots, "slots must be padded to full width")
	require.NotNil(t, row.Grades[0])
	assert.Equal(t, 8.0, *row.Grades[0])
	assert.Nil(t, row.Grades[2])
	assert.Nil(t, row.Grades[3])
	assert.Nil(t, row.Average, "average stays pending until every slot is filled")
	assert.Equal(t, 2, row.Absences)
}

func TestGetReportCardComputesAverageWhenComplete(t *testing.T) {
	enrollments := []models.ClassEnrollment{{ClassID: "c-1", AcademicYear: 2025}}
	details := map[string][]models.SessionDetail{
		"c-1": {sessionDetail("se-1", "MAT01", "Mathematics")},
	}
	cards := map[string][]models.ReportCard{
		"c-1": {{SessionID: "se-1", Grades: pq.Float64Array{8, 7, 9, 6}, Situation: models.SituationInProgress}},
	}
	svc := newTranscriptFixture(enrollments, details, cards)

	transcript, err := svc.GetReportCard(context.Background(), "202500000001")
	require.NoError(t, err)
	row := transcript.Sections[0].Rows[0]
	require.NotNil(t, row.Average)
	assert.InDelta(t, 7.5, *row.Average, 1e-9)
}

func TestGetReportCardNoEnrollment(t *testing.T) {
	svc := newTranscriptFixture(nil, nil, nil)

	_, err := svc.GetReportCard(context.Background(), "202500000001")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestGetReportCardRefusesLedgerHole(t *testing.T) {
	enrollments := []models.ClassEnrollment{{ClassID: "c-1", AcademicYear: 2025}}
	details := map[string][]models.SessionDetail{
		"c-1": {
			sessionDetail("se-1", "MAT01", "Mathematics"),
			sessionDetail("se-2", "POR01", "Portuguese"),
		},
	}
	// se-2 has no card: the section must be refused, not shortened.
	cards := map[string][]models.ReportCard{
		"c-1": {{SessionID: "se-1", Grades: pq.Float64Array{8}}},
	}
	svc := newTranscriptFixture(enrollments, details, cards)

	_, err := svc.GetReportCard(context.Background(), "202500000001")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLedgerInconsistent))
}

func TestGetHistoryCoversEveryEnrollment(t *testing.T) {
	enrollments := []models.ClassEnrollment{
		{ClassID: "c-0", AcademicYear: 2024},
		{ClassID: "c-1", AcademicYear: 2025},
	}
	details := map[string][]models.SessionDetail{
		"c-0": {sessionDetail("se-0", "MAT01", "Mathematics")},
		"c-1": {sessionDetail("se-1", "MAT01", "Mathematics")},
	}
	cards := map[string][]models.ReportCard{
		"c-0": {{SessionID: "se-0", Grades: pq.Float64Array{6, 6, 6, 6}, Situation: models.SituationPassed}},
		"c-1": {{SessionID: "se-1", Situation: models.SituationInProgress}},
	}
	svc := newTranscriptFixture(enrollments, details, cards)

	transcript, err := svc.GetHistory(context.Background(), "202500000001")
	require.NoError(t, err)
	require.Len(t, transcript.Sections, 2)
}

func TestGetHistoryUnknownStudent(t *testing.T) {
	svc := newTranscriptFixture(nil, nil, nil)

	_, err := svc.GetHistory(context.Background(), "209900000009")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
