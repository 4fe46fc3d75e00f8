package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolardev/escolar-api/internal/models"
	"github.com/escolardev/escolar-api/internal/repository"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
)

type enrollmentRepoStub struct {
	enrollments []models.ClassEnrollment
	result      *models.EnrollmentResult
	err         error

	enrollCalls    int
	lastSessionIDs []string
	lastClass      models.Class
}

func (r *enrollmentRepoStub) ListByStudent(ctx context.Context, studentID string) ([]models.ClassEnrollment, error) {
	return r.enrollments, nil
}

func (r *enrollmentRepoStub) Enroll(ctx context.Context, studentID string, target models.Class, sessionIDs []string) (*models.EnrollmentResult, error) {
	r.enrollCalls++
	r.lastClass = target
	r.lastSessionIDs = sessionIDs
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

type studentReaderStub struct {
	student *models.Student
	err     error
}

func (s *studentReaderStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.student, nil
}

type classReaderStub struct {
	class *models.Class
	err   error
}

func (s *classReaderStub) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.class, nil
}

type sessionListerStub struct {
	sessions []models.ClassSession
}

func (s *sessionListerStub) ListByClass(ctx context.Context, classID string) ([]models.ClassSession, error) {
	return s.sessions, nil
}

func newEnrollmentService(repo *enrollmentRepoStub, classes *classReaderStub, sessions *sessionListerStub) *EnrollmentService {
	return NewEnrollmentService(repo, &studentReaderStub{student: &models.Student{ID: "st-1"}}, classes, sessions, nil, nil, nil, nil)
}

func TestEnrollRejectsMissingFields(t *testing.T) {
	svc := newEnrollmentService(&enrollmentRepoStub{}, &classReaderStub{}, &sessionListerStub{})

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "st-1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEnrollUnknownClass(t *testing.T) {
	svc := newEnrollmentService(&enrollmentRepoStub{}, &classReaderStub{err: sql.ErrNoRows}, &sessionListerStub{})

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "st-1", ClassID: "c-1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnrollClosedClass(t *testing.T) {
	repo := &enrollmentRepoStub{}
	classes := &classReaderStub{class: &models.Class{ID: "c-1", Status: models.ClassStatusClosed, AcademicYear: 2025}}
	svc := newEnrollmentService(repo, classes, &sessionListerStub{})

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "st-1", ClassID: "c-1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrClassClosed))
	assert.Zero(t, repo.enrollCalls, "a closed class must create nothing")
}

func TestEnrollMapsRepositorySentinels(t *testing.T) {
	cases := []struct {
		name string
		repo error
		want *appErrors.Error
	}{
		{"student missing", repository.ErrStudentNotFound, appErrors.ErrNotFound},
		{"same class", repository.ErrAlreadyEnrolled, appErrors.ErrAlreadyEnrolled},
		{"same year", repository.ErrDuplicateYear, appErrors.ErrDuplicateYear},
		{"ledger collision", repository.ErrDuplicateReportCard, appErrors.ErrLedgerInconsistent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &enrollmentRepoStub{err: tc.repo}
			classes := &classReaderStub{class: &models.Class{ID: "c-1", Status: models.ClassStatusOpen, AcademicYear: 2025}}
			svc := newEnrollmentService(repo, classes, &sessionListerStub{})

			_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "st-1", ClassID: "c-1"})
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, tc.want))
		})
	}
}

func TestEnrollPassesEverySessionToTheCascade(t *testing.T) {
	repo := &enrollmentRepoStub{result: &models.EnrollmentResult{
		StudentID:      "st-1",
		RegistrationID: "202500000001",
		ClassID:        "c-1",
		Mode:           models.EnrollmentModeCreate,
		ReportCards:    3,
	}}
	classes := &classReaderStub{class: &models.Class{ID: "c-1", Status: models.ClassStatusOpen, AcademicYear: 2025}}
	sessions := &sessionListerStub{sessions: []models.ClassSession{{ID: "se-1"}, {ID: "se-2"}, {ID: "se-3"}}}
	svc := newEnrollmentService(repo, classes, sessions)

	result, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "st-1", ClassID: "c-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"se-1", "se-2", "se-3"}, repo.lastSessionIDs)
	assert.Equal(t, "c-1", repo.lastClass.ID)
	assert.Equal(t, models.EnrollmentModeCreate, result.Mode)
	assert.Equal(t, 3, result.ReportCards)
}

func TestListEnrollmentsReturnsCurrent(t *testing.T) {
	repo := &enrollmentRepoStub{enrollments: []models.ClassEnrollment{
		{ClassID: "c-2023", AcademicYear: 2023},
		{ClassID: "c-2025", AcademicYear: 2025},
	}}
	svc := newEnrollmentService(repo, &classReaderStub{}, &sessionListerStub{})

	enrollments, current, err := svc.ListEnrollments(context.Background(), "st-1")
	require.NoError(t, err)
	assert.Len(t, enrollments, 2)
	require.NotNil(t, current)
	assert.Equal(t, "c-2025", current.ClassID)
}

func TestListEnrollmentsUnknownStudent(t *testing.T) {
	svc := NewEnrollmentService(&enrollmentRepoStub{}, &studentReaderStub{err: sql.ErrNoRows}, &classReaderStub{}, &sessionListerStub{}, nil, nil, nil, nil)

	_, _, err := svc.ListEnrollments(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
