package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolardev/escolar-api/internal/models"
	"github.com/escolardev/escolar-api/internal/service"
)

func TestGradebookHandlerRecordGradeInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewGradebookHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/gradebook/grades", bytes.NewBufferString(`{"registration_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.RecordGrade(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradebookHandlerRecordAbsencesInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewGradebookHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/gradebook/absences", bytes.NewBufferString(`not json`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.RecordAbsences(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

type transcriptStudents struct{ student *models.Student }

func (s *transcriptStudents) FindByRegistration(ctx context.Context, registrationID string) (*models.Student, error) {
	if s.student == nil {
		return nil, sql.ErrNoRows
	}
	return s.student, nil
}

type transcriptEnrollments struct{ enrollments []models.ClassEnrollment }

func (s *transcriptEnrollments) ListByStudent(ctx context.Context, studentID string) ([]models.ClassEnrollment, error) {
	return s.enrollments, nil
}

type transcriptClasses struct{ class *models.Class }

func (s *transcriptClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	return s.class, nil
}

type transcriptSessions struct{ details []models.SessionDetail }

func (s *transcriptSessions) ListDetailsByClass(ctx context.Context, classID string) ([]models.SessionDetail, error) {
	return s.details, nil
}

type transcriptCards struct{ cards []models.ReportCard }

func (s *transcriptCards) ListByStudentAndClass(ctx context.Context, studentID, classID string) ([]models.ReportCard, error) {
	return s.cards, nil
}

func TestTranscriptHandlerReportCard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registration := "202500000001"
	svc := service.NewTranscriptService(
		&transcriptStudents{student: &models.Student{ID: "st-1", RegistrationID: &registration, FullName: "Ana Souza"}},
		&transcriptEnrollments{enrollments: []models.ClassEnrollment{{ClassID: "c-1", AcademicYear: 2025}}},
		&transcriptClasses{class: &models.Class{ID: "c-1", AcademicYear: 2025}},
		&transcriptSessions{details: []models.SessionDetail{{
			ClassSession: models.ClassSession{ID: "se-1", SubjectCode: "MAT01"},
			SubjectName:  "Mathematics",
		}}},
		&transcriptCards{cards: []models.ReportCard{{SessionID: "se-1", Situation: models.SituationInProgress}}},
		nil, nil)
	handler := NewTranscriptHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/transcripts/202500000001/report-card", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "registration", Value: registration}}

	handler.ReportCard(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Mathematics")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestTranscriptHandlerReportCardUnknownStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewTranscriptService(&transcriptStudents{}, &transcriptEnrollments{},
		&transcriptClasses{}, &transcriptSessions{}, &transcriptCards{}, nil, nil)
	handler := NewTranscriptHandler(svc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/transcripts/209900000009/report-card", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "registration", Value: "209900000009"}}

	handler.ReportCard(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestExportHandlerDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewExportHandler(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/exports", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "exports are not enabled")
}
