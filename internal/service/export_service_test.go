package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolardev/escolar-api/internal/models"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
	"github.com/escolardev/escolar-api/pkg/storage"
)

type transcriptProviderStub struct {
	transcript *models.Transcript
	err        error
}

func (s *transcriptProviderStub) GetReportCard(ctx context.Context, registrationID string) (*models.Transcript, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.transcript, nil
}

func (s *transcriptProviderStub) GetHistory(ctx context.Context, registrationID string) (*models.Transcript, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.transcript, nil
}

type fileStorageStub struct {
	saved map[string][]byte
}

func (s *fileStorageStub) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[filename] = data
	return filename, nil
}

func (s *fileStorageStub) Open(filename string) (*os.File, error) { return nil, os.ErrNotExist }

func (s *fileStorageStub) CleanupOlderThan(ttl time.Duration) ([]string, error) { return nil, nil }

func sampleTranscript() *models.Transcript {
	avg := 7.5
	g1, g2 := 8.0, 7.0
	return &models.Transcript{
		StudentID:      "st-1",
		RegistrationID: "202500000001",
		StudentName:    "Ana Souza",
		Sections: []models.TranscriptSection{{
			ClassID:      "c-1",
			AcademicYear: 2025,
			Rows: []models.TranscriptRow{
				{
					SubjectName: "Mathematics",
					Grades:      []*float64{&g1, &g2, nil, nil},
					Average:     nil,
					Absences:    2,
					Situation:   models.SituationInProgress,
				},
				{
					SubjectName: "Portuguese",
					Grades:      []*float64{&g1, &g1, &g2, &g2},
					Average:     &avg,
					Absences:    0,
					Situation:   models.SituationPassed,
				},
			},
		}},
	}
}

func newExportFixture(t *testing.T, provider transcriptProvider) (*ExportService, *fileStorageStub) {
	t.Helper()
	store := &fileStorageStub{}
	signer := storage.NewSignedURLSigner("test-export-secret", time.Hour)
	svc := NewExportService(provider, store, signer, nil, ExportConfig{
		APIPrefix:  "/api/v1",
		ResultTTL:  time.Hour,
		Workers:    1,
		MaxRetries: 1,
	}, nil)
	return svc, store
}

func TestEnqueueRejectsUnknownKind(t *testing.T) {
	svc, _ := newExportFixture(t, &transcriptProviderStub{transcript: sampleTranscript()})

	_, err := svc.Enqueue(context.Background(), CreateExportRequest{
		RegistrationID: "202500000001", Kind: "spreadsheet", Format: models.ExportFormatCSV,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEnqueueRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportFixture(t, &transcriptProviderStub{transcript: sampleTranscript()})

	_, err := svc.Enqueue(context.Background(), CreateExportRequest{
		RegistrationID: "202500000001", Kind: models.ExportKindHistory, Format: "xlsx",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestEnqueueRejectsUnknownStudent(t *testing.T) {
	svc, _ := newExportFixture(t, &transcriptProviderStub{
		err: appErrors.Clone(appErrors.ErrNotFound, "student not found"),
	})

	_, err := svc.Enqueue(context.Background(), CreateExportRequest{
		RegistrationID: "209900000009", Kind: models.ExportKindReportCard, Format: models.ExportFormatPDF,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestEnqueueAndCompleteCSVExport(t *testing.T) {
	svc, store := newExportFixture(t, &transcriptProviderStub{transcript: sampleTranscript()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Enqueue(ctx, CreateExportRequest{
		RegistrationID: "202500000001", Kind: models.ExportKindReportCard, Format: models.ExportFormatCSV,
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	require.Eventually(t, func() bool {
		current, err := svc.GetJob(job.ID)
		return err == nil && current.Status == models.ExportStatusCompleted
	}, 3*time.Second, 20*time.Millisecond)

	current, err := svc.GetJob(job.ID)
	require.NoError(t, err)
	assert.Contains(t, current.URL, "/api/v1/exports/download/")
	require.NotNil(t, current.ExpiresAt)
	require.Len(t, store.saved, 1)
}

func TestGetJobNotFound(t *testing.T) {
	svc, _ := newExportFixture(t, &transcriptProviderStub{transcript: sampleTranscript()})

	_, err := svc.GetJob("missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestBuildTranscriptDatasetReportCard(t *testing.T) {
	dataset := buildTranscriptDataset(sampleTranscript(), models.ExportKindReportCard)

	assert.Equal(t, "Report Card", dataset.Title)
	assert.Equal(t, []string{"Subject", "Grade 1", "Grade 2", "Grade 3", "Grade 4", "Average", "Absences", "Situation"}, dataset.Headers)
	assert.Contains(t, dataset.Meta, "Student: Ana Souza")
	assert.Contains(t, dataset.Meta, "Registration: 202500000001")
	assert.Contains(t, dataset.Meta, "Academic year: 2025")

	require.Len(t, dataset.Rows, 2)
	pending := dataset.Rows[0]
	assert.Equal(t, "8.0", pending["Grade 1"])
	assert.Equal(t, "---", pending["Grade 3"], "empty slots render as placeholders")
	assert.Equal(t, "---", pending["Average"])

	complete := dataset.Rows[1]
	assert.Equal(t, "7.50", complete["Average"])
	assert.Equal(t, string(models.SituationPassed), complete["Situation"])
}

func TestBuildTranscriptDatasetHistoryAddsYearColumn(t *testing.T) {
	dataset := buildTranscriptDataset(sampleTranscript(), models.ExportKindHistory)

	assert.Equal(t, "Academic History", dataset.Title)
	require.NotEmpty(t, dataset.Headers)
	assert.Equal(t, "Year", dataset.Headers[0])
	assert.NotContains(t, dataset.Meta, "Academic year: 2025", "history keeps the year per row")
	require.Len(t, dataset.Rows, 2)
	assert.Equal(t, "2025", dataset.Rows[0]["Year"])
}
