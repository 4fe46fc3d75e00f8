package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escolardev/escolar-api/internal/models"
	appErrors "github.com/escolardev/escolar-api/pkg/errors"
	"github.com/escolardev/escolar-api/pkg/export"
	"github.com/escolardev/escolar-api/pkg/jobs"
	"github.com/escolardev/escolar-api/pkg/storage"
)

type transcriptProvider interface {
	GetReportCard(ctx context.Context, registrationID string) (*models.Transcript, error)
	GetHistory(ctx context.Context, registrationID string) (*models.Transcript, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes transcript export behaviour.
type ExportConfig struct {
	APIPrefix  string
	ResultTTL  time.Duration
	Workers    int
	MaxRetries int
}

// CreateExportRequest asks for an asynchronous transcript export.
type CreateExportRequest struct {
	RegistrationID string              `json:"registration_id" validate:"required"`
	Kind           models.ExportKind   `json:"kind" validate:"required"`
	Format         models.ExportFormat `json:"format" validate:"required"`
}

// ExportService renders transcript views to PDF or CSV in the background.
// Job state lives in memory; exports are throwaway artifacts reachable
// only through their signed download URL.
type ExportService struct {
	transcripts transcriptProvider
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         ExportConfig

	queue *jobs.Queue

	mu       sync.RWMutex
	registry map[string]*models.ExportJob
}

// NewExportService constructs an ExportService.
func NewExportService(transcripts transcriptProvider, store fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	s := &ExportService{
		transcripts: transcripts,
		storage:     store,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		signer:      signer,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
		registry:    make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("transcript-exports", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue registers an export job and schedules it.
func (s *ExportService) Enqueue(ctx context.Context, req CreateExportRequest) (*models.ExportJob, error) {
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown export kind")
	}
	if !req.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown export format")
	}
	// Resolve eagerly so a bad registration fails the request, not the job.
	if _, err := s.transcripts.GetReportCard(ctx, req.RegistrationID); err != nil {
		if appErrors.Is(err, appErrors.ErrNotFound) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify transcript")
	}

	now := time.Now().UTC()
	job := &models.ExportJob{
		ID:             uuid.NewString(),
		RegistrationID: req.RegistrationID,
		Kind:           req.Kind,
		Format:         req.Format,
		Status:         models.ExportStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.mu.Lock()
	s.registry[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "transcript_export"}); err != nil {
		s.fail(job.ID, "export queue unavailable")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule export")
	}
	return s.snapshot(job.ID), nil
}

// GetJob returns the job's current state.
func (s *ExportService) GetJob(id string) (*models.ExportJob, error) {
	job := s.snapshot(id)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// ParseToken validates a signed download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to a stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes export files older than ttl (the configured ResultTTL
// when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) handleJob(ctx context.Context, queued jobs.Job) error {
	job := s.snapshot(queued.ID)
	if job == nil {
		return fmt.Errorf("export job %s not registered", queued.ID)
	}
	s.transition(job.ID, models.ExportStatusProcessing, "", "", nil)

	transcript, err := s.loadTranscript(ctx, job)
	if err != nil {
		s.fail(job.ID, appErrors.FromError(err).Message)
		return err
	}

	dataset := buildTranscriptDataset(transcript, job.Kind)
	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		s.fail(job.ID, "failed to render export")
		return err
	}

	filename := fmt.Sprintf("%s_%s_%s.%s", job.Kind, job.RegistrationID,
		time.Now().UTC().Format("20060102_150405"), job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.fail(job.ID, "failed to store export")
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(job.ID, "failed to sign download url")
		return err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	url := fmt.Sprintf("%s/exports/download/%s", prefix, token)

	s.transition(job.ID, models.ExportStatusCompleted, url, "", &expiresAt)
	s.metrics.RecordExportJob(string(models.ExportStatusCompleted))
	s.logger.Info("transcript export completed",
		zap.String("job_id", job.ID),
		zap.String("registration_id", job.RegistrationID),
		zap.String("kind", string(job.Kind)),
		zap.String("format", string(job.Format)))
	return nil
}

func (s *ExportService) loadTranscript(ctx context.Context, job *models.ExportJob) (*models.Transcript, error) {
	if job.Kind == models.ExportKindHistory {
		return s.transcripts.GetHistory(ctx, job.RegistrationID)
	}
	return s.transcripts.GetReportCard(ctx, job.RegistrationID)
}

func (s *ExportService) snapshot(id string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.registry[id]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func (s *ExportService) transition(id string, status models.ExportStatus, url, errMsg string, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.registry[id]
	if !ok {
		return
	}
	job.Status = status
	job.URL = url
	job.Error = errMsg
	job.ExpiresAt = expiresAt
	job.UpdatedAt = time.Now().UTC()
}

func (s *ExportService) fail(id, message string) {
	s.transition(id, models.ExportStatusFailed, "", message, nil)
	s.metrics.RecordExportJob(string(models.ExportStatusFailed))
}

// buildTranscriptDataset flattens transcript sections into the export
// table. History exports get a Year column; report-card exports cover a
// single class so the year lives in the header block instead.
func buildTranscriptDataset(transcript *models.Transcript, kind models.ExportKind) export.Dataset {
	withYear := kind == models.ExportKindHistory

	headers := []string{"Subject"}
	if withYear {
		headers = append([]string{"Year"}, headers...)
	}
	for i := 1; i <= models.MaxGradeSlots; i++ {
		headers = append(headers, fmt.Sprintf("Grade %d", i))
	}
	headers = append(headers, "Average", "Absences", "Situation")

	var rows []map[string]string
	for _, section := range transcript.Sections {
		for _, row := range section.Rows {
			record := map[string]string{
				"Subject":   row.SubjectName,
				"Average":   formatAverage(row.Average),
				"Absences":  fmt.Sprintf("%d", row.Absences),
				"Situation": string(row.Situation),
			}
			if withYear {
				record["Year"] = fmt.Sprintf("%d", section.AcademicYear)
			}
			for i := 0; i < models.MaxGradeSlots; i++ {
				key := fmt.Sprintf("Grade %d", i+1)
				if i < len(row.Grades) && row.Grades[i] != nil {
					record[key] = fmt.Sprintf("%.1f", *row.Grades[i])
				} else {
					record[key] = "---"
				}
			}
			rows = append(rows, record)
		}
	}

	title := "Report Card"
	if kind == models.ExportKindHistory {
		title = "Academic History"
	}
	meta := []string{
		fmt.Sprintf("Student: %s", transcript.StudentName),
		fmt.Sprintf("Registration: %s", transcript.RegistrationID),
	}
	if !withYear && len(transcript.Sections) == 1 {
		meta = append(meta, fmt.Sprintf("Academic year: %d", transcript.Sections[0].AcademicYear))
	}

	return export.Dataset{Title: title, Meta: meta, Headers: headers, Rows: rows}
}

func formatAverage(avg *float64) string {
	if avg == nil {
		return "---"
	}
	return fmt.Sprintf("%.2f", *avg)
}
