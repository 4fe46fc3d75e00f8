package models

import "time"

// ExportKind selects which transcript view an export renders.
type ExportKind string

const (
	ExportKindReportCard ExportKind = "report_card"
	ExportKindHistory    ExportKind = "history"
)

// Valid returns true when the kind is a supported value.
func (k ExportKind) Valid() bool {
	return k == ExportKindReportCard || k == ExportKindHistory
}

// ExportFormat selects the rendered file format.
type ExportFormat string

const (
	ExportFormatPDF ExportFormat = "pdf"
	ExportFormatCSV ExportFormat = "csv"
)

// Valid returns true when the format is a supported value.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatPDF || f == ExportFormatCSV
}

// ExportStatus tracks an export job through the queue.
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusCompleted  ExportStatus = "completed"
	ExportStatusFailed     ExportStatus = "failed"
)

// ExportJob is an asynchronous transcript export request.
type ExportJob struct {
	ID             string       `json:"id"`
	RegistrationID string       `json:"registration_id"`
	Kind           ExportKind   `json:"kind"`
	Format         ExportFormat `json:"format"`
	Status         ExportStatus `json:"status"`
	URL            string       `json:"url,omitempty"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
