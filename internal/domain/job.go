package domain

import (
	"fmt"
	"strings"
	"time"
)

type ExportFormat string

const (
	ExportFormatCSV   ExportFormat = "csv"
	ExportFormatJSON  ExportFormat = "json"
	ExportFormatPDF   ExportFormat = "pdf"
	ExportFormatExcel ExportFormat = "excel"
)

func ParseExportFormat(value string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(value))); f {
	case ExportFormatCSV, ExportFormatJSON, ExportFormatPDF, ExportFormatExcel:
		return f, nil
	case "xlsx":
		return ExportFormatExcel, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
	}
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is one asynchronous export request and its outcome.
type Job struct {
	ID          string
	Type        ReportType
	Format      ExportFormat
	Filter      ReportFilter
	Status      JobStatus
	Progress    int
	Error       string
	Result      *JobResult
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// JobResult is the finished artifact. Data is not mutated after completion.
type JobResult struct {
	Filename    string
	ContentType string
	Size        int
	Data        []byte
}

// JobEvent announces a terminal job transition to downstream listeners.
type JobEvent struct {
	JobID      string       `json:"job_id"`
	Type       ReportType   `json:"type"`
	Format     ExportFormat `json:"format"`
	Status     JobStatus    `json:"status"`
	Error      string       `json:"error,omitempty"`
	Filename   string       `json:"filename,omitempty"`
	Size       int          `json:"size,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}
