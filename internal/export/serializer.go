package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iago/reports-back/internal/domain"
	"github.com/iago/reports-back/internal/render"
)

const (
	ContentTypeCSV   = "text/csv"
	ContentTypeJSON  = "application/json"
	ContentTypePDF   = "application/pdf"
	ContentTypeExcel = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Output is a serialized report ready to be stored or streamed.
type Output struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Serializer turns report results into downloadable documents.
type Serializer struct {
	renderer render.Renderer
	now      func() time.Time
}

func NewSerializer(renderer render.Renderer) *Serializer {
	return &Serializer{
		renderer: renderer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for generation timestamps and filenames.
func (s *Serializer) WithClock(now func() time.Time) *Serializer {
	s.now = now
	return s
}

func (s *Serializer) Serialize(
	ctx context.Context,
	reportType domain.ReportType,
	result domain.Result,
	filter domain.ReportFilter,
	format domain.ExportFormat,
) (Output, error) {
	if result == nil {
		return Output{}, fmt.Errorf("%w: nothing to serialize", domain.ErrInternal)
	}
	if result.ReportType() != reportType {
		return Output{}, fmt.Errorf("%w: result is %s, expected %s", domain.ErrInternal, result.ReportType(), reportType)
	}

	generatedAt := s.now().UTC()
	var (
		data        []byte
		contentType string
		extension   string
		err         error
	)
	switch format {
	case domain.ExportFormatCSV:
		data, err = encodeCSV(reportType, result, filter, generatedAt)
		contentType, extension = ContentTypeCSV, "csv"
	case domain.ExportFormatJSON:
		data, err = encodeJSON(reportType, result, filter, generatedAt)
		contentType, extension = ContentTypeJSON, "json"
	case domain.ExportFormatPDF:
		data, err = s.renderDocument(ctx, result, render.KindPDF)
		contentType, extension = ContentTypePDF, "pdf"
	case domain.ExportFormatExcel:
		data, err = s.renderDocument(ctx, result, render.KindExcel)
		contentType, extension = ContentTypeExcel, "xlsx"
	default:
		return Output{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Output{}, err
	}

	return Output{
		Data:        data,
		ContentType: contentType,
		Filename:    Filename(reportType, generatedAt, extension),
	}, nil
}

// Filename is <type>-report-<YYYYMMDD-HHMMSS>.<ext>.
func Filename(reportType domain.ReportType, at time.Time, extension string) string {
	return fmt.Sprintf("%s-report-%s.%s", reportType, at.UTC().Format("20060102-150405"), extension)
}

func (s *Serializer) renderDocument(ctx context.Context, result domain.Result, kind render.Kind) ([]byte, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("%w: no renderer configured", domain.ErrRender)
	}
	sections, err := Sections(result)
	if err != nil {
		return nil, err
	}
	data, err := s.renderer.Render(ctx, sections, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrRender, kind, err)
	}
	return data, nil
}

func encodeCSV(
	reportType domain.ReportType,
	result domain.Result,
	filter domain.ReportFilter,
	generatedAt time.Time,
) ([]byte, error) {
	sections, err := Sections(result)
	if err != nil {
		return nil, err
	}
	filterJSON, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: encode filter: %w", domain.ErrInternal, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	records := [][]string{
		{"report", string(reportType)},
		{"generated_at", generatedAt.Format(time.RFC3339)},
		{"filter", string(filterJSON)},
		{},
	}
	for _, section := range sections {
		records = append(records, []string{section.Title}, section.Columns)
		records = append(records, section.Rows...)
		records = append(records, []string{})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("%w: write csv: %w", domain.ErrInternal, err)
	}
	return buf.Bytes(), nil
}

type envelope struct {
	ReportType  domain.ReportType   `json:"report_type"`
	GeneratedAt time.Time           `json:"generated_at"`
	Filter      domain.ReportFilter `json:"filter"`
	Data        domain.Result       `json:"data"`
	Legacy      map[string]any      `json:"legacy"`
}

func encodeJSON(
	reportType domain.ReportType,
	result domain.Result,
	filter domain.ReportFilter,
	generatedAt time.Time,
) ([]byte, error) {
	data, err := json.Marshal(envelope{
		ReportType:  reportType,
		GeneratedAt: generatedAt,
		Filter:      filter,
		Data:        result,
		Legacy:      legacyAliases(result),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode json: %w", domain.ErrInternal, err)
	}
	return data, nil
}
