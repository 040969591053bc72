package domain

import "errors"

// Failure classes surfaced by report generation and export. Callers match
// them with errors.Is; concrete errors wrap one of these with context.
var (
	ErrInvalidFilter = errors.New("invalid filter")
	ErrDataSource    = errors.New("data source error")
	ErrRender        = errors.New("render error")
	ErrCache         = errors.New("cache error")
	ErrInternal      = errors.New("internal error")

	ErrUnsupportedReport     = errors.New("unsupported report type")
	ErrUnsupportedFormat     = errors.New("unsupported export format")
	ErrAggregatesUnavailable = errors.New("daily aggregates unavailable")
)

// IsCallerError reports whether err was caused by bad input rather than a
// failing collaborator.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrInvalidFilter) ||
		errors.Is(err, ErrUnsupportedReport) ||
		errors.Is(err, ErrUnsupportedFormat)
}
