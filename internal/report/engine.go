package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iago/reports-back/internal/cache"
	"github.com/iago/reports-back/internal/datasource"
	"github.com/iago/reports-back/internal/domain"
	"github.com/iago/reports-back/internal/metrics"
	"go.uber.org/zap"
)

const (
	pathScan      = "scan"
	pathAggregate = "aggregate"
	pathMixed     = "mixed"
)

// Config bounds report output and filter acceptance.
type Config struct {
	MaxSpan              time.Duration
	TopProductsLimit     int
	TopCustomersLimit    int
	LowStockLimit        int
	BreakdownLimit       int
	MovementLookback     time.Duration
	MovementLimit        int
	HighValueThreshold   float64
	MediumValueThreshold float64
	CacheTTL             time.Duration
	FastPathEnabled      bool
}

func (c Config) withDefaults() Config {
	if c.MaxSpan <= 0 {
		c.MaxSpan = 366 * 24 * time.Hour
	}
	if c.TopProductsLimit <= 0 {
		c.TopProductsLimit = 10
	}
	if c.TopCustomersLimit <= 0 {
		c.TopCustomersLimit = 10
	}
	if c.LowStockLimit <= 0 {
		c.LowStockLimit = 20
	}
	if c.BreakdownLimit <= 0 {
		c.BreakdownLimit = 10
	}
	if c.MovementLookback <= 0 {
		c.MovementLookback = 30 * 24 * time.Hour
	}
	if c.MovementLimit <= 0 {
		c.MovementLimit = 50
	}
	if c.HighValueThreshold <= 0 {
		c.HighValueThreshold = 1000
	}
	if c.MediumValueThreshold <= 0 || c.MediumValueThreshold > c.HighValueThreshold {
		c.MediumValueThreshold = c.HighValueThreshold / 4
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	return c
}

type Dependencies struct {
	Source  datasource.Source
	Cache   cache.Store
	Config  Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Engine computes reports from a data source. It holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	source  datasource.Source
	cache   cache.Store
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEngine(deps Dependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		source:  deps.Source,
		cache:   deps.Cache,
		cfg:     deps.Config.withDefaults(),
		logger:  logger,
		metrics: deps.Metrics,
		now:     now,
	}
}

// Generate builds one report of the given type.
func (e *Engine) Generate(
	ctx context.Context,
	filter domain.ReportFilter,
	reportType domain.ReportType,
) (result domain.Result, err error) {
	started := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("report generation panicked",
				zap.String("report_type", string(reportType)),
				zap.Any("panic", recovered))
			result = nil
			err = fmt.Errorf("%w: %v", domain.ErrInternal, recovered)
		}
	}()

	if err := filter.Validate(e.cfg.MaxSpan); err != nil {
		return nil, err
	}
	predicate := filter.Resolve()

	path := pathScan
	switch reportType {
	case domain.ReportTypeSales:
		result, err = e.salesReport(ctx, predicate)
	case domain.ReportTypeInventory:
		result, err = e.inventoryReport(ctx, predicate)
	case domain.ReportTypeCustomer:
		result, err = e.customerReport(ctx, predicate)
	case domain.ReportTypeFinancial:
		result, path, err = e.financialReport(ctx, filter, predicate)
	case domain.ReportTypeComparison:
		result, path, err = e.previousPeriodComparison(ctx, filter)
	default:
		return nil, fmt.Errorf("%w: %w: %q", domain.ErrInvalidFilter, domain.ErrUnsupportedReport, reportType)
	}
	if err != nil {
		return nil, classify(err)
	}

	e.metrics.ObserveReport(string(reportType), path, time.Since(started))
	e.logger.Debug("report generated",
		zap.String("report_type", string(reportType)),
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(started)))
	return result, nil
}

// GenerateComparison computes periods A and B concurrently and reports the
// change from A to B.
func (e *Engine) GenerateComparison(
	ctx context.Context,
	filterA domain.ReportFilter,
	filterB domain.ReportFilter,
	opts domain.ComparisonOptions,
) (report *domain.ComparisonReport, err error) {
	started := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			e.logger.Error("comparison generation panicked", zap.Any("panic", recovered))
			report = nil
			err = fmt.Errorf("%w: %v", domain.ErrInternal, recovered)
		}
	}()

	report, path, err := e.comparison(ctx, filterA, filterB, opts)
	if err != nil {
		return nil, classify(err)
	}
	e.metrics.ObserveReport(string(domain.ReportTypeComparison), path, time.Since(started))
	return report, nil
}

// classify keeps known failure classes and folds everything else into
// ErrInternal.
func classify(err error) error {
	for _, known := range []error{
		domain.ErrInvalidFilter,
		domain.ErrUnsupportedReport,
		domain.ErrDataSource,
		domain.ErrInternal,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrInternal, err)
}
