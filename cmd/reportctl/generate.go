package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iago/reports-back/internal/config"
	"github.com/iago/reports-back/internal/datasource"
	"github.com/iago/reports-back/internal/domain"
	"github.com/iago/reports-back/internal/export"
	"github.com/iago/reports-back/internal/logging"
	"github.com/iago/reports-back/internal/render"
	"github.com/iago/reports-back/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type generateOptions struct {
	reportType string
	format     string
	start      string
	end        string
	since      string
	productID  string
	categoryID string
	customerID string
	supplierID string
	userID     string
	status     string
	out        string
}

func newGenerateCommand() *cobra.Command {
	opts := generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one report and write it to a file",
		Example: "  reportctl generate --type sales --format excel --start 2024-01-01 --end 2024-03-31\n" +
			"  reportctl generate --type inventory --format csv --out -",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerateCommand(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.reportType, "type", "t", "sales", "report type: sales, inventory, customer, financial, comparison")
	flags.StringVarP(&opts.format, "format", "f", "csv", "export format: csv, json, pdf, excel")
	flags.StringVar(&opts.start, "start", "", "start date (YYYY-MM-DD or RFC3339)")
	flags.StringVar(&opts.end, "end", "", "end date, inclusive (YYYY-MM-DD or RFC3339)")
	flags.StringVar(&opts.since, "since", "", "only include records at or after this instant")
	flags.StringVar(&opts.productID, "product", "", "product id")
	flags.StringVar(&opts.categoryID, "category", "", "category id")
	flags.StringVar(&opts.customerID, "customer", "", "customer id")
	flags.StringVar(&opts.supplierID, "supplier", "", "supplier id")
	flags.StringVar(&opts.userID, "user", "", "user id")
	flags.StringVar(&opts.status, "status", "", "sale status")
	flags.StringVarP(&opts.out, "out", "o", "", "output file or directory; '-' writes to stdout (default: generated filename)")
	return cmd
}

func runGenerateCommand(ctx context.Context, opts generateOptions, stdout, stderr io.Writer) error {
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		fmt.Fprintf(stderr, "failed loading .env files: %v\n", err)
	}
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var source datasource.Source = datasource.NewMemorySource()
	if cfg.DatabaseURL != "" {
		pg, err := datasource.NewPostgresSource(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect data source: %w", err)
		}
		defer pg.Close()
		source = pg
	} else {
		logger.Warn("DATABASE_URL not configured, generating from an empty in-memory source")
	}

	engine := report.NewEngine(report.Dependencies{
		Source: source,
		Config: report.Config{
			MaxSpan:              cfg.MaxSpan(),
			TopProductsLimit:     cfg.ReportTopProductsLimit,
			TopCustomersLimit:    cfg.ReportTopCustomersLimit,
			LowStockLimit:        cfg.ReportLowStockLimit,
			BreakdownLimit:       cfg.ReportBreakdownLimit,
			MovementLookback:     cfg.MovementLookback(),
			MovementLimit:        cfg.ReportMovementLimit,
			HighValueThreshold:   cfg.ReportHighValueThreshold,
			MediumValueThreshold: cfg.ReportMediumValueThreshold,
			FastPathEnabled:      cfg.FastPathEnabled,
		},
		Logger: logger,
	})

	path, size, err := generate(ctx, engine, export.NewSerializer(render.NewComposite()), opts, stdout)
	if err != nil {
		return err
	}
	if path != "" {
		logger.Info("report written", zap.String("path", path), zap.Int("bytes", size))
	}
	return nil
}

type generator interface {
	Generate(ctx context.Context, filter domain.ReportFilter, reportType domain.ReportType) (domain.Result, error)
}

// generate runs one report through the serializer and writes it. It returns
// the written path, empty when the output went to stdout.
func generate(
	ctx context.Context,
	engine generator,
	serializer *export.Serializer,
	opts generateOptions,
	stdout io.Writer,
) (string, int, error) {
	reportType, err := domain.ParseReportType(opts.reportType)
	if err != nil {
		return "", 0, err
	}
	format, err := domain.ParseExportFormat(opts.format)
	if err != nil {
		return "", 0, err
	}
	filter, err := opts.filter()
	if err != nil {
		return "", 0, err
	}

	result, err := engine.Generate(ctx, filter, reportType)
	if err != nil {
		return "", 0, err
	}
	output, err := serializer.Serialize(ctx, reportType, result, filter, format)
	if err != nil {
		return "", 0, err
	}

	if opts.out == "-" {
		_, err := stdout.Write(output.Data)
		return "", len(output.Data), err
	}

	path := output.Filename
	if opts.out != "" {
		path = opts.out
		if info, err := os.Stat(opts.out); err == nil && info.IsDir() {
			path = filepath.Join(opts.out, output.Filename)
		}
	}
	if err := os.WriteFile(path, output.Data, 0o644); err != nil {
		return "", 0, fmt.Errorf("write %s: %w", path, err)
	}
	return path, len(output.Data), nil
}

func (o generateOptions) filter() (domain.ReportFilter, error) {
	start, err := domain.ParseDate(o.start, false)
	if err != nil {
		return domain.ReportFilter{}, err
	}
	end, err := domain.ParseDate(o.end, true)
	if err != nil {
		return domain.ReportFilter{}, err
	}
	since, err := domain.ParseDate(o.since, false)
	if err != nil {
		return domain.ReportFilter{}, err
	}
	return domain.ReportFilter{
		StartDate:  start,
		EndDate:    end,
		Since:      since,
		ProductID:  o.productID,
		CategoryID: o.categoryID,
		CustomerID: o.customerID,
		SupplierID: o.supplierID,
		UserID:     o.userID,
		Status:     o.status,
	}, nil
}
