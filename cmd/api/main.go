package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/iago/reports-back/internal/cache"
	"github.com/iago/reports-back/internal/config"
	"github.com/iago/reports-back/internal/datasource"
	"github.com/iago/reports-back/internal/events"
	"github.com/iago/reports-back/internal/export"
	httpserver "github.com/iago/reports-back/internal/http"
	"github.com/iago/reports-back/internal/http/handlers"
	"github.com/iago/reports-back/internal/logging"
	"github.com/iago/reports-back/internal/metrics"
	"github.com/iago/reports-back/internal/render"
	"github.com/iago/reports-back/internal/report"
	"github.com/iago/reports-back/internal/scheduler"
	"github.com/iago/reports-back/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	dotenvErr := config.LoadDotEnv(".env", ".env.local")
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if dotenvErr != nil {
		logger.Warn("failed loading .env files", zap.Error(dotenvErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	source, sourceCloser := setupSource(ctx, cfg, logger)
	defer sourceCloser()

	store, storeCloser := setupCache(ctx, cfg, logger)
	defer storeCloser()

	publisher, publisherCloser := setupPublisher(ctx, cfg, logger)
	defer publisherCloser()

	engine := report.NewEngine(report.Dependencies{
		Source: source,
		Cache:  store,
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
			CacheTTL:             cfg.CacheTTL(),
			FastPathEnabled:      cfg.FastPathEnabled,
		},
		Logger:  logger.Named("engine"),
		Metrics: appMetrics,
	})

	exports := service.NewExportService(service.ExportDependencies{
		Generator:  engine,
		Serializer: export.NewSerializer(render.NewComposite()),
		Publisher:  publisher,
		Metrics:    appMetrics,
		Logger:     logger.Named("exports"),
		Config: service.ExportConfig{
			Tick:      cfg.ExportTick(),
			Step:      cfg.ExportProgressStep,
			Retention: cfg.ExportRetention(),
			MaxJobs:   cfg.ExportMaxJobs,
			MaxSpan:   cfg.MaxSpan(),
		},
	})

	jobs := scheduler.New(logger.Named("scheduler"))
	if err := jobs.Every("export-retention-sweep", cfg.ExportSweepInterval(), func(ctx context.Context) error {
		exports.Sweep(ctx)
		return nil
	}); err != nil {
		logger.Warn("export sweep not scheduled", zap.Error(err))
	}
	if refresher, ok := source.(datasource.Refresher); ok && cfg.FastPathEnabled {
		if err := jobs.Cron("aggregate-refresh", cfg.AggregateRefreshCron, refresher.RefreshDailyAggregates); err != nil {
			logger.Warn("aggregate refresh not scheduled", zap.Error(err))
		}
	}
	jobs.Start()

	handler := httpserver.NewRouter(ctx, httpserver.RouterDependencies{
		API:            handlers.NewAPI(engine, exports, logger.Named("http")),
		Logger:         logger.Named("http"),
		Gatherer:       registry,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("api listening", zap.String("port", cfg.Port))
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop failed", zap.Error(err))
	}
	if err := exports.Shutdown(shutdownCtx); err != nil {
		logger.Warn("export shutdown failed", zap.Error(err))
	}
}

func setupSource(ctx context.Context, cfg config.Config, logger *zap.Logger) (datasource.Source, func()) {
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL not configured, using in-memory data source")
		return datasource.NewMemorySource(), func() {}
	}

	pg, err := datasource.NewPostgresSource(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("failed to initialize postgres data source, fallback to memory", zap.Error(err))
		return datasource.NewMemorySource(), func() {}
	}
	logger.Info("postgres data source initialized")
	return pg, pg.Close
}

func setupCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (cache.Store, func()) {
	memory := func() cache.Store {
		return cache.NewMemoryStore(cache.Config{TTL: cfg.CacheTTL(), MaxEntries: cfg.CacheMaxEntries})
	}
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not configured, using in-memory result cache")
		return memory(), func() {}
	}

	store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL(),
	}, logger.Named("cache"))
	if err != nil {
		logger.Warn("failed to initialize redis cache, fallback to memory", zap.Error(err))
		return memory(), func() {}
	}
	logger.Info("redis result cache initialized")
	return store, func() { _ = store.Close() }
}

func setupPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (events.Publisher, func()) {
	local := func() (events.Publisher, func()) {
		publisher := events.NewLocalPublisher(512)
		drainCtx, cancel := context.WithCancel(ctx)
		go func() {
			for {
				select {
				case <-drainCtx.Done():
					return
				case event := <-publisher.Events():
					logger.Info("export job event",
						zap.String("job_id", event.JobID),
						zap.String("status", string(event.Status)),
						zap.String("filename", event.Filename))
				}
			}
		}()
		return publisher, cancel
	}

	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not configured, using local event publisher")
		return local()
	}

	streams, err := events.NewStreamsPublisher(ctx, events.StreamsConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Stream:   cfg.RedisEventsStream,
	})
	if err != nil {
		logger.Warn("failed to initialize redis streams publisher, fallback to local", zap.Error(err))
		return local()
	}
	logger.Info("redis streams event publisher initialized", zap.String("stream", cfg.RedisEventsStream))
	return streams, func() { _ = streams.Close() }
}
