package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iago/reports-back/internal/domain"
	"github.com/iago/reports-back/internal/events"
	"github.com/iago/reports-back/internal/metrics"
	"github.com/iago/reports-back/internal/repository"
	"github.com/iago/reports-back/internal/worker"
	"go.uber.org/zap"
)

const maxListLimit = 200

type ExportConfig struct {
	Tick      time.Duration
	Step      int
	Retention time.Duration
	MaxJobs   int
	MaxSpan   time.Duration
}

type ExportDependencies struct {
	Repository repository.JobsRepository
	Generator  worker.Generator
	Serializer worker.Serializer
	Publisher  events.Publisher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Config     ExportConfig
	Now        func() time.Time
}

// ExportService accepts export requests and runs each one in its own
// goroutine until it completes, fails or is cancelled.
type ExportService struct {
	repo    repository.JobsRepository
	runner  *worker.ExportRunner
	metrics *metrics.Metrics
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewExportService(deps ExportDependencies) *ExportService {
	cfg := deps.Config
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	if cfg.MaxJobs <= 0 {
		cfg.MaxJobs = 200
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	repo := deps.Repository
	if repo == nil {
		repo = repository.NewMemoryJobsRepository()
	}

	runner := worker.NewExportRunner(
		repo,
		deps.Generator,
		deps.Serializer,
		deps.Publisher,
		deps.Metrics,
		logger,
		worker.RunnerConfig{Tick: cfg.Tick, Step: cfg.Step},
	).WithClock(now)

	baseCtx, stop := context.WithCancel(context.Background())
	return &ExportService{
		repo:    repo,
		runner:  runner,
		metrics: deps.Metrics,
		logger:  logger,
		cfg:     cfg,
		now:     now,
		baseCtx: baseCtx,
		stop:    stop,
	}
}

// Enqueue validates the request, stores a queued job and starts its
// execution. It never waits for the export to finish.
func (s *ExportService) Enqueue(
	ctx context.Context,
	reportType domain.ReportType,
	format domain.ExportFormat,
	filter domain.ReportFilter,
) (*domain.Job, error) {
	reportType, err := domain.ParseReportType(string(reportType))
	if err != nil {
		return nil, err
	}
	format, err = domain.ParseExportFormat(string(format))
	if err != nil {
		return nil, err
	}
	if err := filter.Validate(s.cfg.MaxSpan); err != nil {
		return nil, err
	}
	if reportType == domain.ReportTypeComparison && (filter.StartDate == nil || filter.EndDate == nil) {
		return nil, fmt.Errorf("%w: comparison requires start and end dates", domain.ErrInvalidFilter)
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		Type:      reportType,
		Format:    format,
		Filter:    filter,
		Status:    domain.JobStatusQueued,
		Progress:  0,
		CreatedAt: s.now(),
	}

	jobCtx, cancel := context.WithCancel(s.baseCtx)
	if err := s.repo.CreateJob(ctx, job, cancel); err != nil {
		cancel()
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.metrics.JobEnqueued(string(reportType), string(format))
	s.logger.Info("export job enqueued",
		zap.String("job_id", job.ID),
		zap.String("report_type", string(reportType)),
		zap.String("format", string(format)))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runner.Run(jobCtx, job.ID)
	}()

	s.Sweep(ctx)
	return job, nil
}

func (s *ExportService) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return s.repo.GetJob(ctx, jobID)
}

// Cancel stops a queued or running job. It reports false when the job is
// unknown or already terminal.
func (s *ExportService) Cancel(ctx context.Context, jobID string) bool {
	job, err := s.repo.Transition(ctx, jobID, func(job *domain.Job) error {
		if job.Status.Terminal() {
			return repository.ErrSkipped
		}
		completedAt := s.now()
		job.Status = domain.JobStatusCancelled
		job.Progress = 0
		job.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		return false
	}
	s.repo.Release(ctx, jobID)

	s.logger.Info("export job cancelled", zap.String("job_id", jobID))
	s.metrics.JobFinished(string(domain.JobStatusCancelled))
	s.runner.Announce(ctx, job)
	return true
}

// Delete removes the job whatever its status and stops its execution.
func (s *ExportService) Delete(ctx context.Context, jobID string) bool {
	job, err := s.repo.DeleteJob(ctx, jobID)
	if err != nil {
		return false
	}
	if !job.Status.Terminal() {
		s.metrics.JobFinished("deleted")
	}
	s.logger.Info("export job deleted", zap.String("job_id", jobID), zap.String("status", string(job.Status)))

	s.Sweep(ctx)
	return true
}

// List returns jobs newest first, at most limit clamped to [1, 200].
func (s *ExportService) List(ctx context.Context, limit int) ([]*domain.Job, error) {
	switch {
	case limit < 1:
		limit = 1
	case limit > maxListLimit:
		limit = maxListLimit
	}
	s.Sweep(ctx)

	jobs, err := s.repo.ListJobs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Sweep applies the retention policy and returns how many jobs were evicted.
func (s *ExportService) Sweep(ctx context.Context) int {
	evicted := s.repo.Sweep(ctx, s.now(), s.cfg.Retention, s.cfg.MaxJobs)
	if len(evicted) > 0 {
		s.metrics.JobsEvicted(len(evicted))
		s.logger.Debug("export jobs evicted", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

// Shutdown stops every running export and waits for their goroutines.
func (s *ExportService) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("export jobs did not stop before shutdown deadline")
	}
}
