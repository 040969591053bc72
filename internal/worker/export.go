package worker

import (
	"context"
	"errors"
	"time"

	"github.com/iago/reports-back/internal/domain"
	"github.com/iago/reports-back/internal/events"
	"github.com/iago/reports-back/internal/export"
	"github.com/iago/reports-back/internal/metrics"
	"github.com/iago/reports-back/internal/repository"
	"go.uber.org/zap"
)

const maxRunningProgress = 90

type Generator interface {
	Generate(ctx context.Context, filter domain.ReportFilter, reportType domain.ReportType) (domain.Result, error)
}

type Serializer interface {
	Serialize(
		ctx context.Context,
		reportType domain.ReportType,
		result domain.Result,
		filter domain.ReportFilter,
		format domain.ExportFormat,
	) (export.Output, error)
}

type RunnerConfig struct {
	Tick time.Duration
	Step int
}

// ExportRunner drives one export job from queued to a terminal status.
type ExportRunner struct {
	repo       repository.JobsRepository
	generator  Generator
	serializer Serializer
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	cfg        RunnerConfig
	now        func() time.Time
}

func NewExportRunner(
	repo repository.JobsRepository,
	generator Generator,
	serializer Serializer,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg RunnerConfig,
) *ExportRunner {
	if cfg.Tick <= 0 {
		cfg.Tick = 500 * time.Millisecond
	}
	if cfg.Step <= 0 {
		cfg.Step = 10
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportRunner{
		repo:       repo,
		generator:  generator,
		serializer: serializer,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for job timestamps.
func (r *ExportRunner) WithClock(now func() time.Time) *ExportRunner {
	r.now = now
	return r
}

// Run executes the job. It returns when the job is terminal, when it is
// observed cancelled or deleted, or when ctx is done.
func (r *ExportRunner) Run(ctx context.Context, jobID string) {
	defer r.repo.Release(context.Background(), jobID)

	job, err := r.repo.Transition(ctx, jobID, func(job *domain.Job) error {
		if job.Status != domain.JobStatusQueued {
			return repository.ErrSkipped
		}
		startedAt := r.now()
		job.Status = domain.JobStatusRunning
		job.StartedAt = &startedAt
		return nil
	})
	if err != nil {
		return
	}
	r.logger.Debug("export job running", zap.String("job_id", jobID))

	if !r.advance(ctx, jobID) {
		return
	}

	output, runErr := r.produce(ctx, job)
	r.finish(ctx, job, output, runErr)
}

// advance moves progress forward one step per tick until the running cap.
// Each step re-checks the stored status and stops once the job is no longer
// running.
func (r *ExportRunner) advance(ctx context.Context, jobID string) bool {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		job, err := r.repo.Transition(ctx, jobID, func(job *domain.Job) error {
			if job.Status != domain.JobStatusRunning {
				return repository.ErrSkipped
			}
			job.Progress = min(job.Progress+r.cfg.Step, maxRunningProgress)
			return nil
		})
		if err != nil {
			return false
		}
		if job.Progress >= maxRunningProgress {
			return true
		}
	}
}

func (r *ExportRunner) produce(ctx context.Context, job *domain.Job) (export.Output, error) {
	result, err := r.generator.Generate(ctx, job.Filter, job.Type)
	if err != nil {
		return export.Output{}, err
	}
	return r.serializer.Serialize(ctx, job.Type, result, job.Filter, job.Format)
}

// finish commits the outcome only if the job is still running.
func (r *ExportRunner) finish(ctx context.Context, job *domain.Job, output export.Output, runErr error) {
	committed, err := r.repo.Transition(ctx, job.ID, func(stored *domain.Job) error {
		if stored.Status != domain.JobStatusRunning {
			return repository.ErrSkipped
		}
		completedAt := r.now()
		stored.CompletedAt = &completedAt
		if runErr != nil {
			stored.Status = domain.JobStatusFailed
			stored.Error = runErr.Error()
			return nil
		}
		stored.Status = domain.JobStatusCompleted
		stored.Progress = 100
		stored.Result = &domain.JobResult{
			Filename:    output.Filename,
			ContentType: output.ContentType,
			Size:        len(output.Data),
			Data:        output.Data,
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, repository.ErrSkipped) && !errors.Is(err, repository.ErrNotFound) {
			r.logger.Error("commit export job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	fields := []zap.Field{
		zap.String("job_id", committed.ID),
		zap.String("report_type", string(committed.Type)),
		zap.String("format", string(committed.Format)),
		zap.String("status", string(committed.Status)),
	}
	if runErr != nil {
		r.logger.Warn("export job failed", append(fields, zap.Error(runErr))...)
	} else {
		r.logger.Info("export job completed", append(fields, zap.Int("size", committed.Result.Size))...)
	}
	r.metrics.JobFinished(string(committed.Status))
	r.Announce(ctx, committed)
}

// Announce publishes a terminal transition. Publish failures are logged only.
func (r *ExportRunner) Announce(ctx context.Context, job *domain.Job) {
	event := domain.JobEvent{
		JobID:      job.ID,
		Type:       job.Type,
		Format:     job.Format,
		Status:     job.Status,
		Error:      job.Error,
		OccurredAt: r.now(),
	}
	if job.Result != nil {
		event.Filename = job.Result.Filename
		event.Size = job.Result.Size
	}
	if err := r.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		r.logger.Warn("publish job event", zap.String("job_id", job.ID), zap.Error(err))
	}
}
