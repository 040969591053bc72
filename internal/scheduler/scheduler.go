package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/iago/reports-back/internal/logging"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a periodic unit of work. It receives the scheduler's context.
type Task func(ctx context.Context) error

// Scheduler runs maintenance tasks (export retention sweeps, aggregate
// refreshes) on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	parser cron.Parser
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(logger *zap.Logger) *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		parser: parser,
		logger: logging.OrNop(logger),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Every schedules task at a fixed interval.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: interval must be positive", name)
	}
	return s.Cron(name, "@every "+interval.String(), task)
}

// Cron schedules task on a five-field cron spec or a descriptor such as
// "@daily".
func (s *Scheduler) Cron(name, spec string, task Task) error {
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("schedule %s: parse %q: %w", name, spec, err)
	}
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		started := time.Now()
		if err := task(s.ctx); err != nil {
			s.logger.Warn("scheduled task failed", zap.String("task", name), zap.Error(err))
			return
		}
		s.logger.Debug("scheduled task done", zap.String("task", name), zap.Duration("elapsed", time.Since(started)))
	}))
	s.logger.Info("task scheduled", zap.String("task", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
