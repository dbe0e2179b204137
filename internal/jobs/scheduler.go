package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Observer is told how each job run went.
type Observer func(job string, elapsed time.Duration, err error)

// Job is one unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	observer Observer
}

func NewScheduler(observer Observer) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{}),
			cron.SkipIfStillRunning(cronLogger{}),
		)),
		ctx:      ctx,
		cancel:   cancel,
		observer: observer,
	}
}

// Add registers job under spec, which accepts standard cron fields and @every descriptors.
func (s *Scheduler) Add(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, job.Name(), err)
	}
	zap.L().Info("Job scheduled", zap.String("job", job.Name()), zap.String("schedule", spec))
	return nil
}

func (s *Scheduler) run(job Job) {
	start := time.Now()
	err := job.Run(s.ctx)
	elapsed := time.Since(start)

	if s.observer != nil {
		s.observer(job.Name(), elapsed, err)
	}
	if err != nil {
		zap.L().Error("Job failed", zap.String("job", job.Name()), zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}
	zap.L().Debug("Job finished", zap.String("job", job.Name()), zap.Duration("elapsed", elapsed))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels in-flight runs and waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		zap.L().Warn("Timed out waiting for jobs to stop")
	}
}

// cronLogger adapts cron's logger to the global zap logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	zap.L().Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	zap.L().Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
