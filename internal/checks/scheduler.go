package checks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the recurring sweeps on cron schedules and fires one-off
// reminders at their due time. It is registered as a shutdown component so
// in-flight jobs drain before the process exits.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	started bool

	// one-off reminder goroutines
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler. Cron expressions use the standard
// five-field format the deployment's CRONJOB_* variables carry.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddCron registers a recurring job.
func (s *Scheduler) AddCron(expr, name string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(expr, func() {
		s.logger.Info("cron job firing", "job", name)
		job(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling %s with expression %q: %w", name, expr, err)
	}
	s.logger.Info("cron job scheduled", "job", name, "expression", expr)
	return nil
}

// At registers a one-off job at the given time. Jobs already due fire
// immediately: an appointment less than an hour out when the sweep runs
// still gets its reminder. Pending jobs are cancelled on shutdown.
func (s *Scheduler) At(runAt time.Time, name string, job func(ctx context.Context)) {
	delay := time.Until(runAt)
	if delay < 0 {
		s.logger.Info("one-off job already due, firing now", "job", name, "run_at", runAt)
		delay = 0
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			s.logger.Info("one-off job firing", "job", name)
			job(s.ctx)
		case <-s.ctx.Done():
			s.logger.Debug("one-off job cancelled", "job", name)
		}
	}()
	s.logger.Info("one-off job scheduled", "job", name, "run_at", runAt)
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Name implements shutdown.Component.
func (s *Scheduler) Name() string { return "scheduler" }

// Shutdown stops the cron runner, cancels pending one-off jobs and waits for
// running jobs to finish or the context to expire.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	cronCtx := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for cron jobs: %w", ctx.Err())
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for one-off jobs: %w", ctx.Err())
	}
}
