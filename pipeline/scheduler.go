package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stock-analyzer/observability"

	"github.com/robfig/cron/v3"
)

// BatchRunner runs one batch of analyses
type BatchRunner interface {
	Run(ctx context.Context, symbols []string) RunSummary
}

// Scheduler triggers batch runs for a fixed symbol list on a cron schedule.
// A trigger that fires while the previous run is still going is skipped.
type Scheduler struct {
	runner  BatchRunner
	symbols []string
	cron    *cron.Cron

	mu      sync.Mutex
	running bool
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a new Scheduler
func NewScheduler(runner BatchRunner, symbols []string) *Scheduler {
	return &Scheduler{
		runner:  runner,
		symbols: NormalizeSymbols(symbols),
		cron:    cron.New(),
	}
}

// Start registers the schedule (standard five-field cron syntax) and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context, schedule string) error {
	if len(s.symbols) == 0 {
		return fmt.Errorf("no symbols configured for scheduled analysis")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(schedule, s.RunNow); err != nil {
		s.cancel()
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.started = true
	observability.Info("analysis scheduler started", "schedule", schedule, "symbols", len(s.symbols))
	return nil
}

// Stop stops the scheduler and cancels any run in progress
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	s.started = false
	stopped := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	<-stopped.Done()
	observability.Info("analysis scheduler stopped")
}

// RunNow runs the configured batch synchronously unless a run is already in progress.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		observability.Warn("previous scheduled analysis run still in progress, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	observability.Info("starting scheduled analysis run")
	summary := s.runner.Run(ctx, s.symbols)
	for _, r := range summary.Failed() {
		observability.Warn("scheduled analysis failed", "symbol", r.Symbol, "error", r.Error)
	}
}

// AddTask registers a maintenance task alongside the batch schedule. Each run
// gets its own timeout.
func (s *Scheduler) AddTask(schedule, name string, timeout time.Duration, task func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(schedule, func() {
		parent := s.ctx
		if parent == nil {
			parent = context.Background()
		}
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		if err := task(ctx); err != nil {
			observability.Error("scheduled task failed", "task", name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for task %s: %w", schedule, name, err)
	}
	return nil
}
