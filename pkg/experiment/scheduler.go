package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler periodically evaluates running experiments so winners are
// declared without an explicit query.
type Scheduler struct {
	engine   *Engine
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a scheduler running on the given cron expression,
// for example "*/15 * * * *".
func NewScheduler(engine *Engine, schedule string) *Scheduler {
	return &Scheduler{
		engine:   engine,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "experiment.scheduler"),
	}
}

// Start registers the evaluation job and starts the cron runner. An empty
// schedule disables the scheduler. The scheduler stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("evaluation schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule evaluation: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("experiment scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce performs one evaluation cycle.
func (s *Scheduler) RunOnce(ctx context.Context) {
	declared, err := s.engine.EvaluateRunning(ctx)
	if err != nil {
		s.logger.Error("scheduled evaluation failed", "error", err)
	}
	if declared > 0 {
		s.logger.Info("scheduled evaluation declared winners", "count", declared)
	} else {
		s.logger.Debug("scheduled evaluation completed, no new winners")
	}
}

// Stop stops the scheduler and waits for a running evaluation to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("experiment scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled evaluation time, or nil.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
