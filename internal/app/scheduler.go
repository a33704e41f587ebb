package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LendingJobs are the periodic checks of the lending coordinator
type LendingJobs interface {
	ExpireStale(ctx context.Context) (int, error)
	CheckOverdue(ctx context.Context) (int, error)
}

// Scheduler runs the background checks
type Scheduler struct {
	jobs            LendingJobs
	logger          *zap.Logger
	sweepInterval   time.Duration
	overdueInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

func NewScheduler(jobs LendingJobs, sweepInterval, overdueInterval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:            jobs,
		logger:          logger,
		sweepInterval:   sweepInterval,
		overdueInterval: overdueInterval,
		stopChan:        make(chan struct{}),
	}
}

// Start launches the expiry sweep and the overdue scan
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("sweep_interval", s.sweepInterval),
		zap.Duration("overdue_interval", s.overdueInterval))

	s.wg.Add(2)
	go s.runTask(ctx, "expiry sweep", s.sweepInterval, s.sweepExpired)
	go s.runTask(ctx, "overdue check", s.overdueInterval, s.checkOverdue)
}

// Stop stops the tasks and waits for a running pass to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

// runTask runs fn once right away, then every interval
func (s *Scheduler) runTask(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	defer s.wg.Done()

	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-s.stopChan:
			s.logger.Info("Task stopped", zap.String("task", name))
			return
		case <-ctx.Done():
			s.logger.Info("Task cancelled", zap.String("task", name))
			return
		}
	}
}

func (s *Scheduler) sweepExpired(ctx context.Context) {
	n, err := s.jobs.ExpireStale(ctx)
	if err != nil {
		s.logger.Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Expired stale requests", zap.Int("count", n))
	}
}

func (s *Scheduler) checkOverdue(ctx context.Context) {
	n, err := s.jobs.CheckOverdue(ctx)
	if err != nil {
		s.logger.Error("Overdue check failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("Overdue loans found", zap.Int("count", n))
	}
}
