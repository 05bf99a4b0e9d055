package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// BatchFunc runs one scheduled batch.
type BatchFunc func(ctx context.Context) error

// Scheduler triggers batch runs on a cron schedule. A trigger that fires
// while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	run     BatchFunc
	log     *logrus.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewScheduler parses spec as a standard five-field cron expression.
func NewScheduler(spec string, run BatchFunc, logger *logrus.Logger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s := &Scheduler{
		cron: cron.New(),
		run:  run,
		log:  logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(spec, s.trigger); err != nil {
		return nil, fmt.Errorf("scheduling batch: %w", err)
	}
	return s, nil
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Batch scheduler started")
}

// Stop stops triggering, cancels a running batch and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("Batch scheduler stopped")
}

// trigger runs one batch unless another is still in progress.
func (s *Scheduler) trigger() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("Previous batch still running, skipping trigger")
		return
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	if err := s.run(s.ctx); err != nil {
		s.log.WithError(err).Error("Scheduled batch failed")
	}
}
