package service

import (
	"log/slog"
	"time"
)

// Pruner drops expired revocation entries. Only the in-memory store needs
// this; Redis expires keys on its own.
type Pruner interface {
	Prune(now time.Time) int
}

// HousekeepingService prunes the revocation store on an interval.
type HousekeepingService struct {
	Pruner   Pruner
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService defaults interval to one minute.
func NewHousekeepingService(p Pruner, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Minute
	}

	return &HousekeepingService{
		Pruner:   p,
		Logger:   logger,
		Interval: interval,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the worker. Call Stop to end it.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop signals the worker and waits for it to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs a single prune pass.
func (s *HousekeepingService) RunOnce() int {
	removed := s.Pruner.Prune(s.Now())
	if removed > 0 {
		s.Logger.Info("pruned revocation entries", "removed", removed)
	} else {
		s.Logger.Debug("housekeeping found nothing to prune")
	}
	return removed
}
