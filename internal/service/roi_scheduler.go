package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/token-curator/internal/logging"
)

// ROIRefresher is the batch operation the scheduler drives
type ROIRefresher interface {
	RefreshApproved(ctx context.Context) *RefreshSummary
}

// ROIScheduler periodically refreshes prices for approved projects
type ROIScheduler struct {
	refresher ROIRefresher
	interval  time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewROIScheduler creates a scheduler that runs every interval
func NewROIScheduler(refresher ROIRefresher, interval time.Duration) *ROIScheduler {
	return &ROIScheduler{refresher: refresher, interval: interval}
}

// Start runs one refresh immediately, then one per interval until Stop or ctx is done
func (s *ROIScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("ROI scheduler is already running")
	}
	if s.interval <= 0 {
		return fmt.Errorf("ROI refresh interval must be positive")
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	logging.FromContext(ctx).WithField("interval", s.interval.String()).Info("ROI scheduler starting")
	go s.loop(ctx, s.stopCh, s.doneCh)
	return nil
}

func (s *ROIScheduler) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.refresher.RefreshApproved(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.refresher.RefreshApproved(ctx)
		}
	}
}

// Stop halts the scheduler and waits for an in-flight refresh to finish
func (s *ROIScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("ROI scheduler is not running")
	}
	close(s.stopCh)
	s.running = false
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	logging.Info("ROI scheduler stopped")
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *ROIScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
