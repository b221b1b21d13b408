package guide

import (
	"context"
	"time"

	"github.com/stwalsh4118/airwave/internal/logger"
)

// Scheduler invokes the guide refresh on a fixed interval, once eagerly at
// startup and then every RefreshInterval until stopped.
type Scheduler struct {
	service  *Service
	interval time.Duration
	window   time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewScheduler creates a refresh scheduler for the guide service
func NewScheduler(service *Service, interval, window time.Duration) *Scheduler {
	return &Scheduler{
		service:  service,
		interval: interval,
		window:   window,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the refresh loop in a background goroutine
func (s *Scheduler) Start() {
	go s.run()

	logger.Log.Info().
		Dur("interval", s.interval).
		Dur("window", s.window).
		Msg("Guide refresh scheduler started")
}

// Stop shuts the refresh loop down and waits for it to exit. An in-flight
// refresh runs to completion; there is no mid-build cancellation.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.doneChan
	logger.Log.Info().Msg("Guide refresh scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.doneChan)

	s.refresh()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refresh()
		case <-s.stopChan:
			return
		}
	}
}

func (s *Scheduler) refresh() {
	if err := s.service.Refresh(context.Background(), s.window); err != nil {
		logger.Log.Error().
			Err(err).
			Msg("Scheduled guide refresh failed")
	}
}
