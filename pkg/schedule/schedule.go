// Package schedule runs a callback at a fixed period.
//
// The callback runs on a single goroutine, so invocations never overlap. A
// tick that falls due while the callback is still running is dropped rather
// than queued.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

var ErrRunning = errors.New("scheduler already running")

type Scheduler struct {
	clk clock.Clock

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{clk: clk}
}

// Start invokes fn every period until Stop is called.
func (s *Scheduler) Start(period time.Duration, fn func()) error {
	if period <= 0 {
		return errors.New("period must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// Created before returning so a mock clock advanced right after Start fires it
	ticker := s.clk.Ticker(period)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Stop may race with a pending tick
				if ctx.Err() != nil {
					return
				}
				fn()
			}
		}
	}()
	return nil
}

// Stop halts the loop and waits for an in-flight callback to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
