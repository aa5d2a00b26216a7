package render

import (
	"context"
	"sync"
	"time"
)

const (
	defaultFrameRate = 60.0

	// maxFrameDelta caps the delta handed to the simulation after a
	// stall, so a suspended process does not integrate one huge step.
	maxFrameDelta = 0.25
)

// Scheduler drives the frame callback at a fixed rate on its own
// goroutine. Start and Stop may be called repeatedly; pausing a session
// is a Stop followed by a later Start, which restarts the delta clock
// so the pause gap is never integrated.
type Scheduler struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler ticking at fps frames per second.
// Non-positive fps selects the 60Hz default.
func NewScheduler(fps float64) *Scheduler {
	if fps <= 0 {
		fps = defaultFrameRate
	}
	return &Scheduler{interval: time.Duration(float64(time.Second) / fps)}
}

// Start launches the tick loop. It is a no-op when already running.
func (s *Scheduler) Start(cb func(dt float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.loop(ctx, cb, done)
}

// Stop halts the tick loop and waits for the in-flight frame to finish.
// Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Running reports whether the tick loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context, cb func(dt float64), done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if dt > maxFrameDelta {
				dt = maxFrameDelta
			}
			cb(dt)
		}
	}
}
