package render

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerTicks(t *testing.T) {
	s := NewScheduler(200)
	var ticks atomic.Int64
	var badDelta atomic.Bool

	s.Start(func(dt float64) {
		if dt <= 0 || dt > maxFrameDelta {
			badDelta.Store(true)
		}
		ticks.Add(1)
	})
	if !s.Running() {
		t.Fatal("scheduler should report running after Start")
	}

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if ticks.Load() == 0 {
		t.Error("expected at least one tick")
	}
	if badDelta.Load() {
		t.Error("saw a frame delta outside (0, maxFrameDelta]")
	}
	if s.Running() {
		t.Error("scheduler should report stopped after Stop")
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(200)
	s.Stop() // never started
	s.Start(func(float64) {})
	s.Stop()
	s.Stop()
}

func TestSchedulerRestarts(t *testing.T) {
	s := NewScheduler(200)
	var ticks atomic.Int64

	s.Start(func(float64) { ticks.Add(1) })
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	first := ticks.Load()

	s.Start(func(float64) { ticks.Add(1) })
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if ticks.Load() <= first {
		t.Error("expected ticks to resume after restart")
	}
}

func TestSchedulerStartWhileRunningIsNoop(t *testing.T) {
	s := NewScheduler(200)
	defer s.Stop()

	var first, second atomic.Int64
	s.Start(func(float64) { first.Add(1) })
	s.Start(func(float64) { second.Add(1) })

	time.Sleep(50 * time.Millisecond)
	if second.Load() != 0 {
		t.Error("second Start should not replace the running callback")
	}
}
