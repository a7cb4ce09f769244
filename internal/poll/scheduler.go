// Package poll provides a cancellable, single-flight recurring timer.
package poll

import (
	"context"
	"sync"
	"time"
)

// Decision is what a unit of work asks the scheduler to do next.
type Decision int

const (
	// DecisionContinue schedules another invocation after the interval.
	DecisionContinue Decision = iota
	// DecisionStop ends the loop.
	DecisionStop
)

func (d Decision) String() string {
	if d == DecisionStop {
		return "stop"
	}
	return "continue"
}

// Work is one poll tick.
type Work func(ctx context.Context) Decision

// Scheduler runs a unit of work repeatedly, never overlapping two
// invocations of the same loop. The next invocation is armed only after the
// previous one returned DecisionContinue.
type Scheduler struct {
	clock  Clock
	timer  Timer
	cancel context.CancelFunc // ends the context of the current run
	// beforeWork runs between an invocation's check and its work; tests use
	// it to stop the loop inside that window.
	beforeWork func()
	run        uint64
	active     bool
	mu         sync.Mutex
}

// NewScheduler creates a scheduler on the given clock. A nil clock means RealClock.
func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{clock: clock}
}

// Start stops any running loop and invokes work immediately on a new
// goroutine. Later invocations happen interval after the previous one
// returned DecisionContinue. The loop also ends when ctx is done.
func (s *Scheduler) Start(ctx context.Context, work Work, interval time.Duration) {
	s.mu.Lock()
	s.stopLocked()
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.active = true
	run := s.run
	s.mu.Unlock()

	go s.invoke(runCtx, run, work, interval)
}

// Stop prevents any further invocation. It is idempotent and safe to call
// when nothing is scheduled, including from inside work.
//
// An invocation that passed its check before Stop took the lock counts as
// in flight: it may still call work, but with a context that Stop has
// already canceled, and its result never arms another tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Active reports whether a loop is running or armed.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.finishLocked()
	s.run++
}

func (s *Scheduler) finishLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.active = false
}

func (s *Scheduler) current(run uint64) bool {
	return s.active && s.run == run
}

func (s *Scheduler) invoke(ctx context.Context, run uint64, work Work, interval time.Duration) {
	s.mu.Lock()
	if !s.current(run) {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	if ctx.Err() != nil {
		s.finishLocked()
		s.mu.Unlock()
		return
	}
	hook := s.beforeWork
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	decision := work(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.current(run) {
		return
	}
	if decision != DecisionContinue || ctx.Err() != nil {
		s.finishLocked()
		return
	}
	s.timer = s.clock.AfterFunc(interval, func() {
		s.invoke(ctx, run, work, interval)
	})
}
