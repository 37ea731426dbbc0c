package progress

import (
	"sync"
	"time"
)

// Tracker counts completed steps toward a total and lets other goroutines
// wait for completion. The total is always at least one and the completed
// count never exceeds it. Construct with NewTracker; all methods are safe
// for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	total     uint64
	completed uint64
	done      chan struct{}
}

// NewTracker returns a tracker expecting totalSteps steps. A total of zero
// is treated as one step.
func NewTracker(totalSteps uint64) *Tracker {
	if totalSteps == 0 {
		totalSteps = 1
	}
	return &Tracker{total: totalSteps, done: make(chan struct{})}
}

// Advance adds steps to the completed count, clamping at the total.
// Reaching the total wakes every goroutine blocked on completion.
func (t *Tracker) Advance(steps uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if steps >= t.total-t.completed {
		t.completed = t.total
		t.signalLocked()
		return
	}
	t.completed += steps
}

// MarkAsCompleted forces the completed count to the total and wakes every
// goroutine blocked on completion. Idempotent.
func (t *Tracker) MarkAsCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = t.total
	t.signalLocked()
}

// Reset starts a fresh incomplete cycle with the given total. A total of
// zero is treated as one step. Goroutines already waiting keep waiting for
// the new cycle's completion.
func (t *Tracker) Reset(totalSteps uint64) {
	if totalSteps == 0 {
		totalSteps = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = totalSteps
	t.completed = 0
	select {
	case <-t.done:
		t.done = make(chan struct{})
	default:
	}
}

// IsCompleted reports whether every step has completed.
func (t *Tracker) IsCompleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed == t.total
}

// TotalSteps returns the current total.
func (t *Tracker) TotalSteps() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// CompletedSteps returns the number of completed steps.
func (t *Tracker) CompletedSteps() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// IncompletedSteps returns the number of steps still outstanding.
func (t *Tracker) IncompletedSteps() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total - t.completed
}

// CompletionPercentage returns the completed share as a Percentage.
func (t *Tracker) CompletionPercentage() Percentage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return PercentageOf(t.completed, t.total)
}

// WaitForCompletion blocks until every step has completed.
func (t *Tracker) WaitForCompletion() {
	for {
		t.mu.Lock()
		if t.completed == t.total {
			t.mu.Unlock()
			return
		}
		done := t.done
		t.mu.Unlock()
		<-done
	}
}

// TryWaitForCompletion blocks until every step has completed or the timeout
// elapses, and reports whether completion was observed.
func (t *Tracker) TryWaitForCompletion(timeout time.Duration) bool {
	return t.TryWaitForCompletionUntil(time.Now().Add(timeout))
}

// TryWaitForCompletionUntil blocks until every step has completed or the
// deadline passes, and reports whether completion was observed.
func (t *Tracker) TryWaitForCompletionUntil(deadline time.Time) bool {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	for {
		t.mu.Lock()
		if t.completed == t.total {
			t.mu.Unlock()
			return true
		}
		done := t.done
		t.mu.Unlock()
		select {
		case <-done:
		case <-timer.C:
			return t.IsCompleted()
		}
	}
}

// signalLocked closes the completion channel once per cycle. Callers hold
// the mutex.
func (t *Tracker) signalLocked() {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}
