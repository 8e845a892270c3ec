package irq

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// PriorityArbiter is the execution-priority substrate the gate runs
// on. Raising to a level keeps every interrupt source at or below it
// from preempting the current execution on the local processor. Raise
// returns the level to restore; callers restore it on every exit path.
type PriorityArbiter interface {
	Raise(target Level) Level
	Lower(previous Level)
}

// RunLevel is a tracking PriorityArbiter for hosting the gate without
// a real priority substrate underneath. It records the current level
// so tests and tools can observe the raise/lower discipline.
type RunLevel struct {
	mu      sync.Mutex
	current Level
}

func (r *RunLevel) Raise(target Level) Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.current
	r.current = target
	return previous
}

func (r *RunLevel) Lower(previous Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = previous
}

// Current returns the level the arbiter is currently at.
func (r *RunLevel) Current() Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

type detachedArbiter struct{}

func (detachedArbiter) Raise(Level) Level { return PassiveLevel }
func (detachedArbiter) Lower(Level)       {}

// ArbiterDetached returns a PriorityArbiter that tracks nothing, for
// hosts where the surrounding substrate already enforces the
// discipline.
func ArbiterDetached() PriorityArbiter { return detachedArbiter{} }

// SecondaryController programs the expansion bus's own interrupt
// controller. The gate calls it only for vectors inside the
// expansion-bus window, and only when the caller's level matches the
// bus delivery level. Errors exist for bring-up callers; the gate
// drops them.
type SecondaryController interface {
	EnableInterrupt(vector Vector, mode Mode) error
	DisableInterrupt(vector Vector) error
}

type noopSecondary struct{}

func (noopSecondary) EnableInterrupt(Vector, Mode) error { return nil }
func (noopSecondary) DisableInterrupt(Vector) error      { return nil }

// SecondaryDetached returns a SecondaryController that drops all
// requests, for platforms without an expansion bus.
func SecondaryDetached() SecondaryController { return noopSecondary{} }

// SpinLock is a test-and-set lock. Acquisition spins instead of
// parking, so it is safe to take while the arbiter holds execution at
// HighLevel; critical sections under it must stay short and must not
// block.
type SpinLock struct {
	held atomic.Bool
}

func (l *SpinLock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func (l *SpinLock) Unlock() {
	if !l.held.CompareAndSwap(true, false) {
		panic("irq: unlock of unheld SpinLock")
	}
}

var (
	_ PriorityArbiter     = (*RunLevel)(nil)
	_ PriorityArbiter     = detachedArbiter{}
	_ SecondaryController = noopSecondary{}
	_ sync.Locker         = (*SpinLock)(nil)
)
