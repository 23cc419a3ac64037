package status

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
)

// TimingMode selects what ends an instance.
type TimingMode int8

const (
	TimingInfinite  TimingMode = iota // until removed
	TimingDuration                    // counts down on Advance
	TimingEvent                       // counts down by Interval on Signal
	TimingPredicate                   // ends when the predicate returns true
)

var timingNames = [...]string{"Infinite", "Duration", "Event", "Predicate"}

func (t TimingMode) String() string {
	if int(t) < len(timingNames) {
		return timingNames[t]
	}
	return fmt.Sprintf("TimingMode(%d)", int8(t))
}

// ParseTimingMode maps a content name to a timing mode. Empty means Infinite.
func ParseTimingMode(s string) (TimingMode, error) {
	if s == "" {
		return TimingInfinite, nil
	}
	for i, name := range timingNames {
		if name == s {
			return TimingMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown timing mode %q", s)
}

// SignalID correlates external tick signals with Event-mode instances.
type SignalID string

// Timing carries the lifecycle parameters of one application.
type Timing struct {
	Mode      TimingMode
	Duration  float64
	Interval  float64
	Signal    SignalID
	Predicate func() bool
}

// span is the comparable length of the timing; everything but Duration is endless.
func (t Timing) span() float64 {
	if t.Mode == TimingDuration {
		return t.Duration
	}
	return math.Inf(1)
}

// State of an instance's lifecycle.
type State int32

const (
	StateActive    State = iota
	StateExpiring        // terminal condition reached, cleanup running
	StateRemoved         // terminal
	StateCancelled       // removed explicitly
)

var stateNames = [...]string{"Active", "Expiring", "Removed", "Cancelled"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Handle is the cancellation handle owned by an instance. Modules observe it
// through the context passed to them.
type Handle struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

func newHandle(parent context.Context) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{ctx: ctx, cancel: cancel}
}

// Context is done once the handle has been cancelled.
func (h *Handle) Context() context.Context { return h.ctx }

// Cancelled reports whether Cancel has run.
func (h *Handle) Cancelled() bool { return h.cancelled.Load() }

// cancelOnce cancels the handle and returns false if it was already cancelled.
func (h *Handle) cancelOnce() bool {
	if !h.cancelled.CompareAndSwap(false, true) {
		return false
	}
	h.cancel()
	return true
}

// InstanceID is unique within one manager.
type InstanceID uint64

// Instance is one live application of a definition to one entity.
// Mutable fields are guarded by the owning manager's state lock; use the
// accessor methods from outside the package.
type Instance struct {
	id     InstanceID
	def    *Definition
	owner  *Manager
	handle *Handle

	timing    Timing
	remaining float64
	stacks    int
	value     float64
	state     State

	modules *ModuleContext
}

func (i *Instance) ID() InstanceID          { return i.id }
func (i *Instance) Definition() *Definition { return i.def }
func (i *Instance) Handle() *Handle         { return i.handle }
func (i *Instance) Context() context.Context {
	return i.handle.ctx
}

// Owner returns the manager that owns the instance.
func (i *Instance) Owner() *Manager { return i.owner }

// Timing returns the instance's timing mode.
func (i *Instance) Timing() TimingMode {
	i.owner.stateMu.RLock()
	defer i.owner.stateMu.RUnlock()
	return i.timing.Mode
}

// Correlation returns the signal an Event-mode instance counts down on.
func (i *Instance) Correlation() SignalID {
	i.owner.stateMu.RLock()
	defer i.owner.stateMu.RUnlock()
	return i.timing.Signal
}

// Interval returns the Event-mode decrement per signal.
func (i *Instance) Interval() float64 {
	i.owner.stateMu.RLock()
	defer i.owner.stateMu.RUnlock()
	return i.timing.Interval
}

// Remaining returns the remaining duration. Endless timings report +Inf.
func (i *Instance) Remaining() float64 {
	i.owner.stateMu.RLock()
	defer i.owner.stateMu.RUnlock()
	return i.remainingLocked()
}

func (i *Instance) remainingLocked() float64 {
	switch i.timing.Mode {
	case TimingDuration, TimingEvent:
		return i.remaining
	}
	return math.Inf(1)
}

// Stacks returns the current stack count.
func (i *Instance) Stacks() int {
	i.owner.stateMu.RLock()
	defer i.owner.stateMu.RUnlock()
	return i.stacks
}

// Value returns the instance magnitude (the definition base value unless overridden).
func (i *Instance) Value() float64 {
	i.owner.stateMu.RLock()
	defer i.owner.stateMu.RUnlock()
	return i.value
}

// State returns the lifecycle state.
func (i *Instance) State() State {
	i.owner.stateMu.RLock()
	defer i.owner.stateMu.RUnlock()
	return i.state
}

// Active reports whether the instance is still in the Active state.
func (i *Instance) Active() bool { return i.State() == StateActive }

func (i *Instance) String() string {
	return fmt.Sprintf("%s#%d", i.def.ID, i.id)
}

// linkedPredicate ends a dependent effect once this instance is gone.
func (i *Instance) linkedPredicate() func() bool {
	return func() bool { return !i.Active() }
}

// tick decrements the remaining duration, clamped at zero.
// Returns true when the instance reached its terminal condition.
// Must be called with stateMu held.
func (i *Instance) tick(amount float64) bool {
	if i.state != StateActive {
		return false
	}
	i.remaining -= amount
	if i.remaining <= 0 {
		i.remaining = 0
		i.state = StateExpiring
		return true
	}
	return false
}
