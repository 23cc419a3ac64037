package status

import "fmt"

// Action is the kind of registry change reported to listeners.
type Action int8

const (
	Added Action = iota
	Removed
	// StacksAdded reports a merge into an existing instance. A merge at the
	// stack cap only refreshes value and timing, so PreviousStacks may equal
	// CurrentStacks.
	StacksAdded
	StacksRemoved
)

var actionNames = [...]string{"Added", "Removed", "StacksAdded", "StacksRemoved"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", int8(a))
}

// Change describes one successful mutation.
type Change struct {
	Entity         string
	Instance       *Instance
	Action         Action
	PreviousStacks int
	CurrentStacks  int
}

// Listener observes registry changes. Listeners run on the mutating
// goroutine while the mutation is still serialized: they may read the
// manager but must not call its mutating methods.
type Listener interface {
	OnEffectChanged(Change)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Change)

func (f ListenerFunc) OnEffectChanged(c Change) { f(c) }
