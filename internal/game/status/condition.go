package status

import (
	"fmt"
	"log/slog"
)

// SelectBy chooses which field of a Selector is active.
type SelectBy int8

const (
	ByDefinition SelectBy = iota
	ByComparable
	ByGroup
)

func (s SelectBy) String() string {
	switch s {
	case ByDefinition:
		return "definition"
	case ByComparable:
		return "comparable"
	case ByGroup:
		return "group"
	}
	return fmt.Sprintf("SelectBy(%d)", int8(s))
}

// Selector matches effects by exactly one of definition, comparable name or group.
type Selector struct {
	By             SelectBy
	Definition     *Definition
	ComparableName string
	Group          Group
}

// Matches reports whether def is selected.
func (s Selector) Matches(def *Definition) bool {
	if def == nil {
		return false
	}
	switch s.By {
	case ByDefinition:
		return s.Definition != nil && s.Definition.ID == def.ID
	case ByComparable:
		return s.ComparableName != "" && s.ComparableName == def.ComparableName
	case ByGroup:
		return s.Group != "" && s.Group == def.Group
	}
	return false
}

// filter converts the selector into a registry filter.
func (s Selector) filter() Filter {
	switch s.By {
	case ByDefinition:
		return Filter{Definition: s.Definition}
	case ByComparable:
		return Filter{ComparableName: s.ComparableName}
	case ByGroup:
		return Filter{Group: s.Group}
	}
	return Filter{}
}

// ConditionAction is what a condition does when it fires.
type ConditionAction int8

const (
	ActionAdd ConditionAction = iota
	ActionRemove
)

// Condition adds or removes another effect when an instance of the owning
// definition is newly added.
type Condition struct {
	Search Selector
	Exists bool // fire when a match is found (true) or absent (false)

	Action ConditionAction
	Target Selector

	Scaled    bool // multiply stack count by the triggering instance's stacks
	UseStacks bool
	Stacks    int

	Timing   TimingMode
	Duration float64
}

// stackCount returns the number of stacks the action applies, and whether a
// count applies at all (false = remove whole instances).
func (c *Condition) stackCount(trigger *Instance) (int, bool) {
	if !c.UseStacks && !c.Scaled {
		return 1, false
	}
	n := 1
	if c.UseStacks {
		n = c.Stacks
	}
	if c.Scaled {
		n *= trigger.stacks
	}
	return n, true
}

// evaluateConditions runs the conditions of a newly added instance in
// declaration order. Must be called with opMu held.
func (m *Manager) evaluateConditions(o *op, trigger *Instance) {
	def := trigger.def
	for i := range def.Conditions {
		c := &def.Conditions[i]

		if !m.searchMatches(c, trigger) {
			continue
		}

		target := c.Target
		if target.By == ByDefinition && target.Definition != nil && o.processing(target.Definition.ID) {
			slog.Warn("condition skipped: self-referencing effect",
				"definition", def.ID,
				"condition", i,
				"target", target.Definition.ID,
				"entity", m.entity)
			continue
		}

		switch c.Action {
		case ActionAdd:
			m.applyAddAction(o, c, trigger, i)
		case ActionRemove:
			m.applyRemoveAction(o, c, trigger)
		}
	}
}

func (m *Manager) searchMatches(c *Condition, trigger *Instance) bool {
	found := false
	for _, inst := range m.snapshot() {
		if inst == trigger || inst.state != StateActive {
			continue
		}
		if c.Search.Matches(inst.def) {
			found = true
			break
		}
	}
	return found == c.Exists
}

func (m *Manager) applyAddAction(o *op, c *Condition, trigger *Instance, index int) {
	if c.Target.By != ByDefinition || c.Target.Definition == nil {
		slog.Warn("condition skipped: add action needs a definition target",
			"definition", trigger.def.ID, "condition", index)
		return
	}

	n, _ := c.stackCount(trigger)
	if n <= 0 {
		return
	}

	t := Timing{Mode: c.Timing, Duration: c.Duration, Interval: 1}
	switch c.Timing {
	case TimingEvent:
		if trigger.timing.Mode != TimingEvent {
			slog.Warn("condition event timing without event trigger, using duration",
				"definition", trigger.def.ID, "condition", index)
			t.Mode = TimingDuration
			break
		}
		t.Signal = trigger.timing.Signal
		t.Interval = trigger.timing.Interval
	case TimingPredicate:
		t.Predicate = trigger.linkedPredicate()
	}

	m.add(o, c.Target.Definition, t, addOptions{stacks: n, value: c.Target.Definition.BaseValue})
}

func (m *Manager) applyRemoveAction(o *op, c *Condition, trigger *Instance) {
	n, counted := c.stackCount(trigger)
	var stacks *int
	if counted {
		if n <= 0 {
			return
		}
		stacks = &n
	}
	f := c.Target.filter()
	if f.empty() {
		return
	}
	// remove skips the trigger and every instance still being added above it.
	m.remove(o, f, stacks)
}
