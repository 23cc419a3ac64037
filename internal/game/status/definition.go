package status

import (
	"errors"
	"fmt"
)

// ErrNilDefinition is returned by validation helpers when a definition is missing.
var ErrNilDefinition = errors.New("status: nil definition")

// DefinitionID is the stable identifier of an effect definition.
type DefinitionID string

// Group is a coarse category tag ("Negative", "Positive", ...).
type Group string

// NonStackingBehavior selects how a second application of a non-stacking
// definition is reconciled with the instance already present.
type NonStackingBehavior int8

const (
	MatchHighestValue NonStackingBehavior = iota // value·time preserving merge (default)
	TakeHighestValue
	TakeHighestDuration
	TakeNewest
	TakeOldest
)

var nonStackingNames = [...]string{"MatchHighestValue", "TakeHighestValue", "TakeHighestDuration", "TakeNewest", "TakeOldest"}

func (b NonStackingBehavior) String() string {
	if int(b) < len(nonStackingNames) {
		return nonStackingNames[b]
	}
	return fmt.Sprintf("NonStackingBehavior(%d)", int8(b))
}

// ParseNonStackingBehavior maps a content name to a behavior.
func ParseNonStackingBehavior(s string) (NonStackingBehavior, error) {
	if s == "" {
		return MatchHighestValue, nil
	}
	for i, name := range nonStackingNames {
		if name == s {
			return NonStackingBehavior(i), nil
		}
	}
	return 0, fmt.Errorf("unknown non-stacking behavior %q", s)
}

// UnlimitedStacks disables the stack cap. A zero MaxStacks is also uncapped.
const UnlimitedStacks = -1

// ModuleDefinition describes behavior attached to every instance of a definition.
// Kind selects the factory in the module runtime; Params are opaque to the core.
type ModuleDefinition struct {
	Kind   string
	Params map[string]string
}

// Definition is the immutable template of one kind of status effect.
// Definitions are shared by pointer between all managers and must not be
// modified after they have been published to a Catalog.
type Definition struct {
	ID             DefinitionID
	Name           string
	Description    string
	Group          Group
	ComparableName string
	BaseValue      float64

	AllowStacking bool
	MaxStacks     int // > 0 caps the stack count
	NonStacking   NonStackingBehavior

	Modifiers  []Modifier
	Conditions []Condition
	Modules    []ModuleDefinition
}

// ClampStacks limits n to the definition's stack cap.
func (d *Definition) ClampStacks(n int) int {
	if d.MaxStacks > 0 && n > d.MaxStacks {
		return d.MaxStacks
	}
	return n
}

// Touches reports whether any modifier of d targets attr.
func (d *Definition) Touches(attr AttributeID) bool {
	for i := range d.Modifiers {
		if d.Modifiers[i].Attribute == attr {
			return true
		}
	}
	return false
}

func (d *Definition) String() string {
	if d == nil {
		return "<nil>"
	}
	if d.Name != "" {
		return fmt.Sprintf("%s(%s)", d.ID, d.Name)
	}
	return string(d.ID)
}

// Warning is a content authoring diagnostic. Warnings never stop simulation.
type Warning struct {
	Definition DefinitionID
	Message    string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Definition, w.Message)
}

// Validate reports authoring problems. It returns an error only for
// definitions that cannot be used at all.
func (d *Definition) Validate() ([]Warning, error) {
	if d == nil {
		return nil, ErrNilDefinition
	}
	if d.ID == "" {
		return nil, errors.New("status: definition without id")
	}

	var warnings []Warning
	warn := func(format string, args ...any) {
		warnings = append(warnings, Warning{Definition: d.ID, Message: fmt.Sprintf(format, args...)})
	}

	if d.MaxStacks < UnlimitedStacks {
		warn("max stacks %d is below %d, treated as uncapped", d.MaxStacks, UnlimitedStacks)
	}

	usesBase := false
	for i, mod := range d.Modifiers {
		if mod.UseBaseValue {
			usesBase = true
		}
		if mod.Attribute == NoAttribute {
			warn("modifier %d has no target attribute", i)
		}
	}
	if usesBase && d.BaseValue == 0 {
		warn("modifiers use the base value but base value is 0")
	}

	for i, c := range d.Conditions {
		if c.Action == ActionAdd && c.Target.By != ByDefinition {
			warn("condition %d adds by %s, only definition targets can be added", i, c.Target.By)
		}
		if c.Target.By == ByDefinition && c.Target.Definition == nil {
			warn("condition %d has no target definition", i)
		}
		if c.Target.By == ByDefinition && c.Target.Definition != nil && c.Target.Definition.ID == d.ID {
			warn("condition %d references its own definition and will be skipped", i)
		}
		if c.UseStacks && c.Stacks <= 0 {
			warn("condition %d uses explicit stacks but stacks is %d", i, c.Stacks)
		}
	}

	return warnings, nil
}
