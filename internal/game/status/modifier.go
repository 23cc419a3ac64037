package status

import "fmt"

// Operation defines how a modifier folds into a status variable.
type Operation int8

const (
	OpAdditive       Operation = iota // base + value
	OpMultiplicative                  // ×(1 + Σvalue)
	OpPostAdditive                    // added after multiplication
	OpMaximum                         // upper cap
	OpMinimum                         // lower floor
	OpOverwrite                       // replaces the running total
)

var operationNames = [...]string{"Additive", "Multiplicative", "PostAdditive", "Maximum", "Minimum", "Overwrite"}

func (o Operation) String() string {
	if int(o) < len(operationNames) {
		return operationNames[o]
	}
	return fmt.Sprintf("Operation(%d)", int8(o))
}

// ParseOperation maps a content name to an Operation.
func ParseOperation(s string) (Operation, error) {
	for i, name := range operationNames {
		if name == s {
			return Operation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown modifier operation %q", s)
}

// folds reports whether the operation sums across modifiers.
func (o Operation) folds() bool {
	return o == OpAdditive || o == OpMultiplicative || o == OpPostAdditive
}

// Modifier is a single (attribute, operation, value, priority) rule.
// Bool is the value used when the target attribute is boolean.
type Modifier struct {
	Attribute    AttributeID
	Op           Operation
	UseBaseValue bool
	Value        float64
	Bool         bool
	Priority     int
}

// amount returns the numeric contribution of m for an instance carrying
// value with the given stack count. Summing operations scale with stacks.
func (m *Modifier) amount(value float64, stacks int) float64 {
	v := m.Value
	if m.UseBaseValue {
		v = value
	}
	if m.Op.folds() {
		v *= float64(stacks)
	}
	return v
}
