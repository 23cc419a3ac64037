package data

// File is one content file. Attributes and definitions may live in the same
// file or in separate ones.
type File struct {
	Attributes  []AttributeDoc  `yaml:"attributes"`
	Definitions []DefinitionDoc `yaml:"definitions"`
}

// AttributeDoc declares a status attribute.
type AttributeDoc struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"` // float (default), int, bool
}

// DefinitionDoc is the authored form of status.Definition. Attribute and
// definition references are names, resolved by Compile.
type DefinitionDoc struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
	Group       string `yaml:"group" json:"group,omitempty"`
	Comparable  string `yaml:"comparable" json:"comparable,omitempty"`

	BaseValue     float64 `yaml:"base_value" json:"base_value,omitempty"`
	AllowStacking bool    `yaml:"allow_stacking" json:"allow_stacking,omitempty"`
	MaxStacks     *int    `yaml:"max_stacks" json:"max_stacks,omitempty"` // absent = unlimited
	NonStacking   string  `yaml:"non_stacking" json:"non_stacking,omitempty"`

	Modifiers  []ModifierDoc  `yaml:"modifiers" json:"modifiers,omitempty"`
	Conditions []ConditionDoc `yaml:"conditions" json:"conditions,omitempty"`
	Modules    []ModuleDoc    `yaml:"modules" json:"modules,omitempty"`
}

// ModifierDoc is one attribute rule.
type ModifierDoc struct {
	Attribute    string  `yaml:"attribute" json:"attribute"`
	Op           string  `yaml:"op" json:"op,omitempty"` // default Additive, Overwrite for bool attributes
	Value        float64 `yaml:"value" json:"value,omitempty"`
	UseBaseValue bool    `yaml:"use_base_value" json:"use_base_value,omitempty"`
	Bool         bool    `yaml:"bool" json:"bool,omitempty"`
	Priority     int     `yaml:"priority" json:"priority,omitempty"`
}

// SelectorDoc names effects by exactly one of its fields.
type SelectorDoc struct {
	Definition string `yaml:"definition" json:"definition,omitempty"`
	Comparable string `yaml:"comparable" json:"comparable,omitempty"`
	Group      string `yaml:"group" json:"group,omitempty"`
}

// ConditionDoc is the authored form of status.Condition.
// A non-zero Stacks sets an explicit stack count.
type ConditionDoc struct {
	Search   SelectorDoc `yaml:"search" json:"search"`
	Exists   bool        `yaml:"exists" json:"exists,omitempty"`
	Action   string      `yaml:"action" json:"action"` // add or remove
	Target   SelectorDoc `yaml:"target" json:"target"`
	Scaled   bool        `yaml:"scaled" json:"scaled,omitempty"`
	Stacks   int         `yaml:"stacks" json:"stacks,omitempty"`
	Timing   string      `yaml:"timing" json:"timing,omitempty"`
	Duration float64     `yaml:"duration" json:"duration,omitempty"`
}

// ModuleDoc attaches a module kind with its params.
type ModuleDoc struct {
	Kind   string            `yaml:"kind" json:"kind"`
	Params map[string]string `yaml:"params" json:"params,omitempty"`
}
