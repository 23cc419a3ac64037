package data

import (
	"errors"
	"fmt"
	"strings"

	"github.com/udisondev/statusfx/internal/game/status"
)

var (
	// ErrUnknownAttribute is returned when a modifier names an unregistered attribute.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrUnknownDefinition is returned when a condition references a missing definition.
	ErrUnknownDefinition = errors.New("unknown definition")
)

// RegisterAttributes interns attribute declarations.
func RegisterAttributes(reg *status.AttributeRegistry, docs []AttributeDoc) error {
	for _, d := range docs {
		kind, err := status.ParseAttributeKind(d.Kind)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", d.Name, err)
		}
		if _, err := reg.Register(d.Name, kind); err != nil {
			return err
		}
	}
	return nil
}

// Compile turns documents into published definitions. Definitions are built
// first and condition references resolved afterwards, so a condition may
// point at a definition declared later or in another file.
func Compile(attrs *status.AttributeRegistry, docs []DefinitionDoc) (*status.Catalog, []status.Warning, error) {
	defs := make(map[string]*status.Definition, len(docs))
	ordered := make([]*status.Definition, 0, len(docs))

	for i := range docs {
		doc := &docs[i]
		if _, dup := defs[doc.ID]; dup {
			return nil, nil, fmt.Errorf("definition %q: %w", doc.ID, status.ErrDuplicateDefinition)
		}
		def, err := compileDefinition(attrs, doc)
		if err != nil {
			return nil, nil, fmt.Errorf("definition %q: %w", doc.ID, err)
		}
		defs[doc.ID] = def
		ordered = append(ordered, def)
	}

	for i := range docs {
		doc := &docs[i]
		def := defs[doc.ID]
		conds, err := compileConditions(defs, doc.Conditions)
		if err != nil {
			return nil, nil, fmt.Errorf("definition %q: %w", doc.ID, err)
		}
		def.Conditions = conds
	}

	catalog := status.NewCatalog()
	var warnings []status.Warning
	for _, def := range ordered {
		w, err := def.Validate()
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, w...)
		if err := catalog.Add(def); err != nil {
			return nil, nil, err
		}
	}
	return catalog, warnings, nil
}

func compileDefinition(attrs *status.AttributeRegistry, doc *DefinitionDoc) (*status.Definition, error) {
	if doc.ID == "" {
		return nil, errors.New("missing id")
	}
	behavior, err := status.ParseNonStackingBehavior(doc.NonStacking)
	if err != nil {
		return nil, err
	}

	def := &status.Definition{
		ID:             status.DefinitionID(doc.ID),
		Name:           doc.Name,
		Description:    doc.Description,
		Group:          status.Group(doc.Group),
		ComparableName: doc.Comparable,
		BaseValue:      doc.BaseValue,
		AllowStacking:  doc.AllowStacking,
		MaxStacks:      status.UnlimitedStacks,
		NonStacking:    behavior,
	}
	if doc.MaxStacks != nil {
		def.MaxStacks = *doc.MaxStacks
	}

	for i, md := range doc.Modifiers {
		mod, err := compileModifier(attrs, md)
		if err != nil {
			return nil, fmt.Errorf("modifier %d: %w", i, err)
		}
		def.Modifiers = append(def.Modifiers, mod)
	}

	for _, m := range doc.Modules {
		if m.Kind == "" {
			return nil, errors.New("module without kind")
		}
		def.Modules = append(def.Modules, status.ModuleDefinition{Kind: m.Kind, Params: m.Params})
	}
	return def, nil
}

func compileModifier(attrs *status.AttributeRegistry, md ModifierDoc) (status.Modifier, error) {
	id, ok := attrs.Lookup(md.Attribute)
	if !ok {
		return status.Modifier{}, fmt.Errorf("%q: %w", md.Attribute, ErrUnknownAttribute)
	}
	attr, _ := attrs.Get(id)

	opName := md.Op
	if opName == "" {
		opName = "Additive"
		if attr.Kind == status.KindBool {
			opName = "Overwrite"
		}
	}
	op, err := status.ParseOperation(opName)
	if err != nil {
		return status.Modifier{}, err
	}
	if attr.Kind == status.KindBool && op != status.OpOverwrite {
		return status.Modifier{}, fmt.Errorf("%q is a bool attribute, op %s is not Overwrite", md.Attribute, op)
	}

	return status.Modifier{
		Attribute:    id,
		Op:           op,
		UseBaseValue: md.UseBaseValue,
		Value:        md.Value,
		Bool:         md.Bool,
		Priority:     md.Priority,
	}, nil
}

func compileConditions(defs map[string]*status.Definition, docs []ConditionDoc) ([]status.Condition, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]status.Condition, 0, len(docs))
	for i, cd := range docs {
		search, err := compileSelector(defs, cd.Search)
		if err != nil {
			return nil, fmt.Errorf("condition %d search: %w", i, err)
		}
		target, err := compileSelector(defs, cd.Target)
		if err != nil {
			return nil, fmt.Errorf("condition %d target: %w", i, err)
		}

		var action status.ConditionAction
		switch strings.ToLower(cd.Action) {
		case "add":
			action = status.ActionAdd
		case "remove":
			action = status.ActionRemove
		default:
			return nil, fmt.Errorf("condition %d: unknown action %q", i, cd.Action)
		}

		timing, err := status.ParseTimingMode(cd.Timing)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i, err)
		}

		out = append(out, status.Condition{
			Search:    search,
			Exists:    cd.Exists,
			Action:    action,
			Target:    target,
			Scaled:    cd.Scaled,
			UseStacks: cd.Stacks != 0,
			Stacks:    cd.Stacks,
			Timing:    timing,
			Duration:  cd.Duration,
		})
	}
	return out, nil
}

func compileSelector(defs map[string]*status.Definition, sd SelectorDoc) (status.Selector, error) {
	set := 0
	for _, v := range []string{sd.Definition, sd.Comparable, sd.Group} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return status.Selector{}, fmt.Errorf("selector needs exactly one of definition, comparable, group (got %d)", set)
	}

	switch {
	case sd.Definition != "":
		def, ok := defs[sd.Definition]
		if !ok {
			return status.Selector{}, fmt.Errorf("%q: %w", sd.Definition, ErrUnknownDefinition)
		}
		return status.Selector{By: status.ByDefinition, Definition: def}, nil
	case sd.Comparable != "":
		return status.Selector{By: status.ByComparable, ComparableName: sd.Comparable}, nil
	default:
		return status.Selector{By: status.ByGroup, Group: status.Group(sd.Group)}, nil
	}
}
