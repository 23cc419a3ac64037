package testutil

import "github.com/udisondev/statusfx/internal/data"

// IntPtr возвращает указатель на v (для DefinitionDoc.MaxStacks).
func IntPtr(v int) *int { return &v }

// SampleAttributes — атрибуты, на которые ссылаются SampleDefinitions.
func SampleAttributes() []data.AttributeDoc {
	return []data.AttributeDoc{
		{Name: "damage", Kind: "float"},
		{Name: "stunned", Kind: "bool"},
	}
}

// SampleDefinitions — небольшой набор определений для тестов хранилища и загрузчика.
func SampleDefinitions() []data.DefinitionDoc {
	return []data.DefinitionDoc{
		{
			ID:            "bleed",
			Name:          "Bleed",
			Group:         "Negative",
			Comparable:    "bleed",
			BaseValue:     2,
			AllowStacking: true,
			MaxStacks:     IntPtr(5),
			Modifiers: []data.ModifierDoc{
				{Attribute: "damage", Op: "Additive", UseBaseValue: true},
			},
			Modules: []data.ModuleDoc{
				{Kind: "log", Params: map[string]string{"message": "bleeding"}},
			},
		},
		{
			ID:          "rage",
			Name:        "Rage",
			Group:       "Positive",
			Comparable:  "rage",
			NonStacking: "TakeNewest",
			Modifiers: []data.ModifierDoc{
				{Attribute: "damage", Op: "Multiplicative", Value: 0.5},
			},
		},
		{
			ID:    "stun",
			Name:  "Stun",
			Group: "Negative",
			Modifiers: []data.ModifierDoc{
				{Attribute: "stunned", Op: "Overwrite", Bool: true, Priority: 10},
			},
			Conditions: []data.ConditionDoc{
				{
					Search: data.SelectorDoc{Definition: "rage"},
					Exists: true,
					Action: "remove",
					Target: data.SelectorDoc{Definition: "rage"},
				},
			},
		},
	}
}
