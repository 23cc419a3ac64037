package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/statusfx/internal/game/status"
)

func TestLoad_TestdataDir(t *testing.T) {
	attrs := status.NewAttributeRegistry()

	catalog, err := Load("testdata/effects", attrs)
	require.NoError(t, err)

	assert.Equal(t, 3, attrs.Len())
	assert.Equal(t, 5, catalog.Len())

	var ids []status.DefinitionID
	for _, d := range catalog.All() {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []status.DefinitionID{"rage", "stun", "bleed", "exhausted", "cleanse"}, ids)

	rage, ok := catalog.Get("rage")
	require.True(t, ok)
	exhausted, _ := catalog.Get("exhausted")
	assert.Equal(t, status.TakeNewest, rage.NonStacking)
	assert.Equal(t, status.UnlimitedStacks, rage.MaxStacks)
	require.Len(t, rage.Conditions, 1)
	assert.Same(t, exhausted, rage.Conditions[0].Target.Definition, "forward reference across files")
	assert.Equal(t, status.TimingPredicate, rage.Conditions[0].Timing)

	damage, _ := attrs.Lookup("damage")
	assert.Equal(t, damage, rage.Modifiers[0].Attribute)
	assert.Equal(t, status.OpAdditive, rage.Modifiers[0].Op)
	assert.True(t, rage.Modifiers[0].UseBaseValue)

	stun, _ := catalog.Get("stun")
	assert.Equal(t, status.OpOverwrite, stun.Modifiers[0].Op, "bool attributes default to overwrite")

	bleed, _ := catalog.Get("bleed")
	assert.Equal(t, 5, bleed.MaxStacks)
	assert.Equal(t, "dot", bleed.ComparableName)
	require.Len(t, bleed.Modules, 1)
	assert.Equal(t, "bleeding", bleed.Modules[0].Params["message"])

	cleanse, _ := catalog.Get("cleanse")
	assert.Equal(t, status.ByGroup, cleanse.Conditions[0].Target.By)
	assert.Equal(t, status.ActionRemove, cleanse.Conditions[0].Action)
}

func TestLoad_CompiledContentRuns(t *testing.T) {
	attrs := status.NewAttributeRegistry()
	catalog, err := Load("testdata/effects", attrs)
	require.NoError(t, err)

	damage, _ := attrs.Lookup("damage")
	rage, _ := catalog.Get("rage")
	cleanse, _ := catalog.Get("cleanse")

	m := status.NewManager(status.Options{Catalog: catalog})
	require.NotNil(t, m.AddEffect(rage))
	assert.Equal(t, 2, m.Count(), "rage pulls in exhausted")
	// (10 + 5) * 1.5 - 2
	assert.InDelta(t, 20.5, m.Float(damage, 10), 1e-9)

	m.AddEffect(cleanse)
	assert.InDelta(t, 22.5, m.Float(damage, 10), 1e-9)
}

func TestParseFile_UnknownField(t *testing.T) {
	_, err := ParseFile([]byte("definitions:\n  - id: x\n    max_stack: 3\n"))
	assert.Error(t, err)
}

func TestParseFile_Empty(t *testing.T) {
	f, err := ParseFile(nil)
	require.NoError(t, err)
	assert.Empty(t, f.Definitions)
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir("testdata/nope")
	assert.Error(t, err)
}

func TestCompile_Errors(t *testing.T) {
	attrs := status.NewAttributeRegistry()
	attrs.MustRegister("damage", status.KindFloat)

	tests := []struct {
		name string
		docs []DefinitionDoc
		want error
	}{
		{
			name: "unknown attribute",
			docs: []DefinitionDoc{{ID: "a", Modifiers: []ModifierDoc{{Attribute: "mana"}}}},
			want: ErrUnknownAttribute,
		},
		{
			name: "unknown definition reference",
			docs: []DefinitionDoc{{ID: "a", Conditions: []ConditionDoc{{
				Search: SelectorDoc{Group: "x"},
				Action: "add",
				Target: SelectorDoc{Definition: "ghost"},
			}}}},
			want: ErrUnknownDefinition,
		},
		{
			name: "duplicate id",
			docs: []DefinitionDoc{{ID: "a"}, {ID: "a"}},
			want: status.ErrDuplicateDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Compile(attrs, tt.docs)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompile_InvalidShapes(t *testing.T) {
	attrs := status.NewAttributeRegistry()
	attrs.MustRegister("damage", status.KindFloat)
	attrs.MustRegister("stunned", status.KindBool)

	bad := [][]DefinitionDoc{
		{{ID: ""}},
		{{ID: "a", NonStacking: "Sometimes"}},
		{{ID: "a", Modifiers: []ModifierDoc{{Attribute: "damage", Op: "Divide"}}}},
		{{ID: "a", Modifiers: []ModifierDoc{{Attribute: "stunned", Op: "Additive"}}}},
		{{ID: "a", Modules: []ModuleDoc{{}}}},
		{{ID: "a", Conditions: []ConditionDoc{{Search: SelectorDoc{}, Action: "add", Target: SelectorDoc{Group: "g"}}}}},
		{{ID: "a", Conditions: []ConditionDoc{{Search: SelectorDoc{Group: "g", Comparable: "c"}, Action: "add", Target: SelectorDoc{Group: "g"}}}}},
		{{ID: "a", Conditions: []ConditionDoc{{Search: SelectorDoc{Group: "g"}, Action: "toggle", Target: SelectorDoc{Group: "g"}}}}},
		{{ID: "a", Conditions: []ConditionDoc{{Search: SelectorDoc{Group: "g"}, Action: "add", Target: SelectorDoc{Group: "g"}, Timing: "Forever"}}}},
	}
	for i, docs := range bad {
		_, _, err := Compile(attrs, docs)
		assert.Error(t, err, "case %d", i)
	}
}

func TestCompile_Warnings(t *testing.T) {
	attrs := status.NewAttributeRegistry()
	attrs.MustRegister("damage", status.KindFloat)

	_, warnings, err := Compile(attrs, []DefinitionDoc{{
		ID:        "loop",
		Modifiers: []ModifierDoc{{Attribute: "damage", UseBaseValue: true}},
		Conditions: []ConditionDoc{{
			Search: SelectorDoc{Group: "x"},
			Action: "add",
			Target: SelectorDoc{Definition: "loop"},
		}},
	}})
	require.NoError(t, err)
	assert.Len(t, warnings, 2)
}

func TestRegisterAttributes_KindConflict(t *testing.T) {
	attrs := status.NewAttributeRegistry()
	require.NoError(t, RegisterAttributes(attrs, []AttributeDoc{{Name: "armor", Kind: "int"}}))

	err := RegisterAttributes(attrs, []AttributeDoc{{Name: "armor", Kind: "bool"}})
	assert.Error(t, err)

	err = RegisterAttributes(attrs, []AttributeDoc{{Name: "x", Kind: "complex"}})
	assert.Error(t, err)
}

// The content shipped with statusd must compile without warnings.
func TestLoad_ShippedContent(t *testing.T) {
	f, err := LoadDir("../../data/effects")
	require.NoError(t, err)

	catalog, warnings, err := CompileFile(status.NewAttributeRegistry(), f)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, len(f.Definitions), catalog.Len())

	stoneskin, ok := catalog.Get("stoneskin")
	require.True(t, ok)
	require.Len(t, stoneskin.Modules, 1)
	assert.Equal(t, "lua", stoneskin.Modules[0].Kind)
}
