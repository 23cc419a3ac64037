package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func term(op Operation, value float64, priority int) Term {
	return Term{Modifier: &Modifier{Op: op, Value: value, Priority: priority}, Stacks: 1}
}

func TestFoldFloat_Formula(t *testing.T) {
	terms := []Term{
		term(OpAdditive, 5, 0),
		term(OpMultiplicative, 0.5, 0),
		term(OpPostAdditive, 2, 0),
	}
	assert.InDelta(t, 24.5, FoldFloat(10, terms), 1e-9)
}

func TestFoldFloat_NoTerms(t *testing.T) {
	assert.Equal(t, 42.0, FoldFloat(42, nil))
}

func TestFoldFloat_OverwritePriority(t *testing.T) {
	low := term(OpOverwrite, 1, 1)
	high := term(OpOverwrite, 2, 2)

	assert.Equal(t, 2.0, FoldFloat(10, []Term{low, high}))
	assert.Equal(t, 2.0, FoldFloat(10, []Term{high, low}))
}

func TestFoldFloat_OverwriteTieLaterWins(t *testing.T) {
	first := term(OpOverwrite, 1, 3)
	second := term(OpOverwrite, 7, 3)
	assert.Equal(t, 7.0, FoldFloat(10, []Term{first, second}))
}

func TestFoldFloat_MaximumAndMinimum(t *testing.T) {
	assert.Equal(t, 50.0, FoldFloat(100, []Term{term(OpMaximum, 50, 0)}), "maximum caps")
	assert.Equal(t, 100.0, FoldFloat(100, []Term{term(OpMaximum, 500, 0)}), "maximum above value is a no-op")
	assert.Equal(t, 10.0, FoldFloat(0, []Term{term(OpMinimum, 10, 0)}), "minimum floors")

	// cap then overwrite at higher priority
	terms := []Term{term(OpOverwrite, 80, 2), term(OpMaximum, 50, 1)}
	assert.Equal(t, 80.0, FoldFloat(100, terms))
}

func TestFoldFloat_StacksScaleSummingOperations(t *testing.T) {
	add := Term{Modifier: &Modifier{Op: OpAdditive, Value: 5}, Stacks: 3}
	over := Term{Modifier: &Modifier{Op: OpMinimum, Value: 4}, Stacks: 3}

	assert.Equal(t, 15.0, FoldFloat(0, []Term{add}))
	assert.Equal(t, 4.0, FoldFloat(0, []Term{over}), "overrides ignore stacks")
}

func TestFoldFloat_UseBaseValue(t *testing.T) {
	mod := &Modifier{Op: OpAdditive, UseBaseValue: true, Value: 100}
	assert.Equal(t, 17.0, FoldFloat(10, []Term{{Modifier: mod, Value: 7, Stacks: 1}}))
}

func TestFoldInt_Rounds(t *testing.T) {
	assert.Equal(t, 13, FoldInt(10, []Term{term(OpMultiplicative, 0.25, 0)}))
}

func TestFoldBool(t *testing.T) {
	on := Term{Modifier: &Modifier{Op: OpOverwrite, Bool: true, Priority: 1}}
	off := Term{Modifier: &Modifier{Op: OpOverwrite, Bool: false, Priority: 2}}
	offTie := Term{Modifier: &Modifier{Op: OpOverwrite, Bool: false, Priority: 1}}

	assert.False(t, FoldBool(false, nil))
	assert.True(t, FoldBool(true, nil))
	assert.True(t, FoldBool(false, []Term{on}))
	assert.False(t, FoldBool(true, []Term{on, off}))
	assert.False(t, FoldBool(true, []Term{off, on}))
	assert.False(t, FoldBool(true, []Term{on, offTie}), "later declared wins ties")

	additive := Term{Modifier: &Modifier{Op: OpAdditive, Bool: false, Priority: 9}}
	assert.True(t, FoldBool(false, []Term{on, additive}), "only overwrite terms count")
	assert.True(t, FoldBool(true, []Term{additive}))
}

func TestManager_FloatResolvesActiveModifiers(t *testing.T) {
	m := NewManager(Options{Entity: "hero"})
	def := newTestDef("rage",
		Modifier{Attribute: attrDamage, Op: OpAdditive, Value: 5},
		Modifier{Attribute: attrDamage, Op: OpMultiplicative, Value: 0.5},
		Modifier{Attribute: attrDamage, Op: OpPostAdditive, Value: 2},
		Modifier{Attribute: attrSpeed, Op: OpAdditive, Value: 1},
	)

	assert.Equal(t, 10.0, m.Float(attrDamage, 10))

	inst := m.AddEffect(def)
	require.NotNil(t, inst)
	assert.InDelta(t, 24.5, m.Float(attrDamage, 10), 1e-9)
	assert.Equal(t, 4.0, m.Float(attrSpeed, 3))

	m.RemoveInstance(inst)
	assert.Equal(t, 10.0, m.Float(attrDamage, 10))
}

func TestManager_BoolAttribute(t *testing.T) {
	m := NewManager(Options{})
	stun := newTestDef("stun", Modifier{Attribute: attrStunned, Op: OpOverwrite, Bool: true, Priority: 1})
	immune := newTestDef("immune", Modifier{Attribute: attrStunned, Op: OpOverwrite, Bool: false, Priority: 5})

	m.AddEffect(stun)
	assert.True(t, m.Bool(attrStunned, false))

	m.AddEffect(immune)
	assert.False(t, m.Bool(attrStunned, false))
}

func TestVariable_RefreshedBeforeNotification(t *testing.T) {
	m := NewManager(Options{})
	v := m.Variable(attrDamage, KindFloat, 10)
	def := newTestDef("sharpen", Modifier{Attribute: attrDamage, Op: OpAdditive, Value: 5})

	var seen []float64
	m.OnEffectChanged(func(Change) { seen = append(seen, v.Float()) })

	var prev, cur float64
	calls := 0
	v.OnChange(func(p, c float64) {
		prev, cur = p, c
		calls++
	})

	inst := m.AddEffect(def)
	require.Equal(t, []float64{15}, seen)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 10.0, prev)
	assert.Equal(t, 15.0, cur)

	m.RemoveInstance(inst)
	assert.Equal(t, []float64{15, 10}, seen)
	assert.Equal(t, 2, calls)
}

func TestVariable_UntouchedAttributeDoesNotFire(t *testing.T) {
	m := NewManager(Options{})
	v := m.Variable(attrSpeed, KindFloat, 1)
	calls := 0
	v.OnChange(func(_, _ float64) { calls++ })

	m.AddEffect(newTestDef("sharpen", Modifier{Attribute: attrDamage, Op: OpAdditive, Value: 5}))

	assert.Zero(t, calls)
	assert.Equal(t, 1.0, v.Float())
}

func TestVariable_CacheFollowsGeneration(t *testing.T) {
	m := NewManager(Options{})
	v := m.Variable(attrDamage, KindInt, 10)
	def := newTestDef("weaken", Modifier{Attribute: attrDamage, Op: OpMultiplicative, Value: -0.25})
	def.AllowStacking = true

	assert.Equal(t, 10, v.Int())
	gen := m.Generation()

	inst := m.AddEffect(def, WithStacks(2))
	require.NotNil(t, inst)
	assert.Greater(t, m.Generation(), gen)
	assert.Equal(t, 5, v.Int())

	m.RemoveInstanceStacks(inst, 1)
	assert.Equal(t, 8, v.Int(), "7.5 rounds half away from zero")
}

func TestVariable_SetBase(t *testing.T) {
	m := NewManager(Options{})
	v := m.Variable(attrDamage, KindFloat, 10)
	m.AddEffect(newTestDef("double", Modifier{Attribute: attrDamage, Op: OpMultiplicative, Value: 1}))

	var got []float64
	v.OnChange(func(_, c float64) { got = append(got, c) })

	v.SetBase(20)
	assert.Equal(t, 40.0, v.Float())
	assert.Equal(t, []float64{40}, got)

	v.SetBase(20)
	assert.Len(t, got, 1, "unchanged value does not fire")
}
