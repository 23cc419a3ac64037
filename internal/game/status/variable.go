package status

import (
	"math"
	"slices"
	"sync"
)

// Term is one modifier contribution as seen by the resolver.
type Term struct {
	Modifier *Modifier
	Value    float64 // instance value, used when the modifier takes the base value
	Stacks   int
}

// FoldFloat resolves a numeric status variable:
//
//	(base + Σadditive) * (1 + Σmultiplicative) + Σpostadditive
//
// then applies Maximum (cap), Minimum (floor) and Overwrite terms in ascending
// priority. Terms of equal priority apply in the order given, so the highest
// priority and, within it, the last declared term has the final say.
func FoldFloat(base float64, terms []Term) float64 {
	var add, mul, post float64
	var overrides []int

	for i := range terms {
		t := &terms[i]
		switch t.Modifier.Op {
		case OpAdditive:
			add += t.Modifier.amount(t.Value, t.Stacks)
		case OpMultiplicative:
			mul += t.Modifier.amount(t.Value, t.Stacks)
		case OpPostAdditive:
			post += t.Modifier.amount(t.Value, t.Stacks)
		default:
			overrides = append(overrides, i)
		}
	}

	result := (base+add)*(1+mul) + post

	slices.SortStableFunc(overrides, func(a, b int) int {
		return terms[a].Modifier.Priority - terms[b].Modifier.Priority
	})
	for _, i := range overrides {
		t := &terms[i]
		v := t.Modifier.amount(t.Value, t.Stacks)
		switch t.Modifier.Op {
		case OpMaximum:
			result = math.Min(result, v)
		case OpMinimum:
			result = math.Max(result, v)
		case OpOverwrite:
			result = v
		}
	}
	return result
}

// FoldInt resolves an integer status variable by rounding the float fold.
func FoldInt(base int, terms []Term) int {
	return int(math.Round(FoldFloat(float64(base), terms)))
}

// FoldBool resolves a boolean status variable from its Overwrite terms: the
// highest priority wins, ties go to the later term. Other operations are
// ignored. No Overwrite terms leaves base unchanged.
func FoldBool(base bool, terms []Term) bool {
	winner := -1
	for i := range terms {
		if terms[i].Modifier.Op != OpOverwrite {
			continue
		}
		if winner < 0 || terms[i].Modifier.Priority >= terms[winner].Modifier.Priority {
			winner = i
		}
	}
	if winner < 0 {
		return base
	}
	return terms[winner].Modifier.Bool
}

// modIndex maps attributes to the terms of all active instances, in
// registry order then declaration order.
type modIndex map[AttributeID][]Term

func buildIndex(instances []*Instance) modIndex {
	idx := make(modIndex)
	for _, inst := range instances {
		if inst.state != StateActive {
			continue
		}
		mods := inst.def.Modifiers
		for j := range mods {
			idx[mods[j].Attribute] = append(idx[mods[j].Attribute], Term{
				Modifier: &mods[j],
				Value:    inst.value,
				Stacks:   inst.stacks,
			})
		}
	}
	return idx
}

// Float resolves attr against the current registry.
func (m *Manager) Float(attr AttributeID, base float64) float64 {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return FoldFloat(base, m.index[attr])
}

// Int resolves an integer attribute.
func (m *Manager) Int(attr AttributeID, base int) int {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return FoldInt(base, m.index[attr])
}

// Bool resolves a boolean attribute.
func (m *Manager) Bool(attr AttributeID, base bool) bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return FoldBool(base, m.index[attr])
}

// Variable is a cached status variable bound to one manager. The cached value
// is tagged with the registry generation it was computed at and recomputed
// only when the generation moves.
type Variable struct {
	m    *Manager
	attr AttributeID
	kind AttributeKind

	mu       sync.Mutex
	base     float64
	value    float64
	gen      uint64
	valid    bool
	reported float64 // last value handed to callbacks
	onChange []func(prev, cur float64)
}

// Variable registers a cached status variable. Registered variables are
// refreshed after every mutation that touches attr, before the change
// notification fires.
func (m *Manager) Variable(attr AttributeID, kind AttributeKind, base float64) *Variable {
	v := &Variable{m: m, attr: attr, kind: kind, base: base}

	m.stateMu.Lock()
	m.variables = append(m.variables, v)
	m.stateMu.Unlock()

	v.mu.Lock()
	v.reported = v.currentLocked()
	v.mu.Unlock()
	return v
}

// Attribute returns the attribute the variable resolves.
func (v *Variable) Attribute() AttributeID { return v.attr }

// Float returns the current value.
func (v *Variable) Float() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.currentLocked()
}

// Int returns the current value rounded to an integer.
func (v *Variable) Int() int { return int(math.Round(v.Float())) }

// Bool returns the current value of a boolean variable.
func (v *Variable) Bool() bool { return v.Float() != 0 }

// SetBase changes the unmodified value and fires change callbacks.
func (v *Variable) SetBase(base float64) {
	v.mu.Lock()
	v.base = base
	v.valid = false
	v.mu.Unlock()
	v.refresh()
}

// OnChange registers a callback fired when a refresh changes the value.
func (v *Variable) OnChange(fn func(prev, cur float64)) {
	v.mu.Lock()
	v.onChange = append(v.onChange, fn)
	v.mu.Unlock()
}

func (v *Variable) currentLocked() float64 {
	v.m.stateMu.RLock()
	defer v.m.stateMu.RUnlock()

	if v.valid && v.gen == v.m.gen {
		return v.value
	}
	v.value = v.resolve(v.m.index[v.attr])
	v.gen = v.m.gen
	v.valid = true
	return v.value
}

func (v *Variable) resolve(terms []Term) float64 {
	switch v.kind {
	case KindInt:
		return float64(FoldInt(int(math.Round(v.base)), terms))
	case KindBool:
		if FoldBool(v.base != 0, terms) {
			return 1
		}
		return 0
	}
	return FoldFloat(v.base, terms)
}

// refresh recomputes the value and fires callbacks when it differs from
// the last reported one.
func (v *Variable) refresh() {
	v.mu.Lock()
	prev := v.reported
	cur := v.currentLocked()
	v.reported = cur
	callbacks := v.onChange
	v.mu.Unlock()

	if prev != cur {
		for _, fn := range callbacks {
			fn(prev, cur)
		}
	}
}
