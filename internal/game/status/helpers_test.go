package status

import "sync"

const (
	attrDamage AttributeID = iota + 1
	attrSpeed
	attrStunned
)

func newTestDef(id string, mods ...Modifier) *Definition {
	return &Definition{
		ID:        DefinitionID(id),
		Name:      id,
		MaxStacks: UnlimitedStacks,
		Modifiers: mods,
	}
}

// recorder collects change notifications.
type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) OnEffectChanged(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) count(a Action) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.changes {
		if c.Action == a {
			n++
		}
	}
	return n
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Change, len(r.changes))
	copy(out, r.changes)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.changes = nil
	r.mu.Unlock()
}
