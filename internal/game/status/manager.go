package status

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Options configures a Manager.
type Options struct {
	// Entity names the owner in logs and change events.
	Entity string
	// Modules runs attached module behavior. Nil disables modules.
	Modules ModuleRunner
	// Catalog lets modules look up other definitions by id. Optional.
	Catalog *Catalog
	// Strict turns invariant violations into panics.
	Strict bool
}

// Manager owns the active effects of one entity.
//
// Every mutation (add, remove, stack change, condition recursion, expiry)
// runs under opMu from start to the last notification, so mutations never
// interleave. The registry itself is guarded by stateMu, which lets
// listeners, predicates and module hooks read while a mutation is running.
type Manager struct {
	entity  string
	modules ModuleRunner
	catalog *Catalog
	strict  bool

	ctx    context.Context
	cancel context.CancelFunc

	opMu sync.Mutex

	stateMu   sync.RWMutex
	instances []*Instance
	nextID    InstanceID
	gen       uint64
	index     modIndex
	variables []*Variable
	listeners []*listenerEntry
	closed    bool
}

type listenerEntry struct {
	l Listener
}

// NewManager creates an empty manager.
func NewManager(opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		entity:    opts.Entity,
		modules:   opts.Modules,
		catalog:   opts.Catalog,
		strict:    opts.Strict,
		ctx:       ctx,
		cancel:    cancel,
		instances: make([]*Instance, 0, 8),
		index:     make(modIndex),
	}
}

// Entity returns the owner name given in Options.
func (m *Manager) Entity() string { return m.entity }

// Generation increments on every registry change.
func (m *Manager) Generation() uint64 {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.gen
}

// Subscribe registers a listener. The returned function unsubscribes it.
func (m *Manager) Subscribe(l Listener) func() {
	entry := &listenerEntry{l: l}

	m.stateMu.Lock()
	m.listeners = append(m.listeners, entry)
	m.stateMu.Unlock()

	return func() {
		m.stateMu.Lock()
		defer m.stateMu.Unlock()
		for i, e := range m.listeners {
			if e == entry {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// OnEffectChanged subscribes a function.
func (m *Manager) OnEffectChanged(fn func(Change)) func() {
	return m.Subscribe(ListenerFunc(fn))
}

// AddOption customizes one add call.
type AddOption func(*addOptions)

type addOptions struct {
	stacks   int
	interval float64
	value    float64
	hasValue bool
}

// WithStacks sets the number of stacks to add (default 1).
func WithStacks(n int) AddOption {
	return func(o *addOptions) { o.stacks = n }
}

// WithInterval sets how much one signal removes from an Event-mode instance (default 1).
func WithInterval(interval float64) AddOption {
	return func(o *addOptions) { o.interval = interval }
}

// WithValue overrides the instance magnitude (default: the definition base value).
func WithValue(v float64) AddOption {
	return func(o *addOptions) {
		o.value = v
		o.hasValue = true
	}
}

// AddEffect adds an instance that lasts until removed.
// Returns nil when the add is rejected.
func (m *Manager) AddEffect(def *Definition, opts ...AddOption) *Instance {
	return m.Apply(def, Timing{Mode: TimingInfinite}, opts...)
}

// AddTimedEffect adds an instance that expires after duration of Advance time.
func (m *Manager) AddTimedEffect(def *Definition, duration float64, opts ...AddOption) *Instance {
	return m.Apply(def, Timing{Mode: TimingDuration, Duration: duration}, opts...)
}

// AddEventEffect adds an instance whose duration only runs down when Signal is
// called with its correlation. An empty signal gets a generated correlation,
// readable through Instance.Correlation.
func (m *Manager) AddEventEffect(def *Definition, duration float64, signal SignalID, opts ...AddOption) *Instance {
	return m.Apply(def, Timing{Mode: TimingEvent, Duration: duration, Signal: signal}, opts...)
}

// AddPredicateEffect adds an instance removed the first time pred returns
// true during Advance.
func (m *Manager) AddPredicateEffect(def *Definition, pred func() bool, opts ...AddOption) *Instance {
	return m.Apply(def, Timing{Mode: TimingPredicate, Predicate: pred}, opts...)
}

// Apply adds def with explicit timing.
func (m *Manager) Apply(def *Definition, t Timing, opts ...AddOption) *Instance {
	if def == nil {
		return nil
	}

	ao := addOptions{stacks: 1, interval: 1, value: def.BaseValue}
	for _, opt := range opts {
		opt(&ao)
	}
	if t.Mode == TimingEvent && t.Interval <= 0 {
		t.Interval = ao.interval
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.add(newOp(), def, t, ao)
}

// add runs the add algorithm. Must be called with opMu held.
func (m *Manager) add(o *op, def *Definition, t Timing, ao addOptions) *Instance {
	if m.closed {
		return nil
	}
	if !validTiming(&t) {
		slog.Debug("effect rejected: invalid timing",
			"definition", def.ID, "timing", t.Mode, "entity", m.entity)
		return nil
	}

	stacks := def.ClampStacks(ao.stacks)
	if def.AllowStacking && def.MaxStacks > 0 {
		// The cap spans every instance of the definition on this manager.
		stacks = min(stacks, def.MaxStacks-m.heldStacks(def.ID))
	}
	if stacks <= 0 {
		return nil
	}

	if !def.AllowStacking {
		if existing := m.findByDefinition(def.ID); existing != nil {
			d := Reconcile(def.NonStacking, m.candidateOf(existing), Candidate{
				Value:     ao.value,
				Timing:    t,
				Remaining: t.span(),
			})

			switch d.Outcome {
			case OutcomeReject:
				slog.Debug("effect rejected by stacking",
					"definition", def.ID, "behavior", def.NonStacking, "entity", m.entity)
				return nil
			case OutcomeMerge:
				m.merge(existing, d, stacks)
				return existing
			case OutcomeReplace:
				m.removeInstance(existing, true)
			}
		}
	}

	inst := m.register(def, t, stacks, ao.value)
	m.startModules(inst)

	o.enter(def.ID, inst)
	m.evaluateConditions(o, inst)
	o.leave(def.ID, inst)

	if inst.State() != StateActive {
		m.violation("instance %s left the registry while being added", inst)
		return nil
	}

	m.refreshVariables(def)
	m.notify(Change{Instance: inst, Action: Added, PreviousStacks: 0, CurrentStacks: stacks})
	return inst
}

func validTiming(t *Timing) bool {
	switch t.Mode {
	case TimingInfinite:
		return true
	case TimingDuration:
		return t.Duration > 0
	case TimingEvent:
		if t.Duration <= 0 || t.Interval <= 0 {
			return false
		}
		if t.Signal == "" {
			t.Signal = SignalID(uuid.NewString())
		}
		return true
	case TimingPredicate:
		return t.Predicate != nil
	}
	return false
}

func (m *Manager) register(def *Definition, t Timing, stacks int, value float64) *Instance {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	m.nextID++
	inst := &Instance{
		id:        m.nextID,
		def:       def,
		owner:     m,
		handle:    newHandle(m.ctx),
		timing:    t,
		remaining: t.Duration,
		stacks:    stacks,
		value:     value,
		state:     StateActive,
	}
	m.instances = append(m.instances, inst)
	m.bumpLocked()
	return inst
}

func (m *Manager) merge(inst *Instance, d Decision, stacks int) {
	m.stateMu.Lock()
	prev := inst.stacks
	switch d.Timing.Mode {
	case TimingDuration:
		inst.remaining = d.Remaining
	case TimingEvent:
		// Event countdowns only continue when the correlation is unchanged.
		if inst.timing.Mode != TimingEvent || inst.timing.Signal != d.Timing.Signal {
			inst.remaining = d.Timing.Duration
		}
	}
	inst.value = d.Value
	inst.timing = d.Timing
	inst.stacks = inst.def.ClampStacks(prev + stacks)
	cur := inst.stacks
	m.bumpLocked()
	m.stateMu.Unlock()

	m.checkStacks(inst, cur)
	m.refreshVariables(inst.def)
	m.notify(Change{Instance: inst, Action: StacksAdded, PreviousStacks: prev, CurrentStacks: cur})
}

// candidateOf compares Duration instances by what is left of them; every
// other timing is endless.
func (m *Manager) candidateOf(inst *Instance) Candidate {
	c := Candidate{Value: inst.value, Timing: inst.timing, Remaining: inst.timing.span()}
	if inst.timing.Mode == TimingDuration {
		c.Remaining = inst.remaining
	}
	return c
}

// RemoveInstance removes one instance regardless of its stack count.
func (m *Manager) RemoveInstance(inst *Instance) {
	if inst == nil {
		return
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if inst.owner != m {
		m.violation("removing instance %s owned by another manager", inst)
		return
	}
	m.removeInstance(inst, true)
}

// RemoveInstanceStacks removes n stacks from one instance.
func (m *Manager) RemoveInstanceStacks(inst *Instance, n int) {
	if inst == nil || n <= 0 {
		return
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if inst.owner != m {
		m.violation("removing stacks of instance %s owned by another manager", inst)
		return
	}
	m.removeStacks(inst, n)
}

// Stacks is a helper for the optional stack arguments of the Remove methods.
func Stacks(n int) *int { return &n }

// RemoveDefinition removes instances of def. A nil stacks removes whole
// instances; otherwise that many stacks are taken, oldest instance first.
func (m *Manager) RemoveDefinition(def *Definition, stacks *int) {
	if def == nil {
		return
	}
	m.removeFiltered(Filter{Definition: def}, stacks)
}

// RemoveComparable removes instances whose definition has the comparable name.
func (m *Manager) RemoveComparable(name string, stacks *int) {
	if name == "" {
		return
	}
	m.removeFiltered(Filter{ComparableName: name}, stacks)
}

// RemoveGroup removes instances whose definition is in group.
func (m *Manager) RemoveGroup(group Group, stacks *int) {
	if group == "" {
		return
	}
	m.removeFiltered(Filter{Group: group}, stacks)
}

// RemoveAll removes every instance.
func (m *Manager) RemoveAll() {
	m.removeFiltered(Filter{}, nil)
}

func (m *Manager) removeFiltered(f Filter, stacks *int) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.remove(newOp(), f, stacks)
}

// remove applies a filtered removal. Must be called with opMu held.
func (m *Manager) remove(o *op, f Filter, stacks *int) {
	targets := m.match(f)
	if len(targets) == 0 {
		return
	}

	if stacks == nil {
		for _, inst := range targets {
			if o.adding(inst) {
				continue
			}
			m.removeInstance(inst, true)
		}
		return
	}

	budget := *stacks
	for _, inst := range targets {
		if budget <= 0 {
			return
		}
		if o.adding(inst) {
			continue
		}
		held := inst.stacks
		n := min(budget, held)
		m.removeStacks(inst, n)
		budget -= n
	}
}

func (m *Manager) removeStacks(inst *Instance, n int) {
	m.stateMu.Lock()
	if inst.state != StateActive {
		m.stateMu.Unlock()
		return
	}
	prev := inst.stacks
	if n >= prev {
		m.stateMu.Unlock()
		m.removeInstance(inst, true)
		return
	}
	inst.stacks -= n
	cur := inst.stacks
	m.bumpLocked()
	m.stateMu.Unlock()

	m.refreshVariables(inst.def)
	m.notify(Change{Instance: inst, Action: StacksRemoved, PreviousStacks: prev, CurrentStacks: cur})
}

// removeInstance tears an instance down: cancel the handle, disable modules,
// unregister, refresh, notify. explicit selects Cancelled over Removed as
// the final state. Must be called with opMu held.
func (m *Manager) removeInstance(inst *Instance, explicit bool) {
	m.stateMu.Lock()
	switch inst.state {
	case StateRemoved, StateCancelled:
		m.stateMu.Unlock()
		return
	case StateActive:
		if explicit {
			inst.state = StateCancelled
		} else {
			inst.state = StateExpiring
		}
	}
	m.stateMu.Unlock()

	if !inst.handle.cancelOnce() {
		m.violation("handle of %s cancelled twice", inst)
	}
	m.stopModules(inst)

	m.stateMu.Lock()
	for i, other := range m.instances {
		if other == inst {
			m.instances = append(m.instances[:i:i], m.instances[i+1:]...)
			break
		}
	}
	if inst.state == StateExpiring {
		inst.state = StateRemoved
	}
	prev := inst.stacks
	m.bumpLocked()
	m.stateMu.Unlock()

	m.refreshVariables(inst.def)
	m.notify(Change{Instance: inst, Action: Removed, PreviousStacks: prev, CurrentStacks: 0})
}

// Advance moves Duration-mode countdowns forward by dt and re-evaluates
// Predicate-mode instances. Expired instances are removed in registry order.
func (m *Manager) Advance(dt float64) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	var expired []*Instance

	if dt > 0 {
		m.stateMu.Lock()
		for _, inst := range m.instances {
			if inst.timing.Mode == TimingDuration && inst.tick(dt) {
				expired = append(expired, inst)
			}
		}
		m.stateMu.Unlock()
	}

	// Predicates may read the manager, so they run without the state lock.
	for _, inst := range m.snapshot() {
		if inst.timing.Mode != TimingPredicate || inst.state != StateActive {
			continue
		}
		if inst.timing.Predicate() {
			m.stateMu.Lock()
			inst.state = StateExpiring
			m.stateMu.Unlock()
			expired = append(expired, inst)
		}
	}

	for _, inst := range expired {
		m.removeInstance(inst, false)
	}
}

// Signal runs down every Event-mode instance correlated with signal by its interval.
func (m *Manager) Signal(signal SignalID) {
	if signal == "" {
		return
	}
	m.opMu.Lock()
	defer m.opMu.Unlock()

	var expired []*Instance
	m.stateMu.Lock()
	for _, inst := range m.instances {
		if inst.timing.Mode == TimingEvent && inst.timing.Signal == signal && inst.tick(inst.timing.Interval) {
			expired = append(expired, inst)
		}
	}
	m.stateMu.Unlock()

	for _, inst := range expired {
		m.removeInstance(inst, false)
	}
}

// Close removes every instance and refuses further adds. Module goroutines
// observe the cancellation through their contexts.
func (m *Manager) Close() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.closed {
		return
	}
	m.remove(newOp(), Filter{}, nil)

	m.stateMu.Lock()
	m.closed = true
	m.stateMu.Unlock()
	m.cancel()
}

// Closed reports whether Close has run.
func (m *Manager) Closed() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.closed
}

// Filter selects instances. Zero-valued fields are ignored; every set field
// must match.
type Filter struct {
	Group          Group
	ComparableName string
	Definition     *Definition
}

func (f Filter) empty() bool {
	return f.Group == "" && f.ComparableName == "" && f.Definition == nil
}

func (f Filter) matches(inst *Instance) bool {
	if inst.state != StateActive {
		return false
	}
	def := inst.def
	if f.Group != "" && def.Group != f.Group {
		return false
	}
	if f.ComparableName != "" && def.ComparableName != f.ComparableName {
		return false
	}
	if f.Definition != nil && def.ID != f.Definition.ID {
		return false
	}
	return true
}

// GetEffects iterates active instances matching f in insertion order. The
// registry is read when iteration starts.
func (m *Manager) GetEffects(f Filter) iter.Seq[*Instance] {
	return func(yield func(*Instance) bool) {
		for _, inst := range m.match(f) {
			if !yield(inst) {
				return
			}
		}
	}
}

// GetFirstEffect returns the oldest matching instance, or nil.
func (m *Manager) GetFirstEffect(f Filter) *Instance {
	for inst := range m.GetEffects(f) {
		return inst
	}
	return nil
}

// Count returns the number of active instances.
func (m *Manager) Count() int {
	return len(m.match(Filter{}))
}

// Snapshot returns the active instances in insertion order.
func (m *Manager) Snapshot() []*Instance {
	return m.match(Filter{})
}

func (m *Manager) match(f Filter) []*Instance {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		if f.matches(inst) {
			out = append(out, inst)
		}
	}
	return out
}

func (m *Manager) snapshot() []*Instance {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	out := make([]*Instance, len(m.instances))
	copy(out, m.instances)
	return out
}

func (m *Manager) heldStacks(id DefinitionID) int {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	n := 0
	for _, inst := range m.instances {
		if inst.state == StateActive && inst.def.ID == id {
			n += inst.stacks
		}
	}
	return n
}

func (m *Manager) findByDefinition(id DefinitionID) *Instance {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	for _, inst := range m.instances {
		if inst.state == StateActive && inst.def.ID == id {
			return inst
		}
	}
	return nil
}

// bumpLocked advances the generation and rebuilds the attribute index.
// Must be called with stateMu held for writing.
func (m *Manager) bumpLocked() {
	m.gen++
	m.index = buildIndex(m.instances)
}

func (m *Manager) refreshVariables(def *Definition) {
	m.stateMu.RLock()
	vars := make([]*Variable, 0, len(m.variables))
	for _, v := range m.variables {
		if def.Touches(v.attr) {
			vars = append(vars, v)
		}
	}
	m.stateMu.RUnlock()

	for _, v := range vars {
		v.refresh()
	}
}

func (m *Manager) notify(c Change) {
	c.Entity = m.entity

	m.stateMu.RLock()
	listeners := make([]*listenerEntry, len(m.listeners))
	copy(listeners, m.listeners)
	m.stateMu.RUnlock()

	for _, e := range listeners {
		e.l.OnEffectChanged(c)
	}
}

func (m *Manager) checkStacks(inst *Instance, stacks int) {
	if limit := inst.def.MaxStacks; limit > 0 && stacks > limit {
		m.violation("instance %s holds %d stacks, cap is %d", inst, stacks, limit)
	}
}

func (m *Manager) violation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if m.strict {
		panic("status: invariant violated: " + msg)
	}
	slog.Error("status invariant violated", "entity", m.entity, "detail", msg)
}

// op carries per-call recursion state for condition evaluation: the
// definitions whose conditions are currently being processed and the
// instances they belong to. Those instances are never removed by the
// conditions they trigger.
type op struct {
	active  map[DefinitionID]int
	pending []*Instance
}

func newOp() *op {
	return &op{active: make(map[DefinitionID]int)}
}

func (o *op) enter(id DefinitionID, inst *Instance) {
	o.active[id]++
	o.pending = append(o.pending, inst)
}

func (o *op) leave(id DefinitionID, inst *Instance) {
	if i := slices.Index(o.pending, inst); i >= 0 {
		o.pending = slices.Delete(o.pending, i, i+1)
	}
	if o.active[id] <= 1 {
		delete(o.active, id)
		return
	}
	o.active[id]--
}

func (o *op) processing(id DefinitionID) bool { return o.active[id] > 0 }

func (o *op) adding(inst *Instance) bool { return slices.Contains(o.pending, inst) }
