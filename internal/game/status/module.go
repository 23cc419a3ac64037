package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

//go:generate mockgen -destination=mocks/mock_module_runner.go -package=mocks github.com/udisondev/statusfx/internal/game/status ModuleRunner

// ModuleRunner starts and stops the modules of an instance. Start is called
// once the instance is registered and Active; Stop is called after its handle
// has been cancelled, before it leaves the registry.
type ModuleRunner interface {
	Start(ctx context.Context, mc *ModuleContext) error
	Stop(mc *ModuleContext)
}

// Module is behavior attached to an instance for its lifetime.
// Enable and Disable run while the owning manager is mid-mutation: they may
// read the manager but must not mutate it.
type Module interface {
	Kind() string
	Enable(mc *ModuleContext)
	Disable(mc *ModuleContext)
}

// AsyncModule additionally runs Run on its own goroutine. Run must return
// once ctx is done and may mutate the manager through its public API.
type AsyncModule interface {
	Module
	Run(ctx context.Context, mc *ModuleContext)
}

// ModuleFactory builds a module from definition params.
type ModuleFactory func(params map[string]string) (Module, error)

// ModuleContext is handed to the modules of one instance.
type ModuleContext struct {
	Manager  *Manager
	Instance *Instance
	Modules  []ModuleDefinition

	running []Module
}

// Context is done once the instance left the Active state.
func (mc *ModuleContext) Context() context.Context { return mc.Instance.handle.ctx }

// Alive reports whether the instance is still active. Code resuming after a
// wait must check it before touching the manager.
func (mc *ModuleContext) Alive() bool {
	return !mc.Instance.handle.Cancelled() && mc.Instance.Active()
}

// Entity names the owning entity.
func (mc *ModuleContext) Entity() string { return mc.Manager.entity }

// Catalog returns the definitions known to the owning manager. It may be nil.
func (mc *ModuleContext) Catalog() *Catalog { return mc.Manager.catalog }

func (m *Manager) startModules(inst *Instance) {
	if m.modules == nil || len(inst.def.Modules) == 0 {
		return
	}
	mc := &ModuleContext{Manager: m, Instance: inst, Modules: inst.def.Modules}
	inst.modules = mc
	if err := m.modules.Start(inst.handle.ctx, mc); err != nil {
		slog.Warn("effect modules failed to start",
			"instance", inst.String(), "entity", m.entity, "error", err)
	}
}

func (m *Manager) stopModules(inst *Instance) {
	if m.modules == nil || inst.modules == nil {
		return
	}
	m.modules.Stop(inst.modules)
}

// builtinModules is populated by init() in modules.go.
var builtinModules = map[string]ModuleFactory{}

func registerBuiltin(kind string, factory ModuleFactory) {
	builtinModules[kind] = factory
}

// Runtime is the default ModuleRunner. It builds modules through a
// kind → factory registry seeded with the built-in kinds.
type Runtime struct {
	mu        sync.RWMutex
	factories map[string]ModuleFactory

	wg sync.WaitGroup
}

// NewRuntime creates a runtime with the built-in module kinds registered.
func NewRuntime() *Runtime {
	rt := &Runtime{factories: make(map[string]ModuleFactory, len(builtinModules))}
	for kind, f := range builtinModules {
		rt.factories[kind] = f
	}
	return rt
}

// Register adds or replaces a module kind.
func (rt *Runtime) Register(kind string, factory ModuleFactory) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.factories[kind] = factory
}

// Kinds returns the registered kinds, sorted.
func (rt *Runtime) Kinds() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	kinds := make([]string, 0, len(rt.factories))
	for k := range rt.factories {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Create builds one module.
func (rt *Runtime) Create(md ModuleDefinition) (Module, error) {
	rt.mu.RLock()
	factory, ok := rt.factories[md.Kind]
	rt.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown module kind: %s", md.Kind)
	}
	mod, err := factory(md.Params)
	if err != nil {
		return nil, fmt.Errorf("creating module %s: %w", md.Kind, err)
	}
	return mod, nil
}

// Start builds and enables every module of the instance. A module that
// fails to build is skipped; the others still run.
func (rt *Runtime) Start(ctx context.Context, mc *ModuleContext) error {
	var errs []error
	for _, md := range mc.Modules {
		mod, err := rt.Create(md)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		mc.running = append(mc.running, mod)
		mod.Enable(mc)

		if async, ok := mod.(AsyncModule); ok {
			rt.wg.Go(func() {
				async.Run(ctx, mc)
			})
		}
	}
	return errors.Join(errs...)
}

// Stop disables the instance's modules in reverse order. It does not wait
// for Run goroutines; they observe the cancelled context.
func (rt *Runtime) Stop(mc *ModuleContext) {
	for i := len(mc.running) - 1; i >= 0; i-- {
		mc.running[i].Disable(mc)
	}
	mc.running = nil
}

// Wait blocks until every Run goroutine has returned. Call it after the
// managers have been closed; a Run blocked on a manager that is still
// mutating would otherwise never finish.
func (rt *Runtime) Wait() {
	rt.wg.Wait()
}
