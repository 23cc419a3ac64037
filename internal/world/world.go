// Package world tracks the entities that carry status effects and drives
// their managers forward in time.
package world

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/udisondev/statusfx/internal/game/status"
)

// ErrUnknownAttribute is returned when an entity base value names an unregistered attribute.
var ErrUnknownAttribute = errors.New("unknown attribute")

// Entity is one effect-carrying object. Base values are exposed as cached
// status variables.
type Entity struct {
	ID      uint32
	Name    string
	Manager *status.Manager

	stats map[status.AttributeID]*status.Variable
}

// Stat returns the cached variable for attr, or nil when the entity has no base for it.
func (e *Entity) Stat(attr status.AttributeID) *status.Variable {
	return e.stats[attr]
}

// Stats returns the entity's variables keyed by attribute.
func (e *Entity) Stats() map[status.AttributeID]*status.Variable {
	return e.stats
}

// Config is shared by every manager the world creates.
type Config struct {
	Attributes *status.AttributeRegistry
	Modules    status.ModuleRunner
	Catalog    *status.Catalog
	Strict     bool
}

// World owns the entity registry.
type World struct {
	cfg      Config
	ids      *EntityIDGenerator
	entities sync.Map // uint32 → *Entity
	count    atomic.Int32

	mu      sync.RWMutex
	onSpawn []func(*Entity)
}

// New creates an empty world.
func New(cfg Config) *World {
	if cfg.Attributes == nil {
		cfg.Attributes = status.NewAttributeRegistry()
	}
	return &World{cfg: cfg, ids: NewEntityIDGenerator()}
}

// OnSpawn registers fn to run for every entity spawned afterwards, before
// Spawn returns. Replication attaches here.
func (w *World) OnSpawn(fn func(*Entity)) {
	w.mu.Lock()
	w.onSpawn = append(w.onSpawn, fn)
	w.mu.Unlock()
}

// Spawn creates an entity with its own manager. base maps attribute names
// to base values; each becomes a status variable.
func (w *World) Spawn(name string, base map[string]float64) (*Entity, error) {
	stats := make(map[status.AttributeID]*status.Variable, len(base))
	resolved := make(map[status.AttributeID]float64, len(base))
	kinds := make(map[status.AttributeID]status.AttributeKind, len(base))
	for attrName, v := range base {
		id, ok := w.cfg.Attributes.Lookup(attrName)
		if !ok {
			return nil, fmt.Errorf("entity %s: %w: %s", name, ErrUnknownAttribute, attrName)
		}
		attr, _ := w.cfg.Attributes.Get(id)
		resolved[id] = v
		kinds[id] = attr.Kind
	}

	id := w.ids.Next()
	e := &Entity{
		ID:   id,
		Name: name,
		Manager: status.NewManager(status.Options{
			Entity:  fmt.Sprintf("%s#%d", name, id),
			Modules: w.cfg.Modules,
			Catalog: w.cfg.Catalog,
			Strict:  w.cfg.Strict,
		}),
		stats: stats,
	}
	for attr, v := range resolved {
		stats[attr] = e.Manager.Variable(attr, kinds[attr], v)
	}

	w.entities.Store(id, e)
	w.count.Add(1)

	w.mu.RLock()
	hooks := slices.Clone(w.onSpawn)
	w.mu.RUnlock()
	for _, fn := range hooks {
		fn(e)
	}

	slog.Debug("entity spawned", "id", id, "name", name, "stats", len(stats))
	return e, nil
}

// Despawn closes the entity's manager and drops it from the world.
func (w *World) Despawn(id uint32) bool {
	v, ok := w.entities.LoadAndDelete(id)
	if !ok {
		return false
	}
	w.count.Add(-1)
	e := v.(*Entity)
	e.Manager.Close()
	slog.Debug("entity despawned", "id", id, "name", e.Name)
	return true
}

// Get returns the entity with id.
func (w *World) Get(id uint32) (*Entity, bool) {
	v, ok := w.entities.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Entity), true
}

// Count returns the number of live entities.
func (w *World) Count() int {
	return int(w.count.Load())
}

// Entities returns the live entities ordered by id.
func (w *World) Entities() []*Entity {
	out := make([]*Entity, 0, w.Count())
	w.entities.Range(func(_, v any) bool {
		out = append(out, v.(*Entity))
		return true
	})
	slices.SortFunc(out, func(a, b *Entity) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Signal fans an event signal out to every manager.
func (w *World) Signal(signal status.SignalID) {
	w.entities.Range(func(_, v any) bool {
		v.(*Entity).Manager.Signal(signal)
		return true
	})
}

// Close despawns every entity.
func (w *World) Close() {
	for _, e := range w.Entities() {
		w.Despawn(e.ID)
	}
}
