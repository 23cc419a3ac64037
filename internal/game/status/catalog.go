package status

import (
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateDefinition is returned when a catalog already holds an id.
var ErrDuplicateDefinition = errors.New("status: duplicate definition")

// Catalog is the read-mostly set of loaded definitions, shared by all managers.
type Catalog struct {
	mu    sync.RWMutex
	defs  map[DefinitionID]*Definition
	order []DefinitionID
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[DefinitionID]*Definition)}
}

// Add publishes def. The definition must not be modified afterwards.
func (c *Catalog) Add(def *Definition) error {
	if def == nil {
		return ErrNilDefinition
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.defs[def.ID]; ok {
		return fmt.Errorf("adding %s: %w", def.ID, ErrDuplicateDefinition)
	}
	c.defs[def.ID] = def
	c.order = append(c.order, def.ID)
	return nil
}

// Get returns the definition with id.
func (c *Catalog) Get(id DefinitionID) (*Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[id]
	return def, ok
}

// All returns the definitions in the order they were added.
func (c *Catalog) All() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.defs[id])
	}
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}
