package world

import "sync/atomic"

// EntityIDBase is the first id handed out. Zero stays invalid.
const EntityIDBase uint32 = 0x10000000

// EntityIDGenerator hands out unique entity ids.
// Thread-safe via atomic increment.
type EntityIDGenerator struct {
	next atomic.Uint32
}

// NewEntityIDGenerator creates a generator whose first id is EntityIDBase+1.
func NewEntityIDGenerator() *EntityIDGenerator {
	g := &EntityIDGenerator{}
	g.next.Store(EntityIDBase)
	return g
}

// Next returns the next unique id.
func (g *EntityIDGenerator) Next() uint32 {
	return g.next.Add(1)
}

// Last returns the most recently issued id (EntityIDBase if none).
func (g *EntityIDGenerator) Last() uint32 {
	return g.next.Load()
}
