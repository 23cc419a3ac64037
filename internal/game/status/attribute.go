package status

import (
	"fmt"
	"sync"
)

// AttributeID identifies a status variable. Names are resolved to ids once,
// at content load; the simulation only ever compares ids.
type AttributeID int32

// NoAttribute is the zero, invalid attribute.
const NoAttribute AttributeID = 0

// AttributeKind is the value type of a status variable.
type AttributeKind int8

const (
	KindFloat AttributeKind = iota
	KindInt
	KindBool
)

func (k AttributeKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	}
	return fmt.Sprintf("AttributeKind(%d)", int8(k))
}

// ParseAttributeKind maps a content name to a kind. Empty means float.
func ParseAttributeKind(s string) (AttributeKind, error) {
	switch s {
	case "", "float":
		return KindFloat, nil
	case "int":
		return KindInt, nil
	case "bool":
		return KindBool, nil
	}
	return 0, fmt.Errorf("unknown attribute kind %q", s)
}

// Attribute describes one registered status variable.
type Attribute struct {
	ID   AttributeID
	Name string
	Kind AttributeKind
}

// AttributeRegistry interns attribute names. Writes happen during content
// load; lookups are safe for concurrent use.
type AttributeRegistry struct {
	mu     sync.RWMutex
	byName map[string]AttributeID
	attrs  []Attribute // index = id-1
}

// NewAttributeRegistry creates an empty registry.
func NewAttributeRegistry() *AttributeRegistry {
	return &AttributeRegistry{byName: make(map[string]AttributeID)}
}

// Register returns the id for name, creating it if needed. Registering an
// existing name with a different kind is an error.
func (r *AttributeRegistry) Register(name string, kind AttributeKind) (AttributeID, error) {
	if name == "" {
		return NoAttribute, fmt.Errorf("registering attribute: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		if existing := r.attrs[id-1]; existing.Kind != kind {
			return NoAttribute, fmt.Errorf("attribute %q already registered as %s", name, existing.Kind)
		}
		return id, nil
	}

	id := AttributeID(len(r.attrs) + 1)
	r.attrs = append(r.attrs, Attribute{ID: id, Name: name, Kind: kind})
	r.byName[name] = id
	return id, nil
}

// MustRegister is Register for static setup code and tests.
func (r *AttributeRegistry) MustRegister(name string, kind AttributeKind) AttributeID {
	id, err := r.Register(name, kind)
	if err != nil {
		panic(err)
	}
	return id
}

// Lookup resolves a name. Returns false if unknown.
func (r *AttributeRegistry) Lookup(name string) (AttributeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Get returns the attribute for id.
func (r *AttributeRegistry) Get(id AttributeID) (Attribute, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id <= 0 || int(id) > len(r.attrs) {
		return Attribute{}, false
	}
	return r.attrs[id-1], true
}

// All returns the registered attributes in id order.
func (r *AttributeRegistry) All() []Attribute {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Attribute(nil), r.attrs...)
}

// Len returns the number of registered attributes.
func (r *AttributeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attrs)
}
