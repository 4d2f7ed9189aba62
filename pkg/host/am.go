package host

import (
	"context"
	"fmt"
	"sync"
)

// TableAccessMethod is the storage glue for tables created USING a method.
type TableAccessMethod interface {
	// Name is the method name written in CREATE TABLE ... USING.
	Name() string
	// TupleInsert stores one row of rel.
	TupleInsert(ctx context.Context, rel *Relation, slot *TupleSlot) error
}

// AccessMethodRegistry maps method names to implementations.
type AccessMethodRegistry struct {
	mu      sync.RWMutex
	methods map[string]TableAccessMethod
}

// NewAccessMethodRegistry creates an empty registry.
func NewAccessMethodRegistry() *AccessMethodRegistry {
	return &AccessMethodRegistry{methods: make(map[string]TableAccessMethod)}
}

// Register adds am. Names are unique.
func (r *AccessMethodRegistry) Register(am TableAccessMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := am.Name()
	if _, exists := r.methods[name]; exists {
		return fmt.Errorf("access method %q already exists", name)
	}
	r.methods[name] = am
	return nil
}

// Lookup returns the method registered under name.
func (r *AccessMethodRegistry) Lookup(name string) (TableAccessMethod, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	am, ok := r.methods[name]
	return am, ok
}
