package object

import (
	"sort"

	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
)

// Scope maps names to stores and delegates misses to an optional parent.
// A scope owns its stores; the parent is shared and may outlive the child.
type Scope struct {
	stores map[string]*Store
	parent *Scope
	depth  int // active user function calls; only used on a root scope
}

// NewScope creates an empty scope enclosed by parent (which may be nil).
func NewScope(parent *Scope) *Scope {
	return &Scope{stores: make(map[string]*Store), parent: parent}
}

// Parent returns the enclosing scope, or nil for a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// root returns the outermost scope of the chain.
func (s *Scope) root() *Scope {
	for s.parent != nil {
		s = s.parent
	}
	return s
}

// resolve searches the chain for an existing binding without creating one.
func (s *Scope) resolve(name string) *Store {
	for scope := s; scope != nil; scope = scope.parent {
		if store, ok := scope.stores[name]; ok {
			return store
		}
	}
	return nil
}

// Lookup returns the store bound to name in this scope or the nearest ancestor.
func (s *Scope) Lookup(name string) (*Store, error) {
	if store := s.resolve(name); store != nil {
		return store, nil
	}
	return nil, verrors.NewUnboundVariable(name, s.VisibleNames())
}

// Bind returns the existing store for name anywhere in the chain. When no
// scope binds name, a new store holding None is created in s itself, never in
// an ancestor.
func (s *Scope) Bind(name string) *Store {
	if store := s.resolve(name); store != nil {
		return store
	}
	store := NewStore(NONE)
	s.stores[name] = store
	return store
}

// Define binds name (per Bind) and stores v in it.
func (s *Scope) Define(name string, v Value) error {
	return s.Bind(name).Set(v)
}

// Lockdown makes every store owned directly by s read-only. Ancestors are untouched.
func (s *Scope) Lockdown() {
	for _, store := range s.stores {
		store.Lock()
	}
}

// Unbind removes a local binding. Ancestors are not searched.
func (s *Scope) Unbind(name string) {
	delete(s.stores, name)
}

// Has reports whether name is bound locally.
func (s *Scope) Has(name string) bool {
	_, ok := s.stores[name]
	return ok
}

// Names returns the locally bound names in sorted order.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VisibleNames returns every name reachable from s, sorted and deduplicated.
func (s *Scope) VisibleNames() []string {
	seen := make(map[string]bool)
	var names []string
	for scope := s; scope != nil; scope = scope.parent {
		for name := range scope.stores {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}
