package object

import (
	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
)

// Store is a single mutable cell holding one value. Once locked it rejects
// every write.
type Store struct {
	value    Value
	readOnly bool
}

// NewStore creates a store holding v, or None when v is nil.
func NewStore(v Value) *Store {
	if v == nil {
		v = NONE
	}
	return &Store{value: v}
}

// Get returns the held value.
func (s *Store) Get() Value {
	return s.value
}

// Set replaces the held value with a duplicate of v. A nil v stores None.
func (s *Store) Set(v Value) error {
	if s.readOnly {
		return verrors.New("READONLY-0001", map[string]any{"Value": Repr(s.value)})
	}
	if v == nil {
		v = NONE
	}
	s.value = v.Duplicate()
	return nil
}

// SetFrom copies the value held by other into s.
func (s *Store) SetFrom(other *Store) error {
	return s.Set(other.Get())
}

// Lock makes the store read-only. There is no way back.
func (s *Store) Lock() {
	s.readOnly = true
}

// ReadOnly reports whether the store has been locked.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

func (s *Store) String() string {
	if s.readOnly {
		return "READONLY(" + Repr(s.value) + ")"
	}
	return "STORE(" + Repr(s.value) + ")"
}
