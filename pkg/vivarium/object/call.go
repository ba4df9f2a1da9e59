package object

import (
	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
)

// Outcome says how a node finished evaluating.
type Outcome int

const (
	// Completed means evaluation ran to the end of the node.
	Completed Outcome = iota
	// Returning means a return statement fired and the enclosing function
	// call must stop and yield Value.
	Returning
)

// Result is what every node evaluation produces. Value is nil when the node
// produced nothing. Store is set instead of Value when the node names a cell
// (the left side of an assignment).
type Result struct {
	Outcome Outcome
	Value   Value
	Store   *Store
}

// Complete wraps v as a normally completed result.
func Complete(v Value) Result {
	return Result{Outcome: Completed, Value: v}
}

// Return wraps v as a return-control-transfer.
func Return(v Value) Result {
	return Result{Outcome: Returning, Value: v}
}

// Reference wraps a store as a completed result.
func Reference(s *Store) Result {
	return Result{Outcome: Completed, Store: s}
}

// Nothing is the result of a node that produces no value.
var Nothing = Result{}

// IsReturn reports whether the result is unwinding to a call boundary.
func (r Result) IsReturn() bool {
	return r.Outcome == Returning
}

// Unwrap returns the plain value, reading through a store if necessary.
// Nothing stays nil.
func (r Result) Unwrap() Value {
	if r.Store != nil {
		return r.Store.Get()
	}
	return r.Value
}

// ValueOrNone is Unwrap with nothing mapped to None.
func (r Result) ValueOrNone() Value {
	if v := r.Unwrap(); v != nil {
		return v
	}
	return NONE
}

// Evaluable is anything that can run against a scope. Function bodies are Evaluable.
type Evaluable interface {
	Evaluate(scope *Scope) (Result, error)
}

// Callable values can be invoked with an ordered argument list. A nil value
// with a nil error means the call produced nothing.
type Callable interface {
	Value
	Call(args []Value) (Value, error)
}

// MaxCallDepth bounds nested user function calls sharing one global scope.
const MaxCallDepth = 1000

// Call runs the function body in a fresh scope. Parameters are bound before
// the closure is attached as parent, so a parameter always shadows a closure
// variable of the same name.
func (f *Function) Call(args []Value) (Value, error) {
	if len(args) != len(f.Params) {
		return nil, verrors.New("ARITY-0001", map[string]any{
			"Function": f.Name,
			"Want":     len(f.Params),
			"Got":      len(args),
		})
	}

	if f.Closure != nil {
		root := f.Closure.root()
		if root.depth >= MaxCallDepth {
			return nil, verrors.New("STATE-0002", map[string]any{"Function": f.Name, "Limit": MaxCallDepth})
		}
		root.depth++
		defer func() { root.depth-- }()
	}

	scope := NewScope(nil)
	for i, name := range f.Params {
		if err := scope.Bind(name).Set(args[i]); err != nil {
			return nil, err
		}
	}
	scope.parent = f.Closure

	result, err := f.Body.Evaluate(scope)
	if err != nil {
		return nil, err
	}
	if result.IsReturn() {
		return result.Value, nil
	}
	return nil, nil
}

// Call forwards the arguments verbatim to the host function.
func (b *Builtin) Call(args []Value) (Value, error) {
	return b.Fn(args...)
}

// CallValue invokes callee if it is callable.
func CallValue(callee Value, args []Value) (Value, error) {
	fn, ok := callee.(Callable)
	if !ok {
		return nil, verrors.New("TYPE-0004", map[string]any{"Type": typeOf(callee)})
	}
	return fn.Call(args)
}
