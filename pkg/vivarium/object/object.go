// Package object implements the Vivarium runtime model: the closed set of value
// kinds, the Store cells that hold them, the Scope chains that bind names to
// stores, and the protocol used to call user-defined and built-in functions.
package object

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ObjectType names the kind of a value. The strings double as the type names
// shown in error messages.
type ObjectType string

const (
	NONE_OBJ     = "NoneType"
	BOOLEAN_OBJ  = "bool"
	INTEGER_OBJ  = "int"
	FLOAT_OBJ    = "float"
	STRING_OBJ   = "str"
	LIST_OBJ     = "list"
	TUPLE_OBJ    = "tuple"
	FUNCTION_OBJ = "function"
	BUILTIN_OBJ  = "builtin_function_or_method"
)

// Value is the closed set of runtime values. The unexported marker keeps the
// set closed to this package so operations can switch exhaustively over kinds.
type Value interface {
	Type() ObjectType
	// Inspect returns the display string (what str() and print produce).
	Inspect() string
	// Duplicate returns a value equal to the receiver that shares no mutable
	// state with it.
	Duplicate() Value
	value()
}

// None is the singleton "no value" value.
type None struct{}

func (n *None) Type() ObjectType { return NONE_OBJ }
func (n *None) Inspect() string  { return "None" }
func (n *None) Duplicate() Value { return n }
func (n *None) value()           {}

// Boolean represents True and False.
type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string {
	if b.Value {
		return "True"
	}
	return "False"
}
func (b *Boolean) Duplicate() Value { return NativeBool(b.Value) }
func (b *Boolean) value()           {}

var (
	NONE  = &None{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

// NativeBool maps a Go bool onto the shared True/False values.
func NativeBool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

// Integer represents 64-bit signed integers.
type Integer struct {
	Value int64
}

func (i *Integer) Type() ObjectType { return INTEGER_OBJ }
func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }
func (i *Integer) Duplicate() Value { return &Integer{Value: i.Value} }
func (i *Integer) value()           {}

// Float represents 64-bit floating point numbers.
type Float struct {
	Value float64
}

func (f *Float) Type() ObjectType { return FLOAT_OBJ }
func (f *Float) Inspect() string  { return formatFloat(f.Value) }
func (f *Float) Duplicate() Value { return &Float{Value: f.Value} }
func (f *Float) value()           {}

// formatFloat renders floats the way Python's str() does: shortest round-trip
// digits, a trailing ".0" for integral values and exponent form outside
// [1e-4, 1e16).
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// String represents text.
type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return s.Value }
func (s *String) Duplicate() Value { return &String{Value: s.Value} }
func (s *String) value()           {}

// Len returns the number of characters (code points) in the string.
func (s *String) Len() int { return len([]rune(s.Value)) }

// List is an ordered aggregate produced by a list display.
type List struct {
	Elements []Value
}

func (l *List) Type() ObjectType { return LIST_OBJ }
func (l *List) Inspect() string  { return "[" + joinRepr(l.Elements) + "]" }
func (l *List) Duplicate() Value {
	elements := make([]Value, len(l.Elements))
	copy(elements, l.Elements)
	return &List{Elements: elements}
}
func (l *List) value() {}

// Tuple is a fixed-arity aggregate produced by a tuple display.
type Tuple struct {
	Elements []Value
}

func (t *Tuple) Type() ObjectType { return TUPLE_OBJ }
func (t *Tuple) Inspect() string {
	if len(t.Elements) == 1 {
		return "(" + Repr(t.Elements[0]) + ",)"
	}
	return "(" + joinRepr(t.Elements) + ")"
}
func (t *Tuple) Duplicate() Value { return t }
func (t *Tuple) value()           {}

func joinRepr(values []Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = Repr(v)
	}
	return strings.Join(parts, ", ")
}

// Repr returns the representation used for elements inside aggregates:
// strings are quoted, everything else displays as usual.
func Repr(v Value) string {
	if v == nil {
		return NONE.Inspect()
	}
	s, ok := v.(*String)
	if !ok {
		return v.Inspect()
	}

	quote := byte('\'')
	if strings.ContainsRune(s.Value, '\'') && !strings.ContainsRune(s.Value, '"') {
		quote = '"'
	}

	var sb strings.Builder
	sb.WriteByte(quote)
	for _, r := range s.Value {
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == rune(quote):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

// Function is a user-defined callable. Closure is shared by reference with the
// scope that was active when the function was defined.
type Function struct {
	Name    string
	Params  []string
	Body    Evaluable
	Closure *Scope
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }
func (f *Function) Inspect() string  { return fmt.Sprintf("<function %s>", f.Name) }
func (f *Function) Duplicate() Value { return f }
func (f *Function) value()           {}

// BuiltinFunction is a host-supplied variadic callable.
type BuiltinFunction func(args ...Value) (Value, error)

// Builtin wraps a BuiltinFunction as a runtime value.
type Builtin struct {
	Name string
	Fn   BuiltinFunction
}

func (b *Builtin) Type() ObjectType { return BUILTIN_OBJ }
func (b *Builtin) Inspect() string  { return fmt.Sprintf("<built-in function %s>", b.Name) }
func (b *Builtin) Duplicate() Value { return b }
func (b *Builtin) value()           {}

// NewBuiltin wraps fn under the given display name.
func NewBuiltin(name string, fn BuiltinFunction) *Builtin {
	return &Builtin{Name: name, Fn: fn}
}
