package object

import (
	"math"
	"strconv"
	"strings"

	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
)

// BinaryOperator is one of the arithmetic operators.
type BinaryOperator string

const (
	OpAdd      BinaryOperator = "+"
	OpSub      BinaryOperator = "-"
	OpMul      BinaryOperator = "*"
	OpDiv      BinaryOperator = "/"
	OpFloorDiv BinaryOperator = "//"
	OpMod      BinaryOperator = "%"
	OpPow      BinaryOperator = "**"
)

// ParseBinaryOperator validates an arithmetic operator symbol.
func ParseBinaryOperator(sym string) (BinaryOperator, error) {
	switch op := BinaryOperator(sym); op {
	case OpAdd, OpSub, OpMul, OpDiv, OpFloorDiv, OpMod, OpPow:
		return op, nil
	}
	return "", verrors.New("OPERATOR-0001", map[string]any{"Operator": sym})
}

// CompareOperator is one of the six comparison operators.
type CompareOperator string

const (
	OpEq    CompareOperator = "=="
	OpNotEq CompareOperator = "!="
	OpLt    CompareOperator = "<"
	OpLtE   CompareOperator = "<="
	OpGt    CompareOperator = ">"
	OpGtE   CompareOperator = ">="
)

// ParseCompareOperator validates a comparison operator symbol.
func ParseCompareOperator(sym string) (CompareOperator, error) {
	switch op := CompareOperator(sym); op {
	case OpEq, OpNotEq, OpLt, OpLtE, OpGt, OpGtE:
		return op, nil
	}
	return "", verrors.New("OPERATOR-0002", map[string]any{"Operator": sym})
}

// Truthy converts any value to a Go bool.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case nil, *None:
		return false
	case *Boolean:
		return v.Value
	case *Integer:
		return v.Value != 0
	case *Float:
		return v.Value != 0
	case *String:
		return v.Value != ""
	case *List:
		return len(v.Elements) > 0
	case *Tuple:
		return len(v.Elements) > 0
	case *Function, *Builtin:
		return true
	}
	return true
}

// ToInt converts a value to an integer. Kinds without an integer conversion
// fail with a numeric error.
func ToInt(v Value) (int64, error) {
	switch v := v.(type) {
	case *Boolean:
		if v.Value {
			return 1, nil
		}
		return 0, nil
	case *Integer:
		return v.Value, nil
	case *Float:
		if math.IsNaN(v.Value) || math.IsInf(v.Value, 0) {
			return 0, verrors.New("NUMERIC-0002", map[string]any{"Value": v.Inspect()})
		}
		return int64(v.Value), nil
	case *String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Value), 10, 64)
		if err != nil {
			return 0, verrors.New("NUMERIC-0002", map[string]any{"Value": v.Value})
		}
		return n, nil
	case nil:
		return 0, verrors.New("NUMERIC-0001", map[string]any{"Type": NONE_OBJ})
	}
	return 0, verrors.New("NUMERIC-0001", map[string]any{"Type": v.Type()})
}

func isNumeric(v Value) bool {
	switch v.(type) {
	case *Integer, *Float:
		return true
	}
	return false
}

func isNone(v Value) bool {
	switch v.(type) {
	case nil, *None:
		return true
	}
	return false
}

func floatOf(v Value) float64 {
	switch v := v.(type) {
	case *Integer:
		return float64(v.Value)
	case *Float:
		return v.Value
	}
	return math.NaN()
}

func typeOf(v Value) ObjectType {
	if v == nil {
		return NONE_OBJ
	}
	return v.Type()
}

// Arithmetic applies op to left and right. Integer operands stay Integer except
// under true division (and negative powers); any Float operand makes the result Float.
func Arithmetic(op BinaryOperator, left, right Value) (Value, error) {
	switch l := left.(type) {
	case *String:
		r, ok := right.(*String)
		if op != OpAdd {
			return nil, operandError(op, left, right)
		}
		if !ok {
			return nil, verrors.New("TYPE-0003", map[string]any{"Right": typeOf(right)})
		}
		return &String{Value: l.Value + r.Value}, nil

	case *Integer:
		switch r := right.(type) {
		case *Integer:
			return integerArithmetic(op, l.Value, r.Value)
		case *Float:
			return floatArithmetic(op, float64(l.Value), r.Value)
		}

	case *Float:
		if isNumeric(right) {
			return floatArithmetic(op, l.Value, floatOf(right))
		}
	}
	return nil, operandError(op, left, right)
}

func operandError(op BinaryOperator, left, right Value) error {
	return verrors.New("TYPE-0001", map[string]any{
		"Operator": string(op),
		"Left":     typeOf(left),
		"Right":    typeOf(right),
	})
}

func zeroDivision(operation string) error {
	return verrors.New("ARITH-0001", map[string]any{"Operation": operation})
}

func integerArithmetic(op BinaryOperator, a, b int64) (Value, error) {
	switch op {
	case OpAdd:
		return &Integer{Value: a + b}, nil
	case OpSub:
		return &Integer{Value: a - b}, nil
	case OpMul:
		return &Integer{Value: a * b}, nil
	case OpDiv:
		if b == 0 {
			return nil, zeroDivision("division")
		}
		return &Float{Value: float64(a) / float64(b)}, nil
	case OpFloorDiv:
		if b == 0 {
			return nil, zeroDivision("integer division")
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return &Integer{Value: q}, nil
	case OpMod:
		if b == 0 {
			return nil, zeroDivision("modulo")
		}
		m := a % b
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return &Integer{Value: m}, nil
	case OpPow:
		if b < 0 {
			if a == 0 {
				return nil, verrors.New("ARITH-0002", nil)
			}
			return &Float{Value: math.Pow(float64(a), float64(b))}, nil
		}
		result := int64(1)
		base := a
		for exp := b; exp > 0; exp >>= 1 {
			if exp&1 == 1 {
				result *= base
			}
			base *= base
		}
		return &Integer{Value: result}, nil
	}
	return nil, verrors.New("OPERATOR-0001", map[string]any{"Operator": string(op)})
}

func floatArithmetic(op BinaryOperator, a, b float64) (Value, error) {
	switch op {
	case OpAdd:
		return &Float{Value: a + b}, nil
	case OpSub:
		return &Float{Value: a - b}, nil
	case OpMul:
		return &Float{Value: a * b}, nil
	case OpDiv:
		if b == 0 {
			return nil, zeroDivision("float division")
		}
		return &Float{Value: a / b}, nil
	case OpFloorDiv:
		if b == 0 {
			return nil, zeroDivision("float floor division")
		}
		return &Float{Value: math.Floor(a / b)}, nil
	case OpMod:
		if b == 0 {
			return nil, zeroDivision("float modulo")
		}
		m := math.Mod(a, b)
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return &Float{Value: m}, nil
	case OpPow:
		if a == 0 && b < 0 {
			return nil, verrors.New("ARITH-0002", nil)
		}
		return &Float{Value: math.Pow(a, b)}, nil
	}
	return nil, verrors.New("OPERATOR-0001", map[string]any{"Operator": string(op)})
}

// Compare applies a comparison operator and returns True or False.
func Compare(op CompareOperator, left, right Value) (Value, error) {
	// Numbers compare with numbers; None is only ever unequal to a number.
	if isNumeric(left) || isNumeric(right) {
		switch {
		case isNumeric(left) && isNumeric(right):
			return NativeBool(compareNumbers(op, left, right)), nil
		case isNone(left) || isNone(right):
			switch op {
			case OpEq:
				return FALSE, nil
			case OpNotEq:
				return TRUE, nil
			}
		}
		return nil, comparisonError(op, left, right)
	}

	if l, ok := left.(*String); ok {
		if r, ok := right.(*String); ok {
			return NativeBool(compareOrdered(op, strings.Compare(l.Value, r.Value))), nil
		}
	}

	switch op {
	case OpEq:
		return NativeBool(Equal(left, right)), nil
	case OpNotEq:
		return NativeBool(!Equal(left, right)), nil
	}
	return nil, comparisonError(op, left, right)
}

func comparisonError(op CompareOperator, left, right Value) error {
	return verrors.New("TYPE-0002", map[string]any{
		"Operator": string(op),
		"Left":     typeOf(left),
		"Right":    typeOf(right),
	})
}

func compareNumbers(op CompareOperator, left, right Value) bool {
	l, lok := left.(*Integer)
	r, rok := right.(*Integer)
	if lok && rok {
		cmp := 0
		if l.Value < r.Value {
			cmp = -1
		} else if l.Value > r.Value {
			cmp = 1
		}
		return compareOrdered(op, cmp)
	}

	a, b := floatOf(left), floatOf(right)
	switch op {
	case OpEq:
		return a == b
	case OpNotEq:
		return a != b
	case OpLt:
		return a < b
	case OpLtE:
		return a <= b
	case OpGt:
		return a > b
	case OpGtE:
		return a >= b
	}
	return false
}

func compareOrdered(op CompareOperator, cmp int) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpNotEq:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLtE:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGtE:
		return cmp >= 0
	}
	return false
}

// Equal reports value equality. Functions compare by identity, aggregates
// element-wise, and values of unrelated kinds are never equal.
func Equal(left, right Value) bool {
	switch l := left.(type) {
	case nil, *None:
		return isNone(right)
	case *Boolean:
		r, ok := right.(*Boolean)
		return ok && l.Value == r.Value
	case *Integer, *Float:
		return isNumeric(right) && compareNumbers(OpEq, left, right)
	case *String:
		r, ok := right.(*String)
		return ok && l.Value == r.Value
	case *List:
		r, ok := right.(*List)
		return ok && equalElements(l.Elements, r.Elements)
	case *Tuple:
		r, ok := right.(*Tuple)
		return ok && equalElements(l.Elements, r.Elements)
	case *Function:
		r, ok := right.(*Function)
		return ok && l == r
	case *Builtin:
		r, ok := right.(*Builtin)
		return ok && l == r
	}
	return false
}

func equalElements(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
