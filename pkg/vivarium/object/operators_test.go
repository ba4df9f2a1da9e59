package object

import (
	"testing"

	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
)

func i(v int64) *Integer { return &Integer{Value: v} }
func f(v float64) *Float { return &Float{Value: v} }
func s(v string) *String { return &String{Value: v} }

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       BinaryOperator
		left     Value
		right    Value
		expected string
		kind     ObjectType
	}{
		{"int add", OpAdd, i(2), i(3), "5", INTEGER_OBJ},
		{"true division", OpDiv, i(2), i(4), "0.5", FLOAT_OBJ},
		{"exact division still float", OpDiv, i(4), i(2), "2.0", FLOAT_OBJ},
		{"floor division", OpFloorDiv, i(7), i(2), "3", INTEGER_OBJ},
		{"float floor division", OpFloorDiv, f(7), i(2), "3.0", FLOAT_OBJ},
		{"negative floor division", OpFloorDiv, i(-7), i(2), "-4", INTEGER_OBJ},
		{"modulo takes divisor sign", OpMod, i(-7), i(3), "2", INTEGER_OBJ},
		{"modulo negative divisor", OpMod, i(7), i(-3), "-2", INTEGER_OBJ},
		{"power", OpPow, i(2), i(10), "1024", INTEGER_OBJ},
		{"negative power", OpPow, i(2), i(-1), "0.5", FLOAT_OBJ},
		{"mixed multiply", OpMul, i(3), f(1.5), "4.5", FLOAT_OBJ},
		{"subtract", OpSub, i(3), i(5), "-2", INTEGER_OBJ},
		{"concatenate", OpAdd, s("hi "), s("Sam"), "hi Sam", STRING_OBJ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Arithmetic(tt.op, tt.left, tt.right)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Type() != tt.kind {
				t.Errorf("expected %s, got %s", tt.kind, got.Type())
			}
			if got.Inspect() != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got.Inspect())
			}
		})
	}
}

func TestArithmeticErrors(t *testing.T) {
	tests := []struct {
		name  string
		op    BinaryOperator
		left  Value
		right Value
		class verrors.ErrorClass
	}{
		{"string plus int", OpAdd, s("a"), i(1), verrors.ClassType},
		{"int plus string", OpAdd, i(1), s("a"), verrors.ClassType},
		{"string times int", OpMul, s("a"), i(2), verrors.ClassType},
		{"none plus int", OpAdd, NONE, i(1), verrors.ClassType},
		{"divide by zero", OpDiv, i(1), i(0), verrors.ClassArithmetic},
		{"floor divide by zero", OpFloorDiv, f(1), i(0), verrors.ClassArithmetic},
		{"modulo by zero", OpMod, i(1), i(0), verrors.ClassArithmetic},
		{"zero to negative power", OpPow, i(0), i(-1), verrors.ClassArithmetic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Arithmetic(tt.op, tt.left, tt.right)
			if !verrors.IsClass(err, tt.class) {
				t.Errorf("expected %s error, got %v", tt.class, err)
			}
		})
	}
}

func TestParseOperators(t *testing.T) {
	for _, sym := range []string{"+", "-", "*", "/", "//", "%", "**"} {
		if _, err := ParseBinaryOperator(sym); err != nil {
			t.Errorf("ParseBinaryOperator(%q): unexpected error %v", sym, err)
		}
	}
	if _, err := ParseBinaryOperator("^"); !verrors.IsClass(err, verrors.ClassOperator) {
		t.Errorf("expected operator error, got %v", err)
	}
	if _, err := ParseCompareOperator("<>"); !verrors.IsClass(err, verrors.ClassOperator) {
		t.Errorf("expected operator error, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	fn := &Function{Name: "f"}
	tests := []struct {
		name     string
		op       CompareOperator
		left     Value
		right    Value
		expected bool
	}{
		{"int less", OpLt, i(2), i(10), true},
		{"mixed equal", OpEq, i(2), f(2.0), true},
		{"float greater equal", OpGtE, f(2.5), i(3), false},
		{"number equals none", OpEq, i(0), NONE, false},
		{"number not equal none", OpNotEq, NONE, f(1), true},
		{"string order", OpLt, s("apple"), s("banana"), true},
		{"string equal", OpEq, s("a"), s("a"), true},
		{"bool equal", OpEq, TRUE, TRUE, true},
		{"cross kind unequal", OpEq, s("1"), TRUE, false},
		{"none equals none", OpEq, NONE, NONE, true},
		{"function identity", OpEq, fn, fn, true},
		{"distinct functions", OpEq, fn, &Function{Name: "f"}, false},
		{"list equality", OpEq, &List{Elements: []Value{i(1)}}, &List{Elements: []Value{f(1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.op, tt.left, tt.right)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if Truthy(got) != tt.expected {
				t.Errorf("expected %v, got %s", tt.expected, got.Inspect())
			}
		})
	}
}

func TestCompareTypeMismatch(t *testing.T) {
	tests := []struct {
		name  string
		op    CompareOperator
		left  Value
		right Value
	}{
		{"number and string", OpEq, i(1), s("1")},
		{"number less than none", OpLt, i(1), NONE},
		{"ordering booleans", OpLt, TRUE, FALSE},
		{"string and list", OpGt, s("a"), &List{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compare(tt.op, tt.left, tt.right)
			if !verrors.IsClass(err, verrors.ClassType) {
				t.Errorf("expected type error, got %v", err)
			}
		})
	}
}
