package ast

import (
	"bytes"
	"testing"

	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
	"github.com/sambeau/vivarium/pkg/vivarium/lexer"
	"github.com/sambeau/vivarium/pkg/vivarium/object"
)

func num(v int64) Node { return &Constant{Value: &object.Integer{Value: v}} }
func str(v string) Node { return &Constant{Value: &object.String{Value: v}} }
func read(name string) Node { return &VariableRead{Name: name} }
func assign(name string, v Node) Node {
	return &Assign{Target: &VariableTarget{Name: name}, Value: v}
}

func binop(t *testing.T, l Node, op string, r Node) Node {
	t.Helper()
	n, err := NewBinaryOp(lexer.Token{}, l, r, op)
	if err != nil {
		t.Fatalf("NewBinaryOp(%q): %v", op, err)
	}
	return n
}

func compare(t *testing.T, l Node, op string, r Node) Node {
	t.Helper()
	n, err := NewComparison(lexer.Token{}, l, op, r)
	if err != nil {
		t.Fatalf("NewComparison(%q): %v", op, err)
	}
	return n
}

func valueOf(t *testing.T, scope *object.Scope, name string) object.Value {
	t.Helper()
	store, err := scope.Lookup(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	return store.Get()
}

func TestSequenceResultIsLast(t *testing.T) {
	scope := object.NewScope(nil)

	v, err := Run(NewSequence(num(1), num(2)), scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Inspect() != "2" {
		t.Errorf("expected 2, got %s", v.Inspect())
	}

	v, err = Run(NewSequence(), scope)
	if err != nil || v != nil {
		t.Errorf("expected nothing from an empty block, got %v, %v", v, err)
	}
}

func TestAssignDuplicatesValue(t *testing.T) {
	scope := object.NewScope(nil)
	list := &object.List{Elements: []object.Value{&object.Integer{Value: 1}}}
	program := NewSequence(
		&Assign{Target: &VariableTarget{Name: "xs"}, Value: &Constant{Value: list}},
		assign("ys", read("xs")),
	)
	if _, err := Run(program, scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list.Elements[0] = &object.Integer{Value: 9}
	if got := valueOf(t, scope, "xs").Inspect(); got != "[1]" {
		t.Errorf("expected [1], got %s", got)
	}
	if got := valueOf(t, scope, "ys").Inspect(); got != "[1]" {
		t.Errorf("expected [1], got %s", got)
	}
}

func TestWhileLoop(t *testing.T) {
	scope := object.NewScope(nil)
	program := NewSequence(
		assign("x", num(2)),
		assign("n", num(0)),
		&While{
			Condition: compare(t, read("x"), "<", num(10)),
			Body: NewSequence(
				assign("x", binop(t, read("x"), "*", num(2))),
				assign("n", binop(t, read("n"), "+", num(1))),
			),
		},
	)

	if _, err := Run(program, scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := valueOf(t, scope, "x").Inspect(); got != "16" {
		t.Errorf("expected 16, got %s", got)
	}
	if got := valueOf(t, scope, "n").Inspect(); got != "3" {
		t.Errorf("expected 3, got %s", got)
	}
}

func TestIfElse(t *testing.T) {
	tests := []struct {
		cond     Node
		expected string
	}{
		{&Constant{Value: object.TRUE}, "yes"},
		{&Constant{Value: object.FALSE}, "no"},
		{num(0), "no"},
		{str("x"), "yes"},
	}

	for _, tt := range tests {
		scope := object.NewScope(nil)
		program := &If{
			Condition:   tt.cond,
			Consequence: assign("r", str("yes")),
			Alternative: assign("r", str("no")),
		}
		if _, err := Run(program, scope); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := valueOf(t, scope, "r").Inspect(); got != tt.expected {
			t.Errorf("if %s: expected %s, got %s", tt.cond, tt.expected, got)
		}
	}

	scope := object.NewScope(nil)
	if _, err := Run(&If{Condition: num(0), Consequence: assign("r", num(1))}, scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scope.Has("r") {
		t.Errorf("expected no binding when the condition is false and there is no else")
	}
}

func TestReturnUnwindsToCallBoundary(t *testing.T) {
	// def find():
	//     i = 0
	//     while True:
	//         if i == 3:
	//             return i
	//         i = i + 1
	// after = find()
	body := NewSequence(
		assign("i", num(0)),
		&While{
			Condition: &Constant{Value: object.TRUE},
			Body: NewSequence(
				&If{
					Condition:   compare(t, read("i"), "==", num(3)),
					Consequence: NewSequence(&Return{Value: read("i")}),
				},
				assign("i", binop(t, read("i"), "+", num(1))),
			),
		},
		assign("unreachable", num(1)),
	)

	scope := object.NewScope(nil)
	program := NewSequence(
		&FunctionDef{Name: "find", Body: body},
		assign("after", &Call{Function: read("find")}),
		assign("done", &Constant{Value: object.TRUE}),
	)

	if _, err := Run(program, scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := valueOf(t, scope, "after").Inspect(); got != "3" {
		t.Errorf("expected 3, got %s", got)
	}
	if got := valueOf(t, scope, "done").Inspect(); got != "True" {
		t.Errorf("return escaped the call: done = %s", got)
	}
	if scope.Has("unreachable") {
		t.Errorf("statements after return must not run")
	}
}

func TestBareReturnYieldsNone(t *testing.T) {
	scope := object.NewScope(nil)
	program := NewSequence(
		&FunctionDef{Name: "f", Body: NewSequence(&Return{})},
		&FunctionDef{Name: "g", Body: NewSequence(&NoOp{})},
		assign("a", &Call{Function: read("f")}),
		assign("b", &Call{Function: read("g")}),
	)
	if _, err := Run(program, scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, name := range []string{"a", "b"} {
		if got := valueOf(t, scope, name); got != object.Value(object.NONE) {
			t.Errorf("%s: expected None, got %s", name, got.Inspect())
		}
	}
}

func TestReturnInExpressionPosition(t *testing.T) {
	ret := func() Node { return &Return{Value: num(1)} }
	var out bytes.Buffer

	tests := []struct {
		name string
		stmt Node
	}{
		{"assigned value", assign("x", ret())},
		{"list element", &ListLiteral{Elements: []Node{num(0), ret()}}},
		{"tuple element", &TupleLiteral{Elements: []Node{ret()}}},
		{"left operand", binop(t, ret(), "+", num(2))},
		{"right operand", compare(t, num(2), "<", ret())},
		{"call argument", &Call{Function: read("g"), Arguments: []Node{ret()}}},
		{"callee", &Call{Function: ret()}},
		{"if condition", &If{Condition: ret(), Consequence: NewSequence(&NoOp{})}},
		{"while condition", &While{Condition: ret(), Body: NewSequence(&NoOp{})}},
		{"print value", &Print{Value: ret(), Out: &out}},
		{"return operand", &Return{Value: ret()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// def f():
			//     <stmt>
			//     after = 1
			//     return 2
			scope := object.NewScope(nil)
			program := NewSequence(
				&FunctionDef{Name: "g", Parameters: []string{"a"}, Body: NewSequence(&Return{Value: num(3)})},
				&FunctionDef{Name: "f", Body: NewSequence(
					tt.stmt,
					assign("after", num(1)),
					&Return{Value: num(2)},
				)},
				assign("result", &Call{Function: read("f")}),
			)
			if _, err := Run(program, scope); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := valueOf(t, scope, "result").Inspect(); got != "1" {
				t.Errorf("expected 1, got %s", got)
			}
			if scope.Has("after") {
				t.Errorf("statements after return must not run")
			}
		})
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestTopLevelReturnInArgumentFaults(t *testing.T) {
	scope := object.NewScope(nil)
	called := false
	_ = scope.Define("id", &object.Builtin{Name: "id", Fn: func(args ...object.Value) (object.Value, error) {
		called = true
		return args[0], nil
	}})

	_, err := Run(NewSequence(&Call{Function: read("id"), Arguments: []Node{&Return{Value: num(5)}}}), scope)
	if !verrors.IsClass(err, verrors.ClassState) {
		t.Errorf("expected state error, got %v", err)
	}
	if called {
		t.Errorf("the call must not run once its argument returned")
	}
}

func TestTopLevelReturnFaults(t *testing.T) {
	scope := object.NewScope(nil)
	program := NewSequence(&If{
		Condition:   &Constant{Value: object.TRUE},
		Consequence: &Return{Value: num(1)},
	})

	_, err := Run(program, scope)
	if !verrors.IsClass(err, verrors.ClassState) {
		t.Errorf("expected state error, got %v", err)
	}
}

func TestNestedFunctionAssignStaysLocal(t *testing.T) {
	// def outer():
	//     def inner():
	//         fresh = 1
	//     inner()
	// outer()
	inner := &FunctionDef{Name: "inner", Body: NewSequence(assign("fresh", num(1)))}
	outer := &FunctionDef{Name: "outer", Body: NewSequence(inner, &Call{Function: read("inner")})}

	scope := object.NewScope(nil)
	if _, err := Run(NewSequence(outer, &Call{Function: read("outer")}), scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scope.Has("fresh") {
		t.Errorf("a new name assigned inside a function must not leak to the caller")
	}
	if scope.Has("inner") {
		t.Errorf("inner must be bound in outer's call scope, not the globals")
	}
}

func TestFunctionAssignUpdatesExistingOuterName(t *testing.T) {
	// count = 0
	// def bump():
	//     count = count + 1
	// bump()
	// bump()
	scope := object.NewScope(nil)
	program := NewSequence(
		assign("count", num(0)),
		&FunctionDef{Name: "bump", Body: NewSequence(assign("count", binop(t, read("count"), "+", num(1))))},
		&Call{Function: read("bump")},
		&Call{Function: read("bump")},
	)
	if _, err := Run(program, scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := valueOf(t, scope, "count").Inspect(); got != "2" {
		t.Errorf("expected 2, got %s", got)
	}
}

func TestClosureObservesLaterMutation(t *testing.T) {
	// def make():
	//     n = 1
	//     def get():
	//         return n
	//     n = 5
	//     return get
	// g = make()
	// r = g()
	scope := object.NewScope(nil)
	program := NewSequence(
		&FunctionDef{Name: "make", Body: NewSequence(
			assign("n", num(1)),
			&FunctionDef{Name: "get", Body: NewSequence(&Return{Value: read("n")})},
			assign("n", num(5)),
			&Return{Value: read("get")},
		)},
		assign("g", &Call{Function: read("make")}),
		assign("r", &Call{Function: read("g")}),
	)
	if _, err := Run(program, scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := valueOf(t, scope, "r").Inspect(); got != "5" {
		t.Errorf("expected 5, got %s", got)
	}
}

func TestRecursion(t *testing.T) {
	// def fact(n):
	//     if n <= 1:
	//         return 1
	//     return n * fact(n - 1)
	scope := object.NewScope(nil)
	program := NewSequence(
		&FunctionDef{Name: "fact", Parameters: []string{"n"}, Body: NewSequence(
			&If{
				Condition:   compare(t, read("n"), "<=", num(1)),
				Consequence: NewSequence(&Return{Value: num(1)}),
			},
			&Return{Value: binop(t, read("n"), "*", &Call{
				Function:  read("fact"),
				Arguments: []Node{binop(t, read("n"), "-", num(1))},
			})},
		)},
		&Call{Function: read("fact"), Arguments: []Node{num(10)}},
	)

	v, err := Run(program, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Inspect() != "3628800" {
		t.Errorf("expected 3628800, got %s", v.Inspect())
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name    string
		program Node
		class   verrors.ErrorClass
	}{
		{"unbound read", read("missing"), verrors.ClassUndefined},
		{"arity", NewSequence(
			&FunctionDef{Name: "f", Parameters: []string{"a"}, Body: NewSequence(&NoOp{})},
			&Call{Function: read("f")},
		), verrors.ClassArity},
		{"call non-callable", &Call{Function: num(1)}, verrors.ClassType},
		{"string plus int", &BinaryOp{Left: str("a"), Operator: object.OpAdd, Right: num(1)}, verrors.ClassType},
		{"compare number and string", &Comparison{Left: num(1), Operator: object.OpLt, Right: str("a")}, verrors.ClassType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.program, object.NewScope(nil))
			if !verrors.IsClass(err, tt.class) {
				t.Errorf("expected %s error, got %v", tt.class, err)
			}
		})
	}
}

func TestUnknownOperatorFailsAtConstruction(t *testing.T) {
	if _, err := NewBinaryOp(lexer.Token{}, num(1), num(2), "&&"); !verrors.IsClass(err, verrors.ClassOperator) {
		t.Errorf("expected operator error, got %v", err)
	}
	if _, err := NewComparison(lexer.Token{}, num(1), "=>", num(2)); !verrors.IsClass(err, verrors.ClassOperator) {
		t.Errorf("expected operator error, got %v", err)
	}
}

func TestLockedStoreAssignment(t *testing.T) {
	globals := object.NewScope(nil)
	if _, err := Run(assign("x", num(1)), globals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	globals.Lockdown()

	_, err := Run(assign("x", num(2)), globals)
	if !verrors.IsClass(err, verrors.ClassReadOnly) {
		t.Fatalf("expected readonly error, got %v", err)
	}
	if got := valueOf(t, globals, "x").Inspect(); got != "1" {
		t.Errorf("expected x to stay 1, got %s", got)
	}
}

func TestErrorPosition(t *testing.T) {
	tok := lexer.Token{Type: lexer.IDENT, Literal: "ghost", Line: 3, Column: 7}
	_, err := Run(&VariableRead{Token: tok, Name: "ghost"}, object.NewScope(nil))
	verr, ok := err.(*verrors.VivariumError)
	if !ok {
		t.Fatalf("expected *VivariumError, got %T", err)
	}
	if verr.Line != 3 || verr.Column != 7 {
		t.Errorf("expected 3:7, got %d:%d", verr.Line, verr.Column)
	}
}

func TestPrintNode(t *testing.T) {
	var out bytes.Buffer
	scope := object.NewScope(nil)
	// Rebinding the name print does not affect the statement.
	_ = scope.Define("print", object.NONE)

	program := NewSequence(
		&Print{Value: binop(t, num(7), "/", num(2)), Out: &out},
		&Print{Value: &TupleLiteral{Elements: []Node{str("a")}}, Out: &out},
	)
	if _, err := Run(program, scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "3.5\n('a',)\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestString(t *testing.T) {
	program := NewSequence(
		assign("x", binop(t, num(1), "+", num(2))),
		&While{Condition: compare(t, read("x"), "<", num(5)), Body: &NoOp{}},
	)
	expected := "x = (1 + 2); while (x < 5): {pass}"
	if program.String() != expected {
		t.Errorf("expected %q, got %q", expected, program.String())
	}
}
