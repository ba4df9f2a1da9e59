package builtins

import (
	"bytes"
	"strings"
	"testing"

	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
	"github.com/sambeau/vivarium/pkg/vivarium/object"
)

func call(t *testing.T, scope *object.Scope, name string, args ...object.Value) (object.Value, error) {
	t.Helper()
	store, err := scope.Lookup(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	return object.CallValue(store.Get(), args)
}

func TestGlobalScopeBindsBuiltins(t *testing.T) {
	globals := NewGlobalScope(strings.NewReader(""), &bytes.Buffer{})
	for _, name := range Names {
		store, err := globals.Lookup(name)
		if err != nil {
			t.Fatalf("expected %s to be bound: %v", name, err)
		}
		if store.Get().Type() != object.BUILTIN_OBJ {
			t.Errorf("%s: expected a builtin, got %s", name, store.Get().Type())
		}
	}
	if globals.Parent() != nil {
		t.Errorf("expected a root scope")
	}
}

func TestGlobalScopesAreIndependent(t *testing.T) {
	a := NewGlobalScope(nil, nil)
	b := NewGlobalScope(nil, nil)

	a.Unbind("print")
	a.Lockdown()

	if _, err := b.Lookup("print"); err != nil {
		t.Errorf("unbinding in one global scope affected another: %v", err)
	}
	if err := b.Define("int", object.NONE); err != nil {
		t.Errorf("locking one global scope affected another: %v", err)
	}
}

func TestPrint(t *testing.T) {
	var out bytes.Buffer
	globals := NewGlobalScope(nil, &out)

	if _, err := call(t, globals, "print", &object.Integer{Value: 1}, &object.String{Value: "a"}, object.NONE); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := call(t, globals, "print"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "1 a None\n\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestInput(t *testing.T) {
	var out bytes.Buffer
	globals := NewGlobalScope(strings.NewReader("Sam\r\nlast"), &out)

	v, err := call(t, globals, "input", &object.String{Value: "name? "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Inspect() != "Sam" {
		t.Errorf("expected Sam, got %q", v.Inspect())
	}
	if out.String() != "name? " {
		t.Errorf("expected prompt to be written, got %q", out.String())
	}

	v, err = call(t, globals, "input")
	if err != nil || v.Inspect() != "last" {
		t.Errorf("expected last line without newline, got %v, %v", v, err)
	}

	_, err = call(t, globals, "input")
	if !verrors.IsClass(err, verrors.ClassInput) {
		t.Errorf("expected input error at EOF, got %v", err)
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name     string
		fn       object.BuiltinFunction
		args     []object.Value
		expected string
		class    verrors.ErrorClass
	}{
		{"int of string", Int, []object.Value{&object.String{Value: "42"}}, "42", ""},
		{"int of float", Int, []object.Value{&object.Float{Value: 3.9}}, "3", ""},
		{"int of bool", Int, []object.Value{object.TRUE}, "1", ""},
		{"int of junk", Int, []object.Value{&object.String{Value: "x"}}, "", verrors.ClassNumeric},
		{"int of none", Int, []object.Value{object.NONE}, "", verrors.ClassNumeric},
		{"int arity", Int, nil, "", verrors.ClassArity},
		{"str of float", Str, []object.Value{&object.Float{Value: 2}}, "2.0", ""},
		{"str of list", Str, []object.Value{&object.List{Elements: []object.Value{&object.String{Value: "a"}}}}, "['a']", ""},
		{"str empty", Str, nil, "", ""},
		{"max", Max, []object.Value{&object.Integer{Value: 3}, &object.String{Value: "10"}, object.TRUE}, "10", ""},
		{"min", Min, []object.Value{&object.Integer{Value: 3}, &object.Float{Value: -1.5}}, "-1", ""},
		{"max of nothing", Max, nil, "", verrors.ClassArity},
		{"min of junk", Min, []object.Value{&object.String{Value: "x"}}, "", verrors.ClassNumeric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.fn(tt.args...)
			if tt.class != "" {
				if !verrors.IsClass(err, tt.class) {
					t.Errorf("expected %s error, got %v", tt.class, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.Inspect() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, v.Inspect())
			}
		})
	}
}

func TestIntErrorMessage(t *testing.T) {
	_, err := Int(&object.String{Value: "abc"})
	if err == nil || err.Error() != `cannot convert "abc" to an integer` {
		t.Errorf("unexpected error %v", err)
	}
}

func TestOutputCapture(t *testing.T) {
	var echo bytes.Buffer
	capture := NewOutputCapture(&echo)
	globals := NewGlobalScope(nil, nil)
	if err := capture.Install(globals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _ = call(t, globals, "print", &object.String{Value: "hi"}, &object.Integer{Value: 2})
	_, _ = call(t, globals, "print", &object.Float{Value: 0.5})

	lines := capture.Lines()
	if len(lines) != 2 || lines[0] != "hi 2" || lines[1] != "0.5" {
		t.Errorf("unexpected lines %q", lines)
	}
	if echo.String() != "hi 2\n0.5\n" || capture.String() != echo.String() {
		t.Errorf("unexpected echo %q", echo.String())
	}

	capture.Reset()
	if len(capture.Lines()) != 0 {
		t.Errorf("expected no lines after reset")
	}
}

func TestOutputCaptureInstallRespectsLockdown(t *testing.T) {
	globals := NewGlobalScope(nil, nil)
	globals.Lockdown()
	if err := NewOutputCapture(nil).Install(globals); !verrors.IsClass(err, verrors.ClassReadOnly) {
		t.Errorf("expected readonly error, got %v", err)
	}
}

func TestInputFeed(t *testing.T) {
	feed := NewInputFeed([]string{"a", "b"})
	globals := NewGlobalScope(nil, nil)
	if err := feed.Install(globals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, expected := range []string{"a", "b"} {
		v, err := call(t, globals, "input", &object.String{Value: "ignored prompt"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.Inspect() != expected {
			t.Errorf("expected %s, got %s", expected, v.Inspect())
		}
	}
	if feed.Remaining() != 0 {
		t.Errorf("expected feed to be drained")
	}

	_, err := call(t, globals, "input")
	if !verrors.IsClass(err, verrors.ClassInput) {
		t.Errorf("expected input error, got %v", err)
	}
}
