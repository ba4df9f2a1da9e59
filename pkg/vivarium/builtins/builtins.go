// Package builtins provides the global scope factory and the host functions
// every program can call: print, input, int, str, max and min.
package builtins

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
	"github.com/sambeau/vivarium/pkg/vivarium/object"
)

// Names lists the built-ins bound by NewGlobalScope, in binding order.
var Names = []string{"print", "input", "int", "str", "max", "min"}

// IsBuiltin reports whether name is one of the standard built-ins.
func IsBuiltin(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// NewGlobalScope returns a fresh root scope holding the standard built-ins.
// print writes to stdout and input reads lines from stdin; nil selects the
// process streams. Every call is independent: no state is shared between
// the scopes it returns.
func NewGlobalScope(stdin io.Reader, stdout io.Writer) *object.Scope {
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	globals := object.NewScope(nil)
	reader := bufio.NewReader(stdin)

	bind := func(name string, fn object.BuiltinFunction) {
		// A fresh root scope has no locked stores, so Set cannot fail.
		_ = globals.Bind(name).Set(object.NewBuiltin(name, fn))
	}

	bind("print", Print(stdout))
	bind("input", Input(reader, stdout))
	bind("int", Int)
	bind("str", Str)
	bind("max", Max)
	bind("min", Min)

	return globals
}

// FormatArgs display-stringifies each argument and joins them with a space,
// which is exactly one printed line.
func FormatArgs(args []object.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if arg == nil {
			arg = object.NONE
		}
		parts[i] = arg.Inspect()
	}
	return strings.Join(parts, " ")
}

// Print returns a print built-in writing one line per call to w.
func Print(w io.Writer) object.BuiltinFunction {
	return func(args ...object.Value) (object.Value, error) {
		if _, err := fmt.Fprintln(w, FormatArgs(args)); err != nil {
			return nil, verrors.NewSimple(verrors.ClassIO, err.Error())
		}
		return nil, nil
	}
}

// Input returns an input built-in. The optional prompt is written to w
// without a newline, then one line is read from r with its line ending
// removed. Running out of input is an InputExhausted fault.
func Input(r *bufio.Reader, w io.Writer) object.BuiltinFunction {
	return func(args ...object.Value) (object.Value, error) {
		if len(args) > 1 {
			return nil, verrors.New("ARITY-0003", map[string]any{"Function": "input", "Want": 1, "Got": len(args)})
		}
		if len(args) == 1 {
			fmt.Fprint(w, args[0].Inspect())
		}

		line, err := r.ReadString('\n')
		if err == io.EOF && line == "" {
			return nil, verrors.New("INPUT-0001", nil)
		}
		if err != nil && err != io.EOF {
			return nil, verrors.NewSimple(verrors.ClassIO, err.Error())
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		return &object.String{Value: line}, nil
	}
}

// Int converts its single argument to an Integer.
func Int(args ...object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, verrors.New("ARITY-0001", map[string]any{"Function": "int", "Want": 1, "Got": len(args)})
	}
	n, err := object.ToInt(args[0])
	if err != nil {
		return nil, err
	}
	return &object.Integer{Value: n}, nil
}

// Str returns the display string of its argument, or "" with no argument.
func Str(args ...object.Value) (object.Value, error) {
	switch len(args) {
	case 0:
		return &object.String{Value: ""}, nil
	case 1:
		if s, ok := args[0].(*object.String); ok {
			return s, nil
		}
		return &object.String{Value: args[0].Inspect()}, nil
	}
	return nil, verrors.New("ARITY-0003", map[string]any{"Function": "str", "Want": 1, "Got": len(args)})
}

// Max returns the largest of its arguments after integer conversion.
func Max(args ...object.Value) (object.Value, error) {
	return extreme("max", args, func(a, b int64) bool { return a > b })
}

// Min returns the smallest of its arguments after integer conversion.
func Min(args ...object.Value) (object.Value, error) {
	return extreme("min", args, func(a, b int64) bool { return a < b })
}

func extreme(name string, args []object.Value, better func(a, b int64) bool) (object.Value, error) {
	if len(args) == 0 {
		return nil, verrors.New("ARITY-0002", map[string]any{"Function": name, "Want": 1, "Got": 0})
	}

	var best int64
	for i, arg := range args {
		n, err := object.ToInt(arg)
		if err != nil {
			return nil, err
		}
		if i == 0 || better(n, best) {
			best = n
		}
	}
	return &object.Integer{Value: best}, nil
}
