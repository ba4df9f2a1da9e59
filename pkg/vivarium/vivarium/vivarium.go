// Package vivarium is the embedding API. It wires a fresh global scope,
// output capture and optional input feed together, locks the globals down and
// runs source text in a child program scope.
//
//	lines, err := vivarium.Run("print(1 + 2)", vivarium.Options{})
//	// lines == []string{"3"}
package vivarium

import (
	stderrors "errors"
	"io"
	"os"
	"time"

	"github.com/sambeau/vivarium/pkg/vivarium/ast"
	"github.com/sambeau/vivarium/pkg/vivarium/builtins"
	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
	"github.com/sambeau/vivarium/pkg/vivarium/object"
	"github.com/sambeau/vivarium/pkg/vivarium/parser"
)

// Options configures a run.
type Options struct {
	// Input, when non-nil, answers input() calls line by line. Reading past
	// the last line is an InputExhausted fault. When nil, input() reads Stdin.
	Input []string
	Stdin io.Reader

	// Echo writes each printed line to Stdout as well as capturing it.
	Echo   bool
	Stdout io.Writer

	// Strip lists built-ins removed from the globals before the run.
	Strip []string

	// Unlocked leaves the globals writable. By default they are locked.
	Unlocked bool

	// Builtins are extra host functions bound in the globals before lockdown.
	Builtins map[string]object.BuiltinFunction

	// Filename is reported in errors.
	Filename string
}

// Environment is a prepared global scope plus the program scope that code
// runs in. Successive Exec calls share the program scope.
type Environment struct {
	Globals *object.Scope
	Scope   *object.Scope
	Output  *builtins.OutputCapture
	Input   *builtins.InputFeed // nil when input() reads Stdin

	filename string
}

// NewEnvironment builds globals, installs the pipes and locks the globals
// unless opts.Unlocked is set.
func NewEnvironment(opts Options) (*Environment, error) {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	globals := builtins.NewGlobalScope(opts.Stdin, stdout)

	var echo io.Writer
	if opts.Echo {
		echo = stdout
	}
	env := &Environment{
		Globals:  globals,
		Output:   builtins.NewOutputCapture(echo),
		filename: opts.Filename,
	}
	if err := env.Output.Install(globals); err != nil {
		return nil, err
	}
	if opts.Input != nil {
		env.Input = builtins.NewInputFeed(opts.Input)
		if err := env.Input.Install(globals); err != nil {
			return nil, err
		}
	}
	for name, fn := range opts.Builtins {
		if err := globals.Define(name, object.NewBuiltin(name, fn)); err != nil {
			return nil, err
		}
	}
	for _, name := range opts.Strip {
		globals.Unbind(name)
	}

	env.Scope = object.NewScope(globals)
	if !opts.Unlocked {
		globals.Lockdown()
	}
	return env, nil
}

// Exec parses and runs code in the program scope and returns the value of
// its last statement (nil when it produced nothing).
func (e *Environment) Exec(code string) (object.Value, error) {
	program, err := parser.Parse(code, e.filename)
	if err != nil {
		return nil, err
	}
	return e.Run(program)
}

// Run evaluates an already built program in the program scope.
func (e *Environment) Run(program ast.Node) (object.Value, error) {
	v, err := ast.Run(program, e.Scope)
	if err != nil {
		return nil, e.attachFile(err)
	}
	return v, nil
}

func (e *Environment) attachFile(err error) error {
	var verr *verrors.VivariumError
	if e.filename == "" || !stderrors.As(err, &verr) || verr.File != "" {
		return err
	}
	return verr.WithFile(e.filename)
}

// Result describes a completed run.
type Result struct {
	Output   []string
	Value    object.Value
	Duration time.Duration
}

// Eval runs code in a fresh environment. On failure the returned Result still
// carries the output captured before the fault.
func Eval(code string, opts Options) (*Result, error) {
	start := time.Now()
	env, err := NewEnvironment(opts)
	if err != nil {
		return nil, err
	}

	v, err := env.Exec(code)
	return &Result{
		Output:   env.Output.Lines(),
		Value:    v,
		Duration: time.Since(start),
	}, err
}

// Run executes code and returns the lines it printed.
func Run(code string, opts Options) ([]string, error) {
	result, err := Eval(code, opts)
	if result == nil {
		return nil, err
	}
	return result.Output, err
}

// EvalFile reads path and evaluates it with the path as filename.
func EvalFile(path string, opts Options) (*Result, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, verrors.New("IO-0001", map[string]any{"Path": path, "GoError": err.Error()})
	}
	if opts.Filename == "" {
		opts.Filename = path
	}
	return Eval(string(code), opts)
}

// RunFile reads path and runs it, returning the lines it printed.
func RunFile(path string, opts Options) ([]string, error) {
	result, err := EvalFile(path, opts)
	if result == nil {
		return nil, err
	}
	return result.Output, err
}
