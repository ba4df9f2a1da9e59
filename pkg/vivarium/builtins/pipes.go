package builtins

import (
	"fmt"
	"io"
	"strings"
	"sync"

	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
	"github.com/sambeau/vivarium/pkg/vivarium/object"
)

// OutputCapture records every print call as one line of output.
type OutputCapture struct {
	mu    sync.Mutex
	lines []string
	echo  io.Writer
}

// NewOutputCapture creates a capture. When echo is non-nil each line is also
// written to it as it is printed.
func NewOutputCapture(echo io.Writer) *OutputCapture {
	return &OutputCapture{
		lines: make([]string, 0),
		echo:  echo,
	}
}

// Print is the built-in function body.
func (c *OutputCapture) Print(args ...object.Value) (object.Value, error) {
	line := FormatArgs(args)

	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()

	if c.echo != nil {
		fmt.Fprintln(c.echo, line)
	}
	return nil, nil
}

// Install binds print in scope to this capture.
func (c *OutputCapture) Install(scope *object.Scope) error {
	return scope.Bind("print").Set(object.NewBuiltin("print", c.Print))
}

// Lines returns the captured lines
func (c *OutputCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]string, len(c.lines))
	copy(result, c.lines)
	return result
}

// String returns all captured output as a single newline-terminated string
func (c *OutputCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.lines) == 0 {
		return ""
	}
	return strings.Join(c.lines, "\n") + "\n"
}

// Reset clears all captured output
func (c *OutputCapture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = c.lines[:0]
}

// InputFeed answers input() calls from a fixed list of lines.
type InputFeed struct {
	mu      sync.Mutex
	lines   []string
	current int
}

// NewInputFeed creates a feed that hands out lines in order.
func NewInputFeed(lines []string) *InputFeed {
	return &InputFeed{lines: append([]string(nil), lines...)}
}

// Input is the built-in function body. Any prompt argument is ignored.
func (f *InputFeed) Input(args ...object.Value) (object.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current >= len(f.lines) {
		return nil, verrors.New("INPUT-0001", nil)
	}
	line := f.lines[f.current]
	f.current++
	return &object.String{Value: line}, nil
}

// Install binds input in scope to this feed.
func (f *InputFeed) Install(scope *object.Scope) error {
	return scope.Bind("input").Set(object.NewBuiltin("input", f.Input))
}

// Remaining reports how many lines have not been read yet.
func (f *InputFeed) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lines) - f.current
}
