// Package repl implements the interactive read-eval-print loop.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/sambeau/vivarium/pkg/vivarium/ast"
	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
	"github.com/sambeau/vivarium/pkg/vivarium/lexer"
	"github.com/sambeau/vivarium/pkg/vivarium/object"
	"github.com/sambeau/vivarium/pkg/vivarium/parser"
	"github.com/sambeau/vivarium/pkg/vivarium/vivarium"
)

const PROMPT = ">>> "
const CONTINUATION_PROMPT = "... "

const HELP_HINT = "Type 'help()' for general help, or 'help(topic)' for help on a particular topic."

// Options configures a session.
type Options struct {
	Version     string
	Prompt      string   // defaults to PROMPT
	HistoryFile string   // empty uses a file in the temp directory
	Strip       []string // built-ins removed before lockdown
}

// Session holds the state of one REPL: a locked global scope with a help
// built-in and a child scope that user code runs in.
type Session struct {
	out   io.Writer
	in    io.Reader
	strip []string
	env   *vivarium.Environment

	// readLine answers input() calls. Nil reads from in.
	readLine func(prompt string) (string, error)
}

// NewSession creates a session that prints to out. input() reads from in
// unless the session is driven by Start, which routes it through the line
// editor.
func NewSession(in io.Reader, out io.Writer, strip []string) (*Session, error) {
	s := &Session{in: in, out: out, strip: strip}
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) reset() error {
	extra := map[string]object.BuiltinFunction{"help": s.help}
	if s.readLine != nil {
		extra["input"] = s.input
	}
	env, err := vivarium.NewEnvironment(vivarium.Options{
		Stdin:    s.in,
		Stdout:   s.out,
		Echo:     true,
		Strip:    s.strip,
		Builtins: extra,
	})
	if err != nil {
		return err
	}
	s.env = env
	return nil
}

func (s *Session) help(args ...object.Value) (object.Value, error) {
	if len(args) > 1 {
		return nil, verrors.New("ARITY-0003", map[string]any{"Function": "help", "Want": 1, "Got": len(args)})
	}
	topic := ""
	if len(args) == 1 {
		topic = args[0].Inspect()
	}
	if topic == "" {
		fmt.Fprintln(s.out, "Help has not been implemented.")
	} else {
		fmt.Fprintf(s.out, "Help on '%s' has not been implemented.\n", topic)
	}
	return nil, nil
}

func (s *Session) input(args ...object.Value) (object.Value, error) {
	if len(args) > 1 {
		return nil, verrors.New("ARITY-0003", map[string]any{"Function": "input", "Want": 1, "Got": len(args)})
	}
	prompt := ""
	if len(args) == 1 {
		prompt = args[0].Inspect()
	}
	line, err := s.readLine(prompt)
	if err != nil {
		return nil, verrors.New("INPUT-0001", nil)
	}
	return &object.String{Value: line}, nil
}

// Scope returns the scope user code runs in.
func (s *Session) Scope() *object.Scope {
	return s.env.Scope
}

// Eval handles one complete chunk of input. It returns false when the user
// asked to leave.
func (s *Session) Eval(input string) bool {
	trimmed := strings.TrimSpace(input)
	switch trimmed {
	case "":
		return true
	case "exit", "exit()", "quit", "quit()":
		return false
	case "help":
		fmt.Fprintln(s.out, HELP_HINT)
		return true
	}

	if strings.HasPrefix(trimmed, ":") {
		s.handleReplCommand(trimmed)
		return true
	}

	program, err := parser.Parse(input, "")
	if err != nil {
		printError(s.out, err)
		return true
	}

	v, err := s.env.Run(program)
	s.env.Output.Reset()
	if err != nil {
		printError(s.out, err)
		return true
	}
	if v == nil || v.Type() == object.NONE_OBJ || endsWithDefinition(program) {
		return true
	}
	fmt.Fprintln(s.out, v.Inspect())
	return true
}

func endsWithDefinition(program *ast.Sequence) bool {
	if len(program.Statements) == 0 {
		return false
	}
	_, ok := program.Statements[len(program.Statements)-1].(*ast.FunctionDef)
	return ok
}

// handleReplCommand handles REPL meta-commands that start with ':'
func (s *Session) handleReplCommand(cmd string) {
	switch cmd {
	case ":help", ":h", ":?":
		fmt.Fprintln(s.out, "REPL Commands:")
		fmt.Fprintln(s.out, "  :help, :h, :?   Show this help")
		fmt.Fprintln(s.out, "  :env            Show variables in scope")
		fmt.Fprintln(s.out, "  :clear          Clear all user variables")
		fmt.Fprintln(s.out, "  exit, quit      Exit the REPL")

	case ":env":
		printEnvironment(s.env.Scope, s.out)

	case ":clear":
		if err := s.reset(); err != nil {
			printError(s.out, err)
			return
		}
		fmt.Fprintln(s.out, "Environment cleared")

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}

// printEnvironment displays the names bound in the program scope
func printEnvironment(scope *object.Scope, out io.Writer) {
	names := scope.Names()
	if len(names) == 0 {
		fmt.Fprintln(out, "(no user variables)")
		return
	}

	for _, name := range names {
		store, err := scope.Lookup(name)
		if err != nil {
			continue
		}
		v := store.Get()
		value := object.Repr(v)
		if len(value) > 60 {
			value = value[:57] + "..."
		}
		fmt.Fprintf(out, "  %s: %s = %s\n", name, v.Type(), value)
	}
}

// Start runs the REPL on the terminal with line editing, history and tab
// completion until the user exits.
func Start(out io.Writer, opts Options) error {
	line := liner.NewLiner()
	defer line.Close()

	// Enable Ctrl+C to abort current line
	line.SetCtrlCAborts(true)

	session := &Session{in: os.Stdin, out: out, strip: opts.Strip}
	session.readLine = line.Prompt
	if err := session.reset(); err != nil {
		return err
	}

	line.SetCompleter(func(text string) []string {
		return filterCompletions(text, completionWords(session.Scope()))
	})

	historyFile := opts.HistoryFile
	if historyFile == "" {
		historyFile = filepath.Join(os.TempDir(), ".vivarium_history")
	}
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	// Save history on exit
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	prompt := opts.Prompt
	if prompt == "" {
		prompt = PROMPT
	}

	fmt.Fprintln(out, "Vivarium", opts.Version)
	fmt.Fprintln(out, "Type 'exit' or Ctrl+D to quit, ':help' for REPL commands")

	var buffer strings.Builder
	for {
		current := prompt
		if buffer.Len() > 0 {
			current = CONTINUATION_PROMPT
		}
		input, err := line.Prompt(current)
		if err != nil {
			if err == liner.ErrPromptAborted {
				if buffer.Len() > 0 {
					fmt.Fprintln(out, "^C (cleared)")
				} else {
					fmt.Fprintln(out, "^C")
				}
				buffer.Reset()
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(input)

		chunk := buffer.String()
		if needsMoreInput(chunk, input) {
			continue
		}
		buffer.Reset()

		if strings.TrimSpace(chunk) != "" {
			line.AppendHistory(chunk)
		}
		if !session.Eval(chunk) {
			return nil
		}
	}
}

// needsMoreInput reports whether chunk is an unfinished statement. A line
// ending in ':' opens a block that runs until a blank line; unclosed brackets
// continue onto the next line.
func needsMoreInput(chunk, last string) bool {
	if strings.TrimSpace(chunk) == "" {
		return false
	}
	if bracketDepth(chunk) > 0 {
		return true
	}
	if !opensBlock(chunk) {
		return false
	}
	return !strings.Contains(chunk, "\n") || strings.TrimSpace(last) != ""
}

func opensBlock(chunk string) bool {
	for _, line := range strings.Split(chunk, "\n") {
		if strings.HasSuffix(strings.TrimSpace(stripComment(line)), ":") {
			return true
		}
	}
	return false
}

// bracketDepth counts unclosed brackets outside string literals.
func bracketDepth(input string) int {
	depth := 0
	var quote byte
	escapeNext := false

	for i := 0; i < len(input); i++ {
		ch := input[i]

		if quote != 0 {
			switch {
			case escapeNext:
				escapeNext = false
			case ch == '\\':
				escapeNext = true
			case ch == quote || ch == '\n':
				quote = 0
			}
			continue
		}

		switch ch {
		case '"', '\'':
			quote = ch
		case '#':
			for i < len(input) && input[i] != '\n' {
				i++
			}
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		}
	}
	return depth
}

func stripComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote == 0 && ch == '#':
			return line[:i]
		}
	}
	return line
}

// completionWords returns keywords plus every name visible from scope.
func completionWords(scope *object.Scope) []string {
	words := append(lexer.Keywords(), scope.VisibleNames()...)
	words = append(words, "exit", "quit")
	sort.Strings(words)
	return words
}

// filterCompletions returns completion suggestions based on current input
func filterCompletions(line string, words []string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	// Don't complete if line ends with whitespace
	if line[len(line)-1] == ' ' || line[len(line)-1] == '\t' {
		return nil
	}

	// The word being typed starts after the last non-identifier character.
	start := len(line)
	for start > 0 && isIdentChar(line[start-1]) {
		start--
	}
	prefix := line[:start]
	partial := line[start:]
	if partial == "" {
		return nil
	}

	var matches []string
	seen := make(map[string]bool)
	for _, word := range words {
		if strings.HasPrefix(word, partial) && !seen[word] {
			seen[word] = true
			matches = append(matches, prefix+word)
		}
	}
	return matches
}

func isIdentChar(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

// printError prints parse and runtime errors with structured formatting
func printError(out io.Writer, err error) {
	var verr *verrors.VivariumError
	if errors.As(err, &verr) {
		io.WriteString(out, verr.PrettyString())
		io.WriteString(out, "\n")
		return
	}
	fmt.Fprintf(out, "Runtime error\n  %s\n", err)
}
