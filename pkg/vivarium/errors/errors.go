// Package errors provides the structured error type used throughout Vivarium.
//
// Every fault raised while parsing or evaluating a program is a *VivariumError.
// The Class field names the category of fault (an unbound variable, a write to a
// locked store, a type mismatch and so on) so that embedders can react to a
// category without matching on message text.
package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassParse      ErrorClass = "parse"      // Front end / syntax errors
	ClassUndefined  ErrorClass = "undefined"  // Name not bound in any scope
	ClassReadOnly   ErrorClass = "readonly"   // Write to a locked store
	ClassArity      ErrorClass = "arity"      // Wrong argument count
	ClassType       ErrorClass = "type"       // Operator applied to incompatible kinds
	ClassNumeric    ErrorClass = "numeric"    // Value cannot be converted to a number
	ClassOperator   ErrorClass = "operator"   // Unsupported operator symbol
	ClassInput      ErrorClass = "input"      // Input feed exhausted
	ClassArithmetic ErrorClass = "arithmetic" // Division or modulo by zero
	ClassState      ErrorClass = "state"      // Invalid interpreter state (e.g. top-level return)
	ClassIO         ErrorClass = "io"         // File operations
)

// VivariumError represents any error from parsing or evaluation.
type VivariumError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"` // e.g. "TYPE-0001"
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Line    int            `json:"line"`   // 1-based line (0 if unknown)
	Column  int            `json:"column"` // 1-based column (0 if unknown)
	File    string         `json:"file,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *VivariumError) Error() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display in the REPL and CLI.
func (e *VivariumError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassParse:
		sb.WriteString("Syntax error")
	default:
		sb.WriteString("Runtime error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  hint: ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *VivariumError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *VivariumError) WithFile(file string) *VivariumError {
	copy := *e
	copy.File = file
	return &copy
}

// WithPosition returns a copy of the error with line and column set.
func (e *VivariumError) WithPosition(line, column int) *VivariumError {
	copy := *e
	copy.Line = line
	copy.Column = column
	return &copy
}

// ClassOf returns the class of err if it is (or wraps) a *VivariumError.
func ClassOf(err error) (ErrorClass, bool) {
	var verr *VivariumError
	if stderrors.As(err, &verr) {
		return verr.Class, true
	}
	return "", false
}

// IsClass reports whether err is (or wraps) a *VivariumError of the given class.
func IsClass(err error, class ErrorClass) bool {
	c, ok := ClassOf(err)
	return ok && c == class
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string   // Message template with {{.placeholders}}
	Hints    []string // Hint templates
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "expected {{.Expected}}, got {{.Got}}",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unexpected token {{.Token}}",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "unterminated string",
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "invalid number literal: {{.Literal}}",
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "unindent does not match any outer indentation level",
	},
	"PARSE-0006": {
		Class:    ClassParse,
		Template: "cannot assign to {{.Target}}",
		Hints:    []string{"only plain names can be assigned: name = value"},
	},
	"PARSE-0007": {
		Class:    ClassParse,
		Template: "chained comparisons are not supported",
		Hints:    []string{"split into two comparisons"},
	},

	"UNDEF-0001": {
		Class:    ClassUndefined,
		Template: "name '{{.Name}}' is not defined",
	},

	"READONLY-0001": {
		Class:    ClassReadOnly,
		Template: "cannot write to read-only store holding {{.Value}}",
	},

	"ARITY-0001": {
		Class:    ClassArity,
		Template: "{{.Function}}() takes {{.Want}} arguments but {{.Got}} were given",
	},
	"ARITY-0002": {
		Class:    ClassArity,
		Template: "{{.Function}}() expected at least {{.Want}} arguments, got {{.Got}}",
	},
	"ARITY-0003": {
		Class:    ClassArity,
		Template: "{{.Function}}() takes at most {{.Want}} arguments but {{.Got}} were given",
	},

	"TYPE-0001": {
		Class:    ClassType,
		Template: "unsupported operand types for {{.Operator}}: '{{.Left}}' and '{{.Right}}'",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "comparison of {{.Left}} and {{.Right}} with {{.Operator}} is not allowed",
	},
	"TYPE-0003": {
		Class:    ClassType,
		Template: "can only concatenate string (not \"{{.Right}}\") to string",
	},
	"TYPE-0004": {
		Class:    ClassType,
		Template: "'{{.Type}}' object is not callable",
	},

	"NUMERIC-0001": {
		Class:    ClassNumeric,
		Template: "{{.Type}} does not support conversion to an integer",
	},
	"NUMERIC-0002": {
		Class:    ClassNumeric,
		Template: "cannot convert \"{{.Value}}\" to an integer",
	},

	"OPERATOR-0001": {
		Class:    ClassOperator,
		Template: "unknown binary operation {{.Operator}}",
	},
	"OPERATOR-0002": {
		Class:    ClassOperator,
		Template: "unknown comparison operator {{.Operator}}",
	},

	"INPUT-0001": {
		Class:    ClassInput,
		Template: "attempted to read more input than was given",
	},

	"ARITH-0001": {
		Class:    ClassArithmetic,
		Template: "{{.Operation}} by zero",
	},
	"ARITH-0002": {
		Class:    ClassArithmetic,
		Template: "0 cannot be raised to a negative power",
	},

	"STATE-0001": {
		Class:    ClassState,
		Template: "'return' outside function",
	},
	"STATE-0002": {
		Class:    ClassState,
		Template: "maximum recursion depth exceeded calling {{.Function}} (limit {{.Limit}})",
		Hints:    []string{"check that the recursion has a base case"},
	},

	"IO-0001": {
		Class:    ClassIO,
		Template: "failed to read file '{{.Path}}': {{.GoError}}",
	},
}

// New creates a VivariumError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *VivariumError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &VivariumError{
			Class:   ClassState,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		if rendered := renderTemplate(hintTmpl, data); rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &VivariumError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates a VivariumError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *VivariumError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// NewSimple creates an error without using the catalog.
func NewSimple(class ErrorClass, message string) *VivariumError {
	return &VivariumError{
		Class:   class,
		Message: message,
	}
}

func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// FindClosestMatch returns the candidate nearest to input by edit distance, or ""
// when nothing is close enough. Ties resolve to the alphabetically first candidate.
func FindClosestMatch(input string, candidates []string) string {
	if len(input) == 0 || len(candidates) == 0 {
		return ""
	}

	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	var bestMatch string
	bestDistance := -1
	for _, candidate := range sorted {
		dist := levenshteinDistance(input, candidate)
		if bestDistance == -1 || dist < bestDistance {
			bestDistance = dist
			bestMatch = candidate
		}
	}

	// Short names (1-3): 1 edit, medium (4-6): 2 edits, longer: 3 edits
	threshold := 1
	if len(input) >= 4 && len(input) <= 6 {
		threshold = 2
	} else if len(input) >= 7 {
		threshold = 3
	}

	if bestDistance <= 0 || bestDistance > threshold {
		return ""
	}
	return bestMatch
}

// NewUnboundVariable creates an unbound-name error with an optional "did you mean" hint.
func NewUnboundVariable(name string, visible []string) *VivariumError {
	err := New("UNDEF-0001", map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, visible); suggestion != "" {
		err.Hints = append(err.Hints, "did you mean '"+suggestion+"'?")
	}
	return err
}
