// Package ast defines the executable node tree. Every node evaluates itself
// against a scope and reports how it finished through an object.Result, so a
// return statement unwinds to the nearest call boundary by plain returns
// rather than by panicking.
package ast

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
	"github.com/sambeau/vivarium/pkg/vivarium/lexer"
	"github.com/sambeau/vivarium/pkg/vivarium/object"
)

// Node represents any node in the tree
type Node interface {
	Evaluate(scope *object.Scope) (object.Result, error)
	String() string
}

// locate attaches the token's position to a runtime error that has none yet.
func locate(tok lexer.Token, err error) error {
	verr, ok := err.(*verrors.VivariumError)
	if !ok || verr.Line > 0 || tok.Line == 0 {
		return err
	}
	return verr.WithPosition(tok.Line, tok.Column)
}

// Constant evaluates to a fixed value, e.g. 12 or "hi"
type Constant struct {
	Token lexer.Token
	Value object.Value
}

func (c *Constant) Evaluate(scope *object.Scope) (object.Result, error) {
	return object.Complete(c.Value), nil
}

func (c *Constant) String() string { return object.Repr(c.Value) }

// VariableRead is a name in load context, e.g. the y in x = y
type VariableRead struct {
	Token lexer.Token
	Name  string
}

func (v *VariableRead) Evaluate(scope *object.Scope) (object.Result, error) {
	store, err := scope.Lookup(v.Name)
	if err != nil {
		return object.Nothing, locate(v.Token, err)
	}
	return object.Complete(store.Get()), nil
}

func (v *VariableRead) String() string { return v.Name }

// VariableTarget is a name in store context, e.g. the x in x = y. It
// evaluates to the store itself.
type VariableTarget struct {
	Token lexer.Token
	Name  string
}

func (v *VariableTarget) Evaluate(scope *object.Scope) (object.Result, error) {
	return object.Reference(scope.Bind(v.Name)), nil
}

func (v *VariableTarget) String() string { return "&" + v.Name }

// Assign evaluates Value, then Target, then stores the value. It produces nothing.
type Assign struct {
	Token  lexer.Token
	Target Node
	Value  Node
}

func (a *Assign) Evaluate(scope *object.Scope) (object.Result, error) {
	value, err := a.Value.Evaluate(scope)
	if err != nil {
		return object.Nothing, err
	}
	if value.IsReturn() {
		return value, nil
	}
	target, err := a.Target.Evaluate(scope)
	if err != nil {
		return object.Nothing, err
	}
	if target.IsReturn() {
		return target, nil
	}
	if target.Store == nil {
		return object.Nothing, locate(a.Token, verrors.New("PARSE-0006", map[string]any{"Target": a.Target.String()}))
	}

	if value.Store != nil {
		err = target.Store.SetFrom(value.Store)
	} else {
		err = target.Store.Set(value.Value)
	}
	if err != nil {
		return object.Nothing, locate(a.Token, err)
	}
	return object.Nothing, nil
}

func (a *Assign) String() string {
	return strings.TrimPrefix(a.Target.String(), "&") + " = " + a.Value.String()
}

// Sequence is an ordered block of statements.
type Sequence struct {
	Statements []Node
}

// NewSequence builds a block from the given statements.
func NewSequence(statements ...Node) *Sequence {
	return &Sequence{Statements: statements}
}

// Add appends a statement while the tree is being built.
func (s *Sequence) Add(statement Node) *Sequence {
	s.Statements = append(s.Statements, statement)
	return s
}

// Evaluate runs each statement in order. The result is that of the last
// statement, or nothing for an empty block; a return stops the block at once.
func (s *Sequence) Evaluate(scope *object.Scope) (object.Result, error) {
	result := object.Nothing
	for _, stmt := range s.Statements {
		r, err := stmt.Evaluate(scope)
		if err != nil {
			return object.Nothing, err
		}
		if r.IsReturn() {
			return r, nil
		}
		result = r
	}
	return result, nil
}

func (s *Sequence) String() string {
	parts := make([]string, len(s.Statements))
	for i, stmt := range s.Statements {
		parts[i] = stmt.String()
	}
	return strings.Join(parts, "; ")
}

// evaluateElements evaluates left to right. A return met on the way stops
// evaluation and comes back as the result.
func evaluateElements(scope *object.Scope, elements []Node) ([]object.Value, object.Result, error) {
	values := make([]object.Value, 0, len(elements))
	for _, el := range elements {
		r, err := el.Evaluate(scope)
		if err != nil {
			return nil, object.Nothing, err
		}
		if r.IsReturn() {
			return nil, r, nil
		}
		values = append(values, r.ValueOrNone())
	}
	return values, object.Nothing, nil
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}

// ListLiteral is a list display, e.g. [1, 2, 3]
type ListLiteral struct {
	Token    lexer.Token
	Elements []Node
}

func (l *ListLiteral) Evaluate(scope *object.Scope) (object.Result, error) {
	values, ret, err := evaluateElements(scope, l.Elements)
	if err != nil || ret.IsReturn() {
		return ret, err
	}
	return object.Complete(&object.List{Elements: values}), nil
}

func (l *ListLiteral) String() string { return "[" + joinNodes(l.Elements) + "]" }

// TupleLiteral is a tuple display, e.g. (1, 2)
type TupleLiteral struct {
	Token    lexer.Token
	Elements []Node
}

func (t *TupleLiteral) Evaluate(scope *object.Scope) (object.Result, error) {
	values, ret, err := evaluateElements(scope, t.Elements)
	if err != nil || ret.IsReturn() {
		return ret, err
	}
	return object.Complete(&object.Tuple{Elements: values}), nil
}

func (t *TupleLiteral) String() string {
	if len(t.Elements) == 1 {
		return "(" + t.Elements[0].String() + ",)"
	}
	return "(" + joinNodes(t.Elements) + ")"
}

// If runs Consequence when Condition is truthy, otherwise Alternative when present.
type If struct {
	Token       lexer.Token
	Condition   Node
	Consequence Node
	Alternative Node // may be nil
}

func (i *If) Evaluate(scope *object.Scope) (object.Result, error) {
	cond, err := i.Condition.Evaluate(scope)
	if err != nil {
		return object.Nothing, err
	}
	if cond.IsReturn() {
		return cond, nil
	}

	var r object.Result
	switch {
	case object.Truthy(cond.Unwrap()):
		r, err = i.Consequence.Evaluate(scope)
	case i.Alternative != nil:
		r, err = i.Alternative.Evaluate(scope)
	default:
		return object.Nothing, nil
	}
	if err != nil {
		return object.Nothing, err
	}
	if r.IsReturn() {
		return r, nil
	}
	return object.Nothing, nil
}

func (i *If) String() string {
	var out bytes.Buffer
	out.WriteString("if " + i.Condition.String() + ": {" + i.Consequence.String() + "}")
	if i.Alternative != nil {
		out.WriteString(" else: {" + i.Alternative.String() + "}")
	}
	return out.String()
}

// While repeats Body as long as Condition is truthy.
type While struct {
	Token     lexer.Token
	Condition Node
	Body      Node
}

func (w *While) Evaluate(scope *object.Scope) (object.Result, error) {
	for {
		cond, err := w.Condition.Evaluate(scope)
		if err != nil {
			return object.Nothing, err
		}
		if cond.IsReturn() {
			return cond, nil
		}
		if !object.Truthy(cond.Unwrap()) {
			return object.Nothing, nil
		}
		r, err := w.Body.Evaluate(scope)
		if err != nil {
			return object.Nothing, err
		}
		if r.IsReturn() {
			return r, nil
		}
	}
}

func (w *While) String() string {
	return "while " + w.Condition.String() + ": {" + w.Body.String() + "}"
}

// Call invokes a callable with arguments evaluated left to right.
type Call struct {
	Token     lexer.Token // the '(' token
	Function  Node
	Arguments []Node
}

func (c *Call) Evaluate(scope *object.Scope) (object.Result, error) {
	callee, err := c.Function.Evaluate(scope)
	if err != nil {
		return object.Nothing, err
	}
	if callee.IsReturn() {
		return callee, nil
	}
	args, ret, err := evaluateElements(scope, c.Arguments)
	if err != nil || ret.IsReturn() {
		return ret, err
	}

	value, err := object.CallValue(callee.Unwrap(), args)
	if err != nil {
		return object.Nothing, locate(c.Token, err)
	}
	return object.Complete(value), nil
}

func (c *Call) String() string {
	return c.Function.String() + "(" + joinNodes(c.Arguments) + ")"
}

// FunctionDef creates a function closing over the current scope and binds it
// under Name. It evaluates to the new function.
type FunctionDef struct {
	Token      lexer.Token
	Name       string
	Parameters []string
	Body       Node
}

func (f *FunctionDef) Evaluate(scope *object.Scope) (object.Result, error) {
	fn := &object.Function{
		Name:    f.Name,
		Params:  f.Parameters,
		Body:    f.Body,
		Closure: scope,
	}
	if err := scope.Bind(f.Name).Set(fn); err != nil {
		return object.Nothing, locate(f.Token, err)
	}
	return object.Complete(fn), nil
}

func (f *FunctionDef) String() string {
	return "def " + f.Name + "(" + strings.Join(f.Parameters, ", ") + "): {" + f.Body.String() + "}"
}

// Return unwinds to the nearest function call carrying its value.
type Return struct {
	Token lexer.Token
	Value Node // nil for a bare return
}

func (r *Return) Evaluate(scope *object.Scope) (object.Result, error) {
	if r.Value == nil {
		return object.Return(object.NONE), nil
	}
	v, err := r.Value.Evaluate(scope)
	if err != nil {
		return object.Nothing, err
	}
	if v.IsReturn() {
		return v, nil
	}
	return object.Return(v.ValueOrNone()), nil
}

func (r *Return) String() string {
	if r.Value == nil {
		return "return"
	}
	return "return " + r.Value.String()
}

// Comparison applies one of == != < <= > >=.
type Comparison struct {
	Token    lexer.Token
	Left     Node
	Operator object.CompareOperator
	Right    Node
}

// NewComparison validates the operator symbol at construction.
func NewComparison(tok lexer.Token, left Node, op string, right Node) (*Comparison, error) {
	cmp, err := object.ParseCompareOperator(op)
	if err != nil {
		return nil, locate(tok, err)
	}
	return &Comparison{Token: tok, Left: left, Operator: cmp, Right: right}, nil
}

func (c *Comparison) Evaluate(scope *object.Scope) (object.Result, error) {
	l, r, ret, err := evaluateOperands(scope, c.Left, c.Right)
	if err != nil || ret.IsReturn() {
		return ret, err
	}
	v, err := object.Compare(c.Operator, l, r)
	if err != nil {
		return object.Nothing, locate(c.Token, err)
	}
	return object.Complete(v), nil
}

func (c *Comparison) String() string {
	return "(" + c.Left.String() + " " + string(c.Operator) + " " + c.Right.String() + ")"
}

// BinaryOp applies one of + - * / // % **.
type BinaryOp struct {
	Token    lexer.Token
	Left     Node
	Operator object.BinaryOperator
	Right    Node
}

// NewBinaryOp validates the operator symbol at construction, so an unknown
// operator is never left to fail at evaluation time.
func NewBinaryOp(tok lexer.Token, left, right Node, op string) (*BinaryOp, error) {
	bin, err := object.ParseBinaryOperator(op)
	if err != nil {
		return nil, locate(tok, err)
	}
	return &BinaryOp{Token: tok, Left: left, Operator: bin, Right: right}, nil
}

func (b *BinaryOp) Evaluate(scope *object.Scope) (object.Result, error) {
	l, r, ret, err := evaluateOperands(scope, b.Left, b.Right)
	if err != nil || ret.IsReturn() {
		return ret, err
	}
	v, err := object.Arithmetic(b.Operator, l, r)
	if err != nil {
		return object.Nothing, locate(b.Token, err)
	}
	return object.Complete(v), nil
}

func (b *BinaryOp) String() string {
	return "(" + b.Left.String() + " " + string(b.Operator) + " " + b.Right.String() + ")"
}

func evaluateOperands(scope *object.Scope, left, right Node) (object.Value, object.Value, object.Result, error) {
	values, ret, err := evaluateElements(scope, []Node{left, right})
	if err != nil || ret.IsReturn() {
		return nil, nil, ret, err
	}
	return values[0], values[1], object.Nothing, nil
}

// Print writes the display string of Value straight to Out, bypassing
// whatever the print name is bound to.
type Print struct {
	Token lexer.Token
	Value Node
	Out   io.Writer // os.Stdout when nil
}

func (p *Print) Evaluate(scope *object.Scope) (object.Result, error) {
	v, err := p.Value.Evaluate(scope)
	if err != nil {
		return object.Nothing, err
	}
	if v.IsReturn() {
		return v, nil
	}
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	if _, err := fmt.Fprintln(out, v.ValueOrNone().Inspect()); err != nil {
		return object.Nothing, verrors.NewSimple(verrors.ClassIO, err.Error())
	}
	return object.Nothing, nil
}

func (p *Print) String() string { return "PRINT(" + p.Value.String() + ")" }

// NoOp does nothing; the parser emits it for pass.
type NoOp struct {
	Token lexer.Token
}

func (n *NoOp) Evaluate(scope *object.Scope) (object.Result, error) {
	return object.Nothing, nil
}

func (n *NoOp) String() string { return "pass" }

// Run evaluates a whole program. A return escaping to the top level is a
// fault, not a result.
func Run(program Node, scope *object.Scope) (object.Value, error) {
	r, err := program.Evaluate(scope)
	if err != nil {
		return nil, err
	}
	if r.IsReturn() {
		return nil, verrors.New("STATE-0001", nil)
	}
	return r.Unwrap(), nil
}
