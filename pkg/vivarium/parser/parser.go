// Package parser builds an ast.Sequence from source text. It understands the
// indentation-structured subset the runtime executes: assignments, expression
// statements, if/elif/else, while, def, return and pass.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sambeau/vivarium/pkg/vivarium/ast"
	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
	"github.com/sambeau/vivarium/pkg/vivarium/lexer"
	"github.com/sambeau/vivarium/pkg/vivarium/object"
)

// Precedence levels for operators
const (
	_ int = iota
	LOWEST
	COMPARE // == != < <= > >=
	SUM     // + -
	PRODUCT // * / // %
	PREFIX  // -X
	POWER   // **
	CALL    // myFunction(X)
)

// precedences maps tokens to their precedence
var precedences = map[lexer.TokenType]int{
	lexer.EQ:        COMPARE,
	lexer.NOT_EQ:    COMPARE,
	lexer.LT:        COMPARE,
	lexer.GT:        COMPARE,
	lexer.LTE:       COMPARE,
	lexer.GTE:       COMPARE,
	lexer.PLUS:      SUM,
	lexer.MINUS:     SUM,
	lexer.ASTERISK:  PRODUCT,
	lexer.SLASH:     PRODUCT,
	lexer.FLOOR_DIV: PRODUCT,
	lexer.PERCENT:   PRODUCT,
	lexer.POWER:     POWER,
	lexer.LPAREN:    CALL,
}

type (
	prefixParseFn func() ast.Node
	infixParseFn  func(ast.Node) ast.Node
)

// Parser is a Pratt parser over the token stream of a single program.
type Parser struct {
	l        *lexer.Lexer
	filename string

	errors []*verrors.VivariumError

	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

// New creates a parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[lexer.TokenType]prefixParseFn)
	p.registerPrefix(lexer.IDENT, p.parseIdentifier)
	p.registerPrefix(lexer.INT, p.parseIntegerLiteral)
	p.registerPrefix(lexer.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.TRUE, p.parseKeywordConstant)
	p.registerPrefix(lexer.FALSE, p.parseKeywordConstant)
	p.registerPrefix(lexer.NONE, p.parseKeywordConstant)
	p.registerPrefix(lexer.MINUS, p.parseNegation)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(lexer.LBRACKET, p.parseListLiteral)

	p.infixParseFns = make(map[lexer.TokenType]infixParseFn)
	for _, tt := range []lexer.TokenType{lexer.PLUS, lexer.MINUS, lexer.ASTERISK, lexer.SLASH, lexer.FLOOR_DIV, lexer.PERCENT} {
		p.registerInfix(tt, p.parseBinaryExpression)
	}
	p.registerInfix(lexer.POWER, p.parsePowerExpression)
	for _, tt := range []lexer.TokenType{lexer.EQ, lexer.NOT_EQ, lexer.LT, lexer.GT, lexer.LTE, lexer.GTE} {
		p.registerInfix(tt, p.parseComparison)
	}
	p.registerInfix(lexer.LPAREN, p.parseCallExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

// Parse lexes and parses source in one step. filename is used only in error
// messages and may be empty.
func Parse(source, filename string) (*ast.Sequence, error) {
	p := New(lexer.NewWithFilename(source, filename))
	p.filename = filename
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		return nil, errs[0]
	}
	return program, nil
}

// Errors returns the structured errors found while parsing. Lexical errors
// come first since they are what the parser tripped over.
func (p *Parser) Errors() []*verrors.VivariumError {
	errs := append([]*verrors.VivariumError(nil), p.l.Errors()...)
	return append(errs, p.errors...)
}

// fail records a parse error. Only the first error is recorded; the rest are
// usually cascading noise.
func (p *Parser) fail(code string, tok lexer.Token, data map[string]any) {
	if len(p.errors) > 0 {
		return
	}
	err := verrors.NewWithPosition(code, tok.Line, tok.Column, data)
	if p.filename != "" {
		err = err.WithFile(p.filename)
	}
	p.errors = append(p.errors, err)
}

func (p *Parser) failed() bool {
	return len(p.errors) > 0 || len(p.l.Errors()) > 0
}

func (p *Parser) registerPrefix(tokenType lexer.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType lexer.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

// expectPeek advances when the next token has type t and records an error otherwise.
func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.fail("PARSE-0001", p.peekToken, map[string]any{
		"Expected": describeType(t),
		"Got":      describe(p.peekToken),
	})
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func describeType(t lexer.TokenType) string {
	switch t {
	case lexer.NEWLINE:
		return "end of line"
	case lexer.INDENT:
		return "an indented block"
	case lexer.IDENT:
		return "a name"
	}
	return "'" + t.String() + "'"
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.NEWLINE:
		return "end of line"
	case lexer.EOF:
		return "end of input"
	case lexer.INDENT:
		return "unexpected indent"
	case lexer.DEDENT:
		return "end of block"
	case lexer.STRING:
		return strconv.Quote(tok.Literal)
	}
	return "'" + tok.Literal + "'"
}

// ParseProgram parses the whole input into a top-level sequence.
func (p *Parser) ParseProgram() *ast.Sequence {
	program := ast.NewSequence()

	for !p.curTokenIs(lexer.EOF) && !p.failed() {
		if p.curTokenIs(lexer.NEWLINE) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt == nil {
			break
		}
		program.Add(stmt)
		p.nextToken()
	}

	return program
}

// parseStatement parses one statement starting at curToken. On return
// curToken is the last token of the statement (its NEWLINE or DEDENT).
func (p *Parser) parseStatement() ast.Node {
	switch p.curToken.Type {
	case lexer.DEF:
		return p.parseFunctionDef()
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.ILLEGAL:
		return nil
	case lexer.INDENT:
		p.fail("PARSE-0002", p.curToken, map[string]any{"Token": "indent"})
		return nil
	}
	return p.parseSimpleStatement()
}

// parseSimpleStatement parses a single-line statement and its NEWLINE.
func (p *Parser) parseSimpleStatement() ast.Node {
	var stmt ast.Node

	switch p.curToken.Type {
	case lexer.PASS:
		stmt = &ast.NoOp{Token: p.curToken}
	case lexer.RETURN:
		stmt = p.parseReturn()
	default:
		stmt = p.parseExpressionStatement()
	}
	if stmt == nil {
		return nil
	}

	if !p.expectPeek(lexer.NEWLINE) {
		return nil
	}
	return stmt
}

func (p *Parser) parseReturn() ast.Node {
	ret := &ast.Return{Token: p.curToken}
	if p.peekTokenIs(lexer.NEWLINE) {
		return ret
	}
	p.nextToken()
	ret.Value = p.parseExpressionList()
	if ret.Value == nil {
		return nil
	}
	return ret
}

// parseExpressionStatement handles both bare expressions and assignments.
func (p *Parser) parseExpressionStatement() ast.Node {
	expr := p.parseExpressionList()
	if expr == nil {
		return nil
	}
	if !p.peekTokenIs(lexer.ASSIGN) {
		return expr
	}

	p.nextToken()
	tok := p.curToken
	read, ok := expr.(*ast.VariableRead)
	if !ok {
		p.fail("PARSE-0006", tok, map[string]any{"Target": expr.String()})
		return nil
	}

	p.nextToken()
	value := p.parseExpressionList()
	if value == nil {
		return nil
	}
	return &ast.Assign{
		Token:  tok,
		Target: &ast.VariableTarget{Token: read.Token, Name: read.Name},
		Value:  value,
	}
}

// parseExpressionList parses an expression, turning a bare comma-separated
// list such as `1, 2` into a tuple.
func (p *Parser) parseExpressionList() ast.Node {
	tok := p.curToken
	first := p.parseExpression(LOWEST)
	if first == nil || !p.peekTokenIs(lexer.COMMA) {
		return first
	}

	elements := []ast.Node{first}
	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		if p.peekTokenIs(lexer.NEWLINE) || p.peekTokenIs(lexer.ASSIGN) {
			break
		}
		p.nextToken()
		el := p.parseExpression(LOWEST)
		if el == nil {
			return nil
		}
		elements = append(elements, el)
	}
	return &ast.TupleLiteral{Token: tok, Elements: elements}
}

// parseBlock parses the body after a ':'. Either an indented block on the
// following lines or a single simple statement on the same line.
func (p *Parser) parseBlock() ast.Node {
	if !p.expectPeek(lexer.COLON) {
		return nil
	}

	if !p.peekTokenIs(lexer.NEWLINE) {
		p.nextToken()
		stmt := p.parseSimpleStatement()
		if stmt == nil {
			return nil
		}
		return ast.NewSequence(stmt)
	}

	p.nextToken()
	if !p.expectPeek(lexer.INDENT) {
		return nil
	}
	p.nextToken()

	block := ast.NewSequence()
	for !p.curTokenIs(lexer.DEDENT) && !p.curTokenIs(lexer.EOF) {
		if p.curTokenIs(lexer.NEWLINE) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Add(stmt)
		p.nextToken()
	}
	return block
}

// afterBlock reports whether the statement after a just-parsed block starts
// with one of the given keywords. Indented blocks leave curToken on DEDENT,
// inline blocks on NEWLINE; either way the keyword is the peek token.
func (p *Parser) afterBlock(t lexer.TokenType) bool {
	return p.peekTokenIs(t)
}

func (p *Parser) parseIf() ast.Node {
	node := &ast.If{Token: p.curToken}

	p.nextToken()
	node.Condition = p.parseExpression(LOWEST)
	if node.Condition == nil {
		return nil
	}
	node.Consequence = p.parseBlock()
	if node.Consequence == nil {
		return nil
	}

	switch {
	case p.afterBlock(lexer.ELIF):
		p.nextToken()
		// elif is an if nested in the else branch
		elif := p.parseIf()
		if elif == nil {
			return nil
		}
		node.Alternative = elif
	case p.afterBlock(lexer.ELSE):
		p.nextToken()
		node.Alternative = p.parseBlock()
		if node.Alternative == nil {
			return nil
		}
	}
	return node
}

func (p *Parser) parseWhile() ast.Node {
	node := &ast.While{Token: p.curToken}

	p.nextToken()
	node.Condition = p.parseExpression(LOWEST)
	if node.Condition == nil {
		return nil
	}
	node.Body = p.parseBlock()
	if node.Body == nil {
		return nil
	}
	if p.afterBlock(lexer.ELSE) {
		p.fail("PARSE-0002", p.peekToken, map[string]any{"Token": "'else' after while"})
		return nil
	}
	return node
}

func (p *Parser) parseFunctionDef() ast.Node {
	node := &ast.FunctionDef{Token: p.curToken}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	node.Name = p.curToken.Literal

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	params, ok := p.parseParameters()
	if !ok {
		return nil
	}
	node.Parameters = params

	node.Body = p.parseBlock()
	if node.Body == nil {
		return nil
	}
	return node
}

func (p *Parser) parseParameters() ([]string, bool) {
	params := []string{}
	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return params, true
	}

	for {
		if !p.expectPeek(lexer.IDENT) {
			return nil, false
		}
		params = append(params, p.curToken.Literal)
		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
		if p.peekTokenIs(lexer.RPAREN) {
			break
		}
	}

	if !p.expectPeek(lexer.RPAREN) {
		return nil, false
	}
	return params, true
}

// parseExpression parses expressions using Pratt parsing
func (p *Parser) parseExpression(precedence int) ast.Node {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		if !p.curTokenIs(lexer.ILLEGAL) {
			p.fail("PARSE-0002", p.curToken, map[string]any{"Token": describe(p.curToken)})
		}
		return nil
	}

	leftExp := prefix()
	for leftExp != nil && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}
	return leftExp
}

func (p *Parser) parseIdentifier() ast.Node {
	return &ast.VariableRead{Token: p.curToken, Name: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Node {
	digits := strings.ReplaceAll(p.curToken.Literal, "_", "")
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		p.fail("PARSE-0004", p.curToken, map[string]any{"Literal": p.curToken.Literal})
		return nil
	}
	return &ast.Constant{Token: p.curToken, Value: &object.Integer{Value: value}}
}

func (p *Parser) parseFloatLiteral() ast.Node {
	digits := strings.ReplaceAll(p.curToken.Literal, "_", "")
	value, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		p.fail("PARSE-0004", p.curToken, map[string]any{"Literal": p.curToken.Literal})
		return nil
	}
	return &ast.Constant{Token: p.curToken, Value: &object.Float{Value: value}}
}

func (p *Parser) parseStringLiteral() ast.Node {
	value := p.curToken.Literal
	tok := p.curToken
	// Adjacent string literals concatenate.
	for p.peekTokenIs(lexer.STRING) {
		p.nextToken()
		value += p.curToken.Literal
	}
	return &ast.Constant{Token: tok, Value: &object.String{Value: value}}
}

func (p *Parser) parseKeywordConstant() ast.Node {
	var v object.Value
	switch p.curToken.Type {
	case lexer.TRUE:
		v = object.TRUE
	case lexer.FALSE:
		v = object.FALSE
	default:
		v = object.NONE
	}
	return &ast.Constant{Token: p.curToken, Value: v}
}

// parseNegation folds a minus sign into a numeric literal, and lowers any
// other operand to 0 - operand.
func (p *Parser) parseNegation() ast.Node {
	tok := p.curToken
	p.nextToken()
	operand := p.parseExpression(PREFIX)
	if operand == nil {
		return nil
	}

	if c, ok := operand.(*ast.Constant); ok {
		switch v := c.Value.(type) {
		case *object.Integer:
			return &ast.Constant{Token: tok, Value: &object.Integer{Value: -v.Value}}
		case *object.Float:
			return &ast.Constant{Token: tok, Value: &object.Float{Value: -v.Value}}
		}
	}

	zero := &ast.Constant{Token: tok, Value: &object.Integer{Value: 0}}
	return p.binary(tok, zero, operand, string(object.OpSub))
}

func (p *Parser) binary(tok lexer.Token, left, right ast.Node, op string) ast.Node {
	node, err := ast.NewBinaryOp(tok, left, right, op)
	if err != nil {
		p.fail("OPERATOR-0001", tok, map[string]any{"Operator": op})
		return nil
	}
	return node
}

func (p *Parser) parseBinaryExpression(left ast.Node) ast.Node {
	tok := p.curToken
	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)
	if right == nil {
		return nil
	}
	return p.binary(tok, left, right, tok.Literal)
}

// parsePowerExpression binds to the right: 2 ** 3 ** 2 is 2 ** 9.
func (p *Parser) parsePowerExpression(left ast.Node) ast.Node {
	tok := p.curToken
	p.nextToken()
	right := p.parseExpression(POWER - 1)
	if right == nil {
		return nil
	}
	return p.binary(tok, left, right, tok.Literal)
}

func (p *Parser) parseComparison(left ast.Node) ast.Node {
	tok := p.curToken
	p.nextToken()
	right := p.parseExpression(COMPARE)
	if right == nil {
		return nil
	}
	if precedences[p.peekToken.Type] == COMPARE {
		p.fail("PARSE-0007", p.peekToken, nil)
		return nil
	}

	node, err := ast.NewComparison(tok, left, tok.Literal, right)
	if err != nil {
		p.fail("OPERATOR-0002", tok, map[string]any{"Operator": tok.Literal})
		return nil
	}
	return node
}

func (p *Parser) parseCallExpression(function ast.Node) ast.Node {
	call := &ast.Call{Token: p.curToken, Function: function}
	args, ok := p.parseExpressionItems(lexer.RPAREN)
	if !ok {
		return nil
	}
	call.Arguments = args
	return call
}

// parseGroupedExpression handles (), (x), (x,) and (x, y).
func (p *Parser) parseGroupedExpression() ast.Node {
	tok := p.curToken
	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return &ast.TupleLiteral{Token: tok, Elements: []ast.Node{}}
	}

	p.nextToken()
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}
	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return first
	}
	if !p.expectPeek(lexer.COMMA) {
		return nil
	}

	elements := []ast.Node{first}
	if !p.peekTokenIs(lexer.RPAREN) {
		rest, ok := p.parseExpressionItems(lexer.RPAREN)
		if !ok {
			return nil
		}
		elements = append(elements, rest...)
	} else {
		p.nextToken()
	}
	return &ast.TupleLiteral{Token: tok, Elements: elements}
}

func (p *Parser) parseListLiteral() ast.Node {
	list := &ast.ListLiteral{Token: p.curToken}
	elements, ok := p.parseExpressionItems(lexer.RBRACKET)
	if !ok {
		return nil
	}
	list.Elements = elements
	return list
}

// parseExpressionItems parses a comma separated list ending with end. A
// trailing comma is allowed. It is entered with curToken on the opening
// delimiter (or the last comma) and leaves curToken on end.
func (p *Parser) parseExpressionItems(end lexer.TokenType) ([]ast.Node, bool) {
	items := []ast.Node{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return items, true
	}

	for {
		p.nextToken()
		item := p.parseExpression(LOWEST)
		if item == nil {
			return nil, false
		}
		items = append(items, item)

		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
		if p.peekTokenIs(end) {
			break
		}
	}

	if !p.expectPeek(end) {
		return nil, false
	}
	return items, true
}

// String renders a parse error list for diagnostics.
func String(errs []*verrors.VivariumError) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = fmt.Sprintf("%s: %s", err.Code, err.Error())
	}
	return strings.Join(lines, "\n")
}
