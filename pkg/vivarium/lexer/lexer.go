package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	verrors "github.com/sambeau/vivarium/pkg/vivarium/errors"
)

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF

	// Layout
	NEWLINE // end of a logical line
	INDENT  // deeper indentation than the enclosing block
	DEDENT  // return to an enclosing indentation level

	// Identifiers and literals
	IDENT  // add, foobar, x, y, ...
	INT    // 1343456
	FLOAT  // 3.14159, 1e10
	STRING // "foobar" or 'foobar'

	// Operators
	ASSIGN    // =
	PLUS      // +
	MINUS     // -
	ASTERISK  // *
	POWER     // **
	SLASH     // /
	FLOOR_DIV // //
	PERCENT   // %
	LT        // <
	GT        // >
	LTE       // <=
	GTE       // >=
	EQ        // ==
	NOT_EQ    // !=

	// Delimiters
	COMMA    // ,
	COLON    // :
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Keywords
	DEF    // "def"
	RETURN // "return"
	IF     // "if"
	ELIF   // "elif"
	ELSE   // "else"
	WHILE  // "while"
	PASS   // "pass"
	TRUE   // "True"
	FALSE  // "False"
	NONE   // "None"
)

var tokenNames = map[TokenType]string{
	ILLEGAL:   "ILLEGAL",
	EOF:       "EOF",
	NEWLINE:   "NEWLINE",
	INDENT:    "INDENT",
	DEDENT:    "DEDENT",
	IDENT:     "IDENT",
	INT:       "INT",
	FLOAT:     "FLOAT",
	STRING:    "STRING",
	ASSIGN:    "=",
	PLUS:      "+",
	MINUS:     "-",
	ASTERISK:  "*",
	POWER:     "**",
	SLASH:     "/",
	FLOOR_DIV: "//",
	PERCENT:   "%",
	LT:        "<",
	GT:        ">",
	LTE:       "<=",
	GTE:       ">=",
	EQ:        "==",
	NOT_EQ:    "!=",
	COMMA:     ",",
	COLON:     ":",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACKET:  "[",
	RBRACKET:  "]",
	DEF:       "def",
	RETURN:    "return",
	IF:        "if",
	ELIF:      "elif",
	ELSE:      "else",
	WHILE:     "while",
	PASS:      "pass",
	TRUE:      "True",
	FALSE:     "False",
	NONE:      "None",
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token represents a single token
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %q, Line: %d, Column: %d}",
		t.Type.String(), t.Literal, t.Line, t.Column)
}

var keywords = map[string]TokenType{
	"def":    DEF,
	"return": RETURN,
	"if":     IF,
	"elif":   ELIF,
	"else":   ELSE,
	"while":  WHILE,
	"pass":   PASS,
	"True":   TRUE,
	"False":  FALSE,
	"None":   NONE,
}

// LookupIdent checks if an identifier is a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Keywords returns the reserved words, used by the REPL for completion.
func Keywords() []string {
	words := make([]string, 0, len(keywords))
	for word := range keywords {
		words = append(words, word)
	}
	return words
}

// tabSize is the column multiple a tab advances indentation to.
const tabSize = 8

// Lexer turns source text into tokens, synthesizing NEWLINE, INDENT and
// DEDENT tokens from line structure the way an indentation-sensitive
// language needs.
type Lexer struct {
	filename     string
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	chSize       int
	line         int
	column       int

	indents     []int
	pending     []Token
	atLineStart bool
	depth       int // open brackets; newlines inside brackets are ignored
	lastType    TokenType
	emitted     bool
	errors      []*verrors.VivariumError
}

// New creates a new lexer instance
func New(input string) *Lexer {
	return NewWithFilename(input, "")
}

// NewWithFilename creates a new lexer instance that reports errors against filename
func NewWithFilename(input string, filename string) *Lexer {
	l := &Lexer{
		filename:    filename,
		input:       input,
		line:        1,
		column:      0,
		indents:     []int{0},
		atLineStart: true,
	}
	l.readChar()
	return l
}

// Errors returns the lexical errors found so far.
func (l *Lexer) Errors() []*verrors.VivariumError {
	return l.errors
}

// readChar reads the next character and advances position.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		if l.chSize > 0 || l.readPosition == 0 {
			l.column++
		}
		l.ch = 0 // NUL represents EOF
		l.chSize = 0
		l.position = l.readPosition
		return
	}

	r, size := rune(l.input[l.readPosition]), 1
	if r >= utf8.RuneSelf {
		r, size = utf8.DecodeRuneInString(l.input[l.readPosition:])
	}
	l.ch = r
	l.chSize = size
	l.position = l.readPosition
	l.readPosition += size
	l.column++
}

// peekChar returns the next character without advancing position
func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) atEOF() bool {
	return l.chSize == 0
}

func (l *Lexer) errorf(code string, line, column int, data map[string]any) Token {
	err := verrors.NewWithPosition(code, line, column, data)
	if l.filename != "" {
		err = err.WithFile(l.filename)
	}
	l.errors = append(l.errors, err)
	return Token{Type: ILLEGAL, Literal: err.Message, Line: line, Column: column}
}

// NextToken scans the input and returns the next token
func (l *Lexer) NextToken() Token {
	tok := l.nextToken()
	l.lastType = tok.Type
	if tok.Type != NEWLINE && tok.Type != INDENT && tok.Type != DEDENT {
		l.emitted = true
	}
	return tok
}

func (l *Lexer) nextToken() Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}

	if l.atLineStart && l.depth == 0 {
		if tok, ok := l.readIndentation(); ok {
			return tok
		}
	}

	l.skipWhitespace()

	line, column := l.line, l.column

	if l.atEOF() {
		return l.finish(line, column)
	}

	switch ch := l.ch; {
	case ch == '\n':
		l.readChar()
		if l.depth > 0 {
			return l.nextToken()
		}
		l.atLineStart = true
		return Token{Type: NEWLINE, Literal: "\\n", Line: line, Column: column}

	case ch == '"' || ch == '\'':
		s, ok := l.readString(ch)
		if !ok {
			return l.errorf("PARSE-0003", line, column, nil)
		}
		return Token{Type: STRING, Literal: s, Line: line, Column: column}

	case isDigit(ch) || (ch == '.' && isDigit(l.peekChar())):
		literal, typ := l.readNumber()
		if isLetter(l.ch) {
			bad := literal
			for isLetter(l.ch) || isDigit(l.ch) {
				bad += string(l.ch)
				l.readChar()
			}
			return l.errorf("PARSE-0004", line, column, map[string]any{"Literal": bad})
		}
		return Token{Type: typ, Literal: literal, Line: line, Column: column}

	case isLetter(ch):
		ident := l.readIdentifier()
		return Token{Type: LookupIdent(ident), Literal: ident, Line: line, Column: column}
	}

	return l.readOperator(line, column)
}

// readOperator handles punctuation, preferring the longest match.
func (l *Lexer) readOperator(line, column int) Token {
	two := func(next rune, long, short TokenType) Token {
		first := l.ch
		if l.peekChar() == next {
			l.readChar()
			l.readChar()
			return Token{Type: long, Literal: string(first) + string(next), Line: line, Column: column}
		}
		l.readChar()
		return Token{Type: short, Literal: string(first), Line: line, Column: column}
	}
	single := func(t TokenType) Token {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: t, Literal: lit, Line: line, Column: column}
	}

	switch l.ch {
	case '=':
		return two('=', EQ, ASSIGN)
	case '!':
		if l.peekChar() == '=' {
			return two('=', NOT_EQ, ILLEGAL)
		}
	case '<':
		return two('=', LTE, LT)
	case '>':
		return two('=', GTE, GT)
	case '*':
		return two('*', POWER, ASTERISK)
	case '/':
		return two('/', FLOOR_DIV, SLASH)
	case '+':
		return single(PLUS)
	case '-':
		return single(MINUS)
	case '%':
		return single(PERCENT)
	case ',':
		return single(COMMA)
	case ':':
		return single(COLON)
	case '(':
		l.depth++
		return single(LPAREN)
	case '[':
		l.depth++
		return single(LBRACKET)
	case ')':
		if l.depth > 0 {
			l.depth--
		}
		return single(RPAREN)
	case ']':
		if l.depth > 0 {
			l.depth--
		}
		return single(RBRACKET)
	}

	lit := string(l.ch)
	l.readChar()
	return l.errorf("PARSE-0002", line, column, map[string]any{"Token": fmt.Sprintf("%q", lit)})
}

// finish closes the final logical line and every open block.
func (l *Lexer) finish(line, column int) Token {
	if l.lastType == EOF {
		return Token{Type: EOF, Line: line, Column: column}
	}
	if l.emitted && l.lastType != NEWLINE && l.lastType != DEDENT {
		l.atLineStart = true
		return Token{Type: NEWLINE, Literal: "\\n", Line: line, Column: column}
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.pending = append(l.pending, Token{Type: DEDENT, Line: line, Column: column})
	}
	l.pending = append(l.pending, Token{Type: EOF, Line: line, Column: column})
	tok := l.pending[0]
	l.pending = l.pending[1:]
	return tok
}

// readIndentation measures the indentation of the next non-blank line and
// reports INDENT or DEDENT tokens when it changes. Blank and comment-only
// lines are skipped entirely.
func (l *Lexer) readIndentation() (Token, bool) {
	for {
		width := 0
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\f' {
			switch l.ch {
			case ' ':
				width++
			case '\t':
				width = (width/tabSize + 1) * tabSize
			}
			l.readChar()
		}

		if l.ch == '#' {
			l.skipComment()
		}
		if l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '\n' {
			l.readChar()
			continue
		}
		if l.atEOF() {
			return Token{}, false
		}

		l.atLineStart = false
		line, column := l.line, l.column
		current := l.indents[len(l.indents)-1]

		switch {
		case width > current:
			l.indents = append(l.indents, width)
			return Token{Type: INDENT, Line: line, Column: column}, true
		case width < current:
			for width < l.indents[len(l.indents)-1] {
				l.indents = l.indents[:len(l.indents)-1]
				l.pending = append(l.pending, Token{Type: DEDENT, Line: line, Column: column})
			}
			if width != l.indents[len(l.indents)-1] {
				l.pending = nil
				return l.errorf("PARSE-0005", line, column, nil), true
			}
			tok := l.pending[0]
			l.pending = l.pending[1:]
			return tok, true
		}
		return Token{}, false
	}
}

func (l *Lexer) skipWhitespace() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\f':
			l.readChar()
		case l.ch == '\\' && l.peekChar() == '\n':
			l.readChar()
			l.readChar()
		case l.ch == '#':
			l.skipComment()
		default:
			return
		}
	}
}

func (l *Lexer) skipComment() {
	for l.ch != '\n' && !l.atEOF() {
		l.readChar()
	}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads an integer or float literal, including exponents.
func (l *Lexer) readNumber() (string, TokenType) {
	position := l.position
	typ := INT
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}

	if l.ch == '.' {
		typ = FLOAT
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			typ = FLOAT
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	return l.input[position:l.position], typ
}

// readString reads a quoted string literal with escape sequence support.
// Strings cannot span lines.
func (l *Lexer) readString(quote rune) (string, bool) {
	var result []rune
	l.readChar() // skip opening quote

	for l.ch != quote {
		if l.ch == '\n' || l.atEOF() {
			return string(result), false
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case 'r':
				result = append(result, '\r')
			case '0':
				result = append(result, 0)
			case '\\', '\'', '"':
				result = append(result, l.ch)
			case '\n':
				// line continuation inside a string
			default:
				result = append(result, '\\', l.ch)
			}
		} else {
			result = append(result, l.ch)
		}
		l.readChar()
	}

	l.readChar() // closing quote
	return string(result), true
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}
