package compiler

import (
	"fmt"
	"strconv"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"return": RETURN,
	"if":     IF,
	"else":   ELSE,
	"while":  WHILE,
	"for":    FOR,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  string
	pos  int // index of the next byte to consume
	line int // current 1-based source line
	col  int // current 1-based column
}

func newLexer(src string) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1, col: 1}
}

// peek returns the byte at the current position without advancing.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the byte one position ahead of the current position.
func (l *Lexer) peek2() byte {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one byte and returns it.
func (l *Lexer) advance() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

func (l *Lexer) here() Pos {
	return Pos{Offset: l.pos, Line: l.line, Col: l.col}
}

func (l *Lexer) errorf(at Pos, format string, args ...any) error {
	return &Error{
		Kind:    LexError,
		Pos:     at,
		Msg:     fmt.Sprintf(format, args...),
		Snippet: sourceLine(l.src, at.Line),
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\v' || b == '\f'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isLetter(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }

func isIdentCont(b byte) bool { return isLetter(b) || isDigit(b) || b == '_' }

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && isSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment(start Pos) error {
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return nil
		}
		l.advance()
	}
	return l.errorf(start, "unterminated block comment")
}

// scanIdent collects a full identifier or keyword token. A keyword only
// matches when the whole run of identifier characters spells it, so "ifx"
// is an identifier.
func (l *Lexer) scanIdent() Token {
	at := l.here()
	start := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peek()) {
		l.advance()
	}
	lexeme := l.src[start:l.pos]
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Pos: at}
}

// scanInt collects a maximal run of decimal digits.
func (l *Lexer) scanInt() (Token, error) {
	at := l.here()
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	lexeme := l.src[start:l.pos]
	val, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return Token{}, l.errorf(at, "integer %s out of 64-bit range", lexeme)
	}
	return Token{Type: INTEGER, Lexeme: lexeme, Value: val, Pos: at}, nil
}

// nextToken skips whitespace/comments and returns the next Token.
func (l *Lexer) nextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Pos: l.here()}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			start := l.here()
			l.advance()
			l.advance()
			if err := l.skipBlockComment(start); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	ch := l.peek()
	at := l.here()

	if isLetter(ch) {
		return l.scanIdent(), nil
	}
	if isDigit(ch) {
		return l.scanInt()
	}

	tok := func(tt TokenType, lexeme string) (Token, error) {
		return Token{Type: tt, Lexeme: lexeme, Pos: at}, nil
	}

	// Two-byte operators are tried before their one-byte prefixes.
	switch {
	case ch == '=' && l.peek2() == '=':
		l.advance()
		l.advance()
		return tok(EQUALS, "==")
	case ch == '!' && l.peek2() == '=':
		l.advance()
		l.advance()
		return tok(NOT_EQ, "!=")
	case ch == '<' && l.peek2() == '=':
		l.advance()
		l.advance()
		return tok(LESS_EQ, "<=")
	case ch == '>' && l.peek2() == '=':
		l.advance()
		l.advance()
		return tok(GREATER_EQ, ">=")
	case ch == '&' && l.peek2() == '&':
		l.advance()
		l.advance()
		return tok(AND_LOGICAL, "&&")
	case ch == '|' && l.peek2() == '|':
		l.advance()
		l.advance()
		return tok(OR_LOGICAL, "||")
	}

	switch ch {
	case '{':
		l.advance()
		return tok(LBRACE, "{")
	case '}':
		l.advance()
		return tok(RBRACE, "}")
	case '(':
		l.advance()
		return tok(LPAREN, "(")
	case ')':
		l.advance()
		return tok(RPAREN, ")")
	case ';':
		l.advance()
		return tok(SEMICOLON, ";")
	case '+':
		l.advance()
		return tok(PLUS, "+")
	case '-':
		l.advance()
		return tok(MINUS, "-")
	case '*':
		l.advance()
		return tok(STAR, "*")
	case '/':
		l.advance()
		return tok(SLASH, "/")
	case '!':
		l.advance()
		return tok(NOT, "!")
	case '=':
		l.advance()
		return tok(ASSIGN, "=")
	case '<':
		l.advance()
		return tok(LESS, "<")
	case '>':
		l.advance()
		return tok(GREATER, ">")
	}
	return Token{}, l.errorf(at, "unexpected character %q", ch)
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It stops at the first illegal byte or unterminated comment; the tokens
// scanned before the failure are not returned.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
