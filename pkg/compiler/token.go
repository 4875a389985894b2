package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable name
	INTEGER    // decimal integer literal

	// Keywords
	RETURN // "return"
	IF     // "if"
	ELSE   // "else"
	WHILE  // "while"
	FOR    // "for"

	// Paired delimiters
	LBRACE // {
	RBRACE // }
	LPAREN // (
	RPAREN // )

	SEMICOLON // ;

	// Arithmetic operators
	PLUS  // +
	MINUS // -
	STAR  // *
	SLASH // /

	// Logical operators are lexed but not part of the grammar.
	AND_LOGICAL // &&
	OR_LOGICAL  // ||
	NOT         // !

	// Assignment / comparison
	ASSIGN     // =
	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	LESS_EQ    // <=
	GREATER    // >
	GREATER_EQ // >=
)

var tokenNames = [...]string{
	EOF:         "EOF",
	IDENTIFIER:  "IDENTIFIER",
	INTEGER:     "INTEGER",
	RETURN:      "RETURN",
	IF:          "IF",
	ELSE:        "ELSE",
	WHILE:       "WHILE",
	FOR:         "FOR",
	LBRACE:      "LBRACE",
	RBRACE:      "RBRACE",
	LPAREN:      "LPAREN",
	RPAREN:      "RPAREN",
	SEMICOLON:   "SEMICOLON",
	PLUS:        "PLUS",
	MINUS:       "MINUS",
	STAR:        "STAR",
	SLASH:       "SLASH",
	AND_LOGICAL: "AND_LOGICAL",
	OR_LOGICAL:  "OR_LOGICAL",
	NOT:         "NOT",
	ASSIGN:      "ASSIGN",
	EQUALS:      "EQUALS",
	NOT_EQ:      "NOT_EQ",
	LESS:        "LESS",
	LESS_EQ:     "LESS_EQ",
	GREATER:     "GREATER",
	GREATER_EQ:  "GREATER_EQ",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Pos is a location in the source text. Line and Col are 1-based; Offset is
// the 0-based byte index.
type Pos struct {
	Offset int
	Line   int
	Col    int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Value  int64  // parsed value of an INTEGER token
	Pos    Pos
}

// SameKind reports whether t and o are the same kind of token. Payloads are
// ignored: any identifier matches any identifier, any number any number.
func (t Token) SameKind(o Token) bool {
	return t.Type == o.Type
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d col %d", t.Type, t.Lexeme, t.Pos.Line, t.Pos.Col)
}
