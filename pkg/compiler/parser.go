package compiler

import (
	"fmt"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//	program    = statement* EOF
//	statement  = "{" statement* "}"
//	           | "return" expr ";"
//	           | "if" "(" expr ")" statement ("else" statement)?
//	           | "while" "(" expr ")" statement
//	           | "for" "(" expr? ";" expr? ";" expr? ")" statement
//	           | expr ";"
//	expr       = assign
//	assign     = equality ("=" assign)?
//	equality   = relational (("==" | "!=") relational)*
//	relational = additive (("<" | "<=" | ">" | ">=") additive)*
//	additive   = term (("+" | "-") term)*
//	term       = unary (("*" | "/") unary)*
//	unary      = ("+" | "-")? primary
//	primary    = INTEGER | IDENTIFIER | "(" expr ")"
type Parser struct {
	tokens      []Token
	pos         int
	syms        *SymbolTable
	sourceLines []string
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{
		tokens:      tokens,
		syms:        NewSymbolTable(),
		sourceLines: strings.Split(rawSource, "\n"),
	}
}

// fmtError builds a ParseError pointing at tok, with the source line attached.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	lineIdx := tok.Pos.Line - 1 // Lines are 1-based

	snippet := ""
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}

	return &Error{
		Kind:    ParseError,
		Pos:     tok.Pos,
		Msg:     fmt.Sprintf(format, args...),
		Snippet: snippet,
	}
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return p.eof()
	}
	return p.tokens[p.pos]
}

// eof synthesises an EOF token for a slice that was not terminated by Lex.
func (p *Parser) eof() Token {
	if n := len(p.tokens); n > 0 {
		return Token{Type: EOF, Pos: p.tokens[n-1].Pos}
	}
	return Token{Type: EOF}
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// accept consumes the current token if it matches tt.
func (p *Parser) accept(tt TokenType) bool {
	if p.peek().Type == tt {
		p.advance()
		return true
	}
	return false
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.peek()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return p.advance(), nil
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseAssign()
}

// parseAssign handles = (right-associative). The left side must be a
// variable reference.
func (p *Parser) parseAssign() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	if p.peek().Type != ASSIGN {
		return left, nil
	}
	eq := p.advance()

	target, ok := left.(*LocalVar)
	if !ok {
		return nil, p.fmtError(eq, "left side of assignment is not a variable: %s", left)
	}
	value, err := p.parseAssign()
	if err != nil {
		return nil, err
	}
	return &AssignExpr{Target: target, Value: value}, nil
}

// parseEquality handles == and !=
func (p *Parser) parseEquality() (Expr, error) {
	expr, err := p.parseRelational()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == EQUALS || p.peek().Type == NOT_EQ {
		op := Eq
		if p.advance().Type == NOT_EQ {
			op = Ne
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}

	return expr, nil
}

// parseRelational handles <, <=, > and >=. The greater-than forms swap
// their operands so only Lt and Le reach the AST.
func (p *Parser) parseRelational() (Expr, error) {
	expr, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	for {
		tt := p.peek().Type
		if tt != LESS && tt != LESS_EQ && tt != GREATER && tt != GREATER_EQ {
			break
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		switch tt {
		case LESS:
			expr = &BinaryExpr{Op: Lt, Left: expr, Right: right}
		case LESS_EQ:
			expr = &BinaryExpr{Op: Le, Left: expr, Right: right}
		case GREATER:
			expr = &BinaryExpr{Op: Lt, Left: right, Right: expr}
		case GREATER_EQ:
			expr = &BinaryExpr{Op: Le, Left: right, Right: expr}
		}
	}

	return expr, nil
}

// parseAdditive handles + and -
func (p *Parser) parseAdditive() (Expr, error) {
	expr, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for {
		tt := p.peek().Type
		if tt != PLUS && tt != MINUS {
			break
		}
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		op := Add
		if tt == MINUS {
			op = Sub
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}

	return expr, nil
}

// parseTerm handles * and /
func (p *Parser) parseTerm() (Expr, error) {
	expr, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tt := p.peek().Type
		if tt != STAR && tt != SLASH {
			break
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := Mul
		if tt == SLASH {
			op = Div
		}
		expr = &BinaryExpr{Op: op, Left: expr, Right: right}
	}

	return expr, nil
}

// parseUnary handles a single optional + or - prefix. Negated literals are
// folded; any other negation becomes 0 - x.
func (p *Parser) parseUnary() (Expr, error) {
	if p.accept(PLUS) {
		return p.parsePrimary()
	}
	if p.accept(MINUS) {
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if n, ok := right.(*Number); ok {
			return &Number{Value: -n.Value}, nil
		}
		return &BinaryExpr{Op: Sub, Left: &Number{Value: 0}, Right: right}, nil
	}
	return p.parsePrimary()
}

// parsePrimary handles literals, variables, and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER:
		p.advance()
		return &Number{Value: tok.Value}, nil

	case IDENTIFIER:
		p.advance()
		off, _ := p.syms.Allocate(tok.Lexeme)
		return &LocalVar{Name: tok.Lexeme, Offset: off}, nil

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.fmtError(tok, "expected expression, got %s (%q)", tok.Type, tok.Lexeme)
	}
}

// parseParenExpr parses ( expr )
func (p *Parser) parseParenExpr() (Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseReturn parses  return expr ;
// The leading RETURN token has already been consumed by parseStatement.
func (p *Parser) parseReturn() (Stmt, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return &ReturnStmt{Expr: expr}, nil
}

// parseBlock parses { stmt1; stmt2; ... }
// The leading LBRACE token has already been consumed by parseStatement.
func (p *Parser) parseBlock() (Stmt, error) {
	var stmts []Stmt
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return &BlockStmt{Stmts: stmts}, nil
}

// parseIf parses if ( cond ) then [ else else ]
// The leading IF token has already been consumed by parseStatement.
func (p *Parser) parseIf() (Stmt, error) {
	cond, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	var els Stmt
	if p.accept(ELSE) {
		els, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}

	return &IfStmt{Cond: cond, Then: then, Else: els}, nil
}

// parseWhile parses while ( cond ) body
// The leading WHILE token has already been consumed by parseStatement.
func (p *Parser) parseWhile() (Stmt, error) {
	cond, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body}, nil
}

// parseOptionalExpr parses an expression unless the next token is end.
// The terminator itself is consumed.
func (p *Parser) parseOptionalExpr(end TokenType) (Expr, error) {
	var expr Expr
	if p.peek().Type != end {
		var err error
		expr, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(end); err != nil {
		return nil, err
	}
	return expr, nil
}

// parseFor parses for ( init; cond; step ) body
// The leading FOR token has already been consumed by parseStatement.
func (p *Parser) parseFor() (Stmt, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	init, err := p.parseOptionalExpr(SEMICOLON)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseOptionalExpr(SEMICOLON)
	if err != nil {
		return nil, err
	}
	step, err := p.parseOptionalExpr(RPAREN)
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ForStmt{Init: init, Cond: cond, Step: step, Body: body}, nil
}

// parseStatement dispatches to the correct sub-parser based on the leading token.
func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {

	case LBRACE:
		p.advance()
		return p.parseBlock()

	case RETURN:
		p.advance()
		return p.parseReturn()

	case IF:
		p.advance()
		return p.parseIf()

	case WHILE:
		p.advance()
		return p.parseWhile()

	case FOR:
		p.advance()
		return p.parseFor()

	case EOF:
		return nil, p.fmtError(tok, "unexpected end of input")

	default:
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &ExprStmt{Expr: expr}, nil
	}
}

// Parse builds the program from a token slice produced by Lex. Either every
// statement parses or an error is returned and no Program is produced.
func Parse(tokens []Token, rawSource string) (*Program, error) {
	p := NewParser(tokens, rawSource)
	var stmts []Stmt
	for p.peek().Type != EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return &Program{Stmts: stmts, Locals: p.syms.Locals()}, nil
}
