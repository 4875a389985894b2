// Package compiler provides a lexer, parser, and code generator for a small
// C-like expression language that targets Intel-syntax x86-64 assembly.
//
// Pipeline: source → Lex → Parse → Generate → assembly lines
//
// Every expression is evaluated on the machine stack: operands are pushed,
// operators pop what they need and push exactly one result.
package compiler
