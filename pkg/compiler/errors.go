package compiler

import (
	"fmt"
	"strings"
)

// ErrorKind tags the pipeline stage that rejected the input.
type ErrorKind int

const (
	LexError ErrorKind = iota
	ParseError
	GenError
)

func (k ErrorKind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case ParseError:
		return "parse error"
	case GenError:
		return "codegen error"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the structured failure returned by every stage. Pos is the zero
// value for generation errors that are not tied to a token.
type Error struct {
	Kind    ErrorKind
	Pos     Pos
	Msg     string
	Snippet string // trimmed source line containing Pos, if known
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Pos.Line > 0 {
		fmt.Fprintf(&sb, "line %d col %d: ", e.Pos.Line, e.Pos.Col)
	}
	fmt.Fprintf(&sb, "%s: %s", e.Kind, e.Msg)
	if e.Snippet != "" {
		fmt.Fprintf(&sb, "\n  |> %s", e.Snippet)
	}
	return sb.String()
}

// sourceLine returns the trimmed text of the 1-based line in src.
func sourceLine(src string, line int) string {
	if line <= 0 {
		return ""
	}
	lines := strings.Split(src, "\n")
	if line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}
