package compiler

import (
	"github.com/pkg/errors"
)

// Compile runs the whole pipeline over src and returns the assembly lines.
// Errors from each stage are wrapped with the stage name; errors.As still
// reaches the underlying *Error.
func Compile(src string) ([]string, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, errors.Wrap(err, "lex")
	}

	prog, err := Parse(tokens, src)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	lines, err := Generate(prog)
	if err != nil {
		return nil, errors.Wrap(err, "generate")
	}

	return lines, nil
}

// CompileText is Compile with the lines joined into assembly source.
func CompileText(src string) (string, error) {
	lines, err := Compile(src)
	if err != nil {
		return "", err
	}
	return Join(lines), nil
}
