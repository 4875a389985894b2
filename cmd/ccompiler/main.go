package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora"

	"stackcc/pkg/compiler"
	"stackcc/pkg/listing"
	"stackcc/pkg/utils"
)

const testSource = `a = 1;
b = 2;
for (i = 0; i < 3; i = i + 1) {
    if (a < b) a = a + b; else b = b + 1;
}
return a;
`

// dumpConfig prints the AST node fields rather than their String forms,
// without pointer addresses so repeated runs produce identical output.
var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func main() {
	color := flag.Bool("color", true, "colourise output")
	flag.Parse()

	src := testSource
	if flag.NArg() > 0 {
		var err error
		src, err = utils.ReadSource(flag.Arg(0), os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
	}

	if err := dump(os.Stdout, src, aurora.NewAurora(*color)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dump(w io.Writer, src string, au aurora.Aurora) error {
	fmt.Fprintf(w, "%s\n%s\n", au.Bold("Source"), src)

	// Lex
	tokens, err := compiler.Lex(src)
	if err != nil {
		return fmt.Errorf("lex error: %v", err)
	}

	fmt.Fprintf(w, "%s (%d)\n", au.Bold("Tokens"), len(tokens))
	for _, tok := range tokens {
		fmt.Fprintln(w, " ", tok)
	}
	fmt.Fprintln(w)

	// Parse
	prog, err := compiler.Parse(tokens, src)
	if err != nil {
		return fmt.Errorf("parse error: %v", err)
	}

	fmt.Fprintln(w, au.Bold("AST"))
	for _, s := range prog.Stmts {
		fmt.Fprintln(w, " ", au.Cyan(s))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, au.Bold("AST (full)"))
	dumpConfig.Fdump(w, prog.Stmts)
	fmt.Fprintln(w)

	fmt.Fprint(w, compiler.FormatLocals(prog.Locals))
	fmt.Fprintln(w)

	// Code generation
	lines, err := compiler.Generate(prog)
	if err != nil {
		return fmt.Errorf("codegen error: %v", err)
	}

	fmt.Fprintln(w, au.Bold("Generated Assembly"))
	fmt.Fprint(w, listing.Format(lines, au))
	return nil
}
