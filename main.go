package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"

	"stackcc/pkg/asm"
	"stackcc/pkg/compiler"
	"stackcc/pkg/cpu"
	"stackcc/pkg/listing"
	"stackcc/pkg/utils"
)

type options struct {
	in       string
	out      string
	run      bool
	steps    int
	color    bool
	trace    bool
	autoName bool
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "source file path (stdin when empty or -)")
	flag.StringVar(&opts.out, "out", "", "assembly output path (stdout when empty)")
	flag.BoolVar(&opts.autoName, "S", false, "write assembly next to the source with a .s extension")
	flag.BoolVar(&opts.run, "run", false, "run the compiled program on the emulator and print its result")
	flag.IntVar(&opts.steps, "steps", cpu.DefaultStepLimit, "emulator step limit for -run")
	flag.BoolVar(&opts.color, "color", false, "colourise the assembly listing on stdout")
	flag.BoolVar(&opts.trace, "trace", false, "print every executed instruction to stderr during -run")
	flag.Parse()

	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %v\n", flag.Args())
		flag.Usage()
		os.Exit(2)
	}
	if opts.autoName && (opts.in == "" || opts.in == "-") {
		fmt.Fprintln(os.Stderr, "-S requires -in <file>")
		os.Exit(2)
	}

	if err := run(opts, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	src, err := utils.ReadSource(opts.in, stdin)
	if err != nil {
		return err
	}

	lines, err := compiler.Compile(src)
	if err != nil {
		return errors.Wrap(err, "compilation failed")
	}
	text := compiler.Join(lines)

	out := opts.out
	if opts.autoName {
		out = utils.AssemblyPath(opts.in)
	}

	switch {
	case out != "":
		if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write assembly file %q", out)
		}
		fmt.Fprintf(stderr, "wrote %d lines -> %s\n", len(lines), out)
	case opts.color:
		fmt.Fprint(stdout, listing.Format(lines, aurora.NewAurora(true)))
	case !opts.run:
		fmt.Fprint(stdout, text)
	}

	if !opts.run {
		return nil
	}

	prog, err := asm.Assemble(text)
	if err != nil {
		return errors.Wrap(err, "assembly failed")
	}
	vm := cpu.NewCPU()
	vm.StepLimit = opts.steps
	if opts.trace {
		vm.Trace = stderr
	}
	if err := vm.Load(prog); err != nil {
		return err
	}
	result, err := vm.Run()
	if err != nil {
		return errors.Wrapf(err, "run failed after %d steps", vm.Steps)
	}
	fmt.Fprintln(stdout, result)
	return nil
}
