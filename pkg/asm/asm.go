// Package asm reads the Intel-syntax assembly emitted by the compiler back
// into a resolved instruction list that the cpu package can execute.
//
// Only the subset the code generator produces is accepted: the
// .intel_syntax and .globl directives, labels, and the stack-machine
// instructions listed in the shapes table below.
package asm

import (
	"fmt"
	"math"
	"strings"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
)

// LexerRegex tokenizes a single line of assembly. Unnamed groups are skipped.
const LexerRegex = `(\s+)|` +
	`(?P<Comment>#[^\n]*)|` +
	`(?P<Ident>[.A-Za-z_][A-Za-z0-9_.]*)|` +
	`(?P<Int>-?\d+)|` +
	`(?P<Punct>[\[\],:])`

// line is the grammar of one non-blank source line: either "name:" or a
// mnemonic (or directive) followed by comma separated operands. A label
// carrying operands parses but is rejected by pass1.
type line struct {
	Pos lexer.Position

	Name     string     `@Ident`
	Label    bool       `[ @":" ]`
	Operands []*operand `[ @@ { "," @@ } ]`
}

type operand struct {
	Pos lexer.Position

	Mem *string `  "[" @Ident "]"`
	Imm *int64  `| @Int`
	Sym *string `| @Ident`
}

var lineParser = participle.MustBuild(
	&line{},
	participle.Lexer(lexer.Must(lexer.Regexp(LexerRegex))),
	participle.Elide("Comment"),
)

// Reg names one of the 64-bit general purpose registers the emulator models.
type Reg int

const (
	RAX Reg = iota
	RBX
	RCX
	RDX
	RSI
	RDI
	RBP
	RSP
	NumRegs
)

var regNames = [...]string{
	RAX: "rax",
	RBX: "rbx",
	RCX: "rcx",
	RDX: "rdx",
	RSI: "rsi",
	RDI: "rdi",
	RBP: "rbp",
	RSP: "rsp",
}

func (r Reg) String() string {
	if r >= 0 && r < NumRegs {
		return regNames[r]
	}
	return fmt.Sprintf("Reg(%d)", int(r))
}

// byteRegs maps the low-byte register names onto their 64-bit parents.
var byteRegs = map[string]Reg{
	"al": RAX,
	"bl": RBX,
	"cl": RCX,
	"dl": RDX,
}

func lookupReg(name string) (Reg, bool) {
	for i, n := range regNames {
		if n == name {
			return Reg(i), true
		}
	}
	return 0, false
}

// Kind classifies an operand.
type Kind int

const (
	KindReg   Kind = iota // rax
	KindReg8              // al
	KindMem               // [rax]
	KindImm               // 42
	KindLabel             // .Lend0
)

func (k Kind) String() string {
	switch k {
	case KindReg:
		return "reg"
	case KindReg8:
		return "reg8"
	case KindMem:
		return "mem"
	case KindImm:
		return "imm"
	case KindLabel:
		return "label"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Operand is one resolved instruction operand. Reg is set for register and
// memory operands, Imm for immediates, Label and Target for jump targets.
type Operand struct {
	Kind   Kind
	Reg    Reg
	Imm    int64
	Label  string
	Target int // instruction index of Label
}

func (o Operand) String() string {
	switch o.Kind {
	case KindReg:
		return o.Reg.String()
	case KindReg8:
		for name, r := range byteRegs {
			if r == o.Reg {
				return name
			}
		}
	case KindMem:
		return "[" + o.Reg.String() + "]"
	case KindImm:
		return fmt.Sprintf("%d", o.Imm)
	case KindLabel:
		return o.Label
	}
	return "?"
}

// Instruction is a single executable line.
type Instruction struct {
	Op   string
	Args []Operand
	Line int // 1-based source line
}

func (in Instruction) String() string {
	if len(in.Args) == 0 {
		return in.Op
	}
	args := make([]string, len(in.Args))
	for i, a := range in.Args {
		args[i] = a.String()
	}
	return in.Op + " " + strings.Join(args, ", ")
}

// Program is an assembled listing. Labels map to the index of the
// instruction that follows them.
type Program struct {
	Instructions []Instruction
	Labels       map[string]int
	Globals      []string
	Entry        int
	Source       []string // raw source lines, for listings
}

// SourceLine returns the raw text behind instruction pc, or "" if pc is out
// of range.
func (p *Program) SourceLine(pc int) string {
	if pc < 0 || pc >= len(p.Instructions) {
		return ""
	}
	n := p.Instructions[pc].Line
	if n <= 0 || n > len(p.Source) {
		return ""
	}
	return strings.TrimSpace(p.Source[n-1])
}

// Error reports a problem on a specific source line.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func errorf(lineNo int, format string, args ...any) error {
	return &Error{Line: lineNo, Msg: fmt.Sprintf(format, args...)}
}

// shape is an accepted operand layout for a mnemonic.
type shape []Kind

// shapes lists every instruction the assembler accepts.
var shapes = map[string][]shape{
	"push":  {{KindReg}, {KindImm}},
	"pop":   {{KindReg}},
	"mov":   {{KindReg, KindReg}, {KindReg, KindImm}, {KindReg, KindMem}, {KindMem, KindReg}},
	"movzb": {{KindReg, KindReg8}},
	"add":   {{KindReg, KindReg}, {KindReg, KindImm}},
	"sub":   {{KindReg, KindReg}, {KindReg, KindImm}},
	"imul":  {{KindReg, KindReg}, {KindReg, KindImm}},
	"cmp":   {{KindReg, KindReg}, {KindReg, KindImm}},
	"cqo":   {{}},
	"idiv":  {{KindReg}},
	"sete":  {{KindReg8}},
	"setne": {{KindReg8}},
	"setl":  {{KindReg8}},
	"setle": {{KindReg8}},
	"setg":  {{KindReg8}},
	"setge": {{KindReg8}},
	"je":    {{KindLabel}},
	"jne":   {{KindLabel}},
	"jmp":   {{KindLabel}},
	"ret":   {{}},
}

// IsInstruction reports whether op is a mnemonic the assembler accepts.
func IsInstruction(op string) bool {
	_, ok := shapes[op]
	return ok
}

type Assembler struct {
	labels map[string]int
}

func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[string]int)}
}

// Assemble parses and resolves code in a fresh Assembler.
func Assemble(code string) (*Program, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) (*Program, error) {
	source := strings.Split(code, "\n")
	parsed, err := parseLines(source)
	if err != nil {
		return nil, err
	}

	if err := a.pass1(parsed); err != nil {
		return nil, err
	}

	prog, err := a.pass2(parsed)
	if err != nil {
		return nil, err
	}
	prog.Source = source
	return prog, nil
}

type parsedLine struct {
	lineNo int
	ast    *line
}

// parseLines runs the grammar over every non-blank line.
func parseLines(source []string) ([]parsedLine, error) {
	var out []parsedLine
	for i, raw := range source {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		l := &line{}
		if err := lineParser.ParseString(trimmed, l); err != nil {
			return nil, errorf(lineNo, "%v", err)
		}
		out = append(out, parsedLine{lineNo: lineNo, ast: l})
	}
	return out, nil
}

// pass1 records the instruction index of every label.
func (a *Assembler) pass1(lines []parsedLine) error {
	index := 0
	for _, p := range lines {
		switch {
		case p.ast.Label:
			if len(p.ast.Operands) > 0 {
				return errorf(p.lineNo, "unexpected operands after label %q", p.ast.Name)
			}
			if _, exists := a.labels[p.ast.Name]; exists {
				return errorf(p.lineNo, "duplicate label %q", p.ast.Name)
			}
			a.labels[p.ast.Name] = index
		case isDirective(p.ast.Name):
		default:
			index++
		}
	}
	return nil
}

// pass2 resolves operands and checks them against the shapes table.
func (a *Assembler) pass2(lines []parsedLine) (*Program, error) {
	prog := &Program{Labels: a.labels}

	for _, p := range lines {
		if p.ast.Label {
			continue
		}
		if isDirective(p.ast.Name) {
			if err := a.directive(prog, p); err != nil {
				return nil, err
			}
			continue
		}

		op := strings.ToLower(p.ast.Name)
		allowed, ok := shapes[op]
		if !ok {
			return nil, errorf(p.lineNo, "unknown instruction %q", p.ast.Name)
		}

		args := make([]Operand, 0, len(p.ast.Operands))
		for _, raw := range p.ast.Operands {
			o, err := a.resolve(raw, p.lineNo)
			if err != nil {
				return nil, err
			}
			args = append(args, o)
		}
		if !matchesAny(args, allowed) {
			return nil, errorf(p.lineNo, "invalid operands for %s: %s", op, describe(args))
		}
		if err := checkImmediates(op, args, p.lineNo); err != nil {
			return nil, err
		}

		prog.Instructions = append(prog.Instructions, Instruction{Op: op, Args: args, Line: p.lineNo})
	}

	prog.Entry = 0
	for _, g := range prog.Globals {
		if idx, ok := prog.Labels[g]; ok {
			prog.Entry = idx
			break
		}
	}
	return prog, nil
}

func isDirective(name string) bool {
	return strings.HasPrefix(name, ".") && !strings.HasPrefix(name, ".L")
}

func (a *Assembler) directive(prog *Program, p parsedLine) error {
	switch p.ast.Name {
	case ".intel_syntax":
		if len(p.ast.Operands) == 1 && symbol(p.ast.Operands[0]) == "noprefix" {
			return nil
		}
		return errorf(p.lineNo, ".intel_syntax expects noprefix")
	case ".globl", ".global":
		if len(p.ast.Operands) != 1 || symbol(p.ast.Operands[0]) == "" {
			return errorf(p.lineNo, "%s expects one symbol", p.ast.Name)
		}
		name := symbol(p.ast.Operands[0])
		if _, ok := a.labels[name]; !ok {
			return errorf(p.lineNo, "undefined global %q", name)
		}
		prog.Globals = append(prog.Globals, name)
		return nil
	case ".text":
		return nil
	}
	return errorf(p.lineNo, "unknown directive %q", p.ast.Name)
}

func symbol(o *operand) string {
	if o.Sym == nil {
		return ""
	}
	return *o.Sym
}

func (a *Assembler) resolve(raw *operand, lineNo int) (Operand, error) {
	switch {
	case raw.Mem != nil:
		r, ok := lookupReg(*raw.Mem)
		if !ok {
			return Operand{}, errorf(lineNo, "invalid base register %q", *raw.Mem)
		}
		return Operand{Kind: KindMem, Reg: r}, nil

	case raw.Imm != nil:
		return Operand{Kind: KindImm, Imm: *raw.Imm}, nil

	case raw.Sym != nil:
		name := *raw.Sym
		if r, ok := lookupReg(name); ok {
			return Operand{Kind: KindReg, Reg: r}, nil
		}
		if r, ok := byteRegs[name]; ok {
			return Operand{Kind: KindReg8, Reg: r}, nil
		}
		target, ok := a.labels[name]
		if !ok {
			return Operand{}, errorf(lineNo, "undefined label %q", name)
		}
		return Operand{Kind: KindLabel, Label: name, Target: target}, nil
	}
	return Operand{}, errorf(lineNo, "empty operand")
}

func matchesAny(args []Operand, allowed []shape) bool {
	for _, s := range allowed {
		if len(s) != len(args) {
			continue
		}
		ok := true
		for i, k := range s {
			if args[i].Kind != k {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// checkImmediates enforces the sign-extended imm32 encoding every
// instruction except mov uses.
func checkImmediates(op string, args []Operand, lineNo int) error {
	if op == "mov" {
		return nil
	}
	for _, a := range args {
		if a.Kind == KindImm && (a.Imm < math.MinInt32 || a.Imm > math.MaxInt32) {
			return errorf(lineNo, "immediate %d out of range for %s", a.Imm, op)
		}
	}
	return nil
}

func describe(args []Operand) string {
	if len(args) == 0 {
		return "none"
	}
	kinds := make([]string, len(args))
	for i, a := range args {
		kinds[i] = a.Kind.String()
	}
	return strings.Join(kinds, ", ")
}
