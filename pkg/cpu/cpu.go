// Package cpu executes assembled programs on a small model of an x86-64
// core: eight 64-bit registers, the zero/sign/overflow flags and a
// downward-growing stack in byte-addressed memory.
package cpu

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"stackcc/pkg/asm"
)

const (
	// StackSize is the number of bytes of addressable memory.
	StackSize = 64 * 1024

	// DefaultStepLimit bounds Run when StepLimit is zero.
	DefaultStepLimit = 1_000_000

	// HaltAddress is the return address pushed before entry. Returning to it
	// stops the machine.
	HaltAddress int64 = -1
)

var (
	ErrStepLimit = errors.New("step limit exceeded")
	ErrDivide    = errors.New("divide error")
	ErrSegfault  = errors.New("memory access out of range")
	ErrNoProgram = errors.New("no program loaded")
	ErrPC        = errors.New("program counter out of range")
)

type CPU struct {
	Regs [asm.NumRegs]int64

	PC int

	Z bool // zero
	S bool // sign
	O bool // overflow

	Memory []byte

	Halted bool
	Steps  int

	// StepLimit caps Run; zero means DefaultStepLimit.
	StepLimit int

	// Trace, when set, receives one line per executed instruction.
	Trace io.Writer

	prog *asm.Program
}

func NewCPU() *CPU {
	return &CPU{Memory: make([]byte, StackSize)}
}

// Load resets the machine and prepares prog for execution from its entry
// point, with HaltAddress as the return address on the stack.
func (c *CPU) Load(prog *asm.Program) error {
	if prog == nil {
		return ErrNoProgram
	}
	c.Reset()
	c.prog = prog
	c.PC = prog.Entry
	return c.push(HaltAddress)
}

// Reset clears registers, flags and memory. The loaded program is kept.
func (c *CPU) Reset() {
	c.Regs = [asm.NumRegs]int64{}
	c.Regs[asm.RSP] = int64(len(c.Memory))
	c.PC = 0
	c.Z, c.S, c.O = false, false, false
	for i := range c.Memory {
		c.Memory[i] = 0
	}
	c.Halted = false
	c.Steps = 0
}

// Program returns the loaded program, or nil.
func (c *CPU) Program() *asm.Program {
	return c.prog
}

// Result is the value the program returned in rax.
func (c *CPU) Result() int64 {
	return c.Regs[asm.RAX]
}

// Read64 loads the little-endian word at addr.
func (c *CPU) Read64(addr int64) (int64, error) {
	if addr < 0 || addr+8 > int64(len(c.Memory)) {
		return 0, errors.Wrapf(ErrSegfault, "read at %#x", addr)
	}
	return int64(binary.LittleEndian.Uint64(c.Memory[addr:])), nil
}

// Write64 stores val as a little-endian word at addr.
func (c *CPU) Write64(addr int64, val int64) error {
	if addr < 0 || addr+8 > int64(len(c.Memory)) {
		return errors.Wrapf(ErrSegfault, "write at %#x", addr)
	}
	binary.LittleEndian.PutUint64(c.Memory[addr:], uint64(val))
	return nil
}

func (c *CPU) push(val int64) error {
	sp := c.Regs[asm.RSP] - 8
	if err := c.Write64(sp, val); err != nil {
		return errors.Wrap(err, "stack overflow")
	}
	c.Regs[asm.RSP] = sp
	return nil
}

func (c *CPU) pop() (int64, error) {
	sp := c.Regs[asm.RSP]
	val, err := c.Read64(sp)
	if err != nil {
		return 0, errors.Wrap(err, "stack underflow")
	}
	c.Regs[asm.RSP] = sp + 8
	return val, nil
}

// value reads a register or immediate source operand.
func (c *CPU) value(o asm.Operand) int64 {
	if o.Kind == asm.KindImm {
		return o.Imm
	}
	return c.Regs[o.Reg]
}

// setFlags records the flags of a - b = res.
func (c *CPU) setFlags(a, b, res int64) {
	c.Z = res == 0
	c.S = res < 0
	c.O = (a^b)&(a^res) < 0
}

func (c *CPU) setByte(r asm.Reg, cond bool) {
	var b int64
	if cond {
		b = 1
	}
	c.Regs[r] = c.Regs[r]&^0xff | b
}

// Step executes one instruction.
func (c *CPU) Step() error {
	if c.Halted {
		return nil
	}
	if c.prog == nil {
		return ErrNoProgram
	}
	if c.PC < 0 || c.PC >= len(c.prog.Instructions) {
		return errors.Wrapf(ErrPC, "pc=%d", c.PC)
	}

	in := c.prog.Instructions[c.PC]
	if c.Trace != nil {
		fmt.Fprintf(c.Trace, "%5d  %-4d %s\n", c.Steps, c.PC, in)
	}
	c.PC++
	c.Steps++

	if err := c.exec(in); err != nil {
		return errors.Wrapf(err, "line %d: %s", in.Line, in)
	}
	return nil
}

func (c *CPU) exec(in asm.Instruction) error {
	args := in.Args
	switch in.Op {
	case "push":
		return c.push(c.value(args[0]))

	case "pop":
		v, err := c.pop()
		if err != nil {
			return err
		}
		c.Regs[args[0].Reg] = v

	case "mov":
		dst, src := args[0], args[1]
		switch {
		case dst.Kind == asm.KindMem:
			return c.Write64(c.Regs[dst.Reg], c.Regs[src.Reg])
		case src.Kind == asm.KindMem:
			v, err := c.Read64(c.Regs[src.Reg])
			if err != nil {
				return err
			}
			c.Regs[dst.Reg] = v
		default:
			c.Regs[dst.Reg] = c.value(src)
		}

	case "movzb":
		c.Regs[args[0].Reg] = c.Regs[args[1].Reg] & 0xff

	case "add":
		a, b := c.Regs[args[0].Reg], c.value(args[1])
		res := a + b
		c.Z = res == 0
		c.S = res < 0
		c.O = (a^res)&(b^res) < 0
		c.Regs[args[0].Reg] = res

	case "sub":
		a, b := c.Regs[args[0].Reg], c.value(args[1])
		res := a - b
		c.setFlags(a, b, res)
		c.Regs[args[0].Reg] = res

	case "imul":
		c.Regs[args[0].Reg] *= c.value(args[1])

	case "cmp":
		a, b := c.Regs[args[0].Reg], c.value(args[1])
		c.setFlags(a, b, a-b)

	case "cqo":
		c.Regs[asm.RDX] = c.Regs[asm.RAX] >> 63

	case "idiv":
		return c.idiv(c.Regs[args[0].Reg])

	case "sete":
		c.setByte(args[0].Reg, c.Z)
	case "setne":
		c.setByte(args[0].Reg, !c.Z)
	case "setl":
		c.setByte(args[0].Reg, c.S != c.O)
	case "setle":
		c.setByte(args[0].Reg, c.Z || c.S != c.O)
	case "setg":
		c.setByte(args[0].Reg, !c.Z && c.S == c.O)
	case "setge":
		c.setByte(args[0].Reg, c.S == c.O)

	case "je":
		if c.Z {
			c.PC = args[0].Target
		}
	case "jne":
		if !c.Z {
			c.PC = args[0].Target
		}
	case "jmp":
		c.PC = args[0].Target

	case "ret":
		addr, err := c.pop()
		if err != nil {
			return err
		}
		if addr == HaltAddress {
			c.Halted = true
			return nil
		}
		c.PC = int(addr)

	default:
		return errors.Errorf("unsupported instruction %q", in.Op)
	}
	return nil
}

// idiv divides rdx:rax by d. Only dividends that fit in rax are supported,
// which is always the case after cqo.
func (c *CPU) idiv(d int64) error {
	rax, rdx := c.Regs[asm.RAX], c.Regs[asm.RDX]
	if d == 0 {
		return errors.Wrap(ErrDivide, "division by zero")
	}
	if rdx != rax>>63 {
		return errors.Wrap(ErrDivide, "dividend does not fit in rax")
	}
	if d == -1 && rax == -1<<63 {
		return errors.Wrap(ErrDivide, "quotient overflow")
	}
	c.Regs[asm.RAX] = rax / d
	c.Regs[asm.RDX] = rax % d
	return nil
}

// Run steps until the program returns to HaltAddress and reports rax.
func (c *CPU) Run() (int64, error) {
	limit := c.StepLimit
	if limit <= 0 {
		limit = DefaultStepLimit
	}
	for !c.Halted {
		if c.Steps >= limit {
			return 0, errors.Wrapf(ErrStepLimit, "after %d steps", c.Steps)
		}
		if err := c.Step(); err != nil {
			return 0, err
		}
	}
	return c.Result(), nil
}

// Execute assembles code, loads it into a fresh CPU and runs it.
func Execute(code string, stepLimit int) (int64, error) {
	prog, err := asm.Assemble(code)
	if err != nil {
		return 0, errors.Wrap(err, "assemble")
	}
	c := NewCPU()
	c.StepLimit = stepLimit
	if err := c.Load(prog); err != nil {
		return 0, err
	}
	return c.Run()
}
