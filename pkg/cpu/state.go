package cpu

import "stackcc/pkg/asm"

// State is a copy of everything Step can change. The loaded program is
// shared, not copied.
type State struct {
	Regs    [asm.NumRegs]int64
	PC      int
	Z, S, O bool
	Memory  []byte
	Halted  bool
	Steps   int
}

// Snapshot captures the machine so it can be rolled back with Restore.
func (c *CPU) Snapshot() State {
	mem := make([]byte, len(c.Memory))
	copy(mem, c.Memory)
	return State{
		Regs:   c.Regs,
		PC:     c.PC,
		Z:      c.Z,
		S:      c.S,
		O:      c.O,
		Memory: mem,
		Halted: c.Halted,
		Steps:  c.Steps,
	}
}

// Restore puts the machine back into state s.
func (c *CPU) Restore(s State) {
	c.Regs = s.Regs
	c.PC = s.PC
	c.Z = s.Z
	c.S = s.S
	c.O = s.O
	if len(c.Memory) != len(s.Memory) {
		c.Memory = make([]byte, len(s.Memory))
	}
	copy(c.Memory, s.Memory)
	c.Halted = s.Halted
	c.Steps = s.Steps
}

// StackWords returns the words between rsp and the top of memory, nearest
// the stack pointer first.
func (c *CPU) StackWords(max int) []int64 {
	var out []int64
	for addr := c.Regs[asm.RSP]; addr+8 <= int64(len(c.Memory)) && len(out) < max; addr += 8 {
		v, err := c.Read64(addr)
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}
