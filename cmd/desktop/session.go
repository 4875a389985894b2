package main

import (
	"github.com/pkg/errors"

	"stackcc/pkg/asm"
	"stackcc/pkg/compiler"
	"stackcc/pkg/cpu"
)

// maxHistory bounds how far the stepper can rewind.
const maxHistory = 256

// Session owns one compiled program and the emulator stepping through it.
type Session struct {
	Source   string
	Assembly []string
	Program  *asm.Program
	VM       *cpu.CPU

	history []cpu.State
	err     error
}

// NewSession compiles src and loads it, ready for the first step.
func NewSession(src string, stepLimit int) (*Session, error) {
	lines, err := compiler.Compile(src)
	if err != nil {
		return nil, err
	}
	prog, err := asm.Assemble(compiler.Join(lines))
	if err != nil {
		return nil, errors.Wrap(err, "assemble")
	}

	vm := cpu.NewCPU()
	vm.StepLimit = stepLimit
	if err := vm.Load(prog); err != nil {
		return nil, err
	}
	return &Session{Source: src, Assembly: lines, Program: prog, VM: vm}, nil
}

// Err is the fault that stopped the program, if any.
func (s *Session) Err() error {
	return s.err
}

// Done reports whether the program halted or faulted.
func (s *Session) Done() bool {
	return s.VM.Halted || s.err != nil
}

// Step executes one instruction, remembering the state before it.
func (s *Session) Step() {
	if s.Done() {
		return
	}
	if len(s.history) == maxHistory {
		s.history = s.history[1:]
	}
	s.history = append(s.history, s.VM.Snapshot())
	s.step()
}

// StepN runs up to n instructions and stops early when the program ends.
// Free running is not recorded, so it also forgets earlier history.
func (s *Session) StepN(n int) {
	s.history = s.history[:0]
	for i := 0; i < n && !s.Done(); i++ {
		s.step()
	}
}

func (s *Session) step() {
	limit := s.VM.StepLimit
	if limit <= 0 {
		limit = cpu.DefaultStepLimit
	}
	if s.VM.Steps >= limit {
		s.err = errors.Wrapf(cpu.ErrStepLimit, "after %d steps", s.VM.Steps)
		return
	}
	s.err = s.VM.Step()
}

// History is the number of steps Back can undo.
func (s *Session) History() int {
	return len(s.history)
}

// Back undoes the most recent Step. It reports false when there is nothing
// to undo.
func (s *Session) Back() bool {
	if len(s.history) == 0 {
		return false
	}
	last := len(s.history) - 1
	s.VM.Restore(s.history[last])
	s.history = s.history[:last]
	s.err = nil
	return true
}

// Reset reloads the program from its entry point.
func (s *Session) Reset() {
	s.history = s.history[:0]
	s.err = s.VM.Load(s.Program)
}

// CurrentLine is the 0-based index into Assembly of the next instruction,
// or -1 once the program has finished.
func (s *Session) CurrentLine() int {
	if s.Program == nil || s.VM.Halted || s.VM.PC < 0 || s.VM.PC >= len(s.Program.Instructions) {
		return -1
	}
	return s.Program.Instructions[s.VM.PC].Line - 1
}
