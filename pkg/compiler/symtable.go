package compiler

import (
	"fmt"
	"strings"
)

// SlotSize is the number of bytes reserved for every variable.
const SlotSize = 8

// Local is a named stack slot as recorded by the symbol table.
type Local struct {
	Name   string
	Offset int
}

// SymbolTable maps variable names to frame offsets.
// Offsets are handed out in first-use order: 0, 8, 16, ... and never change
// once assigned. There is a single scope; nested blocks share it.
type SymbolTable struct {
	offsets map[string]int
	order   []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{offsets: make(map[string]int)}
}

// Allocate returns the offset bound to name, assigning the next free slot if
// name has not been seen. The bool reports whether name already existed.
func (s *SymbolTable) Allocate(name string) (int, bool) {
	if off, ok := s.offsets[name]; ok {
		return off, true
	}
	off := len(s.order) * SlotSize
	s.offsets[name] = off
	s.order = append(s.order, name)
	return off, false
}

// Lookup returns the offset and whether name was found.
func (s *SymbolTable) Lookup(name string) (int, bool) {
	off, ok := s.offsets[name]
	return off, ok
}

// Len returns the number of distinct names allocated so far.
func (s *SymbolTable) Len() int {
	return len(s.order)
}

// Locals returns every allocated slot in offset order.
func (s *SymbolTable) Locals() []Local {
	locals := make([]Local, 0, len(s.order))
	for _, name := range s.order {
		locals = append(locals, Local{Name: name, Offset: s.offsets[name]})
	}
	return locals
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	return FormatLocals(s.Locals())
}

// FormatLocals renders slots in the given order, one per line.
func FormatLocals(locals []Local) string {
	var sb strings.Builder
	if len(locals) == 0 {
		sb.WriteString("Locals: (empty)\n")
		return sb.String()
	}
	sb.WriteString("Locals:\n")
	for _, l := range locals {
		fmt.Fprintf(&sb, "  %-20s  Offset: %d\n", l.Name, l.Offset)
	}
	return sb.String()
}
