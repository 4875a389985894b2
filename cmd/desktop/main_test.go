package main

import (
	"strings"
	"testing"

	"github.com/pkg/errors"

	"stackcc/pkg/cpu"
)

func newSession(t *testing.T, src string) *Session {
	t.Helper()
	s, err := NewSession(src, 10_000)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s
}

func TestSessionStepsToResult(t *testing.T) {
	s := newSession(t, "a = 2; a * 3;")

	if got := s.CurrentLine(); got < 0 || strings.TrimSpace(s.Assembly[got]) != "push rbp" {
		t.Fatalf("expected to start at push rbp, got line %d", got)
	}

	for i := 0; i < 1000 && !s.Done(); i++ {
		s.Step()
	}
	if s.Err() != nil {
		t.Fatalf("unexpected fault: %v", s.Err())
	}
	if !s.VM.Halted {
		t.Fatal("expected program to halt")
	}
	if s.VM.Result() != 6 {
		t.Errorf("expected 6, got %d", s.VM.Result())
	}
	if s.CurrentLine() != -1 {
		t.Errorf("expected no current line after halt, got %d", s.CurrentLine())
	}
}

func TestSessionBack(t *testing.T) {
	s := newSession(t, "1;")

	start := s.VM.Snapshot()
	s.Step()
	s.Step()
	if s.History() != 2 {
		t.Fatalf("expected 2 history entries, got %d", s.History())
	}

	if !s.Back() || !s.Back() {
		t.Fatal("expected two steps to undo")
	}
	if s.Back() {
		t.Error("expected nothing left to undo")
	}
	if s.VM.PC != start.PC || s.VM.Regs != start.Regs || s.VM.Steps != 0 {
		t.Errorf("expected initial state after undo, got pc=%d steps=%d", s.VM.PC, s.VM.Steps)
	}
}

func TestSessionStepNAndReset(t *testing.T) {
	s := newSession(t, "x = 0; for (i = 0; i < 10; i = i + 1) x = x + i; x;")

	s.Step()
	s.StepN(1_000_000)
	if !s.VM.Halted || s.VM.Result() != 45 {
		t.Fatalf("expected halt with 45, got halted=%t result=%d err=%v", s.VM.Halted, s.VM.Result(), s.Err())
	}
	if s.History() != 0 {
		t.Errorf("expected free run to clear history, got %d", s.History())
	}

	s.Reset()
	if s.Done() || s.VM.Steps != 0 || s.VM.PC != s.Program.Entry {
		t.Errorf("expected fresh machine after reset, got pc=%d steps=%d", s.VM.PC, s.VM.Steps)
	}
}

func TestSessionStepLimit(t *testing.T) {
	s := newSession(t, "for (;;) 1;")
	s.StepN(20_000)
	if errors.Cause(s.Err()) != cpu.ErrStepLimit {
		t.Fatalf("expected step limit fault, got %v", s.Err())
	}

	s.Reset()
	s.Step()
	if !s.Back() || s.Err() != nil {
		t.Errorf("expected Back after reset, err=%v", s.Err())
	}
}

func TestSessionResetReportsLoadError(t *testing.T) {
	s := newSession(t, "1;")
	s.Program = nil
	s.Reset()
	if errors.Cause(s.Err()) != cpu.ErrNoProgram {
		t.Fatalf("expected ErrNoProgram after reset, got %v", s.Err())
	}
	if !s.Done() {
		t.Error("expected a failed reset to stop the session")
	}
	if s.CurrentLine() != -1 {
		t.Errorf("expected no current line, got %d", s.CurrentLine())
	}
}

func TestSessionCompileError(t *testing.T) {
	if _, err := NewSession("a = ;", 100); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestVisibleWindow(t *testing.T) {
	tests := []struct {
		cur, total, rows, want int
	}{
		{-1, 100, 10, 0},
		{3, 100, 10, 0},
		{50, 100, 10, 45},
		{99, 100, 10, 90},
		{5, 8, 10, 0},
	}
	for _, tc := range tests {
		if got := visibleWindow(tc.cur, tc.total, tc.rows); got != tc.want {
			t.Errorf("visibleWindow(%d, %d, %d) = %d, want %d", tc.cur, tc.total, tc.rows, got, tc.want)
		}
	}
}
