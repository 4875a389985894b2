package cpu

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"stackcc/pkg/asm"
)

// load assembles code into a fresh CPU ready to run.
func load(t *testing.T, code string) *CPU {
	t.Helper()
	prog, err := asm.Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v\nCode:\n%s", err, code)
	}
	c := NewCPU()
	if err := c.Load(prog); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return c
}

func run(t *testing.T, code string) int64 {
	t.Helper()
	c := load(t, code)
	got, err := c.Run()
	if err != nil {
		t.Fatalf("Run failed: %v\nCode:\n%s", err, code)
	}
	return got
}

func TestLoadPushesHaltAddress(t *testing.T) {
	c := load(t, "ret\n")
	if got := c.Regs[asm.RSP]; got != StackSize-8 {
		t.Errorf("expected rsp %d, got %d", StackSize-8, got)
	}
	top, err := c.Read64(c.Regs[asm.RSP])
	if err != nil {
		t.Fatalf("Read64 failed: %v", err)
	}
	if top != HaltAddress {
		t.Errorf("expected halt address on stack, got %d", top)
	}
	if err := c.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if !c.Halted {
		t.Errorf("expected CPU to halt after ret")
	}
}

func TestALU(t *testing.T) {
	tests := []struct {
		name string
		code string
		want int64
	}{
		{"Add", "mov rax, 10\nmov rdi, 20\nadd rax, rdi\nret\n", 30},
		{"SubNegative", "mov rax, 3\nsub rax, 10\nret\n", -7},
		{"Imul", "mov rax, -6\nmov rdi, 7\nimul rax, rdi\nret\n", -42},
		{"Idiv", "mov rax, 7\nmov rdi, 2\ncqo\nidiv rdi\nret\n", 3},
		{"IdivTruncatesTowardZero", "mov rax, -7\nmov rdi, 2\ncqo\nidiv rdi\nret\n", -3},
		{"Remainder", "mov rax, -7\nmov rdi, 2\ncqo\nidiv rdi\nmov rax, rdx\nret\n", -1},
		{"Movzb", "mov rax, -1\nmovzb rax, al\nret\n", 255},
		{"PushPop", "push 5\npush 6\npop rax\npop rdi\nsub rax, rdi\nret\n", 1},
		{"Memory", "mov rax, rsp\nsub rax, 16\nmov rdi, 99\nmov [rax], rdi\nmov rax, [rax]\nret\n", 99},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := run(t, tc.code); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestCompareAndSet(t *testing.T) {
	tests := []struct {
		a, b int64
		op   string
		want int64
	}{
		{1, 1, "sete", 1},
		{1, 2, "sete", 0},
		{1, 2, "setne", 1},
		{1, 2, "setl", 1},
		{2, 1, "setl", 0},
		{2, 2, "setle", 1},
		{3, 2, "setle", 0},
		{-5, 3, "setl", 1},
		{3, -5, "setl", 0},
		{3, 2, "setg", 1},
		{2, 2, "setge", 1},
		// Overflowing subtraction still compares correctly.
		{-9223372036854775808, 1, "setl", 1},
		{9223372036854775807, -1, "setl", 0},
	}

	for _, tc := range tests {
		code := "mov rax, 0\n" +
			"mov rcx, " + strconv.FormatInt(tc.a, 10) + "\n" +
			"mov rdi, " + strconv.FormatInt(tc.b, 10) + "\n" +
			"cmp rcx, rdi\n" +
			tc.op + " al\n" +
			"movzb rax, al\n" +
			"ret\n"
		if got := run(t, code); got != tc.want {
			t.Errorf("%d %s %d: expected %d, got %d", tc.a, tc.op, tc.b, tc.want, got)
		}
	}
}

func TestJumps(t *testing.T) {
	// Sum 1..10 with a counted loop.
	code := `main:
  mov rax, 0
  mov rcx, 1
.Lbegin0:
  mov rdi, rcx
  cmp rdi, 11
  je .Lend0
  add rax, rcx
  add rcx, 1
  jmp .Lbegin0
.Lend0:
  ret
`
	if got := run(t, code); got != 55 {
		t.Errorf("expected 55, got %d", got)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{"DivideByZero", "mov rax, 1\nmov rdi, 0\ncqo\nidiv rdi\nret\n", ErrDivide},
		{"QuotientOverflow", "mov rax, -9223372036854775808\nmov rdi, -1\ncqo\nidiv rdi\nret\n", ErrDivide},
		{"InfiniteLoop", "a:\njmp a\n", ErrStepLimit},
		{"BadLoad", "mov rax, 0\nmov rax, [rax]\nmov rax, -8\nmov rax, [rax]\nret\n", ErrSegfault},
		{"FallOffEnd", "push 1\n", ErrPC},
		{"StackUnderflow", "pop rax\npop rax\n", ErrSegfault},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := load(t, tc.code)
			c.StepLimit = 100
			_, err := c.Run()
			if err == nil {
				t.Fatalf("expected error %v, got nil", tc.want)
			}
			if errors.Cause(err) != tc.want {
				t.Errorf("expected cause %v, got %v", tc.want, err)
			}
		})
	}
}

func TestStepWithoutProgram(t *testing.T) {
	c := NewCPU()
	if err := c.Step(); err != ErrNoProgram {
		t.Errorf("expected ErrNoProgram, got %v", err)
	}
	if err := c.Load(nil); err != ErrNoProgram {
		t.Errorf("Load(nil): expected ErrNoProgram, got %v", err)
	}
}

func TestTrace(t *testing.T) {
	c := load(t, "push 4\npop rax\nret\n")
	var buf bytes.Buffer
	c.Trace = &buf
	if _, err := c.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 trace lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "pop rax") {
		t.Errorf("expected second trace line to show pop rax, got %q", lines[1])
	}
}

func TestSnapshotRestore(t *testing.T) {
	c := load(t, "push 1\npush 2\npop rax\nret\n")
	if err := c.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	saved := c.Snapshot()

	if _, err := c.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if c.Result() != 2 {
		t.Fatalf("expected 2, got %d", c.Result())
	}

	c.Restore(saved)
	if c.Halted || c.PC != 1 || c.Steps != 1 {
		t.Errorf("expected restored pc=1 steps=1 running, got pc=%d steps=%d halted=%v", c.PC, c.Steps, c.Halted)
	}
	if got := c.StackWords(4); len(got) != 2 || got[0] != 1 || got[1] != HaltAddress {
		t.Errorf("expected stack [1 %d], got %v", HaltAddress, got)
	}
}

func TestExecute(t *testing.T) {
	got, err := Execute(".globl main\nmain:\n  push 41\n  pop rax\n  add rax, 1\n  ret\n", 0)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	if _, err := Execute("bogus\n", 0); err == nil {
		t.Errorf("expected assemble error")
	}
}
