package compiler

import (
	"testing"

	"github.com/pkg/errors"

	"stackcc/pkg/asm"
	"stackcc/pkg/cpu"
)

// runCode compiles source, assembles the listing and runs it on the
// emulator, returning the program's result.
func runCode(t *testing.T, source string) int64 {
	t.Helper()
	assembly, err := CompileText(source)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	prog, err := asm.Assemble(assembly)
	if err != nil {
		t.Fatalf("Assemble failed: %v\nAssembly:\n%s", err, assembly)
	}

	vm := cpu.NewCPU()
	vm.StepLimit = 2_000_000
	if err := vm.Load(prog); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	result, err := vm.Run()
	if err != nil {
		t.Fatalf("Run failed: %v\nAssembly:\n%s", err, assembly)
	}
	return result
}

func TestE2EArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want int64
	}{
		{"0;", 0},
		{"42;", 42},
		{"1+2*3;", 7},
		{"(1+2)*3;", 9},
		{"10-3-2;", 5},
		{"2*3+4*5;", 26},
		{"7/2;", 3},
		{"(1+1)/2;", 1},
		{"100/10/5;", 2},
		{"-7/2;", -3},
		{"-5+3;", -2},
		{"-(3+4);", -7},
		{"+5;", 5},
		{"5*-2;", -10},
		{"9223372036854775807+1;", -9223372036854775808},
		{"3000000000;", 3000000000},
		{"-3000000000+1;", -2999999999},
		{"2147483647+2147483648;", 4294967295},
	}

	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			if got := runCode(t, tc.src); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestE2EComparisons(t *testing.T) {
	tests := []struct {
		src  string
		want int64
	}{
		{"1==1;", 1},
		{"1!=1;", 0},
		{"2<1;", 0},
		{"1<=1;", 1},
		{"1<2;", 1},
		{"2>1;", 1},
		{"1>2;", 0},
		{"2>=2;", 1},
		{"1>=2;", 0},
		{"-1<0;", 1},
		{"(1<2)+(2<3)+(3<4);", 3},
		{"1<2==1;", 1},
	}

	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			if got := runCode(t, tc.src); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestE2EVariables(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int64
	}{
		{"Sum", "a=1; b=2; a+b;", 3},
		{"ChainedAssign", "a=b=5; a+b;", 10},
		{"AssignIsValue", "a=(b=3)+1; a*b;", 12},
		{"Reassign", "x=1; x=x+1; x=x*10; x;", 20},
		{"FirstSlot", "a=7; a;", 7},
		{"ManyLocals", "a=1;b=2;c=3;d=4;e=5;f=6;g=7;h=8;i=9;j=10;k=11;l=12;m=13;n=14;o=15;p=16;q=17;r=18;s=19;t=20;u=21;v=22;w=23;x=24;y=25;z=26; a+z+m;", 40},
		{"UnsetIsZero", "a;", 0},
		{"LeftToRight", "a=1; (a=a+10) - (a=a*2);", -11},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := runCode(t, tc.src); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestE2EControlFlow(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int64
	}{
		{"While", "i=0; while(i<5) i=i+1; i;", 5},
		{"WhileNeverRuns", "i=9; while(i<5) i=i+1; i;", 9},
		{"For", "s=0; for(i=0;i<3;i=i+1) s=s+i; s;", 3},
		{"ForCountsIterations", "n=0; for(i=0;i<3;i=i+1) n=n+1; n;", 3},
		{"ForWithoutTest", "for(i=0;;i=i+1) { if(i==3) return i; }", 3},
		{"ForWithoutClauses", "i=0; for(;;) { i=i+1; if (i==4) return i*2; }", 8},
		{"IfTrue", "if (1) 10; else 20;", 10},
		{"IfFalse", "if (0) 10; else 20;", 20},
		{"IfNonzeroIsTrue", "if (-3) 1; else 2;", 1},
		{"IfWithoutElseFalse", "x=5; if (0) x=1; x;", 5},
		{"IfWithoutElseTrue", "x=5; if (x) x=1; x;", 1},
		{"DanglingElse", "x=0; if (1) if (0) x=1; else x=2; x;", 2},
		{"Block", "{ a=1; b=2; } a+b;", 3},
		{"EmptyBlock", "{} 7;", 7},
		{"ReturnEarly", "return 4; 5;", 4},
		{"ReturnInsideWhile", "i=0; while(1) { i=i+1; if (i>6) return i; }", 7},
		{"NestedLoops", "s=0; for(i=0;i<4;i=i+1) for(j=0;j<3;j=j+1) s=s+1; s;", 12},
		{"Fibonacci", "a=0; b=1; for(i=0;i<10;i=i+1) { t=a+b; a=b; b=t; } return a;", 55},
		{"Factorial", "n=5; r=1; while (n>1) { r=r*n; n=n-1; } r;", 120},
		{"StatementsAfterLoop", "i=0; while(i<3) i=i+1; j=i*2; j;", 6},
		{"LoopAsLastStatement", "i=0; while(i<3) i=i+1;", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := runCode(t, tc.src); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

// TestE2EStackBalanced runs a loop long enough that any per-iteration stack
// leak would overflow the emulator's stack.
func TestE2EStackBalanced(t *testing.T) {
	src := "s=0; for(i=0;i<10000;i=i+1) { if (i/2*2==i) s=s+1; } s;"
	if got := runCode(t, src); got != 5000 {
		t.Errorf("expected 5000, got %d", got)
	}
}

func TestE2EDivideByZero(t *testing.T) {
	assembly, err := CompileText("a=0; 1/a;")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	_, err = cpu.Execute(assembly, 0)
	if errors.Cause(err) != cpu.ErrDivide {
		t.Errorf("expected divide error, got %v", err)
	}
}

func TestE2EFailuresProduceNoOutput(t *testing.T) {
	for _, src := range []string{
		"(1+2;",
		"1+2",
		"1=2;",
		"a = 1 # 2;",
	} {
		lines, err := Compile(src)
		if err == nil {
			t.Errorf("%q: expected error", src)
		}
		if lines != nil {
			t.Errorf("%q: expected no output, got %d lines", src, len(lines))
		}
	}
}
