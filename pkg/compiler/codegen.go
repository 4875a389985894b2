package compiler

import (
	"fmt"
	"math"
	"strings"
)

const (
	// MaxLocals is the number of variables the fixed frame can hold.
	MaxLocals = 26
	// FrameSize is the number of bytes the prologue reserves below rbp.
	FrameSize = MaxLocals * SlotSize

	// EntrySymbol is the label the generated routine is published under.
	EntrySymbol = "main"
)

// CodeGen walks an AST and emits Intel-syntax x86-64 assembly, one
// instruction or label per line.
//
// Every expression and every statement leaves exactly one value on the
// machine stack, except return, which leaves the routine.
type CodeGen struct {
	out       []string
	nextLabel int
}

func newCodeGen() *CodeGen {
	return &CodeGen{}
}

// newLabel reserves the index shared by one control construct's labels.
func (cg *CodeGen) newLabel() int {
	n := cg.nextLabel
	cg.nextLabel++
	return n
}

func (cg *CodeGen) line(format string, args ...any) {
	cg.out = append(cg.out, fmt.Sprintf(format, args...))
}

func (cg *CodeGen) errorf(format string, args ...any) error {
	return &Error{Kind: GenError, Msg: fmt.Sprintf(format, args...)}
}

// slot returns the displacement of a variable's slot below rbp. The word at
// rbp itself holds the caller's frame pointer, so slot 0 starts 8 bytes down.
func slot(offset int) int {
	return offset + SlotSize
}

// genAddress pushes the address of a variable.
func (cg *CodeGen) genAddress(v *LocalVar) error {
	if v.Offset < 0 || v.Offset%SlotSize != 0 || slot(v.Offset) > FrameSize {
		return cg.errorf("variable %q at offset %d lies outside the %d-byte frame", v.Name, v.Offset, FrameSize)
	}
	cg.line("  mov rax, rbp")
	cg.line("  sub rax, %d", slot(v.Offset))
	cg.line("  push rax")
	return nil
}

// genExpr emits code that pushes the value of e.
func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {

	case *Number:
		if n.Value >= math.MinInt32 && n.Value <= math.MaxInt32 {
			cg.line("  push %d", n.Value)
		} else {
			// push only takes a sign-extended imm32.
			cg.line("  mov rax, %d", n.Value)
			cg.line("  push rax")
		}

	case *LocalVar:
		if err := cg.genAddress(n); err != nil {
			return err
		}
		cg.line("  pop rax")
		cg.line("  mov rax, [rax]")
		cg.line("  push rax")

	case *AssignExpr:
		if n.Target == nil {
			return cg.errorf("assignment without a target")
		}
		if err := cg.genAddress(n.Target); err != nil {
			return err
		}
		if err := cg.genExpr(n.Value); err != nil {
			return err
		}
		cg.line("  pop rdi")
		cg.line("  pop rax")
		cg.line("  mov [rax], rdi")
		cg.line("  push rdi")

	case *BinaryExpr:
		// Left is always evaluated first.
		if err := cg.genExpr(n.Left); err != nil {
			return err
		}
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("  pop rdi")
		cg.line("  pop rax")
		if err := cg.genBinary(n.Op); err != nil {
			return err
		}
		cg.line("  push rax")

	case nil:
		return cg.errorf("missing expression")

	default:
		return cg.errorf("expression node %T not implemented", e)
	}
	return nil
}

// setcc maps a comparison to the instruction that stores its flag in al.
var setcc = map[BinOp]string{
	Eq: "sete",
	Ne: "setne",
	Lt: "setl",
	Le: "setle",
}

// genBinary combines rax (left) and rdi (right) into rax.
func (cg *CodeGen) genBinary(op BinOp) error {
	switch op {
	case Add:
		cg.line("  add rax, rdi")
	case Sub:
		cg.line("  sub rax, rdi")
	case Mul:
		cg.line("  imul rax, rdi")
	case Div:
		// rdx:rax / rdi; a zero divisor is not checked.
		cg.line("  cqo")
		cg.line("  idiv rdi")
	case Eq, Ne, Lt, Le:
		cg.line("  cmp rax, rdi")
		cg.line("  %s al", setcc[op])
		cg.line("  movzb rax, al")
	default:
		return cg.errorf("binary operator %s not implemented", op)
	}
	return nil
}

// genCond evaluates cond and jumps to target when it is zero.
func (cg *CodeGen) genCond(cond Expr, target string) error {
	if err := cg.genExpr(cond); err != nil {
		return err
	}
	cg.line("  pop rax")
	cg.line("  cmp rax, 0")
	cg.line("  je %s", target)
	return nil
}

// genDiscard evaluates e for its side effects only.
func (cg *CodeGen) genDiscard(e Expr) error {
	if e == nil {
		return nil
	}
	if err := cg.genExpr(e); err != nil {
		return err
	}
	cg.line("  pop rax")
	return nil
}

// genStmt emits code for s. On fall-through exactly one value is left on
// the stack: the expression's value, a block's last value, or 0 for loops
// and for an if whose condition was false and that has no else.
func (cg *CodeGen) genStmt(s Stmt) error {
	switch n := s.(type) {

	case *ExprStmt:
		return cg.genExpr(n.Expr)

	case *ReturnStmt:
		if err := cg.genExpr(n.Expr); err != nil {
			return err
		}
		cg.line("  pop rax")
		cg.epilogue()

	case *BlockStmt:
		if len(n.Stmts) == 0 {
			cg.line("  push 0")
			return nil
		}
		for i, stmt := range n.Stmts {
			if err := cg.genStmt(stmt); err != nil {
				return err
			}
			if i < len(n.Stmts)-1 {
				cg.line("  pop rax")
			}
		}

	case *IfStmt:
		seq := cg.newLabel()
		elseLabel := fmt.Sprintf(".Lelse%d", seq)
		endLabel := fmt.Sprintf(".Lend%d", seq)

		if err := cg.genCond(n.Cond, elseLabel); err != nil {
			return err
		}
		if err := cg.genStmt(n.Then); err != nil {
			return err
		}
		cg.line("  jmp %s", endLabel)
		cg.line("%s:", elseLabel)
		if n.Else != nil {
			if err := cg.genStmt(n.Else); err != nil {
				return err
			}
		} else {
			cg.line("  push 0")
		}
		cg.line("%s:", endLabel)

	case *WhileStmt:
		seq := cg.newLabel()
		beginLabel := fmt.Sprintf(".Lbegin%d", seq)
		endLabel := fmt.Sprintf(".Lend%d", seq)

		cg.line("%s:", beginLabel)
		if err := cg.genCond(n.Cond, endLabel); err != nil {
			return err
		}
		if err := cg.genStmt(n.Body); err != nil {
			return err
		}
		cg.line("  pop rax")
		cg.line("  jmp %s", beginLabel)
		cg.line("%s:", endLabel)
		cg.line("  push 0")

	case *ForStmt:
		seq := cg.newLabel()
		beginLabel := fmt.Sprintf(".Lbegin%d", seq)
		endLabel := fmt.Sprintf(".Lend%d", seq)

		if err := cg.genDiscard(n.Init); err != nil {
			return err
		}
		cg.line("%s:", beginLabel)
		if n.Cond != nil {
			if err := cg.genCond(n.Cond, endLabel); err != nil {
				return err
			}
		}
		if err := cg.genStmt(n.Body); err != nil {
			return err
		}
		cg.line("  pop rax")
		if err := cg.genDiscard(n.Step); err != nil {
			return err
		}
		cg.line("  jmp %s", beginLabel)
		cg.line("%s:", endLabel)
		cg.line("  push 0")

	case nil:
		return cg.errorf("missing statement")

	default:
		return cg.errorf("statement node %T not implemented", s)
	}
	return nil
}

func (cg *CodeGen) prologue() {
	cg.line("  push rbp")
	cg.line("  mov rbp, rsp")
	cg.line("  sub rsp, %d", FrameSize)
}

// epilogue restores the caller's frame and returns rax.
func (cg *CodeGen) epilogue() {
	cg.line("  mov rsp, rbp")
	cg.line("  pop rbp")
	cg.line("  ret")
}

// Generate lowers prog to assembly lines. On error no lines are returned.
func Generate(prog *Program) ([]string, error) {
	if prog == nil {
		return nil, &Error{Kind: GenError, Msg: "nil program"}
	}
	if len(prog.Locals) > MaxLocals {
		return nil, &Error{
			Kind: GenError,
			Msg:  fmt.Sprintf("%d variables exceed the %d-slot frame", len(prog.Locals), MaxLocals),
		}
	}

	cg := newCodeGen()
	cg.line(".intel_syntax noprefix")
	cg.line(".globl %s", EntrySymbol)
	cg.line("%s:", EntrySymbol)
	cg.prologue()

	for _, s := range prog.Stmts {
		if err := cg.genStmt(s); err != nil {
			return nil, err
		}
		// Drop the statement's value; the last one stays in rax as the result.
		cg.line("  pop rax")
	}

	cg.epilogue()
	return cg.out, nil
}

// Join renders generated lines as assembly source text.
func Join(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
