package compiler

import "fmt"

//  Expression nodes

// Expr is implemented by every node that produces a value.
// genExpr always leaves exactly one value on the stack.
type Expr interface {
	exprNode()
	String() string
}

// Number is an integer constant.
//
//	x = 10;
//	    ^^  Number{Value: 10}
type Number struct {
	Value int64
}

func (*Number) exprNode()        {}
func (n *Number) String() string { return fmt.Sprintf("%d", n.Value) }

// LocalVar is a read of a named variable. Offset is fixed by the parser.
//
//	return x;
//	       ^  LocalVar{Name: "x", Offset: 0}
type LocalVar struct {
	Name   string
	Offset int
}

func (*LocalVar) exprNode() {}
func (v *LocalVar) String() string {
	return fmt.Sprintf("%s@%d", v.Name, v.Offset)
}

// BinOp is the operator of a BinaryExpr. There is no greater-than: the
// parser swaps the operands of > and >= into Lt and Le.
type BinOp int

const (
	Eq BinOp = iota // ==
	Ne              // !=
	Lt              // <
	Le              // <=
	Add             // +
	Sub             // -
	Mul             // *
	Div             // /
)

var binOpNames = [...]string{
	Eq:  "==",
	Ne:  "!=",
	Lt:  "<",
	Le:  "<=",
	Add: "+",
	Sub: "-",
	Mul: "*",
	Div: "/",
}

func (op BinOp) String() string {
	if int(op) >= 0 && int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return fmt.Sprintf("BinOp(%d)", int(op))
}

// BinaryExpr represents a binary operation: Left Op Right.
//
//	x + 1
//	^ ^ ^
//	| | |
//	| | Right
//	| Op
//	Left
type BinaryExpr struct {
	Op    BinOp
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// AssignExpr represents Target = Value. It yields the stored value, so
// a = b = 5 nests to the right.
type AssignExpr struct {
	Target *LocalVar
	Value  Expr
}

func (*AssignExpr) exprNode() {}
func (a *AssignExpr) String() string {
	return fmt.Sprintf("(%s = %s)", a.Target, a.Value)
}

//  Statement nodes

// Stmt is implemented by every statement node.
type Stmt interface {
	stmtNode()
	String() string
}

// ExprStmt is an expression followed by ';'.
type ExprStmt struct {
	Expr Expr
}

func (*ExprStmt) stmtNode() {}
func (e *ExprStmt) String() string {
	return fmt.Sprintf("ExprStmt(%s)", e.Expr)
}

// ReturnStmt represents  return expr;
type ReturnStmt struct {
	Expr Expr
}

func (*ReturnStmt) stmtNode() {}
func (r *ReturnStmt) String() string {
	return fmt.Sprintf("ReturnStmt(%s)", r.Expr)
}

// BlockStmt represents { statement; ... }
type BlockStmt struct {
	Stmts []Stmt
}

func (*BlockStmt) stmtNode() {}
func (b *BlockStmt) String() string {
	return fmt.Sprintf("BlockStmt(len=%d)", len(b.Stmts))
}

// IfStmt represents if (cond) then [else else]
type IfStmt struct {
	Cond Expr
	Then Stmt
	Else Stmt // may be nil
}

func (*IfStmt) stmtNode() {}
func (i *IfStmt) String() string {
	if i.Else != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", i.Cond, i.Then, i.Else)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", i.Cond, i.Then)
}

// WhileStmt represents while (cond) body
type WhileStmt struct {
	Cond Expr
	Body Stmt
}

func (*WhileStmt) stmtNode() {}
func (w *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", w.Cond, w.Body)
}

// ForStmt represents for (init; cond; step) body. Any clause may be nil;
// a nil Cond loops until a return leaves the program.
type ForStmt struct {
	Init Expr
	Cond Expr
	Step Expr
	Body Stmt
}

func (*ForStmt) stmtNode() {}
func (f *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%v, cond=%v, step=%v, body=%s)", f.Init, f.Cond, f.Step, f.Body)
}

// Program is the parser's result: the top-level statements in source order
// and the frame slots they reference.
type Program struct {
	Stmts  []Stmt
	Locals []Local
}
