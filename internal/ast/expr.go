package ast

import "github.com/tuannm99/slatesql/internal/value"

// Expr is the root interface for expression nodes.
type Expr interface {
	exprNode()
}

type Literal struct {
	Value value.Value
}

// ColumnRef is an unresolved column reference; Table is empty when the
// reference is unqualified.
type ColumnRef struct {
	Table string
	Name  string
}

type BinaryOp uint8

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	default:
		return "?"
	}
}

type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

type UnaryOp uint8

const (
	OpNeg UnaryOp = iota
	OpNot
)

type UnaryExpr struct {
	Op   UnaryOp
	Expr Expr
}

// FuncCall covers scalar and aggregate functions; Star marks COUNT(*).
type FuncCall struct {
	Name string
	Args []Expr
	Star bool
}

type When struct {
	Cond   Expr
	Result Expr
}

// CaseExpr covers both simple CASE (Operand != nil) and searched CASE.
type CaseExpr struct {
	Operand Expr
	Whens   []When
	Else    Expr
}

type InExpr struct {
	Expr Expr
	List []Expr
	Not  bool
}

type BetweenExpr struct {
	Expr Expr
	Low  Expr
	High Expr
	Not  bool
}

type IsNullExpr struct {
	Expr Expr
	Not  bool
}

type LikeExpr struct {
	Expr    Expr
	Pattern Expr
	Not     bool
}

type CastExpr struct {
	Expr Expr
	Type string
}

func (*Literal) exprNode()     {}
func (*ColumnRef) exprNode()   {}
func (*BinaryExpr) exprNode()  {}
func (*UnaryExpr) exprNode()   {}
func (*FuncCall) exprNode()    {}
func (*CaseExpr) exprNode()    {}
func (*InExpr) exprNode()      {}
func (*BetweenExpr) exprNode() {}
func (*IsNullExpr) exprNode()  {}
func (*LikeExpr) exprNode()    {}
func (*CastExpr) exprNode()    {}
