// Package eval holds bound expressions and their evaluation. Evaluation is
// pure: it only reads the row it is handed and never touches storage. All
// column references have been resolved to row positions by the planner.
package eval

import (
	"strings"
	"unicode/utf8"

	"github.com/tuannm99/slatesql/internal/ast"
	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/value"
)

// Expr is a bound, type-checked expression.
type Expr interface {
	Eval(row record.Row) (value.Value, error)
	Type() value.Type
}

// ---- literal ----

type Literal struct {
	Val value.Value
}

func (l *Literal) Eval(record.Row) (value.Value, error) { return l.Val, nil }
func (l *Literal) Type() value.Type                     { return l.Val.Type() }

// ---- column ----

// Column reads one position of the working row. Name is kept for error
// messages only.
type Column struct {
	Index int
	Name  string
	Typ   value.Type
}

func (c *Column) Eval(row record.Row) (value.Value, error) {
	if c.Index < 0 || c.Index >= len(row) {
		return nil, sqlerr.Evalf(sqlerr.CodeUnknown,
			"column %q: index %d out of range for row of width %d", c.Name, c.Index, len(row))
	}
	v := row[c.Index]
	if v == nil {
		return value.Nil, nil
	}
	return v, nil
}

func (c *Column) Type() value.Type { return c.Typ }

// ---- binary ----

type Binary struct {
	Op    ast.BinaryOp
	Left  Expr
	Right Expr
}

func (b *Binary) Type() value.Type {
	switch b.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		return numericResult(b.Left.Type(), b.Right.Type())
	default:
		return value.TypeBool
	}
}

func numericResult(a, b value.Type) value.Type {
	switch {
	case a == value.TypeDecimal || b == value.TypeDecimal:
		return value.TypeDecimal
	case a == value.TypeFloat || b == value.TypeFloat:
		return value.TypeFloat
	case a == value.TypeTimestamp || b == value.TypeTimestamp,
		a == value.TypeDate || b == value.TypeDate:
		return value.TypeTimestamp
	case a == value.TypeInterval && b == value.TypeInterval:
		return value.TypeInterval
	case a == value.TypeTime || b == value.TypeTime:
		return value.TypeTime
	default:
		return value.TypeInt
	}
}

func (b *Binary) Eval(row record.Row) (value.Value, error) {
	// AND/OR short-circuit under three-valued logic.
	switch b.Op {
	case ast.OpAnd, ast.OpOr:
		return b.evalLogic(row)
	}

	lv, err := b.Left.Eval(row)
	if err != nil {
		return nil, err
	}
	rv, err := b.Right.Eval(row)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case ast.OpAdd:
		return value.Add(lv, rv)
	case ast.OpSub:
		return value.Sub(lv, rv)
	case ast.OpMul:
		return value.Mul(lv, rv)
	case ast.OpDiv:
		return value.Div(lv, rv)
	case ast.OpMod:
		return value.Mod(lv, rv)
	}

	return compareValues(b.Op, lv, rv)
}

// compareValues implements =, <>, <, <=, >, >= with null => unknown.
func compareValues(op ast.BinaryOp, lv, rv value.Value) (value.Value, error) {
	lv, rv, err := coercePair(lv, rv)
	if err != nil {
		return nil, err
	}
	ord, ok, err := value.Compare(lv, rv)
	if err != nil {
		return nil, err
	}
	if !ok {
		return value.Nil, nil
	}
	switch op {
	case ast.OpEq:
		return value.Bool(ord == value.Equal), nil
	case ast.OpNe:
		return value.Bool(ord != value.Equal), nil
	case ast.OpLt:
		return value.Bool(ord == value.Less), nil
	case ast.OpLe:
		return value.Bool(ord != value.Greater), nil
	case ast.OpGt:
		return value.Bool(ord == value.Greater), nil
	default:
		return value.Bool(ord != value.Less), nil
	}
}

// coercePair lines up a text operand with a temporal or decimal partner so
// literals like '2024-01-01' compare against DATE columns.
func coercePair(a, b value.Value) (value.Value, value.Value, error) {
	if value.IsNull(a) || value.IsNull(b) || a.Type() == b.Type() {
		return a, b, nil
	}
	if a.Type() == value.TypeStr && value.CoercibleTo(value.TypeStr, b.Type()) {
		ca, err := value.Coerce(a, b.Type())
		if err != nil {
			return nil, nil, err
		}
		return ca, b, nil
	}
	if b.Type() == value.TypeStr && value.CoercibleTo(value.TypeStr, a.Type()) {
		cb, err := value.Coerce(b, a.Type())
		if err != nil {
			return nil, nil, err
		}
		return a, cb, nil
	}
	return a, b, nil
}

func (b *Binary) evalLogic(row record.Row) (value.Value, error) {
	lt, err := truthOf(b.Left, row)
	if err != nil {
		return nil, err
	}

	if b.Op == ast.OpAnd && lt == tvlFalse {
		return value.Bool(false), nil
	}
	if b.Op == ast.OpOr && lt == tvlTrue {
		return value.Bool(true), nil
	}

	rt, err := truthOf(b.Right, row)
	if err != nil {
		return nil, err
	}

	if b.Op == ast.OpAnd {
		switch {
		case rt == tvlFalse:
			return value.Bool(false), nil
		case lt == tvlTrue && rt == tvlTrue:
			return value.Bool(true), nil
		default:
			return value.Nil, nil
		}
	}
	switch {
	case rt == tvlTrue:
		return value.Bool(true), nil
	case lt == tvlFalse && rt == tvlFalse:
		return value.Bool(false), nil
	default:
		return value.Nil, nil
	}
}

// ---- unary ----

type Unary struct {
	Op   ast.UnaryOp
	Expr Expr
}

func (u *Unary) Type() value.Type {
	if u.Op == ast.OpNot {
		return value.TypeBool
	}
	return u.Expr.Type()
}

func (u *Unary) Eval(row record.Row) (value.Value, error) {
	v, err := u.Expr.Eval(row)
	if err != nil {
		return nil, err
	}
	if u.Op == ast.OpNeg {
		return value.Neg(v)
	}
	t, err := truth(v)
	if err != nil {
		return nil, err
	}
	switch t {
	case tvlTrue:
		return value.Bool(false), nil
	case tvlFalse:
		return value.Bool(true), nil
	default:
		return value.Nil, nil
	}
}

// ---- three-valued logic ----

type tvl uint8

const (
	tvlFalse tvl = iota
	tvlTrue
	tvlUnknown
)

func truth(v value.Value) (tvl, error) {
	if value.IsNull(v) {
		return tvlUnknown, nil
	}
	b, ok := v.(value.Bool)
	if !ok {
		return tvlFalse, sqlerr.Evalf(sqlerr.CodeTypeMismatch,
			"expected a boolean condition, got %s", v.Type())
	}
	if b {
		return tvlTrue, nil
	}
	return tvlFalse, nil
}

func truthOf(e Expr, row record.Row) (tvl, error) {
	v, err := e.Eval(row)
	if err != nil {
		return tvlUnknown, err
	}
	return truth(v)
}

// Passes reports whether a predicate result admits the row: only a true
// boolean does; false and unknown filter out.
func Passes(v value.Value) (bool, error) {
	t, err := truth(v)
	if err != nil {
		return false, err
	}
	return t == tvlTrue, nil
}

// ---- IS NULL ----

type IsNull struct {
	Expr Expr
	Not  bool
}

func (i *IsNull) Type() value.Type { return value.TypeBool }

func (i *IsNull) Eval(row record.Row) (value.Value, error) {
	v, err := i.Expr.Eval(row)
	if err != nil {
		return nil, err
	}
	isNull := value.IsNull(v)
	if i.Not {
		return value.Bool(!isNull), nil
	}
	return value.Bool(isNull), nil
}

// ---- IN ----

type In struct {
	Expr Expr
	List []Expr
	Not  bool
}

func (i *In) Type() value.Type { return value.TypeBool }

func (i *In) Eval(row record.Row) (value.Value, error) {
	needle, err := i.Expr.Eval(row)
	if err != nil {
		return nil, err
	}
	if value.IsNull(needle) {
		return value.Nil, nil
	}

	sawUnknown := false
	for _, el := range i.List {
		v, err := el.Eval(row)
		if err != nil {
			return nil, err
		}
		res, err := compareValues(ast.OpEq, needle, v)
		if err != nil {
			return nil, err
		}
		t, err := truth(res)
		if err != nil {
			return nil, err
		}
		switch t {
		case tvlTrue:
			return value.Bool(!i.Not), nil
		case tvlUnknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return value.Nil, nil
	}
	return value.Bool(i.Not), nil
}

// ---- BETWEEN ----

type Between struct {
	Expr Expr
	Low  Expr
	High Expr
	Not  bool
}

func (b *Between) Type() value.Type { return value.TypeBool }

func (b *Between) Eval(row record.Row) (value.Value, error) {
	lowCheck := &Binary{Op: ast.OpLe, Left: b.Low, Right: b.Expr}
	highCheck := &Binary{Op: ast.OpLe, Left: b.Expr, Right: b.High}
	both := &Binary{Op: ast.OpAnd, Left: lowCheck, Right: highCheck}

	v, err := both.Eval(row)
	if err != nil {
		return nil, err
	}
	if !b.Not {
		return v, nil
	}
	not := &Unary{Op: ast.OpNot, Expr: &Literal{Val: v}}
	return not.Eval(row)
}

// ---- LIKE ----

type Like struct {
	Expr    Expr
	Pattern Expr
	Not     bool
}

func (l *Like) Type() value.Type { return value.TypeBool }

func (l *Like) Eval(row record.Row) (value.Value, error) {
	sv, err := l.Expr.Eval(row)
	if err != nil {
		return nil, err
	}
	pv, err := l.Pattern.Eval(row)
	if err != nil {
		return nil, err
	}
	if value.IsNull(sv) || value.IsNull(pv) {
		return value.Nil, nil
	}
	s, okS := sv.(value.Str)
	p, okP := pv.(value.Str)
	if !okS || !okP {
		return nil, sqlerr.Evalf(sqlerr.CodeTypeMismatch,
			"LIKE requires text operands, got %s and %s", sv.Type(), pv.Type())
	}
	matched := matchLike(string(s), string(p))
	if l.Not {
		matched = !matched
	}
	return value.Bool(matched), nil
}

// matchLike implements SQL LIKE with % (any run) and _ (any single rune).
func matchLike(s, p string) bool {
	return likeMatch([]rune(s), []rune(p))
}

func likeMatch(s, p []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '%':
		for i := 0; ; i++ {
			if likeMatch(s[i:], p[1:]) {
				return true
			}
			if i >= len(s) {
				return false
			}
		}
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatch(s[1:], p[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return likeMatch(s[1:], p[1:])
	}
}

// ---- CASE ----

type Case struct {
	Operand Expr
	Whens   []When
	Else    Expr
	Typ     value.Type
}

type When struct {
	Cond   Expr
	Result Expr
}

func (c *Case) Type() value.Type { return c.Typ }

func (c *Case) Eval(row record.Row) (value.Value, error) {
	var operand value.Value
	if c.Operand != nil {
		v, err := c.Operand.Eval(row)
		if err != nil {
			return nil, err
		}
		operand = v
	}

	for _, w := range c.Whens {
		cond, err := w.Cond.Eval(row)
		if err != nil {
			return nil, err
		}
		if c.Operand != nil {
			cond, err = compareValues(ast.OpEq, operand, cond)
			if err != nil {
				return nil, err
			}
		}
		t, err := truth(cond)
		if err != nil {
			return nil, err
		}
		if t == tvlTrue {
			return w.Result.Eval(row)
		}
	}

	if c.Else != nil {
		return c.Else.Eval(row)
	}
	return value.Nil, nil
}

// ---- CAST ----

type Cast struct {
	Expr   Expr
	Target value.Type
}

func (c *Cast) Type() value.Type { return c.Target }

func (c *Cast) Eval(row record.Row) (value.Value, error) {
	v, err := c.Expr.Eval(row)
	if err != nil {
		return nil, err
	}
	return value.Cast(v, c.Target)
}

// ---- scalar functions ----

// Func is a bound scalar function call. Aggregate calls never reach here;
// the planner rewrites them into columns over the aggregation output.
type Func struct {
	Name string
	Args []Expr
}

func (f *Func) Type() value.Type {
	switch f.Name {
	case "UPPER", "LOWER":
		return value.TypeStr
	case "LENGTH":
		return value.TypeInt
	default:
		if len(f.Args) > 0 {
			return f.Args[0].Type()
		}
		return value.TypeNull
	}
}

func (f *Func) Eval(row record.Row) (value.Value, error) {
	args := make([]value.Value, len(f.Args))
	for i, a := range f.Args {
		v, err := a.Eval(row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch f.Name {
	case "UPPER":
		return textFunc(f.Name, args, strings.ToUpper)
	case "LOWER":
		return textFunc(f.Name, args, strings.ToLower)
	case "LENGTH":
		if err := wantArgs(f.Name, args, 1); err != nil {
			return nil, err
		}
		if value.IsNull(args[0]) {
			return value.Nil, nil
		}
		s, ok := args[0].(value.Str)
		if !ok {
			return nil, sqlerr.Evalf(sqlerr.CodeTypeMismatch,
				"LENGTH requires a text operand, got %s", args[0].Type())
		}
		return value.Int(utf8.RuneCountInString(string(s))), nil
	case "ABS":
		if err := wantArgs(f.Name, args, 1); err != nil {
			return nil, err
		}
		return value.AbsVal(args[0])
	case "COALESCE", "IFNULL":
		for _, v := range args {
			if !value.IsNull(v) {
				return v, nil
			}
		}
		return value.Nil, nil
	default:
		return nil, sqlerr.Evalf(sqlerr.CodeUnknownFunction, "unknown function %s", f.Name)
	}
}

func textFunc(name string, args []value.Value, fn func(string) string) (value.Value, error) {
	if err := wantArgs(name, args, 1); err != nil {
		return nil, err
	}
	if value.IsNull(args[0]) {
		return value.Nil, nil
	}
	s, ok := args[0].(value.Str)
	if !ok {
		return nil, sqlerr.Evalf(sqlerr.CodeTypeMismatch,
			"%s requires a text operand, got %s", name, args[0].Type())
	}
	return value.Str(fn(string(s))), nil
}

func wantArgs(name string, args []value.Value, n int) error {
	if len(args) != n {
		return sqlerr.Evalf(sqlerr.CodeBadArity,
			"%s expects %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

// IsScalarFunc reports whether name is a known scalar function.
func IsScalarFunc(name string) bool {
	switch name {
	case "UPPER", "LOWER", "LENGTH", "ABS", "COALESCE", "IFNULL":
		return true
	default:
		return false
	}
}
