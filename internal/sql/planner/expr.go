package planner

import (
	"reflect"

	"github.com/tuannm99/slatesql/internal/ast"
	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sql/eval"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/value"
)

// boundCol is one resolvable column of the working row.
type boundCol struct {
	table string // alias if the table is aliased
	name  string
	typ   value.Type
}

// scope maps column references to positions in the working row. Join scopes
// concatenate the left and right table columns in row order.
type scope struct {
	cols []boundCol
}

func scopeForTable(alias string, schema record.Schema) *scope {
	s := &scope{}
	s.addTable(alias, schema)
	return s
}

func (s *scope) addTable(alias string, schema record.Schema) {
	if alias == "" {
		alias = schema.Table
	}
	for _, c := range schema.Columns {
		s.cols = append(s.cols, boundCol{table: alias, name: c.Name, typ: c.Type})
	}
}

func (s *scope) hasTable(alias string) bool {
	for _, c := range s.cols {
		if c.table == alias {
			return true
		}
	}
	return false
}

// resolve finds the row position of a column reference. An unqualified name
// matching columns of more than one table is ambiguous.
func (s *scope) resolve(table, name string) (int, boundCol, error) {
	found := -1
	for i, c := range s.cols {
		if c.name != name {
			continue
		}
		if table != "" && c.table != table {
			continue
		}
		if found >= 0 {
			return 0, boundCol{}, sqlerr.Bindf(sqlerr.CodeAmbiguousColumn,
				"ambiguous column %q", name)
		}
		found = i
	}
	if found < 0 {
		if table != "" {
			return 0, boundCol{}, sqlerr.Bindf(sqlerr.CodeUnknownColumn,
				"unknown column %q.%q", table, name)
		}
		return 0, boundCol{}, sqlerr.Bindf(sqlerr.CodeUnknownColumn,
			"unknown column %q", name)
	}
	return found, s.cols[found], nil
}

// aggLayout describes the row shape downstream of an aggregation node:
// group-by values first, then aggregate results. A binder carrying one is
// binding HAVING, ORDER BY, or post-aggregation projections, and rewrites
// group-by expressions and aggregate calls into plain column reads.
type aggLayout struct {
	groupBy  []ast.Expr
	gbTypes  []value.Type
	aggs     []*ast.FuncCall
	aggTypes []value.Type
}

// position locates e in the aggregated row, or returns -1.
func (l *aggLayout) position(e ast.Expr) (int, value.Type) {
	for i, g := range l.groupBy {
		if astEqual(e, g) {
			return i, l.gbTypes[i]
		}
	}
	if fc, ok := e.(*ast.FuncCall); ok && eval.IsAggregateFunc(fc.Name) {
		for j, a := range l.aggs {
			if astEqual(fc, a) {
				return len(l.groupBy) + j, l.aggTypes[j]
			}
		}
	}
	return -1, value.TypeNull
}

// astEqual compares two expression trees structurally. Good enough for the
// textual-equality matching GROUP BY requires.
func astEqual(a, b ast.Expr) bool {
	return reflect.DeepEqual(a, b)
}

// exprBinder turns ast expressions into bound eval expressions over a scope.
// When agg is set, references must resolve through the aggregate layout.
type exprBinder struct {
	scope *scope
	agg   *aggLayout
}

func (b *exprBinder) bind(e ast.Expr) (eval.Expr, error) {
	if b.agg != nil {
		if pos, typ := b.agg.position(e); pos >= 0 {
			return &eval.Column{Index: pos, Name: exprName(e), Typ: typ}, nil
		}
	}

	switch ex := e.(type) {
	case *ast.Literal:
		return &eval.Literal{Val: ex.Value}, nil

	case *ast.ColumnRef:
		if b.agg != nil {
			return nil, sqlerr.Bindf(sqlerr.CodeUnknownColumn,
				"column %q must appear in GROUP BY or inside an aggregate", ex.Name)
		}
		idx, col, err := b.scope.resolve(ex.Table, ex.Name)
		if err != nil {
			return nil, err
		}
		return &eval.Column{Index: idx, Name: col.name, Typ: col.typ}, nil

	case *ast.BinaryExpr:
		return b.bindBinary(ex)

	case *ast.UnaryExpr:
		inner, err := b.bind(ex.Expr)
		if err != nil {
			return nil, err
		}
		if ex.Op == ast.OpNeg {
			if t := inner.Type(); !isNumericType(t) && t != value.TypeInterval && t != value.TypeNull {
				return nil, sqlerr.Bindf(sqlerr.CodeTypeMismatch, "cannot negate %s", t)
			}
		} else if err := wantBoolish(inner.Type(), "NOT"); err != nil {
			return nil, err
		}
		return &eval.Unary{Op: ex.Op, Expr: inner}, nil

	case *ast.FuncCall:
		return b.bindFunc(ex)

	case *ast.CaseExpr:
		return b.bindCase(ex)

	case *ast.InExpr:
		needle, err := b.bind(ex.Expr)
		if err != nil {
			return nil, err
		}
		list := make([]eval.Expr, len(ex.List))
		for i, el := range ex.List {
			be, err := b.bind(el)
			if err != nil {
				return nil, err
			}
			if !value.Comparable(needle.Type(), be.Type()) {
				return nil, sqlerr.Bindf(sqlerr.CodeTypeMismatch,
					"IN list element of type %s is not comparable with %s", be.Type(), needle.Type())
			}
			list[i] = be
		}
		return &eval.In{Expr: needle, List: list, Not: ex.Not}, nil

	case *ast.BetweenExpr:
		inner, err := b.bind(ex.Expr)
		if err != nil {
			return nil, err
		}
		low, err := b.bind(ex.Low)
		if err != nil {
			return nil, err
		}
		high, err := b.bind(ex.High)
		if err != nil {
			return nil, err
		}
		for _, bound := range []eval.Expr{low, high} {
			if !value.Comparable(inner.Type(), bound.Type()) {
				return nil, sqlerr.Bindf(sqlerr.CodeTypeMismatch,
					"BETWEEN bound of type %s is not comparable with %s", bound.Type(), inner.Type())
			}
		}
		return &eval.Between{Expr: inner, Low: low, High: high, Not: ex.Not}, nil

	case *ast.IsNullExpr:
		inner, err := b.bind(ex.Expr)
		if err != nil {
			return nil, err
		}
		return &eval.IsNull{Expr: inner, Not: ex.Not}, nil

	case *ast.LikeExpr:
		inner, err := b.bind(ex.Expr)
		if err != nil {
			return nil, err
		}
		pat, err := b.bind(ex.Pattern)
		if err != nil {
			return nil, err
		}
		for _, op := range []eval.Expr{inner, pat} {
			if t := op.Type(); t != value.TypeStr && t != value.TypeNull {
				return nil, sqlerr.Bindf(sqlerr.CodeTypeMismatch,
					"LIKE requires text operands, got %s", t)
			}
		}
		return &eval.Like{Expr: inner, Pattern: pat, Not: ex.Not}, nil

	case *ast.CastExpr:
		inner, err := b.bind(ex.Expr)
		if err != nil {
			return nil, err
		}
		target, err := value.ParseType(ex.Type)
		if err != nil {
			return nil, err
		}
		return &eval.Cast{Expr: inner, Target: target}, nil

	default:
		return nil, sqlerr.Bindf(sqlerr.CodeUnsupportedStatement,
			"unsupported expression type %T", e)
	}
}

// bindPredicate binds a WHERE/HAVING/ON condition and checks that it is
// boolean-typed.
func (b *exprBinder) bindPredicate(e ast.Expr) (eval.Expr, error) {
	bound, err := b.bind(e)
	if err != nil {
		return nil, err
	}
	if err := wantBoolish(bound.Type(), "condition"); err != nil {
		return nil, err
	}
	return bound, nil
}

func (b *exprBinder) bindBinary(ex *ast.BinaryExpr) (eval.Expr, error) {
	left, err := b.bind(ex.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.bind(ex.Right)
	if err != nil {
		return nil, err
	}
	lt, rt := left.Type(), right.Type()

	switch ex.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		if err := checkArith(ex.Op, lt, rt); err != nil {
			return nil, err
		}
	case ast.OpAnd, ast.OpOr:
		if err := wantBoolish(lt, ex.Op.String()); err != nil {
			return nil, err
		}
		if err := wantBoolish(rt, ex.Op.String()); err != nil {
			return nil, err
		}
	default:
		if !value.Comparable(lt, rt) {
			return nil, sqlerr.Bindf(sqlerr.CodeTypeMismatch,
				"cannot compare %s with %s", lt, rt)
		}
	}
	return &eval.Binary{Op: ex.Op, Left: left, Right: right}, nil
}

func (b *exprBinder) bindFunc(ex *ast.FuncCall) (eval.Expr, error) {
	if eval.IsAggregateFunc(ex.Name) {
		// Reaching here means we are outside an aggregating query part:
		// either no aggregation context exists, or the call was not
		// collected into the layout (e.g. an aggregate inside WHERE).
		return nil, sqlerr.Bindf(sqlerr.CodeUnsupportedStatement,
			"aggregate %s is not allowed here", ex.Name)
	}
	if !eval.IsScalarFunc(ex.Name) {
		return nil, sqlerr.Bindf(sqlerr.CodeUnknownFunction, "unknown function %s", ex.Name)
	}
	if ex.Star {
		return nil, sqlerr.Bindf(sqlerr.CodeBadArity, "%s does not take *", ex.Name)
	}
	args := make([]eval.Expr, len(ex.Args))
	for i, a := range ex.Args {
		bound, err := b.bind(a)
		if err != nil {
			return nil, err
		}
		args[i] = bound
	}
	return &eval.Func{Name: ex.Name, Args: args}, nil
}

func (b *exprBinder) bindCase(ex *ast.CaseExpr) (eval.Expr, error) {
	out := &eval.Case{Typ: value.TypeNull}

	if ex.Operand != nil {
		op, err := b.bind(ex.Operand)
		if err != nil {
			return nil, err
		}
		out.Operand = op
	}

	for _, w := range ex.Whens {
		cond, err := b.bind(w.Cond)
		if err != nil {
			return nil, err
		}
		if out.Operand != nil {
			if !value.Comparable(out.Operand.Type(), cond.Type()) {
				return nil, sqlerr.Bindf(sqlerr.CodeTypeMismatch,
					"CASE operand of type %s is not comparable with %s", out.Operand.Type(), cond.Type())
			}
		} else if err := wantBoolish(cond.Type(), "WHEN"); err != nil {
			return nil, err
		}

		res, err := b.bind(w.Result)
		if err != nil {
			return nil, err
		}
		if out.Typ == value.TypeNull {
			out.Typ = res.Type()
		}
		out.Whens = append(out.Whens, eval.When{Cond: cond, Result: res})
	}

	if ex.Else != nil {
		els, err := b.bind(ex.Else)
		if err != nil {
			return nil, err
		}
		if out.Typ == value.TypeNull {
			out.Typ = els.Type()
		}
		out.Else = els
	}
	return out, nil
}

func isNumericType(t value.Type) bool {
	return t == value.TypeInt || t == value.TypeFloat || t == value.TypeDecimal
}

func wantBoolish(t value.Type, where string) error {
	if t != value.TypeBool && t != value.TypeNull {
		return sqlerr.Bindf(sqlerr.CodeTypeMismatch,
			"%s requires a boolean operand, got %s", where, t)
	}
	return nil
}

// checkArith admits the operand type pairs the arithmetic kernel supports.
func checkArith(op ast.BinaryOp, lt, rt value.Type) error {
	if lt == value.TypeNull || rt == value.TypeNull {
		return nil
	}
	if isNumericType(lt) && isNumericType(rt) {
		return nil
	}
	if op == ast.OpAdd || op == ast.OpSub {
		temporal := func(t value.Type) bool {
			return t == value.TypeDate || t == value.TypeTime || t == value.TypeTimestamp
		}
		switch {
		case temporal(lt) && rt == value.TypeInterval:
			return nil
		case op == ast.OpAdd && lt == value.TypeInterval && temporal(rt):
			return nil
		case lt == value.TypeInterval && rt == value.TypeInterval:
			return nil
		case op == ast.OpSub && temporal(lt) && temporal(rt):
			return nil
		}
	}
	return sqlerr.Bindf(sqlerr.CodeTypeMismatch,
		"operator %s is not defined for %s and %s", op, lt, rt)
}
