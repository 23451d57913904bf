package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/slatesql/internal/ast"
	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/value"
)

func lit(v value.Value) Expr { return &Literal{Val: v} }

func evalExpr(t *testing.T, e Expr, row record.Row) value.Value {
	t.Helper()
	v, err := e.Eval(row)
	require.NoError(t, err)
	return v
}

func TestColumnReadsRow(t *testing.T) {
	col := &Column{Index: 1, Name: "b", Typ: value.TypeStr}
	v := evalExpr(t, col, record.Row{value.Int(1), value.Str("x")})
	require.Equal(t, value.Str("x"), v)

	_, err := col.Eval(record.Row{value.Int(1)})
	require.Error(t, err)
}

func TestThreeValuedAnd(t *testing.T) {
	cases := []struct {
		l, r value.Value
		want value.Value
	}{
		{value.Bool(true), value.Bool(true), value.Bool(true)},
		{value.Bool(true), value.Bool(false), value.Bool(false)},
		{value.Bool(false), value.Nil, value.Bool(false)},
		{value.Nil, value.Bool(false), value.Bool(false)},
		{value.Bool(true), value.Nil, value.Nil},
		{value.Nil, value.Nil, value.Nil},
	}
	for _, tc := range cases {
		got := evalExpr(t, &Binary{Op: ast.OpAnd, Left: lit(tc.l), Right: lit(tc.r)}, nil)
		require.Equal(t, tc.want, got, "%v AND %v", tc.l, tc.r)
	}
}

func TestThreeValuedOr(t *testing.T) {
	cases := []struct {
		l, r value.Value
		want value.Value
	}{
		{value.Bool(false), value.Bool(false), value.Bool(false)},
		{value.Bool(true), value.Nil, value.Bool(true)},
		{value.Nil, value.Bool(true), value.Bool(true)},
		{value.Bool(false), value.Nil, value.Nil},
	}
	for _, tc := range cases {
		got := evalExpr(t, &Binary{Op: ast.OpOr, Left: lit(tc.l), Right: lit(tc.r)}, nil)
		require.Equal(t, tc.want, got, "%v OR %v", tc.l, tc.r)
	}
}

func TestComparisonNullIsUnknown(t *testing.T) {
	got := evalExpr(t, &Binary{Op: ast.OpEq, Left: lit(value.Nil), Right: lit(value.Nil)}, nil)
	require.True(t, value.IsNull(got))

	pass, err := Passes(got)
	require.NoError(t, err)
	require.False(t, pass)
}

func TestComparisonCoercesTextToDate(t *testing.T) {
	d, err := value.Coerce(value.Str("2024-05-01"), value.TypeDate)
	require.NoError(t, err)

	got := evalExpr(t, &Binary{Op: ast.OpLt, Left: lit(d), Right: lit(value.Str("2024-06-01"))}, nil)
	require.Equal(t, value.Bool(true), got)
}

func TestIsNullVsEquality(t *testing.T) {
	isNull := evalExpr(t, &IsNull{Expr: lit(value.Nil)}, nil)
	require.Equal(t, value.Bool(true), isNull)

	notNull := evalExpr(t, &IsNull{Expr: lit(value.Int(1)), Not: true}, nil)
	require.Equal(t, value.Bool(true), notNull)
}

func TestInWithNulls(t *testing.T) {
	in := &In{Expr: lit(value.Int(2)), List: []Expr{lit(value.Int(1)), lit(value.Int(2))}}
	require.Equal(t, value.Bool(true), evalExpr(t, in, nil))

	// No match but a null in the list: unknown, not false.
	in = &In{Expr: lit(value.Int(3)), List: []Expr{lit(value.Int(1)), lit(value.Nil)}}
	require.True(t, value.IsNull(evalExpr(t, in, nil)))

	// NOT IN over that same list is unknown too.
	in = &In{Expr: lit(value.Int(3)), List: []Expr{lit(value.Int(1)), lit(value.Nil)}, Not: true}
	require.True(t, value.IsNull(evalExpr(t, in, nil)))

	in = &In{Expr: lit(value.Nil), List: []Expr{lit(value.Int(1))}}
	require.True(t, value.IsNull(evalExpr(t, in, nil)))
}

func TestBetween(t *testing.T) {
	b := &Between{Expr: lit(value.Int(5)), Low: lit(value.Int(1)), High: lit(value.Int(9))}
	require.Equal(t, value.Bool(true), evalExpr(t, b, nil))

	b = &Between{Expr: lit(value.Int(5)), Low: lit(value.Int(1)), High: lit(value.Int(9)), Not: true}
	require.Equal(t, value.Bool(false), evalExpr(t, b, nil))

	b = &Between{Expr: lit(value.Int(5)), Low: lit(value.Nil), High: lit(value.Int(9))}
	require.True(t, value.IsNull(evalExpr(t, b, nil)))
}

func TestLikePatterns(t *testing.T) {
	cases := []struct {
		s, p string
		want bool
	}{
		{"hello", "hello", true},
		{"hello", "h%", true},
		{"hello", "%llo", true},
		{"hello", "h_llo", true},
		{"hello", "h_", false},
		{"", "%", true},
		{"abc", "a%c", true},
		{"abc", "%b%", true},
		// _ consumes one rune, not one byte.
		{"café", "caf_", true},
		{"héllo", "h_llo", true},
		{"日本語", "日_語", true},
		{"日本語", "__", false},
	}
	for _, tc := range cases {
		got := evalExpr(t, &Like{Expr: lit(value.Str(tc.s)), Pattern: lit(value.Str(tc.p))}, nil)
		require.Equal(t, value.Bool(tc.want), got, "%q LIKE %q", tc.s, tc.p)
	}

	got := evalExpr(t, &Like{Expr: lit(value.Nil), Pattern: lit(value.Str("%"))}, nil)
	require.True(t, value.IsNull(got))
}

func TestCaseSearchedAndSimple(t *testing.T) {
	searched := &Case{
		Whens: []When{
			{Cond: lit(value.Bool(false)), Result: lit(value.Str("no"))},
			{Cond: lit(value.Bool(true)), Result: lit(value.Str("yes"))},
		},
		Typ: value.TypeStr,
	}
	require.Equal(t, value.Str("yes"), evalExpr(t, searched, nil))

	simple := &Case{
		Operand: lit(value.Int(2)),
		Whens: []When{
			{Cond: lit(value.Int(1)), Result: lit(value.Str("one"))},
			{Cond: lit(value.Int(2)), Result: lit(value.Str("two"))},
		},
		Typ: value.TypeStr,
	}
	require.Equal(t, value.Str("two"), evalExpr(t, simple, nil))

	// No arm matches and no ELSE: null.
	simple.Operand = lit(value.Int(9))
	require.True(t, value.IsNull(evalExpr(t, simple, nil)))
}

func TestScalarFunctions(t *testing.T) {
	require.Equal(t, value.Str("ABC"),
		evalExpr(t, &Func{Name: "UPPER", Args: []Expr{lit(value.Str("abc"))}}, nil))
	require.Equal(t, value.Int(3),
		evalExpr(t, &Func{Name: "LENGTH", Args: []Expr{lit(value.Str("abc"))}}, nil))
	// Characters, not bytes.
	require.Equal(t, value.Int(3),
		evalExpr(t, &Func{Name: "LENGTH", Args: []Expr{lit(value.Str("日本語"))}}, nil))
	require.Equal(t, value.Int(4),
		evalExpr(t, &Func{Name: "ABS", Args: []Expr{lit(value.Int(-4))}}, nil))
	require.Equal(t, value.Int(7),
		evalExpr(t, &Func{Name: "COALESCE", Args: []Expr{lit(value.Nil), lit(value.Int(7))}}, nil))

	// Null propagation.
	out := evalExpr(t, &Func{Name: "UPPER", Args: []Expr{lit(value.Nil)}}, nil)
	require.True(t, value.IsNull(out))

	_, err := (&Func{Name: "LENGTH", Args: []Expr{lit(value.Str("a")), lit(value.Str("b"))}}).Eval(nil)
	require.Equal(t, sqlerr.CodeBadArity, sqlerr.CodeOf(err))

	_, err = (&Func{Name: "NOPE"}).Eval(nil)
	require.Equal(t, sqlerr.CodeUnknownFunction, sqlerr.CodeOf(err))
}

func TestUnaryNot(t *testing.T) {
	require.Equal(t, value.Bool(false),
		evalExpr(t, &Unary{Op: ast.OpNot, Expr: lit(value.Bool(true))}, nil))
	require.True(t, value.IsNull(
		evalExpr(t, &Unary{Op: ast.OpNot, Expr: lit(value.Nil)}, nil)))
}

func TestAggregators(t *testing.T) {
	feed := func(t *testing.T, name string, star bool, vals ...value.Value) value.Value {
		t.Helper()
		agg, err := NewAggregator(name, star)
		require.NoError(t, err)
		for _, v := range vals {
			require.NoError(t, agg.Add(v))
		}
		return agg.Result()
	}

	require.Equal(t, value.Int(3), feed(t, "COUNT", true, value.Int(1), value.Nil, value.Int(2)))
	require.Equal(t, value.Int(2), feed(t, "COUNT", false, value.Int(1), value.Nil, value.Int(2)))
	require.Equal(t, value.Int(6), feed(t, "SUM", false, value.Int(1), value.Int(2), value.Int(3)))
	require.True(t, value.IsNull(feed(t, "SUM", false, value.Nil)))
	require.Equal(t, value.Int(1), feed(t, "MIN", false, value.Int(3), value.Int(1), value.Nil))
	require.Equal(t, value.Int(3), feed(t, "MAX", false, value.Int(3), value.Int(1)))
	require.Equal(t, value.Float(2), feed(t, "AVG", false, value.Int(1), value.Int(3)))
	require.True(t, value.IsNull(feed(t, "AVG", false)))

	collected := feed(t, "COLLECT", false, value.Int(1), value.Nil, value.Int(2))
	require.Equal(t, value.List{value.Int(1), value.Int(2)}, collected)
}

func TestAggResultType(t *testing.T) {
	require.Equal(t, value.TypeInt, AggResultType("COUNT", value.TypeStr))
	require.Equal(t, value.TypeFloat, AggResultType("AVG", value.TypeInt))
	require.Equal(t, value.TypeDecimal, AggResultType("AVG", value.TypeDecimal))
	require.Equal(t, value.TypeStr, AggResultType("MAX", value.TypeStr))
	require.Equal(t, value.TypeList, AggResultType("COLLECT", value.TypeInt))
}
