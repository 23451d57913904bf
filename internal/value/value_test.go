package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/slatesql/internal/sqlerr"
)

func TestCompareNumericCrossType(t *testing.T) {
	ord, ok, err := Compare(Int(1), Float(1.5))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Less, ord)

	ord, ok, err = Compare(Float(2.0), Int(2))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Equal, ord)

	three, err := NewDec("3")
	require.NoError(t, err)
	ord, ok, err = Compare(three, Int(2))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Greater, ord)
}

func TestCompareNullIsUnknown(t *testing.T) {
	_, ok, err := Compare(Nil, Int(1))
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = Compare(Str("a"), Nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompareIncompatibleTypes(t *testing.T) {
	_, _, err := Compare(Int(1), Str("a"))
	require.Error(t, err)
	require.Equal(t, sqlerr.CodeTypeMismatch, sqlerr.CodeOf(err))
}

func TestCompareDateAgainstTimestamp(t *testing.T) {
	d := Date(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	ts := Timestamp(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	ord, ok, err := Compare(d, ts)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Less, ord)
}

func TestArithNullPropagates(t *testing.T) {
	out, err := Add(Nil, Int(1))
	require.NoError(t, err)
	require.True(t, IsNull(out))

	out, err = Mul(Int(2), Nil)
	require.NoError(t, err)
	require.True(t, IsNull(out))
}

func TestArithPromotion(t *testing.T) {
	out, err := Add(Int(1), Float(0.5))
	require.NoError(t, err)
	require.Equal(t, Float(1.5), out)

	quarter, err := NewDec("0.25")
	require.NoError(t, err)
	out, err = Add(Int(1), quarter)
	require.NoError(t, err)
	dec, ok := out.(Dec)
	require.True(t, ok)
	require.Equal(t, "1.25", dec.D.String())
}

func TestDivisionByZero(t *testing.T) {
	_, err := Div(Int(1), Int(0))
	require.Error(t, err)
	require.Equal(t, sqlerr.CodeDivisionByZero, sqlerr.CodeOf(err))

	_, err = Mod(Int(7), Int(0))
	require.Error(t, err)
	require.Equal(t, sqlerr.CodeDivisionByZero, sqlerr.CodeOf(err))
}

func TestTemporalArithmetic(t *testing.T) {
	d := Date(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	day := Interval(24 * time.Hour)

	out, err := Add(d, day)
	require.NoError(t, err)
	ts := time.Time(out.(Timestamp))
	require.Equal(t, time.February, ts.Month())
	require.Equal(t, 1, ts.Day())

	a := Timestamp(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	b := Timestamp(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	diff, err := Sub(a, b)
	require.NoError(t, err)
	require.Equal(t, Interval(2*time.Hour), diff)
}

func TestCoerceStringToTemporal(t *testing.T) {
	out, err := Coerce(Str("2024-06-15"), TypeDate)
	require.NoError(t, err)
	require.Equal(t, TypeDate, out.Type())

	_, err = Coerce(Str("not a date"), TypeDate)
	require.Error(t, err)
}

func TestCoerceWideningOnly(t *testing.T) {
	out, err := Coerce(Int(3), TypeFloat)
	require.NoError(t, err)
	require.Equal(t, Float(3), out)

	// Narrowing requires an explicit CAST.
	_, err = Coerce(Float(3.5), TypeInt)
	require.Error(t, err)
}

func TestCastExplicit(t *testing.T) {
	out, err := Cast(Str("42"), TypeInt)
	require.NoError(t, err)
	require.Equal(t, Int(42), out)

	out, err = Cast(Float(3.9), TypeInt)
	require.NoError(t, err)
	require.Equal(t, Int(3), out)

	_, err = Cast(Str("abc"), TypeInt)
	require.Error(t, err)
}

func TestGroupKeyNullsGroupTogether(t *testing.T) {
	k1 := GroupKey([]Value{Nil, Int(1)})
	k2 := GroupKey([]Value{Nil, Int(1)})
	k3 := GroupKey([]Value{Int(0), Int(1)})
	require.Equal(t, k1, k2)
	require.NotEqual(t, k1, k3)
}

func TestGroupKeyTypeTagged(t *testing.T) {
	// Int 1 and Str "1" must not collide.
	require.NotEqual(t, GroupKey([]Value{Int(1)}), GroupKey([]Value{Str("1")}))
}

func TestGroupKeyInjective(t *testing.T) {
	// Text values can contain any byte, including ones that look like the
	// encoding of a neighboring component; tuple boundaries must survive.
	cases := [][2][]Value{
		{{Str("a|5b"), Str("c")}, {Str("a"), Str("b|5c")}},
		{{Str("ab"), Str("")}, {Str("a"), Str("b")}},
		{{Str("a"), Nil}, {Str("aN;")}},
		{{Str("12:3")}, {Str("1"), Str("3")}},
	}
	for _, c := range cases {
		require.NotEqual(t, GroupKey(c[0]), GroupKey(c[1]), "%v vs %v", c[0], c[1])
	}
}

func TestDistinct(t *testing.T) {
	require.False(t, Distinct(Nil, Nil))
	require.True(t, Distinct(Nil, Int(1)))
	require.False(t, Distinct(Int(1), Int(1)))
	require.True(t, Distinct(Int(1), Int(2)))
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("INTEGER")
	require.NoError(t, err)
	require.Equal(t, TypeInt, typ)

	typ, err = ParseType("varchar")
	require.NoError(t, err)
	require.Equal(t, TypeStr, typ)

	_, err = ParseType("GEOMETRY")
	require.Error(t, err)
}
