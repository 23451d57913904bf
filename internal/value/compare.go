package value

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tuannm99/slatesql/internal/sqlerr"
)

// Ordering is the result of a defined comparison.
type Ordering int8

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// Compare orders two values under SQL semantics. ok=false with a nil error
// means the comparison is unknown (a null operand); any other failure is a
// type-mismatch error. Numeric types compare across widths via promotion.
func Compare(a, b Value) (ord Ordering, ok bool, err error) {
	if IsNull(a) || IsNull(b) {
		return Equal, false, nil
	}

	if isNumeric(a.Type()) && isNumeric(b.Type()) {
		return compareNumeric(a, b), true, nil
	}

	switch av := a.(type) {
	case Bool:
		if bv, isB := b.(Bool); isB {
			switch {
			case av == bv:
				return Equal, true, nil
			case bool(bv): // false < true
				return Less, true, nil
			default:
				return Greater, true, nil
			}
		}
	case Str:
		if bv, isB := b.(Str); isB {
			return Ordering(strings.Compare(string(av), string(bv))), true, nil
		}
	case Bytes:
		if bv, isB := b.(Bytes); isB {
			return Ordering(bytes.Compare(av, bv)), true, nil
		}
	case Date:
		if t, tok := asTimestamp(b); tok {
			return compareTime(time.Time(av), t), true, nil
		}
	case Timestamp:
		if t, tok := asTimestamp(b); tok {
			return compareTime(time.Time(av), t), true, nil
		}
	case Time:
		if bv, isB := b.(Time); isB {
			return compareDuration(time.Duration(av), time.Duration(bv)), true, nil
		}
	case Interval:
		if bv, isB := b.(Interval); isB {
			return compareDuration(time.Duration(av), time.Duration(bv)), true, nil
		}
	case List:
		if bv, isB := b.(List); isB {
			return compareList(av, bv)
		}
	case Map:
		if bv, isB := b.(Map); isB {
			return compareMap(av, bv)
		}
	}

	return Equal, false, sqlerr.Evalf(sqlerr.CodeTypeMismatch,
		"cannot compare %s with %s", a.Type(), b.Type())
}

func isNumeric(t Type) bool {
	return t == TypeInt || t == TypeFloat || t == TypeDecimal
}

func compareNumeric(a, b Value) Ordering {
	// Decimal-involved comparisons go through decimal to stay exact.
	if a.Type() == TypeDecimal || b.Type() == TypeDecimal {
		return Ordering(toDec(a).Cmp(toDec(b)))
	}
	if a.Type() == TypeFloat || b.Type() == TypeFloat {
		af, bf := toFloat(a), toFloat(b)
		switch {
		case af < bf:
			return Less
		case af > bf:
			return Greater
		default:
			return Equal
		}
	}
	ai, bi := int64(a.(Int)), int64(b.(Int))
	switch {
	case ai < bi:
		return Less
	case ai > bi:
		return Greater
	default:
		return Equal
	}
}

func toDec(v Value) decimal.Decimal {
	switch n := v.(type) {
	case Int:
		return decimal.NewFromInt(int64(n))
	case Float:
		return decimal.NewFromFloat(float64(n))
	case Dec:
		return n.D
	default:
		return decimal.Decimal{}
	}
}

func toFloat(v Value) float64 {
	switch n := v.(type) {
	case Int:
		return float64(n)
	case Float:
		return float64(n)
	case Dec:
		return n.D.InexactFloat64()
	default:
		return 0
	}
}

// asTimestamp widens Date to Timestamp so the two are mutually comparable.
func asTimestamp(v Value) (time.Time, bool) {
	switch t := v.(type) {
	case Date:
		return time.Time(t), true
	case Timestamp:
		return time.Time(t), true
	default:
		return time.Time{}, false
	}
}

func compareTime(a, b time.Time) Ordering {
	switch {
	case a.Before(b):
		return Less
	case a.After(b):
		return Greater
	default:
		return Equal
	}
}

func compareDuration(a, b time.Duration) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func compareList(a, b List) (Ordering, bool, error) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ord, ok, err := Compare(a[i], b[i])
		if err != nil || !ok {
			return Equal, ok, err
		}
		if ord != Equal {
			return ord, true, nil
		}
	}
	switch {
	case len(a) < len(b):
		return Less, true, nil
	case len(a) > len(b):
		return Greater, true, nil
	default:
		return Equal, true, nil
	}
}

// Maps have no ordering; only equality is defined.
func compareMap(a, b Map) (Ordering, bool, error) {
	if len(a) != len(b) {
		return Equal, false, sqlerr.Evalf(sqlerr.CodeTypeMismatch, "maps are not ordered")
	}
	for k, av := range a {
		bv, present := b[k]
		if !present {
			return Equal, false, sqlerr.Evalf(sqlerr.CodeTypeMismatch, "maps are not ordered")
		}
		ord, ok, err := Compare(av, bv)
		if err != nil || !ok {
			return Equal, ok, err
		}
		if ord != Equal {
			return Equal, false, sqlerr.Evalf(sqlerr.CodeTypeMismatch, "maps are not ordered")
		}
	}
	return Equal, true, nil
}

// Distinct reports whether a and b differ under grouping semantics: nulls
// are not distinct from each other, unlike predicate comparison.
func Distinct(a, b Value) bool {
	an, bn := IsNull(a), IsNull(b)
	if an || bn {
		return an != bn
	}
	ord, ok, err := Compare(a, b)
	if err != nil || !ok {
		return true
	}
	return ord != Equal
}

// GroupKey renders values into a canonical key for hash grouping. The type
// tag keeps Int(1) and Str("1") in different groups; the length prefix
// keeps the encoding injective no matter what bytes a value renders to.
func GroupKey(vals []Value) string {
	var sb strings.Builder
	for _, v := range vals {
		if IsNull(v) {
			sb.WriteString("N;")
			continue
		}
		s := v.String()
		sb.WriteByte(byte(v.Type()) + '0')
		sb.WriteString(strconv.Itoa(len(s)))
		sb.WriteByte(':')
		sb.WriteString(s)
	}
	return sb.String()
}
