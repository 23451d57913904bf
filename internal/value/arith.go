package value

import (
	"time"

	"github.com/tuannm99/slatesql/internal/sqlerr"
)

// Arithmetic follows SQL null propagation: any null operand yields null.
// Division and modulo by zero are evaluation errors, never null.

func Add(a, b Value) (Value, error) {
	if IsNull(a) || IsNull(b) {
		return Nil, nil
	}
	if isNumeric(a.Type()) && isNumeric(b.Type()) {
		return numericOp(a, b, opAdd)
	}

	// Temporal arithmetic.
	switch av := a.(type) {
	case Date:
		if iv, ok := b.(Interval); ok {
			return Timestamp(time.Time(av).Add(time.Duration(iv))), nil
		}
	case Timestamp:
		if iv, ok := b.(Interval); ok {
			return Timestamp(time.Time(av).Add(time.Duration(iv))), nil
		}
	case Time:
		if iv, ok := b.(Interval); ok {
			return Time(time.Duration(av) + time.Duration(iv)), nil
		}
	case Interval:
		switch bv := b.(type) {
		case Interval:
			return Interval(time.Duration(av) + time.Duration(bv)), nil
		case Date:
			return Timestamp(time.Time(bv).Add(time.Duration(av))), nil
		case Timestamp:
			return Timestamp(time.Time(bv).Add(time.Duration(av))), nil
		case Time:
			return Time(time.Duration(bv) + time.Duration(av)), nil
		}
	}
	return nil, arithTypeErr("+", a, b)
}

func Sub(a, b Value) (Value, error) {
	if IsNull(a) || IsNull(b) {
		return Nil, nil
	}
	if isNumeric(a.Type()) && isNumeric(b.Type()) {
		return numericOp(a, b, opSub)
	}

	switch av := a.(type) {
	case Date:
		switch bv := b.(type) {
		case Interval:
			return Timestamp(time.Time(av).Add(-time.Duration(bv))), nil
		case Date:
			return Interval(time.Time(av).Sub(time.Time(bv))), nil
		case Timestamp:
			return Interval(time.Time(av).Sub(time.Time(bv))), nil
		}
	case Timestamp:
		switch bv := b.(type) {
		case Interval:
			return Timestamp(time.Time(av).Add(-time.Duration(bv))), nil
		case Timestamp:
			return Interval(time.Time(av).Sub(time.Time(bv))), nil
		case Date:
			return Interval(time.Time(av).Sub(time.Time(bv))), nil
		}
	case Time:
		switch bv := b.(type) {
		case Interval:
			return Time(time.Duration(av) - time.Duration(bv)), nil
		case Time:
			return Interval(time.Duration(av) - time.Duration(bv)), nil
		}
	case Interval:
		if bv, ok := b.(Interval); ok {
			return Interval(time.Duration(av) - time.Duration(bv)), nil
		}
	}
	return nil, arithTypeErr("-", a, b)
}

func Mul(a, b Value) (Value, error) {
	if IsNull(a) || IsNull(b) {
		return Nil, nil
	}
	if isNumeric(a.Type()) && isNumeric(b.Type()) {
		return numericOp(a, b, opMul)
	}
	return nil, arithTypeErr("*", a, b)
}

func Div(a, b Value) (Value, error) {
	if IsNull(a) || IsNull(b) {
		return Nil, nil
	}
	if !isNumeric(a.Type()) || !isNumeric(b.Type()) {
		return nil, arithTypeErr("/", a, b)
	}
	if isZero(b) {
		return nil, sqlerr.Evalf(sqlerr.CodeDivisionByZero, "division by zero")
	}
	return numericOp(a, b, opDiv)
}

func Mod(a, b Value) (Value, error) {
	if IsNull(a) || IsNull(b) {
		return Nil, nil
	}
	if !isNumeric(a.Type()) || !isNumeric(b.Type()) {
		return nil, arithTypeErr("%", a, b)
	}
	if isZero(b) {
		return nil, sqlerr.Evalf(sqlerr.CodeDivisionByZero, "modulo by zero")
	}
	return numericOp(a, b, opMod)
}

// Neg negates a numeric or interval value.
func Neg(a Value) (Value, error) {
	switch v := a.(type) {
	case Null:
		return Nil, nil
	case Int:
		return Int(-v), nil
	case Float:
		return Float(-v), nil
	case Dec:
		return Dec{D: v.D.Neg()}, nil
	case Interval:
		return Interval(-v), nil
	default:
		return nil, sqlerr.Evalf(sqlerr.CodeTypeMismatch, "cannot negate %s", a.Type())
	}
}

type arithOp uint8

const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
	opMod
)

// numericOp promotes operands to the wider of the two numeric types:
// INT < FLOAT < DECIMAL.
func numericOp(a, b Value, op arithOp) (Value, error) {
	if a.Type() == TypeDecimal || b.Type() == TypeDecimal {
		ad, bd := toDec(a), toDec(b)
		switch op {
		case opAdd:
			return Dec{D: ad.Add(bd)}, nil
		case opSub:
			return Dec{D: ad.Sub(bd)}, nil
		case opMul:
			return Dec{D: ad.Mul(bd)}, nil
		case opDiv:
			return Dec{D: ad.Div(bd)}, nil
		default:
			return Dec{D: ad.Mod(bd)}, nil
		}
	}
	if a.Type() == TypeFloat || b.Type() == TypeFloat {
		af, bf := toFloat(a), toFloat(b)
		switch op {
		case opAdd:
			return Float(af + bf), nil
		case opSub:
			return Float(af - bf), nil
		case opMul:
			return Float(af * bf), nil
		case opDiv:
			return Float(af / bf), nil
		default:
			return nil, sqlerr.Evalf(sqlerr.CodeTypeMismatch, "modulo requires integer or decimal operands")
		}
	}
	ai, bi := int64(a.(Int)), int64(b.(Int))
	switch op {
	case opAdd:
		return Int(ai + bi), nil
	case opSub:
		return Int(ai - bi), nil
	case opMul:
		return Int(ai * bi), nil
	case opDiv:
		return Int(ai / bi), nil
	default:
		return Int(ai % bi), nil
	}
}

func isZero(v Value) bool {
	switch n := v.(type) {
	case Int:
		return n == 0
	case Float:
		return n == 0
	case Dec:
		return n.D.IsZero()
	default:
		return false
	}
}

func arithTypeErr(op string, a, b Value) error {
	return sqlerr.Evalf(sqlerr.CodeTypeMismatch,
		"invalid operands for %s: %s and %s", op, a.Type(), b.Type())
}

// AbsVal returns the absolute value of a numeric operand.
func AbsVal(a Value) (Value, error) {
	switch v := a.(type) {
	case Null:
		return Nil, nil
	case Int:
		if v < 0 {
			return Int(-v), nil
		}
		return v, nil
	case Float:
		if v < 0 {
			return Float(-v), nil
		}
		return v, nil
	case Dec:
		return Dec{D: v.D.Abs()}, nil
	default:
		return nil, sqlerr.Evalf(sqlerr.CodeTypeMismatch, "ABS requires a numeric operand, got %s", a.Type())
	}
}
