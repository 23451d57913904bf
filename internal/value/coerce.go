package value

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tuannm99/slatesql/internal/sqlerr"
)

// Coerce applies the implicit promotion table used when a value meets a
// declared column type or a comparison partner:
//
//	INT -> FLOAT -> DECIMAL
//	TEXT -> DATE | TIME | TIMESTAMP | INTERVAL | DECIMAL (parsed)
//
// Null coerces to any type and stays null. Anything outside the table is a
// coercion error naming both types; explicit CAST is wider (see Cast).
func Coerce(v Value, target Type) (Value, error) {
	if IsNull(v) {
		return Nil, nil
	}
	if v.Type() == target {
		return v, nil
	}

	switch target {
	case TypeFloat:
		if n, ok := v.(Int); ok {
			return Float(n), nil
		}
	case TypeDecimal:
		switch n := v.(type) {
		case Int:
			return Dec{D: decimal.NewFromInt(int64(n))}, nil
		case Float:
			return Dec{D: decimal.NewFromFloat(float64(n))}, nil
		case Str:
			return NewDec(string(n))
		}
	case TypeDate:
		if s, ok := v.(Str); ok {
			return parseDate(string(s))
		}
	case TypeTime:
		if s, ok := v.(Str); ok {
			return parseTime(string(s))
		}
	case TypeTimestamp:
		switch t := v.(type) {
		case Str:
			return parseTimestamp(string(t))
		case Date:
			return Timestamp(time.Time(t)), nil
		}
	case TypeInterval:
		if s, ok := v.(Str); ok {
			return parseInterval(string(s))
		}
	}

	return nil, sqlerr.Evalf(sqlerr.CodeValueCoercion,
		"cannot coerce %s to %s", v.Type(), target)
}

// Cast implements explicit CAST(expr AS type): everything Coerce allows
// plus lossy and textual conversions.
func Cast(v Value, target Type) (Value, error) {
	if IsNull(v) {
		return Nil, nil
	}
	if out, err := Coerce(v, target); err == nil {
		return out, nil
	}

	switch target {
	case TypeInt:
		switch n := v.(type) {
		case Float:
			return Int(int64(n)), nil
		case Dec:
			return Int(n.D.IntPart()), nil
		case Bool:
			if n {
				return Int(1), nil
			}
			return Int(0), nil
		case Str:
			i, err := strconv.ParseInt(strings.TrimSpace(string(n)), 10, 64)
			if err != nil {
				return nil, castErr(v, target)
			}
			return Int(i), nil
		}
	case TypeFloat:
		switch n := v.(type) {
		case Dec:
			return Float(n.D.InexactFloat64()), nil
		case Str:
			f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
			if err != nil {
				return nil, castErr(v, target)
			}
			return Float(f), nil
		}
	case TypeBool:
		if s, ok := v.(Str); ok {
			switch strings.ToUpper(strings.TrimSpace(string(s))) {
			case "TRUE", "T", "1":
				return Bool(true), nil
			case "FALSE", "F", "0":
				return Bool(false), nil
			}
			return nil, castErr(v, target)
		}
	case TypeStr:
		return Str(v.String()), nil
	case TypeBytes:
		if s, ok := v.(Str); ok {
			return Bytes(s), nil
		}
	case TypeDate:
		if t, ok := v.(Timestamp); ok {
			y, m, d := time.Time(t).Date()
			return Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)), nil
		}
	}

	return nil, castErr(v, target)
}

func castErr(v Value, target Type) error {
	return sqlerr.Evalf(sqlerr.CodeValueCoercion, "cannot cast %s to %s", v.Type(), target)
}

func parseDate(s string) (Value, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return nil, sqlerr.Evalf(sqlerr.CodeValueCoercion, "invalid DATE literal %q", s)
	}
	return Date(t), nil
}

func parseTime(s string) (Value, error) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(s))
	if err != nil {
		return nil, sqlerr.Evalf(sqlerr.CodeValueCoercion, "invalid TIME literal %q", s)
	}
	d := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
	return Time(d), nil
}

func parseTimestamp(s string) (Value, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimestampLayout, time.RFC3339, DateLayout} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Timestamp(t), nil
		}
	}
	return nil, sqlerr.Evalf(sqlerr.CodeValueCoercion, "invalid TIMESTAMP literal %q", s)
}

// Interval literals use Go duration syntax ('1h30m', '90s').
func parseInterval(s string) (Value, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return nil, sqlerr.Evalf(sqlerr.CodeValueCoercion, "invalid INTERVAL literal %q", s)
	}
	return Interval(d), nil
}

// CoercibleTo reports whether a value of type from can implicitly meet
// type to. Used by the binder for bottom-up type checking; runtime
// coercion still validates actual text contents.
func CoercibleTo(from, to Type) bool {
	if from == TypeNull || from == to {
		return true
	}
	switch to {
	case TypeFloat:
		return from == TypeInt
	case TypeDecimal:
		return from == TypeInt || from == TypeFloat || from == TypeStr
	case TypeDate, TypeTime, TypeTimestamp, TypeInterval:
		return from == TypeStr || (to == TypeTimestamp && from == TypeDate)
	default:
		return false
	}
}

// Comparable reports whether two types can meet in a comparison.
func Comparable(a, b Type) bool {
	if a == TypeNull || b == TypeNull || a == b {
		return true
	}
	if isNumeric(a) && isNumeric(b) {
		return true
	}
	if (a == TypeDate || a == TypeTimestamp) && (b == TypeDate || b == TypeTimestamp) {
		return true
	}
	// Text literals may be compared against temporal and decimal columns.
	if a == TypeStr {
		return CoercibleTo(a, b)
	}
	if b == TypeStr {
		return CoercibleTo(b, a)
	}
	return false
}
