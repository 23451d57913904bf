// Package value implements the engine's scalar data model: a closed sum of
// SQL value types with three-valued comparison, a fixed coercion table and
// the arithmetic used by the expression evaluator.
package value

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tuannm99/slatesql/internal/sqlerr"
)

// Type enumerates the closed set of value types.
type Type uint8

const (
	TypeNull Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeDecimal
	TypeStr
	TypeBytes
	TypeDate
	TypeTime
	TypeTimestamp
	TypeInterval
	TypeList
	TypeMap
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeBool:
		return "BOOLEAN"
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "FLOAT"
	case TypeDecimal:
		return "DECIMAL"
	case TypeStr:
		return "TEXT"
	case TypeBytes:
		return "BYTEA"
	case TypeDate:
		return "DATE"
	case TypeTime:
		return "TIME"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeInterval:
		return "INTERVAL"
	case TypeList:
		return "LIST"
	case TypeMap:
		return "MAP"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}

// ParseType maps a declared SQL type name to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INT", "INTEGER", "BIGINT", "INT8":
		return TypeInt, nil
	case "FLOAT", "DOUBLE", "REAL":
		return TypeFloat, nil
	case "DECIMAL", "NUMERIC":
		return TypeDecimal, nil
	case "TEXT", "VARCHAR", "STRING", "CHAR":
		return TypeStr, nil
	case "BOOL", "BOOLEAN":
		return TypeBool, nil
	case "BYTEA", "BYTES", "BLOB":
		return TypeBytes, nil
	case "DATE":
		return TypeDate, nil
	case "TIME":
		return TypeTime, nil
	case "TIMESTAMP", "DATETIME":
		return TypeTimestamp, nil
	case "INTERVAL":
		return TypeInterval, nil
	case "LIST":
		return TypeList, nil
	case "MAP":
		return TypeMap, nil
	default:
		return TypeNull, sqlerr.Bindf(sqlerr.CodeTypeMismatch, "unsupported column type %q", s)
	}
}

// Value is the closed scalar sum. Every Value carries enough type
// information to be compared and coerced without external context.
type Value interface {
	Type() Type
	String() string
}

type (
	Null  struct{}
	Bool  bool
	Int   int64
	Float float64
	// Dec is a fixed-point decimal backed by shopspring/decimal.
	Dec   struct{ D decimal.Decimal }
	Str   string
	Bytes []byte
	// Date holds a calendar day (UTC midnight).
	Date time.Time
	// Time holds a time of day as an offset from midnight.
	Time time.Duration
	// Timestamp holds an instant (UTC).
	Timestamp time.Time
	Interval  time.Duration
	List      []Value
	Map       map[string]Value
)

func (Null) Type() Type      { return TypeNull }
func (Bool) Type() Type      { return TypeBool }
func (Int) Type() Type       { return TypeInt }
func (Float) Type() Type     { return TypeFloat }
func (Dec) Type() Type       { return TypeDecimal }
func (Str) Type() Type       { return TypeStr }
func (Bytes) Type() Type     { return TypeBytes }
func (Date) Type() Type      { return TypeDate }
func (Time) Type() Type      { return TypeTime }
func (Timestamp) Type() Type { return TypeTimestamp }
func (Interval) Type() Type  { return TypeInterval }
func (List) Type() Type      { return TypeList }
func (Map) Type() Type       { return TypeMap }

func (Null) String() string    { return "NULL" }
func (v Bool) String() string  { return fmt.Sprintf("%t", bool(v)) }
func (v Int) String() string   { return fmt.Sprintf("%d", int64(v)) }
func (v Float) String() string { return fmt.Sprintf("%g", float64(v)) }
func (v Dec) String() string   { return v.D.String() }
func (v Str) String() string   { return string(v) }
func (v Bytes) String() string { return fmt.Sprintf("x'%x'", []byte(v)) }

func (v Date) String() string { return time.Time(v).Format(DateLayout) }

func (v Time) String() string {
	d := time.Duration(v)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (v Timestamp) String() string { return time.Time(v).Format(TimestampLayout) }
func (v Interval) String() string  { return time.Duration(v).String() }

func (v List) String() string {
	parts := make([]string, len(v))
	for i, el := range v {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (v Map) String() string {
	parts := make([]string, 0, len(v))
	for k, el := range v {
		parts = append(parts, fmt.Sprintf("%q: %s", k, el.String()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Nil is the null value.
var Nil = Null{}

// IsNull reports whether v is the null value.
func IsNull(v Value) bool {
	_, ok := v.(Null)
	return v == nil || ok
}

// NewDec builds a Dec from a decimal string such as "12.34".
func NewDec(s string) (Dec, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Dec{}, sqlerr.Evalf(sqlerr.CodeValueCoercion, "invalid decimal literal %q", s)
	}
	return Dec{D: d}, nil
}

const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	TimestampLayout = "2006-01-02 15:04:05"
)
