package eval

import (
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/value"
)

// Aggregator folds one group's values into a single result. A fresh
// aggregator is created per group; Add is called once per input row.
type Aggregator interface {
	Add(v value.Value) error
	Result() value.Value
}

// IsAggregateFunc reports whether name is an aggregate function.
func IsAggregateFunc(name string) bool {
	switch name {
	case "COUNT", "SUM", "MIN", "MAX", "AVG", "COLLECT":
		return true
	default:
		return false
	}
}

// AggResultType is the static result type of an aggregate over an operand
// of type arg.
func AggResultType(name string, arg value.Type) value.Type {
	switch name {
	case "COUNT":
		return value.TypeInt
	case "AVG":
		if arg == value.TypeDecimal {
			return value.TypeDecimal
		}
		return value.TypeFloat
	case "COLLECT":
		return value.TypeList
	default:
		return arg
	}
}

// NewAggregator builds the aggregator for name; star marks COUNT(*).
func NewAggregator(name string, star bool) (Aggregator, error) {
	switch name {
	case "COUNT":
		return &countAgg{star: star}, nil
	case "SUM":
		return &sumAgg{}, nil
	case "MIN":
		return &extremeAgg{want: value.Less}, nil
	case "MAX":
		return &extremeAgg{want: value.Greater}, nil
	case "AVG":
		return &avgAgg{}, nil
	case "COLLECT":
		return &collectAgg{}, nil
	default:
		return nil, sqlerr.Evalf(sqlerr.CodeUnknownFunction, "unknown aggregate %s", name)
	}
}

// countAgg counts rows (star) or non-null operands.
type countAgg struct {
	star bool
	n    int64
}

func (a *countAgg) Add(v value.Value) error {
	if a.star || !value.IsNull(v) {
		a.n++
	}
	return nil
}

func (a *countAgg) Result() value.Value { return value.Int(a.n) }

// sumAgg sums non-null numeric operands; an empty input sums to null.
type sumAgg struct {
	sum value.Value
}

func (a *sumAgg) Add(v value.Value) error {
	if value.IsNull(v) {
		return nil
	}
	if a.sum == nil {
		a.sum = v
		return nil
	}
	out, err := value.Add(a.sum, v)
	if err != nil {
		return err
	}
	a.sum = out
	return nil
}

func (a *sumAgg) Result() value.Value {
	if a.sum == nil {
		return value.Nil
	}
	return a.sum
}

type extremeAgg struct {
	want value.Ordering
	best value.Value
}

func (a *extremeAgg) Add(v value.Value) error {
	if value.IsNull(v) {
		return nil
	}
	if a.best == nil {
		a.best = v
		return nil
	}
	ord, ok, err := value.Compare(v, a.best)
	if err != nil {
		return err
	}
	if ok && ord == a.want {
		a.best = v
	}
	return nil
}

func (a *extremeAgg) Result() value.Value {
	if a.best == nil {
		return value.Nil
	}
	return a.best
}

type avgAgg struct {
	sum sumAgg
	n   int64
}

func (a *avgAgg) Add(v value.Value) error {
	if value.IsNull(v) {
		return nil
	}
	a.n++
	return a.sum.Add(v)
}

func (a *avgAgg) Result() value.Value {
	if a.n == 0 {
		return value.Nil
	}
	total := a.sum.Result()
	// Integer sums average as floats; decimal sums stay decimal.
	if total.Type() == value.TypeInt {
		cast, err := value.Cast(total, value.TypeFloat)
		if err != nil {
			return value.Nil
		}
		total = cast
	}
	out, err := value.Div(total, value.Int(a.n))
	if err != nil {
		return value.Nil
	}
	return out
}

// collectAgg gathers non-null values into a list, in input order.
type collectAgg struct {
	vals value.List
}

func (a *collectAgg) Add(v value.Value) error {
	if value.IsNull(v) {
		return nil
	}
	a.vals = append(a.vals, v)
	return nil
}

func (a *collectAgg) Result() value.Value {
	return append(value.List{}, a.vals...)
}
