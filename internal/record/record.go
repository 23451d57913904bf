// Package record holds the engine's row and schema model. Schemas are
// owned by the storage backend; the engine reads them at bind time and
// mutates them only through the alter-table capability.
package record

import (
	"slices"

	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/value"
)

// Row is an ordered sequence of values positionally aligned to a schema.
// Rows are immutable by convention: operators build new rows instead of
// mutating in place.
type Row []value.Value

func (r Row) Clone() Row {
	return slices.Clone(r)
}

// Key is an opaque, backend-assigned row identifier. The engine never
// interprets it; it only compares keys and uses them as map keys.
type Key string

// Column describes one table column.
type Column struct {
	Name     string
	Type     value.Type
	Nullable bool
	// Default is used when an INSERT omits the column; nil means no default.
	Default value.Value
}

type ConstraintKind uint8

const (
	ConstraintPrimary ConstraintKind = iota + 1
	ConstraintUnique
)

func (k ConstraintKind) String() string {
	if k == ConstraintPrimary {
		return "PRIMARY KEY"
	}
	return "UNIQUE"
}

// Constraint declares a uniqueness rule over one or more columns.
// Primary additionally implies NOT NULL on its columns.
type Constraint struct {
	Kind    ConstraintKind
	Columns []string
}

// Schema is the backend-owned description of a table. Version is bumped by
// the backend on every schema mutation; bound plans pin the version they
// were built against and are rejected when it moves.
type Schema struct {
	Table       string
	Version     uint64
	Columns     []Column
	Constraints []Constraint
}

// ColumnIndex returns the position of the named column, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i := range s.Columns {
		names[i] = s.Columns[i].Name
	}
	return names
}

// primaryColumn reports whether the named column is part of a primary key.
func (s Schema) primaryColumn(name string) bool {
	for _, c := range s.Constraints {
		if c.Kind == ConstraintPrimary && slices.Contains(c.Columns, name) {
			return true
		}
	}
	return false
}

// ValidateRow checks arity, nullability and type conformance of row
// against the schema and returns the normalized row (each cell coerced to
// its declared type). Uniqueness needs storage access and is checked by
// the executor.
func (s Schema) ValidateRow(row Row) (Row, error) {
	if len(row) != len(s.Columns) {
		return nil, sqlerr.Constraintf(sqlerr.CodeValueCoercion,
			"table %q expects %d values, got %d", s.Table, len(s.Columns), len(row))
	}

	out := make(Row, len(row))
	for i, col := range s.Columns {
		v := row[i]
		if value.IsNull(v) {
			if !col.Nullable || s.primaryColumn(col.Name) {
				return nil, sqlerr.Constraintf(sqlerr.CodeNullViolation,
					"column %q of table %q is not nullable", col.Name, s.Table)
			}
			out[i] = value.Nil
			continue
		}

		coerced, err := value.Coerce(v, col.Type)
		if err != nil {
			return nil, sqlerr.Wrap(sqlerr.KindConstraint, sqlerr.CodeValueCoercion, err,
				"column %q of table %q expects %s, got %s", col.Name, s.Table, col.Type, v.Type())
		}
		out[i] = coerced
	}
	return out, nil
}
