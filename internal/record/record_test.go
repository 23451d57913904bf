package record

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/value"
)

func userSchema() Schema {
	return Schema{
		Table: "users",
		Columns: []Column{
			{Name: "id", Type: value.TypeInt},
			{Name: "name", Type: value.TypeStr},
			{Name: "score", Type: value.TypeFloat, Nullable: true},
		},
		Constraints: []Constraint{
			{Kind: ConstraintPrimary, Columns: []string{"id"}},
		},
	}
}

func TestValidateRowNormalizes(t *testing.T) {
	s := userSchema()
	out, err := s.ValidateRow(Row{value.Int(1), value.Str("ana"), value.Int(7)})
	require.NoError(t, err)
	// Int widens to the declared FLOAT.
	require.Equal(t, value.Float(7), out[2])
}

func TestValidateRowArity(t *testing.T) {
	s := userSchema()
	_, err := s.ValidateRow(Row{value.Int(1)})
	require.Error(t, err)
	require.Equal(t, sqlerr.KindConstraint, sqlerr.KindOf(err))
}

func TestValidateRowNullability(t *testing.T) {
	s := userSchema()

	_, err := s.ValidateRow(Row{value.Int(1), value.Nil, value.Nil})
	require.Error(t, err)
	require.Equal(t, sqlerr.CodeNullViolation, sqlerr.CodeOf(err))

	out, err := s.ValidateRow(Row{value.Int(1), value.Str("bo"), value.Nil})
	require.NoError(t, err)
	require.True(t, value.IsNull(out[2]))
}

func TestValidateRowPrimaryImpliesNotNull(t *testing.T) {
	s := userSchema()
	// id is Nullable-false anyway; force the constraint path.
	s.Columns[0].Nullable = true

	_, err := s.ValidateRow(Row{value.Nil, value.Str("cy"), value.Nil})
	require.Error(t, err)
	require.Equal(t, sqlerr.CodeNullViolation, sqlerr.CodeOf(err))
}

func TestValidateRowCoercionFailure(t *testing.T) {
	s := userSchema()
	_, err := s.ValidateRow(Row{value.Int(1), value.Str("ok"), value.Str("not a number")})
	require.Error(t, err)
	require.Equal(t, sqlerr.CodeValueCoercion, sqlerr.CodeOf(err))
}

func TestColumnIndex(t *testing.T) {
	s := userSchema()
	require.Equal(t, 1, s.ColumnIndex("name"))
	require.Equal(t, -1, s.ColumnIndex("missing"))
	require.Equal(t, []string{"id", "name", "score"}, s.ColumnNames())
}
