package slatesql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/slatesql/internal/ast"
	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/store/memstore"
	"github.com/tuannm99/slatesql/internal/value"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return New(memstore.New())
}

func mustExec(t *testing.T, e *Engine, sql string) *Result {
	t.Helper()
	res, err := e.Exec(sql)
	require.NoError(t, err, sql)
	return res
}

func TestEndToEnd(t *testing.T) {
	e := newEngine(t)

	mustExec(t, e, "CREATE TABLE books (id INT PRIMARY KEY, title TEXT, year INT)")
	res := mustExec(t, e, "INSERT INTO books VALUES (1, 'Dune', 1965), (2, 'Hyperion', 1989)")
	require.Equal(t, int64(2), res.Affected)

	res = mustExec(t, e, "SELECT title FROM books WHERE year > 1980")
	require.Len(t, res.Rows, 1)
	require.Equal(t, value.Str("Hyperion"), res.Rows[0][0])

	res = mustExec(t, e, "UPDATE books SET year = 1990 WHERE id = 2")
	require.Equal(t, int64(1), res.Affected)

	res = mustExec(t, e, "DELETE FROM books WHERE id = 1")
	require.Equal(t, int64(1), res.Affected)
	require.Len(t, mustExec(t, e, "SELECT id FROM books").Rows, 1)
}

func TestParseErrorSurfaces(t *testing.T) {
	e := newEngine(t)
	_, err := e.Exec("SELEC nope")
	require.Error(t, err)
}

func TestBindErrorSurfaces(t *testing.T) {
	e := newEngine(t)
	_, err := e.Exec("SELECT x FROM missing")
	require.Equal(t, sqlerr.CodeUnknownTable, sqlerr.CodeOf(err))
	require.Equal(t, sqlerr.KindBind, sqlerr.KindOf(err))
}

func TestCachedSelectRebindsAfterAlter(t *testing.T) {
	e := newEngine(t)
	mustExec(t, e, "CREATE TABLE t (id INT, v TEXT)")
	mustExec(t, e, "INSERT INTO t VALUES (1, 'a')")

	const q = "SELECT * FROM t"
	require.Len(t, mustExec(t, e, q).Columns, 2)

	// DDL clears the cache; re-running the same text must see the new
	// column without any caller-visible error.
	mustExec(t, e, "ALTER TABLE t ADD COLUMN extra INT DEFAULT 0")
	res := mustExec(t, e, q)
	require.Equal(t, []string{"id", "v", "extra"}, res.Columns)
	require.Equal(t, value.Int(0), res.Rows[0][2])
}

func TestCachedSelectRebindsAfterOutOfBandDDL(t *testing.T) {
	e := newEngine(t)
	mustExec(t, e, "CREATE TABLE t (id INT)")
	mustExec(t, e, "INSERT INTO t VALUES (1)")

	const q = "SELECT * FROM t"
	mustExec(t, e, q)

	// Alter the schema behind the engine's back so the cached plan is
	// stale but the cache still holds it.
	ms := e.Store().(*memstore.Store)
	require.NoError(t, ms.AddColumn("t", record.Column{
		Name: "note", Type: value.TypeStr, Nullable: true,
	}))

	res := mustExec(t, e, q)
	require.Equal(t, []string{"id", "note"}, res.Columns)
}

func TestCapabilityErrorsSurface(t *testing.T) {
	e := New(memstore.NewWithCapabilities(0))
	mustExec(t, e, "CREATE TABLE t (id INT)")

	for _, sql := range []string{
		"BEGIN",
		"CREATE INDEX ix ON t (id)",
		"ALTER TABLE t ADD COLUMN x INT",
		"SHOW TABLES",
	} {
		_, err := e.Exec(sql)
		require.Equal(t, sqlerr.CodeCapabilityUnsupported, sqlerr.CodeOf(err), sql)
	}

	// Core statements keep working.
	mustExec(t, e, "INSERT INTO t VALUES (1)")
	require.Len(t, mustExec(t, e, "SELECT id FROM t").Rows, 1)
}

func TestTransactions(t *testing.T) {
	e := newEngine(t)
	mustExec(t, e, "CREATE TABLE t (id INT)")

	mustExec(t, e, "BEGIN")
	mustExec(t, e, "INSERT INTO t VALUES (1)")
	mustExec(t, e, "ROLLBACK")
	require.Len(t, mustExec(t, e, "SELECT id FROM t").Rows, 0)

	mustExec(t, e, "BEGIN")
	mustExec(t, e, "INSERT INTO t VALUES (2)")
	mustExec(t, e, "COMMIT")
	require.Len(t, mustExec(t, e, "SELECT id FROM t").Rows, 1)
}

func TestTransactionAbortedOnConstraintError(t *testing.T) {
	e := newEngine(t)
	mustExec(t, e, "CREATE TABLE t (id INT PRIMARY KEY)")

	mustExec(t, e, "BEGIN")
	mustExec(t, e, "INSERT INTO t VALUES (1)")
	_, err := e.Exec("INSERT INTO t VALUES (1)")
	require.Equal(t, sqlerr.CodeUniqueViolation, sqlerr.CodeOf(err))

	// The violation rolled the transaction back: the first insert is gone
	// and COMMIT has nothing to close.
	_, err = e.Exec("COMMIT")
	require.Equal(t, sqlerr.CodeNoTransaction, sqlerr.CodeOf(err))
	require.Len(t, mustExec(t, e, "SELECT id FROM t").Rows, 0)

	// Outside a transaction the same failure leaves nothing to roll back.
	mustExec(t, e, "INSERT INTO t VALUES (2)")
	_, err = e.Exec("INSERT INTO t VALUES (2)")
	require.Equal(t, sqlerr.CodeUniqueViolation, sqlerr.CodeOf(err))
	require.Len(t, mustExec(t, e, "SELECT id FROM t").Rows, 1)
}

func TestTransactionAbortedOnEvaluationError(t *testing.T) {
	e := newEngine(t)
	mustExec(t, e, "CREATE TABLE t (id INT)")
	mustExec(t, e, "INSERT INTO t VALUES (0)")

	mustExec(t, e, "BEGIN")
	mustExec(t, e, "INSERT INTO t VALUES (5)")
	_, err := e.Exec("SELECT 1 / id FROM t")
	require.Equal(t, sqlerr.CodeDivisionByZero, sqlerr.CodeOf(err))

	_, err = e.Exec("COMMIT")
	require.Equal(t, sqlerr.CodeNoTransaction, sqlerr.CodeOf(err))
	require.Len(t, mustExec(t, e, "SELECT id FROM t").Rows, 1)
}

func TestExecStmt(t *testing.T) {
	e := newEngine(t)
	mustExec(t, e, "CREATE TABLE t (id INT)")
	mustExec(t, e, "INSERT INTO t VALUES (1), (2)")

	res, err := e.ExecStmt(&ast.SelectStmt{
		Items: []ast.SelectItem{{Star: true}},
		From:  ast.TableRef{Name: "t"},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
}

func TestParseCapabilities(t *testing.T) {
	caps, err := ParseCapabilities(nil)
	require.NoError(t, err)
	require.Equal(t, store.CapAll, caps)

	caps, err = ParseCapabilities([]string{"index", "Transaction"})
	require.NoError(t, err)
	require.True(t, caps.Has(store.CapIndex))
	require.True(t, caps.Has(store.CapTransaction))
	require.False(t, caps.Has(store.CapAlterTable))

	_, err = ParseCapabilities([]string{"teleport"})
	require.Equal(t, sqlerr.CodeCapabilityUnsupported, sqlerr.CodeOf(err))
}
