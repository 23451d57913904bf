package memstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/value"
)

func itemsSchema() record.Schema {
	return record.Schema{
		Table: "items",
		Columns: []record.Column{
			{Name: "id", Type: value.TypeInt},
			{Name: "label", Type: value.TypeStr, Nullable: true},
		},
	}
}

func seed(t *testing.T, s *Store) []record.Key {
	t.Helper()
	require.NoError(t, s.CreateTable(itemsSchema()))
	keys, err := s.Insert("items", []record.Row{
		{value.Int(1), value.Str("a")},
		{value.Int(2), value.Str("b")},
		{value.Int(3), value.Nil},
	})
	require.NoError(t, err)
	require.Len(t, keys, 3)
	return keys
}

func collect(t *testing.T, it store.RowIterator) []record.Row {
	t.Helper()
	defer func() { require.NoError(t, it.Close()) }()
	var rows []record.Row
	for {
		_, row, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}

func TestCreateTableTwice(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateTable(itemsSchema()))
	err := s.CreateTable(itemsSchema())
	require.Error(t, err)
	require.Equal(t, sqlerr.CodeTableExists, sqlerr.CodeOf(err))
}

func TestCRUD(t *testing.T) {
	s := New()
	keys := seed(t, s)

	it, err := s.Scan("items")
	require.NoError(t, err)
	require.Len(t, collect(t, it), 3)

	require.NoError(t, s.Update("items", keys[0], record.Row{value.Int(10), value.Str("a2")}))
	require.NoError(t, s.Delete("items", keys[1]))

	it, err = s.Scan("items")
	require.NoError(t, err)
	rows := collect(t, it)
	require.Len(t, rows, 2)
	require.Equal(t, value.Int(10), rows[0][0])

	err = s.Delete("items", "no-such-key")
	require.Equal(t, sqlerr.CodeNotFound, sqlerr.CodeOf(err))
}

func TestScanSnapshotSurvivesWrites(t *testing.T) {
	s := New()
	seed(t, s)

	it, err := s.Scan("items")
	require.NoError(t, err)

	// Writes after Scan must not disturb the running iteration.
	_, err = s.Insert("items", []record.Row{{value.Int(4), value.Str("d")}})
	require.NoError(t, err)

	require.Len(t, collect(t, it), 3)
}

func TestSchemaVersionBumpsOnAlter(t *testing.T) {
	s := New()
	seed(t, s)

	before, err := s.FetchSchema("items")
	require.NoError(t, err)
	require.Equal(t, uint64(1), before.Version)

	require.NoError(t, s.AddColumn("items", record.Column{
		Name: "qty", Type: value.TypeInt, Nullable: true, Default: value.Int(0),
	}))

	after, err := s.FetchSchema("items")
	require.NoError(t, err)
	require.Greater(t, after.Version, before.Version)
	require.Equal(t, 3, len(after.Columns))
}

func TestAddColumnBackfillsDefault(t *testing.T) {
	s := New()
	seed(t, s)

	require.NoError(t, s.AddColumn("items", record.Column{
		Name: "qty", Type: value.TypeInt, Nullable: true, Default: value.Int(7),
	}))

	it, err := s.Scan("items")
	require.NoError(t, err)
	for _, row := range collect(t, it) {
		require.Len(t, row, 3)
		require.Equal(t, value.Int(7), row[2])
	}
}

func TestAddColumnRejectsNotNullWithoutDefault(t *testing.T) {
	s := New()
	seed(t, s)

	err := s.AddColumn("items", record.Column{Name: "req", Type: value.TypeInt})
	require.Error(t, err)
}

func TestDropColumnNarrowsRows(t *testing.T) {
	s := New()
	seed(t, s)

	require.NoError(t, s.DropColumn("items", "label"))
	sc, err := s.FetchSchema("items")
	require.NoError(t, err)
	require.Equal(t, []string{"id"}, sc.ColumnNames())

	it, err := s.Scan("items")
	require.NoError(t, err)
	for _, row := range collect(t, it) {
		require.Len(t, row, 1)
	}
}

func TestRenameTable(t *testing.T) {
	s := New()
	seed(t, s)

	require.NoError(t, s.RenameTable("items", "stock"))
	_, err := s.FetchSchema("items")
	require.Equal(t, sqlerr.CodeNotFound, sqlerr.CodeOf(err))

	sc, err := s.FetchSchema("stock")
	require.NoError(t, err)
	require.Equal(t, "stock", sc.Table)
}

func TestIndexScan(t *testing.T) {
	s := New()
	seed(t, s)
	require.NoError(t, s.CreateIndex("items", "ix_id", []string{"id"}, false))

	pred := &store.IndexPredicate{Op: store.IndexGe, Value: value.Int(2)}
	it, err := s.ScanIndex("items", "ix_id", pred)
	require.NoError(t, err)
	rows := collect(t, it)
	require.Len(t, rows, 2)
	// Index order: ascending by value.
	require.Equal(t, value.Int(2), rows[0][0])
	require.Equal(t, value.Int(3), rows[1][0])
}

func TestIndexMaintainedAcrossWrites(t *testing.T) {
	s := New()
	keys := seed(t, s)
	require.NoError(t, s.CreateIndex("items", "ix_id", []string{"id"}, false))

	require.NoError(t, s.Update("items", keys[0], record.Row{value.Int(9), value.Str("a")}))
	require.NoError(t, s.Delete("items", keys[1]))

	it, err := s.ScanIndex("items", "ix_id", nil)
	require.NoError(t, err)
	rows := collect(t, it)
	require.Len(t, rows, 2)
	require.Equal(t, value.Int(3), rows[0][0])
	require.Equal(t, value.Int(9), rows[1][0])
}

func TestIndexSkipsNullTuples(t *testing.T) {
	s := New()
	seed(t, s)
	require.NoError(t, s.CreateIndex("items", "ix_label", []string{"label"}, false))

	it, err := s.ScanIndex("items", "ix_label", nil)
	require.NoError(t, err)
	// The row with a null label is not indexed.
	require.Len(t, collect(t, it), 2)
}

func TestUniqueIndexEnforced(t *testing.T) {
	s := New()
	keys := seed(t, s)
	require.NoError(t, s.CreateIndex("items", "ux_id", []string{"id"}, true))

	_, err := s.Insert("items", []record.Row{{value.Int(1), value.Str("dup")}})
	require.Equal(t, sqlerr.CodeUniqueViolation, sqlerr.CodeOf(err))

	// Batch-internal duplicates collide on the second row.
	_, err = s.Insert("items", []record.Row{
		{value.Int(8), value.Str("x")},
		{value.Int(8), value.Str("y")},
	})
	require.Equal(t, sqlerr.CodeUniqueViolation, sqlerr.CodeOf(err))

	// Updating a row into another row's tuple is rejected; rewriting a row
	// under its own key keeps its tuple and passes.
	err = s.Update("items", keys[0], record.Row{value.Int(2), value.Str("a")})
	require.Equal(t, sqlerr.CodeUniqueViolation, sqlerr.CodeOf(err))
	require.NoError(t, s.Update("items", keys[0], record.Row{value.Int(1), value.Str("a2")}))
}

func TestUniqueIndexSkipsNullTuples(t *testing.T) {
	s := New()
	seed(t, s)
	require.NoError(t, s.CreateIndex("items", "ux_label", []string{"label"}, true))

	// Null labels never enter the index, so they never collide.
	_, err := s.Insert("items", []record.Row{{value.Int(9), value.Nil}})
	require.NoError(t, err)
}

func TestCreateUniqueIndexRejectsExistingDuplicates(t *testing.T) {
	s := New()
	seed(t, s)
	_, err := s.Insert("items", []record.Row{{value.Int(4), value.Str("a")}})
	require.NoError(t, err)

	err = s.CreateIndex("items", "ux_label", []string{"label"}, true)
	require.Equal(t, sqlerr.CodeUniqueViolation, sqlerr.CodeOf(err))

	// The rejected index leaves no trace behind.
	_, err = s.ScanIndex("items", "ux_label", nil)
	require.Equal(t, sqlerr.CodeNotFound, sqlerr.CodeOf(err))
}

func TestCreateIndexTwice(t *testing.T) {
	s := New()
	seed(t, s)
	require.NoError(t, s.CreateIndex("items", "ix_id", []string{"id"}, false))
	err := s.CreateIndex("items", "ix_id", []string{"id"}, false)
	require.Equal(t, sqlerr.CodeIndexExists, sqlerr.CodeOf(err))
}

func TestTransactionRollback(t *testing.T) {
	s := New()
	seed(t, s)

	require.NoError(t, s.Begin())
	_, err := s.Insert("items", []record.Row{{value.Int(4), value.Str("d")}})
	require.NoError(t, err)
	require.NoError(t, s.CreateTable(record.Schema{
		Table:   "tmp",
		Columns: []record.Column{{Name: "x", Type: value.TypeInt}},
	}))
	require.NoError(t, s.Rollback())

	it, err := s.Scan("items")
	require.NoError(t, err)
	require.Len(t, collect(t, it), 3)
	_, err = s.FetchSchema("tmp")
	require.Equal(t, sqlerr.CodeNotFound, sqlerr.CodeOf(err))
}

func TestTransactionCommit(t *testing.T) {
	s := New()
	seed(t, s)

	require.NoError(t, s.Begin())
	_, err := s.Insert("items", []record.Row{{value.Int(4), value.Str("d")}})
	require.NoError(t, err)
	require.NoError(t, s.Commit())

	it, err := s.Scan("items")
	require.NoError(t, err)
	require.Len(t, collect(t, it), 4)
}

func TestNestedBeginRejected(t *testing.T) {
	s := New()
	require.NoError(t, s.Begin())
	err := s.Begin()
	require.Equal(t, sqlerr.CodeNestedTransaction, sqlerr.CodeOf(err))
	require.NoError(t, s.Rollback())
}

func TestCommitWithoutBegin(t *testing.T) {
	s := New()
	require.Equal(t, sqlerr.CodeNoTransaction, sqlerr.CodeOf(s.Commit()))
	require.Equal(t, sqlerr.CodeNoTransaction, sqlerr.CodeOf(s.Rollback()))
}

func TestListTablesSorted(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateTable(record.Schema{
		Table: "zoo", Columns: []record.Column{{Name: "x", Type: value.TypeInt}},
	}))
	require.NoError(t, s.CreateTable(record.Schema{
		Table: "ant", Columns: []record.Column{{Name: "x", Type: value.TypeInt}},
	}))

	names, err := s.ListTables()
	require.NoError(t, err)
	require.Equal(t, []string{"ant", "zoo"}, names)
}

func TestCapabilitiesAdvertised(t *testing.T) {
	require.Equal(t, store.CapAll, New().Capabilities())

	bare := NewWithCapabilities(0)
	require.False(t, bare.Capabilities().Has(store.CapIndex))
	require.False(t, bare.Capabilities().Has(store.CapTransaction))

	// The core contract works regardless of capabilities.
	require.NoError(t, bare.CreateTable(itemsSchema()))
	_, err := bare.Insert("items", []record.Row{{value.Int(1), value.Str("a")}})
	require.NoError(t, err)
}
