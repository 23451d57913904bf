package memstore

import (
	"slices"
	"sort"

	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/value"
)

// ---- alter-table capability ----

func (s *Store) RenameTable(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tables[oldName]
	if !exists {
		return unknownTable(oldName)
	}
	if _, taken := s.tables[newName]; taken {
		return sqlerr.Storagef(sqlerr.CodeTableExists, "table %q already exists", newName)
	}

	t.schema.Table = newName
	t.schema.Version++
	delete(s.tables, oldName)
	s.tables[newName] = t
	return nil
}

// AddColumn appends col and back-fills its default (or null) into every
// existing row.
func (s *Store) AddColumn(name string, col record.Column) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tables[name]
	if !exists {
		return unknownTable(name)
	}
	if t.schema.ColumnIndex(col.Name) >= 0 {
		return sqlerr.Storagef(sqlerr.CodeBackend,
			"table %q already has column %q", name, col.Name)
	}

	fill := col.Default
	if fill == nil {
		fill = value.Nil
	}
	if value.IsNull(fill) && !col.Nullable {
		return sqlerr.Storagef(sqlerr.CodeBackend,
			"cannot add non-nullable column %q without a default", col.Name)
	}

	t.schema.Columns = append(slices.Clone(t.schema.Columns), col)
	t.schema.Version++
	for i := range t.entries {
		row := append(t.entries[i].row.Clone(), fill)
		t.entries[i].row = row
	}
	t.rebuildIndexes()
	return nil
}

func (s *Store) DropColumn(name, column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tables[name]
	if !exists {
		return unknownTable(name)
	}
	pos := t.schema.ColumnIndex(column)
	if pos < 0 {
		return sqlerr.Storagef(sqlerr.CodeNotFound,
			"table %q has no column %q", name, column)
	}

	// Indexes covering the column go with it.
	for idxName, idx := range t.indexes {
		if slices.Contains(idx.meta.Columns, column) {
			delete(t.indexes, idxName)
		}
	}

	cols := slices.Clone(t.schema.Columns)
	t.schema.Columns = slices.Delete(cols, pos, pos+1)
	t.schema.Version++
	for i := range t.entries {
		row := t.entries[i].row.Clone()
		t.entries[i].row = slices.Delete(row, pos, pos+1)
	}
	t.rebuildIndexes()
	return nil
}

// ---- index capability ----

func (s *Store) CreateIndex(tableName, name string, columns []string, unique bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tables[tableName]
	if !exists {
		return unknownTable(tableName)
	}
	if _, taken := t.indexes[name]; taken {
		return sqlerr.Storagef(sqlerr.CodeIndexExists,
			"index %q already exists on table %q", name, tableName)
	}
	for _, col := range columns {
		if t.schema.ColumnIndex(col) < 0 {
			return sqlerr.Storagef(sqlerr.CodeNotFound,
				"table %q has no column %q", tableName, col)
		}
	}

	idx := &memIndex{meta: store.IndexMeta{Name: name, Columns: slices.Clone(columns), Unique: unique}}
	t.indexes[name] = idx
	t.rebuildIndexes()

	// A unique index over data that already collides cannot be built.
	// Entries are sorted by tuple, so duplicates are adjacent.
	if unique {
		for i := 1; i < len(idx.entries); i++ {
			if compareVals(idx.entries[i-1].vals, idx.entries[i].vals) == 0 {
				delete(t.indexes, name)
				return sqlerr.Constraintf(sqlerr.CodeUniqueViolation,
					"cannot create unique index %q: table %q holds duplicate values",
					name, tableName)
			}
		}
	}
	return nil
}

func (s *Store) DropIndex(tableName, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tables[tableName]
	if !exists {
		return unknownTable(tableName)
	}
	if _, found := t.indexes[name]; !found {
		return sqlerr.Storagef(sqlerr.CodeNotFound,
			"index %q not found on table %q", name, tableName)
	}
	delete(t.indexes, name)
	return nil
}

func (s *Store) Indexes(tableName string) ([]store.IndexMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tables[tableName]
	if !exists {
		return nil, unknownTable(tableName)
	}
	metas := make([]store.IndexMeta, 0, len(t.indexes))
	for _, idx := range t.indexes {
		metas = append(metas, idx.meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

// ScanIndex walks the sorted index entries matching pred against the
// leading index column and materializes a (Key, Row) snapshot in index
// order.
func (s *Store) ScanIndex(tableName, name string, pred *store.IndexPredicate) (store.RowIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tables[tableName]
	if !exists {
		return nil, unknownTable(tableName)
	}
	idx, found := t.indexes[name]
	if !found {
		return nil, sqlerr.Storagef(sqlerr.CodeNotFound,
			"index %q not found on table %q", name, tableName)
	}

	var out []entry
	for _, ie := range idx.entries {
		match, err := predMatches(pred, ie.vals[0])
		if err != nil {
			return nil, err
		}
		if !match {
			continue
		}
		if pos, ok := t.byKey[ie.key]; ok {
			out = append(out, t.entries[pos])
		}
	}
	return &sliceIterator{entries: out}, nil
}

func predMatches(pred *store.IndexPredicate, v value.Value) (bool, error) {
	if pred == nil {
		return true, nil
	}
	ord, ok, err := value.Compare(v, pred.Value)
	if err != nil {
		return false, sqlerr.Wrap(sqlerr.KindStorage, sqlerr.CodeBackend, err, "index predicate")
	}
	if !ok {
		return false, nil
	}
	switch pred.Op {
	case store.IndexEq:
		return ord == value.Equal, nil
	case store.IndexLt:
		return ord == value.Less, nil
	case store.IndexLe:
		return ord != value.Greater, nil
	case store.IndexGt:
		return ord == value.Greater, nil
	case store.IndexGe:
		return ord != value.Less, nil
	default:
		return false, nil
	}
}

// ---- transaction capability ----

// Begin snapshots the whole store. Nested transactions are rejected; a
// savepoint-capable backend may choose to nest instead.
func (s *Store) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txBackup != nil {
		return sqlerr.Txf(sqlerr.CodeNestedTransaction, "transaction already in progress")
	}
	backup := make(map[string]*table, len(s.tables))
	for name, t := range s.tables {
		backup[name] = t.clone()
	}
	s.txBackup = backup
	return nil
}

func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txBackup == nil {
		return sqlerr.Txf(sqlerr.CodeNoTransaction, "no transaction in progress")
	}
	s.txBackup = nil
	return nil
}

func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.txBackup == nil {
		return sqlerr.Txf(sqlerr.CodeNoTransaction, "no transaction in progress")
	}
	s.tables = s.txBackup
	s.txBackup = nil
	return nil
}

// ---- metadata capability ----

func (s *Store) ListTables() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
