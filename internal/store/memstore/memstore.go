// Package memstore is the reference in-memory backend. It implements the
// core contract plus all four optional capabilities; tests construct
// degraded variants via NewWithCapabilities to exercise capability gating.
package memstore

import (
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/value"
)

type entry struct {
	key record.Key
	row record.Row
}

type idxEntry struct {
	vals []value.Value
	key  record.Key
}

type memIndex struct {
	meta store.IndexMeta
	// entries is kept sorted by vals, then key. Rows with a null in any
	// indexed column are not indexed; the engine falls back to scans for
	// null predicates.
	entries []idxEntry
}

type table struct {
	schema  record.Schema
	entries []entry
	byKey   map[record.Key]int
	indexes map[string]*memIndex
}

// Store is a map-backed storage engine. All methods are safe for
// concurrent use; isolation across callers is the transaction
// capability's job.
type Store struct {
	mu     sync.RWMutex
	caps   store.Capabilities
	tables map[string]*table

	// txBackup holds a deep copy of tables while a transaction is open.
	txBackup map[string]*table
}

var (
	_ store.Store      = (*Store)(nil)
	_ store.AlterTable = (*Store)(nil)
	_ store.IndexStore = (*Store)(nil)
	_ store.TxStore    = (*Store)(nil)
	_ store.MetaStore  = (*Store)(nil)
)

// New returns a fully capable in-memory store.
func New() *Store {
	return NewWithCapabilities(store.CapAll)
}

// NewWithCapabilities returns a store advertising only caps. The methods
// for masked capabilities still exist on the type but the engine never
// calls them without checking the capability set first.
func NewWithCapabilities(caps store.Capabilities) *Store {
	return &Store{
		caps:   caps,
		tables: make(map[string]*table),
	}
}

func (s *Store) Capabilities() store.Capabilities { return s.caps }

// ---- core contract ----

func (s *Store) CreateTable(schema record.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[schema.Table]; exists {
		return sqlerr.Storagef(sqlerr.CodeTableExists, "table %q already exists", schema.Table)
	}

	schema.Version = 1
	schema.Columns = slices.Clone(schema.Columns)
	schema.Constraints = slices.Clone(schema.Constraints)
	s.tables[schema.Table] = &table{
		schema:  schema,
		byKey:   make(map[record.Key]int),
		indexes: make(map[string]*memIndex),
	}
	return nil
}

func (s *Store) DropTable(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tables[name]; !exists {
		return unknownTable(name)
	}
	delete(s.tables, name)
	return nil
}

func (s *Store) FetchSchema(name string) (record.Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tables[name]
	if !exists {
		return record.Schema{}, unknownTable(name)
	}
	sc := t.schema
	sc.Columns = slices.Clone(sc.Columns)
	sc.Constraints = slices.Clone(sc.Constraints)
	return sc, nil
}

// Scan snapshots the entry list under the lock; rows themselves are never
// mutated in place, so the snapshot stays consistent for the statement.
func (s *Store) Scan(name string) (store.RowIterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tables[name]
	if !exists {
		return nil, unknownTable(name)
	}
	return &sliceIterator{entries: slices.Clone(t.entries)}, nil
}

func (s *Store) Insert(name string, rows []record.Row) ([]record.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tables[name]
	if !exists {
		return nil, unknownTable(name)
	}

	keys := make([]record.Key, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(t.schema.Columns) {
			return keys, sqlerr.Storagef(sqlerr.CodeBackend,
				"table %q: row width %d does not match schema width %d",
				name, len(row), len(t.schema.Columns))
		}
		if err := t.checkUniqueIndexes("", row); err != nil {
			return keys, err
		}
		k := record.Key(uuid.NewString())
		t.byKey[k] = len(t.entries)
		t.entries = append(t.entries, entry{key: k, row: row})
		t.indexInsert(k, row)
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *Store) Update(name string, key record.Key, row record.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tables[name]
	if !exists {
		return unknownTable(name)
	}
	pos, found := t.byKey[key]
	if !found {
		return unknownKey(name, key)
	}
	if len(row) != len(t.schema.Columns) {
		return sqlerr.Storagef(sqlerr.CodeBackend,
			"table %q: row width %d does not match schema width %d",
			name, len(row), len(t.schema.Columns))
	}
	if err := t.checkUniqueIndexes(key, row); err != nil {
		return err
	}

	t.indexDelete(key, t.entries[pos].row)
	t.entries[pos] = entry{key: key, row: row}
	t.indexInsert(key, row)
	return nil
}

func (s *Store) Delete(name string, key record.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.tables[name]
	if !exists {
		return unknownTable(name)
	}
	pos, found := t.byKey[key]
	if !found {
		return unknownKey(name, key)
	}

	t.indexDelete(key, t.entries[pos].row)
	t.entries = slices.Delete(t.entries, pos, pos+1)
	delete(t.byKey, key)
	for i := pos; i < len(t.entries); i++ {
		t.byKey[t.entries[i].key] = i
	}
	return nil
}

// ---- helpers ----

func unknownTable(name string) error {
	return sqlerr.Storagef(sqlerr.CodeNotFound, "table %q not found", name)
}

func unknownKey(table string, key record.Key) error {
	return sqlerr.Storagef(sqlerr.CodeNotFound, "table %q: key %q not found", table, key)
}

type sliceIterator struct {
	entries []entry
	pos     int
}

func (it *sliceIterator) Next() (record.Key, record.Row, bool, error) {
	if it.pos >= len(it.entries) {
		return "", nil, false, nil
	}
	e := it.entries[it.pos]
	it.pos++
	return e.key, e.row, true, nil
}

func (it *sliceIterator) Close() error {
	it.entries = nil
	return nil
}

// clone deep-copies everything except the rows themselves, which are
// treated as immutable by the whole engine.
func (t *table) clone() *table {
	sc := t.schema
	sc.Columns = slices.Clone(sc.Columns)
	sc.Constraints = slices.Clone(sc.Constraints)

	cp := &table{
		schema:  sc,
		entries: slices.Clone(t.entries),
		byKey:   maps.Clone(t.byKey),
		indexes: make(map[string]*memIndex, len(t.indexes)),
	}
	for name, idx := range t.indexes {
		cp.indexes[name] = &memIndex{
			meta:    idx.meta,
			entries: slices.Clone(idx.entries),
		}
	}
	return cp
}

// compareVals orders index tuples; indexed values never contain nulls.
func compareVals(a, b []value.Value) int {
	for i := 0; i < min(len(a), len(b)); i++ {
		ord, ok, err := value.Compare(a[i], b[i])
		if err != nil || !ok {
			return 0
		}
		if ord != value.Equal {
			return int(ord)
		}
	}
	return len(a) - len(b)
}

func (t *table) indexVals(idx *memIndex, row record.Row) ([]value.Value, bool) {
	vals := make([]value.Value, 0, len(idx.meta.Columns))
	for _, col := range idx.meta.Columns {
		pos := t.schema.ColumnIndex(col)
		if pos < 0 || value.IsNull(row[pos]) {
			return nil, false
		}
		vals = append(vals, row[pos])
	}
	return vals, true
}

func (t *table) indexInsert(key record.Key, row record.Row) {
	for _, idx := range t.indexes {
		vals, ok := t.indexVals(idx, row)
		if !ok {
			continue
		}
		at := sort.Search(len(idx.entries), func(i int) bool {
			c := compareVals(idx.entries[i].vals, vals)
			if c == 0 {
				return idx.entries[i].key >= key
			}
			return c > 0
		})
		idx.entries = slices.Insert(idx.entries, at, idxEntry{vals: vals, key: key})
	}
}

// checkUniqueIndexes rejects row when any unique index already holds its
// tuple under a different key. Tuples with a null are exempt, mirroring
// the schema-level uniqueness rule. self excludes the row being rewritten.
func (t *table) checkUniqueIndexes(self record.Key, row record.Row) error {
	for _, idx := range t.indexes {
		if !idx.meta.Unique {
			continue
		}
		vals, ok := t.indexVals(idx, row)
		if !ok {
			continue
		}
		at := sort.Search(len(idx.entries), func(i int) bool {
			return compareVals(idx.entries[i].vals, vals) >= 0
		})
		for ; at < len(idx.entries) && compareVals(idx.entries[at].vals, vals) == 0; at++ {
			if idx.entries[at].key != self {
				return sqlerr.Constraintf(sqlerr.CodeUniqueViolation,
					"duplicate value violates unique index %q on table %q",
					idx.meta.Name, t.schema.Table)
			}
		}
	}
	return nil
}

func (t *table) indexDelete(key record.Key, row record.Row) {
	for _, idx := range t.indexes {
		for i := range idx.entries {
			if idx.entries[i].key == key {
				idx.entries = slices.Delete(idx.entries, i, i+1)
				break
			}
		}
	}
}

func (t *table) rebuildIndexes() {
	for _, idx := range t.indexes {
		idx.entries = idx.entries[:0]
	}
	for _, e := range t.entries {
		t.indexInsert(e.key, e.row)
	}
}
