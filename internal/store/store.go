// Package store defines the storage contracts the engine executes
// against. Store is the mandatory core; the extension interfaces are
// independently optional and advertised through Capabilities. The binder
// rejects statements whose capability is absent before any storage
// mutation is attempted.
package store

import (
	"strings"

	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/value"
)

// Capabilities is the set of optional contracts a backend implements,
// fixed at construction time.
type Capabilities uint8

const (
	CapAlterTable Capabilities = 1 << iota
	CapIndex
	CapTransaction
	CapMetadata

	CapAll = CapAlterTable | CapIndex | CapTransaction | CapMetadata
)

func (c Capabilities) Has(want Capabilities) bool { return c&want == want }

func (c Capabilities) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	if c.Has(CapAlterTable) {
		parts = append(parts, "alter-table")
	}
	if c.Has(CapIndex) {
		parts = append(parts, "index")
	}
	if c.Has(CapTransaction) {
		parts = append(parts, "transaction")
	}
	if c.Has(CapMetadata) {
		parts = append(parts, "metadata")
	}
	return strings.Join(parts, ",")
}

// RowIterator is a finite, lazy (Key, Row) sequence. It is not restartable;
// re-scan by calling Scan again. Callers may stop early (LIMIT) and must
// Close; backends must stay consistent after an abandoned iteration.
type RowIterator interface {
	// Next returns the next entry. ok=false with a nil error means the
	// sequence is exhausted.
	Next() (record.Key, record.Row, bool, error)
	Close() error
}

// Store is the mandatory core contract: schema lookup, full scan and
// row-level writes. Scan ordering is backend-defined; the executor imposes
// its own ORDER BY on top.
type Store interface {
	// Capabilities reports which optional contracts the backend implements.
	// The concrete type must also satisfy the corresponding interfaces.
	Capabilities() Capabilities

	CreateTable(schema record.Schema) error
	DropTable(table string) error

	FetchSchema(table string) (record.Schema, error)
	Scan(table string) (RowIterator, error)
	Insert(table string, rows []record.Row) ([]record.Key, error)
	Update(table string, key record.Key, row record.Row) error
	Delete(table string, key record.Key) error
}

// AlterTable is the optional schema-mutation contract. Each operation
// bumps the schema version.
type AlterTable interface {
	RenameTable(oldName, newName string) error
	// AddColumn back-fills col.Default (or null) into existing rows.
	AddColumn(table string, col record.Column) error
	DropColumn(table, column string) error
}

// IndexOp is the comparison an index predicate applies to the leading
// index column.
type IndexOp uint8

const (
	IndexEq IndexOp = iota
	IndexLt
	IndexLe
	IndexGt
	IndexGe
)

// IndexPredicate narrows an index scan. Value is compared against the
// index's leading column.
type IndexPredicate struct {
	Op    IndexOp
	Value value.Value
}

type IndexMeta struct {
	Name    string
	Columns []string
	Unique  bool
}

// IndexStore is the optional secondary-index contract. Keeping indexes
// consistent under insert/update/delete is the backend's responsibility;
// the engine only creates, drops and queries them.
type IndexStore interface {
	CreateIndex(table, name string, columns []string, unique bool) error
	DropIndex(table, name string) error
	Indexes(table string) ([]IndexMeta, error)
	// ScanIndex returns entries matching pred in index order; a nil pred
	// walks the whole index.
	ScanIndex(table, name string, pred *IndexPredicate) (RowIterator, error)
}

// TxStore is the optional transaction contract. Whether nested Begin calls
// error or nest as savepoints is backend-defined; the reference in-memory
// backend rejects them.
type TxStore interface {
	Begin() error
	Commit() error
	Rollback() error
}

// MetaStore is the optional introspection contract.
type MetaStore interface {
	ListTables() ([]string, error)
}
