// Package planner binds parsed statements against schema fetched from
// storage and produces immutable, schema-pinned plans. All name
// resolution, type checking and capability gating happens here, before
// any storage mutation is possible.
package planner

import (
	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sql/eval"
	"github.com/tuannm99/slatesql/internal/store"
)

// TableVersion pins the schema version a plan was bound against. The
// executor re-fetches live schemas and refuses to run a stale plan.
type TableVersion struct {
	Table   string
	Version uint64
}

// Plan is the interface for executable plans.
type Plan interface {
	planNode()
	// Pins lists the schema versions the plan depends on.
	Pins() []TableVersion
}

// ---- DDL ----

type CreateTablePlan struct {
	Schema record.Schema
}

type DropTablePlan struct {
	Table string
}

// AlterTablePlan carries exactly one action, mirroring ast.AlterTableStmt.
type AlterTablePlan struct {
	Table    string
	RenameTo string
	Add      *record.Column
	Drop     string
}

type CreateIndexPlan struct {
	Table   string
	Name    string
	Columns []string
	Unique  bool
}

type DropIndexPlan struct {
	Table string
	Name  string
}

func (*CreateTablePlan) planNode() {}
func (*DropTablePlan) planNode()   {}
func (*AlterTablePlan) planNode()  {}
func (*CreateIndexPlan) planNode() {}
func (*DropIndexPlan) planNode()   {}

func (*CreateTablePlan) Pins() []TableVersion { return nil }
func (*DropTablePlan) Pins() []TableVersion   { return nil }
func (*AlterTablePlan) Pins() []TableVersion  { return nil }
func (*CreateIndexPlan) Pins() []TableVersion { return nil }
func (*DropIndexPlan) Pins() []TableVersion   { return nil }

// ---- transactions ----

type BeginPlan struct{}
type CommitPlan struct{}
type RollbackPlan struct{}

func (*BeginPlan) planNode()    {}
func (*CommitPlan) planNode()   {}
func (*RollbackPlan) planNode() {}

func (*BeginPlan) Pins() []TableVersion    { return nil }
func (*CommitPlan) Pins() []TableVersion   { return nil }
func (*RollbackPlan) Pins() []TableVersion { return nil }

// ---- introspection ----

type ShowTablesPlan struct{}

type DescribePlan struct {
	Schema record.Schema
}

func (*ShowTablesPlan) planNode() {}
func (*DescribePlan) planNode()   {}

func (*ShowTablesPlan) Pins() []TableVersion { return nil }
func (p *DescribePlan) Pins() []TableVersion {
	return []TableVersion{{Table: p.Schema.Table, Version: p.Schema.Version}}
}

// ---- DML ----

// InsertPlan rows are full-width and aligned to the pinned schema;
// omitted columns were filled with their defaults at bind time.
type InsertPlan struct {
	Table  string
	Schema record.Schema
	Rows   [][]eval.Expr
}

type Assign struct {
	Col  int
	Expr eval.Expr
}

type UpdatePlan struct {
	Table  string
	Schema record.Schema
	Sets   []Assign
	Filter eval.Expr // nil matches every row
}

type DeletePlan struct {
	Table  string
	Schema record.Schema
	Filter eval.Expr
}

func (*InsertPlan) planNode() {}
func (*UpdatePlan) planNode() {}
func (*DeletePlan) planNode() {}

func (p *InsertPlan) Pins() []TableVersion {
	return []TableVersion{{Table: p.Table, Version: p.Schema.Version}}
}

func (p *UpdatePlan) Pins() []TableVersion {
	return []TableVersion{{Table: p.Table, Version: p.Schema.Version}}
}

func (p *DeletePlan) Pins() []TableVersion {
	return []TableVersion{{Table: p.Table, Version: p.Schema.Version}}
}

// ---- SELECT ----

type SelectPlan struct {
	Root    Node
	Columns []string
	pins    []TableVersion
}

func (*SelectPlan) planNode()              {}
func (p *SelectPlan) Pins() []TableVersion { return p.pins }

// Node is one operator of a bound SELECT tree. The executor walks it as a
// pull pipeline: scan -> filter -> join -> aggregate -> sort -> limit ->
// projection.
type Node interface {
	nodeMark()
	// Width is the number of columns in the rows the node produces.
	Width() int
}

// IndexScan narrows a Scan through the index capability.
type IndexScan struct {
	Name string
	Pred store.IndexPredicate
}

type ScanNode struct {
	Table  string
	Schema record.Schema
	Index  *IndexScan
}

type FilterNode struct {
	Input Node
	Pred  eval.Expr
}

// EquiKey marks an equality join exploitable by a hash strategy. Right is
// relative to the right input's row.
type EquiKey struct {
	Left  int
	Right int
}

type JoinKind uint8

const (
	JoinInner JoinKind = iota
	JoinLeft
)

type JoinNode struct {
	Left  Node
	Right Node
	Kind  JoinKind
	On    eval.Expr
	Equi  *EquiKey
}

// AggSpec is one aggregate computed per group. Arg is nil for COUNT(*).
type AggSpec struct {
	Name string
	Star bool
	Arg  eval.Expr
}

// AggregateNode partitions input rows by the group-by tuple and emits one
// row per group laid out as [group values..., aggregate results...].
type AggregateNode struct {
	Input   Node
	GroupBy []eval.Expr
	Aggs    []AggSpec
}

type SortKey struct {
	Expr eval.Expr
	Desc bool
}

type SortNode struct {
	Input Node
	Keys  []SortKey
}

type LimitNode struct {
	Input  Node
	Limit  int64
	Offset int64
	// HasLimit distinguishes LIMIT 0 from no limit.
	HasLimit bool
}

type ProjectNode struct {
	Input Node
	Exprs []eval.Expr
}

func (*ScanNode) nodeMark()      {}
func (*FilterNode) nodeMark()    {}
func (*JoinNode) nodeMark()      {}
func (*AggregateNode) nodeMark() {}
func (*SortNode) nodeMark()      {}
func (*LimitNode) nodeMark()     {}
func (*ProjectNode) nodeMark()   {}

func (n *ScanNode) Width() int      { return len(n.Schema.Columns) }
func (n *FilterNode) Width() int    { return n.Input.Width() }
func (n *JoinNode) Width() int      { return n.Left.Width() + n.Right.Width() }
func (n *AggregateNode) Width() int { return len(n.GroupBy) + len(n.Aggs) }
func (n *SortNode) Width() int      { return n.Input.Width() }
func (n *LimitNode) Width() int     { return n.Input.Width() }
func (n *ProjectNode) Width() int   { return len(n.Exprs) }
