// Package ast is the structured statement tree the engine consumes. The
// engine's contract begins here: any front-end (the bundled parser, a
// host-language binding) that produces these nodes can drive the planner.
package ast

// Statement is the root interface for all SQL statements.
type Statement interface {
	stmtNode()
}

// ----- DDL -----

type ColumnDef struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	Default    Expr
}

type TableConstraint struct {
	Primary bool
	Columns []string
}

type CreateTableStmt struct {
	Table       string
	Columns     []ColumnDef
	Constraints []TableConstraint
}

type DropTableStmt struct {
	Table string
}

// AlterTableStmt carries exactly one of the three actions.
type AlterTableStmt struct {
	Table    string
	RenameTo string
	Add      *ColumnDef
	Drop     string
}

type CreateIndexStmt struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

type DropIndexStmt struct {
	Name  string
	Table string
}

func (*CreateTableStmt) stmtNode() {}
func (*DropTableStmt) stmtNode()   {}
func (*AlterTableStmt) stmtNode()  {}
func (*CreateIndexStmt) stmtNode() {}
func (*DropIndexStmt) stmtNode()   {}

// ----- transactions -----

type BeginStmt struct{}
type CommitStmt struct{}
type RollbackStmt struct{}

func (*BeginStmt) stmtNode()    {}
func (*CommitStmt) stmtNode()   {}
func (*RollbackStmt) stmtNode() {}

// ----- introspection -----

type ShowTablesStmt struct{}

type DescribeStmt struct {
	Table string
}

func (*ShowTablesStmt) stmtNode() {}
func (*DescribeStmt) stmtNode()   {}

// ----- DML -----

type InsertStmt struct {
	Table string
	// Columns optionally names the target columns; empty means all, in
	// schema order.
	Columns []string
	Rows    [][]Expr
}

type Assignment struct {
	Column string
	Value  Expr
}

type UpdateStmt struct {
	Table       string
	Assignments []Assignment
	Where       Expr
}

type DeleteStmt struct {
	Table string
	Where Expr
}

func (*InsertStmt) stmtNode() {}
func (*UpdateStmt) stmtNode() {}
func (*DeleteStmt) stmtNode() {}

// ----- SELECT -----

type TableRef struct {
	Name  string
	Alias string
}

type JoinKind uint8

const (
	JoinInner JoinKind = iota
	JoinLeft
)

func (k JoinKind) String() string {
	if k == JoinLeft {
		return "LEFT JOIN"
	}
	return "JOIN"
}

type JoinClause struct {
	Kind  JoinKind
	Table TableRef
	On    Expr
}

// SelectItem is one projection: either a star (optionally qualified) or an
// expression with an optional alias.
type SelectItem struct {
	Star      bool
	StarTable string
	Expr      Expr
	Alias     string
}

type OrderItem struct {
	Expr Expr
	Desc bool
}

type SelectStmt struct {
	Items   []SelectItem
	From    TableRef
	Joins   []JoinClause
	Where   Expr
	GroupBy []Expr
	Having  Expr
	OrderBy []OrderItem
	Limit   *int64
	Offset  *int64
}

func (*SelectStmt) stmtNode() {}
