package planner

import (
	"fmt"

	"github.com/tuannm99/slatesql/internal/ast"
	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sql/eval"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/value"
)

// BuildPlan resolves stmt against the backend's schemas and produces an
// executable plan. Statements requiring an absent capability are rejected
// here, before any storage mutation.
func BuildPlan(stmt ast.Statement, st store.Store) (Plan, error) {
	b := &builder{st: st}

	switch s := stmt.(type) {
	case *ast.CreateTableStmt:
		return b.bindCreateTable(s)
	case *ast.DropTableStmt:
		if _, err := st.FetchSchema(s.Table); err != nil {
			return nil, tableBindErr(s.Table, err)
		}
		return &DropTablePlan{Table: s.Table}, nil
	case *ast.AlterTableStmt:
		return b.bindAlterTable(s)
	case *ast.CreateIndexStmt:
		return b.bindCreateIndex(s)
	case *ast.DropIndexStmt:
		return b.bindDropIndex(s)
	case *ast.BeginStmt:
		if err := b.requireCap(store.CapTransaction, "transaction"); err != nil {
			return nil, err
		}
		return &BeginPlan{}, nil
	case *ast.CommitStmt:
		if err := b.requireCap(store.CapTransaction, "transaction"); err != nil {
			return nil, err
		}
		return &CommitPlan{}, nil
	case *ast.RollbackStmt:
		if err := b.requireCap(store.CapTransaction, "transaction"); err != nil {
			return nil, err
		}
		return &RollbackPlan{}, nil
	case *ast.ShowTablesStmt:
		if err := b.requireCap(store.CapMetadata, "metadata"); err != nil {
			return nil, err
		}
		return &ShowTablesPlan{}, nil
	case *ast.DescribeStmt:
		schema, err := st.FetchSchema(s.Table)
		if err != nil {
			return nil, tableBindErr(s.Table, err)
		}
		return &DescribePlan{Schema: schema}, nil
	case *ast.InsertStmt:
		return b.bindInsert(s)
	case *ast.UpdateStmt:
		return b.bindUpdate(s)
	case *ast.DeleteStmt:
		return b.bindDelete(s)
	case *ast.SelectStmt:
		return b.bindSelect(s)
	default:
		return nil, sqlerr.Bindf(sqlerr.CodeUnsupportedStatement,
			"unsupported statement type %T", stmt)
	}
}

type builder struct {
	st store.Store
}

func (b *builder) requireCap(cap store.Capabilities, name string) error {
	if !b.st.Capabilities().Has(cap) {
		return sqlerr.Bindf(sqlerr.CodeCapabilityUnsupported,
			"backend does not support the %s capability", name)
	}
	return nil
}

// tableBindErr turns a storage not-found into the bind-time unknown-table
// error; other storage failures pass through.
func tableBindErr(table string, err error) error {
	if sqlerr.CodeOf(err) == sqlerr.CodeNotFound {
		return sqlerr.Bindf(sqlerr.CodeUnknownTable, "unknown table %q", table)
	}
	return err
}

// ---- DDL ----

func (b *builder) bindCreateTable(s *ast.CreateTableStmt) (Plan, error) {
	if len(s.Columns) == 0 {
		return nil, sqlerr.Bindf(sqlerr.CodeUnsupportedStatement,
			"table %q has no columns", s.Table)
	}

	schema := record.Schema{Table: s.Table}
	seen := map[string]bool{}
	for _, def := range s.Columns {
		if seen[def.Name] {
			return nil, sqlerr.Bindf(sqlerr.CodeAmbiguousColumn,
				"duplicate column %q in table %q", def.Name, s.Table)
		}
		seen[def.Name] = true

		col, err := b.bindColumnDef(def)
		if err != nil {
			return nil, err
		}
		schema.Columns = append(schema.Columns, *col)

		if def.PrimaryKey {
			schema.Constraints = append(schema.Constraints,
				record.Constraint{Kind: record.ConstraintPrimary, Columns: []string{def.Name}})
		}
		if def.Unique {
			schema.Constraints = append(schema.Constraints,
				record.Constraint{Kind: record.ConstraintUnique, Columns: []string{def.Name}})
		}
	}

	for _, tc := range s.Constraints {
		kind := record.ConstraintUnique
		if tc.Primary {
			kind = record.ConstraintPrimary
		}
		for _, col := range tc.Columns {
			if !seen[col] {
				return nil, sqlerr.Bindf(sqlerr.CodeUnknownColumn,
					"unknown column %q in table constraint", col)
			}
		}
		schema.Constraints = append(schema.Constraints,
			record.Constraint{Kind: kind, Columns: tc.Columns})
	}

	return &CreateTablePlan{Schema: schema}, nil
}

func (b *builder) bindColumnDef(def ast.ColumnDef) (*record.Column, error) {
	typ, err := value.ParseType(def.Type)
	if err != nil {
		return nil, err
	}

	col := &record.Column{
		Name:     def.Name,
		Type:     typ,
		Nullable: !def.NotNull && !def.PrimaryKey,
	}
	if def.Default != nil {
		dv, err := b.constValue(def.Default, typ)
		if err != nil {
			return nil, err
		}
		col.Default = dv
	}
	return col, nil
}

// constValue folds a scope-free expression (a column default) into a value
// of the target type.
func (b *builder) constValue(e ast.Expr, target value.Type) (value.Value, error) {
	eb := &exprBinder{scope: &scope{}}
	bound, err := eb.bind(e)
	if err != nil {
		return nil, err
	}
	v, err := bound.Eval(nil)
	if err != nil {
		return nil, err
	}
	coerced, err := value.Coerce(v, target)
	if err != nil {
		return nil, sqlerr.Bindf(sqlerr.CodeTypeMismatch,
			"default value of type %s does not fit column type %s", v.Type(), target)
	}
	return coerced, nil
}

func (b *builder) bindAlterTable(s *ast.AlterTableStmt) (Plan, error) {
	if err := b.requireCap(store.CapAlterTable, "alter-table"); err != nil {
		return nil, err
	}
	schema, err := b.st.FetchSchema(s.Table)
	if err != nil {
		return nil, tableBindErr(s.Table, err)
	}

	plan := &AlterTablePlan{Table: s.Table}
	switch {
	case s.RenameTo != "":
		plan.RenameTo = s.RenameTo
	case s.Add != nil:
		if schema.ColumnIndex(s.Add.Name) >= 0 {
			return nil, sqlerr.Bindf(sqlerr.CodeAmbiguousColumn,
				"table %q already has column %q", s.Table, s.Add.Name)
		}
		col, err := b.bindColumnDef(*s.Add)
		if err != nil {
			return nil, err
		}
		plan.Add = col
	case s.Drop != "":
		if schema.ColumnIndex(s.Drop) < 0 {
			return nil, sqlerr.Bindf(sqlerr.CodeUnknownColumn,
				"unknown column %q in table %q", s.Drop, s.Table)
		}
		if len(schema.Columns) == 1 {
			return nil, sqlerr.Bindf(sqlerr.CodeUnsupportedStatement,
				"cannot drop the last column of table %q", s.Table)
		}
		plan.Drop = s.Drop
	default:
		return nil, sqlerr.Bindf(sqlerr.CodeUnsupportedStatement,
			"ALTER TABLE without an action")
	}
	return plan, nil
}

func (b *builder) bindCreateIndex(s *ast.CreateIndexStmt) (Plan, error) {
	if err := b.requireCap(store.CapIndex, "index"); err != nil {
		return nil, err
	}
	schema, err := b.st.FetchSchema(s.Table)
	if err != nil {
		return nil, tableBindErr(s.Table, err)
	}
	for _, col := range s.Columns {
		if schema.ColumnIndex(col) < 0 {
			return nil, sqlerr.Bindf(sqlerr.CodeUnknownColumn,
				"unknown column %q in table %q", col, s.Table)
		}
	}
	return &CreateIndexPlan{Table: s.Table, Name: s.Name, Columns: s.Columns, Unique: s.Unique}, nil
}

func (b *builder) bindDropIndex(s *ast.DropIndexStmt) (Plan, error) {
	if err := b.requireCap(store.CapIndex, "index"); err != nil {
		return nil, err
	}
	if _, err := b.st.FetchSchema(s.Table); err != nil {
		return nil, tableBindErr(s.Table, err)
	}
	return &DropIndexPlan{Table: s.Table, Name: s.Name}, nil
}

// ---- DML ----

func (b *builder) bindInsert(s *ast.InsertStmt) (Plan, error) {
	schema, err := b.st.FetchSchema(s.Table)
	if err != nil {
		return nil, tableBindErr(s.Table, err)
	}

	// Map target columns to schema positions; empty means all, in order.
	targets := make([]int, 0, len(schema.Columns))
	if len(s.Columns) == 0 {
		for i := range schema.Columns {
			targets = append(targets, i)
		}
	} else {
		seen := map[string]bool{}
		for _, name := range s.Columns {
			pos := schema.ColumnIndex(name)
			if pos < 0 {
				return nil, sqlerr.Bindf(sqlerr.CodeUnknownColumn,
					"unknown column %q in table %q", name, s.Table)
			}
			if seen[name] {
				return nil, sqlerr.Bindf(sqlerr.CodeAmbiguousColumn,
					"column %q named twice in INSERT", name)
			}
			seen[name] = true
			targets = append(targets, pos)
		}
	}

	eb := &exprBinder{scope: &scope{}}
	plan := &InsertPlan{Table: s.Table, Schema: schema}
	for _, exprRow := range s.Rows {
		if len(exprRow) != len(targets) {
			return nil, sqlerr.Bindf(sqlerr.CodeTypeMismatch,
				"INSERT into %q has %d values, expected %d", s.Table, len(exprRow), len(targets))
		}

		full := make([]eval.Expr, len(schema.Columns))
		for i, col := range schema.Columns {
			dv := col.Default
			if dv == nil {
				dv = value.Nil
			}
			full[i] = &eval.Literal{Val: dv}
		}
		for i, e := range exprRow {
			bound, err := eb.bind(e)
			if err != nil {
				return nil, err
			}
			col := schema.Columns[targets[i]]
			if !value.CoercibleTo(bound.Type(), col.Type) {
				return nil, sqlerr.Bindf(sqlerr.CodeTypeMismatch,
					"column %q of table %q expects %s, got %s", col.Name, s.Table, col.Type, bound.Type())
			}
			full[targets[i]] = bound
		}
		plan.Rows = append(plan.Rows, full)
	}
	return plan, nil
}

func (b *builder) bindUpdate(s *ast.UpdateStmt) (Plan, error) {
	schema, err := b.st.FetchSchema(s.Table)
	if err != nil {
		return nil, tableBindErr(s.Table, err)
	}
	sc := scopeForTable(s.Table, schema)
	eb := &exprBinder{scope: sc}

	plan := &UpdatePlan{Table: s.Table, Schema: schema}
	assigned := map[int]bool{}
	for _, a := range s.Assignments {
		pos := schema.ColumnIndex(a.Column)
		if pos < 0 {
			return nil, sqlerr.Bindf(sqlerr.CodeUnknownColumn,
				"unknown column %q in table %q", a.Column, s.Table)
		}
		if assigned[pos] {
			return nil, sqlerr.Bindf(sqlerr.CodeAmbiguousColumn,
				"column %q assigned twice", a.Column)
		}
		assigned[pos] = true

		bound, err := eb.bind(a.Value)
		if err != nil {
			return nil, err
		}
		col := schema.Columns[pos]
		if !value.CoercibleTo(bound.Type(), col.Type) {
			return nil, sqlerr.Bindf(sqlerr.CodeTypeMismatch,
				"column %q of table %q expects %s, got %s", col.Name, s.Table, col.Type, bound.Type())
		}
		plan.Sets = append(plan.Sets, Assign{Col: pos, Expr: bound})
	}

	if s.Where != nil {
		pred, err := eb.bindPredicate(s.Where)
		if err != nil {
			return nil, err
		}
		plan.Filter = pred
	}
	return plan, nil
}

func (b *builder) bindDelete(s *ast.DeleteStmt) (Plan, error) {
	schema, err := b.st.FetchSchema(s.Table)
	if err != nil {
		return nil, tableBindErr(s.Table, err)
	}

	plan := &DeletePlan{Table: s.Table, Schema: schema}
	if s.Where != nil {
		eb := &exprBinder{scope: scopeForTable(s.Table, schema)}
		pred, err := eb.bindPredicate(s.Where)
		if err != nil {
			return nil, err
		}
		plan.Filter = pred
	}
	return plan, nil
}

// exprName derives the output column label for an unaliased projection.
func exprName(e ast.Expr) string {
	switch ex := e.(type) {
	case *ast.ColumnRef:
		return ex.Name
	case *ast.FuncCall:
		if ex.Star {
			return fmt.Sprintf("%s(*)", ex.Name)
		}
		return fmt.Sprintf("%s(...)", ex.Name)
	case *ast.CastExpr:
		return "CAST"
	default:
		return "?column?"
	}
}
