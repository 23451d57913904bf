// Package executor runs bound plans against a storage backend. It owns the
// pull pipeline for SELECT and the validate-then-write protocol for
// mutations; all name and type resolution happened in the planner.
package executor

import (
	"log/slog"

	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sql/planner"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/value"
)

// Result is the outcome of one statement. Columns and Rows are set for
// row-returning statements; Affected counts rows written by mutations.
type Result struct {
	Columns  []string
	Rows     []record.Row
	Affected int64
}

type Executor struct {
	st  store.Store
	log *slog.Logger
}

func New(st store.Store, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{st: st, log: log}
}

// Exec runs plan. A plan bound against schema versions that have since
// moved is rejected with a stale-schema error; callers re-bind and retry.
func (e *Executor) Exec(plan planner.Plan) (*Result, error) {
	if err := e.checkPins(plan.Pins()); err != nil {
		return nil, err
	}

	switch p := plan.(type) {
	case *planner.CreateTablePlan:
		return ddlResult(e.st.CreateTable(p.Schema))
	case *planner.DropTablePlan:
		return ddlResult(e.st.DropTable(p.Table))
	case *planner.AlterTablePlan:
		return e.execAlter(p)
	case *planner.CreateIndexPlan:
		ix := e.st.(store.IndexStore)
		return ddlResult(ix.CreateIndex(p.Table, p.Name, p.Columns, p.Unique))
	case *planner.DropIndexPlan:
		ix := e.st.(store.IndexStore)
		return ddlResult(ix.DropIndex(p.Table, p.Name))

	case *planner.BeginPlan:
		return ddlResult(e.st.(store.TxStore).Begin())
	case *planner.CommitPlan:
		return ddlResult(e.st.(store.TxStore).Commit())
	case *planner.RollbackPlan:
		return ddlResult(e.st.(store.TxStore).Rollback())

	case *planner.ShowTablesPlan:
		return e.execShowTables()
	case *planner.DescribePlan:
		return e.execDescribe(p)

	case *planner.InsertPlan:
		return e.execInsert(p)
	case *planner.UpdatePlan:
		return e.execUpdate(p)
	case *planner.DeletePlan:
		return e.execDelete(p)

	case *planner.SelectPlan:
		return e.execSelect(p)

	default:
		return nil, sqlerr.Newf(sqlerr.KindEvaluation, sqlerr.CodeUnsupportedStatement,
			"unexecutable plan type %T", plan)
	}
}

func ddlResult(err error) (*Result, error) {
	if err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (e *Executor) checkPins(pins []planner.TableVersion) error {
	for _, pin := range pins {
		schema, err := e.st.FetchSchema(pin.Table)
		if err != nil {
			return sqlerr.Wrap(sqlerr.KindBind, sqlerr.CodeStaleSchema, err,
				"plan references table %q which is gone", pin.Table)
		}
		if schema.Version != pin.Version {
			return sqlerr.Bindf(sqlerr.CodeStaleSchema,
				"schema of table %q changed (bound against version %d, now %d)",
				pin.Table, pin.Version, schema.Version)
		}
	}
	return nil
}

func (e *Executor) execAlter(p *planner.AlterTablePlan) (*Result, error) {
	at := e.st.(store.AlterTable)
	switch {
	case p.RenameTo != "":
		return ddlResult(at.RenameTable(p.Table, p.RenameTo))
	case p.Add != nil:
		return ddlResult(at.AddColumn(p.Table, *p.Add))
	default:
		return ddlResult(at.DropColumn(p.Table, p.Drop))
	}
}

func (e *Executor) execShowTables() (*Result, error) {
	tables, err := e.st.(store.MetaStore).ListTables()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: []string{"table"}}
	for _, t := range tables {
		res.Rows = append(res.Rows, record.Row{value.Str(t)})
	}
	return res, nil
}

func (e *Executor) execDescribe(p *planner.DescribePlan) (*Result, error) {
	res := &Result{Columns: []string{"column", "type", "nullable", "default"}}
	for _, col := range p.Schema.Columns {
		var def value.Value = value.Nil
		if col.Default != nil {
			def = value.Str(col.Default.String())
		}
		res.Rows = append(res.Rows, record.Row{
			value.Str(col.Name),
			value.Str(col.Type.String()),
			value.Bool(col.Nullable),
			def,
		})
	}
	return res, nil
}

func (e *Executor) execSelect(p *planner.SelectPlan) (*Result, error) {
	it, err := e.buildIter(p.Root)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	res := &Result{Columns: p.Columns}
	for {
		row, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return res, nil
		}
		res.Rows = append(res.Rows, row)
	}
}
