// Package slatesql is the embeddable SQL engine facade: parse, bind,
// execute against any storage backend implementing the store contracts.
package slatesql

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/tuannm99/slatesql/internal/ast"
	"github.com/tuannm99/slatesql/internal/plancache"
	"github.com/tuannm99/slatesql/internal/sql/executor"
	"github.com/tuannm99/slatesql/internal/sql/parser"
	"github.com/tuannm99/slatesql/internal/sql/planner"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
)

// Result is what a statement produces: rows for queries, an affected-row
// count for mutations.
type Result = executor.Result

type Options struct {
	// Logger receives engine diagnostics; nil uses slog.Default.
	Logger *slog.Logger
	// PlanCacheSize bounds the bound-plan LRU; 0 uses the default.
	PlanCacheSize int
}

// Engine is safe for concurrent use as long as the backend is; the
// bundled memory backend is.
type Engine struct {
	st    store.Store
	exec  *executor.Executor
	plans *plancache.Cache
	log   *slog.Logger

	mu   sync.Mutex
	inTx bool
}

func New(st store.Store) *Engine {
	return NewWithOptions(st, Options{})
}

func NewWithOptions(st store.Store, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		st:    st,
		exec:  executor.New(st, log),
		plans: plancache.New(opts.PlanCacheSize),
		log:   log,
	}
}

// Store exposes the backend, e.g. for seeding data out of band.
func (e *Engine) Store() store.Store { return e.st }

// Exec parses and runs one SQL statement. SELECT plans are cached by
// statement text; a cached plan invalidated by concurrent DDL is re-bound
// transparently.
func (e *Engine) Exec(sql string) (*Result, error) {
	key := strings.TrimSpace(sql)

	if plan, ok := e.plans.Get(key); ok {
		res, err := e.exec.Exec(plan)
		if err == nil {
			return res, nil
		}
		if sqlerr.CodeOf(err) != sqlerr.CodeStaleSchema {
			e.abortTx(err)
			return nil, err
		}
		e.log.Debug("cached plan went stale, re-binding", "stmt", key)
		e.plans.Drop(key)
	}

	stmt, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}

	res, plan, err := e.runStmt(stmt)
	if err != nil {
		return nil, err
	}
	if _, isSelect := plan.(*planner.SelectPlan); isSelect {
		e.plans.Put(key, plan)
	}
	return res, nil
}

// ExecStmt runs an already-built statement tree, for hosts that construct
// the ast directly instead of going through SQL text.
func (e *Engine) ExecStmt(stmt ast.Statement) (*Result, error) {
	res, _, err := e.runStmt(stmt)
	return res, err
}

func (e *Engine) runStmt(stmt ast.Statement) (*Result, planner.Plan, error) {
	plan, err := planner.BuildPlan(stmt, e.st)
	if err != nil {
		return nil, nil, err
	}
	res, err := e.exec.Exec(plan)
	if err != nil {
		// The schema can move between bind and execute; one re-bind
		// settles it.
		if sqlerr.CodeOf(err) == sqlerr.CodeStaleSchema {
			plan, err = planner.BuildPlan(stmt, e.st)
			if err != nil {
				return nil, nil, err
			}
			res, err = e.exec.Exec(plan)
		}
		if err != nil {
			e.abortTx(err)
			return nil, nil, err
		}
	}

	switch plan.(type) {
	case *planner.BeginPlan:
		e.setInTx(true)
	case *planner.CommitPlan, *planner.RollbackPlan:
		e.setInTx(false)
	}
	if changesSchema(plan) {
		e.plans.Clear()
	}
	return res, plan, nil
}

func (e *Engine) setInTx(open bool) {
	e.mu.Lock()
	e.inTx = open
	e.mu.Unlock()
}

// abortTx rolls an open transaction back when a statement fails half way
// through, so a later COMMIT cannot persist a partially applied unit of
// work. Bind and storage errors leave the transaction alone; nothing ran.
func (e *Engine) abortTx(cause error) {
	switch sqlerr.KindOf(cause) {
	case sqlerr.KindConstraint, sqlerr.KindEvaluation:
	default:
		return
	}

	e.mu.Lock()
	open := e.inTx
	e.inTx = false
	e.mu.Unlock()
	if !open {
		return
	}

	tx, ok := e.st.(store.TxStore)
	if !ok {
		return
	}
	if err := tx.Rollback(); err != nil {
		e.log.Warn("could not roll back after failed statement", "err", err)
	}
}

func changesSchema(plan planner.Plan) bool {
	switch plan.(type) {
	case *planner.CreateTablePlan, *planner.DropTablePlan, *planner.AlterTablePlan,
		*planner.CreateIndexPlan, *planner.DropIndexPlan:
		return true
	default:
		return false
	}
}

// ParseCapabilities maps configuration names onto the capability bitset.
// An empty list means all capabilities.
func ParseCapabilities(names []string) (store.Capabilities, error) {
	if len(names) == 0 {
		return store.CapAll, nil
	}
	var caps store.Capabilities
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "alter-table":
			caps |= store.CapAlterTable
		case "index":
			caps |= store.CapIndex
		case "transaction":
			caps |= store.CapTransaction
		case "metadata":
			caps |= store.CapMetadata
		default:
			return 0, sqlerr.Newf(sqlerr.KindBind, sqlerr.CodeCapabilityUnsupported,
				"unknown capability %q", name)
		}
	}
	return caps, nil
}
