package executor

import (
	"strings"

	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sql/eval"
	"github.com/tuannm99/slatesql/internal/sql/planner"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/value"
)

// Mutations follow a validate-then-write protocol: every incoming row is
// validated against the schema and the table's uniqueness constraints
// before the first write is issued, so a constraint failure leaves storage
// untouched. A storage failure mid-write triggers a best-effort undo of the
// writes already applied.

type entry struct {
	key record.Key
	row record.Row
}

func (e *Executor) scanAll(table string) ([]entry, error) {
	it, err := e.st.Scan(table)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []entry
	for {
		key, row, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, entry{key: key, row: row})
	}
}

// uniqueChecker tracks the value tuples of each uniqueness constraint.
// Tuples containing a null are exempt, as in standard SQL.
type uniqueChecker struct {
	table string
	cons  []conState
}

type conState struct {
	kind record.ConstraintKind
	name string
	cols []int
	seen map[string]record.Key
}

func newUniqueChecker(schema record.Schema) *uniqueChecker {
	uc := &uniqueChecker{table: schema.Table}
	for _, c := range schema.Constraints {
		cs := conState{
			kind: c.Kind,
			name: strings.Join(c.Columns, ", "),
			seen: map[string]record.Key{},
		}
		for _, col := range c.Columns {
			cs.cols = append(cs.cols, schema.ColumnIndex(col))
		}
		uc.cons = append(uc.cons, cs)
	}
	return uc
}

func (uc *uniqueChecker) tuple(cs conState, row record.Row) (string, bool) {
	vals := make([]value.Value, len(cs.cols))
	for i, ci := range cs.cols {
		v := row[ci]
		if value.IsNull(v) {
			return "", false
		}
		vals[i] = v
	}
	return value.GroupKey(vals), true
}

// load registers an existing row without checking it.
func (uc *uniqueChecker) load(key record.Key, row record.Row) {
	for i := range uc.cons {
		if k, ok := uc.tuple(uc.cons[i], row); ok {
			uc.cons[i].seen[k] = key
		}
	}
}

// unload removes a row's tuples, used for rows about to be rewritten.
func (uc *uniqueChecker) unload(row record.Row) {
	for i := range uc.cons {
		if k, ok := uc.tuple(uc.cons[i], row); ok {
			delete(uc.cons[i].seen, k)
		}
	}
}

// check verifies row against every constraint and registers it on success.
func (uc *uniqueChecker) check(row record.Row) error {
	for i := range uc.cons {
		cs := uc.cons[i]
		k, ok := uc.tuple(cs, row)
		if !ok {
			continue
		}
		if _, dup := cs.seen[k]; dup {
			return sqlerr.Constraintf(sqlerr.CodeUniqueViolation,
				"duplicate value violates %s (%s) on table %q", cs.kind, cs.name, uc.table)
		}
		cs.seen[k] = ""
	}
	return nil
}

func (e *Executor) execInsert(p *planner.InsertPlan) (*Result, error) {
	rows := make([]record.Row, 0, len(p.Rows))
	for _, exprRow := range p.Rows {
		raw := make(record.Row, len(exprRow))
		for i, ex := range exprRow {
			v, err := ex.Eval(nil)
			if err != nil {
				return nil, err
			}
			raw[i] = v
		}
		normalized, err := p.Schema.ValidateRow(raw)
		if err != nil {
			return nil, err
		}
		rows = append(rows, normalized)
	}

	if len(p.Schema.Constraints) > 0 {
		if err := e.checkInsertUnique(p.Schema, rows); err != nil {
			return nil, err
		}
	}

	if _, err := e.st.Insert(p.Table, rows); err != nil {
		return nil, err
	}
	return &Result{Affected: int64(len(rows))}, nil
}

// checkInsertUnique verifies rows against the table's uniqueness
// constraints before anything is written. When every constraint leads an
// index, existing tuples are probed point-wise through the Index
// capability; otherwise one table scan loads them. Batch-internal
// collisions are caught either way.
func (e *Executor) checkInsertUnique(schema record.Schema, rows []record.Row) error {
	uc := newUniqueChecker(schema)

	probes := e.indexProbes(schema, uc)
	if probes == nil {
		existing, err := e.scanAll(schema.Table)
		if err != nil {
			return err
		}
		for _, en := range existing {
			uc.load(en.key, en.row)
		}
	} else {
		ix := e.st.(store.IndexStore)
		for ci, cs := range uc.cons {
			for _, row := range rows {
				v := row[cs.cols[0]]
				if value.IsNull(v) {
					continue
				}
				pred := store.IndexPredicate{Op: store.IndexEq, Value: v}
				hit, err := indexHasMatch(ix, schema.Table, probes[ci], &pred)
				if err != nil {
					return err
				}
				if hit {
					return sqlerr.Constraintf(sqlerr.CodeUniqueViolation,
						"duplicate value violates %s (%s) on table %q", cs.kind, cs.name, uc.table)
				}
			}
		}
	}

	for _, row := range rows {
		if err := uc.check(row); err != nil {
			return err
		}
	}
	return nil
}

// indexProbes maps each constraint to an index answering point lookups on
// its column. It returns nil unless every constraint is covered; a single
// uncovered constraint forces the table scan anyway.
func (e *Executor) indexProbes(schema record.Schema, uc *uniqueChecker) map[int]string {
	if !e.st.Capabilities().Has(store.CapIndex) {
		return nil
	}
	ix, ok := e.st.(store.IndexStore)
	if !ok {
		return nil
	}
	metas, err := ix.Indexes(schema.Table)
	if err != nil {
		return nil
	}

	probes := make(map[int]string, len(uc.cons))
	for i, cs := range uc.cons {
		if len(cs.cols) != 1 {
			return nil
		}
		col := schema.Columns[cs.cols[0]].Name
		name := ""
		for _, m := range metas {
			if len(m.Columns) == 1 && m.Columns[0] == col {
				name = m.Name
				break
			}
		}
		if name == "" {
			return nil
		}
		probes[i] = name
	}
	return probes
}

func indexHasMatch(ix store.IndexStore, table, index string, pred *store.IndexPredicate) (bool, error) {
	it, err := ix.ScanIndex(table, index, pred)
	if err != nil {
		return false, err
	}
	defer it.Close()
	_, _, ok, err := it.Next()
	return ok, err
}

func (e *Executor) execUpdate(p *planner.UpdatePlan) (*Result, error) {
	existing, err := e.scanAll(p.Table)
	if err != nil {
		return nil, err
	}

	type change struct {
		key     record.Key
		old     record.Row
		updated record.Row
	}
	var changes []change
	for _, en := range existing {
		match, err := rowMatches(p.Filter, en.row)
		if err != nil {
			return nil, err
		}
		if !match {
			continue
		}
		updated := en.row.Clone()
		for _, set := range p.Sets {
			v, err := set.Expr.Eval(en.row)
			if err != nil {
				return nil, err
			}
			updated[set.Col] = v
		}
		normalized, err := p.Schema.ValidateRow(updated)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change{key: en.key, old: en.row, updated: normalized})
	}

	if len(p.Schema.Constraints) > 0 {
		uc := newUniqueChecker(p.Schema)
		for _, en := range existing {
			uc.load(en.key, en.row)
		}
		for _, ch := range changes {
			uc.unload(ch.old)
		}
		for _, ch := range changes {
			if err := uc.check(ch.updated); err != nil {
				return nil, err
			}
		}
	}

	for i, ch := range changes {
		if err := e.st.Update(p.Table, ch.key, ch.updated); err != nil {
			// Best-effort restore of the rows already rewritten.
			for _, done := range changes[:i] {
				if undoErr := e.st.Update(p.Table, done.key, done.old); undoErr != nil {
					e.log.Warn("could not restore row after failed update",
						"table", p.Table, "key", string(done.key), "err", undoErr)
				}
			}
			return nil, err
		}
	}
	return &Result{Affected: int64(len(changes))}, nil
}

func (e *Executor) execDelete(p *planner.DeletePlan) (*Result, error) {
	existing, err := e.scanAll(p.Table)
	if err != nil {
		return nil, err
	}

	var keys []record.Key
	for _, en := range existing {
		match, err := rowMatches(p.Filter, en.row)
		if err != nil {
			return nil, err
		}
		if match {
			keys = append(keys, en.key)
		}
	}

	for i, key := range keys {
		if err := e.st.Delete(p.Table, key); err != nil {
			e.log.Warn("delete failed mid-statement",
				"table", p.Table, "deleted", i, "of", len(keys), "err", err)
			return nil, err
		}
	}
	return &Result{Affected: int64(len(keys))}, nil
}

func rowMatches(filter eval.Expr, row record.Row) (bool, error) {
	if filter == nil {
		return true, nil
	}
	v, err := filter.Eval(row)
	if err != nil {
		return false, err
	}
	return eval.Passes(v)
}
