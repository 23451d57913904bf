package executor

import (
	"sort"

	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sql/eval"
	"github.com/tuannm99/slatesql/internal/sql/planner"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/value"
)

// rowIter is the executor-side pull iterator. Operators compose into a tree
// mirroring the plan; each Next pulls as little input as it can.
type rowIter interface {
	Next() (record.Row, bool, error)
	Close() error
}

func (e *Executor) buildIter(n planner.Node) (rowIter, error) {
	switch node := n.(type) {
	case *planner.ScanNode:
		return e.buildScan(node)
	case *planner.FilterNode:
		in, err := e.buildIter(node.Input)
		if err != nil {
			return nil, err
		}
		return &filterIter{in: in, pred: node.Pred}, nil
	case *planner.JoinNode:
		return e.buildJoin(node)
	case *planner.AggregateNode:
		in, err := e.buildIter(node.Input)
		if err != nil {
			return nil, err
		}
		return newAggIter(in, node)
	case *planner.SortNode:
		in, err := e.buildIter(node.Input)
		if err != nil {
			return nil, err
		}
		return &sortIter{in: in, keys: node.Keys}, nil
	case *planner.LimitNode:
		in, err := e.buildIter(node.Input)
		if err != nil {
			return nil, err
		}
		return &limitIter{in: in, node: node}, nil
	case *planner.ProjectNode:
		in, err := e.buildIter(node.Input)
		if err != nil {
			return nil, err
		}
		return &projectIter{in: in, exprs: node.Exprs}, nil
	default:
		return nil, sqlerr.Newf(sqlerr.KindEvaluation, sqlerr.CodeUnsupportedStatement,
			"unexecutable operator type %T", n)
	}
}

func (e *Executor) buildScan(node *planner.ScanNode) (rowIter, error) {
	var (
		src store.RowIterator
		err error
	)
	if node.Index != nil {
		ix := e.st.(store.IndexStore)
		pred := node.Index.Pred
		src, err = ix.ScanIndex(node.Table, node.Index.Name, &pred)
	} else {
		src, err = e.st.Scan(node.Table)
	}
	if err != nil {
		return nil, err
	}
	return &scanIter{src: src}, nil
}

// scanIter adapts a storage iterator, dropping the key.
type scanIter struct {
	src store.RowIterator
}

func (s *scanIter) Next() (record.Row, bool, error) {
	_, row, ok, err := s.src.Next()
	return row, ok, err
}

func (s *scanIter) Close() error { return s.src.Close() }

// filterIter passes only rows whose predicate is true; false and unknown
// both reject.
type filterIter struct {
	in   rowIter
	pred eval.Expr
}

func (f *filterIter) Next() (record.Row, bool, error) {
	for {
		row, ok, err := f.in.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		v, err := f.pred.Eval(row)
		if err != nil {
			return nil, false, err
		}
		pass, err := eval.Passes(v)
		if err != nil {
			return nil, false, err
		}
		if pass {
			return row, true, nil
		}
	}
}

func (f *filterIter) Close() error { return f.in.Close() }

// ---- join ----

func (e *Executor) buildJoin(node *planner.JoinNode) (rowIter, error) {
	left, err := e.buildIter(node.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.buildIter(node.Right)
	if err != nil {
		left.Close()
		return nil, err
	}

	// The right side is materialized once; the left streams.
	var rightRows []record.Row
	for {
		row, ok, err := right.Next()
		if err != nil {
			right.Close()
			left.Close()
			return nil, err
		}
		if !ok {
			break
		}
		rightRows = append(rightRows, row)
	}
	if err := right.Close(); err != nil {
		left.Close()
		return nil, err
	}

	j := &joinIter{
		left:       left,
		rightRows:  rightRows,
		node:       node,
		rightWidth: node.Right.Width(),
	}
	// Inner equi-joins probe a hash table instead of walking every right
	// row. Null keys never match, matching the ON semantics.
	if node.Equi != nil && node.Kind == planner.JoinInner {
		j.hash = make(map[string][]record.Row)
		for _, row := range rightRows {
			v := row[node.Equi.Right]
			if value.IsNull(v) {
				continue
			}
			k := value.GroupKey([]value.Value{v})
			j.hash[k] = append(j.hash[k], row)
		}
	}
	return j, nil
}

type joinIter struct {
	left       rowIter
	rightRows  []record.Row
	hash       map[string][]record.Row
	node       *planner.JoinNode
	rightWidth int

	curLeft    record.Row
	candidates []record.Row
	pos        int
	matched    bool
	done       bool
}

func (j *joinIter) Next() (record.Row, bool, error) {
	for {
		if j.curLeft == nil {
			if j.done {
				return nil, false, nil
			}
			row, ok, err := j.left.Next()
			if err != nil {
				return nil, false, err
			}
			if !ok {
				j.done = true
				return nil, false, nil
			}
			j.curLeft = row
			j.pos = 0
			j.matched = false
			j.candidates = j.rightRows
			if j.hash != nil {
				v := row[j.node.Equi.Left]
				if value.IsNull(v) {
					j.candidates = nil
				} else {
					j.candidates = j.hash[value.GroupKey([]value.Value{v})]
				}
			}
		}

		for j.pos < len(j.candidates) {
			rightRow := j.candidates[j.pos]
			j.pos++
			combined := append(j.curLeft.Clone(), rightRow...)
			v, err := j.node.On.Eval(combined)
			if err != nil {
				return nil, false, err
			}
			pass, err := eval.Passes(v)
			if err != nil {
				return nil, false, err
			}
			if pass {
				j.matched = true
				return combined, true, nil
			}
		}

		// Left outer: a left row with no match pads the right with nulls.
		if j.node.Kind == planner.JoinLeft && !j.matched {
			padded := j.curLeft.Clone()
			for i := 0; i < j.rightWidth; i++ {
				padded = append(padded, value.Nil)
			}
			j.curLeft = nil
			return padded, true, nil
		}
		j.curLeft = nil
	}
}

func (j *joinIter) Close() error { return j.left.Close() }

// ---- aggregation ----

// aggIter consumes its whole input up front, one group per distinct
// group-by tuple (nulls group together). Without GROUP BY there is exactly
// one group, present even for empty input so COUNT(*) yields 0.
type aggIter struct {
	rows []record.Row
	pos  int
}

type groupState struct {
	vals record.Row
	aggs []eval.Aggregator
}

func newAggIter(in rowIter, node *planner.AggregateNode) (rowIter, error) {
	defer in.Close()

	groups := map[string]*groupState{}
	var order []string

	newGroup := func(vals record.Row) (*groupState, error) {
		g := &groupState{vals: vals}
		for _, spec := range node.Aggs {
			agg, err := eval.NewAggregator(spec.Name, spec.Star)
			if err != nil {
				return nil, err
			}
			g.aggs = append(g.aggs, agg)
		}
		return g, nil
	}

	if len(node.GroupBy) == 0 {
		g, err := newGroup(nil)
		if err != nil {
			return nil, err
		}
		groups[""] = g
		order = append(order, "")
	}

	for {
		row, ok, err := in.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		vals := make(record.Row, len(node.GroupBy))
		for i, g := range node.GroupBy {
			v, err := g.Eval(row)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		key := value.GroupKey(vals)

		g, exists := groups[key]
		if !exists {
			g, err = newGroup(vals)
			if err != nil {
				return nil, err
			}
			groups[key] = g
			order = append(order, key)
		}

		for i, spec := range node.Aggs {
			var arg value.Value = value.Nil
			if !spec.Star {
				arg, err = spec.Arg.Eval(row)
				if err != nil {
					return nil, err
				}
			}
			if err := g.aggs[i].Add(arg); err != nil {
				return nil, err
			}
		}
	}

	out := &aggIter{}
	for _, key := range order {
		g := groups[key]
		row := make(record.Row, 0, len(g.vals)+len(g.aggs))
		row = append(row, g.vals...)
		for _, agg := range g.aggs {
			row = append(row, agg.Result())
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

func (a *aggIter) Next() (record.Row, bool, error) {
	if a.pos >= len(a.rows) {
		return nil, false, nil
	}
	row := a.rows[a.pos]
	a.pos++
	return row, true, nil
}

func (a *aggIter) Close() error { return nil }

// ---- sort ----

// sortIter materializes its input and sorts stably. Nulls order before all
// non-null values regardless of direction.
type sortIter struct {
	in   rowIter
	keys []planner.SortKey

	rows   []record.Row
	pos    int
	sorted bool
}

func (s *sortIter) Next() (record.Row, bool, error) {
	if !s.sorted {
		if err := s.materialize(); err != nil {
			return nil, false, err
		}
	}
	if s.pos >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true, nil
}

func (s *sortIter) materialize() error {
	defer func() { s.sorted = true }()
	for {
		row, ok, err := s.in.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		s.rows = append(s.rows, row)
	}

	// Keys are evaluated once per row, not per comparison.
	keyVals := make([][]value.Value, len(s.rows))
	for i, row := range s.rows {
		vals := make([]value.Value, len(s.keys))
		for k, sk := range s.keys {
			v, err := sk.Expr.Eval(row)
			if err != nil {
				return err
			}
			vals[k] = v
		}
		keyVals[i] = vals
	}

	idx := make([]int, len(s.rows))
	for i := range idx {
		idx[i] = i
	}
	var sortErr error
	sort.SliceStable(idx, func(a, b int) bool {
		if sortErr != nil {
			return false
		}
		for k, sk := range s.keys {
			av, bv := keyVals[idx[a]][k], keyVals[idx[b]][k]
			an, bn := value.IsNull(av), value.IsNull(bv)
			if an || bn {
				if an && bn {
					continue
				}
				// Null precedes every value, even descending.
				return an
			}
			ord, ok, err := value.Compare(av, bv)
			if err != nil {
				sortErr = err
				return false
			}
			if !ok || ord == value.Equal {
				continue
			}
			if sk.Desc {
				return ord == value.Greater
			}
			return ord == value.Less
		}
		return false
	})
	if sortErr != nil {
		return sortErr
	}

	sorted := make([]record.Row, len(s.rows))
	for i, j := range idx {
		sorted[i] = s.rows[j]
	}
	s.rows = sorted
	return nil
}

func (s *sortIter) Close() error { return s.in.Close() }

// ---- limit / offset ----

type limitIter struct {
	in      rowIter
	node    *planner.LimitNode
	skipped int64
	emitted int64
}

func (l *limitIter) Next() (record.Row, bool, error) {
	for l.skipped < l.node.Offset {
		_, ok, err := l.in.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		l.skipped++
	}
	if l.node.HasLimit && l.emitted >= l.node.Limit {
		return nil, false, nil
	}
	row, ok, err := l.in.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	l.emitted++
	return row, true, nil
}

func (l *limitIter) Close() error { return l.in.Close() }

// ---- projection ----

type projectIter struct {
	in    rowIter
	exprs []eval.Expr
}

func (p *projectIter) Next() (record.Row, bool, error) {
	row, ok, err := p.in.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	out := make(record.Row, len(p.exprs))
	for i, e := range p.exprs {
		v, err := e.Eval(row)
		if err != nil {
			return nil, false, err
		}
		out[i] = v
	}
	return out, true, nil
}

func (p *projectIter) Close() error { return p.in.Close() }
