package planner

import (
	"github.com/tuannm99/slatesql/internal/ast"
	"github.com/tuannm99/slatesql/internal/sql/eval"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/value"
)

func (b *builder) bindSelect(s *ast.SelectStmt) (Plan, error) {
	sc := &scope{}
	plan := &SelectPlan{}

	// FROM and joins: the working row is the left columns followed by the
	// right columns, join by join.
	baseSchema, err := b.st.FetchSchema(s.From.Name)
	if err != nil {
		return nil, tableBindErr(s.From.Name, err)
	}
	baseAlias := s.From.Alias
	if baseAlias == "" {
		baseAlias = s.From.Name
	}
	sc.addTable(baseAlias, baseSchema)
	plan.pins = append(plan.pins, TableVersion{Table: s.From.Name, Version: baseSchema.Version})

	scan := &ScanNode{Table: s.From.Name, Schema: baseSchema}
	var root Node = scan

	for _, j := range s.Joins {
		rightSchema, err := b.st.FetchSchema(j.Table.Name)
		if err != nil {
			return nil, tableBindErr(j.Table.Name, err)
		}
		rightAlias := j.Table.Alias
		if rightAlias == "" {
			rightAlias = j.Table.Name
		}
		if sc.hasTable(rightAlias) {
			return nil, sqlerr.Bindf(sqlerr.CodeAmbiguousColumn,
				"duplicate table name %q; alias one of the occurrences", rightAlias)
		}

		leftWidth := root.Width()
		sc.addTable(rightAlias, rightSchema)
		plan.pins = append(plan.pins, TableVersion{Table: j.Table.Name, Version: rightSchema.Version})

		join := &JoinNode{
			Left:  root,
			Right: &ScanNode{Table: j.Table.Name, Schema: rightSchema},
		}
		if j.Kind == ast.JoinLeft {
			join.Kind = JoinLeft
		}

		eb := &exprBinder{scope: sc}
		on, err := eb.bindPredicate(j.On)
		if err != nil {
			return nil, err
		}
		join.On = on
		join.Equi = equiKey(j.On, sc, leftWidth)
		root = join
	}

	// WHERE runs against the joined row; on a single-table query it also
	// feeds index selection.
	if s.Where != nil {
		eb := &exprBinder{scope: sc}
		pred, err := eb.bindPredicate(s.Where)
		if err != nil {
			return nil, err
		}
		if len(s.Joins) == 0 {
			scan.Index = b.pickIndex(s.From.Name, s.Where, sc)
		}
		root = &FilterNode{Input: root, Pred: pred}
	}

	// Aggregation: any aggregate call or GROUP BY switches the pipeline to
	// grouped rows laid out as [group values..., aggregate results...].
	aggs, err := collectAggregates(s)
	if err != nil {
		return nil, err
	}
	grouped := len(aggs) > 0 || len(s.GroupBy) > 0

	var layout *aggLayout
	if grouped {
		base := &exprBinder{scope: sc}
		layout = &aggLayout{groupBy: s.GroupBy}

		node := &AggregateNode{Input: root}
		for _, g := range s.GroupBy {
			bound, err := base.bind(g)
			if err != nil {
				return nil, err
			}
			node.GroupBy = append(node.GroupBy, bound)
			layout.gbTypes = append(layout.gbTypes, bound.Type())
		}
		for _, fc := range aggs {
			spec := AggSpec{Name: fc.Name, Star: fc.Star}
			argType := value.TypeInt
			if !fc.Star {
				if len(fc.Args) != 1 {
					return nil, sqlerr.Bindf(sqlerr.CodeBadArity,
						"%s expects 1 argument, got %d", fc.Name, len(fc.Args))
				}
				arg, err := base.bind(fc.Args[0])
				if err != nil {
					return nil, err
				}
				spec.Arg = arg
				argType = arg.Type()
			}
			node.Aggs = append(node.Aggs, spec)
			layout.aggs = append(layout.aggs, fc)
			layout.aggTypes = append(layout.aggTypes, eval.AggResultType(fc.Name, argType))
		}
		root = node
	} else if s.Having != nil {
		return nil, sqlerr.Bindf(sqlerr.CodeUnsupportedStatement,
			"HAVING requires GROUP BY or an aggregate")
	}

	// Everything downstream of the aggregate binds through its layout.
	out := &exprBinder{scope: sc, agg: layout}

	if s.Having != nil {
		pred, err := out.bindPredicate(s.Having)
		if err != nil {
			return nil, err
		}
		root = &FilterNode{Input: root, Pred: pred}
	}

	// Projections bind before ORDER BY so sort keys can reference output
	// aliases, but the projection node itself is applied last.
	var projExprs []eval.Expr
	type outCol struct {
		alias string
		expr  eval.Expr
	}
	var outs []outCol
	for _, item := range s.Items {
		if item.Star {
			if grouped {
				return nil, sqlerr.Bindf(sqlerr.CodeUnsupportedStatement,
					"SELECT * cannot be combined with aggregation")
			}
			cols, names, err := expandStar(sc, item.StarTable)
			if err != nil {
				return nil, err
			}
			projExprs = append(projExprs, cols...)
			plan.Columns = append(plan.Columns, names...)
			for i := range cols {
				outs = append(outs, outCol{alias: names[i], expr: cols[i]})
			}
			continue
		}
		bound, err := out.bind(item.Expr)
		if err != nil {
			return nil, err
		}
		name := item.Alias
		if name == "" {
			name = exprName(item.Expr)
		}
		projExprs = append(projExprs, bound)
		plan.Columns = append(plan.Columns, name)
		outs = append(outs, outCol{alias: name, expr: bound})
	}

	if len(s.OrderBy) > 0 {
		sort := &SortNode{Input: root}
		for _, oi := range s.OrderBy {
			bound, err := out.bind(oi.Expr)
			if err != nil {
				// Fall back to an output alias for bare names, so
				// ORDER BY cnt works for SELECT COUNT(*) AS cnt.
				ref, isRef := oi.Expr.(*ast.ColumnRef)
				if !isRef || ref.Table != "" {
					return nil, err
				}
				var match eval.Expr
				for _, oc := range outs {
					if oc.alias == ref.Name {
						if match != nil {
							return nil, sqlerr.Bindf(sqlerr.CodeAmbiguousColumn,
								"ambiguous output column %q in ORDER BY", ref.Name)
						}
						match = oc.expr
					}
				}
				if match == nil {
					return nil, err
				}
				bound = match
			}
			sort.Keys = append(sort.Keys, SortKey{Expr: bound, Desc: oi.Desc})
		}
		root = sort
	}

	if s.Limit != nil || s.Offset != nil {
		limit := &LimitNode{Input: root}
		if s.Limit != nil {
			limit.Limit = *s.Limit
			limit.HasLimit = true
		}
		if s.Offset != nil {
			limit.Offset = *s.Offset
		}
		root = limit
	}

	plan.Root = &ProjectNode{Input: root, Exprs: projExprs}
	return plan, nil
}

// expandStar resolves * or alias.* into column reads, left to right.
func expandStar(sc *scope, table string) ([]eval.Expr, []string, error) {
	if table != "" && !sc.hasTable(table) {
		return nil, nil, sqlerr.Bindf(sqlerr.CodeUnknownTable,
			"unknown table %q in star projection", table)
	}
	var exprs []eval.Expr
	var names []string
	for i, c := range sc.cols {
		if table != "" && c.table != table {
			continue
		}
		exprs = append(exprs, &eval.Column{Index: i, Name: c.name, Typ: c.typ})
		names = append(names, c.name)
	}
	return exprs, names, nil
}

// collectAggregates gathers the distinct aggregate calls of the SELECT list,
// HAVING and ORDER BY. Aggregates nested inside aggregates are rejected.
func collectAggregates(s *ast.SelectStmt) ([]*ast.FuncCall, error) {
	var found []*ast.FuncCall
	add := func(fc *ast.FuncCall) {
		for _, have := range found {
			if astEqual(have, fc) {
				return
			}
		}
		found = append(found, fc)
	}

	var walk func(e ast.Expr, inAgg bool) error
	walk = func(e ast.Expr, inAgg bool) error {
		switch ex := e.(type) {
		case nil, *ast.Literal, *ast.ColumnRef:
			return nil
		case *ast.BinaryExpr:
			if err := walk(ex.Left, inAgg); err != nil {
				return err
			}
			return walk(ex.Right, inAgg)
		case *ast.UnaryExpr:
			return walk(ex.Expr, inAgg)
		case *ast.FuncCall:
			if eval.IsAggregateFunc(ex.Name) {
				if inAgg {
					return sqlerr.Bindf(sqlerr.CodeUnsupportedStatement,
						"aggregate %s cannot be nested inside another aggregate", ex.Name)
				}
				add(ex)
				inAgg = true
			}
			for _, a := range ex.Args {
				if err := walk(a, inAgg); err != nil {
					return err
				}
			}
			return nil
		case *ast.CaseExpr:
			if err := walk(ex.Operand, inAgg); err != nil {
				return err
			}
			for _, w := range ex.Whens {
				if err := walk(w.Cond, inAgg); err != nil {
					return err
				}
				if err := walk(w.Result, inAgg); err != nil {
					return err
				}
			}
			return walk(ex.Else, inAgg)
		case *ast.InExpr:
			if err := walk(ex.Expr, inAgg); err != nil {
				return err
			}
			for _, el := range ex.List {
				if err := walk(el, inAgg); err != nil {
					return err
				}
			}
			return nil
		case *ast.BetweenExpr:
			if err := walk(ex.Expr, inAgg); err != nil {
				return err
			}
			if err := walk(ex.Low, inAgg); err != nil {
				return err
			}
			return walk(ex.High, inAgg)
		case *ast.IsNullExpr:
			return walk(ex.Expr, inAgg)
		case *ast.LikeExpr:
			if err := walk(ex.Expr, inAgg); err != nil {
				return err
			}
			return walk(ex.Pattern, inAgg)
		case *ast.CastExpr:
			return walk(ex.Expr, inAgg)
		default:
			return nil
		}
	}

	for _, item := range s.Items {
		if item.Star {
			continue
		}
		if err := walk(item.Expr, false); err != nil {
			return nil, err
		}
	}
	if err := walk(s.Having, false); err != nil {
		return nil, err
	}
	for _, oi := range s.OrderBy {
		if err := walk(oi.Expr, false); err != nil {
			return nil, err
		}
	}
	// WHERE may not aggregate; surface the error at collection time rather
	// than during expression binding.
	var whereAggs []*ast.FuncCall
	saved := found
	found = nil
	if err := walk(s.Where, false); err != nil {
		return nil, err
	}
	whereAggs, found = found, saved
	if len(whereAggs) > 0 {
		return nil, sqlerr.Bindf(sqlerr.CodeUnsupportedStatement,
			"aggregate %s is not allowed in WHERE", whereAggs[0].Name)
	}
	return found, nil
}

// equiKey recognizes ON conditions of the shape left.col = right.col so the
// executor can use a hash join.
func equiKey(on ast.Expr, sc *scope, leftWidth int) *EquiKey {
	bin, ok := on.(*ast.BinaryExpr)
	if !ok || bin.Op != ast.OpEq {
		return nil
	}
	lref, ok := bin.Left.(*ast.ColumnRef)
	if !ok {
		return nil
	}
	rref, ok := bin.Right.(*ast.ColumnRef)
	if !ok {
		return nil
	}
	li, _, err := sc.resolve(lref.Table, lref.Name)
	if err != nil {
		return nil
	}
	ri, _, err := sc.resolve(rref.Table, rref.Name)
	if err != nil {
		return nil
	}
	if li >= leftWidth {
		li, ri = ri, li
	}
	if li >= leftWidth || ri < leftWidth {
		return nil
	}
	return &EquiKey{Left: li, Right: ri - leftWidth}
}

// pickIndex scans the AND-chain of a single-table WHERE for a conjunct of
// the form column <cmp> literal whose column leads an available index.
func (b *builder) pickIndex(table string, where ast.Expr, sc *scope) *IndexScan {
	if !b.st.Capabilities().Has(store.CapIndex) {
		return nil
	}
	ixStore, ok := b.st.(store.IndexStore)
	if !ok {
		return nil
	}
	metas, err := ixStore.Indexes(table)
	if err != nil || len(metas) == 0 {
		return nil
	}

	for _, conj := range conjuncts(where) {
		col, pred, ok := indexablePred(conj, sc)
		if !ok {
			continue
		}
		for _, m := range metas {
			if m.Columns[0] == col {
				return &IndexScan{Name: m.Name, Pred: pred}
			}
		}
	}
	return nil
}

func conjuncts(e ast.Expr) []ast.Expr {
	if bin, ok := e.(*ast.BinaryExpr); ok && bin.Op == ast.OpAnd {
		return append(conjuncts(bin.Left), conjuncts(bin.Right)...)
	}
	return []ast.Expr{e}
}

func indexablePred(e ast.Expr, sc *scope) (string, store.IndexPredicate, bool) {
	bin, ok := e.(*ast.BinaryExpr)
	if !ok {
		return "", store.IndexPredicate{}, false
	}

	var op store.IndexOp
	var flip store.IndexOp
	switch bin.Op {
	case ast.OpEq:
		op, flip = store.IndexEq, store.IndexEq
	case ast.OpLt:
		op, flip = store.IndexLt, store.IndexGt
	case ast.OpLe:
		op, flip = store.IndexLe, store.IndexGe
	case ast.OpGt:
		op, flip = store.IndexGt, store.IndexLt
	case ast.OpGe:
		op, flip = store.IndexGe, store.IndexLe
	default:
		return "", store.IndexPredicate{}, false
	}

	if ref, lit, ok := refLitPair(bin.Left, bin.Right); ok {
		if _, col, err := sc.resolve(ref.Table, ref.Name); err == nil {
			return col.name, store.IndexPredicate{Op: op, Value: lit.Value}, true
		}
	}
	if ref, lit, ok := refLitPair(bin.Right, bin.Left); ok {
		if _, col, err := sc.resolve(ref.Table, ref.Name); err == nil {
			return col.name, store.IndexPredicate{Op: flip, Value: lit.Value}, true
		}
	}
	return "", store.IndexPredicate{}, false
}

func refLitPair(a, b ast.Expr) (*ast.ColumnRef, *ast.Literal, bool) {
	ref, ok := a.(*ast.ColumnRef)
	if !ok {
		return nil, nil, false
	}
	lit, ok := b.(*ast.Literal)
	if !ok || value.IsNull(lit.Value) {
		return nil, nil, false
	}
	return ref, lit, true
}
