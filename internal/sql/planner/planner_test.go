package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/slatesql/internal/record"
	"github.com/tuannm99/slatesql/internal/sql/parser"
	"github.com/tuannm99/slatesql/internal/sqlerr"
	"github.com/tuannm99/slatesql/internal/store"
	"github.com/tuannm99/slatesql/internal/store/memstore"
	"github.com/tuannm99/slatesql/internal/value"
)

func storeWithUsers(t *testing.T, caps store.Capabilities) *memstore.Store {
	t.Helper()
	st := memstore.NewWithCapabilities(caps)
	require.NoError(t, st.CreateTable(record.Schema{
		Table: "users",
		Columns: []record.Column{
			{Name: "id", Type: value.TypeInt},
			{Name: "name", Type: value.TypeStr, Nullable: true},
			{Name: "age", Type: value.TypeInt, Nullable: true},
		},
		Constraints: []record.Constraint{
			{Kind: record.ConstraintPrimary, Columns: []string{"id"}},
		},
	}))
	require.NoError(t, st.CreateTable(record.Schema{
		Table: "orders",
		Columns: []record.Column{
			{Name: "id", Type: value.TypeInt},
			{Name: "user_id", Type: value.TypeInt, Nullable: true},
			{Name: "total", Type: value.TypeFloat, Nullable: true},
		},
	}))
	return st
}

func build(t *testing.T, st store.Store, sql string) (Plan, error) {
	t.Helper()
	stmt, err := parser.Parse(sql)
	require.NoError(t, err, sql)
	return BuildPlan(stmt, st)
}

func mustBuild(t *testing.T, st store.Store, sql string) Plan {
	t.Helper()
	plan, err := build(t, st, sql)
	require.NoError(t, err, sql)
	return plan
}

func TestBindUnknownTable(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)
	_, err := build(t, st, "SELECT x FROM missing")
	require.Equal(t, sqlerr.CodeUnknownTable, sqlerr.CodeOf(err))
	require.Equal(t, sqlerr.KindBind, sqlerr.KindOf(err))
}

func TestBindUnknownColumn(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)
	_, err := build(t, st, "SELECT nope FROM users")
	require.Equal(t, sqlerr.CodeUnknownColumn, sqlerr.CodeOf(err))
}

func TestBindAmbiguousColumn(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)
	_, err := build(t, st, "SELECT id FROM users JOIN orders ON users.id = orders.user_id")
	require.Equal(t, sqlerr.CodeAmbiguousColumn, sqlerr.CodeOf(err))

	// Qualification resolves it.
	mustBuild(t, st, "SELECT users.id FROM users JOIN orders ON users.id = orders.user_id")
}

func TestBindDuplicateAliasRejected(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)
	_, err := build(t, st, "SELECT u.id FROM users u JOIN orders u ON 1 = 1")
	require.Equal(t, sqlerr.CodeAmbiguousColumn, sqlerr.CodeOf(err))
}

func TestBindTypeMismatch(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)

	_, err := build(t, st, "SELECT id FROM users WHERE name = 1")
	require.Equal(t, sqlerr.CodeTypeMismatch, sqlerr.CodeOf(err))

	_, err = build(t, st, "SELECT id + name FROM users")
	require.Equal(t, sqlerr.CodeTypeMismatch, sqlerr.CodeOf(err))

	// A non-boolean WHERE is rejected at bind time.
	_, err = build(t, st, "SELECT id FROM users WHERE id + 1")
	require.Equal(t, sqlerr.CodeTypeMismatch, sqlerr.CodeOf(err))
}

func TestBindStarExpansion(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)

	plan := mustBuild(t, st, "SELECT * FROM users").(*SelectPlan)
	require.Equal(t, []string{"id", "name", "age"}, plan.Columns)

	plan = mustBuild(t, st,
		"SELECT o.*, u.name FROM users u JOIN orders o ON u.id = o.user_id").(*SelectPlan)
	require.Equal(t, []string{"id", "user_id", "total", "name"}, plan.Columns)

	_, err := build(t, st, "SELECT z.* FROM users u")
	require.Equal(t, sqlerr.CodeUnknownTable, sqlerr.CodeOf(err))
}

func TestBindPinsSchemaVersions(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)
	plan := mustBuild(t, st, "SELECT u.id FROM users u JOIN orders o ON u.id = o.user_id")
	pins := plan.Pins()
	require.Len(t, pins, 2)
	require.Equal(t, "users", pins[0].Table)
	require.Equal(t, uint64(1), pins[0].Version)
}

func TestBindGroupByEnforcement(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)

	mustBuild(t, st, "SELECT name, COUNT(*) FROM users GROUP BY name")
	mustBuild(t, st, "SELECT name, age + 1 FROM users GROUP BY name, age + 1")

	// A bare column outside GROUP BY and outside aggregates is an error.
	_, err := build(t, st, "SELECT name, age FROM users GROUP BY name")
	require.Equal(t, sqlerr.CodeUnknownColumn, sqlerr.CodeOf(err))

	// Aggregates in WHERE are rejected.
	_, err = build(t, st, "SELECT name FROM users WHERE COUNT(*) > 1 GROUP BY name")
	require.Error(t, err)

	// HAVING without any aggregation is rejected.
	_, err = build(t, st, "SELECT name FROM users HAVING name = 'x'")
	require.Error(t, err)

	// SELECT * cannot meet grouped output.
	_, err = build(t, st, "SELECT * FROM users GROUP BY name")
	require.Error(t, err)
}

func TestBindAggregatePlanShape(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)
	plan := mustBuild(t, st,
		"SELECT name, COUNT(*), AVG(age) FROM users GROUP BY name").(*SelectPlan)

	proj, ok := plan.Root.(*ProjectNode)
	require.True(t, ok)
	agg, ok := proj.Input.(*AggregateNode)
	require.True(t, ok)
	require.Len(t, agg.GroupBy, 1)
	require.Len(t, agg.Aggs, 2)
	require.Equal(t, "COUNT", agg.Aggs[0].Name)
	require.True(t, agg.Aggs[0].Star)
	require.Equal(t, "AVG", agg.Aggs[1].Name)
}

func TestBindOrderByAlias(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)
	plan := mustBuild(t, st,
		"SELECT name, COUNT(*) AS cnt FROM users GROUP BY name ORDER BY cnt DESC").(*SelectPlan)

	proj := plan.Root.(*ProjectNode)
	sortNode, ok := proj.Input.(*SortNode)
	require.True(t, ok)
	require.Len(t, sortNode.Keys, 1)
	require.True(t, sortNode.Keys[0].Desc)
}

func TestBindCapabilityGating(t *testing.T) {
	st := storeWithUsers(t, 0)

	for _, sql := range []string{
		"ALTER TABLE users ADD COLUMN x INT",
		"CREATE INDEX ix ON users (id)",
		"DROP INDEX ix ON users",
		"BEGIN",
		"COMMIT",
		"ROLLBACK",
		"SHOW TABLES",
	} {
		_, err := build(t, st, sql)
		require.Error(t, err, sql)
		require.Equal(t, sqlerr.CodeCapabilityUnsupported, sqlerr.CodeOf(err), sql)
		require.Equal(t, sqlerr.KindBind, sqlerr.KindOf(err), sql)
	}

	// Core statements stay available on a bare store.
	mustBuild(t, st, "SELECT id FROM users")
	mustBuild(t, st, "INSERT INTO users VALUES (1, 'a', 30)")
	mustBuild(t, st, "DESCRIBE users")
}

func TestBindInsertShapes(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)

	plan := mustBuild(t, st, "INSERT INTO users (id, name) VALUES (1, 'ana')").(*InsertPlan)
	require.Len(t, plan.Rows, 1)
	// Full-width row: the omitted age column got a default slot.
	require.Len(t, plan.Rows[0], 3)

	_, err := build(t, st, "INSERT INTO users (id, nope) VALUES (1, 2)")
	require.Equal(t, sqlerr.CodeUnknownColumn, sqlerr.CodeOf(err))

	_, err = build(t, st, "INSERT INTO users (id, id) VALUES (1, 2)")
	require.Equal(t, sqlerr.CodeAmbiguousColumn, sqlerr.CodeOf(err))

	_, err = build(t, st, "INSERT INTO users (id) VALUES (1, 2)")
	require.Equal(t, sqlerr.CodeTypeMismatch, sqlerr.CodeOf(err))

	_, err = build(t, st, "INSERT INTO users (id) VALUES ('text')")
	require.Equal(t, sqlerr.CodeTypeMismatch, sqlerr.CodeOf(err))
}

func TestBindUpdateDelete(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)

	plan := mustBuild(t, st, "UPDATE users SET age = age + 1 WHERE id = 1").(*UpdatePlan)
	require.Len(t, plan.Sets, 1)
	require.Equal(t, 2, plan.Sets[0].Col)
	require.NotNil(t, plan.Filter)

	_, err := build(t, st, "UPDATE users SET age = 1, age = 2")
	require.Equal(t, sqlerr.CodeAmbiguousColumn, sqlerr.CodeOf(err))

	del := mustBuild(t, st, "DELETE FROM users").(*DeletePlan)
	require.Nil(t, del.Filter)
}

func TestBindCreateTable(t *testing.T) {
	st := memstore.New()

	plan := mustBuild(t, st,
		"CREATE TABLE t (id INT PRIMARY KEY, v TEXT DEFAULT 'none')").(*CreateTablePlan)
	require.Equal(t, "t", plan.Schema.Table)
	require.False(t, plan.Schema.Columns[0].Nullable)
	require.Equal(t, value.Str("none"), plan.Schema.Columns[1].Default)
	require.Len(t, plan.Schema.Constraints, 1)

	_, err := build(t, st, "CREATE TABLE t (id INT, id TEXT)")
	require.Equal(t, sqlerr.CodeAmbiguousColumn, sqlerr.CodeOf(err))

	_, err = build(t, st, "CREATE TABLE t (id INT DEFAULT 'oops')")
	require.Equal(t, sqlerr.CodeTypeMismatch, sqlerr.CodeOf(err))
}

func TestBindIndexSelection(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)
	require.NoError(t, st.CreateIndex("users", "ix_id", []string{"id"}, false))

	plan := mustBuild(t, st, "SELECT name FROM users WHERE id = 3").(*SelectPlan)
	scan := findScan(t, plan.Root)
	require.NotNil(t, scan.Index)
	require.Equal(t, "ix_id", scan.Index.Name)
	require.Equal(t, store.IndexEq, scan.Index.Pred.Op)

	// Flipped operand order still indexes, with the comparison mirrored.
	plan = mustBuild(t, st, "SELECT name FROM users WHERE 3 < id").(*SelectPlan)
	scan = findScan(t, plan.Root)
	require.NotNil(t, scan.Index)
	require.Equal(t, store.IndexGt, scan.Index.Pred.Op)

	// No matching index column: plain scan.
	plan = mustBuild(t, st, "SELECT name FROM users WHERE age = 3").(*SelectPlan)
	require.Nil(t, findScan(t, plan.Root).Index)

	// Without the index capability the binder never consults indexes.
	bare := storeWithUsers(t, store.CapAll&^store.CapIndex)
	plan = mustBuild(t, bare, "SELECT name FROM users WHERE id = 3").(*SelectPlan)
	require.Nil(t, findScan(t, plan.Root).Index)
}

func TestBindEquiJoinDetection(t *testing.T) {
	st := storeWithUsers(t, store.CapAll)

	plan := mustBuild(t, st,
		"SELECT u.id FROM users u JOIN orders o ON u.id = o.user_id").(*SelectPlan)
	join := findJoin(t, plan.Root)
	require.NotNil(t, join.Equi)
	require.Equal(t, 0, join.Equi.Left)
	require.Equal(t, 1, join.Equi.Right)

	// Non-equality ON gives no hash hint.
	plan = mustBuild(t, st,
		"SELECT u.id FROM users u JOIN orders o ON u.id < o.user_id").(*SelectPlan)
	require.Nil(t, findJoin(t, plan.Root).Equi)
}

func findScan(t *testing.T, n Node) *ScanNode {
	t.Helper()
	for {
		switch node := n.(type) {
		case *ScanNode:
			return node
		case *FilterNode:
			n = node.Input
		case *ProjectNode:
			n = node.Input
		case *SortNode:
			n = node.Input
		case *LimitNode:
			n = node.Input
		case *AggregateNode:
			n = node.Input
		case *JoinNode:
			n = node.Left
		default:
			t.Fatalf("no scan under %T", n)
		}
	}
}

func findJoin(t *testing.T, n Node) *JoinNode {
	t.Helper()
	for {
		switch node := n.(type) {
		case *JoinNode:
			return node
		case *FilterNode:
			n = node.Input
		case *ProjectNode:
			n = node.Input
		case *SortNode:
			n = node.Input
		case *LimitNode:
			n = node.Input
		case *AggregateNode:
			n = node.Input
		default:
			t.Fatalf("no join under %T", n)
		}
	}
}
