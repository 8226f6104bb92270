// Package dataframe implements the minimal relational-algebra surface that
// transform operators are built on: select, filter, aggregate, sort, join,
// window, and an escape hatch for hand-written SQL fragments. Every
// operation is lazy — it extends the current query's AST rather than
// executing — so a chain of operators compiles to one SQL statement per
// materialization boundary, in the spirit of `filter/duckdb.go`'s
// fragment-building encoder generalized from predicates to whole queries.
package dataframe

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dialect"
	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/value"
)

// JoinType names a supported join kind (§4.5).
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
	JoinCross JoinType = "cross"
)

// NamedExpr pairs a compiled expression with its output column name.
type NamedExpr struct {
	Name string
	Expr compile.Expr
}

// Dataframe is an immutable node of the logical query plan. Every method
// returns a new Dataframe; the receiver is never mutated.
type Dataframe struct {
	Dialect dialect.Dialect
	Schema  *arrow.Schema
	Plan    Plan
}

// Plan is one node of the logical query plan tree.
type Plan interface {
	plan()
}

type basePlan struct{}

func (basePlan) plan() {}

// ScanPlan is a leaf: a named base relation (a materialized table, or a
// reference the dialect resolves, e.g. an upstream CTE name).
type ScanPlan struct {
	basePlan
	Source string
}

// SelectPlan is a projection. Wildcard is true when this select should be
// fused away at render time (bare `select *` over its child).
type SelectPlan struct {
	basePlan
	Child    Plan
	Columns  []NamedExpr
	Wildcard bool
}

// FilterPlan is a boolean-coerced predicate over its child.
type FilterPlan struct {
	basePlan
	Child     Plan
	Predicate compile.Expr
}

// AggregatePlan groups by GroupExprs and computes AggExprs, always folding
// in `min(_vf_order)` per §4.5.
type AggregatePlan struct {
	basePlan
	Child      Plan
	GroupExprs []NamedExpr
	AggExprs   []NamedExpr
}

// SortPlan is a stable sort, optionally limited.
type SortPlan struct {
	basePlan
	Child Plan
	Keys  []compile.SortKey
	Limit int // 0 = no limit
}

// JoinPlan joins Left and Right on equality of the paired key lists.
type JoinPlan struct {
	basePlan
	Left, Right          Plan
	Type                 JoinType
	LeftKeys, RightKeys  []compile.Expr
}

// WindowPlan appends one or more window-expression columns to its child.
type WindowPlan struct {
	basePlan
	Child   Plan
	Columns []NamedExpr // Expr is always a *compile.WindowCallExpr
}

// RawSQLPlan splices hand-written SQL referencing its child as `{parent}`,
// for transforms whose shape (e.g. stack's UNION ALL split) falls outside
// the algebraic surface (§4.5).
type RawSQLPlan struct {
	basePlan
	Child Plan
	SQL   string
}

// New wraps a base relation as a leaf dataframe.
func New(d dialect.Dialect, schema *arrow.Schema, source string) *Dataframe {
	return &Dataframe{Dialect: d, Schema: schema, Plan: ScanPlan{Source: source}}
}

func (df *Dataframe) with(plan Plan, schema *arrow.Schema) *Dataframe {
	return &Dataframe{Dialect: df.Dialect, Schema: schema, Plan: plan}
}

// Select projects exprs. A nil exprs list keeps every column of the current
// schema. Selecting on top of a wildcard select fuses into it rather than
// nesting (§4.5).
func (df *Dataframe) Select(exprs []NamedExpr) *Dataframe {
	if sel, ok := df.Plan.(SelectPlan); ok && sel.Wildcard {
		return df.with(SelectPlan{Child: sel.Child, Columns: exprs}, schemaOf(exprs, df.Schema))
	}
	return df.with(SelectPlan{Child: df.Plan, Columns: exprs}, schemaOf(exprs, df.Schema))
}

// SelectAll projects every column of the current schema unchanged — the
// fusable wildcard form other operators build on top of.
func (df *Dataframe) SelectAll() *Dataframe {
	return df.with(SelectPlan{Child: df.Plan, Wildcard: true}, df.Schema)
}

func schemaOf(exprs []NamedExpr, fallback *arrow.Schema) *arrow.Schema {
	if exprs == nil {
		return fallback
	}
	fields := make([]arrow.Field, len(exprs))
	for i, e := range exprs {
		fields[i] = arrow.Field{Name: e.Name, Type: e.Expr.Type(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// Filter applies a boolean-coerced predicate, fusing with a wildcard-child
// select exactly as Select does (§4.5).
func (df *Dataframe) Filter(pred compile.Expr) *Dataframe {
	child := df.Plan
	if sel, ok := df.Plan.(SelectPlan); ok && sel.Wildcard {
		child = sel.Child
	}
	return df.with(FilterPlan{Child: child, Predicate: pred}, df.Schema)
}

// Aggregate groups by group and computes agg, folding in min(_vf_order)
// into the projected output per §4.5.
func (df *Dataframe) Aggregate(group, agg []NamedExpr) *Dataframe {
	fields := make([]arrow.Field, 0, len(group)+len(agg)+1)
	for _, g := range group {
		fields = append(fields, arrow.Field{Name: g.Name, Type: g.Expr.Type(), Nullable: true})
	}
	for _, a := range agg {
		fields = append(fields, arrow.Field{Name: a.Name, Type: a.Expr.Type(), Nullable: true})
	}
	fields = append(fields, arrow.Field{Name: value.OrderColumn, Type: arrow.PrimitiveTypes.Int64, Nullable: true})
	return df.with(AggregatePlan{Child: df.Plan, GroupExprs: group, AggExprs: agg}, arrow.NewSchema(fields, nil))
}

// Sort performs a stable sort by keys, optionally limited to the first
// limit rows (0 = unlimited).
func (df *Dataframe) Sort(keys []compile.SortKey, limit int) *Dataframe {
	return df.with(SortPlan{Child: df.Plan, Keys: keys, Limit: limit}, df.Schema)
}

// Join joins df with other on equality of the paired key expressions.
func (df *Dataframe) Join(other *Dataframe, joinType JoinType, leftKeys, rightKeys []compile.Expr) *Dataframe {
	fields := append(append([]arrow.Field{}, df.Schema.Fields()...), other.Schema.Fields()...)
	return df.with(JoinPlan{
		Left: df.Plan, Right: other.Plan, Type: joinType,
		LeftKeys: leftKeys, RightKeys: rightKeys,
	}, arrow.NewSchema(fields, nil))
}

// Window appends window-expression columns, each already compiled with its
// partition/order/frame bounds set (§4.5).
func (df *Dataframe) Window(cols []NamedExpr) *Dataframe {
	fields := append(append([]arrow.Field{}, df.Schema.Fields()...), schemaOf(cols, nil).Fields()...)
	return df.with(WindowPlan{Child: df.Plan, Columns: cols}, arrow.NewSchema(fields, nil))
}

// ChainQueryStr splices raw SQL referencing the current frame as {parent},
// keeping the declared output schema (the caller is responsible for it
// matching what sql actually projects).
func (df *Dataframe) ChainQueryStr(sql string, outSchema *arrow.Schema) *Dataframe {
	return df.with(RawSQLPlan{Child: df.Plan, SQL: sql}, outSchema)
}

// Render lowers the plan to a single SQL query string via the dataframe's
// dialect, per §4.7's rendering visitor.
func (df *Dataframe) Render() (string, error) {
	if df.Dialect == nil {
		return "", errs.New(errs.Internal, "dataframe has no dialect bound")
	}
	return renderPlan(df.Plan, df.Dialect)
}

func renderPlan(p Plan, d dialect.Dialect) (string, error) {
	switch n := p.(type) {
	case ScanPlan:
		return d.QuoteIdent(n.Source), nil
	case SelectPlan:
		childSQL, err := renderPlan(n.Child, d)
		if err != nil {
			return "", err
		}
		if n.Wildcard {
			return fmt.Sprintf("(SELECT * FROM %s) t", childSQL), nil
		}
		cols, err := renderColumns(n.Columns, d)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(SELECT %s FROM %s) t", cols, childSQL), nil
	case FilterPlan:
		childSQL, err := renderPlan(n.Child, d)
		if err != nil {
			return "", err
		}
		pred, err := dialect.Render(n.Predicate, d)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(SELECT * FROM %s WHERE COALESCE(%s, FALSE)) t", childSQL, pred), nil
	case AggregatePlan:
		return renderAggregate(n, d)
	case SortPlan:
		return renderSort(n, d)
	case JoinPlan:
		return renderJoin(n, d)
	case WindowPlan:
		return renderWindow(n, d)
	case RawSQLPlan:
		childSQL, err := renderPlan(n.Child, d)
		if err != nil {
			return "", err
		}
		sql := replaceParent(n.SQL, childSQL)
		return fmt.Sprintf("(%s) t", sql), nil
	default:
		return "", errs.New(errs.Internal, "unknown plan node %T", p)
	}
}

func replaceParent(sql, parentSQL string) string {
	out := make([]byte, 0, len(sql))
	for i := 0; i < len(sql); i++ {
		if i+8 <= len(sql) && sql[i:i+8] == "{parent}" {
			out = append(out, parentSQL...)
			i += 7
			continue
		}
		out = append(out, sql[i])
	}
	return string(out)
}

func renderColumns(cols []NamedExpr, d dialect.Dialect) (string, error) {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		sql, err := dialect.Render(c.Expr, d)
		if err != nil {
			return "", err
		}
		out += sql + " AS " + d.QuoteIdent(c.Name)
	}
	if out == "" {
		return "*", nil
	}
	return out, nil
}

func renderAggregate(n AggregatePlan, d dialect.Dialect) (string, error) {
	childSQL, err := renderPlan(n.Child, d)
	if err != nil {
		return "", err
	}
	groupCols, err := renderColumns(n.GroupExprs, d)
	if err != nil {
		return "", err
	}
	aggCols, err := renderColumns(n.AggExprs, d)
	if err != nil {
		return "", err
	}
	sel := groupCols
	if aggCols != "*" && aggCols != "" {
		if sel != "*" && sel != "" {
			sel += ", "
		}
		sel += aggCols
	}
	sel += fmt.Sprintf(", MIN(%s) AS %s", d.QuoteIdent(value.OrderColumn), d.QuoteIdent(value.OrderColumn))
	groupBy := ""
	if len(n.GroupExprs) > 0 {
		groupBy = " GROUP BY "
		for i := range n.GroupExprs {
			if i > 0 {
				groupBy += ", "
			}
			groupBy += fmt.Sprintf("%d", i+1)
		}
	}
	return fmt.Sprintf("(SELECT %s FROM %s%s) t", sel, childSQL, groupBy), nil
}

func renderSort(n SortPlan, d dialect.Dialect) (string, error) {
	childSQL, err := renderPlan(n.Child, d)
	if err != nil {
		return "", err
	}
	orderBy := ""
	for i, k := range n.Keys {
		if i > 0 {
			orderBy += ", "
		}
		sql, err := dialect.Render(k.Expr, d)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		nulls := "NULLS LAST"
		if k.NullsFirst {
			nulls = "NULLS FIRST"
		}
		orderBy += fmt.Sprintf("%s %s %s", sql, dir, nulls)
	}
	limit := ""
	if n.Limit > 0 {
		limit = fmt.Sprintf(" LIMIT %d", n.Limit)
	}
	if orderBy == "" {
		return fmt.Sprintf("(SELECT * FROM %s%s) t", childSQL, limit), nil
	}
	return fmt.Sprintf("(SELECT * FROM %s ORDER BY %s%s) t", childSQL, orderBy, limit), nil
}

func renderJoin(n JoinPlan, d dialect.Dialect) (string, error) {
	leftSQL, err := renderPlan(n.Left, d)
	if err != nil {
		return "", err
	}
	rightSQL, err := renderPlan(n.Right, d)
	if err != nil {
		return "", err
	}
	joinKind := map[JoinType]string{
		JoinInner: "JOIN", JoinLeft: "LEFT JOIN", JoinRight: "RIGHT JOIN",
		JoinFull: "FULL OUTER JOIN", JoinCross: "CROSS JOIN",
	}[n.Type]

	if n.Type == JoinCross {
		return fmt.Sprintf("(SELECT * FROM %s l CROSS JOIN %s r) t", leftSQL, rightSQL), nil
	}

	on := ""
	for i := range n.LeftKeys {
		if i > 0 {
			on += " AND "
		}
		lsql, err := dialect.Render(n.LeftKeys[i], d)
		if err != nil {
			return "", err
		}
		rsql, err := dialect.Render(n.RightKeys[i], d)
		if err != nil {
			return "", err
		}
		on += fmt.Sprintf("l.%s = r.%s", lsql, rsql)
	}
	return fmt.Sprintf("(SELECT l.*, r.* FROM %s l %s %s r ON %s) t", leftSQL, joinKind, rightSQL, on), nil
}

func renderWindow(n WindowPlan, d dialect.Dialect) (string, error) {
	childSQL, err := renderPlan(n.Child, d)
	if err != nil {
		return "", err
	}
	cols := "*"
	extra, err := renderColumns(n.Columns, d)
	if err != nil {
		return "", err
	}
	if extra != "" {
		cols += ", " + extra
	}
	return fmt.Sprintf("(SELECT %s FROM %s) t", cols, childSQL), nil
}
