package transform

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
	"github.com/hugr-lab/vizql/value"
)

// AggSpec is one (field, op, alias) entry of an Aggregate/JoinAggregate/
// Pivot/Window transform. Field is "" for the field-less `count` op.
type AggSpec struct {
	Field string
	Op    compile.AggFunc
	Alias string
}

func opName(op compile.AggFunc) string { return string(op) }

func (s AggSpec) outputName() string {
	if s.Alias != "" {
		return s.Alias
	}
	if s.Field == "" {
		return opName(s.Op)
	}
	return opName(s.Op) + "_" + s.Field
}

// aggExprFor compiles one AggSpec into the IR expression its underlying
// aggregate needs — with `distinct` given the "count(distinct x) +
// max(case when x is null then 1 else 0 end)" null-bucket treatment §4.6
// Aggregate calls for.
func aggExprFor(schema *arrow.Schema, s AggSpec) compile.Expr {
	if s.Field == "" {
		return compile.NewAggregateCall(arrow.PrimitiveTypes.Int64, compile.AggCount, nil)
	}
	col := colRef(schema, s.Field)
	if s.Op == compile.AggDistinct {
		distinctCount := compile.NewAggregateCall(arrow.PrimitiveTypes.Int64, compile.AggDistinct, col)
		nullBucket := compile.NewAggregateCall(arrow.PrimitiveTypes.Int64, compile.AggMax,
			compile.NewCase(arrow.PrimitiveTypes.Int64,
				[]compile.CaseWhen{{When: compile.NewIsNull(col, false), Then: constFloat(1)}},
				constFloat(0),
			))
		return compile.NewArith(compile.ArithAdd, arrow.PrimitiveTypes.Int64, distinctCount, nullBucket)
	}
	retType := arrow.DataType(arrow.PrimitiveTypes.Float64)
	if s.Op == compile.AggCount || s.Op == compile.AggValid || s.Op == compile.AggMissing {
		retType = arrow.PrimitiveTypes.Int64
	}
	switch s.Op {
	case compile.AggValid:
		return compile.NewAggregateCall(retType, compile.AggCount, col)
	case compile.AggMissing:
		total := compile.NewAggregateCall(retType, compile.AggCount, nil)
		valid := compile.NewAggregateCall(retType, compile.AggCount, col)
		return compile.NewArith(compile.ArithSub, retType, total, valid)
	case "average":
		return compile.NewAggregateCall(retType, compile.AggMean, col)
	default:
		return compile.NewAggregateCall(retType, s.Op, col)
	}
}

// dedupAggs collapses duplicate (field, op) pairs onto one underlying
// aggregate column, per §4.6 Aggregate's "duplicate (field, op) pairs
// resolve to one underlying aggregate plus renaming projections".
func dedupAggs(schema *arrow.Schema, specs []AggSpec) (computed []dataframe.NamedExpr, rename map[string]string) {
	type key struct {
		field string
		op    compile.AggFunc
	}
	seen := make(map[key]string, len(specs))
	rename = make(map[string]string, len(specs))
	for i, s := range specs {
		k := key{s.Field, s.Op}
		internal, ok := seen[k]
		if !ok {
			internal = fmt.Sprintf("__agg_%d", i)
			seen[k] = internal
			computed = append(computed, dataframe.NamedExpr{Name: internal, Expr: aggExprFor(schema, s)})
		}
		rename[s.outputName()] = internal
	}
	return computed, rename
}

// Aggregate implements §4.6 Aggregate: group by groupby (null keys form
// their own group, which SQL GROUP BY already does), compute one column
// per spec, always folding in min(_vf_order) (dataframe.Aggregate does
// this automatically).
func Aggregate(df *dataframe.Dataframe, groupby []string, specs []AggSpec) *dataframe.Dataframe {
	group := make([]dataframe.NamedExpr, len(groupby))
	for i, g := range groupby {
		group[i] = dataframe.NamedExpr{Name: g, Expr: colRef(df.Schema, g)}
	}
	computed, rename := dedupAggs(df.Schema, specs)
	agged := df.Aggregate(group, computed)

	cols := make([]dataframe.NamedExpr, 0, len(groupby)+len(specs)+1)
	for _, g := range groupby {
		cols = append(cols, dataframe.NamedExpr{Name: g, Expr: colRef(agged.Schema, g)})
	}
	seenOut := make(map[string]bool, len(specs))
	for _, s := range specs {
		out := s.outputName()
		if seenOut[out] {
			continue
		}
		seenOut[out] = true
		internal := rename[out]
		cols = append(cols, dataframe.NamedExpr{Name: out, Expr: colRef(agged.Schema, internal)})
	}
	cols = append(cols, dataframe.NamedExpr{Name: value.OrderColumn, Expr: colRef(agged.Schema, value.OrderColumn)})
	return agged.Select(cols)
}
