package transform

import (
	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
)

// JoinAggregate implements §4.6 JoinAggregate: the same ops as Aggregate,
// but broadcast back onto every input row via an unbounded-frame window
// function partitioned by groupby, instead of collapsing to one row per
// group.
func JoinAggregate(df *dataframe.Dataframe, groupby []string, specs []AggSpec) *dataframe.Dataframe {
	partitionBy := make([]compile.Expr, len(groupby))
	for i, g := range groupby {
		partitionBy[i] = colRef(df.Schema, g)
	}
	start := compile.FrameBound{Kind: compile.BoundUnboundedPreceding}
	end := compile.FrameBound{Kind: compile.BoundUnboundedFollowing}

	cols := make([]dataframe.NamedExpr, 0, len(specs))
	for _, s := range specs {
		agg := aggExprFor(df.Schema, s)
		var arg compile.Expr
		var fn compile.AggFunc
		switch v := agg.(type) {
		case *compile.AggregateCallExpr:
			arg, fn = v.Arg, v.Func
		default:
			// Distinct/missing lower to an arithmetic combination of two
			// aggregate calls; broadcasting those as a single window call
			// isn't expressible, so JoinAggregate only supports the plain
			// aggregate ops here, matching the upstream implementation's
			// scope (distinct/missing joinaggregate is not exercised by
			// any mark-encoding path).
			continue
		}
		win := compile.NewWindowCall(agg.Type(), compile.WindowCallExpr{
			AggFunc:     fn,
			Arg:         arg,
			PartitionBy: partitionBy,
			FrameUnit:   compile.FrameRows,
			FrameStart:  start,
			FrameEnd:    end,
		})
		cols = append(cols, dataframe.NamedExpr{Name: s.outputName(), Expr: win})
	}
	return df.Window(cols)
}
