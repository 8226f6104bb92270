package transform

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
)

// WindowOp is one op of a Window transform (§4.6 Window). Ops union the
// Aggregate ops (Op set, WinFunc "") and the rank family (WinFunc set,
// Op "").
type WindowOp struct {
	Field       string
	Op          compile.AggFunc  // set for the aggregate-as-window family
	WinFunc     compile.WindowFunc // set for the rank family
	Alias       string
	NthN        int // nth_value's n
	LagLeadN    int // lag/lead's offset, default 1
}

type WindowSpec struct {
	Ops           []WindowOp
	SortFields    []string
	SortAscending []bool
	Groupby       []string
	FrameBefore   *int // nil = unbounded preceding
	FrameAfter    *int // nil = unbounded following
	IgnorePeers   bool
}

// startBound turns Vega's frame[0] ("before", nil = unbounded, else a
// signed row offset whose magnitude counts preceding rows) into a frame
// start bound.
func startBound(before *int) compile.FrameBound {
	if before == nil {
		return compile.FrameBound{Kind: compile.BoundUnboundedPreceding}
	}
	n := *before
	if n < 0 {
		n = -n
	}
	return compile.FrameBound{Kind: compile.BoundPreceding, Offset: n}
}

// endBound turns Vega's frame[1] ("after", nil = unbounded, else a row
// offset counting following rows) into a frame end bound.
func endBound(after *int) compile.FrameBound {
	if after == nil {
		return compile.FrameBound{Kind: compile.BoundUnboundedFollowing}
	}
	return compile.FrameBound{Kind: compile.BoundFollowing, Offset: *after}
}

// Window implements §4.6 Window: unbounded-by-default frame, rows unit
// when ignorePeers else groups, sort ties broken by _vf_order.
func Window(df *dataframe.Dataframe, spec WindowSpec) *dataframe.Dataframe {
	order := sortKeys(df.Schema, spec.SortFields, spec.SortAscending)
	partitionBy := colRefs(df.Schema, spec.Groupby)

	frameUnit := compile.FrameGroups
	if spec.IgnorePeers {
		frameUnit = compile.FrameRows
	}
	start := startBound(spec.FrameBefore)
	end := endBound(spec.FrameAfter)

	cols := make([]dataframe.NamedExpr, 0, len(spec.Ops))
	for _, op := range spec.Ops {
		var arg compile.Expr
		if op.Field != "" {
			arg = colRef(df.Schema, op.Field)
		}
		var extra []compile.Expr
		switch op.WinFunc {
		case compile.WinNthValue:
			extra = []compile.Expr{constFloat(float64(op.NthN))}
		case compile.WinLag, compile.WinLead:
			n := op.LagLeadN
			if n == 0 {
				n = 1
			}
			extra = []compile.Expr{constFloat(float64(n))}
		}
		dt := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if op.WinFunc == compile.WinRowNumber || op.WinFunc == compile.WinRank || op.WinFunc == compile.WinDenseRank {
			dt = arrow.PrimitiveTypes.Int64
		}
		win := compile.NewWindowCall(dt, compile.WindowCallExpr{
			AggFunc:     op.Op,
			WinFunc:     op.WinFunc,
			Arg:         arg,
			ExtraArgs:   extra,
			PartitionBy: partitionBy,
			OrderBy:     order,
			FrameUnit:   frameUnit,
			FrameStart:  start,
			FrameEnd:    end,
		})
		cols = append(cols, dataframe.NamedExpr{Name: op.Alias, Expr: win})
	}
	return df.Window(cols)
}
