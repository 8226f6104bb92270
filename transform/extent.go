package transform

import (
	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
)

// ExtentMinCol and ExtentMaxCol name the two columns Extent's sub-query
// projects; the runtime reads this one-row result back and assembles the
// `[min, max]` signal value itself (computing a signal from data requires
// actually running a query, which this package — a pure logical-plan
// builder — deliberately never does).
const (
	ExtentMinCol = "min"
	ExtentMaxCol = "max"
)

// Extent implements §4.6 Extent: groupless aggregate computing
// [min(field), max(field)], ignoring nulls (SQL MIN/MAX already skip
// nulls, and return NULL on an empty input exactly as the spec requires
// for an empty dataframe).
func Extent(df *dataframe.Dataframe, field string) *dataframe.Dataframe {
	col := colRef(df.Schema, field)
	dt := col.Type()
	return df.Aggregate(nil, []dataframe.NamedExpr{
		{Name: ExtentMinCol, Expr: compile.NewAggregateCall(dt, compile.AggMin, col)},
		{Name: ExtentMaxCol, Expr: compile.NewAggregateCall(dt, compile.AggMax, col)},
	})
}
