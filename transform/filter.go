package transform

import (
	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
)

// Filter implements §4.6 Filter: `SELECT * WHERE predicate`, with null
// treated as false (dataframe.Filter already coalesces, per its own
// doc comment mirroring the dataframe package's FilterPlan render rule).
func Filter(df *dataframe.Dataframe, predicate compile.Expr) *dataframe.Dataframe {
	return df.Filter(predicate)
}
