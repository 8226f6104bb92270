package transform

import (
	"github.com/hugr-lab/vizql/dataframe"

	"github.com/hugr-lab/vizql/compile"
)

// Formula implements §4.6 Formula: `SELECT *, compiled(expr) AS as`, with
// overwrite semantics — if as already names an existing column, the new
// expression replaces it in place rather than appending a duplicate.
func Formula(df *dataframe.Dataframe, as string, val compile.Expr) *dataframe.Dataframe {
	fields := df.Schema.Fields()
	cols := make([]dataframe.NamedExpr, 0, len(fields)+1)
	replaced := false
	for _, f := range fields {
		if f.Name == as {
			cols = append(cols, dataframe.NamedExpr{Name: as, Expr: val})
			replaced = true
			continue
		}
		cols = append(cols, dataframe.NamedExpr{Name: f.Name, Expr: compile.NewColumnRef(f.Name, f.Type)})
	}
	if !replaced {
		cols = append(cols, dataframe.NamedExpr{Name: as, Expr: val})
	}
	return df.Select(cols)
}
