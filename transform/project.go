package transform

import (
	"github.com/hugr-lab/vizql/dataframe"
)

// Project implements §4.6 Project: select a subset of columns, in the
// order named.
func Project(df *dataframe.Dataframe, fields []string) *dataframe.Dataframe {
	cols := make([]dataframe.NamedExpr, len(fields))
	for i, f := range fields {
		cols[i] = dataframe.NamedExpr{Name: f, Expr: colRef(df.Schema, f)}
	}
	return df.Select(cols)
}

// Collect implements §4.6 Collect: a stable sort over the named fields,
// ties broken by _vf_order exactly like every other ordering operator in
// this package.
func Collect(df *dataframe.Dataframe, fields []string, ascending []bool) *dataframe.Dataframe {
	keys := sortKeys(df.Schema, fields, ascending)
	return df.Sort(keys, 0)
}
