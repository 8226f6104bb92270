package transform

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
	"github.com/hugr-lab/vizql/value"
)

const (
	orderKeyCol   = "__vf_order_key"
	orderGroupCol = "__vf_order_group"
	mangleSuffix  = "_tmp"
)

// Impute implements §4.6 Impute. With no groupby, it is a null-fill on
// field. With groupby, it materializes every (group x key) combination by
// cross-joining the distinct key and distinct groupby value sets, then
// left-joins the original rows back on, per
// original_source/vegafusion-runtime/src/transform/impute.rs: the
// join-key/groupby columns from the original side are mangled with a
// "_tmp" suffix first (matching the teacher's own comment that the join
// otherwise produces ambiguous duplicate column names), dropped from the
// final projection.
func Impute(df *dataframe.Dataframe, field, key string, groupby []string, fillValue compile.Expr) *dataframe.Dataframe {
	if len(groupby) == 0 {
		return imputeNoGroup(df, field, fillValue)
	}
	return imputeWithGroup(df, field, key, groupby, fillValue)
}

func imputeNoGroup(df *dataframe.Dataframe, field string, fillValue compile.Expr) *dataframe.Dataframe {
	fieldCol := colRef(df.Schema, field)
	filled := compile.NewCase(fieldCol.Type(),
		[]compile.CaseWhen{{When: compile.NewIsNull(fieldCol, false), Then: fillValue}}, fieldCol)
	cols := append(namedExprs(df.Schema, field), dataframe.NamedExpr{Name: field, Expr: filled})
	return df.Select(cols)
}

func imputeWithGroup(df *dataframe.Dataframe, field, key string, groupby []string, fillValue compile.Expr) *dataframe.Dataframe {
	keyCol := colRef(df.Schema, key)
	keyAgg := df.Filter(compile.NewIsNull(keyCol, true)).
		Aggregate(
			[]dataframe.NamedExpr{{Name: key, Expr: colRef(df.Schema, key)}},
			[]dataframe.NamedExpr{{Name: orderKeyCol, Expr: compile.NewAggregateCall(arrow.PrimitiveTypes.Int64, compile.AggMin, colRef(df.Schema, value.OrderColumn))}},
		)
	// Aggregate always folds in its own min(_vf_order); drop it here so the
	// only surviving _vf_order after the joins below is the original data's.
	keyDf := keyAgg.Select(namedExprs(keyAgg.Schema, value.OrderColumn))

	groupExprs := make([]dataframe.NamedExpr, len(groupby))
	for i, g := range groupby {
		groupExprs[i] = dataframe.NamedExpr{Name: g, Expr: colRef(df.Schema, g)}
	}
	groupsAgg := df.Aggregate(groupExprs,
		[]dataframe.NamedExpr{{Name: orderGroupCol, Expr: compile.NewAggregateCall(arrow.PrimitiveTypes.Int64, compile.AggMin, colRef(df.Schema, value.OrderColumn))}},
	)
	groupsDf := groupsAgg.Select(namedExprs(groupsAgg.Schema, value.OrderColumn))

	cross := keyDf.Join(groupsDf, dataframe.JoinCross, nil, nil)

	mangled := map[string]bool{key: true}
	for _, g := range groupby {
		mangled[g] = true
	}
	mangledCols := make([]dataframe.NamedExpr, 0, len(df.Schema.Fields()))
	for _, f := range df.Schema.Fields() {
		name := f.Name
		if mangled[name] {
			name += mangleSuffix
		}
		mangledCols = append(mangledCols, dataframe.NamedExpr{Name: name, Expr: compile.NewColumnRef(f.Name, f.Type)})
	}
	dfMangled := df.Select(mangledCols)

	leftKeys := make([]compile.Expr, 0, len(groupby)+1)
	rightKeys := make([]compile.Expr, 0, len(groupby)+1)
	leftKeys = append(leftKeys, colRef(cross.Schema, key))
	rightKeys = append(rightKeys, colRef(dfMangled.Schema, key+mangleSuffix))
	for _, g := range groupby {
		leftKeys = append(leftKeys, colRef(cross.Schema, g))
		rightKeys = append(rightKeys, colRef(dfMangled.Schema, g+mangleSuffix))
	}
	joined := cross.Join(dfMangled, dataframe.JoinLeft, leftKeys, rightKeys)

	exclude := []string{orderKeyCol, orderGroupCol, value.OrderColumn, field}
	for _, g := range groupby {
		exclude = append(exclude, g+mangleSuffix)
	}
	exclude = append(exclude, key+mangleSuffix)

	fieldCol := colRef(joined.Schema, field)
	filled := compile.NewCase(fieldCol.Type(),
		[]compile.CaseWhen{{When: compile.NewIsNull(fieldCol, false), Then: fillValue}}, fieldCol)

	finalOrder := compile.NewWindowCall(arrow.PrimitiveTypes.Int64, compile.WindowCallExpr{
		WinFunc: compile.WinRowNumber,
		OrderBy: []compile.SortKey{
			{Expr: colRef(joined.Schema, value.OrderColumn), Desc: false, NullsFirst: false},
			{Expr: colRef(joined.Schema, orderGroupCol), Desc: false, NullsFirst: true},
			{Expr: colRef(joined.Schema, orderKeyCol), Desc: false, NullsFirst: true},
		},
	})

	cols := append(namedExprs(joined.Schema, exclude...),
		dataframe.NamedExpr{Name: field, Expr: filled},
		dataframe.NamedExpr{Name: value.OrderColumn, Expr: finalOrder},
	)
	return joined.Select(cols)
}
