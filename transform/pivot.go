package transform

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
	"github.com/hugr-lab/vizql/value"
)

// nullPlaceholder sorts before every real key so that, like Vega, null
// pivot keys always come first under a limit (§4.6 Pivot).
const nullPlaceholder = "!!!null"

// PivotFieldAsString normalizes the pivot field to the string form its
// output column names are drawn from: booleans render as "true"/"false",
// other non-string types are cast, nulls become nullPlaceholder, and an
// empty string becomes a single space (some engines disallow empty
// identifiers) — ported from
// original_source/vegafusion-runtime/src/transform/pivot.rs's
// TransformTrait::eval preprocessing pass.
func PivotFieldAsString(df *dataframe.Dataframe, field string) *dataframe.Dataframe {
	col := colRef(df.Schema, field)
	var normalized compile.Expr
	switch col.Type().ID() {
	case arrow.BOOL:
		normalized = compile.NewCase(arrow.BinaryTypes.String,
			[]compile.CaseWhen{
				{When: compile.NewCompare(compile.CmpEq, col, constBool(true)), Then: constString("true")},
				{When: compile.NewIsNull(col, false), Then: constString(nullPlaceholder)},
			},
			constString("false"),
		)
	case arrow.STRING, arrow.LARGE_STRING:
		normalized = compile.NewCase(arrow.BinaryTypes.String,
			[]compile.CaseWhen{
				{When: compile.NewIsNull(col, false), Then: constString(nullPlaceholder)},
				{When: compile.NewCompare(compile.CmpEq, col, constString("")), Then: constString(" ")},
			},
			col,
		)
	default:
		normalized = compile.NewCase(arrow.BinaryTypes.String,
			[]compile.CaseWhen{{When: compile.NewIsNull(col, false), Then: constString(nullPlaceholder)}},
			compile.NewCast(arrow.BinaryTypes.String, col),
		)
	}
	cols := append(namedExprs(df.Schema, field), dataframe.NamedExpr{Name: field, Expr: normalized})
	return df.Select(cols)
}

// PivotKeysQuery builds the sub-query whose distinct, sorted field values
// (after PivotFieldAsString normalization, nulls-last to match Vega's
// nulls-first *placeholder* sorting ahead of real keys, limit applied by
// the caller after running this query) become the pivot's output column
// names — a query the caller must actually execute, since the key set is
// only known once the data is (§4.6 Pivot: "First compute the sorted set
// of distinct pivot keys").
func PivotKeysQuery(df *dataframe.Dataframe, field string) *dataframe.Dataframe {
	normalized := PivotFieldAsString(df, field)
	grouped := normalized.Aggregate([]dataframe.NamedExpr{{Name: field, Expr: colRef(normalized.Schema, field)}}, nil)
	return grouped.Sort([]compile.SortKey{{Expr: colRef(grouped.Schema, field), Desc: false, NullsFirst: false}}, 0)
}

// Pivot implements §4.6 Pivot's final stage: given the concrete,
// already-materialized list of pivot keys (limit already applied), group
// by groupby and emit one aggregate per key filtered by field = key. Count
// and sum coalesce null to 0; other ops leave null, matching the spec.
func Pivot(df *dataframe.Dataframe, field, valueField string, groupby, keys []string, op compile.AggFunc) *dataframe.Dataframe {
	normalized := PivotFieldAsString(df, field)
	group := make([]dataframe.NamedExpr, len(groupby))
	for i, g := range groupby {
		group[i] = dataframe.NamedExpr{Name: g, Expr: colRef(normalized.Schema, g)}
	}

	agg := make([]dataframe.NamedExpr, 0, len(keys))
	for _, key := range keys {
		outName := key
		if key == "" {
			outName = nullPlaceholder
		}
		if outName == nullPlaceholder {
			outName = "null"
		}
		pred := compile.NewCompare(compile.CmpEq, colRef(normalized.Schema, field), constString(key))
		valueCol := colRef(normalized.Schema, valueField)
		maskedValue := compile.NewCase(valueCol.Type(),
			[]compile.CaseWhen{{When: pred, Then: valueCol}},
			compile.NewConst(value.NullUntyped(), valueCol.Type()),
		)

		var aggExpr compile.Expr
		switch op {
		case compile.AggSum, compile.AggCount:
			raw := compile.NewAggregateCall(arrow.PrimitiveTypes.Float64, op, maskedValue)
			aggExpr = compile.NewCase(arrow.PrimitiveTypes.Float64,
				[]compile.CaseWhen{{When: compile.NewIsNull(raw, false), Then: constFloat(0)}}, raw)
		default:
			aggExpr = compile.NewAggregateCall(arrow.PrimitiveTypes.Float64, op, maskedValue)
		}
		agg = append(agg, dataframe.NamedExpr{Name: outName, Expr: aggExpr})
	}
	return normalized.Aggregate(group, agg)
}
