package transform

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
	"github.com/hugr-lab/vizql/dialect"
	"github.com/hugr-lab/vizql/errs"
)

// StackOffset names a Stack transform's offset mode (§4.6 Stack).
type StackOffset string

const (
	StackZero      StackOffset = "zero"
	StackCenter    StackOffset = "center"
	StackNormalize StackOffset = "normalize"
)

// StackSpec configures a Stack transform.
type StackSpec struct {
	Field          string
	Groupby        []string
	SortFields     []string
	SortAscending  []bool
	Offset         StackOffset
	Alias0, Alias1 string
}

// Stack implements §4.6 Stack, grounded on
// original_source/vegafusion-rt-datafusion/src/transform/stack.rs's
// eval_zero_offset/eval_normalize_center_offset: convert field to numeric
// treating null as 0, then compute a running sum window ordered by sort
// then _vf_order, partitioned by groupby.
func Stack(df *dataframe.Dataframe, d dialect.Dialect, spec StackSpec) (*dataframe.Dataframe, error) {
	alias0, alias1 := spec.Alias0, spec.Alias1
	if alias0 == "" {
		alias0 = "y0"
	}
	if alias1 == "" {
		alias1 = "y1"
	}

	switch spec.Offset {
	case StackCenter, StackNormalize:
		return stackCenterOrNormalize(df, d, spec, alias0, alias1)
	default:
		return stackZero(df, d, spec, alias0, alias1)
	}
}

func stackZero(df *dataframe.Dataframe, d dialect.Dialect, spec StackSpec, alias0, alias1 string) (*dataframe.Dataframe, error) {
	numericField := numericOrZero(colRef(df.Schema, spec.Field))
	order := sortKeys(df.Schema, spec.SortFields, spec.SortAscending)
	partitionBy := colRefs(df.Schema, spec.Groupby)

	windowExpr := compile.NewWindowCall(arrow.PrimitiveTypes.Float64, compile.WindowCallExpr{
		AggFunc:     compile.AggSum,
		Arg:         numericField,
		PartitionBy: partitionBy,
		OrderBy:     order,
		FrameUnit:   compile.FrameRows,
		FrameStart:  compile.FrameBound{Kind: compile.BoundUnboundedPreceding},
		FrameEnd:    compile.FrameBound{Kind: compile.BoundCurrentRow},
	})
	windowSQL, err := dialect.Render(windowExpr, d)
	if err != nil {
		return nil, errs.Wrapf(err, "stack: rendering zero-offset window expression")
	}
	fieldSQL, err := dialect.Render(numericField, d)
	if err != nil {
		return nil, errs.Wrapf(err, "stack: rendering numeric field")
	}
	alias1Quoted := d.QuoteIdent(alias1)

	chained := df.ChainQueryStr(
		fmt.Sprintf(
			"(SELECT *, %s AS %s FROM {parent} WHERE %s >= 0) UNION ALL (SELECT *, %s AS %s FROM {parent} WHERE %s < 0)",
			windowSQL, alias1Quoted, fieldSQL, windowSQL, alias1Quoted, fieldSQL,
		),
		appendFields(df.Schema, alias1, arrow.PrimitiveTypes.Float64),
	)

	alias0Expr := compile.NewArith(compile.ArithSub, arrow.PrimitiveTypes.Float64,
		colRef(chained.Schema, alias1), numericOrZero(colRef(chained.Schema, spec.Field)))

	cols := append(namedExprs(chained.Schema, alias0, alias1),
		dataframe.NamedExpr{Name: alias0, Expr: alias0Expr},
		dataframe.NamedExpr{Name: alias1, Expr: colRef(chained.Schema, alias1)},
	)
	return chained.Select(cols), nil
}

func stackCenterOrNormalize(df *dataframe.Dataframe, d dialect.Dialect, spec StackSpec, alias0, alias1 string) (*dataframe.Dataframe, error) {
	const stackCol = "__stack"
	numericField := compile.NewScalarCall(arrow.PrimitiveTypes.Float64, "abs", numericOrZero(colRef(df.Schema, spec.Field)))
	withStack := df.Select(append(namedExprs(df.Schema), dataframe.NamedExpr{Name: stackCol, Expr: numericField}))

	totalAgg := compile.NewAggregateCall(arrow.PrimitiveTypes.Float64, compile.AggSum, colRef(withStack.Schema, stackCol))
	totalSQL, err := dialect.Render(totalAgg, d)
	if err != nil {
		return nil, errs.Wrapf(err, "stack: rendering total aggregate")
	}

	var withTotal *dataframe.Dataframe
	if len(spec.Groupby) == 0 {
		withTotal = withStack.ChainQueryStr(
			fmt.Sprintf("SELECT * FROM {parent} CROSS JOIN (SELECT %s AS __total FROM {parent})", totalSQL),
			appendFields(withStack.Schema, "__total", arrow.PrimitiveTypes.Float64),
		)
	} else {
		groupCols := make([]string, len(spec.Groupby))
		for i, g := range spec.Groupby {
			groupCols[i] = d.QuoteIdent(g)
		}
		groupCSV := joinStrings(groupCols, ", ")
		withTotal = withStack.ChainQueryStr(
			fmt.Sprintf(
				"SELECT * FROM {parent} INNER JOIN (SELECT %s, %s AS __total FROM {parent} GROUP BY %s) AS __inner USING (%s)",
				groupCSV, totalSQL, groupCSV, groupCSV,
			),
			appendFields(withStack.Schema, "__total", arrow.PrimitiveTypes.Float64),
		)
	}

	order := sortKeys(df.Schema, spec.SortFields, spec.SortAscending)
	partitionBy := colRefs(withTotal.Schema, spec.Groupby)
	windowExpr := compile.NewWindowCall(arrow.PrimitiveTypes.Float64, compile.WindowCallExpr{
		AggFunc:     compile.AggSum,
		Arg:         colRef(withTotal.Schema, stackCol),
		PartitionBy: partitionBy,
		OrderBy:     order,
		FrameUnit:   compile.FrameRows,
		FrameStart:  compile.FrameBound{Kind: compile.BoundUnboundedPreceding},
		FrameEnd:    compile.FrameBound{Kind: compile.BoundCurrentRow},
	})
	withCum := withTotal.Select(append(namedExprs(withTotal.Schema), dataframe.NamedExpr{Name: alias1, Expr: windowExpr}))

	baseCols := namedExprs(withCum.Schema, alias0, alias1, stackCol, "__total", "__max_total")

	if spec.Offset == StackCenter {
		maxTotal := compile.NewAggregateCall(arrow.PrimitiveTypes.Float64, compile.AggMax, colRef(withCum.Schema, "__total"))
		maxTotalSQL, err := dialect.Render(maxTotal, d)
		if err != nil {
			return nil, errs.Wrapf(err, "stack: rendering max-total aggregate")
		}
		withMax := withCum.ChainQueryStr(
			fmt.Sprintf("SELECT * FROM {parent} CROSS JOIN (SELECT %s AS __max_total FROM {parent})", maxTotalSQL),
			appendFields(withCum.Schema, "__max_total", arrow.PrimitiveTypes.Float64),
		)
		half := compile.NewArith(compile.ArithDiv, arrow.PrimitiveTypes.Float64,
			compile.NewArith(compile.ArithSub, arrow.PrimitiveTypes.Float64, colRef(withMax.Schema, "__max_total"), colRef(withMax.Schema, "__total")),
			constFloat(2))
		firstCol := compile.NewArith(compile.ArithAdd, arrow.PrimitiveTypes.Float64, colRef(withMax.Schema, alias1), half)
		alias1Col := firstCol
		alias0Col := compile.NewArith(compile.ArithSub, arrow.PrimitiveTypes.Float64, firstCol, colRef(withMax.Schema, stackCol))
		cols := append(namedExprs(withMax.Schema, alias0, alias1, stackCol, "__total", "__max_total"),
			dataframe.NamedExpr{Name: alias0, Expr: alias0Col},
			dataframe.NamedExpr{Name: alias1, Expr: alias1Col},
		)
		return withMax.Select(cols), nil
	}

	// normalize
	totalZero := compile.NewCompare(compile.CmpEq, colRef(withCum.Schema, "__total"), constFloat(0))
	alias0Col := compile.NewCase(arrow.PrimitiveTypes.Float64,
		[]compile.CaseWhen{{When: totalZero, Then: constFloat(0)}},
		compile.NewArith(compile.ArithDiv, arrow.PrimitiveTypes.Float64,
			compile.NewArith(compile.ArithSub, arrow.PrimitiveTypes.Float64, colRef(withCum.Schema, alias1), colRef(withCum.Schema, stackCol)),
			colRef(withCum.Schema, "__total")),
	)
	alias1Col := compile.NewCase(arrow.PrimitiveTypes.Float64,
		[]compile.CaseWhen{{When: totalZero, Then: constFloat(0)}},
		compile.NewArith(compile.ArithDiv, arrow.PrimitiveTypes.Float64, colRef(withCum.Schema, alias1), colRef(withCum.Schema, "__total")),
	)
	cols := append(baseCols,
		dataframe.NamedExpr{Name: alias0, Expr: alias0Col},
		dataframe.NamedExpr{Name: alias1, Expr: alias1Col},
	)
	return withCum.Select(cols), nil
}

func colRefs(schema *arrow.Schema, names []string) []compile.Expr {
	out := make([]compile.Expr, len(names))
	for i, n := range names {
		out[i] = colRef(schema, n)
	}
	return out
}

func appendFields(schema *arrow.Schema, name string, dt arrow.DataType) *arrow.Schema {
	fields := append(append([]arrow.Field{}, schema.Fields()...), arrow.Field{Name: name, Type: dt, Nullable: true})
	return arrow.NewSchema(fields, nil)
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
