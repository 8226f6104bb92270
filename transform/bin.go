package transform

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
	"github.com/hugr-lab/vizql/errs"
)

// BinSpec configures a Bin transform (§4.6 Bin). Extent must already be
// compiled to a [min, max] literal — by the time a Bin transform runs, its
// extent dependency (an Extent transform's signal, or a literal spec
// value) has already been resolved to a constant by the compiler, exactly
// as a scale's domain/range is (compile/builtins_scale.go).
type BinSpec struct {
	Extent                      compile.Expr
	Field                       string
	Signal                      string
	Alias0, Alias1              string
	MaxBins                     float64
	Base                        float64
	Step                        float64 // 0 = unset
	Steps                       []float64
	MinStep                     float64
	Divide                      []float64
	Anchor                      float64
	HasAnchor                   bool
	Nice                        bool
	Span                        float64 // 0 = unset
}

// BinParams is the computed binning solution (start, stop, step, n).
type BinParams struct {
	Start, Stop, Step float64
	N                 int
}

// CalculateBinParams computes (start, stop, step, n) per the Vega binning
// algorithm, ported directly from
// original_source/vegafusion-runtime/src/transform/bin.rs's
// calculate_bin_params (maxbins -> preliminary step; optional steps
// selection; nice extension of bounds; anchor shift).
func CalculateBinParams(spec BinSpec) (BinParams, error) {
	minV, maxV, ok := constF64Pair(spec.Extent)
	if !ok {
		return BinParams{}, errs.New(errs.Specification, "bin: extent must be a compile-time-known [min, max]")
	}
	if minV > maxV {
		return BinParams{}, errs.New(errs.Specification, "extent[1] must be greater than extent[0]: received [%v, %v]", minV, maxV)
	}

	base := spec.Base
	if base == 0 {
		base = 10
	}
	maxbins := spec.MaxBins
	if maxbins == 0 {
		maxbins = 10
	}

	span := maxV - minV
	if span == 0 {
		if minV != 0 {
			span = math.Abs(minV)
		} else {
			span = 1
		}
	}
	if spec.Span != 0 {
		span = spec.Span
	}

	logb := math.Log(base)

	var step float64
	switch {
	case spec.Step != 0:
		step = spec.Step
	case len(spec.Steps) > 0:
		minStepSize := span / maxbins
		step = spec.Steps[len(spec.Steps)-1]
		for _, s := range spec.Steps {
			if s > minStepSize {
				step = s
				break
			}
		}
	default:
		level := math.Ceil(math.Log(maxbins) / logb)
		minstep := spec.MinStep
		step = math.Max(minstep, math.Pow(base, math.Round(math.Log(span)/logb)-level))
		for math.Ceil(span/step) > maxbins {
			step *= base
		}
		for _, div := range spec.Divide {
			if div == 0 {
				continue
			}
			v := step / div
			if v >= minstep && span/v <= maxbins {
				step = v
			}
		}
	}

	v := math.Log(step)
	precision := 0.0
	if v < 0 {
		precision = math.Floor(-v/logb) + 1
	}
	eps := math.Pow(base, -precision-1)

	start, stop := minV, maxV
	if spec.Nice {
		vv := math.Floor(minV/step+eps) * step
		if minV < vv {
			start = vv - step
		} else {
			start = vv
		}
		stop = math.Ceil(maxV/step) * step
	}

	finalStart := start
	finalStop := stop
	if finalStop == finalStart {
		finalStop = finalStart + step
	}

	if spec.HasAnchor {
		shift := spec.Anchor - (finalStart + step*math.Floor((spec.Anchor-finalStart)/step))
		finalStart += shift
		finalStop += shift
	}

	return BinParams{
		Start: finalStart,
		Stop:  finalStop,
		Step:  step,
		N:     int(math.Ceil((finalStop - finalStart) / step)),
	}, nil
}

// Bin implements §4.6 Bin: emits bin-start/bin-end columns (default
// `bin0`/`bin1`), mapping a value below start to -inf, above stop to
// +inf, and a value exactly at stop into the last bin.
func Bin(df *dataframe.Dataframe, spec BinSpec) (*dataframe.Dataframe, BinParams, error) {
	params, err := CalculateBinParams(spec)
	if err != nil {
		return nil, BinParams{}, err
	}

	alias0, alias1 := spec.Alias0, spec.Alias1
	if alias0 == "" {
		alias0 = "bin0"
	}
	if alias1 == "" {
		alias1 = "bin1"
	}

	field := toNumeric(colRef(df.Schema, spec.Field))
	const binIndexCol = "__bin_index"

	binIndex := compile.NewScalarCall(arrow.PrimitiveTypes.Float64, "floor",
		compile.NewArith(compile.ArithAdd, arrow.PrimitiveTypes.Float64,
			compile.NewArith(compile.ArithDiv, arrow.PrimitiveTypes.Float64,
				compile.NewArith(compile.ArithSub, arrow.PrimitiveTypes.Float64, field, constFloat(params.Start)),
				constFloat(params.Step)),
			constFloat(1.0e-14),
		))

	withIndex := df.Select(append(namedExprs(df.Schema), dataframe.NamedExpr{Name: binIndexCol, Expr: binIndex}))

	indexRef := colRef(withIndex.Schema, binIndexCol)
	lastStop := params.Start + params.Step*float64(params.N)

	bandStart := compile.NewArith(compile.ArithAdd, arrow.PrimitiveTypes.Float64,
		compile.NewArith(compile.ArithMul, arrow.PrimitiveTypes.Float64, indexRef, constFloat(params.Step)),
		constFloat(params.Start),
	)
	atLastStop := compile.NewLogical(compile.LogicalAnd, nil, nil)
	atLastStop.Left = compile.NewCompare(compile.CmpLt,
		compile.NewScalarCall(arrow.PrimitiveTypes.Float64, "abs",
			compile.NewArith(compile.ArithSub, arrow.PrimitiveTypes.Float64, field, constFloat(lastStop))),
		constFloat(1.0e-14))
	atLastStop.Right = compile.NewCompare(compile.CmpEq, indexRef, constFloat(float64(params.N)))

	binStartExpr := compile.NewCase(arrow.PrimitiveTypes.Float64,
		[]compile.CaseWhen{
			{When: compile.NewCompare(compile.CmpLt, indexRef, constFloat(0)), Then: constFloat(math.Inf(-1))},
			{When: atLastStop, Then: compile.NewArith(compile.ArithAdd, arrow.PrimitiveTypes.Float64,
				compile.NewArith(compile.ArithMul, arrow.PrimitiveTypes.Float64,
					compile.NewArith(compile.ArithSub, arrow.PrimitiveTypes.Float64, indexRef, constFloat(1)),
					constFloat(params.Step)),
				constFloat(params.Start))},
			{When: compile.NewCompare(compile.CmpGe, indexRef, constFloat(float64(params.N))), Then: constFloat(math.Inf(1))},
		},
		bandStart,
	)

	withStart := withIndex.Select(append(namedExprs(withIndex.Schema, binIndexCol), dataframe.NamedExpr{Name: alias0, Expr: binStartExpr}))

	binEnd := compile.NewArith(compile.ArithAdd, arrow.PrimitiveTypes.Float64, colRef(withStart.Schema, alias0), constFloat(params.Step))
	final := withStart.Select(append(namedExprs(withStart.Schema, alias0), dataframe.NamedExpr{Name: alias0, Expr: colRef(withStart.Schema, alias0)}, dataframe.NamedExpr{Name: alias1, Expr: binEnd}))

	return final, params, nil
}

// BinSignalValue builds the struct signal {fields, fname, start, step,
// stop} Bin emits when Signal is set (§4.6 Bin).
func BinSignalValue(field string, params BinParams) compile.Expr {
	fname := "bin_" + field
	fields := compile.NewScalarCall(arrow.ListOf(arrow.BinaryTypes.String), "make_list", constString(field))
	return compile.NewScalarCall(arrow.StructOf(
		arrow.Field{Name: "fields", Type: arrow.ListOf(arrow.BinaryTypes.String)},
		arrow.Field{Name: "fname", Type: arrow.BinaryTypes.String},
		arrow.Field{Name: "start", Type: arrow.PrimitiveTypes.Float64},
		arrow.Field{Name: "step", Type: arrow.PrimitiveTypes.Float64},
		arrow.Field{Name: "stop", Type: arrow.PrimitiveTypes.Float64},
	), "struct_pack", fields, constString(fname), constFloat(params.Start), constFloat(params.Step), constFloat(params.Stop))
}
