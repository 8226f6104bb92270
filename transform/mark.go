package transform

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/value"
)

// EncodingEntry is one entry of an encoding's conditional list (§4.6
// Mark-encoding evaluation): an unconditional entry has Test == nil and must
// be last. Exactly one of Scale+Field, Field, Signal, or Value applies.
type EncodingEntry struct {
	Test Predicate // compile.Expr wrapper kept opaque so callers build it with compile.NewCompare etc.

	Scale       string
	ScaleOffset float64
	HasOffset   bool

	Field string

	Signal compile.Expr

	Value    value.Scalar
	HasValue bool
}

// Predicate is a conditional encoding's test expression; nil for the
// trailing unconditional entry.
type Predicate = compile.Expr

// EvalEncoding implements §4.6 Mark-encoding evaluation for one (channel,
// entries) pair: lowers the entry list to a single column, nesting
// conditional entries into a CASE expression when there is more than one.
func EvalEncoding(df *dataframe.Dataframe, cfg *compile.Config, channel string, entries []EncodingEntry) (*dataframe.Dataframe, error) {
	if len(entries) == 0 {
		return nil, errs.New(errs.Specification, "mark encoding %q: no entries", channel)
	}

	var whens []compile.CaseWhen
	var dflt compile.Expr
	dt := arrow.DataType(arrow.PrimitiveTypes.Float64)

	for i, e := range entries {
		val, err := lowerEncodingEntry(df, cfg, channel, e)
		if err != nil {
			return nil, err
		}
		if i == len(entries)-1 && e.Test == nil {
			dflt = val
			dt = val.Type()
			continue
		}
		if e.Test == nil {
			return nil, errs.New(errs.Specification, "mark encoding %q: only the last entry may be unconditional", channel)
		}
		whens = append(whens, compile.CaseWhen{When: e.Test, Then: val})
	}
	if dflt == nil {
		dflt = compile.NewConst(value.NullUntyped(), dt)
	}

	var col compile.Expr
	if len(whens) == 0 {
		col = dflt
	} else {
		col = compile.NewCase(dt, whens, dflt)
	}
	cols := append(namedExprs(df.Schema, channel), dataframe.NamedExpr{Name: channel, Expr: col})
	return df.Select(cols), nil
}

func lowerEncodingEntry(df *dataframe.Dataframe, cfg *compile.Config, channel string, e EncodingEntry) (compile.Expr, error) {
	switch {
	case e.Scale != "":
		if e.Field == "" {
			return nil, errs.New(errs.Specification, "mark encoding %q: scale entry requires a field", channel)
		}
		applied, ok := applyScale(cfg, e.Scale, colRef(df.Schema, e.Field))
		if !ok {
			return compile.NewConst(value.NullUntyped(), arrow.PrimitiveTypes.Float64), nil
		}
		if e.HasOffset && e.ScaleOffset != 0 {
			applied = compile.NewArith(compile.ArithAdd, arrow.PrimitiveTypes.Float64, applied, constFloat(e.ScaleOffset))
		}
		return applied, nil
	case e.Field != "":
		return colRef(df.Schema, e.Field), nil
	case e.Signal != nil:
		return e.Signal, nil
	case e.HasValue:
		return compile.NewConst(e.Value, arrowTypeOfValue(e.Value)), nil
	default:
		return nil, errs.New(errs.Specification, "mark encoding %q: entry has no scale/field/signal/value", channel)
	}
}

// applyScale mirrors compile's own scale() lowering (builtins_scale.go's
// lowerScale) so mark-encoding evaluation can reuse the same apply_scale
// named call without round-tripping through the expression-text compiler.
func applyScale(cfg *compile.Config, name string, arg compile.Expr) (compile.Expr, bool) {
	snap, ok := cfg.ScaleScope[name]
	if !ok {
		return nil, false
	}
	return compile.NewScalarCall(arrow.PrimitiveTypes.Float64, "apply_scale",
		arg,
		compile.NewConst(value.String(snap.Type), arrow.BinaryTypes.String),
		listConst(snap.Domain),
		listConst(snap.Range),
		compile.NewConst(value.String(name), arrow.BinaryTypes.String),
	), true
}

func listConst(elems []value.Scalar) compile.Expr {
	elemType := arrow.DataType(arrow.PrimitiveTypes.Float64)
	if len(elems) > 0 {
		elemType = arrowTypeOfValue(elems[0])
	}
	return compile.NewConst(value.Scalar{Kind: value.KindList, List: elems}, arrow.ListOf(elemType))
}

func arrowTypeOfValue(s value.Scalar) arrow.DataType {
	switch s.Kind {
	case value.KindString, value.KindLargeString:
		return arrow.BinaryTypes.String
	case value.KindBool:
		return arrow.FixedWidthTypes.Boolean
	case value.KindInt64, value.KindInt32, value.KindInt16, value.KindInt8,
		value.KindUint64, value.KindUint32, value.KindUint16, value.KindUint8:
		return arrow.PrimitiveTypes.Int64
	case value.KindTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ms
	default:
		return arrow.PrimitiveTypes.Float64
	}
}
