// Package transform implements the dataframe-pipeline operators of §4.6:
// each one consumes a *dataframe.Dataframe (plus whatever scalars the
// compiler has already resolved into the compiled expressions it is given)
// and returns a new *dataframe.Dataframe. None of these operators execute
// anything themselves — they extend the logical plan exactly as
// package dataframe's own builder methods do — so the package has no
// dependency on a live SQL connection. Operators that need a value only
// discoverable by actually running a query (Extent's signal output,
// Pivot's distinct key set) instead return the sub-query that computes it,
// leaving execution to the runtime.
//
// Grounded on original_source/vegafusion-runtime/src/transform/{aggregate,
// window,bin,pivot,impute}.rs and vegafusion-rt-datafusion/src/transform/
// {bin,stack}.rs for the exact per-operator algorithms, re-expressed
// against this module's dataframe/compile/value types instead of
// DataFusion's async DataFrame.
package transform

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/value"
)

func constF64(e compile.Expr) (float64, bool) {
	c, ok := e.(*compile.ConstExpr)
	if !ok {
		return 0, false
	}
	f, isNull, err := c.Value.ToF64()
	if err != nil || isNull {
		return 0, false
	}
	return f, true
}

// constF64Pair reads a compile-time [min, max] literal, the shape Extent
// and scale domain/range snapshots fold to (§4.3, builtins_scale.go).
func constF64Pair(e compile.Expr) (lo, hi float64, ok bool) {
	c, isConst := e.(*compile.ConstExpr)
	if !isConst {
		return 0, 0, false
	}
	lo, hi, err := c.Value.ToF64Pair()
	if err != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

func constFloat(f float64) compile.Expr {
	return compile.NewConst(value.Float64(f), arrow.PrimitiveTypes.Float64)
}

func constString(s string) compile.Expr {
	return compile.NewConst(value.String(s), arrow.BinaryTypes.String)
}

func constBool(b bool) compile.Expr {
	return compile.NewConst(value.Bool(b), arrow.FixedWidthTypes.Boolean)
}

// colRef resolves name's Arrow type against schema, defaulting to float64
// when the field isn't found (e.g. a synthetic column a prior select in
// the same chain introduced, not yet reflected in the caller's schema
// handle).
func colRef(schema *arrow.Schema, name string) compile.Expr {
	dt := arrow.DataType(arrow.PrimitiveTypes.Float64)
	if schema != nil {
		for _, f := range schema.Fields() {
			if f.Name == name {
				dt = f.Type
				break
			}
		}
	}
	return compile.NewColumnRef(name, dt)
}

// toNumeric casts operand to float64, per the compiler's to_numeric rule
// (nulls pass through, non-numeric is an error at the caller's own risk —
// transform operators only ever apply this to fields already known numeric
// or blindly coerced, matching `to_numeric` in the upstream transforms).
func toNumeric(e compile.Expr) compile.Expr {
	if e.Type().ID() == arrow.FLOAT64 {
		return e
	}
	return compile.NewCast(arrow.PrimitiveTypes.Float64, e)
}

// numericOrZero casts operand to float64, replacing null with 0 — the
// `when(col.is_not_null(), numeric).otherwise(lit(0))` idiom shared by
// Stack's eval_zero_offset/eval_normalize_center_offset.
func numericOrZero(operand compile.Expr) compile.Expr {
	return compile.NewCase(arrow.PrimitiveTypes.Float64,
		[]compile.CaseWhen{{When: compile.NewIsNull(operand, false), Then: constFloat(0)}},
		toNumeric(operand),
	)
}

// orderKey sorts by _vf_order ascending, the row-order tiebreaker every
// window/stack computation appends last (§4.5/§4.6).
func orderKey(schema *arrow.Schema) compile.SortKey {
	return compile.SortKey{Expr: colRef(schema, value.OrderColumn), Desc: false, NullsFirst: true}
}

func sortKeys(schema *arrow.Schema, fields []string, ascending []bool) []compile.SortKey {
	keys := make([]compile.SortKey, 0, len(fields)+1)
	for i, f := range fields {
		asc := true
		if i < len(ascending) {
			asc = ascending[i]
		}
		keys = append(keys, compile.SortKey{Expr: colRef(schema, f), Desc: !asc, NullsFirst: asc})
	}
	keys = append(keys, orderKey(schema))
	return keys
}

func unboundedPrecedingToCurrent() (compile.FrameBound, compile.FrameBound) {
	return compile.FrameBound{Kind: compile.BoundUnboundedPreceding}, compile.FrameBound{Kind: compile.BoundCurrentRow}
}

func namedExprs(schema *arrow.Schema, exclude ...string) []dataframe.NamedExpr {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}
	out := make([]dataframe.NamedExpr, 0, len(schema.Fields()))
	for _, f := range schema.Fields() {
		if skip[f.Name] {
			continue
		}
		out = append(out, dataframe.NamedExpr{Name: f.Name, Expr: compile.NewColumnRef(f.Name, f.Type)})
	}
	return out
}

var errNonConstant = errs.New(errs.Specification, "expected a compile-time-constant operand")
