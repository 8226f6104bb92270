package compile

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/value"
)

// The constructors below let other components (transform, taskgraph)
// build compiled-expression subtrees directly — e.g. transform's Bin
// operator assembles a CASE expression for the bin-start column without
// going through the text parser. baseExpr is unexported so these are the
// only way to populate a node's resolved Arrow type from outside the
// package.

func NewColumnRef(name string, dt arrow.DataType) *ColumnRef {
	return &ColumnRef{baseExpr{dt}, name}
}

func NewConst(v value.Scalar, dt arrow.DataType) *ConstExpr {
	return &ConstExpr{baseExpr{dt}, v}
}

func NewArith(op ArithOp, dt arrow.DataType, left, right Expr) *ArithExpr {
	return &ArithExpr{baseExpr{dt}, op, left, right}
}

func NewCompare(op CmpOp, left, right Expr) *CompareExpr {
	return &CompareExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, op, left, right}
}

func NewLogical(op LogicalOp, left, right Expr) *LogicalExpr {
	return &LogicalExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, op, left, right}
}

func NewIsNull(operand Expr, negate bool) *IsNullExpr {
	return &IsNullExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, operand, negate}
}

func NewCase(dt arrow.DataType, whens []CaseWhen, els Expr) *CaseExpr {
	return &CaseExpr{baseExpr{dt}, whens, els}
}

func NewCast(dt arrow.DataType, operand Expr) *CastExpr {
	return &CastExpr{baseExpr{dt}, operand}
}

func NewBetween(operand, lo, hi Expr) *BetweenExpr {
	return &BetweenExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, operand, lo, hi}
}

func NewScalarCall(dt arrow.DataType, name string, args ...Expr) *ScalarCallExpr {
	return &ScalarCallExpr{baseExpr{dt}, name, args}
}

func NewAggregateCall(dt arrow.DataType, fn AggFunc, arg Expr) *AggregateCallExpr {
	return &AggregateCallExpr{baseExpr{dt}, fn, arg}
}

// NewWindowCall copies spec, overriding its resolved type to dt.
func NewWindowCall(dt arrow.DataType, spec WindowCallExpr) *WindowCallExpr {
	spec.baseExpr = baseExpr{dt}
	return &spec
}
