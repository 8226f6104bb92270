// Package compile lowers expression-language ASTs (package expr) to a typed
// relational-expression algebra against an Arrow schema and a scope of
// bound signals/datasets/scales, and hosts the built-in function registry
// that backs the expression language's call forms.
package compile

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/value"
)

// Expr is a node of the compiled relational-expression tree (§3: "After
// compile, expressions become a tree of typed operators over columns of an
// Arrow schema"). Every node resolves to an Arrow data type.
type Expr interface {
	Type() arrow.DataType
	expr()
}

type baseExpr struct{ dt arrow.DataType }

func (b baseExpr) Type() arrow.DataType { return b.dt }
func (baseExpr) expr()                  {}

// ColumnRef references a named column of the input schema.
type ColumnRef struct {
	baseExpr
	Name string
}

// ConstExpr is a literal scalar.
type ConstExpr struct {
	baseExpr
	Value value.Scalar
}

// ArithOp names an arithmetic/bitwise infix operator in the compiled IR.
type ArithOp string

const (
	ArithAdd    ArithOp = "+"
	ArithSub    ArithOp = "-"
	ArithMul    ArithOp = "*"
	ArithDiv    ArithOp = "/"
	ArithMod    ArithOp = "%"
	ArithShl    ArithOp = "<<"
	ArithShr    ArithOp = ">>"
	ArithUShr   ArithOp = ">>>"
	ArithBitAnd ArithOp = "&"
	ArithBitXor ArithOp = "^"
	ArithBitOr  ArithOp = "|"
	ArithConcat ArithOp = "concat" // `+` lowered to string concatenation
)

// ArithExpr is a compiled arithmetic/bitwise/concat binary operator.
type ArithExpr struct {
	baseExpr
	Op          ArithOp
	Left, Right Expr
}

// CmpOp names a comparison operator.
type CmpOp string

const (
	CmpLt CmpOp = "<"
	CmpLe CmpOp = "<="
	CmpGt CmpOp = ">"
	CmpGe CmpOp = ">="
	CmpEq CmpOp = "="
	CmpNe CmpOp = "!="
)

// CompareExpr is a compiled comparison.
type CompareExpr struct {
	baseExpr
	Op          CmpOp
	Left, Right Expr
}

// LogicalOp names a boolean connective in the compiled IR.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "AND"
	LogicalOr  LogicalOp = "OR"
	LogicalNot LogicalOp = "NOT"
)

// LogicalExpr is a native boolean AND/OR/NOT: `!` compiles to LogicalNot,
// and lowerings such as selection tests and bin build AND/OR chains. JS
// &&/|| do not produce this node; they compile to a CaseExpr to preserve
// short-circuit truthiness (§4.2).
type LogicalExpr struct {
	baseExpr
	Op          LogicalOp
	Left, Right Expr // Right is nil for LogicalNot
}

// IsNullExpr is a compiled `x IS [NOT] NULL`.
type IsNullExpr struct {
	baseExpr
	Operand Expr
	Negate  bool
}

// CaseWhen is one branch of a CaseExpr.
type CaseWhen struct {
	When Expr
	Then Expr
}

// CaseExpr is a compiled `case when ... then ... else ... end`.
type CaseExpr struct {
	baseExpr
	Whens []CaseWhen
	Else  Expr
}

// CastExpr is a compiled explicit cast to a target Arrow type.
type CastExpr struct {
	baseExpr
	Operand Expr
}

// BetweenExpr is a compiled `operand BETWEEN lo AND hi`.
type BetweenExpr struct {
	baseExpr
	Operand, Lo, Hi Expr
}

// ScalarCallExpr is a compiled call to a named scalar function.
type ScalarCallExpr struct {
	baseExpr
	Name string
	Args []Expr
}

// AggFunc names a supported aggregate op (§4.6 Aggregate).
type AggFunc string

const (
	AggCount       AggFunc = "count"
	AggValid       AggFunc = "valid"
	AggMissing     AggFunc = "missing"
	AggDistinct    AggFunc = "distinct"
	AggSum         AggFunc = "sum"
	AggMean        AggFunc = "mean"
	AggMin         AggFunc = "min"
	AggMax         AggFunc = "max"
	AggMedian      AggFunc = "median"
	AggQ1          AggFunc = "q1"
	AggQ3          AggFunc = "q3"
	AggVariance    AggFunc = "variance"
	AggVariancep   AggFunc = "variancep"
	AggStdev       AggFunc = "stdev"
	AggStdevp      AggFunc = "stdevp"
)

// AggregateCallExpr is a compiled aggregate-function call. Arg is nil for
// the bare `count()` (counts rows).
type AggregateCallExpr struct {
	baseExpr
	Func AggFunc
	Arg  Expr
}

// WindowFunc names a supported window op (aggregate ops plus the rank
// family, §4.6 Window).
type WindowFunc string

const (
	WinRowNumber   WindowFunc = "row_number"
	WinRank        WindowFunc = "rank"
	WinDenseRank   WindowFunc = "dense_rank"
	WinPercentRank WindowFunc = "percent_rank"
	WinCumeDist    WindowFunc = "cume_dist"
	WinFirstValue  WindowFunc = "first_value"
	WinLastValue   WindowFunc = "last_value"
	WinNthValue    WindowFunc = "nth_value"
	WinLag         WindowFunc = "lag"
	WinLead        WindowFunc = "lead"
)

// FrameUnit is the window frame's unit of measure (§4.5).
type FrameUnit int

const (
	FrameRows FrameUnit = iota
	FrameGroups
)

// FrameBoundKind tags a window frame bound.
type FrameBoundKind int

const (
	BoundUnboundedPreceding FrameBoundKind = iota
	BoundPreceding
	BoundCurrentRow
	BoundFollowing
	BoundUnboundedFollowing
)

// FrameBound is one edge of a window frame.
type FrameBound struct {
	Kind   FrameBoundKind
	Offset int // for Preceding/Following
}

// SortKey is one (expr, direction, nulls-first) sort tuple.
type SortKey struct {
	Expr      Expr
	Desc      bool
	NullsFirst bool
}

// WindowCallExpr is a compiled window-function call, covering both the
// aggregate-ops-as-window (joinaggregate/window transforms) and the rank
// family.
type WindowCallExpr struct {
	baseExpr
	AggFunc    AggFunc    // set when this window call wraps an aggregate op
	WinFunc    WindowFunc // set when this window call is a rank-family op
	Arg        Expr       // nil for row_number/rank/dense_rank/etc. with no arg
	ExtraArgs  []Expr     // e.g. nth_value's n, lag/lead's offset/default
	PartitionBy []Expr
	OrderBy    []SortKey
	FrameUnit  FrameUnit
	FrameStart FrameBound
	FrameEnd   FrameBound
}
