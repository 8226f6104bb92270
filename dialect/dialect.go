// Package dialect renders the compiled relational-expression algebra
// (package compile) to a target SQL engine's text, and holds the per-engine
// descriptors required by §4.7: identifier quoting, scalar/aggregate/window
// function name or rewrite-rule lookup, cast-target type names, and
// non-finite float literal support. Grounded on `filter/encode.go`'s
// `Encoder` interface and per-kind `encodeXxx` dispatch, generalized from a
// predicate-only encoder to a full expression-and-query renderer.
package dialect

import (
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/value"
)

// FunctionTransformer rewrites a call's already-rendered argument SQL
// fragments into a dialect-specific expression, per §4.7. argTypes holds
// each argument's Arrow type, supplied for transformers that need to
// inspect argument types beyond what's captured by the rendered text.
type FunctionTransformer func(args []string, d Dialect, argTypes []arrow.DataType) string

// Dialect is the descriptor a query renderer threads through every
// subtree (§4.7).
type Dialect interface {
	// Name identifies the dialect for diagnostics and dispatch.
	Name() string
	// QuoteIdent quotes name as an identifier in this dialect's syntax.
	QuoteIdent(name string) string
	// QuoteLiteral quotes a string literal.
	QuoteLiteral(s string) string
	// ScalarFunction returns the rendered name for a pass-through scalar
	// function, or a FunctionTransformer when the call needs rewriting, and
	// ok=false when the dialect cannot express the function at all.
	ScalarFunction(name string) (passthroughName string, transform FunctionTransformer, ok bool)
	// AggregateFunction returns the rendered name for a supported aggregate.
	AggregateFunction(fn compile.AggFunc) (string, bool)
	// WindowFunction returns the rendered name for a rank-family window function.
	WindowFunction(fn compile.WindowFunc) (string, bool)
	// CastTypeName renders dt as this dialect's type name for CAST(... AS ...).
	CastTypeName(dt arrow.DataType) string
	// SupportsNonFiniteFloats reports whether the dialect can express
	// Infinity/NaN float literals (§4.7); if true, non-finite literals are
	// rendered as a cast from a string, and if false, as NULL.
	SupportsNonFiniteFloats() bool
}

// Render lowers a compiled expression tree to this dialect's SQL text,
// wrapping every operator expression (arithmetic, comparison, logical,
// IS NULL, BETWEEN) in its own parentheses so no parent can misread its
// precedence (§4.7).
func Render(e compile.Expr, d Dialect) (string, error) {
	return render(e, d)
}

func render(e compile.Expr, d Dialect) (string, error) {
	switch n := e.(type) {
	case *compile.ColumnRef:
		return d.QuoteIdent(n.Name), nil
	case *compile.ConstExpr:
		return renderConst(n, d)
	case *compile.ArithExpr:
		return renderArith(n, d)
	case *compile.CompareExpr:
		return renderCompare(n, d)
	case *compile.LogicalExpr:
		return renderLogical(n, d)
	case *compile.IsNullExpr:
		return renderIsNull(n, d)
	case *compile.CaseExpr:
		return renderCase(n, d)
	case *compile.CastExpr:
		return renderCast(n, d)
	case *compile.BetweenExpr:
		return renderBetween(n, d)
	case *compile.ScalarCallExpr:
		return renderScalarCall(n, d)
	case *compile.AggregateCallExpr:
		return renderAggregateCall(n, d)
	case *compile.WindowCallExpr:
		return renderWindowCall(n, d)
	default:
		return "", errs.New(errs.Internal, "dialect: no renderer for %T", e)
	}
}

// renderConst formats a literal scalar as a dialect-appropriate SQL literal,
// in the style of `filter/duckdb.go`'s per-kind `formatXxxValue` dispatch.
func renderConst(n *compile.ConstExpr, d Dialect) (string, error) {
	s := n.Value
	if s.Null {
		return "NULL", nil
	}
	switch s.Kind {
	case value.KindBool:
		if s.Bool {
			return "TRUE", nil
		}
		return "FALSE", nil
	case value.KindString, value.KindLargeString:
		return d.QuoteLiteral(s.Str), nil
	case value.KindInt64, value.KindInt32, value.KindInt16, value.KindInt8:
		i, err := s.ToI32()
		if err == nil {
			return strconv.Itoa(int(i)), nil
		}
		return strconv.FormatInt(s.I64, 10), nil
	case value.KindFloat64, value.KindFloat32:
		f, _, err := s.ToF64()
		if err != nil {
			return "", err
		}
		return formatFloatLiteral(f, d), nil
	case value.KindTimestamp:
		return "CAST(" + strconv.FormatInt(s.TSValue, 10) + " AS " + timestampLiteralCast(d) + ")", nil
	case value.KindList:
		parts := make([]string, len(s.List))
		for i, el := range s.List {
			lit, lerr := renderScalarLiteral(el, d)
			if lerr != nil {
				return "", lerr
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case value.KindStruct:
		parts := make([]string, len(s.Struct))
		for i, f := range s.Struct {
			lit, err := renderScalarLiteral(f.Value, d)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "ROW(" + strings.Join(parts, ", ") + ")", nil
	default:
		return "NULL", nil
	}
}

func renderScalarLiteral(s value.Scalar, d Dialect) (string, error) {
	return renderConst(&compile.ConstExpr{Value: s}, d)
}

func formatFloatLiteral(f float64, d Dialect) string {
	if f != f { // NaN
		if d.SupportsNonFiniteFloats() {
			return "CAST('nan' AS DOUBLE)"
		}
		return "NULL"
	}
	if f > 1e308*10 || f < -1e308*10 { // +/-Inf, avoided importing math for a single check
		if d.SupportsNonFiniteFloats() {
			if f > 0 {
				return "CAST('inf' AS DOUBLE)"
			}
			return "CAST('-inf' AS DOUBLE)"
		}
		return "NULL"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// timestampLiteralCast is deliberately generic (epoch-millis -> TIMESTAMP);
// dialects with a different native timestamp literal form override via
// their own ScalarFunction rewrite of the surrounding call instead.
func timestampLiteralCast(d Dialect) string {
	return "TIMESTAMP"
}

func renderArgs(args []compile.Expr, d Dialect) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		s, err := render(a, d)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func argTypes(args []compile.Expr) []arrow.DataType {
	out := make([]arrow.DataType, len(args))
	for i, a := range args {
		out[i] = a.Type()
	}
	return out
}

func renderArith(n *compile.ArithExpr, d Dialect) (string, error) {
	left, err := render(n.Left, d)
	if err != nil {
		return "", err
	}
	right, err := render(n.Right, d)
	if err != nil {
		return "", err
	}
	if n.Op == compile.ArithConcat {
		return "(" + left + " || " + right + ")", nil
	}
	return "(" + left + " " + string(n.Op) + " " + right + ")", nil
}

func renderCompare(n *compile.CompareExpr, d Dialect) (string, error) {
	left, err := render(n.Left, d)
	if err != nil {
		return "", err
	}
	right, err := render(n.Right, d)
	if err != nil {
		return "", err
	}
	op := string(n.Op)
	if op == "=" {
		op = "="
	} else if op == "!=" {
		op = "<>"
	}
	return "(" + left + " " + op + " " + right + ")", nil
}

func renderLogical(n *compile.LogicalExpr, d Dialect) (string, error) {
	left, err := render(n.Left, d)
	if err != nil {
		return "", err
	}
	if n.Op == compile.LogicalNot {
		return "(NOT " + left + ")", nil
	}
	right, err := render(n.Right, d)
	if err != nil {
		return "", err
	}
	return "(" + left + " " + string(n.Op) + " " + right + ")", nil
}

func renderIsNull(n *compile.IsNullExpr, d Dialect) (string, error) {
	operand, err := render(n.Operand, d)
	if err != nil {
		return "", err
	}
	if n.Negate {
		return "(" + operand + " IS NOT NULL)", nil
	}
	return "(" + operand + " IS NULL)", nil
}

func renderCase(n *compile.CaseExpr, d Dialect) (string, error) {
	var sb strings.Builder
	sb.WriteString("CASE")
	for _, w := range n.Whens {
		when, err := render(w.When, d)
		if err != nil {
			return "", err
		}
		then, err := render(w.Then, d)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHEN ")
		sb.WriteString(when)
		sb.WriteString(" THEN ")
		sb.WriteString(then)
	}
	if n.Else != nil {
		els, err := render(n.Else, d)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ELSE ")
		sb.WriteString(els)
	}
	sb.WriteString(" END")
	return sb.String(), nil
}

func renderCast(n *compile.CastExpr, d Dialect) (string, error) {
	operand, err := render(n.Operand, d)
	if err != nil {
		return "", err
	}
	return "CAST(" + operand + " AS " + d.CastTypeName(n.Type()) + ")", nil
}

func renderBetween(n *compile.BetweenExpr, d Dialect) (string, error) {
	operand, err := render(n.Operand, d)
	if err != nil {
		return "", err
	}
	lo, err := render(n.Lo, d)
	if err != nil {
		return "", err
	}
	hi, err := render(n.Hi, d)
	if err != nil {
		return "", err
	}
	return "(" + operand + " BETWEEN " + lo + " AND " + hi + ")", nil
}

func renderScalarCall(n *compile.ScalarCallExpr, d Dialect) (string, error) {
	args, err := renderArgs(n.Args, d)
	if err != nil {
		return "", err
	}
	name, transform, ok := d.ScalarFunction(n.Name)
	if !ok {
		return "", errs.New(errs.Compilation, "function %q is not supported by dialect %q", n.Name, d.Name())
	}
	if transform != nil {
		return transform(args, d, argTypes(n.Args)), nil
	}
	return name + "(" + strings.Join(args, ", ") + ")", nil
}

func renderAggregateCall(n *compile.AggregateCallExpr, d Dialect) (string, error) {
	name, ok := d.AggregateFunction(n.Func)
	if !ok {
		return "", errs.New(errs.Compilation, "aggregate %q is not supported by dialect %q", n.Func, d.Name())
	}
	if n.Arg == nil {
		return aggCallSQL(name, "*"), nil
	}
	arg, err := render(n.Arg, d)
	if err != nil {
		return "", err
	}
	if n.Func == compile.AggDistinct {
		return aggCallSQL(name, "DISTINCT "+arg), nil
	}
	return aggCallSQL(name, arg), nil
}

// aggCallSQL applies an aggregate-function rendering of name to arg. Most
// dialect names are plain function names (`sum` -> `sum(arg)`); a few
// (e.g. DuckDB's two-argument quantile_cont) are templates containing a
// single `%s` placeholder for where arg belongs among fixed parameters.
func aggCallSQL(name, arg string) string {
	if strings.Contains(name, "%s") {
		return strings.Replace(name, "%s", arg, 1)
	}
	return name + "(" + arg + ")"
}

func renderWindowCall(n *compile.WindowCallExpr, d Dialect) (string, error) {
	var fnSQL string
	switch {
	case n.WinFunc != "":
		name, ok := d.WindowFunction(n.WinFunc)
		if !ok {
			return "", errs.New(errs.Compilation, "window function %q is not supported by dialect %q", n.WinFunc, d.Name())
		}
		var argSQL []string
		if n.Arg != nil {
			a, err := render(n.Arg, d)
			if err != nil {
				return "", err
			}
			argSQL = append(argSQL, a)
		}
		extra, err := renderArgs(n.ExtraArgs, d)
		if err != nil {
			return "", err
		}
		argSQL = append(argSQL, extra...)
		fnSQL = name + "(" + strings.Join(argSQL, ", ") + ")"
	default:
		name, ok := d.AggregateFunction(n.AggFunc)
		if !ok {
			return "", errs.New(errs.Compilation, "aggregate %q is not supported by dialect %q", n.AggFunc, d.Name())
		}
		if n.Arg == nil {
			fnSQL = aggCallSQL(name, "*")
		} else {
			arg, rerr := render(n.Arg, d)
			if rerr != nil {
				return "", rerr
			}
			fnSQL = aggCallSQL(name, arg)
		}
	}

	var sb strings.Builder
	sb.WriteString(fnSQL)
	sb.WriteString(" OVER (")
	if len(n.PartitionBy) > 0 {
		parts, rerr := renderArgs(n.PartitionBy, d)
		if rerr != nil {
			return "", rerr
		}
		sb.WriteString("PARTITION BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	if len(n.OrderBy) > 0 {
		if len(n.PartitionBy) > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("ORDER BY ")
		for i, k := range n.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			s, rerr := render(k.Expr, d)
			if rerr != nil {
				return "", rerr
			}
			sb.WriteString(s)
			if k.Desc {
				sb.WriteString(" DESC")
			} else {
				sb.WriteString(" ASC")
			}
		}
		sb.WriteString(" ")
		sb.WriteString(frameSQL(n))
	}
	sb.WriteString(")")
	return sb.String(), nil
}

func frameSQL(n *compile.WindowCallExpr) string {
	unit := "ROWS"
	if n.FrameUnit == compile.FrameGroups {
		unit = "GROUPS"
	}
	return unit + " BETWEEN " + boundSQL(n.FrameStart) + " AND " + boundSQL(n.FrameEnd)
}

func boundSQL(b compile.FrameBound) string {
	switch b.Kind {
	case compile.BoundUnboundedPreceding:
		return "UNBOUNDED PRECEDING"
	case compile.BoundPreceding:
		return itoa(b.Offset) + " PRECEDING"
	case compile.BoundCurrentRow:
		return "CURRENT ROW"
	case compile.BoundFollowing:
		return itoa(b.Offset) + " FOLLOWING"
	default:
		return "UNBOUNDED FOLLOWING"
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	s := string(buf[pos:])
	if neg {
		return "-" + s
	}
	return s
}
