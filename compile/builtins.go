package compile

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/expr"
)

// builtinRule is one entry of the name-keyed compile-time lowering table
// (§4.3). minArgs/maxArgs bound arity (-1 = unbounded); lower performs the
// actual AST-args -> Expr rewrite, given the already-compiled argument
// expressions.
type builtinRule struct {
	minArgs, maxArgs int
	lower            func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error)
}

// passthroughScalar lowers to a same-named scalar call over numerically
// coerced arguments, returning Float64 — the shape most Math-family
// functions take: the in-process engine provides a scalar function of the
// same name.
func passthroughScalar(name string, retType arrow.DataType) func([]Expr, *expr.Call, *Config, *arrow.Schema) (Expr, error) {
	return func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		coerced := make([]Expr, len(args))
		for i, a := range args {
			coerced[i] = toNumeric(a)
		}
		return &ScalarCallExpr{baseExpr{retType}, name, coerced}, nil
	}
}

func passthroughRaw(name string, retType arrow.DataType) func([]Expr, *expr.Call, *Config, *arrow.Schema) (Expr, error) {
	return func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		return &ScalarCallExpr{baseExpr{retType}, name, args}, nil
	}
}

var f64 = arrow.PrimitiveTypes.Float64
var i64 = arrow.PrimitiveTypes.Int64
var boolT = arrow.FixedWidthTypes.Boolean
var strT = arrow.BinaryTypes.String

var registry = map[string]builtinRule{
	// --- Math family ---
	"abs":    {1, 1, passthroughScalar("abs", f64)},
	"acos":   {1, 1, passthroughScalar("acos", f64)},
	"asin":   {1, 1, passthroughScalar("asin", f64)},
	"atan":   {1, 1, passthroughScalar("atan", f64)},
	"atan2":  {2, 2, passthroughScalar("atan2", f64)},
	"ceil":   {1, 1, passthroughScalar("ceil", f64)},
	"cos":    {1, 1, passthroughScalar("cos", f64)},
	"exp":    {1, 1, passthroughScalar("exp", f64)},
	"floor":  {1, 1, passthroughScalar("floor", f64)},
	"ln":     {1, 1, passthroughScalar("ln", f64)},
	"log":    {1, 1, passthroughScalar("ln", f64)},
	"log10":  {1, 1, passthroughScalar("log10", f64)},
	"log2":   {1, 1, passthroughScalar("log2", f64)},
	"pow":    {2, 2, passthroughScalar("pow", f64)},
	"round":  {1, 1, passthroughScalar("round", f64)},
	"signum": {1, 1, passthroughScalar("signum", f64)},
	"sin":    {1, 1, passthroughScalar("sin", f64)},
	"sqrt":   {1, 1, passthroughScalar("sqrt", f64)},
	"tan":    {1, 1, passthroughScalar("tan", f64)},
	"trunc":  {1, 1, passthroughScalar("trunc", f64)},
	"isNaN": {1, 1, func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		return &ScalarCallExpr{baseExpr{boolT}, "is_nan", []Expr{toNumeric(args[0])}}, nil
	}},
	"isFinite": {1, 1, func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		return &ScalarCallExpr{baseExpr{boolT}, "is_finite", []Expr{toNumeric(args[0])}}, nil
	}},
	"isValid": {1, 1, func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		return &IsNullExpr{baseExpr{boolT}, args[0], true}, nil
	}},

	// --- String family ---
	"length": {1, 1, func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		if !isListOrString(args[0].Type()) {
			return &ConstExpr{baseExpr{i64}, nullScalar()}, nil
		}
		return &ScalarCallExpr{baseExpr{i64}, "length", args}, nil
	}},
	"indexof":  {2, 2, passthroughRaw("indexof", i64)},
	"lower":    {1, 1, passthroughRaw("lower", strT)},
	"upper":    {1, 1, passthroughRaw("upper", strT)},
	"slice":    {2, 3, passthroughRaw("slice", strT)},
	"substring": {2, 3, passthroughRaw("substring", strT)},
	"replace":  {2, 3, passthroughRaw("replace", strT)},
	"split":    {2, 2, passthroughRaw("split", arrow.ListOf(strT))},
	"trim":     {1, 1, passthroughRaw("trim", strT)},

	// --- Array family ---
	"span": {1, 1, func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		return &ScalarCallExpr{baseExpr{f64}, "array_span", args}, nil
	}},
	"peek": {1, 1, func(args []Expr, call *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
		return &ScalarCallExpr{baseExpr{elementType(args[0].Type())}, "array_peek", args}, nil
	}},
}

func compileCall(n *expr.Call, cfg *Config, schema *arrow.Schema) (Expr, error) {
	args := make([]Expr, len(n.Args))
	for i, a := range n.Args {
		c, err := compileNode(a, cfg, schema)
		if err != nil {
			return nil, err
		}
		args[i] = c
	}

	if rule, ok := registry[n.Callee]; ok {
		if len(args) < rule.minArgs || (rule.maxArgs >= 0 && len(args) > rule.maxArgs) {
			return nil, errs.NewSpan(errs.Compilation, n.Span().Start, n.Span().End,
				"%q expects between %d and %d arguments, got %d", n.Callee, rule.minArgs, rule.maxArgs, len(args))
		}
		return rule.lower(args, n, cfg, schema)
	}
	if rule, ok := datetimeRegistry[n.Callee]; ok {
		if len(args) < rule.minArgs || (rule.maxArgs >= 0 && len(args) > rule.maxArgs) {
			return nil, errs.NewSpan(errs.Compilation, n.Span().Start, n.Span().End,
				"%q expects between %d and %d arguments, got %d", n.Callee, rule.minArgs, rule.maxArgs, len(args))
		}
		return rule.lower(args, n, cfg, schema)
	}
	if rule, ok := scaleRegistry[n.Callee]; ok {
		if len(args) < rule.minArgs || (rule.maxArgs >= 0 && len(args) > rule.maxArgs) {
			return nil, errs.NewSpan(errs.Compilation, n.Span().Start, n.Span().End,
				"%q expects between %d and %d arguments, got %d", n.Callee, rule.minArgs, rule.maxArgs, len(args))
		}
		return rule.lower(args, n, cfg, schema)
	}

	return nil, errs.NewSpan(errs.Compilation, n.Span().Start, n.Span().End, "unknown function %q", n.Callee)
}
