package compile

import (
	"sort"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/expr"
	"github.com/hugr-lab/vizql/value"
)

// dynType is the Arrow type attached to compiled expressions whose
// concrete runtime type cannot be resolved at compile time (dynamic member
// access, struct member extraction before execution) — the executing engine
// resolves the actual value; the IR only needs a placeholder sufficient for
// dialect rendering and further arithmetic coercion.
var dynType = arrow.PrimitiveTypes.Float64

// Compile lowers an expression AST to the relational-expression algebra
// against schema, using cfg's bound signals/datasets/scales, per §4.2.
func Compile(node expr.Node, cfg *Config, schema *arrow.Schema) (Expr, error) {
	if schema == nil {
		schema = arrow.NewSchema(nil, nil)
	}
	e, err := compileNode(node, cfg, schema)
	if err != nil {
		return nil, errs.Wrapf(err, "compiling expression %q", expr.Unparse(node))
	}
	return e, nil
}

func compileNode(node expr.Node, cfg *Config, schema *arrow.Schema) (Expr, error) {
	switch n := node.(type) {
	case *expr.Literal:
		return compileLiteral(n)
	case *expr.Identifier:
		return compileIdentifier(n, cfg)
	case *expr.Unary:
		return compileUnary(n, cfg, schema)
	case *expr.Binary:
		return compileBinary(n, cfg, schema)
	case *expr.Logical:
		return compileLogical(n, cfg, schema)
	case *expr.Conditional:
		return compileConditional(n, cfg, schema)
	case *expr.Member:
		return compileMember(n, cfg, schema)
	case *expr.Call:
		return compileCall(n, cfg, schema)
	case *expr.Array:
		return compileArray(n, cfg, schema)
	case *expr.Object:
		return compileObject(n, cfg, schema)
	default:
		return nil, errs.New(errs.Internal, "unhandled AST node %T", node)
	}
}

func compileLiteral(n *expr.Literal) (Expr, error) {
	switch n.Kind {
	case expr.LitString:
		return &ConstExpr{baseExpr{arrow.BinaryTypes.String}, value.String(n.Str)}, nil
	case expr.LitBool:
		return &ConstExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, value.Bool(n.Bool)}, nil
	case expr.LitNull:
		return &ConstExpr{baseExpr{arrow.Null}, value.NullUntyped()}, nil
	case expr.LitNumber:
		if looksLikeInteger(n.Raw) {
			return &ConstExpr{baseExpr{arrow.PrimitiveTypes.Int64}, value.Int64(int64(n.Num))}, nil
		}
		return &ConstExpr{baseExpr{arrow.PrimitiveTypes.Float64}, value.Float64(n.Num)}, nil
	default:
		return nil, errs.NewSpan(errs.Internal, n.Span().Start, n.Span().End, "unhandled literal kind")
	}
}

// looksLikeInteger reports whether raw has no fractional/exponent part.
func looksLikeInteger(raw string) bool {
	for _, r := range raw {
		if r == '.' || r == 'e' || r == 'E' {
			return false
		}
	}
	return true
}

func compileIdentifier(n *expr.Identifier, cfg *Config) (Expr, error) {
	if n.Name == "datum" {
		return nil, errs.NewSpan(errs.Compilation, n.Span().Start, n.Span().End,
			"'datum' is only valid via member access")
	}
	if s, ok := cfg.SignalScope[n.Name]; ok {
		return &ConstExpr{baseExpr{arrowTypeOfScalar(s)}, s}, nil
	}
	return nil, errs.NewSpan(errs.Compilation, n.Span().Start, n.Span().End, "unbound identifier %q", n.Name)
}

func arrowTypeOfScalar(s value.Scalar) arrow.DataType {
	switch s.Kind {
	case value.KindBool:
		return arrow.FixedWidthTypes.Boolean
	case value.KindString, value.KindLargeString:
		return arrow.BinaryTypes.String
	case value.KindInt64:
		return arrow.PrimitiveTypes.Int64
	case value.KindFloat64, value.KindFloat32:
		return arrow.PrimitiveTypes.Float64
	case value.KindTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ms
	default:
		return dynType
	}
}

func isStringType(dt arrow.DataType) bool {
	return dt.ID() == arrow.STRING || dt.ID() == arrow.LARGE_STRING
}

func toNumeric(e Expr) Expr {
	if e.Type().ID() == arrow.FLOAT64 {
		return e
	}
	return &CastExpr{baseExpr{arrow.PrimitiveTypes.Float64}, e}
}

func toBool(e Expr) Expr {
	if e.Type().ID() == arrow.BOOL {
		return e
	}
	return &CastExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, e}
}

func compileUnary(n *expr.Unary, cfg *Config, schema *arrow.Schema) (Expr, error) {
	operand, err := compileNode(n.Operand, cfg, schema)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case expr.UnaryPlus:
		return toNumeric(operand), nil
	case expr.UnaryMinus:
		neg := &ScalarCallExpr{baseExpr{arrow.PrimitiveTypes.Float64}, "negate", []Expr{toNumeric(operand)}}
		return neg, nil
	case expr.UnaryNot:
		return &LogicalExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, LogicalNot, toBool(operand), nil}, nil
	default:
		return nil, errs.New(errs.Internal, "unhandled unary operator %q", n.Op)
	}
}

func compileBinary(n *expr.Binary, cfg *Config, schema *arrow.Schema) (Expr, error) {
	left, err := compileNode(n.Left, cfg, schema)
	if err != nil {
		return nil, err
	}
	right, err := compileNode(n.Right, cfg, schema)
	if err != nil {
		return nil, err
	}

	// Null-literal equality special case, §4.2.
	if n.Op == expr.OpEq || n.Op == expr.OpNe {
		if isNullConst(n.Left) || isNullConst(n.Right) {
			side := left
			if isNullConst(n.Left) {
				side = right
			}
			return &IsNullExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, side, n.Op == expr.OpNe}, nil
		}
	}

	switch n.Op {
	case expr.OpAdd:
		if isStringType(left.Type()) || isStringType(right.Type()) {
			return &ArithExpr{baseExpr{arrow.BinaryTypes.String}, ArithConcat, left, right}, nil
		}
		return &ArithExpr{baseExpr{arrow.PrimitiveTypes.Float64}, ArithAdd, toNumeric(left), toNumeric(right)}, nil
	case expr.OpSub, expr.OpMul, expr.OpDiv, expr.OpMod:
		return &ArithExpr{baseExpr{arrow.PrimitiveTypes.Float64}, ArithOp(n.Op), toNumeric(left), toNumeric(right)}, nil
	case expr.OpShl, expr.OpShr, expr.OpUShr, expr.OpBitAnd, expr.OpBitXor, expr.OpBitOr:
		return &ArithExpr{baseExpr{arrow.PrimitiveTypes.Int64}, ArithOp(n.Op), coalesceZero(left), coalesceZero(right)}, nil
	case expr.OpLt, expr.OpLe, expr.OpGt, expr.OpGe:
		return &CompareExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, CmpOp(n.Op), left, right}, nil
	case expr.OpEq:
		return &CompareExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, CmpEq, left, right}, nil
	case expr.OpNe:
		return &CompareExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, CmpNe, left, right}, nil
	case expr.OpStrictEq, expr.OpStrictNe:
		if broadTypeCategory(left.Type()) != broadTypeCategory(right.Type()) {
			return &ConstExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, value.Bool(false)}, nil
		}
		op := CmpEq
		if n.Op == expr.OpStrictNe {
			op = CmpNe
		}
		return &CompareExpr{baseExpr{arrow.FixedWidthTypes.Boolean}, op, left, right}, nil
	default:
		return nil, errs.New(errs.Internal, "unhandled binary operator %q", n.Op)
	}
}

func isNullConst(n expr.Node) bool {
	lit, ok := n.(*expr.Literal)
	return ok && lit.Kind == expr.LitNull
}

func coalesceZero(e Expr) Expr {
	return &ScalarCallExpr{baseExpr{arrow.PrimitiveTypes.Int64}, "coalesce_zero", []Expr{e}}
}

// broadTypeCategory groups Arrow types into the coarse categories `===`
// compares, per §4.2.
func broadTypeCategory(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.BOOL:
		return "bool"
	case arrow.STRING, arrow.LARGE_STRING:
		return "string"
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return "datetime"
	case arrow.LIST, arrow.FIXED_SIZE_LIST:
		return "list"
	case arrow.STRUCT:
		return "struct"
	case arrow.NULL:
		return "null"
	default:
		return "number"
	}
}

func compileLogical(n *expr.Logical, cfg *Config, schema *arrow.Schema) (Expr, error) {
	left, err := compileNode(n.Left, cfg, schema)
	if err != nil {
		return nil, err
	}
	right, err := compileNode(n.Right, cfg, schema)
	if err != nil {
		return nil, err
	}
	op := LogicalOr
	if n.Op == expr.LogicalAnd {
		op = LogicalAnd
	}
	// Short-circuit truthiness preserved via a `case`, per §4.2: for `||`,
	// `case when cast(left as bool) then left else right end`; symmetric
	// for `&&` (then right else left).
	test := toBool(left)
	var whenThen CaseWhen
	var elseVal Expr
	if op == LogicalOr {
		whenThen = CaseWhen{When: test, Then: left}
		elseVal = right
	} else {
		whenThen = CaseWhen{When: test, Then: right}
		elseVal = left
	}
	return &CaseExpr{baseExpr{resultType(left, right)}, []CaseWhen{whenThen}, elseVal}, nil
}

func resultType(a, b Expr) arrow.DataType {
	if a.Type().ID() == b.Type().ID() {
		return a.Type()
	}
	return dynType
}

func compileConditional(n *expr.Conditional, cfg *Config, schema *arrow.Schema) (Expr, error) {
	test, err := compileNode(n.Test, cfg, schema)
	if err != nil {
		return nil, err
	}
	cons, err := compileNode(n.Consequent, cfg, schema)
	if err != nil {
		return nil, err
	}
	alt, err := compileNode(n.Alternate, cfg, schema)
	if err != nil {
		return nil, err
	}
	return &CaseExpr{
		baseExpr{resultType(cons, alt)},
		[]CaseWhen{{When: toBool(test), Then: cons}},
		alt,
	}, nil
}

func compileArray(n *expr.Array, cfg *Config, schema *arrow.Schema) (Expr, error) {
	args := make([]Expr, len(n.Elements))
	for i, el := range n.Elements {
		c, err := compileNode(el, cfg, schema)
		if err != nil {
			return nil, err
		}
		args[i] = c
	}
	elemType := arrow.DataType(arrow.PrimitiveTypes.Float64)
	if len(args) > 0 {
		elemType = args[0].Type()
	}
	return &ScalarCallExpr{baseExpr{arrow.ListOf(elemType)}, "make_list", args}, nil
}

func compileObject(n *expr.Object, cfg *Config, schema *arrow.Schema) (Expr, error) {
	keys := make([]string, len(n.Properties))
	vals := make(map[string]Expr, len(n.Properties))
	for i, p := range n.Properties {
		v, err := compileNode(p.Value, cfg, schema)
		if err != nil {
			return nil, err
		}
		keys[i] = p.Key
		vals[p.Key] = v
	}
	sort.Strings(keys) // §4.2: keys sorted lexicographically for stability
	fields := make([]arrow.Field, 0, len(keys))
	args := make([]Expr, 0, len(keys))
	if len(keys) == 0 {
		// §4.2: empty objects get a sentinel field because downstream
		// engines disallow zero-field structs.
		fields = append(fields, arrow.Field{Name: "__dummy", Type: arrow.Null, Nullable: true})
		args = append(args, &ConstExpr{baseExpr{arrow.Null}, value.NullUntyped()})
	} else {
		for _, k := range keys {
			fields = append(fields, arrow.Field{Name: k, Type: vals[k].Type(), Nullable: true})
			args = append(args, vals[k])
		}
	}
	structType := arrow.StructOf(fields...)
	return &ScalarCallExpr{baseExpr{structType}, "struct_pack", args}, nil
}
