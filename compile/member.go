package compile

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/errs"
	"github.com/hugr-lab/vizql/expr"
)

func compileMember(n *expr.Member, cfg *Config, schema *arrow.Schema) (Expr, error) {
	if id, ok := n.Object.(*expr.Identifier); ok && id.Name == "datum" {
		return compileDatumMember(n, cfg, schema)
	}

	object, err := compileNode(n.Object, cfg, schema)
	if err != nil {
		return nil, err
	}

	propName, propIsLiteral := literalMemberKey(n)

	if propIsLiteral && propName == "length" && !n.Computed {
		if isListOrString(object.Type()) {
			return &ScalarCallExpr{baseExpr{arrow.PrimitiveTypes.Int64}, "length", []Expr{object}}, nil
		}
	}

	if st, ok := object.Type().(*arrow.StructType); ok && propIsLiteral {
		if idx, found := structFieldIndex(st, propName); found {
			return &ScalarCallExpr{baseExpr{st.Field(idx).Type}, "get_object_member", []Expr{object, &ConstExpr{baseExpr{arrow.BinaryTypes.String}, stringScalar(propName)}}}, nil
		}
		// §4.2 exception: accessing a missing struct field lowers to null.
		return &ConstExpr{baseExpr{arrow.Null}, nullScalar()}, nil
	}

	if n.Computed {
		if lit, ok := n.Property.(*expr.Literal); ok && lit.Kind == expr.LitNumber && isListOrString(object.Type()) {
			idx := &ConstExpr{baseExpr{arrow.PrimitiveTypes.Int64}, intScalar(int64(lit.Num))}
			return &ScalarCallExpr{baseExpr{elementType(object.Type())}, "get_element", []Expr{object, idx}}, nil
		}
		// Dynamic non-literal computed index: compiler cannot resolve the
		// key at compile time. Per §9, falls back to always-null with a
		// recorded warning rather than failing.
		cfg.warn("dynamic member access with non-literal key falls back to null", n.Span().Start, n.Span().End)
		return &ConstExpr{baseExpr{dynType}, nullScalar()}, nil
	}

	return nil, errs.NewSpan(errs.Compilation, n.Span().Start, n.Span().End,
		"cannot access property %q of non-struct, non-list/string value", propName)
}

func compileDatumMember(n *expr.Member, cfg *Config, schema *arrow.Schema) (Expr, error) {
	if !n.Computed {
		ident, ok := n.Property.(*expr.Identifier)
		if !ok {
			return nil, errs.NewSpan(errs.Compilation, n.Span().Start, n.Span().End, "expected identifier property")
		}
		return columnRef(ident.Name, schema), nil
	}

	switch lit := n.Property.(type) {
	case *expr.Literal:
		switch lit.Kind {
		case expr.LitString:
			return columnRef(lit.Str, schema), nil
		case expr.LitNumber:
			return columnRef(lit.Raw, schema), nil
		}
	}
	// Non-literal computed key on datum: dynamic fallback per §9.
	cfg.warn("dynamic datum[expr] access with non-literal key falls back to null", n.Span().Start, n.Span().End)
	return &ConstExpr{baseExpr{dynType}, nullScalar()}, nil
}

func columnRef(name string, schema *arrow.Schema) Expr {
	idxs := schema.FieldIndices(name)
	if len(idxs) == 0 {
		return &ColumnRef{baseExpr{dynType}, name}
	}
	return &ColumnRef{baseExpr{schema.Field(idxs[0]).Type}, name}
}

func literalMemberKey(n *expr.Member) (string, bool) {
	if !n.Computed {
		if id, ok := n.Property.(*expr.Identifier); ok {
			return id.Name, true
		}
		return "", false
	}
	if lit, ok := n.Property.(*expr.Literal); ok && lit.Kind == expr.LitString {
		return lit.Str, true
	}
	return "", false
}

func structFieldIndex(st *arrow.StructType, name string) (int, bool) {
	for i := 0; i < st.NumFields(); i++ {
		if st.Field(i).Name == name {
			return i, true
		}
	}
	return -1, false
}

func isListOrString(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.LIST, arrow.FIXED_SIZE_LIST, arrow.STRING, arrow.LARGE_STRING:
		return true
	}
	return false
}

func elementType(dt arrow.DataType) arrow.DataType {
	switch t := dt.(type) {
	case *arrow.ListType:
		return t.Elem()
	case *arrow.FixedSizeListType:
		return t.Elem()
	default:
		return dynType
	}
}
