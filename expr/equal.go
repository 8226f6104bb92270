package expr

// Equal reports whether a and b are structurally identical, ignoring source
// spans — the comparison mode used by the parser round-trip property.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case *Identifier:
		bv, ok := b.(*Identifier)
		return ok && av.Name == bv.Name
	case *Literal:
		bv, ok := b.(*Literal)
		if !ok || av.Kind != bv.Kind {
			return false
		}
		switch av.Kind {
		case LitString:
			return av.Str == bv.Str
		case LitNumber:
			return av.Num == bv.Num
		case LitBool:
			return av.Bool == bv.Bool
		case LitNull:
			return true
		}
		return false
	case *Unary:
		bv, ok := b.(*Unary)
		return ok && av.Op == bv.Op && Equal(av.Operand, bv.Operand)
	case *Binary:
		bv, ok := b.(*Binary)
		return ok && av.Op == bv.Op && Equal(av.Left, bv.Left) && Equal(av.Right, bv.Right)
	case *Logical:
		bv, ok := b.(*Logical)
		return ok && av.Op == bv.Op && Equal(av.Left, bv.Left) && Equal(av.Right, bv.Right)
	case *Conditional:
		bv, ok := b.(*Conditional)
		return ok && Equal(av.Test, bv.Test) && Equal(av.Consequent, bv.Consequent) && Equal(av.Alternate, bv.Alternate)
	case *Call:
		bv, ok := b.(*Call)
		if !ok || av.Callee != bv.Callee || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !Equal(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
	case *Member:
		bv, ok := b.(*Member)
		return ok && av.Computed == bv.Computed && Equal(av.Object, bv.Object) && Equal(av.Property, bv.Property)
	case *Array:
		bv, ok := b.(*Array)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !Equal(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	case *Object:
		bv, ok := b.(*Object)
		if !ok || len(av.Properties) != len(bv.Properties) {
			return false
		}
		for i := range av.Properties {
			if av.Properties[i].Key != bv.Properties[i].Key || !Equal(av.Properties[i].Value, bv.Properties[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}
