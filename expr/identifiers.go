package expr

// CollectIdentifiers returns the name of every Identifier node in the tree,
// in traversal order, duplicates included. A bare identifier in this
// grammar always names a bound signal or the reserved `datum`/`event`
// words — call expressions carry their callee as a plain string, never as
// an Identifier node, so every name this returns is a genuine reference.
func CollectIdentifiers(n Node) []string {
	var names []string
	collectIdentifiers(n, &names)
	return names
}

func collectIdentifiers(n Node, names *[]string) {
	if n == nil {
		return
	}
	switch v := n.(type) {
	case *Identifier:
		*names = append(*names, v.Name)
	case *Unary:
		collectIdentifiers(v.Operand, names)
	case *Binary:
		collectIdentifiers(v.Left, names)
		collectIdentifiers(v.Right, names)
	case *Logical:
		collectIdentifiers(v.Left, names)
		collectIdentifiers(v.Right, names)
	case *Conditional:
		collectIdentifiers(v.Test, names)
		collectIdentifiers(v.Consequent, names)
		collectIdentifiers(v.Alternate, names)
	case *Call:
		for _, a := range v.Args {
			collectIdentifiers(a, names)
		}
	case *Member:
		collectIdentifiers(v.Object, names)
		if v.Computed {
			collectIdentifiers(v.Property, names)
		}
	case *Array:
		for _, e := range v.Elements {
			collectIdentifiers(e, names)
		}
	case *Object:
		for _, p := range v.Properties {
			collectIdentifiers(p.Value, names)
		}
	}
}
