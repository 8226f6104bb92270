package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Unparse renders n back to source text. A child is parenthesized whenever
// its outward binding power is lower than the parent's inward binding power
// on that side, per §4.1. Atoms (literal, identifier, call, member) report
// (∞,∞) and are never parenthesized.
func Unparse(n Node) string {
	var sb strings.Builder
	unparse(&sb, n, 0)
	return sb.String()
}

func unparse(sb *strings.Builder, n Node, contextBP int) {
	lbp, _ := n.bindingPower()
	needParens := lbp < contextBP

	if needParens {
		sb.WriteByte('(')
	}

	switch v := n.(type) {
	case *Identifier:
		sb.WriteString(v.Name)

	case *Literal:
		switch v.Kind {
		case LitString:
			sb.WriteByte('\'')
			sb.WriteString(escapeSingleQuoted(v.Str))
			sb.WriteByte('\'')
		case LitNumber:
			sb.WriteString(formatNumber(v.Num, v.Raw))
		case LitBool:
			sb.WriteString(strconv.FormatBool(v.Bool))
		case LitNull:
			sb.WriteString("null")
		}

	case *Unary:
		sb.WriteString(string(v.Op))
		_, rbp := v.bindingPower()
		unparse(sb, v.Operand, rbp)

	case *Binary:
		lbp2, rbp2 := binaryBindingPower(v.Op)
		unparse(sb, v.Left, lbp2)
		fmt.Fprintf(sb, " %s ", v.Op)
		unparse(sb, v.Right, rbp2)

	case *Logical:
		lbp2, rbp2 := logicalBindingPower(v.Op)
		unparse(sb, v.Left, lbp2)
		fmt.Fprintf(sb, " %s ", v.Op)
		unparse(sb, v.Right, rbp2)

	case *Conditional:
		unparse(sb, v.Test, bpConditional+1)
		sb.WriteString(" ? ")
		unparse(sb, v.Consequent, 0)
		sb.WriteString(" : ")
		unparse(sb, v.Alternate, bpConditional)

	case *Call:
		sb.WriteString(v.Callee)
		sb.WriteByte('(')
		for i, a := range v.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			unparse(sb, a, 0)
		}
		sb.WriteByte(')')

	case *Member:
		unparse(sb, v.Object, infBP)
		if v.Computed {
			sb.WriteByte('[')
			unparse(sb, v.Property, 0)
			sb.WriteByte(']')
		} else {
			sb.WriteByte('.')
			unparse(sb, v.Property, infBP)
		}

	case *Array:
		sb.WriteByte('[')
		for i, e := range v.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			unparse(sb, e, 0)
		}
		sb.WriteByte(']')

	case *Object:
		sb.WriteByte('{')
		for i, p := range v.Properties {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Key)
			sb.WriteString(": ")
			unparse(sb, p.Value, 0)
		}
		sb.WriteByte('}')
	}

	if needParens {
		sb.WriteByte(')')
	}
}

func escapeSingleQuoted(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\'':
			sb.WriteString("\\'")
		case '\\':
			sb.WriteString("\\\\")
		case '\n':
			sb.WriteString("\\n")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// formatNumber reproduces a round-trippable numeric literal. Integers
// render without a trailing ".0" so re-parsing yields the same Raw shape.
func formatNumber(f float64, raw string) string {
	if f == float64(int64(f)) && !strings.ContainsAny(raw, ".eE") {
		return strconv.FormatInt(int64(f), 10)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
