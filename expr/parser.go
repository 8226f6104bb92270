package expr

import (
	"strconv"

	"github.com/hugr-lab/vizql/errs"
)

// Parse tokenizes and parses src as a single expression, per the grammar in
// §4.1: member/call (left-assoc), unary prefix, multiplicative, additive,
// shift, relational, equality, bitwise, logical, conditional. Leading and
// trailing whitespace is tolerated; any other trailing input is a parse
// error.
func Parse(src string) (Node, error) {
	p := &parser{lex: newLexer(src), src: src}
	if err := p.advance(); err != nil {
		return nil, err
	}
	n, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, errs.NewSpan(errs.Parse, p.cur.start, p.cur.end, "trailing input after expression: %q", p.cur.text)
	}
	return n, nil
}

type parser struct {
	lex *lexer
	src string
	cur token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) expectPunct(s string) error {
	if p.cur.kind != tokPunct || p.cur.text != s {
		return errs.NewSpan(errs.Parse, p.cur.start, p.cur.end, "expected %q, got %q", s, p.cur.text)
	}
	return p.advance()
}

func (p *parser) isPunct(s string) bool {
	return p.cur.kind == tokPunct && p.cur.text == s
}

// parseExpr implements precedence climbing: minBP is the minimum binding
// power a following infix/conditional operator must have to be consumed
// at this recursion level.
func (p *parser) parseExpr(minBP int) (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		if p.cur.kind == tokPunct {
			switch p.cur.text {
			case "?":
				if bpConditional < minBP {
					return left, nil
				}
				left, err = p.parseConditional(left)
				if err != nil {
					return nil, err
				}
				continue
			case "&&", "||":
				op := LogicalOp(p.cur.text)
				lbp, rbp := logicalBindingPower(op)
				if lbp < minBP {
					return left, nil
				}
				start := left.Span().Start
				if err := p.advance(); err != nil {
					return nil, err
				}
				right, err := p.parseExpr(rbp)
				if err != nil {
					return nil, err
				}
				left = &Logical{base: base{Span{start, right.Span().End}}, Op: op, Left: left, Right: right}
				continue
			case "+", "-", "*", "/", "%", "<<", ">>", ">>>", "<", "<=", ">", ">=",
				"==", "!=", "===", "!==", "&", "^", "|":
				op := BinaryOp(p.cur.text)
				lbp, rbp := binaryBindingPower(op)
				if lbp < minBP {
					return left, nil
				}
				start := left.Span().Start
				if err := p.advance(); err != nil {
					return nil, err
				}
				right, err := p.parseExpr(rbp)
				if err != nil {
					return nil, err
				}
				left = &Binary{base: base{Span{start, right.Span().End}}, Op: op, Left: left, Right: right}
				continue
			}
		}
		return left, nil
	}
}

func (p *parser) parseConditional(test Node) (Node, error) {
	if err := p.advance(); err != nil { // consume '?'
		return nil, err
	}
	cons, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	alt, err := p.parseExpr(bpConditional)
	if err != nil {
		return nil, err
	}
	return &Conditional{
		base:       base{Span{test.Span().Start, alt.Span().End}},
		Test:       test,
		Consequent: cons,
		Alternate:  alt,
	}, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.cur.kind == tokPunct && (p.cur.text == "+" || p.cur.text == "-" || p.cur.text == "!") {
		op := UnaryOp(p.cur.text)
		start := p.cur.start
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseExpr(bpUnary)
		if err != nil {
			return nil, err
		}
		return &Unary{base: base{Span{start, operand.Span().End}}, Op: op, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles member/call chains binding tighter than unary.
func (p *parser) parsePostfix() (Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isPunct("."):
			start := n.Span().Start
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.kind != tokIdent {
				return nil, errs.NewSpan(errs.Parse, p.cur.start, p.cur.end, "expected property name after '.'")
			}
			prop := &Identifier{base: base{Span{p.cur.start, p.cur.end}}, Name: p.cur.text}
			end := p.cur.end
			if err := p.advance(); err != nil {
				return nil, err
			}
			n = &Member{base: base{Span{start, end}}, Object: n, Property: prop, Computed: false}

		case p.isPunct("["):
			start := n.Span().Start
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			n = &Member{base: base{Span{start, idx.Span().End}}, Object: n, Property: idx, Computed: true}

		default:
			return n, nil
		}
	}
}

func (p *parser) parsePrimary() (Node, error) {
	start := p.cur.start

	switch p.cur.kind {
	case tokNumber:
		raw := p.cur.text
		end := p.cur.end
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errs.NewSpan(errs.Parse, start, end, "invalid number literal %q", raw)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{base: base{Span{start, end}}, Kind: LitNumber, Raw: raw, Num: f}, nil

	case tokString:
		end := p.cur.end
		str := p.cur.str
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{base: base{Span{start, end}}, Kind: LitString, Raw: str, Str: str}, nil

	case tokTrue:
		end := p.cur.end
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{base: base{Span{start, end}}, Kind: LitBool, Raw: "true", Bool: true}, nil

	case tokFalse:
		end := p.cur.end
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{base: base{Span{start, end}}, Kind: LitBool, Raw: "false", Bool: false}, nil

	case tokNull:
		end := p.cur.end
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Literal{base: base{Span{start, end}}, Kind: LitNull, Raw: "null"}, nil

	case tokIdent:
		name := p.cur.text
		end := p.cur.end
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.isPunct("(") {
			return p.parseCall(name, start)
		}
		return &Identifier{base: base{Span{start, end}}, Name: name}, nil

	case tokPunct:
		switch p.cur.text {
		case "(":
			if err := p.advance(); err != nil {
				return nil, err
			}
			inner, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "[":
			return p.parseArray(start)
		case "{":
			return p.parseObject(start)
		}
	}

	return nil, errs.NewSpan(errs.Parse, p.cur.start, p.cur.end, "unexpected token %q", p.cur.text)
}

func (p *parser) parseCall(callee string, start int) (Node, error) {
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	var args []Node
	if !p.isPunct(")") {
		for {
			arg, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.isPunct(",") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	end := p.cur.end
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &Call{base: base{Span{start, end}}, Callee: callee, Args: args}, nil
}

func (p *parser) parseArray(start int) (Node, error) {
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	var elems []Node
	if !p.isPunct("]") {
		for {
			e, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.isPunct(",") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	end := p.cur.end
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return &Array{base: base{Span{start, end}}, Elements: elems}, nil
}

func (p *parser) parseObject(start int) (Node, error) {
	if err := p.advance(); err != nil { // consume '{'
		return nil, err
	}
	var props []ObjectProperty
	if !p.isPunct("}") {
		for {
			var key string
			switch p.cur.kind {
			case tokIdent:
				key = p.cur.text
			case tokString:
				key = p.cur.str
			case tokNumber:
				key = p.cur.text
			default:
				return nil, errs.NewSpan(errs.Parse, p.cur.start, p.cur.end, "expected property key, got %q", p.cur.text)
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			if err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			val, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			props = append(props, ObjectProperty{Key: key, Value: val})
			if p.isPunct(",") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	end := p.cur.end
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return &Object{base: base{Span{start, end}}, Properties: props}, nil
}
