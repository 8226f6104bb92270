package expr

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"20 + 300",
		"foo * 2",
		"a && b || c",
		"a ? b : c ? d : e",
		"datum.name",
		"datum['name']",
		"[1, 2, 3].length + 0",
		"({a: 10, b: 20})['b']",
		"-x + !y",
		"a << b >> c",
		"a === b !== c",
		"f(a, b, c)",
		"1.5e3",
	}
	for _, src := range cases {
		n1, err := Parse(src)
		if err != nil {
			t.Fatalf("parse(%q): %v", src, err)
		}
		out := Unparse(n1)
		n2, err := Parse(out)
		if err != nil {
			t.Fatalf("reparse(%q) from %q: %v", out, src, err)
		}
		ClearSpans(n1)
		ClearSpans(n2)
		if !Equal(n1, n2) {
			t.Fatalf("round trip mismatch for %q: unparsed to %q", src, out)
		}
	}
}

func TestPrecedence(t *testing.T) {
	n, err := Parse("2 + 3 * 4")
	if err != nil {
		t.Fatal(err)
	}
	bin, ok := n.(*Binary)
	if !ok || bin.Op != OpAdd {
		t.Fatalf("expected top-level +, got %#v", n)
	}
	rhs, ok := bin.Right.(*Binary)
	if !ok || rhs.Op != OpMul {
		t.Fatalf("expected right side to be *, got %#v", bin.Right)
	}
}

func TestMemberAndCallBindTighterThanUnary(t *testing.T) {
	n, err := Parse("-a.b")
	if err != nil {
		t.Fatal(err)
	}
	u, ok := n.(*Unary)
	if !ok || u.Op != UnaryMinus {
		t.Fatalf("expected top-level unary minus, got %#v", n)
	}
	if _, ok := u.Operand.(*Member); !ok {
		t.Fatalf("expected member access as unary operand, got %#v", u.Operand)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"1 +",
		"'unterminated",
		"1 2",
		"@",
	}
	for _, src := range cases {
		if _, err := Parse(src); err == nil {
			t.Fatalf("expected parse error for %q", src)
		}
	}
}

func TestConditionalRightAssociative(t *testing.T) {
	n, err := Parse("a ? b : c ? d : e")
	if err != nil {
		t.Fatal(err)
	}
	cond, ok := n.(*Conditional)
	if !ok {
		t.Fatalf("expected conditional, got %#v", n)
	}
	if _, ok := cond.Alternate.(*Conditional); !ok {
		t.Fatalf("expected nested conditional in alternate (right-assoc), got %#v", cond.Alternate)
	}
}
