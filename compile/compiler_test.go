package compile

import (
	"testing"

	"github.com/hugr-lab/vizql/expr"
	"github.com/hugr-lab/vizql/value"
)

func compileSrc(t *testing.T, src string, cfg *Config) Expr {
	t.Helper()
	node, err := expr.Parse(src)
	if err != nil {
		t.Fatalf("parsing %q: %v", src, err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	e, err := Compile(node, cfg, nil)
	if err != nil {
		t.Fatalf("compiling %q: %v", src, err)
	}
	return e
}

func TestCompileConstantArithmeticLowersToArith(t *testing.T) {
	e := compileSrc(t, "20 + 300", nil)
	c, ok := e.(*ArithExpr)
	if !ok {
		t.Fatalf("expected ArithExpr, got %T", e)
	}
	if c.Op != ArithAdd {
		t.Fatalf("expected +, got %s", c.Op)
	}
}

func TestCompileSignalReference(t *testing.T) {
	cfg := &Config{SignalScope: map[string]value.Scalar{"foo": value.Float64(23.5)}}
	e := compileSrc(t, "foo * 2", cfg)
	arith, ok := e.(*ArithExpr)
	if !ok {
		t.Fatalf("expected ArithExpr, got %T", e)
	}
	left, ok := arith.Left.(*ConstExpr)
	if !ok {
		t.Fatalf("expected signal to fold to ConstExpr, got %T", arith.Left)
	}
	f, _, err := left.Value.ToF64()
	if err != nil || f != 23.5 {
		t.Fatalf("expected 23.5, got %v (%v)", f, err)
	}
}

func TestCompileDatetimeConstructorLowersToNamedCall(t *testing.T) {
	e := compileSrc(t, "datetime('2020-05-16T09:30:00Z')", nil)
	call, ok := e.(*ScalarCallExpr)
	if !ok {
		t.Fatalf("expected ScalarCallExpr, got %T", e)
	}
	if call.Name != "str_to_utc_timestamp" {
		t.Fatalf("expected str_to_utc_timestamp, got %s", call.Name)
	}
}

func TestCompileYearOfUtcLowersToDatePart(t *testing.T) {
	e := compileSrc(t, "year(datetime(utc(87, 2, 10, 7, 35, 10, 87)))", nil)
	outer, ok := e.(*ScalarCallExpr)
	if !ok || outer.Name != "vega_date_part" {
		t.Fatalf("expected vega_date_part call, got %#v", e)
	}
	inner, ok := outer.Args[0].(*ScalarCallExpr)
	if !ok || inner.Name != "epoch_ms_to_utc_timestamp" {
		t.Fatalf("expected datetime(...) to lower to epoch_ms_to_utc_timestamp over utc(...), got %#v", outer.Args[0])
	}
	innermost, ok := inner.Args[0].(*ScalarCallExpr)
	if !ok || innermost.Name != "make_timestamptz" {
		t.Fatalf("expected utc(...) to lower to make_timestamptz, got %#v", inner.Args[0])
	}
}

func TestCompileArrayLengthPlusZero(t *testing.T) {
	e := compileSrc(t, "[1, 2, 3].length + 0", nil)
	arith, ok := e.(*ArithExpr)
	if !ok {
		t.Fatalf("expected ArithExpr, got %T", e)
	}
	cast, ok := arith.Left.(*CastExpr)
	if !ok {
		t.Fatalf("expected the + operand to be coerced to a number, got %#v", arith.Left)
	}
	lengthCall, ok := cast.Operand.(*ScalarCallExpr)
	if !ok || lengthCall.Name != "length" {
		t.Fatalf("expected .length to lower to a length() call, got %#v", cast.Operand)
	}
	ctor, ok := lengthCall.Args[0].(*ScalarCallExpr)
	if !ok || ctor.Name != "make_list" {
		t.Fatalf("expected array literal to lower to make_list, got %#v", lengthCall.Args[0])
	}
}

func TestCompileObjectMemberAccess(t *testing.T) {
	e := compileSrc(t, "({a: 10, b: 20})['b']", nil)
	call, ok := e.(*ScalarCallExpr)
	if !ok || call.Name != "get_object_member" {
		t.Fatalf("expected get_object_member call, got %#v", e)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	cfg1 := &Config{SignalScope: map[string]value.Scalar{"foo": value.Float64(23.5)}}
	cfg2 := &Config{SignalScope: map[string]value.Scalar{"foo": value.Float64(23.5)}}
	e1 := compileSrc(t, "foo * 2 + datetime('2020-01-01')", cfg1)
	e2 := compileSrc(t, "foo * 2 + datetime('2020-01-01')", cfg2)
	if exprString(e1) != exprString(e2) {
		t.Fatalf("expected identical compile output for identical input:\n%s\nvs\n%s", exprString(e1), exprString(e2))
	}
}

// exprString renders a compiled Expr tree into a comparable debug form,
// deep enough to catch structural drift without a full SQL renderer.
func exprString(e Expr) string {
	switch n := e.(type) {
	case *ConstExpr:
		return "const(" + n.Value.ToString() + ")"
	case *ColumnRef:
		return "col(" + n.Name + ")"
	case *ArithExpr:
		return "arith(" + string(n.Op) + "," + exprString(n.Left) + "," + exprString(n.Right) + ")"
	case *ScalarCallExpr:
		s := "call(" + n.Name
		for _, a := range n.Args {
			s += "," + exprString(a)
		}
		return s + ")"
	default:
		return "?"
	}
}

func TestScaleDomainRangeInlineAtCompileTime(t *testing.T) {
	cfg := &Config{ScaleScope: map[string]ScaleSnapshot{
		"x": {Type: "linear", Domain: []value.Scalar{value.Float64(0), value.Float64(100)}, Range: []value.Scalar{value.Float64(0), value.Float64(500)}},
	}}
	e := compileSrc(t, "domain('x')", cfg)
	c, ok := e.(*ConstExpr)
	if !ok || c.Value.Kind != value.KindList || len(c.Value.List) != 2 {
		t.Fatalf("expected a 2-element list const, got %#v", e)
	}
}

func TestBandspaceConstantFolds(t *testing.T) {
	e := compileSrc(t, "bandspace(5, 0.1, 0.05)", nil)
	c, ok := e.(*ConstExpr)
	if !ok {
		t.Fatalf("expected ConstExpr, got %T", e)
	}
	f, _, _ := c.Value.ToF64()
	want := 5 + 0.1*4 + 2*0.05
	if f != want {
		t.Fatalf("expected %v, got %v", want, f)
	}
}

func TestPanLinearConstantFolds(t *testing.T) {
	e := compileSrc(t, "panLinear([0, 100], 0.1)", nil)
	c, ok := e.(*ConstExpr)
	if !ok || c.Value.Kind != value.KindList || len(c.Value.List) != 2 {
		t.Fatalf("expected a 2-element list const, got %#v", e)
	}
	lo, _, _ := c.Value.List[0].ToF64()
	hi, _, _ := c.Value.List[1].ToF64()
	if lo != 10 || hi != 110 {
		t.Fatalf("expected [10, 110], got [%v, %v]", lo, hi)
	}
}
