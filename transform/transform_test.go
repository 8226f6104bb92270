package transform

import (
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/dataframe"
	"github.com/hugr-lab/vizql/dialect/duckdb"
	"github.com/hugr-lab/vizql/value"
)

func testSchema(fields ...arrow.Field) *arrow.Schema {
	fields = append(fields, arrow.Field{Name: value.OrderColumn, Type: arrow.PrimitiveTypes.Int64, Nullable: true})
	return arrow.NewSchema(fields, nil)
}

func newTestDf(schema *arrow.Schema) *dataframe.Dataframe {
	return dataframe.New(duckdb.Dialect{}, schema, "t")
}

func TestCalculateBinParamsNiceExtendsToRoundBounds(t *testing.T) {
	params, err := CalculateBinParams(BinSpec{
		Extent:  compile.NewConst(value.Scalar{Kind: value.KindList, List: []value.Scalar{value.Float64(0.8), value.Float64(9.2)}}, arrow.ListOf(arrow.PrimitiveTypes.Float64)),
		MaxBins: 10,
		Nice:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Start != 0 {
		t.Errorf("expected nice start 0, got %v", params.Start)
	}
	if params.Stop != 10 {
		t.Errorf("expected nice stop 10, got %v", params.Stop)
	}
	if params.Step != 1 {
		t.Errorf("expected step 1, got %v", params.Step)
	}
}

func TestCalculateBinParamsRejectsInvertedExtent(t *testing.T) {
	_, err := CalculateBinParams(BinSpec{
		Extent: compile.NewConst(value.Scalar{Kind: value.KindList, List: []value.Scalar{value.Float64(10), value.Float64(1)}}, arrow.ListOf(arrow.PrimitiveTypes.Float64)),
	})
	if err == nil {
		t.Fatal("expected an error for extent[1] < extent[0]")
	}
}

func TestCalculateBinParamsAnchorShiftsBounds(t *testing.T) {
	base, err := CalculateBinParams(BinSpec{
		Extent:  compile.NewConst(value.Scalar{Kind: value.KindList, List: []value.Scalar{value.Float64(0), value.Float64(10)}}, arrow.ListOf(arrow.PrimitiveTypes.Float64)),
		MaxBins: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	anchored, err := CalculateBinParams(BinSpec{
		Extent:    compile.NewConst(value.Scalar{Kind: value.KindList, List: []value.Scalar{value.Float64(0), value.Float64(10)}}, arrow.ListOf(arrow.PrimitiveTypes.Float64)),
		MaxBins:   10,
		HasAnchor: true,
		Anchor:    0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if anchored.Start-base.Start != 0.5 && anchored.Start != 0.5 {
		t.Errorf("expected anchor to shift start to align at 0.5 mod step, got base=%v anchored=%v", base.Start, anchored.Start)
	}
}

func TestFinestUnitStep(t *testing.T) {
	cases := []struct {
		units      int64
		wantUnit   string
		wantAmount int64
	}{
		{UnitYear, "year", 1},
		{UnitYear | UnitMonth, "month", 1},
		{UnitYear | UnitQuarter, "month", 3},
		{UnitDate, "day", 1},
		{UnitDay | UnitHours, "hour", 1},
		{UnitMinutes | UnitHours, "minute", 1},
		{UnitSeconds, "second", 1},
		{UnitMilliseconds | UnitSeconds, "millisecond", 1},
	}
	for _, c := range cases {
		unit, amount := finestUnitStep(c.units)
		if unit != c.wantUnit || amount != c.wantAmount {
			t.Errorf("finestUnitStep(%v) = (%q, %d), want (%q, %d)", c.units, unit, amount, c.wantUnit, c.wantAmount)
		}
	}
}

func TestDedupAggsCollapsesDuplicateFieldOpPairs(t *testing.T) {
	schema := testSchema(arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	specs := []AggSpec{
		{Field: "x", Op: compile.AggSum, Alias: "total"},
		{Field: "x", Op: compile.AggSum, Alias: "total_again"},
		{Field: "x", Op: compile.AggMean, Alias: "avg_x"},
	}
	computed, rename := dedupAggs(schema, specs)
	if len(computed) != 2 {
		t.Fatalf("expected 2 underlying aggregates for 2 distinct (field,op) pairs, got %d", len(computed))
	}
	if rename["total"] != rename["total_again"] {
		t.Errorf("expected total and total_again to alias the same underlying column, got %q vs %q", rename["total"], rename["total_again"])
	}
	if rename["avg_x"] == rename["total"] {
		t.Errorf("expected avg_x to have its own underlying column")
	}
}

func TestAggregateRendersGroupByAndOrderColumn(t *testing.T) {
	schema := testSchema(
		arrow.Field{Name: "category", Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: "amount", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	)
	df := newTestDf(schema)
	out := Aggregate(df, []string{"category"}, []AggSpec{{Field: "amount", Op: compile.AggSum, Alias: "total"}})
	sql, err := out.Render()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !strings.Contains(sql, "GROUP BY") {
		t.Errorf("expected a GROUP BY clause, got: %s", sql)
	}
	if !strings.Contains(sql, `"_vf_order"`) {
		t.Errorf("expected the order column to survive, got: %s", sql)
	}
}

func TestFilterCoercesNullToFalse(t *testing.T) {
	schema := testSchema(arrow.Field{Name: "ok", Type: arrow.FixedWidthTypes.Boolean, Nullable: true})
	df := newTestDf(schema)
	pred := colRef(schema, "ok")
	out := Filter(df, pred)
	sql, err := out.Render()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !strings.Contains(sql, "COALESCE") {
		t.Errorf("expected null-to-false coercion via COALESCE, got: %s", sql)
	}
}

func TestImputeWithGroupProducesDistinctKeyAndGroupJoins(t *testing.T) {
	schema := testSchema(
		arrow.Field{Name: "k", Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: "g", Type: arrow.BinaryTypes.String, Nullable: true},
		arrow.Field{Name: "v", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	)
	df := newTestDf(schema)
	out := Impute(df, "v", "k", []string{"g"}, constFloat(0))
	sql, err := out.Render()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !strings.Contains(sql, "CROSS JOIN") {
		t.Errorf("expected a cross join of distinct keys and groups, got: %s", sql)
	}
	if !strings.Contains(sql, "LEFT JOIN") {
		t.Errorf("expected a left join back onto the original data, got: %s", sql)
	}
	if !strings.Contains(sql, `"k_tmp"`) || !strings.Contains(sql, `"g_tmp"`) {
		t.Errorf("expected mangled join-key columns on the original side, got: %s", sql)
	}
}

func TestImputeNoGroupIsNullCoalesce(t *testing.T) {
	schema := testSchema(arrow.Field{Name: "v", Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	df := newTestDf(schema)
	out := Impute(df, "v", "k", nil, constFloat(7))
	sql, err := out.Render()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if strings.Contains(sql, "CROSS JOIN") {
		t.Errorf("no-groupby impute should not cross-join, got: %s", sql)
	}
	if !strings.Contains(sql, "CASE") {
		t.Errorf("expected a CASE-based null fill, got: %s", sql)
	}
}

func TestPivotFieldAsStringNormalizesBoolean(t *testing.T) {
	schema := testSchema(arrow.Field{Name: "flag", Type: arrow.FixedWidthTypes.Boolean, Nullable: true})
	df := newTestDf(schema)
	out := PivotFieldAsString(df, "flag")
	sql, err := out.Render()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !strings.Contains(sql, "'true'") || !strings.Contains(sql, "'false'") {
		t.Errorf("expected boolean pivot keys to render as 'true'/'false', got: %s", sql)
	}
}

func TestProjectSelectsNamedSubset(t *testing.T) {
	schema := testSchema(
		arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		arrow.Field{Name: "b", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	)
	df := newTestDf(schema)
	out := Project(df, []string{"b"})
	if len(out.Schema.Fields()) != 1 || out.Schema.Field(0).Name != "b" {
		t.Fatalf("expected single-field schema [b], got %v", out.Schema)
	}
}

func TestCollectSortsByNamedFieldsWithOrderTiebreak(t *testing.T) {
	schema := testSchema(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	df := newTestDf(schema)
	out := Collect(df, []string{"a"}, []bool{true})
	sql, err := out.Render()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !strings.Contains(sql, "ORDER BY") {
		t.Errorf("expected an ORDER BY clause, got: %s", sql)
	}
}

func TestEvalEncodingFallsBackToNullForUnboundScale(t *testing.T) {
	schema := testSchema(arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	df := newTestDf(schema)
	cfg := &compile.Config{}
	out, err := EvalEncoding(df, cfg, "x", []EncodingEntry{{Scale: "missing", Field: "x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sql, err := out.Render()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !strings.Contains(sql, "NULL") {
		t.Errorf("expected literal NULL for an unbound scale, got: %s", sql)
	}
}

func TestEvalEncodingConditionalNestsCase(t *testing.T) {
	schema := testSchema(arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	df := newTestDf(schema)
	cfg := &compile.Config{}
	test := compile.NewCompare(compile.CmpGt, colRef(schema, "x"), constFloat(0))
	out, err := EvalEncoding(df, cfg, "color", []EncodingEntry{
		{Test: test, Value: value.String("positive"), HasValue: true},
		{Value: value.String("non-positive"), HasValue: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sql, err := out.Render()
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !strings.Contains(sql, "CASE") {
		t.Errorf("expected a CASE expression for a conditional encoding, got: %s", sql)
	}
}

func TestEvalEncodingRejectsUnconditionalBeforeEnd(t *testing.T) {
	schema := testSchema(arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	df := newTestDf(schema)
	cfg := &compile.Config{}
	_, err := EvalEncoding(df, cfg, "color", []EncodingEntry{
		{Value: value.String("first"), HasValue: true},
		{Test: compile.NewCompare(compile.CmpGt, colRef(schema, "x"), constFloat(0)), Value: value.String("second"), HasValue: true},
	})
	if err == nil {
		t.Fatal("expected an error when an unconditional entry isn't last")
	}
}
