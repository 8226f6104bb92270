package taskgraph

import (
	"testing"

	"github.com/hugr-lab/vizql/compile"
	"github.com/hugr-lab/vizql/expr"
	"github.com/hugr-lab/vizql/transform"
	"github.com/hugr-lab/vizql/value"
)

func mustParseExpr(t *testing.T, src string) expr.Node {
	t.Helper()
	n, err := expr.Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return n
}

// TestUpdateValuePropagatesToDownstreamNodes mirrors §8's scenario: a value
// signal `url`, a URL-loaded dataset depending on it, and an aggregate
// task consuming that dataset. Updating `url` must report exactly the two
// downstream nodes, in toposort order, and their state fingerprints must
// actually change.
func TestUpdateValuePropagatesToDownstreamNodes(t *testing.T) {
	urlVar := NewSignalVariable("url")
	rawVar := NewDataVariable("raw")
	aggVar := NewDataVariable("agg")

	g2, err := NewBuilder().
		Declare(urlVar, nil).
		Declare(rawVar, nil).
		Declare(aggVar, nil).
		AddTask(NewValueTask(urlVar, nil, value.String("file:///a.csv"))).
		AddTask(urlDataTask(t, rawVar)).
		AddTask(NewDataSourceTask(aggVar, nil, "raw", Pipeline{AggregateStage{
			Specs: []transform.AggSpec{{Field: "amount", Op: compile.AggSum, Alias: "amount"}},
		}})).
		Build()
	if err != nil {
		t.Fatalf("build error: %v", err)
	}

	urlIdx, rawIdx, aggIdx := -1, -1, -1
	for i, n := range g2.Nodes {
		switch n.Task.Variable() {
		case urlVar:
			urlIdx = i
		case rawVar:
			rawIdx = i
		case aggVar:
			aggIdx = i
		}
	}
	if urlIdx < 0 || rawIdx < 0 || aggIdx < 0 {
		t.Fatalf("expected all three nodes present, got url=%d raw=%d agg=%d", urlIdx, rawIdx, aggIdx)
	}
	if !(urlIdx < rawIdx && rawIdx < aggIdx) {
		t.Fatalf("expected toposort order url < raw < agg, got url=%d raw=%d agg=%d", urlIdx, rawIdx, aggIdx)
	}

	beforeRaw := g2.Nodes[rawIdx].StateFingerprint
	beforeAgg := g2.Nodes[aggIdx].StateFingerprint

	changed, err := UpdateValue(g2, urlIdx, value.String("file:///b.csv"))
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("expected exactly 2 downstream changed nodes, got %d: %v", len(changed), changed)
	}
	if changed[0] != rawIdx || changed[1] != aggIdx {
		t.Errorf("expected changed = [raw, agg] in toposort order, got %v (raw=%d agg=%d)", changed, rawIdx, aggIdx)
	}
	if g2.Nodes[rawIdx].StateFingerprint == beforeRaw {
		t.Errorf("expected raw's state fingerprint to change")
	}
	if g2.Nodes[aggIdx].StateFingerprint == beforeAgg {
		t.Errorf("expected agg's state fingerprint to change")
	}
}

// urlDataTask builds a DataUrlTask whose URL is the bare `url` signal
// expression, so it genuinely depends on urlVar.
func urlDataTask(t *testing.T, rawVar Variable) *DataUrlTask {
	t.Helper()
	urlExpr := mustParseExpr(t, "url")
	return NewDataURLTask(rawVar, nil, urlExpr, nil)
}

func TestBuildRejectsUnresolvedDependency(t *testing.T) {
	dataVar := NewDataVariable("raw")
	g, err := NewBuilder().
		Declare(dataVar, nil).
		AddTask(NewDataSourceTask(dataVar, nil, "upstream_outside_graph", nil)).
		Build()
	if err == nil {
		t.Fatalf("expected build to fail on an unresolved source, got graph %v", g)
	}
}

func TestUpdateValueRejectsNonValueTask(t *testing.T) {
	rawVar := NewDataVariable("raw")
	derivedVar := NewDataVariable("derived")
	g, err := NewBuilder().
		Declare(rawVar, nil).
		Declare(derivedVar, nil).
		AddTask(NewDataValuesTask(rawVar, nil, nil, nil)).
		AddTask(NewDataSourceTask(derivedVar, nil, "raw", nil)).
		Build()
	if err != nil {
		t.Fatalf("build error: %v", err)
	}
	var derivedIdx int
	for i, n := range g.Nodes {
		if n.Task.Variable() == derivedVar {
			derivedIdx = i
		}
	}
	if _, err := UpdateValue(g, derivedIdx, value.String("x")); err == nil {
		t.Fatal("expected UpdateValue to reject a non-value-task node")
	}
}

func TestBuilderRejectsCycle(t *testing.T) {
	a := NewSignalVariable("a")
	b := NewSignalVariable("b")
	exprA := mustParseExpr(t, "b")
	exprB := mustParseExpr(t, "a")

	_, err := NewBuilder().
		Declare(a, nil).
		Declare(b, nil).
		AddTask(NewSignalTask(a, nil, exprA)).
		AddTask(NewSignalTask(b, nil, exprB)).
		Build()
	if err == nil {
		t.Fatal("expected a cycle between two mutually dependent signals to fail construction")
	}
}
