package value

import (
	"encoding/json"
	"testing"
)

func TestFromJSONInfersSchemaAndRoundTrips(t *testing.T) {
	raw := json.RawMessage(`[{"a":1,"b":"x"},{"a":2,"b":"y"},{"a":3,"b":null}]`)
	tbl, err := FromJSON(raw, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", tbl.NumRows())
	}
	if len(tbl.Batches) != 2 {
		t.Fatalf("expected 2 batches for batchSize=2 over 3 rows, got %d", len(tbl.Batches))
	}

	out, err := tbl.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(out, &rows); err != nil {
		t.Fatalf("re-decoding exported JSON: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows back, got %d", len(rows))
	}
}

func TestFromJSONEmptyFallsBackToFloatColumn(t *testing.T) {
	tbl, err := FromJSON(json.RawMessage(`[]`), 1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.NumRows() != 0 {
		t.Fatalf("expected 0 rows, got %d", tbl.NumRows())
	}
	if len(tbl.Schema.Fields()) != 1 || tbl.Schema.Field(0).Name != "value" {
		t.Fatalf("expected single 'value' column fallback, got %+v", tbl.Schema)
	}
}

func TestHeadLimitsRows(t *testing.T) {
	raw := json.RawMessage(`[{"a":1},{"a":2},{"a":3},{"a":4}]`)
	tbl, err := FromJSON(raw, 1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	head, err := tbl.Head(2)
	if err != nil {
		t.Fatal(err)
	}
	if head.NumRows() != 2 {
		t.Fatalf("expected 2 rows from Head(2), got %d", head.NumRows())
	}
}
