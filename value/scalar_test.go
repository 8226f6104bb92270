package value

import (
	"encoding/json"
	"testing"
)

func TestDatetimeJSONRoundTrip(t *testing.T) {
	s := Timestamp(1589621400000, "")
	raw, err := s.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		t.Fatalf("expected timestamp to encode as JSON string, got %s: %v", raw, err)
	}
	if str != "__$datetime:1589621400000" {
		t.Fatalf("expected __$datetime: prefix, got %q", str)
	}

	decoded, err := ScalarFromJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Kind != KindTimestamp || decoded.TSValue != 1589621400000 {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestDatetimeRoundTripWithNull(t *testing.T) {
	s := NullOf(KindTimestamp)
	raw, err := s.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := ScalarFromJSON(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.Null {
		t.Fatalf("expected null to round trip as null, got %+v", decoded)
	}
}

func TestToF64Coercion(t *testing.T) {
	cases := []struct {
		s    Scalar
		want float64
	}{
		{Bool(true), 1},
		{Bool(false), 0},
		{Int64(42), 42},
		{Float64(3.5), 3.5},
	}
	for _, c := range cases {
		got, isNull, err := c.s.ToF64()
		if err != nil || isNull {
			t.Fatalf("ToF64(%+v): got %v, null=%v, err=%v", c.s, got, isNull, err)
		}
		if got != c.want {
			t.Fatalf("ToF64(%+v) = %v, want %v", c.s, got, c.want)
		}
	}
}

func TestToF64PairExtent(t *testing.T) {
	s := Scalar{Kind: KindList, List: []Scalar{Float64(1), Float64(2)}}
	lo, hi, err := s.ToF64Pair()
	if err != nil {
		t.Fatal(err)
	}
	if lo != 1 || hi != 2 {
		t.Fatalf("got (%v,%v), want (1,2)", lo, hi)
	}
}

func TestPlainJSONScalarsUnaffected(t *testing.T) {
	s := Float64(320)
	raw, _ := s.ToJSON()
	if string(raw) != "320" {
		t.Fatalf("expected plain number JSON, got %s", raw)
	}
}
