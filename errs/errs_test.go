package errs

import (
	"strings"
	"testing"
)

func TestWrapAccumulatesFrames(t *testing.T) {
	base := New(Compilation, "unbound identifier %q", "foo")
	wrapped := Wrap(base, "compiling binary expression")
	wrapped = Wrap(wrapped, "compiling formula transform")

	msg := wrapped.Error()
	if !strings.Contains(msg, "unbound identifier") {
		t.Fatalf("expected base message, got %q", msg)
	}
	if !strings.Contains(msg, "compiling binary expression") || !strings.Contains(msg, "compiling formula transform") {
		t.Fatalf("expected both frames present, got %q", msg)
	}
	if !Is(wrapped, Compilation) {
		t.Fatalf("expected Compilation kind to survive wrapping")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "frame") != nil {
		t.Fatalf("wrapping nil must return nil")
	}
}

func TestDuplicateIndependence(t *testing.T) {
	base := New(Internal, "boom")
	wrapped := Wrap(base, "first")
	dup := Duplicate(wrapped)

	again := Wrap(dup, "second")
	if strings.Contains(wrapped.Error(), "second") {
		t.Fatalf("mutating duplicate must not affect original: %q", wrapped.Error())
	}
	if !strings.Contains(again.Error(), "second") {
		t.Fatalf("expected duplicate-derived error to carry new frame")
	}
}

func TestNewSpanCarriesOffsets(t *testing.T) {
	e := NewSpan(Parse, 3, 7, "unexpected token")
	if e.Start != 3 || e.End != 7 {
		t.Fatalf("expected span (3,7), got (%d,%d)", e.Start, e.End)
	}
	if !strings.Contains(e.Error(), "3:7") {
		t.Fatalf("expected span in message, got %q", e.Error())
	}
}
