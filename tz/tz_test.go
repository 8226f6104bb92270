package tz

import (
	"testing"
	"time"
)

func TestParseDateStringISOWithZ(t *testing.T) {
	millis, err := ParseDateString("2020-05-16T09:30:00Z", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if millis != 1589621400000 {
		t.Fatalf("expected 1589621400000, got %d", millis)
	}
}

func TestParseDateStringSlash(t *testing.T) {
	millis, err := ParseDateString("2020/05/16", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := ParseDateString("2020-05-16T00:00:00Z", time.UTC)
	if millis != want {
		t.Fatalf("got %d, want %d", millis, want)
	}
}

func TestParseDateStringMonthName(t *testing.T) {
	millis, err := ParseDateString("May 16, 2020", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := ParseDateString("2020-05-16T00:00:00Z", time.UTC)
	if millis != want {
		t.Fatalf("got %d, want %d", millis, want)
	}
}

func TestTwoDigitYearMapping(t *testing.T) {
	millis := BuildTimestamp(87, 2, 10, 7, 35, 10, 87, time.UTC)
	want, _ := ParseDateString("1987-03-10T07:35:10.087Z", time.UTC)
	if millis != want {
		t.Fatalf("got %d, want %d", millis, want)
	}
}
