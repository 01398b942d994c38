package handlers

import (
	"testing"
	"time"
)

func TestParseDateAnchorsAtMidnight(t *testing.T) {
	got, err := parseDate("2026-01-02")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got, err = parseDate("2026-01-02T15:04:05Z")
	if err != nil {
		t.Fatalf("parse rfc3339: %v", err)
	}
	if !got.Equal(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)) {
		t.Fatalf("rfc3339 value mangled: %v", got)
	}

	if got, err := parseDate("  "); err != nil || got != nil {
		t.Fatalf("blank input: got %v, %v", got, err)
	}
	if _, err := parseDate("02/01/2026"); err == nil {
		t.Fatalf("bad layout accepted")
	}
}

// A date-only upper bound must include the whole day, not stop at midnight.
func TestParseDateEndCoversWholeDay(t *testing.T) {
	end, err := parseDateEnd("2026-01-02")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sameDay := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	nextDay := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	if end.Before(sameDay) {
		t.Fatalf("upper bound %v excludes %v", end, sameDay)
	}
	if !end.Before(nextDay) {
		t.Fatalf("upper bound %v leaks into the next day", end)
	}

	// explicit timestamps pass through unchanged
	end, err = parseDateEnd("2026-01-02T10:00:00Z")
	if err != nil {
		t.Fatalf("parse rfc3339: %v", err)
	}
	if !end.Equal(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("rfc3339 upper bound mangled: %v", end)
	}
}
