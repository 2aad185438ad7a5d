package trajectory

import (
	"testing"
	"time"
)

func TestFormatWindowID_TruncatesToHour(t *testing.T) {
	at := time.Date(2025, 6, 15, 14, 37, 22, 0, time.UTC)
	got := FormatWindowID(at)
	if got != "2025-06-15T14:00" {
		t.Fatalf("got=%q want=2025-06-15T14:00", got)
	}
	if len(got) != 16 {
		t.Fatalf("len=%d want=16", len(got))
	}
}

func TestFormatWindowID_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	at := time.Date(2025, 6, 15, 14, 30, 0, 0, loc)
	got := FormatWindowID(at)
	if got != "2025-06-15T06:00" {
		t.Fatalf("got=%q want=2025-06-15T06:00", got)
	}
}

func TestWindowIDHoursAgo(t *testing.T) {
	at := time.Date(2025, 6, 15, 3, 10, 0, 0, time.UTC)
	got := WindowIDHoursAgo(at, 5)
	if got != "2025-06-14T22:00" {
		t.Fatalf("got=%q want=2025-06-14T22:00", got)
	}
}

func TestParseWindowID_RoundTrip(t *testing.T) {
	at := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	id := FormatWindowID(at)
	parsed, err := ParseWindowID(id)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Equal(at) {
		t.Fatalf("parsed=%s want=%s", parsed, at)
	}
}

func TestParseWindowID_Rejects(t *testing.T) {
	cases := []string{
		"",
		"2025-06-15",
		"2025-06-15T14:30",
		"2025-06-15 14:00",
		"2025-06-15T14:00:00",
		"not-a-window-id!",
	}
	for _, id := range cases {
		if _, err := ParseWindowID(id); err == nil {
			t.Fatalf("ParseWindowID(%q) accepted, want error", id)
		}
	}
}

func TestWindowBounds(t *testing.T) {
	start, end, err := WindowBounds("2025-06-15T14:00")
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if !start.Equal(time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("start=%s", start)
	}
	if end.Sub(start) != time.Hour {
		t.Fatalf("span=%s want=1h", end.Sub(start))
	}
}
