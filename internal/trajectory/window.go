package trajectory

import (
	"fmt"
	"time"
)

// Window ids are UTC hour buckets formatted as "YYYY-MM-DDTHH:00", exactly
// 16 characters. The format is a wire contract with the agent platform.
const windowIDLayout = "2006-01-02T15:04"

// FormatWindowID returns the window id for the hour containing t.
func FormatWindowID(t time.Time) string {
	return t.UTC().Truncate(time.Hour).Format(windowIDLayout)
}

// WindowIDHoursAgo returns the window id n hours before t.
func WindowIDHoursAgo(t time.Time, n int) string {
	return FormatWindowID(t.Add(-time.Duration(n) * time.Hour))
}

// ParseWindowID parses a window id back into its UTC hour boundary. Anything
// that is not an exact hour-truncated id is rejected.
func ParseWindowID(id string) (time.Time, error) {
	if len(id) != 16 {
		return time.Time{}, fmt.Errorf("window id %q: want 16 characters, got %d", id, len(id))
	}
	t, err := time.ParseInLocation(windowIDLayout, id, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("window id %q: %w", id, err)
	}
	if t.Minute() != 0 {
		return time.Time{}, fmt.Errorf("window id %q: not hour-aligned", id)
	}
	return t, nil
}

// WindowBounds returns the [start, end) interval covered by a window id.
func WindowBounds(id string) (time.Time, time.Time, error) {
	start, err := ParseWindowID(id)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(time.Hour), nil
}
