// internal/models/time.go
package models

import "time"

// Timestamps are persisted as RFC3339 UTC. Older data files carry naive
// fractional-second timestamps without a zone, so parsing accepts those too
// and treats them as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// FormatTimestamp renders a time in the persisted format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseTimestamp parses a persisted timestamp in any accepted layout.
func ParseTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// DisplayTimeLayout is the human-readable timestamp format used in chat
// messages.
const DisplayTimeLayout = "2006-01-02 15:04:05"

// FormatDisplayTime renders a time for chat messages.
func FormatDisplayTime(t time.Time) string {
	return t.Format(DisplayTimeLayout)
}

// DisplayTimestamp re-renders a persisted timestamp for chat messages,
// falling back to the raw value when it does not parse.
func DisplayTimestamp(value string) string {
	t, err := ParseTimestamp(value)
	if err != nil {
		return value
	}
	return FormatDisplayTime(t)
}
