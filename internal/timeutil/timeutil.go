// Package timeutil converts the CLI's relative time ranges ("30m", "1h",
// "2d") into absolute query windows.
package timeutil

import (
	"fmt"
	"time"

	"github.com/prometheus/common/model"
)

// DefaultRange is used when a range string cannot be parsed.
const DefaultRange = time.Hour

// Window is one absolute time span.
type Window struct {
	Start time.Time
	End   time.Time
}

// ParseRange converts a relative range ending now into start and end times.
// Unparseable input falls back to the last hour.
func ParseRange(timeRange string) (time.Time, time.Time) {
	now := time.Now().UTC()
	d, err := ParseDuration(timeRange)
	if err != nil {
		d = DefaultRange
	}
	return now.Add(-d), now
}

// ParseDuration parses a Prometheus-style duration ("90s", "15m", "2d").
func ParseDuration(s string) (time.Duration, error) {
	d, err := model.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid time range %q: %w", s, err)
	}
	return time.Duration(d), nil
}

// RFC3339 formats a time the way the Grafana APIs expect.
func RFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Windows splits [start, end) into consecutive spans of the given size.
// The final window is truncated at end.
func Windows(start, end time.Time, size time.Duration) []Window {
	if size <= 0 || !start.Before(end) {
		return nil
	}

	var windows []Window
	for cur := start; cur.Before(end); cur = cur.Add(size) {
		winEnd := cur.Add(size)
		if winEnd.After(end) {
			winEnd = end
		}
		windows = append(windows, Window{Start: cur, End: winEnd})
	}
	return windows
}
