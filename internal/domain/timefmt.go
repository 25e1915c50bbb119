package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the canonical timestamp format of session and result files.
const TimestampLayout = "2006-01-02 15:04:05-07:00"

// ChartTimeLayout is the label format of equity-curve points.
const ChartTimeLayout = "2006-01-02 15:04"

var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp parses any of the accepted layouts.
// Layouts without a zone are read as UTC. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTimestamp renders t in TimestampLayout (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
