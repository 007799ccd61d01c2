package domain

import (
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// TimestampLayout renders capture and generation timestamps: UTC with
// microsecond precision and a literal Z, e.g. 2025-10-12T05:41:23.299611Z.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// isoLayouts are the ISO-8601 forms accepted on input, tried in order.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Now returns the clock's current instant in TimestampLayout. Stages take a
// clockwork.Clock so tests can freeze time.
func Now(c clockwork.Clock) string {
	return FormatTimestamp(c.Now())
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without a zone are
// interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, &MissingFieldError{Field: "timestamp"}
	}
	if strings.HasSuffix(s, ":") || strings.HasSuffix(s, ".") {
		return time.Time{}, &InvalidFieldError{Field: "timestamp", Reason: "truncated timestamp: " + s}
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &InvalidFieldError{Field: "timestamp", Reason: "not an ISO-8601 timestamp: " + s}
}
