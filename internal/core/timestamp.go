package core

import (
	"regexp"
	"time"
)

// timestampPattern is the exact shape of a serialized date. Only matching
// strings are revived into time values; everything else a payload carries
// passes through untouched.
var timestampPattern = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d{3})?(Z|[+-]\d{2}:\d{2})$`)

// wireTimeLayout is how dates are emitted: UTC with millisecond precision,
// the same rendering the calendar has always persisted.
const wireTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ParseTimestamp revives a JSON string value into a time when it matches the
// wire timestamp pattern.
func ParseTimestamp(s string) (time.Time, bool) {
	if !timestampPattern.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp renders a time in the wire shape. Sub-millisecond
// precision is dropped so the result always revives on the other side.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}
