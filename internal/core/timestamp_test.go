package core

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{
			name:  "utc with milliseconds",
			input: "2026-03-02T00:00:00.000Z",
			want:  time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "utc without milliseconds",
			input: "2026-03-02T12:30:45Z",
			want:  time.Date(2026, time.March, 2, 12, 30, 45, 0, time.UTC),
			ok:    true,
		},
		{
			name:  "numeric offset",
			input: "2026-03-02T09:00:00.000+09:00",
			want:  time.Date(2026, time.March, 2, 9, 0, 0, 0, time.FixedZone("", 9*3600)),
			ok:    true,
		},
		{
			name:  "date only",
			input: "2026-03-02",
			ok:    false,
		},
		{
			name:  "missing zone",
			input: "2026-03-02T00:00:00.000",
			ok:    false,
		},
		{
			name:  "microsecond precision",
			input: "2026-03-02T00:00:00.000000Z",
			ok:    false,
		},
		{
			name:  "arbitrary string",
			input: "not a date",
			ok:    false,
		},
		{
			name:  "empty",
			input: "",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatTimestampRoundTrip(t *testing.T) {
	in := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.FixedZone("JST", 9*3600))

	s := FormatTimestamp(in)
	if s != "2026-03-02T00:00:00.000Z" {
		t.Fatalf("FormatTimestamp = %q, want UTC millisecond rendering", s)
	}

	back, ok := ParseTimestamp(s)
	if !ok {
		t.Fatalf("formatted timestamp %q does not match the wire pattern", s)
	}
	if !back.Equal(in) {
		t.Errorf("round trip changed the instant: got %v, want %v", back, in)
	}
}

func TestFormatTimestampDropsSubMillisecond(t *testing.T) {
	in := time.Date(2026, time.August, 30, 8, 18, 11, 935956926, time.UTC)

	s := FormatTimestamp(in)
	if s != "2026-08-30T08:18:11.935Z" {
		t.Fatalf("FormatTimestamp = %q, want millisecond truncation", s)
	}
	if _, ok := ParseTimestamp(s); !ok {
		t.Errorf("truncated timestamp %q should revive", s)
	}
}
