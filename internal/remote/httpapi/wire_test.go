package httpapi

import (
	"testing"
	"time"

	"andvaranaut/internal/core"
)

func TestDecodeDayRecords(t *testing.T) {
	payload := []byte(`[
		{"date":"2026-03-02T00:00:00.000Z","events":[{"name":"出社","type":"commute","fare":500}],"workingDay":true},
		{"events":[],"workingDay":false},
		{"date":"2026-03-03","events":[],"workingDay":false},
		{"date":"2026-03-04T00:00:00.000Z","workingDay":true}
	]`)

	days, err := decodeDayRecords(payload)
	if err != nil {
		t.Fatalf("decodeDayRecords: %v", err)
	}
	if len(days) != 4 {
		t.Fatalf("got %d days, want 4", len(days))
	}

	if days[0].IsPadding() {
		t.Error("day with a valid date decoded as padding")
	}
	if got, ok := days[0].Events[0].FareValue(); !ok || got != 500 {
		t.Errorf("fare = (%d, %v), want (500, true)", got, ok)
	}
	if !days[1].IsPadding() {
		t.Error("day without a date should be padding")
	}
	if !days[2].IsPadding() {
		t.Error("day whose date does not match the pattern should be padding")
	}
	if days[3].Events == nil {
		t.Error("absent events field should decode as an empty slice, not nil")
	}
}

func TestEncodeDayRecordsOmitsZeroDate(t *testing.T) {
	days := []core.DayRecord{
		{Date: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), Events: []core.Event{}, WorkingDay: true},
		{Events: nil, WorkingDay: false},
	}

	data, err := encodeDayRecords(days)
	if err != nil {
		t.Fatalf("encodeDayRecords: %v", err)
	}

	decoded, err := decodeDayRecords(data)
	if err != nil {
		t.Fatalf("decode re-encoded payload: %v", err)
	}
	if decoded[0].IsPadding() {
		t.Error("dated day lost its date through the codec")
	}
	if !decoded[1].IsPadding() {
		t.Error("padding day gained a date through the codec")
	}
	if decoded[1].Events == nil {
		t.Error("nil events should be encoded as an empty array")
	}
}

func TestDecodeTransit(t *testing.T) {
	info, err := decodeTransit([]byte(`{"unitPrice":500,"lastModified":"2026-03-01T08:00:00.000Z"}`))
	if err != nil {
		t.Fatalf("decodeTransit: %v", err)
	}
	if info.UnitPrice != 500 {
		t.Errorf("unitPrice = %d, want 500", info.UnitPrice)
	}
	want := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	if !info.LastModified.Equal(want) {
		t.Errorf("lastModified = %v, want %v", info.LastModified, want)
	}

	info, err = decodeTransit([]byte(`{"unitPrice":300}`))
	if err != nil {
		t.Fatalf("decodeTransit without lastModified: %v", err)
	}
	if !info.LastModified.IsZero() {
		t.Errorf("absent lastModified should stay zero, got %v", info.LastModified)
	}
}
