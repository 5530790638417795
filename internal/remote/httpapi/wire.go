package httpapi

import (
	"encoding/json"
	"fmt"
	"time"

	"andvaranaut/internal/core"
)

type wireDay struct {
	Date       json.RawMessage `json:"date,omitempty"`
	Events     []core.Event    `json:"events"`
	WorkingDay bool            `json:"workingDay"`
}

type wireTransit struct {
	UnitPrice    int             `json:"unitPrice"`
	LastModified json.RawMessage `json:"lastModified,omitempty"`
}

func decodeDayRecords(data []byte) ([]core.DayRecord, error) {
	var wire []wireDay
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode day records: %w", err)
	}
	days := make([]core.DayRecord, 0, len(wire))
	for _, w := range wire {
		day := core.DayRecord{
			Events:     w.Events,
			WorkingDay: w.WorkingDay,
		}
		if day.Events == nil {
			day.Events = []core.Event{}
		}
		if t, ok := reviveTimestamp(w.Date); ok {
			day.Date = t
		}
		days = append(days, day)
	}
	return days, nil
}

func encodeDayRecords(days []core.DayRecord) ([]byte, error) {
	wire := make([]wireDay, 0, len(days))
	for _, d := range days {
		w := wireDay{Events: d.Events, WorkingDay: d.WorkingDay}
		if w.Events == nil {
			w.Events = []core.Event{}
		}
		if !d.Date.IsZero() {
			raw, err := json.Marshal(core.FormatTimestamp(d.Date))
			if err != nil {
				return nil, fmt.Errorf("encode date: %w", err)
			}
			w.Date = raw
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

func decodeTransit(data []byte) (core.TransitInformation, error) {
	var wire wireTransit
	if err := json.Unmarshal(data, &wire); err != nil {
		return core.TransitInformation{}, fmt.Errorf("decode transit information: %w", err)
	}
	info := core.TransitInformation{UnitPrice: wire.UnitPrice}
	if t, ok := reviveTimestamp(wire.LastModified); ok {
		info.LastModified = t
	}
	return info, nil
}

// reviveTimestamp applies the pattern gate to a raw JSON value. Non-string
// values and strings that do not match stay untouched, which for a date
// field means "absent": a padding day.
func reviveTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, false
	}
	return core.ParseTimestamp(s)
}
