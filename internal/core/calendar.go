package core

import "time"

// DaysPerWeek is the calendar grid width.
const DaysPerWeek = 7

// IsWorkingWeekday reports whether t falls on Monday through Friday.
func IsWorkingWeekday(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// EnsureTrailingBuffer extends a loaded day window forward so the UI always
// has a trailing buffer to edit into. When the last dated day is within
// lookaheadDays of now, exactly one synthetic week is appended: empty events,
// dates continuing day by day, workingDay set for Mon-Fri. Existing days are
// never reordered or truncated. The caller invokes this once per load cycle;
// the lookahead guard keeps an already extended window from growing again on
// the next cycle until the buffer has actually shrunk.
func EnsureTrailingBuffer(days []DayRecord, lookaheadDays int, now time.Time) []DayRecord {
	last, ok := lastDatedDay(days)
	if !ok {
		return days
	}
	if last.Date.After(now.AddDate(0, 0, lookaheadDays)) {
		return days
	}

	out := make([]DayRecord, len(days), len(days)+DaysPerWeek)
	copy(out, days)
	for i := 1; i <= DaysPerWeek; i++ {
		date := last.Date.AddDate(0, 0, i)
		out = append(out, DayRecord{
			Date:       date,
			Events:     []Event{},
			WorkingDay: IsWorkingWeekday(date),
		})
	}
	return out
}

// PadToWeeks right-pads the array with dateless padding days so its length is
// a multiple of seven, keeping the calendar grid rectangular.
func PadToWeeks(days []DayRecord) []DayRecord {
	rem := len(days) % DaysPerWeek
	if rem == 0 {
		return days
	}
	out := make([]DayRecord, len(days), len(days)+DaysPerWeek-rem)
	copy(out, days)
	for i := rem; i < DaysPerWeek; i++ {
		out = append(out, DayRecord{Events: []Event{}})
	}
	return out
}

// MonthGridStart returns the Monday on or before the first of the month, the
// boundary the persisted window is filtered and merged against.
func MonthGridStart(month MonthKey, loc *time.Location) time.Time {
	first := month.Time(loc)
	return first.AddDate(0, 0, -((int(first.Weekday()) + 6) % DaysPerWeek))
}

func lastDatedDay(days []DayRecord) (DayRecord, bool) {
	for i := len(days) - 1; i >= 0; i-- {
		if !days[i].IsPadding() {
			return days[i], true
		}
	}
	return DayRecord{}, false
}
