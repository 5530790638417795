package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Commute  Category = "commute"
	Remote   Category = "remote"
	Walking  Category = "walking"
	GeekSeek Category = "geek-seek"
	Drinking Category = "drinking"
	Energy   Category = "energy"
	Nuka     Category = "nuka"
)

// GeekSeekSlots is the number of repeatable geek-seek entries a single day can hold.
const GeekSeekSlots = 2

type (
	// Category tags an Event and decides its payload shape. The set is closed:
	// every consumer switches exhaustively over it.
	Category string

	// Event is one categorized entry of a day. Fare is only meaningful on
	// commute and walking events and stays nil when the fare is implicit
	// (derived from the transit unit price). Amounts carries the price of a
	// geek-seek visit or the intensity of a drinking event.
	Event struct {
		Name    string   `json:"name"`
		Type    Category `json:"type"`
		Fare    *int     `json:"fare,omitempty"`
		Amounts int      `json:"amounts,omitempty"`
	}

	// DayRecord is one calendar day. A zero Date marks a padding day that only
	// exists to keep the calendar grid a whole number of weeks.
	DayRecord struct {
		Date       time.Time `json:"date"`
		Events     []Event   `json:"events"`
		WorkingDay bool      `json:"workingDay"`
	}

	// TransitInformation is the per-user transit metadata: the single-leg fare
	// and the time of the last remote update.
	TransitInformation struct {
		UnitPrice    int       `json:"unitPrice"`
		LastModified time.Time `json:"lastModified"`
	}

	// MonthKey identifies a calendar month as "YYYY-MM".
	MonthKey string

	// SyncStatus is the visible dirty-vs-synced state of the local calendar.
	SyncStatus struct {
		Editing bool
		Saving  bool
	}
)

var (
	ErrInvalidCategory = errors.New("invalid event category")
	ErrInvalidMonthKey = errors.New("invalid month key")
)

// Categories lists every category in canonical order.
var Categories = []Category{Commute, Remote, Walking, GeekSeek, Drinking, Energy, Nuka}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case Commute, Remote, Walking, GeekSeek, Drinking, Energy, Nuka:
		return true
	default:
		return false
	}
}

// IsWorkMode reports whether c is one of the mutually exclusive work-mode
// categories (at most one of commute/remote per day).
func (c Category) IsWorkMode() bool {
	return c == Commute || c == Remote
}

// FareValue returns the explicit fare and whether one is set.
func (e Event) FareValue() (int, bool) {
	if e.Fare == nil {
		return 0, false
	}
	return *e.Fare, true
}

// WithFare returns a copy of e carrying an explicit fare.
func (e Event) WithFare(fare int) Event {
	e.Fare = &fare
	return e
}

// IsPadding reports whether d is a synthetic grid-filler day.
func (d DayRecord) IsPadding() bool {
	return d.Date.IsZero()
}

// CountEvents returns how many events of the given category the day holds.
func (d DayRecord) CountEvents(c Category) int {
	n := 0
	for _, e := range d.Events {
		if e.Type == c {
			n++
		}
	}
	return n
}

// FindEvent returns the first event of the given category, if any.
func (d DayRecord) FindEvent(c Category) (Event, bool) {
	for _, e := range d.Events {
		if e.Type == c {
			return e, true
		}
	}
	return Event{}, false
}

// Synced reports whether no local change is pending and no save is in flight.
func (s SyncStatus) Synced() bool {
	return !s.Editing && !s.Saving
}

// MonthKeyOf derives the month key of a date, in UTC like the original
// ISO-string slicing did.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.UTC().Format("2006-01"))
}

// ParseMonthKey validates and returns a "YYYY-MM" key.
func ParseMonthKey(s string) (MonthKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1 || len(parts[0]) != 4 {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 || len(parts[1]) != 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

// Time returns the first instant of the month in the given location.
func (k MonthKey) Time(loc *time.Location) time.Time {
	parts := strings.SplitN(string(k), "-", 2)
	year, _ := strconv.Atoi(parts[0])
	month := 1
	if len(parts) == 2 {
		month, _ = strconv.Atoi(parts[1])
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
}

// Before reports whether k sorts before other. Keys are zero-padded, so the
// lexicographic order is the chronological one.
func (k MonthKey) Before(other MonthKey) bool {
	return string(k) < string(other)
}

func (k MonthKey) String() string {
	return string(k)
}
