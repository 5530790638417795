// Package memory is an in-process gateway adapter with the same month-window
// merge semantics as the real API. It backs tests and offline use.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"andvaranaut/internal/core"
	"andvaranaut/internal/remote"
)

// Store holds one user's calendar and transit data in memory.
type Store struct {
	mu      sync.Mutex
	days    []core.DayRecord
	transit core.TransitInformation
	loc     *time.Location
}

var _ remote.Gateway = (*Store)(nil)

// New creates an empty store with the given transit information.
func New(transit core.TransitInformation) *Store {
	return &Store{transit: transit, loc: time.UTC}
}

// NewFromFile seeds the store from a JSON day-record array on disk. A missing
// or unreadable file yields an empty store, mirroring a fresh account.
func NewFromFile(path string, transit core.TransitInformation) *Store {
	s := New(transit)
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var days []core.DayRecord
	if err := json.Unmarshal(data, &days); err != nil {
		return s
	}
	s.days = days
	return s
}

// CalendarEvents returns the day records from the month grid start onward.
func (s *Store) CalendarEvents(_ context.Context, token string, month core.MonthKey) ([]core.DayRecord, error) {
	if token == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := core.MonthGridStart(month, s.loc)
	var out []core.DayRecord
	for _, d := range s.days {
		if !d.IsPadding() && !d.Date.Before(start) {
			out = append(out, d)
		}
	}
	return out, nil
}

// SaveCalendarEvents keeps the history before the month grid start and
// replaces everything from there with the incoming window, then bumps the
// transit last-modified time.
func (s *Store) SaveCalendarEvents(_ context.Context, token string, month core.MonthKey, days []core.DayRecord) error {
	if token == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	start := core.MonthGridStart(month, s.loc)
	var merged []core.DayRecord
	for _, d := range s.days {
		if !d.IsPadding() && d.Date.Before(start) {
			merged = append(merged, d)
		}
	}
	for _, d := range days {
		if !d.IsPadding() {
			merged = append(merged, d)
		}
	}
	s.days = merged
	s.transit.LastModified = time.Now()
	return nil
}

// TransitInformation returns the stored transit data.
func (s *Store) TransitInformation(_ context.Context, token string) (core.TransitInformation, error) {
	if token == "" {
		return core.TransitInformation{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transit, nil
}

// Days returns a snapshot of everything stored, for assertions in tests.
func (s *Store) Days() []core.DayRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.DayRecord, len(s.days))
	copy(out, s.days)
	return out
}
