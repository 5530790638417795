// Package remote defines the ports to the persistence backend the calendar
// syncs against. Adapters live in the subpackages: httpapi talks to the real
// HTTP API, memory serves tests and offline use.
package remote

import (
	"context"
	"errors"

	"andvaranaut/internal/core"
)

var (
	// ErrFetchFailed marks a failed calendar or transit load. The caller
	// surfaces it as an auth/loading error; it is never retried here.
	ErrFetchFailed = errors.New("remote fetch failed")

	// ErrSaveFailed marks a failed persist. Local state stays authoritative;
	// retrying is the caller's decision.
	ErrSaveFailed = errors.New("remote save failed")
)

// Ports for the remote gateway. An empty token means "no data available":
// implementations return empty or default results, never an error.
type (
	CalendarReader interface {
		// CalendarEvents fetches the day records of the month window.
		CalendarEvents(ctx context.Context, token string, month core.MonthKey) ([]core.DayRecord, error)
	}

	CalendarWriter interface {
		// SaveCalendarEvents persists the day records of the month window.
		SaveCalendarEvents(ctx context.Context, token string, month core.MonthKey, days []core.DayRecord) error
	}

	TransitReader interface {
		// TransitInformation fetches the commute unit price and the time of
		// the last remote update.
		TransitInformation(ctx context.Context, token string) (core.TransitInformation, error)
	}

	// Gateway bundles the full persistence surface the sync engine needs.
	Gateway interface {
		CalendarReader
		CalendarWriter
		TransitReader
	}
)
