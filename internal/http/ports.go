package http

import (
	"context"
	"time"

	"andvaranaut/internal/core"
	"andvaranaut/internal/storage"
)

// Repository is the persistence surface the API handlers need.
type Repository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
	UserCredentials(ctx context.Context, username string) (int64, string, error)
	CreateToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error
	UserIDForToken(ctx context.Context, token string, now time.Time) (int64, error)

	DayRecordsFrom(ctx context.Context, userID int64, from time.Time) ([]core.DayRecord, error)
	ReplaceDayRecordsFrom(ctx context.Context, userID int64, from time.Time, days []core.DayRecord) error
	TransitInformation(ctx context.Context, userID int64) (core.TransitInformation, bool, error)
	UpsertTransitInformation(ctx context.Context, userID int64, unitPrice int, modified time.Time) error
	TouchTransitLastModified(ctx context.Context, userID int64, modified time.Time) error
	MonthlyStats(ctx context.Context, userID int64) ([]storage.MonthlyStat, error)
}

// CalendarPublisher notifies downstream consumers that a calendar window
// was saved. Publishing is best effort: handlers log failures and move on.
type CalendarPublisher interface {
	PublishCalendarSaved(ctx context.Context, userID int64, month core.MonthKey) error
}
