// Package worker recomputes monthly aggregates from saved calendars.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"andvaranaut/internal/amqp"
	"andvaranaut/internal/core"
	"andvaranaut/internal/report"
	"andvaranaut/internal/services"
	"andvaranaut/internal/storage"
)

// StatsWorkerConfig holds configuration for the stats worker.
type StatsWorkerConfig struct {
	// SweepInterval is how often to recompute every user as a safety net for
	// lost broker messages (default: 1h).
	SweepInterval time.Duration

	// FareRuleName selects the commute cost rule (default: "leg").
	FareRuleName string
}

// DefaultStatsWorkerConfig returns sensible defaults.
func DefaultStatsWorkerConfig() StatsWorkerConfig {
	return StatsWorkerConfig{
		SweepInterval: time.Hour,
		FareRuleName:  services.DefaultFareRuleName,
	}
}

// StatsWorker folds each user's day records into monthly_stats rows. It
// reacts to calendar-saved messages and additionally sweeps all users on a
// timer.
type StatsWorker struct {
	storage  *storage.SQLiteRepository
	exporter report.StatsExporter
	rule     services.FareRule
	config   StatsWorkerConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewStatsWorker creates a stats worker. exporter may be nil when no report
// sheet is configured.
func NewStatsWorker(storage *storage.SQLiteRepository, exporter report.StatsExporter, config StatsWorkerConfig) (*StatsWorker, error) {
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Hour
	}
	if config.FareRuleName == "" {
		config.FareRuleName = services.DefaultFareRuleName
	}
	rule, err := services.GetFareRule(config.FareRuleName)
	if err != nil {
		return nil, fmt.Errorf("resolve fare rule: %w", err)
	}

	return &StatsWorker{
		storage:  storage,
		exporter: exporter,
		rule:     rule,
		config:   config,
	}, nil
}

// Start begins the sweep loop. Returns an error if already running.
func (w *StatsWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("stats worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Stats worker started",
		"sweep_interval", w.config.SweepInterval,
		"fare_rule", w.config.FareRuleName)

	return nil
}

// Stop gracefully stops the worker and waits for completion.
func (w *StatsWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Stats worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Stats worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *StatsWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// One sweep up front covers messages missed while the worker was down.
	if err := w.SweepAllUsers(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup sweep failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if err := w.SweepAllUsers(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sweep failed", "error", err)
			}
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// HandleCalendarSaved recomputes one user's aggregates after a save.
func (w *StatsWorker) HandleCalendarSaved(ctx context.Context, msg *amqp.CalendarSavedMessage) error {
	slog.InfoContext(ctx, "Processing calendar saved message",
		"user_id", msg.UserID,
		"month", msg.Month)
	return w.RecomputeUser(ctx, msg.UserID)
}

// RecomputeUser folds every day record of a user into monthly_stats rows.
func (w *StatsWorker) RecomputeUser(ctx context.Context, userID int64) error {
	days, err := w.storage.AllDayRecords(ctx, userID)
	if err != nil {
		return fmt.Errorf("load day records: %w", err)
	}
	transit, found, err := w.storage.TransitInformation(ctx, userID)
	if err != nil {
		return fmt.Errorf("load transit information: %w", err)
	}

	// A user without transit data has no unit price to cost commutes with.
	// Nil transit keeps the commute maps empty instead of pricing at zero.
	var transitPtr *core.TransitInformation
	if found {
		transitPtr = &transit
	}
	commute := services.ComputeCommuteStats(days, transitPtr, w.rule)
	geekSeek := services.ComputeGeekSeekStats(days)

	months := map[core.MonthKey]struct{}{}
	for key := range commute.Counts {
		months[key] = struct{}{}
	}
	for key := range geekSeek {
		months[key] = struct{}{}
	}

	for key := range months {
		stat := storage.MonthlyStat{
			Month:           key,
			CommuteCount:    commute.Counts[key],
			WalkCount:       commute.WalkCounts[key],
			CommuteCost:     commute.Costs[key],
			GeekSeekTimes:   geekSeek[key].Times,
			GeekSeekAmounts: geekSeek[key].Amounts,
		}
		if err := w.storage.UpsertMonthlyStat(ctx, userID, stat); err != nil {
			return fmt.Errorf("store stat for %s: %w", key, err)
		}
	}

	slog.InfoContext(ctx, "User stats recomputed",
		"user_id", userID,
		"months", len(months),
		"days", len(days))
	return nil
}

// SweepAllUsers recomputes aggregates for every account.
func (w *StatsWorker) SweepAllUsers(ctx context.Context) error {
	userIDs, err := w.storage.UserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	errorCount := 0
	for _, userID := range userIDs {
		if err := w.RecomputeUser(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Sweep recompute failed", "user_id", userID, "error", err)
			errorCount++
		}
	}

	// Token hygiene rides along with the sweep.
	if deleted, err := w.storage.DeleteExpiredTokens(ctx, time.Now()); err != nil {
		slog.WarnContext(ctx, "Expired token cleanup failed", "error", err)
	} else if deleted > 0 {
		slog.InfoContext(ctx, "Expired tokens deleted", "count", deleted)
	}

	slog.InfoContext(ctx, "Sweep completed", "users", len(userIDs), "errors", errorCount)
	if errorCount > 0 {
		return fmt.Errorf("sweep finished with %d errors", errorCount)
	}
	return nil
}

// ExportAllUsers appends every user's monthly aggregates to the report
// sheet. The worker binary schedules this daily.
func (w *StatsWorker) ExportAllUsers(ctx context.Context) error {
	if w.exporter == nil {
		slog.InfoContext(ctx, "No stats exporter configured, skipping export")
		return nil
	}

	userIDs, err := w.storage.UserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, userID := range userIDs {
		username, err := w.storage.Username(ctx, userID)
		if err != nil {
			slog.ErrorContext(ctx, "Username lookup failed", "user_id", userID, "error", err)
			continue
		}
		stats, err := w.storage.MonthlyStats(ctx, userID)
		if err != nil {
			slog.ErrorContext(ctx, "Stats lookup failed", "user_id", userID, "error", err)
			continue
		}
		if err := w.exporter.ExportMonthlyStats(ctx, username, stats); err != nil {
			slog.ErrorContext(ctx, "Stats export failed", "user_id", userID, "error", err)
			continue
		}
	}

	return nil
}
