package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"andvaranaut/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "andvaranaut.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestUserAndTokenLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	userID, err := repo.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	id, hash, err := repo.UserCredentials(ctx, "alice")
	if err != nil {
		t.Fatalf("UserCredentials: %v", err)
	}
	if id != userID || hash != "hash" {
		t.Errorf("credentials = (%d, %q), want (%d, hash)", id, hash, userID)
	}
	if _, _, err := repo.UserCredentials(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}

	if err := repo.CreateToken(ctx, userID, "tok-live", now.Add(time.Hour)); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if err := repo.CreateToken(ctx, userID, "tok-dead", now.Add(-time.Hour)); err != nil {
		t.Fatalf("CreateToken expired: %v", err)
	}

	if got, err := repo.UserIDForToken(ctx, "tok-live", now); err != nil || got != userID {
		t.Errorf("UserIDForToken(live) = (%d, %v), want (%d, nil)", got, err, userID)
	}
	if _, err := repo.UserIDForToken(ctx, "tok-dead", now); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired token error = %v, want ErrNotFound", err)
	}

	deleted, err := repo.DeleteExpiredTokens(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredTokens: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d tokens, want 1", deleted)
	}
}

func TestReplaceDayRecordsKeepsHistory(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	day := func(y int, m time.Month, d int, events []core.Event) core.DayRecord {
		return core.DayRecord{
			Date:       time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
			Events:     events,
			WorkingDay: true,
		}
	}

	seed := []core.DayRecord{
		day(2026, time.February, 20, nil),
		day(2026, time.February, 23, nil),
	}
	if err := repo.ReplaceDayRecordsFrom(ctx, userID, time.Time{}, seed); err != nil {
		t.Fatalf("seed replace: %v", err)
	}

	gridStart := core.MonthGridStart("2026-03", time.UTC) // Monday Feb 23
	window := []core.DayRecord{
		day(2026, time.March, 2, []core.Event{core.Event{Name: "出社", Type: core.Commute}.WithFare(500)}),
		{Events: []core.Event{}}, // padding, must not be stored
	}
	if err := repo.ReplaceDayRecordsFrom(ctx, userID, gridStart, window); err != nil {
		t.Fatalf("window replace: %v", err)
	}

	all, err := repo.AllDayRecords(ctx, userID)
	if err != nil {
		t.Fatalf("AllDayRecords: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("stored %d days, want Feb 20 history plus March 2", len(all))
	}
	if !all[0].Date.Equal(seed[0].Date) {
		t.Errorf("history day lost: first stored day is %v", all[0].Date)
	}
	if got, ok := all[1].Events[0].FareValue(); !ok || got != 500 {
		t.Errorf("stored fare = (%d, %v), want (500, true)", got, ok)
	}

	fromGrid, err := repo.DayRecordsFrom(ctx, userID, gridStart)
	if err != nil {
		t.Fatalf("DayRecordsFrom: %v", err)
	}
	if len(fromGrid) != 1 {
		t.Errorf("window query returned %d days, want 1", len(fromGrid))
	}
}

func TestTransitInformationUpsert(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	info, found, err := repo.TransitInformation(ctx, userID)
	if err != nil {
		t.Fatalf("TransitInformation before upsert: %v", err)
	}
	if found {
		t.Error("found = true before upsert, want false")
	}
	if info.UnitPrice != 0 {
		t.Errorf("unitPrice before upsert = %d, want 0", info.UnitPrice)
	}

	modified := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	if err := repo.UpsertTransitInformation(ctx, userID, 500, modified); err != nil {
		t.Fatalf("UpsertTransitInformation: %v", err)
	}

	info, found, err = repo.TransitInformation(ctx, userID)
	if err != nil {
		t.Fatalf("TransitInformation: %v", err)
	}
	if !found {
		t.Error("found = false after upsert, want true")
	}
	if info.UnitPrice != 500 {
		t.Errorf("unitPrice = %d, want 500", info.UnitPrice)
	}

	later := modified.Add(time.Hour)
	if err := repo.TouchTransitLastModified(ctx, userID, later); err != nil {
		t.Fatalf("TouchTransitLastModified: %v", err)
	}
	info, _, err = repo.TransitInformation(ctx, userID)
	if err != nil {
		t.Fatalf("TransitInformation after touch: %v", err)
	}
	if info.UnitPrice != 500 {
		t.Errorf("touch changed unitPrice to %d", info.UnitPrice)
	}
	if !info.LastModified.After(modified) {
		t.Errorf("lastModified = %v, want after %v", info.LastModified, modified)
	}
}

func TestTouchTransitWithoutRow(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "bob", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// A calendar save touches transit; that must not conjure a zero-price row.
	if err := repo.TouchTransitLastModified(ctx, userID, time.Now()); err != nil {
		t.Fatalf("TouchTransitLastModified: %v", err)
	}
	_, found, err := repo.TransitInformation(ctx, userID)
	if err != nil {
		t.Fatalf("TransitInformation: %v", err)
	}
	if found {
		t.Error("touch created a transit row for a user who never set a price")
	}
}

func TestMonthlyStatsUpsert(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	stats := []MonthlyStat{
		{Month: "2026-02", CommuteCount: 18, WalkCount: 3, CommuteCost: 8700},
		{Month: "2026-03", CommuteCount: 2, CommuteCost: 1000, GeekSeekTimes: 3, GeekSeekAmounts: 2500},
	}
	for _, s := range stats {
		if err := repo.UpsertMonthlyStat(ctx, userID, s); err != nil {
			t.Fatalf("UpsertMonthlyStat(%s): %v", s.Month, err)
		}
	}

	// Overwrite March with corrected numbers.
	if err := repo.UpsertMonthlyStat(ctx, userID, MonthlyStat{
		Month: "2026-03", CommuteCount: 3, CommuteCost: 1500,
	}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := repo.MonthlyStats(ctx, userID)
	if err != nil {
		t.Fatalf("MonthlyStats: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d months, want 2", len(got))
	}
	if got[0].Month != "2026-03" {
		t.Errorf("first month = %s, want newest first", got[0].Month)
	}
	if got[0].CommuteCount != 3 || got[0].CommuteCost != 1500 {
		t.Errorf("march stat = %+v, want the re-upserted values", got[0])
	}
	if got[0].GeekSeekTimes != 0 {
		t.Errorf("re-upsert did not overwrite geek seek times: %d", got[0].GeekSeekTimes)
	}
}
