package worker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"andvaranaut/internal/core"
	"andvaranaut/internal/storage"
)

func newTestWorker(t *testing.T) (*StatsWorker, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "andvaranaut.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	w, err := NewStatsWorker(repo, nil, DefaultStatsWorkerConfig())
	if err != nil {
		t.Fatalf("NewStatsWorker: %v", err)
	}
	return w, repo
}

func seedUser(t *testing.T, repo *storage.SQLiteRepository) int64 {
	t.Helper()
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := repo.UpsertTransitInformation(ctx, userID, 500, time.Now()); err != nil {
		t.Fatalf("UpsertTransitInformation: %v", err)
	}

	commute := core.Event{Name: "出社", Type: core.Commute}
	walk := core.Event{Name: "徒歩", Type: core.Walking}
	snack := core.Event{Name: "GS", Type: core.GeekSeek, Amounts: 1000}

	days := []core.DayRecord{
		{
			// One walk without an explicit fare: 500*(2-1) = 500.
			Date:       time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
			Events:     []core.Event{commute, walk},
			WorkingDay: true,
		},
		{
			// Plain round trip: 500*2 = 1000, plus a snack.
			Date:       time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC),
			Events:     []core.Event{commute, snack},
			WorkingDay: true,
		},
		{
			// Previous month, snack only.
			Date:   time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC),
			Events: []core.Event{snack},
		},
	}
	if err := repo.ReplaceDayRecordsFrom(ctx, userID, time.Time{}, days); err != nil {
		t.Fatalf("seed day records: %v", err)
	}
	return userID
}

func TestRecomputeUser(t *testing.T) {
	w, repo := newTestWorker(t)
	ctx := context.Background()
	userID := seedUser(t, repo)

	if err := w.RecomputeUser(ctx, userID); err != nil {
		t.Fatalf("RecomputeUser: %v", err)
	}

	stats, err := repo.MonthlyStats(ctx, userID)
	if err != nil {
		t.Fatalf("MonthlyStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d months, want 2", len(stats))
	}

	// Newest first: March, then February.
	march := stats[0]
	if march.Month != "2026-03" {
		t.Fatalf("first month = %s, want 2026-03", march.Month)
	}
	if march.CommuteCount != 2 || march.WalkCount != 1 {
		t.Errorf("march counts = (%d commutes, %d walks), want (2, 1)", march.CommuteCount, march.WalkCount)
	}
	if march.CommuteCost != 1500 {
		t.Errorf("march cost = %d, want 1500", march.CommuteCost)
	}
	if march.GeekSeekTimes != 1 || march.GeekSeekAmounts != 1000 {
		t.Errorf("march geek-seek = (%d, %d), want (1, 1000)", march.GeekSeekTimes, march.GeekSeekAmounts)
	}

	feb := stats[1]
	if feb.Month != "2026-02" {
		t.Fatalf("second month = %s, want 2026-02", feb.Month)
	}
	if feb.CommuteCount != 0 || feb.CommuteCost != 0 {
		t.Errorf("february commute = (%d, %d), want zeros", feb.CommuteCount, feb.CommuteCost)
	}
	if feb.GeekSeekTimes != 1 || feb.GeekSeekAmounts != 1000 {
		t.Errorf("february geek-seek = (%d, %d), want (1, 1000)", feb.GeekSeekTimes, feb.GeekSeekAmounts)
	}
}

func TestRecomputeWithoutTransitRow(t *testing.T) {
	w, repo := newTestWorker(t)
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "bob", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	days := []core.DayRecord{
		{
			Date:       time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
			Events:     []core.Event{{Name: "出社", Type: core.Commute}},
			WorkingDay: true,
		},
		{
			Date:   time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
			Events: []core.Event{{Name: "GS", Type: core.GeekSeek, Amounts: 1000}},
		},
	}
	if err := repo.ReplaceDayRecordsFrom(ctx, userID, time.Time{}, days); err != nil {
		t.Fatalf("seed day records: %v", err)
	}

	if err := w.RecomputeUser(ctx, userID); err != nil {
		t.Fatalf("RecomputeUser: %v", err)
	}

	stats, err := repo.MonthlyStats(ctx, userID)
	if err != nil {
		t.Fatalf("MonthlyStats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d months, want 1", len(stats))
	}

	// No unit price on record means the commute cannot be priced. The commute
	// day must not show up as a zero-cost figure.
	march := stats[0]
	if march.CommuteCount != 0 || march.CommuteCost != 0 {
		t.Errorf("commute = (%d days, %d cost), want zeros without transit data", march.CommuteCount, march.CommuteCost)
	}
	if march.GeekSeekTimes != 1 || march.GeekSeekAmounts != 1000 {
		t.Errorf("geek-seek = (%d, %d), want (1, 1000)", march.GeekSeekTimes, march.GeekSeekAmounts)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	w, repo := newTestWorker(t)
	ctx := context.Background()
	userID := seedUser(t, repo)

	for i := 0; i < 3; i++ {
		if err := w.RecomputeUser(ctx, userID); err != nil {
			t.Fatalf("RecomputeUser run %d: %v", i, err)
		}
	}

	stats, err := repo.MonthlyStats(ctx, userID)
	if err != nil {
		t.Fatalf("MonthlyStats: %v", err)
	}
	if len(stats) != 2 {
		t.Errorf("got %d months after 3 runs, want 2", len(stats))
	}
	if stats[0].CommuteCost != 1500 {
		t.Errorf("cost drifted to %d after re-runs, want 1500", stats[0].CommuteCost)
	}
}

func TestSweepAllUsers(t *testing.T) {
	w, repo := newTestWorker(t)
	ctx := context.Background()
	userID := seedUser(t, repo)

	// Expired token should be removed by the sweep.
	if err := repo.CreateToken(ctx, userID, "stale", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if err := w.SweepAllUsers(ctx); err != nil {
		t.Fatalf("SweepAllUsers: %v", err)
	}

	stats, err := repo.MonthlyStats(ctx, userID)
	if err != nil {
		t.Fatalf("MonthlyStats: %v", err)
	}
	if len(stats) != 2 {
		t.Errorf("sweep stored %d months, want 2", len(stats))
	}

	if _, err := repo.UserIDForToken(ctx, "stale", time.Now().Add(-2*time.Hour)); err == nil {
		t.Error("expired token survived the sweep")
	}
}

func TestExportAllUsers(t *testing.T) {
	w, repo := newTestWorker(t)
	ctx := context.Background()
	userID := seedUser(t, repo)
	if err := w.RecomputeUser(ctx, userID); err != nil {
		t.Fatalf("RecomputeUser: %v", err)
	}

	exporter := &fakeExporter{}
	w.exporter = exporter

	if err := w.ExportAllUsers(ctx); err != nil {
		t.Fatalf("ExportAllUsers: %v", err)
	}

	exporter.mu.Lock()
	defer exporter.mu.Unlock()
	if len(exporter.exports) != 1 {
		t.Fatalf("exported %d users, want 1", len(exporter.exports))
	}
	if exporter.exports[0].username != "alice" || exporter.exports[0].rows != 2 {
		t.Errorf("export = %+v, want alice with 2 rows", exporter.exports[0])
	}
}

func TestStartStop(t *testing.T) {
	w, _ := newTestWorker(t)
	ctx := context.Background()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Stopped workers can be restarted.
	if err := w.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

type fakeExporter struct {
	mu      sync.Mutex
	exports []exportRecord
}

type exportRecord struct {
	username string
	rows     int
}

func (f *fakeExporter) ExportMonthlyStats(_ context.Context, username string, stats []storage.MonthlyStat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports = append(f.exports, exportRecord{username: username, rows: len(stats)})
	return nil
}
