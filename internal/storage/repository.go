package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"andvaranaut/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// dateLayout is how day record dates are keyed in the database.
const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser stores a new account with an already-hashed password.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create user id: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", id, "username", username)
	return id, nil
}

// UserCredentials returns the id and password hash for a username.
func (r *SQLiteRepository) UserCredentials(ctx context.Context, username string) (int64, string, error) {
	var id int64
	var hash string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE username = ?`,
		username).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("get user credentials: %w", err)
	}
	return id, hash, nil
}

// CreateToken stores a bearer token for a user.
func (r *SQLiteRepository) CreateToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tokens (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

// UserIDForToken resolves a bearer token to a user id, rejecting expired tokens.
func (r *SQLiteRepository) UserIDForToken(ctx context.Context, token string, now time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM tokens WHERE token = ? AND expires_at > ?`,
		token, now.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve token: %w", err)
	}
	return id, nil
}

// DeleteExpiredTokens removes tokens past their expiry.
func (r *SQLiteRepository) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens count: %w", err)
	}
	return n, nil
}

// DayRecordsFrom returns a user's day records dated at or after from,
// ordered by date.
func (r *SQLiteRepository) DayRecordsFrom(ctx context.Context, userID int64, from time.Time) ([]core.DayRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, events, working_day FROM day_records
		 WHERE user_id = ? AND date >= ? ORDER BY date`,
		userID, from.UTC().Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("get day records: %w", err)
	}
	defer rows.Close()

	var days []core.DayRecord
	for rows.Next() {
		var dateStr, eventsJSON string
		var workingDay bool
		if err := rows.Scan(&dateStr, &eventsJSON, &workingDay); err != nil {
			return nil, fmt.Errorf("scan day record: %w", err)
		}
		date, err := time.ParseInLocation(dateLayout, dateStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse day record date %q: %w", dateStr, err)
		}
		var events []core.Event
		if err := json.Unmarshal([]byte(eventsJSON), &events); err != nil {
			return nil, fmt.Errorf("decode events for %s: %w", dateStr, err)
		}
		if events == nil {
			events = []core.Event{}
		}
		days = append(days, core.DayRecord{Date: date, Events: events, WorkingDay: workingDay})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day records: %w", err)
	}
	return days, nil
}

// AllDayRecords returns every day record of a user, ordered by date.
func (r *SQLiteRepository) AllDayRecords(ctx context.Context, userID int64) ([]core.DayRecord, error) {
	return r.DayRecordsFrom(ctx, userID, time.Time{})
}

// ReplaceDayRecordsFrom deletes a user's records dated at or after from and
// inserts the given days in their place, in one transaction. Records before
// from are untouched.
func (r *SQLiteRepository) ReplaceDayRecordsFrom(ctx context.Context, userID int64, from time.Time, days []core.DayRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace day records: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM day_records WHERE user_id = ? AND date >= ?`,
		userID, from.UTC().Format(dateLayout)); err != nil {
		return fmt.Errorf("delete window day records: %w", err)
	}

	for _, d := range days {
		if d.IsPadding() {
			continue
		}
		eventsJSON, err := json.Marshal(d.Events)
		if err != nil {
			return fmt.Errorf("encode events: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO day_records (user_id, date, events, working_day, updated_at)
			 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(user_id, date) DO UPDATE SET
			   events = excluded.events,
			   working_day = excluded.working_day,
			   updated_at = CURRENT_TIMESTAMP`,
			userID, d.Date.UTC().Format(dateLayout), string(eventsJSON), d.WorkingDay); err != nil {
			return fmt.Errorf("insert day record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace day records: %w", err)
	}

	slog.InfoContext(ctx, "Day records replaced",
		"user_id", userID,
		"from", from.UTC().Format(dateLayout),
		"count", len(days))
	return nil
}

// TransitInformation returns a user's transit data. The second return value
// reports whether a row exists; a user who never set a unit price gets the
// zero value and false, not an error. Callers that price commutes must treat
// the missing row as "no fare data yet", not as a free ride.
func (r *SQLiteRepository) TransitInformation(ctx context.Context, userID int64) (core.TransitInformation, bool, error) {
	var info core.TransitInformation
	err := r.db.QueryRowContext(ctx,
		`SELECT unit_price, last_modified FROM transit_information WHERE user_id = ?`,
		userID).Scan(&info.UnitPrice, &info.LastModified)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TransitInformation{}, false, nil
	}
	if err != nil {
		return core.TransitInformation{}, false, fmt.Errorf("get transit information: %w", err)
	}
	return info, true, nil
}

// UpsertTransitInformation sets a user's commute unit price and refreshes
// the last-modified time.
func (r *SQLiteRepository) UpsertTransitInformation(ctx context.Context, userID int64, unitPrice int, modified time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transit_information (user_id, unit_price, last_modified)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   unit_price = excluded.unit_price,
		   last_modified = excluded.last_modified`,
		userID, unitPrice, modified.UTC())
	if err != nil {
		return fmt.Errorf("upsert transit information: %w", err)
	}
	return nil
}

// TouchTransitLastModified refreshes the last-modified time after a calendar
// save without changing the unit price.
func (r *SQLiteRepository) TouchTransitLastModified(ctx context.Context, userID int64, modified time.Time) error {
	// Update only. Creating a zero-price row here would make a user who
	// saved days but never set a unit price look like they ride for free.
	_, err := r.db.ExecContext(ctx,
		`UPDATE transit_information SET last_modified = ? WHERE user_id = ?`,
		modified.UTC(), userID)
	if err != nil {
		return fmt.Errorf("touch transit last modified: %w", err)
	}
	return nil
}

// MonthlyStat is one precomputed month of commute and snack aggregates.
type MonthlyStat struct {
	Month           core.MonthKey `json:"month"`
	CommuteCount    int           `json:"commuteCount"`
	WalkCount       int           `json:"walkCount"`
	CommuteCost     int           `json:"commuteCost"`
	GeekSeekTimes   int           `json:"geekSeekTimes"`
	GeekSeekAmounts int           `json:"geekSeekAmounts"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// UpsertMonthlyStat stores one month's aggregates for a user.
func (r *SQLiteRepository) UpsertMonthlyStat(ctx context.Context, userID int64, stat MonthlyStat) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO monthly_stats
		   (user_id, month, commute_count, walk_count, commute_cost, geek_seek_times, geek_seek_amounts, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id, month) DO UPDATE SET
		   commute_count = excluded.commute_count,
		   walk_count = excluded.walk_count,
		   commute_cost = excluded.commute_cost,
		   geek_seek_times = excluded.geek_seek_times,
		   geek_seek_amounts = excluded.geek_seek_amounts,
		   updated_at = CURRENT_TIMESTAMP`,
		userID, string(stat.Month), stat.CommuteCount, stat.WalkCount,
		stat.CommuteCost, stat.GeekSeekTimes, stat.GeekSeekAmounts)
	if err != nil {
		return fmt.Errorf("upsert monthly stat for %s: %w", stat.Month, err)
	}
	return nil
}

// MonthlyStats returns a user's precomputed aggregates, newest month first.
func (r *SQLiteRepository) MonthlyStats(ctx context.Context, userID int64) ([]MonthlyStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT month, commute_count, walk_count, commute_cost,
		        geek_seek_times, geek_seek_amounts, updated_at
		 FROM monthly_stats WHERE user_id = ? ORDER BY month DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("get monthly stats: %w", err)
	}
	defer rows.Close()

	var stats []MonthlyStat
	for rows.Next() {
		var s MonthlyStat
		var month string
		if err := rows.Scan(&month, &s.CommuteCount, &s.WalkCount, &s.CommuteCost,
			&s.GeekSeekTimes, &s.GeekSeekAmounts, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan monthly stat: %w", err)
		}
		s.Month = core.MonthKey(month)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monthly stats: %w", err)
	}
	return stats, nil
}

// UserIDs lists every account id, for the stats worker's sweep.
func (r *SQLiteRepository) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return ids, nil
}

// Username resolves a user id back to its username.
func (r *SQLiteRepository) Username(ctx context.Context, userID int64) (string, error) {
	var username string
	err := r.db.QueryRowContext(ctx,
		`SELECT username FROM users WHERE id = ?`, userID).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get username: %w", err)
	}
	return username, nil
}
