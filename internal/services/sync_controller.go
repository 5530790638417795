package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"andvaranaut/internal/core"
	"andvaranaut/internal/remote"

	"golang.org/x/sync/errgroup"
)

// SyncControllerConfig holds configuration for the sync controller.
type SyncControllerConfig struct {
	// DebounceDelay is how long after the last edit a persist is attempted
	// (default: 3s). Every edit inside the window restarts it.
	DebounceDelay time.Duration

	// LookaheadDays is the trailing-buffer threshold: when the last loaded
	// day is within this many days of now, one synthetic week is appended
	// on load (default: 16).
	LookaheadDays int

	// SaveTimeout bounds a single save request (default: 30s).
	SaveTimeout time.Duration
}

// DefaultSyncControllerConfig returns sensible defaults.
func DefaultSyncControllerConfig() SyncControllerConfig {
	return SyncControllerConfig{
		DebounceDelay: 3 * time.Second,
		LookaheadDays: 16,
		SaveTimeout:   30 * time.Second,
	}
}

// SyncController owns the authoritative local day array and drives the
// debounce-and-persist cycle against the remote gateway.
//
// Edits apply to the in-memory array synchronously and arm a single-slot
// debounce timer; rapid successive edits coalesce into one remote write of
// the latest state. Only one save is ever in flight: a commit that fires
// during a save is re-run when the save returns instead of overlapping it.
// A failed save keeps the optimistic local state authoritative until the
// next edit-triggered save or a full reload.
type SyncController struct {
	gateway remote.Gateway
	config  SyncControllerConfig

	mu      sync.Mutex
	token   string
	month   core.MonthKey
	days    []core.DayRecord
	transit *core.TransitInformation
	loaded  bool
	loadErr error
	saveErr error
	editing bool
	saving  bool
	rearm   bool
	timer   *time.Timer
	gen     int
	closed  bool
}

// NewSyncController creates a controller for one token/month identity.
func NewSyncController(gateway remote.Gateway, token string, month core.MonthKey, config SyncControllerConfig) *SyncController {
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = 3 * time.Second
	}
	if config.LookaheadDays <= 0 {
		config.LookaheadDays = 16
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = 30 * time.Second
	}
	return &SyncController{
		gateway: gateway,
		config:  config,
		token:   token,
		month:   month,
	}
}

// Load fetches the day window and the transit information, extends the day
// range with the trailing buffer and pads the grid to whole weeks. A missing
// token yields an empty calendar without error. A fetch failure is recorded
// and surfaced through Err; it is not retried here.
func (c *SyncController) Load(ctx context.Context) error {
	c.mu.Lock()
	token, month := c.token, c.month
	gen := c.gen
	c.mu.Unlock()

	var (
		days    []core.DayRecord
		transit core.TransitInformation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		days, err = c.gateway.CalendarEvents(gctx, token, month)
		return err
	})
	g.Go(func() error {
		var err error
		transit, err = c.gateway.TransitInformation(gctx, token)
		return err
	})
	err := g.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return nil
	}
	if err != nil {
		c.loadErr = fmt.Errorf("load calendar: %w", err)
		c.loaded = false
		slog.ErrorContext(ctx, "Calendar load failed", "month", month, "error", err)
		return c.loadErr
	}

	days = core.EnsureTrailingBuffer(days, c.config.LookaheadDays, time.Now())
	c.days = core.PadToWeeks(days)
	if token != "" {
		c.transit = &transit
	} else {
		c.transit = nil
	}
	c.loaded = true
	c.loadErr = nil
	c.editing = false

	slog.InfoContext(ctx, "Calendar loaded",
		"month", month,
		"days", len(c.days),
		"has_token", token != "")
	return nil
}

// UpdateDay normalizes the requested event set and replaces the day at index
// with an immutable copy, then arms the debounce timer. The requested slice
// is the full desired post-edit state of the day, not a delta.
func (c *SyncController) UpdateDay(index int, requested []core.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkIndexLocked(index); err != nil {
		return err
	}
	day := c.days[index]
	day.Events = core.NormalizeDayEvents(requested)
	c.replaceDayLocked(index, day)
	return nil
}

// ClearDay empties the day at index (the clear action is an edit to the
// empty set).
func (c *SyncController) ClearDay(index int) error {
	return c.UpdateDay(index, nil)
}

// SetWorkingDay flips the work-attendance flag of the day at index.
func (c *SyncController) SetWorkingDay(index int, working bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkIndexLocked(index); err != nil {
		return err
	}
	day := c.days[index]
	day.WorkingDay = working
	c.replaceDayLocked(index, day)
	return nil
}

// Days returns a snapshot copy of the current day array.
func (c *SyncController) Days() []core.DayRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.DayRecord, len(c.days))
	copy(out, c.days)
	return out
}

// Transit returns the loaded transit information, or nil before the first
// successful load or without a token.
func (c *SyncController) Transit() *core.TransitInformation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transit == nil {
		return nil
	}
	t := *c.transit
	return &t
}

// Status reports the visible editing/saving state.
func (c *SyncController) Status() core.SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return core.SyncStatus{Editing: c.editing, Saving: c.saving}
}

// Err returns the load error, if the initial fetch failed.
func (c *SyncController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// LastSaveErr returns the error of the most recent save attempt, nil after a
// successful one.
func (c *SyncController) LastSaveErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveErr
}

// Flush saves pending edits immediately, bypassing the debounce window. When
// a save is already in flight the latest state is scheduled to follow it and
// Flush returns without blocking.
func (c *SyncController) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.stopTimerLocked()
	if c.saving {
		c.rearm = true
		c.mu.Unlock()
		return nil
	}
	if !c.editing {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	token, month, snapshot := c.token, c.month, c.days
	c.editing = false
	c.saving = true
	c.mu.Unlock()

	return c.finishSave(ctx, gen, token, month, snapshot)
}

// Reset cancels any pending debounce, abandons the result of an in-flight
// save and rebinds the controller to a new token identity. The caller must
// Load again afterwards.
func (c *SyncController) Reset(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.stopTimerLocked()
	c.token = token
	c.days = nil
	c.transit = nil
	c.loaded = false
	c.loadErr = nil
	c.saveErr = nil
	c.editing = false
	c.saving = false
	c.rearm = false
}

// Close tears the controller down: the pending debounce is cancelled and no
// save fires afterwards; an in-flight save completes but its result is
// dropped.
func (c *SyncController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	c.stopTimerLocked()
}

func (c *SyncController) checkIndexLocked(index int) error {
	if !c.loaded {
		return fmt.Errorf("calendar not loaded")
	}
	if index < 0 || index >= len(c.days) {
		return fmt.Errorf("day index %d out of range [0,%d)", index, len(c.days))
	}
	return nil
}

// replaceDayLocked swaps in a whole new backing array so concurrent readers
// holding an earlier snapshot keep observing a consistent state.
func (c *SyncController) replaceDayLocked(index int, day core.DayRecord) {
	next := make([]core.DayRecord, len(c.days))
	copy(next, c.days)
	next[index] = day
	c.days = next
	c.armDebounceLocked()
}

// armDebounceLocked restarts the single-slot debounce timer. Each edit burst
// ends in exactly one commit.
func (c *SyncController) armDebounceLocked() {
	if c.closed {
		return
	}
	c.editing = true
	c.stopTimerLocked()
	gen := c.gen
	c.timer = time.AfterFunc(c.config.DebounceDelay, func() {
		c.commit(gen)
	})
}

func (c *SyncController) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// commit runs when the debounce window elapses without another edit.
func (c *SyncController) commit(gen int) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.saving {
		// A save is still in flight; run again once it returns rather than
		// overlapping it.
		c.rearm = true
		c.mu.Unlock()
		return
	}
	token, month, snapshot := c.token, c.month, c.days
	c.editing = false
	c.saving = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.config.SaveTimeout)
	defer cancel()
	if err := c.finishSave(ctx, gen, token, month, snapshot); err != nil {
		slog.ErrorContext(ctx, "Debounced save failed", "month", month, "error", err)
	}
}

// finishSave performs the remote write and folds the result back in, unless
// the controller identity changed while the request was in flight.
func (c *SyncController) finishSave(ctx context.Context, gen int, token string, month core.MonthKey, snapshot []core.DayRecord) error {
	err := c.gateway.SaveCalendarEvents(ctx, token, month, snapshot)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.saving = false
	c.saveErr = err
	if err == nil && c.transit != nil {
		t := *c.transit
		t.LastModified = time.Now()
		c.transit = &t
	}
	doRearm := c.rearm
	c.rearm = false
	c.mu.Unlock()

	if err == nil {
		slog.InfoContext(ctx, "Calendar saved", "month", month, "days", len(snapshot))
	}
	if doRearm {
		// Edits queued behind the in-flight save still want persisting,
		// whether or not this save made it.
		c.commit(gen)
	}
	if err != nil {
		// Local optimistic state stays authoritative; the data rides along
		// with the next edit-triggered save or reload.
		return fmt.Errorf("save calendar: %w", err)
	}
	return nil
}
