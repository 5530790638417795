package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"andvaranaut/internal/core"
	"andvaranaut/internal/storage"
)

type authedHandler func(w http.ResponseWriter, r *http.Request, userID int64)

// withAuth resolves the bearer token before the handler runs.
func (s *Server) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, err := s.auth.Verify(r.Context(), token)
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "Token verification failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		next(w, r, userID)
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c credentialsRequest) validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return errors.New("username is required")
	}
	if len(c.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	userID, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		slog.ErrorContext(r.Context(), "Registration failed", "error", err, "username", req.Username)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": userID})
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expiresAt, err := s.auth.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Authentication failed", "error", err, "username", req.Username)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expiresAt.UTC(),
	})
}

func (s *Server) handleDateEvents(w http.ResponseWriter, r *http.Request, userID int64) {
	month, err := core.ParseMonthKey(r.URL.Query().Get("currentMonth"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "currentMonth must be YYYY-MM")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getDateEvents(w, r, userID, month)
	case http.MethodPost:
		s.postDateEvents(w, r, userID, month)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) getDateEvents(w http.ResponseWriter, r *http.Request, userID int64, month core.MonthKey) {
	gridStart := core.MonthGridStart(month, time.UTC)
	days, err := s.repo.DayRecordsFrom(r.Context(), userID, gridStart)
	if err != nil {
		slog.ErrorContext(r.Context(), "Day records read failed", "error", err, "user_id", userID, "month", month)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, dayPayloads(days))
}

// dayPayload and transitPayload render outgoing timestamps in the wire shape
// clients revive, UTC with millisecond precision. Plain time.Time marshaling
// would leak whatever precision storage happens to carry.
type dayPayload struct {
	Date       string       `json:"date"`
	Events     []core.Event `json:"events"`
	WorkingDay bool         `json:"workingDay"`
}

type transitPayload struct {
	UnitPrice    int    `json:"unitPrice"`
	LastModified string `json:"lastModified,omitempty"`
}

func dayPayloads(days []core.DayRecord) []dayPayload {
	out := make([]dayPayload, 0, len(days))
	for _, d := range days {
		p := dayPayload{
			Date:       core.FormatTimestamp(d.Date),
			Events:     d.Events,
			WorkingDay: d.WorkingDay,
		}
		if p.Events == nil {
			p.Events = []core.Event{}
		}
		out = append(out, p)
	}
	return out
}

func (s *Server) postDateEvents(w http.ResponseWriter, r *http.Request, userID int64, month core.MonthKey) {
	var incoming []core.DayRecord
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	days := make([]core.DayRecord, 0, len(incoming))
	for _, d := range incoming {
		if d.IsPadding() {
			continue
		}
		for _, e := range d.Events {
			if !e.Type.Valid() {
				writeError(w, http.StatusUnprocessableEntity, "unknown event category: "+string(e.Type))
				return
			}
		}
		// Clients normalize before saving; doing it again here keeps the
		// slot invariants true no matter who talks to the API.
		d.Events = core.NormalizeDayEvents(d.Events)
		days = append(days, d)
	}

	gridStart := core.MonthGridStart(month, time.UTC)
	if err := s.repo.ReplaceDayRecordsFrom(r.Context(), userID, gridStart, days); err != nil {
		slog.ErrorContext(r.Context(), "Day records write failed", "error", err, "user_id", userID, "month", month)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := s.repo.TouchTransitLastModified(r.Context(), userID, time.Now()); err != nil {
		slog.ErrorContext(r.Context(), "Transit touch failed", "error", err, "user_id", userID)
	}

	s.invalidateStats(userID)

	if s.publisher != nil {
		if err := s.publisher.PublishCalendarSaved(r.Context(), userID, month); err != nil {
			slog.WarnContext(r.Context(), "Calendar saved publish failed", "error", err, "user_id", userID, "month", month)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"saved": len(days)})
}

func (s *Server) handleTransitInformation(w http.ResponseWriter, r *http.Request, userID int64) {
	switch r.Method {
	case http.MethodGet:
		info, _, err := s.repo.TransitInformation(r.Context(), userID)
		if err != nil {
			slog.ErrorContext(r.Context(), "Transit read failed", "error", err, "user_id", userID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		payload := transitPayload{UnitPrice: info.UnitPrice}
		if !info.LastModified.IsZero() {
			payload.LastModified = core.FormatTimestamp(info.LastModified)
		}
		writeJSON(w, http.StatusOK, payload)

	case http.MethodPut:
		var req struct {
			UnitPrice int `json:"unitPrice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UnitPrice < 0 {
			writeError(w, http.StatusUnprocessableEntity, "unitPrice must not be negative")
			return
		}
		if err := s.repo.UpsertTransitInformation(r.Context(), userID, req.UnitPrice, time.Now()); err != nil {
			slog.ErrorContext(r.Context(), "Transit write failed", "error", err, "user_id", userID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		s.invalidateStats(userID)
		writeJSON(w, http.StatusOK, map[string]any{"unitPrice": req.UnitPrice})

	default:
		methodNotAllowed(w, "GET, PUT")
	}
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request, userID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	monthFilter := r.URL.Query().Get("month")
	if monthFilter != "" {
		if _, err := core.ParseMonthKey(monthFilter); err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
	}

	key := s.statsCacheKey(userID)
	stats, found := s.statsCache.Get(key)
	if !found {
		var err error
		stats, err = s.repo.MonthlyStats(r.Context(), userID)
		if err != nil {
			slog.ErrorContext(r.Context(), "Monthly stats read failed", "error", err, "user_id", userID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if stats == nil {
			stats = []storage.MonthlyStat{}
		}
		s.statsCache.Set(key, stats)
	}

	if monthFilter != "" {
		filtered := []storage.MonthlyStat{}
		for _, stat := range stats {
			if stat.Month == core.MonthKey(monthFilter) {
				filtered = append(filtered, stat)
			}
		}
		stats = filtered
	}
	writeJSON(w, http.StatusOK, statPayloads(stats))
}

type statPayload struct {
	Month           core.MonthKey `json:"month"`
	CommuteCount    int           `json:"commuteCount"`
	WalkCount       int           `json:"walkCount"`
	CommuteCost     int           `json:"commuteCost"`
	GeekSeekTimes   int           `json:"geekSeekTimes"`
	GeekSeekAmounts int           `json:"geekSeekAmounts"`
	UpdatedAt       string        `json:"updatedAt"`
}

func statPayloads(stats []storage.MonthlyStat) []statPayload {
	out := make([]statPayload, 0, len(stats))
	for _, s := range stats {
		out = append(out, statPayload{
			Month:           s.Month,
			CommuteCount:    s.CommuteCount,
			WalkCount:       s.WalkCount,
			CommuteCost:     s.CommuteCost,
			GeekSeekTimes:   s.GeekSeekTimes,
			GeekSeekAmounts: s.GeekSeekAmounts,
			UpdatedAt:       core.FormatTimestamp(s.UpdatedAt),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encoding failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
