// Package http is the JSON API surface of the calendar service.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"andvaranaut/internal/cache"
	applog "andvaranaut/internal/log"
	"andvaranaut/internal/middleware/ratelimit"
	"andvaranaut/internal/middleware/security"
	"andvaranaut/internal/middleware/trace"
	"andvaranaut/internal/storage"
)

const statsCacheTTL = 5 * time.Minute

type Server struct {
	http.Server

	repo      Repository
	auth      *Authenticator
	publisher CalendarPublisher

	limiter      *ratelimit.Limiter
	statsCache   *cache.LRUCache[[]storage.MonthlyStat]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. publisher may be nil when no broker is configured.
func NewServer(addr string, repo Repository, auth *Authenticator, publisher CalendarPublisher) *Server {
	mux := http.NewServeMux()

	s := &Server{
		repo:         repo,
		auth:         auth,
		publisher:    publisher,
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		statsCache:   cache.NewLRUCache[[]storage.MonthlyStat](1000, statsCacheTTL),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.statsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/authenticate", s.handleAuthenticate)
	mux.HandleFunc("/api/date_events", s.withAuth(s.handleDateEvents))
	mux.HandleFunc("/api/transit_information", s.withAuth(s.handleTransitInformation))
	mux.HandleFunc("/api/monthly_stats", s.withAuth(s.handleMonthlyStats))

	tracer := trace.NewMiddleware(clientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	requests := applog.RequestLogger(applog.New(applog.DefaultConfig()), clientIP)

	handler := tracer.Middleware(requests(headers.Middleware(s.withRateLimit(mux))))

	s.Server = http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Shutdown stops the HTTP server and the background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRateLimit applies the per-IP limiter to mutating requests only:
// calendar reads are frequent and cheap, saves are debounced client-side
// and should stay that way.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			if !s.limiter.Allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

var ipExtractor = security.NewClientIPExtractor()

// clientIP extracts the client address. Proxy headers are honored only
// when the peer is a trusted proxy.
func clientIP(r *http.Request) string {
	return ipExtractor.ExtractClientIP(r)
}

func (s *Server) statsCacheKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func (s *Server) invalidateStats(userID int64) {
	s.statsCache.Delete(s.statsCacheKey(userID))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
