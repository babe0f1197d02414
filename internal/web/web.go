package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"bookcal/internal/cache"
	"bookcal/internal/calendar"
	"bookcal/internal/config"
	appLog "bookcal/internal/log"
	"bookcal/internal/snapshot"
)

// Refresher triggers an immediate booking refetch.
type Refresher interface {
	Refresh(ctx context.Context) (snapshot.Snapshot, error)
}

// Server exposes the month layout, statistics and booking lists computed
// from the current snapshot.
type Server struct {
	cfg       *config.Config
	store     *snapshot.Store
	refresher Refresher
	cache     cache.Cache
	cacheTTL  time.Duration
	loc       *time.Location
	weekStart time.Weekday
	mux       *http.ServeMux

	// now is replaceable in tests.
	now func() time.Time
}

// NewServer constructs a Server. A nil cache disables response caching.
func NewServer(cfg *config.Config, store *snapshot.Store, refresher Refresher, c cache.Cache) *Server {
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}

	s := &Server{
		cfg:       cfg,
		store:     store,
		refresher: refresher,
		cache:     c,
		cacheTTL:  cfg.Redis.TTL(),
		loc:       loc,
		weekStart: cfg.FirstWeekday(),
		mux:       http.NewServeMux(),
		now:       time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped in Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("http shutdown failed", err)
		}
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// empty username or password means disabled
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="bookcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/usage", s.handleUsage)
	s.mux.HandleFunc("GET /api/bookings", s.handleBookings)
	s.mux.HandleFunc("GET /api/accounts", s.handleAccounts)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// view builds the ViewState of the request's year/month, defaulting to the
// current month.
func (s *Server) view(r *http.Request) (calendar.ViewState, error) {
	v := calendar.NewViewState(s.now(), s.loc).WithWeekStart(s.weekStart)
	y, m, err := parseYearMonth(r.URL.Query(), v.Year, v.Month)
	if err != nil {
		return v, err
	}
	v.Year, v.Month = y, m
	return v, nil
}

// cached serves key from the cache or computes, stores and serves it.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, key string, compute func() any) {
	ctx := r.Context()
	if s.cache != nil {
		if body, ok := s.cache.Get(ctx, key); ok {
			w.Header().Set("X-Cache", "HIT")
			writeRawJSON(w, http.StatusOK, body)
			return
		}
	}

	body, err := json.Marshal(compute())
	if err != nil {
		appLog.Error("failed to encode response", err, "key", key)
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, body, s.cacheTTL)
		w.Header().Set("X-Cache", "MISS")
	}
	writeRawJSON(w, http.StatusOK, body)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
