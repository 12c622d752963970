// Package api provides the HTTP API over stored runs.
// GET endpoints are public (read-only history).
// POST /api/v1/runs requires a bearer token and runs a simulation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/flatten-sim/internal/engine"
	"github.com/talgya/flatten-sim/internal/persistence"
	"github.com/talgya/flatten-sim/internal/schedule"
)

// maxBodyBytes caps a run submission.
const maxBodyBytes = 64 << 10

// Store is the subset of persistence.DB the server reads and writes.
type Store interface {
	SaveRun(run *persistence.Run) error
	GetRun(id string) (*persistence.Run, error)
	FindRunsWithDefault(f persistence.Filter) ([]persistence.Run, error)
	TeamNames() ([]persistence.TeamName, error)
	CountRuns() (int, error)
}

// RunRequest is the body of POST /api/v1/runs.
type RunRequest struct {
	Team      string            `json:"team"`
	Region    string            `json:"region"`
	Locale    string            `json:"locale"`
	Weeks     int               `json:"weeks"`
	Seed      int64             `json:"seed"`
	Decisions []schedule.Weekly `json:"decisions"` // player's weekly decisions, activity order
}

// Validate rejects decisions outside [0, 7] before they reach the scheduler.
func (r RunRequest) Validate() error {
	if strings.TrimSpace(r.Region) == "" {
		return errors.New("region is required")
	}
	if r.Weeks < 0 {
		return fmt.Errorf("weeks must be non-negative, got %d", r.Weeks)
	}
	for i, w := range r.Decisions {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("week %d: %w", i+1, err)
		}
	}
	return nil
}

// Runner executes a validated request and returns the unsaved run.
type Runner func(ctx context.Context, req RunRequest) (*persistence.Run, error)

// ErrBadRequest marks runner failures caused by the request, such as an
// unknown region.
var ErrBadRequest = errors.New("bad run request")

// Server serves stored runs over HTTP.
type Server struct {
	Store         Store
	Runner        Runner
	Port          int
	AdminKey      string // Bearer token for POST endpoints. Empty = POST disabled.
	RatePerMinute int
	Version       string

	started time.Time
	running atomic.Int32 // runs in flight
	limiter *RateLimiter
	srv     *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	if s.limiter == nil {
		rate := s.RatePerMinute
		if rate <= 0 {
			rate = 6
		}
		s.limiter = NewRateLimiter(rate, time.Minute)
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRunDetail)
	mux.HandleFunc("GET /api/v1/teams", s.handleTeams)

	// Admin endpoint (POST, requires bearer token).
	mux.HandleFunc("POST /api/v1/runs", RateLimitMiddleware(s.limiter, s.adminOnly(s.handleCreateRun)))

	return corsMiddleware(mux)
}

// Start binds the port and serves the HTTP API in a goroutine. A bind
// failure is returned instead of logged.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", ln.Addr().String(), "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:8080": true,
		"http://localhost:5173": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no FLATTEN_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Store.CountRuns()
	if err != nil {
		slog.Error("count runs failed", "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"name":       "flatten-sim",
		"version":    s.Version,
		"runs":       runs,
		"running":    s.running.Load(),
		"uptime_sec": int(time.Since(s.started).Seconds()),
		"accepting":  s.AdminKey != "" && s.Runner != nil,
	})
}

// runSummary is a run without its per-day stats.
type runSummary struct {
	ID        string                `json:"id"`
	Team      string                `json:"team"`
	Region    string                `json:"region"`
	Locale    string                `json:"locale"`
	Weeks     int                   `json:"weeks"`
	CreatedAt time.Time             `json:"created_at"`
	Capacity  int                   `json:"capacity"`
	Tracks    []engine.TrackSummary `json:"tracks"`
}

func summarize(run persistence.Run) runSummary {
	rs := runSummary{
		ID:        run.ID,
		Team:      run.Team,
		Region:    run.Region,
		Locale:    run.Locale,
		Weeks:     run.Weeks,
		CreatedAt: run.CreatedAt,
		Capacity:  run.Result.Capacity,
	}
	for _, t := range run.Result.Tracks {
		rs.Tracks = append(rs.Tracks, t.Summary())
	}
	return rs
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := persistence.Filter{
		Region: q.Get("region"),
		Team:   q.Get("team"),
		Locale: q.Get("locale"),
	}
	var err error
	if v := q.Get("weeks"); v != "" {
		if f.Weeks, err = strconv.Atoi(v); err != nil {
			http.Error(w, "invalid weeks", http.StatusBadRequest)
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
	}

	runs, err := s.Store.FindRunsWithDefault(f)
	if err != nil {
		slog.Error("find runs failed", "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	out := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, summarize(run))
	}
	writeJSON(w, out)
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	run, err := s.Store.GetRun(r.PathValue("id"))
	if errors.Is(err, persistence.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get run failed", "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	names, err := s.Store.TeamNames()
	if err != nil {
		slog.Error("team names failed", "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	if names == nil {
		names = []persistence.TeamName{}
	}
	writeJSON(w, names)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	if s.Runner == nil {
		http.Error(w, "run submission not configured", http.StatusServiceUnavailable)
		return
	}

	var req RunRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.running.Add(1)
	defer s.running.Add(-1)

	start := time.Now()
	run, err := s.Runner(r.Context(), req)
	if errors.Is(err, ErrBadRequest) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("run failed", "region", req.Region, "error", err)
		http.Error(w, "run failed", http.StatusInternalServerError)
		return
	}
	if err := s.Store.SaveRun(run); err != nil {
		slog.Error("save run failed", "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}

	slog.Info("run submitted",
		"id", run.ID,
		"team", run.Team,
		"region", run.Region,
		"weeks", run.Weeks,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	w.Header().Set("Location", "/api/v1/runs/"+run.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, summarize(*run))
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
