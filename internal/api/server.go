// Package api is the read-only admin HTTP surface of the relay.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SoCo-NP/SoCo/pkg/interfaces"
	"github.com/SoCo-NP/SoCo/pkg/types"
)

// Options carries the optional parts of the admin server
type Options struct {
	Journal  interfaces.Journal  // nil: /api/events answers 404 and health reports "disabled"
	RunID    string              // journal run shown by /api/events
	Gatherer prometheus.Gatherer // nil: /metrics is not served
}

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components.
// Clean separation - no business logic, only HTTP handling and JSON serialization
type Server struct {
	roster  interfaces.RosterProvider
	locks   interfaces.LockInspector
	opts    Options
	router  *http.ServeMux
	started time.Time
}

// NewServer wires the admin routes
func NewServer(roster interfaces.RosterProvider, locks interfaces.LockInspector, opts Options) *Server {
	s := &Server{
		roster:  roster,
		locks:   locks,
		opts:    opts,
		router:  http.NewServeMux(),
		started: time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	s.router.Handle("/api/roster", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.listRoster))))
	s.router.Handle("/api/locks", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.listLocks))))
	s.router.Handle("/api/events", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.listEvents))))
	if s.opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
}

// FUNCTIONAL DISCOVERY: Implement http.Handler interface for integration with standard HTTP server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type HealthResponse struct {
	Status   string    `json:"status"`
	Sessions int       `json:"sessions"`
	Journal  string    `json:"journal"`
	Uptime   string    `json:"uptime"`
	Time     time.Time `json:"timestamp"`
}

type RosterEntry struct {
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}

type LockEntry struct {
	Path   types.VirtualPath `json:"path"`
	Holder string            `json:"holder"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FUNCTIONAL DISCOVERY: GET /health - relay liveness plus journal connectivity
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		Status:   "ok",
		Sessions: s.roster.SessionCount(),
		Journal:  "disabled",
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Time:     time.Now(),
	}

	if s.opts.Journal != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp.Journal = "ok"
		if err := s.opts.Journal.HealthCheck(ctx); err != nil {
			resp.Status = "degraded"
			resp.Journal = fmt.Sprintf("error: %v", err)
		}
	}

	// FUNCTIONAL DISCOVERY: Return 503 if any component is unhealthy
	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	s.encode(w, resp)
}

// GET /api/roster - joined participants in connection order
func (s *Server) listRoster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	participants := s.roster.Roster()
	out := make([]RosterEntry, 0, len(participants))
	for _, p := range participants {
		out = append(out, RosterEntry{Nickname: p.Nickname, Role: p.Role.String()})
	}
	s.encode(w, out)
}

// GET /api/locks - compile locks sorted by path
func (s *Server) listLocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	locks := s.locks.Locks()
	out := make([]LockEntry, 0, len(locks))
	for path, holder := range locks {
		out = append(out, LockEntry{Path: path, Holder: holder})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	s.encode(w, out)
}

// GET /api/events - journal entries of the running relay
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.opts.Journal == nil {
		s.sendError(w, "Journal disabled", http.StatusNotFound)
		return
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		runID = s.opts.RunID
	}

	events, err := s.opts.Journal.Events(r.Context(), runID)
	if err != nil {
		log.Printf("Journal read failed: run=%s error=%v", runID, err)
		s.sendError(w, "Failed to read journal", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*types.Event{}
	}
	s.encode(w, events)
}

func (s *Server) encode(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Response encoding failed: %v", err)
	}
}

// FUNCTIONAL DISCOVERY: Consistent error response format
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	s.encode(w, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// ARCHITECTURAL DISCOVERY: CORS middleware enables dashboards served from other origins
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// FUNCTIONAL DISCOVERY: JSON middleware ensures proper content-type headers
func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
