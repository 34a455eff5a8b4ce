// Package api exposes the play statistics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/dedupe"
	"github.com/okian/playstats/internal/domain/model"
	"github.com/okian/playstats/internal/domain/types"
	"github.com/okian/playstats/pkg/logger"
)

const defaultMaxLimit = 100

// Dependencies required by HTTP handlers.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes an event for async accrual. Returns false on backpressure.
	Enqueue(ctx context.Context, e model.PlayEvent) bool

	TopGroups(ctx context.Context, k int) ([]Entry, error)
	GroupRank(ctx context.Context, index int) (Entry, error)
	GroupCount(ctx context.Context, group model.GroupID) (int64, error)
	AddTestData(ctx context.Context, group model.GroupID) (int64, error)
	RecentPlays(ctx context.Context, group model.GroupID, limit int) ([]model.PlayRecord, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the play statistics API.
type Server struct {
	deps      Dependencies
	stats     StatsProvider
	authorize Authorizer
	maxLimit  int
	accessLog io.Writer
	logger    logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMaxLimit caps the leaderboard page size.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithAuthorizer gates the administrative routes.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Server) {
		if a != nil {
			s.authorize = a
		}
	}
}

// WithAccessLog writes Apache style access logs to w.
func WithAccessLog(w io.Writer) Option {
	return func(s *Server) {
		s.accessLog = w
	}
}

// NewServer creates an API server. Without WithAuthorizer every admin
// request is denied.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:      deps,
		stats:     stats,
		authorize: DenyAll,
		maxLimit:  defaultMaxLimit,
		logger:    logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router registers every route on a new router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware)

	r.HandleFunc("/healthz", HandleHealth).Methods(http.MethodGet).Name("healthz")
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet).Name("stats")
	r.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet).Name("leaderboard")
	r.HandleFunc("/rank/{index}", s.handleRank).Methods(http.MethodGet).Name("rank")
	r.HandleFunc("/groups/{group_id}", s.handleGroup).Methods(http.MethodGet).Name("group")
	r.HandleFunc("/groups/{group_id}/plays", s.handleGroupPlays).Methods(http.MethodGet).Name("group_plays")
	r.HandleFunc("/groups/{group_id}/plays", s.requireAdmin(s.handleAddTestData)).Methods(http.MethodPost).Name("admin_plays")
	r.HandleFunc("/plays", s.handlePostPlay).Methods(http.MethodPost).Name("plays")

	return r
}

// Handler returns the router behind panic recovery and, when configured,
// access logging.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router()
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, h)
	}
	return h
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	EventID   string `json:"event_id,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps domain errors onto HTTP statuses.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case repository.IsUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

type recoveryLogger struct {
	logger logger.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error(context.Background(), "handler panic", logger.Any("panic", v))
}
