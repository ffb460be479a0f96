package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackmichael/caughtup/internal/domain"
)

// Service is the application surface the HTTP API exposes.
// domain.TimelineService implements it.
type Service interface {
	Timeline(ctx context.Context, limit int, cursor string) (*domain.TimelinePage, error)
	Thread(ctx context.Context, uri string, depth int) (*domain.ThreadView, error)
	Live(limit int) []domain.RenderedPost
	HideSpoilers(ctx context.Context) (bool, error)
	SetHideSpoilers(ctx context.Context, hide bool) error
}

// Server is the HTTP server for the filtered timeline API.
type Server struct {
	service    Service
	logger     *slog.Logger
	httpServer *http.Server
}

type timelineQuery struct {
	Limit  int    `json:"limit" validate:"min=1,max=100"`
	Cursor string `json:"cursor"`
}

type threadQuery struct {
	URI   string `json:"uri" validate:"required"`
	Depth int    `json:"depth" validate:"min=-1,max=6"`
}

type liveQuery struct {
	Limit int `json:"limit" validate:"min=1,max=100"`
}

type preferencesBody struct {
	HideSpoilers *bool `json:"hideSpoilers" validate:"required"`
}

type preferencesResponse struct {
	HideSpoilers bool `json:"hideSpoilers"`
}

// NewServer creates a new HTTP server listening on port.
func NewServer(port int, service Service, logger *slog.Logger) *Server {
	s := &Server{
		service: service,
		logger:  logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      withLogging(logger, s.Handler()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/timeline", s.handleTimeline)
	mux.HandleFunc("GET /api/thread", s.handleThread)
	mux.HandleFunc("GET /api/live", s.handleLive)
	mux.HandleFunc("GET /api/preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/preferences", s.handlePutPreferences)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 30)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	q := timelineQuery{Limit: limit, Cursor: r.URL.Query().Get("cursor")}
	if err := validateStruct(q); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	page, err := s.service.Timeline(r.Context(), q.Limit, q.Cursor)
	if err != nil {
		s.writeServiceError(w, "failed to get timeline", err, "limit", q.Limit, "cursor", q.Cursor)
		return
	}

	s.logger.Info("timeline request", "limit", q.Limit, "returned", len(page.Items), "hidden", page.Hidden)
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	depth, err := intParam(r, "depth", -1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	q := threadQuery{URI: r.URL.Query().Get("uri"), Depth: depth}
	if err := validateStruct(q); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if _, err := syntax.ParseATURI(q.URI); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "uri must be an AT-URI")
		return
	}

	view, err := s.service.Thread(r.Context(), q.URI, q.Depth)
	if err != nil {
		s.writeServiceError(w, "failed to get thread", err, "uri", q.URI)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 30)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	q := liveQuery{Limit: limit}
	if err := validateStruct(q); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"posts": s.service.Live(q.Limit)})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	hide, err := s.service.HideSpoilers(r.Context())
	if err != nil {
		s.writeServiceError(w, "failed to get preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{HideSpoilers: hide})
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	body, err := parseJSON[preferencesBody](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if err := s.service.SetHideSpoilers(r.Context(), *body.HideSpoilers); err != nil {
		s.writeServiceError(w, "failed to save preferences", err)
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{HideSpoilers: *body.HideSpoilers})
}

// writeServiceError maps domain errors to XRPC-style error responses.
func (s *Server) writeServiceError(w http.ResponseWriter, msg string, err error, args ...any) {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		s.logger.Warn(msg, append(args, "error", err)...)
		writeError(w, http.StatusUnauthorized, "AuthRequired", "session is missing or expired")
	case errors.Is(err, domain.ErrPostNotFound):
		writeError(w, http.StatusNotFound, "NotFound", "post not found")
	default:
		s.logger.Error(msg, append(args, "error", err)...)
		writeError(w, http.StatusBadGateway, "UpstreamFailure", msg)
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
