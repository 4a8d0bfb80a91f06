package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"

	"github.com/aretw0/tops/internal/logging"
	"github.com/aretw0/tops/internal/presentation/graph"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/statechart"
)

// Sessions is the session API the server drives. *session.Manager implements it.
type Sessions interface {
	Chart() *statechart.Chart
	Root() string
	Load(ctx context.Context, sessionID string) (*domain.Snapshot, error)
	Inspect(ctx context.Context, sessionID string) (*domain.Snapshot, []statechart.ActiveTrigger, error)
	Transition(ctx context.Context, sessionID string, fn func(context.Context, *statechart.Machine) error) (before, after *domain.Snapshot, err error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
}

// StateRequest is the body of POST /sessions/{id}/state. Exactly one field is set.
type StateRequest struct {
	Request string `json:"request,omitempty"`
	Trigger string `json:"trigger,omitempty"`
}

// SessionResponse describes a session after a read or a transition.
type SessionResponse struct {
	SessionID   string                     `json:"session_id,omitempty"`
	Current     string                     `json:"current"`
	History     map[string]string          `json:"history,omitempty"`
	Transitions int                        `json:"transitions"`
	Path        []string                   `json:"path"`
	Triggers    []statechart.ActiveTrigger `json:"triggers"`
}

// ChartResponse describes the compiled chart.
type ChartResponse struct {
	Root   string               `json:"root"`
	States []domain.Declaration `json:"states"`
}

// Server serves the statechart API.
type Server struct {
	Sessions Sessions
	Streams  *StreamManager

	api     *openapi3.T
	version string
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithMetrics mounts h (typically a Prometheus handler) at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates the HTTP handler. It fails only if the embedded API document is invalid.
func NewHandler(sessions Sessions, opts ...Option) (http.Handler, error) {
	api, err := LoadAPI(context.Background())
	if err != nil {
		return nil, err
	}
	s := &Server{
		Sessions: sessions,
		Streams:  NewStreamManager(),
		api:      api,
		version:  "dev",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger

	r := chi.NewRouter()
	r.Use(enableCORS)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/chart", s.GetChart)
	r.Get("/chart/mermaid", s.GetChartMermaid)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Get("/{id}", s.GetSession)
		r.Delete("/{id}", s.DeleteSession)
		r.Post("/{id}/state", s.SetState)
		r.Get("/{id}/events", s.SubscribeEvents)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if s.api.Info != nil {
		apiVersion = s.api.Info.Version
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "tops-http",
		"version":     strings.TrimSpace(s.version),
		"api_version": apiVersion,
	})
}

// GetChart handles GET /chart.
func (s *Server) GetChart(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ChartResponse{
		Root:   s.Sessions.Root(),
		States: s.Sessions.Chart().Declarations(),
	})
}

// GetChartMermaid handles GET /chart/mermaid.
func (s *Server) GetChartMermaid(w http.ResponseWriter, r *http.Request) {
	chart := s.Sessions.Chart()
	var overlay *graph.Overlay
	if id := r.URL.Query().Get("session_id"); id != "" {
		snap, err := s.Sessions.Load(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		overlay = &graph.Overlay{Selected: chart.Ancestry(snap.Current), Current: snap.Current}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(chart, overlay)))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /sessions/{id}. It never creates a session.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, triggers, err := s.Sessions.Inspect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.sessionResponse(snap, triggers))
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetState handles POST /sessions/{id}/state. Unknown sessions are started at the root first.
func (s *Server) SetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("SetState: invalid request body", "err", err)
		return
	}
	if err := validateBody(s.api, "StateRequest", raw); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	var body StateRequest
	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, &body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var triggers []statechart.ActiveTrigger
	before, snap, err := s.Sessions.Transition(r.Context(), id, func(ctx context.Context, m *statechart.Machine) error {
		var err error
		if body.Trigger != "" {
			err = m.Fire(ctx, body.Trigger)
		} else {
			err = m.SetState(ctx, body.Request)
		}
		triggers = m.ActiveTriggers()
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if diff := domain.Diff(before, snap); diff != nil {
		if payload, err := json.Marshal(diff); err == nil {
			s.Streams.Broadcast(id, string(payload))
		}
	}
	s.writeJSON(w, http.StatusOK, s.sessionResponse(snap, triggers))
}

// SubscribeEvents handles GET /sessions/{id}/events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	id := chi.URLParam(r, "id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()
	s.logger.Info("SSE: subscribing to session updates", "session_id", id)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "session_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) sessionResponse(snap *domain.Snapshot, triggers []statechart.ActiveTrigger) SessionResponse {
	if triggers == nil {
		triggers = []statechart.ActiveTrigger{}
	}
	path := s.Sessions.Chart().Ancestry(snap.Current)
	if path == nil {
		path = []string{}
	}
	return SessionResponse{
		SessionID:   snap.SessionID,
		Current:     snap.Current,
		History:     snap.History,
		Transitions: snap.Transitions,
		Path:        path,
		Triggers:    triggers,
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrUnknownState),
		errors.Is(err, statechart.ErrNoSuchTrigger):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
