package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/tops/internal/logging"
	"github.com/aretw0/tops/internal/presentation/graph"
	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/statechart"
)

// ChartURI is the resource exposing the chart as a Mermaid diagram.
const ChartURI = "tops://chart"

// DefaultSessionID is used by tools called without a session_id.
const DefaultSessionID = "mcp"

// Sessions is the session API the tools drive. *session.Manager implements it.
type Sessions interface {
	Chart() *statechart.Chart
	Root() string
	LoadOrStart(ctx context.Context, sessionID string) (*domain.Snapshot, error)
	Apply(ctx context.Context, sessionID, request string) (*domain.Snapshot, error)
	Fire(ctx context.Context, sessionID, label string) (*domain.Snapshot, error)
	Triggers(ctx context.Context, sessionID string) ([]statechart.ActiveTrigger, error)
}

// StateResponse is the structured result of set_state and current_state.
type StateResponse struct {
	SessionID   string                     `json:"session_id" jsonschema_description:"Session the state belongs to"`
	Current     string                     `json:"current" jsonschema_description:"Active leaf state"`
	Path        []string                   `json:"path" jsonschema_description:"Active states, leaf to root"`
	History     map[string]string          `json:"history,omitempty" jsonschema_description:"Most recently active child of each compound state"`
	Transitions int                        `json:"transitions" jsonschema_description:"Number of transitions applied"`
	Triggers    []statechart.ActiveTrigger `json:"triggers" jsonschema_description:"Triggers that can be fired now"`
}

// Server exposes a statechart as an MCP server.
type Server struct {
	sessions  Sessions
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions Sessions, version string, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		mcpServer: server.NewMCPServer("tops-mcp", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	setState := mcp.NewTool("set_state",
		mcp.WithDescription("Transition a session. Pass either a request (a state name or recall(NAME)) or the label of an enabled trigger. Unknown sessions start at the root state."),
		mcp.WithString("session_id", mcp.Description("Session to drive (default \"mcp\")")),
		mcp.WithString("request", mcp.Description("State name or recall(NAME)")),
		mcp.WithString("trigger", mcp.Description("Label of an enabled trigger")),
		mcp.WithOutputSchema[StateResponse](),
	)
	s.mcpServer.AddTool(setState, mcp.NewStructuredToolHandler(s.handleSetState))

	current := mcp.NewTool("current_state",
		mcp.WithDescription("Report the active state, path, history and enabled triggers of a session."),
		mcp.WithString("session_id", mcp.Description("Session to inspect (default \"mcp\")")),
		mcp.WithOutputSchema[StateResponse](),
	)
	s.mcpServer.AddTool(current, mcp.NewStructuredToolHandler(s.handleCurrentState))

	s.mcpServer.AddTool(mcp.NewTool("get_chart",
		mcp.WithDescription("Get the statechart declarations for introspection."),
	), s.handleGetChart)
}

func (s *Server) handleSetState(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	id := sessionID(args)
	request, _ := args["request"].(string)
	trigger, _ := args["trigger"].(string)

	var (
		snap *domain.Snapshot
		err  error
	)
	switch {
	case request != "" && trigger != "":
		return StateResponse{}, errors.New("pass either request or trigger, not both")
	case trigger != "":
		snap, err = s.sessions.Fire(ctx, id, trigger)
	case request != "":
		snap, err = s.sessions.Apply(ctx, id, request)
	default:
		return StateResponse{}, errors.New("request or trigger is required")
	}
	if err != nil {
		s.logger.Warn("MCP set_state rejected", "session_id", id, "err", err)
		return StateResponse{}, fmt.Errorf("set_state failed: %w", err)
	}
	return s.respond(ctx, id, snap)
}

func (s *Server) handleCurrentState(ctx context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	id := sessionID(args)
	snap, err := s.sessions.LoadOrStart(ctx, id)
	if err != nil {
		return StateResponse{}, fmt.Errorf("current_state failed: %w", err)
	}
	return s.respond(ctx, id, snap)
}

func (s *Server) handleGetChart(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(map[string]any{
		"root":   s.sessions.Root(),
		"states": s.sessions.Chart().Declarations(),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode chart: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) respond(ctx context.Context, id string, snap *domain.Snapshot) (StateResponse, error) {
	triggers, err := s.sessions.Triggers(ctx, id)
	if err != nil {
		return StateResponse{}, err
	}
	if triggers == nil {
		triggers = []statechart.ActiveTrigger{}
	}
	return StateResponse{
		SessionID:   id,
		Current:     snap.Current,
		Path:        s.sessions.Chart().Ancestry(snap.Current),
		History:     snap.History,
		Transitions: snap.Transitions,
		Triggers:    triggers,
	}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ChartURI, "Statechart Diagram",
		mcp.WithMIMEType("text/plain"),
	), s.readChart)
}

func (s *Server) readChart(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ChartURI,
			MIMEType: "text/plain",
			Text:     graph.GenerateMermaid(s.sessions.Chart(), nil),
		},
	}, nil
}

func sessionID(args map[string]interface{}) string {
	if id, ok := args["session_id"].(string); ok && id != "" {
		return id
	}
	return DefaultSessionID
}
