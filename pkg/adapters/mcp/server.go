package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/internal/presentation/graph"
	"github.com/aretw0/scenaria/internal/validator"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/interchange"
	"github.com/aretw0/scenaria/pkg/ports"
	"github.com/aretw0/scenaria/pkg/runner"
	"github.com/aretw0/scenaria/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

const scenarioURIPrefix = "scenaria://scenarios/"

// ValidationResponse reports the findings of validate_scenario.
type ValidationResponse struct {
	Valid      bool                  `json:"valid" jsonschema_description:"False when at least one fatal violation was found"`
	Violations []validator.Violation `json:"violations" jsonschema_description:"Every violation, fatal and advisory"`
}

// SessionResponse is returned by session tools. The projection tells an agent what the
// conversation still needs without exposing the full graph.
type SessionResponse struct {
	State      *domain.SessionState `json:"state" jsonschema_description:"The persisted session state"`
	Projection domain.Projection    `json:"projection" jsonschema_description:"Current phase, satisfied conditions and next transitions"`
	Verdict    *domain.TurnVerdict  `json:"verdict,omitempty" jsonschema_description:"The verdict applied by take_turn"`
}

// Server exposes scenario sessions as an MCP Server.
type Server struct {
	library   ports.ScenarioLibrary
	sessions  *session.Manager
	evaluator ports.Evaluator
	sanitizer runner.Sanitizer
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithEvaluator lets take_turn evaluate utterances. Without it a verdict argument is required.
func WithEvaluator(ev ports.Evaluator) Option {
	return func(s *Server) {
		s.evaluator = ev
	}
}

// WithSanitizer sets the limits applied to take_turn utterances.
func WithSanitizer(sz runner.Sanitizer) Option {
	return func(s *Server) {
		s.sanitizer = sz
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(library ports.ScenarioLibrary, sessions *session.Manager, version string, opts ...Option) *Server {
	s := &Server{
		library:   library,
		sessions:  sessions,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("scenaria-mcp", strings.TrimSpace(version)),
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

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
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

		s.logger.Info("Shutdown signal received, shutting down MCP server")
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

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_scenarios",
		mcp.WithDescription("List the ids of the published scenarios."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.library.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(ids)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	validateTool := mcp.NewTool("validate_scenario",
		mcp.WithDescription("Validate a scenario interchange document and report every violation."),
		mcp.WithString("document", mcp.Required(), mcp.Description("The scenario document")),
		mcp.WithString("format", mcp.Description("json (default) or yaml")),
		mcp.WithOutputSchema[ValidationResponse](),
	)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handleValidate))

	startTool := mcp.NewTool("start_session",
		mcp.WithDescription("Start, or resume, a conversation session on a scenario."),
		mcp.WithString("scenario_id", mcp.Required(), mcp.Description("Scenario to play")),
		mcp.WithString("session_id", mcp.Description("Session id (optional, generated when omitted)")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStartSession))

	turnTool := mcp.NewTool("take_turn",
		mcp.WithDescription("Submit a trainee utterance. Pass a verdict to skip the evaluator."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("utterance", mcp.Required(), mcp.Description("What the trainee said")),
		mcp.WithObject("verdict", mcp.Description("Optional verdict: signal, satisfied_condition_ids, red_flags")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(turnTool, mcp.NewStructuredToolHandler(s.handleTakeTurn))

	projectionTool := mcp.NewTool("get_projection",
		mcp.WithDescription("Get the administrative projection of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithOutputSchema[SessionResponse](),
	)
	s.mcpServer.AddTool(projectionTool, mcp.NewStructuredToolHandler(s.handleGetProjection))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Render a scenario as a Mermaid flowchart."),
		mcp.WithString("scenario_id", mcp.Required(), mcp.Description("Scenario id")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("scenario_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sc, err := s.library.Get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(graph.GenerateMermaid(sc, nil)), nil
	})
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ValidationResponse, error) {
	document, _ := args["document"].(string)
	format := interchange.FormatJSON
	if f, _ := args["format"].(string); f == string(interchange.FormatYAML) {
		format = interchange.FormatYAML
	}

	sc, err := interchange.Unmarshal([]byte(document), format)
	if err != nil {
		return ValidationResponse{}, err
	}
	violations := validator.Validate(sc)
	if violations == nil {
		violations = []validator.Violation{}
	}
	return ValidationResponse{Valid: !validator.HasFatal(violations), Violations: violations}, nil
}

func (s *Server) handleStartSession(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	scenarioID, _ := args["scenario_id"].(string)
	sessionID, _ := args["session_id"].(string)

	sc, err := s.library.Get(ctx, scenarioID)
	if err != nil {
		return SessionResponse{}, err
	}
	state, err := s.sessions.Start(ctx, sc, scenarioID, sessionID)
	if err != nil {
		return SessionResponse{}, fmt.Errorf("start failed: %w", err)
	}
	// A resumed session may sit on an older version than the one just fetched.
	if state.ScenarioVersion != sc.Version {
		if sc, err = session.ScenarioOf(ctx, s.library, state); err != nil {
			return SessionResponse{}, err
		}
	}
	return SessionResponse{State: state, Projection: domain.NewProjection(sc, state)}, nil
}

func (s *Server) handleTakeTurn(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	sessionID, _ := args["session_id"].(string)
	utterance, _ := args["utterance"].(string)

	clean, err := s.sanitizer.Clean(utterance)
	if err != nil {
		s.logger.Warn("MCP take_turn: Input rejected", "err", err, "size", len(utterance))
		return SessionResponse{}, fmt.Errorf("input rejected: %w", err)
	}

	verdict, err := decodeVerdictArg(args["verdict"])
	if err != nil {
		return SessionResponse{}, err
	}

	sc, _, err := s.sessions.ScenarioFor(ctx, s.library, sessionID)
	if err != nil {
		return SessionResponse{}, err
	}

	var next *domain.SessionState
	switch {
	case verdict != nil:
		next, err = s.sessions.Apply(ctx, sc, sessionID, *verdict, clean)
	case s.evaluator != nil:
		var v domain.TurnVerdict
		next, v, err = s.sessions.Turn(ctx, s.evaluator, sc, sessionID, clean)
		verdict = &v
	default:
		err = errors.New("no evaluator configured, pass a verdict")
	}
	if err != nil {
		if domain.IsRetryable(err) {
			return SessionResponse{}, fmt.Errorf("turn not applied, retry: %w", err)
		}
		return SessionResponse{}, err
	}
	return SessionResponse{State: next, Projection: domain.NewProjection(sc, next), Verdict: verdict}, nil
}

// decodeVerdictArg accepts the verdict either as an object or as a JSON string.
func decodeVerdictArg(raw any) (*domain.TurnVerdict, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		var verdict domain.TurnVerdict
		if err := json.Unmarshal([]byte(v), &verdict); err != nil {
			return nil, &domain.SchemaError{Reason: fmt.Sprintf("verdict: %v", err)}
		}
		return &verdict, nil
	default:
		var verdict domain.TurnVerdict
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "mapstructure",
			WeaklyTypedInput: true,
			ErrorUnused:      true,
			Result:           &verdict,
		})
		if err != nil {
			return nil, err
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, &domain.SchemaError{Reason: fmt.Sprintf("verdict: %v", err)}
		}
		return &verdict, nil
	}
}

func (s *Server) handleGetProjection(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	sessionID, _ := args["session_id"].(string)
	sc, state, err := s.sessions.ScenarioFor(ctx, s.library, sessionID)
	if err != nil {
		return SessionResponse{}, err
	}
	return SessionResponse{State: state, Projection: domain.NewProjection(sc, state)}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("scenaria://scenarios", "Published scenarios",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.library.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list scenarios: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "scenaria://scenarios",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(scenarioURIPrefix+"{id}", "Scenario document",
		mcp.WithTemplateMIMEType("application/json"),
	), s.readScenario)
}

func (s *Server) readScenario(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	sc, err := s.library.Get(ctx, strings.TrimPrefix(uri, scenarioURIPrefix))
	if err != nil {
		return nil, err
	}
	data, err := interchange.Marshal(sc, interchange.FormatJSON)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
