package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/internal/presentation/graph"
	"github.com/aretw0/scenaria/internal/validator"
	"github.com/aretw0/scenaria/pkg/authoring"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/interchange"
	"github.com/aretw0/scenaria/pkg/ports"
	"github.com/aretw0/scenaria/pkg/runner"
	"github.com/aretw0/scenaria/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxDocument caps uploaded scenario documents.
const maxDocument = 4 << 20

// ErrDocumentTooLarge is returned when an uploaded document exceeds maxDocument.
var ErrDocumentTooLarge = errors.New("document too large")

// Server exposes scenarios and sessions over HTTP.
type Server struct {
	library   ports.ScenarioLibrary
	publisher ports.ScenarioPublisher
	sessions  *session.Manager
	evaluator ports.Evaluator
	streams   *StreamManager
	metrics   http.Handler
	sanitizer runner.Sanitizer
	logger    *slog.Logger
	version   string
}

// Option configures the Server.
type Option func(*Server)

// WithEvaluator enables utterance turns. Without it only explicit verdicts are accepted.
func WithEvaluator(ev ports.Evaluator) Option {
	return func(s *Server) {
		s.evaluator = ev
	}
}

// WithSanitizer sets the limits applied to turn utterances.
func WithSanitizer(sz runner.Sanitizer) Option {
	return func(s *Server) {
		s.sanitizer = sz
	}
}

// WithStreams shares a StreamManager, typically the one registered as the session
// manager's diff listener.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.streams = sm
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(library ports.ScenarioLibrary, sessions *session.Manager, opts ...Option) http.Handler {
	s := &Server{
		library:  library,
		sessions: sessions,
		logger:   logging.NewNop(),
		version:  "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.streams == nil {
		s.streams = NewStreamManager(s.logger)
	}
	if p, ok := library.(ports.ScenarioPublisher); ok {
		s.publisher = p
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/validate", s.Validate)
	r.Route("/scenarios", func(r chi.Router) {
		r.Get("/", s.ListScenarios)
		r.Get("/{scenarioID}", s.GetScenario)
		r.Put("/{scenarioID}", s.PutScenario)
		r.Get("/{scenarioID}/graph", s.GetScenarioGraph)
	})
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.StartSession)
		r.Get("/{sessionID}", s.GetSession)
		r.Delete("/{sessionID}", s.DeleteSession)
		r.Post("/{sessionID}/turns", s.PostTurn)
		r.Get("/{sessionID}/projection", s.GetProjection)
		r.Get("/{sessionID}/graph", s.GetSessionGraph)
	})
	r.Get("/events", s.SubscribeEvents)

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":        "scenaria-http",
		"version":    strings.TrimSpace(s.version),
		"evaluator":  s.evaluator != nil,
		"publishing": s.publisher != nil,
	})
}

// ValidationReport is the body of validate and publish responses.
type ValidationReport struct {
	Valid      bool                  `json:"valid"`
	Violations []validator.Violation `json:"violations"`
	Version    int                   `json:"version,omitempty"`
}

func report(vs []validator.Violation) ValidationReport {
	if vs == nil {
		vs = []validator.Violation{}
	}
	return ValidationReport{Valid: !validator.HasFatal(vs), Violations: vs}
}

// Validate handles POST /validate: the body is an interchange document.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	sc, err := readScenario(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report(validator.Validate(sc)))
}

// ListScenarios handles GET /scenarios.
func (s *Server) ListScenarios(w http.ResponseWriter, r *http.Request) {
	ids, err := s.library.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetScenario handles GET /scenarios/{id}. ?format=yaml switches the encoding.
func (s *Server) GetScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.library.Get(r.Context(), chi.URLParam(r, "scenarioID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	format := interchange.FormatJSON
	contentType := "application/json"
	if r.URL.Query().Get("format") == "yaml" {
		format, contentType = interchange.FormatYAML, "application/yaml"
	}
	data, err := interchange.Marshal(sc, format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(data)
}

// PutScenario handles PUT /scenarios/{id}: validates, bumps the version and stores the document.
// Only offered when the library accepts new scenarios.
func (s *Server) PutScenario(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		http.Error(w, "publishing is disabled", http.StatusMethodNotAllowed)
		return
	}
	id := chi.URLParam(r, "scenarioID")

	sc, err := readScenario(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	published, violations, err := authoring.PublishTo(r.Context(), s.library, id, sc, authoring.WithLogger(s.logger))
	if err != nil {
		if validator.HasFatal(violations) {
			writeJSON(w, http.StatusUnprocessableEntity, report(violations))
			return
		}
		s.writeError(w, r, err)
		return
	}

	rep := report(violations)
	rep.Version = published.Version
	writeJSON(w, http.StatusOK, rep)
}

// GetScenarioGraph handles GET /scenarios/{id}/graph (Mermaid).
func (s *Server) GetScenarioGraph(w http.ResponseWriter, r *http.Request) {
	sc, err := s.library.Get(r.Context(), chi.URLParam(r, "scenarioID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(sc, nil))
}

// StartRequest is the body of POST /sessions.
type StartRequest struct {
	ScenarioID string `json:"scenario_id"`
	SessionID  string `json:"session_id,omitempty"`
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("StartSession: Invalid request body", "err", err)
		return
	}
	if body.ScenarioID == "" {
		s.writeError(w, r, &domain.ValidationError{Field: "scenario_id", Reason: "required"})
		return
	}

	sc, err := s.library.Get(r.Context(), body.ScenarioID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	state, err := s.sessions.Start(r.Context(), sc, body.ScenarioID, body.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.Load(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TurnRequest is the body of POST /sessions/{id}/turns. When Verdict is set the
// evaluator is skipped.
type TurnRequest struct {
	Utterance string              `json:"utterance"`
	Verdict   *domain.TurnVerdict `json:"verdict,omitempty"`
}

// TurnResponse is returned after an applied turn.
type TurnResponse struct {
	State   *domain.SessionState `json:"state"`
	Verdict domain.TurnVerdict   `json:"verdict"`
}

// PostTurn handles POST /sessions/{id}/turns.
func (s *Server) PostTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var body TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostTurn: Invalid request body", "err", err)
		return
	}

	utterance, err := s.sanitizer.Clean(body.Utterance)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid input: %v", err), http.StatusBadRequest)
		s.logger.Warn("PostTurn: Input rejected", "err", err, "size", len(body.Utterance))
		return
	}

	sc, err := s.scenarioOf(r, sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var resp TurnResponse
	switch {
	case body.Verdict != nil:
		resp.Verdict = *body.Verdict
		resp.State, err = s.sessions.Apply(r.Context(), sc, sessionID, *body.Verdict, utterance)
	case s.evaluator != nil:
		resp.State, resp.Verdict, err = s.sessions.Turn(r.Context(), s.evaluator, sc, sessionID, utterance)
	default:
		err = &domain.ValidationError{Field: "verdict", Reason: "no evaluator configured, a verdict is required"}
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProjection handles GET /sessions/{id}/projection.
func (s *Server) GetProjection(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sc, err := s.scenarioOf(r, sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	proj, err := s.sessions.Project(r.Context(), sc, sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, proj)
}

// GetSessionGraph handles GET /sessions/{id}/graph (Mermaid with visited/current overlay).
func (s *Server) GetSessionGraph(w http.ResponseWriter, r *http.Request) {
	sc, state, err := s.sessions.ScenarioFor(r.Context(), s.library, chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(sc, graph.OverlayFromState(state)))
}

func (s *Server) scenarioOf(r *http.Request, sessionID string) (*domain.Scenario, error) {
	sc, _, err := s.sessions.ScenarioFor(r.Context(), s.library, sessionID)
	return sc, err
}

// readScenario decodes an interchange document, YAML when the content type says so.
// Bodies over maxDocument fail with ErrDocumentTooLarge instead of being cut short.
func readScenario(r *http.Request) (*domain.Scenario, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxDocument+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxDocument {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrDocumentTooLarge, maxDocument)
	}
	format := interchange.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = interchange.FormatYAML
	}
	return interchange.Unmarshal(data, format)
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrScenarioNotFound),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTurnInFlight),
		errors.Is(err, domain.ErrSessionEnded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrScenarioRetired):
		return http.StatusGone
	case errors.Is(err, ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrSchema):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEvaluatorUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "err", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Retryable: domain.IsRetryable(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
