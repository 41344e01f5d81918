package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/internal/runtime"
	"github.com/aretw0/scenaria/pkg/adapters/memory"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/interchange"
	"github.com/aretw0/scenaria/pkg/ports"
	"github.com/aretw0/scenaria/pkg/runner"
	"github.com/aretw0/scenaria/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func support() *domain.Scenario {
	return &domain.Scenario{
		Name:       "support",
		Conditions: []domain.Condition{{ID: 1, Description: "greets"}},
		Phases: []domain.Phase{
			{ID: 1, Name: "welcome", SuccessTransitions: []int{2}, FailureTransitions: []int{3}, ConditionIDs: []int{1}},
			{ID: 2, Name: "polite closure", Closure: true},
			{ID: 3, Name: "abrupt closure", Closure: true},
		},
		EntryPhaseID: 1,
		Version:      1,
	}
}

type fixture struct {
	handler http.Handler
	library *memory.Library
	streams *StreamManager
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	lib := memory.NewLibrary(map[string]*domain.Scenario{"support": support()})
	streams := NewStreamManager(logging.NewNop())
	mgr := session.NewManager(memory.NewStore(), runtime.NewEngine(), session.WithDiffListener(streams.PublishDiff))
	opts = append([]Option{WithStreams(streams)}, opts...)
	return fixture{handler: NewHandler(lib, mgr, opts...), library: lib, streams: streams}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestHealthAndInfo(t *testing.T) {
	f := newFixture(t, WithVersion("1.2.3"))

	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, true, info["publishing"])
	assert.Equal(t, false, info["evaluator"])
}

func TestScenarios_GetAndList(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/scenarios", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["support"]`, w.Body.String())

	w = f.do(t, http.MethodGet, "/scenarios/support", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sc, err := interchange.Unmarshal(w.Body.Bytes(), interchange.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "support", sc.Name)

	w = f.do(t, http.MethodGet, "/scenarios/support?format=yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))

	w = f.do(t, http.MethodGet, "/scenarios/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScenarios_PutPublishesAndBumpsVersion(t *testing.T) {
	f := newFixture(t)
	data, err := interchange.Marshal(support(), interchange.FormatJSON)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/scenarios/support", bytes.NewReader(data))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rep ValidationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.True(t, rep.Valid)
	assert.Equal(t, 2, rep.Version)

	stored, err := f.library.Get(context.Background(), "support")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
}

func TestScenarios_PutRejectsFatalViolations(t *testing.T) {
	f := newFixture(t)
	doc, err := interchange.Export(support())
	require.NoError(t, err)
	doc.Phases[0].SuccessPhases = []int{9}
	data, err := interchange.Encode(doc, interchange.FormatJSON)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/scenarios/broken", bytes.NewReader(data))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var rep ValidationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.False(t, rep.Valid)
	assert.NotEmpty(t, rep.Violations)

	_, err = f.library.Get(context.Background(), "broken")
	assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	sc := support()
	sc.Phases = append(sc.Phases, domain.Phase{ID: 4, Name: "island", Closure: true})
	data, err := interchange.Marshal(sc, interchange.FormatYAML)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/validate", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/yaml")
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var rep ValidationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.True(t, rep.Valid, "unreachable phases are advisory")
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, 4, rep.Violations[0].PhaseID)

	req = httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader(`{"header": 1}`))
	w = httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSessions_Lifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/sessions", StartRequest{ScenarioID: "support", SessionID: "s1"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, http.MethodGet, "/sessions", nil)
	assert.JSONEq(t, `["s1"]`, w.Body.String())

	w = f.do(t, http.MethodGet, "/sessions/s1/projection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var proj domain.Projection
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &proj))
	assert.Equal(t, "welcome", proj.CurrentPhaseName)

	w = f.do(t, http.MethodPost, "/sessions/s1/turns", TurnRequest{
		Utterance: "hello",
		Verdict:   &domain.TurnVerdict{Signal: domain.SignalSuccess, SatisfiedConditionIDs: []int{1}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var turn TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))
	assert.True(t, turn.State.Ended)
	assert.Equal(t, 2, turn.State.CurrentPhaseID)

	w = f.do(t, http.MethodPost, "/sessions/s1/turns", TurnRequest{
		Utterance: "again",
		Verdict:   &domain.TurnVerdict{Signal: domain.SignalNone},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodGet, "/sessions/s1/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "graph TD")

	w = f.do(t, http.MethodDelete, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, http.MethodGet, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_StartUnknownScenario(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/sessions", StartRequest{ScenarioID: "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/sessions", StartRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestTurn_WithEvaluator(t *testing.T) {
	ev := ports.EvaluatorFunc(func(ctx context.Context, req domain.EvaluationRequest) (domain.TurnVerdict, error) {
		return domain.TurnVerdict{Signal: domain.SignalFailure}, nil
	})
	f := newFixture(t, WithEvaluator(ev))
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sessions", StartRequest{ScenarioID: "support", SessionID: "s1"}).Code)

	w := f.do(t, http.MethodPost, "/sessions/s1/turns", TurnRequest{Utterance: "go away"})
	require.Equal(t, http.StatusOK, w.Code)
	var turn TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))
	assert.Equal(t, domain.SignalFailure, turn.Verdict.Signal)
	assert.Equal(t, 3, turn.State.CurrentPhaseID)
}

func TestTurn_EvaluatorUnavailableIsRetryable(t *testing.T) {
	ev := ports.EvaluatorFunc(func(ctx context.Context, req domain.EvaluationRequest) (domain.TurnVerdict, error) {
		return domain.TurnVerdict{}, context.DeadlineExceeded
	})
	f := newFixture(t, WithEvaluator(ev))
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sessions", StartRequest{ScenarioID: "support", SessionID: "s1"}).Code)

	w := f.do(t, http.MethodPost, "/sessions/s1/turns", TurnRequest{Utterance: "hi"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Retryable)
}

func TestTurn_WithoutEvaluatorRequiresVerdict(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sessions", StartRequest{ScenarioID: "support", SessionID: "s1"}).Code)

	w := f.do(t, http.MethodPost, "/sessions/s1/turns", TurnRequest{Utterance: "hi"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSessions_StartRefusesFatalScenario(t *testing.T) {
	f := newFixture(t)
	broken := support()
	broken.Phases[0].FailureTransitions = []int{7}
	require.NoError(t, f.library.Put(context.Background(), "broken", broken))

	w := f.do(t, http.MethodPost, "/sessions", StartRequest{ScenarioID: "broken", SessionID: "s1"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "unknown phase 7")

	w = f.do(t, http.MethodGet, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessions_RepublishKeepsPinnedVersion(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sessions", StartRequest{ScenarioID: "support", SessionID: "s1"}).Code)

	// The new version drops phase 3, the failure target of the live session.
	shorter := support()
	shorter.Phases = shorter.Phases[:2]
	shorter.Phases[0].FailureTransitions = nil
	data, err := interchange.Marshal(shorter, interchange.FormatJSON)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/scenarios/support", bytes.NewReader(data))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodGet, "/sessions/s1/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "abrupt closure")

	w = f.do(t, http.MethodPost, "/sessions/s1/turns", TurnRequest{
		Utterance: "no thanks",
		Verdict:   &domain.TurnVerdict{Signal: domain.SignalFailure},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var turn TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))
	assert.Equal(t, 3, turn.State.CurrentPhaseID)
	assert.Equal(t, 1, turn.State.ScenarioVersion)

	w = f.do(t, http.MethodPost, "/sessions", StartRequest{ScenarioID: "support", SessionID: "s2"})
	require.Equal(t, http.StatusCreated, w.Code)
	var fresh domain.SessionState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fresh))
	assert.Equal(t, 2, fresh.ScenarioVersion)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusGone, statusOf(fmt.Errorf("turn: %w", domain.ErrScenarioRetired)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusOf(fmt.Errorf("%w: limit", ErrDocumentTooLarge)))
	assert.Equal(t, http.StatusConflict, statusOf(domain.ErrTurnInFlight))
}

func TestScenarios_PutRejectsOversizedDocument(t *testing.T) {
	f := newFixture(t)
	data, err := interchange.Marshal(support(), interchange.FormatJSON)
	require.NoError(t, err)
	// Valid JSON up to the cut, so truncation would otherwise go unnoticed.
	padded := append(data, bytes.Repeat([]byte(" "), maxDocument)...)

	req := httptest.NewRequest(http.MethodPut, "/scenarios/support", bytes.NewReader(padded))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	stored, err := f.library.Get(context.Background(), "support")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
}

func TestTurn_HonoursConfiguredSanitizer(t *testing.T) {
	f := newFixture(t, WithSanitizer(runner.Sanitizer{MaxBytes: 16}))
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sessions", StartRequest{ScenarioID: "support", SessionID: "s1"}).Code)

	w := f.do(t, http.MethodPost, "/sessions/s1/turns", TurnRequest{
		Utterance: strings.Repeat("a", 17),
		Verdict:   &domain.TurnVerdict{Signal: domain.SignalNone},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/sessions/s1/turns", TurnRequest{
		Utterance: "hello\r\n\r\n\r\nthere",
		Verdict:   &domain.TurnVerdict{Signal: domain.SignalNone},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var turn TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turn))
	assert.Equal(t, []string{"hello\n\nthere"}, turn.State.Utterances)
}

func TestTurn_RejectsOversizedInput(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/sessions", StartRequest{ScenarioID: "support", SessionID: "s1"}).Code)

	w := f.do(t, http.MethodPost, "/sessions/s1/turns", TurnRequest{
		Utterance: strings.Repeat("a", 5000),
		Verdict:   &domain.TurnVerdict{Signal: domain.SignalNone},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscribeEvents_RequiresSession(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubscribeEvents_SessionDiffs(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	post := func(path string, body any) {
		data, _ := json.Marshal(body)
		resp, err := http.Post(srv.URL+path, "application/json", bytes.NewReader(data))
		require.NoError(t, err)
		resp.Body.Close()
	}
	post("/sessions", StartRequest{ScenarioID: "support", SessionID: "s1"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events?session_id=s1&watch=phase", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	require.Equal(t, "event: ping", <-lines)

	// A stay-in-place turn only adds conditions and is filtered out by watch=phase.
	post("/sessions/s1/turns", TurnRequest{Utterance: "hi", Verdict: &domain.TurnVerdict{Signal: domain.SignalNone, SatisfiedConditionIDs: []int{1}}})
	post("/sessions/s1/turns", TurnRequest{Utterance: "bye", Verdict: &domain.TurnVerdict{Signal: domain.SignalSuccess}})

	for line := range lines {
		if !strings.HasPrefix(line, "data: {") {
			continue
		}
		var diff domain.StateDiff
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &diff))
		require.NotNil(t, diff.CurrentPhaseID)
		assert.Equal(t, 2, *diff.CurrentPhaseID)
		assert.Empty(t, diff.NewConditions)
		return
	}
	t.Fatal("stream closed before the phase diff arrived")
}

func TestWanted(t *testing.T) {
	phase := 2
	ended := true
	assert.True(t, wanted(mustJSON(t, domain.StateDiff{CurrentPhaseID: &phase}), []string{"phase"}))
	assert.False(t, wanted(mustJSON(t, domain.StateDiff{NewConditions: []int{1}}), []string{"phase", "status"}))
	assert.True(t, wanted(mustJSON(t, domain.StateDiff{Ended: &ended}), []string{"status"}))
	assert.True(t, wanted("not json", []string{"phase"}))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
