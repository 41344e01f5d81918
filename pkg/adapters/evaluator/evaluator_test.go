package evaluator_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/scenaria/pkg/adapters/evaluator"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.Evaluator = (*evaluator.Client)(nil)
	_ ports.Evaluator = (*evaluator.Scripted)(nil)
	_ ports.Evaluator = (*evaluator.Rules)(nil)
)

func request() domain.EvaluationRequest {
	return domain.EvaluationRequest{
		SessionID:             "s1",
		PhaseName:             "welcome",
		PhaseSystemPrompt:     "Greet the caller.",
		PhaseConditions:       []domain.Condition{{ID: 1, Description: "states the problem"}},
		UtteranceHistory:      []string{"hello"},
		AccumulatedConditions: []int{},
	}
}

func TestClient_Evaluate(t *testing.T) {
	var got domain.EvaluationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"satisfied_condition_ids":[1],"signal":"success"}`)
	}))
	defer srv.Close()

	c := evaluator.NewClient(srv.URL, evaluator.WithHeader("X-Api-Key", "secret"))
	v, err := c.Evaluate(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, domain.SignalSuccess, v.Signal)
	assert.Equal(t, []int{1}, v.SatisfiedConditionIDs)
	assert.Equal(t, request(), got)
}

func TestClient_MalformedVerdict(t *testing.T) {
	bodies := map[string]string{
		"not json":       `definitely not json`,
		"missing signal": `{"satisfied_condition_ids":[1]}`,
		"bad signal":     `{"signal":"maybe"}`,
		"bad ids":        `{"signal":"none","satisfied_condition_ids":["one"]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}))
			defer srv.Close()

			_, err := evaluator.NewClient(srv.URL).Evaluate(context.Background(), request())
			var schemaErr *domain.SchemaError
			assert.ErrorAs(t, err, &schemaErr)
			assert.True(t, domain.IsRetryable(err))
		})
	}
}

func TestClient_Unavailable(t *testing.T) {
	t.Run("Server Error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := evaluator.NewClient(srv.URL).Evaluate(context.Background(), request())
		assert.ErrorIs(t, err, domain.ErrEvaluatorUnavailable)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("Connection Refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := evaluator.NewClient(url).Evaluate(context.Background(), request())
		assert.ErrorIs(t, err, domain.ErrEvaluatorUnavailable)
	})

	t.Run("Timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c := evaluator.NewClient(srv.URL, evaluator.WithTimeout(50*time.Millisecond))
		_, err := c.Evaluate(context.Background(), request())
		assert.ErrorIs(t, err, domain.ErrEvaluatorUnavailable)
	})
}

func TestClient_TimeoutLeavesHTTPClientAlone(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	orders := map[string]func(hc *http.Client) []evaluator.ClientOption{
		"timeout first": func(hc *http.Client) []evaluator.ClientOption {
			return []evaluator.ClientOption{evaluator.WithTimeout(50 * time.Millisecond), evaluator.WithHTTPClient(hc)}
		},
		"client first": func(hc *http.Client) []evaluator.ClientOption {
			return []evaluator.ClientOption{evaluator.WithHTTPClient(hc), evaluator.WithTimeout(50 * time.Millisecond)}
		},
	}
	for name, opts := range orders {
		t.Run(name, func(t *testing.T) {
			shared := &http.Client{Timeout: time.Minute}
			c := evaluator.NewClient(srv.URL, opts(shared)...)

			start := time.Now()
			_, err := c.Evaluate(context.Background(), request())
			assert.ErrorIs(t, err, domain.ErrEvaluatorUnavailable)
			assert.Less(t, time.Since(start), 10*time.Second, "the configured timeout applies")
			assert.Equal(t, time.Minute, shared.Timeout, "the caller's client is not modified")
		})
	}
}

func TestScripted(t *testing.T) {
	s := evaluator.NewScripted(
		domain.TurnVerdict{Signal: domain.SignalNone},
		domain.TurnVerdict{Signal: domain.SignalSuccess, SatisfiedConditionIDs: []int{1}},
	)
	ctx := context.Background()

	v, err := s.Evaluate(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, domain.SignalNone, v.Signal)

	v, err = s.Evaluate(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, domain.SignalSuccess, v.Signal)
	assert.Equal(t, 0, s.Remaining())

	_, err = s.Evaluate(ctx, request())
	assert.ErrorIs(t, err, domain.ErrEvaluatorUnavailable)
	assert.ErrorIs(t, err, evaluator.ErrScriptExhausted)
	assert.Len(t, s.Requests(), 3)
}

func TestRules(t *testing.T) {
	r := &evaluator.Rules{Rules: []evaluator.Rule{
		{Keywords: []string{"idiot"}, Signal: domain.SignalNone, RedFlag: "insults the agent"},
		{Keywords: []string{"router", "broken"}, Signal: domain.SignalSuccess, Conditions: []int{1}},
		{Keywords: []string{"bye"}, Signal: domain.SignalFailure},
	}}
	ctx := context.Background()

	eval := func(utterance string) domain.TurnVerdict {
		req := request()
		req.UtteranceHistory = []string{"earlier line about a router", utterance}
		v, err := r.Evaluate(ctx, req)
		require.NoError(t, err)
		return v
	}

	v := eval("My ROUTER is Broken")
	assert.Equal(t, domain.SignalSuccess, v.Signal)
	assert.Equal(t, []int{1}, v.SatisfiedConditionIDs)

	v = eval("it is broken")
	assert.Equal(t, domain.SignalNone, v.Signal, "only the latest utterance counts")

	v = eval("ok bye")
	assert.Equal(t, domain.SignalFailure, v.Signal)

	v = eval("you idiot, bye")
	assert.Equal(t, []string{"insults the agent"}, v.RedFlags, "first matching rule wins")

	v = eval("I want to say: states the problem")
	assert.Equal(t, []int{1}, v.SatisfiedConditionIDs)
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
rules:
  - keywords: [refund]
    signal: success
    conditions: [2]
`), 0644))

	r, err := evaluator.LoadRules(good)
	require.NoError(t, err)
	require.Len(t, r.Rules, 1)
	assert.Equal(t, []int{2}, r.Rules[0].Conditions)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - keywords: [x]\n    signal: maybe\n"), 0644))
	_, err = evaluator.LoadRules(bad)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
