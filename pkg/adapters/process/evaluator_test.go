package process_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/aretw0/scenaria/pkg/adapters/process"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.Evaluator = (*process.Evaluator)(nil)

func shell(t *testing.T, script string) process.Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell fixtures need a POSIX sh")
	}
	return process.Config{Name: "test", Command: "sh", Args: []string{"-c", script}}
}

func request() domain.EvaluationRequest {
	return domain.EvaluationRequest{SessionID: "s1", PhaseName: "welcome", UtteranceHistory: []string{"hi"}}
}

func TestEvaluator_ReadsVerdictFromStdout(t *testing.T) {
	cfg := shell(t, `cat > /dev/null; echo '{"signal":"success","satisfied_condition_ids":[2]}'`)

	v, err := process.New(cfg).Evaluate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, domain.SignalSuccess, v.Signal)
	assert.Equal(t, []int{2}, v.SatisfiedConditionIDs)
}

func TestEvaluator_ReceivesRequestOnStdin(t *testing.T) {
	// Echo the request back as a red flag so the test can inspect what the process saw.
	cfg := shell(t, `read -r line; printf '{"signal":"none","red_flags":["%s|%s"]}' "$SCENARIA_SESSION_ID" "$MODE"`)
	cfg.Environment = map[string]string{"MODE": "strict"}

	v, err := process.New(cfg).Evaluate(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1|strict"}, v.RedFlags)
}

func TestEvaluator_Failures(t *testing.T) {
	t.Run("Crash", func(t *testing.T) {
		cfg := shell(t, `echo "Something went terribly wrong" >&2; exit 123`)
		_, err := process.New(cfg).Evaluate(context.Background(), request())
		assert.ErrorIs(t, err, domain.ErrEvaluatorUnavailable)
		assert.Contains(t, err.Error(), "exit status 123")
		assert.Contains(t, err.Error(), "Something went terribly wrong")
	})

	t.Run("Garbage Output", func(t *testing.T) {
		cfg := shell(t, `echo "yes I think so"`)
		_, err := process.New(cfg).Evaluate(context.Background(), request())
		assert.ErrorIs(t, err, domain.ErrSchema)
	})

	t.Run("Deadline", func(t *testing.T) {
		cfg := shell(t, `sleep 10`)
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := process.New(cfg, process.WithGracePeriod(500*time.Millisecond)).Evaluate(ctx, request())
		assert.ErrorIs(t, err, domain.ErrEvaluatorUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evaluators.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
evaluators:
  - name: judge
    command: python3
    args: [judge.py]
    env:
      MODEL: small
  - name: ""
    command: ignored
`), 0644))

	cfgs, err := process.LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, []string{"judge.py"}, cfgs["judge"].Args)
	assert.Equal(t, "small", cfgs["judge"].Environment["MODEL"])

	missing, err := process.LoadConfig(filepath.Join(dir, "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}
