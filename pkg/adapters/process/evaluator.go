package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/pkg/adapters/evaluator"
	"github.com/aretw0/scenaria/pkg/domain"
)

// DefaultGracePeriod is how long a cancelled evaluator process may take to exit after
// being interrupted before it is killed.
const DefaultGracePeriod = 5 * time.Second

// Evaluator runs a local command per turn. The evaluation request is written as JSON to
// the process stdin and the verdict is read from stdout.
//
// The request is never passed as command-line arguments, so utterances cannot inject flags.
type Evaluator struct {
	cfg    Config
	dir    string
	grace  time.Duration
	logger *slog.Logger
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) Option {
	return func(e *Evaluator) {
		e.dir = dir
	}
}

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(e *Evaluator) {
		e.grace = d
	}
}

// WithLogger configures a logger for the Evaluator.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New creates an Evaluator for cfg.
func New(cfg Config, opts ...Option) *Evaluator {
	e := &Evaluator{
		cfg:    cfg,
		grace:  DefaultGracePeriod,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate implements ports.Evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.TurnVerdict, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return domain.TurnVerdict{}, fmt.Errorf("marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.cfg.Command, e.cfg.Args...)
	cmd.Dir = e.dir
	cmd.Stdin = bytes.NewReader(input)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = e.grace

	env := []string{
		"SCENARIA_SESSION_ID=" + req.SessionID,
		"SCENARIA_PHASE=" + req.PhaseName,
	}
	for k, v := range e.cfg.Environment {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%v)", ctxErr, err)
		}
		e.logger.Warn("evaluator process failed",
			"evaluator", e.cfg.Name,
			"session_id", req.SessionID,
			"err", err,
		)
		return domain.TurnVerdict{}, &domain.EvaluatorUnavailableError{
			Cause: fmt.Errorf("execution failed: %w. Stderr: %s", err, strings.TrimSpace(stderr.String())),
		}
	}

	return evaluator.DecodeVerdict(bytes.TrimSpace(stdout.Bytes()))
}
