package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/aretw0/scenaria"
	"github.com/aretw0/scenaria/internal/adapters/file"
	"github.com/aretw0/scenaria/internal/config"
	"github.com/aretw0/scenaria/pkg/adapters/evaluator"
	httpAdapter "github.com/aretw0/scenaria/pkg/adapters/http"
	loamAdapter "github.com/aretw0/scenaria/pkg/adapters/loam"
	"github.com/aretw0/scenaria/pkg/adapters/memory"
	"github.com/aretw0/scenaria/pkg/adapters/process"
	"github.com/aretw0/scenaria/pkg/adapters/redis"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/observability"
	"github.com/aretw0/scenaria/pkg/persistence/middleware"
	"github.com/aretw0/scenaria/pkg/ports"
	"github.com/aretw0/scenaria/pkg/runner"
	"github.com/prometheus/client_golang/prometheus"
)

// App bundles everything a command needs: the engine plus the pieces the
// transports expose directly.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Engine   *scenaria.Engine
	Streams  *httpAdapter.StreamManager
	Registry *prometheus.Registry
}

// Sanitizer returns the utterance limits every transport applies.
func (a *App) Sanitizer() runner.Sanitizer {
	return runner.Sanitizer{MaxBytes: a.Config.Engine.MaxUtteranceBytes}
}

// NewApp builds an App from cfg. Scenarios are opened writable so that
// publish and PUT /scenarios can store new versions.
func NewApp(cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Streams:  httpAdapter.NewStreamManager(logger),
		Registry: prometheus.NewRegistry(),
	}

	lib, err := loamAdapter.OpenWritable(cfg.Scenarios, loamAdapter.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("error opening scenarios: %w", err)
	}

	store, locker, err := newStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	ev, err := newEvaluator(cfg.Evaluator, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics(app.Registry)
	engineOpts := []scenaria.Option{
		scenaria.WithLibrary(lib),
		scenaria.WithStore(store),
		scenaria.WithLogger(logger),
		scenaria.WithLifecycleHooks(observability.Chain(observability.LoggingHooks(logger), metrics.Hooks())),
		scenaria.WithFinalTurnGrace(cfg.Engine.FinalTurnGrace),
		scenaria.WithEvaluatorTimeout(cfg.Evaluator.Timeout),
		scenaria.WithDiffListener(app.Streams.PublishDiff),
	}
	if locker != nil {
		engineOpts = append(engineOpts, scenaria.WithLocker(locker))
	}
	if ev != nil {
		engineOpts = append(engineOpts, scenaria.WithEvaluator(ev))
	}

	app.Engine, err = scenaria.New(cfg.Scenarios, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return app, nil
}

// newStore picks the session backend and applies redaction and encryption.
// Only redis comes with a distributed locker.
func newStore(cfg config.Store) (ports.StateStore, ports.DistributedLocker, error) {
	store, locker, err := newBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.Redact)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, mw)
	}
	if len(cfg.EncryptionKeys) > 0 {
		keys := make([][]byte, len(cfg.EncryptionKeys))
		for i, k := range cfg.EncryptionKeys {
			if keys[i], err = base64.StdEncoding.DecodeString(k); err != nil {
				return nil, nil, &domain.ValidationError{Field: fmt.Sprintf("store.encryption_keys[%d]", i), Reason: "not valid base64"}
			}
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: keys[0], FallbackKeys: keys[1:]})
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), locker, nil
}

func newBackend(cfg config.Store) (ports.StateStore, ports.DistributedLocker, error) {
	switch cfg.Backend {
	case config.StoreMemory, "":
		return memory.NewStore(), nil, nil
	case config.StoreFile:
		return file.New(cfg.Path), nil, nil
	case config.StoreRedis:
		opts := []redis.Option{redis.WithPrefix(cfg.Redis.Prefix)}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Redis.TTL))
		}
		store := redis.New(cfg.Redis.Addr, opts...)
		return store, redis.NewLocker(store.Client(), cfg.Redis.Prefix), nil
	}
	return nil, nil, &domain.ValidationError{Field: "store.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Backend)}
}

// newEvaluator returns nil when nothing is configured; turns then need an explicit verdict.
func newEvaluator(cfg config.Evaluator, logger *slog.Logger) (ports.Evaluator, error) {
	switch {
	case cfg.URL != "":
		return evaluator.NewClient(cfg.URL,
			evaluator.WithTimeout(cfg.Timeout),
			evaluator.WithLogger(logger),
		), nil
	case cfg.Command != "":
		return process.New(process.Config{Name: filepath.Base(cfg.Command), Command: cfg.Command, Args: cfg.Args},
			process.WithLogger(logger),
		), nil
	case cfg.Name != "":
		registry, err := process.LoadConfig(cfg.Registry)
		if err != nil {
			return nil, err
		}
		entry, ok := registry[cfg.Name]
		if !ok {
			return nil, &domain.ValidationError{Field: "evaluator.name", Reason: fmt.Sprintf("%q not found in %s", cfg.Name, cfg.Registry)}
		}
		return process.New(entry,
			process.WithBaseDir(filepath.Dir(cfg.Registry)),
			process.WithLogger(logger),
		), nil
	case cfg.Rules != "":
		rules, err := evaluator.LoadRules(cfg.Rules)
		if err != nil {
			return nil, err
		}
		return rules, nil
	}
	return nil, nil
}

// determineScenario resolves the scenario to play when none was named: the only
// published scenario, then start/main/index, then one named after the library directory.
func determineScenario(ctx context.Context, lib ports.ScenarioLibrary, dir string) (string, error) {
	ids, err := lib.List(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) == 1 {
		return ids[0], nil
	}
	candidates := []string{"start", "main", "index"}
	if dir != "" {
		candidates = append(candidates, filepath.Base(dir))
	}
	for _, c := range candidates {
		if slices.Contains(ids, c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: no default among %d scenarios, pass one explicitly", domain.ErrScenarioNotFound, len(ids))
}
