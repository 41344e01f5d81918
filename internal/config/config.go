// Package config loads the optional scenaria.yaml project file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aretw0/scenaria/pkg/domain"
	"gopkg.in/yaml.v3"
)

// DefaultPath is looked up in the working directory when no --config flag is given.
const DefaultPath = "scenaria.yaml"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the project configuration. Zero values mean "use the default".
type Config struct {
	// Scenarios is the directory holding interchange documents.
	Scenarios string `yaml:"scenarios"`

	Server    Server    `yaml:"server"`
	Store     Store     `yaml:"store"`
	Evaluator Evaluator `yaml:"evaluator"`
	Engine    Engine    `yaml:"engine"`

	LogLevel string `yaml:"log_level"`
}

// Server configures `scenaria serve`.
type Server struct {
	Addr string `yaml:"addr"`
}

// Store selects where sessions are persisted.
type Store struct {
	Backend string `yaml:"backend"`
	// Path is the file backend directory.
	Path  string `yaml:"path"`
	Redis Redis  `yaml:"redis"`

	// EncryptionKeys are base64 AES-256 keys. The first seals new states, the rest
	// only open states sealed before a rotation.
	EncryptionKeys []string `yaml:"encryption_keys"`
	// Redact lists regular expressions masked out of persisted utterances.
	Redact []string `yaml:"redact"`
}

// Redis configures the redis backend and the distributed locker.
type Redis struct {
	Addr   string        `yaml:"addr"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

// Evaluator selects the decision service. URL takes precedence over Command,
// and Command over Name.
type Evaluator struct {
	URL     string        `yaml:"url"`
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
	// Name picks an entry from the Registry file (evaluators.yaml).
	Name     string `yaml:"name"`
	Registry string `yaml:"registry"`
	// Rules is a keyword rules file, the last resort.
	Rules string `yaml:"rules"`
}

// Engine tunes traversal.
type Engine struct {
	FinalTurnGrace bool `yaml:"final_turn_grace"`
	// MaxUtteranceBytes caps a single user message on every transport. Zero keeps the
	// runner default.
	MaxUtteranceBytes int `yaml:"max_utterance_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Scenarios: "scenarios",
		Server:    Server{Addr: ":8080"},
		Store: Store{
			Backend: StoreFile,
			Path:    ".scenaria/sessions",
			Redis:   Redis{Addr: "localhost:6379", Prefix: "scenaria:"},
		},
		Evaluator: Evaluator{Timeout: 30 * time.Second, Registry: "evaluators.yaml"},
		LogLevel:  "info",
	}
}

// Load reads path over the defaults. A missing file is not an error when optional is set.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks enumerations and required combinations.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return &domain.ValidationError{Field: "store.backend", Reason: fmt.Sprintf("unknown backend %q", c.Store.Backend)}
	}
	if c.Store.Backend == StoreRedis && c.Store.Redis.Addr == "" {
		return &domain.ValidationError{Field: "store.redis.addr", Reason: "required for the redis backend"}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Evaluator.Timeout < 0 {
		return &domain.ValidationError{Field: "evaluator.timeout", Reason: "must not be negative"}
	}
	if c.Engine.MaxUtteranceBytes < 0 {
		return &domain.ValidationError{Field: "engine.max_utterance_bytes", Reason: "must not be negative"}
	}
	return nil
}

// Level returns the parsed log level.
func (c Config) Level() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

// ParseLevel maps debug/info/warn/error (case-insensitive) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, &domain.ValidationError{Field: "log_level", Reason: fmt.Sprintf("unknown level %q", s)}
}
