package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aretw0/scenaria/internal/config"
	"github.com/aretw0/scenaria/internal/logging"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger configures the application logger. Logs always go to stderr so stdout
// stays free for the conversation or JSON frames. debug overrides the configured level.
func NewLogger(cfg config.Config, debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(cfg.Level())
}

// LoadConfig reads the project file. Without an explicit path the default is optional.
// A non-empty scenarios flag overrides the file.
func LoadConfig(path, scenarios string) (config.Config, error) {
	optional := path == ""
	if optional {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path, optional)
	if err != nil {
		return cfg, err
	}
	if scenarios != "" {
		cfg.Scenarios = scenarios
	}
	return cfg, nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

// HandleExecutionError maps interruptions to a clean exit.
func HandleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil
	}
	return err
}

// LogCompletion reports where an unfinished session stopped.
func LogCompletion(w io.Writer, phase string, err error, sig os.Signal) {
	if err == nil {
		printSystemMessage(w, "Stopped at '%s' phase.", phase)
		return
	}
	if !isInterrupted(err) {
		return
	}
	switch sig {
	case os.Interrupt:
		fmt.Fprintf(w, "[CTRL+C]\n")
		printSystemMessage(w, "Interrupted at '%s' phase.", phase)
	default:
		fmt.Fprintln(w)
		printSystemMessage(w, "Terminated at '%s' phase.", phase)
	}
}
