package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/scenaria"
	"github.com/aretw0/scenaria/internal/cli"
	httpAdapter "github.com/aretw0/scenaria/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves scenarios and sessions as a JSON API, per-session state changes as
Server-Sent Events on /events and Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		addr := app.Config.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		watch, _ := cmd.Flags().GetBool("watch")

		opts := []httpAdapter.Option{
			httpAdapter.WithStreams(app.Streams),
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})),
			httpAdapter.WithLogger(app.Logger),
			httpAdapter.WithSanitizer(app.Sanitizer()),
			httpAdapter.WithVersion(strings.TrimSpace(scenaria.Version)),
		}
		if ev := app.Engine.Evaluator(); ev != nil {
			opts = append(opts, httpAdapter.WithEvaluator(ev))
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           httpAdapter.NewHandler(app.Engine.Library(), app.Engine.Sessions(), opts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		if watch {
			go func() {
				if err := cli.WatchLibrary(sigCtx, app, cmd.ErrOrStderr()); err != nil {
					app.Logger.Warn("watcher stopped", "err", err)
				}
			}()
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("server starting", "addr", srv.Addr, "scenarios", app.Config.Scenarios)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-sigCtx.Done():
			app.Logger.Info("shutdown started", "signal", sigCtx.Signal())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				app.Logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			app.Logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("watch", false, "Revalidate scenarios as their files change")
}
