package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/JonMunkholm/cademycode/internal/pipeline"
	"github.com/JonMunkholm/cademycode/internal/web"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, run history, run triggers and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := []web.Option{web.WithMetrics(a.recorder.Handler())}
			if a.history != nil {
				opts = append(opts, web.WithHistory(a.history))
			}
			server := web.NewServer(a.runner, c.cfg.Server, opts...)

			if runOnStart {
				if _, err := a.runner.Start(ctx); err != nil {
					slog.Warn("initial run not started", "error", err)
				}
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown error", "error", err)
			}

			// Wait for an active run to finish (with timeout)
			if a.runner.Busy() {
				slog.Info("waiting for pipeline run to complete")
				if err := waitIdle(shutdownCtx, a.runner); err != nil {
					slog.Warn("pipeline run did not complete in time", "error", err)
				} else {
					slog.Info("pipeline run completed")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "trigger a pipeline run as soon as the server starts")
	return cmd
}

// waitIdle polls until no run is active or ctx is done.
func waitIdle(ctx context.Context, r *pipeline.Runner) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for r.Busy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
