package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/covid-trends/internal/adapter/http"
	"github.com/couchcryptid/covid-trends/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh on REFRESH_SCHEDULE and serve health, metrics, and charts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			logger := a.logger

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p := a.newPipeline(nil)
			srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.cfg.OutputDir, p, logger)

			sched, err := pipeline.NewScheduler(ctx, a.cfg.RefreshSchedule, p, logger)
			if err != nil {
				return err
			}

			// Start HTTP server.
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
					stop()
				}
			}()

			// The first run's failure is logged; /readyz stays 503 until a later run succeeds.
			_ = sched.Start(ctx)

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()

			select {
			case <-sched.Stop().Done():
			case <-shutdownCtx.Done():
				logger.Warn("scheduled run still in progress at shutdown deadline")
			}
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}

			logger.Info("shutdown complete")
			return nil
		},
	}
}
