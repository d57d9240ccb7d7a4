package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/serroba/docstore/internal/api"
	"github.com/serroba/docstore/internal/telemetry"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() {
				if err := a.Close(); err != nil {
					a.log.Error("close store", "error", err)
				}
			}()

			shutdownTracing, err := telemetry.Init(telemetry.Config{
				ServiceName: "docstore",
				Exporter:    a.cfg.Tracing.Exporter,
				Output:      cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}

			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := shutdownTracing(ctx); err != nil {
					a.log.Error("flush traces", "error", err)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx)
		},
	}
}

// serve runs the HTTP server until ctx ends, then shuts it down.
func (a *app) serve(ctx context.Context) error {
	handler := api.NewServer(api.Config{
		DB:          a.db,
		Hub:         a.hub,
		Metrics:     a.metrics,
		Logger:      a.log,
		Checker:     a.checker,
		RequireUser: a.cfg.ACL.Enabled,
		WriteRate:   a.cfg.HTTP.WriteRate,
		WriteBurst:  a.cfg.HTTP.WriteBurst,
	})

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("listening", "addr", a.cfg.Addr, "backend", a.cfg.Storage.Backend)

		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", a.cfg.Addr, err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		a.log.Info("shutting down")

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
