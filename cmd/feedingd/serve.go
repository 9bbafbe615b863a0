package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DaDevFox/task-systems/feeding-core/internal/httpapi"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(flags *rootFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the daily reminder check",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.close()

			if port == 0 {
				port = a.config.HTTP.Port
			}

			opts := httpapi.Options{
				Feeding:     a.feeding,
				Inventory:   a.inventory,
				Logger:      a.logger,
				Now:         a.now,
				HorizonDays: a.config.Shopping.HorizonDays,
			}
			if a.config.Scheduler.Enabled {
				if err := a.scheduler.Start(ctx); err != nil {
					return err
				}
				defer a.scheduler.Stop()
				opts.Checker = a.scheduler
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           httpapi.NewRouter(opts),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.WithField("addr", srv.Addr).Info("HTTP server listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("Shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides config)")
	return cmd
}
