package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chronoloom/internal/app"
	"chronoloom/internal/controller"
	"chronoloom/internal/routes"
	"chronoloom/internal/service"
	"chronoloom/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the reconcile loop and the push consumer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		// Startup pass covers whatever changed while the process was down.
		if res, err := a.Service.Resync(ctx, service.TriggerStartup); err != nil {
			logger.Error(ctx, "Startup reconcile failed", "error", err)
		} else {
			logger.Info(ctx, "Startup reconcile done",
				"created", len(res.Created), "cancelled", len(res.Cancelled),
				"skipped", len(res.Skipped), "failures", len(res.Failures))
		}

		if n, err := a.Service.NotifyDueSoon(ctx, a.Sender, cfg.Reconciler.DueSoonWindow); err != nil {
			logger.Error(ctx, "Due-soon digest failed", "error", err)
		} else if n > 0 {
			logger.Info(ctx, "Due-soon digest done", "sent", n)
		}

		if a.Local != nil {
			go a.Local.Run(ctx)
		}
		go a.Service.RunPeriodic(ctx, cfg.Reconciler.Interval)
		if a.Consumer != nil {
			go a.Consumer.Run(ctx)
		}

		if cfg.Auth.JWTSecret == "" {
			logger.Warn(ctx, "auth.jwt_secret is empty; protected routes will reject every request")
		}
		server := &http.Server{
			Addr:         ":" + cfg.HTTP.Port,
			Handler:      routes.Router(controller.New(a.Service, time.Local, a.Checks), cfg.Auth.JWTSecret),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			logger.Info(ctx, "HTTP server listening", "port", cfg.HTTP.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
		case err := <-errCh:
			logger.Error(ctx, "Server error", "error", err)
			return err
		}

		logger.Info(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Server shutdown error", "error", err)
		}
		logger.Info(ctx, "Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
