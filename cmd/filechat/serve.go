package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"filechat/internal/app"
	"filechat/internal/version"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand starts the HTTP server and stops it gracefully when ctx is done.
func NewServeCommand(ctx context.Context, fs afero.Fs) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			slog.Info("starting filechat",
				"version", version.Version,
				"commit", version.Commit,
				"build_date", version.Date,
			)

			application, err := app.New(ctx, cfg, app.Options{Fs: fs})
			if err != nil {
				slog.Error("failed to initialize application", "error", err)
				return err
			}

			shutdownDone := make(chan struct{})
			go func() {
				defer close(shutdownDone)
				<-ctx.Done()
				slog.Info("shutting down server...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := application.Shutdown(shutdownCtx); err != nil {
					slog.Error("shutdown error", "error", err)
				}
			}()

			if err := application.Start(":" + cfg.Server.Port); err != nil {
				slog.Error("server failed", "error", err)
				_ = application.Shutdown(context.Background()) //nolint:errcheck
				return err
			}
			<-shutdownDone
			return nil
		},
	}
}
