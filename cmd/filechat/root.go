package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"filechat/config"
	"filechat/internal/logging"
	"filechat/internal/version"
)

// NewRootCommand returns the root command with all subcommands attached.
// Running it without a subcommand starts the server.
func NewRootCommand(ctx context.Context, fs afero.Fs) *cobra.Command {
	cobra.EnableCommandSorting = false
	serve := NewServeCommand(ctx, fs)
	rootCmd := &cobra.Command{
		Use:   "filechat",
		Short: "Chat with a generative model about uploaded files.",
		Long: `filechat accepts chat messages with file attachments (PDF, Word, text, image,
audio and video), extracts their content and forwards everything to a generative
model, returning the model's answer as JSON.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(NewExtractCommand(ctx, fs))
	rootCmd.AddCommand(NewVersionCommand())
	return rootCmd
}

// NewVersionCommand prints build information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}

// loadConfig loads configuration and installs the configured default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Format, cfg.Logging.Level, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cfg, nil
}
