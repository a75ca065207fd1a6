// Package main is the entry point for the file chat server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(ctx, afero.NewOsFs())
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
