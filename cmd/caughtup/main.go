package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/blackmichael/caughtup/internal/app"
	"github.com/blackmichael/caughtup/internal/command"
	"github.com/blackmichael/caughtup/internal/config"
)

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func main() {
	root := command.NewRootCmd(Version, command.Deps{Open: open, Serve: serve})
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func open(ctx context.Context, logger *slog.Logger) (command.Service, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a.Service, a.Close, nil
}

func serve(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Serve(ctx)
}
