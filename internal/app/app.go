package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackmichael/caughtup/internal/bluesky"
	"github.com/blackmichael/caughtup/internal/config"
	"github.com/blackmichael/caughtup/internal/domain"
	"github.com/blackmichael/caughtup/internal/firehose"
	"github.com/blackmichael/caughtup/internal/httpserver"
	"github.com/blackmichael/caughtup/internal/sqlite"
)

// App holds the wired dependencies shared by the server and the CLI.
type App struct {
	Config  *config.Config
	Client  *bluesky.Client
	Service *domain.TimelineService

	repo   *sqlite.Repository
	logger *slog.Logger
}

// New signs in, opens the database and builds the timeline service. The
// caller should call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	client := bluesky.NewClient(cfg.PDS)
	if err := client.Login(ctx, cfg.Handle, cfg.AppPassword); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	logger.Info("logged in", "did", client.DID(), "handle", cfg.Handle)

	repo, err := sqlite.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}

	service, err := domain.NewTimelineService(cfg.FilterSettings(), client, repo, repo, logger)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("create timeline service: %w", err)
	}

	return &App{
		Config:  cfg,
		Client:  client,
		Service: service,
		repo:    repo,
		logger:  logger,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.repo.Close()
}

// Serve runs the HTTP API, and the live feed when enabled, until ctx is
// cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.Config.LiveEnabled {
		if err := a.Service.LoadFollows(ctx); err != nil {
			a.logger.Error("failed to load follows, live feed disabled", "error", err)
		} else {
			subscriber := firehose.NewSubscriber(a.Config.FirehoseURL, a.Service, a.logger)
			go func() {
				if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
					a.logger.Error("firehose subscriber exited with error", "error", err)
				}
			}()
		}
	}

	server := httpserver.NewServer(a.Config.Port, a.Service, a.logger)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	a.logger.Info("server started", "port", a.Config.Port, "live", a.Config.LiveEnabled)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("error shutting down http server", "error", err)
	}
	return nil
}
