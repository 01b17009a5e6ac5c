// Package app provides the top-level application lifecycle for the betting
// engine. It wires together all dependencies (stores, caches, blob storage,
// the bet service, and notifications) and starts the goroutines for the
// configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/easybet/internal/config"
	"github.com/alanyoungcy/easybet/internal/domain"
	"github.com/alanyoungcy/easybet/internal/service"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, restores engine
// state from the stores, starts the goroutines for the configured mode, and
// blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	svc, err := service.NewBetService(
		a.cfg.Engine.Authority,
		a.cfg.Engine.Escrow,
		domain.RealClock{},
		service.Deps{
			Accounts:  deps.AccountStore,
			Rounds:    deps.RoundStore,
			Claims:    deps.ClaimStore,
			Journal:   deps.JournalStore,
			Bus:       deps.SignalBus,
			Snapshots: deps.Snapshots,
			Notifier:  deps.Notifier,
		},
		a.logger,
	)
	if err != nil {
		return fmt.Errorf("app: build bet service: %w", err)
	}

	if err := svc.Load(ctx); err != nil {
		return fmt.Errorf("app: restore engine state: %w", err)
	}

	mode := strings.ToLower(a.cfg.Mode)
	switch mode {
	case "server":
		return a.ServerMode(ctx, deps, svc, false)
	case "readonly":
		return a.ServerMode(ctx, deps, svc, true)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
