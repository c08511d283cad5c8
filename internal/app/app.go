// Package app provides the top-level application lifecycle management for the
// value-betting agent. It wires together all dependencies (stores, Redis,
// exchange, feed, forecaster, and notifications) and runs the configured
// operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/valuebot/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// the cleanup function produced by Wire, which is called on Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, selects the
// operating mode, and blocks until the mode finishes or the context is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.Bool("paper", a.cfg.Trading.Paper),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	a.cleanup = cleanup

	switch strings.ToLower(a.cfg.Mode) {
	case "trade":
		return a.runTradeMode(ctx, deps)
	case "games":
		return a.runGamesMode(ctx, deps)
	default:
		return fmt.Errorf("app: unknown mode %q", a.cfg.Mode)
	}
}

// Close releases resources acquired during Run.
func (a *App) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
