package main

import (
	"context"

	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// startConfigWatcher watches configPath and applies every valid change.
// A watcher that fails to start is logged and serving continues without
// hot reload.
func startConfigWatcher(ctx context.Context, app *application, configPath string) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, app.reload,
		config.WithLogger(app.logger),
		config.WithErrorCallback(app.reloadFailed),
	)
	if err != nil {
		app.logger.Error("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		app.logger.Error("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}

	return watcher
}

// reload builds a router from cfg and swaps it into the server. On failure
// the current router stays in place.
func (app *application) reload(cfg *config.Config) {
	r, rateLimit, err := buildRouter(cfg, app.deps)
	if err != nil {
		app.reloadFailed(err)
		return
	}

	app.mu.Lock()
	previous := app.rateLimit
	app.rateLimit = rateLimit
	restartNeeded := cfg.Server != app.config.Server || redisSettings(cfg) != redisSettings(app.config)
	app.config = cfg
	app.mu.Unlock()

	app.server.SetRouter(r)

	if previous != nil {
		previous.Stop()
	}

	if app.metrics != nil {
		app.metrics.RecordReload(true)
	}

	app.logger.Info("configuration reloaded",
		observability.Int("routes", len(cfg.Routes)),
		observability.Int("static_roots", len(cfg.Static)),
		observability.Int("registrations", r.Len()),
	)
	if restartNeeded {
		app.logger.Warn("server or rate limit store settings changed, restart to apply them")
	}
}

// reloadFailed records a rejected configuration.
func (app *application) reloadFailed(err error) {
	if app.metrics != nil {
		app.metrics.RecordReload(false)
	}
	app.logger.Error("configuration reload failed, keeping current configuration",
		observability.Error(err),
	)
}
