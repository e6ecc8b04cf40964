package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/observability"
)

func serveCmd(flags *cliFlags) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and serve requests until SIGINT or SIGTERM.

With --watch the configuration file is reloaded when it changes. Filters,
routes and static roots are replaced atomically; server, logging, metrics
and tracing settings require a restart.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, flags, watch)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", true, "Reload the configuration when the file changes")

	return cmd
}

// runServe runs the server until ctx is done.
func runServe(ctx context.Context, flags *cliFlags, watch bool) error {
	cfg, configPath, err := loadConfig(flags.configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, flags)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting avaroute",
		observability.String("version", version),
		observability.String("config", configPath),
		observability.Int("routes", len(cfg.Routes)),
		observability.Int("static_roots", len(cfg.Static)),
	)

	app, err := newApplication(cfg, logger)
	if err != nil {
		return err
	}

	if err := app.server.Start(ctx); err != nil {
		app.shutdown(context.Background())
		return err
	}
	logger.Info("avaroute ready",
		observability.Bool("tracing", app.tracer.Enabled()),
		observability.Bool("watch", watch),
	)

	var watcher *config.Watcher
	if watch {
		watcher = startConfigWatcher(ctx, app, configPath)
	}

	<-ctx.Done()
	logger.Info("received shutdown signal")

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Error("failed to stop config watcher", observability.Error(err))
		}
	}

	app.shutdown(context.Background())
	return nil
}

// shutdown stops the server and releases the remaining resources.
func (app *application) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, app.config.Server.ShutdownTimeout.Duration())
	defer cancel()

	if app.server.IsRunning() {
		if err := app.server.Stop(shutdownCtx); err != nil {
			app.logger.Error("failed to stop server gracefully", observability.Error(err))
		}
	}

	app.mu.Lock()
	if app.rateLimit != nil {
		app.rateLimit.Stop()
	}
	app.mu.Unlock()

	app.closeRedis()

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	app.logger.Info("avaroute stopped")
}
