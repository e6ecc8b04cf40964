// Package main is the entry point for avaroute.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Default flag values, overridable through the environment.
const (
	defaultConfigPath = "configs/avaroute.yaml"
	defaultEnvFile    = ".env"
)

// cliFlags holds the persistent command line flags.
type cliFlags struct {
	configPath string
	envFiles   []string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "avaroute",
		Short: "Route requests through filters, handlers and static roots",
		Long: `avaroute serves HTTP requests from a YAML configuration.

Requests pass through the configured filters (CORS, basic auth, rate limit,
CEL rules) in order, then through the inline routes, newest first, and
finally through the static roots.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.LoadDotEnv(flags.envFiles...)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c",
		getEnvOrDefault("AVAROUTE_CONFIG_PATH", defaultConfigPath), "Path to configuration file")
	pf.StringSliceVar(&flags.envFiles, "env-file", []string{defaultEnvFile},
		"Env files loaded before the configuration")
	pf.StringVar(&flags.logLevel, "log-level", os.Getenv("AVAROUTE_LOG_LEVEL"),
		"Log level override (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", os.Getenv("AVAROUTE_LOG_FORMAT"),
		"Log format override (json, console)")

	rootCmd.AddCommand(
		serveCmd(flags),
		routesCmd(flags),
		versionCmd(),
	)

	return rootCmd
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig resolves, loads and validates the configuration file.
func loadConfig(path string) (*config.Config, string, error) {
	resolved, err := config.ResolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.LoadConfig(resolved)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, resolved, nil
}

// newLogger creates the logger from the configuration and flag overrides.
func newLogger(cfg *config.Config, flags *cliFlags) (observability.Logger, error) {
	logCfg := observability.DefaultLogConfig()
	if cfg.Logging.Level != "" {
		logCfg.Level = cfg.Logging.Level
	}
	if cfg.Logging.Format != "" {
		logCfg.Format = cfg.Logging.Format
	}
	if flags.logLevel != "" {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		logCfg.Format = flags.logFormat
	}

	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
