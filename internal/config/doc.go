// Package config provides the configuration model and loading for avaroute.
//
// A configuration document describes the HTTP server, observability,
// static roots, filters and inline routes. It is loaded from YAML with
// environment variable substitution, validated, and can be watched for
// hot reload.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("avaroute.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Values may reference the environment as ${VAR} or ${VAR:-default}.
// A literal dollar sign is written as $$.
//
// # File Watching
//
//	watcher, err := config.NewWatcher("avaroute.yaml", func(cfg *config.Config) {
//	    // rebuild and swap the router
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := watcher.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer watcher.Stop()
package config
