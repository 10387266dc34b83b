// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serve implements the serve command: the long-running MCP bridge.
package serve

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hubbridge/hubbridge/internal/audit"
	"github.com/hubbridge/hubbridge/internal/auth"
	"github.com/hubbridge/hubbridge/internal/bridge"
	"github.com/hubbridge/hubbridge/internal/commands/shared"
	"github.com/hubbridge/hubbridge/internal/config"
	"github.com/hubbridge/hubbridge/internal/hub"
	"github.com/hubbridge/hubbridge/internal/hub/transport"
	"github.com/hubbridge/hubbridge/internal/log"
	"github.com/hubbridge/hubbridge/internal/secrets"
	"github.com/hubbridge/hubbridge/internal/tracing"
)

var (
	serveEndpoint    string
	serveWatch       bool
	serveLogLevel    string
	serveMetricsAddr string
	serveAuditDB     string
)

// NewCommand creates the serve command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP on stdio, bridging tool calls to the hub",
		Long: `Start the bridge: speak MCP on stdio toward the assistant and forward
tool calls to the configured hub over WebSocket RPC.

The hub connection is managed transparently: the bridge connects on the
first tool call (or eagerly at startup), retries failed attempts, and
reconnects after unexpected closures. Closing stdin shuts the bridge
down.

Examples:
  hubbridge serve
  hubbridge serve --endpoint wss://hub.example.com/live
  hubbridge serve --config ./hubbridge.yaml --watch`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveEndpoint, "endpoint", "", "Hub endpoint URL (overrides config)")
	cmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload tool configuration when the config file changes")
	cmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Prometheus scrape listener address (overrides config)")
	cmd.Flags().StringVar(&serveAuditDB, "audit-db", "", "Audit database path (overrides config, implies audit enabled)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	if serveEndpoint != "" {
		cfg.Endpoint = serveEndpoint
	}
	if serveMetricsAddr != "" {
		cfg.Metrics.Addr = serveMetricsAddr
	}
	if serveAuditDB != "" {
		cfg.Audit.Enabled = true
		cfg.Audit.Path = serveAuditDB
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	version, _, _ := shared.GetVersion()

	// Secrets and auth.
	resolver, err := secrets.DefaultResolver("hubbridge", "")
	if err != nil {
		return shared.NewConfigError("failed to initialize secrets", err)
	}
	tokenSource, err := auth.FromConfig(cfg.Auth, resolver, logger)
	if err != nil {
		return shared.NewAuthError("failed to configure authentication", err)
	}

	// Hub connection manager.
	provider := transport.NewProvider(transport.Options{
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
		PingInterval:     cfg.Transport.PingInterval,
		TokenSource:      tokenSource,
		Logger:           logger.With("component", "transport"),
	})
	manager, err := hub.NewManager(cfg.Endpoint, provider, hub.Options{
		StartTimeout:   cfg.Connection.StartTimeout,
		RetryInterval:  cfg.Connection.RetryInterval,
		StopTimeout:    cfg.Connection.StopTimeout,
		DisposeTimeout: cfg.Connection.DisposeTimeout,
		Logger:         logger.With("component", "hub"),
	})
	if err != nil {
		return shared.NewConfigError("invalid connection configuration", err)
	}
	defer manager.Close()

	// Telemetry.
	tracer, err := tracing.NewProvider(cmd.Context(), cfg.Tracing, version)
	if err != nil {
		return shared.NewConfigError("failed to initialize tracing", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	observers := []bridge.Observer{
		log.NewInvocationLogger(logger.With("component", "bridge")),
		tracer.Metrics(),
	}

	// Invocation audit log.
	if cfg.Audit.Enabled {
		store, err := openAuditStore(cfg, logger)
		if err != nil {
			return shared.NewConfigError("failed to open audit database", err)
		}
		defer store.Close()
		observers = append(observers, audit.NewObserver(store, logger))
	}

	// Count connects and reconnects off the observable state stream.
	states, cancelStates := manager.StateChanges()
	defer cancelStates()
	go tracer.Metrics().WatchStates(context.Background(), states)

	server, err := bridge.NewServer(bridge.ServerConfig{
		Bridge:    cfg.Bridge,
		Version:   version,
		Invoker:   manager,
		Logger:    logger.With("component", "bridge"),
		Observers: observers,
	})
	if err != nil {
		return shared.NewConfigError("failed to build tool surface", err)
	}

	// Prometheus scrape listener, if configured.
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, tracer, logger)
	}

	// Republish tools when the config file changes.
	if serveWatch && configPath != "" {
		watcher, err := config.NewWatcher(config.WatcherConfig{
			Path: configPath,
			OnReload: func(next *config.Config) {
				if err := server.Reload(next.Bridge); err != nil {
					logger.Warn("tool reload failed", "error", err)
				}
			},
			Logger: logger.With("component", "config"),
		})
		if err != nil {
			return shared.NewConfigError("failed to watch config file", err)
		}
		defer watcher.Close()
	}

	// Eager connect so the first tool call does not pay the dial latency.
	// Failure here is fine; invocations connect implicitly.
	go manager.Connect(cmd.Context())

	logger.Info("hubbridge starting", "version", version, "endpoint", cfg.Endpoint)

	// ServeStdio returns when the client closes stdin. A signal takes the
	// graceful path instead.
	done := make(chan error, 1)
	go func() { done <- server.Run(cmd.Context()) }()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case err := <-done:
		// The host hung up; tear down without ceremony.
		manager.DisconnectImmediate()
		if err != nil {
			return shared.NewConnectionError("bridge terminated", err)
		}
		return nil

	case sig := <-signals:
		logger.Info("shutting down", "signal", sig.String())
		shutdownManager(manager, cfg.Connection.StopTimeout, logger)
		return nil
	}
}

// disconnector is the slice of the hub manager the shutdown path needs.
type disconnector interface {
	Disconnect(ctx context.Context) error
	DisconnectImmediate()
}

// shutdownManager tries a graceful disconnect within timeout and falls
// back to immediate teardown when the graceful path fails or expires.
func shutdownManager(m disconnector, timeout time.Duration, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := m.Disconnect(ctx); err != nil {
		logger.Warn("graceful disconnect failed, forcing teardown", "error", err)
		m.DisconnectImmediate()
	}
}

// loadConfig loads the config from the --config flag or the default
// location. A missing default file is fine; environment variables can
// carry the whole configuration.
func loadConfig() (*config.Config, string, error) {
	path := shared.ResolveConfigPath()

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", shared.NewConfigError("invalid configuration", err)
	}
	return cfg, path, nil
}

// buildLogger builds the process logger from config plus global flags.
func buildLogger(cfg *config.Config) *slog.Logger {
	logCfg := log.FromEnv()
	if cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		logCfg.Format = log.Format(cfg.Log.Format)
	}
	logCfg.AddSource = logCfg.AddSource || cfg.Log.AddSource

	if serveLogLevel != "" {
		logCfg.Level = serveLogLevel
	}
	if shared.GetVerbose() {
		logCfg.Level = "debug"
	}
	if shared.GetQuiet() {
		logCfg.Level = "error"
	}

	return log.New(logCfg)
}

// openAuditStore opens the audit database and prunes expired records.
func openAuditStore(cfg *config.Config, logger *slog.Logger) (*audit.Store, error) {
	path := cfg.Audit.Path
	if path == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "audit.db")
	}

	store, err := audit.Open(path)
	if err != nil {
		return nil, err
	}

	if cfg.Audit.MaxAge > 0 {
		pruneCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		removed, err := store.Prune(pruneCtx, cfg.Audit.MaxAge)
		if err != nil {
			logger.Warn("audit prune failed", "error", err)
		} else if removed > 0 {
			logger.Debug("pruned audit records", "removed", removed)
		}
	}

	return store, nil
}

// serveMetrics runs the Prometheus scrape endpoint until process exit.
func serveMetrics(addr string, tracer *tracing.Provider, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", tracer.MetricsHandler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("metrics listener started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics listener failed", "error", err)
	}
}
