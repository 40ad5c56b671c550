package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nomadhouse/nomadhouse/internal/config"
	"github.com/nomadhouse/nomadhouse/internal/deploy"
	"github.com/nomadhouse/nomadhouse/internal/network"
	"github.com/nomadhouse/nomadhouse/internal/observability/metrics"
	"github.com/nomadhouse/nomadhouse/internal/oracle"
	"github.com/nomadhouse/nomadhouse/internal/server"
	"github.com/nomadhouse/nomadhouse/internal/storage"
	"github.com/nomadhouse/nomadhouse/pkg/client"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "nomadhouse-server",
		Short:   "NomadHouse server - real-estate deed ledger and marketplace",
		Version: version,
	}

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe()
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newKeysCmd())
	rootCmd.AddCommand(newNetworkCmd())
	rootCmd.AddCommand(newOracleCmd())

	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Deploy the ledger if needed and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func newOracleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "oracle",
		Short: "Run the reference title oracle against a server",
		Long: `Run the reference title oracle.

The oracle polls ORACLE_SERVER_URL for pending title verification requests,
fetches each title document from the request URL and fulfills the request.
Authenticate with ORACLE_API_KEY (a key bound to the profile's oracle address)
or, against a server running with AUTH_TYPE=none, set ORACLE_ADDRESS.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOracle()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg)
	logger.Info("starting nomadhouse-server", "version", version, "network", cfg.Network.Name)

	metrics.Init(cfg.Metrics.Enabled, "nomadhouse-server")

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	params, err := resolveNetwork(cfg)
	if err != nil {
		return err
	}
	deployed, err := deploy.Deploy(context.Background(), store, params, logger)
	if err != nil {
		return fmt.Errorf("deploying ledger: %w", err)
	}
	logger.Info("ledger ready",
		"collection", deployed.Collection.Hex(),
		"marketplace", deployed.Marketplace.Hex(),
		"owner", deployed.Owner.Hex(),
		"created", deployed.Created,
	)

	srv := server.New(cfg, store, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 2)
	go func() {
		logger.Info("server listening", "addr", httpServer.Addr, "auth", cfg.Auth.Type)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler:           srv.MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("metrics listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func runOracle() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg)
	metrics.Init(cfg.Metrics.Enabled, "nomadhouse-oracle")

	if cfg.Oracle.APIKey == "" && cfg.Oracle.Address == "" {
		return errors.New("set ORACLE_API_KEY or ORACLE_ADDRESS")
	}
	var opts []client.Option
	if cfg.Oracle.Address != "" {
		opts = append(opts, client.WithCaller(cfg.Oracle.Address))
	}
	api := client.New(cfg.Oracle.ServerURL, cfg.Oracle.APIKey, opts...)

	w := oracle.New(api, oracle.Config{
		PollInterval: cfg.Oracle.PollInterval,
		Workers:      cfg.Oracle.Workers,
		CacheTTL:     cfg.Oracle.CacheTTL,
		HTTPTimeout:  cfg.Oracle.HTTPTimeout,
		Retries:      cfg.Oracle.FulfillRetries,
	}, logger.With("component", "oracle"))

	if cfg.Metrics.Enabled {
		metricsServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting oracle", "version", version, "server", cfg.Oracle.ServerURL)
	return w.Run(ctx)
}

func resolveNetwork(cfg *config.Config) (*network.Params, error) {
	reg, err := network.NewRegistry(cfg.Network.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("loading network profiles: %w", err)
	}
	params, err := reg.Resolve(cfg.Network.Name)
	if err != nil {
		return nil, fmt.Errorf("resolving network: %w", err)
	}
	return params, nil
}

// quietStore opens storage for one-off admin commands
func quietStore() (storage.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	store, err := storage.New(cfg.Storage, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	if err != nil {
		return nil, nil, fmt.Errorf("initializing storage: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, cfg, nil
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Logging.Level),
	}

	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
