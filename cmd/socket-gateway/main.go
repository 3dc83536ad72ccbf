package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/actual-software/socket-gateway/internal/auth"
	"github.com/actual-software/socket-gateway/internal/config"
	"github.com/actual-software/socket-gateway/internal/metrics"
	"github.com/actual-software/socket-gateway/internal/ratelimit"
	"github.com/actual-software/socket-gateway/internal/registry"
	"github.com/actual-software/socket-gateway/internal/registry/store"
	"github.com/actual-software/socket-gateway/internal/registry/swarm"
	"github.com/actual-software/socket-gateway/internal/server"
	"github.com/actual-software/socket-gateway/internal/tracing"
)

const defaultTimeoutSeconds = 30

var (
	Version   = "v0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionRequestedError is returned when the version flag is set.
type VersionRequestedError struct{}

func (e VersionRequestedError) Error() string {
	return "version requested"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "socket-gateway",
		Short: "Socket Gateway - WebSocket front end for a swarm registry",
		Long: `Socket Gateway accepts WebSocket clients, decodes their JSON messages
and hands them to the swarm registry, which answers through each peer.`,
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
	rootCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error); overrides logging.level")

	rootCmd.AddCommand(validateCmd())

	return rootCmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")

			return nil
		},
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if err := handleVersionFlag(cmd); err != nil {
		var errVersionRequested VersionRequestedError
		if errors.As(err, &errVersionRequested) {
			return nil
		}

		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := setupLogger(cmd, cfg.Logging)
	if err != nil {
		return err
	}
	defer syncLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.close(logger)

	servers, err := startServers(ctx, cfg, components, logger)
	if err != nil {
		return err
	}

	return waitForShutdown(ctx, servers, logger)
}

// Components are the long-lived dependencies of the servers.
type Components struct {
	Store       store.Store
	Registry    registry.Registry
	RedisClient *redis.Client
	Tracer      *tracing.OTelTracer
	Metrics     *metrics.Registry
}

// Servers are the listeners started by run.
type Servers struct {
	Gateway     *server.GatewayServer
	Diagnostics *server.DiagnosticsServer
}

func handleVersionFlag(cmd *cobra.Command) error {
	showVersion, err := cmd.Flags().GetBool("version")
	if err != nil {
		return fmt.Errorf("failed to get version flag: %w", err)
	}

	if showVersion {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Socket Gateway\n")
		fmt.Fprintf(out, "Version: %s\n", Version)
		fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
		fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)

		return VersionRequestedError{}
	}

	return nil
}

func setupLogger(cmd *cobra.Command, cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get log-level flag: %w", err)
	}

	if level != "" {
		cfg.Level = level
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}

func syncLogger(logger *zap.Logger) {
	if syncErr := logger.Sync(); syncErr != nil {
		// Ignore "sync /dev/stderr: invalid argument" error in containers
		if syncErr.Error() != "sync /dev/stderr: invalid argument" &&
			syncErr.Error() != "sync /dev/stdout: invalid argument" {
			fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", syncErr)
		}
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	logger.Info("Initializing gateway components")

	c := &Components{Metrics: metrics.InitializeMetricsRegistry()}

	tracer, err := tracing.InitOTelTracer(cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	c.Tracer = tracer

	swarmStore, err := store.CreateSwarmStore(ctx, cfg.Registry, logger)
	if err != nil {
		c.close(logger)

		return nil, fmt.Errorf("failed to create swarm store: %w", err)
	}

	c.Store = swarmStore

	tokens, err := auth.InitializeTokenValidator(cfg.Auth, logger)
	if err != nil {
		c.close(logger)

		return nil, fmt.Errorf("failed to create token validator: %w", err)
	}

	interval := time.Duration(cfg.Registry.AnnounceInterval) * time.Second

	var reg registry.Registry = swarm.New(swarmStore, interval, logger, swarm.WithTokenValidator(tokens))

	if cfg.RateLimit.Enabled {
		limiter, err := c.createRateLimiter(ctx, cfg.RateLimit, logger)
		if err != nil {
			c.close(logger)

			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}

		reg = registry.RateLimited(reg, limiter, ratelimit.Limit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}, logger)
	}

	c.Registry = reg

	return c, nil
}

//nolint:ireturn // Factory pattern requires interface return
func (c *Components) createRateLimiter(
	ctx context.Context,
	cfg config.RateLimitConfig,
	logger *zap.Logger,
) (ratelimit.RateLimiter, error) {
	if cfg.Provider == config.ProviderRedis {
		client, err := store.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}

		c.RedisClient = client

		logger.Info("Using Redis rate limiter")

		return ratelimit.CreateRedisBackedRateLimiter(client, cfg.Redis.KeyPrefix, logger), nil
	}

	logger.Info("Using in-memory rate limiter")

	return ratelimit.CreateLocalMemoryRateLimiter(logger), nil
}

func (c *Components) close(logger *zap.Logger) {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			logger.Error("Error closing swarm store", zap.Error(err))
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			logger.Error("Error closing rate limit redis client", zap.Error(err))
		}
	}

	if c.Tracer != nil {
		if err := c.Tracer.Shutdown(context.Background()); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}
}

func startServers(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) (*Servers, error) {
	gatewayServer, err := server.BootstrapGatewayServer(cfg, c.Registry, c.Metrics, c.Tracer.Tracer(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway server: %w", err)
	}

	servers := &Servers{Gateway: gatewayServer}

	if cfg.Metrics.Enabled {
		servers.Diagnostics = server.NewDiagnosticsServer(cfg.Metrics, c.Metrics, gatewayServer, c.Tracer.HTTPMiddleware, logger)

		if err := servers.Diagnostics.Start(ctx); err != nil {
			return nil, fmt.Errorf("failed to start diagnostics server: %w", err)
		}
	}

	logger.Info("Starting Socket Gateway",
		zap.String("version", Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("path", cfg.Endpoint.Path),
	)

	if err := <-gatewayServer.Start(ctx); err != nil {
		logger.Error("Gateway server failed to start", zap.Error(err))
		shutdownServers(ctx, servers, logger)

		return nil, err
	}

	return servers, nil
}

func waitForShutdown(ctx context.Context, servers *Servers, logger *zap.Logger) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- servers.Gateway.Wait()
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			logger.Error("Gateway server error", zap.Error(err))
			shutdownServers(ctx, servers, logger)

			return err
		}
	}

	shutdownServers(ctx, servers, logger)

	return nil
}

func shutdownServers(ctx context.Context, servers *Servers, logger *zap.Logger) {
	logger.Info("Starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, defaultTimeoutSeconds*time.Second)
	defer cancel()

	if err := servers.Gateway.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down gateway server", zap.Error(err))
	}

	if servers.Diagnostics != nil {
		if err := servers.Diagnostics.Stop(shutdownCtx); err != nil {
			logger.Error("Error shutting down diagnostics server", zap.Error(err))
		}
	}

	logger.Info("Socket Gateway shutdown complete")
}

func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""

	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(zapLevel),
		Development:       false,
		DisableCaller:     !cfg.IncludeCaller,
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return logger.With(zap.String("service", "socket-gateway")), nil
}
