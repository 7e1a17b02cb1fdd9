package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/solvedrelay/solvedrelay/internal/config"
	errwrap "github.com/solvedrelay/solvedrelay/internal/errors"
	"github.com/solvedrelay/solvedrelay/internal/metrics"
	"github.com/solvedrelay/solvedrelay/internal/observability"
	"github.com/solvedrelay/solvedrelay/internal/ratelimit"
	"github.com/solvedrelay/solvedrelay/internal/server"
	"github.com/solvedrelay/solvedrelay/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker fails when metrics were requested but the exporter is down.
type telemetryHealthChecker struct {
	enabled bool
}

func (t telemetryHealthChecker) CheckHealth(context.Context) error {
	if !t.enabled {
		return nil
	}
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP relay",
	Long: `Start the HTTP relay with graceful shutdown support.

Routes:
  GET  /                  liveness text
  POST /api/gfg/solved    rate-limited solved-problem lookup
  GET  /health[/live|/ready|/startup], /version, /metrics

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-read the config file (log level and rate limits apply on restart)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", err)
			return err
		}
		return runServer(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "0.0.0.0", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 5000, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServer(ctx context.Context, cfg *config.Config) error {
	identity := GetAppIdentity()
	namespace := identity.TelemetryNamespace()

	observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)
	logger := observability.ServerLogger

	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
	}

	logger.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", displayVersion()),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("rate_limit_max", cfg.RateLimit.Max),
		zap.Int("rate_limit_window_minutes", cfg.RateLimit.WindowMinutes),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
		zap.Int("metrics_port", observability.GetMetricsPort()))

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()

	store := ratelimit.NewMemoryStore()
	window := cfg.RateLimit.Window()
	store.StartJanitor(janitorCtx, window, 2*window, metrics.SetRateLimitTrackedKeys)
	limiter := ratelimit.NewLimiter(store, cfg.RateLimit.Max, window)

	upstream := newUpstreamClient(cfg)

	hm := handlers.NewHealthManager(displayVersion())
	hm.RegisterChecker("telemetry", telemetryHealthChecker{enabled: cfg.Metrics.Enabled})
	hm.RegisterChecker("app_identity", identityHealthChecker{
		binaryName: identity.BinaryName,
		envPrefix:  identity.EnvPrefix,
		configName: identity.ConfigName,
	})
	hm.RegisterChecker("upstream", upstream)

	opts := server.Options{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		IdleTimeout:        cfg.Server.IdleTimeout,
		TrustProxy:         cfg.Server.TrustProxy,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Limiter:            limiter,
		WindowMinutes:      cfg.RateLimit.WindowMinutes,
		Fetcher:            upstream,
		Health:             hm,
		AdminToken:         cfg.Server.AdminToken,
	}

	if stats := newRedisStats(cfg); stats != nil {
		opts.Stats = stats
		hm.RegisterChecker("rate_stats", stats)
		defer func() { _ = stats.Close() }()
		logger.Info("Rate-limit stats enabled", zap.String("redis_addr", cfg.Stats.RedisAddr))
	}

	handlers.SetVersionInfo(displayVersion(), versionInfo.Commit, versionInfo.BuildDate)
	handlers.SetAppIdentity(identity)

	srv := server.New(opts)
	registerSignalHandlers(srv, cfg.Server.ShutdownTimeout)

	metrics.SetServerStartTime(time.Now().Unix())

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	go func() {
		if err := signals.Listen(ctx); err != nil {
			logger.Error("Signal handler error", zap.Error(err))
			errChan <- err
		}
	}()

	if err := <-errChan; err != nil {
		return errwrap.WrapInternal(ctx, err, "server error")
	}
	return nil
}

// registerSignalHandlers wires shutdown (LIFO: server first, logger last),
// SIGHUP reload and double-tap force quit.
func registerSignalHandlers(srv *server.Server, shutdownTimeout time.Duration) {
	logger := observability.ServerLogger

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Flushing logger...")
		if err := logger.Sync(); err != nil {
			logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		if err := observability.StopMetrics(); err != nil {
			logger.Warn("Failed to stop metrics exporter", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}

		logger.Info("HTTP server stopped gracefully")
		return nil
	})

	signals.OnReload(func(ctx context.Context) error {
		logger.Info("Received SIGHUP: attempting config reload")

		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				logger.Info("No config file found - using defaults and environment variables")
				return nil
			}
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}

		if _, err := config.Load(viper.GetViper()); err != nil {
			logger.Error("Reloaded config is invalid, keeping current settings", zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}

		logger.Info("Configuration reloaded successfully",
			zap.String("file", viper.ConfigFileUsed()))
		return nil
	})

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}
}
