package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"requestinvoice/internal/api"
	"requestinvoice/internal/config"
	"requestinvoice/internal/control"
	"requestinvoice/internal/invoice"
	"requestinvoice/internal/logger"
	"requestinvoice/internal/models"
	"requestinvoice/internal/node"
	"requestinvoice/internal/observability"
	"requestinvoice/internal/ratelimit"
	"requestinvoice/internal/server"
	"requestinvoice/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	exampleConfig = flag.String("write-example-config", "", "Write an example configuration file to this path and exit")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	if cfg.Security.SecretGenerated {
		slog.Warn("No secret configured; generated a random one for this process. Set " +
			config.SecretEnvVar + " to use the admin API.")
	}

	if err := run(cfg, ver); err != nil {
		slog.Error("Invoice gateway exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *models.Config, ver version.Info) error {
	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Node collaborator, instrumented when any telemetry is exported
	var invoicer invoice.Invoicer = node.NewClient(rpcPath(cfg.Node.RPCFile), cfg.Node.Timeout)
	if cfg.Metrics.Enabled || cfg.Observability.Tracing.Enabled {
		instrumented, err := observability.NewInstrumentedInvoicer(invoicer)
		if err != nil {
			return fmt.Errorf("failed to instrument node client: %w", err)
		}
		invoicer = instrumented
	}

	invoiceService := invoice.NewServiceFromConfig(invoicer, cfg.Invoice)
	handlers := api.NewHandlers(invoiceService, ver.Version)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	if cfg.RateLimit.Enabled {
		defaultLimiter, routeLimiter, cleanup, err := newLimiters(cfg.RateLimit)
		if err != nil {
			return fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		defer cleanup()
		routeOpts = append(routeOpts, api.WithRateLimits(defaultLimiter, routeLimiter,
			ratelimit.ClientIP(cfg.Server.TrustProxyHeaders)))
	}

	router := api.SetupRoutes(handlers, routeOpts...)

	manager := server.NewManager(router, server.OptionsFromConfig(cfg.Server))
	controller := control.NewController(manager, cfg.Server.Host, cfg.Server.Port)

	// The gateway listens from boot; the admin API can stop it later.
	result := controller.Execute(control.CommandStart)
	if !manager.Status(cfg.Server.Port) {
		return fmt.Errorf("initial start failed: %s", result)
	}

	var admin *control.AdminServer
	if cfg.Admin.Enabled {
		admin = control.NewAdminServer(
			fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.Port),
			controller,
			cfg.Security.Secret,
			cfg.Metrics.Path,
			otelProvider.MetricsHandler(),
		)
		if err := admin.Start(); err != nil {
			manager.StopAll(context.Background())
			return err
		}
	}

	// SIGHUP restarts the listener; SIGINT and SIGTERM shut down.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	for sig := range signals {
		if sig == syscall.SIGHUP {
			slog.Info("Received SIGHUP", "result", controller.Execute(control.CommandRestart))
			continue
		}
		slog.Info("Shutting down", "signal", sig.String())
		break
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()

	if admin != nil {
		if err := admin.Shutdown(ctx); err != nil {
			slog.Error("Admin server forced to shutdown", "error", err)
		}
	}
	if err := manager.StopAll(ctx); err != nil {
		slog.Error("Invoice server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// rpcPath resolves a relative rpc file against the working directory, which
// is where the node runs plugins from.
func rpcPath(rpcFile string) string {
	if filepath.IsAbs(rpcFile) {
		return rpcFile
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, rpcFile)
	}
	return rpcFile
}

// newLimiters builds the default and per-route limiters for the configured
// backend. The returned cleanup releases them.
func newLimiters(cfg models.RateLimitConfig) (ratelimit.Limiter, ratelimit.Limiter, func(), error) {
	defaultQuotas := ratelimit.QuotasFromConfig(cfg.DefaultLimits)
	routeQuotas := ratelimit.QuotasFromConfig(cfg.RouteLimits)

	switch cfg.Backend {
	case models.RateLimitBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Requests are admitted while Redis is unreachable.
			slog.Warn("Redis rate limit backend unreachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}

		defaultLimiter := ratelimit.NewRedisLimiter(client, defaultQuotas, cfg.Redis.KeyPrefix+":default")
		routeLimiter := ratelimit.NewRedisLimiter(client, routeQuotas, cfg.Redis.KeyPrefix+":route")
		slog.Info("Rate limiting enabled", "backend", cfg.Backend, "default", cfg.DefaultLimits, "route", cfg.RouteLimits)
		return defaultLimiter, routeLimiter, func() { client.Close() }, nil

	case models.RateLimitBackendMemory, "":
		defaultLimiter := ratelimit.NewMemoryLimiter(defaultQuotas, cfg.CleanupInterval)
		routeLimiter := ratelimit.NewMemoryLimiter(routeQuotas, cfg.CleanupInterval)
		slog.Info("Rate limiting enabled", "backend", models.RateLimitBackendMemory, "default", cfg.DefaultLimits, "route", cfg.RouteLimits)
		return defaultLimiter, routeLimiter, func() {
			defaultLimiter.Close()
			routeLimiter.Close()
		}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported rate limit backend: %s", cfg.Backend)
	}
}
