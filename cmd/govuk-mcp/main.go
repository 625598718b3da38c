package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"govukmcp/internal/api"
	"govukmcp/internal/config"
	"govukmcp/internal/logger"
	"govukmcp/internal/mcpserver"
	"govukmcp/internal/models"
	"govukmcp/internal/observability"
	"govukmcp/internal/ratelimit"
	"govukmcp/internal/tools"
	"govukmcp/internal/upstream"
	"govukmcp/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	envFile       = flag.String("env-file", ".env", "Path to a .env file loaded before the environment is read")
	transport     = flag.String("transport", "", "Override the transport: stdio or http")
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
		fmt.Fprintf(os.Stderr, "Example configuration written to %s\n", *exampleConfig)
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("Failed to load env file", "path", *envFile, "error", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *transport != "" {
		cfg.Server.Transport = *transport
		if err := cfg.Server.Validate(); err != nil {
			slog.Error("Invalid transport", "error", err)
			os.Exit(1)
		}
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(logger.ForTransport(cfg.Logging, cfg.Server.Transport), ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, ver, log); err != nil {
		slog.Error("Server failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *models.Config, ver version.Info, log *slog.Logger) error {
	// Initialize observability (OpenTelemetry)
	var otelOpts []observability.SetupOption
	if cfg.Server.Transport == models.TransportStdio {
		otelOpts = append(otelOpts, observability.WithTraceWriter(os.Stderr))
	}
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver, otelOpts...)
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

	// Upstream rate limiter shared by every tool
	limiter, err := ratelimit.New(ratelimit.WithLimits(cfg.RateLimits.Overrides()))
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}
	instrumented, err := observability.NewInstrumentedLimiter(limiter)
	if err != nil {
		return fmt.Errorf("failed to instrument rate limiter: %w", err)
	}
	defer instrumented.Close()

	toolMetrics, err := observability.NewToolMetrics()
	if err != nil {
		return fmt.Errorf("failed to create tool metrics: %w", err)
	}

	registry := tools.NewRegistry(instrumented, toolMetrics.Wrap)
	service := tools.NewService(upstream.NewClient(cfg.Upstream), cfg.Upstream)
	if err := tools.RegisterAll(registry, service); err != nil {
		return err
	}
	slog.Info("Tools registered",
		"count", len(registry.Names()),
		"limits", instrumented.Limits(),
		"transport", cfg.Server.Transport,
	)
	if cfg.Upstream.CompaniesHouseAPIKey == "" {
		slog.Warn("COMPANIES_HOUSE_API_KEY is not set; Companies House tools will return configuration errors")
	}

	mcp := mcpserver.New(registry, ver, log)

	// Start metrics server if enabled
	if cfg.Metrics.Enabled {
		metricsServer := observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Run(ctx, cfg.Server.ShutdownTimeout); err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	if cfg.Server.Transport == models.TransportStdio {
		err := mcp.ServeStdio(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
			return fmt.Errorf("stdio transport: %w", err)
		}
		return nil
	}

	return serveHTTP(ctx, cfg, ver, registry, instrumented, mcp)
}

func serveHTTP(ctx context.Context, cfg *models.Config, ver version.Info, registry *tools.Registry,
	limits api.RateLimits, mcp *mcpserver.Server) error {
	handlers := api.NewHandlers(registry, limits, api.WithVersion(ver))

	routeOpts := []api.RouteOption{api.WithMCPHandler(mcp.HTTPHandler())}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Inbound clients get their own limiter so they never drain upstream buckets
	if cfg.Security.ClientRateLimit.Enabled {
		trusted, err := ratelimit.ParseTrustedProxies(cfg.Security.ClientRateLimit.TrustedProxies)
		if err != nil {
			return fmt.Errorf("invalid trusted proxies: %w", err)
		}
		clientLimiter, err := ratelimit.NewClientLimiter(ratelimit.DefaultCleanupInterval)
		if err != nil {
			return fmt.Errorf("failed to create client rate limiter: %w", err)
		}
		defer clientLimiter.Close()

		routeOpts = append(routeOpts, api.WithRateLimiter(
			ratelimit.Middleware(clientLimiter, cfg.Security.ClientRateLimit.RequestsPerMinute,
				ratelimit.WithTrustedProxies(trusted)),
		))
	}

	if cfg.Security.AdminToken == "" {
		slog.Warn("Admin token not set; rate limit reset endpoint is disabled")
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", server.Addr, "mcp_path", api.MCPPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}
