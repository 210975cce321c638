package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-kubedebug/internal/cloudwatch"
	"github.com/giantswarm/mcp-kubedebug/internal/config"
	"github.com/giantswarm/mcp-kubedebug/internal/grafana"
	"github.com/giantswarm/mcp-kubedebug/internal/health"
	"github.com/giantswarm/mcp-kubedebug/internal/kube"
	"github.com/giantswarm/mcp-kubedebug/internal/resilience"
	"github.com/giantswarm/mcp-kubedebug/internal/server"
	"github.com/giantswarm/mcp-kubedebug/internal/telemetry"
	"github.com/giantswarm/mcp-kubedebug/internal/tools/debug"
)

// slogLogger adapts log/slog to the server.Logger interface
type slogLogger struct {
	logger *slog.Logger
}

func newSlogLogger(level string, debugMode bool) *slogLogger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARNING", "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if debugMode {
		lvl = slog.LevelDebug
	}

	// MCP over stdio owns stdout, so logs go to stderr.
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return &slogLogger{logger: slog.New(handler)}
}

func (l *slogLogger) Debug(msg string, args ...interface{}) { l.logger.Debug(msg, args...) }
func (l *slogLogger) Info(msg string, args ...interface{})  { l.logger.Info(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...interface{})  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Error(msg string, args ...interface{}) { l.logger.Error(msg, args...) }

// newServeCmd creates the Cobra command for starting the MCP server.
func newServeCmd() *cobra.Command {
	var (
		debugMode  bool
		configFile string

		// Transport options
		transport       string
		httpAddr        string
		sseEndpoint     string
		messageEndpoint string
		httpEndpoint    string
		metricsAddr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP Kubernetes debugging server",
		Long: `Start the MCP server that provides Kubernetes debugging tools over
the Model Context Protocol: pod logs from Loki, container metrics from
Prometheus, Kubernetes events, EKS control plane logs from CloudWatch, and
cross-source correlation.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - sse: Server-Sent Events over HTTP
  - streamable-http: Streamable HTTP transport

Environment Variables:
  GRAFANA_URL             - Required: Grafana base URL
  GRAFANA_API_KEY         - Grafana service account token (or GRAFANA_TOKEN)
  AWS_REGION, AWS_PROFILE - Optional: CloudWatch access configuration
  EKS_CLUSTER_NAME        - Optional: EKS cluster for control plane logs
  KUBECONFIG_PATH         - Optional: kubeconfig path outside the cluster
  QUERY_TIMEOUT           - Per-query timeout in seconds (default: 30)
  MAX_CONCURRENT_QUERIES  - Concurrent outbound query ceiling (default: 10)
  MAX_RETRY_ATTEMPTS      - Retry attempts per query (default: 3)
  RETRY_DELAY             - Base retry delay in seconds (default: 1)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configFile, transport, debugMode,
				httpAddr, sseEndpoint, messageEndpoint, httpEndpoint, metricsAddr)
		},
	}

	// Add flags for configuring the server
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging (default: false)")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path")

	// Transport flags
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio, sse, or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP server address (default: SERVER_HOST:SERVER_PORT)")
	cmd.Flags().StringVar(&sseEndpoint, "sse-endpoint", "/sse", "SSE endpoint path (for sse transport)")
	cmd.Flags().StringVar(&messageEndpoint, "message-endpoint", "/message", "Message endpoint path (for sse transport)")
	cmd.Flags().StringVar(&httpEndpoint, "http-endpoint", "/mcp", "HTTP endpoint path (for streamable-http transport)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9180", "Prometheus metrics address (when METRICS_ENABLED)")

	return cmd
}

// runServe contains the main server logic with support for multiple transports
func runServe(configFile, transport string, debugMode bool,
	httpAddr, sseEndpoint, messageEndpoint, httpEndpoint, metricsAddr string) error {

	// Setup graceful shutdown - listen for both SIGINT and SIGTERM
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	settings, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if debugMode {
		settings.Debug = true
	}

	if issues := settings.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "configuration issue: %s\n", issue)
		}
		return fmt.Errorf("invalid configuration (%d issue(s))", len(issues))
	}

	logger := newSlogLogger(settings.LogLevel, settings.Debug)

	shutdownTelemetry, err := telemetry.Setup(shutdownCtx, settings.AppName, rootCmd.Version)
	if err != nil {
		logger.Warn("telemetry setup failed, continuing without tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTelemetry(context.Background()); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	// Shared resilient executor for all outbound queries
	policy := resilience.RetryPolicy{
		MaxAttempts: settings.MaxRetryAttempts,
		BaseDelay:   settings.RetryDelay,
		MaxDelay:    resilience.DefaultRetryPolicy().MaxDelay,
		Multiplier:  resilience.DefaultRetryPolicy().Multiplier,
		Jitter:      resilience.DefaultRetryPolicy().Jitter,
	}
	breakerCfg := resilience.DefaultBreakerConfig("outbound")
	executorOpts := []resilience.ExecutorOption{
		resilience.WithLogger(logger),
		resilience.WithBreaker(resilience.NewBreaker(breakerCfg)),
		resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.DefaultRateLimiterConfig())),
	}
	if settings.MetricsEnabled {
		executorOpts = append(executorOpts, resilience.WithMetrics(resilience.NewMetrics()))
	}
	executor := resilience.NewExecutor(int64(settings.MaxConcurrentQueries), policy, executorOpts...)

	tracker := health.NewTracker("grafana", "loki", "prometheus", "kubernetes", "cloudwatch")
	aggregator := health.NewAggregator()

	// Create server context
	serverContext, err := server.NewServerContext(shutdownCtx,
		server.WithDebugMode(settings.Debug),
		server.WithLogger(logger),
		server.WithSettings(settings),
		server.WithExecutor(executor),
		server.WithHealthTracker(tracker),
		server.WithErrorAggregator(aggregator),
	)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Error("error during server context shutdown", "error", err)
		}
	}()

	// Connect to the Grafana MCP server. Failures are not fatal: some
	// functionality still works without it.
	grafanaClient := grafana.NewClient(settings, executor, logger)
	if err := grafanaClient.Connect(shutdownCtx); err != nil {
		logger.Error("failed to connect to Grafana MCP server", "error", err)
	}
	defer grafanaClient.Close()

	// Optional data sources
	var eventLister debug.EventLister
	if kubeClient, err := kube.NewClientFromConfig(settings.KubeconfigPath, executor, logger); err != nil {
		logger.Warn("could not load Kubernetes configuration", "error", err)
	} else {
		eventLister = kubeClient
	}

	var cloudLister debug.ControlPlaneLogLister
	if cloudClient, err := cloudwatch.NewClientFromConfig(shutdownCtx, settings.AWSRegion, settings.AWSProfile, executor, logger); err != nil {
		logger.Warn("could not initialize CloudWatch client", "error", err)
	} else {
		cloudLister = cloudClient
	}

	logger.Info("server configuration",
		"grafana_url", settings.GrafanaURL,
		"aws_region", settings.AWSRegion,
		"eks_cluster", settings.EKSClusterName,
		"max_concurrent_queries", settings.MaxConcurrentQueries,
		"query_timeout", settings.QueryTimeout,
	)

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("mcp-kubedebug", rootCmd.Version,
		mcpserver.WithToolCapabilities(true),
	)

	// Register debugging tools
	debugTools := debug.NewDebugTools(grafanaClient, eventLister, cloudLister, settings, tracker, aggregator, logger)
	if err := debug.RegisterDebugTools(mcpSrv, debugTools, serverContext); err != nil {
		return fmt.Errorf("failed to register debugging tools: %w", err)
	}

	if settings.MetricsEnabled {
		startMetricsServer(shutdownCtx, metricsAddr, logger)
	}

	if httpAddr == "" {
		httpAddr = fmt.Sprintf("%s:%d", settings.ServerHost, settings.ServerPort)
	}

	logger.Info("starting MCP server", "transport", transport)

	// Start the appropriate server based on transport type
	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "sse":
		return runSSEServer(mcpSrv, httpAddr, sseEndpoint, messageEndpoint, shutdownCtx, logger)
	case "streamable-http":
		return runStreamableHTTPServer(mcpSrv, httpAddr, httpEndpoint, shutdownCtx, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse, streamable-http)", transport)
	}
}

// startMetricsServer exposes the Prometheus registry on its own listener
func startMetricsServer(ctx context.Context, addr string, logger server.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// runStdioServer runs the server with STDIO transport
func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	if err := <-serverDone; err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// runSSEServer runs the server with SSE transport
func runSSEServer(mcpSrv *mcpserver.MCPServer, addr, sseEndpoint, messageEndpoint string, ctx context.Context, logger server.Logger) error {
	// Create SSE server with custom endpoints
	sseServer := mcpserver.NewSSEServer(mcpSrv,
		mcpserver.WithSSEEndpoint(sseEndpoint),
		mcpserver.WithMessageEndpoint(messageEndpoint),
	)

	logger.Info("SSE server starting", "addr", addr, "sse_endpoint", sseEndpoint, "message_endpoint", messageEndpoint)

	// Start server in goroutine
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := sseServer.Start(addr); err != nil {
			serverDone <- err
		}
	}()

	// Wait for either shutdown signal or server completion
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping SSE server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down SSE server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("SSE server stopped with error: %w", err)
		}
		logger.Info("SSE server stopped normally")
	}

	logger.Info("SSE server gracefully stopped")
	return nil
}

// runStreamableHTTPServer runs the server with Streamable HTTP transport
func runStreamableHTTPServer(mcpSrv *mcpserver.MCPServer, addr, endpoint string, ctx context.Context, logger server.Logger) error {
	// Create Streamable HTTP server with custom endpoint
	httpServer := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(endpoint),
	)

	logger.Info("streamable HTTP server starting", "addr", addr, "endpoint", endpoint)

	// Start server in goroutine
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(addr); err != nil {
			serverDone <- err
		}
	}()

	// Wait for either shutdown signal or server completion
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		logger.Info("HTTP server stopped normally")
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
