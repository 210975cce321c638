package server

import (
	"context"
	"sync"

	"github.com/giantswarm/mcp-kubedebug/internal/config"
	"github.com/giantswarm/mcp-kubedebug/internal/health"
	"github.com/giantswarm/mcp-kubedebug/internal/resilience"
)

// Logger interface for structured logging
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// ServerContext holds the server configuration and shared resources
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	mutex  sync.RWMutex

	// Configuration
	debugMode bool
	logger    Logger
	settings  *config.Settings

	// Shared resources
	executor   *resilience.Executor
	tracker    *health.Tracker
	aggregator *health.Aggregator
}

// ServerOption is a functional option for configuring ServerContext
type ServerOption func(*ServerContext)

// WithDebugMode sets whether debug logging is enabled
func WithDebugMode(enabled bool) ServerOption {
	return func(sc *ServerContext) {
		sc.debugMode = enabled
	}
}

// WithLogger sets the logger for the server context
func WithLogger(logger Logger) ServerOption {
	return func(sc *ServerContext) {
		sc.logger = logger
	}
}

// WithSettings sets the application settings
func WithSettings(settings *config.Settings) ServerOption {
	return func(sc *ServerContext) {
		sc.settings = settings
	}
}

// WithExecutor sets the shared resilient call executor
func WithExecutor(executor *resilience.Executor) ServerOption {
	return func(sc *ServerContext) {
		sc.executor = executor
	}
}

// WithHealthTracker sets the service health tracker
func WithHealthTracker(tracker *health.Tracker) ServerOption {
	return func(sc *ServerContext) {
		sc.tracker = tracker
	}
}

// WithErrorAggregator sets the error aggregator
func WithErrorAggregator(aggregator *health.Aggregator) ServerOption {
	return func(sc *ServerContext) {
		sc.aggregator = aggregator
	}
}

// NewServerContext creates a new server context with the given options
func NewServerContext(ctx context.Context, opts ...ServerOption) (*ServerContext, error) {
	serverCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:    serverCtx,
		cancel: cancel,
	}

	// Apply options
	for _, opt := range opts {
		opt(sc)
	}

	// Set defaults for anything not provided
	if sc.logger == nil {
		sc.logger = &noopLogger{}
	}
	if sc.settings == nil {
		settings, err := config.Load("")
		if err != nil {
			cancel()
			return nil, err
		}
		sc.settings = settings
	}
	if sc.executor == nil {
		policy := resilience.RetryPolicy{
			MaxAttempts: sc.settings.MaxRetryAttempts,
			BaseDelay:   sc.settings.RetryDelay,
			MaxDelay:    resilience.DefaultRetryPolicy().MaxDelay,
			Multiplier:  resilience.DefaultRetryPolicy().Multiplier,
			Jitter:      resilience.DefaultRetryPolicy().Jitter,
		}
		sc.executor = resilience.NewExecutor(int64(sc.settings.MaxConcurrentQueries), policy)
	}
	if sc.tracker == nil {
		sc.tracker = health.NewTracker("grafana", "loki", "prometheus", "kubernetes", "cloudwatch")
	}
	if sc.aggregator == nil {
		sc.aggregator = health.NewAggregator()
	}

	return sc, nil
}

// Context returns the context associated with the server
func (sc *ServerContext) Context() context.Context {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.ctx
}

// IsDebugMode returns whether debug logging is enabled
func (sc *ServerContext) IsDebugMode() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.debugMode
}

// Logger returns the configured logger
func (sc *ServerContext) Logger() Logger {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.logger
}

// Settings returns the application settings
func (sc *ServerContext) Settings() *config.Settings {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.settings
}

// Executor returns the shared resilient call executor
func (sc *ServerContext) Executor() *resilience.Executor {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.executor
}

// HealthTracker returns the service health tracker
func (sc *ServerContext) HealthTracker() *health.Tracker {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.tracker
}

// ErrorAggregator returns the error aggregator
func (sc *ServerContext) ErrorAggregator() *health.Aggregator {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.aggregator
}

// SetDebugMode dynamically sets whether debug logging is enabled
func (sc *ServerContext) SetDebugMode(enabled bool) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	sc.debugMode = enabled
}

// Shutdown gracefully shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.cancel != nil {
		sc.cancel()
		sc.cancel = nil
	}

	return nil
}

// noopLogger is a logger that does nothing
type noopLogger struct{}

func (l *noopLogger) Debug(msg string, args ...interface{}) {}
func (l *noopLogger) Info(msg string, args ...interface{})  {}
func (l *noopLogger) Warn(msg string, args ...interface{})  {}
func (l *noopLogger) Error(msg string, args ...interface{}) {}
