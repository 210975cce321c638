package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Logger is the minimal structured logging interface the executor needs.
// The server package's Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...interface{}) {}
func (noopLogger) Info(msg string, args ...interface{})  {}
func (noopLogger) Warn(msg string, args ...interface{})  {}
func (noopLogger) Error(msg string, args ...interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

// RequestSpec describes one outbound request. It is immutable once issued.
type RequestSpec struct {
	// Operation names the upstream call, e.g. "grafana.query_loki".
	Operation string
	// Target identifies the service or endpoint the call goes to.
	Target string
	// Timeout bounds each individual attempt. Zero means no per-attempt
	// deadline beyond whatever the caller's context carries.
	Timeout time.Duration
}

// Executor coordinates every outbound call in the process. It owns the
// shared permit pool and the retry policy, plus optional circuit breaker,
// rate limiter, and metrics.
//
// Construct one Executor at startup and inject it into each client.
type Executor struct {
	permits *semaphore.Weighted
	policy  RetryPolicy
	breaker *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
	metrics *Metrics
	logger  Logger
	tracer  trace.Tracer
}

// ExecutorOption is a functional option for configuring an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger used for retry and saturation warnings.
func WithLogger(logger Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithBreaker shares a circuit breaker across all calls on this executor.
func WithBreaker(cb *gobreaker.CircuitBreaker[any]) ExecutorOption {
	return func(e *Executor) {
		e.breaker = cb
	}
}

// WithRateLimiter applies a token-bucket limit before each call.
func WithRateLimiter(l *rate.Limiter) ExecutorOption {
	return func(e *Executor) {
		e.limiter = l
	}
}

// WithMetrics records attempt counts, retries, and in-flight calls.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// NewExecutor creates an executor with the given concurrency ceiling and
// retry policy. maxConcurrent values below one are coerced to one.
func NewExecutor(maxConcurrent int64, policy RetryPolicy, opts ...ExecutorOption) *Executor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	e := &Executor{
		permits: semaphore.NewWeighted(maxConcurrent),
		policy:  policy,
		logger:  noopLogger{},
		tracer:  otel.Tracer("resilience"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the executor's retry policy.
func (e *Executor) Policy() RetryPolicy { return e.policy }

// Do performs fn under the executor's concurrency ceiling, retrying
// transient failures with backoff up to the policy's attempt ceiling.
//
// A permit is acquired before the first attempt and released when the call
// completes, succeeds or fails, including when ctx is cancelled mid-flight.
// Acquisition blocks in arrival order when the pool is saturated.
func Do[T any](ctx context.Context, e *Executor, spec RequestSpec, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	ctx, span := e.tracer.Start(ctx, spec.Operation,
		trace.WithAttributes(attribute.String("call.target", spec.Target)))
	defer span.End()

	waitStart := time.Now()
	if err := e.permits.Acquire(ctx, 1); err != nil {
		span.SetStatus(otelcodes.Error, "permit acquisition cancelled")
		return zero, err
	}
	defer e.permits.Release(1)

	if e.metrics != nil {
		e.metrics.permitWait.Observe(time.Since(waitStart).Seconds())
		e.metrics.inFlight.Inc()
		defer e.metrics.inFlight.Dec()
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return zero, err
		}
	}

	runAttempt := func() (T, error) {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if spec.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
			defer cancel()
		}

		start := time.Now()
		var result T
		var err error
		if e.breaker != nil {
			var v any
			v, err = e.breaker.Execute(func() (any, error) {
				return fn(attemptCtx)
			})
			if err == nil {
				result = v.(T)
			}
		} else {
			result, err = fn(attemptCtx)
		}
		if e.metrics != nil {
			e.metrics.attemptDuration.WithLabelValues(spec.Operation).Observe(time.Since(start).Seconds())
		}

		// An attempt that ran out its per-request timeout counts as a
		// transient failure; the caller's own cancellation does not.
		if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = NewTransient(spec.Operation, err)
		}
		return result, err
	}

	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		result, err := runAttempt()
		if err == nil {
			if e.metrics != nil {
				e.metrics.attemptsTotal.WithLabelValues(spec.Operation, "success").Inc()
			}
			span.SetAttributes(attribute.Int("call.attempts", attempt))
			return result, nil
		}

		// The caller abandoning the request ends the loop regardless of
		// classification.
		if ctx.Err() != nil {
			span.SetStatus(otelcodes.Error, "cancelled")
			return zero, ctx.Err()
		}

		if !IsTransient(err) {
			if e.metrics != nil {
				e.metrics.attemptsTotal.WithLabelValues(spec.Operation, "fatal").Inc()
			}
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, "fatal")
			return zero, err
		}

		lastErr = err
		if e.metrics != nil {
			e.metrics.attemptsTotal.WithLabelValues(spec.Operation, "transient").Inc()
		}

		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.policy.Delay(attempt)
		e.logger.Warn("retrying after transient failure",
			"operation", spec.Operation, "attempt", attempt, "delay", delay, "error", err)
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.String("delay", delay.String()),
		))
		if e.metrics != nil {
			e.metrics.retriesTotal.WithLabelValues(spec.Operation).Inc()
		}

		select {
		case <-ctx.Done():
			span.SetStatus(otelcodes.Error, "cancelled")
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	exhausted := &ExhaustedError{Op: spec.Operation, Attempts: e.policy.MaxAttempts, Err: lastErr}
	e.logger.Error("retries exhausted",
		"operation", spec.Operation, "attempts", e.policy.MaxAttempts, "error", lastErr)
	span.RecordError(exhausted)
	span.SetStatus(otelcodes.Error, "retries exhausted")
	return zero, exhausted
}
