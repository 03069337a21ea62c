// Package retry runs store mutations again when the database reports a transient failure.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

const (
	defaultMaxAttempts  = 4
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3

	// RetriesMetric counts retried attempts per operation, attempt number and error type.
	RetriesMetric = "libraryapi_retries_total"

	// RetryDelayMetric records the backoff delay before each retry.
	RetryDelayMetric = "libraryapi_retry_delay_seconds"

	// MaxRetriesReachedMetric counts operations that ran out of attempts.
	MaxRetriesReachedMetric = "libraryapi_max_retries_reached_total"

	labelOperation      = "operation"
	labelAttemptNumber  = "attempt_number"
	labelErrorType      = "error_type"
	labelFinalErrorType = "final_error_type"
	errorTypeNone       = "none"
	errorTypeTransient  = "transient_database_failure"
	errorTypeCanceled   = "context_canceled"
	errorTypeDeadline   = "context_deadline_exceeded"
	errorTypeOther      = "other"
)

var (
	// ErrNilMetricsCollector is returned when a nil metrics collector is provided to WithMetrics.
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")

	// ErrEmptyOperation is returned when an empty operation name is provided to WithMetrics.
	ErrEmptyOperation = errors.New("operation must not be empty")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// Func is an operation that can be retried.
type Func func(ctx context.Context) error

// Metadata describes how a retried operation went.
type Metadata struct {
	Attempts      int
	TotalDelay    time.Duration
	LastErrorType string
}

type config struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector libraryapi.MetricsCollector
	operation        string
}

// WithExponentialBackoff executes fn and retries it while it fails with
// libraryapi.ErrTransientDatabaseFailure, up to the configured number of attempts.
//
// Retry schedule (default): 0 ms, 10 ms, 20 ms, 40 ms (with 30% jitter).
//
// All other errors fail fast, including context.DeadlineExceeded.
func WithExponentialBackoff(ctx context.Context, fn Func, options ...Option) (Metadata, error) {
	cfg := &config{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return Metadata{}, err
		}
	}

	meta := Metadata{LastErrorType: errorTypeNone}

	var lastErr error

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff: baseDelay * 2^(attempt-1)
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // math/rand is sufficient for jitter
			backoffDelay := delay + time.Duration(jitter)

			cfg.recordDelay(ctx, attempt, backoffDelay)

			select {
			case <-time.After(backoffDelay):
				meta.TotalDelay += backoffDelay
			case <-ctx.Done():
				meta.LastErrorType = errorType(ctx.Err())
				return meta, ctx.Err()
			}
		}

		meta.Attempts++

		lastErr = fn(ctx)
		if lastErr == nil {
			meta.LastErrorType = errorTypeNone
			return meta, nil
		}

		meta.LastErrorType = errorType(lastErr)

		if !IsRetryable(lastErr) {
			return meta, lastErr
		}

		if attempt < cfg.maxAttempts-1 {
			cfg.recordRetry(ctx, attempt+1, lastErr)
		}
	}

	cfg.recordMaxRetriesReached(ctx, lastErr)

	return meta, lastErr
}

// IsRetryable reports whether err is worth another attempt.
// Only transient database failures (serialization failures, deadlocks) qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, libraryapi.ErrTransientDatabaseFailure)
}

func errorType(err error) string {
	switch {
	case err == nil:
		return errorTypeNone
	case errors.Is(err, libraryapi.ErrTransientDatabaseFailure):
		return errorTypeTransient
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeDeadline
	default:
		return errorTypeOther
	}
}

func (c *config) recordDelay(ctx context.Context, attempt int, delay time.Duration) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation:     c.operation,
		labelAttemptNumber: fmt.Sprintf("%d", attempt),
	}

	if contextualCollector, ok := c.metricsCollector.(libraryapi.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, RetryDelayMetric, delay, labels)
	} else {
		c.metricsCollector.RecordDuration(RetryDelayMetric, delay, labels)
	}
}

func (c *config) recordRetry(ctx context.Context, attemptNumber int, err error) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation:     c.operation,
		labelAttemptNumber: fmt.Sprintf("%d", attemptNumber),
		labelErrorType:     errorType(err),
	}

	if contextualCollector, ok := c.metricsCollector.(libraryapi.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, RetriesMetric, labels)
	} else {
		c.metricsCollector.IncrementCounter(RetriesMetric, labels)
	}
}

func (c *config) recordMaxRetriesReached(ctx context.Context, err error) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		labelOperation:      c.operation,
		labelFinalErrorType: errorType(err),
	}

	if contextualCollector, ok := c.metricsCollector.(libraryapi.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, MaxRetriesReachedMetric, labels)
	} else {
		c.metricsCollector.IncrementCounter(MaxRetriesReachedMetric, labels)
	}
}

// Option configures retry behavior.
type Option func(*config) error

// WithMaxAttempts sets the maximum number of attempts, the first one included.
func WithMaxAttempts(attempts int) Option {
	return func(c *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		c.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
// Actual delays: baseDelay, baseDelay*2, baseDelay*4, etc.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		c.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the jitter as a fraction of the backoff delay, from 0.0 to 1.0.
func WithJitterFactor(factor float64) Option {
	return func(c *config) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		c.jitterFactor = factor

		return nil
	}
}

// WithMetrics sets the metrics collector, labelling all retry metrics with operation.
func WithMetrics(collector libraryapi.MetricsCollector, operation string) Option {
	return func(c *config) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperation
		}

		c.metricsCollector = collector
		c.operation = operation

		return nil
	}
}
