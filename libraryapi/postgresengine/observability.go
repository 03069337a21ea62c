package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

const (
	spanNamePrefix          = "librarystore."
	metricOperationDuration = "librarystore_operation_duration_seconds"
	metricOperationRows     = "librarystore_operation_rows"
	metricDatabaseErrors    = "librarystore_database_errors_total"
	metricRuleViolations    = "librarystore_rule_violations_total"
	spanAttrOperation       = "operation"
	spanAttrErrorType       = "error_type"
	spanAttrRowCount        = "row_count"
	spanAttrDurationMS      = "duration_ms"
	labelStatus             = "status"
	statusSuccess           = "success"
	statusRejected          = "rejected"
	statusError             = "error"
	errorTypeNotFound       = "not_found"
	errorTypeNoCopies       = "no_copies_available"
	errorTypeReturned       = "already_returned"
	errorTypeBorrowed       = "currently_borrowed"
	errorTypeDuplicate      = "duplicate"
	errorTypeReference      = "invalid_reference"
	errorTypeTransient      = "transient"
	errorTypeBuildQuery     = "build_query"
	errorTypeScan           = "scan"
	errorTypeCanceled       = "canceled"
	errorTypeTimeout        = "timeout"
	errorTypeDatabase       = "database"
)

// operationObserver bundles span, metrics and logging of one store operation.
type operationObserver struct {
	s         *Store
	ctx       context.Context
	operation string
	span      libraryapi.SpanContext
	start     time.Time
}

// startObservation starts a span for the operation if tracing is configured.
func (s *Store) startObservation(ctx context.Context, operation string) (context.Context, *operationObserver) {
	var span libraryapi.SpanContext

	if s.tracingCollector != nil {
		ctx, span = s.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, map[string]string{
			spanAttrOperation: operation,
		})
	}

	return ctx, &operationObserver{
		s:         s,
		ctx:       ctx,
		operation: operation,
		span:      span,
		start:     time.Now(),
	}
}

// finish records the outcome of the operation.
func (o *operationObserver) finish(err error, rowCount int) {
	duration := time.Since(o.start)

	if err == nil {
		o.finishSpan(statusSuccess, map[string]string{
			spanAttrRowCount:   fmt.Sprintf("%d", rowCount),
			spanAttrDurationMS: fmt.Sprintf("%.2f", o.s.toMilliseconds(duration)),
		})
		o.s.recordDuration(o.ctx, duration, o.operation, statusSuccess)
		o.s.recordValue(o.ctx, metricOperationRows, float64(rowCount), o.operation, statusSuccess)
		o.s.logOperation(
			o.ctx,
			o.operation,
			logAttrRowCount, rowCount,
			logAttrDurationMS, o.s.toMilliseconds(duration),
		)

		return
	}

	errorType := classifyErrorType(err)
	status := statusError

	if libraryapi.IsRuleViolation(err) {
		status = statusRejected
	}

	o.finishSpan(status, map[string]string{
		spanAttrErrorType:  errorType,
		spanAttrDurationMS: fmt.Sprintf("%.2f", o.s.toMilliseconds(duration)),
	})
	o.s.recordDuration(o.ctx, duration, o.operation, status)

	if status == statusRejected {
		o.s.incrementCounter(o.ctx, metricRuleViolations, o.operation, status, errorType)
		o.s.logOperation(o.ctx, o.operation, spanAttrErrorType, errorType)

		return
	}

	o.s.incrementCounter(o.ctx, metricDatabaseErrors, o.operation, status, errorType)
}

func (o *operationObserver) finishSpan(status string, attrs map[string]string) {
	if o.span == nil || o.s.tracingCollector == nil {
		return
	}

	o.span.SetStatus(status)
	o.s.tracingCollector.FinishSpan(o.span, status, attrs)
}

// classifyErrorType maps an error to a low-cardinality label value.
func classifyErrorType(err error) string {
	switch {
	case errors.Is(err, libraryapi.ErrUserNotFound),
		errors.Is(err, libraryapi.ErrBookNotFound),
		errors.Is(err, libraryapi.ErrTransactionNotFound):
		return errorTypeNotFound
	case errors.Is(err, libraryapi.ErrNoCopiesAvailable):
		return errorTypeNoCopies
	case errors.Is(err, libraryapi.ErrAlreadyReturned):
		return errorTypeReturned
	case errors.Is(err, libraryapi.ErrBookCurrentlyBorrowed):
		return errorTypeBorrowed
	case errors.Is(err, libraryapi.ErrDuplicate):
		return errorTypeDuplicate
	case errors.Is(err, libraryapi.ErrInvalidReference):
		return errorTypeReference
	case errors.Is(err, libraryapi.ErrTransientDatabaseFailure):
		return errorTypeTransient
	case errors.Is(err, libraryapi.ErrBuildingQueryFailed):
		return errorTypeBuildQuery
	case errors.Is(err, libraryapi.ErrScanningDBRowFailed):
		return errorTypeScan
	case errors.Is(err, context.Canceled):
		return errorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return errorTypeTimeout
	default:
		return errorTypeDatabase
	}
}

// recordDuration records the operation duration, using the context-aware method if available.
func (s *Store) recordDuration(ctx context.Context, duration time.Duration, operation, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       status,
	}

	if contextualCollector, ok := s.metricsCollector.(libraryapi.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metricOperationDuration, duration, labels)
	} else {
		s.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
	}
}

// recordValue records a value metric, using the context-aware method if available.
func (s *Store) recordValue(ctx context.Context, metric string, value float64, operation, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       status,
	}

	if contextualCollector, ok := s.metricsCollector.(libraryapi.ContextualMetricsCollector); ok {
		contextualCollector.RecordValueContext(ctx, metric, value, labels)
	} else {
		s.metricsCollector.RecordValue(metric, value, labels)
	}
}

// incrementCounter increments an error counter, using the context-aware method if available.
func (s *Store) incrementCounter(ctx context.Context, metric, operation, status, errorType string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		spanAttrOperation: operation,
		labelStatus:       status,
		spanAttrErrorType: errorType,
	}

	if contextualCollector, ok := s.metricsCollector.(libraryapi.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
	} else {
		s.metricsCollector.IncrementCounter(metric, labels)
	}
}

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (s *Store) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, s.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, s.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (s *Store) logOperation(ctx context.Context, operation string, args ...any) {
	if s.logger != nil {
		s.logger.Info(logMsgOperation+operation, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, logMsgOperation+operation, args...)
	}
}

// logWarn logs non-critical issues.
func (s *Store) logWarn(ctx context.Context, message string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(message, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, message, args...)
	}
}

// logError logs error information at the error level.
func (s *Store) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if s.logger != nil {
		s.logger.Error(message, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (s *Store) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
