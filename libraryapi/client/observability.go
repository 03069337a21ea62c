package client

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

const (
	metricRequestDuration = "libraryapi_client_request_duration_seconds"
	metricRequests        = "libraryapi_client_requests_total"
	metricRequestErrors   = "libraryapi_client_request_errors_total"

	spanNameRequest = "libraryapi.client.request"

	attrMethod     = "method"
	attrRoute      = "route"
	attrStatusCode = "status_code"
	attrStatus     = "status"
	attrErrorType  = "error_type"
	attrDurationMS = "duration_ms"
	attrError      = "error"

	statusSuccess  = "success"
	statusError    = "error"
	statusCanceled = "canceled"
	statusTimeout  = "timeout"

	logMsgRequestCompleted = "library api request completed"
	logMsgRequestFailed    = "library api request failed"
)

// requestObserver bundles logging, metrics and tracing for one request.
type requestObserver struct {
	c      *Client
	ctx    context.Context
	span   libraryapi.SpanContext
	method string
	route  string
}

func (c *Client) startRequestObservation(ctx context.Context, method, route string) (*requestObserver, context.Context) {
	o := &requestObserver{c: c, method: method, route: route}

	if c.tracingCollector != nil {
		ctx, o.span = c.tracingCollector.StartSpan(ctx, spanNameRequest, map[string]string{
			attrMethod: method,
			attrRoute:  route,
		})
	}
	o.ctx = ctx

	return o, ctx
}

func (o *requestObserver) finishSuccess(statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	labels := map[string]string{attrMethod: o.method, attrRoute: o.route, attrStatusCode: code}

	o.recordDuration(duration, labels)
	o.incrementCounter(metricRequests, labels)

	if o.span != nil {
		o.span.AddAttribute(attrStatusCode, code)
		o.span.AddAttribute(attrDurationMS, strconv.FormatFloat(toMilliseconds(duration), 'f', 3, 64))
		o.c.tracingCollector.FinishSpan(o.span, statusSuccess, map[string]string{attrStatusCode: code})
	}

	args := []any{attrMethod, o.method, attrRoute, o.route, attrStatusCode, statusCode, attrDurationMS, toMilliseconds(duration)}
	if o.c.logger != nil {
		o.c.logger.Debug(logMsgRequestCompleted, args...)
	}
	if o.c.contextualLogger != nil {
		o.c.contextualLogger.DebugContext(o.ctx, logMsgRequestCompleted, args...)
	}
}

func (o *requestObserver) finishError(err error, duration time.Duration) {
	status := statusOf(err)
	labels := map[string]string{attrMethod: o.method, attrRoute: o.route, attrStatus: status}

	o.recordDuration(duration, labels)
	o.incrementCounter(metricRequestErrors, labels)

	if o.span != nil {
		o.span.AddAttribute(attrErrorType, status)
		o.c.tracingCollector.FinishSpan(o.span, status, map[string]string{attrErrorType: status})
	}

	args := []any{attrMethod, o.method, attrRoute, o.route, attrError, err.Error(), attrDurationMS, toMilliseconds(duration)}
	if o.c.logger != nil {
		o.c.logger.Warn(logMsgRequestFailed, args...)
	}
	if o.c.contextualLogger != nil {
		o.c.contextualLogger.WarnContext(o.ctx, logMsgRequestFailed, args...)
	}
}

func (o *requestObserver) recordDuration(duration time.Duration, labels map[string]string) {
	if o.c.metricsCollector == nil {
		return
	}

	if contextual, ok := o.c.metricsCollector.(libraryapi.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(o.ctx, metricRequestDuration, duration, labels)
		return
	}

	o.c.metricsCollector.RecordDuration(metricRequestDuration, duration, labels)
}

func (o *requestObserver) incrementCounter(metric string, labels map[string]string) {
	if o.c.metricsCollector == nil {
		return
	}

	if contextual, ok := o.c.metricsCollector.(libraryapi.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(o.ctx, metric, labels)
		return
	}

	o.c.metricsCollector.IncrementCounter(metric, labels)
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return statusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return statusTimeout
	default:
		return statusError
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
