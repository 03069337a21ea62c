package httpapi

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

const (
	// RequestIDHeader carries the request ID, taken from the request or generated.
	RequestIDHeader = "X-Request-ID"

	// RequestDurationMetric records the duration of served requests.
	RequestDurationMetric = "libraryapi_http_request_duration_seconds"

	// RequestsMetric counts served requests.
	RequestsMetric = "libraryapi_http_requests_total"

	spanNameRequest    = "libraryapi.http.request"
	attrMethod         = "method"
	attrRoute          = "route"
	attrStatusCode     = "status_code"
	attrRequestID      = "request_id"
	attrDurationMS     = "duration_ms"
	attrError          = "error"
	attrRetryAttempts  = "retry_attempts"
	statusSuccess      = "success"
	statusClientError  = "client_error"
	statusServerError  = "server_error"
	logMsgRequest      = "http request served"
	logMsgRequestError = "http request failed"
	maxRequestIDLength = 128
)

type requestIDKey struct{}

type requestInfoKey struct{}

// requestInfo describes the matched route and is filled in by the handler while it runs.
type requestInfo struct {
	method        string
	route         string
	retryAttempts int
}

// operation names the route for retry metrics, e.g. "POST /books/".
func (i *requestInfo) operation() string {
	return i.method + " " + i.route
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// RequestIDFromContext returns the request ID the API assigned to the request of ctx.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}

	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}

	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}

	return r.status
}

// observe wraps a route handler with request ID, tracing, metrics and logging.
func (s *Server) observe(method, route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		info := &requestInfo{method: method, route: route}
		ctx = context.WithValue(ctx, requestInfoKey{}, info)

		var span libraryapi.SpanContext
		if s.tracingCollector != nil {
			ctx, span = s.tracingCollector.StartSpan(ctx, spanNameRequest, map[string]string{
				attrMethod:    method,
				attrRoute:     route,
				attrRequestID: requestID,
			})
		}

		recorder := &statusRecorder{ResponseWriter: w}
		r = r.WithContext(ctx)
		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		statusCode := recorder.statusCode()
		outcome := outcomeOf(statusCode)
		labels := map[string]string{
			attrMethod:     method,
			attrRoute:      route,
			attrStatusCode: strconv.Itoa(statusCode),
		}

		if span != nil {
			span.AddAttribute(attrStatusCode, labels[attrStatusCode])
			span.SetStatus(outcome)
			finishAttrs := map[string]string{
				attrStatusCode: labels[attrStatusCode],
				attrDurationMS: strconv.FormatFloat(toMilliseconds(duration), 'f', 3, 64),
			}
			if info.retryAttempts > 0 {
				finishAttrs[attrRetryAttempts] = strconv.Itoa(info.retryAttempts)
			}
			s.tracingCollector.FinishSpan(span, outcome, finishAttrs)
		}

		s.recordRequest(ctx, duration, labels)
		s.logRequest(r, outcome,
			attrMethod, method,
			attrRoute, route,
			attrStatusCode, statusCode,
			attrRequestID, requestID,
			attrDurationMS, toMilliseconds(duration),
		)
	})
}

func outcomeOf(statusCode int) string {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return statusServerError
	case statusCode >= http.StatusBadRequest:
		return statusClientError
	default:
		return statusSuccess
	}
}

// recordRequest records duration and count, using the context-aware methods if available.
func (s *Server) recordRequest(ctx context.Context, duration time.Duration, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextualCollector, ok := s.metricsCollector.(libraryapi.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, RequestDurationMetric, duration, labels)
		contextualCollector.IncrementCounterContext(ctx, RequestsMetric, labels)

		return
	}

	s.metricsCollector.RecordDuration(RequestDurationMetric, duration, labels)
	s.metricsCollector.IncrementCounter(RequestsMetric, labels)
}

// logRequest logs served requests at info level and server errors at error level.
func (s *Server) logRequest(r *http.Request, outcome string, args ...any) {
	if outcome == statusServerError {
		if s.logger != nil {
			s.logger.Error(logMsgRequestError, args...)
		}

		if s.contextualLogger != nil {
			s.contextualLogger.ErrorContext(r.Context(), logMsgRequestError, args...)
		}

		return
	}

	if s.logger != nil {
		s.logger.Info(logMsgRequest, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(r.Context(), logMsgRequest, args...)
	}
}

// logRequestError logs the cause of an internal failure.
func (s *Server) logRequestError(r *http.Request, message string, err error) {
	args := []any{attrError, err.Error(), attrRequestID, RequestIDFromContext(r.Context())}

	if s.logger != nil {
		s.logger.Error(message, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(r.Context(), message, args...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
