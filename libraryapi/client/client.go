package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

const (
	// DefaultBaseURL is the origin plus API prefix of a locally running backend.
	DefaultBaseURL = "http://localhost:8000/api"

	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

var (
	// ErrEmptyBaseURL is returned when an empty base URL is provided to WithBaseURL.
	ErrEmptyBaseURL = errors.New("base url must not be empty")

	// ErrNilHTTPClient is returned when a nil *http.Client is provided to WithHTTPClient.
	ErrNilHTTPClient = errors.New("http client must not be nil")

	// ErrEncodingRequestBodyFailed is returned when the request payload cannot be encoded as JSON.
	ErrEncodingRequestBodyFailed = errors.New("encoding request body failed")
)

// Client issues requests against the library circulation API.
type Client struct {
	baseURL          string
	httpClient       *http.Client
	logger           libraryapi.Logger
	contextualLogger libraryapi.ContextualLogger
	metricsCollector libraryapi.MetricsCollector
	tracingCollector libraryapi.TracingCollector
}

// Option defines a functional option for configuring Client.
type Option func(*Client) error

// WithBaseURL sets the origin plus path prefix all request paths are appended to.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		if baseURL == "" {
			return ErrEmptyBaseURL
		}

		c.baseURL = strings.TrimRight(baseURL, "/")

		return nil
	}
}

// WithHTTPClient sets the *http.Client that performs the requests.
// Timeouts, proxies and TLS settings are whatever that client defines.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		if httpClient == nil {
			return ErrNilHTTPClient
		}

		c.httpClient = httpClient

		return nil
	}
}

// WithLogger sets the logger for the Client.
// Debug level: every request with its duration. Warn level: requests that failed in transport.
func WithLogger(logger libraryapi.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Client.
func WithContextualLogger(logger libraryapi.ContextualLogger) Option {
	return func(c *Client) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Client.
func WithMetrics(collector libraryapi.MetricsCollector) Option {
	return func(c *Client) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Client.
func WithTracing(collector libraryapi.TracingCollector) Option {
	return func(c *Client) error {
		c.tracingCollector = collector
		return nil
	}
}

// New creates a Client against DefaultBaseURL using http.DefaultClient, with optional configuration.
func New(options ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// BaseURL returns the origin plus path prefix the Client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do issues exactly one request with the given method against baseURL+path.
//
// A nil body sends no payload. A []byte or json.RawMessage body is sent as is,
// everything else is encoded as JSON. The route is the path template used to label
// observability data, e.g. "/books/{id}/".
func (c *Client) Do(ctx context.Context, method, route, path string, body any) (*Response, error) {
	reqBody, encodeErr := encodeBody(body)
	if encodeErr != nil {
		return nil, encodeErr
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerContentType, contentTypeJSON)

	observer, ctx := c.startRequestObservation(ctx, method, route)
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observer.finishError(err, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		observer.finishError(err, time.Since(start))
		return nil, err
	}

	observer.finishSuccess(resp.StatusCode, time.Since(start))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return http.NoBody, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	}

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(body)
	if err != nil {
		return nil, errors.Join(ErrEncodingRequestBodyFailed, err)
	}

	return bytes.NewReader(data), nil
}
