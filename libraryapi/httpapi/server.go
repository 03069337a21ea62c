package httpapi

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/retry"
)

// DefaultPrefix is the path prefix all routes are registered under.
const DefaultPrefix = "/api"

var ErrNilStore = errors.New("store must not be nil")
var ErrInvalidPrefix = errors.New("prefix must be empty or start with a slash")

// Store is the persistence the API serves.
type Store interface {
	ListUsers(ctx context.Context) ([]libraryapi.User, error)
	GetUser(ctx context.Context, id libraryapi.ID) (libraryapi.User, error)
	CreateUser(ctx context.Context, user libraryapi.User) (libraryapi.User, error)
	UpdateUser(ctx context.Context, user libraryapi.User) (libraryapi.User, error)
	PatchUser(ctx context.Context, id libraryapi.ID, patch libraryapi.UserPatch) (libraryapi.User, error)
	DeleteUser(ctx context.Context, id libraryapi.ID) error

	ListBooks(ctx context.Context) ([]libraryapi.Book, error)
	GetBook(ctx context.Context, id libraryapi.ID) (libraryapi.Book, error)
	CreateBook(ctx context.Context, book libraryapi.Book) (libraryapi.Book, error)
	UpdateBook(ctx context.Context, book libraryapi.Book) (libraryapi.Book, error)
	PatchBook(ctx context.Context, id libraryapi.ID, patch libraryapi.BookPatch) (libraryapi.Book, error)
	DeleteBook(ctx context.Context, id libraryapi.ID) error

	ListTransactions(ctx context.Context) ([]libraryapi.BorrowTransaction, error)
	Borrow(ctx context.Context, req libraryapi.BorrowRequest) (libraryapi.BorrowTransaction, error)
	Return(ctx context.Context, id libraryapi.ID, returnDate libraryapi.Date) (libraryapi.BorrowTransaction, error)
}

// Server translates HTTP requests into Store calls.
type Server struct {
	store            Store
	prefix           string
	validate         *validator.Validate
	retryOptions     []retry.Option
	logger           libraryapi.Logger
	contextualLogger libraryapi.ContextualLogger
	metricsCollector libraryapi.MetricsCollector
	tracingCollector libraryapi.TracingCollector
}

// Option defines a functional option for configuring Server.
type Option func(*Server) error

// WithPrefix sets the path prefix, e.g. "/api". An empty prefix serves from the root.
func WithPrefix(prefix string) Option {
	return func(s *Server) error {
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			return ErrInvalidPrefix
		}

		s.prefix = strings.TrimRight(prefix, "/")

		return nil
	}
}

// WithRetryOptions configures the backoff used for mutations.
// Retry metrics are labelled per route automatically once WithMetrics is set.
func WithRetryOptions(options ...retry.Option) Option {
	return func(s *Server) error {
		s.retryOptions = append(s.retryOptions, options...)
		return nil
	}
}

// WithLogger sets the logger, which receives one record per request.
func WithLogger(logger libraryapi.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger, which receives one record per request
// together with the request context.
func WithContextualLogger(logger libraryapi.ContextualLogger) Option {
	return func(s *Server) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for request durations and counters, and for retries of mutations.
func WithMetrics(collector libraryapi.MetricsCollector) Option {
	return func(s *Server) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector, which receives one span per request.
func WithTracing(collector libraryapi.TracingCollector) Option {
	return func(s *Server) error {
		s.tracingCollector = collector
		return nil
	}
}

// NewServer creates a Server for store with optional configuration.
func NewServer(store Store, options ...Option) (*Server, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	s := &Server{
		store:    store,
		prefix:   DefaultPrefix,
		validate: newValidator(),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Handler returns the http.Handler serving all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, http.MethodGet, routeUsers, s.listUsers)
	s.route(mux, http.MethodPost, routeUsers, s.createUser)
	s.route(mux, http.MethodGet, routeUser, s.getUser)
	s.route(mux, http.MethodPut, routeUser, s.updateUser)
	s.route(mux, http.MethodPatch, routeUser, s.patchUser)
	s.route(mux, http.MethodDelete, routeUser, s.deleteUser)

	s.route(mux, http.MethodGet, routeBooks, s.listBooks)
	s.route(mux, http.MethodPost, routeBooks, s.createBook)
	s.route(mux, http.MethodGet, routeBook, s.getBook)
	s.route(mux, http.MethodPut, routeBook, s.updateBook)
	s.route(mux, http.MethodPatch, routeBook, s.patchBook)
	s.route(mux, http.MethodDelete, routeBook, s.deleteBook)

	s.route(mux, http.MethodGet, routeTransactions, s.listTransactions)
	s.route(mux, http.MethodGet, routeBorrow, s.ok)
	s.route(mux, http.MethodPost, routeBorrow, s.borrow)
	s.route(mux, http.MethodGet, routeReturn, s.ok)
	s.route(mux, http.MethodPost, routeReturn, s.returnBook)

	return mux
}

const (
	routeUsers        = "/users/"
	routeUser         = "/users/{id}/"
	routeBooks        = "/books/"
	routeBook         = "/books/{id}/"
	routeTransactions = "/transactions/"
	routeBorrow       = "/borrow/"
	routeReturn       = "/return/{id}/"
)

// route registers handler for method and the exact route template below the prefix.
func (s *Server) route(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	mux.Handle(method+" "+s.prefix+route+"{$}", s.observe(method, route, handler))
}

// mutate runs fn with retries on transient database failures.
// With a metrics collector, retries are counted per route, and the attempts end up on the request span.
func (s *Server) mutate(ctx context.Context, fn retry.Func) error {
	options := s.retryOptions
	info := requestInfoFromContext(ctx)

	if info != nil && s.metricsCollector != nil {
		options = append(slices.Clip(options), retry.WithMetrics(s.metricsCollector, info.operation()))
	}

	meta, err := retry.WithExponentialBackoff(ctx, fn, options...)
	if info != nil {
		info.retryAttempts = meta.Attempts
	}

	return err
}

func (s *Server) ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
