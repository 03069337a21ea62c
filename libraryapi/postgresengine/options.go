package postgresengine

import (
	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithUsersTableName sets the name of the users table.
func WithUsersTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return libraryapi.ErrEmptyTableNameSupplied
		}

		s.usersTableName = tableName

		return nil
	}
}

// WithBooksTableName sets the name of the books table.
func WithBooksTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return libraryapi.ErrEmptyTableNameSupplied
		}

		s.booksTableName = tableName

		return nil
	}
}

// WithTransactionsTableName sets the name of the borrow transactions table.
func WithTransactionsTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return libraryapi.ErrEmptyTableNameSupplied
		}

		s.transactionsTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: operation names, row counts, durations (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: failures of the database or of building statements.
func WithLogger(logger libraryapi.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
// It receives the same messages as the Logger, together with the operation's context,
// which allows trace correlation when tracing is enabled.
func WithContextualLogger(logger libraryapi.ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// It receives operation durations, row counts and database error counters.
func WithMetrics(collector libraryapi.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
// One span is started per store operation.
func WithTracing(collector libraryapi.TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}
