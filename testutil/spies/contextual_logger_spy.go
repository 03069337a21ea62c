package spies

import (
	"context"
	"sync"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

// LogRecord represents a recorded logging call.
type LogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context
}

// HasArg reports whether the record carries key with the given value.
func (r LogRecord) HasArg(key string, value any) bool {
	for i := 0; i+1 < len(r.Args); i += 2 {
		if k, ok := r.Args[i].(string); ok && k == key && r.Args[i+1] == value {
			return true
		}
	}

	return false
}

// ContextualLoggerSpy captures contextual logging calls for testing.
// It implements libraryapi.Logger as well, recording those calls with context.Background().
type ContextualLoggerSpy struct {
	records     []LogRecord
	mu          sync.Mutex
	recordCalls bool
}

// NewContextualLoggerSpy creates a new ContextualLoggerSpy.
func NewContextualLoggerSpy(recordCalls bool) *ContextualLoggerSpy {
	return &ContextualLoggerSpy{recordCalls: recordCalls}
}

func (s *ContextualLoggerSpy) record(ctx context.Context, level, msg string, args []any) {
	if !s.recordCalls {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, LogRecord{Level: level, Message: msg, Args: args, Context: ctx})
}

// DebugContext implements libraryapi.ContextualLogger.
func (s *ContextualLoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "debug", msg, args)
}

// InfoContext implements libraryapi.ContextualLogger.
func (s *ContextualLoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "info", msg, args)
}

// WarnContext implements libraryapi.ContextualLogger.
func (s *ContextualLoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "warn", msg, args)
}

// ErrorContext implements libraryapi.ContextualLogger.
func (s *ContextualLoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(ctx, "error", msg, args)
}

// Debug implements libraryapi.Logger.
func (s *ContextualLoggerSpy) Debug(msg string, args ...any) {
	s.record(context.Background(), "debug", msg, args)
}

// Info implements libraryapi.Logger.
func (s *ContextualLoggerSpy) Info(msg string, args ...any) {
	s.record(context.Background(), "info", msg, args)
}

// Warn implements libraryapi.Logger.
func (s *ContextualLoggerSpy) Warn(msg string, args ...any) {
	s.record(context.Background(), "warn", msg, args)
}

// Error implements libraryapi.Logger.
func (s *ContextualLoggerSpy) Error(msg string, args ...any) {
	s.record(context.Background(), "error", msg, args)
}

// Records returns a copy of all captured records.
func (s *ContextualLoggerSpy) Records() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]LogRecord, len(s.records))
	copy(records, s.records)

	return records
}

// RecordsWithMessage returns all captured records with the given level and message.
func (s *ContextualLoggerSpy) RecordsWithMessage(level, msg string) []LogRecord {
	matching := make([]LogRecord, 0)
	for _, r := range s.Records() {
		if r.Level == level && r.Message == msg {
			matching = append(matching, r)
		}
	}

	return matching
}

var _ libraryapi.ContextualLogger = (*ContextualLoggerSpy)(nil)
var _ libraryapi.Logger = (*ContextualLoggerSpy)(nil)
