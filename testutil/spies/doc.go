// Package spies provides test doubles for the libraryapi observability interfaces.
//
// The spies capture calls so tests can assert on logged messages, recorded metrics and
// finished spans without a real OpenTelemetry backend. Set recordCalls to false to get
// a no-op implementation.
package spies
