// Package oteladapters provides OpenTelemetry implementations of the libraryapi observability interfaces.
// The library store, the HTTP server and the client accept them as plain libraryapi.Logger,
// libraryapi.ContextualLogger, libraryapi.MetricsCollector and libraryapi.TracingCollector values.
package oteladapters
