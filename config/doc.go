// Package config provides connection and observability setup for the library binaries.
//
// It creates PostgreSQL connections for the three supported drivers (pgx.Pool, sql.DB, sqlx.DB)
// with pre-configured pool settings, resolves DSN and endpoints from the environment, and sets up
// OpenTelemetry providers exporting via OTLP/gRPC.
package config
