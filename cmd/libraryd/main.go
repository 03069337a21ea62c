// Command libraryd serves the library circulation API backed by PostgreSQL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/AntonStoeckl/library-circulation-api/config"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/httpapi"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/oteladapters"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/postgresengine"
)

const (
	serviceName     = "libraryd"
	serviceVersion  = "dev"
	driverPGX       = "pgx"
	driverSQL       = "sql"
	driverSQLX      = "sqlx"
	readTimeout     = 10 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

var errUnknownDriver = errors.New("unknown driver")

// Config holds the daemon settings from flags and environment.
type Config struct {
	ListenAddr           string
	DSN                  string
	Driver               string
	Prefix               string
	CreateSchema         bool
	ObservabilityEnabled bool
	OTLPEndpoint         string
	Debug                bool
}

var _ httpapi.Store = (*postgresengine.Store)(nil)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("libraryd failed: %v", err)
	}
}

func parseConfig(args []string) (Config, error) {
	flags := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	var cfg Config
	flags.StringVar(&cfg.ListenAddr, "listen", config.ListenAddr(), "Address to listen on")
	flags.StringVar(&cfg.DSN, "dsn", config.PostgresDSN(), "PostgreSQL DSN")
	flags.StringVar(&cfg.Driver, "driver", driverPGX, "Database driver: pgx, sql or sqlx")
	flags.StringVar(&cfg.Prefix, "prefix", httpapi.DefaultPrefix, "Path prefix of all API routes")
	flags.BoolVar(&cfg.CreateSchema, "create-schema", true, "Create tables and indexes on startup")
	flags.BoolVar(&cfg.ObservabilityEnabled, "observability-enabled", false, "Export traces and metrics via OTLP")
	flags.StringVar(&cfg.OTLPEndpoint, "otlp-endpoint", config.OTLPEndpoint(), "OTLP gRPC endpoint")
	flags.BoolVar(&cfg.Debug, "debug", false, "Log executed SQL at debug level")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	switch cfg.Driver {
	case driverPGX, driverSQL, driverSQLX:
	default:
		return Config{}, fmt.Errorf("%w: %q", errUnknownDriver, cfg.Driver)
	}

	return cfg, nil
}

func run(ctx context.Context, cfg Config) error {
	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}

	logger := oteladapters.NewSlogBridgeLoggerWithHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	obs, shutdownObservability, err := newObservability(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownObservability()

	store, closeDB, err := openStore(ctx, cfg, obs)
	if err != nil {
		return err
	}
	defer closeDB()

	if cfg.CreateSchema {
		if err := store.CreateSchema(ctx); err != nil {
			return err
		}
	}

	server, err := httpapi.NewServer(store,
		httpapi.WithPrefix(cfg.Prefix),
		httpapi.WithLogger(obs.Logger),
		httpapi.WithContextualLogger(obs.ContextualLogger),
		httpapi.WithMetrics(obs.MetricsCollector),
		httpapi.WithTracing(obs.TracingCollector),
	)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpServer.ListenAndServe(); !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
		close(errChan)
	}()

	logger.Info("libraryd started", "listen", cfg.ListenAddr, "driver", cfg.Driver, "prefix", cfg.Prefix)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining requests")
	case serveErr := <-errChan:
		return serveErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("libraryd stopped")

	return nil
}

// Observability holds the adapters handed to the store and the server.
// Collectors stay nil when OTLP export is disabled.
type Observability struct {
	Logger           libraryapi.Logger
	ContextualLogger libraryapi.ContextualLogger
	MetricsCollector libraryapi.MetricsCollector
	TracingCollector libraryapi.TracingCollector
}

func newObservability(ctx context.Context, cfg Config, logger *oteladapters.SlogBridgeLogger) (Observability, func(), error) {
	obs := Observability{Logger: logger}
	if !cfg.ObservabilityEnabled {
		return obs, func() {}, nil
	}

	providers, err := config.NewObservabilityProviders(ctx, serviceName, serviceVersion, cfg.OTLPEndpoint)
	if err != nil {
		return Observability{}, nil, err
	}

	obs.ContextualLogger = oteladapters.NewSlogBridgeLogger(serviceName)
	obs.MetricsCollector = oteladapters.NewMetricsCollector(otel.Meter(serviceName))
	obs.TracingCollector = oteladapters.NewTracingCollector(otel.Tracer(serviceName))

	shutdown := func() {
		if shutdownErr := providers.Shutdown(); shutdownErr != nil {
			logger.Warn("observability shutdown failed", "error", shutdownErr.Error())
		}
	}

	return obs, shutdown, nil
}

func openStore(ctx context.Context, cfg Config, obs Observability) (*postgresengine.Store, func(), error) {
	options := []postgresengine.Option{postgresengine.WithLogger(obs.Logger)}
	if obs.ContextualLogger != nil {
		options = append(options, postgresengine.WithContextualLogger(obs.ContextualLogger))
	}
	if obs.MetricsCollector != nil {
		options = append(options, postgresengine.WithMetrics(obs.MetricsCollector))
	}
	if obs.TracingCollector != nil {
		options = append(options, postgresengine.WithTracing(obs.TracingCollector))
	}

	switch cfg.Driver {
	case driverSQL:
		db, err := config.PostgresSQLDB(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		return storeOrClose(store, func() { _ = db.Close() }, err)

	case driverSQLX:
		db, err := config.PostgresSQLX(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		return storeOrClose(store, func() { _ = db.Close() }, err)

	default:
		pool, err := config.PostgresPGXPool(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}

		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		return storeOrClose(store, pool.Close, err)
	}
}

// storeOrClose closes the connection if the store could not be built on top of it.
func storeOrClose(store *postgresengine.Store, closeDB func(), err error) (*postgresengine.Store, func(), error) {
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	return store, closeDB, nil
}
