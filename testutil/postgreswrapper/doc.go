// Package postgreswrapper opens library stores on a real PostgreSQL test database.
//
// The driver is picked by the ADAPTER_TYPE environment variable (pgx.pool, sql.db or sqlx.db),
// the database by LIBRARY_TEST_DATABASE_DSN. Tests using it are skipped when no DSN is set.
package postgreswrapper
