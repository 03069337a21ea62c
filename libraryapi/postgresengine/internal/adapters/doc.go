// Package adapters provide database adapter implementations for the PostgreSQL library store.
//
// The adapters support pgxpool.Pool, sql.DB (lib/pq driver) and sqlx.DB behind a common
// DBAdapter interface, so the store works with any of these connection types.
// The adapters also classify driver errors by SQLSTATE, since pgx and lib/pq report
// constraint violations and serialization failures with different error types.
package adapters
