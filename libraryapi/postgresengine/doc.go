// Package postgresengine provides a PostgreSQL implementation of the library circulation store.
//
// The store keeps users, books and borrow transactions in three tables and supports three
// database adapters:
//   - pgx/v5 connection pools (NewStoreFromPGXPool)
//   - database/sql connections using lib/pq (NewStoreFromSQLDB)
//   - sqlx database connections (NewStoreFromSQLX)
//
// All SQL is built with goqu and rendered without prepared statements.
//
// Borrowing and returning are single statements built from data-modifying common table
// expressions, so the copy counter of a book and the transaction row always change together:
//
//	WITH borrowed_book AS (UPDATE books SET copies_available = copies_available - 1
//	    WHERE id = ? AND copies_available >= 1 RETURNING id)
//	INSERT INTO borrow_transactions (...) SELECT ... FROM borrowed_book RETURNING ...
//
// When such a statement affects no row, a follow-up query finds out which rule was violated
// (missing book, no copies available, missing transaction, already returned).
//
// Driver errors are classified by SQLSTATE: unique violations map to libraryapi.ErrDuplicate,
// foreign key violations to libraryapi.ErrInvalidReference, and serialization failures or
// deadlocks to libraryapi.ErrTransientDatabaseFailure, which callers may retry.
//
// Observability is optional and configured with WithLogger, WithContextualLogger, WithMetrics
// and WithTracing.
package postgresengine
