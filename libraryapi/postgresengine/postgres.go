package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // driver import
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/postgresengine/internal/adapters"
)

const (
	defaultUsersTableName        = "users"
	defaultBooksTableName        = "books"
	defaultTransactionsTableName = "borrow_transactions"
	logMsgBuildQueryFailed       = "failed to build sql statement"
	logMsgDBQueryFailed          = "database query execution failed"
	logMsgDBExecFailed           = "database statement execution failed"
	logMsgCloseRowsFailed        = "failed to close database rows"
	logMsgScanRowFailed          = "failed to scan database row"
	logMsgRowsAffectedFailed     = "failed to get rows affected count"
	logMsgSQLExecuted            = "executed sql for: "
	logMsgOperation              = "library store operation: "
	logAttrError                 = "error"
	logAttrQuery                 = "query"
	logAttrRowCount              = "row_count"
	logAttrDurationMS            = "duration_ms"
	logActionQuery               = "query"
	logActionExec                = "exec"
	colID                        = "id"
	colUsername                  = "username"
	colFirstName                 = "first_name"
	colLastName                  = "last_name"
	colEmail                     = "email"
	colTitle                     = "title"
	colAuthor                    = "author"
	colISBN                      = "isbn"
	colCopiesAvailable           = "copies_available"
	colUserID                    = "user_id"
	colBookID                    = "book_id"
	colBorrowDate                = "borrow_date"
	colReturnDate                = "return_date"
	colStatus                    = "status"
	cteBorrowedBook              = "borrowed_book"
	cteReturnedTransaction       = "returned_transaction"
	cteRestockedBook             = "restocked_book"
	dialectPostgres              = "postgres"
	castDate                     = "?::date"
)

type (
	sqlQueryString    = string
	rowsAffectedInt64 = int64
)

// Store persists users, books and borrow transactions in PostgreSQL.
type Store struct {
	db                    adapters.DBAdapter
	usersTableName        string
	booksTableName        string
	transactionsTableName string
	now                   func() time.Time
	logger                libraryapi.Logger
	contextualLogger      libraryapi.ContextualLogger
	metricsCollector      libraryapi.MetricsCollector
	tracingCollector      libraryapi.TracingCollector
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, libraryapi.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, libraryapi.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, libraryapi.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{
		db:                    db,
		usersTableName:        defaultUsersTableName,
		booksTableName:        defaultBooksTableName,
		transactionsTableName: defaultTransactionsTableName,
		now:                   time.Now,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

// toSQL renders a goqu statement without placeholders.
func (s *Store) toSQL(ctx context.Context, stmt interface {
	ToSQL() (string, []any, error)
}) (sqlQueryString, error) {

	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr)
		return "", errors.Join(libraryapi.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// query executes a statement that returns rows.
func (s *Store) query(ctx context.Context, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := s.db.Query(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, logActionQuery, time.Since(start))

	if queryErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(libraryapi.ErrQueryingFailed, classifyDBError(queryErr))
	}

	return rows, nil
}

// exec executes a statement without result rows and returns the number of affected rows.
func (s *Store) exec(ctx context.Context, sqlQuery string) (rowsAffectedInt64, error) {
	start := time.Now()
	result, execErr := s.db.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, logActionExec, time.Since(start))

	if execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return 0, errors.Join(libraryapi.ErrExecutingFailed, classifyDBError(execErr))
	}

	rowsAffected, rowsAffectedErr := result.RowsAffected()
	if rowsAffectedErr != nil {
		s.logError(ctx, logMsgRowsAffectedFailed, rowsAffectedErr)
		return 0, errors.Join(libraryapi.ErrGettingRowsAffectedFailed, rowsAffectedErr)
	}

	return rowsAffected, nil
}

// closeRows safely closes database rows and logs any errors.
func (s *Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// scanAll runs sqlQuery and scans every result row with scan.
func scanAll[T any](
	ctx context.Context,
	s *Store,
	sqlQuery string,
	scan func(rows adapters.DBRows) (T, error),
) ([]T, error) {

	rows, queryErr := s.query(ctx, sqlQuery)
	if queryErr != nil {
		return nil, queryErr
	}
	defer s.closeRows(ctx, rows)

	result := make([]T, 0)

	for rows.Next() {
		item, scanErr := scan(rows)
		if scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(libraryapi.ErrScanningDBRowFailed, scanErr)
		}

		result = append(result, item)
	}

	// pgx reports errors of data-modifying statements only after iterating.
	if iterErr := rows.Err(); iterErr != nil {
		s.logError(ctx, logMsgDBQueryFailed, iterErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(libraryapi.ErrQueryingFailed, classifyDBError(iterErr))
	}

	return result, nil
}

// scanOne runs sqlQuery and returns its first row, or notFound if there is none.
func scanOne[T any](
	ctx context.Context,
	s *Store,
	sqlQuery string,
	scan func(rows adapters.DBRows) (T, error),
	notFound error,
) (T, error) {

	var empty T

	items, err := scanAll(ctx, s, sqlQuery, scan)
	if err != nil {
		return empty, err
	}

	if len(items) == 0 {
		return empty, notFound
	}

	return items[0], nil
}

// classifyDBError tags driver errors with the library sentinel matching their SQLSTATE.
func classifyDBError(err error) error {
	switch adapters.SQLState(err) {
	case adapters.SQLStateUniqueViolation:
		return errors.Join(libraryapi.ErrDuplicate, err)

	case adapters.SQLStateForeignKeyViolation:
		return errors.Join(libraryapi.ErrInvalidReference, err)

	case adapters.SQLStateSerializationFailure, adapters.SQLStateDeadlockDetected:
		return errors.Join(libraryapi.ErrTransientDatabaseFailure, err)

	default:
		return err
	}
}

func (s *Store) today() libraryapi.Date {
	return libraryapi.DateOf(s.now().UTC())
}
