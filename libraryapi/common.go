package libraryapi

import "errors"

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrEmptyTableNameSupplied = errors.New("empty table name supplied")

var (
	// ErrUserNotFound is returned when no user exists for the given ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrBookNotFound is returned when no book exists for the given ID.
	ErrBookNotFound = errors.New("book not found")

	// ErrTransactionNotFound is returned when no borrow transaction exists for the given ID.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNoCopiesAvailable is returned when a book is borrowed while no copy is left.
	ErrNoCopiesAvailable = errors.New("no copies available")

	// ErrAlreadyReturned is returned when a transaction that is already returned is returned again.
	ErrAlreadyReturned = errors.New("already returned")

	// ErrBookCurrentlyBorrowed is returned when a book with an open borrow transaction is deleted.
	ErrBookCurrentlyBorrowed = errors.New("cannot delete a book that is currently borrowed")

	// ErrDuplicate is returned when a unique constraint (isbn, username) is violated.
	ErrDuplicate = errors.New("duplicate value violates a unique constraint")

	// ErrInvalidReference is returned when a referenced user or book does not exist.
	ErrInvalidReference = errors.New("referenced object does not exist")

	// ErrTransientDatabaseFailure marks serialization failures and deadlocks that are safe to retry.
	ErrTransientDatabaseFailure = errors.New("transient database failure")
)

var (
	// ErrBuildingQueryFailed is returned when a SQL statement cannot be rendered.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrQueryingFailed is returned when a query against the database fails.
	ErrQueryingFailed = errors.New("querying the database failed")

	// ErrExecutingFailed is returned when a statement without result rows fails.
	ErrExecutingFailed = errors.New("executing statement failed")

	// ErrScanningDBRowFailed is returned when a result row cannot be scanned.
	ErrScanningDBRowFailed = errors.New("scanning db row failed")

	// ErrGettingRowsAffectedFailed is returned when the affected row count is unavailable.
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")

	// ErrCreatingSchemaFailed is returned when the schema migration fails.
	ErrCreatingSchemaFailed = errors.New("creating schema failed")

	// ErrDroppingSchemaFailed is returned when dropping the tables fails.
	ErrDroppingSchemaFailed = errors.New("dropping schema failed")
)

// IsRuleViolation reports whether err is a business rule violation rather than a technical failure.
func IsRuleViolation(err error) bool {
	for _, target := range []error{
		ErrUserNotFound,
		ErrBookNotFound,
		ErrTransactionNotFound,
		ErrNoCopiesAvailable,
		ErrAlreadyReturned,
		ErrBookCurrentlyBorrowed,
		ErrDuplicate,
		ErrInvalidReference,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
