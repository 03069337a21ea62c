package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/postgresengine/internal/adapters"
)

const (
	operationListTransactions = "list_transactions"
	operationGetTransaction   = "get_transaction"
	operationBorrow           = "borrow"
	operationReturn           = "return"
)

var transactionColumns = []any{colID, colUserID, colBookID, colBorrowDate, colReturnDate, colStatus}

func scanTransaction(rows adapters.DBRows) (libraryapi.BorrowTransaction, error) {
	var (
		tx         libraryapi.BorrowTransaction
		borrowDate time.Time
		returnDate *time.Time
		status     string
	)

	if err := rows.Scan(&tx.ID, &tx.User, &tx.Book, &borrowDate, &returnDate, &status); err != nil {
		return libraryapi.BorrowTransaction{}, err
	}

	tx.BorrowDate = libraryapi.DateOf(borrowDate)
	tx.Status = libraryapi.TransactionStatus(status)

	if returnDate != nil {
		d := libraryapi.DateOf(*returnDate)
		tx.ReturnDate = &d
	}

	return tx, nil
}

// ListTransactions returns all borrow transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context) (transactions []libraryapi.BorrowTransaction, err error) {
	ctx, observer := s.startObservation(ctx, operationListTransactions)
	defer func() { observer.finish(err, len(transactions)) }()

	sqlQuery, err := s.toSQL(ctx, s.builder().
		From(s.transactionsTableName).
		Select(transactionColumns...).
		Order(goqu.I(colID).Desc()))
	if err != nil {
		return nil, err
	}

	return scanAll(ctx, s, sqlQuery, scanTransaction)
}

// GetTransaction returns the borrow transaction with the given ID or libraryapi.ErrTransactionNotFound.
func (s *Store) GetTransaction(ctx context.Context, id libraryapi.ID) (transaction libraryapi.BorrowTransaction, err error) {
	ctx, observer := s.startObservation(ctx, operationGetTransaction)
	defer func() { observer.finish(err, 1) }()

	return s.getTransaction(ctx, id)
}

func (s *Store) getTransaction(ctx context.Context, id libraryapi.ID) (libraryapi.BorrowTransaction, error) {
	sqlQuery, err := s.toSQL(ctx, s.builder().
		From(s.transactionsTableName).
		Select(transactionColumns...).
		Where(goqu.C(colID).Eq(id)))
	if err != nil {
		return libraryapi.BorrowTransaction{}, err
	}

	return scanOne(ctx, s, sqlQuery, scanTransaction, libraryapi.ErrTransactionNotFound)
}

// Borrow lends one copy of req.Book to req.User.
//
// The copy counter is decremented and the borrowed transaction is inserted by one statement,
// which only affects rows while the book has a copy left. Possible rule violations are
// libraryapi.ErrBookNotFound, libraryapi.ErrNoCopiesAvailable and libraryapi.ErrUserNotFound.
func (s *Store) Borrow(ctx context.Context, req libraryapi.BorrowRequest) (transaction libraryapi.BorrowTransaction, err error) {
	ctx, observer := s.startObservation(ctx, operationBorrow)
	defer func() { observer.finish(err, 1) }()

	borrowDate := req.BorrowDate
	if borrowDate.IsZero() {
		borrowDate = s.today()
	}

	sqlQuery, err := s.buildBorrowQuery(req.User, req.Book, borrowDate)
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err)
		return libraryapi.BorrowTransaction{}, err
	}

	transactions, err := scanAll(ctx, s, sqlQuery, scanTransaction)
	if err != nil {
		// The only foreign key the insert can violate is the user reference.
		if errors.Is(err, libraryapi.ErrInvalidReference) {
			return libraryapi.BorrowTransaction{}, errors.Join(libraryapi.ErrUserNotFound, err)
		}

		return libraryapi.BorrowTransaction{}, err
	}

	if len(transactions) > 0 {
		return transactions[0], nil
	}

	// Nothing inserted: either the book is missing or it has no copy left.
	if _, err = s.getBook(ctx, req.Book); err != nil {
		return libraryapi.BorrowTransaction{}, err
	}

	return libraryapi.BorrowTransaction{}, libraryapi.ErrNoCopiesAvailable
}

func (s *Store) buildBorrowQuery(userID, bookID libraryapi.ID, borrowDate libraryapi.Date) (sqlQueryString, error) {
	builder := s.builder()

	// Define the data-modifying CTE that takes one copy off the shelf
	takeCopy := builder.
		Update(s.booksTableName).
		Set(goqu.Record{colCopiesAvailable: goqu.L("? - 1", goqu.I(colCopiesAvailable))}).
		Where(
			goqu.C(colID).Eq(bookID),
			goqu.C(colCopiesAvailable).Gte(1),
		).
		Returning(colID)

	// Define the SELECT for the INSERT, it yields no row if no copy was taken
	selectStmt := builder.
		From(cteBorrowedBook).
		Select(
			goqu.V(userID),
			goqu.I(cteBorrowedBook+"."+colID),
			goqu.L(castDate, borrowDate.String()),
			goqu.V(string(libraryapi.StatusBorrowed)),
		)

	// Finalize the full INSERT query
	insertStmt := builder.
		Insert(s.transactionsTableName).
		Cols(colUserID, colBookID, colBorrowDate, colStatus).
		With(cteBorrowedBook, takeCopy).
		FromQuery(selectStmt).
		Returning(transactionColumns...)

	sqlQuery, _, toSQLErr := insertStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(libraryapi.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}

// Return closes the borrowed transaction with the given ID.
//
// Status and return date are set and the book's copy counter is incremented by one statement.
// A zero returnDate means today. Possible rule violations are libraryapi.ErrTransactionNotFound
// and libraryapi.ErrAlreadyReturned. If the book was deleted meanwhile, only the transaction changes.
func (s *Store) Return(ctx context.Context, id libraryapi.ID, returnDate libraryapi.Date) (transaction libraryapi.BorrowTransaction, err error) {
	ctx, observer := s.startObservation(ctx, operationReturn)
	defer func() { observer.finish(err, 1) }()

	if returnDate.IsZero() {
		returnDate = s.today()
	}

	sqlQuery, err := s.buildReturnQuery(id, returnDate)
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err)
		return libraryapi.BorrowTransaction{}, err
	}

	transactions, err := scanAll(ctx, s, sqlQuery, scanTransaction)
	if err != nil {
		return libraryapi.BorrowTransaction{}, err
	}

	if len(transactions) > 0 {
		return transactions[0], nil
	}

	// Nothing updated: either the transaction is missing or it is already returned.
	existing, err := s.getTransaction(ctx, id)
	if err != nil {
		return libraryapi.BorrowTransaction{}, err
	}

	if existing.IsReturned() {
		return libraryapi.BorrowTransaction{}, libraryapi.ErrAlreadyReturned
	}

	// Borrowed again between both statements, which only a concurrent writer can cause.
	return libraryapi.BorrowTransaction{}, libraryapi.ErrTransientDatabaseFailure
}

func (s *Store) buildReturnQuery(id libraryapi.ID, returnDate libraryapi.Date) (sqlQueryString, error) {
	builder := s.builder()

	// Define the data-modifying CTE that closes the transaction
	closeTransaction := builder.
		Update(s.transactionsTableName).
		Set(goqu.Record{
			colStatus:     string(libraryapi.StatusReturned),
			colReturnDate: goqu.L(castDate, returnDate.String()),
		}).
		Where(
			goqu.C(colID).Eq(id),
			goqu.C(colStatus).Eq(string(libraryapi.StatusBorrowed)),
		).
		Returning(transactionColumns...)

	// Define the data-modifying CTE that puts the copy back on the shelf
	restock := builder.
		Update(s.booksTableName).
		Set(goqu.Record{colCopiesAvailable: goqu.L("? + 1", goqu.I(colCopiesAvailable))}).
		Where(goqu.C(colID).In(builder.From(cteReturnedTransaction).Select(colBookID)))

	selectStmt := builder.
		From(cteReturnedTransaction).
		With(cteReturnedTransaction, closeTransaction).
		With(cteRestockedBook, restock).
		Select(transactionColumns...)

	sqlQuery, _, toSQLErr := selectStmt.ToSQL()
	if toSQLErr != nil {
		return "", errors.Join(libraryapi.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
