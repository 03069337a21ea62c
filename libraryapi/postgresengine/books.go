package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/postgresengine/internal/adapters"
)

const (
	operationListBooks  = "list_books"
	operationGetBook    = "get_book"
	operationCreateBook = "create_book"
	operationUpdateBook = "update_book"
	operationPatchBook  = "patch_book"
	operationDeleteBook = "delete_book"
)

var bookColumns = []any{colID, colTitle, colAuthor, colISBN, colCopiesAvailable}

func scanBook(rows adapters.DBRows) (libraryapi.Book, error) {
	var b libraryapi.Book
	err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.CopiesAvailable)

	return b, err
}

// ListBooks returns all books ordered by title.
func (s *Store) ListBooks(ctx context.Context) (books []libraryapi.Book, err error) {
	ctx, observer := s.startObservation(ctx, operationListBooks)
	defer func() { observer.finish(err, len(books)) }()

	sqlQuery, err := s.toSQL(ctx, s.builder().
		From(s.booksTableName).
		Select(bookColumns...).
		Order(goqu.I(colTitle).Asc(), goqu.I(colID).Asc()))
	if err != nil {
		return nil, err
	}

	return scanAll(ctx, s, sqlQuery, scanBook)
}

// GetBook returns the book with the given ID or libraryapi.ErrBookNotFound.
func (s *Store) GetBook(ctx context.Context, id libraryapi.ID) (book libraryapi.Book, err error) {
	ctx, observer := s.startObservation(ctx, operationGetBook)
	defer func() { observer.finish(err, 1) }()

	return s.getBook(ctx, id)
}

func (s *Store) getBook(ctx context.Context, id libraryapi.ID) (libraryapi.Book, error) {
	sqlQuery, err := s.toSQL(ctx, s.builder().
		From(s.booksTableName).
		Select(bookColumns...).
		Where(goqu.C(colID).Eq(id)))
	if err != nil {
		return libraryapi.Book{}, err
	}

	return scanOne(ctx, s, sqlQuery, scanBook, libraryapi.ErrBookNotFound)
}

// CreateBook inserts a book and returns it with its assigned ID.
// A taken ISBN yields libraryapi.ErrDuplicate.
func (s *Store) CreateBook(ctx context.Context, book libraryapi.Book) (created libraryapi.Book, err error) {
	ctx, observer := s.startObservation(ctx, operationCreateBook)
	defer func() { observer.finish(err, 1) }()

	sqlQuery, err := s.toSQL(ctx, s.builder().
		Insert(s.booksTableName).
		Rows(bookRecord(book)).
		Returning(bookColumns...))
	if err != nil {
		return libraryapi.Book{}, err
	}

	return scanOne(ctx, s, sqlQuery, scanBook, libraryapi.ErrQueryingFailed)
}

// UpdateBook replaces all fields of the book identified by book.ID.
func (s *Store) UpdateBook(ctx context.Context, book libraryapi.Book) (updated libraryapi.Book, err error) {
	ctx, observer := s.startObservation(ctx, operationUpdateBook)
	defer func() { observer.finish(err, 1) }()

	return s.updateBook(ctx, book.ID, bookRecord(book))
}

// PatchBook changes the non-nil fields of patch on the book with the given ID.
func (s *Store) PatchBook(ctx context.Context, id libraryapi.ID, patch libraryapi.BookPatch) (patched libraryapi.Book, err error) {
	ctx, observer := s.startObservation(ctx, operationPatchBook)
	defer func() { observer.finish(err, 1) }()

	if patch.IsEmpty() {
		return s.getBook(ctx, id)
	}

	record := goqu.Record{}
	setIfPresent(record, colTitle, patch.Title)
	setIfPresent(record, colAuthor, patch.Author)
	setIfPresent(record, colISBN, patch.ISBN)
	setIfPresent(record, colCopiesAvailable, patch.CopiesAvailable)

	return s.updateBook(ctx, id, record)
}

func (s *Store) updateBook(ctx context.Context, id libraryapi.ID, record goqu.Record) (libraryapi.Book, error) {
	sqlQuery, err := s.toSQL(ctx, s.builder().
		Update(s.booksTableName).
		Set(record).
		Where(goqu.C(colID).Eq(id)).
		Returning(bookColumns...))
	if err != nil {
		return libraryapi.Book{}, err
	}

	return scanOne(ctx, s, sqlQuery, scanBook, libraryapi.ErrBookNotFound)
}

// DeleteBook removes the book with the given ID.
//
// The book is only deleted if no borrowed transaction references it, otherwise
// libraryapi.ErrBookCurrentlyBorrowed is returned. Returned transactions of the book
// are kept with their book reference set to NULL.
func (s *Store) DeleteBook(ctx context.Context, id libraryapi.ID) (err error) {
	ctx, observer := s.startObservation(ctx, operationDeleteBook)
	defer func() { observer.finish(err, 1) }()

	builder := s.builder()

	openTransactions := builder.
		From(s.transactionsTableName).
		Select(goqu.L("1")).
		Where(
			goqu.C(colBookID).Eq(id),
			goqu.C(colStatus).Eq(string(libraryapi.StatusBorrowed)),
		)

	sqlQuery, err := s.toSQL(ctx, builder.
		Delete(s.booksTableName).
		Where(
			goqu.C(colID).Eq(id),
			goqu.L("NOT EXISTS ?", openTransactions),
		))
	if err != nil {
		return err
	}

	rowsAffected, err := s.exec(ctx, sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected > 0 {
		return nil
	}

	// Nothing deleted: either the book is missing or it is still out.
	if _, err = s.getBook(ctx, id); err != nil {
		return err
	}

	return libraryapi.ErrBookCurrentlyBorrowed
}

func bookRecord(book libraryapi.Book) goqu.Record {
	return goqu.Record{
		colTitle:           book.Title,
		colAuthor:          book.Author,
		colISBN:            book.ISBN,
		colCopiesAvailable: book.CopiesAvailable,
	}
}
