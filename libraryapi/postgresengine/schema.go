package postgresengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

const (
	operationCreateSchema = "create_schema"
	operationDropSchema   = "drop_schema"
)

// schemaStatements returns the DDL for the three tables, using the configured table names.
func (s *Store) schemaStatements() []string {
	users := pgx.Identifier{s.usersTableName}.Sanitize()
	books := pgx.Identifier{s.booksTableName}.Sanitize()
	transactions := pgx.Identifier{s.transactionsTableName}.Sanitize()
	openIndex := pgx.Identifier{s.transactionsTableName + "_open_by_book_idx"}.Sanitize()

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id         BIGSERIAL PRIMARY KEY,
	username   VARCHAR(150) NOT NULL UNIQUE,
	first_name VARCHAR(150) NOT NULL DEFAULT '',
	last_name  VARCHAR(150) NOT NULL DEFAULT '',
	email      VARCHAR(254) NOT NULL DEFAULT ''
)`, users),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id               BIGSERIAL PRIMARY KEY,
	title            VARCHAR(200) NOT NULL,
	author           VARCHAR(200) NOT NULL,
	isbn             VARCHAR(20) NOT NULL UNIQUE,
	copies_available INTEGER NOT NULL DEFAULT %d CHECK (copies_available >= 0)
)`, books, libraryapi.DefaultCopiesAvailable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          BIGSERIAL PRIMARY KEY,
	user_id     BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
	book_id     BIGINT NULL REFERENCES %s (id) ON DELETE SET NULL,
	borrow_date DATE NOT NULL,
	return_date DATE NULL,
	status      VARCHAR(10) NOT NULL DEFAULT '%s' CHECK (status IN ('%s', '%s'))
)`, transactions, users, books, libraryapi.StatusBorrowed, libraryapi.StatusBorrowed, libraryapi.StatusReturned),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (book_id) WHERE status = '%s'`,
			openIndex, transactions, libraryapi.StatusBorrowed),
	}
}

// CreateSchema creates the users, books and borrow transactions tables if they do not exist.
func (s *Store) CreateSchema(ctx context.Context) (err error) {
	ctx, observer := s.startObservation(ctx, operationCreateSchema)
	defer func() { observer.finish(err, 0) }()

	for _, statement := range s.schemaStatements() {
		if _, execErr := s.exec(ctx, statement); execErr != nil {
			return errors.Join(libraryapi.ErrCreatingSchemaFailed, execErr)
		}
	}

	return nil
}

// DropSchema drops the three tables with all their data.
func (s *Store) DropSchema(ctx context.Context) (err error) {
	ctx, observer := s.startObservation(ctx, operationDropSchema)
	defer func() { observer.finish(err, 0) }()

	statement := fmt.Sprintf("DROP TABLE IF EXISTS %s, %s, %s",
		pgx.Identifier{s.transactionsTableName}.Sanitize(),
		pgx.Identifier{s.booksTableName}.Sanitize(),
		pgx.Identifier{s.usersTableName}.Sanitize(),
	)

	if _, execErr := s.exec(ctx, statement); execErr != nil {
		return errors.Join(libraryapi.ErrDroppingSchemaFailed, execErr)
	}

	return nil
}
