package postgresengine

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/postgresengine/internal/adapters"
)

const (
	operationListUsers  = "list_users"
	operationGetUser    = "get_user"
	operationCreateUser = "create_user"
	operationUpdateUser = "update_user"
	operationPatchUser  = "patch_user"
	operationDeleteUser = "delete_user"
)

var userColumns = []any{colID, colUsername, colFirstName, colLastName, colEmail}

func scanUser(rows adapters.DBRows) (libraryapi.User, error) {
	var u libraryapi.User
	err := rows.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email)

	return u, err
}

// ListUsers returns all users ordered by username.
func (s *Store) ListUsers(ctx context.Context) (users []libraryapi.User, err error) {
	ctx, observer := s.startObservation(ctx, operationListUsers)
	defer func() { observer.finish(err, len(users)) }()

	sqlQuery, err := s.toSQL(ctx, s.builder().
		From(s.usersTableName).
		Select(userColumns...).
		Order(goqu.I(colUsername).Asc(), goqu.I(colID).Asc()))
	if err != nil {
		return nil, err
	}

	return scanAll(ctx, s, sqlQuery, scanUser)
}

// GetUser returns the user with the given ID or libraryapi.ErrUserNotFound.
func (s *Store) GetUser(ctx context.Context, id libraryapi.ID) (user libraryapi.User, err error) {
	ctx, observer := s.startObservation(ctx, operationGetUser)
	defer func() { observer.finish(err, 1) }()

	return s.getUser(ctx, id)
}

func (s *Store) getUser(ctx context.Context, id libraryapi.ID) (libraryapi.User, error) {
	sqlQuery, err := s.toSQL(ctx, s.builder().
		From(s.usersTableName).
		Select(userColumns...).
		Where(goqu.C(colID).Eq(id)))
	if err != nil {
		return libraryapi.User{}, err
	}

	return scanOne(ctx, s, sqlQuery, scanUser, libraryapi.ErrUserNotFound)
}

// CreateUser inserts a user and returns it with its assigned ID.
// A taken username yields libraryapi.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user libraryapi.User) (created libraryapi.User, err error) {
	ctx, observer := s.startObservation(ctx, operationCreateUser)
	defer func() { observer.finish(err, 1) }()

	sqlQuery, err := s.toSQL(ctx, s.builder().
		Insert(s.usersTableName).
		Rows(userRecord(user)).
		Returning(userColumns...))
	if err != nil {
		return libraryapi.User{}, err
	}

	return scanOne(ctx, s, sqlQuery, scanUser, libraryapi.ErrQueryingFailed)
}

// UpdateUser replaces all fields of the user identified by user.ID.
func (s *Store) UpdateUser(ctx context.Context, user libraryapi.User) (updated libraryapi.User, err error) {
	ctx, observer := s.startObservation(ctx, operationUpdateUser)
	defer func() { observer.finish(err, 1) }()

	return s.updateUser(ctx, user.ID, userRecord(user))
}

// PatchUser changes the non-nil fields of patch on the user with the given ID.
func (s *Store) PatchUser(ctx context.Context, id libraryapi.ID, patch libraryapi.UserPatch) (patched libraryapi.User, err error) {
	ctx, observer := s.startObservation(ctx, operationPatchUser)
	defer func() { observer.finish(err, 1) }()

	if patch.IsEmpty() {
		return s.getUser(ctx, id)
	}

	record := goqu.Record{}
	setIfPresent(record, colUsername, patch.Username)
	setIfPresent(record, colFirstName, patch.FirstName)
	setIfPresent(record, colLastName, patch.LastName)
	setIfPresent(record, colEmail, patch.Email)

	return s.updateUser(ctx, id, record)
}

func (s *Store) updateUser(ctx context.Context, id libraryapi.ID, record goqu.Record) (libraryapi.User, error) {
	sqlQuery, err := s.toSQL(ctx, s.builder().
		Update(s.usersTableName).
		Set(record).
		Where(goqu.C(colID).Eq(id)).
		Returning(userColumns...))
	if err != nil {
		return libraryapi.User{}, err
	}

	return scanOne(ctx, s, sqlQuery, scanUser, libraryapi.ErrUserNotFound)
}

// DeleteUser removes the user with the given ID together with its borrow transactions.
func (s *Store) DeleteUser(ctx context.Context, id libraryapi.ID) (err error) {
	ctx, observer := s.startObservation(ctx, operationDeleteUser)
	defer func() { observer.finish(err, 1) }()

	sqlQuery, err := s.toSQL(ctx, s.builder().
		Delete(s.usersTableName).
		Where(goqu.C(colID).Eq(id)))
	if err != nil {
		return err
	}

	rowsAffected, err := s.exec(ctx, sqlQuery)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return libraryapi.ErrUserNotFound
	}

	return nil
}

func userRecord(user libraryapi.User) goqu.Record {
	return goqu.Record{
		colUsername:  user.Username,
		colFirstName: user.FirstName,
		colLastName:  user.LastName,
		colEmail:     user.Email,
	}
}

func setIfPresent[T any](record goqu.Record, column string, value *T) {
	if value != nil {
		record[column] = *value
	}
}
