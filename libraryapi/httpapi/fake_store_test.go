package httpapi_test

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

// fakeStore is an in-memory Store with the same rules as the PostgreSQL store.
type fakeStore struct {
	mu           sync.Mutex
	nextID       libraryapi.ID
	users        map[libraryapi.ID]libraryapi.User
	books        map[libraryapi.ID]libraryapi.Book
	transactions map[libraryapi.ID]libraryapi.BorrowTransaction
	failures     []error
	calls        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        map[libraryapi.ID]libraryapi.User{},
		books:        map[libraryapi.ID]libraryapi.Book{},
		transactions: map[libraryapi.ID]libraryapi.BorrowTransaction{},
	}
}

// failWith makes the next mutations fail with errs, one per call.
func (f *fakeStore) failWith(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures = append(f.failures, errs...)
}

func (f *fakeStore) mutationCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// begin locks the store and pops a scripted failure, if any.
func (f *fakeStore) begin() error {
	f.mu.Lock()
	f.calls++

	if len(f.failures) == 0 {
		return nil
	}

	err := f.failures[0]
	f.failures = f.failures[1:]

	return err
}

func (f *fakeStore) id() libraryapi.ID {
	f.nextID++
	return f.nextID
}

func sortedValues[T any](m map[libraryapi.ID]T, compare func(a, b T) int) []T {
	values := make([]T, 0, len(m))
	for _, v := range m {
		values = append(values, v)
	}

	slices.SortFunc(values, compare)

	return values
}

func (f *fakeStore) ListUsers(_ context.Context) ([]libraryapi.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return sortedValues(f.users, func(a, b libraryapi.User) int { return cmp.Compare(a.Username, b.Username) }), nil
}

func (f *fakeStore) GetUser(_ context.Context, id libraryapi.ID) (libraryapi.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return libraryapi.User{}, libraryapi.ErrUserNotFound
	}

	return user, nil
}

func (f *fakeStore) usernameTaken(username string, except libraryapi.ID) bool {
	for _, u := range f.users {
		if u.Username == username && u.ID != except {
			return true
		}
	}

	return false
}

func (f *fakeStore) CreateUser(_ context.Context, user libraryapi.User) (libraryapi.User, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return libraryapi.User{}, err
	}

	if f.usernameTaken(user.Username, 0) {
		return libraryapi.User{}, libraryapi.ErrDuplicate
	}

	user.ID = f.id()
	f.users[user.ID] = user

	return user, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, user libraryapi.User) (libraryapi.User, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return libraryapi.User{}, err
	}

	if _, ok := f.users[user.ID]; !ok {
		return libraryapi.User{}, libraryapi.ErrUserNotFound
	}

	if f.usernameTaken(user.Username, user.ID) {
		return libraryapi.User{}, libraryapi.ErrDuplicate
	}

	f.users[user.ID] = user

	return user, nil
}

func (f *fakeStore) PatchUser(_ context.Context, id libraryapi.ID, patch libraryapi.UserPatch) (libraryapi.User, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return libraryapi.User{}, err
	}

	user, ok := f.users[id]
	if !ok {
		return libraryapi.User{}, libraryapi.ErrUserNotFound
	}

	if patch.Username != nil {
		if f.usernameTaken(*patch.Username, id) {
			return libraryapi.User{}, libraryapi.ErrDuplicate
		}
		user.Username = *patch.Username
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}

	f.users[id] = user

	return user, nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id libraryapi.ID) error {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return err
	}

	if _, ok := f.users[id]; !ok {
		return libraryapi.ErrUserNotFound
	}

	delete(f.users, id)

	for txID, tx := range f.transactions {
		if tx.User == id {
			delete(f.transactions, txID)
		}
	}

	return nil
}

func (f *fakeStore) ListBooks(_ context.Context) ([]libraryapi.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return sortedValues(f.books, func(a, b libraryapi.Book) int { return cmp.Compare(a.Title, b.Title) }), nil
}

func (f *fakeStore) GetBook(_ context.Context, id libraryapi.ID) (libraryapi.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	book, ok := f.books[id]
	if !ok {
		return libraryapi.Book{}, libraryapi.ErrBookNotFound
	}

	return book, nil
}

func (f *fakeStore) isbnTaken(isbn string, except libraryapi.ID) bool {
	for _, b := range f.books {
		if b.ISBN == isbn && b.ID != except {
			return true
		}
	}

	return false
}

func (f *fakeStore) CreateBook(_ context.Context, book libraryapi.Book) (libraryapi.Book, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return libraryapi.Book{}, err
	}

	if f.isbnTaken(book.ISBN, 0) {
		return libraryapi.Book{}, libraryapi.ErrDuplicate
	}

	book.ID = f.id()
	f.books[book.ID] = book

	return book, nil
}

func (f *fakeStore) UpdateBook(_ context.Context, book libraryapi.Book) (libraryapi.Book, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return libraryapi.Book{}, err
	}

	if _, ok := f.books[book.ID]; !ok {
		return libraryapi.Book{}, libraryapi.ErrBookNotFound
	}

	if f.isbnTaken(book.ISBN, book.ID) {
		return libraryapi.Book{}, libraryapi.ErrDuplicate
	}

	f.books[book.ID] = book

	return book, nil
}

func (f *fakeStore) PatchBook(_ context.Context, id libraryapi.ID, patch libraryapi.BookPatch) (libraryapi.Book, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return libraryapi.Book{}, err
	}

	book, ok := f.books[id]
	if !ok {
		return libraryapi.Book{}, libraryapi.ErrBookNotFound
	}

	if patch.ISBN != nil {
		if f.isbnTaken(*patch.ISBN, id) {
			return libraryapi.Book{}, libraryapi.ErrDuplicate
		}
		book.ISBN = *patch.ISBN
	}
	if patch.Title != nil {
		book.Title = *patch.Title
	}
	if patch.Author != nil {
		book.Author = *patch.Author
	}
	if patch.CopiesAvailable != nil {
		book.CopiesAvailable = *patch.CopiesAvailable
	}

	f.books[id] = book

	return book, nil
}

func (f *fakeStore) DeleteBook(_ context.Context, id libraryapi.ID) error {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return err
	}

	if _, ok := f.books[id]; !ok {
		return libraryapi.ErrBookNotFound
	}

	for _, tx := range f.transactions {
		if tx.Book != nil && *tx.Book == id && tx.Status == libraryapi.StatusBorrowed {
			return libraryapi.ErrBookCurrentlyBorrowed
		}
	}

	delete(f.books, id)

	for txID, tx := range f.transactions {
		if tx.Book != nil && *tx.Book == id {
			tx.Book = nil
			f.transactions[txID] = tx
		}
	}

	return nil
}

func (f *fakeStore) ListTransactions(_ context.Context) ([]libraryapi.BorrowTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return sortedValues(f.transactions, func(a, b libraryapi.BorrowTransaction) int { return cmp.Compare(b.ID, a.ID) }), nil
}

func (f *fakeStore) Borrow(_ context.Context, req libraryapi.BorrowRequest) (libraryapi.BorrowTransaction, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return libraryapi.BorrowTransaction{}, err
	}

	if _, ok := f.users[req.User]; !ok {
		return libraryapi.BorrowTransaction{}, libraryapi.ErrUserNotFound
	}

	book, ok := f.books[req.Book]
	if !ok {
		return libraryapi.BorrowTransaction{}, libraryapi.ErrBookNotFound
	}

	if book.CopiesAvailable < 1 {
		return libraryapi.BorrowTransaction{}, libraryapi.ErrNoCopiesAvailable
	}

	book.CopiesAvailable--
	f.books[book.ID] = book

	bookID := book.ID
	tx := libraryapi.BorrowTransaction{
		ID:         f.id(),
		User:       req.User,
		Book:       &bookID,
		BorrowDate: req.BorrowDate,
		Status:     libraryapi.StatusBorrowed,
	}
	f.transactions[tx.ID] = tx

	return tx, nil
}

func (f *fakeStore) Return(_ context.Context, id libraryapi.ID, returnDate libraryapi.Date) (libraryapi.BorrowTransaction, error) {
	err := f.begin()
	defer f.mu.Unlock()
	if err != nil {
		return libraryapi.BorrowTransaction{}, err
	}

	tx, ok := f.transactions[id]
	if !ok {
		return libraryapi.BorrowTransaction{}, libraryapi.ErrTransactionNotFound
	}

	if tx.IsReturned() {
		return libraryapi.BorrowTransaction{}, libraryapi.ErrAlreadyReturned
	}

	if returnDate.IsZero() {
		returnDate = libraryapi.NewDate(2024, 5, 3)
	}

	tx.Status = libraryapi.StatusReturned
	tx.ReturnDate = &returnDate
	f.transactions[id] = tx

	if tx.Book != nil {
		if book, ok := f.books[*tx.Book]; ok {
			book.CopiesAvailable++
			f.books[book.ID] = book
		}
	}

	return tx, nil
}
