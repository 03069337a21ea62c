package libraryapi

// ID identifies a user, a book or a borrow transaction.
type ID = int64

// TransactionStatus is the lifecycle state of a BorrowTransaction.
type TransactionStatus string

const (
	// StatusBorrowed marks a transaction whose book copy is still out.
	StatusBorrowed TransactionStatus = "borrowed"

	// StatusReturned marks a transaction whose book copy came back.
	StatusReturned TransactionStatus = "returned"
)

// DefaultCopiesAvailable is applied when a book is created without a copy count.
const DefaultCopiesAvailable = 1

// User is a library member who can borrow books.
type User struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// Book is a title in circulation together with its number of copies on the shelf.
type Book struct {
	ID              ID     `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	CopiesAvailable int    `json:"copies_available"`
}

// BorrowTransaction records one copy of a book lent to a user.
//
// Book is nil once the book was deleted; the transaction stays as an orphan.
// ReturnDate is nil while the transaction is borrowed.
type BorrowTransaction struct {
	ID         ID                `json:"id"`
	User       ID                `json:"user"`
	Book       *ID               `json:"book"`
	BorrowDate Date              `json:"borrow_date"`
	ReturnDate *Date             `json:"return_date"`
	Status     TransactionStatus `json:"status"`
}

// IsReturned reports whether the transaction is closed.
func (t BorrowTransaction) IsReturned() bool {
	return t.Status == StatusReturned
}

// BorrowRequest is the payload of the borrow operation.
type BorrowRequest struct {
	User       ID   `json:"user"`
	Book       ID   `json:"book"`
	BorrowDate Date `json:"borrow_date"`
}

// ReturnRequest is the payload of the return operation.
type ReturnRequest struct {
	ReturnDate *Date `json:"return_date,omitempty"`
}

// UserPatch carries the fields of a partial user update. Nil fields stay unchanged.
type UserPatch struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.Username == nil && p.FirstName == nil && p.LastName == nil && p.Email == nil
}

// BookPatch carries the fields of a partial book update. Nil fields stay unchanged.
type BookPatch struct {
	Title           *string `json:"title,omitempty"`
	Author          *string `json:"author,omitempty"`
	ISBN            *string `json:"isbn,omitempty"`
	CopiesAvailable *int    `json:"copies_available,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p BookPatch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.ISBN == nil && p.CopiesAvailable == nil
}
