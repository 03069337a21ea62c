package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.store.ListTransactions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, transactions)
}

func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	var in borrowInput
	if !s.readValidJSON(w, r, &in) {
		return
	}

	req := libraryapi.BorrowRequest{User: *in.User, Book: *in.Book, BorrowDate: *in.BorrowDate}

	var borrowed libraryapi.BorrowTransaction
	err := s.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		borrowed, err = s.store.Borrow(ctx, req)
		return err
	})

	switch {
	case err == nil:
		s.writeJSON(w, r, http.StatusCreated, borrowed)

	// Unknown references are input errors of the borrow form, not missing resources.
	case errors.Is(err, libraryapi.ErrUserNotFound):
		s.writeJSON(w, r, http.StatusBadRequest, fieldErrors{"user": {fmt.Sprintf(msgInvalidPK, req.User)}})

	case errors.Is(err, libraryapi.ErrBookNotFound):
		s.writeJSON(w, r, http.StatusBadRequest, fieldErrors{"book": {fmt.Sprintf(msgInvalidPK, req.Book)}})

	default:
		s.writeError(w, r, err)
	}
}

// returnBook closes the transaction. A missing return_date means today.
func (s *Server) returnBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var in returnInput
	if !s.readJSON(w, r, &in) {
		return
	}

	var returnDate libraryapi.Date
	if in.ReturnDate != nil {
		returnDate = *in.ReturnDate
	}

	var returned libraryapi.BorrowTransaction
	err := s.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		returned, err = s.store.Return(ctx, id, returnDate)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, returned)
}
