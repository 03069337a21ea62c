package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.ListBooks(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, books)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	book, err := s.store.GetBook(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, book)
}

func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var in bookInput
	if !s.readValidJSON(w, r, &in) {
		return
	}

	var created libraryapi.Book
	err := s.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		created, err = s.store.CreateBook(ctx, in.book(0))
		return err
	})
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, created)
}

// updateBook replaces the book. Without copies_available in the body the count is kept.
func (s *Server) updateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var in bookInput
	if !s.readValidJSON(w, r, &in) {
		return
	}

	var updated libraryapi.Book
	err := s.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		if in.CopiesAvailable != nil {
			updated, err = s.store.UpdateBook(ctx, in.book(id))
		} else {
			updated, err = s.store.PatchBook(ctx, id, in.patch())
		}
		return err
	})
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, updated)
}

func (s *Server) patchBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var in bookPatchInput
	if !s.readValidJSON(w, r, &in) {
		return
	}

	var patched libraryapi.Book
	err := s.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		patched, err = s.store.PatchBook(ctx, id, in.patch())
		return err
	})
	if err != nil {
		s.writeBookError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, patched)
}

func (s *Server) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	err := s.mutate(r.Context(), func(ctx context.Context) error {
		return s.store.DeleteBook(ctx, id)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeBookError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, libraryapi.ErrDuplicate) {
		s.writeJSON(w, r, http.StatusBadRequest, fieldErrors{"isbn": {msgISBNTaken}})
		return
	}

	s.writeError(w, r, err)
}
