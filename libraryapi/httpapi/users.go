package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, user)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var in userInput
	if !s.readValidJSON(w, r, &in) {
		return
	}

	var created libraryapi.User
	err := s.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		created, err = s.store.CreateUser(ctx, in.user(0))
		return err
	})
	if err != nil {
		s.writeUserError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, created)
}

// updateUser replaces the user. Optional fields left out of the body keep their value.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var in userInput
	if !s.readValidJSON(w, r, &in) {
		return
	}

	var updated libraryapi.User
	err := s.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		if in.isComplete() {
			updated, err = s.store.UpdateUser(ctx, in.user(id))
		} else {
			updated, err = s.store.PatchUser(ctx, id, in.patch())
		}
		return err
	})
	if err != nil {
		s.writeUserError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, updated)
}

func (s *Server) patchUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var in userPatchInput
	if !s.readValidJSON(w, r, &in) {
		return
	}

	var patched libraryapi.User
	err := s.mutate(r.Context(), func(ctx context.Context) error {
		var err error
		patched, err = s.store.PatchUser(ctx, id, in.patch())
		return err
	})
	if err != nil {
		s.writeUserError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, patched)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	err := s.mutate(r.Context(), func(ctx context.Context) error {
		return s.store.DeleteUser(ctx, id)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeUserError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, libraryapi.ErrDuplicate) {
		s.writeJSON(w, r, http.StatusBadRequest, fieldErrors{"username": {msgUsernameTaken}})
		return
	}

	s.writeError(w, r, err)
}
