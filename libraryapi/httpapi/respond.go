package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

const (
	contentTypeHeader    = "Content-Type"
	contentTypeJSON      = "application/json"
	detailNotFound       = "Not found."
	detailNoCopies       = "No copies available."
	detailAlreadyReturn  = "Already returned."
	detailServerError    = "A server error occurred."
	detailParseError     = "JSON parse error - %s"
	messageBookBorrowed  = "Cannot delete a book that is currently borrowed."
	logMsgEncodingFailed = "encoding response body failed"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errInvalidID = errors.New("invalid id")

type detailBody struct {
	Detail string `json:"detail"`
}

type messageBody struct {
	Message string `json:"message"`
}

// writeJSON encodes body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		s.logRequestError(r, logMsgEncodingFailed, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set(contentTypeHeader, contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// readJSON decodes the request body into v and answers 400 itself if that fails.
func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	_, ok := s.readPayload(w, r, v)
	return ok
}

// readPayload decodes the request body into v, returns the raw body and answers 400 itself if that fails.
func (s *Server) readPayload(w http.ResponseWriter, r *http.Request, v any) ([]byte, bool) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, detailBody{Detail: fmt.Sprintf(detailParseError, err.Error())})
		return nil, false
	}

	if len(payload) == 0 {
		payload = []byte("{}")
	}

	if err := json.Unmarshal(payload, v); err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, detailBody{Detail: fmt.Sprintf(detailParseError, err.Error())})
		return nil, false
	}

	return payload, true
}

// readValidJSON decodes and validates the request body and answers 400 itself on failure.
// None of the validated fields accepts an explicit null.
func (s *Server) readValidJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	payload, ok := s.readPayload(w, r, v)
	if !ok {
		return false
	}

	violations, err := s.validateInput(v)
	if err != nil {
		s.writeError(w, r, err)
		return false
	}

	for _, field := range nullFields(payload, v) {
		if violations == nil {
			violations = fieldErrors{}
		}

		violations[field] = []string{msgNull}
	}

	if len(violations) > 0 {
		s.writeJSON(w, r, http.StatusBadRequest, violations)
		return false
	}

	return true
}

// pathID parses the {id} path value and answers 404 itself for non-numeric or negative IDs.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (libraryapi.ID, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		s.writeError(w, r, errors.Join(errInvalidID, err))
		return 0, false
	}

	return id, true
}

// writeError maps an error to its status code and body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errInvalidID),
		errors.Is(err, libraryapi.ErrUserNotFound),
		errors.Is(err, libraryapi.ErrBookNotFound),
		errors.Is(err, libraryapi.ErrTransactionNotFound):
		s.writeJSON(w, r, http.StatusNotFound, detailBody{Detail: detailNotFound})

	case errors.Is(err, libraryapi.ErrNoCopiesAvailable):
		s.writeJSON(w, r, http.StatusBadRequest, detailBody{Detail: detailNoCopies})

	case errors.Is(err, libraryapi.ErrAlreadyReturned):
		s.writeJSON(w, r, http.StatusBadRequest, detailBody{Detail: detailAlreadyReturn})

	case errors.Is(err, libraryapi.ErrBookCurrentlyBorrowed):
		s.writeJSON(w, r, http.StatusBadRequest, messageBody{Message: messageBookBorrowed})

	case errors.Is(err, libraryapi.ErrInvalidReference):
		s.writeJSON(w, r, http.StatusBadRequest, detailBody{Detail: libraryapi.ErrInvalidReference.Error()})

	case errors.Is(err, libraryapi.ErrDuplicate):
		s.writeJSON(w, r, http.StatusBadRequest, detailBody{Detail: libraryapi.ErrDuplicate.Error()})

	default:
		s.logRequestError(r, detailServerError, err)
		s.writeJSON(w, r, http.StatusInternalServerError, detailBody{Detail: detailServerError})
	}
}
