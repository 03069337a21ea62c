package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

const (
	msgRequired      = "This field is required."
	msgMaxLength     = "Ensure this field has no more than %s characters."
	msgMaxValue      = "Ensure this value is less than or equal to %s."
	msgNull          = "This field may not be null."
	msgMinValue      = "Ensure this value is greater than or equal to %s."
	msgInvalidEmail  = "Enter a valid email address."
	msgBlank         = "This field may not be blank."
	msgInvalid       = "Invalid value."
	msgInvalidPK     = "Invalid pk \"%d\" - object does not exist."
	tagEmailOrBlank  = "email_or_blank"
	msgUsernameTaken = "A user with that username already exists."
	msgISBNTaken     = "book with this isbn already exists."
)

// fieldErrors is the field error map of a rejected request body.
type fieldErrors map[string][]string

type userInput struct {
	Username  *string `json:"username" validate:"required,min=1,max=150"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Email     *string `json:"email" validate:"omitempty,max=254,email_or_blank"`
}

type userPatchInput struct {
	Username  *string `json:"username" validate:"omitempty,min=1,max=150"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Email     *string `json:"email" validate:"omitempty,max=254,email_or_blank"`
}

type bookInput struct {
	Title           *string `json:"title" validate:"required,min=1,max=200"`
	Author          *string `json:"author" validate:"required,min=1,max=200"`
	ISBN            *string `json:"isbn" validate:"required,min=1,max=20"`
	CopiesAvailable *int    `json:"copies_available" validate:"omitempty,min=0,max=2147483647"`
}

type bookPatchInput struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Author          *string `json:"author" validate:"omitempty,min=1,max=200"`
	ISBN            *string `json:"isbn" validate:"omitempty,min=1,max=20"`
	CopiesAvailable *int    `json:"copies_available" validate:"omitempty,min=0,max=2147483647"`
}

type borrowInput struct {
	User       *libraryapi.ID   `json:"user" validate:"required"`
	Book       *libraryapi.ID   `json:"book" validate:"required"`
	BorrowDate *libraryapi.Date `json:"borrow_date" validate:"required"`
}

type returnInput struct {
	ReturnDate *libraryapi.Date `json:"return_date"`
}

func (in userInput) user(id libraryapi.ID) libraryapi.User {
	return libraryapi.User{
		ID:        id,
		Username:  *in.Username,
		FirstName: valueOrZero(in.FirstName),
		LastName:  valueOrZero(in.LastName),
		Email:     valueOrZero(in.Email),
	}
}

func (in userInput) isComplete() bool {
	return in.FirstName != nil && in.LastName != nil && in.Email != nil
}

func (in userInput) patch() libraryapi.UserPatch {
	return libraryapi.UserPatch{Username: in.Username, FirstName: in.FirstName, LastName: in.LastName, Email: in.Email}
}

func (in userPatchInput) patch() libraryapi.UserPatch {
	return libraryapi.UserPatch(in)
}

func (in bookInput) book(id libraryapi.ID) libraryapi.Book {
	copies := libraryapi.DefaultCopiesAvailable
	if in.CopiesAvailable != nil {
		copies = *in.CopiesAvailable
	}

	return libraryapi.Book{
		ID:              id,
		Title:           *in.Title,
		Author:          *in.Author,
		ISBN:            *in.ISBN,
		CopiesAvailable: copies,
	}
}

func (in bookInput) patch() libraryapi.BookPatch {
	return libraryapi.BookPatch{Title: in.Title, Author: in.Author, ISBN: in.ISBN, CopiesAvailable: in.CopiesAvailable}
}

func (in bookPatchInput) patch() libraryapi.BookPatch {
	return libraryapi.BookPatch(in)
}

func valueOrZero[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}

	return *v
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	// Blank emails are allowed, anything else must be an address.
	_ = validate.RegisterValidation(tagEmailOrBlank, func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || validate.Var(value, "email") == nil
	})

	return validate
}

// validateInput checks in against its validate tags and renders violations as field errors.
func (s *Server) validateInput(in any) (fieldErrors, error) {
	err := s.validate.Struct(in)
	if err == nil {
		return nil, nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, err
	}

	result := fieldErrors{}
	for _, fieldErr := range validationErrors {
		result[fieldErr.Field()] = append(result[fieldErr.Field()], validationMessage(fieldErr))
	}

	return result, nil
}

func validationMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return msgRequired
	case "max":
		if fieldErr.Kind() == reflect.String {
			return fmt.Sprintf(msgMaxLength, fieldErr.Param())
		}
		return fmt.Sprintf(msgMaxValue, fieldErr.Param())
	case "min":
		if fieldErr.Kind() == reflect.String {
			return msgBlank
		}
		return fmt.Sprintf(msgMinValue, fieldErr.Param())
	case tagEmailOrBlank:
		return msgInvalidEmail
	default:
		return msgInvalid
	}
}

// nullFields returns the JSON names of the fields of in that payload sets to an explicit null.
func nullFields(payload []byte, in any) []string {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil
	}

	structType := reflect.TypeOf(in)
	for structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	if structType.Kind() != reflect.Struct {
		return nil
	}

	var fields []string
	for i := range structType.NumField() {
		field := structType.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}

		value, ok := raw[name]
		if !ok {
			continue
		}

		// The codec may decode a null into an empty raw message.
		if trimmed := bytes.TrimSpace(value); len(trimmed) == 0 || string(trimmed) == "null" {
			fields = append(fields, name)
		}
	}

	return fields
}
