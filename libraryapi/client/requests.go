package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

const (
	routeUsers        = "/users/"
	routeUser         = "/users/{id}/"
	routeBooks        = "/books/"
	routeBook         = "/books/{id}/"
	routeTransactions = "/transactions/"
	routeBorrow       = "/borrow/"
	routeReturn       = "/return/{id}/"
)

func userPath(id libraryapi.ID) string {
	return fmt.Sprintf("/users/%d/", id)
}

func bookPath(id libraryapi.ID) string {
	return fmt.Sprintf("/books/%d/", id)
}

func returnPath(id libraryapi.ID) string {
	return fmt.Sprintf("/return/%d/", id)
}

// FetchUsers issues GET /users/.
func (c *Client) FetchUsers(ctx context.Context) (*Response, error) {
	return c.Do(ctx, http.MethodGet, routeUsers, routeUsers, nil)
}

// FetchBooks issues GET /books/.
func (c *Client) FetchBooks(ctx context.Context) (*Response, error) {
	return c.Do(ctx, http.MethodGet, routeBooks, routeBooks, nil)
}

// CreateBook issues POST /books/ with data as the body.
func (c *Client) CreateBook(ctx context.Context, data any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, routeBooks, routeBooks, data)
}

// UpdateBook issues PUT /books/{id}/ with data as the body.
func (c *Client) UpdateBook(ctx context.Context, id libraryapi.ID, data any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, routeBook, bookPath(id), data)
}

// DeleteBook issues DELETE /books/{id}/.
func (c *Client) DeleteBook(ctx context.Context, id libraryapi.ID) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, routeBook, bookPath(id), nil)
}

// FetchTransactions issues GET /transactions/.
func (c *Client) FetchTransactions(ctx context.Context) (*Response, error) {
	return c.Do(ctx, http.MethodGet, routeTransactions, routeTransactions, nil)
}

// BorrowBook issues POST /borrow/ with data as the body.
func (c *Client) BorrowBook(ctx context.Context, data any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, routeBorrow, routeBorrow, data)
}

// ReturnBook issues POST /return/{id}/ with data as the body.
func (c *Client) ReturnBook(ctx context.Context, id libraryapi.ID, data any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, routeReturn, returnPath(id), data)
}

// FetchUser issues GET /users/{id}/.
func (c *Client) FetchUser(ctx context.Context, id libraryapi.ID) (*Response, error) {
	return c.Do(ctx, http.MethodGet, routeUser, userPath(id), nil)
}

// CreateUser issues POST /users/ with data as the body.
func (c *Client) CreateUser(ctx context.Context, data any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, routeUsers, routeUsers, data)
}

// UpdateUser issues PUT /users/{id}/ with data as the body.
func (c *Client) UpdateUser(ctx context.Context, id libraryapi.ID, data any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, routeUser, userPath(id), data)
}

// DeleteUser issues DELETE /users/{id}/.
func (c *Client) DeleteUser(ctx context.Context, id libraryapi.ID) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, routeUser, userPath(id), nil)
}

// FetchBook issues GET /books/{id}/.
func (c *Client) FetchBook(ctx context.Context, id libraryapi.ID) (*Response, error) {
	return c.Do(ctx, http.MethodGet, routeBook, bookPath(id), nil)
}

// PatchBook issues PATCH /books/{id}/ with the partial data as the body.
func (c *Client) PatchBook(ctx context.Context, id libraryapi.ID, data any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, routeBook, bookPath(id), data)
}
