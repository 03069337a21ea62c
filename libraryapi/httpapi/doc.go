// Package httpapi serves the library circulation REST API over a Store.
//
// Routes are registered under a prefix (default "/api") and use the conventions the client
// expects: trailing slashes, JSON bodies, 201 on create and borrow,
// 204 on delete, 400 with {"detail": "..."} or a field error map for rejected input,
// and 404 with {"detail": "Not found."} for unknown IDs.
//
//	GET, POST                 /users/
//	GET, PUT, PATCH, DELETE   /users/{id}/
//	GET, POST                 /books/
//	GET, PUT, PATCH, DELETE   /books/{id}/
//	GET                       /transactions/
//	GET, POST                 /borrow/
//	GET, POST                 /return/{id}/
//
// Mutations are retried with exponential backoff when the store reports a transient
// database failure. Every request gets an X-Request-ID header and, when configured,
// a tracing span, duration and counter metrics, and a log record.
package httpapi
