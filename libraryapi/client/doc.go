// Package client provides thin HTTP request wrappers for the library circulation API.
//
// Each wrapper forwards its arguments to a single HTTP call with a fixed method and path
// template, relative to a configured base address (DefaultBaseURL unless overridden).
// All requests are marked as JSON payloads. Responses are returned as they arrive:
// the status code, the headers, and the raw body. Transport failures of the underlying
// *http.Client are returned unchanged; the wrappers neither retry nor translate errors.
//
// Usage examples:
//
//	c, _ := client.New()
//	resp, err := c.UpdateBook(ctx, 42, libraryapi.Book{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593"})
//	if err != nil {
//		// the error returned by (*http.Client).Do
//	}
//
//	// opt in to rejecting non-2xx responses
//	if err := resp.Err(); err != nil {
//		// *client.ResponseError
//	}
//
//	// with a custom origin and observability
//	c, _ := client.New(
//		client.WithBaseURL("http://library.internal:8000/api"),
//		client.WithContextualLogger(logger),
//		client.WithMetrics(collector),
//	)
package client
