// Package libraryapi provides the core types shared by the library circulation client and backend.
//
// It defines the resources exchanged over the wire (users, books and borrow transactions),
// the sentinel errors used to classify failures, and the dependency-free observability
// interfaces that the client, the Postgres store and the HTTP API accept as options.
//
// Key types:
//   - User, Book, BorrowTransaction: the resources served under /api
//   - BorrowRequest, ReturnRequest: the payloads of the borrow and return operations
//   - Date: a calendar date encoded as "YYYY-MM-DD"
//
// Common usage pattern:
//
//	c := client.New()
//	resp, err := c.FetchBooks(ctx)
//	if err != nil {
//		// transport failure, surfaced unchanged
//	}
//
//	var books []libraryapi.Book
//	if err := resp.Decode(&books); err != nil {
//		// handle error
//	}
package libraryapi
