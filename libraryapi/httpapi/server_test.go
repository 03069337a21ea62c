package httpapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/client"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/httpapi"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/retry"
	"github.com/AntonStoeckl/library-circulation-api/testutil/spies"
)

var dateComparer = cmp.Comparer(func(a, b libraryapi.Date) bool { return a.String() == b.String() })

func givenServer(t *testing.T, store httpapi.Store, options ...httpapi.Option) (*client.Client, *httptest.Server) {
	t.Helper()

	allOptions := append([]httpapi.Option{httpapi.WithRetryOptions(retry.WithBaseDelay(0))}, options...)
	server, err := httpapi.NewServer(store, allOptions...)
	require.NoError(t, err, "creating the server failed")

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	c, err := client.New(client.WithBaseURL(ts.URL+httpapi.DefaultPrefix), client.WithHTTPClient(ts.Client()))
	require.NoError(t, err, "creating the client failed")

	return c, ts
}

func givenUser(t *testing.T, c *client.Client, username string) libraryapi.User {
	t.Helper()

	resp, err := c.CreateUser(context.Background(), map[string]any{"username": username})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.Body))

	var user libraryapi.User
	require.NoError(t, resp.Decode(&user))

	return user
}

func givenBook(t *testing.T, c *client.Client, title, isbn string, copies int) libraryapi.Book {
	t.Helper()

	resp, err := c.CreateBook(context.Background(), map[string]any{
		"title":            title,
		"author":           "Jane Austen",
		"isbn":             isbn,
		"copies_available": copies,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.Body))

	var book libraryapi.Book
	require.NoError(t, resp.Decode(&book))

	return book
}

func decode[T any](t *testing.T, resp *client.Response) T {
	t.Helper()

	var v T
	require.NoError(t, resp.Decode(&v), string(resp.Body))

	return v
}

func Test_NewServer_Fails_With_InvalidConfiguration(t *testing.T) {
	_, errNilStore := httpapi.NewServer(nil)
	_, errPrefix := httpapi.NewServer(newFakeStore(), httpapi.WithPrefix("api"))

	assert.ErrorIs(t, errNilStore, httpapi.ErrNilStore)
	assert.ErrorIs(t, errPrefix, httpapi.ErrInvalidPrefix)
}

func Test_Server_Serves_BorrowAndReturnCycle(t *testing.T) {
	// arrange
	ctx := context.Background()
	c, _ := givenServer(t, newFakeStore())
	user := givenUser(t, c, "lizzy")
	book := givenBook(t, c, "Emma", "9780141439587", 1)

	// act
	borrowResp, err := c.BorrowBook(ctx, map[string]any{"user": user.ID, "book": book.ID, "borrow_date": "2024-05-01"})
	require.NoError(t, err)
	secondBorrowResp, err := c.BorrowBook(ctx, map[string]any{"user": user.ID, "book": book.ID, "borrow_date": "2024-05-01"})
	require.NoError(t, err)
	borrowed := decode[libraryapi.BorrowTransaction](t, borrowResp)
	returnResp, err := c.ReturnBook(ctx, borrowed.ID, map[string]any{"return_date": "2024-05-02"})
	require.NoError(t, err)
	secondReturnResp, err := c.ReturnBook(ctx, borrowed.ID, map[string]any{"return_date": "2024-05-02"})
	require.NoError(t, err)
	booksResp, err := c.FetchBooks(ctx)
	require.NoError(t, err)

	// assert
	assert.Equal(t, http.StatusCreated, borrowResp.StatusCode)
	bookID := book.ID
	expectedBorrowed := libraryapi.BorrowTransaction{
		ID:         borrowed.ID,
		User:       user.ID,
		Book:       &bookID,
		BorrowDate: libraryapi.NewDate(2024, time.May, 1),
		Status:     libraryapi.StatusBorrowed,
	}
	assert.Empty(t, cmp.Diff(expectedBorrowed, borrowed, dateComparer))
	assert.JSONEq(t, `{"detail": "No copies available."}`, string(secondBorrowResp.Body))
	assert.Equal(t, http.StatusBadRequest, secondBorrowResp.StatusCode)

	assert.Equal(t, http.StatusOK, returnResp.StatusCode)
	returned := decode[libraryapi.BorrowTransaction](t, returnResp)
	assert.Equal(t, libraryapi.StatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.Equal(t, "2024-05-02", returned.ReturnDate.String())

	assert.Equal(t, http.StatusBadRequest, secondReturnResp.StatusCode)
	assert.JSONEq(t, `{"detail": "Already returned."}`, string(secondReturnResp.Body))

	books := decode[[]libraryapi.Book](t, booksResp)
	require.Len(t, books, 1)
	assert.Equal(t, 1, books[0].CopiesAvailable)
}

func Test_Server_Lists_InStoreOrder(t *testing.T) {
	// arrange
	ctx := context.Background()
	c, _ := givenServer(t, newFakeStore())
	givenUser(t, c, "wick")
	givenUser(t, c, "darcy")
	givenBook(t, c, "Persuasion", "1", 1)
	givenBook(t, c, "Emma", "2", 1)

	// act
	usersResp, err := c.FetchUsers(ctx)
	require.NoError(t, err)
	booksResp, err := c.FetchBooks(ctx)
	require.NoError(t, err)
	transactionsResp, err := c.FetchTransactions(ctx)
	require.NoError(t, err)

	// assert
	users := decode[[]libraryapi.User](t, usersResp)
	books := decode[[]libraryapi.Book](t, booksResp)
	assert.Equal(t, []string{"darcy", "wick"}, []string{users[0].Username, users[1].Username})
	assert.Equal(t, []string{"Emma", "Persuasion"}, []string{books[0].Title, books[1].Title})
	assert.Equal(t, "application/json", booksResp.Header.Get("Content-Type"))
	assert.JSONEq(t, `[]`, string(transactionsResp.Body))
}

func Test_Server_Rejects_DeletingABorrowedBook(t *testing.T) {
	// arrange
	ctx := context.Background()
	c, _ := givenServer(t, newFakeStore())
	user := givenUser(t, c, "lizzy")
	book := givenBook(t, c, "Emma", "9780141439587", 2)
	borrowResp, err := c.BorrowBook(ctx, map[string]any{"user": user.ID, "book": book.ID, "borrow_date": "2024-05-01"})
	require.NoError(t, err)
	borrowed := decode[libraryapi.BorrowTransaction](t, borrowResp)

	// act
	refusedResp, err := c.DeleteBook(ctx, book.ID)
	require.NoError(t, err)
	_, err = c.ReturnBook(ctx, borrowed.ID, map[string]any{})
	require.NoError(t, err)
	deletedResp, err := c.DeleteBook(ctx, book.ID)
	require.NoError(t, err)
	transactionsResp, err := c.FetchTransactions(ctx)
	require.NoError(t, err)

	// assert
	assert.Equal(t, http.StatusBadRequest, refusedResp.StatusCode)
	assert.JSONEq(t, `{"message": "Cannot delete a book that is currently borrowed."}`, string(refusedResp.Body))
	assert.Equal(t, http.StatusNoContent, deletedResp.StatusCode)
	assert.Empty(t, deletedResp.Body)

	transactions := decode[[]libraryapi.BorrowTransaction](t, transactionsResp)
	require.Len(t, transactions, 1)
	assert.Nil(t, transactions[0].Book, "the orphaned transaction keeps no book reference")
	require.NotNil(t, transactions[0].ReturnDate)
	assert.Equal(t, "2024-05-03", transactions[0].ReturnDate.String())
}

func Test_Server_Validates_RequestBodies(t *testing.T) {
	ctx := context.Background()
	c, _ := givenServer(t, newFakeStore())

	t.Run("missing book fields", func(t *testing.T) {
		resp, err := c.CreateBook(ctx, map[string]any{})

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.JSONEq(t, `{
			"title": ["This field is required."],
			"author": ["This field is required."],
			"isbn": ["This field is required."]
		}`, string(resp.Body))
	})

	t.Run("too long isbn and negative copies", func(t *testing.T) {
		resp, err := c.CreateBook(ctx, map[string]any{
			"title":            "Emma",
			"author":           "Jane Austen",
			"isbn":             "123456789012345678901",
			"copies_available": -1,
		})

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.JSONEq(t, `{
			"isbn": ["Ensure this field has no more than 20 characters."],
			"copies_available": ["Ensure this value is greater than or equal to 0."]
		}`, string(resp.Body))
	})

	t.Run("blank title on patch", func(t *testing.T) {
		book := givenBook(t, c, "Emma", "9780141439587", 1)

		resp, err := c.PatchBook(ctx, book.ID, map[string]any{"title": ""})

		require.NoError(t, err)
		assert.JSONEq(t, `{"title": ["This field may not be blank."]}`, string(resp.Body))
	})

	t.Run("invalid email", func(t *testing.T) {
		resp, err := c.CreateUser(ctx, map[string]any{"username": "lizzy", "email": "not-an-address"})

		require.NoError(t, err)
		assert.JSONEq(t, `{"email": ["Enter a valid email address."]}`, string(resp.Body))
	})

	t.Run("borrow without fields", func(t *testing.T) {
		resp, err := c.BorrowBook(ctx, map[string]any{})

		require.NoError(t, err)
		assert.JSONEq(t, `{
			"user": ["This field is required."],
			"book": ["This field is required."],
			"borrow_date": ["This field is required."]
		}`, string(resp.Body))
	})

	t.Run("malformed date", func(t *testing.T) {
		resp, err := c.BorrowBook(ctx, map[string]any{"user": 1, "book": 1, "borrow_date": "01.05.2024"})

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, string(resp.Body), "JSON parse error")
	})

	t.Run("malformed json", func(t *testing.T) {
		resp, err := c.CreateBook(ctx, []byte(`{"title":`))

		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func Test_Server_Rejects_BorrowingUnknownReferences(t *testing.T) {
	ctx := context.Background()
	c, _ := givenServer(t, newFakeStore())
	user := givenUser(t, c, "lizzy")

	unknownUserResp, err := c.BorrowBook(ctx, map[string]any{"user": 99, "book": 1, "borrow_date": "2024-05-01"})
	require.NoError(t, err)
	unknownBookResp, err := c.BorrowBook(ctx, map[string]any{"user": user.ID, "book": 42, "borrow_date": "2024-05-01"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, unknownUserResp.StatusCode)
	assert.JSONEq(t, `{"user": ["Invalid pk \"99\" - object does not exist."]}`, string(unknownUserResp.Body))
	assert.Equal(t, http.StatusBadRequest, unknownBookResp.StatusCode)
	assert.JSONEq(t, `{"book": ["Invalid pk \"42\" - object does not exist."]}`, string(unknownBookResp.Body))
}

func Test_Server_Rejects_Duplicates(t *testing.T) {
	ctx := context.Background()
	c, _ := givenServer(t, newFakeStore())
	givenUser(t, c, "lizzy")
	givenBook(t, c, "Emma", "9780141439587", 1)

	userResp, err := c.CreateUser(ctx, map[string]any{"username": "lizzy"})
	require.NoError(t, err)
	bookResp, err := c.CreateBook(ctx, map[string]any{"title": "Emma", "author": "Jane Austen", "isbn": "9780141439587"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"username": ["A user with that username already exists."]}`, string(userResp.Body))
	assert.JSONEq(t, `{"isbn": ["book with this isbn already exists."]}`, string(bookResp.Body))
}

func Test_Server_Answers_NotFound(t *testing.T) {
	ctx := context.Background()
	c, ts := givenServer(t, newFakeStore())

	bookResp, err := c.FetchBook(ctx, 999)
	require.NoError(t, err)
	userResp, err := c.DeleteUser(ctx, 999)
	require.NoError(t, err)
	returnResp, err := c.ReturnBook(ctx, 999, nil)
	require.NoError(t, err)
	nonNumericResp, err := ts.Client().Get(ts.URL + "/api/books/emma/")
	require.NoError(t, err)
	defer nonNumericResp.Body.Close()

	assert.Equal(t, http.StatusNotFound, bookResp.StatusCode)
	assert.JSONEq(t, `{"detail": "Not found."}`, string(bookResp.Body))
	assert.Equal(t, http.StatusNotFound, userResp.StatusCode)
	assert.Equal(t, http.StatusNotFound, returnResp.StatusCode)
	assert.Equal(t, http.StatusNotFound, nonNumericResp.StatusCode)
}

func Test_Server_Updates_Books(t *testing.T) {
	// arrange
	ctx := context.Background()
	c, _ := givenServer(t, newFakeStore())
	book := givenBook(t, c, "Emma", "9780141439587", 3)

	// act
	putResp, err := c.UpdateBook(ctx, book.ID, map[string]any{"title": "Emma.", "author": "J. Austen", "isbn": "9780141439587"})
	require.NoError(t, err)
	patchResp, err := c.PatchBook(ctx, book.ID, map[string]any{"copies_available": 5})
	require.NoError(t, err)

	// assert
	assert.Equal(t, http.StatusOK, putResp.StatusCode)
	assert.Equal(t,
		libraryapi.Book{ID: book.ID, Title: "Emma.", Author: "J. Austen", ISBN: "9780141439587", CopiesAvailable: 3},
		decode[libraryapi.Book](t, putResp),
		"copies_available is kept when the body leaves it out",
	)
	assert.Equal(t, 5, decode[libraryapi.Book](t, patchResp).CopiesAvailable)
}

func Test_Server_Updates_Users(t *testing.T) {
	ctx := context.Background()
	c, _ := givenServer(t, newFakeStore())
	user := givenUser(t, c, "lizzy")

	resp, err := c.UpdateUser(ctx, user.ID, map[string]any{
		"username":   "elizabeth",
		"first_name": "Elizabeth",
		"last_name":  "Bennet",
		"email":      "lizzy@longbourn.example",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t,
		libraryapi.User{ID: user.ID, Username: "elizabeth", FirstName: "Elizabeth", LastName: "Bennet", Email: "lizzy@longbourn.example"},
		decode[libraryapi.User](t, resp),
	)
}

func Test_Server_Answers_EmptyOK_For_FormRoutes(t *testing.T) {
	_, ts := givenServer(t, newFakeStore())

	for _, path := range []string{"/api/borrow/", "/api/return/5/"} {
		resp, err := ts.Client().Get(ts.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Zero(t, resp.ContentLength, path)
	}
}

func Test_Server_Rejects_UnsupportedMethods(t *testing.T) {
	c, _ := givenServer(t, newFakeStore())

	resp, err := c.Do(context.Background(), http.MethodDelete, "/transactions/", "/transactions/", nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func Test_Server_Retries_TransientFailures(t *testing.T) {
	// arrange
	store := newFakeStore()
	store.failWith(libraryapi.ErrTransientDatabaseFailure, libraryapi.ErrTransientDatabaseFailure)
	c, _ := givenServer(t, store)

	// act
	resp, err := c.CreateBook(context.Background(), map[string]any{"title": "Emma", "author": "Jane Austen", "isbn": "1"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 3, store.mutationCalls())
}

func Test_Server_Answers_ServerError_For_UnexpectedFailures(t *testing.T) {
	// arrange
	store := newFakeStore()
	store.failWith(errors.New("connection refused"))
	logger := spies.NewContextualLoggerSpy(true)
	c, _ := givenServer(t, store, httpapi.WithContextualLogger(logger))

	// act
	resp, err := c.CreateBook(context.Background(), map[string]any{"title": "Emma", "author": "Jane Austen", "isbn": "1"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"detail": "A server error occurred."}`, string(resp.Body))
	assert.NotContains(t, string(resp.Body), "connection refused")

	failures := logger.RecordsWithMessage("error", "A server error occurred.")
	require.Len(t, failures, 1)
	assert.True(t, failures[0].HasArg("error", "connection refused"))
	assert.Len(t, logger.RecordsWithMessage("error", "http request failed"), 1)
}

func Test_Server_Assigns_RequestIDs(t *testing.T) {
	_, ts := givenServer(t, newFakeStore())

	generated, err := ts.Client().Get(ts.URL + "/api/books/")
	require.NoError(t, err)
	_ = generated.Body.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/books/", nil)
	require.NoError(t, err)
	req.Header.Set(httpapi.RequestIDHeader, "req-42")
	propagated, err := ts.Client().Do(req)
	require.NoError(t, err)
	_ = propagated.Body.Close()

	assert.Len(t, generated.Header.Get(httpapi.RequestIDHeader), 36)
	assert.Equal(t, "req-42", propagated.Header.Get(httpapi.RequestIDHeader))
}

func Test_Server_Observes_Requests(t *testing.T) {
	// arrange
	metrics := spies.NewMetricsCollectorSpy(true)
	tracing := spies.NewTracingCollectorSpy(true)
	logger := spies.NewContextualLoggerSpy(true)
	c, _ := givenServer(t, newFakeStore(),
		httpapi.WithMetrics(metrics),
		httpapi.WithTracing(tracing),
		httpapi.WithLogger(logger),
	)

	// act
	_, err := c.FetchBook(context.Background(), 7)
	require.NoError(t, err)

	// assert
	labels := map[string]string{"method": "GET", "route": "/books/{id}/", "status_code": "404"}
	assert.True(t, metrics.HasDuration(httpapi.RequestDurationMetric, labels))
	assert.True(t, metrics.HasCounter(httpapi.RequestsMetric, labels))

	spans := tracing.SpanRecords()
	require.Len(t, spans, 1)
	assert.Equal(t, "libraryapi.http.request", spans[0].Name)
	assert.Equal(t, "/books/{id}/", spans[0].StartAttributes["route"])
	assert.Equal(t, "client_error", spans[0].Status)
	assert.Equal(t, "404", spans[0].EndAttributes["status_code"])

	records := logger.RecordsWithMessage("info", "http request served")
	require.Len(t, records, 1)
	assert.True(t, records[0].HasArg("status_code", 404))
	assert.True(t, records[0].HasArg("route", "/books/{id}/"))
}

func Test_Server_Serves_WithoutPrefix(t *testing.T) {
	server, err := httpapi.NewServer(newFakeStore(), httpapi.WithPrefix(""))
	require.NoError(t, err)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/books/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func Test_Server_Labels_RetryMetrics_PerRoute(t *testing.T) {
	// arrange
	store := newFakeStore()
	metrics := spies.NewMetricsCollectorSpy(true)
	tracing := spies.NewTracingCollectorSpy(true)
	c, _ := givenServer(t, store, httpapi.WithMetrics(metrics), httpapi.WithTracing(tracing))

	// act
	store.failWith(libraryapi.ErrTransientDatabaseFailure)
	book := givenBook(t, c, "Emma", "9780141439587", 1)

	store.failWith(libraryapi.ErrTransientDatabaseFailure)
	resp, err := c.DeleteBook(context.Background(), book.ID)

	// assert
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 4, store.mutationCalls())

	assert.True(t, metrics.HasCounter(retry.RetriesMetric, map[string]string{
		"operation":      "POST /books/",
		"attempt_number": "1",
		"error_type":     "transient_database_failure",
	}))
	assert.True(t, metrics.HasCounter(retry.RetriesMetric, map[string]string{
		"operation":      "DELETE /books/{id}/",
		"attempt_number": "1",
		"error_type":     "transient_database_failure",
	}))

	spans := tracing.SpanRecords()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "2", span.EndAttributes["retry_attempts"], span.StartAttributes["route"])
	}
}

func Test_Server_Records_NoRetryMetrics_Without_Retries(t *testing.T) {
	// arrange
	metrics := spies.NewMetricsCollectorSpy(true)
	tracing := spies.NewTracingCollectorSpy(true)
	c, _ := givenServer(t, newFakeStore(), httpapi.WithMetrics(metrics), httpapi.WithTracing(tracing))

	// act
	givenBook(t, c, "Emma", "9780141439587", 1)
	_, err := c.FetchBooks(context.Background())
	require.NoError(t, err)

	// assert
	for _, record := range metrics.CounterRecords() {
		assert.NotEqual(t, retry.RetriesMetric, record.Metric)
	}

	spans := tracing.SpanRecords()
	require.Len(t, spans, 2)
	assert.Equal(t, "1", spans[0].EndAttributes["retry_attempts"])
	assert.NotContains(t, spans[1].EndAttributes, "retry_attempts")
}

func Test_Server_Rejects_OutOfRangeCopies(t *testing.T) {
	// arrange
	c, _ := givenServer(t, newFakeStore())
	ctx := context.Background()

	// act
	tooMany, err := c.CreateBook(ctx, map[string]any{
		"title": "Emma", "author": "Jane Austen", "isbn": "1", "copies_available": int64(2147483648),
	})
	require.NoError(t, err)
	largest, err := c.CreateBook(ctx, map[string]any{
		"title": "Emma", "author": "Jane Austen", "isbn": "2", "copies_available": int64(2147483647),
	})
	require.NoError(t, err)

	// assert
	assert.Equal(t, http.StatusBadRequest, tooMany.StatusCode)
	assert.JSONEq(t, `{"copies_available": ["Ensure this value is less than or equal to 2147483647."]}`, string(tooMany.Body))
	assert.Equal(t, http.StatusCreated, largest.StatusCode, string(largest.Body))
}

func Test_Server_Rejects_ExplicitNulls(t *testing.T) {
	// arrange
	c, _ := givenServer(t, newFakeStore())
	ctx := context.Background()
	book := givenBook(t, c, "Emma", "9780141439587", 3)

	// act
	patched, err := c.PatchBook(ctx, book.ID, map[string]any{"copies_available": nil})
	require.NoError(t, err)
	created, err := c.CreateUser(ctx, map[string]any{"username": nil})
	require.NoError(t, err)
	fetched, err := c.FetchBook(ctx, book.ID)
	require.NoError(t, err)

	// assert
	assert.Equal(t, http.StatusBadRequest, patched.StatusCode)
	assert.JSONEq(t, `{"copies_available": ["This field may not be null."]}`, string(patched.Body))
	assert.Equal(t, http.StatusBadRequest, created.StatusCode)
	assert.JSONEq(t, `{"username": ["This field may not be null."]}`, string(created.Body))
	assert.Equal(t, 3, decode[libraryapi.Book](t, fetched).CopiesAvailable)
}
