package main

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

// snapshot is the state of the library fetched by overview.
type snapshot struct {
	users        []libraryapi.User
	books        []libraryapi.Book
	transactions []libraryapi.BorrowTransaction
}

// fetchSnapshot loads users, books and transactions concurrently.
// The first failing request cancels the others.
func (a *app) fetchSnapshot(ctx context.Context) (snapshot, error) {
	var s snapshot

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		s.users, err = decode[[]libraryapi.User](a.client.FetchUsers(gctx))
		return err
	})

	g.Go(func() error {
		var err error
		s.books, err = decode[[]libraryapi.Book](a.client.FetchBooks(gctx))
		return err
	})

	g.Go(func() error {
		var err error
		s.transactions, err = decode[[]libraryapi.BorrowTransaction](a.client.FetchTransactions(gctx))
		return err
	})

	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}

	return s, nil
}

func (a *app) overview(ctx context.Context, _ []string) error {
	s, err := a.fetchSnapshot(ctx)
	if err != nil {
		return err
	}

	usernames := make(map[libraryapi.ID]string, len(s.users))
	for _, u := range s.users {
		usernames[u.ID] = u.Username
	}

	titles := make(map[libraryapi.ID]string, len(s.books))
	onShelf := 0
	for _, b := range s.books {
		titles[b.ID] = b.Title
		onShelf += b.CopiesAvailable
	}

	var open []libraryapi.BorrowTransaction
	for _, t := range s.transactions {
		if !t.IsReturned() {
			open = append(open, t)
		}
	}

	summary := newTable(a.out, "USERS", "BOOKS", "COPIES ON SHELF", "OPEN LOANS", "RETURNED")
	row(summary,
		strconv.Itoa(len(s.users)),
		strconv.Itoa(len(s.books)),
		strconv.Itoa(onShelf),
		strconv.Itoa(len(open)),
		strconv.Itoa(len(s.transactions)-len(open)),
	)
	if err := summary.Flush(); err != nil {
		return err
	}

	if len(open) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(a.out); err != nil {
		return err
	}

	loans := newTable(a.out, "TRANSACTION", "USER", "BOOK", "SINCE")
	for _, t := range open {
		title := noValue
		if t.Book != nil {
			title = orNoValue(titles[*t.Book])
		}

		row(loans, formatID(t.ID), orNoValue(usernames[t.User]), title, t.BorrowDate.String())
	}

	return loans.Flush()
}
