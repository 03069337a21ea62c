package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
)

const noValue = "-"

func newTable(out io.Writer, header ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))

	return w
}

func row(w io.Writer, cells ...string) {
	_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
}

func formatID(v libraryapi.ID) string {
	return strconv.FormatInt(v, 10)
}

func printUsers(out io.Writer, users []libraryapi.User) error {
	w := newTable(out, "ID", "USERNAME", "NAME", "EMAIL")
	for _, u := range users {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		row(w, formatID(u.ID), u.Username, orNoValue(name), orNoValue(u.Email))
	}

	return w.Flush()
}

func printBooks(out io.Writer, books []libraryapi.Book) error {
	w := newTable(out, "ID", "TITLE", "AUTHOR", "ISBN", "COPIES")
	for _, b := range books {
		row(w, formatID(b.ID), b.Title, b.Author, b.ISBN, strconv.Itoa(b.CopiesAvailable))
	}

	return w.Flush()
}

func printTransactions(out io.Writer, transactions []libraryapi.BorrowTransaction) error {
	w := newTable(out, "ID", "USER", "BOOK", "BORROWED", "RETURNED", "STATUS")
	for _, t := range transactions {
		book := noValue
		if t.Book != nil {
			book = formatID(*t.Book)
		}

		returned := noValue
		if t.ReturnDate != nil {
			returned = t.ReturnDate.String()
		}

		row(w, formatID(t.ID), formatID(t.User), book, t.BorrowDate.String(), returned, string(t.Status))
	}

	return w.Flush()
}

func orNoValue(s string) string {
	if s == "" {
		return noValue
	}

	return s
}
