package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/AntonStoeckl/library-circulation-api/libraryapi"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/client"
)

type command struct {
	run func(ctx context.Context, args []string) error
}

// app binds the commands to one client and one output.
type app struct {
	client   *client.Client
	out      io.Writer
	now      func() time.Time
	commands map[string]command
}

func newApp(c *client.Client, out io.Writer) *app {
	a := &app{client: c, out: out, now: time.Now}
	a.commands = map[string]command{
		"users":        {run: a.users},
		"books":        {run: a.books},
		"book-create":  {run: a.bookCreate},
		"book-update":  {run: a.bookUpdate},
		"book-delete":  {run: a.bookDelete},
		"transactions": {run: a.transactions},
		"borrow":       {run: a.borrow},
		"return":       {run: a.returnBook},
		"overview":     {run: a.overview},
	}

	return a
}

func (a *app) dispatch(ctx context.Context, name string, args []string) error {
	cmd, ok := a.commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	return cmd.run(ctx, args)
}

func (a *app) users(ctx context.Context, _ []string) error {
	users, err := decode[[]libraryapi.User](a.client.FetchUsers(ctx))
	if err != nil {
		return err
	}

	return printUsers(a.out, users)
}

func (a *app) books(ctx context.Context, _ []string) error {
	books, err := decode[[]libraryapi.Book](a.client.FetchBooks(ctx))
	if err != nil {
		return err
	}

	return printBooks(a.out, books)
}

func (a *app) transactions(ctx context.Context, _ []string) error {
	transactions, err := decode[[]libraryapi.BorrowTransaction](a.client.FetchTransactions(ctx))
	if err != nil {
		return err
	}

	return printTransactions(a.out, transactions)
}

// bookFlags registers the book fields on flags and returns a function collecting the set ones.
func bookFlags(flags *flag.FlagSet) func() map[string]any {
	title := flags.String("title", "", "Title")
	author := flags.String("author", "", "Author")
	isbn := flags.String("isbn", "", "ISBN")
	copies := flags.Int("copies", libraryapi.DefaultCopiesAvailable, "Copies available")

	return func() map[string]any {
		data := map[string]any{}
		flags.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "title":
				data["title"] = *title
			case "author":
				data["author"] = *author
			case "isbn":
				data["isbn"] = *isbn
			case "copies":
				data["copies_available"] = *copies
			}
		})

		return data
	}
}

func (a *app) bookCreate(ctx context.Context, args []string) error {
	flags := newFlagSet("book-create")
	collect := bookFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	book, err := decode[libraryapi.Book](a.client.CreateBook(ctx, collect()))
	if err != nil {
		return err
	}

	return printBooks(a.out, []libraryapi.Book{book})
}

func (a *app) bookUpdate(ctx context.Context, args []string) error {
	id, rest, err := leadingID(args)
	if err != nil {
		return err
	}

	flags := newFlagSet("book-update")
	collect := bookFlags(flags)
	if err := flags.Parse(rest); err != nil {
		return err
	}

	data := collect()
	if len(data) == 0 {
		return fmt.Errorf("%w: book-update needs at least one field to change", errUsage)
	}

	book, err := decode[libraryapi.Book](a.client.UpdateBook(ctx, id, data))
	if err != nil {
		return err
	}

	return printBooks(a.out, []libraryapi.Book{book})
}

func (a *app) bookDelete(ctx context.Context, args []string) error {
	id, _, err := leadingID(args)
	if err != nil {
		return err
	}

	if err := succeeded(a.client.DeleteBook(ctx, id)); err != nil {
		return err
	}

	_, err = fmt.Fprintf(a.out, "deleted book %d\n", id)

	return err
}

func (a *app) borrow(ctx context.Context, args []string) error {
	flags := newFlagSet("borrow")
	userID := flags.Int64("user", 0, "User ID")
	bookID := flags.Int64("book", 0, "Book ID")
	date := flags.String("date", "", "Borrow date, defaults to today")
	if err := flags.Parse(args); err != nil {
		return err
	}

	borrowDate, err := a.dateOrToday(*date)
	if err != nil {
		return err
	}

	transaction, err := decode[libraryapi.BorrowTransaction](a.client.BorrowBook(ctx, libraryapi.BorrowRequest{
		User:       *userID,
		Book:       *bookID,
		BorrowDate: borrowDate,
	}))
	if err != nil {
		return err
	}

	return printTransactions(a.out, []libraryapi.BorrowTransaction{transaction})
}

func (a *app) returnBook(ctx context.Context, args []string) error {
	id, rest, err := leadingID(args)
	if err != nil {
		return err
	}

	flags := newFlagSet("return")
	date := flags.String("date", "", "Return date, defaults to today")
	if err := flags.Parse(rest); err != nil {
		return err
	}

	returnDate, err := a.dateOrToday(*date)
	if err != nil {
		return err
	}

	transaction, err := decode[libraryapi.BorrowTransaction](a.client.ReturnBook(ctx, id, libraryapi.ReturnRequest{
		ReturnDate: &returnDate,
	}))
	if err != nil {
		return err
	}

	return printTransactions(a.out, []libraryapi.BorrowTransaction{transaction})
}

func (a *app) dateOrToday(value string) (libraryapi.Date, error) {
	if value == "" {
		return libraryapi.DateOf(a.now()), nil
	}

	date, err := libraryapi.ParseDate(value)
	if err != nil {
		return libraryapi.Date{}, fmt.Errorf("%w: %w", errUsage, err)
	}

	return date, nil
}

func newFlagSet(name string) *flag.FlagSet {
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	return flags
}

// leadingID splits "ID [flags]" arguments.
func leadingID(args []string) (libraryapi.ID, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return 0, nil, fmt.Errorf("%w: missing ID argument", errUsage)
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: invalid ID %q", errUsage, args[0])
	}

	return id, args[1:], nil
}

// decode turns a wrapper result into T, treating non-2xx responses as errors.
func decode[T any](resp *client.Response, err error) (T, error) {
	var v T

	if err := succeeded(resp, err); err != nil {
		return v, err
	}

	if err := resp.Decode(&v); err != nil {
		return v, err
	}

	return v, nil
}

func succeeded(resp *client.Response, err error) error {
	if err != nil {
		return err
	}

	return resp.Err()
}
