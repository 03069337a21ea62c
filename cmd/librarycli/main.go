// Command librarycli is a terminal front end for the library circulation API.
//
// Usage:
//
//	librarycli [-url URL] [-timeout D] [-debug] <command> [arguments]
//
// The base URL defaults to $LIBRARY_API_URL or http://localhost:8000/api.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntonStoeckl/library-circulation-api/config"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/client"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/oteladapters"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2

	defaultTimeout = 10 * time.Second
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run builds the client and dispatches one command. It returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("librarycli", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() { printUsage(stderr) }

	baseURL := flags.String("url", config.APIBaseURL(), "Base URL of the library API")
	timeout := flags.Duration("timeout", defaultTimeout, "Timeout per request")
	debug := flags.Bool("debug", false, "Log every request to stderr")

	if err := flags.Parse(args); err != nil {
		return exitUsage
	}

	if flags.NArg() == 0 {
		printUsage(stderr)
		return exitUsage
	}

	options := []client.Option{
		client.WithBaseURL(*baseURL),
		client.WithHTTPClient(&http.Client{Timeout: *timeout}),
	}
	if *debug {
		handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		options = append(options, client.WithLogger(oteladapters.NewSlogBridgeLoggerWithHandler(handler)))
	}

	c, err := client.New(options...)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "librarycli:", err)
		return exitUsage
	}

	a := newApp(c, stdout)
	if err := a.dispatch(ctx, flags.Arg(0), flags.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			_, _ = fmt.Fprintln(stderr, "librarycli:", err)
			return exitUsage
		}

		_, _ = fmt.Fprintln(stderr, "librarycli:", err)
		return exitError
	}

	return exitOK
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprint(w, `usage: librarycli [-url URL] [-timeout D] [-debug] <command> [arguments]

commands:
  users                                  list users
  books                                  list books
  book-create -title T -author A -isbn I [-copies N]
  book-update ID [-title T] [-author A] [-isbn I] [-copies N]
  book-delete ID
  transactions                           list borrow transactions
  borrow -user ID -book ID [-date YYYY-MM-DD]
  return ID [-date YYYY-MM-DD]
  overview                               summary of users, books and open loans
`)
}
