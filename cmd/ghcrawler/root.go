package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes of the CLI.
const (
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks an error caused by invalid command line input.
// It makes the process exit with exitUsage.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

// newUsageError wraps err as a usageError; nil stays nil.
func newUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

// exitCode returns the process exit code for an error returned by Execute.
func exitCode(err error) int {
	var ue *usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	return exitFailure
}

// NewRootCmd creates the root command for ghcrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ghcrawler",
		Short: "Crawl GitHub search results through a proxy",
		Long: `ghcrawler crawls GitHub's HTML search result pages through an HTTP or
SOCKS5 proxy and prints the result URLs as JSON.

Requests are retried with exponential backoff on timeouts, connection errors
and the status codes 429, 500, 502, 503 and 504. For repository searches,
--with-extra fetches every repository page to add its owner and language
statistics.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging, including every HTTP exchange")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return newUsageError(fmt.Errorf("%w\nRun '%s --help' for usage", err, c.CommandPath()))
	})

	// Add subcommands
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with a non-zero code on error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}
