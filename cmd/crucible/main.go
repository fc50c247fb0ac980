// Package main provides the crucible CLI for running CI test matrices and packaging releases.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and maps the outcome to an exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	err := a.command().Run(ctx, args)
	code := exitCode(err)
	if err != nil && err.Error() != "" {
		fmt.Fprintln(stderr, color.RedString("Error: %v", err))
	}
	return code
}

// exitCode returns the code carried by err. Errors without one come from flag parsing and count as usage errors.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return exitUsage
}

// failed marks err as a run failure (exit 1)
func failed(err error) error {
	return cli.Exit(err, exitFailure)
}

// usageError marks err as a usage or configuration problem (exit 2)
func usageError(err error) error {
	return cli.Exit(err, exitUsage)
}
