package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ligustah/eccofetch/internal/catalog"
	"github.com/ligustah/eccofetch/internal/config"
	"github.com/ligustah/eccofetch/internal/dataset"
	"github.com/ligustah/eccofetch/internal/diskaware"
	"github.com/ligustah/eccofetch/internal/earthdata"
	"github.com/ligustah/eccofetch/internal/refs"
	"github.com/ligustah/eccofetch/internal/retrieve"
	"github.com/ligustah/eccofetch/internal/store"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitInvalidArgs   = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitCatalogError  = 5
	ExitTransferError = 6
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return execute(ctx, newApp(stdout, stderr), args)
}

func execute(ctx context.Context, a *app, args []string) int {
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	code := exitCode(err)
	if code == ExitInvalidArgs {
		fmt.Fprintf(a.stderr, "Run '%s --help' for usage.\n", root.CommandPath())
	}
	return code
}

// usageError marks a command-line mistake.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var ue usageError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &ue),
		strings.HasPrefix(err.Error(), "unknown command"),
		strings.HasPrefix(err.Error(), "required flag"):
		return ExitInvalidArgs
	case errors.Is(err, config.ErrInvalid),
		errors.Is(err, dataset.ErrInvalidDate),
		errors.Is(err, retrieve.ErrOutputDirMissing),
		errors.Is(err, diskaware.ErrFreeSpaceUndetectable),
		errors.Is(err, earthdata.ErrNonInteractive),
		errors.Is(err, refs.ErrNoReferenceFile):
		return ExitConfigError
	case errors.Is(err, earthdata.ErrAuthentication):
		return ExitAuthError
	case errors.Is(err, catalog.ErrCatalog):
		return ExitCatalogError
	case errors.Is(err, retrieve.ErrTransfer), errors.Is(err, store.ErrNotFound):
		return ExitTransferError
	default:
		return ExitGeneralError
	}
}
