package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/releasemerge/internal/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	closeApp()
	if err != nil {
		slog.Error("run failed", "error", err)
		reportFailure(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// reportFailure prints the coded message, the offending row when known, and
// the underlying cause.
func reportFailure(w io.Writer, err error) {
	fmt.Fprintln(w, core.FormatUserError(err))
	var runErr *core.RunError
	if errors.As(err, &runErr) {
		if loc := runErr.Location(); loc != "" {
			fmt.Fprintf(w, "  at %s\n", loc)
		}
	}
	fmt.Fprintf(w, "  cause: %v\n", err)
}
