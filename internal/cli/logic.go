package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/idelchi/findexec/internal/findexec"
	"github.com/idelchi/findexec/internal/logging"
)

func (c CLI) logic(ctx context.Context, out, errOut io.Writer, options findexec.Options) error {
	stderrTTY := errOut == os.Stderr && isatty.IsTerminal(os.Stderr.Fd())
	enableProgress := options.Output != OutputJSON && stderrTTY

	log := logging.New(logging.Config{
		Level:  options.LogLevel,
		Pretty: stderrTTY,
		Output: errOut,
	})

	env := c.env
	if env.Logger == nil {
		env.Logger = &log
	}

	// Simple progress callback that prints directly to stderr
	var progressHook func(files, bytes int64)

	if enableProgress {
		// Hide cursor for in-place updates; restore on exit.
		fmt.Fprint(errOut, "\033[?25l")
		defer fmt.Fprint(errOut, "\033[?25h")

		progressHook = func(files, bytes int64) {
			msg := fmt.Sprintf("Scanning… %d files, %s",
				files, humanize.IBytes(uint64(bytes))) //nolint:gosec // Bytes is always positive
			fmt.Fprintf(errOut, "\r\033[2K%s\r", msg)
		}
	}

	report, err := findexec.Run(ctx, options, env, progressHook)

	// Clear the status line
	if enableProgress {
		fmt.Fprint(errOut, "\r\033[2K\r")
	}

	if err != nil {
		return err
	}

	if err := report.Err(); err != nil {
		log.Warn().
			Int("skipped", len(report.Skipped)).
			Msg("some entries could not be read; use --log-level debug to list them")
		log.Debug().Err(err).Msg("skipped entries")
	}

	log.Info().
		Int("matched", report.Matched).
		Int("owners", len(report.Groups)).
		Dur("elapsed", report.Elapsed).
		Msg("scan complete")

	switch options.Output {
	case OutputJSON:
		return PrintJSON(report, out)
	case OutputTable:
		return PrintTable(report, out)
	case OutputText, "":
		return PrintText(report, out)
	default:
		return fmt.Errorf("unknown output format: %s", options.Output)
	}
}
