package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/idelchi/findexec/internal/findexec"
)

const (
	// TabSpacing is the number of spaces between tabwriter columns.
	TabSpacing = 2
)

// PrintText outputs one line per owner group.
func PrintText(report *findexec.Report, writer io.Writer) error {
	for _, group := range report.Groups {
		quoted := make([]string, len(group.Files))
		for i, f := range group.Files {
			quoted[i] = strconv.Quote(f)
		}

		if _, err := fmt.Fprintf(writer, "%s: [%s], amount = %d, size = %d;\n",
			group.Username, strings.Join(quoted, ", "), group.Amount, group.Size); err != nil {
			return err
		}
	}

	return nil
}

// PrintJSON outputs the owner groups as a JSON array.
func PrintJSON(report *findexec.Report, writer io.Writer) error {
	groups := report.Groups
	if groups == nil {
		groups = []findexec.OwnerGroup{}
	}

	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	if _, err := fmt.Fprintln(writer, string(data)); err != nil {
		return err
	}

	return nil
}

// PrintTable outputs the owner groups in human-readable table format.
func PrintTable(report *findexec.Report, writer io.Writer) error {
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	fmt.Fprintln(w, "USER\tUID\tFILES\tSIZE")

	var (
		files int
		size  int64
	)

	for _, group := range report.Groups {
		files += group.Amount
		size += group.Size

		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
			group.Username, group.UID, group.Amount, humanize.IBytes(uint64(group.Size))) //nolint:gosec // Sizes are never negative
	}

	fmt.Fprintln(w, "\nStats:\t\t\t")
	fmt.Fprintf(w, "Total files:\t%d\t\t\n", files)
	fmt.Fprintf(w, "Total size:\t%s (%d bytes)\t\t\n", humanize.IBytes(uint64(size)), size) //nolint:gosec // Sizes are never negative

	if dropped := report.Matched - files; dropped > 0 {
		fmt.Fprintf(w, "Unresolved owners:\t%d (%d files)\t\t\n", len(report.Unresolved), dropped)
	}

	if len(report.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped entries:\t%d\t\t\n", len(report.Skipped))
	}

	fmt.Fprintf(w, "\nElapsed:\t%v\t\t\n", report.Elapsed)

	return w.Flush()
}
