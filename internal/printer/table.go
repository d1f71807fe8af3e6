package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/alpack/alpack/internal/config"
	"github.com/alpack/alpack/internal/model"
)

// TablePrinter prints application information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintSettings prints the settings in a table format.
func (t *TablePrinter) PrintSettings(settings config.Settings) error {
	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "KEY\tVALUE")
	for _, row := range settingsRows(settings) {
		fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
	}

	return nil
}

// PrintSettingsChange prints a single settings update.
func (t *TablePrinter) PrintSettingsChange(key, oldValue, newValue string) error {
	fmt.Fprintf(t.writer, "%s: %q -> %q\n", key, oldValue, newValue)
	return nil
}

// PrintChecks prints environment check results in a table format.
func (t *TablePrinter) PrintChecks(checks []model.CheckResult) error {
	if len(checks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "CHECK\tSTATUS\tDETAIL")
	for _, c := range checks {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Status, c.Message)
	}

	return nil
}
