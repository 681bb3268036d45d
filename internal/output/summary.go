package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/tanq16/dlbar/internal/progress"
)

func newSummaryTable(headers ...string) *table.Table {
	return table.New().Headers(headers...).StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return lipgloss.NewStyle().Bold(true).Align(lipgloss.Center).Padding(0, 1)
		}
		return lipgloss.NewStyle().Padding(0, 1)
	})
}

// ShowSummary prints a table of every download of the session followed by the
// error list. Call it after Stop.
func (d *Display) ShowSummary() {
	snaps := d.Snapshots()
	if len(snaps) == 0 {
		return
	}
	t := newSummaryTable("", "File", "Size", "Avg Speed", "Time")
	var success, failures int
	var bytes int64
	for _, s := range snaps {
		status := FPending(StyleSymbols["pending"])
		if s.Completed {
			status = d.statusSymbol(s.Outcome)
			switch s.Outcome {
			case progress.OutcomeOK:
				success++
			default:
				failures++
			}
		}
		bytes += s.Transferred
		t.Row(status, s.ID, progress.FormatBytes(s.Transferred), progress.FormatRate(s.AverageRate), s.Elapsed.Round(time.Millisecond).String())
	}
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, t.String())
	fmt.Fprintln(d.out, strings.Repeat(" ", 2)+FSuccess2(fmt.Sprintf("Completed %d of %d (%s)", success, len(snaps), progress.FormatBytes(bytes))))
	if failures > 0 {
		fmt.Fprintln(d.out, strings.Repeat(" ", 2)+FError(fmt.Sprintf("Failed %d of %d", failures, len(snaps))))
	}
	d.displayErrors()
}

func (d *Display) displayErrors() {
	errs := d.Errors()
	if len(errs) == 0 {
		return
	}
	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, err := range errs {
		fmt.Fprintf(d.out, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			FError(fmt.Sprintf("%d.", i+1)),
			FDebug(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			FError(err.Name))
		fmt.Fprintf(d.out, "%s%s\n", strings.Repeat(" ", 2+4), FError(fmt.Sprintf("Error: %v", err.Error)))
	}
}
