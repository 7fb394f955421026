package runsummary

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/mitchellh/cli"
)

// FormatAndPrintText prints the per-step breakdown of a finished flow to
// the terminal, one row per step in execution order.
func (r *RunState) FormatAndPrintText(ui cli.Ui) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	header := color.New(color.FgCyan, color.Bold).SprintfFunc()
	failed := color.New(color.FgRed).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()

	ui.Output("")
	ui.Info(header("Steps"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
	fmt.Fprintln(w, "Name\tStatus\tDuration\t")
	for _, label := range r.order {
		s := r.state[label]
		status := s.Status
		switch status {
		case "failed":
			status = failed(status)
		case "skipped", "cached":
			status = faint(status)
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t\n", label, status, s.Duration.Truncate(time.Millisecond))
		if s.Err != nil {
			fmt.Fprintf(w, "\t%s\t\t\n", failed(s.Err.Error()))
		}
	}
	return w.Flush()
}
