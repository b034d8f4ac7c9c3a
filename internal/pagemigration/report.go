package pagemigration

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// Render writes a human-readable report, one line per check, followed by
// the summary.
func (r *Report) Render(w io.Writer) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if _, err := fmt.Fprintln(w, bold("Post-migration verification")); err != nil {
		return err
	}
	for i, c := range r.Checks {
		mark := green("✓")
		if !c.Passed {
			mark = red("✗")
		}
		if _, err := fmt.Fprintf(w, "%s %2d. %s: %s\n", mark, i+1, c.Name, c.Message); err != nil {
			return err
		}
		for _, warning := range c.Warnings {
			if _, err := fmt.Fprintf(w, "      %s %s\n", yellow("!"), warning); err != nil {
				return err
			}
		}
	}

	summary := fmt.Sprintf("%d/%d checks passed", r.Passed, len(r.Checks))
	if r.OK() {
		summary = green(summary)
	} else {
		summary = red(fmt.Sprintf("%s, %d failed", summary, r.Failed))
	}
	_, err := fmt.Fprintf(w, "\n%s (%s)\n", summary, r.Duration.Round(time.Millisecond))
	return err
}

// RenderJSON writes the report as indented JSON.
func (r *Report) RenderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
