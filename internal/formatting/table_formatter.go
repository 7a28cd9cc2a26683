package formatting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"jobsmith/internal/job"
	"jobsmith/internal/publisher"
	"jobsmith/internal/reconciler"
	"jobsmith/internal/remote"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	shortHashLength = 12
	maxCellLength   = 100
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	w       io.Writer
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer, options Options) Formatter {
	return &TableFormatter{w: w, options: options}
}

// FormatPlan renders one row per action in execution order, then one row per
// conflict.
func (f *TableFormatter) FormatPlan(plan *reconciler.Plan) error {
	if plan.IsEmpty() {
		f.formatEmptyMessage("✅", fmt.Sprintf("No changes. %d jobs up to date.", len(plan.Unchanged)))
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("ACTION", "NAME", "HASH", "DETAIL"))
	for _, a := range plan.Actions() {
		t.AppendRow(table.Row{f.actionLabel(a.Type), a.Name, shortHash(a.Hash), actionDetail(a)})
	}
	for _, c := range plan.Conflicts {
		detail := "unmanaged"
		if c.ManagedBy != "" {
			detail = "managed by " + c.ManagedBy
		}
		if c.Source != "" {
			detail += " (" + c.Source + ")"
		}
		t.AppendRow(table.Row{f.color(text.FgHiMagenta, "conflict"), c.Name, "", detail})
	}
	t.Render()

	if !f.options.Quiet {
		fmt.Fprintf(f.w, "\n%s %d to create, %d to update, %d to delete, %d unchanged\n",
			f.color(text.FgHiBlue, "Plan:"),
			len(plan.Creates), len(plan.Updates), len(plan.Deletes), len(plan.Unchanged))
		if len(plan.Conflicts) > 0 {
			fmt.Fprintf(f.w, "%s %d conflicts must be resolved before applying\n",
				f.color(text.FgHiMagenta, "Blocked:"), len(plan.Conflicts))
		}
		if len(plan.Skipped) > 0 {
			fmt.Fprintf(f.w, "%d unmanaged remote jobs left alone\n", len(plan.Skipped))
		}
	}
	return nil
}

// FormatSummary renders one row per action result.
func (f *TableFormatter) FormatSummary(summary *publisher.Summary) error {
	if len(summary.Results) == 0 {
		f.formatEmptyMessage("✅", "Nothing to apply.")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("STATUS", "ACTION", "NAME", "DURATION", "ERROR"))
	for _, r := range summary.Results {
		t.AppendRow(table.Row{
			f.statusLabel(r.Status),
			string(r.Action.Type),
			r.Action.Name,
			r.Duration.Round(time.Millisecond).String(),
			truncate(r.Error),
		})
	}
	t.Render()

	if !f.options.Quiet {
		fmt.Fprintf(f.w, "\n%s %s: %d succeeded, %d skipped, %d failed, %d aborted in %s\n",
			f.color(text.FgHiBlue, "Run"), summary.RunID,
			len(summary.Succeeded()), len(summary.Skipped()), len(summary.Failed()), len(summary.Aborted()),
			summary.Duration.Round(time.Millisecond))
	}
	return nil
}

// FormatDefinitions renders one row per definition in expansion order.
func (f *TableFormatter) FormatDefinitions(defs []job.Definition) error {
	if len(defs) == 0 {
		f.formatEmptyMessage("📋", "No job definitions found")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("NAME", "TEMPLATE", "PARAMS", "HASH", "SOURCE"))
	for _, def := range defs {
		t.AppendRow(table.Row{def.Name, def.Template, truncate(formatParams(def.Params)), shortHash(def.Hash()), def.Source})
	}
	t.Render()

	if !f.options.Quiet {
		fmt.Fprintf(f.w, "\n%s %s %s\n",
			f.color(text.FgHiBlue, "Total:"),
			f.color(text.FgHiWhite, fmt.Sprint(len(defs))),
			f.color(text.FgHiBlue, "jobs"))
	}
	return nil
}

// FormatRemoteState renders the remote jobs ordered by name.
func (f *TableFormatter) FormatRemoteState(state remote.State) error {
	if len(state) == 0 {
		f.formatEmptyMessage("📋", "No remote jobs found")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("NAME", "MANAGED", "MANAGED BY", "HASH"))
	for _, j := range sortedJobs(state) {
		managed := f.color(text.FgYellow, "no")
		if j.Managed {
			managed = f.color(text.FgGreen, "yes")
		}
		t.AppendRow(table.Row{j.Name, managed, j.ManagedBy, shortHash(j.Hash)})
	}
	t.Render()
	return nil
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options {
	return f.options
}

// Helper methods

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.w)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(names ...string) table.Row {
	row := make(table.Row, len(names))
	for i, n := range names {
		row[i] = f.color(text.FgHiCyan, n)
	}
	return row
}

// formatEmptyMessage writes empty result messages
func (f *TableFormatter) formatEmptyMessage(icon, message string) {
	if f.options.Quiet {
		fmt.Fprintln(f.w, message)
		return
	}
	fmt.Fprintf(f.w, "%s %s\n", f.color(text.FgYellow, icon), f.color(text.FgYellow, message))
}

func (f *TableFormatter) color(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

func (f *TableFormatter) actionLabel(t reconciler.ActionType) string {
	switch t {
	case reconciler.ActionCreate:
		return f.color(text.FgGreen, string(t))
	case reconciler.ActionUpdate:
		return f.color(text.FgYellow, string(t))
	case reconciler.ActionDelete:
		return f.color(text.FgRed, string(t))
	}
	return string(t)
}

func (f *TableFormatter) statusLabel(s publisher.Status) string {
	switch s {
	case publisher.StatusSucceeded:
		return f.color(text.FgGreen, string(s))
	case publisher.StatusSkipped:
		return f.color(text.FgHiBlack, string(s))
	case publisher.StatusFailed:
		return f.color(text.FgRed, string(s))
	case publisher.StatusAborted:
		return f.color(text.FgYellow, string(s))
	}
	return string(s)
}

func actionDetail(a reconciler.Action) string {
	switch {
	case a.Adopted:
		return "adopts unmanaged job"
	case a.Type == reconciler.ActionUpdate:
		return "was " + shortHash(a.RemoteHash)
	}
	return ""
}

func formatParams(params []job.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%s=%v", p.Name, p.Value)
	}
	return strings.Join(parts, ", ")
}

func shortHash(h string) string {
	if len(h) > shortHashLength {
		return h[:shortHashLength]
	}
	return h
}

func truncate(s string) string {
	if len(s) > maxCellLength {
		return s[:maxCellLength-3] + "..."
	}
	return s
}
