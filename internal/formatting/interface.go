// Package formatting renders plans, run summaries, definitions and remote
// state for the command line.
//
// Every formatter writes to the io.Writer it was created with. Tables are
// meant for people; JSON and YAML are stable and meant for scripts.
package formatting

import (
	"fmt"
	"io"
	"strings"

	"jobsmith/internal/job"
	"jobsmith/internal/publisher"
	"jobsmith/internal/reconciler"
	"jobsmith/internal/remote"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
	FormatXML   OutputFormat = "xml"   // View XML, definitions only
)

// Formats lists every supported output format.
var Formats = []string{string(FormatTable), string(FormatJSON), string(FormatYAML), string(FormatXML)}

// ParseFormat converts a flag value into an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML, FormatXML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (expected one of: %s)", s, strings.Join(Formats, ", "))
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Quiet  bool // Suppress decorative elements
	Color  bool // Enable colored output
}

// Formatter renders the values the commands print.
type Formatter interface {
	FormatPlan(plan *reconciler.Plan) error
	FormatSummary(summary *publisher.Summary) error
	FormatDefinitions(defs []job.Definition) error
	FormatRemoteState(state remote.State) error

	// Configuration
	SetOptions(options Options)
	GetOptions() Options
}

// New creates the formatter for options.Format. An empty format selects the table.
func New(w io.Writer, options Options) (Formatter, error) {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(w, options), nil
	case FormatYAML:
		return NewYAMLFormatter(w, options), nil
	case FormatXML:
		return NewXMLFormatter(w, options), nil
	case FormatTable, "":
		return NewTableFormatter(w, options), nil
	}
	return nil, fmt.Errorf("unknown output format %q", options.Format)
}

// sortedJobs returns the remote jobs ordered by name.
func sortedJobs(state remote.State) []remote.RemoteJob {
	jobs := make([]remote.RemoteJob, 0, len(state))
	for _, name := range state.Names() {
		j := state[name]
		j.Name = name
		jobs = append(jobs, j)
	}
	return jobs
}
