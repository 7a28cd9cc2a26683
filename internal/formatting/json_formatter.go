package formatting

import (
	"encoding/json"
	"fmt"
	"io"

	"jobsmith/internal/job"
	"jobsmith/internal/publisher"
	"jobsmith/internal/reconciler"
	"jobsmith/internal/remote"
)

// JSONFormatter provides JSON output formatting
type JSONFormatter struct {
	w       io.Writer
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer, options Options) Formatter {
	return &JSONFormatter{w: w, options: options}
}

// FormatPlan writes the plan as a JSON object.
func (f *JSONFormatter) FormatPlan(plan *reconciler.Plan) error {
	return f.encode(normalizePlan(plan))
}

// FormatSummary writes the run summary as a JSON object.
func (f *JSONFormatter) FormatSummary(summary *publisher.Summary) error {
	return f.encode(summary)
}

// FormatDefinitions writes the definitions as a JSON array.
func (f *JSONFormatter) FormatDefinitions(defs []job.Definition) error {
	if defs == nil {
		defs = []job.Definition{}
	}
	return f.encode(defs)
}

// FormatRemoteState writes the remote jobs as a JSON array ordered by name.
func (f *JSONFormatter) FormatRemoteState(state remote.State) error {
	return f.encode(sortedJobs(state))
}

// SetOptions updates the formatter options
func (f *JSONFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *JSONFormatter) GetOptions() Options {
	return f.options
}

func (f *JSONFormatter) encode(v interface{}) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// normalizePlan replaces nil lists with empty ones so scripts always see arrays.
func normalizePlan(plan *reconciler.Plan) *reconciler.Plan {
	out := *plan
	if out.Creates == nil {
		out.Creates = []reconciler.Action{}
	}
	if out.Updates == nil {
		out.Updates = []reconciler.Action{}
	}
	if out.Deletes == nil {
		out.Deletes = []reconciler.Action{}
	}
	if out.Unchanged == nil {
		out.Unchanged = []string{}
	}
	return &out
}
