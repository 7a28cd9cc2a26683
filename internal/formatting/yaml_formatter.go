package formatting

import (
	"fmt"
	"io"

	"jobsmith/internal/job"
	"jobsmith/internal/publisher"
	"jobsmith/internal/reconciler"
	"jobsmith/internal/remote"

	"sigs.k8s.io/yaml"
)

// YAMLFormatter provides YAML output formatting. Values go through their JSON
// tags, so YAML and JSON output carry the same field names.
type YAMLFormatter struct {
	w       io.Writer
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(w io.Writer, options Options) Formatter {
	return &YAMLFormatter{w: w, options: options}
}

// FormatPlan writes the plan as a YAML document.
func (f *YAMLFormatter) FormatPlan(plan *reconciler.Plan) error {
	return f.encode(normalizePlan(plan))
}

// FormatSummary writes the run summary as a YAML document.
func (f *YAMLFormatter) FormatSummary(summary *publisher.Summary) error {
	return f.encode(summary)
}

// FormatDefinitions writes one YAML document per definition.
func (f *YAMLFormatter) FormatDefinitions(defs []job.Definition) error {
	for i, def := range defs {
		if i > 0 {
			if _, err := io.WriteString(f.w, "---\n"); err != nil {
				return err
			}
		}
		if err := f.encode(def); err != nil {
			return fmt.Errorf("job %s: %w", def.Name, err)
		}
	}
	return nil
}

// FormatRemoteState writes the remote jobs as a YAML list ordered by name.
func (f *YAMLFormatter) FormatRemoteState(state remote.State) error {
	return f.encode(sortedJobs(state))
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options {
	return f.options
}

func (f *YAMLFormatter) encode(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	_, err = f.w.Write(data)
	return err
}
