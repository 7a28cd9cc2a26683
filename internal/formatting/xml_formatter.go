package formatting

import (
	"errors"
	"fmt"
	"io"

	"jobsmith/internal/jenkinsxml"
	"jobsmith/internal/job"
	"jobsmith/internal/publisher"
	"jobsmith/internal/reconciler"
	"jobsmith/internal/remote"
	"jobsmith/internal/schema"
)

// ErrXMLUnsupported is returned when XML output is requested for anything
// other than list-view definitions.
var ErrXMLUnsupported = errors.New("xml output is only available for list-view definitions")

// XMLFormatter renders list-view definitions as view XML.
type XMLFormatter struct {
	w       io.Writer
	options Options
}

// NewXMLFormatter creates a new XML formatter
func NewXMLFormatter(w io.Writer, options Options) Formatter {
	return &XMLFormatter{w: w, options: options}
}

// FormatDefinitions writes one XML document per view. Any non-view
// definition is an error and nothing after it is written.
func (f *XMLFormatter) FormatDefinitions(defs []job.Definition) error {
	for _, def := range defs {
		if !schema.IsView(def) {
			return fmt.Errorf("%s is not a list view: %w", def.Name, ErrXMLUnsupported)
		}
		out, err := jenkinsxml.RenderListView(def)
		if err != nil {
			return err
		}
		if _, err := f.w.Write(out); err != nil {
			return err
		}
	}
	return nil
}

func (f *XMLFormatter) FormatPlan(*reconciler.Plan) error { return ErrXMLUnsupported }
func (f *XMLFormatter) FormatSummary(*publisher.Summary) error { return ErrXMLUnsupported }
func (f *XMLFormatter) FormatRemoteState(remote.State) error { return ErrXMLUnsupported }

// SetOptions updates the formatter options
func (f *XMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *XMLFormatter) GetOptions() Options {
	return f.options
}
