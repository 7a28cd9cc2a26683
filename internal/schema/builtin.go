package schema

import (
	"errors"
	"fmt"

	"jobsmith/internal/job"
)

// ViewTypeField marks a definition as a view rather than a job.
const ViewTypeField = "view-type"

// JobTypes are the job kinds the orchestrator accepts.
var JobTypes = []interface{}{"freestyle", "pipeline", "matrix", "multijob", "folder"}

// ListColumns are the column names a list view can show.
var ListColumns = []interface{}{
	"status", "weather", "job", "last-success", "last-failure",
	"last-duration", "build-button", "last-stable",
}

// DefaultJobSchema returns the schema applied to job definitions.
func DefaultJobSchema() *Schema {
	return &Schema{
		Name: "job",
		Fields: []Field{
			{Path: "name", Type: TypeString},
			{Path: "display-name", Type: TypeString},
			{Path: "job-type", Type: TypeString, Enum: JobTypes},
			{Path: "description", Type: TypeString},
			{Path: "disabled", Type: TypeBool},
			{Path: "concurrent", Type: TypeBool},
			{Path: "node", Type: TypeAny},
			{Path: "timeout", Type: TypeInt},
			{Path: "parameters", Type: TypeList},
			{Path: "properties", Type: TypeList},
			{Path: "wrappers", Type: TypeList},
			{Path: "builders", Type: TypeList},
			{Path: "publishers", Type: TypeList},
			{Path: "triggers", Type: TypeList},
			{Path: "scm", Type: TypeMap},
			{Path: "scm.type", Type: TypeString, Enum: []interface{}{"git", "svn", "none"}},
			{Path: "scm.url", Type: TypeString},
			{Path: "scm.branch", Type: TypeString},
			{Path: "scm.ref", Type: TypeString},
			{Path: "scm.shallow", Type: TypeBool},
		},
	}
}

// ListViewSchema returns the schema applied to list views.
func ListViewSchema() *Schema {
	return &Schema{
		Name: "list-view",
		Fields: []Field{
			{Path: "name", Type: TypeString, Required: true},
			{Path: ViewTypeField, Type: TypeString, Required: true, Enum: []interface{}{"list"}},
			{Path: "description", Type: TypeString},
			{Path: "filter-executors", Type: TypeBool},
			{Path: "filter-queue", Type: TypeBool},
			{Path: "job-name", Type: TypeList, Items: TypeString},
			{Path: "job-filters", Type: TypeMap},
			{Path: "job-filters.most-recent", Type: TypeMap},
			{Path: "job-filters.most-recent.max-to-include", Type: TypeInt},
			{Path: "job-filters.most-recent.check-start-time", Type: TypeBool},
			{Path: "job-filters.build-duration", Type: TypeMap},
			{Path: "job-filters.build-duration.match-type", Type: TypeString},
			{Path: "job-filters.build-duration.build-duration-type", Type: TypeString},
			{Path: "job-filters.build-duration.amount-type", Type: TypeString},
			{Path: "job-filters.build-duration.amount", Type: TypeInt},
			{Path: "job-filters.build-duration.less-than", Type: TypeBool},
			{Path: "job-filters.build-duration.build-duration-minutes", Type: TypeInt},
			{Path: "job-filters.build-trend", Type: TypeMap},
			{Path: "job-filters.build-trend.match-type", Type: TypeString},
			{Path: "job-filters.build-trend.build-trend-type", Type: TypeString},
			{Path: "job-filters.build-trend.amount-type", Type: TypeString},
			{Path: "job-filters.build-trend.amount", Type: TypeInt},
			{Path: "job-filters.build-trend.status", Type: TypeString},
			{Path: "job-filters.job-status", Type: TypeMap},
			{Path: "job-filters.job-status.match-type", Type: TypeString},
			{Path: "job-filters.job-status.unstable", Type: TypeBool},
			{Path: "job-filters.job-status.failed", Type: TypeBool},
			{Path: "job-filters.job-status.aborted", Type: TypeBool},
			{Path: "job-filters.job-status.disabled", Type: TypeBool},
			{Path: "job-filters.job-status.stable", Type: TypeBool},
			{Path: "columns", Type: TypeList, Enum: ListColumns},
			{Path: "regex", Type: TypeString},
			{Path: "recurse", Type: TypeBool},
			{Path: "status-filter", Type: TypeBool},
		},
	}
}

// IsView reports whether the definition describes a view.
func IsView(def job.Definition) bool {
	_, ok := def.Body[ViewTypeField]
	return ok
}

// Validator picks the schema for each definition and validates it.
type Validator struct {
	jobs  *Schema
	views *Schema
}

// NewValidator creates a validator. A nil job schema selects DefaultJobSchema.
func NewValidator(jobSchema *Schema) *Validator {
	if jobSchema == nil {
		jobSchema = DefaultJobSchema()
	}
	return &Validator{jobs: jobSchema, views: ListViewSchema()}
}

// Select returns the schema that applies to the definition.
func (v *Validator) Select(def job.Definition) *Schema {
	if IsView(def) {
		return v.views
	}
	return v.jobs
}

// Validate validates a single definition.
func (v *Validator) Validate(def job.Definition) error {
	return v.Select(def).Validate(def)
}

// ValidateAll validates every definition and returns all failures joined.
// Each failure is a *ValidationError.
func (v *Validator) ValidateAll(defs []job.Definition) error {
	var errs []error
	for _, def := range defs {
		if err := v.Validate(def); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d definitions failed validation: %w", len(errs), len(defs), errors.Join(errs...))
	}
	return nil
}
