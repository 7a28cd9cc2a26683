// Package remote abstracts the orchestrator's job API.
//
// Every backend exposes the same three operations: list the jobs currently
// known to the orchestrator, create or replace a job, and delete a job. Jobs
// written by jobsmith are marked as managed with the configured managed-by
// value. Jobs without that marker are reported with Managed=false and are
// never deleted.
package remote

import (
	"context"
	"errors"
	"sort"

	"jobsmith/internal/job"
)

const (
	// LabelManagedBy marks a job as owned by a jobsmith installation.
	LabelManagedBy = "app.kubernetes.io/managed-by"
	// LabelJob marks a Kubernetes object as a job record.
	LabelJob = "jobsmith.io/job"
	// AnnotationHash carries the content hash of the stored body.
	AnnotationHash = "jobsmith.io/hash"
	// AnnotationTemplate carries the template id the job was rendered from.
	AnnotationTemplate = "jobsmith.io/template"
)

// ErrNotFound is returned when a job does not exist remotely.
var ErrNotFound = errors.New("job not found")

// ErrNotOwned is returned when a write or delete would touch a remote object
// that this installation does not own.
var ErrNotOwned = errors.New("remote object is not owned by this installation")

// Client is the orchestrator job API.
type Client interface {
	// ListManagedJobs returns all visible jobs. Jobs not owned by this
	// installation are included with Managed=false.
	ListManagedJobs(ctx context.Context) (State, error)

	// CreateOrUpdateJob writes the job, replacing any existing body.
	CreateOrUpdateJob(ctx context.Context, name string, body Body) error

	// DeleteJob removes the job. Deleting a missing job returns ErrNotFound.
	DeleteJob(ctx context.Context, name string) error
}

// Body is the payload stored for one job.
type Body struct {
	Template string         `json:"template,omitempty" yaml:"template,omitempty"`
	Hash     string         `json:"hash" yaml:"hash"`
	Content  map[string]any `json:"content" yaml:"content"`
	// Adopt allows the write to take over a job owned by someone else.
	Adopt bool `json:"-" yaml:"-"`
}

// BodyFor builds the remote payload of a definition.
func BodyFor(def job.Definition) Body {
	return Body{Template: def.Template, Hash: def.Hash(), Content: def.Body}
}

// RemoteJob is the remote view of one job.
type RemoteJob struct {
	Name      string `json:"name" yaml:"name"`
	Hash      string `json:"hash" yaml:"hash"`
	Managed   bool   `json:"managed" yaml:"managed"`
	ManagedBy string `json:"managedBy,omitempty" yaml:"managedBy,omitempty"`
}

// State is a snapshot of remote jobs keyed by name.
type State map[string]RemoteJob

// Names returns the job names in sorted order.
func (s State) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Managed returns only the jobs owned by this installation.
func (s State) Managed() State {
	out := make(State)
	for k, v := range s {
		if v.Managed {
			out[k] = v
		}
	}
	return out
}
