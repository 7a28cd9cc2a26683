package reconciler

import (
	"fmt"
	"strings"

	"jobsmith/internal/job"
)

// ActionType is the kind of change an Action makes.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionDelete ActionType = "delete"
)

// Action is one remote change.
type Action struct {
	Type ActionType `json:"type" yaml:"type"`
	Name string     `json:"name" yaml:"name"`

	// Hash is the desired content hash. Empty for deletes.
	Hash string `json:"hash,omitempty" yaml:"hash,omitempty"`

	// RemoteHash is the hash currently stored remotely. Empty for creates.
	RemoteHash string `json:"remoteHash,omitempty" yaml:"remoteHash,omitempty"`

	// Adopted marks an update that takes over an unmanaged remote job.
	Adopted bool `json:"adopted,omitempty" yaml:"adopted,omitempty"`

	// Definition is the desired job. Nil for deletes.
	Definition *job.Definition `json:"-" yaml:"-"`
}

func (a Action) String() string {
	return fmt.Sprintf("%s %s", a.Type, a.Name)
}

// Conflict is a desired job whose name is taken by a job this installation
// does not manage.
type Conflict struct {
	Name      string `json:"name" yaml:"name"`
	ManagedBy string `json:"managedBy,omitempty" yaml:"managedBy,omitempty"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
}

// Options changes how Diff treats unmanaged remote jobs.
type Options struct {
	// AdoptUnmanaged turns name conflicts into updates.
	AdoptUnmanaged bool
}

// Plan is the ordered set of remote changes for one run.
type Plan struct {
	Creates []Action `json:"creates" yaml:"creates"`
	Updates []Action `json:"updates" yaml:"updates"`
	Deletes []Action `json:"deletes" yaml:"deletes"`

	// Unchanged lists desired jobs already up to date.
	Unchanged []string `json:"unchanged" yaml:"unchanged"`

	// Conflicts lists desired jobs blocked by unmanaged remote jobs.
	Conflicts []Conflict `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`

	// Skipped lists unmanaged remote jobs left alone.
	Skipped []string `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Actions returns all actions in execution order: deletes, updates, creates.
func (p *Plan) Actions() []Action {
	out := make([]Action, 0, len(p.Deletes)+len(p.Updates)+len(p.Creates))
	out = append(out, p.Deletes...)
	out = append(out, p.Updates...)
	out = append(out, p.Creates...)
	return out
}

// IsEmpty reports whether the plan changes nothing and has no conflicts.
func (p *Plan) IsEmpty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0 && len(p.Conflicts) == 0
}

// Names returns the names of every job the plan acts on, in execution order.
func (p *Plan) Names() []string {
	actions := p.Actions()
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	return names
}

// Validate checks that each job name has at most one action and that no
// conflicting name is acted on.
func (p *Plan) Validate() error {
	seen := make(map[string]ActionType)
	for _, a := range p.Actions() {
		if prev, dup := seen[a.Name]; dup {
			return fmt.Errorf("job %q has more than one action in the plan (%s and %s)", a.Name, prev, a.Type)
		}
		seen[a.Name] = a.Type
	}
	for _, c := range p.Conflicts {
		if t, acted := seen[c.Name]; acted {
			return fmt.Errorf("job %q is a conflict but also has a %s action", c.Name, t)
		}
	}
	return nil
}

// Err returns a *ConflictError when the plan has conflicts.
func (p *Plan) Err() error {
	if len(p.Conflicts) == 0 {
		return nil
	}
	names := make([]string, len(p.Conflicts))
	for i, c := range p.Conflicts {
		names[i] = c.Name
	}
	return &ConflictError{Names: names}
}

// ConflictError is returned when a plan cannot be applied because desired
// jobs collide with unmanaged remote jobs.
type ConflictError struct {
	Names []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%d desired jobs collide with unmanaged remote jobs: %s (set adoptUnmanaged to take them over)",
		len(e.Names), strings.Join(e.Names, ", "))
}
