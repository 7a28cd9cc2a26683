// Package pipeline wires the loader, renderer, expander, validator,
// reconciler and publisher into one run.
//
// A Run holds no global state. It is constructed from one Config and one
// remote client, used for a single compile/plan/apply cycle and discarded.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"jobsmith/internal/config"
	"jobsmith/internal/expand"
	"jobsmith/internal/job"
	"jobsmith/internal/publisher"
	"jobsmith/internal/reconciler"
	"jobsmith/internal/remote"
	"jobsmith/internal/schema"
	"jobsmith/internal/source"
	"jobsmith/internal/template"
	"jobsmith/pkg/logging"

	"github.com/google/uuid"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageLoad     Stage = "load"
	StageRender   Stage = "render"
	StageExpand   Stage = "expand"
	StageValidate Stage = "validate"
	StagePlan     Stage = "plan"
	StageApply    Stage = "apply"
)

// StageError wraps the error that stopped a run with the stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ErrNoSources is returned when neither arguments nor configuration name a source.
var ErrNoSources = errors.New("no job-configuration sources given")

// Compilation is the output of Compile.
type Compilation struct {
	Definitions []job.Definition
	Files       []string
	// Warnings lists suspicious but valid source constructs.
	Warnings []string
}

// Option customizes a Run.
type Option func(*Run)

// WithOnResult registers a callback for every applied action.
func WithOnResult(fn func(publisher.Result)) Option {
	return func(r *Run) { r.onResult = fn }
}

// Run is one compile/plan/apply cycle.
type Run struct {
	// ID identifies the run in logs and in the apply summary.
	ID string

	cfg      *config.Config
	client   remote.Client
	onResult func(publisher.Result)
}

// New creates a run with a fresh id.
func New(cfg *config.Config, client remote.Client, opts ...Option) *Run {
	r := &Run{ID: uuid.NewString(), cfg: cfg, client: client}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compile loads the sources, renders and expands every project and validates
// the result. Nothing is returned unless every stage succeeds. With no paths
// the configured sources are used.
func (r *Run) Compile(ctx context.Context, paths ...string) (*Compilation, error) {
	if len(paths) == 0 {
		paths = r.cfg.Sources
	}
	if len(paths) == 0 {
		return nil, &StageError{Stage: StageLoad, Err: ErrNoSources}
	}

	set, err := source.Load(paths...)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Err: err}
	}
	logging.Debug("Pipeline", "Run %s: loaded %d templates and %d projects from %d files",
		r.ID, len(set.Templates), len(set.Projects), len(set.Files))

	engine, err := template.New(set.Templates...)
	if err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}

	warnings := lint(set, engine)
	for _, w := range warnings {
		logging.Info("Pipeline", "%s", w)
	}

	defs, err := expand.NewExpander(engine, r.cfg.Expand.Parallelism).ExpandAll(ctx, set.Projects)
	if err != nil {
		return nil, &StageError{Stage: StageExpand, Err: err}
	}

	validator, err := r.validator()
	if err != nil {
		return nil, &StageError{Stage: StageValidate, Err: err}
	}
	if err := validator.ValidateAll(defs); err != nil {
		return nil, &StageError{Stage: StageValidate, Err: err}
	}

	logging.Info("Pipeline", "Run %s: compiled %d job definitions", r.ID, len(defs))
	return &Compilation{Definitions: defs, Files: set.Files, Warnings: warnings}, nil
}

func (r *Run) validator() (*schema.Validator, error) {
	if r.cfg.SchemaFile == "" {
		return schema.NewValidator(nil), nil
	}
	s, err := schema.LoadFile(r.cfg.SchemaFile)
	if err != nil {
		return nil, err
	}
	return schema.NewValidator(s), nil
}

// Plan takes one snapshot of the remote state and diffs the definitions
// against it.
func (r *Run) Plan(ctx context.Context, defs []job.Definition) (*reconciler.Plan, error) {
	state, err := r.client.ListManagedJobs(ctx)
	if err != nil {
		return nil, &StageError{Stage: StagePlan, Err: fmt.Errorf("failed to list remote jobs: %w", err)}
	}
	plan := reconciler.Diff(defs, state, reconciler.Options{AdoptUnmanaged: r.cfg.AdoptUnmanaged})
	logging.Info("Pipeline", "Run %s: plan has %d creates, %d updates, %d deletes, %d unchanged, %d conflicts",
		r.ID, len(plan.Creates), len(plan.Updates), len(plan.Deletes), len(plan.Unchanged), len(plan.Conflicts))
	return plan, nil
}

// Apply publishes the plan within the configured run timeout. Per-action
// failures are reported in the summary. The returned error covers refusals
// such as conflicts and a failed remote snapshot.
func (r *Run) Apply(ctx context.Context, plan *reconciler.Plan) (*publisher.Summary, error) {
	if r.cfg.Publish.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Publish.Timeout)
		defer cancel()
	}

	p := publisher.New(r.client, publisher.Options{
		Concurrency:   r.cfg.Publish.Concurrency,
		ActionTimeout: r.cfg.Publish.ActionTimeout,
		OnResult:      r.onResult,
	})
	summary, err := p.ApplyWithRunID(ctx, r.ID, plan)
	if err != nil {
		return nil, &StageError{Stage: StageApply, Err: err}
	}
	for _, m := range p.Metrics().Snapshot() {
		logging.Debug("Pipeline", "Run %s: %s attempts=%d failures=%d skips=%d aborts=%d failure_rate=%.2f total=%s",
			r.ID, m.Type, m.Attempts, m.Failures, m.Skips, m.Aborts, m.FailureRate, m.TotalDuration)
	}
	return summary, nil
}
