// Package publisher applies a reconciliation plan to the orchestrator.
//
// Actions run in three phases: deletes, then updates, then creates. Within a
// phase a bounded number of actions run concurrently. A failing action is
// recorded and the rest of the plan still runs. Nothing is rolled back.
//
// Apply lists the remote state once before the first phase. An action that the
// snapshot shows as already achieved is recorded as skipped, so running the
// same plan twice writes nothing the second time.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jobsmith/internal/reconciler"
	"jobsmith/internal/remote"
	"jobsmith/pkg/logging"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultConcurrency   = 4
	DefaultActionTimeout = 30 * time.Second
)

// Options bounds a publisher.
type Options struct {
	// Concurrency is the number of actions that may run at once within a phase.
	Concurrency int

	// ActionTimeout bounds each remote call. In-flight calls are not cancelled
	// by the run deadline, only by this timeout.
	ActionTimeout time.Duration

	// OnResult, when set, is called after every action completes. It may be
	// called from several goroutines at once.
	OnResult func(Result)
}

// Publisher applies plans through a remote client.
type Publisher struct {
	client  remote.Client
	opts    Options
	locks   *nameLocks
	metrics *Metrics
}

// New creates a publisher.
func New(client remote.Client, opts Options) *Publisher {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}
	return &Publisher{
		client:  client,
		opts:    opts,
		locks:   newNameLocks(),
		metrics: NewMetrics(),
	}
}

// Metrics returns the publisher's cumulative action counters.
func (p *Publisher) Metrics() *Metrics {
	return p.metrics
}

// Apply executes the plan. It refuses plans with conflicts or with more than
// one action per job. Per-action failures are reported in the summary, not as
// the returned error.
func (p *Publisher) Apply(ctx context.Context, plan *reconciler.Plan) (*Summary, error) {
	return p.ApplyWithRunID(ctx, uuid.NewString(), plan)
}

// ApplyWithRunID is Apply with a caller-chosen run id.
func (p *Publisher) ApplyWithRunID(ctx context.Context, runID string, plan *reconciler.Plan) (*Summary, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := plan.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	summary := &Summary{RunID: runID}

	snapshot, err := p.client.ListManagedJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote jobs: %w", err)
	}

	logging.Info("Publisher", "Run %s: applying %d deletes, %d updates, %d creates",
		runID, len(plan.Deletes), len(plan.Updates), len(plan.Creates))

	for _, phase := range [][]reconciler.Action{plan.Deletes, plan.Updates, plan.Creates} {
		summary.Results = append(summary.Results, p.runPhase(ctx, phase, snapshot)...)
	}

	summary.Duration = time.Since(start)
	logging.Info("Publisher", "Run %s finished in %s: %d succeeded, %d skipped, %d failed, %d aborted",
		runID, summary.Duration.Round(time.Millisecond),
		len(summary.Succeeded()), len(summary.Skipped()), len(summary.Failed()), len(summary.Aborted()))
	return summary, nil
}

// runPhase runs one phase and returns results in action order.
func (p *Publisher) runPhase(ctx context.Context, actions []reconciler.Action, snapshot remote.State) []Result {
	results := make([]Result, len(actions))
	sem := semaphore.NewWeighted(int64(p.opts.Concurrency))
	var g errgroup.Group

	for i, action := range actions {
		// Acquire fails once the run deadline passes; everything still queued is aborted.
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = p.record(Result{Action: action, Status: StatusAborted, Err: err})
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = p.record(p.run(ctx, action, snapshot))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Publisher) record(r Result) Result {
	if r.Err != nil {
		r.Error = r.Err.Error()
	}
	p.metrics.Record(r)
	if p.opts.OnResult != nil {
		p.opts.OnResult(r)
	}
	return r
}

// run executes a single action while holding the lock for its job name.
func (p *Publisher) run(ctx context.Context, action reconciler.Action, snapshot remote.State) Result {
	unlock := p.locks.Lock(action.Name)
	defer unlock()

	start := time.Now()
	result := Result{Action: action}

	if achieved(action, snapshot) {
		result.Status = StatusSkipped
		logging.Debug("Publisher", "Skipping %s: already achieved remotely", action)
		return result
	}

	if current, exists := snapshot[action.Name]; action.Type == reconciler.ActionDelete && exists && !current.Managed {
		result.Status = StatusFailed
		result.Err = &RemoteApplyError{Name: action.Name, Op: action.Type, Err: remote.ErrNotOwned}
		logging.Warn("Publisher", "Refusing to delete %s: owned by %q", action.Name, current.ManagedBy)
		return result
	}

	if err := ctx.Err(); err != nil {
		result.Status = StatusAborted
		result.Err = err
		return result
	}

	// The call runs to completion even if the run deadline passes meanwhile.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.ActionTimeout)
	defer cancel()

	var err error
	switch action.Type {
	case reconciler.ActionDelete:
		err = p.client.DeleteJob(callCtx, action.Name)
		if errors.Is(err, remote.ErrNotFound) {
			result.Status = StatusSkipped
			result.Duration = time.Since(start)
			return result
		}
	case reconciler.ActionCreate, reconciler.ActionUpdate:
		if action.Definition == nil {
			err = fmt.Errorf("no definition for %s", action)
			break
		}
		body := remote.BodyFor(*action.Definition)
		body.Adopt = action.Adopted
		err = p.client.CreateOrUpdateJob(callCtx, action.Name, body)
	default:
		err = fmt.Errorf("unknown action type %q", action.Type)
	}

	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusFailed
		result.Err = &RemoteApplyError{Name: action.Name, Op: action.Type, Err: err}
		logging.Error("Publisher", err, "Failed to %s job %s", action.Type, action.Name)
		return result
	}

	result.Status = StatusSucceeded
	logging.Info("Publisher", "%s job %s (%s)", pastTense(action.Type), action.Name, result.Duration.Round(time.Millisecond))
	return result
}

// achieved reports whether the snapshot already reflects the action.
func achieved(action reconciler.Action, snapshot remote.State) bool {
	current, exists := snapshot[action.Name]
	switch action.Type {
	case reconciler.ActionDelete:
		return !exists
	default:
		return exists && current.Managed && current.Hash == action.Hash
	}
}

func pastTense(t reconciler.ActionType) string {
	switch t {
	case reconciler.ActionCreate:
		return "Created"
	case reconciler.ActionUpdate:
		return "Updated"
	case reconciler.ActionDelete:
		return "Deleted"
	}
	return string(t)
}

// nameLocks hands out one mutex per job name.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newNameLocks() *nameLocks {
	return &nameLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock locks name and returns the matching unlock function.
func (n *nameLocks) Lock(name string) func() {
	n.mu.Lock()
	l, ok := n.locks[name]
	if !ok {
		l = &sync.Mutex{}
		n.locks[name] = l
	}
	n.mu.Unlock()

	l.Lock()
	return l.Unlock
}
