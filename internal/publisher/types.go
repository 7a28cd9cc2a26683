package publisher

import (
	"errors"
	"fmt"
	"time"

	"jobsmith/internal/reconciler"
)

// Status is the outcome of one action.
type Status string

const (
	// StatusSucceeded means the remote call completed.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the remote call returned an error.
	StatusFailed Status = "failed"
	// StatusSkipped means the remote already matched and nothing was written.
	StatusSkipped Status = "skipped"
	// StatusAborted means the run deadline passed before the action started.
	StatusAborted Status = "aborted"
)

// Result records what happened to one action.
type Result struct {
	Action   reconciler.Action `json:"action" yaml:"action"`
	Status   Status            `json:"status" yaml:"status"`
	Err      error             `json:"-" yaml:"-"`
	Error    string            `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration     `json:"duration" yaml:"duration"`
}

// Summary is the outcome of one Apply call.
type Summary struct {
	RunID    string        `json:"runID" yaml:"runID"`
	Results  []Result      `json:"results" yaml:"results"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

func (s *Summary) filter(status Status) []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Succeeded returns the actions that were written.
func (s *Summary) Succeeded() []Result { return s.filter(StatusSucceeded) }

// Failed returns the actions whose remote call failed.
func (s *Summary) Failed() []Result { return s.filter(StatusFailed) }

// Skipped returns the actions that were already achieved remotely.
func (s *Summary) Skipped() []Result { return s.filter(StatusSkipped) }

// Aborted returns the actions never started because the run deadline passed.
func (s *Summary) Aborted() []Result { return s.filter(StatusAborted) }

// OK reports whether every action succeeded or was skipped.
func (s *Summary) OK() bool {
	return len(s.Failed()) == 0 && len(s.Aborted()) == 0
}

// Err joins every failure of the run, or returns nil.
func (s *Summary) Err() error {
	var errs []error
	for _, r := range s.Failed() {
		errs = append(errs, r.Err)
	}
	if aborted := s.Aborted(); len(aborted) > 0 {
		errs = append(errs, fmt.Errorf("%d actions aborted: run deadline exceeded", len(aborted)))
	}
	return errors.Join(errs...)
}

// RemoteApplyError reports a failed remote call for one job.
type RemoteApplyError struct {
	Name string
	Op   reconciler.ActionType
	Err  error
}

func (e *RemoteApplyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *RemoteApplyError) Unwrap() error {
	return e.Err
}
