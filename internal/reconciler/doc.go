// Package reconciler computes the changes needed to bring the orchestrator's
// job set in line with the desired definitions.
//
// Diff is a pure function of the desired definitions and a remote snapshot:
//
//   - desired but not remote: create
//   - desired and remote with a different hash: update
//   - remote, managed and not desired: delete
//   - desired and remote with the same hash: unchanged
//
// Remote jobs that are not managed by this installation are never deleted.
// When a desired job has the same name as an unmanaged remote job the plan
// records a conflict and carries no action for that name, unless
// Options.AdoptUnmanaged is set, in which case the job becomes an update and
// is taken over.
//
// Creates and updates follow the order of the desired definitions. Deletes,
// unchanged names and conflicts are sorted by name, so a plan is reproducible
// for the same inputs.
package reconciler
