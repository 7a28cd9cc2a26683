package reconciler

import (
	"sort"

	"jobsmith/internal/job"
	"jobsmith/internal/remote"
)

// Diff compares desired definitions with a remote snapshot. It never modifies
// its inputs.
func Diff(desired []job.Definition, state remote.State, opts Options) *Plan {
	plan := &Plan{
		Creates:   []Action{},
		Updates:   []Action{},
		Deletes:   []Action{},
		Unchanged: []string{},
	}

	wanted := make(map[string]bool, len(desired))
	for i := range desired {
		def := &desired[i]
		wanted[def.Name] = true
		hash := def.Hash()

		current, exists := state[def.Name]
		switch {
		case !exists:
			plan.Creates = append(plan.Creates, Action{Type: ActionCreate, Name: def.Name, Hash: hash, Definition: def})
		case !current.Managed && !opts.AdoptUnmanaged:
			plan.Conflicts = append(plan.Conflicts, Conflict{Name: def.Name, ManagedBy: current.ManagedBy, Source: def.Source})
		case !current.Managed:
			plan.Updates = append(plan.Updates, Action{
				Type: ActionUpdate, Name: def.Name, Hash: hash, RemoteHash: current.Hash, Adopted: true, Definition: def,
			})
		case current.Hash != hash:
			plan.Updates = append(plan.Updates, Action{
				Type: ActionUpdate, Name: def.Name, Hash: hash, RemoteHash: current.Hash, Definition: def,
			})
		default:
			plan.Unchanged = append(plan.Unchanged, def.Name)
		}
	}

	for _, name := range state.Names() {
		if wanted[name] {
			continue
		}
		current := state[name]
		if !current.Managed {
			plan.Skipped = append(plan.Skipped, name)
			continue
		}
		plan.Deletes = append(plan.Deletes, Action{Type: ActionDelete, Name: name, RemoteHash: current.Hash})
	}

	sort.Strings(plan.Unchanged)
	sort.Slice(plan.Conflicts, func(i, j int) bool { return plan.Conflicts[i].Name < plan.Conflicts[j].Name })
	return plan
}

// Simulate returns the remote state that applying the plan to state would
// produce. Conflicting names are left untouched.
func Simulate(plan *Plan, state remote.State) remote.State {
	next := state.Clone()
	for _, a := range plan.Deletes {
		delete(next, a.Name)
	}
	for _, a := range append(append([]Action{}, plan.Updates...), plan.Creates...) {
		next[a.Name] = remote.RemoteJob{Name: a.Name, Hash: a.Hash, Managed: true}
	}
	return next
}
