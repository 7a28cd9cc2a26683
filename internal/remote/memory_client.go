package remote

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Op names a remote operation.
type Op string

const (
	OpList   Op = "list"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpWrite matches both creates and updates when injecting failures.
	OpWrite Op = "write"
)

type memoryJob struct {
	body      Body
	managedBy string
}

// MemoryClient is an in-process orchestrator. It backs dry runs and tests and
// can inject failures and latency per job.
type MemoryClient struct {
	mu        sync.Mutex
	managedBy string
	jobs      map[string]memoryJob
	failures  map[string]error
	delay     time.Duration
	calls     []string

	inFlight    int
	maxInFlight int
}

// NewMemoryClient creates an empty in-memory orchestrator.
func NewMemoryClient(managedBy string) *MemoryClient {
	return &MemoryClient{
		managedBy: managedBy,
		jobs:      make(map[string]memoryJob),
		failures:  make(map[string]error),
	}
}

// Seed stores a job directly. An empty managedBy makes the job unmanaged.
func (m *MemoryClient) Seed(name, hash, managedBy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[name] = memoryJob{body: Body{Hash: hash}, managedBy: managedBy}
}

// SeedState stores every job of a state snapshot.
func (m *MemoryClient) SeedState(state State) {
	for name, j := range state {
		owner := ""
		if j.Managed {
			owner = m.managedBy
			if j.ManagedBy != "" {
				owner = j.ManagedBy
			}
		}
		m.Seed(name, j.Hash, owner)
	}
}

// FailOn makes the given operation on name return err. An empty name matches
// every job.
func (m *MemoryClient) FailOn(op Op, name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[string(op)+"/"+name] = err
}

// SetDelay makes every write and delete take at least d.
func (m *MemoryClient) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns the recorded operations as "op name" strings in call order.
func (m *MemoryClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MaxInFlight returns the highest number of concurrent write or delete calls seen.
func (m *MemoryClient) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// Get returns the stored body of a job.
func (m *MemoryClient) Get(name string) (Body, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[name]
	return j.body, ok
}

// ListManagedJobs implements Client.
func (m *MemoryClient) ListManagedJobs(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(OpList, ""); err != nil {
		return nil, err
	}

	state := make(State, len(m.jobs))
	for name, j := range m.jobs {
		state[name] = RemoteJob{
			Name:      name,
			Hash:      j.body.Hash,
			Managed:   j.managedBy != "" && j.managedBy == m.managedBy,
			ManagedBy: j.managedBy,
		}
	}
	return state, nil
}

// CreateOrUpdateJob implements Client.
func (m *MemoryClient) CreateOrUpdateJob(ctx context.Context, name string, body Body) error {
	op := OpCreate
	m.mu.Lock()
	existing, exists := m.jobs[name]
	m.mu.Unlock()
	if exists {
		op = OpUpdate
		if existing.managedBy != m.managedBy && !body.Adopt {
			return fmt.Errorf("write %s: %w", name, ErrNotOwned)
		}
	}

	return m.do(ctx, op, name, func() {
		m.jobs[name] = memoryJob{body: body, managedBy: m.managedBy}
	})
}

// DeleteJob implements Client.
func (m *MemoryClient) DeleteJob(ctx context.Context, name string) error {
	m.mu.Lock()
	existing, exists := m.jobs[name]
	m.mu.Unlock()
	if !exists {
		return fmt.Errorf("delete %s: %w", name, ErrNotFound)
	}
	if existing.managedBy != m.managedBy {
		return fmt.Errorf("delete %s: %w", name, ErrNotOwned)
	}

	return m.do(ctx, OpDelete, name, func() {
		delete(m.jobs, name)
	})
}

func (m *MemoryClient) do(ctx context.Context, op Op, name string, apply func()) error {
	m.mu.Lock()
	m.calls = append(m.calls, fmt.Sprintf("%s %s", op, name))
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(op, name); err != nil {
		return err
	}
	apply()
	return nil
}

// failure must be called with m.mu held.
func (m *MemoryClient) failure(op Op, name string) error {
	keys := []string{string(op) + "/" + name, string(op) + "/"}
	if op == OpCreate || op == OpUpdate {
		keys = append(keys, string(OpWrite)+"/"+name, string(OpWrite)+"/")
	}
	for _, k := range keys {
		if err, ok := m.failures[k]; ok {
			return err
		}
	}
	return nil
}
