package publisher

import (
	"sort"
	"sync"
	"time"

	"jobsmith/internal/reconciler"
	"jobsmith/pkg/logging"
)

// Metrics tracks publish outcomes per action type across runs.
type Metrics struct {
	mu sync.RWMutex

	perType map[reconciler.ActionType]*actionTypeMetrics
}

type actionTypeMetrics struct {
	Attempts      int64
	Successes     int64
	Failures      int64
	Skips         int64
	Aborts        int64
	TotalDuration time.Duration
	LastFailureAt time.Time
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{perType: make(map[reconciler.ActionType]*actionTypeMetrics)}
}

func (m *Metrics) getOrCreate(t reconciler.ActionType) *actionTypeMetrics {
	if metrics, exists := m.perType[t]; exists {
		return metrics
	}
	metrics := &actionTypeMetrics{}
	m.perType[t] = metrics
	return metrics
}

// Record adds one action result.
func (m *Metrics) Record(r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(r.Action.Type)
	switch r.Status {
	case StatusSucceeded:
		metrics.Attempts++
		metrics.Successes++
	case StatusFailed:
		metrics.Attempts++
		metrics.Failures++
		metrics.LastFailureAt = time.Now()
		logging.Debug("PublisherMetrics", "%s failures: %d", r.Action.Type, metrics.Failures)
	case StatusSkipped:
		metrics.Skips++
	case StatusAborted:
		metrics.Aborts++
	}
	metrics.TotalDuration += r.Duration
}

// ActionTypeMetricView is a read-only view of one action type's counters.
type ActionTypeMetricView struct {
	Type          reconciler.ActionType `json:"type"`
	Attempts      int64                 `json:"attempts"`
	Successes     int64                 `json:"successes"`
	Failures      int64                 `json:"failures"`
	Skips         int64                 `json:"skips"`
	Aborts        int64                 `json:"aborts"`
	FailureRate   float64               `json:"failure_rate"`
	TotalDuration time.Duration         `json:"total_duration"`
	LastFailureAt time.Time             `json:"last_failure_at,omitempty"`
}

// Snapshot returns the counters sorted by action type.
func (m *Metrics) Snapshot() []ActionTypeMetricView {
	m.mu.RLock()
	defer m.mu.RUnlock()

	views := make([]ActionTypeMetricView, 0, len(m.perType))
	for t, metrics := range m.perType {
		view := ActionTypeMetricView{
			Type:          t,
			Attempts:      metrics.Attempts,
			Successes:     metrics.Successes,
			Failures:      metrics.Failures,
			Skips:         metrics.Skips,
			Aborts:        metrics.Aborts,
			TotalDuration: metrics.TotalDuration,
			LastFailureAt: metrics.LastFailureAt,
		}
		if metrics.Attempts > 0 {
			view.FailureRate = float64(metrics.Failures) / float64(metrics.Attempts)
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Type < views[j].Type })
	return views
}
