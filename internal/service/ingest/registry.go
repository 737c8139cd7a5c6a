package ingest

import (
	"sort"
	"sync"
	"time"
)

// ActiveRun describes a run currently in flight.
type ActiveRun struct {
	RunID     string
	StoreID   int64
	StoreName string
	StartedAt time.Time
}

// Registry keeps track of in-flight runs and the last finished report per
// store. It backs the status endpoint and is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	active      map[int64]ActiveRun
	lastReports map[int64]StoreReport
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{
		active:      make(map[int64]ActiveRun),
		lastReports: make(map[int64]StoreReport),
	}
}

// Begin records a run as in flight.
func (r *Registry) Begin(run ActiveRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[run.StoreID] = run
}

// Finish removes the store's in-flight entry and archives the report.
func (r *Registry) Finish(report StoreReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, report.StoreID)
	r.lastReports[report.StoreID] = report
}

// Active returns the in-flight runs ordered by start time.
func (r *Registry) Active() []ActiveRun {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]ActiveRun, 0, len(r.active))
	for _, run := range r.active {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
	return runs
}

// LastReports returns the most recent finished report of every store,
// ordered by store ID.
func (r *Registry) LastReports() []StoreReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reports := make([]StoreReport, 0, len(r.lastReports))
	for _, report := range r.lastReports {
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StoreID < reports[j].StoreID
	})
	return reports
}
