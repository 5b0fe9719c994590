package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agenthive/hive/internal/model"
)

// Registry is the shared-ownership arena of agent records, keyed by
// agent id. It is injected into both the matcher and the tracker so
// each can be tested with a synthetic catalog.
//
// Identity fields never change after construction. Statistics fields
// (success rate, average time) are folded in by the tracker via
// ApplyStats; CurrentWorkload is maintained by the orchestrator via
// Acquire/Release.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*model.AgentRecord
}

// NewRegistry builds a registry from a loaded catalog.
// Records with unknown success history start at the neutral prior (0.5)
// and the configured default task time so untested agents are not
// unfairly penalized by the matcher.
func NewRegistry(records []model.AgentRecord, defaultAvgTaskTime float64) (*Registry, error) {
	agents := make(map[string]*model.AgentRecord, len(records))
	for _, rec := range records {
		if _, dup := agents[rec.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate agent id %q", rec.ID)
		}
		r := rec
		if r.HistoricalSuccessRate == 0 {
			r.HistoricalSuccessRate = 0.5
		}
		if r.AverageTaskTimeSeconds == 0 {
			r.AverageTaskTimeSeconds = defaultAvgTaskTime
		}
		agents[r.ID] = &r
	}
	return &Registry{agents: agents}, nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (model.AgentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.agents[id]
	if !ok {
		return model.AgentRecord{}, false
	}
	return *rec, true
}

// Snapshot returns copies of every record, sorted by id for
// deterministic iteration.
func (r *Registry) Snapshot() []model.AgentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.AgentRecord, 0, len(r.agents))
	for _, rec := range r.agents {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// ApplyStats folds recomputed aggregate statistics into the record.
// Unknown ids are ignored: execution rows may reference agents that
// have since left the catalog, and statistics for them are harmless.
func (r *Registry) ApplyStats(id string, successRate, avgTaskTimeSeconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[id]
	if !ok {
		return
	}
	rec.HistoricalSuccessRate = successRate
	rec.AverageTaskTimeSeconds = avgTaskTimeSeconds
}

// Acquire increments the in-flight task count for id.
func (r *Registry) Acquire(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[id]
	if !ok {
		return false
	}
	rec.CurrentWorkload++
	return true
}

// Release decrements the in-flight task count for id, clamped at zero.
func (r *Registry) Release(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.agents[id]
	if !ok {
		return false
	}
	if rec.CurrentWorkload > 0 {
		rec.CurrentWorkload--
	}
	return true
}
