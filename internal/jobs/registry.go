// Package jobs runs the named analytics jobs under a per-job try-lock.
package jobs

import (
	"sort"
	"sync"
	"time"
)

// State is the externally visible status of one job.
type State struct {
	Running    bool       `json:"running"`
	RunID      string     `json:"run_id,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastResult *Result    `json:"last_result,omitempty"`
}

type slot struct {
	run   sync.Mutex
	state State
}

// Registry owns one lock and one state per job name. A second start of a
// running job fails immediately instead of waiting.
type Registry struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

func NewRegistry(names ...string) *Registry {
	r := &Registry{slots: make(map[string]*slot, len(names))}
	for _, name := range names {
		r.slots[name] = &slot{}
	}
	return r
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.slots[name]
	return ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.slots))
	for name := range r.slots {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TryStart marks name as running. The returned release records the result
// and frees the lock; calling it more than once has no further effect.
func (r *Registry) TryStart(name, runID string, now time.Time) (release func(Result), ok bool) {
	r.mu.RLock()
	s, exists := r.slots[name]
	r.mu.RUnlock()
	if !exists || !s.run.TryLock() {
		return nil, false
	}

	r.mu.Lock()
	started := now
	s.state.Running = true
	s.state.RunID = runID
	s.state.StartedAt = &started
	r.mu.Unlock()

	var once sync.Once
	return func(res Result) {
		once.Do(func() {
			r.mu.Lock()
			finished := res.FinishedAt
			if finished.IsZero() {
				finished = time.Now().UTC()
			}
			stored := res
			s.state.Running = false
			s.state.LastRunAt = &finished
			s.state.LastResult = &stored
			r.mu.Unlock()
			s.run.Unlock()
		})
	}, true
}

func (r *Registry) State(name string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.slots[name]
	if !ok {
		return State{}, false
	}
	return s.state, true
}

// Snapshot copies every job state.
func (r *Registry) Snapshot() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.slots))
	for name, s := range r.slots {
		out[name] = s.state
	}
	return out
}
