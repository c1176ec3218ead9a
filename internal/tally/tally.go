package tally

import (
	"sort"
	"sync"
)

// Observation is one finished test as seen from a single issue.
type Observation struct {
	Title     string  `json:"title"`
	Outcome   Outcome `json:"outcome"`
	Narrative string  `json:"narrative,omitempty"`
	ReportURL string  `json:"reportUrl,omitempty"`
}

// Store accumulates observations per issue key for one suite run.
type Store interface {
	Record(key string, obs Observation)
	Aggregate(key string) (Outcome, bool)
	Observations(key string) []Observation
	Keys() []string
	Clear()
}

// Tally is the in-memory Store. The zero value is not usable; use New.
type Tally struct {
	mu      sync.RWMutex
	results map[string][]Observation
}

// New creates an empty Tally.
func New() *Tally {
	return &Tally{
		results: make(map[string][]Observation),
	}
}

// Record appends an observation to the key's sequence.
func (t *Tally) Record(key string, obs Observation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results[key] = append(t.results[key], obs)
}

// Aggregate returns the most severe outcome recorded for key.
// It returns false when the key has no observations this run.
func (t *Tally) Aggregate(key string) (Outcome, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	observations := t.results[key]
	outcomes := make([]Outcome, len(observations))
	for i, o := range observations {
		outcomes[i] = o.Outcome
	}
	return Reduce(outcomes)
}

// Observations returns a copy of everything recorded for key, in record order.
func (t *Tally) Observations(key string) []Observation {
	t.mu.RLock()
	defer t.mu.RUnlock()

	observations := t.results[key]
	if len(observations) == 0 {
		return nil
	}
	out := make([]Observation, len(observations))
	copy(out, observations)
	return out
}

// Keys returns every key referenced this run, sorted for stable iteration.
func (t *Tally) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.results))
	for k := range t.results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear drops all observations. Only called at suite start.
func (t *Tally) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = make(map[string][]Observation)
}
