package video

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Tracker counts retrieval attempts per alarm so the sweeper can stop
// hammering the camera platform for footage that will never appear. Counts
// survive restarts through a small JSON file next to the worker.
type Tracker struct {
	mu      sync.Mutex
	path    string
	entries map[string]*trackerEntry
}

type trackerEntry struct {
	RetryCount   int       `json:"retryCount"`
	FirstRetryAt time.Time `json:"firstRetryAt"`
	LastRetryAt  time.Time `json:"lastRetryAt"`
}

// NewTracker loads the persisted state when present. A missing or corrupt
// file starts an empty tracker rather than failing the worker.
func NewTracker(path string) *Tracker {
	t := &Tracker{path: path, entries: map[string]*trackerEntry{}}
	data, err := os.ReadFile(path)
	if err != nil {
		return t
	}
	var loaded map[string]*trackerEntry
	if err := json.Unmarshal(data, &loaded); err != nil {
		return t
	}
	t.entries = loaded
	return t
}

func (t *Tracker) Count(guid string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[guid]; ok {
		return e.RetryCount
	}
	return 0
}

// Increment records one more attempt and returns the new count.
func (t *Tracker) Increment(guid string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	e, ok := t.entries[guid]
	if !ok {
		e = &trackerEntry{FirstRetryAt: now}
		t.entries[guid] = e
	}
	e.RetryCount++
	e.LastRetryAt = now
	t.persistLocked()
	return e.RetryCount
}

// Clear forgets an alarm, typically after its video finally arrived or when
// an operator asks for a fresh budget of attempts.
func (t *Tracker) Clear(guid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[guid]; !ok {
		return
	}
	delete(t.entries, guid)
	t.persistLocked()
}

// Prune drops entries idle longer than maxIdle and returns how many were
// removed.
func (t *Tracker) Prune(maxIdle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().UTC().Add(-maxIdle)
	removed := 0
	for guid, e := range t.entries {
		if e.LastRetryAt.Before(cutoff) {
			delete(t.entries, guid)
			removed++
		}
	}
	if removed > 0 {
		t.persistLocked()
	}
	return removed
}

func (t *Tracker) persistLocked() {
	if t.path == "" {
		return
	}
	data, err := json.MarshalIndent(t.entries, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(t.path, data, 0o644)
}
