// Package session holds the per-tab navigation state owned by the daemon.
package session

import (
	"sort"
	"sync"
	"time"
)

// TabSession is the daemon-side state of one tab.
// Callers hold the session lock (Lock/Unlock) around reads and writes.
type TabSession struct {
	mu sync.Mutex

	TabID      int
	CurrentURL string
	History    *History
	LastActive time.Time
	Synced     bool
}

// Lock serializes commands for this tab.
func (t *TabSession) Lock() { t.mu.Lock() }

// Unlock releases the session lock.
func (t *TabSession) Unlock() { t.mu.Unlock() }

// Snapshot is a copy of a session safe to hand out.
type Snapshot struct {
	TabID      int       `json:"tab_id"`
	CurrentURL string    `json:"current_url"`
	History    []string  `json:"history"`
	Position   int       `json:"position"`
	LastActive time.Time `json:"last_active"`
	Synced     bool      `json:"synced"`
}

// Snapshot copies the session under its lock.
func (t *TabSession) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *TabSession) snapshotLocked() Snapshot {
	return Snapshot{
		TabID:      t.TabID,
		CurrentURL: t.CurrentURL,
		History:    t.History.Entries(),
		Position:   t.History.Position(),
		LastActive: t.LastActive,
		Synced:     t.Synced,
	}
}

// Registry maps tab identifiers to sessions. Sessions are created on first
// contact and live for the lifetime of the daemon.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]*TabSession
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int]*TabSession)}
}

// Acquire returns the session for tabID, creating it if this is the first
// contact. created is true exactly once per identifier.
func (r *Registry) Acquire(tabID int, now time.Time) (sess *TabSession, created bool) {
	r.mu.RLock()
	sess, ok := r.sessions[tabID]
	r.mu.RUnlock()
	if ok {
		return sess, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[tabID]; ok {
		return sess, false
	}
	sess = &TabSession{
		TabID:      tabID,
		History:    NewHistory(),
		LastActive: now,
	}
	r.sessions[tabID] = sess
	return sess, true
}

// Get returns the session for tabID if it exists.
func (r *Registry) Get(tabID int) (*TabSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[tabID]
	return sess, ok
}

// Len returns the number of known tabs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns snapshots of every session ordered by tab id.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	sessions := make([]*TabSession, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].TabID < sessions[j].TabID })
	result := make([]Snapshot, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sess.Snapshot())
	}
	return result
}
