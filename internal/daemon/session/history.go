package session

import (
	"github.com/grovetools/tabd/errors"
)

// HistoryCapacity bounds a tab's navigation history.
const HistoryCapacity = 10

// History is a bounded navigation history with a cursor.
// The cursor is -1 when empty and otherwise in [0, Len()-1].
type History struct {
	entries  []string
	position int
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{
		entries:  make([]string, 0, HistoryCapacity),
		position: -1,
	}
}

// Push records a newly loaded page. Forward entries past the cursor are
// discarded; at capacity the oldest entry is evicted.
func (h *History) Push(url string) {
	if h.position < len(h.entries)-1 {
		h.entries = h.entries[:h.position+1]
	}
	if len(h.entries) == HistoryCapacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:HistoryCapacity-1]
	}
	h.entries = append(h.entries, url)
	h.position = len(h.entries) - 1
}

// Back moves the cursor one entry back and returns the entry there.
func (h *History) Back() (string, error) {
	if h.position <= 0 {
		return "", errors.NoHistory("previous")
	}
	h.position--
	return h.entries[h.position], nil
}

// Forward moves the cursor one entry forward and returns the entry there.
func (h *History) Forward() (string, error) {
	if h.position >= len(h.entries)-1 {
		return "", errors.NoHistory("next")
	}
	h.position++
	return h.entries[h.position], nil
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// Position returns the cursor.
func (h *History) Position() int { return h.position }

// Entries returns a copy of the entries, oldest first.
func (h *History) Entries() []string {
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}
