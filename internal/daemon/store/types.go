// Package store provides the coordination store shared by every tab of the browser daemon.
package store

import (
	"time"
)

const (
	// MaxTabs is the number of tab slots; a tab occupies slot id mod MaxTabs.
	MaxTabs = 10
	// MaxBookmarks bounds the bookmark list.
	MaxBookmarks = 50
	// BroadcastSlots is the size of the broadcast ring.
	BroadcastSlots = 10
	// MaxURLLength bounds urls, titles and the last loaded url.
	MaxURLLength = 256
	// MaxPayloadLength bounds a broadcast payload.
	MaxPayloadLength = 1024
)

// Bookmark is a shared bookmark. Deleting one only clears Active.
type Bookmark struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// IndexedBookmark pairs a bookmark with its 0-based position in the raw list.
type IndexedBookmark struct {
	Index int `json:"index"`
	Bookmark
}

// EventKind classifies a broadcast.
type EventKind string

const (
	EventBookmarkAdded   EventKind = "bookmark_added"
	EventBookmarkRemoved EventKind = "bookmark_removed"
	EventNewTab          EventKind = "new_tab"
	EventTabClosed       EventKind = "tab_closed"
	EventPageLoaded      EventKind = "page_loaded"
	EventMessage         EventKind = "message"
)

// BroadcastEvent is one occupant of a broadcast ring slot.
type BroadcastEvent struct {
	ID        string        `json:"id"`
	Seq       int           `json:"seq"`
	Kind      EventKind     `json:"kind"`
	SenderTab int           `json:"sender_tab"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   string        `json:"payload"`
	Delivered [MaxTabs]bool `json:"-"`
}

// Empty reports whether the slot has never been written.
func (e BroadcastEvent) Empty() bool {
	return e.Timestamp.IsZero()
}

// Stats is a read-only snapshot of the global counters.
type Stats struct {
	ActiveTabs       int       `json:"active_tabs"`
	RegisteredTabs   int       `json:"registered_tabs"`
	TotalPagesLoaded int       `json:"total_pages_loaded"`
	LastLoadedURL    string    `json:"last_loaded_url"`
	LastActivity     time.Time `json:"last_activity"`
	BookmarkCount    int       `json:"bookmark_count"`
	BroadcastCount   int       `json:"broadcast_count"`
}

// Update is sent to subscribers after the store changes.
type Update struct {
	Kind EventKind
	Seq  int
}

// Slot maps a tab identifier onto its slot.
func Slot(tabID int) int {
	s := tabID % MaxTabs
	if s < 0 {
		s += MaxTabs
	}
	return s
}

// truncate bounds s to max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
