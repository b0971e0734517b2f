package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/tabd/errors"
)

// Store is the coordination store for the browser daemon.
//
// Every field below mu is read and written only between Acquire and Release.
// The lock never times out: a holder that never releases wedges the store,
// which Health reports as degraded once the hold exceeds the configured limit.
type Store struct {
	mu            sync.Mutex
	heldSince     atomic.Int64 // unix nanos of the current acquisition, 0 when free
	degradedAfter atomic.Int64
	now           func() time.Time

	tabActive      [MaxTabs]bool
	tabLastSeen    [MaxTabs]time.Time
	activeTabCount int

	bookmarks []Bookmark

	broadcasts     [BroadcastSlots]BroadcastEvent
	broadcastCount int

	totalPagesLoaded int
	lastLoadedURL    string
	lastActivity     time.Time

	subsMu      sync.Mutex
	subscribers map[chan Update]struct{}
}

// New creates a zero-initialized store.
func New(degradedAfter time.Duration) *Store {
	s := &Store{
		now:         time.Now,
		bookmarks:   make([]Bookmark, 0, MaxBookmarks),
		subscribers: make(map[chan Update]struct{}),
	}
	s.degradedAfter.Store(int64(degradedAfter))
	s.lastActivity = s.now()
	return s
}

// Acquire blocks until the store lock is held.
func (s *Store) Acquire() {
	s.mu.Lock()
	s.heldSince.Store(s.now().UnixNano())
}

// Release gives up the store lock.
func (s *Store) Release() {
	s.heldSince.Store(0)
	s.mu.Unlock()
}

// SetDegradedAfter changes the hold time after which Health fails.
func (s *Store) SetDegradedAfter(d time.Duration) {
	s.degradedAfter.Store(int64(d))
}

// Health returns a DEGRADED error while the lock has been held longer than
// the configured limit. It never takes the lock itself.
func (s *Store) Health() error {
	since := s.heldSince.Load()
	limit := time.Duration(s.degradedAfter.Load())
	if since == 0 || limit <= 0 {
		return nil
	}
	held := s.now().Sub(time.Unix(0, since))
	if held > limit {
		return errors.Degraded(held)
	}
	return nil
}

// RegisterTab handles the first contact of a tab: it marks the slot active,
// counts the tab and announces it with a NewTab broadcast.
func (s *Store) RegisterTab(tabID int, now time.Time) {
	slot := Slot(tabID)

	s.Acquire()
	s.tabActive[slot] = true
	s.tabLastSeen[slot] = now
	s.activeTabCount++
	s.lastActivity = now
	s.Release()

	s.Broadcast(EventNewTab, tabID, "New tab opened")
}

// TouchTab refreshes the last-seen time the sweeper compares against.
func (s *Store) TouchTab(tabID int, now time.Time) {
	s.Acquire()
	defer s.Release()
	s.tabLastSeen[Slot(tabID)] = now
}

// SetTabActive sets the liveness flag of a slot.
func (s *Store) SetTabActive(slot int, active bool) {
	s.Acquire()
	defer s.Release()
	s.tabActive[Slot(slot)] = active
	if active {
		s.tabLastSeen[Slot(slot)] = s.now()
	}
}

// TabActive reports the liveness flag of a slot.
func (s *Store) TabActive(slot int) bool {
	s.Acquire()
	defer s.Release()
	return s.tabActive[Slot(slot)]
}

// ActiveCount returns the number of slots currently flagged active.
func (s *Store) ActiveCount() int {
	s.Acquire()
	defer s.Release()
	return s.countActiveLocked()
}

func (s *Store) countActiveLocked() int {
	n := 0
	for _, active := range s.tabActive {
		if active {
			n++
		}
	}
	return n
}

// AddBookmark appends a bookmark and broadcasts BookmarkAdded. It returns the
// 0-based index of the new bookmark.
func (s *Store) AddBookmark(url, title string, senderTab int) (int, error) {
	url = truncate(url, MaxURLLength-1)
	title = truncate(title, MaxURLLength-1)

	s.Acquire()
	if len(s.bookmarks) >= MaxBookmarks {
		s.Release()
		return -1, errors.CapacityExceeded("bookmark list", MaxBookmarks)
	}
	s.bookmarks = append(s.bookmarks, Bookmark{URL: url, Title: title, Active: true})
	index := len(s.bookmarks) - 1
	s.Release()

	// Broadcasting takes the lock again, so it must run after Release.
	s.Broadcast(EventBookmarkAdded, senderTab, bookmarkPayload(title, url))
	return index, nil
}

// RemoveBookmark marks the bookmark at a 0-based index inactive and broadcasts
// BookmarkRemoved. The list is never compacted so indexes stay stable.
// Removing an already inactive bookmark returns it with an ALREADY_INACTIVE
// error and broadcasts nothing.
func (s *Store) RemoveBookmark(index int, senderTab int) (Bookmark, error) {
	s.Acquire()
	if index < 0 || index >= len(s.bookmarks) {
		count := len(s.bookmarks)
		s.Release()
		return Bookmark{}, errors.InvalidIndex(index+1, count)
	}
	b := s.bookmarks[index]
	if !b.Active {
		s.Release()
		return b, errors.AlreadyInactive(index + 1)
	}
	s.bookmarks[index].Active = false
	s.Release()

	s.Broadcast(EventBookmarkRemoved, senderTab, bookmarkPayload(b.Title, b.URL))
	return b, nil
}

// Bookmark returns the active bookmark at a 0-based index of the raw list.
func (s *Store) Bookmark(index int) (Bookmark, error) {
	s.Acquire()
	defer s.Release()
	if index < 0 || index >= len(s.bookmarks) || !s.bookmarks[index].Active {
		return Bookmark{}, errors.InvalidIndex(index+1, len(s.bookmarks))
	}
	return s.bookmarks[index], nil
}

// ActiveBookmarks returns a snapshot of active bookmarks with their raw indexes.
func (s *Store) ActiveBookmarks() []IndexedBookmark {
	s.Acquire()
	defer s.Release()
	result := make([]IndexedBookmark, 0, len(s.bookmarks))
	for i, b := range s.bookmarks {
		if b.Active {
			result = append(result, IndexedBookmark{Index: i, Bookmark: b})
		}
	}
	return result
}

// BookmarkCount returns the number of bookmark slots used, deleted ones included.
func (s *Store) BookmarkCount() int {
	s.Acquire()
	defer s.Release()
	return len(s.bookmarks)
}

// RecordPageLoad updates the global page statistics.
func (s *Store) RecordPageLoad(url string, now time.Time) {
	s.Acquire()
	defer s.Release()
	s.totalPagesLoaded++
	s.lastLoadedURL = truncate(url, MaxURLLength-1)
	s.lastActivity = now
}

// SweepInactivity clears the active flag of every slot not seen within
// threshold and returns the cleared slots.
func (s *Store) SweepInactivity(now time.Time, threshold time.Duration) []int {
	s.Acquire()
	defer s.Release()

	var cleared []int
	for slot := range s.tabActive {
		if !s.tabActive[slot] {
			continue
		}
		if now.Sub(s.tabLastSeen[slot]) > threshold {
			s.tabActive[slot] = false
			cleared = append(cleared, slot)
		}
	}
	s.lastActivity = now
	return cleared
}

// Stats returns a snapshot of the global counters.
func (s *Store) Stats() Stats {
	s.Acquire()
	defer s.Release()
	return Stats{
		ActiveTabs:       s.countActiveLocked(),
		RegisteredTabs:   s.activeTabCount,
		TotalPagesLoaded: s.totalPagesLoaded,
		LastLoadedURL:    s.lastLoadedURL,
		LastActivity:     s.lastActivity,
		BookmarkCount:    len(s.bookmarks),
		BroadcastCount:   s.broadcastCount,
	}
}

func bookmarkPayload(title, url string) string {
	return fmt.Sprintf("%s (%s)", title, url)
}
