package dispatch

import (
	"fmt"
	"strings"

	"github.com/grovetools/tabd/internal/daemon/store"
)

const (
	replyPageNotFound       = "[Browser] Error: Page not found."
	replyBookmarkedNotFound = "[Browser] Error: Bookmarked page not found."
	replyRenderFailed       = "[Browser] Error: Failed to render page."
	replyNoReload           = "[Browser] No page to reload."
	replyNoPrevious         = "[Browser] No previous page in history."
	replyNoNext             = "[Browser] No next page in history."
	replyNoBookmarkPage     = "[Browser] No page to bookmark."
	replyBookmarksFull      = "[Browser] Bookmark list is full."
	replyNoBookmarks        = "[Browser] No bookmarks available."
	replyInvalidBookmark    = "[Browser] Invalid bookmark number."
	replySyncEnabled        = "[Browser] Tab synchronization enabled."
	replySyncDisabled       = "[Browser] Tab synchronization disabled."
	replyMustSync           = "[Browser] Tab must be synced to broadcast messages."
	replyBroadcastSent      = "[Browser] Message broadcasted to all synced tabs."
	replyCrash              = "[Browser] Tab crashed and recovered."

	replyBookmarkNoStore  = "[Browser] Bookmark feature requires the coordination store."
	replyBookmarksNoStore = "[Browser] Bookmarks not available (coordination store not initialized)"
	replySyncNoStore      = "[Browser] Synchronization requires the coordination store."
	replyBroadcastNoStore = "[Browser] Broadcasting requires the coordination store."
	replyStatusNoStore    = "[Browser] Status not available (coordination store not initialized)"
)

func replyNotFound(suggestion string) string {
	if suggestion == "" {
		return replyPageNotFound
	}
	return fmt.Sprintf("%s Did you mean '%s'?", replyPageNotFound, suggestion)
}

func replyUsage(command string) string {
	return fmt.Sprintf("%s Use '%s <number>'", replyInvalidBookmark, command)
}

func replyBookmarked(url string) string {
	return fmt.Sprintf("[Browser] Bookmarked: %s", url)
}

func replyDeleted(n int) string {
	return fmt.Sprintf("[Browser] Deleted bookmark #%d", n)
}

func replyUnknown(text string) string {
	return fmt.Sprintf("[Browser] Unknown command: %s", text)
}

// formatBookmarks lists active bookmarks with their 1-based raw index.
func formatBookmarks(bookmarks []store.IndexedBookmark) string {
	var b strings.Builder
	b.WriteString("[Browser] Bookmarks:\n")
	for _, bm := range bookmarks {
		entry := fmt.Sprintf("%d: %s (%s)\n", bm.Index+1, bm.Title, bm.URL)
		if b.Len()+len(entry) >= MaxReplyLength {
			break
		}
		b.WriteString(entry)
	}
	return b.String()
}

// formatHistory lists history entries, marking the current position with '>'.
func formatHistory(entries []string, position int) string {
	var b strings.Builder
	b.WriteString("[Browser] History:\n")
	if len(entries) == 0 {
		b.WriteString("  (Empty)\n")
		return b.String()
	}
	for i, entry := range entries {
		marker := " "
		if i == position {
			marker = ">"
		}
		line := fmt.Sprintf("  %d: %s %s\n", i+1, marker, entry)
		if b.Len()+len(line) >= MaxReplyLength {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

// formatStatus renders the global statistics.
func formatStatus(stats store.Stats) string {
	var b strings.Builder
	b.WriteString("[Browser] Status:\n")
	fmt.Fprintf(&b, "Active tabs: %d\n", stats.ActiveTabs)
	fmt.Fprintf(&b, "Total pages loaded: %d\n", stats.TotalPagesLoaded)
	fmt.Fprintf(&b, "Last activity: %s\n", stats.LastActivity.Local().Format("15:04:05"))
	if stats.LastLoadedURL != "" {
		fmt.Fprintf(&b, "Last loaded URL: %s\n", stats.LastLoadedURL)
	}
	fmt.Fprintf(&b, "Bookmarks: %d\n", stats.BookmarkCount)
	return b.String()
}

// formatSyncEnabled appends the notifications drained when a tab syncs.
func formatSyncEnabled(tabID int, drained []store.BroadcastEvent) string {
	var b strings.Builder
	b.WriteString(replySyncEnabled)
	for _, ev := range drained {
		if ev.SenderTab == tabID {
			continue
		}
		line := store.Notification(ev)
		if line == "" || b.Len()+len(line)+1 >= MaxReplyLength {
			continue
		}
		b.WriteString("\n")
		b.WriteString(line)
	}
	return b.String()
}
