// Package tabclient is the tab side of the browser daemon protocol.
package tabclient

import (
	"context"
	"time"
)

// Client talks to the browser daemon on behalf of one tab.
type Client interface {
	// Connect opens the tab's command channel.
	Connect(ctx context.Context) error

	// Send submits one command and waits for its reply.
	Send(ctx context.Context, text string) (*Reply, error)

	// Drain returns the broadcasts this tab has not consumed yet.
	Drain(ctx context.Context) ([]Event, error)

	// StreamBroadcasts subscribes to broadcasts as they are published.
	// The channel is closed when ctx is canceled or the connection is lost.
	StreamBroadcasts(ctx context.Context) (<-chan Event, error)

	// Status returns the daemon's global statistics.
	Status(ctx context.Context) (*Status, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close disconnects the tab.
	Close() error
}

// Reply is the daemon's answer to one command.
type Reply struct {
	TabID int    `json:"tab_id"`
	Text  string `json:"text"`
	Code  string `json:"code,omitempty"` // error code when the command failed
}

// Event is a broadcast as seen by a tab.
type Event struct {
	ID           string    `json:"id"`
	Seq          int       `json:"seq"`
	Kind         string    `json:"kind"`
	SenderTab    int       `json:"sender_tab"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      string    `json:"payload"`
	Notification string    `json:"notification"`
}

// Status holds the daemon's global statistics.
type Status struct {
	ActiveTabs       int       `json:"active_tabs"`
	RegisteredTabs   int       `json:"registered_tabs"`
	TotalPagesLoaded int       `json:"total_pages_loaded"`
	LastLoadedURL    string    `json:"last_loaded_url"`
	LastActivity     time.Time `json:"last_activity"`
	BookmarkCount    int       `json:"bookmark_count"`
	BroadcastCount   int       `json:"broadcast_count"`
	Sessions         int       `json:"sessions"`
	Connections      int       `json:"connections"`
	Health           string    `json:"health"`
}
