// Package dispatch turns tab commands into state changes and replies.
package dispatch

import (
	"strings"
	"time"
)

const (
	// MaxCommandLength bounds the raw text of a command.
	MaxCommandLength = 512
	// MaxReplyLength bounds a reply blob.
	MaxReplyLength = 4096
)

// Kind is a classified command.
type Kind int

const (
	// Unset asks the dispatcher to classify the text itself.
	Unset Kind = iota
	Load
	Reload
	Back
	Forward
	History
	Bookmark
	Bookmarks
	Open
	Delete
	SyncOn
	SyncOff
	Broadcast
	Status
	Crash
	Unknown
)

var kindNames = map[Kind]string{
	Unset:     "unset",
	Load:      "load",
	Reload:    "reload",
	Back:      "back",
	Forward:   "forward",
	History:   "history",
	Bookmark:  "bookmark",
	Bookmarks: "bookmarks",
	Open:      "open",
	Delete:    "delete",
	SyncOn:    "sync_on",
	SyncOff:   "sync_off",
	Broadcast: "broadcast",
	Status:    "status",
	Crash:     "crash",
	Unknown:   "unknown",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// prefixed commands carry an argument after the prefix.
var prefixed = []struct {
	prefix string
	kind   Kind
}{
	{"load ", Load},
	{"open ", Open},
	{"delete ", Delete},
	{"broadcast ", Broadcast},
}

var exact = map[string]Kind{
	"reload":    Reload,
	"back":      Back,
	"forward":   Forward,
	"history":   History,
	"bookmark":  Bookmark,
	"bookmarks": Bookmarks,
	"sync on":   SyncOn,
	"sync off":  SyncOff,
	"status":    Status,
	"CRASH":     Crash,
}

// Classify maps command text onto a Kind. Matching is case-sensitive and
// exact; anything else is Unknown.
func Classify(text string) Kind {
	for _, p := range prefixed {
		if strings.HasPrefix(text, p.prefix) {
			return p.kind
		}
	}
	if kind, ok := exact[text]; ok {
		return kind
	}
	return Unknown
}

// argument returns the text following a prefixed command.
func argument(kind Kind, text string) string {
	for _, p := range prefixed {
		if p.kind == kind && strings.HasPrefix(text, p.prefix) {
			return text[len(p.prefix):]
		}
	}
	return ""
}

// Message is one command sent by a tab. Conn and Seq identify the connection
// and request the reply must be routed back to.
type Message struct {
	TabID     int       `json:"tab_id"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Conn      uint64    `json:"conn,omitempty"`
	Seq       uint64    `json:"seq,omitempty"`
}

// NewMessage builds an unclassified message with bounded text.
func NewMessage(tabID int, text string, now time.Time) Message {
	return Message{
		TabID:     tabID,
		Kind:      Unset,
		Text:      bound(text, MaxCommandLength-1),
		Timestamp: now,
	}
}

// Reply is the answer addressed to the originating tab. Err carries the
// classified failure, if any; Text is always what the tab displays. Conn and
// Seq are copied from the message being answered.
type Reply struct {
	TabID int    `json:"tab_id"`
	Conn  uint64 `json:"conn,omitempty"`
	Seq   uint64 `json:"seq,omitempty"`
	Text  string `json:"text"`
	Err   error  `json:"-"`
}

func bound(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
