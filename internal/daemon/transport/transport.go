// Package transport carries commands from tabs to the daemon and replies back.
//
// All tabs share one inbox with a single reader. Replies travel through
// per-connection addressed mailboxes so a connection only ever sees the
// replies to its own commands.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/tabd/errors"
	"github.com/grovetools/tabd/internal/daemon/dispatch"
	"github.com/sirupsen/logrus"
)

const (
	// InboxCapacity bounds the number of queued commands.
	InboxCapacity = 64
	// MailboxCapacity bounds the number of undelivered replies per connection.
	MailboxCapacity = 4
	// DefaultRetries is the number of delivery attempts before giving up.
	DefaultRetries = 5

	initialBackoff = time.Millisecond
)

// Inbox is the shared tab-to-daemon channel. Each Submit enqueues a whole
// message; messages are never interleaved.
type Inbox struct {
	ch chan dispatch.Message
}

// NewInbox creates an inbox.
func NewInbox() *Inbox {
	return &Inbox{ch: make(chan dispatch.Message, InboxCapacity)}
}

// Submit enqueues a message, blocking while the inbox is full.
func (in *Inbox) Submit(ctx context.Context, msg dispatch.Message) error {
	select {
	case in.ch <- msg:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCodeTransportFailure, "inbox submit canceled").
			WithDetail("tab", msg.TabID)
	}
}

// Messages returns the receive side. There must be exactly one reader.
func (in *Inbox) Messages() <-chan dispatch.Message {
	return in.ch
}

// Outboxes holds one reply mailbox per attached connection. Several
// connections may speak for the same tab; each sees only the replies to its
// own commands.
type Outboxes struct {
	mu        sync.Mutex
	mailboxes map[int]map[uint64]chan dispatch.Reply
	nextConn  uint64
	retries   int
	logger    *logrus.Entry
}

// Mailbox is the receive side handed to one connection.
type Mailbox struct {
	ID    uint64
	TabID int
	C     <-chan dispatch.Reply
}

// NewOutboxes creates the mailbox table. retries below 1 falls back to DefaultRetries.
func NewOutboxes(retries int, logger *logrus.Entry) *Outboxes {
	if retries < 1 {
		retries = DefaultRetries
	}
	return &Outboxes{
		mailboxes: make(map[int]map[uint64]chan dispatch.Reply),
		retries:   retries,
		logger:    logger,
	}
}

// Open attaches a new connection for tabID and returns its mailbox.
func (o *Outboxes) Open(tabID int) Mailbox {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextConn++
	ch := make(chan dispatch.Reply, MailboxCapacity)
	conns, ok := o.mailboxes[tabID]
	if !ok {
		conns = make(map[uint64]chan dispatch.Reply)
		o.mailboxes[tabID] = conns
	}
	conns[o.nextConn] = ch
	return Mailbox{ID: o.nextConn, TabID: tabID, C: ch}
}

// Close detaches one connection and closes its mailbox. When it was the last
// connection for its tab, onLast runs before any new connection for that tab
// can attach. Closing twice is a no-op.
func (o *Outboxes) Close(mb Mailbox, onLast func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	conns := o.mailboxes[mb.TabID]
	ch, ok := conns[mb.ID]
	if !ok {
		return
	}
	delete(conns, mb.ID)
	close(ch)
	if len(conns) > 0 {
		return
	}
	delete(o.mailboxes, mb.TabID)
	if onLast != nil {
		onLast()
	}
}

// Deliver places a reply in the mailbox of the connection that sent the
// command. While that connection is not attached or its mailbox is full it retries with a growing backoff, then gives up with
// TRANSPORT_FAILURE. A failed delivery is logged and never stops the caller.
func (o *Outboxes) Deliver(reply dispatch.Reply) error {
	backoff := initialBackoff
	for attempt := 1; attempt <= o.retries; attempt++ {
		if o.tryDeliver(reply) {
			return nil
		}
		if attempt < o.retries {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	err := errors.TransportFailure(reply.TabID, o.retries)
	o.logger.WithError(err).WithField("tab", reply.TabID).Warn("Reply dropped")
	return err
}

func (o *Outboxes) tryDeliver(reply dispatch.Reply) bool {
	// Holding mu across the send keeps Close from closing the channel under us.
	o.mu.Lock()
	defer o.mu.Unlock()
	ch, ok := o.mailboxes[reply.TabID][reply.Conn]
	if !ok {
		return false
	}
	select {
	case ch <- reply:
		return true
	default:
		return false
	}
}

// Connected returns the number of attached connections across all tabs.
func (o *Outboxes) Connected() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, conns := range o.mailboxes {
		n += len(conns)
	}
	return n
}

// Attached returns the number of connections speaking for tabID.
func (o *Outboxes) Attached(tabID int) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.mailboxes[tabID])
}
