package browser

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/tabd/errors"
	"github.com/grovetools/tabd/internal/daemon/dispatch"
	"github.com/grovetools/tabd/internal/daemon/transport"
	"github.com/sirupsen/logrus"
)

// Conn is a tab's attachment to the daemon: commands go in through the shared
// inbox, replies come back through the connection's own mailbox.
//
// Several connections may speak for the same tab id. The tab is closed, and a
// synced tab announces it, only when the last of them detaches.
type Conn struct {
	d       *Daemon
	mailbox transport.Mailbox

	mu  sync.Mutex
	seq uint64
}

// Connect attaches a tab.
func (d *Daemon) Connect(tabID int) *Conn {
	return &Conn{d: d, mailbox: d.outboxes.Open(tabID)}
}

// TabID returns the tab this connection speaks for.
func (c *Conn) TabID() int { return c.mailbox.TabID }

// Send submits one command and waits for its reply. Calls on one connection
// are serialized. A reply to an earlier command whose Send gave up is
// discarded rather than returned here.
func (c *Conn) Send(ctx context.Context, text string) (dispatch.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	msg := dispatch.NewMessage(c.mailbox.TabID, text, time.Now())
	msg.Conn = c.mailbox.ID
	msg.Seq = c.seq
	if err := c.d.inbox.Submit(ctx, msg); err != nil {
		return dispatch.Reply{}, err
	}

	for {
		select {
		case reply, ok := <-c.mailbox.C:
			if !ok {
				return dispatch.Reply{}, errors.New(errors.ErrCodeTransportFailure, "connection closed").
					WithDetail("tab", c.mailbox.TabID)
			}
			if reply.Seq != msg.Seq {
				c.d.logger.WithFields(logrus.Fields{
					"tab":      reply.TabID,
					"seq":      reply.Seq,
					"expected": msg.Seq,
				}).Debug("Discarding stale reply")
				continue
			}
			return reply, nil
		case <-ctx.Done():
			return dispatch.Reply{}, errors.Wrap(ctx.Err(), errors.ErrCodeTransportFailure, "waiting for reply").
				WithDetail("tab", c.mailbox.TabID)
		}
	}
}

// Close detaches the connection. When no other connection speaks for the
// tab, the tab closes and, if synced, announces its closure to the others.
func (c *Conn) Close() {
	c.d.outboxes.Close(c.mailbox, func() {
		c.d.dispatcher.Close(c.mailbox.TabID)
	})
}
