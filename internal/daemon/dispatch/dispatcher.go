package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/grovetools/tabd/errors"
	"github.com/grovetools/tabd/internal/daemon/session"
	"github.com/grovetools/tabd/internal/daemon/store"
	"github.com/grovetools/tabd/internal/render"
	"github.com/sirupsen/logrus"
)

// Dispatcher executes tab commands against the session registry and the
// coordination store.
//
// Lock order is session before store; the store lock is never held while a
// session lock is requested.
type Dispatcher struct {
	store    *store.Store
	registry *session.Registry
	loader   render.Loader
	logger   *logrus.Entry
	now      func() time.Time
}

// New creates a dispatcher. st may be nil, in which case store-backed commands
// reply with a NO_COORDINATION_STORE message.
func New(st *store.Store, registry *session.Registry, loader render.Loader, logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		store:    st,
		registry: registry,
		loader:   loader,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle executes one command and returns the reply for its tab. Every
// failure is turned into reply text; nothing here stops the daemon.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) Reply {
	now := msg.Timestamp
	if now.IsZero() {
		now = d.now()
	}

	sess, created := d.registry.Acquire(msg.TabID, now)
	if created {
		d.logger.WithField("tab", msg.TabID).Info("New tab connected")
		if d.store != nil {
			d.store.RegisterTab(msg.TabID, now)
		}
	}

	sess.Lock()
	defer sess.Unlock()

	sess.LastActive = now
	if d.store != nil {
		d.store.TouchTab(msg.TabID, now)
	}

	kind := msg.Kind
	if kind == Unset {
		kind = Classify(msg.Text)
	}

	h := &handler{d: d, ctx: ctx, sess: sess, msg: msg, now: now}
	text, err := h.run(kind)

	entry := d.logger.WithFields(logrus.Fields{
		"tab":  msg.TabID,
		"kind": kind.String(),
	})
	if err != nil {
		entry.WithField("code", errors.GetCode(err)).Debug("Command failed")
	} else {
		entry.Debug("Command handled")
	}

	return Reply{
		TabID: msg.TabID,
		Conn:  msg.Conn,
		Seq:   msg.Seq,
		Text:  bound(text, MaxReplyLength-1),
		Err:   err,
	}
}

// Close announces that a tab went away. Only a synced tab clears its active
// flag and broadcasts TabClosed.
func (d *Dispatcher) Close(tabID int) {
	sess, ok := d.registry.Get(tabID)
	if !ok {
		return
	}
	sess.Lock()
	synced := sess.Synced
	sess.Unlock()

	if !synced || d.store == nil {
		return
	}
	d.store.SetTabActive(store.Slot(tabID), false)
	d.store.Broadcast(store.EventTabClosed, tabID, "Tab closed")
	d.logger.WithField("tab", tabID).Info("Tab closed")
}

// handler carries the state of one command while the session lock is held.
type handler struct {
	d    *Dispatcher
	ctx  context.Context
	sess *session.TabSession
	msg  Message
	now  time.Time
}

func (h *handler) run(kind Kind) (string, error) {
	switch kind {
	case Load:
		return h.load(render.ResolveName(argument(Load, h.msg.Text)))
	case Reload:
		return h.reload()
	case Back:
		return h.navigate(h.sess.History.Back, replyNoPrevious)
	case Forward:
		return h.navigate(h.sess.History.Forward, replyNoNext)
	case History:
		return formatHistory(h.sess.History.Entries(), h.sess.History.Position()), nil
	case Bookmark:
		return h.bookmark()
	case Bookmarks:
		return h.bookmarks()
	case Open:
		return h.open()
	case Delete:
		return h.delete()
	case SyncOn:
		return h.syncOn()
	case SyncOff:
		return h.syncOff()
	case Broadcast:
		return h.broadcast()
	case Status:
		if h.d.store == nil {
			return replyStatusNoStore, errors.NoCoordinationStore("status")
		}
		return formatStatus(h.d.store.Stats()), nil
	case Crash:
		return replyCrash, nil
	default:
		return replyUnknown(h.msg.Text), errors.New(errors.ErrCodeInvalidInput, "unknown command").
			WithDetail("command", h.msg.Text)
	}
}

// load renders a page and, on success, records it as the current page.
func (h *handler) load(name string) (string, error) {
	content, err := h.d.loader.Render(h.ctx, name)
	if err != nil {
		return h.renderFailure(name, err, replyNotFound(suggestion(err)))
	}
	h.visit(name)
	return content, nil
}

func (h *handler) reload() (string, error) {
	if h.sess.CurrentURL == "" {
		return replyNoReload, errors.NoCurrentPage()
	}
	content, err := h.d.loader.Render(h.ctx, h.sess.CurrentURL)
	if err != nil {
		return h.renderFailure(h.sess.CurrentURL, err, replyPageNotFound)
	}
	return content, nil
}

func (h *handler) navigate(step func() (string, error), boundary string) (string, error) {
	url, err := step()
	if err != nil {
		return boundary, err
	}
	h.sess.CurrentURL = url
	content, err := h.d.loader.Render(h.ctx, url)
	if err != nil {
		return h.renderFailure(url, err, replyPageNotFound)
	}
	return content, nil
}

// visit pushes a page onto the history and publishes it when synced.
func (h *handler) visit(name string) {
	h.sess.History.Push(name)
	h.sess.CurrentURL = name
	h.sess.LastActive = h.now

	if h.sess.Synced && h.d.store != nil {
		h.d.store.RecordPageLoad(name, h.now)
		h.d.store.Broadcast(store.EventPageLoaded, h.msg.TabID, name)
	}
}

func (h *handler) renderFailure(name string, err error, notFound string) (string, error) {
	if errors.Is(err, errors.ErrCodeNotFound) {
		return notFound, err
	}
	h.d.logger.WithError(err).WithField("page", name).Warn("Render failed")
	return replyRenderFailed, err
}

func (h *handler) bookmark() (string, error) {
	if h.sess.CurrentURL == "" {
		return replyNoBookmarkPage, errors.NoCurrentPage()
	}
	if h.d.store == nil {
		return replyBookmarkNoStore, errors.NoCoordinationStore("bookmark")
	}
	if _, err := h.d.store.AddBookmark(h.sess.CurrentURL, h.sess.CurrentURL, h.msg.TabID); err != nil {
		return replyBookmarksFull, err
	}
	return replyBookmarked(h.sess.CurrentURL), nil
}

func (h *handler) bookmarks() (string, error) {
	if h.d.store == nil {
		return replyBookmarksNoStore, errors.NoCoordinationStore("bookmarks")
	}
	if h.d.store.BookmarkCount() == 0 {
		return replyNoBookmarks, nil
	}
	return formatBookmarks(h.d.store.ActiveBookmarks()), nil
}

func (h *handler) open() (string, error) {
	if h.d.store == nil {
		return replyBookmarkNoStore, errors.NoCoordinationStore("open")
	}
	n, ok := parseIndex(argument(Open, h.msg.Text))
	if !ok {
		return replyUsage("open"), errors.New(errors.ErrCodeInvalidInput, "bookmark number required")
	}
	bm, err := h.d.store.Bookmark(n - 1)
	if err != nil {
		return replyInvalidBookmark, err
	}
	content, err := h.d.loader.Render(h.ctx, bm.URL)
	if err != nil {
		return h.renderFailure(bm.URL, err, replyBookmarkedNotFound)
	}
	h.visit(bm.URL)
	return content, nil
}

func (h *handler) delete() (string, error) {
	if h.d.store == nil {
		return replyBookmarkNoStore, errors.NoCoordinationStore("delete")
	}
	n, ok := parseIndex(argument(Delete, h.msg.Text))
	if !ok {
		return replyUsage("delete"), errors.New(errors.ErrCodeInvalidInput, "bookmark number required")
	}
	_, err := h.d.store.RemoveBookmark(n-1, h.msg.TabID)
	if err != nil && !errors.Is(err, errors.ErrCodeAlreadyInactive) {
		return replyInvalidBookmark, err
	}
	return replyDeleted(n), nil
}

func (h *handler) syncOn() (string, error) {
	if h.d.store == nil {
		return replySyncNoStore, errors.NoCoordinationStore("sync")
	}
	h.sess.Synced = true
	h.d.store.SetTabActive(store.Slot(h.msg.TabID), true)
	drained := h.d.store.DrainUnread(h.msg.TabID)
	return formatSyncEnabled(h.msg.TabID, drained), nil
}

func (h *handler) syncOff() (string, error) {
	h.sess.Synced = false
	if h.d.store != nil {
		h.d.store.SetTabActive(store.Slot(h.msg.TabID), false)
	}
	return replySyncDisabled, nil
}

func (h *handler) broadcast() (string, error) {
	if h.d.store == nil {
		return replyBroadcastNoStore, errors.NoCoordinationStore("broadcast")
	}
	if !h.sess.Synced {
		return replyMustSync, errors.NotSynced(h.msg.TabID)
	}
	h.d.store.Broadcast(store.EventMessage, h.msg.TabID, argument(Broadcast, h.msg.Text))
	return replyBroadcastSent, nil
}

// parseIndex reads a leading positive integer, ignoring trailing text.
func parseIndex(s string) (int, bool) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func suggestion(err error) string {
	if tabErr, ok := err.(*errors.TabError); ok {
		if s, ok := tabErr.Details["suggestion"].(string); ok {
			return s
		}
	}
	return ""
}
