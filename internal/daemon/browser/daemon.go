// Package browser assembles the browser daemon: the coordination store, the
// session registry, the dispatcher and the transport, driven by one control loop.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/grovetools/tabd/config"
	"github.com/grovetools/tabd/errors"
	"github.com/grovetools/tabd/internal/daemon/dispatch"
	"github.com/grovetools/tabd/internal/daemon/engine"
	"github.com/grovetools/tabd/internal/daemon/session"
	"github.com/grovetools/tabd/internal/daemon/store"
	"github.com/grovetools/tabd/internal/daemon/sweeper"
	"github.com/grovetools/tabd/internal/daemon/transport"
	"github.com/grovetools/tabd/internal/render"
	"github.com/sirupsen/logrus"
)

// Daemon owns every piece of daemon state for its lifetime.
type Daemon struct {
	mu  sync.RWMutex
	cfg *config.Config

	store      *store.Store
	registry   *session.Registry
	loader     render.Loader
	dispatcher *dispatch.Dispatcher
	inbox      *transport.Inbox
	outboxes   *transport.Outboxes
	engine     *engine.Engine
	sweeper    *sweeper.Sweeper

	logger    *logrus.Entry
	startedAt time.Time
}

// Option customizes a Daemon.
type Option func(*options)

type options struct {
	loader  render.Loader
	noStore bool
}

// WithLoader replaces the document loader built from the render config.
func WithLoader(l render.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithoutStore runs the daemon with no coordination store. Sessions still
// work; bookmarks, sync, broadcasts and status reply that the store is missing.
func WithoutStore() Option {
	return func(o *options) { o.noStore = true }
}

// New assembles a daemon from cfg.
func New(cfg *config.Config, logger *logrus.Entry, opts ...Option) *Daemon {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.loader == nil {
		o.loader = render.NewFromConfig(cfg.Render)
	}

	d := &Daemon{
		cfg:       cfg,
		registry:  session.NewRegistry(),
		loader:    o.loader,
		inbox:     transport.NewInbox(),
		outboxes:  transport.NewOutboxes(cfg.Daemon.ReplyRetries, logger),
		logger:    logger,
		startedAt: time.Now(),
	}
	if !o.noStore {
		d.store = store.New(cfg.Daemon.Degraded())
		d.sweeper = sweeper.New(d.store, cfg.Daemon.Sweep(), cfg.Daemon.Inactivity(), logger.WithField("task", "sweeper"))
	} else {
		logger.Warn("Coordination store disabled")
	}

	d.dispatcher = dispatch.New(d.store, d.registry, d.loader, logger)
	d.engine = engine.New(d.store, logger)
	if d.sweeper != nil {
		d.engine.Register(d.sweeper)
	}
	return d
}

// Run drives the control loop until ctx is canceled: each message from the
// inbox is dispatched and its reply delivered to the originating tab.
func (d *Daemon) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.engine.Start(ctx)
	}()
	defer wg.Wait()

	d.logger.Info("Browser daemon started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Browser daemon stopping")
			return nil
		case msg := <-d.inbox.Messages():
			reply := d.dispatcher.Handle(ctx, msg)
			// Delivery failures are logged by the outboxes.
			_ = d.outboxes.Deliver(reply)
		}
	}
}

// ApplyConfig updates the settings that can change while running: the
// sweeper threshold and the degraded limit.
func (d *Daemon) ApplyConfig(cfg *config.Config) {
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	if d.sweeper != nil {
		d.sweeper.SetThreshold(cfg.Daemon.Inactivity())
	}
	if d.store != nil {
		d.store.SetDegradedAfter(cfg.Daemon.Degraded())
	}
	d.logger.WithFields(logrus.Fields{
		"inactivity_threshold": cfg.Daemon.Inactivity(),
		"degraded_after":       cfg.Daemon.Degraded(),
	}).Info("Configuration applied")
}

// Config returns the configuration currently in effect.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Store returns the coordination store, or nil when running without one.
func (d *Daemon) Store() *store.Store { return d.store }

// Connections returns the number of attached tab connections.
func (d *Daemon) Connections() int { return d.outboxes.Connected() }

// Registry returns the session registry.
func (d *Daemon) Registry() *session.Registry { return d.registry }

// Sweeper returns the liveness sweeper, or nil when running without a store.
func (d *Daemon) Sweeper() *sweeper.Sweeper { return d.sweeper }

// StartedAt returns when the daemon was assembled.
func (d *Daemon) StartedAt() time.Time { return d.startedAt }

// Health reports whether the coordination store is usable.
func (d *Daemon) Health() error {
	if d.store == nil {
		return nil
	}
	return d.store.Health()
}

// Drain returns the broadcasts tabID has not consumed yet and marks them
// delivered. Tabs that are not synced receive nothing.
func (d *Daemon) Drain(tabID int) ([]store.BroadcastEvent, error) {
	if d.store == nil {
		return nil, errors.NoCoordinationStore("broadcasts")
	}
	sess, ok := d.registry.Get(tabID)
	if !ok {
		return nil, nil
	}
	if !sess.Snapshot().Synced {
		return nil, nil
	}

	var events []store.BroadcastEvent
	for _, ev := range d.store.DrainUnread(tabID) {
		// Tabs sharing a slot also share delivery flags.
		if ev.SenderTab == tabID {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
