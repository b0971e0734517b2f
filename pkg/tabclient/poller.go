package tabclient

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Poller periodically drains a synced tab's broadcasts and surfaces each
// notification through a callback. The tab's own events are skipped.
type Poller struct {
	client   Client
	tabID    int
	interval time.Duration
	onEvent  func(Event)
	logger   *logrus.Entry
}

// NewPoller creates a poller for tabID.
func NewPoller(client Client, tabID int, interval time.Duration, onEvent func(Event), logger *logrus.Entry) *Poller {
	return &Poller{
		client:   client,
		tabID:    tabID,
		interval: interval,
		onEvent:  onEvent,
		logger:   logger,
	}
}

// Run polls until ctx is canceled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one drain and returns the number of events surfaced.
func (p *Poller) Poll(ctx context.Context) int {
	events, err := p.client.Drain(ctx)
	if err != nil {
		p.logger.WithError(err).Debug("Broadcast poll failed")
		return 0
	}

	n := 0
	for _, ev := range events {
		if ev.SenderTab == p.tabID || ev.Notification == "" {
			continue
		}
		p.onEvent(ev)
		n++
	}
	return n
}
