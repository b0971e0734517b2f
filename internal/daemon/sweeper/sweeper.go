// Package sweeper clears the liveness flag of tabs that stopped talking.
package sweeper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/grovetools/tabd/internal/daemon/store"
	"github.com/sirupsen/logrus"
)

// Sweeper periodically marks tabs inactive once they have not been seen for
// longer than the inactivity threshold. It never broadcasts.
type Sweeper struct {
	store     *store.Store
	interval  time.Duration
	threshold atomic.Int64
	logger    *logrus.Entry
	now       func() time.Time
}

// New creates a sweeper that runs every interval.
func New(st *store.Store, interval, threshold time.Duration, logger *logrus.Entry) *Sweeper {
	s := &Sweeper{
		store:    st,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
	s.threshold.Store(int64(threshold))
	return s
}

// Name returns the task's name.
func (s *Sweeper) Name() string { return "sweeper" }

// Threshold returns the current inactivity threshold.
func (s *Sweeper) Threshold() time.Duration {
	return time.Duration(s.threshold.Load())
}

// SetThreshold changes the inactivity threshold used by subsequent sweeps.
func (s *Sweeper) SetThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	s.threshold.Store(int64(d))
}

// Run sweeps on every tick until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep performs a single pass and returns the slots it cleared.
func (s *Sweeper) Sweep() []int {
	// Health never takes the lock, so a wedged store is reported before the
	// sweep below blocks on it.
	if err := s.store.Health(); err != nil {
		s.logger.WithError(err).Warn("Coordination store degraded")
	}

	cleared := s.store.SweepInactivity(s.now(), s.Threshold())
	for _, slot := range cleared {
		s.logger.WithField("slot", slot).Info("Tab marked inactive")
	}
	return cleared
}
