package sweeper

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/grovetools/tabd/internal/daemon/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestSweepClearsStaleTabs(t *testing.T) {
	st := store.New(time.Second)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st.RegisterTab(1, start)
	st.RegisterTab(2, start.Add(20*time.Second))

	s := New(st, 5*time.Second, 30*time.Second, quietLogger())
	s.now = func() time.Time { return start.Add(31 * time.Second) }

	assert.Equal(t, []int{1}, s.Sweep())
	assert.False(t, st.TabActive(1))
	assert.True(t, st.TabActive(2))

	broadcasts := st.Stats().BroadcastCount
	s.Sweep()
	assert.Equal(t, broadcasts, st.Stats().BroadcastCount, "sweeping never broadcasts")
}

func TestSetThreshold(t *testing.T) {
	st := store.New(time.Second)
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st.RegisterTab(3, start)

	s := New(st, 5*time.Second, 30*time.Second, quietLogger())
	s.now = func() time.Time { return start.Add(15 * time.Second) }
	assert.Empty(t, s.Sweep())

	s.SetThreshold(10 * time.Second)
	assert.Equal(t, 10*time.Second, s.Threshold())
	assert.Equal(t, []int{3}, s.Sweep())

	s.SetThreshold(0)
	assert.Equal(t, 10*time.Second, s.Threshold(), "non-positive thresholds are ignored")
}

func TestRunStopsOnCancel(t *testing.T) {
	st := store.New(time.Second)
	st.RegisterTab(1, time.Now().Add(-time.Hour))

	s := New(st, 5*time.Millisecond, time.Minute, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return !st.TabActive(1) }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Equal(t, "sweeper", s.Name())
}
