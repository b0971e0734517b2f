package engine

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/tabd/internal/daemon/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type countingTask struct {
	name string
	runs atomic.Int32
	fail bool
}

func (t *countingTask) Name() string { return t.name }

func (t *countingTask) Run(ctx context.Context) error {
	t.runs.Add(1)
	if t.fail {
		return fmt.Errorf("task %s failed", t.name)
	}
	<-ctx.Done()
	return nil
}

func TestEngineRunsTasksUntilCanceled(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st := store.New(time.Second)
	e := New(st, logrus.NewEntry(logger))
	a := &countingTask{name: "a"}
	b := &countingTask{name: "b", fail: true}
	e.Register(a)
	e.Register(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return a.runs.Load() == 1 && b.runs.Load() == 1
	}, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("engine returned before cancellation")
	default:
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
	assert.Same(t, st, e.Store())
}
