package tabclient

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/tabd/config"
	"github.com/grovetools/tabd/errors"
	"github.com/grovetools/tabd/internal/daemon/browser"
	"github.com/grovetools/tabd/internal/daemon/server"
	"github.com/grovetools/tabd/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDaemon serves a daemon with two documents on a socket in a temp dir.
func startDaemon(t *testing.T, opts ...browser.Option) string {
	t.Helper()

	dir := testutil.ShortTempDir(t, "tabd-client-*")
	docs := filepath.Join(dir, "docs")
	testutil.WritePages(t, docs, map[string]string{
		"home": "<p>Home page</p>",
		"news": "<p>News</p>",
	})

	cfg := config.Default()
	cfg.Render.Dir = docs
	socket := filepath.Join(dir, "tabd.sock")
	entry := testutil.DiscardLogger()

	d := browser.New(cfg, entry, opts...)
	srv := server.New(d, entry)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(runDone)
	}()
	go srv.ListenAndServe(socket)

	require.Eventually(t, func() bool { return DaemonAvailable(socket) }, 2*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
		defer stop()
		srv.Shutdown(shutdownCtx)
		cancel()
		<-runDone
	})
	return socket
}

func TestRemoteClientSend(t *testing.T) {
	socket := startDaemon(t)
	ctx := context.Background()

	c := NewRemoteClient(socket, 1)
	defer c.Close()
	assert.True(t, c.IsRunning())
	assert.Equal(t, 1, c.TabID())

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Connect(ctx), "connecting twice is a no-op")

	reply, err := c.Send(ctx, "load home")
	require.NoError(t, err)
	assert.Equal(t, "Home page\n", reply.Text)
	assert.Empty(t, reply.Code)

	reply, err = c.Send(ctx, "forward")
	require.NoError(t, err)
	assert.Equal(t, "[Browser] No next page in history.", reply.Text)
	assert.Equal(t, string(errors.ErrCodeNoHistory), reply.Code)
}

type slowPages struct {
	delay time.Duration
}

func (p slowPages) Exists(string) bool { return true }

func (p slowPages) Render(_ context.Context, name string) (string, error) {
	time.Sleep(p.delay)
	return "page " + name + "\n", nil
}

func TestRemoteClientReplyTimeout(t *testing.T) {
	socket := startDaemon(t, browser.WithLoader(slowPages{delay: 300 * time.Millisecond}))
	ctx := context.Background()

	c := NewRemoteClient(socket, 1)
	defer c.Close()
	assert.Equal(t, DefaultReplyTimeout, c.replyTimeout)

	c.SetReplyTimeout(2 * time.Second)
	reply, err := c.Send(ctx, "load slow")
	require.NoError(t, err, "a render slower than the http timeout still answers")
	assert.Equal(t, "page slow\n", reply.Text)

	c.SetReplyTimeout(50 * time.Millisecond)
	_, err = c.Send(ctx, "load later")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTransportFailure))

	c.SetReplyTimeout(0)
	assert.Equal(t, DefaultReplyTimeout, c.replyTimeout)
	reply, err = c.Send(ctx, "history")
	require.NoError(t, err)
	assert.Equal(t, "[Browser] History:\n  1:   slow\n  2: > later\n", reply.Text)
}

func TestRemoteClientBroadcasts(t *testing.T) {
	socket := startDaemon(t)
	ctx := context.Background()

	one := NewRemoteClient(socket, 1)
	defer one.Close()
	two := NewRemoteClient(socket, 2)
	defer two.Close()

	_, err := one.Send(ctx, "sync on")
	require.NoError(t, err)
	_, err = two.Send(ctx, "sync on")
	require.NoError(t, err)

	_, err = one.Send(ctx, "load news")
	require.NoError(t, err)

	events, err := two.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "page_loaded", events[0].Kind)
	assert.Equal(t, "news", events[0].Payload)
	assert.Equal(t, "Tab 1 loaded page: news", events[0].Notification)

	status, err := two.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.ActiveTabs)
	assert.Equal(t, 1, status.TotalPagesLoaded)
	assert.Equal(t, "ok", status.Health)
}

func TestRemoteClientStream(t *testing.T) {
	socket := startDaemon(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	one := NewRemoteClient(socket, 1)
	defer one.Close()
	two := NewRemoteClient(socket, 2)
	defer two.Close()
	_, err := one.Send(ctx, "sync on")
	require.NoError(t, err)
	_, err = two.Send(ctx, "sync on")
	require.NoError(t, err)

	stream, err := two.StreamBroadcasts(ctx)
	require.NoError(t, err)

	_, err = one.Send(ctx, "broadcast lunch?")
	require.NoError(t, err)

	select {
	case ev, ok := <-stream:
		require.True(t, ok)
		assert.Equal(t, "Tab 1 says: lunch?", ev.Notification)
	case <-ctx.Done():
		t.Fatal("no broadcast received")
	}
}

func TestCloseAnnouncesSyncedTab(t *testing.T) {
	socket := startDaemon(t)
	ctx := context.Background()

	one := NewRemoteClient(socket, 1)
	two := NewRemoteClient(socket, 2)
	defer two.Close()
	_, err := one.Send(ctx, "sync on")
	require.NoError(t, err)
	_, err = two.Send(ctx, "sync on")
	require.NoError(t, err)

	require.NoError(t, one.Close())

	assert.Eventually(t, func() bool {
		events, err := two.Drain(ctx)
		if err != nil {
			return false
		}
		for _, ev := range events {
			if ev.Kind == "tab_closed" && ev.SenderTab == 1 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDaemonNotRunning(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "missing.sock")
	c := NewRemoteClient(socket, 1)

	assert.False(t, DaemonAvailable(socket))
	assert.False(t, c.IsRunning())
	_, err := c.Send(context.Background(), "status")
	assert.Error(t, err)
}

type fakeClient struct {
	Client
	mu     sync.Mutex
	events [][]Event
	err    error
}

func (f *fakeClient) Drain(context.Context) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.events) == 0 {
		return nil, nil
	}
	next := f.events[0]
	f.events = f.events[1:]
	return next, nil
}

func TestPollerSkipsOwnEvents(t *testing.T) {
	fake := &fakeClient{events: [][]Event{{
		{SenderTab: 1, Notification: "Tab 1 loaded page: home"},
		{SenderTab: 2, Notification: "Tab 2 loaded page: news"},
		{SenderTab: 3, Notification: ""},
	}}}

	var got []string
	p := NewPoller(fake, 1, time.Second, func(ev Event) { got = append(got, ev.Notification) }, testutil.DiscardLogger())

	assert.Equal(t, 1, p.Poll(context.Background()))
	assert.Equal(t, []string{"Tab 2 loaded page: news"}, got)
	assert.Equal(t, 0, p.Poll(context.Background()))

	fake.err = errors.NoCoordinationStore("broadcasts")
	assert.Equal(t, 0, p.Poll(context.Background()))
}

func TestPollerRun(t *testing.T) {
	fake := &fakeClient{events: [][]Event{{{SenderTab: 2, Notification: "Tab 2 closed"}}}}

	var mu sync.Mutex
	var got []string
	p := NewPoller(fake, 1, 5*time.Millisecond, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Notification)
	}, testutil.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
