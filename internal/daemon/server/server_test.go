package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/tabd/config"
	"github.com/grovetools/tabd/errors"
	"github.com/grovetools/tabd/internal/daemon/browser"
	"github.com/grovetools/tabd/internal/daemon/session"
	"github.com/grovetools/tabd/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLoader map[string]string

func (l staticLoader) Exists(name string) bool {
	_, ok := l[name]
	return ok
}

func (l staticLoader) Render(_ context.Context, name string) (string, error) {
	if text, ok := l[name]; ok {
		return text, nil
	}
	return "", errors.PageNotFound(name)
}

func setupServer(t *testing.T, opts ...browser.Option) (*httptest.Server, *browser.Daemon) {
	t.Helper()

	entry := testutil.DiscardLogger()

	opts = append([]browser.Option{browser.WithLoader(staticLoader{"home": "Home page\n", "about": "About page\n"})}, opts...)
	d := browser.New(config.Default(), entry, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	srv := New(d, entry)
	srv.SetConfigFile("/tmp/tabd.yml")
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return ts, d
}

func dialTab(t *testing.T, ts *httptest.Server, tabID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/tabs/" + tabID + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return ws
}

func command(t *testing.T, ws *websocket.Conn, text string) replyFrame {
	t.Helper()
	require.NoError(t, ws.WriteJSON(commandFrame{Command: text}))
	var reply replyFrame
	require.NoError(t, ws.ReadJSON(&reply))
	return reply
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts, d := setupServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	// A hold longer than the limit reports degraded
	d.Store().SetDegradedAfter(time.Nanosecond)
	d.Store().Acquire()
	time.Sleep(time.Millisecond)
	resp, err = http.Get(ts.URL + "/health")
	d.Store().Release()
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTabSocket(t *testing.T) {
	ts, _ := setupServer(t)
	ws := dialTab(t, ts, "1")
	defer ws.Close()

	reply := command(t, ws, "load home")
	assert.Equal(t, 1, reply.TabID)
	assert.Equal(t, "Home page\n", reply.Text)
	assert.Empty(t, reply.Code)

	reply = command(t, ws, "back")
	assert.Equal(t, "[Browser] No previous page in history.", reply.Text)
	assert.Equal(t, string(errors.ErrCodeNoHistory), reply.Code)

	var tabs []session.Snapshot
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/tabs", &tabs))
	require.Len(t, tabs, 1)
	assert.Equal(t, "home", tabs[0].CurrentURL)
}

func TestInvalidTabID(t *testing.T) {
	ts, _ := setupServer(t)

	for _, path := range []string{"/api/tabs/abc/broadcasts", "/api/tabs/-1/ws", "/api/tabs/x/stream"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestBroadcastsEndpoint(t *testing.T) {
	ts, _ := setupServer(t)
	one := dialTab(t, ts, "1")
	defer one.Close()
	two := dialTab(t, ts, "2")
	defer two.Close()

	command(t, one, "sync on")
	command(t, two, "sync on")
	command(t, one, "load about")

	var events []apiEvent
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/tabs/2/broadcasts", &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Tab 1 loaded page: about", events[0].Notification)

	events = nil
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/tabs/2/broadcasts", &events))
	assert.Empty(t, events)
}

func TestDisconnectAnnouncesClose(t *testing.T) {
	ts, _ := setupServer(t)
	one := dialTab(t, ts, "1")
	two := dialTab(t, ts, "2")
	defer two.Close()

	command(t, one, "sync on")
	command(t, two, "sync on")
	one.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	one.Close()

	assert.Eventually(t, func() bool {
		var events []apiEvent
		getJSON(t, ts.URL+"/api/tabs/2/broadcasts", &events)
		for _, ev := range events {
			if ev.Notification == "Tab 1 closed" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSharedTabIDSurvivesOneShot(t *testing.T) {
	ts, d := setupServer(t)
	repl := dialTab(t, ts, "1")
	defer repl.Close()
	two := dialTab(t, ts, "2")
	defer two.Close()

	command(t, repl, "sync on")
	command(t, two, "sync on")

	oneShot := dialTab(t, ts, "1")
	command(t, oneShot, "status")
	oneShot.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	oneShot.Close()
	require.Eventually(t, func() bool { return d.Connections() == 2 }, 2*time.Second, 10*time.Millisecond)

	reply := command(t, repl, "status")
	assert.Empty(t, reply.Code)
	assert.True(t, d.Store().TabActive(1))

	var events []apiEvent
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/tabs/2/broadcasts", &events))
	for _, ev := range events {
		assert.NotEqual(t, "Tab 1 closed", ev.Notification)
	}
}

func TestStream(t *testing.T) {
	ts, _ := setupServer(t)
	one := dialTab(t, ts, "1")
	defer one.Close()
	two := dialTab(t, ts, "2")
	defer two.Close()
	command(t, one, "sync on")
	command(t, two, "sync on")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/tabs/2/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	command(t, one, "broadcast hello")

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev apiEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		if ev.Notification == "Tab 1 says: hello" {
			return
		}
	}
	t.Fatal("stream ended without the broadcast")
}

func TestStatusAndConfig(t *testing.T) {
	ts, _ := setupServer(t)
	ws := dialTab(t, ts, "3")
	defer ws.Close()
	command(t, ws, "sync on")
	command(t, ws, "load home")

	var status apiStatus
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/status", &status))
	assert.Equal(t, 1, status.ActiveTabs)
	assert.Equal(t, 1, status.TotalPagesLoaded)
	assert.Equal(t, "home", status.LastLoadedURL)
	assert.Equal(t, 1, status.Sessions)
	assert.Equal(t, 1, status.Connections)
	assert.Equal(t, "ok", status.Health)

	var running RunningConfig
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/config", &running))
	assert.Equal(t, 30*time.Second, running.InactivityThreshold)
	assert.Equal(t, "/tmp/tabd.yml", running.ConfigFile)
	assert.Equal(t, config.EngineHTML, running.RenderEngine)
}

func TestWithoutStore(t *testing.T) {
	ts, _ := setupServer(t, browser.WithoutStore())

	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/tabs/1/broadcasts", nil))

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestShutdownIsCleanStop(t *testing.T) {
	entry := testutil.DiscardLogger()
	d := browser.New(config.Default(), entry, browser.WithLoader(staticLoader{}))
	srv := New(d, entry)
	socket := filepath.Join(testutil.ShortTempDir(t, "tabd-srv-*"), "tabd.sock")

	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe(socket) }()

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "unix", socket)
		},
	}}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://tabd/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}
