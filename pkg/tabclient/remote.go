package tabclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/tabd/errors"
)

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

// DefaultReplyTimeout bounds a Send whose context carries no deadline. It
// leaves room for a slow external render plus commands queued ahead of it;
// a read that times out leaves the websocket unusable, so it must not fire
// during normal operation.
const DefaultReplyTimeout = 30 * time.Second

// RemoteClient implements Client over the daemon's Unix socket.
type RemoteClient struct {
	tabID      int
	socketPath string
	httpClient *http.Client
	dialer     *websocket.Dialer

	replyTimeout time.Duration

	mu sync.Mutex
	ws *websocket.Conn
}

// NewRemoteClient creates a client for tabID. It does not connect yet.
func NewRemoteClient(socketPath string, tabID int) *RemoteClient {
	dial := func(ctx context.Context, _, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", socketPath)
	}

	transport := &http.Transport{
		DialContext:     dial,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &RemoteClient{
		tabID:      tabID,
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		dialer: &websocket.Dialer{
			NetDialContext:   dial,
			HandshakeTimeout: 5 * time.Second,
		},
		replyTimeout: DefaultReplyTimeout,
	}
}

// SetReplyTimeout changes how long Send waits when its context has no
// deadline. Non-positive values restore DefaultReplyTimeout.
func (c *RemoteClient) SetReplyTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		d = DefaultReplyTimeout
	}
	c.replyTimeout = d
}

// TabID returns the tab this client speaks for.
func (c *RemoteClient) TabID() int { return c.tabID }

// Connect opens the tab's websocket. Connecting twice is a no-op.
func (c *RemoteClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *RemoteClient) connectLocked(ctx context.Context) error {
	if c.ws != nil {
		return nil
	}
	url := fmt.Sprintf("ws://unix/api/tabs/%d/ws", c.tabID)
	ws, resp, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return fmt.Errorf("daemon refused tab %d: status %d", c.tabID, resp.StatusCode)
		}
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	c.ws = ws
	return nil
}

// Send submits one command and waits for its reply. The connection is opened
// on first use.
func (c *RemoteClient) Send(ctx context.Context, text string) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.replyTimeout)
	}
	_ = c.ws.SetWriteDeadline(deadline)
	_ = c.ws.SetReadDeadline(deadline)

	if err := c.ws.WriteJSON(map[string]string{"command": text}); err != nil {
		c.dropLocked()
		return nil, errors.Wrap(err, errors.ErrCodeTransportFailure, "failed to send command").
			WithDetail("tab", c.tabID)
	}

	var reply Reply
	if err := c.ws.ReadJSON(&reply); err != nil {
		c.dropLocked()
		return nil, errors.Wrap(err, errors.ErrCodeTransportFailure, "failed to read reply").
			WithDetail("tab", c.tabID)
	}
	return &reply, nil
}

func (c *RemoteClient) dropLocked() {
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
}

// Drain returns the broadcasts this tab has not consumed yet.
func (c *RemoteClient) Drain(ctx context.Context) ([]Event, error) {
	var events []Event
	if err := c.getJSON(ctx, fmt.Sprintf("/api/tabs/%d/broadcasts", c.tabID), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Status returns the daemon's global statistics.
func (c *RemoteClient) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.getJSON(ctx, "/api/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *RemoteClient) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Code != "" {
			return errors.New(errors.ErrorCode(body.Code), body.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamBroadcasts subscribes to the tab's broadcasts via Server-Sent Events (SSE).
func (c *RemoteClient) StreamBroadcasts(ctx context.Context) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/tabs/%d/stream", baseURL, c.tabID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// Use a separate client with no timeout for streaming
	streamTransport := &http.Transport{
		DialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
	}
	streamClient := &http.Client{
		Transport: streamTransport,
		Timeout:   0, // No timeout for streaming
	}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	ch := make(chan Event, 10)

	go func() {
		defer resp.Body.Close()
		defer close(ch)
		defer streamTransport.CloseIdleConnections()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()

			// Skip comments and empty lines
			if strings.HasPrefix(line, ":") || line == "" {
				continue
			}

			if strings.HasPrefix(line, "data: ") {
				var ev Event
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
					continue // Skip malformed data
				}

				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close disconnects the tab. The daemon announces the closure if the tab was synced.
func (c *RemoteClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws != nil {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.dropLocked()
	}
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
