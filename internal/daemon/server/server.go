// Package server exposes the browser daemon over HTTP on a Unix socket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/tabd/errors"
	"github.com/grovetools/tabd/internal/daemon/browser"
	"github.com/grovetools/tabd/internal/daemon/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// RunningConfig holds the settings the daemon is actually using.
// This is exposed via the /api/config endpoint so clients can verify what config is active.
type RunningConfig struct {
	Socket              string        `json:"socket"`
	ConfigFile          string        `json:"config_file,omitempty"`
	SweepInterval       time.Duration `json:"sweep_interval"`
	InactivityThreshold time.Duration `json:"inactivity_threshold"`
	DegradedAfter       time.Duration `json:"degraded_after"`
	ReplyRetries        int           `json:"reply_retries"`
	RenderEngine        string        `json:"render_engine"`
	RenderDir           string        `json:"render_dir"`
	StartedAt           time.Time     `json:"started_at"`
}

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger     *logrus.Entry
	server     *http.Server
	daemon     *browser.Daemon
	configFile string
	upgrader   websocket.Upgrader
}

// New creates a new Server instance.
func New(d *browser.Daemon, logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
		server: &http.Server{},
		daemon: d,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Only local processes can reach the socket.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetConfigFile records which file the running configuration came from.
func (s *Server) SetConfigFile(path string) {
	s.configFile = path
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/tabs", s.handleTabs)
	mux.HandleFunc("GET /api/tabs/{id}/ws", s.handleTabSocket)
	mux.HandleFunc("GET /api/tabs/{id}/broadcasts", s.handleBroadcasts)
	mux.HandleFunc("GET /api/tabs/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)

	return h2c.NewHandler(mux, &http2.Server{})
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails; a stop through Shutdown
// returns nil.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.server.Handler = s.Handler()

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	if err := s.server.Serve(listener); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

// handleHealth reports "ok", or 503 once the coordination store is degraded.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.Health(); err != nil {
		http.Error(w, "degraded: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type apiStatus struct {
	store.Stats
	Sessions    int    `json:"sessions"`
	Connections int    `json:"connections"`
	Health      string `json:"health"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.daemon.Store()
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, errors.NoCoordinationStore("status"))
		return
	}

	status := apiStatus{
		Stats:       st.Stats(),
		Sessions:    s.daemon.Registry().Len(),
		Connections: s.daemon.Connections(),
		Health:      "ok",
	}
	if err := s.daemon.Health(); err != nil {
		status.Health = "degraded"
	}
	writeJSON(w, status)
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.daemon.Registry().List())
}

type commandFrame struct {
	Command string `json:"command"`
}

type replyFrame struct {
	TabID int    `json:"tab_id"`
	Text  string `json:"text"`
	Code  string `json:"code,omitempty"`
}

// handleTabSocket carries one tab's commands and replies. Each client frame is
// one command; each server frame is its reply.
func (s *Server) handleTabSocket(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDFromPath(w, r)
	if !ok {
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer ws.Close()

	conn := s.daemon.Connect(tabID)
	defer conn.Close()

	logger := s.logger.WithField("tab", tabID)
	logger.Debug("Tab connected")

	for {
		var frame commandFrame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Warn("Tab connection lost")
			} else {
				logger.Debug("Tab disconnected")
			}
			return
		}

		reply, err := conn.Send(r.Context(), frame.Command)
		if err != nil {
			logger.WithError(err).Warn("Command not answered")
			return
		}

		out := replyFrame{TabID: reply.TabID, Text: reply.Text}
		if reply.Err != nil {
			out.Code = string(errors.GetCode(reply.Err))
		}
		if err := ws.WriteJSON(out); err != nil {
			logger.WithError(err).Warn("Failed to write reply")
			return
		}
	}
}

// apiEvent matches the tabclient.Event type.
type apiEvent struct {
	ID           string          `json:"id"`
	Seq          int             `json:"seq"`
	Kind         store.EventKind `json:"kind"`
	SenderTab    int             `json:"sender_tab"`
	Timestamp    time.Time       `json:"timestamp"`
	Payload      string          `json:"payload"`
	Notification string          `json:"notification"`
}

func toAPIEvents(events []store.BroadcastEvent) []apiEvent {
	out := make([]apiEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, apiEvent{
			ID:           ev.ID,
			Seq:          ev.Seq,
			Kind:         ev.Kind,
			SenderTab:    ev.SenderTab,
			Timestamp:    ev.Timestamp,
			Payload:      ev.Payload,
			Notification: store.Notification(ev),
		})
	}
	return out
}

// handleBroadcasts drains the tab's unread broadcasts.
func (s *Server) handleBroadcasts(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDFromPath(w, r)
	if !ok {
		return
	}
	events, err := s.daemon.Drain(tabID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, toAPIEvents(events))
}

// handleStream provides Server-Sent Events (SSE) for a tab's broadcasts.
// Every store wake-up drains the tab's unread events onto the stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	tabID, ok := tabIDFromPath(w, r)
	if !ok {
		return
	}
	st := s.daemon.Store()
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, errors.NoCoordinationStore("stream"))
		return
	}

	// Ensure the connection supports flushing
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	s.logger.WithField("tab", tabID).Debug("SSE client connected")

	push := func() {
		events, err := s.daemon.Drain(tabID)
		if err != nil {
			return
		}
		for _, ev := range toAPIEvents(events) {
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal event")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		flusher.Flush()
	}

	push()
	for {
		select {
		case <-r.Context().Done():
			s.logger.WithField("tab", tabID).Debug("SSE client disconnected")
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			push()
		}
	}
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.daemon.Config()
	writeJSON(w, RunningConfig{
		Socket:              cfg.Daemon.Socket,
		ConfigFile:          s.configFile,
		SweepInterval:       cfg.Daemon.Sweep(),
		InactivityThreshold: cfg.Daemon.Inactivity(),
		DegradedAfter:       cfg.Daemon.Degraded(),
		ReplyRetries:        cfg.Daemon.ReplyRetries,
		RenderEngine:        cfg.Render.Engine,
		RenderDir:           cfg.Render.Dir,
		StartedAt:           s.daemon.StartedAt(),
	})
}

func tabIDFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, errors.New(errors.ErrCodeInvalidInput, "invalid tab id").
			WithDetail("id", r.PathValue("id")))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": err.Error()}
	if code := errors.GetCode(err); code != "" {
		body["code"] = string(code)
	}
	json.NewEncoder(w).Encode(body)
}
