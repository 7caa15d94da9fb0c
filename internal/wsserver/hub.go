package wsserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gmliao/landsync/internal/syncengine"
)

// writeDeadline bounds a single WebSocket write; a client that cannot keep
// up within this window is considered dead rather than allowed to stall the
// sync round for every other viewer.
const writeDeadline = 5 * time.Second

// readDeadline and pingInterval implement the same keepalive discipline:
// three missed pings (readDeadline = 3*pingInterval) before a connection is
// dropped.
const (
	readDeadline = 90 * time.Second
	pingInterval = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 32 * 1024,
}

// HubOptions configures the demo WebSocket server.
type HubOptions struct {
	// Addr is the listen address, e.g. "127.0.0.1:0" for an OS-assigned port.
	Addr string
}

// Hub is a multi-connection WebSocket server: unlike a single desktop
// client, a land has many simultaneous viewers, so the hub keyed by viewer
// id instead of holding one shared connection.
//
// Lock ordering: writeMu (per connection) is independent of mu; mu is only
// ever held while mutating the connections map, never while writing.
type Hub struct {
	opts HubOptions

	mu    sync.RWMutex
	conns map[string]*viewerConn // viewer id -> connection

	listener net.Listener
	server   *http.Server
	url      string

	closeOnce sync.Once
}

type viewerConn struct {
	viewer  string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewHub creates a Hub; it is not listening until Start is called.
func NewHub(opts HubOptions) *Hub {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	return &Hub{opts: opts, conns: make(map[string]*viewerConn)}
}

// Start begins listening and serving WebSocket upgrade requests at /ws.
// Viewers are expected to connect with a "?viewer=<id>" query parameter.
func (h *Hub) Start(ctx context.Context) error {
	if h.server != nil {
		return fmt.Errorf("wsserver: already started")
	}

	ln, err := net.Listen("tcp", h.opts.Addr)
	if err != nil {
		return fmt.Errorf("wsserver: listen: %w", err)
	}
	h.listener = ln

	port := ln.Addr().(*net.TCPAddr).Port
	h.url = fmt.Sprintf("ws://127.0.0.1:%d/ws", port)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	h.server = &http.Server{
		Handler: mux,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if serveErr := h.server.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("wsserver: server error", "error", serveErr)
		}
	}()

	slog.Info("wsserver: demo sync server started", "url", h.url)
	return nil
}

// Stop gracefully shuts down the HTTP server and closes every connection.
// Idempotent.
func (h *Hub) Stop() error {
	var stopErr error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		conns := h.conns
		h.conns = make(map[string]*viewerConn)
		h.mu.Unlock()

		for _, vc := range conns {
			_ = vc.conn.Close()
		}

		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.server.Shutdown(shutdownCtx); err != nil {
				stopErr = fmt.Errorf("wsserver: shutdown: %w", err)
			}
		}
		slog.Info("wsserver: demo sync server stopped")
	})
	return stopErr
}

// URL returns the WebSocket URL once Start has run, else "".
func (h *Hub) URL() string { return h.url }

// IsConnected reports whether viewer currently has an open connection.
func (h *Hub) IsConnected(viewer string) bool {
	h.mu.RLock()
	_, ok := h.conns[viewer]
	h.mu.RUnlock()
	return ok
}

// ConnectedViewers returns the ids of every currently connected viewer. The
// land keeper uses this to know whom to call generate_diff for each round.
func (h *Hub) ConnectedViewers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.conns))
	for v := range h.conns {
		out = append(out, v)
	}
	return out
}

// Send encodes upd and writes it to viewer's connection. A write failure (or
// an absent connection) is reported but is not fatal to the caller's round:
// the viewer simply misses this update and will resynchronize, by design,
// via a first_sync once it reconnects and its cache entry is evicted.
func (h *Hub) Send(viewer string, upd syncengine.Update) error {
	h.mu.RLock()
	vc, ok := h.conns[viewer]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("wsserver: viewer %q not connected", viewer)
	}

	data, err := EncodeUpdate(upd)
	if err != nil {
		return err
	}

	vc.writeMu.Lock()
	defer vc.writeMu.Unlock()
	if err := vc.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		h.drop(viewer, vc)
		return fmt.Errorf("wsserver: set write deadline: %w", err)
	}
	if err := vc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.drop(viewer, vc)
		return fmt.Errorf("wsserver: write: %w", err)
	}
	return nil
}

func (h *Hub) drop(viewer string, vc *viewerConn) {
	h.mu.Lock()
	if h.conns[viewer] == vc {
		delete(h.conns, viewer)
	}
	h.mu.Unlock()
	_ = vc.conn.Close()
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	viewer := r.URL.Query().Get("viewer")
	if viewer == "" {
		http.Error(w, "missing viewer query parameter", http.StatusBadRequest)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("wsserver: upgrade failed", "viewer", viewer, "error", err)
		return
	}
	conn.SetReadLimit(32 * 1024)

	vc := &viewerConn{viewer: viewer, conn: conn}
	h.mu.Lock()
	if prev, exists := h.conns[viewer]; exists {
		_ = prev.conn.Close() // a reconnect replaces the stale connection
	}
	h.conns[viewer] = vc
	h.mu.Unlock()

	slog.Info("wsserver: viewer connected", "viewer", viewer)
	h.serveConn(vc)
}

func (h *Hub) serveConn(vc *viewerConn) {
	defer h.drop(vc.viewer, vc)

	done := make(chan struct{})
	go h.pingLoop(vc, done)
	defer close(done)

	_ = vc.conn.SetReadDeadline(time.Now().Add(readDeadline))
	vc.conn.SetPongHandler(func(string) error {
		return vc.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		if _, _, err := vc.conn.ReadMessage(); err != nil {
			slog.Debug("wsserver: viewer disconnected", "viewer", vc.viewer, "error", err)
			return
		}
	}
}

func (h *Hub) pingLoop(vc *viewerConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			vc.writeMu.Lock()
			err := vc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline))
			vc.writeMu.Unlock()
			if err != nil {
				h.drop(vc.viewer, vc)
				return
			}
		}
	}
}
