package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkglog"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgrouter"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/event"
)

const (
	EventSession = "session"

	defaultSendBuffer   = 64
	defaultWriteTimeout = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	maxInboundMessage   = 512
)

var (
	ErrHubClosed  = errors.New("notify hub is closed")
	ErrSlowClient = fmt.Errorf("websocket client is not keeping up: %w", event.ErrDropped)
)

// Envelope is the frame sent to websocket clients.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type IDGenerator interface {
	Generate() string
}

type HubConfig struct {
	AllowedOrigins []string
	SendBuffer     int
	WriteTimeout   time.Duration
	PongWait       time.Duration
	ID             IDGenerator
}

// Hub keeps the websocket connections of every session and fans progress
// events out to them. A slow client loses events instead of slowing down
// the upload.
type Hub struct {
	upgrader     websocket.Upgrader
	ids          IDGenerator
	sendBuffer   int
	writeTimeout time.Duration
	pongWait     time.Duration

	mu       sync.RWMutex
	closed   bool
	sessions map[string]map[*client]struct{}
	wg       sync.WaitGroup
}

func NewHub(cfg HubConfig) *Hub {
	h := &Hub{
		ids:          cfg.ID,
		sendBuffer:   cfg.SendBuffer,
		writeTimeout: cfg.WriteTimeout,
		pongWait:     cfg.PongWait,
		sessions:     make(map[string]map[*client]struct{}),
	}
	if h.sendBuffer < 1 {
		h.sendBuffer = defaultSendBuffer
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = defaultWriteTimeout
	}
	if h.pongWait <= 0 {
		h.pongWait = defaultPongWait
	}

	origins := cfg.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(origins, r.Header.Get("Origin"))
		},
	}

	return h
}

// Publish sends event to every socket of the session. Having no socket is
// not an error.
func (h *Hub) Publish(_ context.Context, sessionID string, event entity.ProgressEvent) error {
	msg, err := json.Marshal(Envelope{Event: entity.EventFileUpload, Data: event})
	if err != nil {
		return err
	}
	return h.broadcast(sessionID, msg)
}

// Subscribers returns the number of sockets open for the session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// ServeHTTP upgrades the request and keeps the socket registered until the
// client goes away. The session is taken from the socketId query parameter
// or generated, and is announced to the client first.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := SessionFromQuery(r)
	if sessionID == "" && h.ids != nil {
		sessionID = h.ids.Generate()
	}
	if sessionID == "" {
		http.Error(w, "socketId is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied to the client
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	ctx := pkglog.SetSessionID(r.Context(), sessionID)
	c := newClient(conn, h.sendBuffer)
	if err := h.register(sessionID, c); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.writeTimeout))
		_ = conn.Close()
		return
	}
	defer h.unregister(sessionID, c)

	hello, _ := json.Marshal(Envelope{Event: EventSession, Data: map[string]string{"id": sessionID}})
	c.enqueue(hello)

	slog.InfoContext(ctx, "websocket connected", "subscribers", h.Subscribers(sessionID))

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		c.writeLoop(h.writeTimeout, h.pongWait)
	}()

	c.readLoop(h.pongWait)
	c.close()

	slog.InfoContext(ctx, "websocket disconnected")
}

// Close disconnects every client and waits for their writers to stop.
func (h *Hub) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	for _, clients := range h.sessions {
		for c := range clients {
			c.close()
		}
	}
	h.sessions = make(map[string]map[*client]struct{})
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// broadcast queues msg for every client of the session. Clients with a full
// queue miss it; the others already have it, so ErrSlowClient must not lead
// to a retry.
func (h *Hub) broadcast(sessionID string, msg []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}

	var dropped int
	for c := range h.sessions[sessionID] {
		if !c.enqueue(msg) {
			dropped++
		}
	}
	if dropped > 0 {
		slog.Warn("dropped progress event for slow websocket clients", "session_id", sessionID, "clients", dropped)
		return ErrSlowClient
	}
	return nil
}

func (h *Hub) register(sessionID string, c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	clients, ok := h.sessions[sessionID]
	if !ok {
		clients = make(map[*client]struct{})
		h.sessions[sessionID] = clients
	}
	clients[c] = struct{}{}
	return nil
}

func (h *Hub) unregister(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sessions[sessionID]
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.sessions, sessionID)
	}
}

// SessionFromQuery reads the session id a client addresses, accepting both
// socketId and session_id.
func SessionFromQuery(r *http.Request) string {
	return pkgrouter.GetQuery(r, pkgrouter.QuerySessionID, pkgrouter.QuerySessionIDAlt)
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
		return true
	}
	return slices.ContainsFunc(allowed, func(o string) bool {
		return strings.EqualFold(strings.TrimSuffix(o, "/"), strings.TrimSuffix(origin, "/"))
	})
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *client) writeLoop(writeTimeout, pongWait time.Duration) {
	ticker := time.NewTicker(pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				c.close()
				return
			}

		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return
		}
	}
}

// readLoop only keeps the connection alive: clients have nothing to say.
func (c *client) readLoop(pongWait time.Duration) {
	c.conn.SetReadLimit(maxInboundMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
