// Package hub implements the two real-time WebSocket channels: the user
// hub (account, order, position and trade updates keyed by account id) and
// the market hub (quotes, tape and depth keyed by contract id).
//
// Both hubs share one connection core. Each connection carries a
// subscription record mutated only by its own inbound messages; a
// broadcast is delivered to exactly the connections whose record matches
// the event's key. Delivery is best-effort: each connection has a bounded
// outbound queue drained by one writer goroutine, so per-connection order
// is FIFO and a full queue drops the message instead of blocking the
// caller.
package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/atmx/gateway-sim/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Simulator clients connect from anywhere.
	},
}

// client is one live connection.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// enqueue queues msg without blocking. It returns false when the client is
// closed or its queue is full.
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
		c.conn.Close()
	})
}

// handler decodes one inbound message. It returns the subscription change
// to apply, or ok=false to ignore the message without an ack.
type handler[S any] func(c *client, raw []byte) (apply func(*S), ok bool)

// core tracks the live clients of one hub and their subscription records.
type core[S any] struct {
	name   string
	newSub func() *S
	handle handler[S]
	mirror Mirror

	mu      sync.RWMutex
	clients map[*client]*S
}

func newCore[S any](name string, newSub func() *S, handle handler[S], mirror Mirror) *core[S] {
	return &core[S]{
		name:    name,
		newSub:  newSub,
		handle:  handle,
		mirror:  mirror,
		clients: make(map[*client]*S),
	}
}

// serve upgrades the request and starts the connection's pumps.
func (h *core[S]) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "hub", h.name, "err", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *core[S]) register(c *client) {
	h.mu.Lock()
	h.clients[c] = h.newSub()
	total := len(h.clients)
	h.mu.Unlock()

	metrics.HubClients.WithLabelValues(h.name).Inc()
	slog.Info("ws client connected", "hub", h.name, "conn", c.id, "total", total)
}

func (h *core[S]) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		metrics.HubClients.WithLabelValues(h.name).Dec()
		slog.Info("ws client disconnected", "hub", h.name, "conn", c.id, "total", total)
	}
}

// readPump applies inbound subscription changes until the connection
// fails. Bad messages are dropped; the connection stays open.
func (h *core[S]) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read failed", "hub", h.name, "conn", c.id, "err", err)
			}
			return
		}

		apply, ok := h.handle(c, raw)
		if !ok {
			continue
		}
		h.mu.Lock()
		if sub, live := h.clients[c]; live {
			apply(sub)
		}
		h.mu.Unlock()

		if !c.enqueue(ackPayload) {
			slog.Warn("ack dropped", "hub", h.name, "conn", c.id)
		}
	}
}

// writePump is the only writer on c.conn.
func (h *core[S]) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("ws write failed", "hub", h.name, "conn", c.id, "err", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// broadcast sends msg to every client whose subscription matches. It
// returns the number of clients the message was queued for.
func (h *core[S]) broadcast(msg eventMessage, match func(*S) bool) int {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("event encode failed", "hub", h.name, "event", msg.Event, "err", err)
		return 0
	}

	h.mu.RLock()
	var targets []*client
	for c, sub := range h.clients {
		if match(sub) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.enqueue(payload) {
			sent++
		}
	}
	if sent > 0 {
		metrics.HubMessages.WithLabelValues(h.name, msg.Event, "sent").Add(float64(sent))
	}
	if dropped := len(targets) - sent; dropped > 0 {
		metrics.HubMessages.WithLabelValues(h.name, msg.Event, "dropped").Add(float64(dropped))
	}

	if h.mirror != nil {
		h.mirror.Mirror(h.name, payload)
	}
	return sent
}

// each calls fn with every subscription record under the read lock.
func (h *core[S]) each(fn func(*S)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.clients {
		fn(sub)
	}
}

func (h *core[S]) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects every client. The read pumps unregister them.
func (h *core[S]) closeAll() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.close()
	}
}

// logDecodeError reports an inbound message that could not be decoded.
func logDecodeError(hub string, c *client, err error) {
	switch {
	case errors.Is(err, errMalformed):
		slog.Error("ws message parse failed", "hub", hub, "conn", c.id, "err", err)
	case errors.Is(err, errNotInvoke):
		slog.Debug("ws message ignored", "hub", hub, "conn", c.id, "err", err)
	default:
		slog.Warn("ws message rejected", "hub", hub, "conn", c.id, "err", err)
	}
}

// keySet is a set of subscription keys.
type keySet[K comparable] map[K]struct{}

func (s keySet[K]) add(k K)    { s[k] = struct{}{} }
func (s keySet[K]) remove(k K) { delete(s, k) }

func (s keySet[K]) has(k K) bool {
	_, ok := s[k]
	return ok
}
