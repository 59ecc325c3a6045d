package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/hotplate/internal/logging"
	"github.com/conneroisu/hotplate/internal/registry"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 16
)

// Message types pushed to live reload clients.
const (
	MessageConnected = "connected"
	MessageReload    = "reload"
	MessageError     = "error"
)

// Message is the JSON document pushed over /_livereload.
type Message struct {
	Type       string    `json:"type"`
	Generation uint64    `json:"generation"`
	Templates  int       `json:"templates,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func messageFor(e registry.ReloadEvent) Message {
	msg := Message{
		Type:       MessageReload,
		Generation: e.Generation,
		Templates:  e.Templates,
		DurationMs: e.Duration.Milliseconds(),
		Timestamp:  e.Timestamp,
	}
	if e.Err != nil {
		msg.Type = MessageError
		msg.Error = e.Err.Error()
	}
	return msg
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans reload events out to websocket clients. Only run touches the
// clients map; register and unregister go through channels.
type hub struct {
	logger     logging.Logger
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	done       chan struct{}
	stopOnce   sync.Once

	countMu sync.RWMutex
	n       int
}

func newHub(logger logging.Logger) *hub {
	return &hub{
		logger:     logger,
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

func (h *hub) count() int {
	h.countMu.RLock()
	defer h.countMu.RUnlock()
	return h.n
}

func (h *hub) setCount() {
	h.countMu.Lock()
	h.n = len(h.clients)
	h.countMu.Unlock()
}

// run owns the client set until ctx is cancelled.
func (h *hub) run(ctx context.Context, events <-chan registry.ReloadEvent) {
	defer h.stopOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.setCount()
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount()
			h.logger.Debug(ctx, "live reload client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setCount()
				h.logger.Debug(ctx, "live reload client disconnected", "clients", len(h.clients))
			}

		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			data, err := json.Marshal(messageFor(e))
			if err != nil {
				h.logger.Error(ctx, err, "failed to encode reload message")
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow client; drop it rather than stall the others.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.setCount()
		}
	}
}

func (s *PreviewServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*", s.config.Host + ":*"},
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	hello, _ := json.Marshal(Message{
		Type:       MessageConnected,
		Generation: s.templates.Generation(),
		Templates:  len(s.templates.Names()),
		Timestamp:  time.Now(),
	})
	c.send <- hello

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	case <-r.Context().Done():
		conn.Close(websocket.StatusGoingAway, "")
		return
	}

	go c.writePump(s.logger)
	c.readPump(s.hub)
}

// readPump discards client messages and unregisters the client once the
// connection closes.
func (c *client) readPump(h *hub) {
	ctx := context.Background()
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			break
		}
	}

	select {
	case h.unregister <- c:
	case <-h.done:
	}
	c.conn.Close(websocket.StatusNormalClosure, "")
}

// writePump writes queued messages and pings until the hub closes send.
func (c *client) writePump(logger logging.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				logger.Debug(ctx, "websocket write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
