package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"FolioPulse/internal/usecase"
	xlogger "FolioPulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 50 * time.Second
	sendBuffer   = 16
)

// Message is one frame pushed to clients.
type Message struct {
	Type string                `json:"type"`
	Data usecase.PortfolioView `json:"data"`
}

// Hub pushes every portfolio change to connected websocket clients.
// Slow clients whose buffer fills up are disconnected.
type Hub struct {
	tracker  *usecase.Tracker
	log      *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	unsub   func()
}

type client struct {
	conn *websocket.Conn
	send chan Message
	once sync.Once
	// version of the newest snapshot queued; guarded by Hub.mu
	version uint64
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

func NewHub(tracker *usecase.Tracker, log *xlogger.Logger) *Hub {
	h := &Hub{
		tracker: tracker,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
	h.unsub = tracker.Subscribe(h.broadcast)
	return h
}

func (h *Hub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.Serve)
}

// Serve upgrades the request and streams views until the client leaves.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", xlogger.Error(err))
		return nil
	}
	cl := &client{conn: conn, send: make(chan Message, sendBuffer)}

	// register before taking the first view so no mutation falls between them
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	v := h.tracker.View("", false)
	cl.version = v.Version
	cl.send <- Message{Type: "snapshot", Data: v}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("ws client connected", xlogger.Int("clients", n))

	ctx, cancel := context.WithCancel(context.Background())
	go h.writeLoop(ctx, cl)
	h.readLoop(cl)
	cancel()
	h.remove(cl)
	return nil
}

// readLoop drains client frames so pongs and close frames are handled.
func (h *Hub) readLoop(cl *client) {
	cl.conn.SetReadLimit(4096)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("ws read", xlogger.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, cl *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := cl.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) broadcast(v usecase.PortfolioView) {
	msg := Message{Type: "snapshot", Data: v}
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		if v.Version < cl.version {
			continue
		}
		select {
		case cl.send <- msg:
			cl.version = v.Version
		default:
			// drop on backpressure
			delete(h.clients, cl)
			cl.close()
			h.log.Warn("ws client too slow, disconnected")
		}
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	delete(h.clients, cl)
	h.mu.Unlock()
	cl.close()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and stops listening for changes.
func (h *Hub) Close() {
	if h.unsub != nil {
		h.unsub()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		delete(h.clients, cl)
		cl.close()
	}
}
