// Package hub pushes content and navigation notifications to connected
// clients over WebSocket. A single goroutine owns registration and
// broadcasting; per-client send buffers keep one slow consumer from
// stalling the rest.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/coderDevDev/dxp-dubai/internal/logging"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second

	// Per-client inbound message budget.
	clientMessageRate  = rate.Limit(10)
	clientMessageBurst = 20
)

// OriginValidator decides whether a WebSocket upgrade from the given
// origin is acceptable.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowList validates origins against a fixed set. An empty list allows
// everything, which is the development default.
type AllowList []string

// IsAllowedOrigin implements OriginValidator.
func (a AllowList) IsAllowedOrigin(origin string) bool {
	if len(a) == 0 {
		return true
	}
	for _, allowed := range a {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

type client struct {
	conn         *websocket.Conn
	send         chan []byte
	limiter      *rate.Limiter
	lastActivity time.Time
}

// Hub owns all WebSocket connections and fans broadcasts out to them.
type Hub struct {
	clients      map[*websocket.Conn]*client
	clientsMutex sync.RWMutex

	broadcast  chan []byte
	register   chan *client
	unregister chan *websocket.Conn

	origins     OriginValidator
	connLimiter *rate.Limiter
	logger      logging.Logger

	helloMutex sync.RWMutex
	hello      func() Message

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
}

// NewHub creates a hub and starts its connection loop. A nil validator
// allows every origin; a nil connection limiter disables connection
// throttling.
func NewHub(origins OriginValidator, connLimiter *rate.Limiter, logger logging.Logger) *Hub {
	if origins == nil {
		origins = AllowList(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:     make(map[*websocket.Conn]*client),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *client, 32),
		unregister:  make(chan *websocket.Conn, 32),
		origins:     origins,
		connLimiter: connLimiter,
		logger:      logger.WithComponent("hub"),
		ctx:         ctx,
		cancel:      cancel,
	}

	go h.run()
	return h
}

// SetHelloProvider installs the greeting sent to each client right after
// it registers. The engine points this at the live session.
func (h *Hub) SetHelloProvider(fn func() Message) {
	h.helloMutex.Lock()
	defer h.helloMutex.Unlock()
	h.hello = fn
}

func (h *Hub) helloMessage() (Message, bool) {
	h.helloMutex.RLock()
	defer h.helloMutex.RUnlock()
	if h.hello == nil {
		return Message{}, false
	}
	return h.hello(), true
}

// HandleWebSocket upgrades the request and hands the connection to the
// hub loop.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.ctx.Done():
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	default:
	}

	if origin := r.Header.Get("Origin"); origin != "" && !h.origins.IsAllowedOrigin(origin) {
		h.logger.Warn(r.Context(), nil, "websocket origin rejected", "origin", origin, "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if h.connLimiter != nil && !h.connLimiter.Allow() {
		h.logger.Warn(r.Context(), nil, "websocket connection rate limited", "remote", r.RemoteAddr)
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origins were checked above against the configured allow list.
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{
		conn:         conn,
		send:         make(chan []byte, 256),
		limiter:      rate.NewLimiter(clientMessageRate, clientMessageBurst),
		lastActivity: time.Now(),
	}

	select {
	case h.register <- c:
	case <-h.ctx.Done():
		_ = conn.Close(websocket.StatusServiceRestart, "shutting down")
		return
	default:
		_ = conn.Close(websocket.StatusTryAgainLater, "busy")
		return
	}

	go h.serveClient(c)
	h.logger.Debug(r.Context(), "websocket client connected", "remote", r.RemoteAddr)
}

// Broadcast queues a message for every connected client. Messages are
// dropped, not queued unboundedly, when the hub is saturated.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(h.ctx, err, "failed to marshal broadcast", "type", msg.Type)
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warn(h.ctx, nil, "broadcast channel full, dropping message", "type", msg.Type)
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection and stops the hub loop.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.cancel()

		h.clientsMutex.Lock()
		for conn, c := range h.clients {
			close(c.send)
			_ = conn.Close(websocket.StatusNormalClosure, "server shutdown")
		}
		h.clients = make(map[*websocket.Conn]*client)
		h.clientsMutex.Unlock()

		h.logger.Info(ctx, "hub shut down")
	})
	return nil
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)
		case conn := <-h.unregister:
			h.unregisterClient(conn)
		case data := <-h.broadcast:
			h.fanOut(data)
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) registerClient(c *client) {
	h.clientsMutex.Lock()
	h.clients[c.conn] = c
	total := len(h.clients)
	h.clientsMutex.Unlock()

	h.logger.Debug(h.ctx, "client registered", "total", total)

	if msg, ok := h.helloMessage(); ok {
		if data, err := json.Marshal(msg); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

func (h *Hub) unregisterClient(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	c, exists := h.clients[conn]
	if exists {
		delete(h.clients, conn)
		close(c.send)
	}
	total := len(h.clients)
	h.clientsMutex.Unlock()

	if exists {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debug(h.ctx, "client unregistered", "total", total)
	}
}

func (h *Hub) fanOut(data []byte) {
	h.clientsMutex.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.clientsMutex.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Send buffer full; the client is too slow to keep.
			go func(conn *websocket.Conn) {
				select {
				case h.unregister <- conn:
				case <-h.ctx.Done():
				}
			}(c.conn)
		}
	}
}

func (h *Hub) serveClient(c *client) {
	defer func() {
		select {
		case h.unregister <- c.conn:
		case <-h.ctx.Done():
		}
	}()

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	for {
		ctx, cancel := context.WithTimeout(h.ctx, readTimeout)
		_, data, err := c.conn.Read(ctx)
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				h.logger.Debug(h.ctx, "websocket read ended", "reason", err.Error())
			}
			return
		}

		c.lastActivity = time.Now()

		if !c.limiter.Allow() {
			h.logger.Warn(h.ctx, nil, "client message rate exceeded, disconnecting")
			return
		}

		h.handleClientMessage(c, data)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		case <-h.ctx.Done():
			return
		}
	}
}

// handleClientMessage answers client hellos; everything else is inbound
// noise this hub only logs.
func (h *Hub) handleClientMessage(c *client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Debug(h.ctx, "undecodable client message", "bytes", len(data))
		return
	}

	if msg.Type == TypeHello {
		if greeting, ok := h.helloMessage(); ok {
			if reply, err := json.Marshal(greeting); err == nil {
				select {
				case c.send <- reply:
				default:
				}
			}
		}
		return
	}

	h.logger.Debug(h.ctx, "client message ignored", "type", msg.Type)
}
