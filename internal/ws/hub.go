package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chat-sync/internal/auth"
	"chat-sync/internal/logger"
	"chat-sync/internal/observability"
)

const writeWait = 10 * time.Second

// ConnInfo identifies a feed in logs and ws events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	SessionID   string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Client is one live websocket feed.
type Client struct {
	conn      *websocket.Conn
	kind      string
	resource  string
	info      ConnInfo
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, kind, resource string, info ConnInfo) *Client {
	return &Client{conn: conn, kind: kind, resource: resource, info: info, done: make(chan struct{})}
}

// WriteJSON serializes writes; subscriptions and send completions write
// from different goroutines.
func (c *Client) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Close shuts the connection; safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Hub tracks open feeds so they can be closed on sign-out.
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// AddClient registers a feed.
func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	observability.IncWSActive(c.kind)
}

// RemoveClient unregisters a feed.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		observability.DecWSActive(c.kind)
	}
}

// Count returns the number of open feeds.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseSession closes every feed opened with the session.
func (h *Hub) CloseSession(sessionID string) int {
	return h.closeWhere(func(c *Client) bool { return c.info.SessionID == sessionID })
}

// CloseUser closes every feed of the user.
func (h *Hub) CloseUser(userID string) int {
	return h.closeWhere(func(c *Client) bool { return c.info.UserID == userID })
}

func (h *Hub) closeWhere(match func(*Client) bool) int {
	h.mu.RLock()
	var matched []*Client
	for c := range h.clients {
		if match(c) {
			matched = append(matched, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range matched {
		c.Close()
		h.RemoveClient(c)
	}
	return len(matched)
}

// Follow closes a session's feeds when it signs out.
func (h *Hub) Follow(events *auth.Events) func() {
	return events.Subscribe(func(ev auth.Event) {
		if ev.Kind != auth.SignedOut {
			return
		}
		if n := h.CloseSession(ev.SessionID); n > 0 {
			logger.Log.Info("ws_feeds_closed_on_signout", zap.String("user_id", ev.UserID), zap.Int("feeds", n))
		}
	})
}

func publishWSEvent(ctx context.Context, c *Client, event, reason string) {
	observability.IncWSEvent(c.kind, event)
	observability.PublishEvent(ctx, wsRoutingKey(c.kind), map[string]any{
		"ws": map[string]any{
			"kind":        c.kind,
			"resource_id": c.resource,
			"event":       event,
			"conn_id":     c.info.ConnID,
			"duration_ms": time.Since(c.info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":    c.info.UserID,
			"session_id": c.info.SessionID,
			"ip":         c.info.IP,
		},
	})
}

// serve registers c, blocks reading frames until the connection ends and
// then cleans up. onFrame may be nil.
func (h *Hub) serve(ctx context.Context, c *Client, onFrame func([]byte)) {
	h.AddClient(c)
	publishWSEvent(ctx, c, "ws_connect", "")

	var closeReason string
	defer func() {
		h.RemoveClient(c)
		c.Close()
		publishWSEvent(ctx, c, "ws_disconnect", closeReason)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			select {
			case <-c.done:
				closeReason = "closed by server"
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishWSEvent(ctx, c, "ws_error", closeReason)
				}
			}
			return
		}
		if onFrame != nil {
			onFrame(data)
		}
	}
}
