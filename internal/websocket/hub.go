package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"commentgen/internal/middleware"
	"commentgen/internal/models"
)

const (
	channelPrefix    = "comment_updates:"
	writeWait        = 10 * time.Second
	subscribeTimeout = 5 * time.Second
	maxSessionLen    = 128
)

var errNotConnected = errors.New("websocket not connected")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is registered before the upgrade completes; mu is held until conn
// is set so early events wait for the handshake instead of being dropped.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errNotConnected
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub delivers generation progress events to browser sessions. With a Redis
// client events fan out through pub/sub so any replica can publish them;
// without one they are delivered in process.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	redisClient *redis.Client
	auth        *middleware.JWTAuth

	subMu sync.Mutex
	subs  map[string]*subscription
}

// subscription is one Redis channel shared by every connection of a session.
type subscription struct {
	refs   int
	cancel context.CancelFunc
}

// NewHub creates a hub. redisClient and auth may be nil.
func NewHub(redisClient *redis.Client, auth *middleware.JWTAuth) *Hub {
	return &Hub{
		connections: make(map[string][]*client),
		redisClient: redisClient,
		auth:        auth,
		subs:        make(map[string]*subscription),
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	session := r.URL.Query().Get("session")
	if session == "" || len(session) > maxSessionLen {
		http.Error(w, "Missing or invalid session", http.StatusBadRequest)
		return
	}

	if h.auth != nil {
		if err := h.auth.AuthorizeSession(r.URL.Query().Get("token"), session); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	// The session is registered and subscribed before the handshake answer
	// goes out, so an event published right after connecting is delivered.
	c := &client{}
	c.mu.Lock()
	if err := h.registerConnection(r.Context(), session, c); err != nil {
		c.mu.Unlock()
		log.Warn().Err(err).Str("session", session).Msg("websocket subscription failed")
		http.Error(w, "Progress updates are unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	c.conn = conn
	c.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		h.unregisterConnection(session, c)
		return
	}

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(session, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Publish sends msg to every connection of sessionID.
func (h *Hub) Publish(ctx context.Context, sessionID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode websocket message")
		return
	}

	if h.redisClient == nil {
		h.broadcast(sessionID, data)
		return
	}

	if err := h.redisClient.Publish(ctx, channelPrefix+sessionID, data).Err(); err != nil {
		log.Warn().Err(err).Str("session", sessionID).Msg("failed to publish websocket message")
	}
}

func (h *Hub) registerConnection(ctx context.Context, session string, c *client) error {
	if err := h.subscribe(ctx, session); err != nil {
		return err
	}

	h.mu.Lock()
	h.connections[session] = append(h.connections[session], c)
	n := len(h.connections[session])
	h.mu.Unlock()

	log.Debug().Str("session", session).Int("connections", n).Msg("websocket connected")
	return nil
}

func (h *Hub) unregisterConnection(session string, c *client) {
	c.close()

	h.mu.Lock()
	conns := h.connections[session]
	for i, existing := range conns {
		if existing == c {
			h.connections[session] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.connections[session]) == 0 {
		delete(h.connections, session)
	}
	h.mu.Unlock()

	h.unsubscribe(session)
	log.Debug().Str("session", session).Msg("websocket disconnected")
}

// subscribe returns once Redis has confirmed the session's channel, so no
// event published afterwards can miss it.
func (h *Hub) subscribe(ctx context.Context, session string) error {
	if h.redisClient == nil {
		return nil
	}

	h.subMu.Lock()
	defer h.subMu.Unlock()

	if sub, ok := h.subs[session]; ok {
		sub.refs++
		return nil
	}

	subCtx, cancel := context.WithCancel(context.Background())
	pubsub := h.redisClient.Subscribe(subCtx, channelPrefix+session)

	recvCtx, recvCancel := context.WithTimeout(ctx, subscribeTimeout)
	defer recvCancel()
	if _, err := pubsub.Receive(recvCtx); err != nil {
		pubsub.Close()
		cancel()
		return err
	}

	h.subs[session] = &subscription{refs: 1, cancel: cancel}
	go h.relay(subCtx, session, pubsub)
	return nil
}

func (h *Hub) unsubscribe(session string) {
	if h.redisClient == nil {
		return
	}

	h.subMu.Lock()
	defer h.subMu.Unlock()

	sub, ok := h.subs[session]
	if !ok {
		return
	}
	sub.refs--
	if sub.refs <= 0 {
		sub.cancel()
		delete(h.subs, session)
	}
}

func (h *Hub) relay(ctx context.Context, session string, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(session, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(session string, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[session]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			log.Debug().Err(err).Str("session", session).Msg("websocket write failed")
		}
	}
}

func (h *Hub) connectionCount(session string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[session])
}

// Close drops every connection and stops all subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	for _, conns := range h.connections {
		for _, c := range conns {
			c.close()
		}
	}
	h.connections = make(map[string][]*client)
	h.mu.Unlock()

	h.subMu.Lock()
	for _, sub := range h.subs {
		sub.cancel()
	}
	h.subs = make(map[string]*subscription)
	h.subMu.Unlock()
}
