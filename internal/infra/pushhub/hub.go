package pushhub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
	"github.com/FuturICT2/FIN4NotificationServer/internal/services"
)

// frame is what push frontends receive per event.
type frame struct {
	Event   domain.EventKind  `json:"event"`
	Payload map[string]string `json:"payload"`
}

// Hub owns the push-socket sessions. A frontend registers its account
// address with a "register <addr>" text frame; the link lives only while the
// socket is connected.
type Hub struct {
	identity *services.IdentityRegistry
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu    sync.RWMutex
	conns map[string]*client // session id -> client
}

type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func NewHub(identity *services.IdentityRegistry, log *zap.Logger) *Hub {
	return &Hub{
		identity: identity,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:   log,
		conns: make(map[string]*client),
	}
}

// Handler upgrades an echo request into a push session.
func (h *Hub) Handler(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	sessionID := uuid.NewString()
	h.mu.Lock()
	h.conns[sessionID] = &client{conn: conn}
	h.mu.Unlock()
	h.log.Info("push session connected", zap.String("session", sessionID))

	go h.readLoop(sessionID, conn)
	return nil
}

func (h *Hub) readLoop(sessionID string, conn *websocket.Conn) {
	defer h.drop(sessionID, conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleFrame(sessionID, string(data))
	}
}

func (h *Hub) handleFrame(sessionID, text string) {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(parts) != 2 || parts[0] != "register" {
		return
	}
	addr, err := domain.NormalizeAddress(parts[1])
	if err != nil {
		h.log.Warn("push register rejected",
			zap.String("session", sessionID),
			zap.Error(err))
		return
	}
	h.identity.Link(domain.ChannelPush, sessionID, addr)
}

func (h *Hub) drop(sessionID string, conn *websocket.Conn) {
	h.identity.Unlink(domain.ChannelPush, sessionID)
	h.mu.Lock()
	delete(h.conns, sessionID)
	h.mu.Unlock()
	_ = conn.Close()
	h.log.Info("push session disconnected", zap.String("session", sessionID))
}

// Broadcast sends the event to every connected session.
func (h *Hub) Broadcast(kind domain.EventKind, payload map[string]string) error {
	data, err := json.Marshal(frame{Event: kind, Payload: payload})
	if err != nil {
		return err
	}
	h.mu.RLock()
	clients := make([]*client, 0, len(h.conns))
	for _, cl := range h.conns {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		if err := cl.write(data); err != nil {
			h.log.Debug("push broadcast write failed", zap.Error(err))
		}
	}
	return nil
}

// SendTo sends the event to one session.
func (h *Hub) SendTo(sessionID string, kind domain.EventKind, payload map[string]string) error {
	h.mu.RLock()
	cl, ok := h.conns[sessionID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: push session %s", domain.ErrNotFound, sessionID)
	}
	data, err := json.Marshal(frame{Event: kind, Payload: payload})
	if err != nil {
		return err
	}
	return cl.write(data)
}
