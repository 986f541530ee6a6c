package pushhub

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FuturICT2/FIN4NotificationServer/internal/domain"
	"github.com/FuturICT2/FIN4NotificationServer/internal/services"
)

const testAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func newTestHub(t *testing.T) (*Hub, *services.IdentityRegistry, *httptest.Server) {
	t.Helper()
	identity := services.NewIdentityRegistry(zap.NewNop())
	hub := NewHub(identity, zap.NewNop())

	e := echo.New()
	e.GET("/ws", hub.Handler)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return hub, identity, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRegisterLinksSession(t *testing.T) {
	_, identity, srv := newTestHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("register "+testAddr)))

	require.Eventually(t, func() bool {
		_, ok := identity.Resolve(domain.ChannelPush, testAddr)
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestDisconnectUnlinks(t *testing.T) {
	_, identity, srv := newTestHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("register "+testAddr)))
	require.Eventually(t, func() bool {
		_, ok := identity.Resolve(domain.ChannelPush, testAddr)
		return ok
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		_, ok := identity.Resolve(domain.ChannelPush, testAddr)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesClient(t *testing.T) {
	hub, _, srv := newTestHub(t)
	conn := dial(t, srv)

	// wait for the session to land in the hub
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.conns) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(domain.Fin4TokenCreated, map[string]string{"tokenAddr": testAddr}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got frame
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, domain.Fin4TokenCreated, got.Event)
	assert.Equal(t, testAddr, got.Payload["tokenAddr"])
}

func TestSendToTargetsOneSession(t *testing.T) {
	hub, identity, srv := newTestHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("register "+testAddr)))
	var session string
	require.Eventually(t, func() bool {
		s, ok := identity.Resolve(domain.ChannelPush, testAddr)
		session = s
		return ok
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.SendTo(session, domain.ClaimApproved, map[string]string{"mintedQuantity": "100"}))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var got frame
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, domain.ClaimApproved, got.Event)

	err = hub.SendTo("no-such-session", domain.ClaimApproved, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
