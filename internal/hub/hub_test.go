package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/coderDevDev/dxp-dubai/internal/logging"
)

func newHubServer(t *testing.T, origins OriginValidator, connLimiter *rate.Limiter) (*Hub, *httptest.Server) {
	t.Helper()

	h := NewHub(origins, connLimiter, logging.NewNopLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))

	t.Cleanup(func() {
		srv.Close()
		_ = h.Shutdown(context.Background())
	})
	return h, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	})
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestAllowList(t *testing.T) {
	testCases := []struct {
		name    string
		list    AllowList
		origin  string
		allowed bool
	}{
		{"empty list allows anything", nil, "https://anywhere.example", true},
		{"wildcard allows anything", AllowList{"*"}, "https://anywhere.example", true},
		{"exact match", AllowList{"https://dxp.example"}, "https://dxp.example", true},
		{"mismatch rejected", AllowList{"https://dxp.example"}, "https://evil.example", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.list.IsAllowedOrigin(tc.origin))
		})
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	h, srv := newHubServer(t, nil, nil)
	conn := dial(t, srv)

	require.Eventually(t, func() bool {
		return h.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.Broadcast(ContentRendered("home", "home-hero"))

	msg := readMessage(t, conn)
	assert.Equal(t, TypeContentRendered, msg.Type)
	assert.Equal(t, "home-hero", msg.Target)
	assert.Equal(t, "home", msg.Content)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestHelloOnConnect(t *testing.T) {
	h, srv := newHubServer(t, nil, nil)
	h.SetHelloProvider(func() Message {
		return Hello("session-1", "home")
	})

	conn := dial(t, srv)

	msg := readMessage(t, conn)
	assert.Equal(t, TypeHello, msg.Type)
	assert.Equal(t, "home", msg.Target)
	assert.Equal(t, "session-1", msg.Content)
}

func TestHelloReply(t *testing.T) {
	h, srv := newHubServer(t, nil, nil)
	h.SetHelloProvider(func() Message {
		return Hello("session-2", "works")
	})

	conn := dial(t, srv)

	// Greeting arrives on registration, then again on request.
	first := readMessage(t, conn)
	require.Equal(t, TypeHello, first.Type)

	payload, err := json.Marshal(Message{Type: TypeHello})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))

	reply := readMessage(t, conn)
	assert.Equal(t, TypeHello, reply.Type)
	assert.Equal(t, "session-2", reply.Content)
}

func TestOriginRejected(t *testing.T) {
	_, srv := newHubServer(t, AllowList{"https://dxp.example"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	conn, resp, err := websocket.Dial(ctx, wsURL(srv), &websocket.DialOptions{HTTPHeader: header})
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestConnectionRateLimit(t *testing.T) {
	// Burst of one: the first dial passes, the second is throttled.
	_, srv := newHubServer(t, nil, rate.NewLimiter(0, 1))

	dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, resp, err := websocket.Dial(ctx, wsURL(srv), nil)
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestShutdownDisconnectsClients(t *testing.T) {
	h, srv := newHubServer(t, nil, nil)
	dial(t, srv)

	require.Eventually(t, func() bool {
		return h.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.Shutdown(context.Background()))
	assert.Equal(t, 0, h.ClientCount())

	// New upgrades are refused after shutdown.
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMessageConstructors(t *testing.T) {
	reloaded := ContentReloaded([]string{"listing", "copy"})
	assert.Equal(t, TypeContentReloaded, reloaded.Type)
	assert.Equal(t, "listing,copy", reloaded.Content)

	timeout := RouteTimeout("works", 8*time.Second)
	assert.Equal(t, TypeRouteTimeout, timeout.Type)
	assert.Equal(t, "works", timeout.Target)
	assert.Equal(t, "8s", timeout.Content)

	changed := RouteChanged("about")
	assert.Equal(t, TypeRouteChanged, changed.Type)
	assert.Equal(t, "about", changed.Target)

	applied := LayoutApplied("dusk")
	assert.Equal(t, TypeLayoutApplied, applied.Type)
	assert.Equal(t, "dusk", applied.Target)
}
