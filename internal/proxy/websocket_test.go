package proxy

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/gochp/internal/observability"
	"github.com/vyrodovalexey/gochp/internal/routes"
)

// newEchoBackend starts a WebSocket server that echoes every message
// back to the sender.
func newEchoBackend(t *testing.T, onUpgrade func(*http.Request)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if onUpgrade != nil {
			onUpgrade(r)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, msg, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}
			if writeErr := conn.WriteMessage(msgType, msg); writeErr != nil {
				return
			}
		}
	}))
}

// wsDialURL rewrites an httptest server URL into a ws:// URL.
func wsDialURL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + path
}

func TestDispatcher_WebSocketRelay(t *testing.T) {
	t.Parallel()

	backend := newEchoBackend(t, nil)
	defer backend.Close()

	table := routes.NewTable()
	require.NoError(t, table.Set("/ws", backend.URL))

	front := httptest.NewServer(NewDispatcher(table))
	defer front.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsDialURL(front.URL, "/ws/session"), nil)
	require.NoError(t, err)
	defer conn.Close()
	if resp != nil {
		resp.Body.Close()
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(msg))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("pong")))

	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(msg))
}

func TestDispatcher_WebSocketForwardingHeaders(t *testing.T) {
	t.Parallel()

	headerCh := make(chan http.Header, 1)
	backend := newEchoBackend(t, func(r *http.Request) {
		headerCh <- r.Header.Clone()
	})
	defer backend.Close()

	table := routes.NewTable()
	require.NoError(t, table.Set("/ws", backend.URL))

	front := httptest.NewServer(NewDispatcher(table))
	defer front.Close()

	header := http.Header{}
	header.Set("X-Custom-Header", "carried")

	conn, resp, err := websocket.DefaultDialer.Dial(
		wsDialURL(front.URL, "/ws/session?kernel=1"), header)
	require.NoError(t, err)
	defer conn.Close()
	if resp != nil {
		resp.Body.Close()
	}

	select {
	case got := <-headerCh:
		assert.Equal(t, "/ws/session?kernel=1", got.Get("X-Original-URI"))
		assert.Equal(t, "http", got.Get("X-Forwarded-Proto"))
		assert.Equal(t, "carried", got.Get("X-Custom-Header"))
	case <-time.After(2 * time.Second):
		t.Fatal("backend never saw the upgrade request")
	}
}

func TestDispatcher_WebSocketMessagesCounted(t *testing.T) {
	t.Parallel()

	backend := newEchoBackend(t, nil)
	defer backend.Close()

	table := routes.NewTable()
	require.NoError(t, table.Set("/ws", backend.URL))

	metrics := observability.NewMetrics("chp_ws_count_test")
	front := httptest.NewServer(NewDispatcher(table, WithMetrics(metrics)))
	defer front.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsDialURL(front.URL, "/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()
	if resp != nil {
		resp.Body.Close()
	}

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf("msg-%d", i))))
		_, _, readErr := conn.ReadMessage()
		require.NoError(t, readErr)
	}

	// The relay increments counters after forwarding, so poll rather
	// than assert immediately.
	scrapeContains := func(want string) bool {
		rec := httptest.NewRecorder()
		metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return strings.Contains(rec.Body.String(), want)
	}

	assert.Eventually(t, func() bool {
		return scrapeContains(`chp_ws_count_test_websocket_messages_total{direction="client_to_backend"} 2`)
	}, 2*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		return scrapeContains(`chp_ws_count_test_websocket_messages_total{direction="backend_to_client"} 2`)
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDispatcher_WebSocketDialRejected(t *testing.T) {
	t.Parallel()

	// A backend that refuses the upgrade with a plain HTTP error.
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no websockets here", http.StatusForbidden)
	}))
	defer backend.Close()

	table := routes.NewTable()
	require.NoError(t, table.Set("/ws", backend.URL))

	front := httptest.NewServer(NewDispatcher(table))
	defer front.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsDialURL(front.URL, "/ws"), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	// The backend's rejection travels through to the client.
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDispatcher_WebSocketBackendUnreachable(t *testing.T) {
	t.Parallel()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	table := routes.NewTable()
	require.NoError(t, table.Set("/ws", deadURL))

	front := httptest.NewServer(NewDispatcher(table))
	defer front.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsDialURL(front.URL, "/ws"), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestIsWebSocketUpgrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		upgrade    string
		connection string
		want       bool
	}{
		{
			name:       "websocket upgrade",
			upgrade:    "websocket",
			connection: "Upgrade",
			want:       true,
		},
		{
			name:       "case insensitive",
			upgrade:    "WebSocket",
			connection: "keep-alive, Upgrade",
			want:       true,
		},
		{
			name:       "missing connection token",
			upgrade:    "websocket",
			connection: "keep-alive",
			want:       false,
		},
		{
			name:       "other upgrade protocol",
			upgrade:    "h2c",
			connection: "Upgrade",
			want:       false,
		},
		{
			name: "plain request",
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.upgrade != "" {
				r.Header.Set("Upgrade", tt.upgrade)
			}
			if tt.connection != "" {
				r.Header.Set("Connection", tt.connection)
			}

			assert.Equal(t, tt.want, isWebSocketUpgrade(r))
		})
	}
}

func TestBuildBackendWSURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		path   string
		query  string
		want   string
	}{
		{
			name:   "http target",
			target: "http://127.0.0.1:9101",
			path:   "/ws/session",
			want:   "ws://127.0.0.1:9101/ws/session",
		},
		{
			name:   "https target",
			target: "https://127.0.0.1:9443",
			path:   "/ws",
			want:   "wss://127.0.0.1:9443/ws",
		},
		{
			name:   "query carried",
			target: "http://127.0.0.1:9101",
			path:   "/ws",
			query:  "token=abc",
			want:   "ws://127.0.0.1:9101/ws?token=abc",
		},
		{
			name:   "target path joined",
			target: "http://127.0.0.1:9101/base",
			path:   "/ws",
			want:   "ws://127.0.0.1:9101/base/ws",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			target, err := url.Parse(tt.target)
			require.NoError(t, err)

			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			r.URL.RawQuery = tt.query

			assert.Equal(t, tt.want, buildBackendWSURL(target, r))
		})
	}
}

func TestWebsocketRelay_BuildRequestHeaders(t *testing.T) {
	t.Parallel()

	ws := &websocketRelay{logger: observability.NopLogger()}

	r := httptest.NewRequest(http.MethodGet, "http://public.example/ws?x=1", nil)
	r.Header.Set("Upgrade", "websocket")
	r.Header.Set("Connection", "Upgrade")
	r.Header.Set("Sec-Websocket-Key", "abc")
	r.Header.Set("Sec-Websocket-Version", "13")
	r.Header.Set("Cookie", "session=1")
	r.Header.Set("X-Forwarded-For", "203.0.113.9")

	header := ws.buildRequestHeaders(r)

	// gorilla supplies the handshake headers itself
	assert.Empty(t, header.Get("Upgrade"))
	assert.Empty(t, header.Get("Connection"))
	assert.Empty(t, header.Get("Sec-Websocket-Key"))

	assert.Equal(t, "session=1", header.Get("Cookie"))
	assert.Equal(t, "public.example", header.Get("Host"))
	assert.Equal(t, "http", header.Get("X-Forwarded-Proto"))
	assert.Equal(t, "public.example", header.Get("X-Forwarded-Host"))
	assert.Equal(t, "/ws?x=1", header.Get("X-Original-URI"))
	assert.Equal(t, "192.0.2.1", header.Get("X-Real-IP"))
	assert.Equal(t, "203.0.113.9, 192.0.2.1", header.Get("X-Forwarded-For"))
}

func TestWebsocketRelay_BuildResponseHeaders(t *testing.T) {
	t.Parallel()

	ws := &websocketRelay{logger: observability.NopLogger()}

	assert.Nil(t, ws.buildResponseHeaders(nil))

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Upgrade", "websocket")
	resp.Header.Set("Connection", "Upgrade")
	resp.Header.Set("Sec-Websocket-Accept", "xyz")
	resp.Header.Set("Sec-Websocket-Protocol", "chat")
	resp.Header.Set("Set-Cookie", "backend=1")

	header := ws.buildResponseHeaders(resp)

	assert.Empty(t, header.Get("Upgrade"))
	assert.Empty(t, header.Get("Sec-Websocket-Accept"))
	// The negotiated subprotocol must reach the client.
	assert.Equal(t, "chat", header.Get("Sec-Websocket-Protocol"))
	assert.Equal(t, "backend=1", header.Get("Set-Cookie"))
}
