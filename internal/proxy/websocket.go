package proxy

import (
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/vyrodovalexey/gochp/internal/observability"
)

// wsUpgrader upgrades client connections to WebSocket. Origin checking
// is left to the backend; the relay is a transparent passthrough.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// websocketRelay proxies WebSocket sessions at the message level,
// enabling per-message counters.
type websocketRelay struct {
	logger    observability.Logger
	metrics   *observability.Metrics
	transport http.RoundTripper
}

// isWebSocketUpgrade reports whether the request asks for a WebSocket
// upgrade.
func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// proxy dials the backend first, then upgrades the client connection
// and relays messages in both directions until either side closes.
// Dialing first lets a backend handshake rejection reach the client as
// a plain HTTP response.
func (ws *websocketRelay) proxy(w http.ResponseWriter, r *http.Request, target *url.URL, spec string) {
	backendURL := buildBackendWSURL(target, r)

	dialer := websocket.Dialer{
		Subprotocols: websocket.Subprotocols(r),
	}
	if t, ok := ws.transport.(*http.Transport); ok && t.TLSClientConfig != nil {
		dialer.TLSClientConfig = t.TLSClientConfig.Clone()
	}

	requestHeader := ws.buildRequestHeaders(r)

	backendConn, resp, dialErr := dialer.DialContext(r.Context(), backendURL, requestHeader)
	if dialErr != nil {
		ws.handleDialError(w, resp, spec, dialErr)
		return
	}
	defer backendConn.Close()

	clientConn, upgradeErr := wsUpgrader.Upgrade(w, r, ws.buildResponseHeaders(resp))
	if upgradeErr != nil {
		// Upgrade already answered the client with an HTTP error.
		ws.logger.Debug("websocket client upgrade failed",
			observability.String("spec", spec),
			observability.Error(upgradeErr),
		)
		return
	}
	defer clientConn.Close()

	if ws.metrics != nil {
		ws.metrics.WebSocketConnectionOpened()
		defer ws.metrics.WebSocketConnectionClosed()
	}

	ws.logger.Debug("websocket session established",
		observability.String("spec", spec),
		observability.String("backend", backendURL),
	)

	ws.relay(clientConn, backendConn)
}

// handleDialError forwards the backend's handshake rejection to the
// client, or answers Bad Gateway when the backend never responded.
func (ws *websocketRelay) handleDialError(
	w http.ResponseWriter,
	resp *http.Response,
	spec string,
	dialErr error,
) {
	if ws.metrics != nil {
		ws.metrics.RecordUpstreamError("dial")
	}
	ws.logger.Error("websocket backend dial failed",
		observability.String("spec", spec),
		observability.Error(dialErr),
	)

	if resp != nil {
		defer resp.Body.Close()
		for k, vv := range resp.Header {
			for _, v := range vv {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return
	}

	http.Error(w, "Bad Gateway", http.StatusBadGateway)
}

// relay copies messages between the client and backend connections
// until one direction fails. The first error ends the session; closing
// both connections unblocks the other goroutine.
func (ws *websocketRelay) relay(clientConn, backendConn *websocket.Conn) {
	errCh := make(chan error, 2)

	// Backend to client.
	go func() {
		for {
			msgType, msg, readErr := backendConn.ReadMessage()
			if readErr != nil {
				_ = clientConn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				errCh <- readErr
				return
			}
			if writeErr := clientConn.WriteMessage(msgType, msg); writeErr != nil {
				errCh <- writeErr
				return
			}
			if ws.metrics != nil {
				ws.metrics.RecordWebSocketMessage(observability.DirectionBackendToClient)
			}
		}
	}()

	// Client to backend.
	go func() {
		for {
			msgType, msg, readErr := clientConn.ReadMessage()
			if readErr != nil {
				_ = backendConn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				)
				errCh <- readErr
				return
			}
			if writeErr := backendConn.WriteMessage(msgType, msg); writeErr != nil {
				errCh <- writeErr
				return
			}
			if ws.metrics != nil {
				ws.metrics.RecordWebSocketMessage(observability.DirectionClientToBackend)
			}
		}
	}()

	<-errCh
}

// buildBackendWSURL constructs the WebSocket URL for the backend,
// carrying the original path and query.
func buildBackendWSURL(target *url.URL, r *http.Request) string {
	scheme := "ws"
	if target.Scheme == "https" || target.Scheme == "wss" {
		scheme = "wss"
	}

	path := r.URL.Path
	if target.Path != "" && target.Path != "/" {
		path = singleJoiningSlash(target.Path, path)
	}

	backendURL := scheme + "://" + target.Host + path
	if r.URL.RawQuery != "" {
		backendURL += "?" + r.URL.RawQuery
	}

	return backendURL
}

// buildRequestHeaders builds the headers forwarded on the backend
// dial. Handshake headers are omitted because gorilla supplies its
// own; the forwarding metadata normally added by the HTTP director is
// added here since the dial bypasses it.
func (ws *websocketRelay) buildRequestHeaders(r *http.Request) http.Header {
	header := http.Header{}
	for k, vv := range r.Header {
		switch strings.ToLower(k) {
		case "upgrade", "connection", "sec-websocket-key",
			"sec-websocket-version", "sec-websocket-extensions",
			"sec-websocket-protocol":
			continue
		}
		for _, v := range vv {
			header.Add(k, v)
		}
	}

	// The original Host travels through so upstream applications see
	// the host the client used.
	header.Set("Host", r.Host)

	if r.TLS != nil {
		header.Set("X-Forwarded-Proto", "https")
	} else {
		header.Set("X-Forwarded-Proto", "http")
	}
	header.Set("X-Forwarded-Host", r.Host)
	header.Set("X-Original-URI", r.URL.RequestURI())

	if clientIP, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		header.Set("X-Real-IP", clientIP)
		if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
			clientIP = prior + ", " + clientIP
		}
		header.Set("X-Forwarded-For", clientIP)
	}

	return header
}

// buildResponseHeaders extracts the backend handshake headers to
// forward to the client, excluding the protocol headers gorilla
// manages itself. Sec-Websocket-Protocol passes through so the client
// sees the subprotocol the backend agreed to.
func (ws *websocketRelay) buildResponseHeaders(resp *http.Response) http.Header {
	if resp == nil {
		return nil
	}
	header := http.Header{}
	for k, vv := range resp.Header {
		switch strings.ToLower(k) {
		case "upgrade", "connection", "sec-websocket-accept":
			continue
		}
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	return header
}
