package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/triplesync/internal/rdf"
)

// WebSocket dials relays over gorilla/websocket.
type WebSocket struct {
	replica rdf.ReplicaID
	dialer  *websocket.Dialer
	header  http.Header
	logger  *slog.Logger
}

// WebSocketOption configures a WebSocket transport.
type WebSocketOption func(*WebSocket)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) WebSocketOption {
	return func(w *WebSocket) {
		w.dialer = d
	}
}

// WithHeader adds headers to the upgrade request.
func WithHeader(h http.Header) WebSocketOption {
	return func(w *WebSocket) {
		w.header = h
	}
}

// WithTransportLogger sets the logger (default slog.Default()).
func WithTransportLogger(l *slog.Logger) WebSocketOption {
	return func(w *WebSocket) {
		w.logger = l
	}
}

// NewWebSocket creates a transport that introduces itself as replica.
func NewWebSocket(replica rdf.ReplicaID, opts ...WebSocketOption) *WebSocket {
	w := &WebSocket{
		replica: replica,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dial connects and completes the hello/welcome handshake.
func (w *WebSocket) Dial(ctx context.Context, endpoint string) (Conn, error) {
	target, err := WebSocketURL(endpoint)
	if err != nil {
		return nil, &NetworkError{Op: "dial", Endpoint: endpoint, Err: err}
	}

	conn, resp, err := w.dialer.DialContext(ctx, target, w.header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &NetworkError{Op: "dial", Endpoint: target, Err: err}
	}
	return Handshake(ctx, NewWebSocketFramer(conn), target, w.replica, w.logger)
}

// WebSocketURL normalizes an endpoint: http(s) schemes become ws(s) and a
// bare host:port gets ws://.
func WebSocketURL(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("empty endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "ws://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return u.String(), nil
}
