package channel

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the underlying bidirectional stream a Channel drives.
type Transport interface {
	// ReadMessage blocks until the next inbound frame or a close/error.
	ReadMessage() ([]byte, error)
	// WriteJSON serializes v and transmits it as one text frame.
	WriteJSON(v interface{}) error
	// Close sends a close frame with the given code and tears the
	// connection down.
	Close(code int, reason string) error
}

// Dialer opens a Transport to an endpoint. Overridable for tests.
type Dialer func(ctx context.Context, endpoint string) (Transport, error)

// wsTransport adapts a gorilla websocket connection to Transport.
type wsTransport struct {
	conn *websocket.Conn
}

// DialWebSocket opens a gorilla websocket connection to the endpoint.
func DialWebSocket(ctx context.Context, endpoint string) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("channel: dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("channel: dial %s: %w", endpoint, err)
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteJSON(v interface{}) error {
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}

// isCleanClose reports whether a read error corresponds to a normal closure,
// which must not trigger the reconnect path.
func isCleanClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure)
}

// ResolveEndpoint turns a logical socket path into an absolute ws/wss URL,
// matching the secure variant to the API base URL's own scheme.
func ResolveEndpoint(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("channel: invalid base URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("channel: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = ""
	return u.String(), nil
}
