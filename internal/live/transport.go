package live

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of *websocket.Conn the session uses.
// Reads happen on one goroutine and writes on another.
type Conn interface {
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a Conn to the Live endpoint
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// WebSocketDialer dials the BidiGenerateContent endpoint with gorilla/websocket
type WebSocketDialer struct {
	url     string
	apiKey  string
	timeout time.Duration
}

// NewWebSocketDialer creates a dialer for url authenticated with apiKey
func NewWebSocketDialer(url, apiKey string, timeout time.Duration) *WebSocketDialer {
	return &WebSocketDialer{
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
	}
}

// Dial opens the socket, sending the key as a header rather than a query parameter
func (d *WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.timeout,
		ReadBufferSize:   16 * 1024,
		WriteBufferSize:  16 * 1024,
	}

	headers := http.Header{}
	headers.Set("x-goog-api-key", d.apiKey)

	conn, resp, err := dialer.DialContext(ctx, d.url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to live endpoint (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to live endpoint: %w", err)
	}
	return conn, nil
}

// HealthCheck completes a handshake and closes it normally
func (d *WebSocketDialer) HealthCheck(ctx context.Context) (bool, error) {
	conn, err := d.Dial(ctx)
	if err != nil {
		return false, err
	}
	if err := closeNormally(conn); err != nil {
		return true, fmt.Errorf("handshake succeeded but close failed: %w", err)
	}
	return true, nil
}

func closeNormally(conn Conn) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	writeErr := conn.WriteMessage(websocket.CloseMessage, msg)
	if err := conn.Close(); err != nil {
		return err
	}
	return writeErr
}
