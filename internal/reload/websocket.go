package reload

import (
	"context"

	"github.com/coder/websocket"
)

// Maximum message size accepted from the peer. Clients never send anything
// meaningful; this only bounds what CloseRead discards.
const maxMessageSize = 512

// WebSocketConn sends notifications as text frames.
type WebSocketConn struct {
	conn *websocket.Conn
}

// NewWebSocketConn wraps an accepted connection.
func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	conn.SetReadLimit(maxMessageSize)
	return &WebSocketConn{conn: conn}
}

// Transport implements Conn.
func (c *WebSocketConn) Transport() string { return TransportWebSocket }

// Send writes path as a single text frame.
func (c *WebSocketConn) Send(ctx context.Context, path string) error {
	return c.conn.Write(ctx, websocket.MessageText, []byte(path))
}
