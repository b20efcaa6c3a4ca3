package realtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebsocketTransport connects to the backend's change-feed websocket
// endpoint.
type WebsocketTransport struct {
	url    string
	header http.Header
}

// NewWebsocketTransport creates a transport for the given ws:// or wss://
// URL. apiKey, when non-empty, is sent as a bearer token.
func NewWebsocketTransport(url, apiKey string) *WebsocketTransport {
	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
		header.Set("apikey", apiKey)
	}
	return &WebsocketTransport{url: url, header: header}
}

// Connect dials the websocket endpoint.
func (t *WebsocketTransport) Connect(ctx context.Context) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.url, err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadPayload() ([]byte, error) {
	_, message, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return message, nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
