// Package client dials the relay and exposes a typed view of the frames it
// sends back. Used by the terminal client, the integration tests and the e2e
// suite.
package client

import (
	"context"
	"encoding/json"
	"ephemeral/protocol"
	"ephemeral/render"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client is one connection to the relay. Events() yields every decoded frame
// until the server closes the connection; Send wraps text in the canonical
// envelope. The first Send names you.
type Client struct {
	log    *slog.Logger
	conn   *websocket.Conn
	events chan render.Frame

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to a ws:// URL and starts reading immediately.
func Dial(ctx context.Context, log *slog.Logger, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	c := &Client{
		log:    log,
		conn:   conn,
		events: make(chan render.Frame, 32),
	}
	go c.readPump()
	return c, nil
}

// Send wraps the text in the canonical envelope and writes one frame.
func (c *Client) Send(text string) error {
	payload, err := json.Marshal(protocol.Envelope{Message: text})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// SendRaw writes an arbitrary text frame, bypassing the envelope. Exists so
// tests can exercise the server's handling of malformed payloads.
func (c *Client) SendRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Events yields decoded frames. The channel closes when the server does.
func (c *Client) Events() <-chan render.Frame {
	return c.events
}

// Close performs a best-effort close handshake. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

// readPump decodes inbound frames until the connection ends. Frames the
// client cannot decode are logged and skipped, never fatal: the wire payload
// belongs to the server's renderer, not to us.
func (c *Client) readPump() {
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("connection ended", "error", err)
			}
			return
		}

		var frame render.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Debug("undecodable frame", "error", err)
			continue
		}
		c.events <- frame
	}
}
