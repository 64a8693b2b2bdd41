package relay

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/avelkaya/whisperline/internal/wire"
	"github.com/gorilla/websocket"
)

// ChatClient is one live WebSocket session with the relay.
type ChatClient struct {
	conn *websocket.Conn
}

// DialChat opens the real-time channel for username. base is the same HTTP
// base URL used for directory calls; the scheme is rewritten to ws/wss.
func DialChat(ctx context.Context, base, username string) (*ChatClient, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = "username=" + url.QueryEscape(username)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, fmt.Errorf("connect refused: %s", resp.Status)
		}
		return nil, err
	}
	return &ChatClient{conn: conn}, nil
}

// Send submits one encrypted packet.
func (c *ChatClient) Send(pkt wire.Packet) error {
	f, err := wire.NewFrame(wire.EventSendPacket, pkt)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(f)
}

// Next blocks until the server pushes the next frame.
func (c *ChatClient) Next() (wire.Frame, error) {
	var f wire.Frame
	if err := c.conn.ReadJSON(&f); err != nil {
		return wire.Frame{}, err
	}
	return f, nil
}

func (c *ChatClient) Close() error {
	return c.conn.Close()
}
