package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Strokes carry full point
	// lists, so this is far larger than a chat-style limit.
	maxMessageSize = 64 * 1024

	// Per-client outbound buffer. Full-history resyncs can burst, so this
	// is sized generously; a client that still cannot keep up gets
	// messages dropped rather than stalling the room.
	sendBufferSize = 256
)

// Client is one websocket connection bound to a guest member identity.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	memberID string
	username string
	send     chan []byte
}

// NewClient wraps an upgraded websocket connection.
func NewClient(h *Hub, conn *websocket.Conn, memberID, username string) *Client {
	return &Client{
		hub:      h,
		conn:     conn,
		memberID: memberID,
		username: username,
		send:     make(chan []byte, sendBufferSize),
	}
}

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) MemberID() string { return c.memberID }
func (c *Client) Username() string { return c.username }

// CloseConn tears the underlying connection down, which unwinds both
// pumps.
func (c *Client) CloseConn() { _ = c.conn.Close() }

// readPump moves frames from the websocket into the hub's message channel.
// It runs in its own goroutine; exiting it triggers the unregister path,
// which normalizes an abrupt disconnect into a voluntary leave.
func (c *Client) readPump() {
	logCtx := logrus.WithFields(logrus.Fields{"component": "hub", "member_id": c.memberID})
	defer func() {
		c.hub.enqueueUnregister(c)
		_ = c.conn.Close()
		logCtx.Debug("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("Websocket read error (unexpected close)")
			} else {
				logCtx.Debug("Websocket connection closed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if !c.hub.enqueue(hubMessage{kind: msgFrame, client: c, raw: message}) {
			logCtx.Warn("Hub message channel full, dropping client frame")
		}
	}
}

// writePump moves messages from the send channel to the websocket and
// keeps the connection alive with periodic pings.
func (c *Client) writePump() {
	logCtx := logrus.WithFields(logrus.Fields{"component": "hub", "member_id": c.memberID})
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		logCtx.Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel during unregister.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logCtx.WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logCtx.WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}
