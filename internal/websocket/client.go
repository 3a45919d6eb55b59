package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection deadlines. The ping interval must stay under the pong
// deadline or healthy spectators get dropped.
const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 54 * time.Second
	maxRequestSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The droid client does not send an Origin header.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Client is one spectator connection. The read loop owns the inbound side
// and turns requests into hub subscriptions; the write loop owns every
// write, protocol pings included.
type Client struct {
	id     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *slog.Logger
}

// request is what a spectator sends: a message type plus the beatmap hash
// it applies to.
type request struct {
	Type    string `json:"type"`
	MapHash string `json:"map_hash,omitempty"`
}

func newClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
	}
}

// ServeWs upgrades the request and starts the connection's loops.
func ServeWs(hub *Hub, logger *slog.Logger, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(hub, conn, logger)
	hub.Register(client)

	go client.writeLoop()
	go client.readLoop()

	logger.Debug("spectator connected", "client_id", client.id)
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxRequestSize)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read failed", "client_id", c.id, "error", err)
			}
			return
		}

		var req request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.replyError("undecodable request")
			continue
		}
		c.dispatch(&req)
	}
}

func (c *Client) dispatch(req *request) {
	switch req.Type {
	case MessageTypeSubscribe:
		if req.MapHash == "" {
			c.replyError("map_hash required")
			return
		}
		c.hub.Subscribe(c, req.MapHash)
		c.reply(&Message{Type: "subscribed", MapHash: req.MapHash})

	case MessageTypeUnsubscribe:
		if req.MapHash != "" {
			c.hub.Unsubscribe(c, req.MapHash)
			c.reply(&Message{Type: "unsubscribed", MapHash: req.MapHash})
		}

	case MessageTypePing:
		c.reply(&Message{Type: MessageTypePong})

	default:
		c.logger.Debug("unknown request type", "client_id", c.id, "type", req.Type)
	}
}

// reply enqueues a message for this client only. A full buffer drops the
// reply; dead peers are reaped by the ping cycle instead.
func (c *Client) reply(msg *Message) {
	msg.Timestamp = time.Now()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) replyError(reason string) {
	c.reply(&Message{
		Type: MessageTypeError,
		Data: map[string]string{"error": reason},
	})
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
