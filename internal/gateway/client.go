package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/paddleduel/internal/model"
)

// Client is one websocket connection
type Client struct {
	hub         *Hub
	id          model.ConnectionID
	conn        *websocket.Conn
	send        chan []byte
	cfg         Config
	logger      *slog.Logger
	connectedAt time.Time

	sendOnce  sync.Once
	closeOnce sync.Once
}

func newClient(hub *Hub, id model.ConnectionID, conn *websocket.Conn, cfg Config, logger *slog.Logger) *Client {
	return &Client{
		hub:         hub,
		id:          id,
		conn:        conn,
		send:        make(chan []byte, cfg.SendBuffer),
		cfg:         cfg,
		logger:      logger.With(slog.String("connection_id", string(id))),
		connectedAt: time.Now(),
	}
}

func (c *Client) closeSend() {
	c.sendOnce.Do(func() { close(c.send) })
}

func (c *Client) close() {
	c.closeOnce.Do(func() { _ = c.conn.Close() })
}

func (c *Client) connectedFor() time.Duration {
	return time.Since(c.connectedAt)
}

// reply queues a message for this client through the hub
func (c *Client) reply(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("failed to encode reply", slog.String("error", err.Error()))
		return
	}
	c.hub.sendRaw(c.id, msg)
}

// readPump reads messages until the connection fails, handing each to handle
func (c *Client) readPump(ctx context.Context, handle func(context.Context, *Client, []byte)) {
	defer c.close()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", slog.String("error", err.Error()))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		handle(ctx, c, data)
	}
}

// writePump drains the send buffer to the socket and keeps the connection
// alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
