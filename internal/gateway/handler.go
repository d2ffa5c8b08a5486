package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/paddleduel/internal/model"
)

// Session is the session layer the gateway hands messages to
type Session interface {
	Dispatch(ctx context.Context, connID model.ConnectionID, msgType string, payload json.RawMessage) (any, error)
	Disconnect(connID model.ConnectionID)
}

// Config holds websocket transport settings
type Config struct {
	// WriteWait is the time allowed to write a message
	WriteWait time.Duration
	// PongWait is the time allowed between pongs before the connection is dropped
	PongWait time.Duration
	// PingPeriod must be less than PongWait
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
	// AllowedOrigins restricts browser origins; empty allows any
	AllowedOrigins []string
}

// DefaultConfig returns transport settings suitable for production
func DefaultConfig() Config {
	return Config{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 8 * 1024,
		SendBuffer:     256,
	}
}

// Handler upgrades HTTP requests to websocket connections and pumps
// messages between them and the session layer
type Handler struct {
	hub      *Hub
	session  Session
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a websocket Handler
func NewHandler(hub *Hub, session Session, cfg Config, logger *slog.Logger) *Handler {
	def := DefaultConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}

	h := &Handler{
		hub:     hub,
		session: session,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "gateway")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ServeHTTP handles one websocket connection for its whole lifetime. The
// session's Disconnect runs exactly once when the connection ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	connID := model.ConnectionID(uuid.NewString())
	client := newClient(h.hub, connID, conn, h.cfg, h.logger)
	h.hub.Register(client)

	go client.writePump()
	client.readPump(r.Context(), h.handleMessage)

	h.hub.Unregister(client)
	h.session.Disconnect(connID)
}

func (h *Handler) handleMessage(ctx context.Context, c *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		c.logger.Debug("malformed message")
		c.reply(Ack{
			Type:    model.EventAck,
			Payload: AckPayload{Error: &AckError{Code: CodeMalformed, Message: "message must be a JSON object with a type"}},
		})
		return
	}

	if msg.Type == "ping" {
		c.reply(model.Event{Type: model.EventPong})
		return
	}

	result, err := h.session.Dispatch(ctx, c.id, msg.Type, msg.Payload)
	if err != nil {
		ackErr := errorResponse(err)
		if ackErr.Code == CodeInternal {
			c.logger.Error("message handling failed",
				slog.String("type", msg.Type),
				slog.String("error", err.Error()))
		}
		c.reply(Ack{Type: model.EventAck, ID: msg.ID, Payload: AckPayload{Error: ackErr}})
		return
	}

	if len(msg.ID) > 0 {
		c.reply(Ack{Type: model.EventAck, ID: msg.ID, Payload: AckPayload{OK: true, Result: result}})
	}
}
