package handlers

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/task-board/internal/auth"
	"github.com/spec-kit/task-board/internal/domain"
	"github.com/spec-kit/task-board/internal/realtime"
	apperrors "github.com/spec-kit/task-board/pkg/util/errorutil"
)

const wsUserKey = "ws_user"

// clientFrame is an inbound control message from a connected session.
type clientFrame struct {
	Type   string `json:"type"`
	TaskID string `json:"taskId"`
}

// typingPayload announces typing state to other members of a task group.
type typingPayload struct {
	User   string `json:"user"`
	TaskID string `json:"taskId"`
}

// WSHandler upgrades connections and relays session control frames to the hub.
type WSHandler struct {
	hub    *realtime.Hub
	auth   *auth.AuthMiddleware
	logger *zap.Logger
}

// NewWSHandler constructs handler.
func NewWSHandler(hub *realtime.Hub, authMiddleware *auth.AuthMiddleware, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, auth: authMiddleware, logger: logger}
}

// Upgrade authenticates the handshake and allows the protocol switch. The
// token travels as a query parameter because browsers cannot set headers on
// websocket requests.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		return apperrors.NewUnauthorized("missing token")
	}
	user, err := h.auth.ResolveUser(c, token)
	if err != nil {
		return err
	}
	c.Locals(wsUserKey, user)
	return c.Next()
}

// Serve returns the connection handler for an upgraded session.
func (h *WSHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		user, ok := conn.Locals(wsUserKey).(*domain.User)
		if !ok {
			_ = conn.Close()
			return
		}

		client := &realtime.Client{
			ID:     uuid.NewString(),
			UserID: user.ID,
			Name:   user.Name,
			Conn:   conn,
		}
		h.hub.Register(client)
		defer h.hub.Unregister(client)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			h.handleFrame(client, data)
		}
	})
}

func (h *WSHandler) handleFrame(client *realtime.Client, data []byte) {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.logger.Debug("discarding malformed session frame",
			zap.String("client_id", client.ID), zap.Error(err))
		return
	}
	if frame.TaskID == "" {
		return
	}

	switch frame.Type {
	case "joinTask":
		h.hub.JoinTask(client.ID, frame.TaskID)
	case "leaveTask":
		h.hub.LeaveTask(client.ID, frame.TaskID)
	case "typing":
		h.hub.BroadcastTask(frame.TaskID, "userTyping",
			typingPayload{User: client.Name, TaskID: frame.TaskID}, client.ID)
	case "stopTyping":
		h.hub.BroadcastTask(frame.TaskID, "userStoppedTyping",
			typingPayload{User: client.Name, TaskID: frame.TaskID}, client.ID)
	default:
		h.logger.Debug("unknown session frame type",
			zap.String("type", frame.Type), zap.String("client_id", client.ID))
	}
}
