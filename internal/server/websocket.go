package server

import (
	"net/http"
	"strings"

	"github.com/Behrad-BeigZadeh/Servix/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Cross-origin policy is enforced by the CORS middleware on the REST
// surface; the websocket handshake is authenticated by token instead.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket authenticates the handshake, upgrades the connection
// and serves the client's room subscription requests until disconnect.
// The token is validated without a database round trip; the identity is
// trusted for the connection's lifetime.
func (h *httpHandler) handleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}

	claims, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := realtime.NewConnection(socket, claims.UserID, h.logger)
	h.presence.Register(claims.UserID, conn)
	h.rooms.JoinPersonalRoom(conn, claims.UserID)
	go conn.WritePump()

	h.logger.Info("websocket connected",
		zap.String("user_id", claims.UserID),
		zap.String("connection_id", conn.ID()))

	defer func() {
		conn.Close()
		h.presence.Unregister(claims.UserID, conn.ID())
		h.rooms.RemoveConnection(conn)
		h.logger.Info("websocket disconnected",
			zap.String("user_id", claims.UserID),
			zap.String("connection_id", conn.ID()))
	}()

	for {
		event, err := conn.ReadEvent()
		if err != nil {
			return
		}
		switch event.Event {
		case realtime.EventJoinUserRoom:
			h.presence.Register(claims.UserID, conn)
			h.rooms.JoinPersonalRoom(conn, claims.UserID)
		case realtime.EventJoinRoom:
			h.rooms.JoinConversationRoom(c.Request.Context(), conn, claims.UserID, event.ChatRoomID)
		case realtime.EventLeaveRoom:
			h.rooms.LeaveRoom(conn, event.ChatRoomID)
		default:
			h.logger.Warn("unknown websocket event",
				zap.String("event", event.Event),
				zap.String("user_id", claims.UserID))
		}
	}
}
