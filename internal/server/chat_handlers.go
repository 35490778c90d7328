package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Behrad-BeigZadeh/Servix/internal/chat"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleListChats(c *gin.Context) {
	user := currentUser(c)
	summaries, err := h.chat.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list chats", zap.Error(err))
		internalError(c)
		return
	}

	payloads := make([]chatRoomPayload, 0, len(summaries))
	for _, summary := range summaries {
		payloads = append(payloads, newChatRoomPayload(summary))
	}
	c.JSON(http.StatusOK, gin.H{"allChats": payloads})
}

type startChatRequest struct {
	ReceiverID string `json:"receiverId" binding:"required"`
}

func (h *httpHandler) handleStartChat(c *gin.Context) {
	var req startChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Receiver id is required"})
		return
	}

	user := currentUser(c)
	room, isNew, err := h.chat.StartOrGet(c.Request.Context(), user, req.ReceiverID)
	if errors.Is(err, chat.ErrSelfChat) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot start a chat with yourself"})
		return
	}
	if err != nil {
		h.logger.Error("failed to start chat", zap.Error(err))
		internalError(c)
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"data": gin.H{
		"chatRoom": gin.H{
			"id":         room.ID,
			"clientId":   room.ClientID,
			"providerId": room.ProviderID,
		},
		"isNew": isNew,
	}})
}

func (h *httpHandler) handleTotalUnseen(c *gin.Context) {
	user := currentUser(c)
	count, err := h.chat.TotalUnseen(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to count unseen messages", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalUnseen": count})
}

func (h *httpHandler) handleChatMessages(c *gin.Context) {
	user := currentUser(c)
	messages, other, err := h.chat.Messages(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":  messages,
		"otherUser": other,
	})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message content is required"})
		return
	}

	user := currentUser(c)
	payload, err := h.chat.SendMessage(c.Request.Context(), user.ID, c.Param("id"), req.Content)
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": payload})
}

func (h *httpHandler) handleMarkSeen(c *gin.Context) {
	user := currentUser(c)
	payload, err := h.chat.MarkSeen(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

func (h *httpHandler) respondChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrChatRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat room not found"})
	case errors.Is(err, chat.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
	case errors.Is(err, chat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not a participant of this chat room"})
	case errors.Is(err, chat.ErrSelfSeen):
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot mark your own message as seen"})
	default:
		h.logger.Error("chat operation failed", zap.Error(err))
		internalError(c)
	}
}
