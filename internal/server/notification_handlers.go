package server

import (
	"errors"
	"net/http"

	"github.com/Behrad-BeigZadeh/Servix/internal/notification"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	user := currentUser(c)
	records, err := h.notifications.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		internalError(c)
		return
	}
	payloads := make([]notificationPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, newNotificationPayload(record))
	}
	c.JSON(http.StatusOK, gin.H{"data": payloads})
}

func (h *httpHandler) handleMarkNotificationRead(c *gin.Context) {
	user := currentUser(c)
	record, err := h.notifications.MarkRead(c.Request.Context(), user.ID, c.Param("id"))
	if errors.Is(err, notification.ErrNotificationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to mark notification read", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newNotificationPayload(record)})
}
