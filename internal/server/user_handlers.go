package server

import (
	"errors"
	"net/http"

	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleAuthUser(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	services, err := h.catalog.ListByProvider(ctx, user.ID)
	if err != nil && !errors.Is(err, catalog.ErrServiceNotFound) {
		h.logger.Error("failed to load user services", zap.Error(err))
		internalError(c)
		return
	}

	bookings, err := h.bookings.ListForClient(ctx, user.ID)
	if err != nil {
		h.logger.Error("failed to load user bookings", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"avatar":    user.Avatar,
		"role":      user.Role,
		"services":  newServicePayloads(services),
		"bookings":  newBookingPayloads(bookings),
		"createdAt": user.CreatedAt,
	}})
}

type updateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"omitempty,email"`
	Avatar   string `json:"avatar"`
	Password string `json:"password" binding:"omitempty,min=6"`
}

func (h *httpHandler) handleUpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user := currentUser(c)
	updated, err := h.users.UpdateProfile(c.Request.Context(), user.ID, users.UpdateRequest{
		Username: req.Username,
		Email:    req.Email,
		Avatar:   req.Avatar,
		Password: req.Password,
	})
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.logger.Error("profile update failed", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newAuthUserPayload(updated)})
}
