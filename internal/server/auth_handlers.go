package server

import (
	"errors"
	"net/http"

	"github.com/Behrad-BeigZadeh/Servix/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type signupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}
	role, err := users.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	user, pair, err := h.users.Signup(c.Request.Context(), users.SignupRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	switch {
	case errors.Is(err, users.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username already taken"})
		return
	case errors.Is(err, users.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already exists"})
		return
	case err != nil:
		h.logger.Error("signup failed", zap.Error(err))
		internalError(c)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"accessToken": pair.AccessToken,
		"user":        newAuthUserPayload(user),
	}})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}

	user, pair, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, users.ErrUnknownEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "User not found"})
		return
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	case err != nil:
		h.logger.Error("login failed", zap.Error(err))
		internalError(c)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"accessToken": pair.AccessToken,
		"user":        newAuthUserPayload(user),
	}})
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	token, err := c.Cookie(refreshCookieName)
	if err != nil || token == "" {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.users.Logout(c.Request.Context(), token); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		internalError(c)
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "Logged out successfully"}})
}

func (h *httpHandler) handleRefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookieName)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No refresh token provided"})
		return
	}

	user, pair, err := h.users.Refresh(c.Request.Context(), token)
	if errors.Is(err, users.ErrInvalidRefreshToken) {
		h.clearRefreshCookie(c)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	if err != nil {
		h.logger.Error("token refresh failed", zap.Error(err))
		internalError(c)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"accessToken": pair.AccessToken,
		"user":        newAuthUserPayload(user),
	}})
}
