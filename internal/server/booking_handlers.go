package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/booking"
	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createBookingRequest struct {
	ServiceID string    `json:"serviceId" binding:"required"`
	Date      time.Time `json:"date" binding:"required"`
}

func (h *httpHandler) handleCreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Service id and date are required"})
		return
	}

	user := currentUser(c)
	record, err := h.bookings.Create(c.Request.Context(), user.ID, req.ServiceID, req.Date)
	switch {
	case errors.Is(err, catalog.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
		return
	case errors.Is(err, booking.ErrOwnService):
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot book your own service"})
		return
	case errors.Is(err, booking.ErrDuplicateActive):
		c.JSON(http.StatusBadRequest, gin.H{"error": "You already have an active booking for this service"})
		return
	case err != nil:
		h.logger.Error("booking creation failed", zap.Error(err))
		internalError(c)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": newBookingPayload(record)})
}

func (h *httpHandler) handleClientBookings(c *gin.Context) {
	user := currentUser(c)
	records, err := h.bookings.ListForClient(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list client bookings", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newBookingPayloads(records)})
}

func (h *httpHandler) handleProviderBookings(c *gin.Context) {
	user := currentUser(c)
	if user.Role != users.RoleProvider {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only providers can view these bookings"})
		return
	}
	records, err := h.bookings.ListForProvider(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list provider bookings", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newBookingPayloads(records)})
}

func (h *httpHandler) handlePendingBookingsCount(c *gin.Context) {
	user := currentUser(c)
	if user.Role != users.RoleProvider {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only providers can view this count"})
		return
	}
	count, err := h.bookings.PendingCount(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to count pending bookings", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"pendingCount": count}})
}

func (h *httpHandler) handleBookingDetails(c *gin.Context) {
	user := currentUser(c)
	record, err := h.bookings.GetForParticipant(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newBookingPayload(record)})
}

type updateBookingStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *httpHandler) handleUpdateBookingStatus(c *gin.Context) {
	var req updateBookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}

	status := booking.Status(req.Status)
	if status != booking.StatusAccepted && status != booking.StatusDeclined {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be ACCEPTED or DECLINED"})
		return
	}

	user := currentUser(c)
	record, err := h.bookings.Decide(c.Request.Context(), user.ID, c.Param("id"), status)
	if err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newBookingPayload(record)})
}

func (h *httpHandler) handleCompleteBooking(c *gin.Context) {
	user := currentUser(c)
	record, err := h.bookings.Complete(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newBookingPayload(record)})
}

func (h *httpHandler) handleCancelBooking(c *gin.Context) {
	user := currentUser(c)
	record, err := h.bookings.Cancel(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newBookingPayload(record)})
}

func (h *httpHandler) respondBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Booking not found"})
	case errors.Is(err, booking.ErrNotServiceOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only manage bookings for your own services"})
	case errors.Is(err, booking.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Booking status cannot change from its current state"})
	default:
		h.logger.Error("booking operation failed", zap.Error(err))
		internalError(c)
	}
}
