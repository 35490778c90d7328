package booking

import (
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
)

// Status enumerates the booking lifecycle states.
type Status string

const (
	// StatusPending is the initial state of every booking.
	StatusPending Status = "PENDING"
	// StatusAccepted means the provider confirmed the booking.
	StatusAccepted Status = "ACCEPTED"
	// StatusDeclined means the provider rejected the booking. Terminal.
	StatusDeclined Status = "DECLINED"
	// StatusCompleted means the accepted booking was carried out. Terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled means the client withdrew the booking. Terminal.
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusDeclined, StatusCancelled:
		return true
	default:
		return false
	}
}

// Booking is a client's request for a provider's service.
type Booking struct {
	ID        string          `gorm:"column:id;primaryKey;size:36"`
	Date      time.Time       `gorm:"column:date;not null"`
	Status    Status          `gorm:"column:status;size:16;not null;index"`
	ClientID  string          `gorm:"column:client_id;size:36;not null;index"`
	Client    users.User      `gorm:"foreignKey:ClientID"`
	ServiceID string          `gorm:"column:service_id;size:36;not null;index"`
	Service   catalog.Service `gorm:"foreignKey:ServiceID"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Booking) TableName() string {
	return "bookings"
}
