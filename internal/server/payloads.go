package server

import (
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/booking"
	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/chat"
	"github.com/Behrad-BeigZadeh/Servix/internal/notification"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
)

type authUserPayload struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Avatar   string     `json:"avatar"`
	Role     users.Role `json:"role"`
}

func newAuthUserPayload(user users.User) authUserPayload {
	return authUserPayload{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Avatar:   user.Avatar,
		Role:     user.Role,
	}
}

type categoryPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newCategoryPayload(category catalog.Category) categoryPayload {
	return categoryPayload{ID: category.ID, Name: category.Name}
}

type servicePayload struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Price       float64             `json:"price"`
	Images      []string            `json:"images"`
	CategoryID  string              `json:"categoryId"`
	Category    categoryPayload     `json:"category"`
	ProviderID  string              `json:"providerId"`
	Provider    users.PublicProfile `json:"provider"`
	CreatedAt   time.Time           `json:"createdAt"`
}

func newServicePayload(service catalog.Service) servicePayload {
	return servicePayload{
		ID:          service.ID,
		Title:       service.Title,
		Description: service.Description,
		Price:       service.Price,
		Images:      append([]string(nil), service.Images...),
		CategoryID:  service.CategoryID,
		Category:    newCategoryPayload(service.Category),
		ProviderID:  service.ProviderID,
		Provider:    service.Provider.Public(),
		CreatedAt:   service.CreatedAt,
	}
}

func newServicePayloads(services []catalog.Service) []servicePayload {
	payloads := make([]servicePayload, 0, len(services))
	for _, service := range services {
		payloads = append(payloads, newServicePayload(service))
	}
	return payloads
}

type bookingPayload struct {
	ID        string              `json:"id"`
	Date      time.Time           `json:"date"`
	Status    booking.Status      `json:"status"`
	ClientID  string              `json:"clientId"`
	Client    users.PublicProfile `json:"client"`
	ServiceID string              `json:"serviceId"`
	Service   servicePayload      `json:"service"`
	CreatedAt time.Time           `json:"createdAt"`
}

func newBookingPayload(record booking.Booking) bookingPayload {
	return bookingPayload{
		ID:        record.ID,
		Date:      record.Date,
		Status:    record.Status,
		ClientID:  record.ClientID,
		Client:    record.Client.Public(),
		ServiceID: record.ServiceID,
		Service:   newServicePayload(record.Service),
		CreatedAt: record.CreatedAt,
	}
}

func newBookingPayloads(records []booking.Booking) []bookingPayload {
	payloads := make([]bookingPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, newBookingPayload(record))
	}
	return payloads
}

type chatRoomPayload struct {
	ID          string               `json:"id"`
	ClientID    string               `json:"clientId"`
	Client      users.PublicProfile  `json:"client"`
	ProviderID  string               `json:"providerId"`
	Provider    users.PublicProfile  `json:"provider"`
	Messages    []chat.MessagePayload `json:"messages"`
	UnseenCount int64                `json:"unseenCount"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

func newChatRoomPayload(summary chat.RoomSummary) chatRoomPayload {
	payload := chatRoomPayload{
		ID:          summary.Room.ID,
		ClientID:    summary.Room.ClientID,
		Client:      summary.Room.Client.Public(),
		ProviderID:  summary.Room.ProviderID,
		Provider:    summary.Room.Provider.Public(),
		Messages:    []chat.MessagePayload{},
		UnseenCount: summary.UnseenCount,
		CreatedAt:   summary.Room.CreatedAt,
		UpdatedAt:   summary.Room.UpdatedAt,
	}
	if summary.LastMessage != nil {
		payload.Messages = append(payload.Messages, summary.LastMessage.Payload())
	}
	return payload
}

type notificationPayload struct {
	ID         string            `json:"id"`
	Type       notification.Type `json:"type"`
	Message    string            `json:"message"`
	ChatRoomID string            `json:"chatRoomId,omitempty"`
	Read       bool              `json:"read"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func newNotificationPayload(record notification.Notification) notificationPayload {
	return notificationPayload{
		ID:         record.ID,
		Type:       record.Type,
		Message:    record.Message,
		ChatRoomID: record.ChatRoomID,
		Read:       record.Read,
		CreatedAt:  record.CreatedAt,
	}
}
