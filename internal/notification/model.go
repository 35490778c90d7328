package notification

import "time"

// Type enumerates the notification kinds pushed to users.
type Type string

const (
	// TypeBookingRequest is sent to a provider when a client books a service.
	TypeBookingRequest Type = "BOOKING_REQUEST"
	// TypeBookingAccepted is sent to a client when a provider accepts.
	TypeBookingAccepted Type = "ACCEPTED"
	// TypeBookingDeclined is sent to a client when a provider declines.
	TypeBookingDeclined Type = "DECLINED"
	// TypeNewMessage is sent when a chat message arrives while the
	// recipient is not viewing the conversation.
	TypeNewMessage Type = "NEW_MESSAGE"
)

// Notification is a persisted asynchronous event shown to a user. Rows
// are created once and never mutated except for the read flag.
type Notification struct {
	ID         string    `gorm:"column:id;primaryKey;size:36"`
	UserID     string    `gorm:"column:user_id;size:36;not null;index"`
	Type       Type      `gorm:"column:type;size:32;not null"`
	Message    string    `gorm:"column:message;type:text;not null"`
	ChatRoomID string    `gorm:"column:chat_room_id;size:36"`
	Read       bool      `gorm:"column:read;not null;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// Event is the wire payload pushed over the realtime channel.
type Event struct {
	ID         string    `json:"id"`
	Message    string    `json:"message"`
	Type       Type      `json:"type"`
	ChatRoomID string    `json:"chatRoomId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Event converts the persisted row into its realtime payload.
func (n Notification) Event() Event {
	return Event{
		ID:         n.ID,
		Message:    n.Message,
		Type:       n.Type,
		ChatRoomID: n.ChatRoomID,
		CreatedAt:  n.CreatedAt,
	}
}
