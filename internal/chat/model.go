package chat

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/users"
)

// ChatRoom is a conversation between exactly one client and one provider.
type ChatRoom struct {
	ID         string     `gorm:"column:id;primaryKey;size:36"`
	ClientID   string     `gorm:"column:client_id;size:36;not null;index"`
	Client     users.User `gorm:"foreignKey:ClientID"`
	ProviderID string     `gorm:"column:provider_id;size:36;not null;index"`
	Provider   users.User `gorm:"foreignKey:ProviderID"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (ChatRoom) TableName() string {
	return "chat_rooms"
}

// SeenBy stores the growing set of user ids that acknowledged a message,
// JSON-encoded into a text column.
type SeenBy []string

// Contains reports whether the user already acknowledged the message.
func (s SeenBy) Contains(userID string) bool {
	for _, id := range s {
		if id == userID {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (s SeenBy) Value() (driver.Value, error) {
	if s == nil {
		s = SeenBy{}
	}
	encoded, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

// Scan implements sql.Scanner.
func (s *SeenBy) Scan(value interface{}) error {
	if value == nil {
		*s = SeenBy{}
		return nil
	}
	switch data := value.(type) {
	case string:
		return json.Unmarshal([]byte(data), s)
	case []byte:
		return json.Unmarshal(data, s)
	default:
		return fmt.Errorf("chat: cannot scan %T into SeenBy", value)
	}
}

// Message is an append-only chat message. The seen set only grows.
type Message struct {
	ID         string     `gorm:"column:id;primaryKey;size:36"`
	ChatRoomID string     `gorm:"column:chat_room_id;size:36;not null;index"`
	ChatRoom   ChatRoom   `gorm:"foreignKey:ChatRoomID"`
	SenderID   string     `gorm:"column:sender_id;size:36;not null;index"`
	Sender     users.User `gorm:"foreignKey:SenderID"`
	Content    string     `gorm:"column:content;type:text;not null"`
	SeenBy     SeenBy     `gorm:"column:seen_by_ids;type:text"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "messages"
}

// MessagePayload is the message projection used in API responses and
// realtime broadcasts.
type MessagePayload struct {
	ID         string              `json:"id"`
	ChatRoomID string              `json:"chatRoomId"`
	SenderID   string              `json:"senderId"`
	Content    string              `json:"content"`
	SeenByIDs  []string            `json:"seenByIds"`
	CreatedAt  time.Time           `json:"createdAt"`
	Sender     users.PublicProfile `json:"sender"`
}

// Payload converts the persisted message into its wire projection.
func (m Message) Payload() MessagePayload {
	return MessagePayload{
		ID:         m.ID,
		ChatRoomID: m.ChatRoomID,
		SenderID:   m.SenderID,
		Content:    m.Content,
		SeenByIDs:  append([]string(nil), m.SeenBy...),
		CreatedAt:  m.CreatedAt,
		Sender:     m.Sender.Public(),
	}
}
