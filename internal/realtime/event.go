package realtime

// Server-to-client event names.
const (
	EventNewMessage      = "new_message"
	EventNewNotification = "new_notification"
	EventMessageSeen     = "message_seen"
)

// Client-to-server event names.
const (
	EventJoinUserRoom = "join_user_room"
	EventJoinRoom     = "join_room"
	EventLeaveRoom    = "leave_room"
)

// Event is the envelope for server-to-client pushes.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ClientEvent is the envelope for client-to-server requests.
type ClientEvent struct {
	Event      string `json:"event"`
	ChatRoomID string `json:"chatRoomId,omitempty"`
}

// MessageSeenPayload is the data carried by a message_seen event.
type MessageSeenPayload struct {
	MessageID  string `json:"messageId"`
	ChatRoomID string `json:"chatRoomId"`
}

// Sender is a live connection able to receive events. Implemented by
// Connection; tests substitute fakes.
type Sender interface {
	ID() string
	UserID() string
	Send(event Event) bool
}
