package realtime

import "go.uber.org/zap"

// Dispatcher emits typed events to specific connections or rooms. Every
// send is best effort: an absent recipient or a full send buffer drops
// the event, and the persisted record remains the source of truth.
type Dispatcher struct {
	presence *Presence
	rooms    *Rooms
	logger   *zap.Logger
}

// NewDispatcher constructs the dispatcher over the shared registries.
func NewDispatcher(presence *Presence, rooms *Rooms, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{presence: presence, rooms: rooms, logger: logger}
}

// EmitNewMessage broadcasts the message to every connection currently in
// the conversation room.
func (d *Dispatcher) EmitNewMessage(chatRoomID string, message any) {
	event := Event{Event: EventNewMessage, Data: message}
	for _, conn := range d.rooms.Members(chatRoomID) {
		conn.Send(event)
	}
}

// EmitNewNotification unicasts the notification to the user's current
// connection; dropped silently when the user is offline.
func (d *Dispatcher) EmitNewNotification(userID string, payload any) {
	conn, ok := d.presence.Lookup(userID)
	if !ok {
		return
	}
	conn.Send(Event{Event: EventNewNotification, Data: payload})
}

// EmitMessageSeen unicasts a seen receipt to the message's original sender.
func (d *Dispatcher) EmitMessageSeen(userID, messageID, chatRoomID string) {
	conn, ok := d.presence.Lookup(userID)
	if !ok {
		return
	}
	conn.Send(Event{
		Event: EventMessageSeen,
		Data:  MessageSeenPayload{MessageID: messageID, ChatRoomID: chatRoomID},
	})
}

// RecipientViewing reports whether the user's current connection is a
// member of the conversation room, meaning they already see new messages
// through the room broadcast.
func (d *Dispatcher) RecipientViewing(chatRoomID, userID string) bool {
	conn, ok := d.presence.Lookup(userID)
	if !ok {
		return false
	}
	return d.rooms.Contains(chatRoomID, conn.ID())
}
