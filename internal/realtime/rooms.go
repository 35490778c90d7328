package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ParticipantSource resolves a conversation's stored participant pair.
// Persisted membership is the sole authorization authority; the in-memory
// room is only a broadcast-list cache and must be re-joined after every
// reconnect.
type ParticipantSource interface {
	Participants(ctx context.Context, chatRoomID string) (clientID, providerID string, err error)
}

// Rooms routes connections into named broadcast groups: one personal room
// per user identity and one room per chat conversation.
type Rooms struct {
	mu           sync.RWMutex
	rooms        map[string]map[string]Sender
	participants ParticipantSource
	logger       *zap.Logger
}

// NewRooms constructs the room router.
func NewRooms(participants ParticipantSource, logger *zap.Logger) *Rooms {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rooms{
		rooms:        make(map[string]map[string]Sender),
		participants: participants,
		logger:       logger,
	}
}

// JoinPersonalRoom adds the connection to the room keyed by its own user
// identity. Unconditional and idempotent.
func (r *Rooms) JoinPersonalRoom(conn Sender, userID string) {
	r.join(userID, conn)
}

// JoinConversationRoom authorizes the join against the persisted
// participant pair and adds the connection on success. Failures are
// logged and swallowed: the caller's connection stays open and simply
// never receives the room's broadcasts.
func (r *Rooms) JoinConversationRoom(ctx context.Context, conn Sender, userID, chatRoomID string) {
	clientID, providerID, err := r.participants.Participants(ctx, chatRoomID)
	if err != nil {
		r.logger.Warn("conversation room join refused",
			zap.String("chat_room_id", chatRoomID),
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	if userID != clientID && userID != providerID {
		r.logger.Warn("conversation room join refused, not a participant",
			zap.String("chat_room_id", chatRoomID),
			zap.String("user_id", userID))
		return
	}
	r.join(chatRoomID, conn)
}

// LeaveRoom removes the connection from the room. No-op if not a member.
func (r *Rooms) LeaveRoom(conn Sender, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(members, conn.ID())
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
}

// RemoveConnection drops the connection from every room it joined.
// Called on disconnect; transport-level membership dies with the transport.
func (r *Rooms) RemoveConnection(conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID, members := range r.rooms {
		delete(members, conn.ID())
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
}

// Contains reports whether the connection is currently in the room.
func (r *Rooms) Contains(roomID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	_, member := members[connID]
	return member
}

// Members returns a snapshot of the room's current connections.
func (r *Rooms) Members(roomID string) []Sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[roomID]
	snapshot := make([]Sender, 0, len(members))
	for _, conn := range members {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

func (r *Rooms) join(roomID string, conn Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]Sender)
		r.rooms[roomID] = members
	}
	members[conn.ID()] = conn
}
