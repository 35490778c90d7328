package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/notification"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrChatRoomNotFound indicates the conversation does not exist.
	ErrChatRoomNotFound = errors.New("chat: chat room not found")
	// ErrMessageNotFound indicates the message does not exist.
	ErrMessageNotFound = errors.New("chat: message not found")
	// ErrNotParticipant indicates the caller is not one of the two
	// conversation participants.
	ErrNotParticipant = errors.New("chat: not a participant of this chat room")
	// ErrSelfChat rejects starting a conversation with oneself.
	ErrSelfChat = errors.New("chat: cannot start a chat with yourself")
	// ErrSelfSeen rejects a sender marking their own message as seen.
	ErrSelfSeen = errors.New("chat: cannot mark own message as seen")
)

// Dispatcher pushes realtime chat events. All delivery is best effort.
type Dispatcher interface {
	EmitNewMessage(chatRoomID string, message any)
	EmitNewNotification(userID string, event any)
	EmitMessageSeen(userID, messageID, chatRoomID string)
	RecipientViewing(chatRoomID, userID string) bool
}

// ServiceConfig describes the dependencies required by the chat service.
type ServiceConfig struct {
	Database      *gorm.DB
	Notifications *notification.Service
	Dispatcher    Dispatcher
	Logger        *zap.Logger
	Clock         func() time.Time
}

// Service owns conversations, messages and seen-set bookkeeping.
type Service struct {
	db            *gorm.DB
	notifications *notification.Service
	dispatcher    Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// NewService constructs the chat service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("chat: database connection required")
	}
	if cfg.Notifications == nil {
		return nil, fmt.Errorf("chat: notification service required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:            cfg.Database,
		notifications: cfg.Notifications,
		dispatcher:    cfg.Dispatcher,
		logger:        logger,
		now:           clock,
	}, nil
}

// AttachDispatcher wires the realtime dispatcher after construction. The
// room router uses this service as its participant source, so the
// dispatcher can only be built once the service exists. Must be called
// before the service starts handling requests.
func (s *Service) AttachDispatcher(dispatcher Dispatcher) {
	s.dispatcher = dispatcher
}

// StartOrGet returns the conversation between the caller and the receiver,
// creating it when absent. The caller's role decides the client/provider slots.
func (s *Service) StartOrGet(ctx context.Context, user users.User, receiverID string) (ChatRoom, bool, error) {
	if receiverID == user.ID {
		return ChatRoom{}, false, ErrSelfChat
	}

	var existing ChatRoom
	err := s.db.WithContext(ctx).
		Where("(client_id = ? AND provider_id = ?) OR (client_id = ? AND provider_id = ?)",
			user.ID, receiverID, receiverID, user.ID).
		First(&existing).Error
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return ChatRoom{}, false, err
	}

	room := ChatRoom{ID: uuid.NewString()}
	if user.Role == users.RoleClient {
		room.ClientID = user.ID
		room.ProviderID = receiverID
	} else {
		room.ClientID = receiverID
		room.ProviderID = user.ID
	}
	if err := s.db.WithContext(ctx).Create(&room).Error; err != nil {
		return ChatRoom{}, false, err
	}
	return room, true, nil
}

// RoomSummary is a conversation with its latest message and unseen count.
type RoomSummary struct {
	Room        ChatRoom
	LastMessage *Message
	UnseenCount int64
}

// ListForUser returns the user's conversations, most recently active first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]RoomSummary, error) {
	var rooms []ChatRoom
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Provider").
		Where("client_id = ? OR provider_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summary := RoomSummary{Room: room}

		var last Message
		err := s.db.WithContext(ctx).
			Where("chat_room_id = ?", room.ID).
			Order("created_at DESC").
			First(&last).Error
		if err == nil {
			summary.LastMessage = &last
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		count, err := s.unseenCount(ctx, userID, room.ID)
		if err != nil {
			return nil, err
		}
		summary.UnseenCount = count
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// TotalUnseen returns the user's unseen message count across all conversations.
func (s *Service) TotalUnseen(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Message{}).
		Joins("JOIN chat_rooms ON chat_rooms.id = messages.chat_room_id").
		Where("(chat_rooms.client_id = ? OR chat_rooms.provider_id = ?)", userID, userID).
		Where("messages.sender_id <> ?", userID).
		Where("messages.seen_by_ids NOT LIKE ?", seenByPattern(userID)).
		Count(&count).Error
	return count, err
}

// Messages returns the full conversation history, ascending, plus the
// counterpart participant's profile.
func (s *Service) Messages(ctx context.Context, userID, chatRoomID string) ([]MessagePayload, users.PublicProfile, error) {
	room, err := s.getRoom(ctx, chatRoomID)
	if err != nil {
		return nil, users.PublicProfile{}, err
	}
	if room.ClientID != userID && room.ProviderID != userID {
		return nil, users.PublicProfile{}, ErrNotParticipant
	}

	var records []Message
	err = s.db.WithContext(ctx).
		Preload("Sender").
		Where("chat_room_id = ?", chatRoomID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, users.PublicProfile{}, err
	}

	payloads := make([]MessagePayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, record.Payload())
	}

	other := room.Provider.Public()
	if room.ProviderID == userID {
		other = room.Client.Public()
	}
	return payloads, other, nil
}

// MessageNotification is the notification payload embedding the message
// that triggered it.
type MessageNotification struct {
	notification.Event
	Message MessagePayload `json:"message"`
}

// SendMessage persists a message with the sender pre-marked as having
// seen it, broadcasts it to the conversation room, and notifies the
// recipient unless they are currently viewing the conversation.
func (s *Service) SendMessage(ctx context.Context, userID, chatRoomID, content string) (MessagePayload, error) {
	room, err := s.getRoom(ctx, chatRoomID)
	if err != nil {
		return MessagePayload{}, err
	}
	if room.ClientID != userID && room.ProviderID != userID {
		return MessagePayload{}, ErrNotParticipant
	}

	record := Message{
		ID:         uuid.NewString(),
		ChatRoomID: chatRoomID,
		SenderID:   userID,
		Content:    strings.TrimSpace(content),
		SeenBy:     SeenBy{userID},
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return MessagePayload{}, err
	}
	if err := s.db.WithContext(ctx).Model(&ChatRoom{}).
		Where("id = ?", chatRoomID).
		Update("updated_at", s.now()).Error; err != nil {
		return MessagePayload{}, err
	}

	if err := s.db.WithContext(ctx).Preload("Sender").
		Where("id = ?", record.ID).First(&record).Error; err != nil {
		return MessagePayload{}, err
	}
	payload := record.Payload()

	recipientID := room.ProviderID
	if userID == room.ProviderID {
		recipientID = room.ClientID
	}

	if s.dispatcher != nil {
		s.dispatcher.EmitNewMessage(chatRoomID, payload)

		// Skip the notification when the recipient already has the
		// conversation open; the room broadcast is enough.
		if !s.dispatcher.RecipientViewing(chatRoomID, recipientID) {
			stored, err := s.notifications.Create(ctx, recipientID,
				notification.TypeNewMessage, "You have a new message", chatRoomID)
			if err != nil {
				s.logger.Error("failed to persist message notification",
					zap.String("chat_room_id", chatRoomID), zap.Error(err))
			} else {
				s.dispatcher.EmitNewNotification(recipientID, MessageNotification{
					Event:   stored.Event(),
					Message: payload,
				})
			}
		}
	}

	return payload, nil
}

// MarkSeen adds the user to the message's seen set. Senders cannot mark
// their own messages; repeat calls are no-ops. The original sender is
// notified over the realtime channel.
func (s *Service) MarkSeen(ctx context.Context, userID, messageID string) (MessagePayload, error) {
	var record Message
	err := s.db.WithContext(ctx).
		Preload("ChatRoom").
		Preload("Sender").
		Where("id = ?", messageID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MessagePayload{}, ErrMessageNotFound
	}
	if err != nil {
		return MessagePayload{}, err
	}

	if record.ChatRoom.ClientID != userID && record.ChatRoom.ProviderID != userID {
		return MessagePayload{}, ErrNotParticipant
	}
	if record.SenderID == userID {
		return MessagePayload{}, ErrSelfSeen
	}

	if !record.SeenBy.Contains(userID) {
		record.SeenBy = append(record.SeenBy, userID)
		if err := s.db.WithContext(ctx).Model(&Message{}).
			Where("id = ?", messageID).
			Update("seen_by_ids", record.SeenBy).Error; err != nil {
			return MessagePayload{}, err
		}
	}

	if s.dispatcher != nil {
		s.dispatcher.EmitMessageSeen(record.SenderID, record.ID, record.ChatRoomID)
	}
	return record.Payload(), nil
}

// Participants returns the conversation's stored participant pair. Used by
// the realtime room router to authorize join requests.
func (s *Service) Participants(ctx context.Context, chatRoomID string) (clientID, providerID string, err error) {
	room, err := s.getRoom(ctx, chatRoomID)
	if err != nil {
		return "", "", err
	}
	return room.ClientID, room.ProviderID, nil
}

func (s *Service) getRoom(ctx context.Context, chatRoomID string) (ChatRoom, error) {
	var room ChatRoom
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Provider").
		Where("id = ?", chatRoomID).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ChatRoom{}, ErrChatRoomNotFound
	}
	if err != nil {
		return ChatRoom{}, err
	}
	return room, nil
}

func (s *Service) unseenCount(ctx context.Context, userID, chatRoomID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Message{}).
		Where("chat_room_id = ? AND sender_id <> ?", chatRoomID, userID).
		Where("seen_by_ids NOT LIKE ?", seenByPattern(userID)).
		Count(&count).Error
	return count, err
}

// seenByPattern matches the JSON-encoded seen set. User ids are UUIDs, so
// the quoted id cannot appear as a substring of another entry.
func seenByPattern(userID string) string {
	return `%"` + userID + `"%`
}
