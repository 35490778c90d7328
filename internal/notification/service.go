package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotificationNotFound indicates the notification does not exist or
// belongs to another user.
var ErrNotificationNotFound = errors.New("notification: not found")

// ServiceConfig describes the dependencies required by the notification service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service persists notifications created by booking and chat flows and
// serves their later retrieval.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the notification service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notification: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// Create persists a notification for the user.
func (s *Service) Create(ctx context.Context, userID string, kind Type, message, chatRoomID string) (Notification, error) {
	record := Notification{
		ID:         uuid.NewString(),
		UserID:     userID,
		Type:       kind,
		Message:    message,
		ChatRoomID: chatRoomID,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Notification{}, err
	}
	return record, nil
}

// ListForUser returns the user's notifications, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	var records []Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// MarkRead flags an owned notification as read. Idempotent.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (Notification, error) {
	var record Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Notification{}, ErrNotificationNotFound
	}
	if err != nil {
		return Notification{}, err
	}
	if !record.Read {
		if err := s.db.WithContext(ctx).Model(&Notification{}).
			Where("id = ?", notificationID).
			Update("read", true).Error; err != nil {
			return Notification{}, err
		}
		record.Read = true
	}
	return record, nil
}
