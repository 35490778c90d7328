package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/notification"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrBookingNotFound indicates the booking does not exist or the caller
	// is not a participant.
	ErrBookingNotFound = errors.New("booking: not found")
	// ErrOwnService rejects providers booking their own service.
	ErrOwnService = errors.New("booking: cannot book your own service")
	// ErrDuplicateActive rejects a second live booking for the same service.
	ErrDuplicateActive = errors.New("booking: active booking already exists for this service")
	// ErrNotServiceOwner rejects status changes by a provider who does not
	// own the booked service.
	ErrNotServiceOwner = errors.New("booking: service owned by another provider")
	// ErrInvalidTransition rejects a status change the state machine forbids.
	ErrInvalidTransition = errors.New("booking: invalid status transition")
)

// Notifier pushes a realtime notification event to a user's connection.
// Delivery is best effort; the persisted row is the source of truth.
type Notifier interface {
	EmitNewNotification(userID string, event any)
}

// ServiceConfig describes the dependencies required by the booking service.
type ServiceConfig struct {
	Database      *gorm.DB
	Notifications *notification.Service
	Notifier      Notifier
	Logger        *zap.Logger
	Clock         func() time.Time
}

// Service owns the booking state machine and its notification side effects.
type Service struct {
	db            *gorm.DB
	notifications *notification.Service
	notifier      Notifier
	logger        *zap.Logger
	now           func() time.Time
}

// NewService constructs the booking service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("booking: database connection required")
	}
	if cfg.Notifications == nil {
		return nil, fmt.Errorf("booking: notification service required")
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
		notifier:      cfg.Notifier,
		logger:        logger,
		now:           clock,
	}, nil
}

// Create places a PENDING booking and notifies the service provider.
func (s *Service) Create(ctx context.Context, clientID, serviceID string, date time.Time) (Booking, error) {
	var service catalog.Service
	err := s.db.WithContext(ctx).Where("id = ?", serviceID).First(&service).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Booking{}, catalog.ErrServiceNotFound
	}
	if err != nil {
		return Booking{}, err
	}
	if service.ProviderID == clientID {
		return Booking{}, ErrOwnService
	}

	var existing Booking
	err = s.db.WithContext(ctx).
		Where("client_id = ? AND service_id = ? AND status IN ?",
			clientID, serviceID, []Status{StatusPending, StatusAccepted}).
		First(&existing).Error
	if err == nil {
		return Booking{}, ErrDuplicateActive
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Booking{}, err
	}

	record := Booking{
		ID:        uuid.NewString(),
		Date:      date,
		Status:    StatusPending,
		ClientID:  clientID,
		ServiceID: serviceID,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return Booking{}, err
	}

	s.notify(ctx, service.ProviderID, notification.TypeBookingRequest, "You have a new booking request")
	return s.getByID(ctx, record.ID)
}

// ListForClient returns the client's bookings.
func (s *Service) ListForClient(ctx context.Context, clientID string) ([]Booking, error) {
	var records []Booking
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Service").
		Preload("Service.Provider").
		Where("client_id = ?", clientID).
		Find(&records).Error
	return records, err
}

// ListForProvider returns bookings against the provider's services, newest first.
func (s *Service) ListForProvider(ctx context.Context, providerID string) ([]Booking, error) {
	var records []Booking
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Service").
		Preload("Service.Provider").
		Joins("JOIN services ON services.id = bookings.service_id").
		Where("services.provider_id = ?", providerID).
		Order("bookings.date DESC").
		Find(&records).Error
	return records, err
}

// GetForParticipant loads a booking visible to its client or the service provider.
func (s *Service) GetForParticipant(ctx context.Context, userID, bookingID string) (Booking, error) {
	record, err := s.getByID(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if record.ClientID != userID && record.Service.ProviderID != userID {
		return Booking{}, ErrBookingNotFound
	}
	return record, nil
}

// PendingCount returns the number of PENDING bookings on the provider's services.
func (s *Service) PendingCount(ctx context.Context, providerID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Booking{}).
		Joins("JOIN services ON services.id = bookings.service_id").
		Where("services.provider_id = ? AND bookings.status = ?", providerID, StatusPending).
		Count(&count).Error
	return count, err
}

// Decide moves a PENDING booking to ACCEPTED or DECLINED. Only the
// provider owning the booked service may decide, and only from PENDING.
func (s *Service) Decide(ctx context.Context, providerID, bookingID string, status Status) (Booking, error) {
	if status != StatusAccepted && status != StatusDeclined {
		return Booking{}, ErrInvalidTransition
	}

	record, err := s.getByID(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if record.Service.ProviderID != providerID {
		return Booking{}, ErrNotServiceOwner
	}
	if record.Status != StatusPending {
		return Booking{}, ErrInvalidTransition
	}

	if err := s.transition(ctx, record.ID, status); err != nil {
		return Booking{}, err
	}

	verb := "accepted"
	kind := notification.TypeBookingAccepted
	if status == StatusDeclined {
		verb = "rejected"
		kind = notification.TypeBookingDeclined
	}
	s.notify(ctx, record.ClientID, kind,
		fmt.Sprintf("Your booking for %s was %s.", record.Service.Title, verb))

	return s.getByID(ctx, bookingID)
}

// Complete moves an ACCEPTED booking to COMPLETED. Provider only.
func (s *Service) Complete(ctx context.Context, providerID, bookingID string) (Booking, error) {
	record, err := s.getByID(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if record.Service.ProviderID != providerID {
		return Booking{}, ErrNotServiceOwner
	}
	if record.Status != StatusAccepted {
		return Booking{}, ErrInvalidTransition
	}
	if err := s.transition(ctx, record.ID, StatusCompleted); err != nil {
		return Booking{}, err
	}
	return s.getByID(ctx, bookingID)
}

// Cancel moves any non-terminal booking to CANCELLED. Client only.
func (s *Service) Cancel(ctx context.Context, clientID, bookingID string) (Booking, error) {
	record, err := s.getByID(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if record.ClientID != clientID {
		return Booking{}, ErrBookingNotFound
	}
	if record.Status.Terminal() {
		return Booking{}, ErrInvalidTransition
	}
	if err := s.transition(ctx, record.ID, StatusCancelled); err != nil {
		return Booking{}, err
	}
	return s.getByID(ctx, bookingID)
}

// HasBlockingBookings reports whether bookings other than COMPLETED or
// DECLINED still reference the service. Implements catalog.BookingGuard.
func (s *Service) HasBlockingBookings(ctx context.Context, serviceID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Booking{}).
		Where("service_id = ? AND status NOT IN ?",
			serviceID, []Status{StatusCompleted, StatusDeclined}).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) getByID(ctx context.Context, id string) (Booking, error) {
	var record Booking
	err := s.db.WithContext(ctx).
		Preload("Client").
		Preload("Service").
		Preload("Service.Provider").
		Where("id = ?", id).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Booking{}, ErrBookingNotFound
	}
	if err != nil {
		return Booking{}, err
	}
	return record, nil
}

func (s *Service) transition(ctx context.Context, id string, status Status) error {
	return s.db.WithContext(ctx).Model(&Booking{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// notify persists the notification and pushes it best-effort. A failed
// insert is logged rather than failing the booking operation.
func (s *Service) notify(ctx context.Context, userID string, kind notification.Type, message string) {
	record, err := s.notifications.Create(ctx, userID, kind, message, "")
	if err != nil {
		s.logger.Error("failed to persist notification",
			zap.String("user_id", userID),
			zap.String("type", string(kind)),
			zap.Error(err))
		return
	}
	if s.notifier != nil {
		s.notifier.EmitNewNotification(userID, record.Event())
	}
}
