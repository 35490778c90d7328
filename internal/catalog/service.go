package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	maxImageBytes    = 2 * 1024 * 1024
	featuredServices = 4
)

var (
	// ErrServiceNotFound indicates no service exists for the identifier.
	ErrServiceNotFound = errors.New("catalog: service not found")
	// ErrCategoryNotFound indicates no category exists for the identifier.
	ErrCategoryNotFound = errors.New("catalog: category not found")
	// ErrNotOwner indicates the caller does not own the service.
	ErrNotOwner = errors.New("catalog: service owned by another provider")
	// ErrHasActiveBookings blocks deletion while bookings reference the service.
	ErrHasActiveBookings = errors.New("catalog: service has been booked by users")
	// ErrImageRequired indicates a service was submitted without an image.
	ErrImageRequired = errors.New("catalog: image is required")
	// ErrInvalidImage indicates the uploaded file is not an accepted image.
	ErrInvalidImage = errors.New("catalog: invalid image file")
	// ErrImageTooLarge indicates the uploaded file exceeds the size cap.
	ErrImageTooLarge = errors.New("catalog: image exceeds maximum size")
)

// ImageStore persists uploaded images in an external object store and
// returns a public URL. The store itself is outside this service's scope.
type ImageStore interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// BookingGuard reports whether a service still has bookings that block deletion.
type BookingGuard interface {
	HasBlockingBookings(ctx context.Context, serviceID string) (bool, error)
}

// CatalogConfig describes the dependencies required by the catalog.
type CatalogConfig struct {
	Database *gorm.DB
	Images   ImageStore
	Bookings BookingGuard
	Clock    func() time.Time
}

// Catalog owns service and category management.
type Catalog struct {
	db       *gorm.DB
	images   ImageStore
	bookings BookingGuard
	now      func() time.Time
}

// NewCatalog constructs the catalog service.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("catalog: database connection required")
	}
	if cfg.Images == nil {
		return nil, fmt.Errorf("catalog: image store required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Catalog{db: cfg.Database, images: cfg.Images, bookings: cfg.Bookings, now: clock}, nil
}

// ListAll returns every published service with provider and category preloaded.
func (c *Catalog) ListAll(ctx context.Context) ([]Service, error) {
	var services []Service
	err := c.db.WithContext(ctx).
		Preload("Provider").
		Preload("Category").
		Find(&services).Error
	return services, err
}

// ListFeatured returns the newest services for the landing page.
func (c *Catalog) ListFeatured(ctx context.Context) ([]Service, error) {
	var services []Service
	err := c.db.WithContext(ctx).
		Preload("Provider").
		Preload("Category").
		Order("created_at DESC").
		Limit(featuredServices).
		Find(&services).Error
	return services, err
}

// ListByProvider returns a provider's services; an empty result is reported
// as ErrServiceNotFound to match the public API contract.
func (c *Catalog) ListByProvider(ctx context.Context, providerID string) ([]Service, error) {
	var services []Service
	err := c.db.WithContext(ctx).
		Preload("Provider").
		Preload("Category").
		Where("provider_id = ?", providerID).
		Find(&services).Error
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, ErrServiceNotFound
	}
	return services, nil
}

// GetByID loads a single service with its relations.
func (c *Catalog) GetByID(ctx context.Context, id string) (Service, error) {
	var service Service
	err := c.db.WithContext(ctx).
		Preload("Provider").
		Preload("Category").
		Where("id = ?", id).
		First(&service).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Service{}, ErrServiceNotFound
	}
	if err != nil {
		return Service{}, err
	}
	return service, nil
}

// ListCategories returns all categories ordered by name.
func (c *Catalog) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := c.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

// ListByCategoryName returns services within the named category.
func (c *Catalog) ListByCategoryName(ctx context.Context, name string) ([]Service, error) {
	var services []Service
	err := c.db.WithContext(ctx).
		Joins("JOIN categories ON categories.id = services.category_id").
		Where("categories.name = ?", name).
		Preload("Provider").
		Preload("Category").
		Find(&services).Error
	return services, err
}

// ImageUpload carries a validated multipart image payload.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CreateRequest carries validated service creation input.
type CreateRequest struct {
	Title       string
	Description string
	Price       float64
	CategoryID  string
	Image       *ImageUpload
}

// Create publishes a new service for the provider.
func (c *Catalog) Create(ctx context.Context, providerID string, req CreateRequest) (Service, error) {
	if req.Image == nil {
		return Service{}, ErrImageRequired
	}
	imageURL, err := c.storeImage(ctx, req.Image)
	if err != nil {
		return Service{}, err
	}

	var category Category
	err = c.db.WithContext(ctx).Where("id = ?", req.CategoryID).First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Service{}, ErrCategoryNotFound
	}
	if err != nil {
		return Service{}, err
	}

	service := Service{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Images:      ImageList{imageURL},
		CategoryID:  req.CategoryID,
		ProviderID:  providerID,
	}
	if err := c.db.WithContext(ctx).Create(&service).Error; err != nil {
		return Service{}, err
	}
	return c.GetByID(ctx, service.ID)
}

// UpdateRequest carries optional service fields; zero values are left unchanged.
type UpdateRequest struct {
	Title       string
	Description string
	Price       *float64
	CategoryID  string
	Image       *ImageUpload
}

// Update modifies an owned service; a new image replaces the existing set.
func (c *Catalog) Update(ctx context.Context, providerID, serviceID string, req UpdateRequest) (Service, error) {
	service, err := c.GetByID(ctx, serviceID)
	if err != nil {
		return Service{}, err
	}
	if service.ProviderID != providerID {
		return Service{}, ErrNotOwner
	}

	updates := map[string]interface{}{}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.CategoryID != "" {
		updates["category_id"] = req.CategoryID
	}
	if req.Image != nil {
		imageURL, err := c.storeImage(ctx, req.Image)
		if err != nil {
			return Service{}, err
		}
		updates["images"] = ImageList{imageURL}
	}

	if len(updates) > 0 {
		if err := c.db.WithContext(ctx).Model(&Service{}).
			Where("id = ?", serviceID).
			Updates(updates).Error; err != nil {
			return Service{}, err
		}
	}
	return c.GetByID(ctx, serviceID)
}

// Delete removes an owned service unless bookings still reference it.
func (c *Catalog) Delete(ctx context.Context, providerID, serviceID string) (Service, error) {
	service, err := c.GetByID(ctx, serviceID)
	if err != nil {
		return Service{}, err
	}
	if service.ProviderID != providerID {
		return Service{}, ErrNotOwner
	}

	if c.bookings != nil {
		blocked, err := c.bookings.HasBlockingBookings(ctx, serviceID)
		if err != nil {
			return Service{}, err
		}
		if blocked {
			return Service{}, ErrHasActiveBookings
		}
	}

	if err := c.db.WithContext(ctx).Delete(&Service{}, "id = ?", serviceID).Error; err != nil {
		return Service{}, err
	}
	return service, nil
}

func (c *Catalog) storeImage(ctx context.Context, image *ImageUpload) (string, error) {
	contentType := strings.ToLower(strings.TrimSpace(image.ContentType))
	if contentType != "image/jpeg" && contentType != "image/png" {
		return "", ErrInvalidImage
	}
	if len(image.Data) == 0 {
		return "", ErrInvalidImage
	}
	if len(image.Data) > maxImageBytes {
		return "", ErrImageTooLarge
	}
	return c.images.Upload(ctx, image.Filename, contentType, image.Data)
}
