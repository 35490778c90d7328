package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleListServices(c *gin.Context) {
	services, err := h.catalog.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list services", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newServicePayloads(services)})
}

func (h *httpHandler) handleFeaturedServices(c *gin.Context) {
	services, err := h.catalog.ListFeatured(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list featured services", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newServicePayloads(services)})
}

func (h *httpHandler) handleGetService(c *gin.Context) {
	service, err := h.catalog.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, catalog.ErrServiceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load service", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newServicePayload(service)})
}

func (h *httpHandler) handleProviderServices(c *gin.Context) {
	services, err := h.catalog.ListByProvider(c.Request.Context(), c.Param("providerId"))
	if errors.Is(err, catalog.ErrServiceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No services found for this provider"})
		return
	}
	if err != nil {
		h.logger.Error("failed to list provider services", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newServicePayloads(services)})
}

func (h *httpHandler) handleCreateService(c *gin.Context) {
	user := currentUser(c)
	if user.Role != users.RoleProvider {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only providers can create services"})
		return
	}

	title := c.PostForm("title")
	description := c.PostForm("description")
	categoryID := c.PostForm("categoryId")
	priceRaw := c.PostForm("price")
	if title == "" || description == "" || categoryID == "" || priceRaw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}
	if !validServiceText(title, description) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title must be at least 5 characters and description at least 10"})
		return
	}
	price, err := strconv.ParseFloat(priceRaw, 64)
	if err != nil || price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price"})
		return
	}

	image, err := readImageUpload(c)
	if err != nil {
		h.respondImageError(c, err)
		return
	}

	service, err := h.catalog.Create(c.Request.Context(), user.ID, catalog.CreateRequest{
		Title:       title,
		Description: description,
		Price:       price,
		CategoryID:  categoryID,
		Image:       image,
	})
	if err != nil {
		h.respondCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": newServicePayload(service)})
}

func (h *httpHandler) handleUpdateService(c *gin.Context) {
	user := currentUser(c)

	req := catalog.UpdateRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		CategoryID:  c.PostForm("categoryId"),
	}
	if (req.Title != "" && len(req.Title) < minTitleLen) ||
		(req.Description != "" && len(req.Description) < minDescriptionLen) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title must be at least 5 characters and description at least 10"})
		return
	}
	if raw := c.PostForm("price"); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil || price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price"})
			return
		}
		req.Price = &price
	}

	image, err := readImageUpload(c)
	if err != nil && !errors.Is(err, catalog.ErrImageRequired) {
		h.respondImageError(c, err)
		return
	}
	req.Image = image

	service, err := h.catalog.Update(c.Request.Context(), user.ID, c.Param("id"), req)
	if err != nil {
		h.respondCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newServicePayload(service)})
}

func (h *httpHandler) handleDeleteService(c *gin.Context) {
	user := currentUser(c)

	service, err := h.catalog.Delete(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		h.respondCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newServicePayload(service)})
}

func (h *httpHandler) handleListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list categories", zap.Error(err))
		internalError(c)
		return
	}
	payloads := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		payloads = append(payloads, newCategoryPayload(category))
	}
	c.JSON(http.StatusOK, gin.H{"data": payloads})
}

func (h *httpHandler) handleServicesByCategory(c *gin.Context) {
	name := c.Query("category")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category is required"})
		return
	}
	services, err := h.catalog.ListByCategoryName(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("failed to list services by category", zap.Error(err))
		internalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newServicePayloads(services)})
}

const (
	minTitleLen       = 5
	minDescriptionLen = 10
)

func validServiceText(title, description string) bool {
	return len(title) >= minTitleLen && len(description) >= minDescriptionLen
}

// readImageUpload extracts the multipart "image" field. A missing file is
// reported as catalog.ErrImageRequired so update handlers can treat it as
// optional.
func readImageUpload(c *gin.Context) (*catalog.ImageUpload, error) {
	header, err := c.FormFile("image")
	if err != nil {
		return nil, catalog.ErrImageRequired
	}
	data, err := readMultipartFile(header)
	if err != nil {
		return nil, catalog.ErrInvalidImage
	}
	return &catalog.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (h *httpHandler) respondImageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrImageRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image is required"})
	case errors.Is(err, catalog.ErrImageTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image exceeds the 2MB limit"})
	case errors.Is(err, catalog.ErrInvalidImage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only JPEG and PNG images are allowed"})
	default:
		h.logger.Error("image upload failed", zap.Error(err))
		internalError(c)
	}
}

func (h *httpHandler) respondCatalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrServiceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
	case errors.Is(err, catalog.ErrCategoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Category not found"})
	case errors.Is(err, catalog.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only modify your own services"})
	case errors.Is(err, catalog.ErrHasActiveBookings):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Service has been booked by users"})
	case errors.Is(err, catalog.ErrImageRequired),
		errors.Is(err, catalog.ErrInvalidImage),
		errors.Is(err, catalog.ErrImageTooLarge):
		h.respondImageError(c, err)
	default:
		h.logger.Error("catalog operation failed", zap.Error(err))
		internalError(c)
	}
}
