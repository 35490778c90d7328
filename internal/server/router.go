package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/auth"
	"github.com/Behrad-BeigZadeh/Servix/internal/booking"
	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/chat"
	"github.com/Behrad-BeigZadeh/Servix/internal/notification"
	"github.com/Behrad-BeigZadeh/Servix/internal/realtime"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userContextKey     = "servix_user"
	refreshCookieName  = "refreshToken"
	refreshCookieMaxAge = 7 * 24 * 60 * 60
)

var (
	errMissingTokenIssuer   = errors.New("token issuer dependency required")
	errMissingUserService   = errors.New("user service dependency required")
	errMissingCatalog       = errors.New("catalog dependency required")
	errMissingBookings      = errors.New("booking service dependency required")
	errMissingChat          = errors.New("chat service dependency required")
	errMissingNotifications = errors.New("notification service dependency required")
	errMissingPresence      = errors.New("presence registry dependency required")
	errMissingRooms         = errors.New("room router dependency required")
)

// Dependencies wires the HTTP layer to the domain services.
type Dependencies struct {
	Tokens        *auth.TokenIssuer
	Users         *users.Service
	Catalog       *catalog.Catalog
	Bookings      *booking.Service
	Chat          *chat.Service
	Notifications *notification.Service
	Presence      *realtime.Presence
	Rooms         *realtime.Rooms
	Logger        *zap.Logger

	AllowedOrigins []string
	// UploadDir, when set, is served as static files under /uploads.
	UploadDir string
}

// NewHTTPHandler builds the full REST + websocket route table.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalog
	}
	if deps.Bookings == nil {
		return nil, errMissingBookings
	}
	if deps.Chat == nil {
		return nil, errMissingChat
	}
	if deps.Notifications == nil {
		return nil, errMissingNotifications
	}
	if deps.Presence == nil {
		return nil, errMissingPresence
	}
	if deps.Rooms == nil {
		return nil, errMissingRooms
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:        deps.Tokens,
		users:         deps.Users,
		catalog:       deps.Catalog,
		bookings:      deps.Bookings,
		chat:          deps.Chat,
		notifications: deps.Notifications,
		presence:      deps.Presence,
		rooms:         deps.Rooms,
		logger:        logger,
	}

	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	if deps.UploadDir != "" {
		router.Static("/uploads", deps.UploadDir)
	}

	router.GET("/ws", handler.handleWebSocket)

	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.POST("/signup", handler.handleSignup)
	authRoutes.POST("/login", handler.handleLogin)
	authRoutes.POST("/logout", handler.handleLogout)
	authRoutes.POST("/refresh-token", handler.handleRefreshToken)

	userRoutes := api.Group("/users", handler.authorizeRequest)
	userRoutes.GET("/auth-user", handler.handleAuthUser)
	userRoutes.PUT("/auth-user", handler.handleUpdateProfile)

	serviceRoutes := api.Group("/services")
	serviceRoutes.GET("", handler.handleListServices)
	serviceRoutes.GET("/featured", handler.handleFeaturedServices)
	serviceRoutes.GET("/:id", handler.handleGetService)
	serviceRoutes.GET("/provider/:providerId", handler.authorizeRequest, handler.handleProviderServices)
	serviceRoutes.POST("", handler.authorizeRequest, handler.handleCreateService)
	serviceRoutes.PUT("/:id", handler.authorizeRequest, handler.handleUpdateService)
	serviceRoutes.DELETE("/:id", handler.authorizeRequest, handler.handleDeleteService)

	categoryRoutes := api.Group("/categories")
	categoryRoutes.GET("", handler.handleListCategories)
	categoryRoutes.GET("/services", handler.handleServicesByCategory)

	bookingRoutes := api.Group("/bookings", handler.authorizeRequest)
	bookingRoutes.GET("/client", handler.handleClientBookings)
	bookingRoutes.GET("/provider", handler.handleProviderBookings)
	bookingRoutes.GET("/pending-count", handler.handlePendingBookingsCount)
	bookingRoutes.POST("", handler.handleCreateBooking)
	bookingRoutes.GET("/:id", handler.handleBookingDetails)
	bookingRoutes.PATCH("/status/:id", handler.handleUpdateBookingStatus)
	bookingRoutes.PATCH("/:id", handler.handleCancelBooking)
	bookingRoutes.PATCH("/:id/complete", handler.handleCompleteBooking)

	chatRoutes := api.Group("/chat", handler.authorizeRequest)
	chatRoutes.GET("", handler.handleListChats)
	chatRoutes.POST("", handler.handleStartChat)
	chatRoutes.GET("/unseen-total", handler.handleTotalUnseen)
	chatRoutes.GET("/:id/messages", handler.handleChatMessages)
	chatRoutes.POST("/:id/messages", handler.handleSendMessage)
	chatRoutes.PATCH("/:id/seen", handler.handleMarkSeen)

	notificationRoutes := api.Group("/notifications", handler.authorizeRequest)
	notificationRoutes.GET("", handler.handleListNotifications)
	notificationRoutes.PATCH("/:id/read", handler.handleMarkNotificationRead)

	return router, nil
}

type httpHandler struct {
	tokens        *auth.TokenIssuer
	users         *users.Service
	catalog       *catalog.Catalog
	bookings      *booking.Service
	chat          *chat.Service
	notifications *notification.Service
	presence      *realtime.Presence
	rooms         *realtime.Rooms
	logger        *zap.Logger
}

// authorizeRequest validates the bearer token and loads the persisted
// user; a token whose identity no longer exists is rejected.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	claims, err := h.tokens.ValidateAccessToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load authenticated user", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.Set(userContextKey, user)
	c.Next()
}

// currentUser returns the user stored by authorizeRequest.
func currentUser(c *gin.Context) users.User {
	value, _ := c.Get(userContextKey)
	user, _ := value.(users.User)
	return user
}

func (h *httpHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, token, refreshCookieMaxAge, "/", "", false, true)
}

func (h *httpHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", false, true)
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
