package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/auth"
	"github.com/Behrad-BeigZadeh/Servix/internal/booking"
	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/chat"
	"github.com/Behrad-BeigZadeh/Servix/internal/notification"
	"github.com/Behrad-BeigZadeh/Servix/internal/realtime"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type testServer struct {
	handler http.Handler
	db      *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &catalog.Category{}, &catalog.Service{},
		&booking.Booking{}, &chat.ChatRoom{}, &chat.Message{}, &notification.Notification{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Issuer:        "servix-auth",
		Audience:      "servix-api",
	})

	userService, err := users.NewService(users.ServiceConfig{Database: db, Tokens: issuer})
	if err != nil {
		t.Fatalf("failed to construct user service: %v", err)
	}
	notificationService, err := notification.NewService(notification.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct notification service: %v", err)
	}
	chatService, err := chat.NewService(chat.ServiceConfig{Database: db, Notifications: notificationService})
	if err != nil {
		t.Fatalf("failed to construct chat service: %v", err)
	}

	presence := realtime.NewPresence(nil)
	rooms := realtime.NewRooms(chatService, nil)
	dispatcher := realtime.NewDispatcher(presence, rooms, nil)
	chatService.AttachDispatcher(dispatcher)

	bookingService, err := booking.NewService(booking.ServiceConfig{
		Database:      db,
		Notifications: notificationService,
		Notifier:      dispatcher,
	})
	if err != nil {
		t.Fatalf("failed to construct booking service: %v", err)
	}

	imageStore, err := catalog.NewDiskStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("failed to construct image store: %v", err)
	}
	catalogService, err := catalog.NewCatalog(catalog.CatalogConfig{
		Database: db,
		Images:   imageStore,
		Bookings: bookingService,
	})
	if err != nil {
		t.Fatalf("failed to construct catalog: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Tokens:        issuer,
		Users:         userService,
		Catalog:       catalogService,
		Bookings:      bookingService,
		Chat:          chatService,
		Notifications: notificationService,
		Presence:      presence,
		Rooms:         rooms,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}

	return &testServer{handler: handler, db: db}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var parsed map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return parsed
}

// register signs up a user through the API and returns the access token.
func (s *testServer) register(t *testing.T, username, role string) (string, string) {
	t.Helper()
	recorder := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
		"role":     role,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("signup failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	data := decodeBody(t, recorder)["data"].(map[string]any)
	token := data["accessToken"].(string)
	userID := data["user"].(map[string]any)["id"].(string)
	return token, userID
}

func (s *testServer) seedCategory(t *testing.T, name string) string {
	t.Helper()
	category := catalog.Category{ID: uuid.NewString(), Name: name}
	if err := s.db.Create(&category).Error; err != nil {
		t.Fatalf("failed to seed category: %v", err)
	}
	return category.ID
}

func (s *testServer) createService(t *testing.T, token, categoryID string) string {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("title", "Deep clean")
	_ = writer.WriteField("description", "Whole apartment")
	_ = writer.WriteField("price", "80")
	_ = writer.WriteField("categoryId", categoryID)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="image"; filename="photo.jpg"`)
	partHeader.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to build multipart body: %v", err)
	}
	if _, err := part.Write([]byte("jpegdata")); err != nil {
		t.Fatalf("failed to write image part: %v", err)
	}
	writer.Close()

	request := httptest.NewRequest(http.MethodPost, "/api/services", &buf)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("service creation failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	return decodeBody(t, recorder)["data"].(map[string]any)["id"].(string)
}

func TestPing(t *testing.T) {
	server := newTestServer(t)
	recorder := server.do(t, http.MethodGet, "/ping", "", nil)
	if recorder.Code != http.StatusOK || recorder.Body.String() != "pong" {
		t.Fatalf("unexpected ping response %d %q", recorder.Code, recorder.Body.String())
	}
}

func TestSignupSetsRefreshCookie(t *testing.T) {
	server := newTestServer(t)
	recorder := server.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret123",
		"role":     "CLIENT",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}

	var refreshCookie *http.Cookie
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == refreshCookieName {
			refreshCookie = cookie
		}
	}
	if refreshCookie == nil || refreshCookie.Value == "" {
		t.Fatal("expected refreshToken cookie")
	}
	if !refreshCookie.HttpOnly {
		t.Fatal("expected httpOnly cookie")
	}
}

func TestSignupRejectsDuplicateUsername(t *testing.T) {
	server := newTestServer(t)
	server.register(t, "alice", "CLIENT")

	recorder := server.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "alice",
		"email":    "different@example.com",
		"password": "secret123",
		"role":     "CLIENT",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	server := newTestServer(t)
	server.register(t, "alice", "CLIENT")

	recorder := server.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	server := newTestServer(t)
	recorder := server.do(t, http.MethodPost, "/api/auth/refresh-token", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	server := newTestServer(t)
	recorder := server.do(t, http.MethodGet, "/api/users/auth-user", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	recorder = server.do(t, http.MethodGet, "/api/users/auth-user", "garbage-token", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", recorder.Code)
	}
}

func TestAuthUserReturnsProfile(t *testing.T) {
	server := newTestServer(t)
	token, userID := server.register(t, "alice", "CLIENT")

	recorder := server.do(t, http.MethodGet, "/api/users/auth-user", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	data := decodeBody(t, recorder)["data"].(map[string]any)
	if data["id"] != userID || data["username"] != "alice" {
		t.Fatalf("unexpected profile %v", data)
	}
}

func TestCreateServiceRequiresProviderRole(t *testing.T) {
	server := newTestServer(t)
	token, _ := server.register(t, "cleo", "CLIENT")

	request := httptest.NewRequest(http.MethodPost, "/api/services", bytes.NewReader(nil))
	request.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestServiceLifecycleOverHTTP(t *testing.T) {
	server := newTestServer(t)
	providerToken, _ := server.register(t, "pat", "PROVIDER")
	categoryID := server.seedCategory(t, "Cleaning")

	serviceID := server.createService(t, providerToken, categoryID)

	recorder := server.do(t, http.MethodGet, "/api/services/"+serviceID, "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	data := decodeBody(t, recorder)["data"].(map[string]any)
	if data["title"] != "Deep clean" {
		t.Fatalf("unexpected service %v", data)
	}

	recorder = server.do(t, http.MethodGet, "/api/services", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected list status %d", recorder.Code)
	}

	recorder = server.do(t, http.MethodGet, "/api/categories/services?category=Cleaning", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected category listing status %d: %s", recorder.Code, recorder.Body.String())
	}
	listed := decodeBody(t, recorder)["data"].([]any)
	if len(listed) != 1 {
		t.Fatalf("expected one service in category, got %d", len(listed))
	}

	recorder = server.do(t, http.MethodDelete, "/api/services/"+serviceID, providerToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected delete status %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestBookingFlowOverHTTP(t *testing.T) {
	server := newTestServer(t)
	providerToken, _ := server.register(t, "pat", "PROVIDER")
	clientToken, _ := server.register(t, "cleo", "CLIENT")
	categoryID := server.seedCategory(t, "Cleaning")
	serviceID := server.createService(t, providerToken, categoryID)

	recorder := server.do(t, http.MethodPost, "/api/bookings", clientToken, map[string]any{
		"serviceId": serviceID,
		"date":      time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("booking failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	bookingID := decodeBody(t, recorder)["data"].(map[string]any)["id"].(string)

	// Deleting a service with a live booking is refused.
	recorder = server.do(t, http.MethodDelete, "/api/services/"+serviceID, providerToken, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for booked service, got %d", recorder.Code)
	}

	recorder = server.do(t, http.MethodGet, "/api/bookings/pending-count", providerToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected count status %d", recorder.Code)
	}
	count := decodeBody(t, recorder)["data"].(map[string]any)["pendingCount"].(float64)
	if count != 1 {
		t.Fatalf("expected 1 pending, got %v", count)
	}

	// The client cannot decide the booking.
	recorder = server.do(t, http.MethodPatch, "/api/bookings/status/"+bookingID, clientToken, map[string]string{
		"status": "ACCEPTED",
	})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client decision, got %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = server.do(t, http.MethodPatch, "/api/bookings/status/"+bookingID, providerToken, map[string]string{
		"status": "ACCEPTED",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("accept failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = server.do(t, http.MethodPatch, "/api/bookings/"+bookingID+"/complete", providerToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("complete failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	status := decodeBody(t, recorder)["data"].(map[string]any)["status"].(string)
	if status != "COMPLETED" {
		t.Fatalf("expected COMPLETED, got %s", status)
	}

	// Notifications were persisted for both sides.
	recorder = server.do(t, http.MethodGet, "/api/notifications", clientToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected notifications status %d", recorder.Code)
	}
	clientNotifications := decodeBody(t, recorder)["data"].([]any)
	if len(clientNotifications) != 1 {
		t.Fatalf("expected one client notification, got %d", len(clientNotifications))
	}
}

func TestChatFlowOverHTTP(t *testing.T) {
	server := newTestServer(t)
	_, providerID := server.register(t, "pat", "PROVIDER")
	clientToken, _ := server.register(t, "cleo", "CLIENT")

	recorder := server.do(t, http.MethodPost, "/api/chat", clientToken, map[string]string{
		"receiverId": providerID,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("chat start failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	data := decodeBody(t, recorder)["data"].(map[string]any)
	roomID := data["chatRoom"].(map[string]any)["id"].(string)

	recorder = server.do(t, http.MethodPost, "/api/chat/"+roomID+"/messages", clientToken, map[string]string{
		"content": "hello",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("send failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = server.do(t, http.MethodGet, "/api/chat/"+roomID+"/messages", clientToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("messages failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	parsed := decodeBody(t, recorder)
	if len(parsed["messages"].([]any)) != 1 {
		t.Fatalf("expected one message, got %v", parsed["messages"])
	}
	if parsed["otherUser"].(map[string]any)["username"] != "pat" {
		t.Fatalf("unexpected counterpart %v", parsed["otherUser"])
	}

	recorder = server.do(t, http.MethodGet, "/api/chat", clientToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("chat list failed with %d", recorder.Code)
	}
	chats := decodeBody(t, recorder)["allChats"].([]any)
	if len(chats) != 1 {
		t.Fatalf("expected one conversation, got %d", len(chats))
	}

	recorder = server.do(t, http.MethodGet, "/api/chat/unseen-total", clientToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unseen total failed with %d", recorder.Code)
	}
	if total := decodeBody(t, recorder)["totalUnseen"].(float64); total != 0 {
		t.Fatalf("expected 0 unseen for sender, got %v", total)
	}

	recorder = server.do(t, http.MethodPost, "/api/chat", clientToken, map[string]string{
		"receiverId": providerID,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing conversation, got %d", recorder.Code)
	}
}

func TestWebsocketHandshakeRejectsBadToken(t *testing.T) {
	server := newTestServer(t)
	recorder := server.do(t, http.MethodGet, "/ws?token=garbage", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}
