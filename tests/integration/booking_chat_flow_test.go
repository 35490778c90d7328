package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Behrad-BeigZadeh/Servix/internal/auth"
	"github.com/Behrad-BeigZadeh/Servix/internal/booking"
	"github.com/Behrad-BeigZadeh/Servix/internal/catalog"
	"github.com/Behrad-BeigZadeh/Servix/internal/chat"
	"github.com/Behrad-BeigZadeh/Servix/internal/notification"
	"github.com/Behrad-BeigZadeh/Servix/internal/realtime"
	"github.com/Behrad-BeigZadeh/Servix/internal/server"
	"github.com/Behrad-BeigZadeh/Servix/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

type stack struct {
	server *httptest.Server
	db     *gorm.DB
}

func newStack(t *testing.T) *stack {
	t.Helper()
	dsn := fmt.Sprintf("file:integration_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	handler, err := server.NewHTTPHandler(server.Dependencies{
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

	httpServer := httptest.NewServer(handler)
	t.Cleanup(httpServer.Close)
	return &stack{server: httpServer, db: db}
}

func (s *stack) request(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		payload = encoded
	}
	request, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer response.Body.Close()

	var parsed map[string]any
	if err := json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response.StatusCode, parsed
}

func (s *stack) register(t *testing.T, username, role string) (string, string) {
	t.Helper()
	status, body := s.request(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
		"role":     role,
	})
	if status != http.StatusCreated {
		t.Fatalf("signup failed with %d: %v", status, body)
	}
	data := body["data"].(map[string]any)
	return data["accessToken"].(string), data["user"].(map[string]any)["id"].(string)
}

func (s *stack) seedService(t *testing.T, providerID string) string {
	t.Helper()
	category := catalog.Category{ID: uuid.NewString(), Name: "Cleaning"}
	if err := s.db.Create(&category).Error; err != nil {
		t.Fatalf("failed to seed category: %v", err)
	}
	service := catalog.Service{
		ID:          uuid.NewString(),
		Title:       "Deep clean",
		Description: "Whole apartment",
		Price:       80,
		Images:      catalog.ImageList{"/uploads/a.jpg"},
		CategoryID:  category.ID,
		ProviderID:  providerID,
	}
	if err := s.db.Create(&service).Error; err != nil {
		t.Fatalf("failed to seed service: %v", err)
	}
	return service.ID
}

func (s *stack) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// awaitEvent reads until the named event arrives or the deadline passes.
func awaitEvent(t *testing.T, conn *websocket.Conn, name string) wireEvent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		var event wireEvent
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("waiting for %q: %v", name, err)
		}
		if event.Event == name {
			return event
		}
	}
}

func joinRoom(t *testing.T, conn *websocket.Conn, roomID string) {
	t.Helper()
	if err := conn.WriteJSON(map[string]string{"event": "join_room", "chatRoomId": roomID}); err != nil {
		t.Fatalf("failed to send join_room: %v", err)
	}
}

func TestBookingAndChatRealtimeFlow(t *testing.T) {
	s := newStack(t)

	providerToken, providerID := s.register(t, "pat", "PROVIDER")
	clientToken, _ := s.register(t, "cleo", "CLIENT")
	serviceID := s.seedService(t, providerID)

	providerConn := s.dial(t, providerToken)
	clientConn := s.dial(t, clientToken)

	// Booking request reaches the provider's personal room.
	status, body := s.request(t, http.MethodPost, "/api/bookings", clientToken, map[string]any{
		"serviceId": serviceID,
		"date":      time.Now().Add(48 * time.Hour).Format(time.RFC3339),
	})
	if status != http.StatusCreated {
		t.Fatalf("booking failed with %d: %v", status, body)
	}
	bookingID := body["data"].(map[string]any)["id"].(string)

	event := awaitEvent(t, providerConn, "new_notification")
	var bookingNotice struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(event.Data, &bookingNotice); err != nil {
		t.Fatalf("failed to decode notification: %v", err)
	}
	if bookingNotice.Type != "BOOKING_REQUEST" {
		t.Fatalf("expected BOOKING_REQUEST, got %+v", bookingNotice)
	}

	// Acceptance reaches the client.
	status, body = s.request(t, http.MethodPatch, "/api/bookings/status/"+bookingID, providerToken, map[string]string{
		"status": "ACCEPTED",
	})
	if status != http.StatusOK {
		t.Fatalf("accept failed with %d: %v", status, body)
	}

	event = awaitEvent(t, clientConn, "new_notification")
	var acceptNotice struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(event.Data, &acceptNotice); err != nil {
		t.Fatalf("failed to decode notification: %v", err)
	}
	if acceptNotice.Type != "ACCEPTED" {
		t.Fatalf("expected ACCEPTED, got %+v", acceptNotice)
	}

	// Open a conversation; both sides join the room.
	status, body = s.request(t, http.MethodPost, "/api/chat", clientToken, map[string]string{
		"receiverId": providerID,
	})
	if status != http.StatusCreated {
		t.Fatalf("chat start failed with %d: %v", status, body)
	}
	roomID := body["data"].(map[string]any)["chatRoom"].(map[string]any)["id"].(string)

	joinRoom(t, clientConn, roomID)
	joinRoom(t, providerConn, roomID)
	// Room joins are processed asynchronously by the read loop.
	time.Sleep(200 * time.Millisecond)

	status, body = s.request(t, http.MethodPost, "/api/chat/"+roomID+"/messages", clientToken, map[string]string{
		"content": "hello",
	})
	if status != http.StatusCreated {
		t.Fatalf("send failed with %d: %v", status, body)
	}
	messageID := body["data"].(map[string]any)["id"].(string)

	event = awaitEvent(t, providerConn, "new_message")
	var message struct {
		Content  string `json:"content"`
		SenderID string `json:"senderId"`
	}
	if err := json.Unmarshal(event.Data, &message); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	if message.Content != "hello" {
		t.Fatalf("unexpected message %+v", message)
	}

	// The provider was viewing the room, so no NEW_MESSAGE notification
	// was persisted for them.
	status, body = s.request(t, http.MethodGet, "/api/notifications", providerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("notifications failed with %d", status)
	}
	for _, raw := range body["data"].([]any) {
		record := raw.(map[string]any)
		if record["type"] == "NEW_MESSAGE" {
			t.Fatalf("unexpected NEW_MESSAGE notification: %v", record)
		}
	}

	// Seen receipt flows back to the original sender.
	status, body = s.request(t, http.MethodPatch, "/api/chat/"+messageID+"/seen", providerToken, nil)
	if status != http.StatusOK {
		t.Fatalf("seen failed with %d: %v", status, body)
	}

	event = awaitEvent(t, clientConn, "message_seen")
	var receipt struct {
		MessageID  string `json:"messageId"`
		ChatRoomID string `json:"chatRoomId"`
	}
	if err := json.Unmarshal(event.Data, &receipt); err != nil {
		t.Fatalf("failed to decode receipt: %v", err)
	}
	if receipt.MessageID != messageID || receipt.ChatRoomID != roomID {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}
