package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"numera.app/backend/internal/events"
	"numera.app/backend/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct {
	claims map[string]*TokenClaims
}

func (s *stubVerifier) Verify(token string) (*TokenClaims, error) {
	claims, ok := s.claims[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type hubFixture struct {
	hub    *Hub
	bus    *events.Bus
	server *httptest.Server
	wsURL  string
}

func newHubFixture(t *testing.T, verifier TokenVerifier) *hubFixture {
	t.Helper()

	hub := NewHub(verifier)
	bus := events.NewBus()
	hub.Register(bus)

	router := gin.New()
	router.GET("/ws", hub.HandleWS)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &hubFixture{
		hub:    hub,
		bus:    bus,
		server: server,
		wsURL:  "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
	}
}

func (f *hubFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL, header)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp %v)", err, resp)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForRoom(t *testing.T, hub *Hub, userID uuid.UUID, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.RoomCount(userID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("room for %s never reached %d members", userID, want)
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("invalid message %s: %v", payload, err)
	}
	return msg
}

func TestHandshakeRejectsQueryStringToken(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	f := newHubFixture(t, &stubVerifier{claims: map[string]*TokenClaims{
		"good": {UserID: userID, CompanyID: uuid.New()},
	}})

	// The token itself is valid; passing it via the query string is what
	// gets the connection rejected.
	resp, err := http.Get(f.server.URL + "/ws?token=good")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	// Even alongside a valid Authorization header.
	header := http.Header{}
	header.Set("Authorization", "Bearer good")
	_, dialResp, err := websocket.DefaultDialer.Dial(f.wsURL+"?token=good", header)
	if err == nil {
		t.Fatal("dial with a query-string token must fail")
	}
	if dialResp != nil {
		dialResp.Body.Close()
		if dialResp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("dial status = %d, want 401", dialResp.StatusCode)
		}
	}

	if f.hub.RoomCount(userID) != 0 {
		t.Fatal("rejected connection must not join any room")
	}
}

func TestHandshakeRejectsMissingOrInvalidToken(t *testing.T) {
	t.Parallel()

	f := newHubFixture(t, &stubVerifier{claims: map[string]*TokenClaims{}})

	if _, resp, err := websocket.DefaultDialer.Dial(f.wsURL, nil); err == nil {
		t.Fatal("dial without a token must fail")
	} else if resp != nil {
		resp.Body.Close()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer forged")
	if _, resp, err := websocket.DefaultDialer.Dial(f.wsURL, header); err == nil {
		t.Fatal("dial with an invalid token must fail")
	} else if resp != nil {
		resp.Body.Close()
	}
}

func TestNotificationCreatedReachesOwnRoomOnly(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	f := newHubFixture(t, &stubVerifier{claims: map[string]*TokenClaims{
		"alice": {UserID: alice, CompanyID: companyID},
		"bob":   {UserID: bob, CompanyID: companyID},
	}})

	aliceConn := f.dial(t, "alice")
	bobConn := f.dial(t, "bob")
	waitForRoom(t, f.hub, alice, 1)
	waitForRoom(t, f.hub, bob, 1)

	notification := &model.Notification{
		ID:          uuid.New(),
		RecipientID: alice,
		CompanyID:   companyID,
		Type:        model.TypeTaskCreated,
		Title:       "New task",
	}
	f.bus.Publish(context.Background(), events.TopicNotificationCreated, events.NotificationCreated{
		Notification: notification,
		RecipientID:  alice,
	})

	msg := readMessage(t, aliceConn)
	if msg["event"] != "notification:new" {
		t.Fatalf("event = %v", msg["event"])
	}

	bobConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := bobConn.ReadMessage(); err == nil {
		t.Fatal("bob must not receive alice's notification")
	}
}

func TestNotificationCreatedRecipientMismatchDropped(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	alice := uuid.New()
	f := newHubFixture(t, &stubVerifier{claims: map[string]*TokenClaims{
		"alice": {UserID: alice, CompanyID: companyID},
	}})

	conn := f.dial(t, "alice")
	waitForRoom(t, f.hub, alice, 1)

	// The event claims alice as recipient but the row belongs to someone
	// else; the gateway must drop it.
	f.bus.Publish(context.Background(), events.TopicNotificationCreated, events.NotificationCreated{
		Notification: &model.Notification{ID: uuid.New(), RecipientID: uuid.New(), Title: "x"},
		RecipientID:  alice,
	})

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("mismatched event must not be delivered")
	}
}

func TestOutboundUserEvents(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	alice := uuid.New()
	f := newHubFixture(t, &stubVerifier{claims: map[string]*TokenClaims{
		"alice": {UserID: alice, CompanyID: companyID},
	}})

	conn := f.dial(t, "alice")
	waitForRoom(t, f.hub, alice, 1)

	notificationID := uuid.New()
	f.hub.SendUnreadCountUpdate(alice, 4)
	f.hub.SendNotificationRead(alice, notificationID)
	f.hub.SendNotificationArchived(alice, notificationID)
	f.hub.BroadcastToCompany(companyID, "company:announcement", gin.H{"text": "hi"})

	wantEvents := []string{
		"notification:unread-count",
		"notification:read",
		"notification:archived",
		"company:announcement",
	}
	for _, want := range wantEvents {
		msg := readMessage(t, conn)
		if msg["event"] != want {
			t.Fatalf("event = %v, want %s", msg["event"], want)
		}
	}
}

func TestEmitDuringDisconnectDoesNotPanic(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	alice := uuid.New()
	f := newHubFixture(t, &stubVerifier{claims: map[string]*TokenClaims{
		"alice": {UserID: alice, CompanyID: companyID},
	}})

	f.dial(t, "alice")
	waitForRoom(t, f.hub, alice, 1)

	f.hub.mu.RLock()
	var cl *client
	for member := range f.hub.rooms[userRoom(alice)] {
		cl = member
	}
	f.hub.mu.RUnlock()

	// An emitter's room snapshot can outlive the connection. Close the
	// client first, then push through both paths; neither may panic and a
	// caller like MarkAsRead must still succeed.
	cl.close()
	cl.close() // repeat disconnects are no-ops
	cl.enqueue([]byte(`{}`))
	f.hub.SendUnreadCountUpdate(alice, 1)
	f.hub.SendNotificationRead(alice, uuid.New())
}

func TestDisconnectLeavesRooms(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	alice := uuid.New()
	f := newHubFixture(t, &stubVerifier{claims: map[string]*TokenClaims{
		"alice": {UserID: alice, CompanyID: companyID},
	}})

	conn := f.dial(t, "alice")
	waitForRoom(t, f.hub, alice, 1)

	conn.Close()
	waitForRoom(t, f.hub, alice, 0)
}
