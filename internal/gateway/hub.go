package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"numera.app/backend/internal/events"
)

// TokenClaims is what the gateway needs from a verified bearer token.
type TokenClaims struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
}

// TokenVerifier validates the handshake bearer token.
type TokenVerifier interface {
	Verify(token string) (*TokenClaims, error)
}

type message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub owns all live websocket connections. Each authenticated connection
// joins a per-user room and a per-company room and leaves both explicitly on
// disconnect so churn cannot leak memberships.
type Hub struct {
	verifier TokenVerifier
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub(verifier TokenVerifier) *Hub {
	return &Hub{
		verifier: verifier,
		rooms:    make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Register subscribes the hub to the bus topics it forwards to clients.
func (h *Hub) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicNotificationCreated, h.onNotificationCreated)
}

// HandleWS authenticates and upgrades one connection. The bearer token is
// accepted only from the Authorization header of the upgrade request; a token
// in the query string is a security violation (it would end up in access
// logs) and rejects the connection even when a valid header is also present.
func (h *Hub) HandleWS(c *gin.Context) {
	if c.Query("token") != "" {
		log.Printf("[SECURITY] websocket connect from %s rejected: token passed via query string", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token must be sent via the Authorization header"})
		return
	}

	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WARN] websocket upgrade failed: %v", err)
		return
	}

	cl := newClient(conn, claims.UserID, claims.CompanyID)
	h.join(userRoom(claims.UserID), cl)
	if claims.CompanyID != uuid.Nil {
		h.join(companyRoom(claims.CompanyID), cl)
	}

	go cl.writePump()
	cl.readPump() // blocks until the peer goes away

	h.leave(userRoom(claims.UserID), cl)
	if claims.CompanyID != uuid.Nil {
		h.leave(companyRoom(claims.CompanyID), cl)
	}
	cl.close()
}

// SendUnreadCountUpdate pushes the recipient's current unread total.
func (h *Hub) SendUnreadCountUpdate(userID uuid.UUID, count int64) {
	h.emitToRoom(userRoom(userID), message{Event: "notification:unread-count", Data: gin.H{"count": count}})
}

func (h *Hub) SendNotificationRead(userID, notificationID uuid.UUID) {
	h.emitToRoom(userRoom(userID), message{Event: "notification:read", Data: gin.H{"id": notificationID}})
}

func (h *Hub) SendNotificationArchived(userID, notificationID uuid.UUID) {
	h.emitToRoom(userRoom(userID), message{Event: "notification:archived", Data: gin.H{"id": notificationID}})
}

// BroadcastToCompany emits to every connection of a company. Internal-service
// callers only; nothing inbound from clients can reach it.
func (h *Hub) BroadcastToCompany(companyID uuid.UUID, event string, data any) {
	h.emitToRoom(companyRoom(companyID), message{Event: event, Data: data})
}

func (h *Hub) onNotificationCreated(_ context.Context, _ string, payload any) {
	evt, ok := payload.(events.NotificationCreated)
	if !ok || evt.Notification == nil {
		log.Printf("[WARN] notification.created with unexpected payload %T dropped", payload)
		return
	}

	// Defense in depth: a misrouted event must never reach another user's
	// room, so the declared recipient has to match the notification row.
	if evt.Notification.RecipientID != evt.RecipientID {
		log.Printf("[WARN] notification.created recipient mismatch (event %s, row %s), dropped", evt.RecipientID, evt.Notification.RecipientID)
		return
	}

	h.emitToRoom(userRoom(evt.RecipientID), message{Event: "notification:new", Data: evt.Notification})
}

func (h *Hub) join(room string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]struct{})
	}
	h.rooms[room][cl] = struct{}{}
}

func (h *Hub) leave(room string, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], cl)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) emitToRoom(room string, msg message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WARN] marshal gateway message %s: %v", msg.Event, err)
		return
	}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.rooms[room]))
	for cl := range h.rooms[room] {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	for _, cl := range clients {
		cl.enqueue(payload)
	}
}

// RoomCount reports the live connections in a user's room.
func (h *Hub) RoomCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userRoom(userID)])
}

func userRoom(id uuid.UUID) string    { return "user:" + id.String() }
func companyRoom(id uuid.UUID) string { return "company:" + id.String() }

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
