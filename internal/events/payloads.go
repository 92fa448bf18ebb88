package events

import (
	"github.com/google/uuid"

	"numera.app/backend/internal/model"
)

// NotificationCreated is published once per persisted in-app notification and
// consumed by the real-time gateway.
type NotificationCreated struct {
	Notification *model.Notification `json:"notification"`
	RecipientID  uuid.UUID           `json:"recipient_id"`
}

// EmailSendRequest hands a notification off to the email subsystem.
// NotificationID is nil when the recipient disabled the in-app channel but
// still receives email.
type EmailSendRequest struct {
	NotificationID *uuid.UUID             `json:"notification_id,omitempty"`
	RecipientID    uuid.UUID              `json:"recipient_id"`
	CompanyID      uuid.UUID              `json:"company_id"`
	Type           model.NotificationType `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message,omitempty"`
	Data           map[string]any         `json:"data,omitempty"`
	ActionURL      string                 `json:"action_url,omitempty"`
	ActorID        *uuid.UUID             `json:"actor_id,omitempty"`
}
