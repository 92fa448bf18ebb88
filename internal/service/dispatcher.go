package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"numera.app/backend/internal/events"
	"numera.app/backend/internal/model"
	"numera.app/backend/internal/repository"
)

// DispatchNotificationPayload describes one fan-out request. RecipientIDs is
// the candidate list before tenant validation; duplicates are tolerated.
type DispatchNotificationPayload struct {
	Type         model.NotificationType
	RecipientIDs []uuid.UUID
	CompanyID    uuid.UUID
	Title        string
	Message      string
	Data         map[string]any
	ActionURL    string
	ActorID      *uuid.UUID
	IsBatch      bool
	ItemCount    int
}

// Dispatcher is the fan-out core. Both entry points are fire-and-forget:
// failures are logged and never reach the triggering business operation.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload DispatchNotificationPayload)
	// DispatchToCompanyUsers fans out to every active user of the company,
	// optionally excluding the acting user.
	DispatchToCompanyUsers(ctx context.Context, companyID uuid.UUID, payload DispatchNotificationPayload, excludeActorID *uuid.UUID)
}

type dispatcher struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	settings      SettingsService
	validator     RecipientValidator
	bus           *events.Bus
}

func NewDispatcher(
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	settings SettingsService,
	validator RecipientValidator,
	bus *events.Bus,
) Dispatcher {
	return &dispatcher{
		notifications: notifications,
		users:         users,
		settings:      settings,
		validator:     validator,
		bus:           bus,
	}
}

func (d *dispatcher) Dispatch(ctx context.Context, payload DispatchNotificationPayload) {
	moduleSlug := model.ModuleForType(payload.Type)
	if !model.IsValidModuleSlug(moduleSlug) {
		log.Printf("[WARN] notification type %s maps to unknown module %q, coercing to %s", payload.Type, moduleSlug, model.ModuleSystem)
		moduleSlug = model.ModuleSystem
	}

	recipients, err := d.validator.Validate(ctx, payload.RecipientIDs, payload.CompanyID)
	if err != nil {
		log.Printf("[WARN] dispatch %s aborted, recipient validation failed: %v", payload.Type, err)
		return
	}
	if len(recipients) == 0 {
		return
	}

	// One settings query for the whole recipient set. If the batch read
	// fails the loop falls back to per-recipient lookups so one recipient's
	// failure stays its own.
	verdicts, err := d.settings.ChannelsForRecipients(ctx, recipients, payload.CompanyID, moduleSlug, payload.Type)
	if err != nil {
		log.Printf("[WARN] dispatch %s: batch settings lookup failed, falling back to per-recipient reads: %v", payload.Type, err)
		verdicts = nil
	}

	for _, recipientID := range recipients {
		d.dispatchToRecipient(ctx, payload, moduleSlug, recipientID, verdicts)
	}
}

func (d *dispatcher) dispatchToRecipient(
	ctx context.Context,
	payload DispatchNotificationPayload,
	moduleSlug string,
	recipientID uuid.UUID,
	verdicts map[uuid.UUID]Channels,
) {
	channels, ok := verdicts[recipientID]
	if !ok {
		var err error
		channels, err = d.settings.ChannelsFor(ctx, recipientID, payload.CompanyID, moduleSlug, payload.Type)
		if err != nil {
			log.Printf("[WARN] dispatch %s: settings lookup for recipient %s failed, skipping: %v", payload.Type, recipientID, err)
			return
		}
	}

	// In-app creation happens before the email decision so the email
	// payload can carry the stored notification's ID.
	var notificationID *uuid.UUID
	if channels.InApp {
		itemCount := payload.ItemCount
		if !payload.IsBatch || itemCount < 1 {
			itemCount = max(itemCount, 1)
		}

		notification := &model.Notification{
			RecipientID: recipientID,
			CompanyID:   payload.CompanyID,
			Type:        payload.Type,
			ModuleSlug:  moduleSlug,
			Title:       payload.Title,
			Message:     payload.Message,
			Data:        payload.Data,
			ActionURL:   payload.ActionURL,
			ActorID:     payload.ActorID,
			IsBatch:     payload.IsBatch,
			ItemCount:   itemCount,
		}

		if err := d.notifications.Create(ctx, notification); err != nil {
			log.Printf("[WARN] dispatch %s: create notification for recipient %s failed: %v", payload.Type, recipientID, err)
		} else {
			notificationID = &notification.ID
			d.bus.Publish(ctx, events.TopicNotificationCreated, events.NotificationCreated{
				Notification: notification,
				RecipientID:  recipientID,
			})
		}
	}

	if channels.Email {
		d.bus.Publish(ctx, events.TopicNotificationEmailSend, events.EmailSendRequest{
			NotificationID: notificationID,
			RecipientID:    recipientID,
			CompanyID:      payload.CompanyID,
			Type:           payload.Type,
			Title:          payload.Title,
			Message:        payload.Message,
			Data:           payload.Data,
			ActionURL:      payload.ActionURL,
			ActorID:        payload.ActorID,
		})
	}
}

func (d *dispatcher) DispatchToCompanyUsers(ctx context.Context, companyID uuid.UUID, payload DispatchNotificationPayload, excludeActorID *uuid.UUID) {
	active := true
	users, err := d.users.Find(ctx, repository.UserFilter{CompanyID: &companyID, IsActive: &active})
	if err != nil {
		log.Printf("[WARN] company dispatch %s aborted, user query failed: %v", payload.Type, err)
		return
	}

	recipients := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		if excludeActorID != nil && u.ID == *excludeActorID {
			continue
		}
		recipients = append(recipients, u.ID)
	}

	payload.RecipientIDs = recipients
	payload.CompanyID = companyID
	d.Dispatch(ctx, payload)
}
