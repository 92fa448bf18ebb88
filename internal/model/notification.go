package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	TypeTaskCreated   NotificationType = "task_created"
	TypeTaskUpdated   NotificationType = "task_updated"
	TypeTaskDeleted   NotificationType = "task_deleted"
	TypeTaskAssigned  NotificationType = "task_assigned"
	TypeTaskCompleted NotificationType = "task_completed"
	TypeTaskOverdue   NotificationType = "task_overdue"

	TypeClientCreated NotificationType = "client_created"
	TypeClientUpdated NotificationType = "client_updated"
	TypeClientDeleted NotificationType = "client_deleted"

	TypeClientSuspensionCreated NotificationType = "client_suspension_created"
	TypeClientSuspensionUpdated NotificationType = "client_suspension_updated"
	TypeClientSuspensionDeleted NotificationType = "client_suspension_deleted"

	TypeClientReliefCreated NotificationType = "client_relief_created"
	TypeClientReliefUpdated NotificationType = "client_relief_updated"
	TypeClientReliefDeleted NotificationType = "client_relief_deleted"

	// Offers belong to a client, so offer events ride under the clients module.
	TypeOfferCreated  NotificationType = "offer_created"
	TypeOfferAccepted NotificationType = "offer_accepted"
	TypeOfferDeclined NotificationType = "offer_declined"

	TypeTimeEntryCreated NotificationType = "time_entry_created"
	TypeTimeEntryUpdated NotificationType = "time_entry_updated"
	TypeTimeEntryDeleted NotificationType = "time_entry_deleted"

	TypeEmailReceived NotificationType = "email_received"

	TypeAgentSuggestion NotificationType = "agent_suggestion"

	TypeUserJoinedCompany NotificationType = "user_joined_company"
	TypeCompanyUpdated    NotificationType = "company_updated"

	TypeSystemAnnouncement NotificationType = "system_announcement"
	TypeTestNotification   NotificationType = "test_notification"
)

const (
	ModuleTasks        = "tasks"
	ModuleClients      = "clients"
	ModuleTimeTracking = "time-tracking"
	ModuleEmailClient  = "email-client"
	ModuleAIAgent      = "ai-agent"
	ModuleCompany      = "company"
	ModuleSystem       = "system"
)

// AllModuleSlugs returns the fixed module allow-list. Anything outside this
// set is coerced to ModuleSystem before persistence.
func AllModuleSlugs() []string {
	return []string{
		ModuleTasks,
		ModuleClients,
		ModuleTimeTracking,
		ModuleEmailClient,
		ModuleAIAgent,
		ModuleCompany,
		ModuleSystem,
	}
}

func IsValidModuleSlug(slug string) bool {
	switch slug {
	case ModuleTasks, ModuleClients, ModuleTimeTracking, ModuleEmailClient,
		ModuleAIAgent, ModuleCompany, ModuleSystem:
		return true
	}
	return false
}

var typeModules = map[NotificationType]string{
	TypeTaskCreated:   ModuleTasks,
	TypeTaskUpdated:   ModuleTasks,
	TypeTaskDeleted:   ModuleTasks,
	TypeTaskAssigned:  ModuleTasks,
	TypeTaskCompleted: ModuleTasks,
	TypeTaskOverdue:   ModuleTasks,

	TypeClientCreated: ModuleClients,
	TypeClientUpdated: ModuleClients,
	TypeClientDeleted: ModuleClients,

	TypeClientSuspensionCreated: ModuleClients,
	TypeClientSuspensionUpdated: ModuleClients,
	TypeClientSuspensionDeleted: ModuleClients,

	TypeClientReliefCreated: ModuleClients,
	TypeClientReliefUpdated: ModuleClients,
	TypeClientReliefDeleted: ModuleClients,

	TypeOfferCreated:  ModuleClients,
	TypeOfferAccepted: ModuleClients,
	TypeOfferDeclined: ModuleClients,

	TypeTimeEntryCreated: ModuleTimeTracking,
	TypeTimeEntryUpdated: ModuleTimeTracking,
	TypeTimeEntryDeleted: ModuleTimeTracking,

	TypeEmailReceived: ModuleEmailClient,

	TypeAgentSuggestion: ModuleAIAgent,

	TypeUserJoinedCompany: ModuleCompany,
	TypeCompanyUpdated:    ModuleCompany,

	TypeSystemAnnouncement: ModuleSystem,
	TypeTestNotification:   ModuleSystem,
}

// ModuleForType maps a notification type to its module slug. Unknown types
// fall back to the system module.
func ModuleForType(t NotificationType) string {
	if m, ok := typeModules[t]; ok {
		return m
	}
	return ModuleSystem
}

// EventCategory groups types into the coarse buckets the per-module settings
// flags gate on.
type EventCategory string

const (
	CategoryCreate        EventCategory = "create"
	CategoryUpdate        EventCategory = "update"
	CategoryDelete        EventCategory = "delete"
	CategoryTaskCompleted EventCategory = "task_completed"
	CategoryTaskOverdue   EventCategory = "task_overdue"
	CategoryOther         EventCategory = "other"
)

var typeCategories = map[NotificationType]EventCategory{
	TypeTaskCreated:             CategoryCreate,
	TypeTaskUpdated:             CategoryUpdate,
	TypeTaskDeleted:             CategoryDelete,
	TypeTaskCompleted:           CategoryTaskCompleted,
	TypeTaskOverdue:             CategoryTaskOverdue,
	TypeClientCreated:           CategoryCreate,
	TypeClientUpdated:           CategoryUpdate,
	TypeClientDeleted:           CategoryDelete,
	TypeClientSuspensionCreated: CategoryCreate,
	TypeClientSuspensionUpdated: CategoryUpdate,
	TypeClientSuspensionDeleted: CategoryDelete,
	TypeClientReliefCreated:     CategoryCreate,
	TypeClientReliefUpdated:     CategoryUpdate,
	TypeClientReliefDeleted:     CategoryDelete,
	TypeTimeEntryCreated:        CategoryCreate,
	TypeTimeEntryUpdated:        CategoryUpdate,
	TypeTimeEntryDeleted:        CategoryDelete,
}

// CategoryForType classifies a type for category gating. Types without an
// explicit category (assignments, emails, announcements) are CategoryOther
// and are never blocked by the category flags.
func CategoryForType(t NotificationType) EventCategory {
	if c, ok := typeCategories[t]; ok {
		return c
	}
	return CategoryOther
}

type Notification struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID        `gorm:"type:uuid;not null;index:idx_notifications_recipient" json:"recipient_id"`
	CompanyID   uuid.UUID        `gorm:"type:uuid;not null;index" json:"company_id"`
	Type        NotificationType `gorm:"size:50;not null" json:"type"`
	ModuleSlug  string           `gorm:"size:30;not null" json:"module_slug"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Message     string           `gorm:"type:text" json:"message,omitempty"`
	Data        map[string]any   `gorm:"serializer:json" json:"data,omitempty"`
	ActionURL   string           `gorm:"size:500" json:"action_url,omitempty"`
	ActorID     *uuid.UUID       `gorm:"type:uuid" json:"actor_id,omitempty"`

	IsRead     bool       `gorm:"default:false;index:idx_notifications_recipient" json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	IsArchived bool       `gorm:"default:false" json:"is_archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	EmailSent   bool       `gorm:"default:false" json:"email_sent"`
	EmailSentAt *time.Time `json:"email_sent_at,omitempty"`

	IsBatch   bool `gorm:"default:false" json:"is_batch"`
	ItemCount int  `gorm:"default:1" json:"item_count"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.ItemCount < 1 {
		n.ItemCount = 1
	}
	return nil
}
