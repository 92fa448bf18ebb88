package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChannelPreference is a per-type override of the coarse channel flags.
// A nil entry means "no override"; an explicit false always wins.
type ChannelPreference struct {
	InApp *bool `json:"in_app,omitempty"`
	Email *bool `json:"email,omitempty"`
}

// NotificationSettings holds one row per (user, company, module). A missing
// row means everything is enabled; rows are created lazily with these
// defaults on first read through the settings endpoints.
type NotificationSettings struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_settings_user_company_module" json:"user_id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_settings_user_company_module" json:"company_id"`
	ModuleSlug string   `gorm:"size:30;not null;uniqueIndex:idx_settings_user_company_module" json:"module_slug"`

	InAppEnabled bool `gorm:"default:true" json:"in_app_enabled"`
	EmailEnabled bool `gorm:"default:true" json:"email_enabled"`

	ReceiveOnCreate        bool `gorm:"default:true" json:"receive_on_create"`
	ReceiveOnUpdate        bool `gorm:"default:true" json:"receive_on_update"`
	ReceiveOnDelete        bool `gorm:"default:true" json:"receive_on_delete"`
	ReceiveOnTaskCompleted bool `gorm:"default:true" json:"receive_on_task_completed"`
	ReceiveOnTaskOverdue   bool `gorm:"default:true" json:"receive_on_task_overdue"`

	TypePreferences map[NotificationType]ChannelPreference `gorm:"serializer:json" json:"type_preferences,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *NotificationSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// DefaultNotificationSettings returns the permissive row lazy creation
// writes: every channel and category on, no per-type overrides.
func DefaultNotificationSettings(userID, companyID uuid.UUID, moduleSlug string) *NotificationSettings {
	return &NotificationSettings{
		UserID:                 userID,
		CompanyID:              companyID,
		ModuleSlug:             moduleSlug,
		InAppEnabled:           true,
		EmailEnabled:           true,
		ReceiveOnCreate:        true,
		ReceiveOnUpdate:        true,
		ReceiveOnDelete:        true,
		ReceiveOnTaskCompleted: true,
		ReceiveOnTaskOverdue:   true,
	}
}
