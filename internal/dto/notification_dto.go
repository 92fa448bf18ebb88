package dto

import "numera.app/backend/internal/model"

// UpdateSettingsRequest partially updates one or all module settings rows.
// Omitted fields keep their current value.
type UpdateSettingsRequest struct {
	InAppEnabled           *bool `json:"in_app_enabled"`
	EmailEnabled           *bool `json:"email_enabled"`
	ReceiveOnCreate        *bool `json:"receive_on_create"`
	ReceiveOnUpdate        *bool `json:"receive_on_update"`
	ReceiveOnDelete        *bool `json:"receive_on_delete"`
	ReceiveOnTaskCompleted *bool `json:"receive_on_task_completed"`
	ReceiveOnTaskOverdue   *bool `json:"receive_on_task_overdue"`

	TypePreferences map[model.NotificationType]model.ChannelPreference `json:"type_preferences"`
}

// TestNotificationRequest lets an admin push a notification through the full
// pipeline to every active user of a company.
type TestNotificationRequest struct {
	Type      model.NotificationType `json:"type" binding:"required"`
	Title     string                 `json:"title" binding:"required,max=255"`
	Message   string                 `json:"message" binding:"max=2000"`
	ActionURL string                 `json:"action_url" binding:"omitempty,max=500"`
	CompanyID string                 `json:"company_id" binding:"required,uuid"`

	// ExcludeSelf leaves the requesting admin out of the fan-out.
	ExcludeSelf bool `json:"exclude_self"`
}
