package notify

import (
	"github.com/google/uuid"

	"numera.app/backend/internal/model"
)

// Strategy names the built-in recipient resolution strategies.
type Strategy string

const (
	StrategyActor                   Strategy = "actor"
	StrategyAssignee                Strategy = "assignee"
	StrategyCompanyUsers            Strategy = "companyUsers"
	StrategyCompanyUsersExceptActor Strategy = "companyUsersExceptActor"
)

// ActorContext is the slice of the acting user a custom resolver sees.
// CompanyID is the effective company, already resolved for admins.
type ActorContext struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

// RecipientSpec selects recipients for a notification. When Custom is set it
// takes precedence over Strategy.
type RecipientSpec struct {
	Strategy Strategy
	Custom   func(result any, actor ActorContext) []uuid.UUID
}

// Options declares, at a business operation's call site, what to notify on
// success. The operation itself stays free of notification code.
type Options struct {
	Type model.NotificationType

	// Templates support {{field}}, {{object.field}} and {{actor.field}}
	// placeholders resolved against the operation result and the actor.
	TitleTemplate     string
	MessageTemplate   string
	ActionURLTemplate string

	Recipients RecipientSpec

	// Data extracts a structured payload from the result. Ignored for
	// batch notifications, where Items supplies the payload.
	Data func(result any) map[string]any

	// Batch aggregates an itemized result ("12 tasks updated"). Items
	// extracts the aggregated items; their count becomes ItemCount.
	Batch bool
	Items func(result any) []any
}

// DispatchIntent is the payload of the notification.dispatch event,
// published by the trigger and consumed by the Listener.
type DispatchIntent struct {
	Options Options
	Result  any
	Actor   *model.User
	IsBatch bool
}
