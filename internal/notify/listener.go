package notify

import (
	"context"
	"log"

	"github.com/google/uuid"

	"numera.app/backend/internal/events"
	"numera.app/backend/internal/model"
	"numera.app/backend/internal/repository"
	"numera.app/backend/internal/service"
)

// Listener consumes notification.dispatch intents and drives the dispatcher.
// Everything here is best-effort: any failure is logged and swallowed so it
// can never surface into the business transaction that triggered it.
type Listener struct {
	dispatcher service.Dispatcher
	resolver   *Resolver
	companies  repository.CompanyRepository
}

func NewListener(dispatcher service.Dispatcher, resolver *Resolver, companies repository.CompanyRepository) *Listener {
	return &Listener{
		dispatcher: dispatcher,
		resolver:   resolver,
		companies:  companies,
	}
}

func (l *Listener) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicNotificationDispatch, l.handle)
}

func (l *Listener) handle(ctx context.Context, _ string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] dispatch intent handler panic: %v", r)
		}
	}()

	intent, ok := payload.(DispatchIntent)
	if !ok {
		log.Printf("[WARN] dispatch intent with unexpected payload type %T dropped", payload)
		return
	}

	companyID, err := l.effectiveCompany(ctx, intent.Actor)
	if err != nil {
		log.Printf("[WARN] dispatch intent %s abandoned: %v", intent.Options.Type, err)
		return
	}

	opts := intent.Options
	actorCtx := ActorContext{ID: intent.Actor.ID, CompanyID: companyID}

	title := SanitizeText(Interpolate(opts.TitleTemplate, intent.Result, intent.Actor))
	message := SanitizeText(Interpolate(opts.MessageTemplate, intent.Result, intent.Actor))
	actionURL := Interpolate(opts.ActionURLTemplate, intent.Result, intent.Actor)

	recipients, err := l.resolver.Resolve(ctx, opts.Recipients, intent.Result, actorCtx)
	if err != nil {
		log.Printf("[WARN] dispatch intent %s abandoned, recipient resolution failed: %v", opts.Type, err)
		return
	}

	var data map[string]any
	itemCount := 1
	if intent.IsBatch {
		var items []any
		if opts.Items != nil {
			items = opts.Items(intent.Result)
		}
		itemCount = len(items)
		if itemCount == 0 {
			itemCount = 1
		}
		data = map[string]any{"items": items}
	} else if opts.Data != nil {
		data = opts.Data(intent.Result)
	}

	actorID := intent.Actor.ID
	l.dispatcher.Dispatch(ctx, service.DispatchNotificationPayload{
		Type:         opts.Type,
		RecipientIDs: recipients,
		CompanyID:    companyID,
		Title:        title,
		Message:      message,
		Data:         data,
		ActionURL:    actionURL,
		ActorID:      &actorID,
		IsBatch:      intent.IsBatch,
		ItemCount:    itemCount,
	})
}

// effectiveCompany resolves which company scopes the dispatch. Admins without
// a company of their own fall back to the system company; if that lookup
// fails the dispatch is abandoned rather than guessed.
func (l *Listener) effectiveCompany(ctx context.Context, actor *model.User) (uuid.UUID, error) {
	if actor == nil {
		return uuid.Nil, errNoActor
	}
	if actor.CompanyID != nil {
		return *actor.CompanyID, nil
	}
	if actor.Role == model.RoleAdmin {
		return l.companies.GetSystemCompanyID(ctx)
	}
	return uuid.Nil, errNoCompany
}
