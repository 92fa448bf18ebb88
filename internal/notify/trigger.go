package notify

import (
	"context"
	"log"

	"numera.app/backend/internal/events"
	"numera.app/backend/internal/model"
)

// Trigger publishes dispatch intents after business operations succeed. The
// publish is detached from the business request: the caller's response never
// waits on fan-out, and a cancelled request context does not cancel it.
type Trigger struct {
	bus *events.Bus
}

func NewTrigger(bus *events.Bus) *Trigger {
	return &Trigger{bus: bus}
}

// Wrap decorates a business function so a successful return publishes a
// dispatch intent for its result. Errors pass through untouched and suppress
// the notification.
func Wrap[T any](t *Trigger, opts Options, fn func(ctx context.Context, actor *model.User) (T, error)) func(ctx context.Context, actor *model.User) (T, error) {
	return func(ctx context.Context, actor *model.User) (T, error) {
		result, err := fn(ctx, actor)
		if err != nil {
			return result, err
		}
		t.Emit(ctx, opts, actor, result)
		return result, nil
	}
}

// Emit publishes the dispatch intent directly. It exists for call sites that
// cannot use Wrap (methods producing multiple results, cron jobs).
func (t *Trigger) Emit(ctx context.Context, opts Options, actor *model.User, result any) {
	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[WARN] notification trigger panic for type %s: %v", opts.Type, r)
			}
		}()
		t.bus.Publish(detached, events.TopicNotificationDispatch, DispatchIntent{
			Options: opts,
			Result:  result,
			Actor:   actor,
			IsBatch: opts.Batch,
		})
	}()
}
