package events

import (
	"context"
	"log"
	"strings"
	"sync"
)

// Topics carried by the in-process bus. Names are dot-delimited so
// subscribers can use a trailing wildcard, e.g. "notification.*".
const (
	TopicNotificationDispatch  = "notification.dispatch"
	TopicNotificationCreated   = "notification.created"
	TopicNotificationEmailSend = "notification.email.send"
)

// Handler receives every published payload for the topics its subscription
// matches. Handlers for the same pattern run in registration order.
type Handler func(ctx context.Context, topic string, payload any)

type subscription struct {
	pattern string
	handler Handler
}

// Bus is a minimal synchronous publish/subscribe hub. Publish runs matching
// handlers inline in registration order; a panicking handler is recovered and
// logged so one subscriber cannot take down a publisher.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for a topic or a trailing-wildcard pattern
// such as "notification.*".
func (b *Bus) Subscribe(pattern string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{pattern: pattern, handler: h})
}

// Publish delivers payload to every matching subscriber, in the order the
// subscriptions were registered.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) {
	b.mu.RLock()
	matched := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if topicMatches(s.pattern, topic) {
			matched = append(matched, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range matched {
		invoke(ctx, topic, payload, h)
	}
}

func invoke(ctx context.Context, topic string, payload any, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARN] event handler panic on %s: %v", topic, r)
		}
	}()
	h(ctx, topic, payload)
}

func topicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(topic, prefix+".")
	}
	return false
}
