// Package eventbus provides the in-process publish/subscribe channel that
// decouples the triage core from its consumers.
package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

type subscription struct {
	handler ports.EventHandler
	kinds   map[domain.EventKind]bool // empty means all kinds
}

// Bus dispatches events synchronously to subscribers in registration order.
// Synchronous dispatch after the store write commits is what keeps a single
// entity's events from regressing on the wire.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

var _ ports.EventBus = (*Bus)(nil)

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{logger: logger.With("component", "event_bus")}
}

// Subscribe registers a handler for the given kinds; no kinds subscribes to
// everything. Subscriptions are expected at process start, before any
// Publish.
func (b *Bus) Subscribe(handler ports.EventHandler, kinds ...domain.EventKind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kindSet := make(map[domain.EventKind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	b.subs = append(b.subs, subscription{handler: handler, kinds: kindSet})
}

// Publish delivers the event to every matching subscriber before returning.
// A panicking subscriber is contained so one bad consumer cannot take down
// the publishing request.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	b.logger.Debug("publishing event",
		"kind", event.Kind,
		"event_id", event.ID,
		"correlation_id", event.CorrelationID,
	)

	for _, sub := range subs {
		if len(sub.kinds) > 0 && !sub.kinds[event.Kind] {
			continue
		}
		b.dispatch(ctx, sub, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"kind", event.Kind,
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()
	sub.handler(ctx, event)
}
