package services_test

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingBus captures published events for assertions. Subscriptions are
// dispatched synchronously like the real bus.
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
	subs   []struct {
		handler ports.EventHandler
		kinds   map[domain.EventKind]bool
	}
}

var _ ports.EventBus = (*recordingBus)(nil)

func newRecordingBus() *recordingBus {
	return &recordingBus{}
}

func (b *recordingBus) Subscribe(handler ports.EventHandler, kinds ...domain.EventKind) {
	kindSet := make(map[domain.EventKind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	b.subs = append(b.subs, struct {
		handler ports.EventHandler
		kinds   map[domain.EventKind]bool
	}{handler, kindSet})
}

func (b *recordingBus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	b.events = append(b.events, event)
	subs := b.subs
	b.mu.Unlock()

	for _, sub := range subs {
		if len(sub.kinds) > 0 && !sub.kinds[event.Kind] {
			continue
		}
		sub.handler(ctx, event)
	}
}

func (b *recordingBus) published() []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Event, len(b.events))
	copy(out, b.events)
	return out
}

func (b *recordingBus) kinds() []domain.EventKind {
	var out []domain.EventKind
	for _, ev := range b.published() {
		out = append(out, ev.Kind)
	}
	return out
}
