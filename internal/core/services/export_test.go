package services

import (
	"context"
	"time"
)

// WithSleep replaces the notifier's wait function so tests can observe the
// retry schedule without real delays.
func (n *ContextualNotifier) WithSleep(fn func(ctx context.Context, d time.Duration) error) *ContextualNotifier {
	n.sleep = fn
	return n
}
