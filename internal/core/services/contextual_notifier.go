package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// NotifierConfig bounds the retry schedule.
type NotifierConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultNotifierConfig returns the production retry schedule.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// ContextualNotifier delivers best-effort contextual updates into an
// in-flight AI conversation session. The session socket attaches
// concurrently with call start and there is no shared synchronization
// primitive between the two, so a false result right after call start is a
// known race; polling with bounded exponential backoff is the mitigation
// (attach time is unbounded but typically sub-second).
type ContextualNotifier struct {
	gateway ports.ConversationGateway
	cfg     NotifierConfig
	logger  *slog.Logger

	// sleep is swapped in tests to observe the schedule without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ ports.ContextualNotifier = (*ContextualNotifier)(nil)

// NewContextualNotifier creates a notifier over the AI-bridge gateway.
func NewContextualNotifier(gateway ports.ConversationGateway, cfg NotifierConfig, logger *slog.Logger) *ContextualNotifier {
	return &ContextualNotifier{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger.With("component", "contextual_notifier"),
		sleep:   sleepCtx,
	}
}

// Deliver attempts delivery, retrying with delay = min(initial * 2^(n-1),
// max) up to the attempt ceiling. Exhaustion is non-fatal: the caller gets
// ErrDeliveryFailed and continues without the notification.
func (n *ContextualNotifier) Deliver(ctx context.Context, callID uuid.UUID, message string) error {
	for attempt := 1; attempt <= n.cfg.MaxAttempts; attempt++ {
		delivered, err := n.gateway.SendContextualUpdate(ctx, callID, message)
		if err != nil {
			return fmt.Errorf("contextual update attempt %d: %w", attempt, err)
		}
		if delivered {
			if attempt > 1 {
				n.logger.Info("contextual update delivered after retry",
					"call_id", callID,
					"attempts", attempt,
				)
			}
			return nil
		}

		if attempt == n.cfg.MaxAttempts {
			break
		}
		if err := n.sleep(ctx, n.backoff(attempt)); err != nil {
			return err
		}
	}

	n.logger.Warn("contextual update delivery exhausted",
		"call_id", callID,
		"attempts", n.cfg.MaxAttempts,
	)
	return apperrors.ErrDeliveryFailed
}

// backoff returns the delay after the given 1-based attempt.
func (n *ContextualNotifier) backoff(attempt int) time.Duration {
	delay := n.cfg.InitialDelay << (attempt - 1)
	if delay > n.cfg.MaxDelay || delay <= 0 {
		return n.cfg.MaxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
