package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// AvailabilityAnnouncer watches operator status changes and proactively
// tells the AI agent on the single highest-priority waiting call that a
// human is free. The lowest urgency tier is skipped: by policy those calls
// are AI-handled and operator availability alone is no reason to escalate.
type AvailabilityAnnouncer struct {
	queueRepo ports.QueueRepository
	notifier  ports.ContextualNotifier
	logger    *slog.Logger
}

// announcementFloor excludes the lowest urgency tier from proactive
// availability notes.
const announcementFloor = domain.PriorityP2

// NewAvailabilityAnnouncer creates the announcer and registers it on the bus.
func NewAvailabilityAnnouncer(
	queueRepo ports.QueueRepository,
	notifier ports.ContextualNotifier,
	bus ports.EventBus,
	logger *slog.Logger,
) *AvailabilityAnnouncer {
	a := &AvailabilityAnnouncer{
		queueRepo: queueRepo,
		notifier:  notifier,
		logger:    logger.With("component", "availability_announcer"),
	}
	bus.Subscribe(a.handleOperatorStatusChanged, domain.EventOperatorStatusChanged)
	return a
}

func (a *AvailabilityAnnouncer) handleOperatorStatusChanged(ctx context.Context, event domain.Event) {
	payload, ok := event.Payload.(domain.OperatorStatusChangedPayload)
	if !ok || payload.NewStatus != domain.OperatorAvailable {
		return
	}

	head, err := a.queueRepo.Head(ctx, announcementFloor)
	if err != nil {
		if !errors.Is(err, apperrors.ErrQueueEntryNotFound) {
			a.logger.Error("failed to read queue head", "error", err)
		}
		return
	}

	message := fmt.Sprintf(
		"A human operator (%s) is now available to take over this call.",
		payload.Operator.Name,
	)

	// Delivery runs in the background: the backoff waits must never block
	// the status-change request that triggered this.
	go func() {
		if err := a.notifier.Deliver(context.Background(), head.CallID, message); err != nil {
			a.logger.Warn("availability note not delivered",
				"call_id", head.CallID,
				"error", err,
			)
		}
	}()
}
