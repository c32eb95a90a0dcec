package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// QueueService is the single source of truth for waiting and claimed calls.
// All queue mutation funnels through here; every mutation is one atomic
// store operation followed by a synchronous event publication.
type QueueService struct {
	queueRepo ports.QueueRepository
	bus       ports.EventBus
	logger    *slog.Logger
}

var _ ports.QueueService = (*QueueService)(nil)
var _ ports.QueueSnapshotProvider = (*QueueService)(nil)

// NewQueueService creates a new queue service.
func NewQueueService(queueRepo ports.QueueRepository, bus ports.EventBus, logger *slog.Logger) *QueueService {
	return &QueueService{
		queueRepo: queueRepo,
		bus:       bus,
		logger:    logger.With("component", "queue_service"),
	}
}

// AddToQueue inserts a new WAITING entry and publishes QueueEntryAdded.
// A call with an existing non-terminal entry is rejected.
func (s *QueueService) AddToQueue(ctx context.Context, entry *domain.QueueEntry) (*domain.QueueEntry, error) {
	created, err := s.queueRepo.Create(ctx, entry)
	if err != nil {
		return nil, err
	}

	s.logger.Info("queue entry added",
		"entry_id", created.ID,
		"call_id", created.CallID,
		"priority", created.Priority.String(),
	)

	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventQueueEntryAdded,
		created.CallID.String(),
		domain.QueueEntryAddedPayload{Entry: created},
	))
	return created, nil
}

// GetQueueEntry fetches one entry.
func (s *QueueService) GetQueueEntry(ctx context.Context, entryID uuid.UUID) (*domain.QueueEntry, error) {
	return s.queueRepo.GetByID(ctx, entryID)
}

// ListQueue returns entries ordered by priority (P0 first), then by
// waitingSince. The ordering is the scheduling contract: strict precedence
// across priorities, first-in-first-served within one.
func (s *QueueService) ListQueue(ctx context.Context, params ports.ListQueueParams) ([]*domain.QueueEntry, error) {
	return s.queueRepo.List(ctx, params)
}

// ListActive returns all non-terminal entries; it backs the dashboard
// gateway's initial snapshot.
func (s *QueueService) ListActive(ctx context.Context) ([]*domain.QueueEntry, error) {
	return s.queueRepo.ListActive(ctx)
}

// ClaimQueueEntry atomically claims a WAITING entry for an operator. The
// store serializes concurrent claims with a conditional update; all but the
// first committed writer get ErrAlreadyClaimed.
func (s *QueueService) ClaimQueueEntry(ctx context.Context, entryID, operatorID uuid.UUID) (*domain.QueueEntry, error) {
	claimed, err := s.queueRepo.Claim(ctx, entryID, operatorID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.logger.Info("queue entry claimed",
		"entry_id", claimed.ID,
		"call_id", claimed.CallID,
		"operator_id", operatorID,
	)

	correlation := claimed.CallID.String()
	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventQueueEntryStatusChanged,
		correlation,
		domain.QueueStatusChangedPayload{
			Entry:     claimed,
			OldStatus: domain.QueueStatusWaiting,
			NewStatus: domain.QueueStatusClaimed,
		},
	))
	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventCallClaimed,
		correlation,
		domain.CallClaimedPayload{Entry: claimed, OperatorID: operatorID},
	))
	return claimed, nil
}

// UpdateQueueStatus advances an entry's lifecycle and publishes the change.
// Claims go through ClaimQueueEntry, never here.
func (s *QueueService) UpdateQueueStatus(ctx context.Context, entryID uuid.UUID, status domain.QueueStatus) (*domain.QueueEntry, error) {
	if !domain.ValidQueueStatus(status) {
		return nil, apperrors.ErrInvalidQueueStatus
	}
	if status == domain.QueueStatusClaimed {
		return nil, apperrors.ErrInvalidStatusTransition
	}

	entry, err := s.queueRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	oldStatus := entry.Status
	if err := entry.UpdateStatus(status); err != nil {
		return nil, err
	}

	// The conditional update guards against a concurrent transition that
	// landed between our read and this write.
	updated, err := s.queueRepo.SetStatus(ctx, entryID, oldStatus, status)
	if err != nil {
		return nil, err
	}

	s.logger.Info("queue entry status changed",
		"entry_id", updated.ID,
		"old_status", oldStatus,
		"new_status", status,
	)

	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventQueueEntryStatusChanged,
		updated.CallID.String(),
		domain.QueueStatusChangedPayload{
			Entry:     updated,
			OldStatus: oldStatus,
			NewStatus: status,
		},
	))
	return updated, nil
}

// UpdateTriage applies refined triage output: priority and the derived
// clinical summary fields.
func (s *QueueService) UpdateTriage(ctx context.Context, params ports.UpdateTriageParams) (*domain.QueueEntry, error) {
	entry, err := s.queueRepo.GetByID(ctx, params.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.Status.IsTerminal() {
		return nil, apperrors.ErrInvalidStatusTransition
	}

	if params.Priority != nil {
		entry.Priority = *params.Priority
	}
	if params.ChiefComplaint != nil {
		entry.ChiefComplaint = *params.ChiefComplaint
	}
	if params.Summary != nil {
		entry.Summary = *params.Summary
	}

	updated, err := s.queueRepo.UpdateTriage(ctx, entry)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventQueueEntryStatusChanged,
		updated.CallID.String(),
		domain.QueueStatusChangedPayload{
			Entry:     updated,
			OldStatus: updated.Status,
			NewStatus: updated.Status,
		},
	))
	return updated, nil
}

// GetQueueStats aggregates counts by status and the mean wait time of
// currently waiting entries.
func (s *QueueService) GetQueueStats(ctx context.Context) (*domain.QueueStats, error) {
	return s.queueRepo.Stats(ctx)
}
