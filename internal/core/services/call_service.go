package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// CallService owns the thin call aggregate: call start, transcript pushes
// from the AI bridge, and the queue entry each new call spawns.
type CallService struct {
	callRepo ports.CallRepository
	queueSvc ports.QueueService
	bus      ports.EventBus
	logger   *slog.Logger
}

var _ ports.CallService = (*CallService)(nil)

// NewCallService creates a new call service.
func NewCallService(callRepo ports.CallRepository, queueSvc ports.QueueService, bus ports.EventBus, logger *slog.Logger) *CallService {
	return &CallService{
		callRepo: callRepo,
		queueSvc: queueSvc,
		bus:      bus,
		logger:   logger.With("component", "call_service"),
	}
}

// StartCall registers an inbound call and inserts its WAITING queue entry.
// CallStarted is published before QueueEntryAdded so consumers see the call
// before its entry.
func (s *CallService) StartCall(ctx context.Context, params ports.StartCallParams) (*domain.Call, *domain.QueueEntry, error) {
	call := domain.NewCall(params.PhoneNumber, params.ConversationID)
	created, err := s.callRepo.Create(ctx, call)
	if err != nil {
		return nil, nil, err
	}

	entry := domain.NewQueueEntry(created.ID, params.ChiefComplaint, params.ConversationID)

	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventCallStarted,
		created.ID.String(),
		domain.CallStartedPayload{Call: created, Entry: entry},
	))

	// AddToQueue publishes QueueEntryAdded itself.
	createdEntry, err := s.queueSvc.AddToQueue(ctx, entry)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("call started",
		"call_id", created.ID,
		"entry_id", createdEntry.ID,
		"conversation_id", params.ConversationID,
	)
	return created, createdEntry, nil
}

// GetCall fetches one call.
func (s *CallService) GetCall(ctx context.Context, id uuid.UUID) (*domain.Call, error) {
	return s.callRepo.GetByID(ctx, id)
}

// UpdateTranscript persists an AI-bridge transcript push and publishes the
// transcript-updated event routed only to subscribed dashboard viewers.
func (s *CallService) UpdateTranscript(ctx context.Context, callID uuid.UUID, transcript string) (*domain.Call, error) {
	updated, err := s.callRepo.UpdateTranscript(ctx, callID, transcript)
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventTranscriptUpdated,
		updated.ID.String(),
		domain.TranscriptUpdatedPayload{
			CallID:     updated.ID,
			Transcript: transcript,
			LastUpdate: time.Now().UTC(),
		},
	))
	return updated, nil
}
