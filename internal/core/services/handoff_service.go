package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// HandoffService drives the AI-to-human escalation state machine.
//
// The two acceptance paths are deliberately asymmetric: AI-initiated
// handoffs go through an explicit accept step (several operators may be
// notified, only one may win), while operator-initiated takeover completes
// in a single call so a live emergency never waits on a round trip through
// the AI layer.
type HandoffService struct {
	handoffRepo  ports.HandoffRepository
	callRepo     ports.CallRepository
	operatorRepo ports.OperatorRepository
	bus          ports.EventBus
	logger       *slog.Logger
}

var _ ports.HandoffService = (*HandoffService)(nil)

// NewHandoffService creates a new handoff coordinator.
func NewHandoffService(
	handoffRepo ports.HandoffRepository,
	callRepo ports.CallRepository,
	operatorRepo ports.OperatorRepository,
	bus ports.EventBus,
	logger *slog.Logger,
) *HandoffService {
	return &HandoffService{
		handoffRepo:  handoffRepo,
		callRepo:     callRepo,
		operatorRepo: operatorRepo,
		bus:          bus,
		logger:       logger.With("component", "handoff_service"),
	}
}

// RequestHandoff creates a handoff in REQUESTED state. When no operator is
// pre-assigned the first AVAILABLE one is suggested; none being free is not
// fatal; the handoff stays queued for a future availability trigger.
func (s *HandoffService) RequestHandoff(ctx context.Context, params ports.RequestHandoffParams) (*domain.Handoff, error) {
	call, err := s.callRepo.GetByID(ctx, params.CallID)
	if err != nil {
		return nil, err
	}
	if call.IsCompleted() {
		return nil, apperrors.ErrCallAlreadyCompleted
	}

	toOperator := params.ToOperatorID
	if toOperator == nil {
		available, err := s.operatorRepo.FirstAvailable(ctx)
		switch {
		case err == nil:
			toOperator = &available.ID
		case errors.Is(err, apperrors.ErrOperatorNotFound):
			// Leave unassigned; an OperatorStatusChanged(AVAILABLE)
			// event will pick it up later.
		default:
			return nil, err
		}
	}

	handoff := domain.NewHandoff(domain.HandoffParams{
		CallID:         params.CallID,
		FromAgent:      params.FromAgent,
		ToOperatorID:   toOperator,
		Reason:         params.Reason,
		ConversationID: params.ConversationID,
		Transcript:     params.Transcript,
		AIContext:      params.AIContext,
		PatientSummary: params.PatientSummary,
	})

	created, err := s.handoffRepo.Create(ctx, handoff)
	if err != nil {
		return nil, err
	}

	s.logger.Info("handoff requested",
		"handoff_id", created.ID,
		"call_id", created.CallID,
		"from_agent", created.FromAgent,
		"assigned", toOperator != nil,
	)

	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventHandoffRequested,
		created.CallID.String(),
		domain.HandoffRequestedPayload{Handoff: created},
	))
	return created, nil
}

// AcceptHandoff transitions REQUESTED -> ACCEPTED for the operator and
// marks the owning call ESCALATED.
func (s *HandoffService) AcceptHandoff(ctx context.Context, handoffID, operatorID uuid.UUID) (*domain.Handoff, error) {
	handoff, err := s.handoffRepo.GetByID(ctx, handoffID)
	if err != nil {
		return nil, err
	}

	if err := handoff.Accept(operatorID); err != nil {
		return nil, err
	}

	updated, err := s.handoffRepo.Update(ctx, handoff)
	if err != nil {
		return nil, err
	}

	if _, err := s.callRepo.SetStatus(ctx, updated.CallID, domain.CallEscalated); err != nil {
		s.logger.Error("failed to mark call escalated",
			"call_id", updated.CallID,
			"handoff_id", updated.ID,
			"error", err,
		)
	}

	s.logger.Info("handoff accepted",
		"handoff_id", updated.ID,
		"call_id", updated.CallID,
		"operator_id", operatorID,
	)

	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventHandoffAccepted,
		updated.CallID.String(),
		domain.HandoffAcceptedPayload{Handoff: updated},
	))
	return updated, nil
}

// RejectHandoff transitions REQUESTED -> REJECTED.
func (s *HandoffService) RejectHandoff(ctx context.Context, handoffID uuid.UUID, reason string) (*domain.Handoff, error) {
	handoff, err := s.handoffRepo.GetByID(ctx, handoffID)
	if err != nil {
		return nil, err
	}

	if err := handoff.Reject(reason); err != nil {
		return nil, err
	}

	updated, err := s.handoffRepo.Update(ctx, handoff)
	if err != nil {
		return nil, err
	}

	s.logger.Info("handoff rejected", "handoff_id", updated.ID, "reason", reason)
	return updated, nil
}

// CompleteHandoff closes an accepted handoff, recording completion time and
// duration since acceptance.
func (s *HandoffService) CompleteHandoff(ctx context.Context, handoffID uuid.UUID) (*domain.Handoff, error) {
	handoff, err := s.handoffRepo.GetByID(ctx, handoffID)
	if err != nil {
		return nil, err
	}

	if err := handoff.Complete(); err != nil {
		return nil, err
	}

	updated, err := s.handoffRepo.Update(ctx, handoff)
	if err != nil {
		return nil, err
	}

	s.logger.Info("handoff completed",
		"handoff_id", updated.ID,
		"duration_seconds", updated.HandoffDuration,
	)
	return updated, nil
}

// TakeControl is the fast path for an operator grabbing a live call from
// the dashboard: it persists a handoff already in ACCEPTED state, marks the
// call ESCALATED, and returns the conversation handle for bridging.
func (s *HandoffService) TakeControl(ctx context.Context, params ports.TakeControlParams) (*ports.TakeControlResult, error) {
	call, err := s.callRepo.GetByID(ctx, params.CallID)
	if err != nil {
		return nil, err
	}
	if call.IsCompleted() {
		return nil, apperrors.ErrCallAlreadyCompleted
	}

	handoff := domain.NewManualTakeover(params.CallID, params.OperatorID, params.Reason, call.ConversationID)
	created, err := s.handoffRepo.Create(ctx, handoff)
	if err != nil {
		return nil, err
	}

	if _, err := s.callRepo.SetStatus(ctx, call.ID, domain.CallEscalated); err != nil {
		s.logger.Error("failed to mark call escalated",
			"call_id", call.ID,
			"handoff_id", created.ID,
			"error", err,
		)
	}

	s.logger.Info("manual takeover",
		"handoff_id", created.ID,
		"call_id", call.ID,
		"operator_id", params.OperatorID,
	)

	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventHandoffAccepted,
		call.ID.String(),
		domain.HandoffAcceptedPayload{Handoff: created},
	))

	return &ports.TakeControlResult{
		Handoff:        created,
		ConversationID: call.ConversationID,
	}, nil
}
