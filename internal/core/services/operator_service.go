package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// OperatorService is the authoritative registry of operator availability
// and current-call bindings.
type OperatorService struct {
	operatorRepo ports.OperatorRepository
	bus          ports.EventBus
	logger       *slog.Logger
}

var _ ports.OperatorService = (*OperatorService)(nil)

// NewOperatorService creates a new operator service.
func NewOperatorService(operatorRepo ports.OperatorRepository, bus ports.EventBus, logger *slog.Logger) *OperatorService {
	return &OperatorService{
		operatorRepo: operatorRepo,
		bus:          bus,
		logger:       logger.With("component", "operator_service"),
	}
}

// GetOperator fetches one operator.
func (s *OperatorService) GetOperator(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	return s.operatorRepo.GetByID(ctx, id)
}

// ListOperators returns all operators.
func (s *OperatorService) ListOperators(ctx context.Context) ([]*domain.Operator, error) {
	return s.operatorRepo.List(ctx)
}

// SetStatus applies a status-change command and publishes
// OperatorStatusChanged(previous, new). The BUSY transition requires the
// operator to be AVAILABLE with no current call.
func (s *OperatorService) SetStatus(ctx context.Context, params ports.SetOperatorStatusParams) (*domain.Operator, error) {
	if !domain.ValidOperatorStatus(params.Status) {
		return nil, apperrors.ErrInvalidOperatorState
	}

	op, err := s.operatorRepo.GetByID(ctx, params.OperatorID)
	if err != nil {
		return nil, err
	}

	oldStatus := op.Status
	switch params.Status {
	case domain.OperatorAvailable:
		op.SetAvailable()
	case domain.OperatorBusy:
		if params.CallID == nil {
			return nil, apperrors.NewBadRequestError(apperrors.ErrBadRequest, "callId is required for BUSY")
		}
		if err := op.SetBusy(*params.CallID); err != nil {
			return nil, err
		}
	case domain.OperatorOnBreak:
		op.SetOnBreak()
	case domain.OperatorOffline:
		op.SetOffline()
	}

	updated, err := s.operatorRepo.Update(ctx, op)
	if err != nil {
		return nil, err
	}

	s.logger.Info("operator status changed",
		"operator_id", updated.ID,
		"old_status", oldStatus,
		"new_status", updated.Status,
	)

	s.publishStatusChange(ctx, updated, oldStatus)
	return updated, nil
}

// CompleteCall finishes the operator's active call, folding the handle time
// into the running average, and returns the operator to AVAILABLE.
func (s *OperatorService) CompleteCall(ctx context.Context, operatorID uuid.UUID, handleTimeSeconds int) (*domain.Operator, error) {
	op, err := s.operatorRepo.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	oldStatus := op.Status
	if err := op.CompleteCall(handleTimeSeconds); err != nil {
		return nil, err
	}

	updated, err := s.operatorRepo.Update(ctx, op)
	if err != nil {
		return nil, err
	}

	s.logger.Info("operator completed call",
		"operator_id", updated.ID,
		"handle_time_seconds", handleTimeSeconds,
		"average_handle_time", updated.AverageHandleTime,
		"total_calls_handled", updated.TotalCallsHandled,
	)

	s.publishStatusChange(ctx, updated, oldStatus)
	return updated, nil
}

func (s *OperatorService) publishStatusChange(ctx context.Context, op *domain.Operator, oldStatus domain.OperatorStatus) {
	s.bus.Publish(ctx, domain.NewEvent(
		domain.EventOperatorStatusChanged,
		"",
		domain.OperatorStatusChangedPayload{
			Operator:  op,
			OldStatus: oldStatus,
			NewStatus: op.Status,
		},
	))
}
