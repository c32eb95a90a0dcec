package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
)

// ListQueueParams filters queue listings. Nil fields mean "any".
type ListQueueParams struct {
	Status   *domain.QueueStatus
	Priority *domain.Priority
}

// QueueRepository persists triage queue entries. Implementations must keep
// the ordering contract (priority ascending, then waitingSince ascending)
// and perform the claim as a single conditional update.
type QueueRepository interface {
	// Create inserts a WAITING entry. It fails with ErrDuplicateEntry when
	// the call already has a non-terminal entry.
	Create(ctx context.Context, entry *domain.QueueEntry) (*domain.QueueEntry, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error)
	// List returns entries ordered by (priority asc, waitingSince asc).
	List(ctx context.Context, params ListQueueParams) ([]*domain.QueueEntry, error)
	// ListActive returns all non-terminal entries in queue order.
	ListActive(ctx context.Context) ([]*domain.QueueEntry, error)
	// Claim performs the WAITING -> CLAIMED transition as a conditional
	// update. Exactly one concurrent caller observes success; losers get
	// ErrAlreadyClaimed, a missing id gets ErrQueueEntryNotFound.
	Claim(ctx context.Context, entryID, operatorID uuid.UUID, claimedAt time.Time) (*domain.QueueEntry, error)
	// SetStatus updates the status only if the stored status still equals
	// expected. A lost race surfaces as ErrInvalidStatusTransition.
	SetStatus(ctx context.Context, entryID uuid.UUID, expected, next domain.QueueStatus) (*domain.QueueEntry, error)
	// UpdateTriage persists priority and clinical summary refinements.
	UpdateTriage(ctx context.Context, entry *domain.QueueEntry) (*domain.QueueEntry, error)
	// Stats aggregates counts by status and the mean wait of WAITING entries.
	Stats(ctx context.Context) (*domain.QueueStats, error)
	// Head returns the highest-priority WAITING entry with priority at or
	// above the given floor, or ErrQueueEntryNotFound when the queue is
	// empty at those tiers.
	Head(ctx context.Context, floor domain.Priority) (*domain.QueueEntry, error)
}

// OperatorRepository persists operator state.
type OperatorRepository interface {
	Create(ctx context.Context, op *domain.Operator) (*domain.Operator, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error)
	GetByEmail(ctx context.Context, email string) (*domain.Operator, error)
	List(ctx context.Context) ([]*domain.Operator, error)
	Update(ctx context.Context, op *domain.Operator) (*domain.Operator, error)
	// FirstAvailable returns an AVAILABLE operator with no current call,
	// preferring the longest idle, or ErrOperatorNotFound.
	FirstAvailable(ctx context.Context) (*domain.Operator, error)
}

// HandoffRepository persists escalation episodes.
type HandoffRepository interface {
	Create(ctx context.Context, h *domain.Handoff) (*domain.Handoff, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Handoff, error)
	Update(ctx context.Context, h *domain.Handoff) (*domain.Handoff, error)
	ListByCallID(ctx context.Context, callID uuid.UUID) ([]*domain.Handoff, error)
}

// CallRepository persists the thin call aggregate.
type CallRepository interface {
	Create(ctx context.Context, call *domain.Call) (*domain.Call, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Call, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.CallStatus) (*domain.Call, error)
	UpdateTranscript(ctx context.Context, id uuid.UUID, transcript string) (*domain.Call, error)
}
