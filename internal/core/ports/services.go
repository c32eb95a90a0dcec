package ports

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
)

// EventHandler consumes published domain events.
type EventHandler func(ctx context.Context, event domain.Event)

// EventBus is the in-process publish/subscribe channel between the triage
// core and its consumers (dashboard gateway, AI-notification handlers).
// Publication is synchronous: subscribers run in registration order before
// Publish returns, so a single entity's events never regress on the wire.
type EventBus interface {
	// Subscribe registers a handler for the given kinds. No kinds means
	// all kinds.
	Subscribe(handler EventHandler, kinds ...domain.EventKind)
	Publish(ctx context.Context, event domain.Event)
}

// StartCallParams is the input when the telephony collaborator reports a
// new inbound call.
type StartCallParams struct {
	PhoneNumber    string
	ConversationID string
	ChiefComplaint string
}

// CallService owns the thin call aggregate.
type CallService interface {
	// StartCall creates the call and its WAITING queue entry and publishes
	// CallStarted followed by QueueEntryAdded.
	StartCall(ctx context.Context, params StartCallParams) (*domain.Call, *domain.QueueEntry, error)
	GetCall(ctx context.Context, id uuid.UUID) (*domain.Call, error)
	// UpdateTranscript persists AI-bridge transcript pushes and publishes
	// a transcript-updated event for subscribed dashboard viewers.
	UpdateTranscript(ctx context.Context, callID uuid.UUID, transcript string) (*domain.Call, error)
}

// UpdateTriageParams refines a queue entry after AI extraction or manual
// re-triage; this is the only authorized mutation of priority.
type UpdateTriageParams struct {
	EntryID        uuid.UUID
	Priority       *domain.Priority
	ChiefComplaint *string
	Summary        *domain.ClinicalSummary
}

// QueueService is the single source of truth for waiting/claimed calls.
type QueueService interface {
	AddToQueue(ctx context.Context, entry *domain.QueueEntry) (*domain.QueueEntry, error)
	ListQueue(ctx context.Context, params ListQueueParams) ([]*domain.QueueEntry, error)
	GetQueueEntry(ctx context.Context, entryID uuid.UUID) (*domain.QueueEntry, error)
	// ClaimQueueEntry atomically claims a WAITING entry for an operator.
	ClaimQueueEntry(ctx context.Context, entryID, operatorID uuid.UUID) (*domain.QueueEntry, error)
	UpdateQueueStatus(ctx context.Context, entryID uuid.UUID, status domain.QueueStatus) (*domain.QueueEntry, error)
	UpdateTriage(ctx context.Context, params UpdateTriageParams) (*domain.QueueEntry, error)
	GetQueueStats(ctx context.Context) (*domain.QueueStats, error)
}

// QueueSnapshotProvider serves the dashboard gateway's initial snapshot.
type QueueSnapshotProvider interface {
	ListActive(ctx context.Context) ([]*domain.QueueEntry, error)
}

// CallSnapshotProvider serves the transcript flush the gateway performs
// when a viewer subscribes to a call.
type CallSnapshotProvider interface {
	GetCall(ctx context.Context, id uuid.UUID) (*domain.Call, error)
}

// SetOperatorStatusParams carries an operator status-change command.
// CallID is required only for the BUSY transition.
type SetOperatorStatusParams struct {
	OperatorID uuid.UUID
	Status     domain.OperatorStatus
	CallID     *uuid.UUID
}

// OperatorService is the authoritative registry of operator status and
// current-call bindings.
type OperatorService interface {
	GetOperator(ctx context.Context, id uuid.UUID) (*domain.Operator, error)
	ListOperators(ctx context.Context) ([]*domain.Operator, error)
	SetStatus(ctx context.Context, params SetOperatorStatusParams) (*domain.Operator, error)
	CompleteCall(ctx context.Context, operatorID uuid.UUID, handleTimeSeconds int) (*domain.Operator, error)
}

// RequestHandoffParams is the input for an AI- or patient-initiated handoff.
type RequestHandoffParams struct {
	CallID         uuid.UUID
	FromAgent      bool
	ToOperatorID   *uuid.UUID
	Reason         string
	ConversationID string
	Transcript     string
	AIContext      json.RawMessage
	PatientSummary string
}

// TakeControlParams is the fast-path input when an operator grabs a live
// call from the dashboard.
type TakeControlParams struct {
	CallID     uuid.UUID
	OperatorID uuid.UUID
	Reason     string
}

// TakeControlResult returns the synthesized handoff together with the live
// conversation handle so the caller can bridge audio and transcript.
type TakeControlResult struct {
	Handoff        *domain.Handoff `json:"handoff"`
	ConversationID string          `json:"conversationId"`
}

// HandoffService drives the AI-to-human escalation state machine.
type HandoffService interface {
	RequestHandoff(ctx context.Context, params RequestHandoffParams) (*domain.Handoff, error)
	AcceptHandoff(ctx context.Context, handoffID, operatorID uuid.UUID) (*domain.Handoff, error)
	RejectHandoff(ctx context.Context, handoffID uuid.UUID, reason string) (*domain.Handoff, error)
	CompleteHandoff(ctx context.Context, handoffID uuid.UUID) (*domain.Handoff, error)
	TakeControl(ctx context.Context, params TakeControlParams) (*TakeControlResult, error)
}

// AuthService authenticates operator accounts.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*domain.Operator, error)
}

// ConversationGateway is the external AI-bridge collaborator. The boolean
// result reports whether the session socket was attached and the message
// was actually delivered.
type ConversationGateway interface {
	SendContextualUpdate(ctx context.Context, callID uuid.UUID, message string) (bool, error)
}

// ContextualNotifier delivers best-effort contextual updates into an
// in-flight AI conversation, retrying with bounded exponential backoff.
type ContextualNotifier interface {
	// Deliver blocks through the backoff schedule; exhaustion is reported
	// as ErrDeliveryFailed and is non-fatal to the caller.
	Deliver(ctx context.Context, callID uuid.UUID, message string) error
}
