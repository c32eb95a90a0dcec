package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
)

// HandoffStatus represents the state of an AI-to-human escalation episode.
type HandoffStatus string

const (
	HandoffRequested  HandoffStatus = "REQUESTED"
	HandoffAccepted   HandoffStatus = "ACCEPTED"
	HandoffInProgress HandoffStatus = "IN_PROGRESS"
	HandoffCompleted  HandoffStatus = "COMPLETED"
	HandoffRejected   HandoffStatus = "REJECTED"
)

// Handoff is one escalation episode from the AI agent to a human operator.
// Records are retained indefinitely for audit.
type Handoff struct {
	ID           uuid.UUID     `json:"id"`
	CallID       uuid.UUID     `json:"callId"`
	FromAgent    bool          `json:"fromAgent"`
	ToOperatorID *uuid.UUID    `json:"toOperatorId,omitempty"`
	Reason       string        `json:"reason"`
	// ConversationID is the external AI session handle used to bridge
	// audio and transcript after acceptance.
	ConversationID string `json:"conversationId,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
	// AIContext is an opaque payload from the AI agent, stored and
	// returned verbatim.
	AIContext      json.RawMessage `json:"aiContext,omitempty"`
	PatientSummary string          `json:"patientSummary,omitempty"`
	Status         HandoffStatus   `json:"status"`
	RequestedAt    time.Time       `json:"requestedAt"`
	AcceptedAt     *time.Time      `json:"acceptedAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	// HandoffDuration is completedAt - acceptedAt in whole seconds.
	HandoffDuration *int `json:"handoffDuration,omitempty"`
}

// HandoffParams holds the input for an AI- or patient-initiated request.
type HandoffParams struct {
	CallID         uuid.UUID
	FromAgent      bool
	ToOperatorID   *uuid.UUID
	Reason         string
	ConversationID string
	Transcript     string
	AIContext      json.RawMessage
	PatientSummary string
}

// NewHandoff creates a handoff in REQUESTED state.
func NewHandoff(params HandoffParams) *Handoff {
	return &Handoff{
		ID:             uuid.New(),
		CallID:         params.CallID,
		FromAgent:      params.FromAgent,
		ToOperatorID:   params.ToOperatorID,
		Reason:         params.Reason,
		ConversationID: params.ConversationID,
		Transcript:     params.Transcript,
		AIContext:      params.AIContext,
		PatientSummary: params.PatientSummary,
		Status:         HandoffRequested,
		RequestedAt:    time.Now().UTC(),
	}
}

// NewManualTakeover synthesizes a handoff directly in ACCEPTED state.
// The operator's own action is the acceptance, so the REQUESTED step is
// skipped; forcing a two-step protocol here would only add latency during
// a live emergency call.
func NewManualTakeover(callID, operatorID uuid.UUID, reason, conversationID string) *Handoff {
	now := time.Now().UTC()
	return &Handoff{
		ID:             uuid.New(),
		CallID:         callID,
		FromAgent:      false,
		ToOperatorID:   &operatorID,
		Reason:         reason,
		ConversationID: conversationID,
		AIContext:      json.RawMessage(`{"manualTakeover":true}`),
		Status:         HandoffAccepted,
		RequestedAt:    now,
		AcceptedAt:     &now,
	}
}

// Accept transitions REQUESTED -> ACCEPTED for the given operator.
func (h *Handoff) Accept(operatorID uuid.UUID) error {
	if h.Status != HandoffRequested {
		return apperrors.ErrHandoffAlreadyAccepted
	}
	now := time.Now().UTC()
	h.Status = HandoffAccepted
	h.ToOperatorID = &operatorID
	h.AcceptedAt = &now
	return nil
}

// Start transitions ACCEPTED -> IN_PROGRESS.
func (h *Handoff) Start() error {
	if h.Status != HandoffAccepted {
		return apperrors.ErrInvalidStatusTransition
	}
	h.Status = HandoffInProgress
	return nil
}

// Complete transitions ACCEPTED or IN_PROGRESS -> COMPLETED and records the
// handoff duration relative to acceptance.
func (h *Handoff) Complete() error {
	switch h.Status {
	case HandoffAccepted, HandoffInProgress:
	case HandoffCompleted, HandoffRejected:
		return apperrors.ErrHandoffTerminal
	default:
		return apperrors.ErrHandoffNotAccepted
	}

	now := time.Now().UTC()
	h.Status = HandoffCompleted
	h.CompletedAt = &now
	if h.AcceptedAt != nil {
		duration := int(now.Sub(*h.AcceptedAt).Seconds())
		h.HandoffDuration = &duration
	}
	return nil
}

// Reject transitions REQUESTED -> REJECTED with the given reason.
func (h *Handoff) Reject(reason string) error {
	if h.Status != HandoffRequested {
		return apperrors.ErrInvalidStatusTransition
	}
	h.Status = HandoffRejected
	if reason != "" {
		h.Reason = reason
	}
	return nil
}
