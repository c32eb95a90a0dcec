package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates domain events. Every state change in the triage
// core is published as one immutable, timestamped event.
type EventKind string

const (
	EventCallStarted             EventKind = "call.started"
	EventCallClaimed             EventKind = "call.claimed"
	EventTranscriptUpdated       EventKind = "call.transcript_updated"
	EventQueueEntryAdded         EventKind = "queue.entry_added"
	EventQueueEntryStatusChanged EventKind = "queue.status_changed"
	EventOperatorStatusChanged   EventKind = "operator.status_changed"
	EventHandoffRequested        EventKind = "handoff.requested"
	EventHandoffAccepted         EventKind = "handoff.accepted"
	// EventAmbulanceLocationUpdated is produced by the dispatch
	// collaborator; the core only re-broadcasts it.
	EventAmbulanceLocationUpdated EventKind = "ambulance.location_updated"
)

// Event is an immutable fact about a state change. CorrelationID propagates
// the causal chain (the call id, where one applies).
type Event struct {
	ID            uuid.UUID   `json:"id"`
	Kind          EventKind   `json:"kind"`
	OccurredAt    time.Time   `json:"occurredAt"`
	CorrelationID string      `json:"correlationId,omitempty"`
	Payload       interface{} `json:"payload"`
}

// NewEvent stamps a fresh event with identity and time.
func NewEvent(kind EventKind, correlationID string, payload interface{}) Event {
	return Event{
		ID:            uuid.New(),
		Kind:          kind,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: correlationID,
		Payload:       payload,
	}
}

// CallStartedPayload accompanies EventCallStarted.
type CallStartedPayload struct {
	Call  *Call       `json:"call"`
	Entry *QueueEntry `json:"entry"`
}

// QueueEntryAddedPayload accompanies EventQueueEntryAdded.
type QueueEntryAddedPayload struct {
	Entry *QueueEntry `json:"entry"`
}

// QueueStatusChangedPayload accompanies EventQueueEntryStatusChanged.
type QueueStatusChangedPayload struct {
	Entry     *QueueEntry `json:"entry"`
	OldStatus QueueStatus `json:"oldStatus"`
	NewStatus QueueStatus `json:"newStatus"`
}

// OperatorStatusChangedPayload accompanies EventOperatorStatusChanged.
type OperatorStatusChangedPayload struct {
	Operator  *Operator      `json:"operator"`
	OldStatus OperatorStatus `json:"oldStatus"`
	NewStatus OperatorStatus `json:"newStatus"`
}

// HandoffRequestedPayload accompanies EventHandoffRequested.
type HandoffRequestedPayload struct {
	Handoff *Handoff `json:"handoff"`
}

// HandoffAcceptedPayload accompanies EventHandoffAccepted.
type HandoffAcceptedPayload struct {
	Handoff *Handoff `json:"handoff"`
}

// CallClaimedPayload accompanies EventCallClaimed.
type CallClaimedPayload struct {
	Entry      *QueueEntry `json:"entry"`
	OperatorID uuid.UUID   `json:"operatorId"`
}

// TranscriptUpdatedPayload accompanies EventTranscriptUpdated.
type TranscriptUpdatedPayload struct {
	CallID     uuid.UUID `json:"callId"`
	Transcript string    `json:"transcript"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// AmbulanceLocationPayload accompanies EventAmbulanceLocationUpdated.
type AmbulanceLocationPayload struct {
	CallID    uuid.UUID `json:"callId"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}
