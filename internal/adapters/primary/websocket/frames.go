package websocket

import (
	"time"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
)

// Server to client frame types.
const (
	FrameQueueInitial           = "queue:initial"
	FrameQueueAdded             = "queue:added"
	FrameQueueUpdated           = "queue:updated"
	FrameQueueRemoved           = "queue:removed"
	FrameTranscriptUpdated      = "queue:transcript-updated"
	FramePong                   = "queue:pong"
	FrameQueueError             = "queue:error"
	FrameOperatorStatusChanged  = "operator:status-changed"
	FrameHandoffRequested       = "handoff:requested"
	FrameHandoffAccepted        = "handoff:accepted"
	FrameAmbulanceLocation      = "ambulance:location-updated"
)

// Client to server frame types.
const (
	FramePing                  = "queue:ping"
	FrameSubscribe             = "queue:subscribe"
	FrameSubscribeTranscript   = "queue:subscribe-transcript"
	FrameUnsubscribeTranscript = "queue:unsubscribe-transcript"
)

// Frame is one type-discriminated JSON message on the dashboard socket.
type Frame struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
	Error     *FrameError `json:"error,omitempty"`
}

// FrameError carries an error code and message on queue:error frames.
type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClientFrame is one inbound message from a viewer. CallID applies to the
// transcript subscription frames only.
type ClientFrame struct {
	Type   string `json:"type"`
	CallID string `json:"callId,omitempty"`
}

// QueueDelta is the payload of queue:updated frames: only the fields a
// dashboard row needs to refresh in place.
type QueueDelta struct {
	ID                 string  `json:"id"`
	Status             string  `json:"status"`
	ClaimedBy          *string `json:"claimedBy,omitempty"`
	ClaimedAt          *string `json:"claimedAt,omitempty"`
	WaitingTimeSeconds int64   `json:"waitingTimeSeconds"`
}

// QueueRemoval is the payload of queue:removed frames.
type QueueRemoval struct {
	ID string `json:"id"`
}

// TranscriptDelta is the payload of queue:transcript-updated frames.
type TranscriptDelta struct {
	CallID     string    `json:"callId"`
	Transcript string    `json:"transcript"`
	LastUpdate time.Time `json:"lastUpdate"`
}

func newQueueDelta(entry *domain.QueueEntry, now time.Time) QueueDelta {
	delta := QueueDelta{
		ID:                 entry.ID.String(),
		Status:             string(entry.Status),
		WaitingTimeSeconds: entry.WaitingTimeSeconds(now),
	}
	if entry.ClaimedBy != nil {
		value := entry.ClaimedBy.String()
		delta.ClaimedBy = &value
	}
	if entry.ClaimedAt != nil {
		value := entry.ClaimedAt.Format(time.RFC3339)
		delta.ClaimedAt = &value
	}
	return delta
}

func errorFrame(code, message string) Frame {
	return Frame{
		Type:  FrameQueueError,
		Error: &FrameError{Code: code, Message: message},
	}
}

func pongFrame(now time.Time) Frame {
	return Frame{
		Type:      FramePong,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}
