package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallStatus represents the lifecycle of the call aggregate. Conversation
// handling itself lives with the telephony/AI-bridge collaborator; this
// entity only tracks what the triage core needs.
type CallStatus string

const (
	CallActive    CallStatus = "ACTIVE"
	CallEscalated CallStatus = "ESCALATED"
	CallCompleted CallStatus = "COMPLETED"
)

// Call is a thin view of one emergency call.
type Call struct {
	ID             uuid.UUID  `json:"id"`
	PhoneNumber    string     `json:"phoneNumber,omitempty"`
	Status         CallStatus `json:"status"`
	ConversationID string     `json:"conversationId,omitempty"`
	Transcript     string     `json:"transcript,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// NewCall creates an ACTIVE call.
func NewCall(phoneNumber, conversationID string) *Call {
	return &Call{
		ID:             uuid.New(),
		PhoneNumber:    phoneNumber,
		Status:         CallActive,
		ConversationID: conversationID,
		StartedAt:      time.Now().UTC(),
	}
}

// IsCompleted reports whether the call has ended.
func (c *Call) IsCompleted() bool {
	return c.Status == CallCompleted
}
