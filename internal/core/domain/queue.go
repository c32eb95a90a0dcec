package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
)

// Priority ranks a waiting call. P0 is the most urgent; lower numeric
// value means earlier dispatch.
type Priority int

const (
	PriorityP0 Priority = iota
	PriorityP1
	PriorityP2
	PriorityP3
)

// priorityNames maps priorities to their wire representation.
var priorityNames = map[Priority]string{
	PriorityP0: "P0",
	PriorityP1: "P1",
	PriorityP2: "P2",
	PriorityP3: "P3",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "P3"
}

// ParsePriority converts a wire string ("P0".."P3") to a Priority.
func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	return PriorityP3, apperrors.ErrInvalidPriority
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

func (p *Priority) UnmarshalJSON(data []byte) error {
	if len(data) < 2 {
		return apperrors.ErrInvalidPriority
	}
	parsed, err := ParsePriority(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// QueueStatus represents the lifecycle state of a queue entry.
type QueueStatus string

const (
	QueueStatusWaiting    QueueStatus = "WAITING"
	QueueStatusClaimed    QueueStatus = "CLAIMED"
	QueueStatusInProgress QueueStatus = "IN_PROGRESS"
	QueueStatusCompleted  QueueStatus = "COMPLETED"
	QueueStatusAbandoned  QueueStatus = "ABANDONED"
)

// queueTransitions defines the valid status transitions. Transitions are
// monotonic: an entry never returns to WAITING once claimed.
var queueTransitions = map[QueueStatus][]QueueStatus{
	QueueStatusWaiting:    {QueueStatusClaimed, QueueStatusAbandoned},
	QueueStatusClaimed:    {QueueStatusInProgress, QueueStatusCompleted, QueueStatusAbandoned},
	QueueStatusInProgress: {QueueStatusCompleted, QueueStatusAbandoned},
	QueueStatusCompleted:  {},
	QueueStatusAbandoned:  {},
}

// IsTerminal reports whether no further transitions are possible.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusCompleted || s == QueueStatusAbandoned
}

// ValidQueueStatus reports whether s is a known status value.
func ValidQueueStatus(s QueueStatus) bool {
	_, ok := queueTransitions[s]
	return ok
}

// ClinicalSummary holds the derived triage fields an AI extraction refines
// as the call progresses. All fields are optional.
type ClinicalSummary struct {
	Age              *int     `json:"age,omitempty"`
	Gender           string   `json:"gender,omitempty"`
	Location         string   `json:"location,omitempty"`
	AISummary        string   `json:"aiSummary,omitempty"`
	AIRecommendation string   `json:"aiRecommendation,omitempty"`
	KeySymptoms      []string `json:"keySymptoms,omitempty"`
	RedFlags         []string `json:"redFlags,omitempty"`
}

// QueueEntry is one waiting or claimed call in the triage queue.
type QueueEntry struct {
	ID             uuid.UUID       `json:"id"`
	CallID         uuid.UUID       `json:"callId"`
	Priority       Priority        `json:"priority"`
	ChiefComplaint string          `json:"chiefComplaint,omitempty"`
	Summary        ClinicalSummary `json:"summary"`
	Status         QueueStatus     `json:"status"`
	WaitingSince   time.Time       `json:"waitingSince"`
	ClaimedBy      *uuid.UUID      `json:"claimedBy,omitempty"`
	ClaimedAt      *time.Time      `json:"claimedAt,omitempty"`
	ConversationID string          `json:"conversationId,omitempty"`
}

// NewQueueEntry creates a WAITING entry for a call. Priority defaults to the
// lowest urgency tier until triage refines it.
func NewQueueEntry(callID uuid.UUID, chiefComplaint string, conversationID string) *QueueEntry {
	return &QueueEntry{
		ID:             uuid.New(),
		CallID:         callID,
		Priority:       PriorityP3,
		ChiefComplaint: chiefComplaint,
		Status:         QueueStatusWaiting,
		WaitingSince:   time.Now().UTC(),
		ConversationID: conversationID,
	}
}

// Claim transitions the entry WAITING -> CLAIMED for the given operator.
// A non-WAITING entry is rejected; repeated claims by the same operator fail
// the same way (claiming is deliberately not idempotent).
func (e *QueueEntry) Claim(operatorID uuid.UUID) error {
	if e.Status != QueueStatusWaiting {
		return apperrors.ErrAlreadyClaimed
	}
	now := time.Now().UTC()
	e.Status = QueueStatusClaimed
	e.ClaimedBy = &operatorID
	e.ClaimedAt = &now
	return nil
}

// UpdateStatus advances the entry's lifecycle, enforcing the transition table.
func (e *QueueEntry) UpdateStatus(newStatus QueueStatus) error {
	allowed, ok := queueTransitions[e.Status]
	if !ok {
		return apperrors.ErrInvalidStatusTransition
	}
	for _, s := range allowed {
		if s == newStatus {
			e.Status = newStatus
			return nil
		}
	}
	return apperrors.ErrInvalidStatusTransition
}

// WaitingTimeSeconds returns how long the entry has been waiting, in whole
// seconds, relative to now.
func (e *QueueEntry) WaitingTimeSeconds(now time.Time) int64 {
	return int64(now.Sub(e.WaitingSince).Seconds())
}

// QueueStats aggregates the state of the queue at a point in time.
type QueueStats struct {
	CountsByStatus     map[QueueStatus]int `json:"countsByStatus"`
	WaitingCount       int                 `json:"waitingCount"`
	AverageWaitSeconds float64             `json:"averageWaitSeconds"`
}
