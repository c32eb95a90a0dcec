package domain

import (
	"math"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
)

// OperatorStatus represents the availability state of a human operator.
type OperatorStatus string

const (
	OperatorAvailable OperatorStatus = "AVAILABLE"
	OperatorBusy      OperatorStatus = "BUSY"
	OperatorOffline   OperatorStatus = "OFFLINE"
	OperatorOnBreak   OperatorStatus = "ON_BREAK"
)

// ValidOperatorStatus reports whether s is a known status value.
func ValidOperatorStatus(s OperatorStatus) bool {
	switch s {
	case OperatorAvailable, OperatorBusy, OperatorOffline, OperatorOnBreak:
		return true
	}
	return false
}

// Operator is a human agent taking escalated calls.
type Operator struct {
	ID                uuid.UUID      `json:"id"`
	Email             string         `json:"email"`
	Name              string         `json:"name"`
	Role              string         `json:"role"`
	Status            OperatorStatus `json:"status"`
	LastActiveAt      time.Time      `json:"lastActiveAt"`
	TotalCallsHandled int            `json:"totalCallsHandled"`
	// AverageHandleTime is a running mean in whole seconds.
	AverageHandleTime int        `json:"averageHandleTime"`
	CurrentCallID     *uuid.UUID `json:"currentCallId,omitempty"`

	PasswordHash string `json:"-"`
}

// IsAvailable reports whether the operator can take a new call.
func (o *Operator) IsAvailable() bool {
	return o.Status == OperatorAvailable && o.CurrentCallID == nil
}

// SetAvailable marks the operator as free. Unconditional.
func (o *Operator) SetAvailable() {
	o.Status = OperatorAvailable
	o.LastActiveAt = time.Now().UTC()
}

// SetBusy binds the operator to a call. Requires the operator to be
// AVAILABLE with no current call.
func (o *Operator) SetBusy(callID uuid.UUID) error {
	if !o.IsAvailable() {
		return apperrors.ErrOperatorNotAvailable
	}
	o.Status = OperatorBusy
	o.CurrentCallID = &callID
	o.LastActiveAt = time.Now().UTC()
	return nil
}

// SetOnBreak marks the operator as on break. Unconditional.
func (o *Operator) SetOnBreak() {
	o.Status = OperatorOnBreak
	o.LastActiveAt = time.Now().UTC()
}

// SetOffline clears the current-call binding without completing the call.
// An in-flight call is never auto-completed here; it must be reassigned
// separately so its state is not silently lost.
func (o *Operator) SetOffline() {
	o.Status = OperatorOffline
	o.CurrentCallID = nil
	o.LastActiveAt = time.Now().UTC()
}

// CompleteCall finishes the operator's active call, folds the handle time
// into the running average, and returns the operator to AVAILABLE.
func (o *Operator) CompleteCall(handleTimeSeconds int) error {
	if o.CurrentCallID == nil {
		return apperrors.ErrNoActiveCall
	}

	n := float64(o.TotalCallsHandled)
	avg := float64(o.AverageHandleTime)
	o.AverageHandleTime = int(math.Round((avg*n + float64(handleTimeSeconds)) / (n + 1)))
	o.TotalCallsHandled++

	o.CurrentCallID = nil
	o.Status = OperatorAvailable
	o.LastActiveAt = time.Now().UTC()
	return nil
}
