package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
)

func TestNewQueueEntry_Defaults(t *testing.T) {
	callID := uuid.New()
	entry := domain.NewQueueEntry(callID, "chest pain", "conv-1")

	assert.Equal(t, callID, entry.CallID)
	assert.Equal(t, domain.QueueStatusWaiting, entry.Status)
	// Priority defaults to the lowest urgency tier pending triage.
	assert.Equal(t, domain.PriorityP3, entry.Priority)
	assert.Nil(t, entry.ClaimedBy)
	assert.Nil(t, entry.ClaimedAt)
	assert.False(t, entry.WaitingSince.IsZero())
}

func TestQueueEntry_Claim(t *testing.T) {
	operatorID := uuid.New()

	t.Run("claims a waiting entry", func(t *testing.T) {
		entry := domain.NewQueueEntry(uuid.New(), "", "")

		err := entry.Claim(operatorID)

		require.NoError(t, err)
		assert.Equal(t, domain.QueueStatusClaimed, entry.Status)
		require.NotNil(t, entry.ClaimedBy)
		assert.Equal(t, operatorID, *entry.ClaimedBy)
		assert.NotNil(t, entry.ClaimedAt)
	})

	t.Run("second claim fails and leaves claimant unchanged", func(t *testing.T) {
		entry := domain.NewQueueEntry(uuid.New(), "", "")
		require.NoError(t, entry.Claim(operatorID))

		other := uuid.New()
		err := entry.Claim(other)

		assert.ErrorIs(t, err, apperrors.ErrAlreadyClaimed)
		assert.Equal(t, operatorID, *entry.ClaimedBy)
	})

	t.Run("repeat claim by the same operator is not idempotent", func(t *testing.T) {
		entry := domain.NewQueueEntry(uuid.New(), "", "")
		require.NoError(t, entry.Claim(operatorID))

		err := entry.Claim(operatorID)

		assert.ErrorIs(t, err, apperrors.ErrAlreadyClaimed)
	})
}

func TestQueueEntry_UpdateStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.QueueStatus
		to      domain.QueueStatus
		wantErr bool
	}{
		{"waiting to abandoned", domain.QueueStatusWaiting, domain.QueueStatusAbandoned, false},
		{"claimed to in progress", domain.QueueStatusClaimed, domain.QueueStatusInProgress, false},
		{"claimed to completed", domain.QueueStatusClaimed, domain.QueueStatusCompleted, false},
		{"in progress to completed", domain.QueueStatusInProgress, domain.QueueStatusCompleted, false},
		{"in progress to abandoned", domain.QueueStatusInProgress, domain.QueueStatusAbandoned, false},
		{"claimed back to waiting", domain.QueueStatusClaimed, domain.QueueStatusWaiting, true},
		{"completed is terminal", domain.QueueStatusCompleted, domain.QueueStatusInProgress, true},
		{"abandoned is terminal", domain.QueueStatusAbandoned, domain.QueueStatusWaiting, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := domain.NewQueueEntry(uuid.New(), "", "")
			entry.Status = tt.from

			err := entry.UpdateStatus(tt.to)

			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
				assert.Equal(t, tt.from, entry.Status)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.to, entry.Status)
			}
		})
	}
}

func TestQueueEntry_WaitingTimeSeconds(t *testing.T) {
	entry := domain.NewQueueEntry(uuid.New(), "", "")
	entry.WaitingSince = time.Now().UTC().Add(-90 * time.Second)

	secs := entry.WaitingTimeSeconds(time.Now().UTC())

	assert.InDelta(t, 90, secs, 1)
}

func TestParsePriority(t *testing.T) {
	p, err := domain.ParsePriority("P0")
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityP0, p)

	_, err = domain.ParsePriority("P9")
	assert.ErrorIs(t, err, apperrors.ErrInvalidPriority)
}

func TestPriority_JSONRoundTrip(t *testing.T) {
	data, err := domain.PriorityP1.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"P1"`, string(data))

	var p domain.Priority
	require.NoError(t, p.UnmarshalJSON([]byte(`"P2"`)))
	assert.Equal(t, domain.PriorityP2, p)
}

func TestQueueStatus_IsTerminal(t *testing.T) {
	assert.True(t, domain.QueueStatusCompleted.IsTerminal())
	assert.True(t, domain.QueueStatusAbandoned.IsTerminal())
	assert.False(t, domain.QueueStatusWaiting.IsTerminal())
	assert.False(t, domain.QueueStatusClaimed.IsTerminal())
}
