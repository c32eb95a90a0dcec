package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
)

func TestHandoffRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewHandoffRepository(testPool)

	call := createTestCall(t, ctx)
	op := createTestOperator(t, ctx)

	handoff := domain.NewHandoff(domain.HandoffParams{
		CallID:         call.ID,
		FromAgent:      true,
		Reason:         "caller distress beyond protocol",
		ConversationID: call.ConversationID,
		Transcript:     "Caller: please, a real person",
		AIContext:      json.RawMessage(`{"confidence":0.2,"escalation":"requested"}`),
		PatientSummary: "agitated, responsive",
	})

	created, err := repo.Create(ctx, handoff)
	require.NoError(t, err)
	assert.Equal(t, domain.HandoffRequested, created.Status)
	assert.JSONEq(t, `{"confidence":0.2,"escalation":"requested"}`, string(created.AIContext))

	require.NoError(t, created.Accept(op.ID))
	accepted, err := repo.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, domain.HandoffAccepted, accepted.Status)
	require.NotNil(t, accepted.ToOperatorID)
	assert.Equal(t, op.ID, *accepted.ToOperatorID)
	assert.NotNil(t, accepted.AcceptedAt)

	require.NoError(t, accepted.Complete())
	completed, err := repo.Update(ctx, accepted)
	require.NoError(t, err)
	assert.Equal(t, domain.HandoffCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.HandoffDuration)
	assert.GreaterOrEqual(t, *completed.HandoffDuration, 0)

	episodes, err := repo.ListByCallID(ctx, call.ID)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, completed.ID, episodes[0].ID)
}

func TestHandoffRepository_GetMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewHandoffRepository(testPool)

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrHandoffNotFound)
}

func TestOperatorRepository_FirstAvailable(t *testing.T) {
	ctx := context.Background()
	repo := NewOperatorRepository(testPool)

	op := createTestOperator(t, ctx)

	found, err := repo.FirstAvailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.OperatorAvailable, found.Status)
	assert.Nil(t, found.CurrentCallID)

	// Bind a call; the operator must drop out of the available pool.
	call := createTestCall(t, ctx)
	require.NoError(t, op.SetBusy(call.ID))
	updated, err := repo.Update(ctx, op)
	require.NoError(t, err)
	assert.Equal(t, domain.OperatorBusy, updated.Status)
	require.NotNil(t, updated.CurrentCallID)
	assert.Equal(t, call.ID, *updated.CurrentCallID)
}

func TestCallRepository_Transcript(t *testing.T) {
	ctx := context.Background()
	repo := NewCallRepository(testPool)

	call := createTestCall(t, ctx)

	updated, err := repo.UpdateTranscript(ctx, call.ID, "Agent: emergency services, what is your location?")
	require.NoError(t, err)
	assert.Contains(t, updated.Transcript, "your location")
	assert.NotNil(t, updated.UpdatedAt)

	_, err = repo.UpdateTranscript(ctx, uuid.New(), "x")
	assert.ErrorIs(t, err, apperrors.ErrCallNotFound)
}
