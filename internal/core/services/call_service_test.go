package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/mocks"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
	"github.com/lorrc/emergency-triage-backend/internal/core/services"
)

func TestCallService_StartCall(t *testing.T) {
	ctx := context.Background()

	t.Run("creates call and queue entry, events in order", func(t *testing.T) {
		callRepo := mocks.NewMockCallRepository()
		queueRepo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		queueSvc := services.NewQueueService(queueRepo, bus, testLogger())
		svc := services.NewCallService(callRepo, queueSvc, bus, testLogger())

		callRepo.On("Create", ctx, mock.MatchedBy(func(c *domain.Call) bool {
			return c.Status == domain.CallActive && c.ConversationID == "conv-30"
		})).Return(&domain.Call{
			ID:             uuid.New(),
			PhoneNumber:    "+46701112233",
			Status:         domain.CallActive,
			ConversationID: "conv-30",
		}, nil)
		queueRepo.On("Create", ctx, mock.MatchedBy(func(e *domain.QueueEntry) bool {
			return e.Status == domain.QueueStatusWaiting && e.Priority == domain.PriorityP3
		})).Return(&domain.QueueEntry{
			ID:       uuid.New(),
			Status:   domain.QueueStatusWaiting,
			Priority: domain.PriorityP3,
		}, nil)

		call, entry, err := svc.StartCall(ctx, ports.StartCallParams{
			PhoneNumber:    "+46701112233",
			ConversationID: "conv-30",
			ChiefComplaint: "difficulty breathing",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.CallActive, call.Status)
		assert.Equal(t, domain.QueueStatusWaiting, entry.Status)

		kinds := bus.kinds()
		require.Len(t, kinds, 2)
		assert.Equal(t, domain.EventCallStarted, kinds[0])
		assert.Equal(t, domain.EventQueueEntryAdded, kinds[1])
	})

	t.Run("store failure aborts without queue entry", func(t *testing.T) {
		callRepo := mocks.NewMockCallRepository()
		queueRepo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		queueSvc := services.NewQueueService(queueRepo, bus, testLogger())
		svc := services.NewCallService(callRepo, queueSvc, bus, testLogger())

		callRepo.On("Create", ctx, mock.Anything).Return(nil, apperrors.ErrInternal)

		_, _, err := svc.StartCall(ctx, ports.StartCallParams{ConversationID: "conv-31"})

		assert.ErrorIs(t, err, apperrors.ErrInternal)
		queueRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		assert.Empty(t, bus.published())
	})
}

func TestCallService_UpdateTranscript(t *testing.T) {
	ctx := context.Background()

	t.Run("persists transcript and publishes update", func(t *testing.T) {
		callRepo := mocks.NewMockCallRepository()
		bus := newRecordingBus()
		svc := services.NewCallService(callRepo, nil, bus, testLogger())

		callID := uuid.New()
		transcript := "Caller: my father collapsed\nAgent: is he breathing?"
		callRepo.On("UpdateTranscript", ctx, callID, transcript).
			Return(&domain.Call{ID: callID, Transcript: transcript}, nil)

		updated, err := svc.UpdateTranscript(ctx, callID, transcript)

		require.NoError(t, err)
		assert.Equal(t, transcript, updated.Transcript)

		events := bus.published()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventTranscriptUpdated, events[0].Kind)
		payload := events[0].Payload.(domain.TranscriptUpdatedPayload)
		assert.Equal(t, callID, payload.CallID)
		assert.Equal(t, transcript, payload.Transcript)
	})

	t.Run("missing call surfaces not found", func(t *testing.T) {
		callRepo := mocks.NewMockCallRepository()
		bus := newRecordingBus()
		svc := services.NewCallService(callRepo, nil, bus, testLogger())

		callID := uuid.New()
		callRepo.On("UpdateTranscript", ctx, callID, "x").
			Return(nil, apperrors.ErrCallNotFound)

		_, err := svc.UpdateTranscript(ctx, callID, "x")

		assert.ErrorIs(t, err, apperrors.ErrCallNotFound)
		assert.Empty(t, bus.published())
	})
}
