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

func TestQueueService_AddToQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("creates entry and publishes added event", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		entry := domain.NewQueueEntry(uuid.New(), "chest pain", "conv-1")
		repo.On("Create", ctx, entry).Return(entry, nil)

		created, err := svc.AddToQueue(ctx, entry)

		require.NoError(t, err)
		assert.Equal(t, entry.ID, created.ID)
		assert.Equal(t, domain.QueueStatusWaiting, created.Status)

		events := bus.published()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventQueueEntryAdded, events[0].Kind)
		assert.Equal(t, entry.CallID.String(), events[0].CorrelationID)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate active entry is rejected without events", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		entry := domain.NewQueueEntry(uuid.New(), "fall", "conv-2")
		repo.On("Create", ctx, entry).Return(nil, apperrors.ErrDuplicateEntry)

		created, err := svc.AddToQueue(ctx, entry)

		assert.Nil(t, created)
		assert.ErrorIs(t, err, apperrors.ErrDuplicateEntry)
		assert.Empty(t, bus.published())
	})
}

func TestQueueService_ClaimQueueEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("successful claim publishes status change then claim event", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		operatorID := uuid.New()
		entry := domain.NewQueueEntry(uuid.New(), "seizure", "conv-3")
		require.NoError(t, entry.Claim(operatorID))

		repo.On("Claim", ctx, entry.ID, operatorID, mock.AnythingOfType("time.Time")).
			Return(entry, nil)

		claimed, err := svc.ClaimQueueEntry(ctx, entry.ID, operatorID)

		require.NoError(t, err)
		assert.Equal(t, domain.QueueStatusClaimed, claimed.Status)
		require.Equal(t, &operatorID, claimed.ClaimedBy)

		kinds := bus.kinds()
		require.Len(t, kinds, 2)
		assert.Equal(t, domain.EventQueueEntryStatusChanged, kinds[0])
		assert.Equal(t, domain.EventCallClaimed, kinds[1])

		change, ok := bus.published()[0].Payload.(domain.QueueStatusChangedPayload)
		require.True(t, ok)
		assert.Equal(t, domain.QueueStatusWaiting, change.OldStatus)
		assert.Equal(t, domain.QueueStatusClaimed, change.NewStatus)
	})

	t.Run("lost race surfaces already claimed", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		entryID := uuid.New()
		repo.On("Claim", ctx, entryID, mock.Anything, mock.AnythingOfType("time.Time")).
			Return(nil, apperrors.ErrAlreadyClaimed)

		claimed, err := svc.ClaimQueueEntry(ctx, entryID, uuid.New())

		assert.Nil(t, claimed)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyClaimed)
		assert.Empty(t, bus.published())
	})

	t.Run("unknown entry surfaces not found", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		entryID := uuid.New()
		repo.On("Claim", ctx, entryID, mock.Anything, mock.AnythingOfType("time.Time")).
			Return(nil, apperrors.ErrQueueEntryNotFound)

		_, err := svc.ClaimQueueEntry(ctx, entryID, uuid.New())

		assert.ErrorIs(t, err, apperrors.ErrQueueEntryNotFound)
	})
}

func TestQueueService_UpdateQueueStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("valid transition persists and publishes", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		entry := domain.NewQueueEntry(uuid.New(), "burns", "conv-4")
		require.NoError(t, entry.Claim(uuid.New()))

		updated := *entry
		updated.Status = domain.QueueStatusInProgress

		repo.On("GetByID", ctx, entry.ID).Return(entry, nil)
		repo.On("SetStatus", ctx, entry.ID, domain.QueueStatusClaimed, domain.QueueStatusInProgress).
			Return(&updated, nil)

		result, err := svc.UpdateQueueStatus(ctx, entry.ID, domain.QueueStatusInProgress)

		require.NoError(t, err)
		assert.Equal(t, domain.QueueStatusInProgress, result.Status)

		events := bus.published()
		require.Len(t, events, 1)
		change := events[0].Payload.(domain.QueueStatusChangedPayload)
		assert.Equal(t, domain.QueueStatusClaimed, change.OldStatus)
		assert.Equal(t, domain.QueueStatusInProgress, change.NewStatus)
	})

	t.Run("claiming through status update is rejected", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		_, err := svc.UpdateQueueStatus(ctx, uuid.New(), domain.QueueStatusClaimed)

		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
		repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("unknown status value is rejected", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		_, err := svc.UpdateQueueStatus(ctx, uuid.New(), domain.QueueStatus("PARKED"))

		assert.ErrorIs(t, err, apperrors.ErrInvalidQueueStatus)
	})

	t.Run("invalid transition from terminal state", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		entry := domain.NewQueueEntry(uuid.New(), "laceration", "conv-5")
		entry.Status = domain.QueueStatusCompleted
		repo.On("GetByID", ctx, entry.ID).Return(entry, nil)

		_, err := svc.UpdateQueueStatus(ctx, entry.ID, domain.QueueStatusAbandoned)

		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
		assert.Empty(t, bus.published())
	})
}

func TestQueueService_UpdateTriage(t *testing.T) {
	ctx := context.Background()

	t.Run("applies priority and summary refinement", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		entry := domain.NewQueueEntry(uuid.New(), "dizziness", "conv-6")
		require.Equal(t, domain.PriorityP3, entry.Priority)

		priority := domain.PriorityP1
		summary := domain.ClinicalSummary{
			AISummary: "possible stroke, FAST positive",
			RedFlags:  []string{"facial droop"},
		}

		repo.On("GetByID", ctx, entry.ID).Return(entry, nil)
		repo.On("UpdateTriage", ctx, mock.MatchedBy(func(e *domain.QueueEntry) bool {
			return e.Priority == domain.PriorityP1 && e.Summary.AISummary == summary.AISummary
		})).Return(entry, nil)

		_, err := svc.UpdateTriage(ctx, ports.UpdateTriageParams{
			EntryID:  entry.ID,
			Priority: &priority,
			Summary:  &summary,
		})

		require.NoError(t, err)
		require.Len(t, bus.published(), 1)
		repo.AssertExpectations(t)
	})

	t.Run("terminal entry cannot be re-triaged", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		bus := newRecordingBus()
		svc := services.NewQueueService(repo, bus, testLogger())

		entry := domain.NewQueueEntry(uuid.New(), "resolved", "conv-7")
		entry.Status = domain.QueueStatusAbandoned
		repo.On("GetByID", ctx, entry.ID).Return(entry, nil)

		priority := domain.PriorityP0
		_, err := svc.UpdateTriage(ctx, ports.UpdateTriageParams{
			EntryID:  entry.ID,
			Priority: &priority,
		})

		assert.ErrorIs(t, err, apperrors.ErrInvalidStatusTransition)
		repo.AssertNotCalled(t, "UpdateTriage", mock.Anything, mock.Anything)
	})
}

func TestQueueService_ListQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("passes filters through to the store", func(t *testing.T) {
		repo := mocks.NewMockQueueRepository()
		svc := services.NewQueueService(repo, newRecordingBus(), testLogger())

		status := domain.QueueStatusWaiting
		params := ports.ListQueueParams{Status: &status}
		entries := []*domain.QueueEntry{
			domain.NewQueueEntry(uuid.New(), "a", "c-1"),
			domain.NewQueueEntry(uuid.New(), "b", "c-2"),
		}
		repo.On("List", ctx, params).Return(entries, nil)

		got, err := svc.ListQueue(ctx, params)

		require.NoError(t, err)
		assert.Len(t, got, 2)
		repo.AssertExpectations(t)
	})
}

func TestQueueService_GetQueueStats(t *testing.T) {
	ctx := context.Background()

	repo := mocks.NewMockQueueRepository()
	svc := services.NewQueueService(repo, newRecordingBus(), testLogger())

	stats := &domain.QueueStats{
		CountsByStatus:     map[domain.QueueStatus]int{domain.QueueStatusWaiting: 3},
		WaitingCount:       3,
		AverageWaitSeconds: 42.5,
	}
	repo.On("Stats", ctx).Return(stats, nil)

	got, err := svc.GetQueueStats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, got.WaitingCount)
	assert.InDelta(t, 42.5, got.AverageWaitSeconds, 0.001)
}
