package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/mocks"
	"github.com/lorrc/emergency-triage-backend/internal/core/services"
)

func notifierForTest(gateway *mocks.MockConversationGateway, cfg services.NotifierConfig, delays *[]time.Duration) *services.ContextualNotifier {
	n := services.NewContextualNotifier(gateway, cfg, testLogger())
	return n.WithSleep(func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func TestContextualNotifier_Deliver(t *testing.T) {
	ctx := context.Background()
	cfg := services.NotifierConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}

	t.Run("immediate delivery needs no waits", func(t *testing.T) {
		gateway := mocks.NewMockConversationGateway()
		var delays []time.Duration
		n := notifierForTest(gateway, cfg, &delays)

		callID := uuid.New()
		gateway.On("SendContextualUpdate", ctx, callID, "operator free").
			Return(true, nil).Once()

		err := n.Deliver(ctx, callID, "operator free")

		require.NoError(t, err)
		assert.Empty(t, delays)
		gateway.AssertExpectations(t)
	})

	t.Run("retries until session attaches", func(t *testing.T) {
		gateway := mocks.NewMockConversationGateway()
		var delays []time.Duration
		n := notifierForTest(gateway, cfg, &delays)

		callID := uuid.New()
		gateway.On("SendContextualUpdate", ctx, callID, "operator free").
			Return(false, nil).Twice()
		gateway.On("SendContextualUpdate", ctx, callID, "operator free").
			Return(true, nil).Once()

		err := n.Deliver(ctx, callID, "operator free")

		require.NoError(t, err)
		assert.Equal(t, []time.Duration{500 * time.Millisecond, 1 * time.Second}, delays)
		gateway.AssertNumberOfCalls(t, "SendContextualUpdate", 3)
	})

	t.Run("exhaustion returns delivery failed with capped delays", func(t *testing.T) {
		gateway := mocks.NewMockConversationGateway()
		var delays []time.Duration
		n := notifierForTest(gateway, cfg, &delays)

		callID := uuid.New()
		gateway.On("SendContextualUpdate", ctx, callID, "hello").
			Return(false, nil).Times(5)

		err := n.Deliver(ctx, callID, "hello")

		assert.ErrorIs(t, err, apperrors.ErrDeliveryFailed)
		assert.Equal(t, []time.Duration{
			500 * time.Millisecond,
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
		}, delays)
		gateway.AssertNumberOfCalls(t, "SendContextualUpdate", 5)
	})

	t.Run("delay never exceeds the cap", func(t *testing.T) {
		gateway := mocks.NewMockConversationGateway()
		var delays []time.Duration
		n := notifierForTest(gateway, services.NotifierConfig{
			MaxAttempts:  6,
			InitialDelay: 1 * time.Second,
			MaxDelay:     3 * time.Second,
		}, &delays)

		callID := uuid.New()
		gateway.On("SendContextualUpdate", ctx, callID, "m").
			Return(false, nil).Times(6)

		err := n.Deliver(ctx, callID, "m")

		assert.ErrorIs(t, err, apperrors.ErrDeliveryFailed)
		assert.Equal(t, []time.Duration{
			1 * time.Second,
			2 * time.Second,
			3 * time.Second,
			3 * time.Second,
			3 * time.Second,
		}, delays)
	})

	t.Run("transport error aborts the loop", func(t *testing.T) {
		gateway := mocks.NewMockConversationGateway()
		var delays []time.Duration
		n := notifierForTest(gateway, cfg, &delays)

		callID := uuid.New()
		gateway.On("SendContextualUpdate", ctx, callID, "m").
			Return(false, assert.AnError).Once()

		err := n.Deliver(ctx, callID, "m")

		assert.ErrorIs(t, err, assert.AnError)
		assert.Empty(t, delays)
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		gateway := mocks.NewMockConversationGateway()
		n := services.NewContextualNotifier(gateway, cfg, testLogger()).
			WithSleep(func(ctx context.Context, _ time.Duration) error {
				return context.Canceled
			})

		callID := uuid.New()
		gateway.On("SendContextualUpdate", ctx, callID, "m").
			Return(false, nil).Once()

		err := n.Deliver(ctx, callID, "m")

		assert.ErrorIs(t, err, context.Canceled)
		gateway.AssertNumberOfCalls(t, "SendContextualUpdate", 1)
	})
}
