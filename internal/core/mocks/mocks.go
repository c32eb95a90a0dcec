package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// MockQueueRepository is a mock implementation of ports.QueueRepository
type MockQueueRepository struct {
	mock.Mock
}

func NewMockQueueRepository() *MockQueueRepository {
	return &MockQueueRepository{}
}

func (m *MockQueueRepository) Create(ctx context.Context, entry *domain.QueueEntry) (*domain.QueueEntry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) List(ctx context.Context, params ports.ListQueueParams) ([]*domain.QueueEntry, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) ListActive(ctx context.Context) ([]*domain.QueueEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) Claim(ctx context.Context, entryID, operatorID uuid.UUID, claimedAt time.Time) (*domain.QueueEntry, error) {
	args := m.Called(ctx, entryID, operatorID, claimedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) SetStatus(ctx context.Context, entryID uuid.UUID, expected, next domain.QueueStatus) (*domain.QueueEntry, error) {
	args := m.Called(ctx, entryID, expected, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) UpdateTriage(ctx context.Context, entry *domain.QueueEntry) (*domain.QueueEntry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) Stats(ctx context.Context) (*domain.QueueStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueStats), args.Error(1)
}

func (m *MockQueueRepository) Head(ctx context.Context, floor domain.Priority) (*domain.QueueEntry, error) {
	args := m.Called(ctx, floor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueEntry), args.Error(1)
}

// MockOperatorRepository is a mock implementation of ports.OperatorRepository
type MockOperatorRepository struct {
	mock.Mock
}

func NewMockOperatorRepository() *MockOperatorRepository {
	return &MockOperatorRepository{}
}

func (m *MockOperatorRepository) Create(ctx context.Context, op *domain.Operator) (*domain.Operator, error) {
	args := m.Called(ctx, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

func (m *MockOperatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

func (m *MockOperatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

func (m *MockOperatorRepository) List(ctx context.Context) ([]*domain.Operator, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Operator), args.Error(1)
}

func (m *MockOperatorRepository) Update(ctx context.Context, op *domain.Operator) (*domain.Operator, error) {
	args := m.Called(ctx, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

func (m *MockOperatorRepository) FirstAvailable(ctx context.Context) (*domain.Operator, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

// MockHandoffRepository is a mock implementation of ports.HandoffRepository
type MockHandoffRepository struct {
	mock.Mock
}

func NewMockHandoffRepository() *MockHandoffRepository {
	return &MockHandoffRepository{}
}

func (m *MockHandoffRepository) Create(ctx context.Context, h *domain.Handoff) (*domain.Handoff, error) {
	args := m.Called(ctx, h)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Handoff), args.Error(1)
}

func (m *MockHandoffRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Handoff, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Handoff), args.Error(1)
}

func (m *MockHandoffRepository) Update(ctx context.Context, h *domain.Handoff) (*domain.Handoff, error) {
	args := m.Called(ctx, h)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Handoff), args.Error(1)
}

func (m *MockHandoffRepository) ListByCallID(ctx context.Context, callID uuid.UUID) ([]*domain.Handoff, error) {
	args := m.Called(ctx, callID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Handoff), args.Error(1)
}

// MockCallRepository is a mock implementation of ports.CallRepository
type MockCallRepository struct {
	mock.Mock
}

func NewMockCallRepository() *MockCallRepository {
	return &MockCallRepository{}
}

func (m *MockCallRepository) Create(ctx context.Context, call *domain.Call) (*domain.Call, error) {
	args := m.Called(ctx, call)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Call), args.Error(1)
}

func (m *MockCallRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Call, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Call), args.Error(1)
}

func (m *MockCallRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.CallStatus) (*domain.Call, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Call), args.Error(1)
}

func (m *MockCallRepository) UpdateTranscript(ctx context.Context, id uuid.UUID, transcript string) (*domain.Call, error) {
	args := m.Called(ctx, id, transcript)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Call), args.Error(1)
}

// MockConversationGateway is a mock implementation of ports.ConversationGateway
type MockConversationGateway struct {
	mock.Mock
}

func NewMockConversationGateway() *MockConversationGateway {
	return &MockConversationGateway{}
}

func (m *MockConversationGateway) SendContextualUpdate(ctx context.Context, callID uuid.UUID, message string) (bool, error) {
	args := m.Called(ctx, callID, message)
	return args.Bool(0), args.Error(1)
}

// MockContextualNotifier is a mock implementation of ports.ContextualNotifier
type MockContextualNotifier struct {
	mock.Mock
}

func NewMockContextualNotifier() *MockContextualNotifier {
	return &MockContextualNotifier{}
}

func (m *MockContextualNotifier) Deliver(ctx context.Context, callID uuid.UUID, message string) error {
	args := m.Called(ctx, callID, message)
	return args.Error(0)
}
