package http

import (
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mw "github.com/lorrc/emergency-triage-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	"github.com/lorrc/emergency-triage-backend/internal/core/mocks"
	"github.com/lorrc/emergency-triage-backend/internal/core/services"
)

type handoffRouterFixture struct {
	handoffRepo  *mocks.MockHandoffRepository
	callRepo     *mocks.MockCallRepository
	operatorRepo *mocks.MockOperatorRepository
	router       *chi.Mux
}

func newHandoffRouter() handoffRouterFixture {
	logger := testLogger()
	f := handoffRouterFixture{
		handoffRepo:  new(mocks.MockHandoffRepository),
		callRepo:     new(mocks.MockCallRepository),
		operatorRepo: new(mocks.MockOperatorRepository),
	}

	service := services.NewHandoffService(f.handoffRepo, f.callRepo, f.operatorRepo, noopBus{}, logger)
	handler := NewHandoffHandler(service, NewErrorHandler(logger), logger)

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(mw.JWTMiddleware(testTokenManager()))
		r.Route("/handoffs", handler.RegisterRoutes)
		handler.RegisterTakeControlRoute(r)
	})
	f.router = router
	return f
}

func TestHandoffHandlerRequest(t *testing.T) {
	f := newHandoffRouter()
	tm := testTokenManager()

	call := domain.NewCall("+15550000001", "conv-7")
	operator := availableTestOperator()

	f.callRepo.On("GetByID", mock.Anything, call.ID).Return(call, nil)
	f.operatorRepo.On("FirstAvailable", mock.Anything).Return(operator, nil)
	f.handoffRepo.On("Create", mock.Anything, mock.MatchedBy(func(h *domain.Handoff) bool {
		return h.Status == domain.HandoffRequested && h.ToOperatorID != nil && *h.ToOperatorID == operator.ID
	})).Return(&domain.Handoff{
		ID:           uuid.New(),
		CallID:       call.ID,
		FromAgent:    true,
		ToOperatorID: &operator.ID,
		Reason:       "caller asked for a human",
		Status:       domain.HandoffRequested,
	}, nil)

	req := newAuthedRequest(t, tm, operator.ID, stdhttp.MethodPost, "/handoffs",
		RequestHandoffRequest{
			CallID:    call.ID.String(),
			FromAgent: true,
			Reason:    "caller asked for a human",
		},
	)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusCreated, recorder.Code)

	dto := decodeBody[HandoffDTO](t, recorder)
	require.Equal(t, "REQUESTED", dto.Status)
	require.NotNil(t, dto.ToOperatorID)
	require.Equal(t, operator.ID.String(), *dto.ToOperatorID)
}

func TestHandoffHandlerAcceptUsesTokenOperator(t *testing.T) {
	f := newHandoffRouter()
	tm := testTokenManager()
	operatorID := uuid.New()

	handoff := domain.NewHandoff(domain.HandoffParams{
		CallID: uuid.New(),
		Reason: "escalation",
	})

	f.handoffRepo.On("GetByID", mock.Anything, handoff.ID).Return(handoff, nil)
	f.handoffRepo.On("Update", mock.Anything, mock.MatchedBy(func(h *domain.Handoff) bool {
		return h.Status == domain.HandoffAccepted && h.ToOperatorID != nil && *h.ToOperatorID == operatorID
	})).Return(handoff, nil)
	f.callRepo.On("SetStatus", mock.Anything, handoff.CallID, domain.CallEscalated).
		Return(&domain.Call{ID: handoff.CallID, Status: domain.CallEscalated}, nil)

	req := newAuthedRequest(t, tm, operatorID, stdhttp.MethodPost,
		"/handoffs/"+handoff.ID.String()+"/accept", nil)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	f.handoffRepo.AssertExpectations(t)
}

func TestHandoffHandlerAcceptConflict(t *testing.T) {
	f := newHandoffRouter()
	tm := testTokenManager()

	handoff := domain.NewHandoff(domain.HandoffParams{CallID: uuid.New(), Reason: "escalation"})
	winner := uuid.New()
	require.NoError(t, handoff.Accept(winner))

	f.handoffRepo.On("GetByID", mock.Anything, handoff.ID).Return(handoff, nil)

	req := newAuthedRequest(t, tm, uuid.New(), stdhttp.MethodPost,
		"/handoffs/"+handoff.ID.String()+"/accept", nil)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)

	response := decodeBody[ErrorResponse](t, recorder)
	require.Equal(t, "HANDOFF_ALREADY_ACCEPTED", response.Code)
}

func TestHandoffHandlerReject(t *testing.T) {
	f := newHandoffRouter()
	tm := testTokenManager()

	handoff := domain.NewHandoff(domain.HandoffParams{CallID: uuid.New(), Reason: "escalation"})

	f.handoffRepo.On("GetByID", mock.Anything, handoff.ID).Return(handoff, nil)
	f.handoffRepo.On("Update", mock.Anything, mock.MatchedBy(func(h *domain.Handoff) bool {
		return h.Status == domain.HandoffRejected && h.Reason == "operator tied up"
	})).Return(handoff, nil)

	req := newAuthedRequest(t, tm, uuid.New(), stdhttp.MethodPost,
		"/handoffs/"+handoff.ID.String()+"/reject",
		RejectHandoffRequest{Reason: "operator tied up"},
	)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	f.handoffRepo.AssertExpectations(t)
}

func TestHandoffHandlerTakeControl(t *testing.T) {
	f := newHandoffRouter()
	tm := testTokenManager()

	call := domain.NewCall("+15550000002", "conv-9")
	operatorID := uuid.New()

	f.callRepo.On("GetByID", mock.Anything, call.ID).Return(call, nil)
	f.handoffRepo.On("Create", mock.Anything, mock.MatchedBy(func(h *domain.Handoff) bool {
		return h.Status == domain.HandoffAccepted && h.AcceptedAt != nil
	})).Return(domain.NewManualTakeover(call.ID, operatorID, "deteriorating caller", call.ConversationID), nil)
	f.callRepo.On("SetStatus", mock.Anything, call.ID, domain.CallEscalated).
		Return(call, nil)

	req := newAuthedRequest(t, tm, operatorID, stdhttp.MethodPost, "/take-control",
		TakeControlRequest{
			CallID:     call.ID.String(),
			OperatorID: operatorID.String(),
			Reason:     "deteriorating caller",
		},
	)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	response := decodeBody[TakeControlResponse](t, recorder)
	require.Equal(t, "ACCEPTED", response.Handoff.Status)
	require.Equal(t, "conv-9", response.ConversationID)
}

func TestHandoffHandlerTakeControlCompletedCall(t *testing.T) {
	f := newHandoffRouter()
	tm := testTokenManager()

	call := domain.NewCall("+15550000003", "conv-10")
	call.Status = domain.CallCompleted

	f.callRepo.On("GetByID", mock.Anything, call.ID).Return(call, nil)

	req := newAuthedRequest(t, tm, uuid.New(), stdhttp.MethodPost, "/take-control",
		TakeControlRequest{
			CallID:     call.ID.String(),
			OperatorID: uuid.NewString(),
		},
	)
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)

	response := decodeBody[ErrorResponse](t, recorder)
	require.Equal(t, "CALL_ALREADY_COMPLETED", response.Code)
	f.handoffRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
