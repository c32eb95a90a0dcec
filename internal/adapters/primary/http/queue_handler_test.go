package http

import (
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/mocks"
	"github.com/lorrc/emergency-triage-backend/internal/core/services"
)

func newQueueRouter(repo *mocks.MockQueueRepository) (*chi.Mux, *QueueHandler) {
	logger := testLogger()
	service := services.NewQueueService(repo, noopBus{}, logger)
	handler := NewQueueHandler(service, NewErrorHandler(logger), logger)

	router := newProtectedRouter(testTokenManager(), "/queue", handler.RegisterRoutes)
	return router, handler
}

func TestQueueHandlerClaim(t *testing.T) {
	repo := new(mocks.MockQueueRepository)
	router, _ := newQueueRouter(repo)
	tm := testTokenManager()

	operatorID := uuid.New()
	entry := domain.NewQueueEntry(uuid.New(), "chest pain", "conv-1")
	now := time.Now().UTC()
	entry.Status = domain.QueueStatusClaimed
	entry.ClaimedBy = &operatorID
	entry.ClaimedAt = &now

	repo.On("Claim", mock.Anything, entry.ID, operatorID, mock.Anything).Return(entry, nil)

	req := newAuthedRequest(t, tm, operatorID, stdhttp.MethodPost,
		"/queue/"+entry.ID.String()+"/claim",
		ClaimEntryRequest{OperatorID: operatorID.String()},
	)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	dto := decodeBody[QueueEntryDTO](t, recorder)
	require.Equal(t, entry.ID.String(), dto.ID)
	require.Equal(t, "CLAIMED", dto.Status)
	require.NotNil(t, dto.ClaimedBy)
	require.Equal(t, operatorID.String(), *dto.ClaimedBy)
	repo.AssertExpectations(t)
}

func TestQueueHandlerClaimConflict(t *testing.T) {
	repo := new(mocks.MockQueueRepository)
	router, _ := newQueueRouter(repo)
	tm := testTokenManager()

	entryID := uuid.New()
	operatorID := uuid.New()
	repo.On("Claim", mock.Anything, entryID, operatorID, mock.Anything).
		Return(nil, apperrors.ErrAlreadyClaimed)

	req := newAuthedRequest(t, tm, operatorID, stdhttp.MethodPost,
		"/queue/"+entryID.String()+"/claim",
		ClaimEntryRequest{OperatorID: operatorID.String()},
	)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	// The race loser gets 400; the distinct code tells it apart from 404.
	require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)

	response := decodeBody[ErrorResponse](t, recorder)
	require.Equal(t, "ALREADY_CLAIMED", response.Code)
}

func TestQueueHandlerClaimRequiresToken(t *testing.T) {
	repo := new(mocks.MockQueueRepository)
	router, _ := newQueueRouter(repo)

	req := httptest.NewRequest(stdhttp.MethodPost, "/queue/"+uuid.NewString()+"/claim", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusUnauthorized, recorder.Code)
	repo.AssertNotCalled(t, "Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestQueueHandlerList(t *testing.T) {
	repo := new(mocks.MockQueueRepository)
	router, _ := newQueueRouter(repo)
	tm := testTokenManager()

	urgent := domain.NewQueueEntry(uuid.New(), "cardiac arrest", "conv-1")
	urgent.Priority = domain.PriorityP0
	later := domain.NewQueueEntry(uuid.New(), "sprained ankle", "conv-2")

	repo.On("List", mock.Anything, mock.Anything).
		Return([]*domain.QueueEntry{urgent, later}, nil)

	req := newAuthedRequest(t, tm, uuid.New(), stdhttp.MethodGet, "/queue?status=WAITING", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	response := decodeBody[ListResponse[QueueEntryDTO]](t, recorder)
	require.Equal(t, 2, response.Count)
	require.Equal(t, "P0", response.Data[0].Priority)
	require.Equal(t, "P3", response.Data[1].Priority)
}

func TestQueueHandlerListRejectsUnknownStatus(t *testing.T) {
	repo := new(mocks.MockQueueRepository)
	router, _ := newQueueRouter(repo)
	tm := testTokenManager()

	req := newAuthedRequest(t, tm, uuid.New(), stdhttp.MethodGet, "/queue?status=PENDING", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)
	repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestQueueHandlerUpdateStatusRejectsClaimed(t *testing.T) {
	// CLAIMED is only reachable through the claim endpoint; the status
	// endpoint refuses it at validation time.
	repo := new(mocks.MockQueueRepository)
	router, _ := newQueueRouter(repo)
	tm := testTokenManager()

	req := newAuthedRequest(t, tm, uuid.New(), stdhttp.MethodPatch,
		"/queue/"+uuid.NewString()+"/status",
		UpdateQueueStatusRequest{Status: "CLAIMED"},
	)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)
}

func TestQueueHandlerUpdateTriage(t *testing.T) {
	repo := new(mocks.MockQueueRepository)
	router, _ := newQueueRouter(repo)
	tm := testTokenManager()

	entry := domain.NewQueueEntry(uuid.New(), "breathing difficulty", "conv-1")
	refined := *entry
	refined.Priority = domain.PriorityP1

	repo.On("GetByID", mock.Anything, entry.ID).Return(entry, nil)
	repo.On("UpdateTriage", mock.Anything, mock.MatchedBy(func(e *domain.QueueEntry) bool {
		return e.Priority == domain.PriorityP1
	})).Return(&refined, nil)

	priority := "P1"
	req := newAuthedRequest(t, tm, uuid.New(), stdhttp.MethodPatch,
		"/queue/"+entry.ID.String()+"/triage",
		UpdateTriageRequest{Priority: &priority},
	)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	dto := decodeBody[QueueEntryDTO](t, recorder)
	require.Equal(t, "P1", dto.Priority)
	repo.AssertExpectations(t)
}

func TestQueueHandlerUpdateTriageRequiresAField(t *testing.T) {
	repo := new(mocks.MockQueueRepository)
	router, _ := newQueueRouter(repo)
	tm := testTokenManager()

	req := newAuthedRequest(t, tm, uuid.New(), stdhttp.MethodPatch,
		"/queue/"+uuid.NewString()+"/triage",
		UpdateTriageRequest{},
	)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)
}

func TestQueueHandlerStats(t *testing.T) {
	repo := new(mocks.MockQueueRepository)
	router, _ := newQueueRouter(repo)
	tm := testTokenManager()

	repo.On("Stats", mock.Anything).Return(&domain.QueueStats{
		CountsByStatus: map[domain.QueueStatus]int{
			domain.QueueStatusWaiting: 3,
			domain.QueueStatusClaimed: 1,
		},
		WaitingCount:       3,
		AverageWaitSeconds: 42.5,
	}, nil)

	req := newAuthedRequest(t, tm, uuid.New(), stdhttp.MethodGet, "/queue/stats", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	dto := decodeBody[QueueStatsDTO](t, recorder)
	require.Equal(t, 3, dto.WaitingCount)
	require.Equal(t, 3, dto.CountsByStatus["WAITING"])
	require.InDelta(t, 42.5, dto.AverageWaitSeconds, 0.001)
}
