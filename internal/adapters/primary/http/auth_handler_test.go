package http

import (
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/mocks"
	"github.com/lorrc/emergency-triage-backend/internal/core/services"
)

func newAuthRouter(repo *mocks.MockOperatorRepository) *chi.Mux {
	logger := testLogger()
	authService := services.NewAuthService(repo, logger)
	handler := NewAuthHandler(authService, testTokenManager(), NewErrorHandler(logger), logger)

	router := chi.NewRouter()
	router.Route("/auth", handler.RegisterRoutes)
	return router
}

func TestAuthHandlerLogin(t *testing.T) {
	repo := new(mocks.MockOperatorRepository)
	router := newAuthRouter(repo)

	operator := availableTestOperator()
	hash, err := services.HashPassword("correct horse battery")
	require.NoError(t, err)
	operator.PasswordHash = hash

	repo.On("GetByEmail", mock.Anything, operator.Email).Return(operator, nil)

	req := newAuthedRequest(t, testTokenManager(), operator.ID, stdhttp.MethodPost, "/auth/login",
		LoginRequest{Email: operator.Email, Password: "correct horse battery"},
	)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	response := decodeBody[LoginResponse](t, recorder)
	require.NotEmpty(t, response.Token)
	require.Equal(t, operator.ID.String(), response.Operator.ID)

	// The issued token must round-trip through the validator.
	claims, err := testTokenManager().ValidateToken(response.Token)
	require.NoError(t, err)
	require.Equal(t, operator.ID, claims.OperatorID)
	require.Equal(t, operator.Role, claims.Role)
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	repo := new(mocks.MockOperatorRepository)
	router := newAuthRouter(repo)

	operator := availableTestOperator()
	hash, err := services.HashPassword("correct horse battery")
	require.NoError(t, err)
	operator.PasswordHash = hash

	repo.On("GetByEmail", mock.Anything, operator.Email).Return(operator, nil)

	req := newAuthedRequest(t, testTokenManager(), operator.ID, stdhttp.MethodPost, "/auth/login",
		LoginRequest{Email: operator.Email, Password: "wrong"},
	)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusUnauthorized, recorder.Code)

	response := decodeBody[ErrorResponse](t, recorder)
	require.Equal(t, "INVALID_CREDENTIALS", response.Code)
}

func TestAuthHandlerLoginUnknownAccount(t *testing.T) {
	repo := new(mocks.MockOperatorRepository)
	router := newAuthRouter(repo)

	repo.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(nil, apperrors.ErrOperatorNotFound)

	req := newAuthedRequest(t, testTokenManager(), availableTestOperator().ID, stdhttp.MethodPost, "/auth/login",
		LoginRequest{Email: "ghost@example.com", Password: "whatever"},
	)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	// Indistinguishable from a wrong password.
	require.Equal(t, stdhttp.StatusUnauthorized, recorder.Code)

	response := decodeBody[ErrorResponse](t, recorder)
	require.Equal(t, "INVALID_CREDENTIALS", response.Code)
}

func TestAuthHandlerLoginMalformedEmail(t *testing.T) {
	repo := new(mocks.MockOperatorRepository)
	router := newAuthRouter(repo)

	req := newAuthedRequest(t, testTokenManager(), availableTestOperator().ID, stdhttp.MethodPost, "/auth/login",
		LoginRequest{Email: "not-an-email", Password: "whatever"},
	)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, stdhttp.StatusUnprocessableEntity, recorder.Code)
	repo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}
