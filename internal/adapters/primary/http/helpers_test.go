package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	mw "github.com/lorrc/emergency-triage-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/emergency-triage-backend/internal/auth"
	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// noopBus satisfies ports.EventBus for handler tests, where event fan-out
// is not under test.
type noopBus struct{}

func (noopBus) Subscribe(handler ports.EventHandler, kinds ...domain.EventKind) {}
func (noopBus) Publish(ctx context.Context, event domain.Event)                {}

func testTokenManager() *auth.TokenManager {
	return auth.NewTokenManager("test-secret", time.Hour)
}

// newAuthedRequest builds a request carrying a valid operator token.
func newAuthedRequest(t *testing.T, tm *auth.TokenManager, operatorID uuid.UUID, method, target string, body any) *stdhttp.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	token, err := tm.GenerateToken(operatorID, "operator")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	return req
}

// newProtectedRouter wires a chi router with the JWT middleware, the way
// main mounts the protected API group.
func newProtectedRouter(tm *auth.TokenManager, mount string, register func(chi.Router)) *chi.Mux {
	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(mw.JWTMiddleware(tm))
		r.Route(mount, register)
	})
	return router
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&out))
	return out
}

func availableTestOperator() *domain.Operator {
	return &domain.Operator{
		ID:           uuid.New(),
		Email:        "op@example.com",
		Name:         "Op One",
		Role:         "operator",
		Status:       domain.OperatorAvailable,
		LastActiveAt: time.Now().UTC(),
	}
}
