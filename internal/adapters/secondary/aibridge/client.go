// Package aibridge talks to the external AI conversation bridge, the
// collaborator that runs the voice/LLM session for each call.
package aibridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lorrc/emergency-triage-backend/internal/config"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// Client implements ports.ConversationGateway over the bridge's HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.ConversationGateway = (*Client)(nil)

// NewClient creates a bridge client from configuration.
func NewClient(cfg config.AIBridgeConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger.With("component", "aibridge_client"),
	}
}

type contextualUpdateRequest struct {
	Message string `json:"message"`
}

// SendContextualUpdate injects a system message into the call's live AI
// session. The bridge answers 404 or 409 while the session socket has not
// attached yet; that is reported as not-delivered rather than an error so
// the caller can retry.
func (c *Client) SendContextualUpdate(ctx context.Context, callID uuid.UUID, message string) (bool, error) {
	body, err := json.Marshal(contextualUpdateRequest{Message: message})
	if err != nil {
		return false, fmt.Errorf("encode contextual update: %w", err)
	}

	url := fmt.Sprintf("%s/calls/%s/contextual-update", c.baseURL, callID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build contextual update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("send contextual update: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusConflict:
		c.logger.Debug("conversation session not attached yet",
			"call_id", callID,
			"status", resp.StatusCode,
		)
		return false, nil
	default:
		return false, fmt.Errorf("contextual update rejected: status %d", resp.StatusCode)
	}
}
