package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lorrc/emergency-triage-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/emergency-triage-backend/internal/adapters/primary/validation"
	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// HandoffHandler handles HTTP requests for AI-to-human escalations.
type HandoffHandler struct {
	handoffService ports.HandoffService
	errorHandler   *ErrorHandler
	logger         *slog.Logger
}

// NewHandoffHandler creates a new handoff handler.
func NewHandoffHandler(handoffService ports.HandoffService, errorHandler *ErrorHandler, logger *slog.Logger) *HandoffHandler {
	return &HandoffHandler{
		handoffService: handoffService,
		errorHandler:   errorHandler,
		logger:         logger.With("handler", "handoff"),
	}
}

// RegisterRoutes sets up the routing for handoff endpoints.
func (h *HandoffHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleRequestHandoff)

	r.Route("/{handoffID}", func(r chi.Router) {
		r.Post("/accept", h.HandleAcceptHandoff)
		r.Post("/reject", h.HandleRejectHandoff)
		r.Post("/complete", h.HandleCompleteHandoff)
	})
}

// RegisterTakeControlRoute mounts the fast-path takeover endpoint. It sits
// outside the /handoffs subtree because it is addressed by call, not by an
// existing handoff.
func (h *HandoffHandler) RegisterTakeControlRoute(r chi.Router) {
	r.Post("/take-control", h.HandleTakeControl)
}

// --- Request/Response DTOs ---

// HandoffDTO defines the JSON response for handoffs.
type HandoffDTO struct {
	ID              string          `json:"id"`
	CallID          string          `json:"callId"`
	FromAgent       bool            `json:"fromAgent"`
	ToOperatorID    *string         `json:"toOperatorId,omitempty"`
	Reason          string          `json:"reason"`
	ConversationID  string          `json:"conversationId,omitempty"`
	Transcript      string          `json:"transcript,omitempty"`
	AIContext       json.RawMessage `json:"aiContext,omitempty"`
	PatientSummary  string          `json:"patientSummary,omitempty"`
	Status          string          `json:"status"`
	RequestedAt     string          `json:"requestedAt"`
	AcceptedAt      *string         `json:"acceptedAt,omitempty"`
	CompletedAt     *string         `json:"completedAt,omitempty"`
	HandoffDuration *int            `json:"handoffDuration,omitempty"`
}

func toHandoffDTO(handoff *domain.Handoff) HandoffDTO {
	dto := HandoffDTO{
		ID:              handoff.ID.String(),
		CallID:          handoff.CallID.String(),
		FromAgent:       handoff.FromAgent,
		Reason:          handoff.Reason,
		ConversationID:  handoff.ConversationID,
		Transcript:      handoff.Transcript,
		AIContext:       handoff.AIContext,
		PatientSummary:  handoff.PatientSummary,
		Status:          string(handoff.Status),
		RequestedAt:     handoff.RequestedAt.Format(time.RFC3339),
		HandoffDuration: handoff.HandoffDuration,
	}

	if handoff.ToOperatorID != nil {
		value := handoff.ToOperatorID.String()
		dto.ToOperatorID = &value
	}
	if handoff.AcceptedAt != nil {
		value := handoff.AcceptedAt.Format(time.RFC3339)
		dto.AcceptedAt = &value
	}
	if handoff.CompletedAt != nil {
		value := handoff.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &value
	}
	return dto
}

// RequestHandoffRequest defines the expected JSON body for a handoff
// request.
type RequestHandoffRequest struct {
	CallID         string          `json:"callId"`
	FromAgent      bool            `json:"fromAgent"`
	ToOperatorID   *string         `json:"toOperatorId,omitempty"`
	Reason         string          `json:"reason"`
	ConversationID string          `json:"conversationId,omitempty"`
	Transcript     string          `json:"transcript,omitempty"`
	AIContext      json.RawMessage `json:"aiContext,omitempty"`
	PatientSummary string          `json:"patientSummary,omitempty"`
}

// Validate validates the handoff request.
func (r *RequestHandoffRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("callId", r.CallID).
		UUID("callId", r.CallID)
	v.Required("reason", r.Reason)

	if r.ToOperatorID != nil {
		v.UUID("toOperatorId", *r.ToOperatorID)
	}

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// RejectHandoffRequest defines the expected JSON body for a rejection.
type RejectHandoffRequest struct {
	Reason string `json:"reason"`
}

// Validate validates the rejection request.
func (r *RejectHandoffRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("reason", r.Reason)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// TakeControlRequest defines the expected JSON body for a manual takeover.
type TakeControlRequest struct {
	CallID     string `json:"callId"`
	OperatorID string `json:"operatorId"`
	Reason     string `json:"reason,omitempty"`
}

// Validate validates the takeover request.
func (r *TakeControlRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("callId", r.CallID).
		UUID("callId", r.CallID)
	v.Required("operatorId", r.OperatorID).
		UUID("operatorId", r.OperatorID)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// TakeControlResponse carries the synthesized handoff and the live
// conversation handle for bridging.
type TakeControlResponse struct {
	Handoff        HandoffDTO `json:"handoff"`
	ConversationID string     `json:"conversationId,omitempty"`
}

// --- Handlers ---

// HandleRequestHandoff handles POST /handoffs
func (h *HandoffHandler) HandleRequestHandoff(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[RequestHandoffRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	callID, err := uuid.Parse(req.CallID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.RequestHandoffParams{
		CallID:         callID,
		FromAgent:      req.FromAgent,
		Reason:         req.Reason,
		ConversationID: req.ConversationID,
		Transcript:     req.Transcript,
		AIContext:      req.AIContext,
		PatientSummary: req.PatientSummary,
	}
	if req.ToOperatorID != nil {
		operatorID, err := uuid.Parse(*req.ToOperatorID)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		params.ToOperatorID = &operatorID
	}

	handoff, err := h.handoffService.RequestHandoff(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusCreated, toHandoffDTO(handoff))
}

// HandleAcceptHandoff handles POST /handoffs/{handoffID}/accept.
// The accepting operator is taken from the authenticated token; the first
// accept wins, later ones get a conflict.
func (h *HandoffHandler) HandleAcceptHandoff(w http.ResponseWriter, r *http.Request) {
	handoffID, err := h.parseHandoffID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return
	}

	handoff, err := h.handoffService.AcceptHandoff(r.Context(), handoffID, claims.OperatorID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("handoff accepted",
		"handoff_id", handoffID,
		"operator_id", claims.OperatorID,
	)

	WriteJSON(w, http.StatusOK, toHandoffDTO(handoff))
}

// HandleRejectHandoff handles POST /handoffs/{handoffID}/reject
func (h *HandoffHandler) HandleRejectHandoff(w http.ResponseWriter, r *http.Request) {
	handoffID, err := h.parseHandoffID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[RejectHandoffRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	handoff, err := h.handoffService.RejectHandoff(r.Context(), handoffID, req.Reason)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toHandoffDTO(handoff))
}

// HandleCompleteHandoff handles POST /handoffs/{handoffID}/complete
func (h *HandoffHandler) HandleCompleteHandoff(w http.ResponseWriter, r *http.Request) {
	handoffID, err := h.parseHandoffID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	handoff, err := h.handoffService.CompleteHandoff(r.Context(), handoffID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toHandoffDTO(handoff))
}

// HandleTakeControl handles POST /take-control
func (h *HandoffHandler) HandleTakeControl(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[TakeControlRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	callID, err := uuid.Parse(req.CallID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	operatorID, err := uuid.Parse(req.OperatorID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	result, err := h.handoffService.TakeControl(r.Context(), ports.TakeControlParams{
		CallID:     callID,
		OperatorID: operatorID,
		Reason:     req.Reason,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("operator took control",
		"call_id", callID,
		"operator_id", operatorID,
		"handoff_id", result.Handoff.ID,
	)

	WriteJSON(w, http.StatusOK, TakeControlResponse{
		Handoff:        toHandoffDTO(result.Handoff),
		ConversationID: result.ConversationID,
	})
}

// --- Helper methods ---

// parseHandoffID extracts and validates the handoff ID from the URL.
func (h *HandoffHandler) parseHandoffID(r *http.Request) (uuid.UUID, error) {
	handoffIDStr := chi.URLParam(r, "handoffID")
	handoffID, err := uuid.Parse(handoffIDStr)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("handoffID", false, "Invalid handoff ID")
		return uuid.Nil, v.Errors()
	}
	return handoffID, nil
}
