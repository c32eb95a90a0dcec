package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lorrc/emergency-triage-backend/internal/adapters/primary/validation"
	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// CallHandler handles HTTP requests from the telephony/AI-bridge
// collaborator: call start and transcript pushes.
type CallHandler struct {
	callService  ports.CallService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewCallHandler creates a new call handler.
func NewCallHandler(callService ports.CallService, errorHandler *ErrorHandler, logger *slog.Logger) *CallHandler {
	return &CallHandler{
		callService:  callService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "call"),
	}
}

// RegisterRoutes sets up the routing for all call endpoints.
func (h *CallHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleStartCall)

	r.Route("/{callID}", func(r chi.Router) {
		r.Get("/", h.HandleGetCall)
		r.Patch("/transcript", h.HandleUpdateTranscript)
	})
}

// --- Request/Response DTOs ---

// CallDTO defines the JSON response for calls.
type CallDTO struct {
	ID             string  `json:"id"`
	PhoneNumber    string  `json:"phoneNumber,omitempty"`
	Status         string  `json:"status"`
	ConversationID string  `json:"conversationId,omitempty"`
	Transcript     string  `json:"transcript,omitempty"`
	StartedAt      string  `json:"startedAt"`
	UpdatedAt      *string `json:"updatedAt,omitempty"`
}

func toCallDTO(call *domain.Call) CallDTO {
	dto := CallDTO{
		ID:             call.ID.String(),
		PhoneNumber:    call.PhoneNumber,
		Status:         string(call.Status),
		ConversationID: call.ConversationID,
		Transcript:     call.Transcript,
		StartedAt:      call.StartedAt.Format(time.RFC3339),
	}

	if call.UpdatedAt != nil {
		value := call.UpdatedAt.Format(time.RFC3339)
		dto.UpdatedAt = &value
	}
	return dto
}

// StartCallRequest defines the expected JSON body for starting a call.
// All fields are optional: a bare POST still opens a call and queues it.
type StartCallRequest struct {
	PhoneNumber    string `json:"phoneNumber,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	ChiefComplaint string `json:"chiefComplaint,omitempty"`
}

// Validate validates the start call request.
func (r *StartCallRequest) Validate() error {
	v := validation.NewValidator()

	v.MaxLength("phoneNumber", r.PhoneNumber, 32)
	v.MaxLength("chiefComplaint", r.ChiefComplaint, 500)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// StartCallResponse carries the new call together with its queue entry.
type StartCallResponse struct {
	Call  CallDTO       `json:"call"`
	Entry QueueEntryDTO `json:"entry"`
}

// UpdateTranscriptRequest defines the expected JSON body for transcript
// pushes.
type UpdateTranscriptRequest struct {
	Transcript string `json:"transcript"`
}

// Validate validates the transcript update request.
func (r *UpdateTranscriptRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("transcript", r.Transcript)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// --- Handlers ---

// HandleStartCall handles POST /calls
func (h *CallHandler) HandleStartCall(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[StartCallRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	call, entry, err := h.callService.StartCall(r.Context(), ports.StartCallParams{
		PhoneNumber:    req.PhoneNumber,
		ConversationID: req.ConversationID,
		ChiefComplaint: req.ChiefComplaint,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("call started",
		"call_id", call.ID,
		"entry_id", entry.ID,
	)

	WriteJSON(w, http.StatusCreated, StartCallResponse{
		Call:  toCallDTO(call),
		Entry: toQueueEntryDTO(entry),
	})
}

// HandleGetCall handles GET /calls/{callID}
func (h *CallHandler) HandleGetCall(w http.ResponseWriter, r *http.Request) {
	callID, err := h.parseCallID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	call, err := h.callService.GetCall(r.Context(), callID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toCallDTO(call))
}

// HandleUpdateTranscript handles PATCH /calls/{callID}/transcript
func (h *CallHandler) HandleUpdateTranscript(w http.ResponseWriter, r *http.Request) {
	callID, err := h.parseCallID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[UpdateTranscriptRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	call, err := h.callService.UpdateTranscript(r.Context(), callID, req.Transcript)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toCallDTO(call))
}

// --- Helper methods ---

// parseCallID extracts and validates the call ID from the URL.
func (h *CallHandler) parseCallID(r *http.Request) (uuid.UUID, error) {
	callIDStr := chi.URLParam(r, "callID")
	callID, err := uuid.Parse(callIDStr)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("callID", false, "Invalid call ID")
		return uuid.Nil, v.Errors()
	}
	return callID, nil
}
