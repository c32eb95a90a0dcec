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

// OperatorHandler handles HTTP requests for operators.
type OperatorHandler struct {
	operatorService ports.OperatorService
	queueService    ports.QueueService
	errorHandler    *ErrorHandler
	logger          *slog.Logger
}

// NewOperatorHandler creates a new operator handler.
func NewOperatorHandler(
	operatorService ports.OperatorService,
	queueService ports.QueueService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *OperatorHandler {
	return &OperatorHandler{
		operatorService: operatorService,
		queueService:    queueService,
		errorHandler:    errorHandler,
		logger:          logger.With("handler", "operator"),
	}
}

// RegisterRoutes sets up the routing for all operator endpoints.
func (h *OperatorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListOperators)

	r.Route("/{operatorID}", func(r chi.Router) {
		r.Get("/", h.HandleGetOperator)
		r.Patch("/status", h.HandleSetStatus)
		r.Post("/complete-call", h.HandleCompleteCall)
		r.Post("/claim/{entryID}", h.HandleClaimForOperator)
	})
}

// --- Request/Response DTOs ---

// OperatorDTO defines the JSON response for operators.
type OperatorDTO struct {
	ID                string  `json:"id"`
	Email             string  `json:"email"`
	Name              string  `json:"name"`
	Role              string  `json:"role"`
	Status            string  `json:"status"`
	LastActiveAt      string  `json:"lastActiveAt"`
	TotalCallsHandled int     `json:"totalCallsHandled"`
	AverageHandleTime int     `json:"averageHandleTime"`
	CurrentCallID     *string `json:"currentCallId,omitempty"`
}

func toOperatorDTO(op *domain.Operator) OperatorDTO {
	dto := OperatorDTO{
		ID:                op.ID.String(),
		Email:             op.Email,
		Name:              op.Name,
		Role:              op.Role,
		Status:            string(op.Status),
		LastActiveAt:      op.LastActiveAt.Format(time.RFC3339),
		TotalCallsHandled: op.TotalCallsHandled,
		AverageHandleTime: op.AverageHandleTime,
	}

	if op.CurrentCallID != nil {
		value := op.CurrentCallID.String()
		dto.CurrentCallID = &value
	}
	return dto
}

func toOperatorDTOs(operators []*domain.Operator) []OperatorDTO {
	response := make([]OperatorDTO, 0, len(operators))
	for _, op := range operators {
		response = append(response, toOperatorDTO(op))
	}
	return response
}

// SetOperatorStatusRequest defines the expected JSON body for status changes.
type SetOperatorStatusRequest struct {
	Status string  `json:"status"`
	CallID *string `json:"callId,omitempty"`
}

// Validate validates the status change request.
func (r *SetOperatorStatusRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("status", r.Status).
		OneOf("status", r.Status, []string{"AVAILABLE", "BUSY", "OFFLINE", "ON_BREAK"})

	if r.CallID != nil {
		v.UUID("callId", *r.CallID)
	}
	v.RequiredIf("callId", stringOrEmpty(r.CallID), r.Status == "BUSY", "callId is required for BUSY")

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CompleteCallRequest defines the expected JSON body for call completion.
type CompleteCallRequest struct {
	HandleTimeSeconds int `json:"handleTimeSeconds"`
}

// Validate validates the complete call request.
func (r *CompleteCallRequest) Validate() error {
	v := validation.NewValidator()

	v.Min("handleTimeSeconds", r.HandleTimeSeconds, 0)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// --- Handlers ---

// HandleListOperators handles GET /operators
func (h *OperatorHandler) HandleListOperators(w http.ResponseWriter, r *http.Request) {
	operators, err := h.operatorService.ListOperators(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, toOperatorDTOs(operators))
}

// HandleGetOperator handles GET /operators/{operatorID}
func (h *OperatorHandler) HandleGetOperator(w http.ResponseWriter, r *http.Request) {
	operatorID, err := h.parseOperatorID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	operator, err := h.operatorService.GetOperator(r.Context(), operatorID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toOperatorDTO(operator))
}

// HandleSetStatus handles PATCH /operators/{operatorID}/status
func (h *OperatorHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	operatorID, err := h.parseOperatorID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[SetOperatorStatusRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.SetOperatorStatusParams{
		OperatorID: operatorID,
		Status:     domain.OperatorStatus(req.Status),
	}
	if req.CallID != nil {
		callID, err := uuid.Parse(*req.CallID)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		params.CallID = &callID
	}

	operator, err := h.operatorService.SetStatus(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("operator status changed",
		"operator_id", operatorID,
		"new_status", req.Status,
	)

	WriteJSON(w, http.StatusOK, toOperatorDTO(operator))
}

// HandleCompleteCall handles POST /operators/{operatorID}/complete-call
func (h *OperatorHandler) HandleCompleteCall(w http.ResponseWriter, r *http.Request) {
	operatorID, err := h.parseOperatorID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[CompleteCallRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	operator, err := h.operatorService.CompleteCall(r.Context(), operatorID, req.HandleTimeSeconds)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toOperatorDTO(operator))
}

// HandleClaimForOperator handles POST /operators/{operatorID}/claim/{entryID}.
// It claims the entry and binds the operator to the underlying call in one
// request; a claim that wins but whose operator cannot go BUSY is surfaced
// to the caller, the claim itself stands.
func (h *OperatorHandler) HandleClaimForOperator(w http.ResponseWriter, r *http.Request) {
	operatorID, err := h.parseOperatorID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	entryIDStr := chi.URLParam(r, "entryID")
	entryID, err := uuid.Parse(entryIDStr)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("entryID", false, "Invalid entry ID")
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	entry, err := h.queueService.ClaimQueueEntry(r.Context(), entryID, operatorID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	callID := entry.CallID
	operator, err := h.operatorService.SetStatus(r.Context(), ports.SetOperatorStatusParams{
		OperatorID: operatorID,
		Status:     domain.OperatorBusy,
		CallID:     &callID,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("entry claimed for operator",
		"entry_id", entryID,
		"operator_id", operatorID,
		"call_id", callID,
	)

	WriteJSON(w, http.StatusOK, struct {
		Entry    QueueEntryDTO `json:"entry"`
		Operator OperatorDTO   `json:"operator"`
	}{
		Entry:    toQueueEntryDTO(entry),
		Operator: toOperatorDTO(operator),
	})
}

// --- Helper methods ---

// parseOperatorID extracts and validates the operator ID from the URL.
func (h *OperatorHandler) parseOperatorID(r *http.Request) (uuid.UUID, error) {
	operatorIDStr := chi.URLParam(r, "operatorID")
	operatorID, err := uuid.Parse(operatorIDStr)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("operatorID", false, "Invalid operator ID")
		return uuid.Nil, v.Errors()
	}
	return operatorID, nil
}
