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

// QueueHandler handles HTTP requests for the triage queue.
type QueueHandler struct {
	queueService ports.QueueService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(queueService ports.QueueService, errorHandler *ErrorHandler, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		queueService: queueService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "queue"),
	}
}

// RegisterRoutes sets up the routing for all queue endpoints.
func (h *QueueHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListQueue)
	r.Get("/stats", h.HandleQueueStats)

	r.Route("/{entryID}", func(r chi.Router) {
		r.Get("/", h.HandleGetEntry)
		r.Post("/claim", h.HandleClaimEntry)
		r.Patch("/status", h.HandleUpdateStatus)
		r.Patch("/triage", h.HandleUpdateTriage)
	})
}

// --- Request/Response DTOs ---

// QueueEntryDTO defines the JSON response for queue entries.
type QueueEntryDTO struct {
	ID                 string                 `json:"id"`
	CallID             string                 `json:"callId"`
	Priority           string                 `json:"priority"`
	ChiefComplaint     string                 `json:"chiefComplaint,omitempty"`
	Summary            domain.ClinicalSummary `json:"summary"`
	Status             string                 `json:"status"`
	WaitingSince       string                 `json:"waitingSince"`
	WaitingTimeSeconds int64                  `json:"waitingTimeSeconds"`
	ClaimedBy          *string                `json:"claimedBy,omitempty"`
	ClaimedAt          *string                `json:"claimedAt,omitempty"`
	ConversationID     string                 `json:"conversationId,omitempty"`
}

func toQueueEntryDTO(entry *domain.QueueEntry) QueueEntryDTO {
	dto := QueueEntryDTO{
		ID:                 entry.ID.String(),
		CallID:             entry.CallID.String(),
		Priority:           entry.Priority.String(),
		ChiefComplaint:     entry.ChiefComplaint,
		Summary:            entry.Summary,
		Status:             string(entry.Status),
		WaitingSince:       entry.WaitingSince.Format(time.RFC3339),
		WaitingTimeSeconds: entry.WaitingTimeSeconds(time.Now().UTC()),
		ConversationID:     entry.ConversationID,
	}

	if entry.ClaimedBy != nil {
		value := entry.ClaimedBy.String()
		dto.ClaimedBy = &value
	}
	if entry.ClaimedAt != nil {
		value := entry.ClaimedAt.Format(time.RFC3339)
		dto.ClaimedAt = &value
	}
	return dto
}

func toQueueEntryDTOs(entries []*domain.QueueEntry) []QueueEntryDTO {
	response := make([]QueueEntryDTO, 0, len(entries))
	for _, entry := range entries {
		response = append(response, toQueueEntryDTO(entry))
	}
	return response
}

// ClaimEntryRequest defines the expected JSON body for claiming an entry.
type ClaimEntryRequest struct {
	OperatorID string `json:"operatorId"`
}

// Validate validates the claim request.
func (r *ClaimEntryRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("operatorId", r.OperatorID).
		UUID("operatorId", r.OperatorID)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// UpdateQueueStatusRequest defines the expected JSON body for status updates.
type UpdateQueueStatusRequest struct {
	Status string `json:"status"`
}

// Validate validates the status update request. CLAIMED is absent on
// purpose: claims go through the claim endpoint.
func (r *UpdateQueueStatusRequest) Validate() error {
	v := validation.NewValidator()

	v.Required("status", r.Status).
		OneOf("status", r.Status, []string{"IN_PROGRESS", "COMPLETED", "ABANDONED"})

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// UpdateTriageRequest defines the expected JSON body for triage refinement.
type UpdateTriageRequest struct {
	Priority       *string                 `json:"priority,omitempty"`
	ChiefComplaint *string                 `json:"chiefComplaint,omitempty"`
	Summary        *domain.ClinicalSummary `json:"summary,omitempty"`
}

// Validate validates the triage update request.
func (r *UpdateTriageRequest) Validate() error {
	v := validation.NewValidator()

	if r.Priority != nil {
		v.OneOf("priority", *r.Priority, []string{"P0", "P1", "P2", "P3"})
	}
	v.Custom("body", r.Priority != nil || r.ChiefComplaint != nil || r.Summary != nil,
		"At least one field must be provided")

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// QueueStatsDTO defines the JSON response for queue statistics.
type QueueStatsDTO struct {
	CountsByStatus     map[string]int `json:"countsByStatus"`
	WaitingCount       int            `json:"waitingCount"`
	AverageWaitSeconds float64        `json:"averageWaitSeconds"`
}

// --- Handlers ---

// HandleListQueue handles GET /queue
func (h *QueueHandler) HandleListQueue(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	params := ports.ListQueueParams{}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := domain.QueueStatus(statusStr)
		if !domain.ValidQueueStatus(status) {
			v.Custom("status", false, "Unknown queue status")
		} else {
			params.Status = &status
		}
	}

	if priorityStr := r.URL.Query().Get("priority"); priorityStr != "" {
		priority, err := domain.ParsePriority(priorityStr)
		if err != nil {
			v.Custom("priority", false, "Must be one of: P0, P1, P2, P3")
		} else {
			params.Priority = &priority
		}
	}

	if v.HasErrors() {
		h.errorHandler.Handle(w, r, v.Errors())
		return
	}

	entries, err := h.queueService.ListQueue(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteList(w, toQueueEntryDTOs(entries))
}

// HandleQueueStats handles GET /queue/stats
func (h *QueueHandler) HandleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queueService.GetQueueStats(r.Context())
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	counts := make(map[string]int, len(stats.CountsByStatus))
	for status, count := range stats.CountsByStatus {
		counts[string(status)] = count
	}

	WriteJSON(w, http.StatusOK, QueueStatsDTO{
		CountsByStatus:     counts,
		WaitingCount:       stats.WaitingCount,
		AverageWaitSeconds: stats.AverageWaitSeconds,
	})
}

// HandleGetEntry handles GET /queue/{entryID}
func (h *QueueHandler) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := h.parseEntryID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	entry, err := h.queueService.GetQueueEntry(r.Context(), entryID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toQueueEntryDTO(entry))
}

// HandleClaimEntry handles POST /queue/{entryID}/claim
func (h *QueueHandler) HandleClaimEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := h.parseEntryID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[ClaimEntryRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	operatorID, err := uuid.Parse(req.OperatorID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	entry, err := h.queueService.ClaimQueueEntry(r.Context(), entryID, operatorID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("queue entry claimed",
		"entry_id", entryID,
		"operator_id", operatorID,
	)

	WriteJSON(w, http.StatusOK, toQueueEntryDTO(entry))
}

// HandleUpdateStatus handles PATCH /queue/{entryID}/status
func (h *QueueHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	entryID, err := h.parseEntryID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[UpdateQueueStatusRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	entry, err := h.queueService.UpdateQueueStatus(r.Context(), entryID, domain.QueueStatus(req.Status))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toQueueEntryDTO(entry))
}

// HandleUpdateTriage handles PATCH /queue/{entryID}/triage
func (h *QueueHandler) HandleUpdateTriage(w http.ResponseWriter, r *http.Request) {
	entryID, err := h.parseEntryID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[UpdateTriageRequest](r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	if err := req.Validate(); err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	params := ports.UpdateTriageParams{
		EntryID:        entryID,
		ChiefComplaint: req.ChiefComplaint,
		Summary:        req.Summary,
	}
	if req.Priority != nil {
		priority, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		params.Priority = &priority
	}

	entry, err := h.queueService.UpdateTriage(r.Context(), params)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("queue entry re-triaged",
		"entry_id", entryID,
		"priority", entry.Priority.String(),
	)

	WriteJSON(w, http.StatusOK, toQueueEntryDTO(entry))
}

// --- Helper methods ---

// parseEntryID extracts and validates the entry ID from the URL.
func (h *QueueHandler) parseEntryID(r *http.Request) (uuid.UUID, error) {
	entryIDStr := chi.URLParam(r, "entryID")
	entryID, err := uuid.Parse(entryIDStr)
	if err != nil {
		v := validation.NewValidator()
		v.Custom("entryID", false, "Invalid entry ID")
		return uuid.Nil, v.Errors()
	}
	return entryID, nil
}
