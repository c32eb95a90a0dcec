package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

const handoffColumns = `id, call_id, from_agent, to_operator_id, reason, conversation_id,
	transcript, ai_context, patient_summary, status, requested_at, accepted_at,
	completed_at, handoff_duration`

// HandoffRepository is the secondary adapter for handoff persistence.
// Handoff rows are append-mostly and retained for audit.
type HandoffRepository struct {
	pool *pgxpool.Pool
}

// Ensure HandoffRepository implements the ports.HandoffRepository interface.
var _ ports.HandoffRepository = (*HandoffRepository)(nil)

// NewHandoffRepository creates a new handoff repository.
func NewHandoffRepository(pool *pgxpool.Pool) *HandoffRepository {
	return &HandoffRepository{pool: pool}
}

func scanHandoff(row pgx.Row) (*domain.Handoff, error) {
	var (
		h              domain.Handoff
		toOperatorID   pgtype.UUID
		reason         pgtype.Text
		conversationID pgtype.Text
		transcript     pgtype.Text
		patientSummary pgtype.Text
		acceptedAt     pgtype.Timestamptz
		completedAt    pgtype.Timestamptz
		duration       pgtype.Int4
	)

	err := row.Scan(
		&h.ID,
		&h.CallID,
		&h.FromAgent,
		&toOperatorID,
		&reason,
		&conversationID,
		&transcript,
		&h.AIContext,
		&patientSummary,
		&h.Status,
		&h.RequestedAt,
		&acceptedAt,
		&completedAt,
		&duration,
	)
	if err != nil {
		return nil, err
	}

	h.Reason = reason.String
	h.ConversationID = conversationID.String
	h.Transcript = transcript.String
	h.PatientSummary = patientSummary.String
	if toOperatorID.Valid {
		id := uuid.UUID(toOperatorID.Bytes)
		h.ToOperatorID = &id
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		h.AcceptedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		h.CompletedAt = &t
	}
	if duration.Valid {
		d := int(duration.Int32)
		h.HandoffDuration = &d
	}
	return &h, nil
}

func toOperatorParam(h *domain.Handoff) pgtype.UUID {
	if h.ToOperatorID != nil {
		return pgtype.UUID{Bytes: *h.ToOperatorID, Valid: true}
	}
	return pgtype.UUID{}
}

// Create persists a new handoff record.
func (r *HandoffRepository) Create(ctx context.Context, h *domain.Handoff) (*domain.Handoff, error) {
	var acceptedAt pgtype.Timestamptz
	if h.AcceptedAt != nil {
		acceptedAt = pgtype.Timestamptz{Time: *h.AcceptedAt, Valid: true}
	}

	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		INSERT INTO handoffs (id, call_id, from_agent, to_operator_id, reason, conversation_id,
			transcript, ai_context, patient_summary, status, requested_at, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+handoffColumns,
		h.ID, h.CallID, h.FromAgent, toOperatorParam(h), h.Reason, h.ConversationID,
		h.Transcript, h.AIContext, h.PatientSummary, h.Status, h.RequestedAt, acceptedAt,
	)

	return scanHandoff(row)
}

// GetByID retrieves a single handoff by ID.
func (r *HandoffRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Handoff, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `SELECT `+handoffColumns+` FROM handoffs WHERE id = $1`, id)

	h, err := scanHandoff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrHandoffNotFound
		}
		return nil, err
	}
	return h, nil
}

// Update persists the handoff's state machine fields.
func (r *HandoffRepository) Update(ctx context.Context, h *domain.Handoff) (*domain.Handoff, error) {
	var acceptedAt, completedAt pgtype.Timestamptz
	if h.AcceptedAt != nil {
		acceptedAt = pgtype.Timestamptz{Time: *h.AcceptedAt, Valid: true}
	}
	if h.CompletedAt != nil {
		completedAt = pgtype.Timestamptz{Time: *h.CompletedAt, Valid: true}
	}
	var duration pgtype.Int4
	if h.HandoffDuration != nil {
		duration = pgtype.Int4{Int32: int32(*h.HandoffDuration), Valid: true}
	}

	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		UPDATE handoffs
		SET status = $2, to_operator_id = $3, reason = $4,
		    accepted_at = $5, completed_at = $6, handoff_duration = $7
		WHERE id = $1
		RETURNING `+handoffColumns,
		h.ID, h.Status, toOperatorParam(h), h.Reason, acceptedAt, completedAt, duration,
	)

	updated, err := scanHandoff(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrHandoffNotFound
		}
		return nil, err
	}
	return updated, nil
}

// ListByCallID retrieves all handoff episodes of one call, oldest first.
func (r *HandoffRepository) ListByCallID(ctx context.Context, callID uuid.UUID) ([]*domain.Handoff, error) {
	db := GetDBTX(ctx, r.pool)
	rows, err := db.Query(ctx,
		`SELECT `+handoffColumns+` FROM handoffs WHERE call_id = $1 ORDER BY requested_at ASC`,
		callID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	handoffs := []*domain.Handoff{}
	for rows.Next() {
		h, err := scanHandoff(rows)
		if err != nil {
			return nil, err
		}
		handoffs = append(handoffs, h)
	}
	return handoffs, rows.Err()
}
