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

const callColumns = `id, phone_number, status, conversation_id, transcript, started_at, updated_at`

// CallRepository is the secondary adapter for call persistence.
type CallRepository struct {
	pool *pgxpool.Pool
}

// Ensure CallRepository implements the ports.CallRepository interface.
var _ ports.CallRepository = (*CallRepository)(nil)

// NewCallRepository creates a new call repository.
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

func scanCall(row pgx.Row) (*domain.Call, error) {
	var (
		call           domain.Call
		phoneNumber    pgtype.Text
		conversationID pgtype.Text
		transcript     pgtype.Text
		updatedAt      pgtype.Timestamptz
	)

	err := row.Scan(
		&call.ID,
		&phoneNumber,
		&call.Status,
		&conversationID,
		&transcript,
		&call.StartedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	call.PhoneNumber = phoneNumber.String
	call.ConversationID = conversationID.String
	call.Transcript = transcript.String
	if updatedAt.Valid {
		t := updatedAt.Time
		call.UpdatedAt = &t
	}
	return &call, nil
}

// Create persists a new call.
func (r *CallRepository) Create(ctx context.Context, call *domain.Call) (*domain.Call, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		INSERT INTO calls (id, phone_number, status, conversation_id, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+callColumns,
		call.ID, call.PhoneNumber, call.Status, call.ConversationID, call.StartedAt,
	)
	return scanCall(row)
}

// GetByID retrieves a single call by ID.
func (r *CallRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Call, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `SELECT `+callColumns+` FROM calls WHERE id = $1`, id)

	call, err := scanCall(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCallNotFound
		}
		return nil, err
	}
	return call, nil
}

// SetStatus updates the call's lifecycle status.
func (r *CallRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.CallStatus) (*domain.Call, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		UPDATE calls SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+callColumns,
		id, status,
	)

	call, err := scanCall(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCallNotFound
		}
		return nil, err
	}
	return call, nil
}

// UpdateTranscript replaces the call's transcript with the latest push.
func (r *CallRepository) UpdateTranscript(ctx context.Context, id uuid.UUID, transcript string) (*domain.Call, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		UPDATE calls SET transcript = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+callColumns,
		id, transcript,
	)

	call, err := scanCall(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrCallNotFound
		}
		return nil, err
	}
	return call, nil
}
