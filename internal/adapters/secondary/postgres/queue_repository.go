package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

const queueEntryColumns = `id, call_id, priority, chief_complaint, summary, status,
	waiting_since, claimed_by, claimed_at, conversation_id`

// QueueRepository is the secondary adapter for queue persistence.
type QueueRepository struct {
	pool *pgxpool.Pool
}

// Ensure QueueRepository implements the ports.QueueRepository interface.
var _ ports.QueueRepository = (*QueueRepository)(nil)

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(pool *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

func scanQueueEntry(row pgx.Row) (*domain.QueueEntry, error) {
	var (
		entry       domain.QueueEntry
		summaryJSON []byte
		claimedBy   pgtype.UUID
		claimedAt   pgtype.Timestamptz
		complaint   pgtype.Text
		convID      pgtype.Text
	)

	err := row.Scan(
		&entry.ID,
		&entry.CallID,
		&entry.Priority,
		&complaint,
		&summaryJSON,
		&entry.Status,
		&entry.WaitingSince,
		&claimedBy,
		&claimedAt,
		&convID,
	)
	if err != nil {
		return nil, err
	}

	entry.ChiefComplaint = complaint.String
	entry.ConversationID = convID.String
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &entry.Summary); err != nil {
			return nil, fmt.Errorf("decode clinical summary: %w", err)
		}
	}
	if claimedBy.Valid {
		id := uuid.UUID(claimedBy.Bytes)
		entry.ClaimedBy = &id
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		entry.ClaimedAt = &t
	}
	return &entry, nil
}

// Create persists a new queue entry. A second live entry for the same call
// hits the partial unique index and surfaces as ErrDuplicateEntry.
func (r *QueueRepository) Create(ctx context.Context, entry *domain.QueueEntry) (*domain.QueueEntry, error) {
	summaryJSON, err := json.Marshal(entry.Summary)
	if err != nil {
		return nil, fmt.Errorf("encode clinical summary: %w", err)
	}

	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		INSERT INTO queue_entries (id, call_id, priority, chief_complaint, summary, status, waiting_since, conversation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+queueEntryColumns,
		entry.ID, entry.CallID, entry.Priority, entry.ChiefComplaint,
		summaryJSON, entry.Status, entry.WaitingSince, entry.ConversationID,
	)

	created, err := scanQueueEntry(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperrors.ErrDuplicateEntry
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a single queue entry by its ID.
func (r *QueueRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `SELECT `+queueEntryColumns+` FROM queue_entries WHERE id = $1`, id)

	entry, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrQueueEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

// List retrieves entries with optional status and priority filters, ordered
// by priority then waiting time.
func (r *QueueRepository) List(ctx context.Context, params ports.ListQueueParams) ([]*domain.QueueEntry, error) {
	query := `SELECT ` + queueEntryColumns + ` FROM queue_entries WHERE 1=1`
	args := []interface{}{}

	if params.Status != nil {
		args = append(args, *params.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if params.Priority != nil {
		args = append(args, *params.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	query += " ORDER BY priority ASC, waiting_since ASC"

	db := GetDBTX(ctx, r.pool)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectQueueEntries(rows)
}

// ListActive retrieves all non-terminal entries in dispatch order.
func (r *QueueRepository) ListActive(ctx context.Context) ([]*domain.QueueEntry, error) {
	db := GetDBTX(ctx, r.pool)
	rows, err := db.Query(ctx, `
		SELECT `+queueEntryColumns+`
		FROM queue_entries
		WHERE status IN ('WAITING', 'CLAIMED', 'IN_PROGRESS')
		ORDER BY priority ASC, waiting_since ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectQueueEntries(rows)
}

func collectQueueEntries(rows pgx.Rows) ([]*domain.QueueEntry, error) {
	entries := []*domain.QueueEntry{}
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Claim atomically transitions a WAITING entry to CLAIMED. The conditional
// update serializes concurrent claims; exactly one writer matches the WAITING
// row, every other one falls through to the existence check.
func (r *QueueRepository) Claim(ctx context.Context, entryID, operatorID uuid.UUID, claimedAt time.Time) (*domain.QueueEntry, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = 'CLAIMED', claimed_by = $2, claimed_at = $3
		WHERE id = $1 AND status = 'WAITING'
		RETURNING `+queueEntryColumns,
		entryID, operatorID, claimedAt,
	)

	entry, err := scanQueueEntry(row)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// No WAITING row matched: either the entry is gone or someone else won.
	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM queue_entries WHERE id = $1)`, entryID,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.ErrQueueEntryNotFound
	}
	return nil, apperrors.ErrAlreadyClaimed
}

// SetStatus applies a status transition conditional on the expected current
// status, guarding against concurrent writers.
func (r *QueueRepository) SetStatus(ctx context.Context, entryID uuid.UUID, expected, next domain.QueueStatus) (*domain.QueueEntry, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		UPDATE queue_entries
		SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING `+queueEntryColumns,
		entryID, expected, next,
	)

	entry, err := scanQueueEntry(row)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM queue_entries WHERE id = $1)`, entryID,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperrors.ErrQueueEntryNotFound
	}
	return nil, apperrors.ErrInvalidStatusTransition
}

// UpdateTriage persists refined priority, complaint and clinical summary.
func (r *QueueRepository) UpdateTriage(ctx context.Context, entry *domain.QueueEntry) (*domain.QueueEntry, error) {
	summaryJSON, err := json.Marshal(entry.Summary)
	if err != nil {
		return nil, fmt.Errorf("encode clinical summary: %w", err)
	}

	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		UPDATE queue_entries
		SET priority = $2, chief_complaint = $3, summary = $4
		WHERE id = $1
		RETURNING `+queueEntryColumns,
		entry.ID, entry.Priority, entry.ChiefComplaint, summaryJSON,
	)

	updated, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrQueueEntryNotFound
		}
		return nil, err
	}
	return updated, nil
}

// Stats aggregates entry counts per status and the mean wait of the WAITING set.
func (r *QueueRepository) Stats(ctx context.Context) (*domain.QueueStats, error) {
	db := GetDBTX(ctx, r.pool)

	stats := &domain.QueueStats{
		CountsByStatus: make(map[domain.QueueStatus]int),
	}

	rows, err := db.Query(ctx, `SELECT status, COUNT(*) FROM queue_entries GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status domain.QueueStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.CountsByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.WaitingCount = stats.CountsByStatus[domain.QueueStatusWaiting]

	err = db.QueryRow(ctx, `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (now() - waiting_since))), 0)
		FROM queue_entries
		WHERE status = 'WAITING'`,
	).Scan(&stats.AverageWaitSeconds)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// Head returns the single most urgent WAITING entry at or above the given
// priority floor.
func (r *QueueRepository) Head(ctx context.Context, floor domain.Priority) (*domain.QueueEntry, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		SELECT `+queueEntryColumns+`
		FROM queue_entries
		WHERE status = 'WAITING' AND priority <= $1
		ORDER BY priority ASC, waiting_since ASC
		LIMIT 1`, floor,
	)

	entry, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrQueueEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}
