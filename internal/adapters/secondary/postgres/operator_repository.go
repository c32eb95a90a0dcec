package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/emergency-triage-backend/internal/core/domain"
	apperrors "github.com/lorrc/emergency-triage-backend/internal/core/errors"
	"github.com/lorrc/emergency-triage-backend/internal/core/ports"
)

const operatorColumns = `id, email, name, role, status, last_active_at,
	total_calls_handled, average_handle_time, current_call_id, password_hash`

// OperatorRepository is the secondary adapter for operator persistence.
type OperatorRepository struct {
	pool *pgxpool.Pool
}

// Ensure OperatorRepository implements the ports.OperatorRepository interface.
var _ ports.OperatorRepository = (*OperatorRepository)(nil)

// NewOperatorRepository creates a new operator repository.
func NewOperatorRepository(pool *pgxpool.Pool) *OperatorRepository {
	return &OperatorRepository{pool: pool}
}

func scanOperator(row pgx.Row) (*domain.Operator, error) {
	var (
		op            domain.Operator
		currentCallID pgtype.UUID
	)

	err := row.Scan(
		&op.ID,
		&op.Email,
		&op.Name,
		&op.Role,
		&op.Status,
		&op.LastActiveAt,
		&op.TotalCallsHandled,
		&op.AverageHandleTime,
		&currentCallID,
		&op.PasswordHash,
	)
	if err != nil {
		return nil, err
	}

	if currentCallID.Valid {
		id := uuid.UUID(currentCallID.Bytes)
		op.CurrentCallID = &id
	}
	return &op, nil
}

// Create persists a new operator account.
func (r *OperatorRepository) Create(ctx context.Context, op *domain.Operator) (*domain.Operator, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		INSERT INTO operators (id, email, name, role, status, last_active_at, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+operatorColumns,
		op.ID, op.Email, op.Name, op.Role, op.Status, op.LastActiveAt, op.PasswordHash,
	)

	created, err := scanOperator(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperrors.NewConflictError(apperrors.ErrConflict, "email already registered")
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a single operator by ID.
func (r *OperatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id)

	op, err := scanOperator(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrOperatorNotFound
		}
		return nil, err
	}
	return op, nil
}

// GetByEmail retrieves a single operator by email for login.
func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE email = $1`, email)

	op, err := scanOperator(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrOperatorNotFound
		}
		return nil, err
	}
	return op, nil
}

// List retrieves all operators, most recently active first.
func (r *OperatorRepository) List(ctx context.Context) ([]*domain.Operator, error) {
	db := GetDBTX(ctx, r.pool)
	rows, err := db.Query(ctx, `SELECT `+operatorColumns+` FROM operators ORDER BY last_active_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	operators := []*domain.Operator{}
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}
	return operators, rows.Err()
}

// Update persists the operator's mutable state.
func (r *OperatorRepository) Update(ctx context.Context, op *domain.Operator) (*domain.Operator, error) {
	var currentCallID pgtype.UUID
	if op.CurrentCallID != nil {
		currentCallID = pgtype.UUID{Bytes: *op.CurrentCallID, Valid: true}
	}

	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		UPDATE operators
		SET status = $2, last_active_at = $3, total_calls_handled = $4,
		    average_handle_time = $5, current_call_id = $6
		WHERE id = $1
		RETURNING `+operatorColumns,
		op.ID, op.Status, op.LastActiveAt, op.TotalCallsHandled,
		op.AverageHandleTime, currentCallID,
	)

	updated, err := scanOperator(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrOperatorNotFound
		}
		return nil, err
	}
	return updated, nil
}

// FirstAvailable returns the longest-idle AVAILABLE operator with no bound
// call, or ErrOperatorNotFound when nobody is free.
func (r *OperatorRepository) FirstAvailable(ctx context.Context) (*domain.Operator, error) {
	db := GetDBTX(ctx, r.pool)
	row := db.QueryRow(ctx, `
		SELECT `+operatorColumns+`
		FROM operators
		WHERE status = 'AVAILABLE' AND current_call_id IS NULL
		ORDER BY last_active_at ASC
		LIMIT 1`,
	)

	op, err := scanOperator(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrOperatorNotFound
		}
		return nil, err
	}
	return op, nil
}
