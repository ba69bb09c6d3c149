package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finia/backend/internal/models"
)

type InteractionRepo struct {
	pool *pgxpool.Pool
}

func NewInteractionRepo(pool *pgxpool.Pool) *InteractionRepo {
	return &InteractionRepo{pool: pool}
}

// Exists reports whether a message id was already recorded.
func (r *InteractionRepo) Exists(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM interactions WHERE message_id = $1)`, messageID).Scan(&exists)
	return exists, err
}

// CreateTx records an interaction inside the caller's transaction. A second
// record for the same message id fails with ErrDuplicate.
func (r *InteractionRepo) CreateTx(ctx context.Context, tx pgx.Tx, rec *models.InteractionRecord) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO interactions (id, account_id, message_id, input_text, interpretation, kind, success)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, rec.ID, rec.AccountID, rec.MessageID, rec.InputText, rec.Interpretation, string(rec.Kind), rec.Success).Scan(&rec.CreatedAt)
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Record stores an interaction outside any transaction. It returns false,
// without error, when the message id was already recorded.
func (r *InteractionRepo) Record(ctx context.Context, rec *models.InteractionRecord) (bool, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO interactions (id, account_id, message_id, input_text, interpretation, kind, success)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING created_at
	`, rec.ID, rec.AccountID, rec.MessageID, rec.InputText, rec.Interpretation, string(rec.Kind), rec.Success).Scan(&rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountByAccount is the lifetime number of recorded interactions.
func (r *InteractionRepo) CountByAccount(ctx context.Context, accountID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM interactions WHERE account_id = $1`, accountID).Scan(&n)
	return n, err
}
