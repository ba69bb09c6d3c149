package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finia/backend/internal/models"
)

type AccessTokenRepo struct {
	pool *pgxpool.Pool
}

func NewAccessTokenRepo(pool *pgxpool.Pool) *AccessTokenRepo {
	return &AccessTokenRepo{pool: pool}
}

func (r *AccessTokenRepo) Create(ctx context.Context, t *models.AccessToken) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO access_tokens (id, account_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, t.ID, t.AccountID, t.TokenHash, t.ExpiresAt).Scan(&t.CreatedAt)
}

// Consume marks an unexpired, unused token as used and returns its account.
// Unknown, expired and already used tokens all yield ErrNotFound.
func (r *AccessTokenRepo) Consume(ctx context.Context, tokenHash string, at time.Time) (uuid.UUID, error) {
	var accountID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		UPDATE access_tokens SET consumed_at = $2
		WHERE token_hash = $1 AND consumed_at IS NULL AND expires_at > $2
		RETURNING account_id
	`, tokenHash, at).Scan(&accountID)
	if err != nil {
		return uuid.Nil, notFound(err)
	}
	return accountID, nil
}
