package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finia/backend/internal/models"
)

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, phone, name, plan, trial_activated_at, trial_expires_at, premium_expires_at, tester, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	var plan string
	err := row.Scan(&a.ID, &a.Phone, &a.Name, &plan, &a.TrialActivatedAt, &a.TrialExpiresAt, &a.PremiumExpiresAt, &a.Tester, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if a.Plan, err = models.ParsePlan(plan); err != nil {
		return nil, fmt.Errorf("account %s: %w", a.ID, err)
	}
	return &a, nil
}

// Ensure inserts a unless an account with the same phone exists, and returns
// the stored account. created is false when the phone was already known.
func (r *AccountRepo) Ensure(ctx context.Context, a *models.Account) (stored *models.Account, created bool, err error) {
	err = r.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, phone, name, plan, trial_activated_at, trial_expires_at, premium_expires_at, tester)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (phone) DO NOTHING
		RETURNING created_at, updated_at
	`, a.ID, a.Phone, a.Name, string(a.Plan), a.TrialActivatedAt, a.TrialExpiresAt, a.PremiumExpiresAt, a.Tester).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	stored, err = r.GetByPhone(ctx, a.Phone)
	return stored, false, err
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepo) GetByPhone(ctx context.Context, phone string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE phone = $1`, phone))
}

// Update writes the entitlement fields and name of a.
func (r *AccountRepo) Update(ctx context.Context, a *models.Account) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts SET name = $2, plan = $3, trial_activated_at = $4, trial_expires_at = $5, premium_expires_at = $6, tester = $7, updated_at = now()
		WHERE id = $1
	`, a.ID, a.Name, string(a.Plan), a.TrialActivatedAt, a.TrialExpiresAt, a.PremiumExpiresAt, a.Tester)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccountRepo) List(ctx context.Context) ([]*models.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}
