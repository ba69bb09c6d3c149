package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/finia/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	var c models.Category
	var dir string
	if err := row.Scan(&c.ID, &c.Name, &dir, &c.Icon, &c.Color, &c.CreatedAt); err != nil {
		return nil, err
	}
	d, err := models.ParseDirection(dir)
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", c.ID, err)
	}
	c.Direction = d
	return &c, nil
}

// Categories lists every category of one direction.
func (r *Repository) Categories(ctx context.Context, dir models.Direction) ([]*models.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, direction, icon, color, created_at FROM categories WHERE direction = $1 ORDER BY name
	`, string(dir))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// CreateCategory inserts c, or returns the existing row when another writer
// created the same (name, direction) first.
func (r *Repository) CreateCategory(ctx context.Context, c *models.Category) (*models.Category, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO categories (id, name, direction, icon, color)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name, direction) DO NOTHING
	`, c.ID, c.Name, string(c.Direction), c.Icon, c.Color)
	if err != nil {
		return nil, err
	}
	return scanCategory(r.pool.QueryRow(ctx, `
		SELECT id, name, direction, icon, color, created_at FROM categories WHERE name = $1 AND direction = $2
	`, c.Name, string(c.Direction)))
}

// CreateEntryTx inserts a ledger entry inside the caller's transaction.
func (r *Repository) CreateEntryTx(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (id, account_id, amount, direction, category_id, occurred_at, description, origin_text, confirmed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, e.ID, e.AccountID, e.Amount, string(e.Direction), e.CategoryID, e.OccurredAt, e.Description, e.OriginText, e.Confirmed).Scan(&e.CreatedAt)
}

// Filter narrows entry queries to a window and optionally one direction.
type Filter struct {
	AccountID uuid.UUID
	From, To  time.Time
	Direction *models.Direction
}

func (f Filter) args() []any {
	var dir *string
	if f.Direction != nil {
		s := string(*f.Direction)
		dir = &s
	}
	return []any{f.AccountID, f.From, f.To, dir}
}

const filterWhere = `e.account_id = $1 AND e.occurred_at BETWEEN $2 AND $3 AND ($4::text IS NULL OR e.direction = $4)`

// Entries returns the matching entries, newest first. limit <= 0 means all.
func (r *Repository) Entries(ctx context.Context, f Filter, limit int) ([]*models.LedgerEntry, error) {
	sql := `
		SELECT e.id, e.account_id, e.amount, e.direction, e.category_id, e.occurred_at, e.description,
		       e.origin_text, e.confirmed, e.created_at, c.name
		FROM ledger_entries e JOIN categories c ON c.id = e.category_id
		WHERE ` + filterWhere + `
		ORDER BY e.occurred_at DESC, e.created_at DESC`
	args := f.args()
	if limit > 0 {
		sql += ` LIMIT $5`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		var dir string
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &dir, &e.CategoryID, &e.OccurredAt, &e.Description,
			&e.OriginText, &e.Confirmed, &e.CreatedAt, &e.CategoryName); err != nil {
			return nil, err
		}
		if e.Direction, err = models.ParseDirection(dir); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// Totals sums the matching entries per direction.
func (r *Repository) Totals(ctx context.Context, f Filter) (in, out decimal.Decimal, count int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'IN'), 0),
		       COALESCE(SUM(e.amount) FILTER (WHERE e.direction = 'OUT'), 0),
		       COUNT(*)
		FROM ledger_entries e
		WHERE `+filterWhere, f.args()...).Scan(&in, &out, &count)
	return in, out, count, err
}

// Balance is all-time inflow minus outflow.
func (r *Repository) Balance(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'IN' THEN amount ELSE -amount END), 0)
		FROM ledger_entries WHERE account_id = $1
	`, accountID).Scan(&b)
	return b, err
}

// OutflowByCategory totals outflow per category in the window, largest
// first.
func (r *Repository) OutflowByCategory(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.CategoryTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.name, SUM(e.amount) AS total
		FROM ledger_entries e JOIN categories c ON c.id = e.category_id
		WHERE e.account_id = $1 AND e.occurred_at BETWEEN $2 AND $3 AND e.direction = 'OUT'
		GROUP BY c.name
		ORDER BY total DESC, c.name
	`, accountID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.CategoryTotal
	for rows.Next() {
		var ct models.CategoryTotal
		if err := rows.Scan(&ct.Name, &ct.Amount); err != nil {
			return nil, err
		}
		list = append(list, ct)
	}
	return list, rows.Err()
}

// CountEntries is the lifetime number of entries of an account.
func (r *Repository) CountEntries(ctx context.Context, accountID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1`, accountID).Scan(&n)
	return n, err
}
