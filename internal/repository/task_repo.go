package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finia/backend/internal/models"
)

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

const taskColumns = `id, account_id, description, scheduled_date, scheduled_time, status, origin_text, created_at, updated_at`

// scheduled_date is a DATE column; it is written and read as a calendar day
// with no zone attached.
const dateLayout = "2006-01-02"

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	var status string
	err := row.Scan(&t.ID, &t.AccountID, &t.Description, &t.ScheduledDate, &t.ScheduledTime, &status, &t.OriginText, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if t.Status, err = models.ParseTaskStatus(status); err != nil {
		return nil, fmt.Errorf("task %s: %w", t.ID, err)
	}
	return &t, nil
}

// CreateTx inserts a task inside the given transaction.
func (r *TaskRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tasks (id, account_id, description, scheduled_date, scheduled_time, status, origin_text)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7)
		RETURNING created_at, updated_at
	`, t.ID, t.AccountID, t.Description, t.ScheduledDate.Format(dateLayout), t.ScheduledTime, string(t.Status), t.OriginText).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// UpdateStatus changes the status of a task owned by accountID.
func (r *TaskRepo) UpdateStatus(ctx context.Context, accountID, id uuid.UUID, status models.TaskStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = $3, updated_at = now() WHERE id = $1 AND account_id = $2
	`, id, accountID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPending returns pending tasks scheduled between the calendar days of
// from and to (inclusive), earliest first, at most limit rows.
func (r *TaskRepo) ListPending(ctx context.Context, accountID uuid.UUID, from, to time.Time, limit int) ([]*models.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE account_id = $1 AND status = 'PENDING' AND scheduled_date BETWEEN $2::date AND $3::date
		ORDER BY scheduled_date ASC, scheduled_time ASC NULLS LAST, created_at ASC
		LIMIT $4
	`, accountID, from.Format(dateLayout), to.Format(dateLayout), limit)
}

// ListByAccount returns the account's tasks, optionally filtered by status.
func (r *TaskRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, status *models.TaskStatus) ([]*models.Task, error) {
	if status != nil {
		return r.list(ctx, `
			SELECT `+taskColumns+` FROM tasks WHERE account_id = $1 AND status = $2
			ORDER BY scheduled_date ASC, created_at ASC
		`, accountID, string(*status))
	}
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE account_id = $1
		ORDER BY scheduled_date ASC, created_at ASC
	`, accountID)
}

func (r *TaskRepo) list(ctx context.Context, sql string, args ...any) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
