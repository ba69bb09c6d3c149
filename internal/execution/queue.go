package execution

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
)

// Queue inserts message jobs into River.
type Queue struct {
	client *river.Client[pgx.Tx]
}

func NewQueue(client *river.Client[pgx.Tx]) *Queue {
	return &Queue{client: client}
}

// Enqueue inserts the job. A redelivered message with the same id and phone
// is skipped by River's unique insert.
func (q *Queue) Enqueue(ctx context.Context, args ProcessMessageArgs) (bool, error) {
	res, err := q.client.Insert(ctx, args, nil)
	if err != nil {
		return false, err
	}
	return !res.UniqueSkippedAsDuplicate, nil
}
