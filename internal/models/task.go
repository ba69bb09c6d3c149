package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusDone      TaskStatus = "DONE"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

func ParseTaskStatus(s string) (TaskStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING", "PENDENTE":
		return TaskStatusPending, nil
	case "DONE", "CONCLUIDA", "CONCLUÍDA":
		return TaskStatusDone, nil
	case "CANCELLED", "CANCELED", "CANCELADA":
		return TaskStatusCancelled, nil
	}
	return "", fmt.Errorf("unknown task status %q", s)
}

// Task is a scheduled to-do. ScheduledTime is a wall-clock "HH:mm" string,
// never a timestamp.
type Task struct {
	ID            uuid.UUID  `json:"id"`
	AccountID     uuid.UUID  `json:"account_id"`
	Description   string     `json:"description"`
	ScheduledDate time.Time  `json:"scheduled_date"`
	ScheduledTime *string    `json:"scheduled_time,omitempty"`
	Status        TaskStatus `json:"status"`
	OriginText    string     `json:"origin_text"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
