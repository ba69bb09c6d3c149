package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type InteractionKind string

const (
	InteractionLedger   InteractionKind = "LEDGER"
	InteractionTask     InteractionKind = "TASK"
	InteractionFallback InteractionKind = "FALLBACK"
	InteractionDenied   InteractionKind = "DENIED"
	InteractionAccess   InteractionKind = "ACCESS"
)

// InteractionRecord is written once per inbound message. MessageID is nil
// when the channel gave no id; such messages cannot be deduplicated.
type InteractionRecord struct {
	ID             uuid.UUID       `json:"id"`
	AccountID      uuid.UUID       `json:"account_id"`
	MessageID      *string         `json:"message_id,omitempty"`
	InputText      string          `json:"input_text"`
	Interpretation json.RawMessage `json:"interpretation,omitempty"`
	Kind           InteractionKind `json:"kind"`
	Success        bool            `json:"success"`
	CreatedAt      time.Time       `json:"created_at"`
}

// AccessToken backs a single-use dashboard link. Only a keyed digest of the
// token is stored.
type AccessToken struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Period is a resolved query window. End is inclusive.
type Period struct {
	Start time.Time
	End   time.Time
	Label string
}

// Contains reports whether t falls inside the window.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}
