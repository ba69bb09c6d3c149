package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is whether a ledger entry is an inflow or an outflow.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// ParseDirection accepts the names used by the interpreter, the dashboard and
// the database.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN", "ENTRADA", "INCOME", "RECEITA":
		return DirectionIn, nil
	case "OUT", "SAIDA", "SAÍDA", "EXPENSE", "DESPESA":
		return DirectionOut, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Category defaults applied when a category is auto-created.
const (
	CategoryIconIn   = "📥"
	CategoryIconOut  = "📤"
	CategoryColorIn  = "#22c55e"
	CategoryColorOut = "#ef4444"
)

type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

type LedgerEntry struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	CategoryID  uuid.UUID       `json:"category_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Description string          `json:"description"`
	OriginText  string          `json:"origin_text"`
	Confirmed   bool            `json:"confirmed"`
	CreatedAt   time.Time       `json:"created_at"`

	// Populated by joins; not a column.
	CategoryName string `json:"category_name,omitempty"`
}

// CategoryTotal is an aggregated amount per category name.
type CategoryTotal struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}
