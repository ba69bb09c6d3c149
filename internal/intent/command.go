package intent

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/textnorm"
)

type Domain string

const (
	DomainLedger Domain = "ledger"
	DomainTask   Domain = "task"
)

type Action string

const (
	ActionInsert Action = "insert"
	ActionQuery  Action = "query"
)

// Guess is the interpreter's structured reading of a message. Any string
// field may hold the literal "null".
type Guess struct {
	Domain      string          `json:"domain"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Amount      json.RawMessage `json:"amount,omitempty"`
	Date        *string         `json:"date"`
	Time        *string         `json:"time"`
	Direction   *string         `json:"direction"`
	Category    *string         `json:"category"`
	Period      *string         `json:"period"`
}

// Command is a normalized guess ready for dispatch.
type Command struct {
	Domain      Domain            `json:"domain,omitempty"`
	Action      Action            `json:"action,omitempty"`
	Description string            `json:"description,omitempty"`
	Amount      *decimal.Decimal  `json:"amount,omitempty"`
	Direction   *models.Direction `json:"direction,omitempty"`
	Category    string            `json:"category,omitempty"`
	PeriodHint  string            `json:"period,omitempty"`
	DateHint    string            `json:"date,omitempty"`
	TimeHint    string            `json:"time,omitempty"`

	// MessageID is the channel's id for the inbound message, empty when the
	// channel gave none.
	MessageID string `json:"-"`
	// Text is the message as the user wrote it (or as it was transcribed).
	Text string `json:"-"`
}

// Actionable reports whether the command names a known domain and action.
func (c Command) Actionable() bool {
	return c.Domain != "" && c.Action != ""
}

// Normalize turns a guess into a command. A nil guess yields a command that
// is not actionable, so the fallback classifier takes over.
func Normalize(g *Guess, text, messageID string) Command {
	cmd := Command{MessageID: messageID, Text: text}
	if g == nil {
		return cmd
	}
	cmd.Domain = parseDomain(g.Domain)
	cmd.Action = parseAction(g.Action)
	cmd.Description = strings.TrimSpace(clean(&g.Description))
	cmd.Amount = ParseAmount(g.Amount)
	if d := clean(g.Direction); d != "" {
		if dir, err := models.ParseDirection(d); err == nil {
			cmd.Direction = &dir
		}
	}
	cmd.Category = strings.TrimSpace(clean(g.Category))
	if cmd.Domain == DomainLedger && cmd.Action == ActionInsert && cmd.Amount == nil {
		cmd.Action = ActionQuery
	}
	cmd.PeriodHint = clean(g.Period)
	cmd.DateHint = clean(g.Date)
	cmd.TimeHint = clean(g.Time)
	if cmd.Description == "" {
		cmd.Description = strings.TrimSpace(text)
	}
	return cmd
}

// clean maps nil and the literal "null" to the empty string.
func clean(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	switch strings.ToLower(v) {
	case "null", "none", "undefined", "nil":
		return ""
	}
	return v
}

func parseDomain(s string) Domain {
	switch textnorm.Fold(s) {
	case "ledger", "transacao", "transaction", "financeiro", "finance":
		return DomainLedger
	case "task", "tarefa", "todo":
		return DomainTask
	}
	return ""
}

func parseAction(s string) Action {
	switch textnorm.Fold(s) {
	case "insert", "inserir", "add", "create", "registrar":
		return ActionInsert
	case "query", "consultar", "list", "listar", "summary", "resumo":
		return ActionQuery
	}
	return ""
}

var reNotAmount = regexp.MustCompile(`[^\d,.\-]`)

// ParseAmount reads an amount given as a JSON number or string. Brazilian
// formatting ("1.234,56") is accepted. Negative amounts are taken as their
// absolute value; anything unreadable yields nil.
func ParseAmount(raw json.RawMessage) *decimal.Decimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] != '"' {
		d, err := decimal.NewFromString(string(raw))
		if err != nil {
			return nil
		}
		d = d.Abs().Round(2)
		return &d
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = reNotAmount.ReplaceAllString(s, "")
	if s == "" || s == "-" {
		return nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	d = d.Abs().Round(2)
	return &d
}
