package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/finia/backend/internal/intent"
	"github.com/finia/backend/internal/models"
)

// Interpreter reads a message into a structured guess. A nil guess with a
// nil error means the message could not be read.
type Interpreter interface {
	Interpret(ctx context.Context, text string, now time.Time) (*intent.Guess, error)
}

// Inbound is one message from a contact.
type Inbound struct {
	Phone     string
	Name      string
	MessageID string
	Text      string
}

// Processor runs the whole path from inbound text to a Result.
type Processor struct {
	Entitlement *Entitlement
	Interpreter Interpreter
	Dispatcher  *Dispatcher
	Logger      *slog.Logger
}

func NewProcessor(ent *Entitlement, interp Interpreter, disp *Dispatcher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Entitlement: ent, Interpreter: interp, Dispatcher: disp, Logger: logger}
}

// Process handles one message. It never returns nil.
func (p *Processor) Process(ctx context.Context, in Inbound) *Result {
	base := intent.Command{MessageID: in.MessageID, Text: strings.TrimSpace(in.Text)}
	if in.MessageID != "" {
		seen, err := p.Dispatcher.Interactions.Exists(ctx, in.MessageID)
		if err != nil {
			return p.Dispatcher.fail(base, nil, "check message id", err)
		}
		if seen {
			p.Logger.Info("duplicate message ignored", "message_id", in.MessageID)
			return &Result{Kind: ResultDuplicate, Command: base}
		}
	}

	dec, err := p.Entitlement.Check(ctx, in.Phone, in.Name)
	if err != nil {
		return p.Dispatcher.fail(base, nil, "check entitlement", err)
	}
	acc := dec.Account
	switch {
	case dec.Created:
		p.Logger.Info("trial started", "account_id", acc.ID, "message_id", in.MessageID, "expires_at", acc.TrialExpiresAt)
	case dec.Transitioned:
		p.Logger.Info("account blocked", "account_id", acc.ID, "message_id", in.MessageID)
	}

	// Expired accounts still get the canned replies, but no interpreter call.
	if !dec.Authorized {
		class := intent.Classify(base.Text)
		if class == intent.ClassFinancial || class == intent.ClassTask || intent.WantsAccess(base.Text) {
			return p.deny(ctx, base, acc, &Denial{Reason: DenialExpired})
		}
		return p.fallback(ctx, base, acc, class)
	}

	// The interaction cap does not depend on what the message says.
	if denial, err := p.Entitlement.Authorize(ctx, dec, OpRead); err != nil {
		return p.Dispatcher.fail(base, acc, "authorize", err)
	} else if denial != nil {
		return p.deny(ctx, base, acc, denial)
	}

	if intent.WantsAccess(base.Text) {
		return p.record(ctx, &Result{Kind: ResultAccessLink, Command: base, Account: acc}, models.InteractionAccess, true)
	}

	guess, err := p.Interpreter.Interpret(ctx, base.Text, p.Dispatcher.Resolver.Now())
	if err != nil {
		p.Logger.Warn("interpreter failed", "message_id", in.MessageID, "error", err)
		guess = nil
	}
	cmd := intent.Normalize(guess, base.Text, in.MessageID)
	if !cmd.Actionable() {
		return p.fallback(ctx, cmd, acc, intent.Classify(base.Text))
	}

	if op := OperationFor(cmd); op == OpLedgerWrite {
		denial, err := p.Entitlement.Authorize(ctx, dec, op)
		if err != nil {
			return p.Dispatcher.fail(cmd, acc, "authorize", err)
		}
		if denial != nil {
			return p.deny(ctx, cmd, acc, denial)
		}
	}
	return p.Dispatcher.Dispatch(ctx, cmd, acc)
}

// OperationFor classifies an actionable command for the quota check.
func OperationFor(cmd intent.Command) Operation {
	switch {
	case cmd.Action != intent.ActionInsert:
		return OpRead
	case cmd.Domain == intent.DomainLedger:
		return OpLedgerWrite
	}
	return OpWrite
}

func (p *Processor) fallback(ctx context.Context, cmd intent.Command, acc *models.Account, class intent.Class) *Result {
	p.Logger.Info("fallback reply", "message_id", cmd.MessageID, "class", class.String())
	res := &Result{Kind: ResultFallback, Command: cmd, Account: acc, Fallback: intent.FallbackFor(class)}
	return p.record(ctx, res, models.InteractionFallback, false)
}

func (p *Processor) deny(ctx context.Context, cmd intent.Command, acc *models.Account, denial *Denial) *Result {
	p.Logger.Info("command denied", "account_id", acc.ID, "reason", denial.Reason, "plan", acc.Plan)
	res := &Result{Kind: ResultDenied, Command: cmd, Account: acc, Denial: denial}
	return p.record(ctx, res, models.InteractionDenied, false)
}

func (p *Processor) record(ctx context.Context, res *Result, kind models.InteractionKind, success bool) *Result {
	inserted, err := p.Dispatcher.Interactions.Record(ctx, NewInteraction(res.Command, res.Account, kind, success))
	if err != nil {
		// The reply does not depend on the record; only dedup is weakened.
		p.Logger.Warn("record interaction failed", "message_id", res.Command.MessageID, "error", err)
		return res
	}
	if !inserted {
		return &Result{Kind: ResultDuplicate, Command: res.Command, Account: res.Account}
	}
	return res
}
