package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finia/backend/internal/models"
)

// EntitlementAccountRepo is the account store used by Entitlement.
type EntitlementAccountRepo interface {
	Ensure(ctx context.Context, a *models.Account) (*models.Account, bool, error)
	Update(ctx context.Context, a *models.Account) error
}

// UsageCounter returns a lifetime count for an account.
type UsageCounter interface {
	CountByAccount(ctx context.Context, accountID uuid.UUID) (int, error)
}

// LedgerCounter counts an account's ledger entries.
type LedgerCounter interface {
	CountEntries(ctx context.Context, accountID uuid.UUID) (int, error)
}

// Policy holds the trial limits.
type Policy struct {
	TrialDays           int
	TrialInteractionCap int
	TrialLedgerCap      int
}

func DefaultPolicy() Policy {
	return Policy{TrialDays: 3, TrialInteractionCap: 100, TrialLedgerCap: 10}
}

// Operation is what a command is about to do.
type Operation int

const (
	OpRead Operation = iota
	OpWrite
	// OpLedgerWrite is a write that adds a ledger entry.
	OpLedgerWrite
)

// DenialReason says why a command was refused.
type DenialReason string

const (
	DenialExpired           DenialReason = "expired"
	DenialTrialInteractions DenialReason = "trial_interactions"
	DenialTrialLedger       DenialReason = "trial_ledger"
)

// Denial is a refusal, not a failure. The composer turns it into a reply.
type Denial struct {
	Reason DenialReason
	Cap    int
}

// Decision is the outcome of Check for one inbound message.
type Decision struct {
	Account *models.Account
	// Created is set on first contact, when the trial starts.
	Created    bool
	Authorized bool
	// Transitioned is set when Check moved the account to BLOCKED.
	Transitioned bool
}

// Entitlement decides whether a contact may use the assistant.
type Entitlement struct {
	Accounts     EntitlementAccountRepo
	Interactions UsageCounter
	Ledger       LedgerCounter
	Policy       Policy
	Clock        func() time.Time
	Logger       *slog.Logger
}

func NewEntitlement(accounts EntitlementAccountRepo, interactions UsageCounter, ledger LedgerCounter, policy Policy, clock func() time.Time, logger *slog.Logger) *Entitlement {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Entitlement{
		Accounts:     accounts,
		Interactions: interactions,
		Ledger:       ledger,
		Policy:       policy,
		Clock:        clock,
		Logger:       logger,
	}
}

// Check loads the account for phone, creating a trial on first contact, and
// applies any due expiry.
func (e *Entitlement) Check(ctx context.Context, phone, name string) (*Decision, error) {
	now := e.Clock()
	if name == "" {
		name = "Usuário " + phone
	}
	expires := now.AddDate(0, 0, e.Policy.TrialDays)
	fresh := &models.Account{
		ID:               uuid.New(),
		Phone:            phone,
		Name:             name,
		Plan:             models.PlanTrial,
		TrialActivatedAt: &now,
		TrialExpiresAt:   &expires,
	}
	acc, created, err := e.Accounts.Ensure(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}
	d := &Decision{Account: acc, Created: created}
	if Expire(acc, now) {
		if err := e.Accounts.Update(ctx, acc); err != nil {
			return nil, fmt.Errorf("block expired account: %w", err)
		}
		d.Transitioned = true
	}
	d.Authorized = Authorized(acc, now)
	return d, nil
}

// Authorize applies the trial quotas to an authorized account. A nil Denial
// means the operation may proceed.
func (e *Entitlement) Authorize(ctx context.Context, d *Decision, op Operation) (*Denial, error) {
	if !d.Authorized {
		return &Denial{Reason: DenialExpired}, nil
	}
	acc := d.Account
	if acc.Plan != models.PlanTrial || acc.Tester {
		return nil, nil
	}
	n, err := e.Interactions.CountByAccount(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("count interactions: %w", err)
	}
	if n >= e.Policy.TrialInteractionCap {
		e.Logger.Debug("trial interaction cap reached", "account_id", acc.ID, "count", n)
		return &Denial{Reason: DenialTrialInteractions, Cap: e.Policy.TrialInteractionCap}, nil
	}
	if op != OpLedgerWrite {
		return nil, nil
	}
	n, err = e.Ledger.CountEntries(ctx, acc.ID)
	if err != nil {
		return nil, fmt.Errorf("count ledger entries: %w", err)
	}
	if n >= e.Policy.TrialLedgerCap {
		e.Logger.Debug("trial ledger cap reached", "account_id", acc.ID, "count", n)
		return &Denial{Reason: DenialTrialLedger, Cap: e.Policy.TrialLedgerCap}, nil
	}
	return nil, nil
}

// Expire moves a lapsed trial or premium account to BLOCKED and clears the
// lapsed expiry. It reports whether acc changed. Testers never expire.
func Expire(acc *models.Account, now time.Time) bool {
	if acc.Tester || acc.Plan == models.PlanTester {
		return false
	}
	switch acc.Plan {
	case models.PlanPremium:
		if acc.PremiumExpiresAt == nil || !now.Before(*acc.PremiumExpiresAt) {
			acc.Plan = models.PlanBlocked
			acc.PremiumExpiresAt = nil
			return true
		}
	case models.PlanTrial:
		if acc.TrialExpiresAt == nil || !now.Before(*acc.TrialExpiresAt) {
			acc.Plan = models.PlanBlocked
			acc.TrialExpiresAt = nil
			return true
		}
	}
	return false
}

// Authorized reports whether acc may use the assistant at now.
func Authorized(acc *models.Account, now time.Time) bool {
	switch {
	case acc.Tester, acc.Plan == models.PlanTester:
		return true
	case acc.Plan == models.PlanTrial:
		return acc.TrialExpiresAt != nil && now.Before(*acc.TrialExpiresAt)
	case acc.Plan == models.PlanPremium:
		return acc.PremiumExpiresAt != nil && now.Before(*acc.PremiumExpiresAt)
	}
	return false
}

// Grant sets a plan by hand. PREMIUM gets an expiry days from now; TESTER
// sets the tester flag.
func Grant(acc *models.Account, plan models.Plan, days int, now time.Time) {
	acc.Plan = plan
	switch plan {
	case models.PlanPremium:
		exp := now.AddDate(0, 0, days)
		acc.PremiumExpiresAt = &exp
	case models.PlanTester:
		acc.Tester = true
	case models.PlanTrial:
		exp := now.AddDate(0, 0, days)
		acc.TrialActivatedAt = &now
		acc.TrialExpiresAt = &exp
	case models.PlanBlocked:
		acc.Tester = false
	}
}
