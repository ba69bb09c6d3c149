package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Plan is the subscription state of an account.
type Plan string

const (
	PlanTrial   Plan = "TRIAL"
	PlanPremium Plan = "PREMIUM"
	PlanTester  Plan = "TESTER"
	PlanBlocked Plan = "BLOCKED"
	// PlanFree is only found on accounts created before trials existed.
	PlanFree Plan = "FREE"
)

// ParsePlan converts a stored or user-supplied plan name. Older rows used
// lower-case and Portuguese names, so both are accepted.
func ParsePlan(s string) (Plan, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRIAL", "TESTE":
		return PlanTrial, nil
	case "PREMIUM", "PRO":
		return PlanPremium, nil
	case "TESTER":
		return PlanTester, nil
	case "BLOCKED", "BLOQUEADO":
		return PlanBlocked, nil
	case "FREE", "GRATIS":
		return PlanFree, nil
	}
	return "", fmt.Errorf("unknown plan %q", s)
}

type Account struct {
	ID               uuid.UUID  `json:"id"`
	Phone            string     `json:"phone"`
	Name             string     `json:"name"`
	Plan             Plan       `json:"plan"`
	TrialActivatedAt *time.Time `json:"trial_activated_at,omitempty"`
	TrialExpiresAt   *time.Time `json:"trial_expires_at,omitempty"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`
	Tester           bool       `json:"tester"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
