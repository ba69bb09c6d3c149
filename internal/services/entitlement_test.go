package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finia/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Check
// ---------------------------------------------------------------------------

func TestCheck_FirstContactStartsTrial(t *testing.T) {
	f := newFixture()

	d, err := f.ent.Check(context.Background(), "+5511999990000", "")
	require.NoError(t, err)
	assert.True(t, d.Created)
	assert.True(t, d.Authorized)
	assert.Equal(t, models.PlanTrial, d.Account.Plan)
	require.NotNil(t, d.Account.TrialExpiresAt)
	assert.Equal(t, f.now.AddDate(0, 0, 3), *d.Account.TrialExpiresAt)
	assert.Equal(t, "Usuário +5511999990000", d.Account.Name)

	again, err := f.ent.Check(context.Background(), "+5511999990000", "Ana")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, d.Account.ID, again.Account.ID)
}

func TestCheck_ExpiredPremiumIsBlocked(t *testing.T) {
	f := newFixture()
	past := f.now.Add(-time.Minute)
	f.db.put(&models.Account{ID: uuid.New(), Phone: "p1", Plan: models.PlanPremium, PremiumExpiresAt: &past})

	d, err := f.ent.Check(context.Background(), "p1", "")
	require.NoError(t, err)
	assert.True(t, d.Transitioned)
	assert.False(t, d.Authorized)

	stored := f.db.account("p1")
	assert.Equal(t, models.PlanBlocked, stored.Plan)
	assert.Nil(t, stored.PremiumExpiresAt)
}

func TestCheck_RepoError(t *testing.T) {
	f := newFixture()
	f.db.failCreate = errBoom
	_, err := f.ent.Check(context.Background(), "p1", "")
	assert.ErrorIs(t, err, errBoom)
}

// ---------------------------------------------------------------------------
// Expire / Authorized
// ---------------------------------------------------------------------------

func TestExpire(t *testing.T) {
	now := fixedNow()
	past, future := now.Add(-time.Second), now.Add(time.Hour)

	cases := []struct {
		name    string
		acc     models.Account
		changed bool
		plan    models.Plan
	}{
		{"premium lapsed", models.Account{Plan: models.PlanPremium, PremiumExpiresAt: &past}, true, models.PlanBlocked},
		{"premium without expiry", models.Account{Plan: models.PlanPremium}, true, models.PlanBlocked},
		{"premium active", models.Account{Plan: models.PlanPremium, PremiumExpiresAt: &future}, false, models.PlanPremium},
		{"trial lapsed", models.Account{Plan: models.PlanTrial, TrialExpiresAt: &past}, true, models.PlanBlocked},
		{"trial expiring exactly now", models.Account{Plan: models.PlanTrial, TrialExpiresAt: &now}, true, models.PlanBlocked},
		{"trial active", models.Account{Plan: models.PlanTrial, TrialExpiresAt: &future}, false, models.PlanTrial},
		{"tester flag on lapsed trial", models.Account{Plan: models.PlanTrial, TrialExpiresAt: &past, Tester: true}, false, models.PlanTrial},
		{"legacy free", models.Account{Plan: models.PlanFree}, false, models.PlanFree},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acc := tc.acc
			assert.Equal(t, tc.changed, Expire(&acc, now))
			assert.Equal(t, tc.plan, acc.Plan)
			if tc.changed {
				assert.Nil(t, acc.PremiumExpiresAt)
				assert.Nil(t, acc.TrialExpiresAt)
			}
		})
	}
}

func TestAuthorized_NeverAfterExpiryUnlessTester(t *testing.T) {
	now := fixedNow()
	for _, plan := range []models.Plan{models.PlanTrial, models.PlanPremium, models.PlanBlocked, models.PlanFree} {
		for _, offset := range []time.Duration{-72 * time.Hour, -time.Second, 0} {
			exp := now.Add(offset)
			acc := models.Account{Plan: plan, TrialExpiresAt: &exp, PremiumExpiresAt: &exp}
			assert.False(t, Authorized(&acc, now), "%s %s", plan, offset)
			acc.Tester = true
			assert.True(t, Authorized(&acc, now), "%s %s tester", plan, offset)
		}
	}
	assert.True(t, Authorized(&models.Account{Plan: models.PlanTester}, now))
}

// ---------------------------------------------------------------------------
// Authorize
// ---------------------------------------------------------------------------

func seedEntries(db *fakeDB, acc *models.Account, n int, at time.Time) {
	for i := 0; i < n; i++ {
		db.entries = append(db.entries, &models.LedgerEntry{
			ID: uuid.New(), AccountID: acc.ID, Amount: decimal.NewFromInt(1),
			Direction: models.DirectionOut, OccurredAt: at,
		})
	}
}

func TestAuthorize_ExpiredIsDenied(t *testing.T) {
	f := newFixture()
	denial, err := f.ent.Authorize(context.Background(), &Decision{Account: &models.Account{Plan: models.PlanBlocked}}, OpRead)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenialExpired, denial.Reason)
}

func TestAuthorize_TrialLedgerCap(t *testing.T) {
	f := newFixture()
	acc := trialAccount("p1", f.now)
	seedEntries(f.db, acc, f.ent.Policy.TrialLedgerCap, f.now)
	d := &Decision{Account: acc, Authorized: true}

	denial, err := f.ent.Authorize(context.Background(), d, OpLedgerWrite)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenialTrialLedger, denial.Reason)
	assert.Equal(t, 10, denial.Cap)

	for _, op := range []Operation{OpRead, OpWrite} {
		denial, err = f.ent.Authorize(context.Background(), d, op)
		require.NoError(t, err)
		assert.Nil(t, denial)
	}

	premium := *acc
	premium.Plan = models.PlanPremium
	denial, err = f.ent.Authorize(context.Background(), &Decision{Account: &premium, Authorized: true}, OpLedgerWrite)
	require.NoError(t, err)
	assert.Nil(t, denial)
}

func TestAuthorize_TrialInteractionCap(t *testing.T) {
	f := newFixture()
	f.ent.Policy.TrialInteractionCap = 3
	acc := trialAccount("p1", f.now)
	for i := 0; i < 3; i++ {
		f.db.interactions = append(f.db.interactions, &models.InteractionRecord{ID: uuid.New(), AccountID: acc.ID})
	}
	denial, err := f.ent.Authorize(context.Background(), &Decision{Account: acc, Authorized: true}, OpRead)
	require.NoError(t, err)
	require.NotNil(t, denial)
	assert.Equal(t, DenialTrialInteractions, denial.Reason)
}

func TestGrant(t *testing.T) {
	now := fixedNow()
	acc := &models.Account{Plan: models.PlanBlocked}
	Grant(acc, models.PlanPremium, 30, now)
	assert.Equal(t, models.PlanPremium, acc.Plan)
	require.NotNil(t, acc.PremiumExpiresAt)
	assert.True(t, Authorized(acc, now))
	assert.False(t, Authorized(acc, now.AddDate(0, 0, 31)))

	Grant(acc, models.PlanTester, 0, now)
	assert.True(t, acc.Tester)
}
