package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finia/backend/internal/config"
	"github.com/finia/backend/internal/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		grantPlan, grantDays = "premium", 30
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestGrant_RejectsBeforeTouchingDatabase(t *testing.T) {
	t.Setenv(config.FileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown plan", []string{"grant", "+5511999998888", "--plan", "gold"}, "unknown plan"},
		{"legacy free", []string{"grant", "+5511999998888", "--plan", "free"}, "legacy"},
		{"premium without days", []string{"grant", "+5511999998888", "--plan", "premium", "--days", "0"}, "--days"},
		{"unreadable config", []string{"grant", "+5511999998888", "--plan", "tester"}, "read config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSimulate_RequiresMessage(t *testing.T) {
	_, err := run(t, "simulate", "--phone", "+5511999998888")
	require.Error(t, err)
}

func TestPrintAccounts(t *testing.T) {
	exp := time.Date(2026, 11, 18, 12, 0, 0, 0, time.UTC)
	list := []*models.Account{
		{Phone: "+5511999998888", Name: "Ana", Plan: models.PlanPremium, PremiumExpiresAt: &exp},
		{Phone: "+5521988887777", Name: "Rui", Plan: models.PlanBlocked},
	}
	var out bytes.Buffer
	printAccounts(&out, list)

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "PHONE")
	assert.Contains(t, string(lines[1]), "2026-11-18")
	assert.Contains(t, string(lines[2]), "BLOCKED")
	assert.Contains(t, string(lines[2]), "false")
}
