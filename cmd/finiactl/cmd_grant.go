package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/finia/backend/internal/models"
	"github.com/finia/backend/internal/repository"
	"github.com/finia/backend/internal/services"
	"github.com/finia/backend/internal/whatsapp"
)

var (
	grantPlan string
	grantDays int
)

// grantCmd changes an account's plan by hand. It touches entitlement fields
// only.
var grantCmd = &cobra.Command{
	Use:     "grant <phone>",
	Short:   "Set an account's plan",
	Example: "  finiactl grant +5511999998888 --plan premium --days 30",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		plan, err := models.ParsePlan(grantPlan)
		if err != nil {
			return err
		}
		if plan == models.PlanFree {
			return fmt.Errorf("FREE is a legacy plan and cannot be granted")
		}
		if (plan == models.PlanPremium || plan == models.PlanTrial) && grantDays <= 0 {
			return fmt.Errorf("--days must be positive for %s", plan)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := openPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		accounts := repository.NewAccountRepo(pool)
		acc, err := accounts.GetByPhone(ctx, whatsapp.NormalizePhone(args[0]))
		if err != nil {
			return fmt.Errorf("find account %s: %w", args[0], err)
		}
		services.Grant(acc, plan, grantDays, time.Now())
		if err := accounts.Update(ctx, acc); err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		printAccounts(cmd.OutOrStdout(), []*models.Account{acc})
		return nil
	},
}

// accountsCmd lists accounts with their entitlement state.
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := openPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		list, err := repository.NewAccountRepo(pool).List(ctx)
		if err != nil {
			return err
		}
		printAccounts(cmd.OutOrStdout(), list)
		return nil
	},
}

func init() {
	grantCmd.Flags().StringVar(&grantPlan, "plan", "premium", "plan to set: trial, premium, tester or blocked")
	grantCmd.Flags().IntVar(&grantDays, "days", 30, "validity in days for trial and premium")
}

func printAccounts(w io.Writer, list []*models.Account) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PHONE\tNAME\tPLAN\tTESTER\tEXPIRES\tACTIVE")
	now := time.Now()
	for _, a := range list {
		exp := "-"
		switch {
		case a.Plan == models.PlanPremium && a.PremiumExpiresAt != nil:
			exp = a.PremiumExpiresAt.Format(time.DateOnly)
		case a.Plan == models.PlanTrial && a.TrialExpiresAt != nil:
			exp = a.TrialExpiresAt.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%t\n", a.Phone, a.Name, a.Plan, a.Tester, exp, services.Authorized(a, now))
	}
	tw.Flush()
}
