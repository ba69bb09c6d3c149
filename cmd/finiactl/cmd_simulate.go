package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finia/backend/internal/app"
	"github.com/finia/backend/internal/services"
	"github.com/finia/backend/internal/whatsapp"
)

var (
	simPhone     string
	simName      string
	simMessageID string
)

// simulateCmd runs one message through the real pipeline and prints the
// reply instead of sending it. Writes go to the configured database.
var simulateCmd = &cobra.Command{
	Use:   "simulate [message]",
	Short: "Process a message as if it came from WhatsApp",
	Example: `  finiactl simulate --phone +5511999998888 "Gastei 50 no mercado"
  finiactl simulate --phone +5511999998888 --message-id wamid.1 "quanto gastei essa semana?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateCore(); err != nil {
			return err
		}
		phone := whatsapp.NormalizePhone(simPhone)
		if phone == "" {
			return fmt.Errorf("--phone is required")
		}

		pool, err := openPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		core, err := app.Build(ctx, cfg, pool, logger)
		if err != nil {
			return err
		}

		res := core.Processor.Process(ctx, services.Inbound{
			Phone:     phone,
			Name:      simName,
			MessageID: simMessageID,
			Text:      strings.Join(args, " "),
		})
		out := core.Composer.Compose(ctx, res)

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "[%s]\n", res.Kind)
		if out.Text != "" {
			fmt.Fprintln(w, out.Text)
		}
		if out.Image != nil {
			fmt.Fprintf(w, "[image %d bytes] %s\n", len(out.Image.PNG), out.Image.Caption)
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simPhone, "phone", "", "sender phone number")
	simulateCmd.Flags().StringVar(&simName, "name", "", "sender display name")
	simulateCmd.Flags().StringVar(&simMessageID, "message-id", "", "inbound message id, for dedup")
}
