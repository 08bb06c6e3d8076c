package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cameronsjo/savingsbot/internal/daemon"
)

// runCmd starts the worker.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot worker",
	Long: `Start the bot worker in the foreground.

The worker:
  - claims DATA_DIR with a lock so only one instance polls
  - opens the ledger database on the persistent disk
  - restores saved daily reminders
  - long-polls Telegram and answers the owner
  - backs up the database every BACKUP_INTERVAL
  - shuts down cleanly on SIGTERM/SIGINT

Required environment:
  TELEGRAM_BOT_TOKEN     Bot API token
  ALLOWED_USER_ID        The only Telegram user the bot talks to`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateWorker(); err != nil {
			return err
		}
		return daemon.New(cfg, nil).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
