package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/savingsbot/internal/alert"
	"github.com/cameronsjo/savingsbot/internal/preflight"
	"github.com/cameronsjo/savingsbot/internal/ui"
)

const doctorAlertTimeout = 10 * time.Second

var doctorAlert bool

// doctorCmd runs pre-flight checks.
var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Aliases: []string{"checkup"},
	Short:   "Check that the worker can start",
	Long: `Run diagnostic checks: worker config, data directory, instance lock,
manifest validity and local secret values. With --alert the results are
also posted to DISCORD_WEBHOOK_URL.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ui.Header("Running pre-flight checks...")
		results := preflight.Run(preflight.Standard(cfg, dotenvPath()))
		for i, r := range results {
			switch {
			case r.OK():
				ui.Step(i+1, "%s: ok", r.Name)
			case r.Required:
				ui.Step(i+1, "%s: failed", r.Name)
				ui.Error("%v", r.Err)
			default:
				ui.Step(i+1, "%s: warning", r.Name)
				ui.Warning("%v", r.Err)
			}
		}

		warnings, errs := preflight.Summarize(results)
		severity := alert.SeverityInfo
		switch {
		case len(errs) > 0:
			severity = alert.SeverityError
		case len(warnings) > 0:
			severity = alert.SeverityWarning
		}

		if doctorAlert {
			mgr := alert.NewManager()
			mgr.AddProvider(alert.NewDiscordProvider(cfg.DiscordWebhookURL, alert.SeverityInfo))
			if !mgr.HasProviders() {
				ui.Warning("--alert given but DISCORD_WEBHOOK_URL is not set")
			} else {
				ctx, cancel := context.WithTimeout(cmd.Context(), doctorAlertTimeout)
				defer cancel()
				issues := append(errs, warnings...)
				if len(issues) == 0 {
					issues = []string{"all checks passed"}
				}
				if err := mgr.SendDoctorAlert(ctx, severity, issues); err != nil {
					ui.Warning("Alert failed: %v", err)
				}
			}
		}

		if len(errs) > 0 {
			return fmt.Errorf("%d check(s) failed", len(errs))
		}
		if len(warnings) > 0 {
			ui.Warning("%d warning(s)", len(warnings))
			return nil
		}
		ui.Success("All checks passed")
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorAlert, "alert", false, "post results to Discord")
	rootCmd.AddCommand(doctorCmd)
}
