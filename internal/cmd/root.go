// Package cmd provides the CLI commands for savingsbot.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/savingsbot/internal/config"
	"github.com/cameronsjo/savingsbot/internal/ui"
)

// version is set at build time with -ldflags "-X .../internal/cmd.version=...".
var version = "dev"

var (
	cfgFile string
	envFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "savingsbot",
	Short: "A snarky Telegram bot that tracks savings goals and debts",
	Long: `savingsbot - a snarky savings tracker for one Telegram user

The worker polls Telegram and keeps its ledger on a persistent disk. The
same binary validates the deployment manifest (render.yaml) and maintains
the data directory.

WORKER
  run                         Start polling Telegram (the manifest's startCommand)

MANIFEST
  manifest validate [file]    Check render.yaml against the platform schema
  manifest show [file]        Summarize services, env vars and disks
  manifest env [file]         Show the environment the worker would get
    --reveal                  Print secret values instead of masking them
  manifest init [file]        Write the default render.yaml

DATA
  export --out DIR            Write the CSV and PDF reports from the database
  backup create               Copy the database into DATA_DIR/backups
  backup list                 List backups, newest first
  backup restore NAME         Replace the database with a backup

DIAGNOSTICS
  doctor                      Check config, data dir, lock and manifest

Settings come from the environment, a .env file and an optional YAML file
(--config). Environment variables win.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetOutput(cmd.OutOrStdout())
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves settings from the persistent flags and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{ConfigFile: cfgFile, EnvFile: envFile})
	if err != nil {
		return nil, err
	}
	if err := cfg.ConfigureLogging(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// dotenvPath is the .env file the CLI reads.
func dotenvPath() string {
	if envFile != "" {
		return envFile
	}
	return ".env"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file (default .env)")

	rootCmd.SetVersionTemplate("savingsbot version {{.Version}}\n")
}
