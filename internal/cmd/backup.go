package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cameronsjo/savingsbot/internal/backup"
	"github.com/cameronsjo/savingsbot/internal/lock"
	"github.com/cameronsjo/savingsbot/internal/store"
	"github.com/cameronsjo/savingsbot/internal/ui"
)

var backupYes bool

// backupCmd groups database backup commands.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage database backups on the data disk",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Copy the database into DATA_DIR/backups",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		return lock.WithLock(cfg.LockPath(), func() error {
			st, err := openExisting(cfg, store.Options{})
			if err != nil {
				return err
			}
			defer st.Close()

			info, err := backup.Create(st, cfg.BackupDir())
			if err != nil {
				return err
			}
			ui.Success("Created %s (%s)", info.Name, humanSize(info.Size))

			removed, err := backup.Cleanup(cfg.BackupDir(), cfg.MaxBackups)
			if removed > 0 {
				ui.Info("Pruned %d old backup(s)", removed)
			}
			return err
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		backups, err := backup.List(cfg.BackupDir())
		if err != nil {
			return err
		}
		if len(backups) == 0 {
			ui.Info("No backups in %s", cfg.BackupDir())
			return nil
		}

		for _, b := range backups {
			note := ""
			if b.PreRestore {
				note = "  (pre-restore)"
			}
			ui.Disk("%s  %s  %s%s", b.Name, b.Created.Local().Format(time.DateTime), humanSize(b.Size), note)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:               "restore NAME",
	Short:             "Replace the database with a backup",
	Long:              "Replace the database with a backup. The worker must be stopped; the current database is kept as a pre-restore copy.",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeBackupNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if !backupYes {
			ok, err := promptYesNo(fmt.Sprintf("Replace %s with %s?", cfg.DBPath(), args[0]))
			if err != nil {
				return err
			}
			if !ok {
				ui.Info("Restore cancelled")
				return nil
			}
		}

		err = lock.WithLock(cfg.LockPath(), func() error {
			return backup.Restore(cfg.BackupDir(), args[0], cfg.DBPath())
		})
		if err != nil {
			return err
		}
		ui.Success("Restored %s", args[0])
		return nil
	},
}

// completeBackupNames completes backup file names for restore.
func completeBackupNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	backups, err := backup.List(cfg.BackupDir())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var names []string
	for _, b := range backups {
		if strings.HasPrefix(b.Name, toComplete) {
			names = append(names, b.Name+"\t"+b.Created.Local().Format(time.DateTime))
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// promptYesNo asks the user a yes/no question.
// Returns error if stdin is not a TTY and cannot read input.
func promptYesNo(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("cannot prompt for input: stdin is not a TTY. Use --yes to skip the prompt")
	}

	fmt.Fprintf(ui.Output(), "%s [y/N] ", question)

	response, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("read user input: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	backupRestoreCmd.Flags().BoolVarP(&backupYes, "yes", "y", false, "skip the confirmation prompt")

	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}
