package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/savingsbot/internal/config"
	"github.com/cameronsjo/savingsbot/internal/fileutil"
	"github.com/cameronsjo/savingsbot/internal/messages"
	"github.com/cameronsjo/savingsbot/internal/report"
	"github.com/cameronsjo/savingsbot/internal/savings"
	"github.com/cameronsjo/savingsbot/internal/store"
	"github.com/cameronsjo/savingsbot/internal/ui"
)

var exportOut string

// exportCmd writes the same reports the bot sends, without Telegram.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the CSV and PDF reports from the database",
	Long: `Read the ledger for ALLOWED_USER_ID and write export_*.csv and report_*.pdf
into --out. The database is opened read-only; stop the worker first if it
holds the file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.AllowedUserID == 0 {
			return fmt.Errorf("%s is required to pick whose ledger to export", config.KeyAllowedUserID)
		}

		st, err := openExisting(cfg, store.Options{ReadOnly: true})
		if err != nil {
			return err
		}
		defer st.Close()

		return writeReports(cmd.Context(), savings.NewService(st), cfg.AllowedUserID, exportOut, time.Now())
	},
}

func writeReports(ctx context.Context, svc *savings.Service, userID int64, dir string, at time.Time) error {
	records, err := svc.Records(ctx, userID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		ui.Warning("%s", messages.NothingToExport)
		return nil
	}
	goals, err := svc.List(ctx, userID)
	if err != nil {
		return err
	}

	csvDoc, err := report.CSV(records, at)
	if err != nil {
		return err
	}
	pdfDoc, err := report.PDF(records, savings.Summarize(goals, records), at)
	if err != nil {
		return err
	}

	for _, doc := range []*report.Document{csvDoc, pdfDoc} {
		path := filepath.Join(dir, doc.Filename)
		if err := fileutil.WriteFile(path, doc.Data, 0644); err != nil {
			return err
		}
		ui.Success("Wrote %s", path)
	}
	ui.Money("%d transaction(s) across %d goal(s) and debt(s)", len(records), len(goals))
	return nil
}

// openExisting opens the database, refusing to create a new empty one.
func openExisting(cfg *config.Config, opts store.Options) (*store.Store, error) {
	path := cfg.DBPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no database at %s (check %s)", path, config.KeyDataDir)
	}
	return store.Open(path, opts)
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "directory to write the reports to")
	rootCmd.AddCommand(exportCmd)
}
