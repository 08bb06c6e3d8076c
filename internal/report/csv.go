package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/cameronsjo/savingsbot/internal/messages"
	"github.com/cameronsjo/savingsbot/internal/savings"
)

var csvHeader = []string{"Name", "Type", "Target", "Currency", "Amount Paid/Saved", "Date"}

// CSV writes one row per entry, in the order given.
func CSV(records []savings.Record, at time.Time) (*Document, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Name,
			string(r.Kind),
			messages.Money(r.Target),
			r.Currency,
			messages.Money(r.Amount),
			r.SavedAt.UTC().Format("2006-01-02 15:04"),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return &Document{Filename: CSVName(at), Data: buf.Bytes()}, nil
}
