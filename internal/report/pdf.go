package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/cameronsjo/savingsbot/internal/messages"
	"github.com/cameronsjo/savingsbot/internal/savings"
)

type rgb struct{ r, g, b int }

var (
	summaryHeaderFill = rgb{128, 128, 128}
	historyHeaderFill = rgb{0, 0, 139}
	evenRowFill       = rgb{173, 216, 230}
	oddRowFill        = rgb{245, 245, 220}
	headerText        = rgb{245, 245, 245}
)

// Column widths in points, letter page.
var (
	summaryWidths = []float64{180, 180}
	historyWidths = []float64{144, 58, 72, 72, 108}
)

const rowHeight = 18

// SummaryRows flattens a summary into the stat/value pairs of the summary table.
func SummaryRows(s savings.Summary) [][2]string {
	rows := [][2]string{
		{"Total Savings Goals", fmt.Sprint(s.Goals)},
		{"Total Debts", fmt.Sprint(s.Debts)},
	}
	if len(s.Saved) > 0 {
		rows = append(rows, [2]string{"--- Total Saved ---", ""})
		for _, c := range savings.Currencies(s.Saved) {
			rows = append(rows, [2]string{fmt.Sprintf("Total Saved (%s)", c), messages.Money(s.Saved[c])})
		}
	}
	if len(s.Paid) > 0 {
		rows = append(rows, [2]string{"--- Total Debt Paid ---", ""})
		for _, c := range savings.Currencies(s.Paid) {
			rows = append(rows, [2]string{fmt.Sprintf("Total Debt Paid (%s)", c), messages.Money(s.Paid[c])})
		}
	}
	return rows
}

// PDF renders the summary and transaction history in memory.
func PDF(records []savings.Record, summary savings.Summary, at time.Time) (*Document, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetTitle("Savings & Debts Report", true)
	pdf.SetAutoPageBreak(true, 54)
	// Core fonts are cp1252; names outside it come out lossy. The CSV keeps full UTF-8.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 30, "Savings & Debts Report", "", 1, "C", false, 0, "")
	pdf.Ln(12)

	heading(pdf, "Summary")
	fill(pdf, summaryHeaderFill)
	textColor(pdf, headerText)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(summaryWidths[0], rowHeight, "Stat", "1", 0, "L", true, 0, "")
	pdf.CellFormat(summaryWidths[1], rowHeight, "Value", "1", 1, "L", true, 0, "")

	textColor(pdf, rgb{})
	pdf.SetFont("Helvetica", "", 11)
	for _, row := range SummaryRows(summary) {
		pdf.CellFormat(summaryWidths[0], rowHeight, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(summaryWidths[1], rowHeight, row[1], "1", 1, "L", false, 0, "")
	}
	pdf.Ln(24)

	heading(pdf, "Transaction History")
	fill(pdf, historyHeaderFill)
	textColor(pdf, headerText)
	pdf.SetFont("Helvetica", "B", 11)
	for i, h := range []string{"Name", "Type", "Amount", "Currency", "Date"} {
		pdf.CellFormat(historyWidths[i], rowHeight, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	textColor(pdf, rgb{})
	pdf.SetFont("Helvetica", "", 10)
	for i, r := range records {
		// Row 1 follows the header, so odd data rows get the beige fill.
		if (i+1)%2 == 0 {
			fill(pdf, evenRowFill)
		} else {
			fill(pdf, oddRowFill)
		}
		cells := []string{
			tr(r.Name),
			string(r.Kind),
			messages.Money(r.Amount),
			tr(r.Currency),
			r.SavedAt.UTC().Format("2006-01-02"),
		}
		for j, c := range cells {
			pdf.CellFormat(historyWidths[j], rowHeight, c, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return &Document{Filename: PDFName(at), Data: buf.Bytes()}, nil
}

func heading(pdf *fpdf.Fpdf, text string) {
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(0, 24, text, "", 1, "L", false, 0, "")
}

func fill(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetFillColor(c.r, c.g, c.b)
}

func textColor(pdf *fpdf.Fpdf, c rgb) {
	pdf.SetTextColor(c.r, c.g, c.b)
}
