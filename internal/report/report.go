// Package report turns the transaction history into the files the export
// command sends: a CSV of every entry and a PDF with a summary table.
package report

import (
	"fmt"
	"time"
)

// Document is a rendered export ready to upload.
type Document struct {
	Filename string
	Data     []byte
}

// CSVName returns the export filename for a CSV generated at t.
func CSVName(t time.Time) string {
	return fmt.Sprintf("export_%s.csv", t.Format("20060102_150405"))
}

// PDFName returns the export filename for a PDF generated at t.
func PDFName(t time.Time) string {
	return fmt.Sprintf("report_%s.pdf", t.Format("20060102_150405"))
}
