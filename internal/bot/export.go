package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/cameronsjo/savingsbot/internal/messages"
	"github.com/cameronsjo/savingsbot/internal/report"
	"github.com/cameronsjo/savingsbot/internal/savings"
)

// export sends the full history as CSV, then as PDF. A PDF failure is
// reported to the user but does not undo the CSV.
func (b *Bot) export(r *request) error {
	if _, err := b.send(r.chatID, messages.ExportStarted, "", nil); err != nil {
		return err
	}

	records, err := b.svc.Records(r.ctx, r.userID)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	if len(records) == 0 {
		_, err := b.send(r.chatID, messages.NothingToExport, "", nil)
		return err
	}
	goals, err := b.svc.List(r.ctx, r.userID)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}

	at := b.now()
	csvDoc, err := report.CSV(records, at)
	if err != nil {
		return err
	}
	if err := b.sendDocument(r.chatID, csvDoc, messages.CSVCaption); err != nil {
		return err
	}

	pdfDoc, err := report.PDF(records, savings.Summarize(goals, records), at)
	if err == nil {
		err = b.sendDocument(r.chatID, pdfDoc, messages.PDFCaption)
	}
	if err != nil {
		r.log.WithError(err).Error("Failed to generate or send PDF")
		_, err = b.send(r.chatID, messages.PDFFailed, "", nil)
		return err
	}

	r.log.WithFields(log.Fields{"records": len(records)}).Info("Exported history")
	return nil
}

func (b *Bot) sendDocument(chatID int64, doc *report.Document, caption string) error {
	upload := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Filename, Bytes: doc.Data})
	upload.Caption = caption
	if _, err := b.sender.Send(upload); err != nil {
		return fmt.Errorf("send %s: %w", doc.Filename, err)
	}
	return nil
}
