package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/cameronsjo/savingsbot/internal/telegram"
)

// send posts text to chatID. When Telegram rejects the markup the text is
// retried without a parse mode.
func (b *Bot) send(chatID int64, text, parseMode string, markup any) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	sent, err := b.sender.Send(msg)
	if err != nil && parseMode != "" && telegram.IsEntityParseError(err) {
		msg.ParseMode = ""
		sent, err = b.sender.Send(msg)
	}
	if err != nil {
		return sent, fmt.Errorf("send message: %w", err)
	}
	return sent, nil
}

// sendAndDelete keeps the chat tidy: the user's message goes away right
// away, the reply after the deletion delay.
func (b *Bot) sendAndDelete(r *request, text, parseMode string) error {
	b.deleteIncoming(r)

	sent, err := b.send(r.chatID, text, parseMode, nil)
	if err != nil {
		return err
	}
	b.deleteLater(r.chatID, sent.MessageID)
	return nil
}

func (b *Bot) deleteIncoming(r *request) {
	if r.msg == nil {
		return
	}
	if _, err := b.sender.Request(tgbotapi.NewDeleteMessage(r.chatID, r.msg.MessageID)); err != nil {
		r.log.WithError(err).WithFields(log.Fields{"message_id": r.msg.MessageID}).Warn("Could not delete user's message")
	}
}

func (b *Bot) deleteLater(chatID int64, messageID int) {
	if b.cfg.DeletionDelay <= 0 || messageID == 0 {
		return
	}
	b.sched.After(b.cfg.DeletionDelay, func() {
		_, err := b.sender.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
		if err != nil && !telegram.IsMessageGone(err) {
			b.log.WithError(err).WithFields(log.Fields{"chat_id": chatID, "message_id": messageID}).Warn("Could not delete message")
		}
	})
}

// edit replaces the text of the message carrying the pressed keyboard.
func (b *Bot) edit(r *request, text, parseMode string) error {
	edit := tgbotapi.NewEditMessageText(r.chatID, r.cb.Message.MessageID, text)
	edit.ParseMode = parseMode

	_, err := b.sender.Request(edit)
	if err != nil && parseMode != "" && telegram.IsEntityParseError(err) {
		edit.ParseMode = ""
		_, err = b.sender.Request(edit)
	}
	if err != nil && !telegram.IsNotModified(err) {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// answer acknowledges a button press so the client stops its spinner.
func (b *Bot) answer(r *request, text string) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(r.cb.ID, text)); err != nil {
		r.log.WithError(err).Debug("Failed to answer callback")
	}
}
