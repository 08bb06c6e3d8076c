package alert

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/cameronsjo/savingsbot/internal/messages"
	"github.com/cameronsjo/savingsbot/internal/telegram"
)

// TelegramProvider posts alerts into the owner's chat through the bot itself.
type TelegramProvider struct {
	sender      telegram.Sender
	chatID      int64
	minSeverity Severity
}

// NewTelegramProvider creates a provider that messages chatID. Alerts below
// minSeverity are dropped so routine notices do not clutter the chat.
func NewTelegramProvider(sender telegram.Sender, chatID int64, minSeverity Severity) *TelegramProvider {
	return &TelegramProvider{sender: sender, chatID: chatID, minSeverity: minSeverity}
}

// Name returns the provider name.
func (p *TelegramProvider) Name() string {
	return "telegram"
}

// IsConfigured returns true when there is a sender and an owner chat.
func (p *TelegramProvider) IsConfigured() bool {
	return p.sender != nil && p.chatID != 0
}

// Send delivers the alert as a plain-text chat message.
func (p *TelegramProvider) Send(ctx context.Context, alert *Alert) error {
	if !p.IsConfigured() || !alert.Severity.AtLeast(p.minSeverity) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text, err := messages.Render(messages.AlertText, alert)
	if err != nil {
		return err
	}

	if _, err := p.sender.Send(tgbotapi.NewMessage(p.chatID, truncateString(text, 4096))); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
