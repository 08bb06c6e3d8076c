package bot

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/cameronsjo/savingsbot/internal/messages"
	"github.com/cameronsjo/savingsbot/internal/savings"
)

func reminderJob(chatID int64) string {
	return fmt.Sprintf("reminder:%d", chatID)
}

// setReminder handles the answer to the reminder prompt: "HH:MM" or "off".
func (b *Bot) setReminder(r *request, text string) error {
	if strings.EqualFold(strings.TrimSpace(text), "off") {
		b.clearConversation(r.chatID)
		if err := b.svc.ClearReminder(r.ctx, r.chatID); err != nil {
			return fmt.Errorf("clear reminder: %w", err)
		}
		b.sched.Cancel(reminderJob(r.chatID))
		return b.sendAndDelete(r, messages.ReminderOff, "")
	}

	hour, minute, err := savings.ParseTimeOfDay(text)
	if err != nil {
		return b.sendAndDelete(r, messages.ReminderInvalid, "")
	}

	b.clearConversation(r.chatID)
	if err := b.svc.SetReminder(r.ctx, r.chatID, hour, minute); err != nil {
		return fmt.Errorf("save reminder: %w", err)
	}
	b.scheduleReminder(r.chatID, hour, minute)

	reply, err := messages.Render(messages.ReminderSet, savings.Reminder{ChatID: r.chatID, Hour: hour, Minute: minute})
	if err != nil {
		return err
	}
	return b.sendAndDelete(r, reply, "")
}

func (b *Bot) scheduleReminder(chatID int64, hour, minute int) {
	b.sched.Daily(reminderJob(chatID), hour, minute, func() {
		if _, err := b.send(chatID, messages.ReminderNudge, "", nil); err != nil {
			b.log.WithError(err).WithFields(log.Fields{"chat_id": chatID}).Warn("Failed to send reminder")
		}
	})
}

// RestoreReminders schedules every persisted reminder and returns how many
// there were.
func (b *Bot) RestoreReminders(ctx context.Context) (int, error) {
	reminders, err := b.svc.Reminders(ctx)
	if err != nil {
		return 0, fmt.Errorf("load reminders: %w", err)
	}
	for _, r := range reminders {
		b.scheduleReminder(r.ChatID, r.Hour, r.Minute)
	}
	return len(reminders), nil
}
