// Package bot turns Telegram updates into ledger operations: it owns the
// per-chat conversations, the pick-one keyboards, message clean-up and the
// owner-only access check.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/cameronsjo/savingsbot/internal/messages"
	"github.com/cameronsjo/savingsbot/internal/savings"
	"github.com/cameronsjo/savingsbot/internal/telegram"
)

// Scheduler runs the bot's delayed deletions and daily reminders.
type Scheduler interface {
	After(delay time.Duration, fn func())
	Daily(name string, hour, minute int, fn func())
	Cancel(name string) bool
}

// Alerter is told about updates whose handler failed.
type Alerter interface {
	SendHandlerError(ctx context.Context, correlationID, trigger string, cause error) error
}

// Config holds the bot's behavior knobs.
type Config struct {
	// AllowedUserID is the only Telegram user the bot answers.
	AllowedUserID int64
	// DeletionDelay is how long bot replies stay in the chat. Zero keeps them.
	DeletionDelay time.Duration
	// ItemsPerPage is the number of goals per keyboard page.
	ItemsPerPage int
}

// Bot handles updates one at a time.
type Bot struct {
	cfg    Config
	sender telegram.Sender
	svc    *savings.Service
	sched  Scheduler
	alerts Alerter
	now    func() time.Time

	mu    sync.Mutex
	convs map[int64]*conversation

	log *log.Entry
}

// New creates a Bot. alerts may be nil.
func New(cfg Config, sender telegram.Sender, svc *savings.Service, sched Scheduler, alerts Alerter) *Bot {
	if cfg.ItemsPerPage < 1 {
		cfg.ItemsPerPage = 5
	}
	return &Bot{
		cfg:    cfg,
		sender: sender,
		svc:    svc,
		sched:  sched,
		alerts: alerts,
		now:    time.Now,
		convs:  make(map[int64]*conversation),
		log:    log.WithFields(log.Fields{"component": "bot"}),
	}
}

// request is one update being handled.
type request struct {
	ctx    context.Context
	id     string
	chatID int64
	userID int64
	msg    *tgbotapi.Message
	cb     *tgbotapi.CallbackQuery
	log    *log.Entry
}

// Run handles updates until ctx is done or the channel closes.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	b.log.Info("Listening for updates")
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			b.Handle(ctx, u)
		}
	}
}

// Handle processes a single update. Handler errors are logged, answered with
// the fallback reply and alerted; they never propagate.
func (b *Bot) Handle(ctx context.Context, u tgbotapi.Update) {
	from := u.SentFrom()
	chat := u.FromChat()
	if from == nil || chat == nil || (u.Message == nil && u.CallbackQuery == nil) {
		return
	}

	r := &request{
		ctx:    ctx,
		id:     uuid.NewString(),
		chatID: chat.ID,
		userID: from.ID,
		msg:    u.Message,
		cb:     u.CallbackQuery,
	}
	r.log = b.log.WithFields(log.Fields{
		"correlation_id": r.id,
		"update_id":      u.UpdateID,
		"chat_id":        r.chatID,
	})

	if r.userID != b.cfg.AllowedUserID {
		b.deny(r)
		return
	}

	var err error
	if r.cb != nil {
		err = b.handleCallback(r)
	} else {
		err = b.handleMessage(r)
	}
	if err != nil {
		b.fail(r, err)
	}
}

func (b *Bot) handleMessage(r *request) error {
	if r.msg.IsCommand() {
		switch r.msg.Command() {
		case "start", "help":
			return b.sendAndDelete(r, messages.Manual(), tgbotapi.ModeMarkdown)
		case "cancel":
			b.clearConversation(r.chatID)
			return b.sendAndDelete(r, messages.Aborted, "")
		default:
			r.log.WithFields(log.Fields{"command": r.msg.Command()}).Debug("Ignoring unknown command")
			return nil
		}
	}
	if r.msg.Text == "" {
		return nil
	}
	return b.handleText(r, r.msg.Text)
}

func (b *Bot) handleText(r *request, text string) error {
	if conv := b.conversation(r.chatID); conv != nil && conv.step.wantsText() {
		return b.continueConversation(r, conv, text)
	}

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "new goal":
		b.setConversation(r.chatID, &conversation{step: stepGoalName})
		return b.sendAndDelete(r, messages.NewGoalPrompt, "")
	case "new debt":
		b.setConversation(r.chatID, &conversation{step: stepDebtName})
		return b.sendAndDelete(r, messages.NewDebtPrompt, "")
	case "add":
		return b.startPick(r, prefixAdd)
	case "delete":
		return b.startPick(r, prefixDelete)
	case "progress":
		return b.startPick(r, prefixProgress)
	case "set reminder":
		b.setConversation(r.chatID, &conversation{step: stepReminderTime})
		return b.sendAndDelete(r, messages.ReminderPrompt, "")
	case "view all":
		return b.viewAll(r)
	case "export":
		return b.export(r)
	default:
		reply, err := messages.UnknownText(text)
		if err != nil {
			return err
		}
		return b.sendAndDelete(r, reply, tgbotapi.ModeMarkdown)
	}
}

func (b *Bot) viewAll(r *request) error {
	goals, err := b.svc.List(r.ctx, r.userID)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	text, err := messages.GoalListText(goals)
	if err != nil {
		return err
	}
	return b.sendAndDelete(r, text, tgbotapi.ModeMarkdown)
}

// deny turns away anyone but the owner.
func (b *Bot) deny(r *request) {
	r.log.WithFields(log.Fields{"user_id": r.userID}).Warn("Rejected update from unknown user")

	var err error
	if r.cb != nil {
		cb := tgbotapi.NewCallbackWithAlert(r.cb.ID, messages.AccessDenied)
		_, err = b.sender.Request(cb)
	} else {
		msg := tgbotapi.NewMessage(r.chatID, messages.AccessDenied)
		msg.ReplyToMessageID = r.msg.MessageID
		_, err = b.sender.Send(msg)
	}
	if err != nil {
		r.log.WithError(err).Warn("Failed to send access denied reply")
	}
}

// fail is the last stop for handler errors.
func (b *Bot) fail(r *request, cause error) {
	r.log.WithError(cause).Error("Exception while handling an update")
	b.clearConversation(r.chatID)

	if r.cb != nil {
		if _, err := b.sender.Request(tgbotapi.NewCallback(r.cb.ID, messages.Bug)); err != nil {
			r.log.WithError(err).Debug("Callback already answered")
		}
		if r.cb.Message != nil {
			edit := tgbotapi.NewEditMessageText(r.chatID, r.cb.Message.MessageID, messages.Bug)
			if _, err := b.sender.Request(edit); err != nil {
				r.log.WithError(err).Warn("Failed to report error to user")
			}
		}
	} else if r.msg != nil {
		msg := tgbotapi.NewMessage(r.chatID, messages.Bug)
		msg.ReplyToMessageID = r.msg.MessageID
		if _, err := b.sender.Send(msg); err != nil {
			r.log.WithError(err).Warn("Failed to report error to user")
		}
	}

	if b.alerts != nil {
		if err := b.alerts.SendHandlerError(r.ctx, r.id, r.trigger(), cause); err != nil {
			r.log.WithError(err).Warn("Failed to send alert")
		}
	}
}

// trigger names what the user did, for alerts.
func (r *request) trigger() string {
	if r.cb != nil {
		return "callback:" + r.cb.Data
	}
	if r.msg != nil {
		return strings.ToLower(strings.TrimSpace(r.msg.Text))
	}
	return ""
}
