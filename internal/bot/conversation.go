package bot

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/cameronsjo/savingsbot/internal/messages"
	"github.com/cameronsjo/savingsbot/internal/savings"
)

type step int

const (
	stepGoalName step = iota + 1
	stepGoalAmount
	stepGoalCurrency
	stepDebtName
	stepDebtAmount
	stepDebtCurrency
	stepAddPick
	stepAddAmount
	stepDeletePick
	stepProgressPick
	stepReminderTime
)

// wantsText reports whether the step consumes the next text message.
// Pick steps wait for a button press instead.
func (s step) wantsText() bool {
	switch s {
	case stepAddPick, stepDeletePick, stepProgressPick:
		return false
	default:
		return true
	}
}

// conversation is what a chat has told the bot so far.
type conversation struct {
	step   step
	name   string
	target float64
	goalID uint64
}

func (b *Bot) conversation(chatID int64) *conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.convs[chatID]
}

func (b *Bot) setConversation(chatID int64, c *conversation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.convs[chatID] = c
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.convs, chatID)
}

func (b *Bot) continueConversation(r *request, c *conversation, text string) error {
	switch c.step {
	case stepGoalName, stepDebtName:
		return b.collectName(r, c, text)
	case stepGoalAmount, stepDebtAmount:
		return b.collectTarget(r, c, text)
	case stepGoalCurrency, stepDebtCurrency:
		return b.create(r, c, text)
	case stepAddAmount:
		return b.addAmount(r, c, text)
	case stepReminderTime:
		return b.setReminder(r, text)
	default:
		return fmt.Errorf("conversation in unexpected step %d", c.step)
	}
}

func (b *Bot) collectName(r *request, c *conversation, text string) error {
	c.name = strings.TrimSpace(text)

	tmpl := messages.GoalNamed
	debt := c.kind() == savings.KindDebt
	c.step = stepGoalAmount
	if debt {
		tmpl = messages.DebtNamed
		c.step = stepDebtAmount
	}

	reply, err := messages.Render(tmpl, c)
	if err != nil {
		return err
	}
	return b.sendAndDelete(r, reply, "")
}

func (b *Bot) collectTarget(r *request, c *conversation, text string) error {
	target, err := savings.ParseAmount(text)
	if err != nil {
		return b.sendAndDelete(r, messages.NotANumber, "")
	}
	if target <= 0 {
		return b.sendAndDelete(r, messages.TargetNotPositive, "")
	}
	c.target = target

	if c.kind() == savings.KindDebt {
		c.step = stepDebtCurrency
		return b.sendAndDelete(r, messages.DebtCurrency, "")
	}
	c.step = stepGoalCurrency
	return b.sendAndDelete(r, messages.GoalCurrency, "")
}

func (b *Bot) create(r *request, c *conversation, currency string) error {
	kind := c.kind()
	b.clearConversation(r.chatID)

	g, err := b.svc.Create(r.ctx, r.userID, c.name, c.target, currency, kind)
	if errors.Is(err, savings.ErrDuplicateName) {
		if kind == savings.KindDebt {
			return b.sendAndDelete(r, messages.DebtNameTaken, "")
		}
		return b.sendAndDelete(r, messages.GoalNameTaken, "")
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", kind, err)
	}

	r.log.WithFields(log.Fields{"goal_id": g.ID, "kind": g.Kind}).Info("Created goal")

	tmpl := messages.GoalCreated
	if kind == savings.KindDebt {
		tmpl = messages.DebtCreated
	}
	reply, err := messages.Render(tmpl, g)
	if err != nil {
		return err
	}
	return b.sendAndDelete(r, reply, "")
}

func (b *Bot) addAmount(r *request, c *conversation, text string) error {
	amount, err := savings.ParseAmount(text)
	if err != nil {
		r.log.WithFields(log.Fields{"input": text}).Warn("Invalid amount input")
		return b.sendAndDelete(r, messages.InvalidAmount, "")
	}

	b.clearConversation(r.chatID)
	if c.goalID == 0 {
		r.log.Error("Amount received without a selected goal")
		return b.sendAndDelete(r, messages.LostTrack, "")
	}

	g, milestone, err := b.svc.AddEntry(r.ctx, c.goalID, amount)
	switch {
	case errors.Is(err, savings.ErrNotFound):
		return b.sendAndDelete(r, messages.GoalNotFound, "")
	case errors.Is(err, savings.ErrInvalidAmount):
		r.log.WithError(err).WithFields(log.Fields{"goal_id": c.goalID}).Warn("Rejected amount")
		return b.sendAndDelete(r, messages.InvalidAmount, "")
	case err != nil && g == nil:
		r.log.WithError(err).WithFields(log.Fields{"goal_id": c.goalID}).Error("Failed to save entry")
		return b.sendAndDelete(r, messages.SaveFailed, "")
	case err != nil:
		// The entry is saved; only the one-time notice flag failed.
		r.log.WithError(err).WithFields(log.Fields{"goal_id": g.ID}).Warn("Failed to flag milestone notice")
	}

	r.log.WithFields(log.Fields{"goal_id": g.ID, "amount": amount}).Info("Amount saved")

	reply, err := messages.Render(messages.EntryLogged, map[string]any{
		"Amount":   amount,
		"Currency": g.Currency,
		"Name":     g.Name,
	})
	if err != nil {
		return err
	}
	if err := b.sendAndDelete(r, reply, ""); err != nil {
		return err
	}

	notice, err := messages.MilestoneText(milestone, g)
	if err != nil || notice == "" {
		return err
	}
	_, err = b.send(r.chatID, notice, tgbotapi.ModeMarkdown, nil)
	return err
}

// kind is inferred from the step the conversation is in.
func (c *conversation) kind() savings.Kind {
	switch c.step {
	case stepDebtName, stepDebtAmount, stepDebtCurrency:
		return savings.KindDebt
	default:
		return savings.KindGoal
	}
}

// Name lets conversation feed the *_named templates directly.
func (c *conversation) Name() string {
	return c.name
}
