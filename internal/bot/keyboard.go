package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"github.com/cameronsjo/savingsbot/internal/messages"
	"github.com/cameronsjo/savingsbot/internal/savings"
	"github.com/cameronsjo/savingsbot/internal/telegram"
)

// Callback data prefixes. Buttons carry "{prefix}_{id}", page turns carry
// "nav_{prefix}_{page}".
const (
	prefixAdd      = "add_to"
	prefixDelete   = "delete"
	prefixProgress = "progress"
	navPrefix      = "nav_"
)

var pickSteps = map[string]step{
	prefixAdd:      stepAddPick,
	prefixDelete:   stepDeletePick,
	prefixProgress: stepProgressPick,
}

var errBadCallback = errors.New("malformed callback data")

// Keyboard builds one page of goal buttons plus Previous/Next as needed.
// Out-of-range pages are clamped.
func Keyboard(goals []savings.Goal, prefix string, page, perPage int) tgbotapi.InlineKeyboardMarkup {
	if perPage < 1 {
		perPage = 1
	}
	if last := (len(goals) - 1) / perPage; page > last {
		page = last
	}
	if page < 0 {
		page = 0
	}

	start := page * perPage
	end := min(start+perPage, len(goals))

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, end-start+1)
	for _, g := range goals[start:end] {
		label, err := messages.Render(messages.ButtonLabel, g)
		if err != nil {
			label = g.Name
		}
		data := fmt.Sprintf("%s_%d", prefix, g.ID)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Previous", fmt.Sprintf("%s%s_%d", navPrefix, prefix, page-1)))
	}
	if end < len(goals) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("%s%s_%d", navPrefix, prefix, page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// ParseNav splits "nav_{prefix}_{page}". The prefix may itself contain
// underscores, so the page is taken from the right.
func ParseNav(data string) (prefix string, page int, err error) {
	payload, ok := strings.CutPrefix(data, navPrefix)
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", errBadCallback, data)
	}
	i := strings.LastIndex(payload, "_")
	if i <= 0 {
		return "", 0, fmt.Errorf("%w: %q", errBadCallback, data)
	}
	page, err = strconv.Atoi(payload[i+1:])
	if err != nil || page < 0 {
		return "", 0, fmt.Errorf("%w: %q", errBadCallback, data)
	}
	return payload[:i], page, nil
}

// ParseSelection reads the goal id out of "{prefix}_{id}".
func ParseSelection(data, prefix string) (uint64, error) {
	raw, ok := strings.CutPrefix(data, prefix+"_")
	if !ok {
		return 0, fmt.Errorf("%w: %q", errBadCallback, data)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errBadCallback, data)
	}
	return id, nil
}

// startPick opens a pick-one conversation with the first keyboard page.
func (b *Bot) startPick(r *request, prefix string) error {
	b.deleteIncoming(r)

	goals, err := b.svc.List(r.ctx, r.userID)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	if len(goals) == 0 {
		b.clearConversation(r.chatID)
		_, err := b.send(r.chatID, messages.NothingToSelect, "", nil)
		return err
	}

	b.setConversation(r.chatID, &conversation{step: pickSteps[prefix]})
	_, err = b.send(r.chatID, messages.WhichOne, "", Keyboard(goals, prefix, 0, b.cfg.ItemsPerPage))
	return err
}

func (b *Bot) handleCallback(r *request) error {
	data := r.cb.Data
	b.answer(r, "")

	if r.cb.Message == nil {
		return nil
	}

	if strings.HasPrefix(data, navPrefix) {
		return b.navigate(r)
	}

	for _, prefix := range []string{prefixAdd, prefixDelete, prefixProgress} {
		if !strings.HasPrefix(data, prefix+"_") {
			continue
		}
		conv := b.conversation(r.chatID)
		if conv == nil || conv.step != pickSteps[prefix] {
			return b.edit(r, messages.MenuExpired, "")
		}
		id, err := ParseSelection(data, prefix)
		if err != nil {
			return err
		}
		switch prefix {
		case prefixAdd:
			return b.selectForAdd(r, id)
		case prefixDelete:
			return b.confirmDelete(r, id)
		default:
			return b.showProgress(r, id)
		}
	}

	r.log.WithFields(log.Fields{"data": data}).Warn("Unhandled callback data")
	return nil
}

func (b *Bot) navigate(r *request) error {
	prefix, page, err := ParseNav(r.cb.Data)
	if _, known := pickSteps[prefix]; err != nil || !known {
		r.log.WithFields(log.Fields{"data": r.cb.Data}).Error("Could not parse navigation callback")
		return b.edit(r, messages.NavError, "")
	}

	goals, err := b.svc.List(r.ctx, r.userID)
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}

	markup := tgbotapi.NewEditMessageReplyMarkup(r.chatID, r.cb.Message.MessageID, Keyboard(goals, prefix, page, b.cfg.ItemsPerPage))
	if _, err := b.sender.Request(markup); err != nil {
		if telegram.IsNotModified(err) {
			return nil
		}
		r.log.WithError(err).Warn("Failed to edit reply markup for navigation")
		return b.edit(r, messages.NavUpdateFailed, "")
	}
	return nil
}

func (b *Bot) selectForAdd(r *request, id uint64) error {
	g, err := b.svc.Get(r.ctx, id)
	if errors.Is(err, savings.ErrNotFound) {
		b.clearConversation(r.chatID)
		return b.edit(r, messages.GoalNotFound, "")
	}
	if err != nil {
		return fmt.Errorf("get goal: %w", err)
	}

	b.setConversation(r.chatID, &conversation{step: stepAddAmount, goalID: g.ID})
	r.log.WithFields(log.Fields{"goal_id": g.ID}).Info("Goal selected for adding")

	text, err := messages.Render(messages.AskAmount, g)
	if err != nil {
		return err
	}
	return b.edit(r, text, "")
}

func (b *Bot) confirmDelete(r *request, id uint64) error {
	b.clearConversation(r.chatID)

	g, err := b.svc.Get(r.ctx, id)
	if errors.Is(err, savings.ErrNotFound) {
		return b.edit(r, messages.AlreadyDeleted, "")
	}
	if err != nil {
		return fmt.Errorf("get goal: %w", err)
	}

	if err := b.svc.Delete(r.ctx, id); err != nil {
		if errors.Is(err, savings.ErrNotFound) {
			return b.edit(r, messages.AlreadyDeleted, "")
		}
		return fmt.Errorf("delete goal: %w", err)
	}
	r.log.WithFields(log.Fields{"goal_id": id}).Info("Deleted goal")

	text, err := messages.Render(messages.Deleted, g)
	if err != nil {
		return err
	}
	return b.edit(r, text, "")
}

func (b *Bot) showProgress(r *request, id uint64) error {
	b.clearConversation(r.chatID)

	g, err := b.svc.Get(r.ctx, id)
	if errors.Is(err, savings.ErrNotFound) {
		return b.edit(r, messages.GoalNotFound, "")
	}
	if err != nil {
		return fmt.Errorf("get goal: %w", err)
	}

	recent, err := b.svc.Recent(r.ctx, id, savings.RecentLimit)
	if err != nil {
		return fmt.Errorf("recent entries: %w", err)
	}
	text, err := messages.ProgressText(g, recent)
	if err != nil {
		return err
	}
	return b.edit(r, text, tgbotapi.ModeMarkdown)
}
