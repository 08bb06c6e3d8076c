package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/savingsbot/internal/messages"
	"github.com/cameronsjo/savingsbot/internal/savings"
	"github.com/cameronsjo/savingsbot/internal/store"
)

const (
	ownerID = int64(5134940733)
	chatID  = int64(5134940733)
	strange = int64(42)
)

// fakeSender records every call and hands out increasing message ids.
type fakeSender struct {
	mu     sync.Mutex
	nextID int
	calls  []tgbotapi.Chattable
	fail   func(tgbotapi.Chattable) error
}

func (f *fakeSender) record(c tgbotapi.Chattable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		if err := f.fail(c); err != nil {
			return err
		}
	}
	f.calls = append(f.calls, c)
	return nil
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := f.record(c); err != nil {
		return tgbotapi.Message{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return tgbotapi.Message{MessageID: 1000 + f.nextID}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := f.record(c); err != nil {
		return nil, err
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// texts returns the text of every sent message and edit, in order.
func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		switch v := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, v.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, v.Text)
		}
	}
	return out
}

func (f *fakeSender) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func callsOf[T tgbotapi.Chattable](f *fakeSender) []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []T
	for _, c := range f.calls {
		if v, ok := c.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

type dailyJob struct {
	hour, minute int
	fn           func()
}

// fakeScheduler holds jobs until the test runs them.
type fakeScheduler struct {
	mu     sync.Mutex
	afters []time.Duration
	fns    []func()
	daily  map[string]dailyJob
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{daily: make(map[string]dailyJob)}
}

func (s *fakeScheduler) After(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afters = append(s.afters, delay)
	s.fns = append(s.fns, fn)
}

func (s *fakeScheduler) Daily(name string, hour, minute int, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily[name] = dailyJob{hour: hour, minute: minute, fn: fn}
}

func (s *fakeScheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.daily[name]
	delete(s.daily, name)
	return ok
}

func (s *fakeScheduler) runAfters() {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type fakeAlerter struct {
	triggers []string
	causes   []error
}

func (a *fakeAlerter) SendHandlerError(_ context.Context, _ string, trigger string, cause error) error {
	a.triggers = append(a.triggers, trigger)
	a.causes = append(a.causes, cause)
	return nil
}

type harness struct {
	bot    *Bot
	sender *fakeSender
	sched  *fakeScheduler
	alerts *fakeAlerter
	svc    *savings.Service
	store  *store.Store
	seq    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "savings_bot.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{
		sender: &fakeSender{},
		sched:  newFakeScheduler(),
		alerts: &fakeAlerter{},
		svc:    savings.NewService(st),
		store:  st,
	}
	h.bot = New(Config{
		AllowedUserID: ownerID,
		DeletionDelay: 300 * time.Second,
		ItemsPerPage:  5,
	}, h.sender, h.svc, h.sched, h.alerts)
	return h
}

func (h *harness) text(from int64, text string) {
	h.seq++
	h.bot.Handle(context.Background(), tgbotapi.Update{
		UpdateID: h.seq,
		Message: &tgbotapi.Message{
			MessageID: h.seq,
			From:      &tgbotapi.User{ID: from},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
		},
	})
}

func (h *harness) say(text string) {
	h.text(ownerID, text)
}

func (h *harness) command(name string) {
	h.seq++
	text := "/" + name
	h.bot.Handle(context.Background(), tgbotapi.Update{
		UpdateID: h.seq,
		Message: &tgbotapi.Message{
			MessageID: h.seq,
			From:      &tgbotapi.User{ID: ownerID},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		},
	})
}

func (h *harness) press(from int64, data string) {
	h.seq++
	h.bot.Handle(context.Background(), tgbotapi.Update{
		UpdateID: h.seq,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: from},
			Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: chatID}},
			Data:    data,
		},
	})
}

func (h *harness) create(t *testing.T, name string, target float64, kind savings.Kind) *savings.Goal {
	t.Helper()
	g, err := h.svc.Create(context.Background(), ownerID, name, target, "usd", kind)
	require.NoError(t, err)
	return g
}

func TestBot_AccessDenied(t *testing.T) {
	h := newHarness(t)

	h.text(strange, "view all")
	sent := callsOf[tgbotapi.MessageConfig](h.sender)
	require.Len(t, sent, 1)
	assert.Equal(t, messages.AccessDenied, sent[0].Text)
	assert.Equal(t, h.seq, sent[0].ReplyToMessageID)
	assert.Empty(t, callsOf[tgbotapi.DeleteMessageConfig](h.sender))

	h.sender.reset()
	h.press(strange, "delete_1")
	answers := callsOf[tgbotapi.CallbackConfig](h.sender)
	require.Len(t, answers, 1)
	assert.Equal(t, messages.AccessDenied, answers[0].Text)
	assert.True(t, answers[0].ShowAlert)
}

func TestBot_StartSendsManualAndCleansUp(t *testing.T) {
	h := newHarness(t)

	h.command("start")

	deletes := callsOf[tgbotapi.DeleteMessageConfig](h.sender)
	require.Len(t, deletes, 1)
	assert.Equal(t, h.seq, deletes[0].MessageID, "user's message is deleted")

	sent := callsOf[tgbotapi.MessageConfig](h.sender)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "command deck")
	assert.Equal(t, tgbotapi.ModeMarkdown, sent[0].ParseMode)

	require.Equal(t, []time.Duration{300 * time.Second}, h.sched.afters)
	h.sched.runAfters()
	deletes = callsOf[tgbotapi.DeleteMessageConfig](h.sender)
	require.Len(t, deletes, 2)
	assert.Equal(t, 1001, deletes[1].MessageID, "reply is deleted after the delay")
}

func TestBot_NewGoalConversation(t *testing.T) {
	h := newHarness(t)

	h.say("New Goal")
	assert.Equal(t, messages.NewGoalPrompt, h.sender.lastText())

	h.say("Laptop")
	assert.Equal(t, "'Laptop'. Sounds expensive. How much?", h.sender.lastText())

	h.say("lots")
	assert.Equal(t, messages.NotANumber, h.sender.lastText())

	h.say("0")
	assert.Equal(t, messages.TargetNotPositive, h.sender.lastText())

	h.say("1500")
	assert.Equal(t, messages.GoalCurrency, h.sender.lastText())

	h.say("usd")
	assert.Equal(t, "✅ Goal set. Don't let 'Laptop' become a forgotten dream.", h.sender.lastText())

	goals, err := h.svc.List(context.Background(), ownerID)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "USD", goals[0].Currency)
	assert.Equal(t, savings.KindGoal, goals[0].Kind)
	assert.InDelta(t, 1500, goals[0].Target, 0.001)

	h.say("whatever")
	assert.Contains(t, h.sender.lastText(), "I don't know what 'whatever' means")
}

func TestBot_NewDebtDuplicateName(t *testing.T) {
	h := newHarness(t)
	h.create(t, "Card", 100, savings.KindGoal)

	h.say("new debt")
	assert.Equal(t, messages.NewDebtPrompt, h.sender.lastText())
	h.say("Card")
	assert.Equal(t, "'Card'. Oof. Total damage?", h.sender.lastText())
	h.say("900")
	assert.Equal(t, messages.DebtCurrency, h.sender.lastText())
	h.say("eur")
	assert.Equal(t, messages.DebtNameTaken, h.sender.lastText())

	h.say("Card")
	assert.Contains(t, h.sender.lastText(), "I don't know what", "conversation ends after a failed save")
}

func TestBot_CancelEndsConversation(t *testing.T) {
	h := newHarness(t)

	h.say("set reminder")
	h.command("cancel")
	assert.Equal(t, messages.Aborted, h.sender.lastText())

	h.say("09:00")
	assert.Contains(t, h.sender.lastText(), "I don't know what '09:00' means")
}

func TestBot_AddFlow(t *testing.T) {
	h := newHarness(t)
	g := h.create(t, "Bike", 100, savings.KindGoal)

	h.say("add")
	sent := callsOf[tgbotapi.MessageConfig](h.sender)
	require.Len(t, sent, 1)
	assert.Equal(t, messages.WhichOne, sent[0].Text)
	kb, ok := sent[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, "🎯 Bike (USD)", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "add_to_1", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Empty(t, h.sched.afters, "the picker is not auto-deleted")

	h.press(ownerID, "add_to_1")
	assert.Equal(t, "How much are you saving for 'Bike'? (USD)", h.sender.lastText())

	h.say("ten")
	assert.Equal(t, messages.InvalidAmount, h.sender.lastText())

	h.say("95")
	texts := h.sender.texts()
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Equal(t, "✅ Roger that. 95.00 USD logged for 'Bike'.", texts[len(texts)-2])
	assert.Contains(t, texts[len(texts)-1], "Almost there!")

	got, err := h.svc.Get(context.Background(), g.ID)
	require.NoError(t, err)
	assert.True(t, got.Notified90)
	assert.InDelta(t, 95, got.Current, 0.001)

	h.say("add")
	h.press(ownerID, "add_to_1")
	h.say("10")
	assert.Contains(t, h.sender.lastText(), "GOAL REACHED!")
}

func TestBot_AddDebtClears(t *testing.T) {
	h := newHarness(t)
	h.create(t, "Loan", 50, savings.KindDebt)

	h.say("add")
	h.press(ownerID, "add_to_1")
	assert.Equal(t, "How much are you paying off 'Loan'? (USD)", h.sender.lastText())

	h.say("50")
	assert.Contains(t, h.sender.lastText(), "DEBT CLEARED!")
}

func TestBot_PickWithNothingToSelect(t *testing.T) {
	h := newHarness(t)

	h.say("progress")
	assert.Equal(t, messages.NothingToSelect, h.sender.lastText())

	h.press(ownerID, "progress_1")
	assert.Equal(t, messages.MenuExpired, h.sender.lastText())
}

func TestBot_DeleteFlow(t *testing.T) {
	h := newHarness(t)
	g := h.create(t, "Old dream", 10, savings.KindGoal)

	h.say("delete")
	h.press(ownerID, "delete_1")
	assert.Equal(t, "Gone. 'Old dream' has been vanquished.", h.sender.lastText())

	_, err := h.svc.Get(context.Background(), g.ID)
	assert.ErrorIs(t, err, savings.ErrNotFound)

	h.create(t, "Other", 10, savings.KindGoal)
	h.say("delete")
	h.press(ownerID, "delete_1")
	assert.Equal(t, messages.AlreadyDeleted, h.sender.lastText())
}

func TestBot_ProgressFlow(t *testing.T) {
	h := newHarness(t)
	g := h.create(t, "Trip", 200, savings.KindGoal)
	_, _, err := h.svc.AddEntry(context.Background(), g.ID, 50)
	require.NoError(t, err)

	h.say("progress")
	h.press(ownerID, "progress_1")

	edits := callsOf[tgbotapi.EditMessageTextConfig](h.sender)
	require.Len(t, edits, 1)
	assert.Equal(t, 77, edits[0].MessageID)
	assert.Equal(t, tgbotapi.ModeMarkdown, edits[0].ParseMode)
	assert.Contains(t, edits[0].Text, "Progress Report: TRIP")
	assert.Contains(t, edits[0].Text, "50.00 USD on")

	h.press(ownerID, "progress_1")
	assert.Equal(t, messages.MenuExpired, h.sender.lastText(), "selection ends the conversation")
}

func TestBot_Navigation(t *testing.T) {
	h := newHarness(t)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		h.create(t, name, 10, savings.KindGoal)
	}

	h.say("add")
	sent := callsOf[tgbotapi.MessageConfig](h.sender)
	require.Len(t, sent, 1)
	kb := sent[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, kb.InlineKeyboard, 6)
	nav := kb.InlineKeyboard[5]
	require.Len(t, nav, 1)
	assert.Equal(t, "Next ➡️", nav[0].Text)
	assert.Equal(t, "nav_add_to_1", *nav[0].CallbackData)

	h.press(ownerID, "nav_add_to_1")
	markups := callsOf[tgbotapi.EditMessageReplyMarkupConfig](h.sender)
	require.Len(t, markups, 1)
	page := markups[0].ReplyMarkup.InlineKeyboard
	require.Len(t, page, 3)
	assert.Equal(t, "add_to_6", *page[0][0].CallbackData)
	assert.Equal(t, "⬅️ Previous", page[2][0].Text)
	assert.Equal(t, "nav_add_to_0", *page[2][0].CallbackData)

	h.press(ownerID, "nav_add_to_x")
	assert.Equal(t, messages.NavError, h.sender.lastText())

	h.press(ownerID, "add_to_7")
	assert.Equal(t, "How much are you saving for 'g'? (USD)", h.sender.lastText())
}

func TestBot_NavigationEditFailure(t *testing.T) {
	h := newHarness(t)
	h.create(t, "a", 10, savings.KindGoal)
	h.say("delete")

	h.sender.fail = func(c tgbotapi.Chattable) error {
		if _, ok := c.(tgbotapi.EditMessageReplyMarkupConfig); ok {
			return &tgbotapi.Error{Code: 400, Message: "Bad Request: message can't be edited"}
		}
		return nil
	}
	h.press(ownerID, "nav_delete_0")
	assert.Equal(t, messages.NavUpdateFailed, h.sender.lastText())

	h.sender.fail = func(c tgbotapi.Chattable) error {
		if _, ok := c.(tgbotapi.EditMessageReplyMarkupConfig); ok {
			return &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}
		}
		return nil
	}
	h.sender.reset()
	h.press(ownerID, "nav_delete_0")
	assert.Empty(t, h.sender.texts(), "an unchanged keyboard is not an error")
}

func TestBot_Reminders(t *testing.T) {
	h := newHarness(t)

	h.say("set reminder")
	assert.Equal(t, messages.ReminderPrompt, h.sender.lastText())

	h.say("25:00")
	assert.Equal(t, messages.ReminderInvalid, h.sender.lastText())

	h.say("21:30")
	assert.Equal(t, "Done. Expect a poke from me daily at 21:30.", h.sender.lastText())

	job, ok := h.sched.daily[reminderJob(chatID)]
	require.True(t, ok)
	assert.Equal(t, 21, job.hour)
	assert.Equal(t, 30, job.minute)

	stored, err := h.svc.Reminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []savings.Reminder{{ChatID: chatID, Hour: 21, Minute: 30}}, stored)

	job.fn()
	assert.Equal(t, messages.ReminderNudge, h.sender.lastText())

	h.say("set reminder")
	h.say("OFF")
	assert.Equal(t, messages.ReminderOff, h.sender.lastText())
	assert.Empty(t, h.sched.daily)

	stored, err = h.svc.Reminders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestBot_RestoreReminders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.svc.SetReminder(ctx, 1, 8, 0))
	require.NoError(t, h.svc.SetReminder(ctx, 2, 20, 15))

	n, err := h.bot.RestoreReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, h.sched.daily, "reminder:1")
	assert.Equal(t, 20, h.sched.daily["reminder:2"].hour)
}

func TestBot_ViewAll(t *testing.T) {
	h := newHarness(t)

	h.say("VIEW ALL")
	assert.Equal(t, messages.EmptyDashboard, h.sender.lastText())

	h.create(t, "House", 1000, savings.KindGoal)
	h.say("view all")
	assert.Contains(t, h.sender.lastText(), "🎯 **HOUSE** (Goal)")
}

func TestBot_Export(t *testing.T) {
	t.Run("nothing to export", func(t *testing.T) {
		h := newHarness(t)
		h.say("export")
		assert.Equal(t, []string{messages.ExportStarted, messages.NothingToExport}, h.sender.texts())
	})

	t.Run("csv and pdf", func(t *testing.T) {
		h := newHarness(t)
		h.bot.now = func() time.Time { return time.Date(2024, 7, 4, 18, 30, 5, 0, time.UTC) }
		g := h.create(t, "Fund", 100, savings.KindGoal)
		_, _, err := h.svc.AddEntry(context.Background(), g.ID, 25)
		require.NoError(t, err)

		h.say("export")
		docs := callsOf[tgbotapi.DocumentConfig](h.sender)
		require.Len(t, docs, 2)
		assert.Equal(t, messages.CSVCaption, docs[0].Caption)
		assert.Equal(t, "export_20240704_183005.csv", docs[0].File.(tgbotapi.FileBytes).Name)
		assert.Equal(t, messages.PDFCaption, docs[1].Caption)
		assert.Equal(t, "report_20240704_183005.pdf", docs[1].File.(tgbotapi.FileBytes).Name)
	})

	t.Run("pdf upload failure keeps csv", func(t *testing.T) {
		h := newHarness(t)
		g := h.create(t, "Fund", 100, savings.KindGoal)
		_, _, err := h.svc.AddEntry(context.Background(), g.ID, 25)
		require.NoError(t, err)

		h.sender.fail = func(c tgbotapi.Chattable) error {
			if d, ok := c.(tgbotapi.DocumentConfig); ok && d.Caption == messages.PDFCaption {
				return errors.New("Request Entity Too Large")
			}
			return nil
		}
		h.say("export")
		assert.Len(t, callsOf[tgbotapi.DocumentConfig](h.sender), 1)
		assert.Equal(t, messages.PDFFailed, h.sender.lastText())
	})
}

func TestBot_HandlerErrorRepliesAndAlerts(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Close())

	h.say("view all")
	assert.Equal(t, messages.Bug, h.sender.lastText())
	require.Len(t, h.alerts.triggers, 1)
	assert.Equal(t, "view all", h.alerts.triggers[0])

	h.press(ownerID, "nav_delete_0")
	assert.Equal(t, messages.Bug, h.sender.lastText())
	assert.Equal(t, "callback:nav_delete_0", h.alerts.triggers[1])
}

func TestBot_MarkdownFallback(t *testing.T) {
	h := newHarness(t)
	h.sender.fail = func(c tgbotapi.Chattable) error {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ParseMode != "" {
			return &tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities: Can't find end of the entity"}
		}
		return nil
	}

	h.command("help")
	sent := callsOf[tgbotapi.MessageConfig](h.sender)
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].ParseMode)
	assert.Contains(t, sent[0].Text, "command deck")
}

func TestBot_RunStopsOnClose(t *testing.T) {
	h := newHarness(t)
	updates := make(chan tgbotapi.Update, 1)
	updates <- tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1, From: &tgbotapi.User{ID: ownerID}, Chat: &tgbotapi.Chat{ID: chatID}, Text: "view all",
	}}
	close(updates)

	require.NoError(t, h.bot.Run(context.Background(), updates))
	assert.Equal(t, messages.EmptyDashboard, h.sender.lastText())
}
