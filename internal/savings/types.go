// Package savings holds the goal and debt ledger: what gets tracked, how
// progress is measured, and which milestones a deposit can cross.
package savings

import (
	"context"
	"time"
)

// Kind separates savings goals from debts being paid down.
type Kind string

const (
	KindGoal Kind = "goal"
	KindDebt Kind = "debt"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindGoal || k == KindDebt
}

// Goal is a savings target or a debt. Current grows with every entry.
type Goal struct {
	ID         uint64 `boltholdKey:"ID"`
	UserID     int64  `boltholdIndex:"UserID"`
	Name       string
	Target     float64
	Current    float64
	Currency   string
	Kind       Kind
	Notified90 bool
	CreatedAt  time.Time
}

// Percent returns progress toward the target. A non-positive target counts as 0%.
func (g Goal) Percent() float64 {
	if g.Target <= 0 {
		return 0
	}
	return g.Current / g.Target * 100
}

// Remaining returns what is left to save or pay.
func (g Goal) Remaining() float64 {
	return g.Target - g.Current
}

// Entry is a single deposit toward a goal or payment against a debt.
type Entry struct {
	ID      uint64 `boltholdKey:"ID"`
	GoalID  uint64 `boltholdIndex:"GoalID"`
	Amount  float64
	SavedAt time.Time
}

// Reminder is a persisted daily nudge for a chat.
type Reminder struct {
	ChatID int64 `boltholdKey:"ChatID"`
	Hour   int
	Minute int
}

// Record is one exported row: an entry joined with its goal.
type Record struct {
	Name     string
	Kind     Kind
	Target   float64
	Currency string
	Amount   float64
	SavedAt  time.Time
}

// Repository persists goals, entries and reminders.
type Repository interface {
	// InsertGoal assigns g.ID. Names are unique across all goals.
	InsertGoal(ctx context.Context, g *Goal) error
	Goals(ctx context.Context, userID int64) ([]Goal, error)
	Goal(ctx context.Context, id uint64) (*Goal, error)
	// DeleteGoal removes the goal and every entry recorded against it.
	DeleteGoal(ctx context.Context, id uint64) error
	// AddEntry records the entry and bumps the goal's current amount atomically.
	AddEntry(ctx context.Context, goalID uint64, amount float64, at time.Time) (*Goal, error)
	SetNotified90(ctx context.Context, id uint64) error
	Entries(ctx context.Context, goalID uint64) ([]Entry, error)
	SaveReminder(ctx context.Context, r Reminder) error
	DeleteReminder(ctx context.Context, chatID int64) error
	Reminders(ctx context.Context) ([]Reminder, error)
}
