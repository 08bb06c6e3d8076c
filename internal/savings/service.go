package savings

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RecentLimit is how many entries a progress report shows.
const RecentLimit = 5

// almostThreshold is the percentage that triggers the one-time "almost there" notice.
const almostThreshold = 90

// Milestone is what a deposit achieved, if anything worth shouting about.
type Milestone int

const (
	MilestoneNone Milestone = iota
	MilestoneAlmost
	MilestoneReached
	MilestoneCleared
)

// Service implements the ledger operations on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create adds a new goal or debt for userID.
func (s *Service) Create(ctx context.Context, userID int64, name string, target float64, currency string, kind Kind) (*Goal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if math.IsNaN(target) || math.IsInf(target, 0) || target <= 0 {
		return nil, fmt.Errorf("%w: target must be positive", ErrInvalidAmount)
	}

	g := &Goal{
		UserID:    userID,
		Name:      name,
		Target:    target,
		Currency:  strings.ToUpper(strings.TrimSpace(currency)),
		Kind:      kind,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.InsertGoal(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// List returns every goal and debt owned by userID in creation order.
func (s *Service) List(ctx context.Context, userID int64) ([]Goal, error) {
	goals, err := s.repo.Goals(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(goals, func(i, j int) bool { return goals[i].ID < goals[j].ID })
	return goals, nil
}

// Get returns a single goal or ErrNotFound.
func (s *Service) Get(ctx context.Context, id uint64) (*Goal, error) {
	return s.repo.Goal(ctx, id)
}

// Delete removes a goal and its history.
func (s *Service) Delete(ctx context.Context, id uint64) error {
	return s.repo.DeleteGoal(ctx, id)
}

// AddEntry records amount against the goal and reports the milestone it crossed.
// The one-time 90% notice is flagged as sent before returning.
func (s *Service) AddEntry(ctx context.Context, goalID uint64, amount float64) (*Goal, Milestone, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, MilestoneNone, ErrInvalidAmount
	}

	g, err := s.repo.AddEntry(ctx, goalID, amount, s.now().UTC())
	if err != nil {
		return nil, MilestoneNone, err
	}

	m := MilestoneFor(g)
	if m == MilestoneAlmost {
		if err := s.repo.SetNotified90(ctx, g.ID); err != nil {
			return g, m, fmt.Errorf("flag 90%% notice: %w", err)
		}
		g.Notified90 = true
	}
	return g, m, nil
}

// MilestoneFor evaluates a goal right after a deposit.
func MilestoneFor(g *Goal) Milestone {
	pct := g.Percent()
	switch {
	case g.Kind == KindGoal && pct >= 100:
		return MilestoneReached
	case g.Kind == KindGoal && pct >= almostThreshold && !g.Notified90:
		return MilestoneAlmost
	case g.Kind == KindDebt && pct >= 100:
		return MilestoneCleared
	default:
		return MilestoneNone
	}
}

// Recent returns up to limit entries for the goal, newest first.
func (s *Service) Recent(ctx context.Context, goalID uint64, limit int) ([]Entry, error) {
	entries, err := s.repo.Entries(ctx, goalID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].SavedAt.Equal(entries[j].SavedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].SavedAt.After(entries[j].SavedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Records joins every entry with its goal, ordered by goal name then time.
func (s *Service) Records(ctx context.Context, userID int64) ([]Record, error) {
	goals, err := s.repo.Goals(ctx, userID)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, g := range goals {
		entries, err := s.repo.Entries(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("entries for %q: %w", g.Name, err)
		}
		for _, e := range entries {
			records = append(records, Record{
				Name:     g.Name,
				Kind:     g.Kind,
				Target:   g.Target,
				Currency: g.Currency,
				Amount:   e.Amount,
				SavedAt:  e.SavedAt,
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Name != records[j].Name {
			return records[i].Name < records[j].Name
		}
		return records[i].SavedAt.Before(records[j].SavedAt)
	})
	return records, nil
}

// SetReminder persists a daily reminder for chatID.
func (s *Service) SetReminder(ctx context.Context, chatID int64, hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return ErrInvalidTime
	}
	return s.repo.SaveReminder(ctx, Reminder{ChatID: chatID, Hour: hour, Minute: minute})
}

// ClearReminder removes the chat's reminder if one exists.
func (s *Service) ClearReminder(ctx context.Context, chatID int64) error {
	return s.repo.DeleteReminder(ctx, chatID)
}

// Reminders returns every persisted reminder.
func (s *Service) Reminders(ctx context.Context) ([]Reminder, error) {
	return s.repo.Reminders(ctx)
}

// decimalPattern is a plain base-10 number with an optional exponent.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseAmount reads a user-typed number such as "250" or " 12.5 ".
func ParseAmount(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	if !decimalPattern.MatchString(trimmed) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	return v, nil
}

// ParseTimeOfDay reads a 24h "HH:MM" wall time.
func ParseTimeOfDay(text string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(text))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, text)
	}
	return t.Hour(), t.Minute(), nil
}
