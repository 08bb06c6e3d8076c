package messages

import (
	"github.com/cameronsjo/savingsbot/internal/savings"
)

// GoalListText renders the "view all" dashboard.
func GoalListText(goals []savings.Goal) (string, error) {
	return Render(GoalList, goals)
}

// ProgressText renders the single-goal progress report with its recent entries.
func ProgressText(g *savings.Goal, recent []savings.Entry) (string, error) {
	return Render(ProgressReport, struct {
		Goal   *savings.Goal
		Recent []savings.Entry
	}{Goal: g, Recent: recent})
}

// MilestoneText returns the celebration for m, or "" when there is nothing to say.
func MilestoneText(m savings.Milestone, g *savings.Goal) (string, error) {
	var name string
	switch m {
	case savings.MilestoneReached:
		name = GoalReached
	case savings.MilestoneAlmost:
		name = GoalAlmost
	case savings.MilestoneCleared:
		name = DebtCleared
	default:
		return "", nil
	}
	return Render(name, g)
}

// UnknownText is the reply to text the bot does not understand.
func UnknownText(text string) (string, error) {
	return Render(Unknown, map[string]string{"Text": text, "Manual": Manual()})
}
