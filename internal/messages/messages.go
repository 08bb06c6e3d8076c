// Package messages renders everything the bot says: the fixed one-liners,
// the templated replies, and the progress bars and reports.
//
// Templates use text/template with the sprig function map plus a few local
// helpers (money, pct, bar).
package messages

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Fixed replies.
const (
	AccessDenied      = "⛔️ Access Denied. I'm a one-person bot. And you're not that person."
	NewGoalPrompt     = "🚀 A new dream, huh? Let's give it a name."
	NewDebtPrompt     = "⛓️ Facing the music? Name this debt."
	GoalCurrency      = "Currency? (e.g., USD, TONE)"
	DebtCurrency      = "Currency?"
	NotANumber        = "That's not a number. Try again."
	TargetNotPositive = "A target has to be more than zero. Try again."
	GoalNameTaken     = "You already have something with that name. Try a more creative name."
	DebtNameTaken     = "Already tracking a debt with that name. One crisis at a time."
	NothingToSelect   = "You have nothing to select from. Create a goal or debt first."
	WhichOne          = "Which one are we looking at?"
	NavError          = "Error processing navigation. Please try again."
	NavUpdateFailed   = "Could not update the list. Please try again."
	GoalNotFound      = "Error: Goal not found. Please try again."
	InvalidAmount     = "That's not a valid number. Please enter a numerical amount."
	LostTrack         = "It seems I lost track of which goal you were adding to. Please start the `add` command again."
	SaveFailed        = "An unexpected error occurred while saving. Please try again."
	AlreadyDeleted    = "Goal not found or already deleted."
	ReminderPrompt    = "You need me to nag you? What time daily? (e.g., '09:00', '21:30' in 24h format)"
	ReminderInvalid   = "Not a valid time. Use HH:MM format."
	ReminderOff       = "Fine. No more nagging."
	ReminderNudge     = "🔔 Reminder: Your goals won't meet themselves. Did you save today?"
	Aborted           = "Fine, whatever. Mission aborted."
	Bug               = "Looks like I tripped over a bug. Try again, I guess."
	MenuExpired       = "That menu has expired. Start again."
	ExportStarted     = "Brewing up your financial reports..."
	NothingToExport   = "Nothing to export."
	CSVCaption        = "Here's your data in CSV format."
	PDFCaption        = "And the fancy PDF version."
	PDFFailed         = "I managed the CSV, but the PDF maker threw a tantrum."
	EmptyDashboard    = "Your financial dashboard is a blank canvas. Use `new goal` or `new debt` to start."
)

// StartupLines are the openers rotated into the manual.
var StartupLines = []string{
	"Powered up and ready to judge your spending habits.",
	"I have been summoned. Let's make some money moves.",
	"The financial overlord is online. Try to impress me.",
}

const manualBody = "Here's the command deck. Let's make some magic happen (or at least track it).\n\n" +
	"🎯 **Goals & Debts**\n  - `new goal`\n  - `new debt`\n  - `view all`\n  - `delete`\n\n" +
	"💰 **Money Moves**\n  - `add`\n  - `progress`\n\n" +
	"🛠️ **Utilities**\n  - `set reminder`\n  - `export`\n  - `cancel`"

// Manual returns the command overview with a random opener.
func Manual() string {
	return "**" + StartupLines[rand.Intn(len(StartupLines))] + "**\n\n" + manualBody
}

// Template names.
const (
	GoalNamed      = "goal_named"
	GoalCreated    = "goal_created"
	DebtNamed      = "debt_named"
	DebtCreated    = "debt_created"
	AskAmount      = "ask_amount"
	EntryLogged    = "entry_logged"
	GoalReached    = "goal_reached"
	GoalAlmost     = "goal_almost"
	DebtCleared    = "debt_cleared"
	Deleted        = "deleted"
	ReminderSet    = "reminder_set"
	Unknown        = "unknown"
	GoalList       = "goal_list"
	ProgressReport = "progress_report"
	ButtonLabel    = "button_label"
	AlertText      = "alert_text"
)

var sources = map[string]string{
	GoalNamed:   "'{{ .Name }}'. Sounds expensive. How much?",
	GoalCreated: "✅ Goal set. Don't let '{{ .Name }}' become a forgotten dream.",
	DebtNamed:   "'{{ .Name }}'. Oof. Total damage?",
	DebtCreated: "✅ Debt logged. Let's start chipping away at '{{ .Name }}'.",
	AskAmount:   "How much are you {{ if eq .Kind \"goal\" }}saving for{{ else }}paying off{{ end }} '{{ .Name }}'? ({{ .Currency }})",
	EntryLogged: "✅ Roger that. {{ money .Amount }} {{ .Currency }} logged for '{{ .Name }}'.",
	GoalReached: "🎉 **GOAL REACHED!** 🎉\nYou hit your target for '{{ .Name }}'.",
	GoalAlmost:  "🔥 **Almost there!** Over 90% of the way to '{{ .Name }}'.",
	DebtCleared: "✅ **DEBT CLEARED!** ✅\nYou paid off '{{ .Name }}'. You are free.",
	Deleted:     "Gone. '{{ .Name }}' has been vanquished.",
	ReminderSet: "Done. Expect a poke from me daily at {{ printf \"%02d:%02d\" .Hour .Minute }}.",
	Unknown:     "I don't know what '{{ .Text }}' means. Stick to the script.\n\n{{ .Manual }}",
	ButtonLabel: "{{ if eq .Kind \"goal\" }}🎯{{ else }}⛓️{{ end }} {{ .Name }} ({{ .Currency }})",
	AlertText:   "⚠️ {{ .Title }}\n{{ .Message }}{{ range $k, $v := .Metadata }}\n{{ $k }}: {{ $v }}{{ end }}",

	GoalList: `{{- if not . -}}` + EmptyDashboard + `{{- else -}}
Alright, here's the current state of your financial empire:

{{ range . -}}
{{ if eq .Kind "goal" -}}
🎯 **{{ upper .Name }}** (Goal)
` + "`{{ bar .Percent 10 }} {{ pct .Percent }}%`" + `
   - **Saved:** ` + "`{{ money .Current }} / {{ money .Target }} {{ .Currency }}`" + `
   - **Needs:** ` + "`{{ money .Remaining }} {{ .Currency }}`" + `

{{ else if eq .Kind "debt" -}}
⛓️ **{{ upper .Name }}** (Debt)
` + "`{{ bar .Percent 10 }} {{ pct .Percent }}% Paid Off`" + `
   - **Paid:** ` + "`{{ money .Current }} / {{ money .Target }} {{ .Currency }}`" + `
   - **Remaining Debt:** ` + "`{{ money .Remaining }} {{ .Currency }}`" + `

{{ end -}}
{{ end -}}
{{ end -}}`,

	ProgressReport: `{{ with .Goal -}}
{{ if eq .Kind "goal" }}🎯{{ else }}⛓️{{ end }} **Progress Report: {{ upper .Name }}**
` + "`{{ bar .Percent 15 }} {{ pct .Percent }}%`" + `

  - **Target:** ` + "`{{ money .Target }} {{ .Currency }}`" + `
  - **{{ if eq .Kind "goal" }}Saved{{ else }}Paid{{ end }}:** ` + "`{{ money .Current }} {{ .Currency }}`" + `
  - **Remaining:** ` + "`{{ money .Remaining }} {{ .Currency }}`" + `
{{ end }}
**Recent Activity:**
{{ if not .Recent -}}
_No recent transactions found._
{{- else -}}
{{ range .Recent -}}
` + "`  - {{ money .Amount }} {{ $.Goal.Currency }} on {{ dateInZone \"Jan 02, 2006\" .SavedAt \"UTC\" }}`" + `
{{ end -}}
{{ end -}}`,
}

var templates = mustParse()

func mustParse() *template.Template {
	root := template.New("messages").Funcs(sprig.TxtFuncMap()).Funcs(template.FuncMap{
		"money": Money,
		"pct":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"bar":   ProgressBar,
	})
	for name, src := range sources {
		template.Must(root.New(name).Parse(src))
	}
	return root
}

// Render executes the named template. Unknown names and execution errors
// surface as errors so callers can fall back to a fixed reply.
func Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// ProgressBar draws a bar of length cells. Anything at or beyond 100% is a
// row of trophies.
func ProgressBar(percent float64, length int) string {
	if percent >= 100 {
		return "[🏆🏆🏆🏆🏆🏆🏆🏆🏆]"
	}
	filled := int(float64(length) * percent / 100)
	if filled < 0 {
		filled = 0
	}
	if filled > length {
		filled = length
	}
	return "[" + strings.Repeat("🟩", filled) + strings.Repeat("⬛️", length-filled) + "]"
}

// Money formats v with two decimals and comma thousands separators.
func Money(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
