package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
	"unicode/utf8"
)

// Embed colors, as Discord's decimal RGB.
const (
	ColorInfo     = 0x3498db
	ColorWarning  = 0xf39c12
	ColorError    = 0xe74c3c
	ColorSuccess  = 0x2ecc71
	ColorCritical = 0x9b59b6
)

// Info notices are mostly "bot online" and "all checks passed", so they show green.
var severityColors = map[Severity]int{
	SeverityInfo:     ColorSuccess,
	SeverityWarning:  ColorWarning,
	SeverityError:    ColorError,
	SeverityCritical: ColorCritical,
}

// Discord limits.
const (
	maxDescription = 4096
	maxFieldValue  = 1024
	maxFields      = 25
)

// discordUsername is the webhook sender name shown in the channel.
const discordUsername = "Snarky Savings Bot"

type webhookMessage struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Footer      *embedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// DiscordProvider posts alerts to a Discord channel webhook.
type DiscordProvider struct {
	webhookURL  string
	minSeverity Severity
	client      *http.Client
	now         func() time.Time
}

// NewDiscordProvider creates a new Discord provider. An empty webhookURL
// leaves it unconfigured. Alerts below minSeverity are dropped.
func NewDiscordProvider(webhookURL string, minSeverity Severity) *DiscordProvider {
	return &DiscordProvider{
		webhookURL:  webhookURL,
		minSeverity: minSeverity,
		client:      &http.Client{Timeout: 10 * time.Second},
		now:         time.Now,
	}
}

func (d *DiscordProvider) Name() string { return "discord" }

func (d *DiscordProvider) IsConfigured() bool { return d.webhookURL != "" }

// Send posts the alert as a single embed.
func (d *DiscordProvider) Send(ctx context.Context, alert *Alert) error {
	if !d.IsConfigured() || !alert.Severity.AtLeast(d.minSeverity) {
		return nil
	}

	body, err := json.Marshal(d.payload(alert))
	if err != nil {
		return fmt.Errorf("encode webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent, http.StatusOK:
		return nil
	case http.StatusTooManyRequests:
		return fmt.Errorf("rate limited by discord (retry after %ss)", resp.Header.Get("Retry-After"))
	default:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}

func (d *DiscordProvider) payload(alert *Alert) webhookMessage {
	e := embed{
		Title:       alert.Title,
		Description: truncateString(alert.Message, maxDescription),
		Color:       severityToColor(alert.Severity),
		Footer:      &embedFooter{Text: "savingsbot/" + alert.Source},
		Timestamp:   d.now().UTC().Format(time.RFC3339),
	}

	keys := make([]string, 0, len(alert.Metadata))
	for k, v := range alert.Metadata {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > maxFields {
		keys = keys[:maxFields]
	}
	for _, k := range keys {
		e.Fields = append(e.Fields, embedField{
			Name:   k,
			Value:  truncateString(alert.Metadata[k], maxFieldValue),
			Inline: true,
		})
	}

	return webhookMessage{Username: discordUsername, Embeds: []embed{e}}
}

func severityToColor(s Severity) int {
	if c, ok := severityColors[s]; ok {
		return c
	}
	return ColorInfo
}

// truncateString caps s at max characters, ending with "..." when cut.
func truncateString(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
