// Package alert fans out operational notices (startup, handler failures,
// backup problems) to every configured provider.
package alert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Severity levels for alerts.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// rank orders severities for threshold checks. Unknown severities rank lowest.
func (s Severity) rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

// Alert is one operational notice. Source names the subsystem that raised
// it ("daemon", "bot", "backup", "doctor") and ends up in embed footers.
type Alert struct {
	Title    string
	Message  string
	Severity Severity
	Source   string
	Metadata map[string]string
}

// Provider delivers alerts to one destination.
type Provider interface {
	Name() string
	Send(ctx context.Context, alert *Alert) error
	IsConfigured() bool
}

// Manager fans alerts out to its providers.
type Manager struct {
	providers []Provider
	host      string
}

// NewManager creates a manager that tags every alert with the local hostname.
func NewManager() *Manager {
	host, _ := os.Hostname()
	return &Manager{host: host}
}

// AddProvider registers p. Unconfigured providers are skipped.
func (m *Manager) AddProvider(p Provider) {
	if p.IsConfigured() {
		m.providers = append(m.providers, p)
	}
}

// Send delivers alert to every provider concurrently. A failing provider
// does not stop the others; all failures are joined into the result.
func (m *Manager) Send(ctx context.Context, alert *Alert) error {
	if len(m.providers) == 0 {
		return nil
	}
	if m.host != "" {
		if alert.Metadata == nil {
			alert.Metadata = make(map[string]string)
		}
		if _, ok := alert.Metadata["host"]; !ok {
			alert.Metadata["host"] = m.host
		}
	}

	errs := make([]error, len(m.providers))
	var wg sync.WaitGroup
	for i, p := range m.providers {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			if err := p.Send(ctx, alert); err != nil {
				errs[i] = fmt.Errorf("%s: %w", p.Name(), err)
			}
		}(i, p)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("alert errors: %w", err)
	}
	return nil
}

// HasProviders reports whether any provider is registered.
func (m *Manager) HasProviders() bool {
	return len(m.providers) > 0
}

// ProviderNames lists registered providers in the order they were added.
func (m *Manager) ProviderNames() []string {
	names := make([]string, len(m.providers))
	for i, p := range m.providers {
		names[i] = p.Name()
	}
	return names
}

// SendStartup announces that the worker is polling.
func (m *Manager) SendStartup(ctx context.Context, botName string) error {
	return m.Send(ctx, &Alert{
		Title:    "Bot Online",
		Message:  fmt.Sprintf("@%s is polling for updates", botName),
		Severity: SeverityInfo,
		Source:   "daemon",
		Metadata: map[string]string{"bot": botName},
	})
}

// SendShutdown announces a graceful stop. A non-nil cause raises it to an error.
func (m *Manager) SendShutdown(ctx context.Context, botName string, cause error) error {
	a := &Alert{
		Title:    "Bot Offline",
		Message:  fmt.Sprintf("@%s stopped polling", botName),
		Severity: SeverityInfo,
		Source:   "daemon",
		Metadata: map[string]string{"bot": botName},
	}
	if cause != nil {
		a.Severity = SeverityError
		a.Message += ": " + cause.Error()
	}
	return m.Send(ctx, a)
}

// SendHandlerError reports an update that blew up mid-conversation.
func (m *Manager) SendHandlerError(ctx context.Context, correlationID, trigger string, cause error) error {
	return m.Send(ctx, &Alert{
		Title:    "Update Handler Failed",
		Message:  cause.Error(),
		Severity: SeverityError,
		Source:   "bot",
		Metadata: map[string]string{"correlation_id": correlationID, "trigger": trigger},
	})
}

// SendBackupFailure reports a failed scheduled backup.
func (m *Manager) SendBackupFailure(ctx context.Context, reason string) error {
	return m.Send(ctx, &Alert{
		Title:    "Backup Failed",
		Message:  fmt.Sprintf("Scheduled database backup failed: %s", reason),
		Severity: SeverityWarning,
		Source:   "backup",
		Metadata: map[string]string{"error": reason},
	})
}

var doctorTitles = map[Severity]string{
	SeverityCritical: "CRITICAL: Health Check Failed",
	SeverityError:    "Health Check Errors",
	SeverityWarning:  "Health Check Warnings",
}

// SendDoctorAlert reports the outcome of `savingsbot doctor`, one issue per line.
func (m *Manager) SendDoctorAlert(ctx context.Context, severity Severity, issues []string) error {
	title, ok := doctorTitles[severity]
	if !ok {
		title = "Health Check Complete"
	}
	return m.Send(ctx, &Alert{
		Title:    title,
		Message:  strings.Join(issues, "\n"),
		Severity: severity,
		Source:   "doctor",
		Metadata: map[string]string{"issue_count": strconv.Itoa(len(issues))},
	})
}
