// Package daemon runs the bot as a long-lived worker: it claims the data
// directory, opens the ledger, connects to Telegram and keeps polling until
// it is told to stop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cameronsjo/savingsbot/internal/alert"
	"github.com/cameronsjo/savingsbot/internal/backup"
	"github.com/cameronsjo/savingsbot/internal/bot"
	"github.com/cameronsjo/savingsbot/internal/config"
	"github.com/cameronsjo/savingsbot/internal/lock"
	"github.com/cameronsjo/savingsbot/internal/savings"
	"github.com/cameronsjo/savingsbot/internal/scheduler"
	"github.com/cameronsjo/savingsbot/internal/store"
	"github.com/cameronsjo/savingsbot/internal/telegram"
)

const (
	// rateBurst lets a reply and its clean-up deletions go out together.
	rateBurst = 5
	// shutdownAlertTimeout bounds the goodbye alert after polling stops.
	shutdownAlertTimeout = 5 * time.Second
)

// Dialer connects to the Bot API and returns the client and the bot's username.
type Dialer func(token string) (telegram.Client, string, error)

// DialTelegram is the production Dialer.
func DialTelegram(token string) (telegram.Client, string, error) {
	api, err := telegram.Connect(token)
	if err != nil {
		return nil, "", err
	}
	return api, api.Self.UserName, nil
}

// Daemon is the worker process.
type Daemon struct {
	cfg  *config.Config
	dial Dialer
	log  *log.Entry

	store  *store.Store
	alerts *alert.Manager
}

// New creates a Daemon. A nil dial uses DialTelegram.
func New(cfg *config.Config, dial Dialer) *Daemon {
	if dial == nil {
		dial = DialTelegram
	}
	return &Daemon{
		cfg:  cfg,
		dial: dial,
		log:  log.WithFields(log.Fields{"component": "daemon"}),
	}
}

// Run starts the worker and blocks until ctx is cancelled, SIGTERM or SIGINT
// arrives, or a component fails.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	d.log.WithFields(log.Fields{
		"data_dir": d.cfg.DataDir,
		"timezone": d.cfg.Timezone,
	}).Info("Worker starting")

	l := lock.New(d.cfg.LockPath())
	if err := l.Acquire(); err != nil {
		return err
	}
	defer l.Release()

	st, err := store.Open(d.cfg.DBPath(), store.Options{})
	if err != nil {
		return err
	}
	defer st.Close()
	d.store = st

	loc, err := d.cfg.Location()
	if err != nil {
		return err
	}
	sched := scheduler.New(loc)
	defer sched.Stop()

	client, botName, err := d.dial(d.cfg.TelegramToken)
	if err != nil {
		return err
	}
	// The sender outlives polling so the shutdown alert can still go out.
	sendCtx, stopSending := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSending()
	sender := telegram.NewLimited(sendCtx, client, d.cfg.RateLimit, rateBurst)

	d.alerts = alert.NewManager()
	d.alerts.AddProvider(alert.NewTelegramProvider(sender, d.cfg.AllowedUserID, alert.Severity(d.cfg.AlertMinSeverity)))
	d.alerts.AddProvider(alert.NewDiscordProvider(d.cfg.DiscordWebhookURL, alert.Severity(d.cfg.AlertMinSeverity)))

	b := bot.New(bot.Config{
		AllowedUserID: d.cfg.AllowedUserID,
		DeletionDelay: d.cfg.DeletionDelay,
		ItemsPerPage:  d.cfg.ItemsPerPage,
	}, sender, savings.NewService(st), sched, d.alerts)

	n, err := b.RestoreReminders(ctx)
	if err != nil {
		return err
	}

	d.log.WithFields(log.Fields{
		"bot":       botName,
		"reminders": n,
		"alerts":    d.alerts.ProviderNames(),
	}).Info("Worker ready")

	if err := d.alerts.SendStartup(ctx, botName); err != nil {
		d.log.WithError(err).Warn("Startup alert failed")
	}

	updates := client.GetUpdatesChan(tgbotapi.UpdateConfig{
		Offset:  0,
		Timeout: int(d.cfg.PollTimeout / time.Second),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx, updates)
	})
	g.Go(func() error {
		d.backupLoop(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		client.StopReceivingUpdates()
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	d.log.Info("Worker stopped")

	// ctx is already done here.
	actx, cancel := context.WithTimeout(context.Background(), shutdownAlertTimeout)
	defer cancel()
	if alertErr := d.alerts.SendShutdown(actx, botName, err); alertErr != nil {
		d.log.WithError(alertErr).Warn("Shutdown alert failed")
	}
	return err
}

// backupLoop copies the database every BackupInterval. Zero disables it.
func (d *Daemon) backupLoop(ctx context.Context) {
	if d.cfg.BackupInterval <= 0 {
		return
	}

	ticker := time.NewTicker(d.cfg.BackupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.runBackup(); err != nil {
				d.log.WithError(err).Error("Scheduled backup failed")
				if alertErr := d.alerts.SendBackupFailure(ctx, err.Error()); alertErr != nil {
					d.log.WithError(alertErr).Warn("Backup failure alert failed")
				}
			}
		}
	}
}

func (d *Daemon) runBackup() error {
	dir := d.cfg.BackupDir()
	if _, err := backup.Create(d.store, dir); err != nil {
		return err
	}
	if _, err := backup.Cleanup(dir, d.cfg.MaxBackups); err != nil {
		return fmt.Errorf("prune backups: %w", err)
	}
	return nil
}
